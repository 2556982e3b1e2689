package services

import (
	"fmt"
	"strings"

	mapset "github.com/deckarep/golang-set/v2"
	"github.com/google/uuid"

	"github.com/mylesweissleder/newday-engine/pkg/models"
)

// Location match scores by granularity: city beats state beats country.
const (
	locationCityScore    = 1.0
	locationStateScore   = 0.6
	locationCountryScore = 0.3
)

// roleSimilarityScore is awarded when both positions carry the same
// seniority keyword.
const roleSimilarityScore = 0.5

// mutualConnectionSaturation is the mutual-connection count at which the
// signal saturates to 1.0.
const mutualConnectionSaturation = 5

// freeEmailProviders are excluded from the same-domain signal: two gmail
// addresses say nothing about a professional connection.
var freeEmailProviders = map[string]bool{
	"gmail.com":      true,
	"googlemail.com": true,
	"yahoo.com":      true,
	"hotmail.com":    true,
	"outlook.com":    true,
	"live.com":       true,
	"icloud.com":     true,
	"me.com":         true,
	"aol.com":        true,
	"protonmail.com": true,
	"proton.me":      true,
}

// seniorityKeywords group equivalent leadership markers in position text.
var seniorityKeywords = [][]string{
	{"ceo", "chief executive"},
	{"cto", "chief technology", "chief technical"},
	{"cfo", "chief financial"},
	{"coo", "chief operating"},
	{"founder", "co-founder", "cofounder"},
	{"vp", "vice president"},
	{"director"},
	{"head of"},
	{"partner"},
	{"principal"},
	{"manager"},
	{"lead"},
}

// ExtractEvidence computes the pairwise similarity signals between two
// contacts. It is a pure function over the two contact snapshots and their
// neighbor id sets: no I/O, deterministic, every score in [0,1]. Signals
// that do not fire are omitted; order follows signal declaration order.
func ExtractEvidence(a, b *models.Contact, neighborsA, neighborsB []uuid.UUID) []models.EvidenceSignal {
	signals := make([]models.EvidenceSignal, 0, 5)

	if sig, ok := companySignal(a, b); ok {
		signals = append(signals, sig)
	}
	if sig, ok := emailDomainSignal(a, b); ok {
		signals = append(signals, sig)
	}
	if sig, ok := locationSignal(a, b); ok {
		signals = append(signals, sig)
	}
	if sig, ok := roleSignal(a, b); ok {
		signals = append(signals, sig)
	}
	if sig, ok := mutualConnectionSignal(neighborsA, neighborsB); ok {
		signals = append(signals, sig)
	}

	return signals
}

// ============================================================================
// Individual Signals
// ============================================================================

func companySignal(a, b *models.Contact) (models.EvidenceSignal, bool) {
	companyA := normalizeCompany(a.Company)
	companyB := normalizeCompany(b.Company)
	if companyA == "" || companyA != companyB {
		return models.EvidenceSignal{}, false
	}

	return models.EvidenceSignal{
		Signal: models.SignalSameCompany,
		Score:  1.0,
		Detail: fmt.Sprintf("Both work at %s", a.Company),
	}, true
}

func emailDomainSignal(a, b *models.Contact) (models.EvidenceSignal, bool) {
	domainA := emailDomain(a.Email)
	domainB := emailDomain(b.Email)
	if domainA == "" || domainA != domainB || freeEmailProviders[domainA] {
		return models.EvidenceSignal{}, false
	}

	return models.EvidenceSignal{
		Signal: models.SignalSameEmailDomain,
		Score:  1.0,
		Detail: fmt.Sprintf("Shared email domain %s", domainA),
	}, true
}

func locationSignal(a, b *models.Contact) (models.EvidenceSignal, bool) {
	locA := parseLocation(a.Location)
	locB := parseLocation(b.Location)

	var score float64
	var detail string
	switch {
	case locA.city != "" && locA.city == locB.city:
		score = locationCityScore
		detail = fmt.Sprintf("Both located in %s", a.Location)
	case locA.state != "" && locA.state == locB.state:
		score = locationStateScore
		detail = fmt.Sprintf("Both in the same region (%s)", locA.state)
	case locA.country != "" && locA.country == locB.country:
		score = locationCountryScore
		detail = fmt.Sprintf("Both in the same country (%s)", locA.country)
	default:
		return models.EvidenceSignal{}, false
	}

	return models.EvidenceSignal{
		Signal: models.SignalSameLocation,
		Score:  score,
		Detail: detail,
	}, true
}

func roleSignal(a, b *models.Contact) (models.EvidenceSignal, bool) {
	posA := strings.ToLower(a.Position)
	posB := strings.ToLower(b.Position)
	if posA == "" || posB == "" {
		return models.EvidenceSignal{}, false
	}

	for _, group := range seniorityKeywords {
		if containsAny(posA, group) && containsAny(posB, group) {
			return models.EvidenceSignal{
				Signal: models.SignalRoleSimilarity,
				Score:  roleSimilarityScore,
				Detail: fmt.Sprintf("Similar seniority: %q and %q", a.Position, b.Position),
			}, true
		}
	}

	return models.EvidenceSignal{}, false
}

func mutualConnectionSignal(neighborsA, neighborsB []uuid.UUID) (models.EvidenceSignal, bool) {
	if len(neighborsA) == 0 || len(neighborsB) == 0 {
		return models.EvidenceSignal{}, false
	}

	setA := mapset.NewThreadUnsafeSet(neighborsA...)
	setB := mapset.NewThreadUnsafeSet(neighborsB...)
	mutualCount := setA.Intersect(setB).Cardinality()
	if mutualCount == 0 {
		return models.EvidenceSignal{}, false
	}

	score := float64(mutualCount) / mutualConnectionSaturation
	if score > 1.0 {
		score = 1.0
	}

	return models.EvidenceSignal{
		Signal: models.SignalMutualConnections,
		Score:  score,
		Detail: fmt.Sprintf("%d mutual connection(s)", mutualCount),
	}, true
}

// ============================================================================
// Normalization Helpers
// ============================================================================

var companySuffixes = []string{
	" inc", " inc.", " llc", " llc.", " ltd", " ltd.", " gmbh",
	" corp", " corp.", " corporation", " co", " co.", " company",
}

func normalizeCompany(company string) string {
	normalized := strings.ToLower(strings.TrimSpace(company))
	normalized = strings.TrimSuffix(normalized, ",")
	for _, suffix := range companySuffixes {
		normalized = strings.TrimSuffix(normalized, suffix)
	}
	return strings.TrimSpace(normalized)
}

func emailDomain(email *string) string {
	if email == nil {
		return ""
	}
	at := strings.LastIndex(*email, "@")
	if at < 0 || at == len(*email)-1 {
		return ""
	}
	return strings.ToLower((*email)[at+1:])
}

type location struct {
	city    string
	state   string
	country string
}

// parseLocation splits "City, State, Country" style strings. Single-segment
// locations are treated as a city.
func parseLocation(raw string) location {
	parts := strings.Split(raw, ",")
	for i := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(parts[i]))
	}

	var loc location
	switch len(parts) {
	case 0:
		return loc
	case 1:
		loc.city = parts[0]
	case 2:
		loc.city = parts[0]
		loc.state = parts[1]
	default:
		loc.city = parts[0]
		loc.state = parts[1]
		loc.country = parts[len(parts)-1]
	}
	if loc.city == "" {
		return location{}
	}
	return loc
}

func containsAny(haystack string, needles []string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}

package config

import (
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"
)

// FactorName identifies one of the six scoring factors. The recalibrator's
// recommended adjustments reference weights by these names so they can be
// applied without code changes.
type FactorName string

const (
	FactorNetworkPosition       FactorName = "network_position"
	FactorRelationshipStrength  FactorName = "relationship_strength"
	FactorProfessionalRelevance FactorName = "professional_relevance"
	FactorMutualConnections     FactorName = "mutual_connections"
	FactorEngagementPattern     FactorName = "engagement_pattern"
	FactorOpportunityIndicators FactorName = "opportunity_indicators"
)

// AllFactors lists the scoring factors in canonical order.
var AllFactors = []FactorName{
	FactorNetworkPosition,
	FactorRelationshipStrength,
	FactorProfessionalRelevance,
	FactorMutualConnections,
	FactorEngagementPattern,
	FactorOpportunityIndicators,
}

// FactorWeights maps factor names to their aggregate weight. Weights for one
// score type must sum to 1.
type FactorWeights map[FactorName]float64

// DiscoveryWeights holds the evidence-signal weights for relationship
// discovery confidence.
type DiscoveryWeights struct {
	SameCompany       float64 `yaml:"same_company"`
	SameEmailDomain   float64 `yaml:"same_email_domain"`
	SameLocation      float64 `yaml:"same_location"`
	RoleSimilarity    float64 `yaml:"role_similarity"`
	MutualConnections float64 `yaml:"mutual_connections"`
}

// ScoringWeights is the named, versioned weight document behind all
// composite scoring. It lives outside code so recalibration recommendations
// can be applied by editing configuration.
type ScoringWeights struct {
	Version string `yaml:"version"`

	Discovery DiscoveryWeights `yaml:"discovery"`

	Priority    FactorWeights `yaml:"priority"`
	Opportunity FactorWeights `yaml:"opportunity"`
	Strategic   FactorWeights `yaml:"strategic"`
}

// DefaultScoringWeights returns the compiled-in weight document.
func DefaultScoringWeights() *ScoringWeights {
	return &ScoringWeights{
		Version: "v1",
		Discovery: DiscoveryWeights{
			SameCompany:       0.30,
			SameEmailDomain:   0.20,
			SameLocation:      0.15,
			RoleSimilarity:    0.15,
			MutualConnections: 0.20,
		},
		Priority: FactorWeights{
			FactorEngagementPattern:     0.25,
			FactorRelationshipStrength:  0.25,
			FactorNetworkPosition:       0.15,
			FactorProfessionalRelevance: 0.15,
			FactorMutualConnections:     0.10,
			FactorOpportunityIndicators: 0.10,
		},
		Opportunity: FactorWeights{
			FactorOpportunityIndicators: 0.30,
			FactorNetworkPosition:       0.25,
			FactorProfessionalRelevance: 0.15,
			FactorEngagementPattern:     0.10,
			FactorRelationshipStrength:  0.10,
			FactorMutualConnections:     0.10,
		},
		Strategic: FactorWeights{
			FactorNetworkPosition:       0.30,
			FactorMutualConnections:     0.25,
			FactorProfessionalRelevance: 0.15,
			FactorRelationshipStrength:  0.10,
			FactorEngagementPattern:     0.10,
			FactorOpportunityIndicators: 0.10,
		},
	}
}

// LoadScoringWeights reads a weight document from the given path, falling
// back to the defaults when path is empty.
func LoadScoringWeights(path string) (*ScoringWeights, error) {
	if path == "" {
		return DefaultScoringWeights(), nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read weights file: %w", err)
	}

	var w ScoringWeights
	if err := yaml.Unmarshal(data, &w); err != nil {
		return nil, fmt.Errorf("failed to parse weights file: %w", err)
	}

	if err := w.Validate(); err != nil {
		return nil, fmt.Errorf("invalid weights document %q: %w", path, err)
	}

	return &w, nil
}

// Validate checks that every weight vector sums to 1 within tolerance and
// that all six factors are present.
func (w *ScoringWeights) Validate() error {
	if w.Version == "" {
		return fmt.Errorf("weights document must declare a version")
	}

	discoverySum := w.Discovery.SameCompany + w.Discovery.SameEmailDomain +
		w.Discovery.SameLocation + w.Discovery.RoleSimilarity + w.Discovery.MutualConnections
	if math.Abs(discoverySum-1.0) > 0.001 {
		return fmt.Errorf("discovery weights sum to %.3f, want 1.0", discoverySum)
	}

	for name, fw := range map[string]FactorWeights{
		"priority":    w.Priority,
		"opportunity": w.Opportunity,
		"strategic":   w.Strategic,
	} {
		var sum float64
		for _, factor := range AllFactors {
			weight, ok := fw[factor]
			if !ok {
				return fmt.Errorf("%s weights missing factor %q", name, factor)
			}
			if weight < 0 {
				return fmt.Errorf("%s weight for %q is negative", name, factor)
			}
			sum += weight
		}
		if math.Abs(sum-1.0) > 0.001 {
			return fmt.Errorf("%s weights sum to %.3f, want 1.0", name, sum)
		}
	}

	return nil
}

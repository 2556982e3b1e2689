package config

import (
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

// Config holds all configuration for newday-engine.
// Configuration can come from YAML file (config.yaml) or environment variables.
// Environment variables always override YAML values for fields that support both.
// Secrets (passwords, keys) must only come from environment variables.
type Config struct {
	// Server configuration
	BindAddr string `yaml:"bind_addr" env:"BIND_ADDR" env-default:"127.0.0.1"`
	Port     string `yaml:"port" env:"PORT" env-default:"8090"`
	Env      string `yaml:"env" env:"ENVIRONMENT" env-default:"local"`
	Version  string `yaml:"-"` // Set at load time, not from config

	// Database configuration (PostgreSQL)
	Database DatabaseConfig `yaml:"database"`

	// MigrationsPath is the directory containing SQL migration files.
	MigrationsPath string `yaml:"migrations_path" env:"MIGRATIONS_PATH" env-default:"migrations"`

	// WeightsPath points to the versioned scoring weights document.
	// Empty means compiled-in defaults.
	WeightsPath string `yaml:"weights_path" env:"WEIGHTS_PATH" env-default:""`

	// Discovery configuration
	Discovery DiscoveryConfig `yaml:"discovery"`

	// Opportunity generation configuration
	Opportunity OpportunityConfig `yaml:"opportunity"`

	// Batch execution configuration
	Batch BatchConfig `yaml:"batch"`

	// Optional LLM endpoint for narrative insight generation
	Insight InsightConfig `yaml:"insight"`
}

// DatabaseConfig holds PostgreSQL database configuration.
type DatabaseConfig struct {
	Host           string `yaml:"host" env:"PGHOST" env-default:"localhost"`
	Port           int    `yaml:"port" env:"PGPORT" env-default:"5432"`
	User           string `yaml:"user" env:"PGUSER" env-default:"newday"`
	Password       string `yaml:"-" env:"PGPASSWORD"` // Secret - not in YAML
	Database       string `yaml:"database" env:"PGDATABASE" env-default:"newday_engine"`
	MaxConnections int32  `yaml:"max_connections" env:"PGMAX_CONNECTIONS" env-default:"25"`
	SSLMode        string `yaml:"ssl_mode" env:"PGSSLMODE" env-default:"disable"`
}

// URL builds the connection string for pgx.
func (c *DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.Database, c.SSLMode)
}

// DiscoveryConfig holds relationship discovery settings.
type DiscoveryConfig struct {
	// ConfidenceFloor discards candidates below this aggregate confidence.
	ConfidenceFloor float64 `yaml:"confidence_floor" env:"DISCOVERY_CONFIDENCE_FLOOR" env-default:"0.3"`

	// MaxExhaustiveContacts bounds the O(n^2) pairwise scan. Accounts above
	// this size fall back to blocking-key prefiltering.
	MaxExhaustiveContacts int `yaml:"max_exhaustive_contacts" env:"DISCOVERY_MAX_EXHAUSTIVE_CONTACTS" env-default:"2000"`

	// MaxPairsPerBatch caps total pairs scored in one batch run.
	MaxPairsPerBatch int `yaml:"max_pairs_per_batch" env:"DISCOVERY_MAX_PAIRS_PER_BATCH" env-default:"2000000"`
}

// OpportunityConfig holds opportunity generation settings.
type OpportunityConfig struct {
	// ReconnectAfterDays is the staleness threshold for reconnection suggestions.
	ReconnectAfterDays int `yaml:"reconnect_after_days" env:"OPPORTUNITY_RECONNECT_AFTER_DAYS" env-default:"90"`

	// IntroPathMinStrength is the minimum edge strength for a warm path.
	IntroPathMinStrength float64 `yaml:"intro_path_min_strength" env:"OPPORTUNITY_INTRO_PATH_MIN_STRENGTH" env-default:"0.6"`

	// ClusterMinSize is the minimum cluster size for a business match.
	ClusterMinSize int `yaml:"cluster_min_size" env:"OPPORTUNITY_CLUSTER_MIN_SIZE" env-default:"3"`

	// SuggestionTTLDays is how long a suggestion stays actionable before expiry.
	SuggestionTTLDays int `yaml:"suggestion_ttl_days" env:"OPPORTUNITY_SUGGESTION_TTL_DAYS" env-default:"30"`
}

// BatchConfig holds chunked batch execution settings.
type BatchConfig struct {
	// ChunkSize is the number of records per unit of work. Each chunk commit
	// is its own transaction boundary.
	ChunkSize int `yaml:"chunk_size" env:"BATCH_CHUNK_SIZE" env-default:"50"`
}

// InsightConfig holds the optional LLM endpoint used for narrative framing of
// suggestions. Generation never depends on it: timeouts fall back to an empty
// narrative.
type InsightConfig struct {
	Enabled  bool          `yaml:"enabled" env:"INSIGHT_ENABLED" env-default:"false"`
	BaseURL  string        `yaml:"base_url" env:"INSIGHT_BASE_URL" env-default:""`
	Model    string        `yaml:"model" env:"INSIGHT_MODEL" env-default:""`
	APIKey   string        `yaml:"-" env:"INSIGHT_API_KEY"` // Secret - not in YAML
	Timeout  time.Duration `yaml:"timeout" env:"INSIGHT_TIMEOUT" env-default:"10s"`
}

// Load reads configuration from config.yaml (if present) and the environment.
func Load(version string) (*Config, error) {
	cfg := &Config{}

	if _, err := os.Stat("config.yaml"); err == nil {
		if err := cleanenv.ReadConfig("config.yaml", cfg); err != nil {
			return nil, fmt.Errorf("failed to read config.yaml: %w", err)
		}
	} else {
		if err := cleanenv.ReadEnv(cfg); err != nil {
			return nil, fmt.Errorf("failed to read environment config: %w", err)
		}
	}

	cfg.Version = version

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Discovery.ConfidenceFloor < 0 || c.Discovery.ConfidenceFloor > 1 {
		return fmt.Errorf("discovery confidence floor must be in [0,1], got %v", c.Discovery.ConfidenceFloor)
	}
	if c.Opportunity.IntroPathMinStrength < 0 || c.Opportunity.IntroPathMinStrength > 1 {
		return fmt.Errorf("intro path min strength must be in [0,1], got %v", c.Opportunity.IntroPathMinStrength)
	}
	if c.Batch.ChunkSize <= 0 {
		return fmt.Errorf("batch chunk size must be positive, got %d", c.Batch.ChunkSize)
	}
	if c.Insight.Enabled && c.Insight.BaseURL == "" {
		return fmt.Errorf("insight is enabled but no base URL is configured")
	}
	return nil
}

package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

const (
	StoreMemory    = "memory"
	StoreCouchbase = "couchbase"
)

type Config struct {
	AppName          string `mapstructure:"APP_NAME"`
	APIPort          string `mapstructure:"API_PORT"`
	ElasticsearchURL string `mapstructure:"ELASTICSEARCH_URL"`
	LogIndex         string `mapstructure:"LOG_INDEX"`
	LogLevel         string `mapstructure:"LOG_LEVEL"`

	StoreBackend      string `mapstructure:"STORE_BACKEND"`
	CouchbaseURL      string `mapstructure:"COUCHBASE_URL"`
	CouchbaseUsername string `mapstructure:"COUCHBASE_USERNAME"`
	CouchbasePassword string `mapstructure:"COUCHBASE_PASSWORD"`
	CouchbaseBucket   string `mapstructure:"COUCHBASE_BUCKET"`

	FHIRBaseURL      string        `mapstructure:"FHIR_BASE_URL"`
	FHIRTimeout      time.Duration `mapstructure:"FHIR_TIMEOUT"`
	FHIRPatientCount int           `mapstructure:"FHIR_PATIENT_COUNT"`

	AuthSecret       string        `mapstructure:"AUTH_SECRET"`
	AuthTokenTTL     time.Duration `mapstructure:"AUTH_TOKEN_TTL"`
	DemoUserEmail    string        `mapstructure:"DEMO_USER_EMAIL"`
	DemoUserPassword string        `mapstructure:"DEMO_USER_PASSWORD"`
	DemoUserName     string        `mapstructure:"DEMO_USER_NAME"`

	InsightDelay       time.Duration `mapstructure:"INSIGHT_DELAY"`
	InsightTimeout     time.Duration `mapstructure:"INSIGHT_TIMEOUT"`
	SessionIdleTimeout time.Duration `mapstructure:"SESSION_IDLE_TIMEOUT"`

	EnableBusinessMetrics bool          `mapstructure:"ENABLE_BUSINESS_METRICS"`
	EnableSystemMetrics   bool          `mapstructure:"ENABLE_SYSTEM_METRICS"`
	SystemMetricsInterval time.Duration `mapstructure:"SYSTEM_METRICS_INTERVAL"`
}

var defaults = map[string]interface{}{
	"APP_NAME":          "holdmed",
	"API_PORT":          "8080",
	"ELASTICSEARCH_URL": "",
	"LOG_INDEX":         "logs",
	"LOG_LEVEL":         "info",

	"STORE_BACKEND":      StoreMemory,
	"COUCHBASE_URL":      "couchbase://holdmed-db",
	"COUCHBASE_USERNAME": "",
	"COUCHBASE_PASSWORD": "",
	"COUCHBASE_BUCKET":   "holdmed",

	"FHIR_BASE_URL":      "https://hapi.fhir.org/baseR4",
	"FHIR_TIMEOUT":       "30s",
	"FHIR_PATIENT_COUNT": 50,

	"AUTH_SECRET":        "holdmed-dev-secret",
	"AUTH_TOKEN_TTL":     "8h",
	"DEMO_USER_EMAIL":    "admin@holdmed.com",
	"DEMO_USER_PASSWORD": "admin123",
	"DEMO_USER_NAME":     "Dr. Carlos Silva",

	"INSIGHT_DELAY":        "1s",
	"INSIGHT_TIMEOUT":      "10s",
	"SESSION_IDLE_TIMEOUT": "30m",

	"ENABLE_BUSINESS_METRICS": false,
	"ENABLE_SYSTEM_METRICS":   false,
	"SYSTEM_METRICS_INTERVAL": "15s",
}

// LoadDotEnv loads .env from the parent directory, then the current one.
// Missing files are not an error; the environment may already be set.
func LoadDotEnv() {
	if err := godotenv.Load("../.env"); err == nil {
		return
	}
	log.Info().Msg("Not found .env file in parent directory, trying current directory")
	if err := godotenv.Load(".env"); err != nil {
		log.Info().Msg("Not found .env file in current directory, assuming environment variables are set")
	}
}

// Load reads the configuration from the environment over the defaults.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()

	for key, value := range defaults {
		v.SetDefault(key, value)
		// Unmarshal only sees env vars that are bound
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.StoreBackend = strings.ToLower(strings.TrimSpace(cfg.StoreBackend))

	return cfg, nil
}

// Validate checks that the configuration can be run.
func (c *Config) Validate() error {
	switch c.StoreBackend {
	case StoreMemory:
	case StoreCouchbase:
		if c.CouchbaseURL == "" || c.CouchbaseUsername == "" || c.CouchbasePassword == "" {
			return fmt.Errorf("COUCHBASE_URL, COUCHBASE_USERNAME and COUCHBASE_PASSWORD are required when STORE_BACKEND is %q", StoreCouchbase)
		}
		if c.CouchbaseBucket == "" {
			return fmt.Errorf("COUCHBASE_BUCKET is required when STORE_BACKEND is %q", StoreCouchbase)
		}
	default:
		return fmt.Errorf("STORE_BACKEND must be %q or %q, got %q", StoreMemory, StoreCouchbase, c.StoreBackend)
	}

	if c.AuthSecret == "" {
		return fmt.Errorf("AUTH_SECRET is required")
	}
	if c.AuthTokenTTL <= 0 {
		return fmt.Errorf("AUTH_TOKEN_TTL must be positive, got %s", c.AuthTokenTTL)
	}
	if c.InsightDelay < 0 {
		return fmt.Errorf("INSIGHT_DELAY must not be negative, got %s", c.InsightDelay)
	}
	if c.InsightTimeout <= 0 {
		return fmt.Errorf("INSIGHT_TIMEOUT must be positive, got %s", c.InsightTimeout)
	}
	return nil
}

package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds environment-driven settings for the custody core.
type Config struct {
	Port     string
	LogLevel string

	// Storage is "memory" or "postgres".
	Storage     string
	DatabaseURL string

	KafkaBrokers     []string
	KafkaTopicPrefix string

	FeePoolAccountID string

	BalanceOpTimeout      time.Duration
	ReconciliationTimeout time.Duration
	EnableScheduler       bool

	// LegacyFeeTables is a comma separated list of name:table:amount:currency:time.
	LegacyFeeTables string

	RiskConfigTTL  time.Duration
	RiskConfigFile string
}

// Load reads environment variables (optionally via .env) into Config.
func Load() (*Config, error) {
	// missing .env is fine
	_ = godotenv.Load()

	cfg := &Config{
		Port:                  getEnv("PORT", "8080"),
		LogLevel:              getEnv("LOG_LEVEL", "info"),
		Storage:               strings.ToLower(getEnv("STORAGE", "memory")),
		DatabaseURL:           os.Getenv("DATABASE_URL"),
		KafkaBrokers:          splitAndTrim(os.Getenv("KAFKA_BROKERS")),
		KafkaTopicPrefix:      getEnv("KAFKA_TOPIC_PREFIX", "custody."),
		FeePoolAccountID:      getEnv("FEE_POOL_ACCOUNT_ID", "platform"),
		BalanceOpTimeout:      getEnvDuration("BALANCE_OP_TIMEOUT", 5*time.Second),
		ReconciliationTimeout: getEnvDuration("RECONCILIATION_TIMEOUT", 30*time.Second),
		EnableScheduler:       getEnvBool("ENABLE_SCHEDULER", true),
		LegacyFeeTables:       os.Getenv("LEGACY_FEE_TABLES"),
		RiskConfigTTL:         getEnvDuration("RISK_CONFIG_TTL", 60*time.Second),
		RiskConfigFile:        os.Getenv("RISK_CONFIG_FILE"),
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage {
	case "memory":
	case "postgres":
		if c.DatabaseURL == "" {
			return fmt.Errorf("DATABASE_URL is required when STORAGE=postgres")
		}
	default:
		return fmt.Errorf("unknown STORAGE %q, want memory or postgres", c.Storage)
	}
	if c.LegacyFeeTables != "" && c.Storage != "postgres" {
		return fmt.Errorf("LEGACY_FEE_TABLES needs STORAGE=postgres")
	}
	return nil
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if v, err := strconv.ParseBool(os.Getenv(key)); err == nil {
		return v
	}
	return defaultValue
}

// getEnvDuration accepts Go durations ("45s") or plain seconds ("45").
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	if d, err := time.ParseDuration(raw); err == nil && d > 0 {
		return d
	}
	if secs, err := strconv.Atoi(raw); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	return defaultValue
}

func splitAndTrim(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{
		"PORT", "LOG_LEVEL", "STORAGE", "DATABASE_URL", "KAFKA_BROKERS", "KAFKA_TOPIC_PREFIX",
		"FEE_POOL_ACCOUNT_ID", "BALANCE_OP_TIMEOUT", "RECONCILIATION_TIMEOUT", "ENABLE_SCHEDULER",
		"LEGACY_FEE_TABLES", "RISK_CONFIG_TTL", "RISK_CONFIG_FILE",
	} {
		t.Setenv(key, "")
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, "memory", cfg.Storage)
	assert.Empty(t, cfg.KafkaBrokers)
	assert.Equal(t, "platform", cfg.FeePoolAccountID)
	assert.Equal(t, 5*time.Second, cfg.BalanceOpTimeout)
	assert.Equal(t, 30*time.Second, cfg.ReconciliationTimeout)
	assert.Equal(t, time.Minute, cfg.RiskConfigTTL)
	assert.True(t, cfg.EnableScheduler)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("STORAGE", "Postgres")
	t.Setenv("DATABASE_URL", "postgres://custody@localhost/custody?sslmode=disable")
	t.Setenv("KAFKA_BROKERS", "kafka-1:9092, kafka-2:9092,")
	t.Setenv("BALANCE_OP_TIMEOUT", "2s")
	t.Setenv("RECONCILIATION_TIMEOUT", "90")
	t.Setenv("RISK_CONFIG_TTL", "not-a-duration")
	t.Setenv("ENABLE_SCHEDULER", "false")
	t.Setenv("LEGACY_FEE_TABLES", "spot:spot_fees:fee:currency:created_at")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Storage)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.KafkaBrokers)
	assert.Equal(t, 2*time.Second, cfg.BalanceOpTimeout)
	assert.Equal(t, 90*time.Second, cfg.ReconciliationTimeout)
	assert.Equal(t, time.Minute, cfg.RiskConfigTTL)
	assert.False(t, cfg.EnableScheduler)
}

func TestLoadRejectsBadStorage(t *testing.T) {
	t.Setenv("LEGACY_FEE_TABLES", "")

	t.Setenv("STORAGE", "postgres")
	t.Setenv("DATABASE_URL", "")
	_, err := Load()
	assert.ErrorContains(t, err, "DATABASE_URL")

	t.Setenv("STORAGE", "mongo")
	_, err = Load()
	assert.ErrorContains(t, err, "unknown STORAGE")

	t.Setenv("STORAGE", "memory")
	t.Setenv("LEGACY_FEE_TABLES", "spot:spot_fees:fee:currency:created_at")
	_, err = Load()
	assert.ErrorContains(t, err, "LEGACY_FEE_TABLES")
}

package risk

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

func writeFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "risk.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestLoadGlobalConfigFile(t *testing.T) {
	path := writeFile(t, `
max_open_orders: 3
max_slippage_percent: 0.25
blocked_symbols:
  - LUNAUSDT
allowed_timeframes: ["15m", "1h"]
kill_switch_active: true
kill_switch_reason: scheduled upgrade
`)

	cfg, err := LoadGlobalConfigFile(path)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.MaxOpenOrders)
	assert.Equal(t, 0.25, cfg.MaxSlippagePercent)
	assert.Equal(t, []string{"LUNAUSDT"}, cfg.BlockedSymbols)
	assert.Equal(t, []string{"15m", "1h"}, cfg.AllowedTimeframes)
	assert.True(t, cfg.KillSwitchActive)
	assert.Equal(t, "scheduled upgrade", cfg.KillSwitchReason)

	defaults := models.DefaultGlobalRiskConfig()
	assert.Equal(t, defaults.MaxConcurrentPositions, cfg.MaxConcurrentPositions)
	assert.Equal(t, defaults.MinVolume24h, cfg.MinVolume24h)
	assert.True(t, cfg.RequireStopLoss)
}

func TestLoadGlobalConfigFile_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		_, err := LoadGlobalConfigFile(filepath.Join(t.TempDir(), "nope.yaml"))
		assert.ErrorIs(t, err, os.ErrNotExist)
	})

	t.Run("bad yaml", func(t *testing.T) {
		_, err := LoadGlobalConfigFile(writeFile(t, "max_open_orders: [1, 2"))
		assert.Error(t, err)
	})

	t.Run("negative limit", func(t *testing.T) {
		_, err := LoadGlobalConfigFile(writeFile(t, "max_dca_levels: -2\n"))
		assert.ErrorIs(t, err, models.ErrValidation)
	})
}

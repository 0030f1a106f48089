package risk

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// LoadGlobalConfigFile reads a YAML risk config. Keys missing from the file
// keep their default values.
func LoadGlobalConfigFile(path string) (models.GlobalRiskConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return models.GlobalRiskConfig{}, err
	}

	cfg := models.DefaultGlobalRiskConfig()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return models.GlobalRiskConfig{}, fmt.Errorf("parse risk config %s: %w", path, err)
	}
	if err := ValidateGlobalConfig(cfg); err != nil {
		return models.GlobalRiskConfig{}, err
	}
	return cfg, nil
}

// ValidateGlobalConfig rejects negative limits.
func ValidateGlobalConfig(cfg models.GlobalRiskConfig) error {
	ints := map[string]int{
		"max_concurrent_positions":    cfg.MaxConcurrentPositions,
		"max_open_orders":             cfg.MaxOpenOrders,
		"cooldown_after_loss_minutes": cfg.CooldownAfterLossMinutes,
		"max_orders_per_minute":       cfg.MaxOrdersPerMinute,
		"max_dca_levels":              cfg.MaxDCALevels,
		"max_grid_levels":             cfg.MaxGridLevels,
	}
	for field, v := range ints {
		if v < 0 {
			return models.Invalid(field, "must not be negative")
		}
	}
	floats := map[string]float64{
		"max_position_size_usd":       cfg.MaxPositionSizeUSD,
		"max_daily_loss_usd":          cfg.MaxDailyLossUSD,
		"max_drawdown_percent":        cfg.MaxDrawdownPercent,
		"max_slippage_percent":        cfg.MaxSlippagePercent,
		"max_spread_percent":          cfg.MaxSpreadPercent,
		"max_price_deviation_percent": cfg.MaxPriceDeviationPercent,
		"min_volume_24h":              cfg.MinVolume24h,
	}
	for field, v := range floats {
		if v < 0 {
			return models.Invalid(field, "must not be negative")
		}
	}
	return nil
}

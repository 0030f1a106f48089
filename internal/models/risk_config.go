package models

import "time"

// GlobalRiskConfig holds the admin-controlled defaults every bot inherits.
// MaxDrawdownPercent, CooldownAfterLossMinutes and MaxOrdersPerMinute are
// stored and served here but enforced by the execution layer, which tracks
// equity curves, loss events and order rates; the pre-trade checks never
// read them.
type GlobalRiskConfig struct {
	MaxConcurrentPositions int     `json:"max_concurrent_positions" yaml:"max_concurrent_positions"`
	MaxOpenOrders          int     `json:"max_open_orders" yaml:"max_open_orders"`
	MaxPositionSizeUSD     float64 `json:"max_position_size_usd" yaml:"max_position_size_usd"`
	MaxDailyLossUSD        float64 `json:"max_daily_loss_usd" yaml:"max_daily_loss_usd"`
	MaxDrawdownPercent     float64 `json:"max_drawdown_percent" yaml:"max_drawdown_percent"`

	AllowedSymbols    []string `json:"allowed_symbols" yaml:"allowed_symbols"`
	BlockedSymbols    []string `json:"blocked_symbols" yaml:"blocked_symbols"`
	AllowedTimeframes []string `json:"allowed_timeframes" yaml:"allowed_timeframes"`

	CooldownAfterLossMinutes int `json:"cooldown_after_loss_minutes" yaml:"cooldown_after_loss_minutes"`

	MaxSlippagePercent       float64 `json:"max_slippage_percent" yaml:"max_slippage_percent"`
	MaxSpreadPercent         float64 `json:"max_spread_percent" yaml:"max_spread_percent"`
	MaxPriceDeviationPercent float64 `json:"max_price_deviation_percent" yaml:"max_price_deviation_percent"`
	MinVolume24h             float64 `json:"min_volume_24h" yaml:"min_volume_24h"`

	MaxOrdersPerMinute int `json:"max_orders_per_minute" yaml:"max_orders_per_minute"`

	KillSwitchActive bool   `json:"kill_switch_active" yaml:"kill_switch_active"`
	KillSwitchReason string `json:"kill_switch_reason,omitempty" yaml:"kill_switch_reason"`

	RequireStopLoss   bool `json:"require_stop_loss" yaml:"require_stop_loss"`
	RequireTakeProfit bool `json:"require_take_profit" yaml:"require_take_profit"`
	OneBotPerSymbol   bool `json:"one_bot_per_symbol" yaml:"one_bot_per_symbol"`

	MaxDCALevels  int `json:"max_dca_levels" yaml:"max_dca_levels"`
	MaxGridLevels int `json:"max_grid_levels" yaml:"max_grid_levels"`

	UpdatedAt time.Time `json:"updated_at" yaml:"-"`
}

// DefaultGlobalRiskConfig returns the limits used until an admin saves a config.
func DefaultGlobalRiskConfig() GlobalRiskConfig {
	return GlobalRiskConfig{
		MaxConcurrentPositions:   5,
		MaxOpenOrders:            10,
		MaxPositionSizeUSD:       10000,
		MaxDailyLossUSD:          1000,
		MaxDrawdownPercent:       20,
		AllowedTimeframes:        []string{"1m", "5m", "15m", "1h", "4h", "1d"},
		CooldownAfterLossMinutes: 30,
		MaxSlippagePercent:       1.0,
		MaxSpreadPercent:         0.5,
		MaxPriceDeviationPercent: 5.0,
		MinVolume24h:             100000,
		MaxOrdersPerMinute:       10,
		RequireStopLoss:          true,
		OneBotPerSymbol:          true,
		MaxDCALevels:             5,
		MaxGridLevels:            20,
	}
}

// BotRiskConfig holds per-bot overrides. A nil field inherits the global value.
type BotRiskConfig struct {
	BotID   string `json:"bot_id"`
	UserID  string `json:"user_id"`
	BotType string `json:"bot_type"`

	MaxPositionSizeUSD     *float64 `json:"max_position_size_usd,omitempty"`
	MaxConcurrentPositions *int     `json:"max_concurrent_positions,omitempty"`
	MaxOpenOrders          *int     `json:"max_open_orders,omitempty"`
	MaxDailyLossUSD        *float64 `json:"max_daily_loss_usd,omitempty"`

	// StopLossPercent and TakeProfitPercent satisfy the global exit
	// requirements. The trailing, break-even and time stops below are
	// executed by the bot runtime and only stored here.
	StopLossPercent         *float64 `json:"stop_loss_percent,omitempty"`
	TakeProfitPercent       *float64 `json:"take_profit_percent,omitempty"`
	TrailingStopPercent     *float64 `json:"trailing_stop_percent,omitempty"`
	BreakEvenTriggerPercent *float64 `json:"break_even_trigger_percent,omitempty"`
	TimeStopMinutes         *int     `json:"time_stop_minutes,omitempty"`

	MaxDCALevels  *int `json:"max_dca_levels,omitempty"`
	MaxGridLevels *int `json:"max_grid_levels,omitempty"`

	KillSwitchActive bool `json:"kill_switch_active"`
	// CooldownUntil is set by the execution layer after a loss.
	CooldownUntil *time.Time `json:"cooldown_until,omitempty"`

	UpdatedAt time.Time `json:"updated_at"`
}

// RiskViolation is the persisted trail of one blocked order intent.
type RiskViolation struct {
	ID           string         `json:"id"`
	BotID        string         `json:"bot_id"`
	UserID       string         `json:"user_id"`
	Symbol       string         `json:"symbol"`
	Action       string         `json:"action"`
	Reason       string         `json:"reason"`
	Details      string         `json:"details"`
	ChecksPassed []string       `json:"checks_passed"`
	Intent       map[string]any `json:"intent,omitempty"`
	CreatedAt    time.Time      `json:"created_at"`
}

package risk

import "time"

// Action is the side of an order intent.
type Action string

const (
	ActionBuy  Action = "BUY"
	ActionSell Action = "SELL"
	ActionExit Action = "EXIT"
)

// Valid reports whether a is a known action.
func (a Action) Valid() bool {
	return a == ActionBuy || a == ActionSell || a == ActionExit
}

// Bot types with their own level caps.
const (
	BotTypeDCA  = "dca"
	BotTypeGrid = "grid"
)

// OrderIntent is an order a bot wants to place, with the market and exposure
// context it was generated in. Zero market fields mean "not known" and the
// checks that need them are not evaluated.
type OrderIntent struct {
	BotID     string `json:"bot_id"`
	UserID    string `json:"user_id"`
	BotType   string `json:"bot_type"`
	Symbol    string `json:"symbol"`
	Timeframe string `json:"timeframe"`
	Action    Action `json:"action"`

	Quantity        float64 `json:"quantity"`
	Price           float64 `json:"price"`
	StopLossPrice   float64 `json:"stop_loss_price"`
	TakeProfitPrice float64 `json:"take_profit_price"`

	Bid           float64 `json:"bid"`
	Ask           float64 `json:"ask"`
	SpreadPercent float64 `json:"spread_percent"`
	Volume24h     float64 `json:"volume_24h"`
	LastClose     float64 `json:"last_close"`

	OpenPositions     int     `json:"open_positions"`
	OpenOrders        int     `json:"open_orders"`
	DailyLossUSD      float64 `json:"daily_loss_usd"`
	DCALevel          int     `json:"dca_level"`
	GridLevels        int     `json:"grid_levels"`
	OtherBotsOnSymbol int     `json:"other_bots_on_symbol"`
}

// Notional is the order value in quote currency.
func (i OrderIntent) Notional() float64 {
	return i.Quantity * i.Price
}

func (i OrderIntent) fields() map[string]any {
	return map[string]any{
		"bot_type":   i.BotType,
		"timeframe":  i.Timeframe,
		"quantity":   i.Quantity,
		"price":      i.Price,
		"bid":        i.Bid,
		"ask":        i.Ask,
		"volume_24h": i.Volume24h,
		"last_close": i.LastClose,
		"positions":  i.OpenPositions,
		"orders":     i.OpenOrders,
		"daily_loss": i.DailyLossUSD,
	}
}

// Verdict is the outcome of ValidateOrderIntent.
type Verdict string

const (
	VerdictPass  Verdict = "RISK_PASS"
	VerdictBlock Verdict = "RISK_BLOCK"
)

// ReasonCode names the check that blocked an intent.
type ReasonCode string

const (
	ReasonKillSwitchGlobal       ReasonCode = "KILL_SWITCH_GLOBAL"
	ReasonKillSwitchUser         ReasonCode = "KILL_SWITCH_USER"
	ReasonKillSwitchBot          ReasonCode = "KILL_SWITCH_BOT"
	ReasonCooldownActive         ReasonCode = "COOLDOWN_ACTIVE"
	ReasonSymbolNotAllowed       ReasonCode = "SYMBOL_NOT_ALLOWED"
	ReasonSymbolBlocked          ReasonCode = "SYMBOL_BLOCKED"
	ReasonTimeframeNotAllowed    ReasonCode = "TIMEFRAME_NOT_ALLOWED"
	ReasonMaxPositionsExceeded   ReasonCode = "MAX_POSITIONS_EXCEEDED"
	ReasonMaxOpenOrdersExceeded  ReasonCode = "MAX_OPEN_ORDERS_EXCEEDED"
	ReasonDailyLossLimitExceeded ReasonCode = "DAILY_LOSS_LIMIT_EXCEEDED"
	ReasonStopLossRequired       ReasonCode = "STOP_LOSS_REQUIRED"
	ReasonTakeProfitRequired     ReasonCode = "TAKE_PROFIT_REQUIRED"
	ReasonPositionSizeExceeded   ReasonCode = "POSITION_SIZE_EXCEEDED"
	ReasonSlippageExceeded       ReasonCode = "SLIPPAGE_EXCEEDED"
	ReasonSpreadTooWide          ReasonCode = "SPREAD_TOO_WIDE"
	ReasonPriceDeviationExceeded ReasonCode = "PRICE_DEVIATION_EXCEEDED"
	ReasonInsufficientLiquidity  ReasonCode = "INSUFFICIENT_LIQUIDITY"
	ReasonDCALevelLimit          ReasonCode = "DCA_LEVEL_LIMIT"
	ReasonGridLevelLimit         ReasonCode = "GRID_LEVEL_LIMIT"
	ReasonSymbolBotConflict      ReasonCode = "SYMBOL_BOT_CONFLICT"
)

// RiskValidationResult is the verdict for one intent. Reason is empty on pass.
type RiskValidationResult struct {
	Verdict      Verdict    `json:"result"`
	Reason       ReasonCode `json:"reason,omitempty"`
	Details      string     `json:"details,omitempty"`
	ChecksPassed []string   `json:"checks_passed"`
	ChecksFailed []string   `json:"checks_failed"`
	EvaluatedAt  time.Time  `json:"evaluated_at"`
}

// Allowed reports whether the intent may be sent to the exchange.
func (r RiskValidationResult) Allowed() bool {
	return r.Verdict == VerdictPass
}

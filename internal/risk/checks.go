package risk

import (
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// state is everything a validation call reads, loaded once up front.
type state struct {
	intent     OrderIntent
	global     models.GlobalRiskConfig
	bot        models.BotRiskConfig
	userKilled bool
	now        time.Time
}

type outcome struct {
	evaluated bool
	reason    ReasonCode
	details   string
}

func pass() outcome { return outcome{evaluated: true} }

func skip() outcome { return outcome{} }

func fail(reason ReasonCode, format string, args ...any) outcome {
	return outcome{evaluated: true, reason: reason, details: fmt.Sprintf(format, args...)}
}

type check struct {
	name       string
	skipOnExit bool
	buyOnly    bool
	run        func(s *state) outcome
}

// chain is evaluated in order and stops at the first failure.
var chain = []check{
	{name: "kill_switch", run: checkKillSwitch},
	{name: "cooldown", run: checkCooldown},
	{name: "symbol_allowed", run: checkAllowList},
	{name: "symbol_blocked", run: checkDenyList},
	{name: "timeframe", run: checkTimeframe},
	{name: "max_positions", skipOnExit: true, run: checkPositions},
	{name: "max_open_orders", skipOnExit: true, run: checkOpenOrders},
	{name: "daily_loss", run: checkDailyLoss},
	{name: "stop_loss", skipOnExit: true, run: checkStopLoss},
	{name: "position_size", skipOnExit: true, run: checkPositionSize},
	{name: "slippage", run: checkSlippage},
	{name: "spread", run: checkSpread},
	{name: "price_deviation", run: checkPriceDeviation},
	{name: "liquidity", run: checkLiquidity},
	{name: "dca_levels", skipOnExit: true, run: checkDCALevels},
	{name: "grid_levels", skipOnExit: true, run: checkGridLevels},
	{name: "symbol_exclusivity", buyOnly: true, run: checkSymbolExclusivity},
}

// evaluate runs checks against s, recording every evaluated check on res.
// It reports whether a check failed.
func evaluate(s *state, checks []check, res *RiskValidationResult) bool {
	for _, c := range checks {
		if c.skipOnExit && s.intent.Action == ActionExit {
			continue
		}
		if c.buyOnly && s.intent.Action != ActionBuy {
			continue
		}
		out := c.run(s)
		if !out.evaluated {
			continue
		}
		if out.reason != "" {
			res.ChecksFailed = append(res.ChecksFailed, c.name)
			res.Verdict = VerdictBlock
			res.Reason = out.reason
			res.Details = out.details
			return true
		}
		res.ChecksPassed = append(res.ChecksPassed, c.name)
	}
	return false
}

func intOverride(override *int, global int) int {
	if override != nil {
		return *override
	}
	return global
}

func floatOverride(override *float64, global float64) float64 {
	if override != nil {
		return *override
	}
	return global
}

func containsSymbol(list []string, v string) bool {
	for _, s := range list {
		if strings.EqualFold(strings.TrimSpace(s), v) {
			return true
		}
	}
	return false
}

func percentDiff(a, b float64) float64 {
	return math.Abs(a-b) / b * 100
}

func checkKillSwitch(s *state) outcome {
	switch {
	case s.global.KillSwitchActive:
		reason := s.global.KillSwitchReason
		if reason == "" {
			reason = "global kill switch active"
		}
		return fail(ReasonKillSwitchGlobal, "%s", reason)
	case s.userKilled:
		return fail(ReasonKillSwitchUser, "kill switch active for user %s", s.intent.UserID)
	case s.bot.KillSwitchActive:
		return fail(ReasonKillSwitchBot, "kill switch active for bot %s", s.intent.BotID)
	}
	return pass()
}

func checkCooldown(s *state) outcome {
	if s.bot.CooldownUntil != nil && s.now.Before(*s.bot.CooldownUntil) {
		return fail(ReasonCooldownActive, "bot cooling down until %s", s.bot.CooldownUntil.UTC().Format(time.RFC3339))
	}
	return pass()
}

func checkAllowList(s *state) outcome {
	if len(s.global.AllowedSymbols) == 0 {
		return skip()
	}
	if !containsSymbol(s.global.AllowedSymbols, s.intent.Symbol) {
		return fail(ReasonSymbolNotAllowed, "symbol %s is not in the allowed list", s.intent.Symbol)
	}
	return pass()
}

func checkDenyList(s *state) outcome {
	if containsSymbol(s.global.BlockedSymbols, s.intent.Symbol) {
		return fail(ReasonSymbolBlocked, "symbol %s is blocked", s.intent.Symbol)
	}
	return pass()
}

func checkTimeframe(s *state) outcome {
	if s.intent.Timeframe == "" || len(s.global.AllowedTimeframes) == 0 {
		return skip()
	}
	for _, tf := range s.global.AllowedTimeframes {
		if tf == s.intent.Timeframe {
			return pass()
		}
	}
	return fail(ReasonTimeframeNotAllowed, "timeframe %s is not allowed", s.intent.Timeframe)
}

func checkPositions(s *state) outcome {
	limit := intOverride(s.bot.MaxConcurrentPositions, s.global.MaxConcurrentPositions)
	if limit <= 0 {
		return skip()
	}
	if s.intent.OpenPositions >= limit {
		return fail(ReasonMaxPositionsExceeded, "%d open positions, limit %d", s.intent.OpenPositions, limit)
	}
	return pass()
}

func checkOpenOrders(s *state) outcome {
	limit := intOverride(s.bot.MaxOpenOrders, s.global.MaxOpenOrders)
	if limit <= 0 {
		return skip()
	}
	if s.intent.OpenOrders >= limit {
		return fail(ReasonMaxOpenOrdersExceeded, "%d open orders, limit %d", s.intent.OpenOrders, limit)
	}
	return pass()
}

func checkDailyLoss(s *state) outcome {
	limit := floatOverride(s.bot.MaxDailyLossUSD, s.global.MaxDailyLossUSD)
	if limit <= 0 {
		return skip()
	}
	if s.intent.DailyLossUSD >= limit {
		return fail(ReasonDailyLossLimitExceeded, "daily loss %.2f USD reached limit %.2f USD", s.intent.DailyLossUSD, limit)
	}
	return pass()
}

// checkStopLoss enforces the protective exits the global config requires. A
// bot level percentage stands in for a price on the intent.
func checkStopLoss(s *state) outcome {
	if !s.global.RequireStopLoss && !s.global.RequireTakeProfit {
		return skip()
	}
	if s.global.RequireStopLoss && s.intent.StopLossPrice <= 0 && !positivePtr(s.bot.StopLossPercent) {
		return fail(ReasonStopLossRequired, "stop loss is required")
	}
	if s.global.RequireTakeProfit && s.intent.TakeProfitPrice <= 0 && !positivePtr(s.bot.TakeProfitPercent) {
		return fail(ReasonTakeProfitRequired, "take profit is required")
	}
	return pass()
}

func positivePtr(v *float64) bool {
	return v != nil && *v > 0
}

func checkPositionSize(s *state) outcome {
	limit := floatOverride(s.bot.MaxPositionSizeUSD, s.global.MaxPositionSizeUSD)
	if limit <= 0 || s.intent.Price <= 0 {
		return skip()
	}
	if n := s.intent.Notional(); n > limit {
		return fail(ReasonPositionSizeExceeded, "position %.2f USD exceeds limit %.2f USD", n, limit)
	}
	return pass()
}

func checkSlippage(s *state) outcome {
	expected := s.intent.Bid
	if s.intent.Action == ActionBuy {
		expected = s.intent.Ask
	}
	if expected <= 0 || s.intent.Price <= 0 || s.global.MaxSlippagePercent <= 0 {
		return skip()
	}
	if slip := percentDiff(s.intent.Price, expected); slip > s.global.MaxSlippagePercent {
		return fail(ReasonSlippageExceeded, "slippage %.4f%% exceeds %.4f%%", slip, s.global.MaxSlippagePercent)
	}
	return pass()
}

func checkSpread(s *state) outcome {
	spread := s.intent.SpreadPercent
	if spread <= 0 && s.intent.Bid > 0 && s.intent.Ask > 0 {
		mid := (s.intent.Bid + s.intent.Ask) / 2
		spread = (s.intent.Ask - s.intent.Bid) / mid * 100
	}
	if spread <= 0 || s.global.MaxSpreadPercent <= 0 {
		return skip()
	}
	if spread > s.global.MaxSpreadPercent {
		return fail(ReasonSpreadTooWide, "spread %.4f%% exceeds %.4f%%", spread, s.global.MaxSpreadPercent)
	}
	return pass()
}

func checkPriceDeviation(s *state) outcome {
	if s.intent.LastClose <= 0 || s.intent.Price <= 0 || s.global.MaxPriceDeviationPercent <= 0 {
		return skip()
	}
	if dev := percentDiff(s.intent.Price, s.intent.LastClose); dev > s.global.MaxPriceDeviationPercent {
		return fail(ReasonPriceDeviationExceeded, "price deviates %.4f%% from last close, limit %.4f%%", dev, s.global.MaxPriceDeviationPercent)
	}
	return pass()
}

func checkLiquidity(s *state) outcome {
	if s.intent.Volume24h <= 0 {
		return skip()
	}
	if s.intent.Volume24h < s.global.MinVolume24h {
		return fail(ReasonInsufficientLiquidity, "24h volume %.2f below minimum %.2f", s.intent.Volume24h, s.global.MinVolume24h)
	}
	return pass()
}

func checkDCALevels(s *state) outcome {
	if !strings.EqualFold(s.intent.BotType, BotTypeDCA) {
		return skip()
	}
	limit := intOverride(s.bot.MaxDCALevels, s.global.MaxDCALevels)
	if limit <= 0 {
		return skip()
	}
	if s.intent.DCALevel >= limit {
		return fail(ReasonDCALevelLimit, "dca level %d reached limit %d", s.intent.DCALevel, limit)
	}
	return pass()
}

func checkGridLevels(s *state) outcome {
	if !strings.EqualFold(s.intent.BotType, BotTypeGrid) {
		return skip()
	}
	limit := intOverride(s.bot.MaxGridLevels, s.global.MaxGridLevels)
	if limit <= 0 {
		return skip()
	}
	if s.intent.GridLevels > limit {
		return fail(ReasonGridLevelLimit, "grid has %d levels, limit %d", s.intent.GridLevels, limit)
	}
	return pass()
}

func checkSymbolExclusivity(s *state) outcome {
	if !s.global.OneBotPerSymbol {
		return skip()
	}
	if s.intent.OtherBotsOnSymbol > 0 {
		return fail(ReasonSymbolBotConflict, "user already runs another bot on %s", s.intent.Symbol)
	}
	return pass()
}

package risk

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/metrics"
	"github.com/sheikh-saqib/custody-core/internal/models"
	"github.com/sheikh-saqib/custody-core/internal/models/events"
)

// Manager gates bot-generated orders. It never touches balances.
type Manager struct {
	configs    interfaces.RiskConfigStore
	violations interfaces.ViolationStore
	cache      *ConfigCache
	publisher  interfaces.EventPublisher
	logger     *zap.Logger
	now        func() time.Time
}

// Option configures a Manager.
type Option func(*Manager)

// WithPublisher announces blocked intents.
func WithPublisher(p interfaces.EventPublisher) Option {
	return func(m *Manager) { m.publisher = p }
}

// WithClock replaces time.Now for cooldowns and result timestamps.
func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager creates a manager reading global limits through cache.
func NewManager(configs interfaces.RiskConfigStore, violations interfaces.ViolationStore, cache *ConfigCache, logger *zap.Logger, opts ...Option) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := &Manager{
		configs:    configs,
		violations: violations,
		cache:      cache,
		logger:     logger.Named("risk"),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func validateIntent(i OrderIntent) error {
	switch {
	case !i.Action.Valid():
		return models.Invalid("action", fmt.Sprintf("unknown action %q", i.Action))
	case strings.TrimSpace(i.Symbol) == "":
		return models.Invalid("symbol", "must not be empty")
	case strings.TrimSpace(i.BotID) == "":
		return models.Invalid("bot_id", "must not be empty")
	case strings.TrimSpace(i.UserID) == "":
		return models.Invalid("user_id", "must not be empty")
	case i.Quantity < 0 || i.Price < 0:
		return models.Invalid("quantity", "quantity and price must not be negative")
	}
	return nil
}

func (m *Manager) loadState(ctx context.Context, intent OrderIntent) (*state, error) {
	global, err := m.cache.Get(ctx)
	if err != nil {
		return nil, err
	}
	s := &state{intent: intent, global: global, now: m.now().UTC()}

	if intent.UserID != "" {
		if s.userKilled, err = m.configs.UserKillSwitch(ctx, intent.UserID); err != nil {
			return nil, fmt.Errorf("load user kill switch: %w", err)
		}
	}
	if intent.BotID != "" {
		bot, err := m.configs.LoadBotConfig(ctx, intent.BotID)
		switch {
		case errors.Is(err, models.ErrNotFound):
		case err != nil:
			return nil, fmt.Errorf("load bot risk config: %w", err)
		default:
			s.bot = bot
			if s.intent.BotType == "" {
				s.intent.BotType = bot.BotType
			}
		}
	}
	return s, nil
}

// ValidateOrderIntent runs the ordered check chain and returns the first
// failure as the verdict. Kill switches are applied before the intent itself
// is validated, so a malformed intent is still blocked by them. An error is
// returned only when the intent is malformed or risk state cannot be read.
func (m *Manager) ValidateOrderIntent(ctx context.Context, intent OrderIntent) (RiskValidationResult, error) {
	intent.Symbol = strings.ToUpper(strings.TrimSpace(intent.Symbol))
	intent.Action = Action(strings.ToUpper(string(intent.Action)))

	s, err := m.loadState(ctx, intent)
	if err != nil {
		m.logger.Error("risk state unavailable", zap.String("bot_id", intent.BotID), zap.Error(err))
		return RiskValidationResult{}, err
	}

	res := RiskValidationResult{
		Verdict:      VerdictPass,
		ChecksPassed: []string{},
		ChecksFailed: []string{},
		EvaluatedAt:  s.now,
	}
	blocked := evaluate(s, chain[:1], &res)
	if !blocked {
		if err := validateIntent(s.intent); err != nil {
			return RiskValidationResult{}, err
		}
		blocked = evaluate(s, chain[1:], &res)
	}

	metrics.RiskVerdicts.WithLabelValues(string(res.Verdict), string(res.Reason)).Inc()
	if !blocked {
		m.logger.Info("order intent passed risk checks",
			zap.String("bot_id", intent.BotID),
			zap.String("symbol", intent.Symbol),
			zap.String("action", string(intent.Action)),
			zap.Int("checks", len(res.ChecksPassed)))
		return res, nil
	}

	m.logger.Warn("order intent blocked",
		zap.String("bot_id", intent.BotID),
		zap.String("user_id", intent.UserID),
		zap.String("symbol", intent.Symbol),
		zap.String("reason", string(res.Reason)),
		zap.String("details", res.Details))
	m.recordViolation(ctx, s.intent, res)
	return res, nil
}

// recordViolation persists and announces a block. Failures are logged; the
// block verdict stands either way.
func (m *Manager) recordViolation(ctx context.Context, intent OrderIntent, res RiskValidationResult) {
	v := models.RiskViolation{
		ID:           uuid.NewString(),
		BotID:        intent.BotID,
		UserID:       intent.UserID,
		Symbol:       intent.Symbol,
		Action:       string(intent.Action),
		Reason:       string(res.Reason),
		Details:      res.Details,
		ChecksPassed: res.ChecksPassed,
		Intent:       intent.fields(),
		CreatedAt:    res.EvaluatedAt,
	}
	if err := m.violations.SaveViolation(ctx, v); err != nil {
		m.logger.Error("failed to persist risk violation",
			zap.String("bot_id", intent.BotID),
			zap.String("reason", v.Reason),
			zap.Error(err))
	}
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, events.TopicRisk, intent.BotID, events.RiskBlocked{
		BotID:      v.BotID,
		UserID:     v.UserID,
		Symbol:     v.Symbol,
		Reason:     v.Reason,
		OccurredAt: v.CreatedAt,
	}); err != nil {
		m.logger.Warn("failed to publish risk violation", zap.String("bot_id", intent.BotID), zap.Error(err))
	}
}

// GlobalConfig returns the effective global limits.
func (m *Manager) GlobalConfig(ctx context.Context) (models.GlobalRiskConfig, error) {
	return m.cache.Get(ctx)
}

// UpdateGlobalConfig validates and stores cfg, then drops the cached copy.
func (m *Manager) UpdateGlobalConfig(ctx context.Context, cfg models.GlobalRiskConfig) error {
	if err := ValidateGlobalConfig(cfg); err != nil {
		return err
	}
	cfg.UpdatedAt = m.now().UTC()
	if err := m.configs.SaveGlobalConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save global risk config: %w", err)
	}
	m.cache.Invalidate()
	m.logger.Info("global risk config updated")
	return nil
}

// SetGlobalKillSwitch flips the global kill switch. It reads the store
// directly so a stale cached copy is never written back.
func (m *Manager) SetGlobalKillSwitch(ctx context.Context, active bool, reason string) error {
	cfg, err := m.configs.LoadGlobalConfig(ctx)
	switch {
	case errors.Is(err, models.ErrNotFound):
		cfg = m.cache.fallback
	case err != nil:
		return fmt.Errorf("load global risk config: %w", err)
	}
	cfg.KillSwitchActive = active
	cfg.KillSwitchReason = reason
	if !active {
		cfg.KillSwitchReason = ""
	}
	cfg.UpdatedAt = m.now().UTC()
	if err := m.configs.SaveGlobalConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save global risk config: %w", err)
	}
	m.cache.Invalidate()
	m.logger.Warn("global kill switch changed", zap.Bool("active", active), zap.String("reason", reason))
	return nil
}

// SetUserKillSwitch blocks or unblocks every bot of userID.
func (m *Manager) SetUserKillSwitch(ctx context.Context, userID string, active bool) error {
	if userID == "" {
		return models.Invalid("user_id", "must not be empty")
	}
	if err := m.configs.SetUserKillSwitch(ctx, userID, active); err != nil {
		return fmt.Errorf("save user kill switch: %w", err)
	}
	m.cache.Invalidate()
	m.logger.Warn("user kill switch changed", zap.String("user_id", userID), zap.Bool("active", active))
	return nil
}

// SetBotKillSwitch blocks or unblocks one bot.
func (m *Manager) SetBotKillSwitch(ctx context.Context, botID string, active bool) error {
	if botID == "" {
		return models.Invalid("bot_id", "must not be empty")
	}
	cfg, err := m.configs.LoadBotConfig(ctx, botID)
	switch {
	case errors.Is(err, models.ErrNotFound):
		cfg = models.BotRiskConfig{BotID: botID}
	case err != nil:
		return fmt.Errorf("load bot risk config: %w", err)
	}
	cfg.KillSwitchActive = active
	cfg.UpdatedAt = m.now().UTC()
	if err := m.configs.SaveBotConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save bot risk config: %w", err)
	}
	m.cache.Invalidate()
	m.logger.Warn("bot kill switch changed", zap.String("bot_id", botID), zap.Bool("active", active))
	return nil
}

// BotConfig returns the stored overrides of botID.
func (m *Manager) BotConfig(ctx context.Context, botID string) (models.BotRiskConfig, error) {
	return m.configs.LoadBotConfig(ctx, botID)
}

// UpdateBotConfig stores the overrides of cfg.BotID.
func (m *Manager) UpdateBotConfig(ctx context.Context, cfg models.BotRiskConfig) error {
	if cfg.BotID == "" {
		return models.Invalid("bot_id", "must not be empty")
	}
	cfg.UpdatedAt = m.now().UTC()
	if err := m.configs.SaveBotConfig(ctx, cfg); err != nil {
		return fmt.Errorf("save bot risk config: %w", err)
	}
	m.cache.Invalidate()
	return nil
}

// ListViolations returns recorded blocks, newest first.
func (m *Manager) ListViolations(ctx context.Context, botID string, limit int) ([]models.RiskViolation, error) {
	return m.violations.ListViolations(ctx, botID, limit)
}

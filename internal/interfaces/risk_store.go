package interfaces

import (
	"context"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// RiskConfigStore persists risk limits and kill switches.
type RiskConfigStore interface {
	// LoadGlobalConfig returns models.ErrNotFound when no config was saved yet.
	LoadGlobalConfig(ctx context.Context) (models.GlobalRiskConfig, error)
	SaveGlobalConfig(ctx context.Context, cfg models.GlobalRiskConfig) error
	LoadBotConfig(ctx context.Context, botID string) (models.BotRiskConfig, error)
	SaveBotConfig(ctx context.Context, cfg models.BotRiskConfig) error
	UserKillSwitch(ctx context.Context, userID string) (bool, error)
	SetUserKillSwitch(ctx context.Context, userID string, active bool) error
}

// ViolationStore keeps the trail of blocked intents.
type ViolationStore interface {
	SaveViolation(ctx context.Context, v models.RiskViolation) error
	ListViolations(ctx context.Context, botID string, limit int) ([]models.RiskViolation, error)
}

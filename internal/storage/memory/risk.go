package memory

import (
	"context"
	"fmt"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// LoadGlobalConfig returns models.ErrNotFound until a config has been saved.
func (m *MemoryStore) LoadGlobalConfig(ctx context.Context) (models.GlobalRiskConfig, error) {
	m.riskMu.RLock()
	defer m.riskMu.RUnlock()

	if m.globalRisk == nil {
		return models.GlobalRiskConfig{}, fmt.Errorf("global risk config: %w", models.ErrNotFound)
	}
	return *m.globalRisk, nil
}

func (m *MemoryStore) SaveGlobalConfig(ctx context.Context, cfg models.GlobalRiskConfig) error {
	m.riskMu.Lock()
	defer m.riskMu.Unlock()

	m.globalRisk = &cfg
	return nil
}

func (m *MemoryStore) LoadBotConfig(ctx context.Context, botID string) (models.BotRiskConfig, error) {
	m.riskMu.RLock()
	defer m.riskMu.RUnlock()

	cfg, ok := m.botRisk[botID]
	if !ok {
		return models.BotRiskConfig{}, fmt.Errorf("bot risk config %s: %w", botID, models.ErrNotFound)
	}
	return cfg, nil
}

func (m *MemoryStore) SaveBotConfig(ctx context.Context, cfg models.BotRiskConfig) error {
	m.riskMu.Lock()
	defer m.riskMu.Unlock()

	m.botRisk[cfg.BotID] = cfg
	return nil
}

func (m *MemoryStore) UserKillSwitch(ctx context.Context, userID string) (bool, error) {
	m.riskMu.RLock()
	defer m.riskMu.RUnlock()
	return m.userKill[userID], nil
}

func (m *MemoryStore) SetUserKillSwitch(ctx context.Context, userID string, active bool) error {
	m.riskMu.Lock()
	defer m.riskMu.Unlock()

	m.userKill[userID] = active
	return nil
}

func (m *MemoryStore) SaveViolation(ctx context.Context, v models.RiskViolation) error {
	m.riskMu.Lock()
	defer m.riskMu.Unlock()

	m.violations = append(m.violations, v)
	return nil
}

// ListViolations returns violations for botID (all bots if empty), newest first.
func (m *MemoryStore) ListViolations(ctx context.Context, botID string, limit int) ([]models.RiskViolation, error) {
	m.riskMu.RLock()
	defer m.riskMu.RUnlock()

	var result []models.RiskViolation
	for i := len(m.violations) - 1; i >= 0; i-- {
		if botID != "" && m.violations[i].BotID != botID {
			continue
		}
		result = append(result, m.violations[i])
		if limit > 0 && len(result) == limit {
			break
		}
	}
	return result, nil
}

package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"

	"github.com/sheikh-saqib/custody-core/internal/models"
)

// LoadGlobalConfig returns models.ErrNotFound until a config has been saved.
func (p *PostgresStore) LoadGlobalConfig(ctx context.Context) (models.GlobalRiskConfig, error) {
	const query = `SELECT config FROM risk_global_config WHERE id = 1`

	var raw []byte
	err := p.db.QueryRowContext(ctx, query).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.GlobalRiskConfig{}, fmt.Errorf("global risk config: %w", models.ErrNotFound)
	}
	if err != nil {
		return models.GlobalRiskConfig{}, models.StorageError("load global risk config", err)
	}
	var cfg models.GlobalRiskConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.GlobalRiskConfig{}, fmt.Errorf("decode global risk config: %w", err)
	}
	return cfg, nil
}

// SaveGlobalConfig upserts the single config row.
func (p *PostgresStore) SaveGlobalConfig(ctx context.Context, cfg models.GlobalRiskConfig) error {
	const query = `INSERT INTO risk_global_config (id, config, updated_at) VALUES (1, $1, $2)
	ON CONFLICT (id) DO UPDATE SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at`

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal global risk config: %w", err)
	}
	_, err = p.db.ExecContext(ctx, query, raw, cfg.UpdatedAt)
	return models.StorageError("save global risk config", err)
}

func (p *PostgresStore) LoadBotConfig(ctx context.Context, botID string) (models.BotRiskConfig, error) {
	const query = `SELECT config FROM risk_bot_config WHERE bot_id = $1`

	var raw []byte
	err := p.db.QueryRowContext(ctx, query, botID).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return models.BotRiskConfig{}, fmt.Errorf("bot risk config %s: %w", botID, models.ErrNotFound)
	}
	if err != nil {
		return models.BotRiskConfig{}, models.StorageError("load bot risk config", err)
	}
	var cfg models.BotRiskConfig
	if err := json.Unmarshal(raw, &cfg); err != nil {
		return models.BotRiskConfig{}, fmt.Errorf("decode bot risk config %s: %w", botID, err)
	}
	return cfg, nil
}

func (p *PostgresStore) SaveBotConfig(ctx context.Context, cfg models.BotRiskConfig) error {
	const query = `INSERT INTO risk_bot_config (bot_id, config, updated_at) VALUES ($1, $2, $3)
	ON CONFLICT (bot_id) DO UPDATE SET config = EXCLUDED.config, updated_at = EXCLUDED.updated_at`

	raw, err := json.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshal bot risk config: %w", err)
	}
	_, err = p.db.ExecContext(ctx, query, cfg.BotID, raw, cfg.UpdatedAt)
	return models.StorageError("save bot risk config", err)
}

// UserKillSwitch reports false for users that never had the switch set.
func (p *PostgresStore) UserKillSwitch(ctx context.Context, userID string) (bool, error) {
	const query = `SELECT active FROM risk_user_kill_switches WHERE user_id = $1`

	var active bool
	err := p.db.QueryRowContext(ctx, query, userID).Scan(&active)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, models.StorageError("load user kill switch", err)
	}
	return active, nil
}

func (p *PostgresStore) SetUserKillSwitch(ctx context.Context, userID string, active bool) error {
	const query = `INSERT INTO risk_user_kill_switches (user_id, active, updated_at) VALUES ($1, $2, $3)
	ON CONFLICT (user_id) DO UPDATE SET active = EXCLUDED.active, updated_at = EXCLUDED.updated_at`

	_, err := p.db.ExecContext(ctx, query, userID, active, p.now().UTC())
	return models.StorageError("save user kill switch", err)
}

func (p *PostgresStore) SaveViolation(ctx context.Context, v models.RiskViolation) error {
	const query = `INSERT INTO risk_violations
	(id, bot_id, user_id, symbol, action, reason, details, checks_passed, intent, created_at)
	VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	intent := []byte("{}")
	if len(v.Intent) > 0 {
		var err error
		if intent, err = json.Marshal(v.Intent); err != nil {
			return fmt.Errorf("marshal violation intent: %w", err)
		}
	}
	checks := v.ChecksPassed
	if checks == nil {
		checks = []string{}
	}
	_, err := p.db.ExecContext(ctx, query,
		v.ID, v.BotID, v.UserID, v.Symbol, v.Action, v.Reason, v.Details,
		pq.Array(checks), intent, v.CreatedAt)
	return models.StorageError("save risk violation", err)
}

// ListViolations returns violations for botID (all bots if empty), newest first.
func (p *PostgresStore) ListViolations(ctx context.Context, botID string, limit int) ([]models.RiskViolation, error) {
	const query = `SELECT id, bot_id, user_id, symbol, action, reason, details, checks_passed, intent, created_at
	FROM risk_violations
	WHERE ($1 = '' OR bot_id = $1)
	ORDER BY created_at DESC
	LIMIT $2`

	rows, err := p.db.QueryContext(ctx, query, botID, limitArg(limit))
	if err != nil {
		return nil, models.StorageError("list risk violations", err)
	}
	defer rows.Close()

	var violations []models.RiskViolation
	for rows.Next() {
		var (
			v      models.RiskViolation
			intent []byte
		)
		if err := rows.Scan(&v.ID, &v.BotID, &v.UserID, &v.Symbol, &v.Action, &v.Reason, &v.Details,
			pq.Array(&v.ChecksPassed), &intent, &v.CreatedAt); err != nil {
			return nil, models.StorageError("scan risk violation", err)
		}
		if len(intent) > 0 {
			if err := json.Unmarshal(intent, &v.Intent); err != nil {
				return nil, fmt.Errorf("decode violation intent %s: %w", v.ID, err)
			}
		}
		violations = append(violations, v)
	}
	if err := rows.Err(); err != nil {
		return nil, models.StorageError("list risk violations", err)
	}
	return violations, nil
}

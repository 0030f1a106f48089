package risk

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	interfaces "github.com/sheikh-saqib/custody-core/internal/interfaces"
	"github.com/sheikh-saqib/custody-core/internal/models"
)

const DefaultConfigTTL = 60 * time.Second

// ConfigCache holds the global risk config for up to ttl. Writers call
// Invalidate so the next read goes back to the store.
type ConfigCache struct {
	store    interfaces.RiskConfigStore
	ttl      time.Duration
	now      func() time.Time
	fallback models.GlobalRiskConfig

	mu       sync.Mutex
	cfg      models.GlobalRiskConfig
	loadedAt time.Time
	valid    bool
}

// NewConfigCache returns a cache that serves fallback while the store has no
// saved config.
func NewConfigCache(store interfaces.RiskConfigStore, ttl time.Duration, now func() time.Time, fallback models.GlobalRiskConfig) *ConfigCache {
	if ttl <= 0 {
		ttl = DefaultConfigTTL
	}
	if now == nil {
		now = time.Now
	}
	return &ConfigCache{store: store, ttl: ttl, now: now, fallback: fallback}
}

// Get returns the cached global config, reloading it once the TTL has passed.
func (c *ConfigCache) Get(ctx context.Context) (models.GlobalRiskConfig, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.valid && c.now().Sub(c.loadedAt) < c.ttl {
		return c.cfg, nil
	}

	cfg, err := c.store.LoadGlobalConfig(ctx)
	switch {
	case errors.Is(err, models.ErrNotFound):
		cfg = c.fallback
	case err != nil:
		return models.GlobalRiskConfig{}, fmt.Errorf("load global risk config: %w", err)
	}
	c.cfg, c.loadedAt, c.valid = cfg, c.now(), true
	return cfg, nil
}

// Invalidate forces the next Get to reload from the store.
func (c *ConfigCache) Invalidate() {
	c.mu.Lock()
	c.valid = false
	c.mu.Unlock()
}

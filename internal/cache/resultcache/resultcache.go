// Package resultcache memoizes full analyses keyed by set fingerprint.
package resultcache

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mohammed-shakir/rectrel/internal/cache"
	"github.com/mohammed-shakir/rectrel/internal/core/model"
	"github.com/mohammed-shakir/rectrel/internal/core/observability"
)

type Tier struct {
	Name  string
	Store cache.Store
}

// Admitter gates which computed results are written to the tiers.
type Admitter interface {
	Admit(key string) bool
}

type Config struct {
	TTL       time.Duration
	OpTimeout time.Duration
	// nil admits everything
	Admission Admitter
}

// Cache checks tiers in order; a hit in a later tier is copied into the
// earlier ones. Tier errors are logged and treated as misses.
type Cache struct {
	tiers  []Tier
	cfg    Config
	logger *slog.Logger
	group  singleflight.Group
}

func New(logger *slog.Logger, cfg Config, tiers ...Tier) *Cache {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.OpTimeout <= 0 {
		cfg.OpTimeout = 250 * time.Millisecond
	}
	return &Cache{tiers: tiers, cfg: cfg, logger: logger}
}

// Outcome describes where a result came from.
type Outcome string

const (
	Miss   Outcome = "miss"
	Shared Outcome = "shared"
)

// hit outcomes are the tier name
func hit(tier string) Outcome { return Outcome(tier) }

// GetOrCompute returns the cached analysis for key or runs compute. Concurrent
// callers with the same key share one compute call. Compute errors are not
// cached.
func (c *Cache) GetOrCompute(
	ctx context.Context,
	key string,
	compute func() (model.Analysis, error),
) (model.Analysis, Outcome, error) {
	admitted := c.cfg.Admission == nil || c.cfg.Admission.Admit(key)
	if a, tier, ok := c.lookup(ctx, key); ok {
		return a, hit(tier), nil
	}

	v, err, shared := c.group.Do(key, func() (any, error) {
		a, err := compute()
		if err != nil {
			return nil, err
		}
		observability.ObserveAdmission(admitted)
		if admitted {
			c.store(ctx, key, a, len(c.tiers))
		}
		return a, nil
	})
	if err != nil {
		return model.Analysis{}, Miss, err
	}
	out := Miss
	if shared {
		out = Shared
	}
	return v.(model.Analysis), out, nil
}

func (c *Cache) lookup(ctx context.Context, key string) (model.Analysis, string, bool) {
	for i, t := range c.tiers {
		opCtx, cancel := context.WithTimeout(ctx, c.cfg.OpTimeout)
		raw, ok, err := t.Store.Get(opCtx, key)
		cancel()
		if err != nil {
			c.logger.WarnContext(ctx, "cache get failed", "tier", t.Name, "err", err)
			observability.IncCacheMiss(t.Name)
			continue
		}
		if !ok {
			observability.IncCacheMiss(t.Name)
			continue
		}
		var a model.Analysis
		if err := json.Unmarshal(raw, &a); err != nil {
			c.logger.WarnContext(ctx, "cache entry undecodable", "tier", t.Name, "err", err)
			observability.IncCacheMiss(t.Name)
			continue
		}
		observability.IncCacheHit(t.Name)
		c.store(ctx, key, a, i)
		return a, t.Name, true
	}
	return model.Analysis{}, "", false
}

// store writes a into the first n tiers
func (c *Cache) store(ctx context.Context, key string, a model.Analysis, n int) {
	if n == 0 {
		return
	}
	raw, err := encode(a)
	if err != nil {
		c.logger.ErrorContext(ctx, "cache encode failed", "err", err)
		return
	}
	for _, t := range c.tiers[:n] {
		opCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.cfg.OpTimeout)
		err := t.Store.Set(opCtx, key, raw, c.cfg.TTL)
		cancel()
		if err != nil {
			c.logger.WarnContext(ctx, "cache set failed", "tier", t.Name, "err", err)
		}
	}
}

func encode(a model.Analysis) ([]byte, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal analysis: %w", err)
	}
	return b, nil
}

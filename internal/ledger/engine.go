// Package ledger answers read queries over a user's transaction log: filtered
// listings, the dashboard summary and the expense breakdown.
package ledger

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"tally/internal/cache"
	"tally/internal/core"
	applog "tally/internal/log"

	"golang.org/x/sync/singleflight"
)

// Store is the slice of the entity store the engine reads from.
type Store interface {
	ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error)
	Summary(ctx context.Context, userID string, recent int) (core.Summary, error)
	ExpenseBreakdown(ctx context.Context, userID string) ([]core.CategoryTotal, error)
}

type Options struct {
	// CacheSize bounds each view cache. Zero or less disables caching.
	CacheSize int
	CacheTTL  time.Duration
}

// Engine serves derived ledger views. Summaries and breakdowns are cached per
// user and keyed by a generation counter, so Invalidate makes every earlier
// entry unreachable at once.
type Engine struct {
	store      Store
	summaries  *cache.LRUCache[core.Summary]
	breakdowns *cache.LRUCache[[]core.CategoryTotal]
	group      singleflight.Group

	mu   sync.Mutex
	gens map[string]uint64
}

func NewEngine(store Store, opts Options) *Engine {
	e := &Engine{store: store, gens: make(map[string]uint64)}
	if opts.CacheSize > 0 {
		e.summaries = cache.NewLRUCache[core.Summary](opts.CacheSize, opts.CacheTTL)
		e.breakdowns = cache.NewLRUCache[[]core.CategoryTotal](opts.CacheSize, opts.CacheTTL)
	}
	return e
}

// Cleaners returns the engine's caches for registration with a cache.Manager.
func (e *Engine) Cleaners() []cache.Cleaner {
	if e.summaries == nil {
		return nil
	}
	return []cache.Cleaner{e.summaries, e.breakdowns}
}

// ListTransactions is never cached. An inverted from/to range is not an
// error; it simply matches nothing.
func (e *Engine) ListTransactions(ctx context.Context, userID string, f core.TransactionFilter) ([]core.Transaction, error) {
	if f.Kind != "" && !f.Kind.Valid() {
		return nil, core.InvalidField("kind", "must be income or expense")
	}
	txs, err := e.store.ListTransactions(ctx, userID, f.Normalized())
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	return txs, nil
}

// Summary returns totals, balance and the most recent transactions.
func (e *Engine) Summary(ctx context.Context, userID string) (core.Summary, error) {
	s, err := cached(ctx, e, e.summaries, "summary", userID, func(ctx context.Context) (core.Summary, error) {
		return e.store.Summary(ctx, userID, core.RecentLimit)
	})
	if err != nil {
		return core.Summary{}, fmt.Errorf("summary: %w", err)
	}
	s.Recent = append([]core.Transaction(nil), s.Recent...)
	if s.Recent == nil {
		s.Recent = []core.Transaction{}
	}
	return s, nil
}

// Breakdown returns categorized expense totals, largest first.
func (e *Engine) Breakdown(ctx context.Context, userID string) ([]core.CategoryTotal, error) {
	rows, err := cached(ctx, e, e.breakdowns, "breakdown", userID, func(ctx context.Context) ([]core.CategoryTotal, error) {
		return e.store.ExpenseBreakdown(ctx, userID)
	})
	if err != nil {
		return nil, fmt.Errorf("breakdown: %w", err)
	}
	return append(make([]core.CategoryTotal, 0, len(rows)), rows...), nil
}

// Invalidate drops the user's cached views. Computations already in flight
// finish but their results are not stored.
func (e *Engine) Invalidate(userID string) {
	e.mu.Lock()
	e.gens[userID]++
	e.mu.Unlock()

	if e.summaries != nil {
		prefix := userID + "|"
		e.summaries.DeletePrefix(prefix)
		e.breakdowns.DeletePrefix(prefix)
	}
}

func (e *Engine) generation(userID string) uint64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.gens[userID]
}

func cached[T any](ctx context.Context, e *Engine, c *cache.LRUCache[T], view, userID string, compute func(context.Context) (T, error)) (T, error) {
	gen := e.generation(userID)
	key := userID + "|" + strconv.FormatUint(gen, 10)

	if c != nil {
		if v, ok := c.Get(key); ok {
			slog.DebugContext(ctx, "Ledger view served from cache", "view", view, applog.FieldUserID, userID)
			return v, nil
		}
	}

	// Waiters share this computation, so it must outlive the caller that
	// started it.
	detached := context.WithoutCancel(ctx)
	v, err, shared := e.group.Do(view+"|"+key, func() (any, error) {
		v, err := compute(detached)
		if err != nil {
			return nil, err
		}
		if c != nil && e.generation(userID) == gen {
			c.Set(key, v)
		}
		return v, nil
	})
	if err != nil {
		var zero T
		return zero, err
	}
	if shared {
		slog.DebugContext(ctx, "Ledger view computation shared", "view", view, applog.FieldUserID, userID)
	}
	return v.(T), nil
}

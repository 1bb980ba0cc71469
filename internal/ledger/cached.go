package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/patrickmn/go-cache"
)

// Cached fronts a ledger with an in-process cache of known records.
// Only positive membership is cached: records are never removed, so a hit cannot go stale.
type Cached struct {
	inner Ledger
	cache *cache.Cache
}

// NewCached wraps inner. Cached records expire after ttl.
func NewCached(inner Ledger, ttl time.Duration) *Cached {
	return &Cached{
		inner: inner,
		cache: cache.New(ttl, 2*ttl),
	}
}

func (c *Cached) lookup(identity, periodKey string) (Record, bool) {
	v, ok := c.cache.Get(indexKey(periodKey, identity))
	if !ok {
		return Record{}, false
	}
	return v.(Record), true
}

func (c *Cached) remember(r Record) {
	c.cache.SetDefault(indexKey(r.PeriodKey, r.Identity), r)
}

func (c *Cached) HasRecord(ctx context.Context, identity, periodKey string) (bool, error) {
	if _, ok := c.lookup(identity, periodKey); ok {
		return true, nil
	}
	return c.inner.HasRecord(ctx, identity, periodKey)
}

func (c *Cached) Append(ctx context.Context, identity string, ts time.Time) (Record, error) {
	periodKey := c.inner.Period()(ts)
	if _, ok := c.lookup(identity, periodKey); ok {
		return Record{}, fmt.Errorf("%w: %s in %s", ErrAlreadyRecorded, identity, periodKey)
	}
	rec, err := c.inner.Append(ctx, identity, ts)
	if err != nil {
		return Record{}, err
	}
	c.remember(rec)
	return rec, nil
}

func (c *Cached) CheckAndAppend(ctx context.Context, identity string, ts time.Time) (Outcome, error) {
	if r, ok := c.lookup(identity, c.inner.Period()(ts)); ok {
		return Outcome{Record: r}, nil
	}
	out, err := c.inner.CheckAndAppend(ctx, identity, ts)
	if err != nil {
		return Outcome{}, err
	}
	c.remember(out.Record)
	return out, nil
}

func (c *Cached) Records(ctx context.Context, periodKey string) ([]Record, error) {
	return c.inner.Records(ctx, periodKey)
}

func (c *Cached) Period() PeriodFunc {
	return c.inner.Period()
}

// Close flushes the cache and closes the wrapped ledger.
func (c *Cached) Close() error {
	c.cache.Flush()
	return c.inner.Close()
}

package gallery

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/singleflight"
)

// refreshTimeout bounds a shared load. The load is detached from the caller that
// started it, so one caller giving up does not fail the others.
const refreshTimeout = 10 * time.Minute

// Refresher reloads a Store from a Loader. Concurrent refresh requests share one load.
type Refresher struct {
	store  *Store
	loader Loader
	logger *slog.Logger
	group  singleflight.Group

	mu        sync.Mutex
	scheduler *cron.Cron
	onRefresh func(size int)
}

// NewRefresher creates a refresher for store.
func NewRefresher(store *Store, loader Loader, logger *slog.Logger) *Refresher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Refresher{store: store, loader: loader, logger: logger}
}

// OnRefresh registers a callback invoked with the new gallery size after each successful refresh.
func (r *Refresher) OnRefresh(fn func(size int)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.onRefresh = fn
}

// Refresh loads the entries and swaps in a new snapshot. It returns the new gallery size.
// A failed load keeps the previous snapshot. Cancelling ctx stops the wait, not the shared load.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	ch := r.group.DoChan("refresh", func() (any, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), refreshTimeout)
		defer cancel()
		return r.load(loadCtx)
	})

	select {
	case res := <-ch:
		if res.Err != nil {
			r.logger.Error("gallery refresh failed", "error", res.Err)
			return r.store.Snapshot().Len(), res.Err
		}
		if res.Shared {
			r.logger.Debug("gallery refresh coalesced")
		}
		return res.Val.(int), nil
	case <-ctx.Done():
		return r.store.Snapshot().Len(), fmt.Errorf("waiting for gallery refresh: %w", ctx.Err())
	}
}

func (r *Refresher) load(ctx context.Context) (int, error) {
	start := time.Now()
	entries, err := r.loader.LoadEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("loading gallery entries: %w", err)
	}
	if err := r.store.Load(entries); err != nil {
		return 0, err
	}
	size := r.store.Snapshot().Len()
	r.logger.Info("gallery refreshed", "identities", size, "duration", time.Since(start))

	r.mu.Lock()
	cb := r.onRefresh
	r.mu.Unlock()
	if cb != nil {
		cb(size)
	}
	return size, nil
}

// Start schedules periodic refreshes using a cron spec (e.g. "*/15 * * * *" or "@hourly").
func (r *Refresher) Start(spec string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.scheduler != nil {
		return fmt.Errorf("gallery refresh already scheduled")
	}

	c := cron.New()
	if _, err := c.AddFunc(spec, func() {
		_, _ = r.Refresh(context.Background())
	}); err != nil {
		return fmt.Errorf("invalid gallery refresh schedule %q: %w", spec, err)
	}
	c.Start()
	r.scheduler = c
	r.logger.Info("gallery refresh scheduled", "spec", spec)
	return nil
}

// Stop stops the schedule and waits for a running scheduled refresh to finish.
func (r *Refresher) Stop() {
	r.mu.Lock()
	c := r.scheduler
	r.scheduler = nil
	r.mu.Unlock()

	if c != nil {
		<-c.Stop().Done()
	}
}

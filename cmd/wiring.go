package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kozaktomas/face-attendance/internal/config"
	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/database/mariadb"
	"github.com/kozaktomas/face-attendance/internal/database/postgres"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/events"
	"github.com/kozaktomas/face-attendance/internal/extractor"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/metrics"
	"github.com/kozaktomas/face-attendance/internal/recognition"
)

// app holds the wired components. Components are closed in reverse order of creation.
type app struct {
	cfg       *config.Config
	logger    *slog.Logger
	extractor *extractor.Client
	store     *gallery.Store
	refresher *gallery.Refresher
	ledger    ledger.Ledger
	metrics   *metrics.Metrics
	publisher *events.Publisher
	service   *recognition.Service

	pgPool  *postgres.Pool
	closers []func() error
}

type appOptions struct {
	events     bool // publish attendance events to MQTT when configured
	skipLedger bool // gallery-only commands
}

// newApp wires the gallery, ledger, metrics and recognition service from cfg.
// The gallery is loaded before newApp returns.
func newApp(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts appOptions) (_ *app, err error) {
	a := &app{cfg: cfg, logger: logger}
	defer func() {
		if err != nil {
			a.Close()
		}
	}()

	a.metrics, err = metrics.NewMetrics()
	if err != nil {
		return nil, err
	}

	a.extractor = extractor.NewClient(cfg.Embedding.URL, extractor.Options{MaxImageSize: cfg.Embedding.MaxImageSize})

	if err := a.initGallery(ctx); err != nil {
		return nil, err
	}
	if opts.skipLedger {
		return a, nil
	}
	if err := a.initLedger(ctx); err != nil {
		return nil, err
	}

	svcOpts := []recognition.Option{
		recognition.WithThreshold(cfg.Match.Threshold),
		recognition.WithLogger(logger),
		recognition.WithObserver(a.metrics.Recognition),
		recognition.WithExtractor(a.extractor),
	}

	if opts.events && cfg.MQTT.Broker != "" {
		client := events.NewMQTTClient(cfg.MQTT, a.metrics.Events, logger)
		a.publisher = events.NewPublisher(client, cfg.MQTT.Topic, a.metrics.Events, logger)
		a.publisher.Start(ctx)
		a.closers = append(a.closers, func() error {
			a.publisher.Close()
			return nil
		})
		svcOpts = append(svcOpts, recognition.WithNotifier(a.publisher))
	}

	a.service = recognition.NewService(a.store, a.ledger, svcOpts...)
	return a, nil
}

func (a *app) postgres(ctx context.Context) (*postgres.Pool, error) {
	if a.pgPool != nil {
		return a.pgPool, nil
	}
	pool, err := postgres.Open(ctx, &a.cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize PostgreSQL: %w", err)
	}
	a.pgPool = pool
	a.closers = append(a.closers, pool.Close)
	return pool, nil
}

func (a *app) galleryLoader(ctx context.Context) (gallery.Loader, error) {
	switch a.cfg.Gallery.Source {
	case "manifest":
		return &gallery.ManifestLoader{Path: a.cfg.Gallery.Manifest}, nil
	case "postgres":
		pool, err := a.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewIdentityRepository(pool), nil
	default:
		return &gallery.DirectoryLoader{
			Dir:         a.cfg.Gallery.Dir,
			Extractor:   a.extractor,
			Concurrency: constants.WorkerPoolSize,
			Logger:      a.logger,
		}, nil
	}
}

func (a *app) initGallery(ctx context.Context) error {
	metric, err := embedding.ParseMetric(a.cfg.Match.Metric)
	if err != nil {
		return err
	}
	a.store, err = gallery.NewStore(gallery.Options{
		Dim:        a.cfg.Match.EmbeddingDim,
		Metric:     metric,
		ANNMinSize: a.cfg.Gallery.ANNMinSize,
	})
	if err != nil {
		return err
	}

	loader, err := a.galleryLoader(ctx)
	if err != nil {
		return err
	}
	a.refresher = gallery.NewRefresher(a.store, loader, a.logger)
	a.refresher.OnRefresh(a.metrics.Recognition.SetGallerySize)

	if _, err := a.refresher.Refresh(ctx); err != nil {
		return fmt.Errorf("loading gallery from %s: %w", a.cfg.Gallery.Source, err)
	}
	return nil
}

// openLedger opens the configured ledger backend without the optional cache.
func (a *app) openLedger(ctx context.Context) (ledger.Ledger, error) {
	loc, err := a.cfg.Ledger.Location()
	if err != nil {
		return nil, err
	}
	period, err := ledger.ParsePeriod(a.cfg.Ledger.Period, loc)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(a.cfg.Ledger.Backend) {
	case "memory":
		return ledger.NewMemory(period), nil
	case "bolt":
		return ledger.OpenBolt(a.cfg.Ledger.Path, period)
	case "postgres":
		pool, err := a.postgres(ctx)
		if err != nil {
			return nil, err
		}
		return postgres.NewAttendanceRepository(pool, period), nil
	case "mariadb":
		pool, err := mariadb.NewPool(a.cfg.MariaDB.DSN)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to MariaDB: %w", err)
		}
		a.closers = append(a.closers, pool.Close)
		if err := pool.EnsureSchema(ctx); err != nil {
			return nil, err
		}
		return mariadb.NewAttendanceRepository(pool, period), nil
	case "file":
		return ledger.OpenFile(a.cfg.Ledger.Path, loc, period)
	default:
		return nil, fmt.Errorf("unknown ledger backend %q", a.cfg.Ledger.Backend)
	}
}

func (a *app) initLedger(ctx context.Context) error {
	l, err := a.openLedger(ctx)
	if err != nil {
		return fmt.Errorf("opening %s ledger: %w", a.cfg.Ledger.Backend, err)
	}
	if a.cfg.Ledger.CacheTTL > 0 {
		l = ledger.NewCached(l, a.cfg.Ledger.CacheTTL)
	}
	a.ledger = l
	a.closers = append(a.closers, l.Close)
	a.logger.Info("attendance ledger ready", "backend", a.cfg.Ledger.Backend, "period", a.cfg.Ledger.Period)
	return nil
}

// Close stops the refresh schedule and releases every component.
func (a *app) Close() error {
	if a.refresher != nil {
		a.refresher.Stop()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Package recognition turns a probe embedding into an attendance outcome.
package recognition

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/kozaktomas/face-attendance/internal/constants"
	"github.com/kozaktomas/face-attendance/internal/embedding"
	"github.com/kozaktomas/face-attendance/internal/gallery"
	"github.com/kozaktomas/face-attendance/internal/ledger"
	"github.com/kozaktomas/face-attendance/internal/matcher"
)

// ErrNoExtractor is returned by RecognizeImage when the service has no extractor configured.
var ErrNoExtractor = errors.New("no embedding extractor configured")

// Outcome is the terminal state of a successful recognition request.
type Outcome int

const (
	// OutcomeNoMatch means the gallery is empty or no identity is within the threshold.
	OutcomeNoMatch Outcome = iota
	// OutcomeAlreadyMarked means the identity already has a record in the current period.
	OutcomeAlreadyMarked
	// OutcomeRecorded means a new attendance record was appended.
	OutcomeRecorded
)

// Status returns the wire status of the outcome.
func (o Outcome) Status() string {
	switch o {
	case OutcomeRecorded:
		return "success"
	case OutcomeAlreadyMarked:
		return "already_marked"
	default:
		return "failed"
	}
}

func (o Outcome) String() string {
	switch o {
	case OutcomeRecorded:
		return "recorded"
	case OutcomeAlreadyMarked:
		return "already_marked"
	default:
		return "no_match"
	}
}

// Result describes a recognition outcome.
type Result struct {
	Outcome  Outcome
	Identity string        // Matched identity; empty for OutcomeNoMatch
	Distance float64       // Distance to the closest identity, +Inf for an empty gallery
	Record   ledger.Record // New or existing record; zero for OutcomeNoMatch
}

// Observer receives recognition measurements.
type Observer interface {
	ObserveRecognition(res Result, elapsed time.Duration)
	ObserveFailure(reason string)
}

// Notifier is told about newly recorded attendance. It must not block.
type Notifier interface {
	Notify(ctx context.Context, res Result)
}

// Extractor computes a probe embedding from an image.
type Extractor interface {
	ProbeFromImage(ctx context.Context, imageData []byte) (embedding.Vector, error)
}

// Service matches probes against the current gallery and records attendance.
type Service struct {
	store     *gallery.Store
	ledger    ledger.Ledger
	extractor Extractor
	threshold float64
	now       func() time.Time
	logger    *slog.Logger
	observer  Observer
	notifier  Notifier
}

// Option configures a Service.
type Option func(*Service)

// WithThreshold sets the inclusive acceptance distance.
func WithThreshold(t float64) Option {
	return func(s *Service) { s.threshold = t }
}

// WithClock sets the time source used for attendance timestamps.
func WithClock(now func() time.Time) Option {
	return func(s *Service) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithObserver sets the metrics observer.
func WithObserver(o Observer) Option {
	return func(s *Service) { s.observer = o }
}

// WithNotifier sets the attendance event notifier.
func WithNotifier(n Notifier) Option {
	return func(s *Service) { s.notifier = n }
}

// WithExtractor enables RecognizeImage.
func WithExtractor(e Extractor) Option {
	return func(s *Service) { s.extractor = e }
}

// NewService creates a recognition service over store and l.
func NewService(store *gallery.Store, l ledger.Ledger, opts ...Option) *Service {
	s := &Service{
		store:     store,
		ledger:    l,
		threshold: constants.DefaultMatchThreshold,
		now:       time.Now,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Threshold returns the acceptance distance.
func (s *Service) Threshold() float64 {
	return s.threshold
}

// Gallery returns the current gallery snapshot.
func (s *Service) Gallery() *gallery.Gallery {
	return s.store.Snapshot()
}

// Ledger returns the attendance ledger.
func (s *Service) Ledger() ledger.Ledger {
	return s.ledger
}

// Recognize matches probe and records attendance for an accepted identity.
//
// A malformed probe fails with an error wrapping embedding.ErrDimensionMismatch and never reaches
// the ledger. A ledger failure returns an error wrapping ledger.ErrUnavailable; the caller cannot
// know whether the record was written.
func (s *Service) Recognize(ctx context.Context, probe embedding.Vector) (Result, error) {
	start := time.Now()

	match, err := matcher.Match(probe, s.store.Snapshot(), s.threshold)
	if err != nil {
		s.fail("invalid_probe")
		return Result{}, err
	}

	if !match.Accepted {
		res := Result{Outcome: OutcomeNoMatch, Distance: match.Distance}
		s.logger.DebugContext(ctx, "no match", "closest", match.Identity, "distance", match.Distance)
		s.observe(res, start)
		return res, nil
	}

	out, err := s.ledger.CheckAndAppend(ctx, match.Identity, s.now())
	if err != nil {
		s.fail("ledger")
		s.logger.ErrorContext(ctx, "attendance ledger failed", "identity", match.Identity, "error", err)
		if !errors.Is(err, ledger.ErrUnavailable) {
			err = fmt.Errorf("%w: %w", ledger.ErrUnavailable, err)
		}
		return Result{}, err
	}

	res := Result{Identity: match.Identity, Distance: match.Distance, Record: out.Record}
	if out.Created {
		res.Outcome = OutcomeRecorded
		s.logger.InfoContext(ctx, "attendance recorded",
			"identity", res.Identity, "distance", res.Distance, "period", out.Record.PeriodKey)
		if s.notifier != nil {
			s.notifier.Notify(ctx, res)
		}
	} else {
		res.Outcome = OutcomeAlreadyMarked
		s.logger.DebugContext(ctx, "attendance already marked",
			"identity", res.Identity, "period", out.Record.PeriodKey)
	}
	s.observe(res, start)
	return res, nil
}

// RecognizeImage extracts the probe from an image and recognizes it.
// Extraction errors (such as extractor.ErrNoFaceDetected) are returned unchanged.
func (s *Service) RecognizeImage(ctx context.Context, imageData []byte) (Result, error) {
	if s.extractor == nil {
		return Result{}, ErrNoExtractor
	}
	probe, err := s.extractor.ProbeFromImage(ctx, imageData)
	if err != nil {
		s.fail("extraction")
		return Result{}, err
	}
	return s.Recognize(ctx, probe)
}

func (s *Service) observe(res Result, start time.Time) {
	if s.observer != nil {
		s.observer.ObserveRecognition(res, time.Since(start))
	}
}

func (s *Service) fail(reason string) {
	if s.observer != nil {
		s.observer.ObserveFailure(reason)
	}
}

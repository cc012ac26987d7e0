package analytics

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/nurturehq/nurture/pkg/observability"
)

var (
	// ErrStaleSnapshot is returned by Refresh when a later request for the
	// same window published first
	ErrStaleSnapshot = errors.New("stale snapshot discarded")
	// ErrSnapshotNotFound means no snapshot has been published for a window
	ErrSnapshotNotFound = errors.New("snapshot not found")
)

// SnapshotStore shares published snapshots between processes
type SnapshotStore interface {
	// Save stores snap unless a snapshot generated later is already stored.
	// It reports whether snap was written.
	Save(ctx context.Context, snap *Snapshot) (bool, error)
	// Load returns the stored snapshot or ErrSnapshotNotFound.
	Load(ctx context.Context, window Window) (*Snapshot, error)
}

// Recorder receives service measurements
type Recorder interface {
	ObserveFetch(collection string, elapsed time.Duration, err error)
	ObserveSnapshot(window, status string, elapsed time.Duration)
	ObserveCache(layer string, hit bool)
	SetUserGauges(totalUsers, activeUsers7d int, retentionRate, quizCompletionRate float64)
}

type nopRecorder struct{}

func (nopRecorder) ObserveFetch(string, time.Duration, error)     {}
func (nopRecorder) ObserveSnapshot(string, string, time.Duration) {}
func (nopRecorder) ObserveCache(string, bool)                     {}
func (nopRecorder) SetUserGauges(int, int, float64, float64)      {}

// ServiceConfig holds analytics service settings
type ServiceConfig struct {
	FetchTimeout time.Duration
	Location     *time.Location
	CacheSize    int
	CacheTTL     time.Duration
	TopN         int
	// MaxAge bounds how old a cached or stored snapshot may be before Get
	// recomputes it. A snapshot from an earlier calendar day is never reused.
	MaxAge time.Duration
}

// DefaultServiceConfig returns sensible defaults
func DefaultServiceConfig() ServiceConfig {
	return ServiceConfig{
		FetchTimeout: 30 * time.Second,
		Location:     time.UTC,
		CacheSize:    16,
		CacheTTL:     15 * time.Minute,
		TopN:         TopScriptsLimit,
		MaxAge:       time.Minute,
	}
}

// Service runs fetch and compute cycles and keeps the latest snapshot per window
type Service struct {
	source   Source
	store    SnapshotStore
	recorder Recorder
	logger   *observability.Logger
	palette  func() Palette
	clock    func() time.Time
	config   ServiceConfig

	seq       atomic.Uint64
	mu        sync.Mutex
	published map[Window]uint64
	latest    *Snapshot
	cache     *expirable.LRU[Window, *Snapshot]
}

// ServiceOption configures a Service
type ServiceOption func(*Service)

// WithStore shares published snapshots through store
func WithStore(store SnapshotStore) ServiceOption {
	return func(s *Service) { s.store = store }
}

// WithRecorder sets the metrics sink
func WithRecorder(r Recorder) ServiceOption {
	return func(s *Service) {
		if r != nil {
			s.recorder = r
		}
	}
}

// WithLogger sets the service logger
func WithLogger(l *observability.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithClock overrides time.Now
func WithClock(clock func() time.Time) ServiceOption {
	return func(s *Service) {
		if clock != nil {
			s.clock = clock
		}
	}
}

// WithPaletteFunc supplies the palette for each computation, allowing reloads
func WithPaletteFunc(fn func() Palette) ServiceOption {
	return func(s *Service) {
		if fn != nil {
			s.palette = fn
		}
	}
}

// NewService creates a new analytics service
func NewService(source Source, config ServiceConfig, opts ...ServiceOption) *Service {
	defaults := DefaultServiceConfig()
	if config.Location == nil {
		config.Location = defaults.Location
	}
	if config.CacheSize <= 0 {
		config.CacheSize = defaults.CacheSize
	}
	if config.CacheTTL <= 0 {
		config.CacheTTL = defaults.CacheTTL
	}
	if config.TopN <= 0 {
		config.TopN = defaults.TopN
	}
	if config.MaxAge <= 0 {
		config.MaxAge = defaults.MaxAge
	}

	s := &Service{
		source:    source,
		recorder:  nopRecorder{},
		logger:    observability.NewLogger(observability.InfoLevel, os.Stdout),
		palette:   DefaultPalette,
		clock:     time.Now,
		config:    config,
		published: make(map[Window]uint64),
		cache:     expirable.NewLRU[Window, *Snapshot](config.CacheSize, nil, config.CacheTTL),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Refresh runs a full fetch and compute cycle for window. Nothing is published
// if any collection fails to load; the previous snapshot stays current. If a
// later Refresh for the same window has already published, the result is
// discarded and ErrStaleSnapshot is returned.
func (s *Service) Refresh(ctx context.Context, window Window) (*Snapshot, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	seq := s.seq.Add(1)
	now := s.clock()
	logger := s.logger.WithFields(map[string]interface{}{
		"window":   string(window),
		"sequence": seq,
	})

	ctx, span := tracer.Start(ctx, "analytics.Refresh", trace.WithAttributes(
		attribute.String("analytics.window", string(window)),
		attribute.Int64("analytics.sequence", int64(seq)),
	))
	defer span.End()

	start := time.Now()
	raw, err := Fetch(ctx, s.source, s.config.FetchTimeout, s.observeFetch)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "fetch failed")
		s.recorder.ObserveSnapshot(string(window), "error", time.Since(start))
		logger.WithError(err).Error("Analytics refresh failed, keeping previous snapshot")
		return nil, err
	}

	snap, err := ComputeSnapshot(raw, window, now,
		WithLocation(s.config.Location),
		WithPalette(s.palette()),
		WithTopN(s.config.TopN),
	)
	if err != nil {
		return nil, err
	}
	snap.Sequence = seq

	if !s.publish(snap) {
		s.recorder.ObserveSnapshot(string(window), "stale", time.Since(start))
		logger.Warn("Discarding stale analytics snapshot")
		return nil, ErrStaleSnapshot
	}

	if s.store != nil {
		if _, err := s.store.Save(ctx, snap); err != nil {
			logger.WithError(err).Warn("Failed to share analytics snapshot")
		}
	}

	elapsed := time.Since(start)
	s.recorder.ObserveSnapshot(string(window), "success", elapsed)
	s.recorder.SetUserGauges(snap.TotalUsers, snap.ActiveUsers7d, snap.RetentionRate, snap.QuizCompletionRate)
	span.SetStatus(codes.Ok, "snapshot published")
	logger.WithField("duration_ms", elapsed.Milliseconds()).Info("Analytics snapshot published")

	return snap, nil
}

// publish records snap as current unless a later request for its window won
func (s *Service) publish(snap *Snapshot) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if snap.Sequence < s.published[snap.Window] {
		return false
	}
	s.published[snap.Window] = snap.Sequence
	s.cache.Add(snap.Window, snap)
	if s.latest == nil || snap.Sequence > s.latest.Sequence {
		s.latest = snap
	}
	return true
}

// Current returns the most recently published snapshot for window from the
// in-process cache or the shared store
func (s *Service) Current(ctx context.Context, window Window) (*Snapshot, error) {
	if err := window.Validate(); err != nil {
		return nil, err
	}

	if snap, ok := s.cache.Get(window); ok {
		s.recorder.ObserveCache("memory", true)
		return snap, nil
	}
	s.recorder.ObserveCache("memory", false)

	if s.store == nil {
		return nil, ErrSnapshotNotFound
	}
	snap, err := s.store.Load(ctx, window)
	if err != nil {
		if errors.Is(err, ErrSnapshotNotFound) {
			s.recorder.ObserveCache("store", false)
		}
		return nil, err
	}
	s.recorder.ObserveCache("store", true)
	s.cache.Add(window, snap)
	return snap, nil
}

// Get returns the current snapshot for window, computing a new one when
// refresh is set or when none is available that is fresh enough
func (s *Service) Get(ctx context.Context, window Window, refresh bool) (*Snapshot, error) {
	if !refresh {
		snap, err := s.Current(ctx, window)
		if err == nil {
			if s.fresh(snap, s.clock()) {
				return snap, nil
			}
			s.recorder.ObserveCache("expired", false)
			return s.Refresh(ctx, window)
		}
		if errors.Is(err, ErrInvalidWindow) {
			return nil, err
		}
		if !errors.Is(err, ErrSnapshotNotFound) {
			s.logger.WithError(err).Warn("Snapshot store unavailable, recomputing")
		}
	}
	return s.Refresh(ctx, window)
}

// fresh reports whether snap may still be served at now
func (s *Service) fresh(snap *Snapshot, now time.Time) bool {
	if now.Sub(snap.GeneratedAt) > s.config.MaxAge {
		return false
	}
	return StartOfDay(snap.GeneratedAt, s.config.Location).Equal(StartOfDay(now, s.config.Location))
}

// Location is the time zone used for day boundaries and export file names
func (s *Service) Location() *time.Location {
	return s.config.Location
}

// Latest returns the snapshot from the most recent successful request across
// all windows, or nil before the first one
func (s *Service) Latest() *Snapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.latest
}

// Export writes the snapshot for window as CSV and returns it
func (s *Service) Export(ctx context.Context, window Window, refresh bool, w io.Writer) (*Snapshot, error) {
	snap, err := s.Get(ctx, window, refresh)
	if err != nil {
		return nil, err
	}
	if err := WriteCSV(w, snap); err != nil {
		return nil, err
	}
	return snap, nil
}

func (s *Service) observeFetch(c Collection, elapsed time.Duration, err error) {
	s.recorder.ObserveFetch(string(c), elapsed, err)
}

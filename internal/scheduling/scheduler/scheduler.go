// Package scheduler runs the tick of every configured source: take the source
// lock, plan the next window, hand it to the connector and commit the new
// cursor state.
package scheduler

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sethvargo/go-retry"

	"github.com/vietddude/ingestor/internal/core/cursor"
	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/infra/connector"
	"github.com/vietddude/ingestor/internal/infra/storage"
	"github.com/vietddude/ingestor/internal/scheduling/metrics"
)

// ErrSourceNotFound is returned for a source that was never added.
var ErrSourceNotFound = errors.New("source not found")

// cronParser accepts standard five-field specs, an optional leading seconds
// field and descriptors such as "@every 5m".
var cronParser = cron.NewParser(
	cron.SecondOptional | cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow | cron.Descriptor,
)

// Config holds scheduler-wide settings.
type Config struct {
	LockTTL          time.Duration `yaml:"lock_ttl"`
	DispatchAttempts int           `yaml:"dispatch_attempts"`
	RetryBase        time.Duration `yaml:"retry_base"`
	RetryMax         time.Duration `yaml:"retry_max"`
	WindowRetention  time.Duration `yaml:"window_retention"`
}

// DefaultConfig returns the settings used when a field is left at zero.
func DefaultConfig() Config {
	return Config{
		LockTTL:          5 * time.Minute,
		DispatchAttempts: 5,
		RetryBase:        time.Second,
		RetryMax:         time.Minute,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.LockTTL <= 0 {
		c.LockTTL = d.LockTTL
	}
	if c.DispatchAttempts <= 0 {
		c.DispatchAttempts = d.DispatchAttempts
	}
	if c.RetryBase <= 0 {
		c.RetryBase = d.RetryBase
	}
	if c.RetryMax <= 0 {
		c.RetryMax = d.RetryMax
	}
	return c
}

// Source is one scheduled source.
type Source struct {
	ID        domain.SourceID
	Schedule  string
	Strategy  cursor.Strategy
	Lookback  time.Duration
	Connector connector.Connector
}

// RunResult describes the outcome of one tick.
type RunResult struct {
	SourceID   domain.SourceID
	Cursor     domain.Cursor
	Trigger    *domain.Trigger
	Attempts   int
	Skipped    bool
	SkipReason string
}

// Option configures a Scheduler.
type Option func(*Scheduler)

// WithClock replaces time.Now.
func WithClock(now func() time.Time) Option {
	return func(s *Scheduler) { s.now = now }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Scheduler) { s.log = logger }
}

// Scheduler owns the cron loop of all sources.
type Scheduler struct {
	cfg     Config
	manager cursor.Manager
	locker  Locker
	cron    *cron.Cron
	now     func() time.Time
	log     *slog.Logger

	mu       sync.RWMutex
	sources  map[domain.SourceID]*Source
	statuses map[domain.SourceID]*SourceStatus
}

// New creates a scheduler. Sources are added with AddSource.
func New(cfg Config, manager cursor.Manager, locker Locker, opts ...Option) *Scheduler {
	s := &Scheduler{
		cfg:      cfg.withDefaults(),
		manager:  manager,
		locker:   locker,
		now:      time.Now,
		log:      slog.Default(),
		sources:  make(map[domain.SourceID]*Source),
		statuses: make(map[domain.SourceID]*SourceStatus),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.log = s.log.With("component", "scheduler")

	s.cron = cron.New(
		cron.WithParser(cronParser),
		cron.WithChain(cron.Recover(cronLogger{s.log}), cron.SkipIfStillRunning(cronLogger{s.log})),
	)
	return s
}

// AddSource registers a source and its cron entry. The entry fires only
// after Start.
func (s *Scheduler) AddSource(src Source) error {
	if src.ID == "" {
		return fmt.Errorf("source id is required")
	}
	if src.Strategy == nil || src.Connector == nil {
		return fmt.Errorf("source %s: strategy and connector are required", src.ID)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sources[src.ID]; ok {
		return fmt.Errorf("source %s registered twice", src.ID)
	}

	if src.Schedule != "" {
		id := src.ID
		if _, err := s.cron.AddFunc(src.Schedule, func() { s.tick(id) }); err != nil {
			return fmt.Errorf("source %s: invalid schedule %q: %w", src.ID, src.Schedule, err)
		}
	}

	s.manager.Register(src.ID, src.Strategy)
	s.sources[src.ID] = &src
	s.statuses[src.ID] = &SourceStatus{SourceID: src.ID}
	return nil
}

// Sources returns the ids of all registered sources.
func (s *Scheduler) Sources() []domain.SourceID {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]domain.SourceID, 0, len(s.sources))
	for id := range s.sources {
		ids = append(ids, id)
	}
	return ids
}

// Start runs the cron loop until ctx is cancelled.
func (s *Scheduler) Start(ctx context.Context) {
	s.log.Info("Starting scheduler", "sources", len(s.sources))
	s.cron.Start()

	<-ctx.Done()

	s.log.Info("Stopping scheduler, waiting for running ticks")
	<-s.cron.Stop().Done()
}

func (s *Scheduler) tick(sourceID domain.SourceID) {
	ctx, cancel := context.WithTimeout(context.Background(), s.cfg.LockTTL)
	defer cancel()

	if _, err := s.RunOnce(ctx, sourceID); err != nil {
		s.log.Error("Tick failed", "source", sourceID, "error", err)
	}
}

// RunOnce performs one tick of a source. A tick that finds the lock held or
// plans an empty window is skipped without error. A failed dispatch persists
// nothing.
func (s *Scheduler) RunOnce(ctx context.Context, sourceID domain.SourceID) (*RunResult, error) {
	src, err := s.source(sourceID)
	if err != nil {
		return nil, err
	}
	result := &RunResult{SourceID: sourceID}

	lease, ok, err := s.locker.Acquire(ctx, sourceID, s.cfg.LockTTL)
	if err != nil {
		return nil, fmt.Errorf("acquire lock: %w", err)
	}
	if !ok {
		metrics.LockContention.WithLabelValues(string(sourceID)).Inc()
		s.log.Debug("Source locked elsewhere, skipping tick", "source", sourceID)
		result.Skipped, result.SkipReason = true, "locked"
		return result, nil
	}
	defer s.release(lease)

	now := s.now()
	plan, err := s.manager.Plan(ctx, sourceID, now)
	if err != nil {
		s.recordFailure(sourceID, now, err)
		return nil, fmt.Errorf("plan: %w", err)
	}
	result.Cursor = plan.Cursor
	result.Trigger = plan.Trigger

	if plan.Cursor.Empty() {
		metrics.WindowsSkipped.WithLabelValues(string(sourceID)).Inc()
		s.log.Debug("Empty window, skipping tick", "source", sourceID, "window", plan.Cursor.String())
		result.Skipped, result.SkipReason = true, "empty window"
		return result, nil
	}

	attempts, err := s.dispatch(ctx, src, plan.Cursor)
	result.Attempts = attempts
	if err != nil {
		errorType := "transient"
		if connector.IsPermanent(err) {
			errorType = "permanent"
		}
		metrics.DispatchErrorsTotal.WithLabelValues(string(sourceID), errorType).Inc()
		s.recordFailure(sourceID, now, err)
		return result, fmt.Errorf("dispatch %s: %w", plan.Cursor, err)
	}

	committedAt := s.now()
	record := domain.NewWindowRecord(uuid.NewString(), sourceID, plan.Cursor, attempts, committedAt)
	next, err := s.manager.Commit(ctx, plan, record, committedAt)
	if err != nil {
		if errors.Is(err, storage.ErrVersionConflict) {
			metrics.VersionConflicts.WithLabelValues(string(sourceID)).Inc()
		}
		s.recordFailure(sourceID, now, err)
		return result, fmt.Errorf("commit: %w", err)
	}
	result.Trigger = next

	s.observe(src, plan.Cursor, next, committedAt)
	s.recordSuccess(sourceID, plan.Cursor, committedAt)

	s.log.Info("Window dispatched",
		"source", sourceID,
		"window", plan.Cursor.String(),
		"partial", plan.Cursor.Partial,
		"attempts", attempts,
		"phase", next.Phase(),
	)
	return result, nil
}

// dispatch hands the window to the connector, retrying transient failures
// with exponential backoff.
func (s *Scheduler) dispatch(ctx context.Context, src *Source, c domain.Cursor) (int, error) {
	backoff := retry.NewExponential(s.cfg.RetryBase)
	backoff = retry.WithCappedDuration(s.cfg.RetryMax, backoff)
	backoff = retry.WithJitterPercent(10, backoff)
	backoff = retry.WithMaxRetries(uint64(s.cfg.DispatchAttempts-1), backoff)

	start := time.Now()
	attempts := 0
	err := retry.Do(ctx, backoff, func(ctx context.Context) error {
		attempts++
		err := src.Connector.Fetch(ctx, src.ID, c)
		switch {
		case err == nil:
			return nil
		case connector.IsPermanent(err):
			return err
		default:
			s.log.Warn("Dispatch attempt failed", "source", src.ID, "attempt", attempts, "error", err)
			return retry.RetryableError(err)
		}
	})

	metrics.DispatchLatency.
		WithLabelValues(string(src.ID), string(c.ScanType)).
		Observe(time.Since(start).Seconds())
	return attempts, err
}

func (s *Scheduler) observe(src *Source, c domain.Cursor, next *domain.Trigger, at time.Time) {
	id := string(src.ID)
	metrics.WindowsDispatched.WithLabelValues(id, string(c.ScanType)).Inc()
	if !c.Unbounded() {
		metrics.WindowSpan.WithLabelValues(id, string(c.ScanType)).Observe(c.Span().Seconds())
	}
	metrics.BackfillProgress.WithLabelValues(id).Set(next.BackfillProgress(src.Lookback))
	if next.ForwardCursor != nil {
		metrics.ForwardLag.WithLabelValues(id).Set(at.Sub(*next.ForwardCursor).Seconds())
	}
}

func (s *Scheduler) release(lease domain.Lease) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.locker.Release(ctx, lease); err != nil {
		s.log.Warn("Failed to release source lock", "source", lease.SourceID, "error", err)
	}
}

func (s *Scheduler) source(sourceID domain.SourceID) (*Source, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	src, ok := s.sources[sourceID]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSourceNotFound, sourceID)
	}
	return src, nil
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct {
	log *slog.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append(keysAndValues, "error", err)...)
}

package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vietddude/ingestor/internal/core/config"
	"github.com/vietddude/ingestor/internal/core/cursor"
	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/core/worker"
	"github.com/vietddude/ingestor/internal/infra/connector"
	redisclient "github.com/vietddude/ingestor/internal/infra/redis"
	"github.com/vietddude/ingestor/internal/scheduling/health"
	"github.com/vietddude/ingestor/internal/scheduling/scheduler"
)

// Service is the main application struct that manages the scheduler lifecycle.
type Service struct {
	cfg          config.AppConfig
	storage      *Storage
	manager      *cursor.DefaultManager
	scheduler    *scheduler.Scheduler
	pruner       *worker.Pruner
	healthMon    *health.Monitor
	healthServer *health.Server
	redisClient  *redisclient.Client
	log          *slog.Logger
	wg           sync.WaitGroup
}

// NewService creates a new Service with all dependencies initialized.
func NewService(ctx context.Context, cfg config.AppConfig) (*Service, error) {
	log := slog.Default().With("component", "service")

	// 1. Initialize Storage
	store, err := OpenStorage(ctx, cfg)
	if err != nil {
		return nil, err
	}

	// 2. Initialize Locker
	var locker scheduler.Locker
	var redisClient *redisclient.Client
	if cfg.Redis.URL != "" {
		redisClient, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			_ = store.Close()
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		locker = redisclient.NewLocker(redisClient, cfg.Redis.KeyPrefix)
		log.Info("Using Redis source locks")
	} else {
		locker = scheduler.NewLocalLocker()
		log.Info("Using in-process source locks")
	}

	// 3. Initialize Cursor Manager and Scheduler
	manager := cursor.NewManager(store.Triggers, store.Committer)
	manager.SetPhaseChangeCallback(func(sourceID domain.SourceID, t cursor.Transition) {
		log.Info("Source phase changed",
			"source", sourceID, "from", t.From, "to", t.To, "reason", t.Reason)
	})

	sched := scheduler.New(cfg.Scheduler, manager, locker)
	sources := make([]health.SourceInfo, 0, len(cfg.Sources))

	for _, srcCfg := range cfg.Sources {
		if srcCfg.Disabled {
			log.Info("Source disabled, skipping", "source", srcCfg.ID)
			continue
		}

		strategy, err := cursor.New(srcCfg.Strategy)
		if err != nil {
			return nil, closeOnError(store, redisClient, fmt.Errorf("source %s: %w", srcCfg.ID, err))
		}
		conn, err := connector.New(srcCfg.Connector, slog.Default())
		if err != nil {
			return nil, closeOnError(store, redisClient, fmt.Errorf("source %s: %w", srcCfg.ID, err))
		}

		if err := sched.AddSource(scheduler.Source{
			ID:        srcCfg.ID,
			Schedule:  srcCfg.Schedule,
			Strategy:  strategy,
			Lookback:  srcCfg.Strategy.OnboardingLookback,
			Connector: conn,
		}); err != nil {
			return nil, closeOnError(store, redisClient, err)
		}
		sources = append(sources, health.SourceInfo{ID: srcCfg.ID, Lookback: srcCfg.Strategy.OnboardingLookback})

		log.Info("Source scheduled",
			"source", srcCfg.ID,
			"schedule", srcCfg.Schedule,
			"strategy", strategy.Kind(),
			"connector", srcCfg.Connector.Kind,
		)
	}

	// 4. Initialize Health Monitor
	healthMon := health.NewMonitor(sources, manager, sched, cfg.Health)
	if store.DB != nil {
		healthMon.AddDependency("database", store.DB)
	}
	if redisClient != nil {
		healthMon.AddDependency("redis", redisClient)
	}

	return &Service{
		cfg:          cfg,
		storage:      store,
		manager:      manager,
		scheduler:    sched,
		pruner:       worker.NewPruner(cfg.Scheduler.WindowRetention, store.Windows),
		healthMon:    healthMon,
		healthServer: health.NewServer(healthMon, cfg.Server.Port),
		redisClient:  redisClient,
		log:          log,
	}, nil
}

// Manager returns the cursor manager.
func (s *Service) Manager() cursor.Manager { return s.manager }

// Scheduler returns the scheduler.
func (s *Service) Scheduler() *scheduler.Scheduler { return s.scheduler }

// Start starts the service and all its components. It returns immediately;
// components run until ctx is cancelled.
func (s *Service) Start(ctx context.Context) error {
	// Start Health Server
	go func() {
		if err := s.healthServer.Start(); err != nil {
			s.log.Error("Health server failed", "error", err)
		}
	}()

	// Start DB Metrics Collector
	if s.storage.DB != nil {
		s.storage.DB.StartMetricsCollector(ctx)
	}

	s.wg.Add(2)
	go func() {
		defer s.wg.Done()
		s.scheduler.Start(ctx)
	}()
	go func() {
		defer s.wg.Done()
		s.pruner.Start(ctx)
	}()

	s.log.Info("Service started", "port", s.cfg.Server.Port, "sources", len(s.scheduler.Sources()))
	return nil
}

// Stop waits for running ticks to finish and releases resources. The
// context passed to Start must be cancelled first.
func (s *Service) Stop(ctx context.Context) error {
	s.log.Info("Stopping service...")

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	var errs []error
	select {
	case <-done:
	case <-ctx.Done():
		errs = append(errs, fmt.Errorf("waiting for workers: %w", ctx.Err()))
	}

	if err := s.healthServer.Stop(ctx); err != nil {
		errs = append(errs, fmt.Errorf("stop health server: %w", err))
	}
	if err := closeOnError(s.storage, s.redisClient, nil); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// closeOnError releases connections and returns cause joined with any close
// errors.
func closeOnError(store *Storage, redisClient *redisclient.Client, cause error) error {
	errs := []error{cause}
	if redisClient != nil {
		errs = append(errs, redisClient.Close())
	}
	if store != nil {
		errs = append(errs, store.Close())
	}
	return errors.Join(errs...)
}

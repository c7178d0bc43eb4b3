package control

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/vietddude/ingestor/internal/core/config"
	"github.com/vietddude/ingestor/internal/infra/storage"
	"github.com/vietddude/ingestor/internal/infra/storage/memory"
	"github.com/vietddude/ingestor/internal/infra/storage/postgres"
)

// Storage bundles the repositories of one backend.
type Storage struct {
	Triggers  storage.TriggerRepository
	Windows   storage.WindowRepository
	Committer storage.Committer
	DB        *postgres.DB // nil in memory mode
}

// OpenStorage connects to PostgreSQL and applies migrations when a database
// url is configured, and falls back to in-memory storage otherwise.
func OpenStorage(ctx context.Context, cfg config.AppConfig) (*Storage, error) {
	if cfg.Database.URL == "" {
		store := memory.NewMemoryStorage()
		slog.Info("Using Memory storage")
		return &Storage{
			Triggers:  memory.NewTriggerRepo(store),
			Windows:   memory.NewWindowRepo(store),
			Committer: store,
		}, nil
	}

	db, err := postgres.NewDB(ctx, cfg.Database)
	if err != nil {
		return nil, fmt.Errorf("failed to init db: %w", err)
	}
	if err := db.Migrate(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate db: %w", err)
	}

	slog.Info("Using PostgreSQL storage", "driver", db.DriverName())
	return &Storage{
		Triggers:  postgres.NewTriggerRepo(db),
		Windows:   postgres.NewWindowRepo(db),
		Committer: db,
		DB:        db,
	}, nil
}

// Close releases the database connection, if any.
func (s *Storage) Close() error {
	if s.DB == nil {
		return nil
	}
	return s.DB.Close()
}

package worker

import (
	"context"
	"log/slog"
	"time"

	"github.com/vietddude/ingestor/internal/infra/storage"
	"github.com/vietddude/ingestor/internal/scheduling/metrics"
)

// Pruner deletes window log entries older than the retention period.
type Pruner struct {
	retention time.Duration
	repo      storage.WindowRepository
	now       func() time.Time
	log       *slog.Logger
}

// NewPruner creates a new Pruner worker.
func NewPruner(retention time.Duration, repo storage.WindowRepository) *Pruner {
	return &Pruner{
		retention: retention,
		repo:      repo,
		now:       time.Now,
		log:       slog.Default().With("component", "pruner"),
	}
}

// Start runs the pruner loop.
func (p *Pruner) Start(ctx context.Context) {
	if p.retention <= 0 {
		return // Retention disabled
	}

	// Check every 10% of the retention period, between 1 minute and 1 hour
	interval := min(p.retention/10, 1*time.Hour)
	interval = max(interval, 1*time.Minute)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Initial prune
	p.Prune(ctx)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.Prune(ctx)
		}
	}
}

// Prune removes expired windows once and returns how many were deleted.
func (p *Pruner) Prune(ctx context.Context) int64 {
	threshold := p.now().Add(-p.retention).Unix()

	deleted, err := p.repo.DeleteOlderThan(ctx, threshold)
	if err != nil {
		p.log.Error("Failed to prune windows", "error", err)
		return 0
	}
	if deleted > 0 {
		metrics.WindowsPruned.Add(float64(deleted))
		p.log.Info("Pruned windows", "count", deleted)
	}
	return deleted
}

package connector

import (
	"context"
	"log/slog"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// LogConnector only logs the windows it receives.
type LogConnector struct {
	logger *slog.Logger
}

func NewLogConnector(logger *slog.Logger) *LogConnector {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogConnector{logger: logger.With("component", "connector", "kind", KindLog)}
}

func (c *LogConnector) Fetch(ctx context.Context, sourceID domain.SourceID, cur domain.Cursor) error {
	c.logger.InfoContext(ctx, "fetch window",
		"source", sourceID,
		"window", cur.String(),
		"partial", cur.Partial,
		"tags", cur.Tags(),
	)
	return nil
}

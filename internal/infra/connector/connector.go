// Package connector hands planned windows to the systems that actually pull
// source data.
package connector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/vietddude/ingestor/internal/core/domain"
)

// Connector kinds accepted in configuration.
const (
	KindLog  = "log"
	KindHTTP = "http"
)

// ErrPermanent marks a dispatch failure that retrying cannot fix.
var ErrPermanent = errors.New("permanent dispatch failure")

// Connector fetches one window of a source.
type Connector interface {
	Fetch(ctx context.Context, sourceID domain.SourceID, c domain.Cursor) error
}

// Config selects and parameterises a connector.
type Config struct {
	Kind    string            `yaml:"kind"`
	URL     string            `yaml:"url"`
	Headers map[string]string `yaml:"headers"`
	Timeout time.Duration     `yaml:"timeout"`
}

// New builds the connector selected by cfg.Kind. An empty kind selects the
// log connector.
func New(cfg Config, logger *slog.Logger) (Connector, error) {
	switch cfg.Kind {
	case KindLog, "":
		return NewLogConnector(logger), nil
	case KindHTTP:
		return NewHTTPConnector(cfg)
	default:
		return nil, fmt.Errorf("unknown connector kind %q", cfg.Kind)
	}
}

// IsPermanent reports whether err should stop retries.
func IsPermanent(err error) bool {
	return errors.Is(err, ErrPermanent)
}

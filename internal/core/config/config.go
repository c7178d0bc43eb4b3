package config

import (
	"github.com/vietddude/ingestor/internal/core/cursor"
	"github.com/vietddude/ingestor/internal/core/domain"
	"github.com/vietddude/ingestor/internal/infra/connector"
	redisclient "github.com/vietddude/ingestor/internal/infra/redis"
	"github.com/vietddude/ingestor/internal/infra/storage/postgres"
	"github.com/vietddude/ingestor/internal/scheduling/health"
	"github.com/vietddude/ingestor/internal/scheduling/scheduler"
)

// AppConfig represents the top-level configuration.
type AppConfig struct {
	Server    ServerConfig       `yaml:"server"`
	Logging   LoggingConfig      `yaml:"logging"`
	Database  postgres.Config    `yaml:"database"`  // empty url = in-memory storage
	Redis     redisclient.Config `yaml:"redis"`     // empty url = in-process locks
	Scheduler scheduler.Config   `yaml:"scheduler"`
	Health    health.Thresholds  `yaml:"health"`
	Sources   []SourceConfig     `yaml:"sources"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Port int `yaml:"port"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json, text
}

// SourceConfig holds settings for one scheduled source.
type SourceConfig struct {
	ID        domain.SourceID  `yaml:"id"`
	Schedule  string           `yaml:"schedule"` // cron spec or descriptor, e.g. "@every 5m"
	Disabled  bool             `yaml:"disabled"`
	Strategy  cursor.Config    `yaml:"strategy"`
	Connector connector.Config `yaml:"connector"`
}

// Source returns the configuration of a source by id.
func (c *AppConfig) Source(id domain.SourceID) (SourceConfig, bool) {
	for _, src := range c.Sources {
		if src.ID == id {
			return src, true
		}
	}
	return SourceConfig{}, false
}

package config

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v2"

	"github.com/vietddude/ingestor/internal/core/cursor"
	"github.com/vietddude/ingestor/internal/infra/connector"
)

// ErrInvalidConfig is returned by Validate.
var ErrInvalidConfig = errors.New("invalid configuration")

// LoadDotEnv loads variables from .env files into the environment. Missing
// files are ignored; existing variables are never overwritten.
func LoadDotEnv(files ...string) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		_ = godotenv.Load(f)
	}
}

// Load reads configuration from a YAML file, applies defaults and validates it.
func Load(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration, applies defaults and validates it.
func Parse(data []byte) (*AppConfig, error) {
	var cfg AppConfig
	// Expand environment variables in the YAML content
	expandedData := os.ExpandEnv(string(data))
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *AppConfig) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}

	for i := range c.Sources {
		src := &c.Sources[i]
		if src.Schedule == "" {
			src.Schedule = "@every 1m"
		}
		if src.Strategy.Kind == "" {
			src.Strategy.Kind = cursor.KindSimple
		}
		if src.Strategy.FullScanFrequency == 0 {
			src.Strategy.FullScanFrequency = 7 * 24 * time.Hour
		}
		if src.Connector.Kind == "" {
			src.Connector.Kind = connector.KindLog
		}
	}
}

// Validate checks that every source can be built. Strategy parameters are
// checked by constructing the strategy.
func (c *AppConfig) Validate() error {
	if len(c.Sources) == 0 {
		return fmt.Errorf("%w: no sources configured", ErrInvalidConfig)
	}

	seen := make(map[string]bool, len(c.Sources))
	for i, src := range c.Sources {
		if src.ID == "" {
			return fmt.Errorf("%w: sources[%d]: id is required", ErrInvalidConfig, i)
		}
		if seen[string(src.ID)] {
			return fmt.Errorf("%w: source %s declared twice", ErrInvalidConfig, src.ID)
		}
		seen[string(src.ID)] = true

		if _, err := cursor.New(src.Strategy); err != nil {
			return fmt.Errorf("%w: source %s: %w", ErrInvalidConfig, src.ID, err)
		}

		switch src.Connector.Kind {
		case connector.KindLog:
		case connector.KindHTTP:
			if src.Connector.URL == "" {
				return fmt.Errorf("%w: source %s: http connector requires a url", ErrInvalidConfig, src.ID)
			}
		default:
			return fmt.Errorf("%w: source %s: unknown connector %q", ErrInvalidConfig, src.ID, src.Connector.Kind)
		}
	}
	return nil
}

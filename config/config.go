// Package config provides loading of ekg.yaml configuration files with
// environment overrides.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileName is the configuration file looked up when Load is given a
// directory.
const FileName = "ekg.yaml"

// ErrInvalid is wrapped by every Validate failure.
var ErrInvalid = errors.New("invalid configuration")

// Config represents an ekg.yaml configuration file.
type Config struct {
	// Schema is the path of the schema document
	Schema string `yaml:"schema,omitempty" env:"EKG_SCHEMA"`

	Neo4j    Neo4jConfig    `yaml:"neo4j"`
	Redis    RedisConfig    `yaml:"redis,omitempty"`
	Batch    BatchConfig    `yaml:"batch,omitempty"`
	Compiler CompilerConfig `yaml:"compiler,omitempty"`
	Log      LogConfig      `yaml:"log,omitempty"`
}

// Neo4jConfig holds the graph store connection settings.
type Neo4jConfig struct {
	URI      string `yaml:"uri" env:"EKG_NEO4J_URI"`
	User     string `yaml:"user,omitempty" env:"EKG_NEO4J_USER"`
	Password string `yaml:"password,omitempty" env:"EKG_NEO4J_PASSWORD"`
	Database string `yaml:"database,omitempty" env:"EKG_NEO4J_DATABASE"`
}

// RedisConfig enables the run journal. An empty URL disables it.
type RedisConfig struct {
	URL string `yaml:"url,omitempty" env:"EKG_REDIS_URL"`

	// Prefix is the key prefix.
	// Default: "ekg"
	Prefix string `yaml:"prefix,omitempty"`

	// LockTTL bounds how long a crashed run blocks the next one.
	// Format: Go duration string (e.g., "30m")
	// Default: 1h
	LockTTL string `yaml:"lock_ttl,omitempty"`
}

// BatchConfig tunes the batch execution engine.
type BatchConfig struct {
	// Size is the initial batch size.
	// Default: 10000
	Size int `yaml:"size,omitempty" env:"EKG_BATCH_SIZE"`

	// MinSize is the floor the batch size is never halved below.
	// Default: 10000
	MinSize int `yaml:"min_size,omitempty"`

	// MaxAttempts is the attempt ceiling per operation.
	// Default: 10
	MaxAttempts int `yaml:"max_attempts,omitempty"`
}

// CompilerConfig tunes query compilation.
type CompilerConfig struct {
	// MergeThreshold is the cardinality below which merge-first is chosen.
	// Default: 1000
	MergeThreshold int `yaml:"merge_threshold,omitempty"`

	// MergePolicy is an optional CEL expression overriding the default
	// merge-vs-create rule
	MergePolicy string `yaml:"merge_policy,omitempty"`

	// TimestampAttribute orders events for directly-follows inference.
	// Default: "timestamp"
	TimestampAttribute string `yaml:"timestamp_attribute,omitempty"`

	// TieBreak is an optional secondary ordering attribute
	TieBreak string `yaml:"tie_break,omitempty"`

	// Duration adds a duration to directly-follows edges
	Duration bool `yaml:"duration,omitempty"`
}

// LogConfig configures the CLI logger.
type LogConfig struct {
	// Level is one of debug, info, warn, error.
	// Default: info
	Level string `yaml:"level,omitempty" env:"EKG_LOG_LEVEL"`

	// Format is "text" or "json".
	// Default: text
	Format string `yaml:"format,omitempty" env:"EKG_LOG_FORMAT"`
}

// GetLockTTL parses the lock TTL and returns a duration.
// Returns the default value if not set or invalid.
func (r *RedisConfig) GetLockTTL() time.Duration {
	if r.LockTTL == "" {
		return time.Hour
	}
	d, err := time.ParseDuration(r.LockTTL)
	if err != nil || d <= 0 {
		return time.Hour
	}
	return d
}

// GetPrefix returns the key prefix or the default value.
func (r *RedisConfig) GetPrefix() string {
	if r.Prefix == "" {
		return "ekg"
	}
	return r.Prefix
}

// Enabled reports whether a journal is configured.
func (r *RedisConfig) Enabled() bool {
	return r.URL != ""
}

// GetSize returns the configured batch size or the default value.
func (b *BatchConfig) GetSize() int {
	if b.Size <= 0 {
		return 10000
	}
	return b.Size
}

// GetMinSize returns the configured floor or the default value.
func (b *BatchConfig) GetMinSize() int {
	if b.MinSize <= 0 {
		return 10000
	}
	return b.MinSize
}

// GetMaxAttempts returns the configured ceiling or the default value.
func (b *BatchConfig) GetMaxAttempts() int {
	if b.MaxAttempts <= 0 {
		return 10
	}
	return b.MaxAttempts
}

// GetMergeThreshold returns the configured threshold or the default value.
func (c *CompilerConfig) GetMergeThreshold() int {
	if c.MergeThreshold <= 0 {
		return 1000
	}
	return c.MergeThreshold
}

// GetTimestampAttribute returns the configured attribute or the default value.
func (c *CompilerConfig) GetTimestampAttribute() string {
	if c.TimestampAttribute == "" {
		return "timestamp"
	}
	return c.TimestampAttribute
}

// GetLevel returns the slog level. Unknown levels map to info.
func (l *LogConfig) GetLevel() slog.Level {
	switch strings.ToLower(l.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// JSON reports whether logs are written as JSON.
func (l *LogConfig) JSON() bool {
	return strings.EqualFold(l.Format, "json")
}

// Validate checks the settings a run cannot start without.
func (c *Config) Validate() error {
	if c.Neo4j.URI == "" {
		return fmt.Errorf("%w: neo4j.uri is required", ErrInvalid)
	}
	if c.Batch.Size < 0 || c.Batch.MinSize < 0 || c.Batch.MaxAttempts < 0 {
		return fmt.Errorf("%w: batch settings must be positive", ErrInvalid)
	}
	if c.Batch.MinSize > 0 && c.Batch.MinSize > c.Batch.GetSize() {
		return fmt.Errorf("%w: batch.min_size %d exceeds batch.size %d", ErrInvalid, c.Batch.MinSize, c.Batch.GetSize())
	}
	if c.Compiler.MergeThreshold < 0 {
		return fmt.Errorf("%w: compiler.merge_threshold must be positive", ErrInvalid)
	}
	return nil
}

// Load reads an ekg.yaml file from the given path and applies environment
// overrides. If the path is a directory, it looks for ekg.yaml in that
// directory. An empty path loads the environment only. A .env file in the
// working directory is loaded first when present.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var config Config
	if path != "" {
		configPath, err := resolve(path)
		if err != nil {
			return nil, err
		}
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &config); err != nil {
			return nil, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if err := env.Parse(&config); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}
	return &config, nil
}

func resolve(path string) (string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", fmt.Errorf("failed to stat path: %w", err)
	}
	if !info.IsDir() {
		return path, nil
	}
	configPath := filepath.Join(path, FileName)
	if _, err := os.Stat(configPath); err != nil {
		return "", fmt.Errorf("no %s found in %s", FileName, path)
	}
	return configPath, nil
}

// Package config loads and validates application configuration from YAML files
// with environment-variable overrides. It provides typed structs for the index
// build, statistics, cache, logging and metrics subsystems.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the top-level application configuration.
type Config struct {
	Index   IndexConfig   `yaml:"index"`
	Stats   StatsConfig   `yaml:"stats"`
	Cache   CacheConfig   `yaml:"cache"`
	Redis   RedisConfig   `yaml:"redis"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
}

// IndexConfig controls where the postings stores live and how the build
// pipeline is parallelised.
type IndexConfig struct {
	DataDir string `yaml:"dataDir"`
	// WriteUncompressed additionally emits the line-per-term store used to
	// compare against the vbyte store.
	WriteUncompressed bool `yaml:"writeUncompressed"`
	// DefaultMode is the retrieval path used when a query does not pick one:
	// "compressed" or "uncompressed".
	DefaultMode string `yaml:"defaultMode"`
	Workers     int    `yaml:"workers"`
}

// StatsConfig controls the term statistics engine.
type StatsConfig struct {
	Enabled bool `yaml:"enabled"`
	// Precompute builds the full pairwise Dice matrix at open time. Above
	// MaxPrecomputeTerms the naive per-query scan is used instead.
	Precompute         bool   `yaml:"precompute"`
	MaxPrecomputeTerms int    `yaml:"maxPrecomputeTerms"`
	Workers            int    `yaml:"workers"`
	Compression        string `yaml:"compression"`
}

// CacheConfig toggles the Redis-backed postings cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
}

// RedisConfig holds Redis connection and caching parameters.
type RedisConfig struct {
	Addr     string        `yaml:"addr"`
	Password string        `yaml:"password"`
	DB       int           `yaml:"db"`
	PoolSize int           `yaml:"poolSize"`
	CacheTTL time.Duration `yaml:"cacheTTL"`
}

// LoggingConfig controls structured logging level and output format.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// MetricsConfig controls Prometheus metric export. Metrics are written to a
// textfile for node_exporter style collection.
type MetricsConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Textfile string `yaml:"textfile"`
}

// Load reads a YAML config file (if provided) and applies environment-variable
// overrides. It returns a Config populated with defaults for any missing values.
func Load(path string) (*Config, error) {
	cfg := defaultConfig()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file %s: %w", path, err)
		}
	}
	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate rejects settings the build and query paths cannot honour.
func (c *Config) Validate() error {
	if c.Index.DataDir == "" {
		return fmt.Errorf("index.dataDir must not be empty")
	}
	switch c.Index.DefaultMode {
	case "compressed", "uncompressed":
	default:
		return fmt.Errorf("index.defaultMode %q: want compressed or uncompressed", c.Index.DefaultMode)
	}
	if c.Index.DefaultMode == "uncompressed" && !c.Index.WriteUncompressed {
		return fmt.Errorf("index.defaultMode uncompressed requires index.writeUncompressed")
	}
	switch c.Stats.Compression {
	case "none", "zstd", "lz4":
	default:
		return fmt.Errorf("stats.compression %q: want none, zstd or lz4", c.Stats.Compression)
	}
	if c.Index.Workers < 1 {
		c.Index.Workers = 1
	}
	if c.Stats.Workers < 1 {
		c.Stats.Workers = 1
	}
	return nil
}

func defaultConfig() *Config {
	return &Config{
		Index: IndexConfig{
			DataDir:           "data/index",
			WriteUncompressed: true,
			DefaultMode:       "compressed",
			Workers:           4,
		},
		Stats: StatsConfig{
			Enabled:            true,
			Precompute:         true,
			MaxPrecomputeTerms: 8192,
			Workers:            4,
			Compression:        "zstd",
		},
		Redis: RedisConfig{
			Addr:     "localhost:6379",
			DB:       0,
			PoolSize: 10,
			CacheTTL: 10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Metrics: MetricsConfig{
			Enabled: true,
		},
	}
}

// applyEnvOverrides reads IDX_* environment variables and overrides the
// corresponding config fields.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("IDX_DATA_DIR"); v != "" {
		cfg.Index.DataDir = v
	}
	if v := os.Getenv("IDX_DEFAULT_MODE"); v != "" {
		cfg.Index.DefaultMode = v
	}
	if v := os.Getenv("IDX_WRITE_UNCOMPRESSED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Index.WriteUncompressed = b
		}
	}
	if v := os.Getenv("IDX_WORKERS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.Index.Workers = n
		}
	}
	if v := os.Getenv("IDX_STATS_PRECOMPUTE"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Stats.Precompute = b
		}
	}
	if v := os.Getenv("IDX_STATS_COMPRESSION"); v != "" {
		cfg.Stats.Compression = v
	}
	if v := os.Getenv("IDX_CACHE_ENABLED"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Cache.Enabled = b
		}
	}
	if v := os.Getenv("IDX_REDIS_ADDR"); v != "" {
		cfg.Redis.Addr = v
	}
	if v := os.Getenv("IDX_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = v
	}
	if v := os.Getenv("IDX_LOGGING_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("IDX_LOGGING_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}
	if v := os.Getenv("IDX_METRICS_TEXTFILE"); v != "" {
		cfg.Metrics.Textfile = v
	}
}

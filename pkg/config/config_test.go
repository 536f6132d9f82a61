package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "data/index", cfg.Index.DataDir)
	assert.Equal(t, "compressed", cfg.Index.DefaultMode)
	assert.True(t, cfg.Index.WriteUncompressed)
	assert.True(t, cfg.Stats.Precompute)
	assert.Equal(t, "zstd", cfg.Stats.Compression)
	assert.False(t, cfg.Cache.Enabled)
	assert.Equal(t, 10*time.Minute, cfg.Redis.CacheTTL)
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "index.yaml")
	data := []byte(`
index:
  dataDir: /tmp/shakespeare
  defaultMode: uncompressed
  workers: 8
stats:
  precompute: false
  compression: lz4
redis:
  cacheTTL: 30s
logging:
  level: debug
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "/tmp/shakespeare", cfg.Index.DataDir)
	assert.Equal(t, "uncompressed", cfg.Index.DefaultMode)
	assert.Equal(t, 8, cfg.Index.Workers)
	// Unset keys keep their defaults.
	assert.True(t, cfg.Index.WriteUncompressed)
	assert.False(t, cfg.Stats.Precompute)
	assert.Equal(t, "lz4", cfg.Stats.Compression)
	assert.Equal(t, 30*time.Second, cfg.Redis.CacheTTL)
	assert.Equal(t, "debug", cfg.Logging.Level)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("IDX_DATA_DIR", "/var/lib/index")
	t.Setenv("IDX_WORKERS", "2")
	t.Setenv("IDX_CACHE_ENABLED", "true")
	t.Setenv("IDX_STATS_COMPRESSION", "none")

	cfg, err := Load("")
	require.NoError(t, err)

	assert.Equal(t, "/var/lib/index", cfg.Index.DataDir)
	assert.Equal(t, 2, cfg.Index.Workers)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, "none", cfg.Stats.Compression)
}

func TestValidate(t *testing.T) {
	cfg := defaultConfig()
	cfg.Index.DefaultMode = "gzip"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Index.DefaultMode = "uncompressed"
	cfg.Index.WriteUncompressed = false
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Stats.Compression = "snappy"
	assert.Error(t, cfg.Validate())

	cfg = defaultConfig()
	cfg.Index.Workers = 0
	require.NoError(t, cfg.Validate())
	assert.Equal(t, 1, cfg.Index.Workers)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

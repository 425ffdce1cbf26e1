package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	require.NoError(t, err)

	assert.Equal(t, DefaultConfig().Server.Addr, cfg.Server.Addr)
	assert.Equal(t, StorageMemory, cfg.Storage.Backend)
	assert.False(t, cfg.Mail.Enabled)
}

func TestLoad_ParsesYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "muse.yaml")
	data := `
server:
  addr: 0.0.0.0:9000
  base_url: https://muse.example
storage:
  backend: file
  dir: /var/lib/muse
mail:
  workers: 4
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0600))

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0:9000", cfg.Server.Addr)
	assert.Equal(t, "https://muse.example", cfg.Server.BaseURL)
	assert.Equal(t, StorageFile, cfg.Storage.Backend)
	assert.Equal(t, "/var/lib/muse", cfg.Storage.Dir)
	assert.Equal(t, 4, cfg.Mail.Workers)
	// Untouched fields keep defaults.
	assert.Equal(t, "10s", cfg.Server.ShutdownTimeout)
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("server: [unclosed"), 0600))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestEnvOverrides(t *testing.T) {
	t.Run("base URL prefers MUSE_BASE_URL over NEXTAUTH_URL", func(t *testing.T) {
		t.Setenv("NEXTAUTH_URL", "http://nextauth.local")
		t.Setenv("MUSE_BASE_URL", "http://muse.local")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, "http://muse.local", cfg.Server.BaseURL)
	})

	t.Run("SENDGRID_API_KEY enables mail", func(t *testing.T) {
		t.Setenv("SENDGRID_API_KEY", "sg-key")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.True(t, cfg.Mail.Enabled)
		assert.Equal(t, "sg-key", cfg.Mail.APIKey)
	})

	t.Run("google credentials", func(t *testing.T) {
		t.Setenv("GOOGLE_CLIENT_ID", "id")
		t.Setenv("GOOGLE_CLIENT_SECRET", "secret")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.True(t, cfg.GoogleEnabled())
	})

	t.Run("storage backend", func(t *testing.T) {
		t.Setenv("MUSE_STORAGE", "redis")
		t.Setenv("REDIS_ADDR", "localhost:6379")

		cfg := DefaultConfig()
		cfg.applyEnvOverrides()

		assert.Equal(t, StorageRedis, cfg.Storage.Backend)
		assert.Equal(t, "localhost:6379", cfg.Storage.RedisAddr)
		assert.NoError(t, cfg.Validate())
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.Storage.Backend = "s3" }, true},
		{"redis without addr", func(c *Config) { c.Storage.Backend = StorageRedis }, true},
		{"mail without key", func(c *Config) { c.Mail.Enabled = true }, true},
		{"bad duration", func(c *Config) { c.Server.ReadTimeout = "soon" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDuration(t *testing.T) {
	assert.Equal(t, 5*time.Second, Duration("5s", time.Minute))
	assert.Equal(t, time.Minute, Duration("", time.Minute))
	assert.Equal(t, time.Minute, Duration("nope", time.Minute))
	assert.Equal(t, time.Minute, Duration("-1s", time.Minute))
}

package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Sumatoshi-tech/codepulse/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_Defaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, "{}"))
	require.NoError(t, err)

	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, 8000, cfg.Server.Port)
	assert.Equal(t, "1MB", cfg.Server.MaxCodeSize)
	assert.Equal(t, 25*time.Second, cfg.Server.HeartbeatInterval)
	assert.Equal(t, 500, cfg.Cache.MaxEntries)
	assert.Equal(t, time.Hour, cfg.Cache.TTL)
	assert.Equal(t, 10*time.Minute, cfg.Cache.CleanupInterval)
	assert.Equal(t, "javascript", cfg.Analysis.DefaultLanguage)
	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)

	bytes, err := cfg.Server.MaxCodeBytes()
	require.NoError(t, err)
	assert.Equal(t, 1_000_000, bytes)
}

func TestLoadConfig_FileOverrides(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, `
server:
  port: 9100
  max_code_size: 256KB
  heartbeat_interval: 10s
cache:
  max_entries: 64
  ttl: 30m
analysis:
  default_language: python
logging:
  level: debug
  format: text
`))
	require.NoError(t, err)

	assert.Equal(t, 9100, cfg.Server.Port)
	assert.Equal(t, 10*time.Second, cfg.Server.HeartbeatInterval)
	assert.Equal(t, 64, cfg.Cache.MaxEntries)
	assert.Equal(t, 30*time.Minute, cfg.Cache.TTL)
	assert.Equal(t, "python", cfg.Analysis.DefaultLanguage)
	assert.Equal(t, "text", cfg.Logging.Format)

	bytes, err := cfg.Server.MaxCodeBytes()
	require.NoError(t, err)
	assert.Equal(t, 256_000, bytes)
}

func TestLoadConfig_MissingFileUsesDefaults(t *testing.T) {
	t.Parallel()

	// A nonexistent explicit path is an error; discovery mode tolerates
	// absence, but here we only verify the explicit-path contract.
	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"))
	require.Error(t, err)
}

func TestLoadConfig_Validation(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		yaml    string
		wantErr error
	}{
		{
			name:    "invalid port",
			yaml:    "server:\n  port: 0\n",
			wantErr: config.ErrInvalidPort,
		},
		{
			name:    "port out of range",
			yaml:    "server:\n  port: 70000\n",
			wantErr: config.ErrInvalidPort,
		},
		{
			name:    "bad size string",
			yaml:    "server:\n  max_code_size: lots\n",
			wantErr: config.ErrInvalidMaxCodeSize,
		},
		{
			name:    "zero cache entries",
			yaml:    "cache:\n  max_entries: 0\n",
			wantErr: config.ErrInvalidCacheEntries,
		},
		{
			name:    "negative ttl",
			yaml:    "cache:\n  ttl: -1s\n",
			wantErr: config.ErrInvalidCacheTTL,
		},
		{
			name:    "zero heartbeat",
			yaml:    "server:\n  heartbeat_interval: 0s\n",
			wantErr: config.ErrInvalidHeartbeat,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()

			_, err := config.LoadConfig(writeConfig(t, tc.yaml))
			require.ErrorIs(t, err, tc.wantErr)
		})
	}
}

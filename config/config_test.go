package config

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"dessertcast/form"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 8080, cfg.Http.Port)
	assert.Zero(t, cfg.Predictor.Timeout)
	assert.Equal(t, form.SeedInputs, cfg.Seed())
}

func TestLoadOverridesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
http:
  port: 9090
  timeout: 5s
log:
  level: debug
predictor:
  timeout: 2s
sessions:
  capacity: 16
database:
  path: ./data/history.db
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 9090, cfg.Http.Port)
	assert.Equal(t, 5*time.Second, cfg.Http.Timeout)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 2*time.Second, cfg.Predictor.Timeout)
	assert.Equal(t, 16, cfg.Sessions.Capacity)
	assert.Equal(t, "./data/history.db", cfg.Database.Path)
	assert.Equal(t, 1024, Default().Sessions.Capacity, "unset keys keep defaults")
}

func TestLoadRejectsShortSeed(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("form:\n  seed: [1, 2, 3]\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "form.seed")
}

func TestLoadRejectsUnknownKeys(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("predictor:\n  endpoint: http://example.com/predict\n"), 0o644))

	_, err := Load(path)
	require.Error(t, err, "the prediction endpoint is not configurable")
	assert.Contains(t, err.Error(), "endpoint")
}

func TestLoadRejectsBadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("http: [unterminated"), 0o644))

	_, err := Load(path)
	require.Error(t, err)
}

func TestWatchReloadsOnWrite(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: info\n"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	levels := make(chan string, 8)
	done := make(chan error, 1)
	go func() {
		done <- Watch(ctx, path, zap.NewNop(), func(cfg *Config) { levels <- cfg.Log.Level })
	}()

	// Keep rewriting until the watcher is up and reports the change.
	require.Eventually(t, func() bool {
		_ = os.WriteFile(path, []byte("log:\n  level: debug\n"), 0o644)
		select {
		case lvl := <-levels:
			return lvl == "debug"
		case <-time.After(50 * time.Millisecond):
			return false
		}
	}, 5*time.Second, 10*time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}

package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
}

func TestDefaultsAreValid(t *testing.T) {
	cfg := Defaults()
	cfg.finish()
	require.NoError(t, cfg.Validate())
	assert.True(t, cfg.IsDevelopment())
	assert.Equal(t, DriverMemory, cfg.Storage.Driver)
	assert.Equal(t, 16*time.Millisecond, cfg.Layout.TickInterval)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{
			name:    "unknown environment",
			mutate:  func(c *Config) { c.Environment = "qa" },
			wantErr: "unknown environment",
		},
		{
			name:    "memory store in production",
			mutate:  func(c *Config) { c.Environment = Production },
			wantErr: "not allowed in production",
		},
		{
			name:    "unknown driver",
			mutate:  func(c *Config) { c.Storage.Driver = "postgres" },
			wantErr: "unknown storage driver",
		},
		{
			name: "sqlite without a path",
			mutate: func(c *Config) {
				c.Storage.Driver = DriverSQLite
				c.Storage.SQLitePath = ""
			},
			wantErr: "SQLITE_PATH",
		},
		{
			name: "eventbridge without a bus",
			mutate: func(c *Config) {
				c.Events.EventBridgeEnabled = true
				c.Events.EventBusName = ""
			},
			wantErr: "EVENT_BUS_NAME",
		},
		{
			name:    "otlp without endpoint",
			mutate:  func(c *Config) { c.Observability.TracingBackend = "otlp" },
			wantErr: "OTLP endpoint",
		},
		{
			name:    "zero tick interval",
			mutate:  func(c *Config) { c.Layout.TickInterval = 0 },
			wantErr: "tick_interval",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Defaults()
			tt.mutate(cfg)
			cfg.finish()
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestProductionDisablesUserHeader(t *testing.T) {
	cfg := Defaults()
	cfg.Environment = Production
	cfg.Storage.Driver = DriverDynamoDB
	cfg.finish()
	require.NoError(t, cfg.Validate())
	assert.False(t, cfg.Server.AllowUserHeader)
}

func TestLoaderLayers(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", `
log_level: debug
storage:
  driver: sqlite
  sqlite_path: base.db
layout:
  collide_radius: 40
theme:
  primary: "#000000"
`)
	writeFile(t, dir, "development.yaml", `
storage:
  sqlite_path: dev.db
layout:
  tick_interval: 32ms
`)
	writeFile(t, dir, "local.yml", `
websocket:
  positions_per_sec: 5
`)
	t.Setenv("LOG_LEVEL", "warn")

	cfg, err := NewLoader(dir, Development).Load()
	require.NoError(t, err)

	assert.Equal(t, "warn", cfg.LogLevel)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, "dev.db", cfg.Storage.SQLitePath)
	assert.Equal(t, 40.0, cfg.Layout.CollideRadius)
	assert.Equal(t, 32*time.Millisecond, cfg.Layout.TickInterval)
	assert.Equal(t, 5.0, cfg.WebSocket.PositionsPerSec)
	assert.Equal(t, "#000000", cfg.Theme.Primary)
	// Untouched theme keys keep their defaults
	assert.Equal(t, Defaults().Theme.Border, cfg.Theme.Border)
	assert.Equal(t, []string{
		"defaults",
		filepath.Join(dir, "base.yaml"),
		filepath.Join(dir, "development.yaml"),
		filepath.Join(dir, "local.yml"),
		"environment",
	}, cfg.LoadedFrom)
}

func TestLoaderSkipsLocalOutsideDevelopment(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "staging.yaml", "storage:\n  driver: sqlite\n")
	writeFile(t, dir, "local.yaml", "storage:\n  driver: bogus\n")

	cfg, err := NewLoader(dir, Staging).Load()
	require.NoError(t, err)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, Staging, cfg.Environment)
}

func TestLoaderErrors(t *testing.T) {
	t.Run("unknown keys are rejected", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "base.yaml", "storage:\n  drvier: sqlite\n")
		_, err := NewLoader(dir, Development).Load()
		assert.Error(t, err)
	})

	t.Run("invalid result is rejected", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "base.yaml", "storage:\n  driver: postgres\n")
		_, err := NewLoader(dir, Development).Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "validation failed")
	})

	t.Run("empty file is fine", func(t *testing.T) {
		dir := t.TempDir()
		writeFile(t, dir, "base.yaml", "")
		_, err := NewLoader(dir, Development).Load()
		assert.NoError(t, err)
	})
}

func TestWatcherReloads(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "base.yaml", "layout:\n  collide_radius: 10\n")

	w, err := NewWatcher(NewLoader(dir, Development), zaptest.NewLogger(t))
	require.NoError(t, err)
	w.debounce = 20 * time.Millisecond

	got := make(chan *Config, 4)
	w.OnChange(func(c *Config) { got <- c })
	w.Start()
	defer w.Stop()

	assert.Equal(t, 10.0, w.Current().Layout.CollideRadius)

	t.Run("valid change is applied", func(t *testing.T) {
		writeFile(t, dir, "base.yaml", "layout:\n  collide_radius: 25\n")
		select {
		case c := <-got:
			assert.Equal(t, 25.0, c.Layout.CollideRadius)
		case <-time.After(5 * time.Second):
			t.Fatal("no reload")
		}
		assert.Equal(t, 25.0, w.Current().Layout.CollideRadius)
	})

	t.Run("invalid change keeps the current config", func(t *testing.T) {
		writeFile(t, dir, "base.yaml", "layout:\n  tick_interval: 0s\n")
		time.Sleep(200 * time.Millisecond)
		assert.Equal(t, 25.0, w.Current().Layout.CollideRadius)
	})
}

func TestDiff(t *testing.T) {
	a, b := Defaults(), Defaults()
	b.Layout.CollideRadius++
	b.LogLevel = "debug"
	b.LoadedFrom = []string{"x"}
	assert.ElementsMatch(t, []string{"layout", "log_level"}, diff(a, b))
}

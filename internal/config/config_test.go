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
	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "127.0.0.1", cfg.SimConnect.Host)
	assert.Equal(t, 4500, cfg.SimConnect.Port)
	assert.Equal(t, 10*time.Second, cfg.SimConnect.Timeout)
	assert.Equal(t, "flightsim-presence", cfg.SimConnect.AppName)
	assert.False(t, cfg.SimConnect.SlowMode)
	assert.Equal(t, 5*time.Second, cfg.SimConnect.RetryDelay)
	assert.Equal(t, 5*time.Second, cfg.SimConnect.FlightPlanRetryDelay)
	assert.Equal(t, "746726004998799460", cfg.Presence.DiscordAppID)
	assert.Empty(t, cfg.Presence.Callsign)
	assert.Equal(t, "icon_large", cfg.Presence.LargeImageKey)
	assert.Equal(t, time.Second, cfg.Presence.PublishInterval)
	assert.Equal(t, time.Minute, cfg.Presence.GeocodeInterval)
	assert.Equal(t, "http://iatageo.com", cfg.Services.GeocodeURL)
	assert.Equal(t, "https://www.airport-data.com", cfg.Services.AirportURL)
	assert.Equal(t, 5*time.Second, cfg.State.StaleThreshold)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Empty(t, cfg.Log.Path)
	assert.False(t, cfg.MCP.Enabled)
	assert.Equal(t, 10*time.Second, cfg.MCP.RequestTimeout)
}

func TestLoadFromEnv(t *testing.T) {
	tests := []struct {
		name   string
		envKey string
		envVal string
		check  func(t *testing.T, cfg Config)
	}{
		{
			name:   "SIMCONNECT_HOST",
			envKey: "SIMCONNECT_HOST",
			envVal: "10.0.0.5",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "10.0.0.5", cfg.SimConnect.Host)
			},
		},
		{
			name:   "SIMCONNECT_PORT valid",
			envKey: "SIMCONNECT_PORT",
			envVal: "9999",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 9999, cfg.SimConnect.Port)
			},
		},
		{
			name:   "SIMCONNECT_PORT invalid falls back to default",
			envKey: "SIMCONNECT_PORT",
			envVal: "notanumber",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 4500, cfg.SimConnect.Port)
			},
		},
		{
			name:   "SIMCONNECT_TIMEOUT invalid falls back to default",
			envKey: "SIMCONNECT_TIMEOUT",
			envVal: "badvalue",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 10*time.Second, cfg.SimConnect.Timeout)
			},
		},
		{
			name:   "SIMCONNECT_SLOW_MODE",
			envKey: "SIMCONNECT_SLOW_MODE",
			envVal: "true",
			check: func(t *testing.T, cfg Config) {
				assert.True(t, cfg.SimConnect.SlowMode)
			},
		},
		{
			name:   "SIMCONNECT_SLOW_MODE invalid falls back to default",
			envKey: "SIMCONNECT_SLOW_MODE",
			envVal: "sometimes",
			check: func(t *testing.T, cfg Config) {
				assert.False(t, cfg.SimConnect.SlowMode)
			},
		},
		{
			name:   "FLIGHT_PLAN_RETRY_DELAY",
			envKey: "FLIGHT_PLAN_RETRY_DELAY",
			envVal: "2s",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 2*time.Second, cfg.SimConnect.FlightPlanRetryDelay)
			},
		},
		{
			name:   "PRESENCE_CALLSIGN",
			envKey: "PRESENCE_CALLSIGN",
			envVal: "N-172SP",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "N-172SP", cfg.Presence.Callsign)
			},
		},
		{
			name:   "PRESENCE_GEOCODE_INTERVAL",
			envKey: "PRESENCE_GEOCODE_INTERVAL",
			envVal: "30s",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 30*time.Second, cfg.Presence.GeocodeInterval)
			},
		},
		{
			name:   "GEOCODE_URL",
			envKey: "GEOCODE_URL",
			envVal: "http://localhost:8080",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "http://localhost:8080", cfg.Services.GeocodeURL)
			},
		},
		{
			name:   "STALE_THRESHOLD valid",
			envKey: "STALE_THRESHOLD",
			envVal: "10s",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, 10*time.Second, cfg.State.StaleThreshold)
			},
		},
		{
			name:   "LOG_PATH",
			envKey: "LOG_PATH",
			envVal: "/tmp/presence.log",
			check: func(t *testing.T, cfg Config) {
				assert.Equal(t, "/tmp/presence.log", cfg.Log.Path)
			},
		},
		{
			name:   "MCP_ENABLED",
			envKey: "MCP_ENABLED",
			envVal: "1",
			check: func(t *testing.T, cfg Config) {
				assert.True(t, cfg.MCP.Enabled)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Setenv(tt.envKey, tt.envVal)
			cfg, err := Load()
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "presence.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
simconnect:
  host: 192.168.10.100
  slow_mode: true
presence:
  callsign: DLH-400
  publish_interval: 2s
log:
  level: debug
mcp:
  enabled: true
`)
	t.Setenv(FileEnv, path)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "192.168.10.100", cfg.SimConnect.Host)
	assert.True(t, cfg.SimConnect.SlowMode)
	assert.Equal(t, "DLH-400", cfg.Presence.Callsign)
	assert.Equal(t, 2*time.Second, cfg.Presence.PublishInterval)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.True(t, cfg.MCP.Enabled)

	// Unset keys keep their defaults.
	assert.Equal(t, 4500, cfg.SimConnect.Port)
	assert.Equal(t, time.Minute, cfg.Presence.GeocodeInterval)
}

func TestEnvOverridesFile(t *testing.T) {
	t.Setenv(FileEnv, writeConfig(t, "simconnect:\n  host: 192.168.10.100\n  port: 4501\n"))
	t.Setenv("SIMCONNECT_HOST", "10.0.0.7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "10.0.0.7", cfg.SimConnect.Host)
	assert.Equal(t, 4501, cfg.SimConnect.Port)
}

func TestLoadFileErrors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		t.Setenv(FileEnv, filepath.Join(t.TempDir(), "nope.yaml"))
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "read")
	})

	t.Run("malformed yaml", func(t *testing.T) {
		t.Setenv(FileEnv, writeConfig(t, "simconnect: [unterminated"))
		_, err := Load()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "parse")
	})

	t.Run("bad duration", func(t *testing.T) {
		t.Setenv(FileEnv, writeConfig(t, "presence:\n  publish_interval: soon\n"))
		_, err := Load()
		require.Error(t, err)
	})
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"defaults", func(*Config) {}, ""},
		{"empty host", func(c *Config) { c.SimConnect.Host = "" }, "host is required"},
		{"port zero", func(c *Config) { c.SimConnect.Port = 0 }, "port 0 out of range"},
		{"port too large", func(c *Config) { c.SimConnect.Port = 70000 }, "port 70000 out of range"},
		{"publish interval", func(c *Config) { c.Presence.PublishInterval = 0 }, "publish interval"},
		{"geocode interval", func(c *Config) { c.Presence.GeocodeInterval = -time.Second }, "geocode interval"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// FileEnv names the environment variable holding an optional YAML config path.
const FileEnv = "FLIGHTSIM_PRESENCE_CONFIG"

// Config holds all application configuration.
type Config struct {
	SimConnect SimConnectConfig `yaml:"simconnect"`
	Presence   PresenceConfig   `yaml:"presence"`
	Services   ServicesConfig   `yaml:"services"`
	State      StateConfig      `yaml:"state"`
	Log        LogConfig        `yaml:"log"`
	MCP        MCPConfig        `yaml:"mcp"`
}

// SimConnectConfig holds SimConnect TCP connection settings.
type SimConnectConfig struct {
	Host                 string        `yaml:"host"`
	Port                 int           `yaml:"port"`
	Timeout              time.Duration `yaml:"timeout"`
	AppName              string        `yaml:"app_name"`
	SlowMode             bool          `yaml:"slow_mode"`
	RetryDelay           time.Duration `yaml:"retry_delay"`
	FlightPlanRetryDelay time.Duration `yaml:"flight_plan_retry_delay"`
}

// PresenceConfig holds the Discord presence pipeline settings.
type PresenceConfig struct {
	DiscordAppID    string        `yaml:"discord_app_id"`
	Callsign        string        `yaml:"callsign"`
	LargeImageKey   string        `yaml:"large_image_key"`
	PreparingText   string        `yaml:"preparing_text"`
	PublishInterval time.Duration `yaml:"publish_interval"`
	GeocodeInterval time.Duration `yaml:"geocode_interval"`
}

// ServicesConfig holds the reverse geocoding and airport lookup endpoints.
type ServicesConfig struct {
	GeocodeURL string        `yaml:"geocode_url"`
	AirportURL string        `yaml:"airport_url"`
	Timeout    time.Duration `yaml:"timeout"`
}

// StateConfig holds telemetry cache settings.
type StateConfig struct {
	StaleThreshold time.Duration `yaml:"stale_threshold"`
}

// LogConfig holds logging settings. An empty Path disables the log file.
type LogConfig struct {
	Level     string `yaml:"level"`
	Path      string `yaml:"path"`
	MaxSizeMB int    `yaml:"max_size_mb"`
}

// MCPConfig holds the optional MCP tool server settings.
type MCPConfig struct {
	Enabled        bool          `yaml:"enabled"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		SimConnect: SimConnectConfig{
			Host:                 "127.0.0.1",
			Port:                 4500,
			Timeout:              10 * time.Second,
			AppName:              "flightsim-presence",
			RetryDelay:           5 * time.Second,
			FlightPlanRetryDelay: 5 * time.Second,
		},
		Presence: PresenceConfig{
			DiscordAppID:    "746726004998799460",
			LargeImageKey:   "icon_large",
			PreparingText:   "Waiting for position",
			PublishInterval: time.Second,
			GeocodeInterval: time.Minute,
		},
		Services: ServicesConfig{
			GeocodeURL: "http://iatageo.com",
			AirportURL: "https://www.airport-data.com",
			Timeout:    10 * time.Second,
		},
		State: StateConfig{
			StaleThreshold: 5 * time.Second,
		},
		Log: LogConfig{
			Level:     "info",
			MaxSizeMB: 32,
		},
		MCP: MCPConfig{
			RequestTimeout: 10 * time.Second,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// FLIGHTSIM_PRESENCE_CONFIG, and environment variables, in that order of
// precedence from lowest to highest. A .env file in the working directory is
// read first; variables already set in the environment win over it.
func Load() (Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("config: load .env: %w", err)
	}

	cfg := Default()
	if path := os.Getenv(FileEnv); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return Config{}, err
		}
	}
	applyEnv(&cfg)

	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("config: parse %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	sc := &cfg.SimConnect
	sc.Host = getEnvString("SIMCONNECT_HOST", sc.Host)
	sc.Port = getEnvInt("SIMCONNECT_PORT", sc.Port)
	sc.Timeout = getEnvDuration("SIMCONNECT_TIMEOUT", sc.Timeout)
	sc.AppName = getEnvString("SIMCONNECT_APP_NAME", sc.AppName)
	sc.SlowMode = getEnvBool("SIMCONNECT_SLOW_MODE", sc.SlowMode)
	sc.RetryDelay = getEnvDuration("SIMCONNECT_RETRY_DELAY", sc.RetryDelay)
	sc.FlightPlanRetryDelay = getEnvDuration("FLIGHT_PLAN_RETRY_DELAY", sc.FlightPlanRetryDelay)

	p := &cfg.Presence
	p.DiscordAppID = getEnvString("DISCORD_APP_ID", p.DiscordAppID)
	p.Callsign = getEnvString("PRESENCE_CALLSIGN", p.Callsign)
	p.LargeImageKey = getEnvString("PRESENCE_LARGE_IMAGE_KEY", p.LargeImageKey)
	p.PreparingText = getEnvString("PRESENCE_PREPARING_TEXT", p.PreparingText)
	p.PublishInterval = getEnvDuration("PRESENCE_PUBLISH_INTERVAL", p.PublishInterval)
	p.GeocodeInterval = getEnvDuration("PRESENCE_GEOCODE_INTERVAL", p.GeocodeInterval)

	s := &cfg.Services
	s.GeocodeURL = getEnvString("GEOCODE_URL", s.GeocodeURL)
	s.AirportURL = getEnvString("AIRPORT_URL", s.AirportURL)
	s.Timeout = getEnvDuration("SERVICES_TIMEOUT", s.Timeout)

	cfg.State.StaleThreshold = getEnvDuration("STALE_THRESHOLD", cfg.State.StaleThreshold)

	cfg.Log.Level = getEnvString("LOG_LEVEL", cfg.Log.Level)
	cfg.Log.Path = getEnvString("LOG_PATH", cfg.Log.Path)
	cfg.Log.MaxSizeMB = getEnvInt("LOG_MAX_SIZE_MB", cfg.Log.MaxSizeMB)

	cfg.MCP.Enabled = getEnvBool("MCP_ENABLED", cfg.MCP.Enabled)
	cfg.MCP.RequestTimeout = getEnvDuration("MCP_REQUEST_TIMEOUT", cfg.MCP.RequestTimeout)
}

// Validate reports settings the application cannot run with.
func (c Config) Validate() error {
	var errs []error
	if c.SimConnect.Host == "" {
		errs = append(errs, errors.New("simconnect host is required"))
	}
	if c.SimConnect.Port <= 0 || c.SimConnect.Port > 65535 {
		errs = append(errs, fmt.Errorf("simconnect port %d out of range", c.SimConnect.Port))
	}
	if c.Presence.PublishInterval <= 0 {
		errs = append(errs, errors.New("presence publish interval must be positive"))
	}
	if c.Presence.GeocodeInterval <= 0 {
		errs = append(errs, errors.New("presence geocode interval must be positive"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("config: %w", errors.Join(errs...))
	}
	return nil
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return n
}

func getEnvBool(key string, defaultVal bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return defaultVal
	}
	return b
}

func getEnvDuration(key string, defaultVal time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return defaultVal
	}
	return d
}

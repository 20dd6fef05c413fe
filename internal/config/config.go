// YAML config loader with CUE validation integration
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Area is the bounding box positions are drawn from.
type Area struct {
	MinLat  float64 `yaml:"min_lat"`
	MinLon  float64 `yaml:"min_lon"`
	SpanDeg float64 `yaml:"span_deg"`
}

// Intervals holds the delay between two runs of each timer routine.
type Intervals struct {
	UnitDrift       time.Duration `yaml:"unit_drift"`
	SpectrumRefresh time.Duration `yaml:"spectrum_refresh"`
	IncidentSpawn   time.Duration `yaml:"incident_spawn"`
}

// Server configures the HTTP API.
type Server struct {
	Addr               string        `yaml:"addr"`
	CORSOrigins        []string      `yaml:"cors_origins"`
	RateLimitPerMinute int           `yaml:"rate_limit_per_minute"` // 0 disables limiting
	ShutdownTimeout    time.Duration `yaml:"shutdown_timeout"`
	BcryptCost         int           `yaml:"bcrypt_cost"`
}

// User is a basic auth account for the /api routes.
type User struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Role     string `yaml:"role"`
}

// Greptime configures the GreptimeDB feed writer. An empty endpoint
// disables it.
type Greptime struct {
	Endpoint string `yaml:"endpoint"`
	Port     int    `yaml:"port"`
	Database string `yaml:"database"`
}

// Log configures the process logger.
type Log struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// SimulationConfig is the root configuration of the COP simulator.
type SimulationConfig struct {
	Area       Area      `yaml:"area"`
	DriftScale float64   `yaml:"drift_scale"`
	Intervals  Intervals `yaml:"intervals"`
	Server     Server    `yaml:"server"`
	Users      []User    `yaml:"users"`
	Greptime   Greptime  `yaml:"greptime"`
	Log        Log       `yaml:"log"`
}

// Default returns the built-in configuration. Loaded files are decoded on
// top of it, so a file only needs to name the keys it changes.
func Default() *SimulationConfig {
	return &SimulationConfig{
		Area:       Area{MinLat: 38.9, MinLon: -77.0, SpanDeg: 0.2},
		DriftScale: 0.01,
		Intervals: Intervals{
			UnitDrift:       7 * time.Second,
			SpectrumRefresh: 8 * time.Second,
			IncidentSpawn:   30 * time.Second,
		},
		Server: Server{
			Addr:               ":8080",
			CORSOrigins:        []string{"*"},
			RateLimitPerMinute: 600,
			ShutdownTimeout:    10 * time.Second,
			BcryptCost:         10,
		},
		Users: []User{
			{Username: "hq", Password: "hqpass", Role: "HQ"},
			{Username: "field", Password: "fieldpass", Role: "FIELD"},
		},
		Greptime: Greptime{Port: 4001, Database: "public"},
		Log:      Log{Level: "info", Format: "text"},
	}
}

// Load reads the YAML file at configPath over the defaults, applies
// environment overrides and validates the result. An empty configPath
// yields the defaults. An empty cueSchemaPath selects the embedded schema.
func Load(configPath, cueSchemaPath string) (*SimulationConfig, error) {
	cfg := Default()
	if configPath != "" {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("decode config %s: %w", configPath, err)
		}
	}
	cfg.ApplyEnv(os.Getenv)

	if err := ValidateWithCue(cfg, cueSchemaPath); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables looked up via getenv.
func (c *SimulationConfig) ApplyEnv(getenv func(string) string) {
	if v := getenv("COP_ADDR"); v != "" {
		c.Server.Addr = v
	}
	if v := getenv("GREPTIMEDB_ENDPOINT"); v != "" {
		c.Greptime.Endpoint = v
	}
	if v := getenv("GREPTIMEDB_DATABASE"); v != "" {
		c.Greptime.Database = v
	}
	if v := getenv("LOG_LEVEL"); v != "" {
		c.Log.Level = strings.ToLower(v)
	}
	if v := getenv("LOG_FORMAT"); v != "" {
		c.Log.Format = strings.ToLower(v)
	}
}

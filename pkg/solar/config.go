package solar

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// Endpoints holds the upstream API paths.
type Endpoints struct {
	Overview string `yaml:"overview" json:"overview"`
	Energy   string `yaml:"energy" json:"energy"`
}

// Config is the resolved runtime configuration for one pipeline invocation.
// Callers resolve it (defaults merged with any overrides) and hand the value
// in; the pipeline never reads ambient global state.
type Config struct {
	BaseURL           string    `yaml:"baseUrl" json:"baseUrl"`
	UseMockData       bool      `yaml:"useMockData" json:"useMockData"`
	PollIntervalMs    int       `yaml:"pollIntervalMs" json:"pollIntervalMs"`
	RequestTimeoutMs  int       `yaml:"requestTimeoutMs" json:"requestTimeoutMs"`
	EmissionsKgPerKwh float64   `yaml:"emissionsKgPerKwh" json:"emissionsKgPerKwh"`
	HistoryDays       int       `yaml:"historyDays" json:"historyDays"`
	Endpoints         Endpoints `yaml:"endpoints" json:"endpoints"`
}

// DefaultConfig returns the compiled-in defaults: mock mode on, 15 minute
// polling, 10 second request timeout, 0.36 kg CO2 per kWh and a 30 day
// history window.
func DefaultConfig() Config {
	return Config{
		BaseURL:           "",
		UseMockData:       true,
		PollIntervalMs:    15 * 60 * 1000,
		RequestTimeoutMs:  10000,
		EmissionsKgPerKwh: 0.36,
		HistoryDays:       30,
		Endpoints: Endpoints{
			Overview: "/solar/overview",
			Energy:   "/solar/energy",
		},
	}
}

// LoadConfig deep-merges the yaml file at path over the compiled defaults,
// including the nested endpoint paths. An empty path returns the defaults.
// Out-of-range values silently fall back to their defaults; a bad config
// never hard-fails the pipeline.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("failed to read config file: %w", err)
	}

	// Unmarshaling over the prefilled struct keeps defaults for absent keys
	// while letting explicit values (including false) win.
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return DefaultConfig(), fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()
	return cfg, nil
}

func (c *Config) applyDefaults() {
	def := DefaultConfig()
	if c.PollIntervalMs <= 0 {
		c.PollIntervalMs = def.PollIntervalMs
	}
	if c.RequestTimeoutMs <= 0 {
		c.RequestTimeoutMs = def.RequestTimeoutMs
	}
	if c.HistoryDays <= 0 {
		c.HistoryDays = def.HistoryDays
	}
	if c.EmissionsKgPerKwh <= 0 {
		c.EmissionsKgPerKwh = def.EmissionsKgPerKwh
	}
	if c.Endpoints.Overview == "" {
		c.Endpoints.Overview = def.Endpoints.Overview
	}
	if c.Endpoints.Energy == "" {
		c.Endpoints.Energy = def.Endpoints.Energy
	}
}

// PollInterval returns the poll interval as a duration.
func (c Config) PollInterval() time.Duration {
	return time.Duration(c.PollIntervalMs) * time.Millisecond
}

// RequestTimeout returns the per-request timeout as a duration.
func (c Config) RequestTimeout() time.Duration {
	return time.Duration(c.RequestTimeoutMs) * time.Millisecond
}

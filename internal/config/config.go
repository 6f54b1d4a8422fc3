// Package config provides unified configuration loading for the lab
// station. It supports loading from YAML files and environment
// variables; tracing is configured separately through LAB_TRACING_*
// variables by the observability bootstrap.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/voltbench/leakage-simulator/model"
	"github.com/voltbench/leakage-simulator/timectrl"
)

// Config contains all station configuration settings.
type Config struct {
	// Circuit is the electrical setup: source voltage, leakage
	// resistance under test, and capacitance.
	Circuit model.Parameters `json:"circuit" yaml:"circuit"`

	// Tick controls the simulation loop cadence.
	Tick TickConfig `json:"tick" yaml:"tick"`

	// Noise controls the synthetic measurement noise on logged readings.
	Noise NoiseConfig `json:"noise" yaml:"noise"`

	// Web configures the HTTP control surface and the metrics endpoint.
	Web WebConfig `json:"web" yaml:"web"`

	// Telemetry configures MQTT publishing of readings and events.
	Telemetry TelemetryConfig `json:"telemetry" yaml:"telemetry"`

	// Logging configures the structured logger.
	Logging LoggingConfig `json:"logging" yaml:"logging"`
}

// TickConfig controls the simulation loop.
type TickConfig struct {
	// Interval between simulation ticks.
	Interval time.Duration `json:"interval" yaml:"interval"`

	// Mode selects wall-clock ticking ("realtime") or
	// as-fast-as-possible stepping ("accelerated").
	Mode string `json:"mode" yaml:"mode"`
}

// NoiseConfig controls synthetic measurement noise.
type NoiseConfig struct {
	// AmplitudeV is the peak-to-peak noise in volts. Zero disables noise.
	AmplitudeV float64 `json:"amplitude_v" yaml:"amplitude_v"`

	// Seed fixes the noise source for reproducible traces. Zero seeds
	// from the clock.
	Seed int64 `json:"seed" yaml:"seed"`
}

// WebConfig configures the HTTP surfaces.
type WebConfig struct {
	// Addr is the listen address for the control and chart API.
	Addr string `json:"addr" yaml:"addr"`

	// MetricsAddr is the listen address for Prometheus metrics.
	MetricsAddr string `json:"metrics_addr" yaml:"metrics_addr"`
}

// TelemetryConfig configures MQTT publishing.
type TelemetryConfig struct {
	// Enabled turns the MQTT publisher on.
	Enabled bool `json:"enabled" yaml:"enabled"`

	// BrokerURL is the MQTT broker, e.g. "tcp://localhost:1883".
	BrokerURL string `json:"broker_url" yaml:"broker_url"`

	// ClientID identifies this station to the broker.
	ClientID string `json:"client_id" yaml:"client_id"`

	// TopicPrefix is prepended to the readings/events/system topics.
	TopicPrefix string `json:"topic_prefix" yaml:"topic_prefix"`

	// Heartbeat is the interval between system heartbeat messages.
	// Zero disables heartbeats.
	Heartbeat time.Duration `json:"heartbeat" yaml:"heartbeat"`

	// ReadingInterval throttles how often the latest reading is
	// published while the circuit discharges.
	ReadingInterval time.Duration `json:"reading_interval" yaml:"reading_interval"`
}

// LoggingConfig configures the structured logger.
type LoggingConfig struct {
	// Level sets the log verbosity: "debug", "info" (default), "warn" or "error".
	Level string `json:"level" yaml:"level"`

	// Format selects the handler: "text" (default) or "json".
	Format string `json:"format" yaml:"format"`
}

// Default returns a Config with the classroom setup: 5 V across
// 1 MOhm and 1 uF, so one time constant is one second.
func Default() *Config {
	return &Config{
		Circuit: model.Parameters{
			SourceVoltageV: 5,
			ResistanceOhm:  1e6,
			CapacitanceF:   1e-6,
		},
		Tick: TickConfig{
			Interval: 100 * time.Millisecond,
			Mode:     "realtime",
		},
		Noise: NoiseConfig{
			AmplitudeV: 0.05,
			Seed:       0,
		},
		Web: WebConfig{
			Addr:        ":8080",
			MetricsAddr: ":9090",
		},
		Telemetry: TelemetryConfig{
			Enabled:         false,
			BrokerURL:       "tcp://localhost:1883",
			ClientID:        "leakage-lab",
			TopicPrefix:     "lab/leakage",
			Heartbeat:       30 * time.Second,
			ReadingInterval: 250 * time.Millisecond,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// Load returns the configuration from a YAML file layered over the
// defaults, with environment variables applied last. An empty path
// skips the file entirely.
func Load(path string) (*Config, error) {
	config := Default()

	if path != "" {
		fileConfig, err := LoadFromFile(path)
		if err != nil {
			return nil, err
		}
		config = fileConfig
	}

	applyEnvOverrides(config)
	return config, nil
}

// LoadFromFile loads configuration from a specific YAML file.
func LoadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	config := Default()
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return config, nil
}

// Validate checks that the configuration is usable. Circuit
// positivity is enforced here: everything downstream of config
// assumes it.
func (c *Config) Validate() error {
	if err := c.Circuit.Validate(); err != nil {
		return err
	}

	if c.Tick.Interval <= 0 {
		return fmt.Errorf("tick interval must be positive, got %v", c.Tick.Interval)
	}
	if _, err := timectrl.ParseMode(c.Tick.Mode); err != nil {
		return err
	}

	if c.Noise.AmplitudeV < 0 {
		return fmt.Errorf("noise amplitude must be non-negative, got %v", c.Noise.AmplitudeV)
	}

	if c.Web.Addr == "" {
		return fmt.Errorf("web addr must not be empty")
	}

	if c.Telemetry.Enabled {
		if c.Telemetry.BrokerURL == "" {
			return fmt.Errorf("telemetry broker_url must not be empty when telemetry is enabled")
		}
		if c.Telemetry.ClientID == "" {
			return fmt.Errorf("telemetry client_id must not be empty when telemetry is enabled")
		}
		if c.Telemetry.ReadingInterval <= 0 {
			return fmt.Errorf("telemetry reading_interval must be positive, got %v", c.Telemetry.ReadingInterval)
		}
		if c.Telemetry.Heartbeat < 0 {
			return fmt.Errorf("telemetry heartbeat must be non-negative, got %v", c.Telemetry.Heartbeat)
		}
	}

	validLevels := map[string]bool{"": true, "debug": true, "info": true, "warn": true, "warning": true, "error": true}
	if !validLevels[c.Logging.Level] {
		return fmt.Errorf("invalid log level: %s (valid: debug, info, warn, error, or empty for default)", c.Logging.Level)
	}
	validFormats := map[string]bool{"": true, "text": true, "json": true}
	if !validFormats[c.Logging.Format] {
		return fmt.Errorf("invalid log format: %s (valid: text, json, or empty for default)", c.Logging.Format)
	}

	return nil
}

// TickMode returns the parsed tick mode. Call Validate first.
func (c *Config) TickMode() timectrl.Mode {
	mode, err := timectrl.ParseMode(c.Tick.Mode)
	if err != nil {
		return timectrl.RealTime
	}
	return mode
}

// applyEnvOverrides applies environment variable overrides to the config.
func applyEnvOverrides(config *Config) {
	if v := os.Getenv("LAB_SOURCE_VOLTAGE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Circuit.SourceVoltageV = f
		}
	}
	if v := os.Getenv("LAB_RESISTANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Circuit.ResistanceOhm = f
		}
	}
	if v := os.Getenv("LAB_CAPACITANCE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Circuit.CapacitanceF = f
		}
	}

	if v := os.Getenv("LAB_TICK_INTERVAL"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			config.Tick.Interval = d
		}
	}
	if v := os.Getenv("LAB_TICK_MODE"); v != "" {
		config.Tick.Mode = v
	}

	if v := os.Getenv("LAB_NOISE_AMPLITUDE"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			config.Noise.AmplitudeV = f
		}
	}
	if v := os.Getenv("LAB_NOISE_SEED"); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			config.Noise.Seed = n
		}
	}

	if v := os.Getenv("LAB_WEB_ADDR"); v != "" {
		config.Web.Addr = v
	}
	if v := os.Getenv("LAB_METRICS_ADDR"); v != "" {
		config.Web.MetricsAddr = v
	}

	if v := os.Getenv("LAB_MQTT_ENABLED"); v != "" {
		config.Telemetry.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("LAB_MQTT_BROKER"); v != "" {
		config.Telemetry.BrokerURL = v
	}
	if v := os.Getenv("LAB_MQTT_CLIENT_ID"); v != "" {
		config.Telemetry.ClientID = v
	}
	if v := os.Getenv("LAB_MQTT_TOPIC_PREFIX"); v != "" {
		config.Telemetry.TopicPrefix = v
	}

	if v := os.Getenv("LAB_LOG_LEVEL"); v != "" {
		config.Logging.Level = v
	}
	if v := os.Getenv("LAB_LOG_FORMAT"); v != "" {
		config.Logging.Format = v
	}
}

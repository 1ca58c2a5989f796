package config

import (
	"fmt"
	"os"
	"strconv"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for modemsim.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Serial     SerialConfig     `yaml:"serial"`
	Logging    LoggingConfig    `yaml:"logging"`
	Transcript TranscriptConfig `yaml:"transcript"`
	MQTT       MQTTConfig       `yaml:"mqtt"`
	Metrics    MetricsConfig    `yaml:"metrics"`
	API        APIConfig        `yaml:"api"`
}

// SerialConfig contains the virtual serial device settings.
type SerialConfig struct {
	// LinkPath is the stable symlink clients open as their serial port.
	// The underlying PTY path changes on every reboot; this path does not.
	LinkPath string `yaml:"link_path"`

	// CommandsPath is the JSON response table file.
	CommandsPath string `yaml:"commands_path"`

	// ReadBuffer is the size in bytes of the controller-side read buffer.
	ReadBuffer int `yaml:"read_buffer"`
}

// LoggingConfig contains structured logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // json or text
	Output string `yaml:"output"` // stdout or stderr
}

// TranscriptConfig contains session journal settings.
type TranscriptConfig struct {
	Enabled  bool           `yaml:"enabled"`
	Database DatabaseConfig `yaml:"database"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// MQTTConfig contains the optional MQTT event publisher settings.
type MQTTConfig struct {
	Enabled bool             `yaml:"enabled"`
	Broker  MQTTBrokerConfig `yaml:"broker"`
	Auth    MQTTAuthConfig   `yaml:"auth"`
	QoS     int              `yaml:"qos"`
}

// MQTTBrokerConfig contains MQTT broker connection details.
type MQTTBrokerConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	TLS      bool   `yaml:"tls"`
	ClientID string `yaml:"client_id"`
}

// MQTTAuthConfig contains MQTT authentication credentials.
type MQTTAuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// MetricsConfig contains the optional InfluxDB metrics writer settings.
type MetricsConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"` // seconds
}

// APIConfig contains the read-only HTTP control surface settings.
type APIConfig struct {
	Enabled  bool             `yaml:"enabled"`
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
}

// APITimeoutConfig contains HTTP timeout settings in seconds.
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// CORSConfig contains Cross-Origin Resource Sharing settings.
type CORSConfig struct {
	AllowedOrigins []string `yaml:"allowed_origins"`
	AllowedMethods []string `yaml:"allowed_methods"`
	AllowedHeaders []string `yaml:"allowed_headers"`
}

// maxReadBuffer bounds the controller-side read buffer (64 KiB).
const maxReadBuffer = 1 << 16

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: MODEMSIM_SECTION_KEY
// For example: MODEMSIM_LINK_PATH, MODEMSIM_MQTT_HOST
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults.
//
// The defaults run the simulator with no external services: transcript,
// MQTT, metrics and the API are all disabled until configured.
func Default() *Config {
	return &Config{
		Serial: SerialConfig{
			LinkPath:     "/tmp/ttyFAKE",
			CommandsPath: "commands.json",
			ReadBuffer:   1024,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
		Transcript: TranscriptConfig{
			Enabled: false,
			Database: DatabaseConfig{
				Path:        "./data/transcript.db",
				WALMode:     true,
				BusyTimeout: 5,
			},
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "modemsim",
			},
			QoS: 1,
		},
		Metrics: MetricsConfig{
			Enabled:       false,
			URL:           "http://localhost:8086",
			Org:           "modemsim",
			Bucket:        "modemsim",
			BatchSize:     100,
			FlushInterval: 10,
		},
		API: APIConfig{
			Enabled: false,
			Host:    "127.0.0.1",
			Port:    8790,
			Timeouts: APITimeoutConfig{
				Read:  15,
				Write: 15,
				Idle:  60,
			},
		},
	}
}

// Validate checks the configuration for missing or inconsistent values.
//
// Returns:
//   - error: Describing the first invalid field found, or nil
func (c *Config) Validate() error {
	if c.Serial.LinkPath == "" {
		return fmt.Errorf("serial.link_path is required")
	}
	if c.Serial.CommandsPath == "" {
		return fmt.Errorf("serial.commands_path is required")
	}
	if c.Serial.ReadBuffer <= 0 || c.Serial.ReadBuffer > maxReadBuffer {
		return fmt.Errorf("serial.read_buffer must be between 1 and %d, got %d", maxReadBuffer, c.Serial.ReadBuffer)
	}

	if c.Transcript.Enabled && c.Transcript.Database.Path == "" {
		return fmt.Errorf("transcript.database.path is required when transcript is enabled")
	}

	if c.MQTT.Enabled {
		if c.MQTT.Broker.Host == "" {
			return fmt.Errorf("mqtt.broker.host is required when mqtt is enabled")
		}
		if c.MQTT.Broker.Port <= 0 || c.MQTT.Broker.Port > 65535 {
			return fmt.Errorf("mqtt.broker.port must be between 1 and 65535, got %d", c.MQTT.Broker.Port)
		}
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt.qos must be 0, 1 or 2, got %d", c.MQTT.QoS)
		}
	}

	if c.Metrics.Enabled {
		if c.Metrics.URL == "" {
			return fmt.Errorf("metrics.url is required when metrics is enabled")
		}
		if c.Metrics.Org == "" || c.Metrics.Bucket == "" {
			return fmt.Errorf("metrics.org and metrics.bucket are required when metrics is enabled")
		}
	}

	if c.API.Enabled {
		if c.API.Port <= 0 || c.API.Port > 65535 {
			return fmt.Errorf("api.port must be between 1 and 65535, got %d", c.API.Port)
		}
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Only a deliberate subset is exposed: paths and credentials.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("MODEMSIM_LINK_PATH"); v != "" {
		cfg.Serial.LinkPath = v
	}
	if v := os.Getenv("MODEMSIM_COMMANDS_PATH"); v != "" {
		cfg.Serial.CommandsPath = v
	}
	if v := os.Getenv("MODEMSIM_TRANSCRIPT_PATH"); v != "" {
		cfg.Transcript.Database.Path = v
	}
	if v := os.Getenv("MODEMSIM_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("MODEMSIM_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("MODEMSIM_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}
	if v := os.Getenv("MODEMSIM_METRICS_TOKEN"); v != "" {
		cfg.Metrics.Token = v
	}
	if v := os.Getenv("MODEMSIM_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("MODEMSIM_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}
}

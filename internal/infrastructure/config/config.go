package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/nerrad567/gray-logic-basestation/internal/protocol"
)

// MinMaxFrameSize is the smallest usable server.max_frame_size: one
// header plus the largest payload the decoder accepts.
const MinMaxFrameSize = protocol.HeaderLen + protocol.MaxPayloadLen

// Config is the root configuration structure for the base station.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Site     SiteConfig     `yaml:"site"`
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	EventLog EventLogConfig `yaml:"event_log"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// SiteConfig identifies this base station in logs and published events.
type SiteConfig struct {
	ID   string `yaml:"id"`
	Name string `yaml:"name"`
}

// ServerConfig contains the device-facing TCP server settings.
type ServerConfig struct {
	// Host is the IPv4 address to listen on. Empty listens on all interfaces.
	Host string `yaml:"host"`
	Port int    `yaml:"port"`

	// PollIntervalMS bounds how long the event loop waits between passes,
	// and so how quickly a shutdown request is noticed.
	PollIntervalMS int `yaml:"poll_interval_ms"`

	// ReadBufferSize is the number of bytes requested per socket read.
	ReadBufferSize int `yaml:"read_buffer_size"`

	// MaxFrameSize caps the bytes buffered for one incomplete frame.
	MaxFrameSize int `yaml:"max_frame_size"`

	// WriteTimeoutMS bounds a single non-blocking send attempt.
	WriteTimeoutMS int `yaml:"write_timeout_ms"`

	// MaxConnections limits concurrently connected devices. 0 means unlimited.
	MaxConnections int `yaml:"max_connections"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// Event log backends.
const (
	EventLogSQLite = "sqlite"
	EventLogBolt   = "bolt"
)

// EventLogConfig selects where device events are stored.
type EventLogConfig struct {
	// Backend is "sqlite" (default, uses the database section) or "bolt".
	Backend  string `yaml:"backend"`
	BoltPath string `yaml:"bolt_path"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. Environment variables (override file values)
//
// Environment variables follow the pattern: BASESTATION_SECTION_KEY
// For example: BASESTATION_SERVER_PORT, BASESTATION_DATABASE_PATH
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

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, fmt.Errorf("applying environment overrides: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// Default returns a Config with sensible defaults. The server listens on
// port 5000, the port the sensor firmware ships with.
func Default() *Config {
	return &Config{
		Site: SiteConfig{
			ID:   "basestation-001",
			Name: "RaspberryPi-Server",
		},
		Server: ServerConfig{
			Host:           "",
			Port:           5000,
			PollIntervalMS: 100,
			ReadBufferSize: 2048,
			MaxFrameSize:   MinMaxFrameSize,
			WriteTimeoutMS: 1,
		},
		Database: DatabaseConfig{
			Path:        "./data/smarthome.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		EventLog: EventLogConfig{
			Backend:  EventLogSQLite,
			BoltPath: "./data/events.bolt",
		},
		MQTT: MQTTConfig{
			Enabled: false,
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "graylogic-basestation",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		InfluxDB: InfluxDBConfig{
			Enabled:       false,
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BASESTATION_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	// Server
	if v := os.Getenv("BASESTATION_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("BASESTATION_SERVER_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("BASESTATION_SERVER_PORT: %w", err)
		}
		cfg.Server.Port = port
	}

	// Database
	if v := os.Getenv("BASESTATION_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("BASESTATION_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BASESTATION_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BASESTATION_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("BASESTATION_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.Site.ID == "" {
		errs = append(errs, "site.id is required")
	}

	// Server validation
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, "server.port must be between 1 and 65535")
	}
	if c.Server.PollIntervalMS < 1 {
		errs = append(errs, "server.poll_interval_ms must be positive")
	}
	if c.Server.ReadBufferSize < 1 {
		errs = append(errs, "server.read_buffer_size must be positive")
	}
	if c.Server.MaxFrameSize < MinMaxFrameSize {
		errs = append(errs, fmt.Sprintf("server.max_frame_size must be at least %d", MinMaxFrameSize))
	}
	if c.Server.WriteTimeoutMS < 1 {
		errs = append(errs, "server.write_timeout_ms must be positive")
	}
	if c.Server.MaxConnections < 0 {
		errs = append(errs, "server.max_connections must not be negative")
	}

	// Event log validation
	switch c.EventLog.Backend {
	case EventLogSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for the sqlite event log")
		}
	case EventLogBolt:
		if c.EventLog.BoltPath == "" {
			errs = append(errs, "event_log.bolt_path is required for the bolt event log")
		}
	default:
		errs = append(errs, fmt.Sprintf("event_log.backend %q must be %q or %q", c.EventLog.Backend, EventLogSQLite, EventLogBolt))
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required when mqtt is enabled")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled {
		if c.InfluxDB.URL == "" {
			errs = append(errs, "influxdb.url is required when influxdb is enabled")
		}
		if c.InfluxDB.Bucket == "" {
			errs = append(errs, "influxdb.bucket is required when influxdb is enabled")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// ListenAddress returns the host:port the device server binds to.
func (c *Config) ListenAddress() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// PollInterval returns the event loop poll interval as a Duration.
func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.Server.PollIntervalMS) * time.Millisecond
}

// WriteTimeout returns the per-attempt send timeout as a Duration.
func (c *Config) WriteTimeout() time.Duration {
	return time.Duration(c.Server.WriteTimeoutMS) * time.Millisecond
}

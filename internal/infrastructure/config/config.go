package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for Biofleet Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Listener  ListenerConfig  `yaml:"listener"`
	Driver    DriverConfig    `yaml:"driver"`
	Sink      SinkConfig      `yaml:"sink"`
	Scanner   ScannerConfig   `yaml:"scanner"`
	Devices   []DeviceConfig  `yaml:"devices"`
	Database  DatabaseConfig  `yaml:"database"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
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

// ListenerConfig contains attendance listener supervision settings.
type ListenerConfig struct {
	// AutoStart launches listeners for all enabled devices at process start.
	AutoStart bool `yaml:"auto_start"`

	// PollInterval is the delay between attendance polls, in seconds.
	// Default: 2.
	PollInterval int `yaml:"poll_interval"`

	// MaxRetries is the number of connection attempts before giving up.
	// Default: 3.
	MaxRetries int `yaml:"max_retries"`

	// RetryDelay is the delay between connection attempts, in seconds.
	// Default: 5.
	RetryDelay int `yaml:"retry_delay"`

	// ReconnectBackoff is the delay between failed reconnect cycles during
	// steady-state polling, in seconds. Default: 10.
	ReconnectBackoff int `yaml:"reconnect_backoff"`

	// StopTimeout is the bounded wait for each task to observe a stop
	// signal, in seconds. Tasks that do not exit in time are abandoned.
	// Default: 5.
	StopTimeout int `yaml:"stop_timeout"`

	// ProbeTimeout is the transport-level reachability probe timeout,
	// in seconds. Default: 3.
	ProbeTimeout int `yaml:"probe_timeout"`

	// ConnectTimeout is the protocol-level connect timeout, in seconds.
	// Default: 5.
	ConnectTimeout int `yaml:"connect_timeout"`
}

// DriverConfig selects the terminal protocol driver.
type DriverConfig struct {
	// Name selects a registered driver implementation.
	// "simulator" is built in; vendor drivers register themselves.
	Name string `yaml:"name"`
}

// SinkConfig configures the downstream Event Sink for attendance relay.
type SinkConfig struct {
	// Type selects the sink transport: "http" or "mqtt".
	Type string `yaml:"type"`

	// URL is the HTTP sink endpoint (type "http").
	URL string `yaml:"url"`

	// Timeout is the per-delivery timeout, in seconds. Default: 3.
	Timeout int `yaml:"timeout"`

	// Topic is the MQTT sink topic (type "mqtt").
	Topic string `yaml:"topic"`
}

// ScannerConfig contains network discovery settings.
type ScannerConfig struct {
	// Port is the terminal port probed during a scan. Default: 4370.
	Port int `yaml:"port"`

	// Timeout is the per-host probe/connect timeout, in seconds. Default: 2.
	Timeout int `yaml:"timeout"`

	// Workers bounds the concurrent scan goroutines. Default: 50.
	Workers int `yaml:"workers"`
}

// DeviceConfig describes one default device registered at start-up.
type DeviceConfig struct {
	Address string `yaml:"address"`
	Port    int    `yaml:"port"`
	Name    string `yaml:"name"`
	Enabled bool   `yaml:"enabled"`
}

// DatabaseConfig contains SQLite settings for the audit trail.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// WebSocketConfig contains WebSocket server settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings (used by the MQTT sink).
type MQTTConfig struct {
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

// MQTTReconnectConfig contains MQTT reconnection settings in seconds.
type MQTTReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
}

// InfluxDBConfig contains InfluxDB telemetry settings.
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
// Environment variables follow the pattern: BIOFLEET_SECTION_KEY
// For example: BIOFLEET_API_PORT, BIOFLEET_SINK_URL
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
func Default() *Config {
	return &Config{
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 5001,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
		},
		Listener: ListenerConfig{
			AutoStart:        true,
			PollInterval:     2,
			MaxRetries:       3,
			RetryDelay:       5,
			ReconnectBackoff: 10,
			StopTimeout:      5,
			ProbeTimeout:     3,
			ConnectTimeout:   5,
		},
		Driver: DriverConfig{
			Name: "simulator",
		},
		Sink: SinkConfig{
			Type:    "http",
			Timeout: 3,
			Topic:   "biofleet/attendance",
		},
		Scanner: ScannerConfig{
			Port:    4370,
			Timeout: 2,
			Workers: 50,
		},
		Database: DatabaseConfig{
			Path:        "./data/biofleet.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		WebSocket: WebSocketConfig{
			Path:           "/ws",
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "biofleet-core",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: BIOFLEET_SECTION_KEY
func applyEnvOverrides(cfg *Config) {
	// API
	if v := os.Getenv("BIOFLEET_API_HOST"); v != "" {
		cfg.API.Host = v
	}
	if v := os.Getenv("BIOFLEET_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Listener — AUTO_LISTEN keeps the name the deployment scripts already use.
	if v := os.Getenv("BIOFLEET_AUTO_LISTEN"); v != "" {
		cfg.Listener.AutoStart = v != "0" && !strings.EqualFold(v, "false")
	}

	// Sink
	if v := os.Getenv("BIOFLEET_SINK_URL"); v != "" {
		cfg.Sink.URL = v
	}

	// Database
	if v := os.Getenv("BIOFLEET_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("BIOFLEET_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("BIOFLEET_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("BIOFLEET_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("BIOFLEET_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}

	if c.Listener.PollInterval < 1 {
		errs = append(errs, "listener.poll_interval must be at least 1 second")
	}
	if c.Listener.MaxRetries < 1 {
		errs = append(errs, "listener.max_retries must be at least 1")
	}

	switch c.Sink.Type {
	case "http":
		if c.Sink.URL == "" {
			errs = append(errs, "sink.url is required for the http sink")
		}
	case "mqtt":
		if c.Sink.Topic == "" {
			errs = append(errs, "sink.topic is required for the mqtt sink")
		}
	default:
		errs = append(errs, fmt.Sprintf("sink.type %q is not recognised (http, mqtt)", c.Sink.Type))
	}

	if c.Driver.Name == "" {
		errs = append(errs, "driver.name is required")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	for i, d := range c.Devices {
		if d.Address == "" {
			errs = append(errs, fmt.Sprintf("devices[%d].address is required", i))
		}
		if d.Port < 1 || d.Port > 65535 {
			errs = append(errs, fmt.Sprintf("devices[%d].port must be between 1 and 65535", i))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// GetReadTimeout returns the API read timeout as a Duration.
func (c *Config) GetReadTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Read) * time.Second
}

// GetWriteTimeout returns the API write timeout as a Duration.
func (c *Config) GetWriteTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Write) * time.Second
}

// GetIdleTimeout returns the API idle timeout as a Duration.
func (c *Config) GetIdleTimeout() time.Duration {
	return time.Duration(c.API.Timeouts.Idle) * time.Second
}

// PollIntervalDuration returns the listener poll interval as a Duration.
func (c *ListenerConfig) PollIntervalDuration() time.Duration {
	return time.Duration(c.PollInterval) * time.Second
}

// RetryDelayDuration returns the connect retry delay as a Duration.
func (c *ListenerConfig) RetryDelayDuration() time.Duration {
	return time.Duration(c.RetryDelay) * time.Second
}

// ReconnectBackoffDuration returns the reconnect back-off as a Duration.
func (c *ListenerConfig) ReconnectBackoffDuration() time.Duration {
	return time.Duration(c.ReconnectBackoff) * time.Second
}

// StopTimeoutDuration returns the per-task stop wait as a Duration.
func (c *ListenerConfig) StopTimeoutDuration() time.Duration {
	return time.Duration(c.StopTimeout) * time.Second
}

// ProbeTimeoutDuration returns the reachability probe timeout as a Duration.
func (c *ListenerConfig) ProbeTimeoutDuration() time.Duration {
	return time.Duration(c.ProbeTimeout) * time.Second
}

// ConnectTimeoutDuration returns the protocol connect timeout as a Duration.
func (c *ListenerConfig) ConnectTimeoutDuration() time.Duration {
	return time.Duration(c.ConnectTimeout) * time.Second
}

// TimeoutDuration returns the sink delivery timeout as a Duration.
func (c *SinkConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

// TimeoutDuration returns the per-host scan timeout as a Duration.
func (c *ScannerConfig) TimeoutDuration() time.Duration {
	return time.Duration(c.Timeout) * time.Second
}

package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for doorwatch.
// Values come from defaults, an optional YAML file and DOORWATCH_* environment variables.
type Config struct {
	Device   DeviceConfig   `yaml:"device"`
	Cloud    CloudConfig    `yaml:"cloud"`
	Listener ListenerConfig `yaml:"listener"`
	Database DatabaseConfig `yaml:"database"`
	MQTT     MQTTConfig     `yaml:"mqtt"`
	InfluxDB InfluxDBConfig `yaml:"influxdb"`
	API      APIConfig      `yaml:"api"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// DeviceConfig identifies the door contact sensor on the local network.
type DeviceConfig struct {
	// IP is the device address. Broadcasts from any other host are ignored.
	IP string `yaml:"ip"`

	// ID is the Tuya device id (gwId/devId).
	ID string `yaml:"id"`

	// LocalKey is the 16 character AES key for the local session.
	// Leave empty to use the cloud relay instead.
	LocalKey string `yaml:"local_key"`

	// Port is the TCP port of the local session. Default: 6668
	Port int `yaml:"port"`
}

// CloudConfig contains Tuya cloud API credentials.
// Only used when device.local_key is empty.
type CloudConfig struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	Region    string `yaml:"region"`

	// BaseURL overrides the region host (e.g., for a proxy).
	BaseURL string `yaml:"base_url,omitempty"`
}

// ListenerConfig contains broadcast listener and fetch settings.
type ListenerConfig struct {
	// Port is the UDP port the device broadcasts to on power-up. Default: 6667
	Port int `yaml:"port"`

	// FetchTimeout bounds a single status fetch. Default: 10s
	FetchTimeout time.Duration `yaml:"fetch_timeout"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// HistoryRetentionDays prunes door history older than this (hourly). 0 keeps everything.
	HistoryRetentionDays int `yaml:"history_retention_days"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	TopicPrefix string              `yaml:"topic_prefix"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
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

// MQTTReconnectConfig contains MQTT reconnection settings (seconds).
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

// APIConfig contains HTTP status server settings.
type APIConfig struct {
	Enabled   bool             `yaml:"enabled"`
	Host      string           `yaml:"host"`
	Port      int              `yaml:"port"`
	Timeouts  APITimeoutConfig `yaml:"timeouts"`
	WebSocket WebSocketConfig  `yaml:"websocket"`
}

// WebSocketConfig contains live state stream settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"` // seconds
	PongTimeout    int `yaml:"pong_timeout"`  // seconds
}

// APITimeoutConfig contains HTTP timeout settings (seconds).
type APITimeoutConfig struct {
	Read  int `yaml:"read"`
	Write int `yaml:"write"`
	Idle  int `yaml:"idle"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Supported cloud regions.
var cloudRegions = map[string]bool{
	"us": true,
	"eu": true,
	"cn": true,
	"in": true,
}

// localKeyLength is the AES-128 key size used by protocol 3.3.
const localKeyLength = 16

// Load builds the configuration.
//
// The loading order is:
//  1. Default values
//  2. YAML file values, when path is not empty
//  3. Environment variables (DOORWATCH_SECTION_KEY)
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If the file cannot be read or parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Device: DeviceConfig{
			Port: 6668,
		},
		Cloud: CloudConfig{
			Region: "eu",
		},
		Listener: ListenerConfig{
			Port:         6667,
			FetchTimeout: 10 * time.Second,
		},
		Database: DatabaseConfig{
			Enabled:     true,
			Path:        "./data/doorwatch.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "doorwatch",
			},
			QoS:         1,
			TopicPrefix: "doorwatch",
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
		},
		API: APIConfig{
			Enabled: true,
			Host:    "127.0.0.1",
			Port:    8080,
			Timeouts: APITimeoutConfig{
				Read:  10,
				Write: 10,
				Idle:  60,
			},
			WebSocket: WebSocketConfig{
				MaxMessageSize: 4096,
				PingInterval:   30,
				PongTimeout:    10,
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
// Secrets are expected to arrive this way rather than through the YAML file.
func applyEnvOverrides(cfg *Config) {
	// Device
	if v := os.Getenv("DOORWATCH_DEVICE_IP"); v != "" {
		cfg.Device.IP = v
	}
	if v := os.Getenv("DOORWATCH_DEVICE_ID"); v != "" {
		cfg.Device.ID = v
	}
	if v := os.Getenv("DOORWATCH_DEVICE_KEY"); v != "" {
		cfg.Device.LocalKey = v
	}

	// Cloud
	if v := os.Getenv("DOORWATCH_CLOUD_API_KEY"); v != "" {
		cfg.Cloud.APIKey = v
	}
	if v := os.Getenv("DOORWATCH_CLOUD_API_SECRET"); v != "" {
		cfg.Cloud.APISecret = v
	}
	if v := os.Getenv("DOORWATCH_CLOUD_REGION"); v != "" {
		cfg.Cloud.Region = v
	}

	// Database
	if v := os.Getenv("DOORWATCH_DATABASE_PATH"); v != "" {
		cfg.Database.Path = v
	}

	// MQTT
	if v := os.Getenv("DOORWATCH_MQTT_HOST"); v != "" {
		cfg.MQTT.Broker.Host = v
	}
	if v := os.Getenv("DOORWATCH_MQTT_USERNAME"); v != "" {
		cfg.MQTT.Auth.Username = v
	}
	if v := os.Getenv("DOORWATCH_MQTT_PASSWORD"); v != "" {
		cfg.MQTT.Auth.Password = v
	}

	// InfluxDB
	if v := os.Getenv("DOORWATCH_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// API
	if v := os.Getenv("DOORWATCH_API_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.API.Port = port
		}
	}

	// Logging
	if v := os.Getenv("DOORWATCH_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Device validation
	if c.Device.IP == "" {
		errs = append(errs, "device.ip is required (set DOORWATCH_DEVICE_IP)")
	} else if net.ParseIP(c.Device.IP) == nil {
		errs = append(errs, fmt.Sprintf("device.ip %q is not a valid IP address", c.Device.IP))
	}
	if c.Device.ID == "" {
		errs = append(errs, "device.id is required (set DOORWATCH_DEVICE_ID)")
	}

	// Exactly one transport must be usable
	switch {
	case c.Device.LocalKey != "":
		if len(c.Device.LocalKey) != localKeyLength {
			errs = append(errs, "device.local_key must be exactly 16 characters")
		}
		if c.Device.Port < 1 || c.Device.Port > 65535 {
			errs = append(errs, "device.port must be between 1 and 65535")
		}
	case c.Cloud.APIKey != "" && c.Cloud.APISecret != "":
		if c.Cloud.BaseURL == "" && !cloudRegions[strings.ToLower(c.Cloud.Region)] {
			errs = append(errs, fmt.Sprintf("cloud.region %q is not supported (us, eu, cn, in)", c.Cloud.Region))
		}
	default:
		errs = append(errs, "either device.local_key or cloud.api_key and cloud.api_secret are required")
	}

	// Listener validation
	if c.Listener.Port < 1 || c.Listener.Port > 65535 {
		errs = append(errs, "listener.port must be between 1 and 65535")
	}
	if c.Listener.FetchTimeout <= 0 {
		errs = append(errs, "listener.fetch_timeout must be positive")
	}

	// Database validation
	if c.Database.Enabled && c.Database.Path == "" {
		errs = append(errs, "database.path is required when database is enabled")
	}

	// MQTT validation
	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.TopicPrefix == "" {
			errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
		}
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// API validation
	if c.API.Enabled && (c.API.Port < 1 || c.API.Port > 65535) {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Enabled && (c.API.WebSocket.PingInterval <= 0 || c.API.WebSocket.PongTimeout <= 0) {
		errs = append(errs, "api.websocket ping_interval and pong_timeout must be positive")
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// UsesCloud reports whether the cloud relay is the active transport.
// Absence of a local key with cloud credentials present selects the cloud.
func (c *Config) UsesCloud() bool {
	return c.Device.LocalKey == "" && c.Cloud.APIKey != "" && c.Cloud.APISecret != ""
}

// ListenAddr returns the UDP address the broadcast listener binds to.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf(":%d", c.Listener.Port)
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

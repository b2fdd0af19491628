package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for the Mosquitto monitor.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Broker       BrokerConfig       `yaml:"broker"`
	Auth         AuthConfig         `yaml:"auth"`
	Reconnect    ReconnectConfig    `yaml:"reconnect"`
	Stats        StatsConfig        `yaml:"stats"`
	InfluxDB     InfluxDBConfig     `yaml:"influxdb"`
	StatusServer StatusServerConfig `yaml:"status_server"`
	Monitor      MonitorConfig      `yaml:"monitor"`
	Logging      LoggingConfig      `yaml:"logging"`
}

// BrokerConfig contains the address and session settings of the monitored broker.
type BrokerConfig struct {
	Host          string `yaml:"host"`
	Port          int    `yaml:"port"`
	TLS           bool   `yaml:"tls"`
	ClientID      string `yaml:"client_id"`
	KeepAlive     int    `yaml:"keep_alive"`
	CleanSession  bool   `yaml:"clean_session"`
	AutoReconnect bool   `yaml:"auto_reconnect"`
	// ConnectTimeout bounds a single handshake, in seconds.
	ConnectTimeout int `yaml:"connect_timeout"`
}

// AuthConfig contains broker credentials. An empty username means anonymous access.
type AuthConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// ReconnectConfig contains the retry policy for the initial connection.
// Delays are in seconds. MaxAttempts of 0 retries until shutdown.
type ReconnectConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	MaxAttempts  int `yaml:"max_attempts"`
}

// StatsConfig contains the statsd backend address.
type StatsConfig struct {
	Host   string   `yaml:"host"`
	Port   int      `yaml:"port"`
	Prefix string   `yaml:"prefix"`
	Tags   []string `yaml:"tags"`
}

// InfluxDBConfig contains settings for the optional InfluxDB mirror.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	BatchSize     int    `yaml:"batch_size"`
	FlushInterval int    `yaml:"flush_interval"`
}

// StatusServerConfig contains settings for the HTTP health and metrics server.
type StatusServerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Host    string `yaml:"host"`
	Port    int    `yaml:"port"`
}

// MonitorConfig contains dispatch and event loop settings.
type MonitorConfig struct {
	QueueSize         int           `yaml:"queue_size"`
	HeartbeatInterval int           `yaml:"heartbeat_interval"`
	Loop              LoopConfig    `yaml:"loop"`
	ExtraTopics       []TopicConfig `yaml:"extra_topics"`
}

// LoopConfig selects how the event loop runs.
//
// Mode is one of "forever", "background" or "bounded". Iterations and
// Timeout (milliseconds) only apply to bounded mode.
type LoopConfig struct {
	Mode       string `yaml:"mode"`
	Iterations int    `yaml:"iterations"`
	Timeout    int    `yaml:"timeout"`
}

// TopicConfig declares an additional status topic to translate into a gauge.
// Kind is one of "integer", "float" or "duration_seconds".
type TopicConfig struct {
	Topic  string `yaml:"topic"`
	Metric string `yaml:"metric"`
	Kind   string `yaml:"kind"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string            `yaml:"level"`
	Format string            `yaml:"format"`
	Output string            `yaml:"output"`
	File   FileLoggingConfig `yaml:"file"`
}

// FileLoggingConfig contains file-based logging settings.
type FileLoggingConfig struct {
	Path       string `yaml:"path"`
	MaxSize    int    `yaml:"max_size"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAge     int    `yaml:"max_age"`
	Compress   bool   `yaml:"compress"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. .env file in the working directory (never overrides the real environment)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: MOSQUITTO_MONITOR_KEY
// For example: MOSQUITTO_MONITOR_HOST, MOSQUITTO_MONITOR_STATS_PORT
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

	if err := loadDotEnv(dotEnvFile); err != nil {
		return nil, err
	}

	if err := applyEnvOverrides(cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// dotEnvFile is the optional environment file read by Load.
const dotEnvFile = ".env"

// loadDotEnv loads credentials from a .env file if one exists.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// Default returns a Config with sensible defaults.
// The broker and statsd addresses match a local Mosquitto and statsd agent.
func Default() *Config {
	return &Config{
		Broker: BrokerConfig{
			Host:           "localhost",
			Port:           1883,
			KeepAlive:      60,
			CleanSession:   true,
			AutoReconnect:  true,
			ConnectTimeout: 10,
		},
		Reconnect: ReconnectConfig{
			InitialDelay: 1,
			MaxDelay:     60,
			MaxAttempts:  0,
		},
		Stats: StatsConfig{
			Host:   "localhost",
			Port:   8125,
			Prefix: "mosquito_monitor",
		},
		InfluxDB: InfluxDBConfig{
			BatchSize:     100,
			FlushInterval: 10,
		},
		StatusServer: StatusServerConfig{
			Host: "127.0.0.1",
			Port: 9234,
		},
		Monitor: MonitorConfig{
			QueueSize:         1024,
			HeartbeatInterval: 30,
			Loop: LoopConfig{
				Mode:       LoopModeForever,
				Iterations: 1,
				Timeout:    250,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
			File: FileLoggingConfig{
				MaxSize:    100,
				MaxBackups: 4,
				MaxAge:     7,
			},
		},
	}
}

// Loop modes accepted by LoopConfig.Mode.
const (
	LoopModeForever    = "forever"
	LoopModeBackground = "background"
	LoopModeBounded    = "bounded"
)

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: MOSQUITTO_MONITOR_KEY
func applyEnvOverrides(cfg *Config) error {
	// Broker
	if v := os.Getenv("MOSQUITTO_MONITOR_HOST"); v != "" {
		cfg.Broker.Host = v
	}
	if v := os.Getenv("MOSQUITTO_MONITOR_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MOSQUITTO_MONITOR_PORT: %w", err)
		}
		cfg.Broker.Port = port
	}
	if v := os.Getenv("MOSQUITTO_MONITOR_USERNAME"); v != "" {
		cfg.Auth.Username = v
	}
	if v := os.Getenv("MOSQUITTO_MONITOR_PASSWORD"); v != "" {
		cfg.Auth.Password = v
	}

	// Stats backend
	if v := os.Getenv("MOSQUITTO_MONITOR_STATS_HOST"); v != "" {
		cfg.Stats.Host = v
	}
	if v := os.Getenv("MOSQUITTO_MONITOR_STATS_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("MOSQUITTO_MONITOR_STATS_PORT: %w", err)
		}
		cfg.Stats.Port = port
	}

	// InfluxDB
	if v := os.Getenv("MOSQUITTO_MONITOR_INFLUXDB_TOKEN"); v != "" {
		cfg.InfluxDB.Token = v
	}

	// Logging
	if v := os.Getenv("MOSQUITTO_MONITOR_LOG_FILE"); v != "" {
		cfg.Logging.File.Path = v
	}

	return nil
}

// Validate checks the configuration for errors.
//
// Returns:
//   - error: Description of validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	// Broker validation
	if c.Broker.Host == "" {
		errs = append(errs, "broker.host is required")
	}
	if c.Broker.Port < 1 || c.Broker.Port > 65535 {
		errs = append(errs, "broker.port must be between 1 and 65535")
	}
	if c.Broker.KeepAlive < 0 {
		errs = append(errs, "broker.keep_alive must not be negative")
	}
	if c.Auth.Password != "" && c.Auth.Username == "" {
		errs = append(errs, "auth.password requires auth.username")
	}

	// Reconnect validation
	if c.Reconnect.InitialDelay < 0 || c.Reconnect.MaxDelay < 0 || c.Reconnect.MaxAttempts < 0 {
		errs = append(errs, "reconnect values must not be negative")
	}
	if c.Reconnect.MaxDelay > 0 && c.Reconnect.MaxDelay < c.Reconnect.InitialDelay {
		errs = append(errs, "reconnect.max_delay must not be less than reconnect.initial_delay")
	}

	// Stats validation
	if c.Stats.Host == "" {
		errs = append(errs, "stats.host is required")
	}
	if c.Stats.Port < 1 || c.Stats.Port > 65535 {
		errs = append(errs, "stats.port must be between 1 and 65535")
	}

	// InfluxDB validation
	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Status server validation
	if c.StatusServer.Enabled && (c.StatusServer.Port < 1 || c.StatusServer.Port > 65535) {
		errs = append(errs, "status_server.port must be between 1 and 65535")
	}

	// Monitor validation
	if c.Monitor.QueueSize < 1 {
		errs = append(errs, "monitor.queue_size must be at least 1")
	}
	if c.Monitor.HeartbeatInterval < 0 {
		errs = append(errs, "monitor.heartbeat_interval must not be negative")
	}
	switch c.Monitor.Loop.Mode {
	case LoopModeForever, LoopModeBackground:
	case LoopModeBounded:
		if c.Monitor.Loop.Iterations < 1 {
			errs = append(errs, "monitor.loop.iterations must be at least 1 in bounded mode")
		}
		if c.Monitor.Loop.Timeout < 1 {
			errs = append(errs, "monitor.loop.timeout must be at least 1ms in bounded mode")
		}
	default:
		errs = append(errs, fmt.Sprintf("monitor.loop.mode %q must be forever, background or bounded", c.Monitor.Loop.Mode))
	}
	for i, t := range c.Monitor.ExtraTopics {
		if t.Topic == "" || t.Metric == "" {
			errs = append(errs, fmt.Sprintf("monitor.extra_topics[%d] requires topic and metric", i))
		}
	}

	// Logging validation
	switch strings.ToLower(c.Logging.Output) {
	case "file", "both":
		if c.Logging.File.Path == "" {
			errs = append(errs, "logging.file.path is required for file output")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("configuration errors: %s", strings.Join(errs, "; "))
	}

	return nil
}

// BrokerAddress returns the host:port of the monitored broker.
func (c *Config) BrokerAddress() string {
	return fmt.Sprintf("%s:%d", c.Broker.Host, c.Broker.Port)
}

// StatsAddress returns the host:port of the statsd backend.
func (c *Config) StatsAddress() string {
	return c.Stats.Address()
}

// Address returns the host:port of the statsd backend.
func (s StatsConfig) Address() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// GetConnectTimeout returns the broker handshake timeout as a Duration.
func (c *Config) GetConnectTimeout() time.Duration {
	return time.Duration(c.Broker.ConnectTimeout) * time.Second
}

// GetHeartbeatInterval returns the heartbeat interval as a Duration.
// Zero disables the heartbeat.
func (c *Config) GetHeartbeatInterval() time.Duration {
	return time.Duration(c.Monitor.HeartbeatInterval) * time.Second
}

// GetLoopTimeout returns the bounded-mode per-iteration timeout as a Duration.
func (c *Config) GetLoopTimeout() time.Duration {
	return time.Duration(c.Monitor.Loop.Timeout) * time.Millisecond
}

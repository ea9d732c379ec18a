package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the device agent
type Config struct {
	Sensor  SensorConfig  `yaml:"sensor"`
	Server  ServerConfig  `yaml:"server"`
	Buffer  BufferConfig  `yaml:"buffer"`
	Logging LoggingConfig `yaml:"logging"`
}

// SensorConfig contains sensor-specific settings
type SensorConfig struct {
	ID           string        `yaml:"id" env:"SENSOR_ID"`
	Location     string        `yaml:"location" env:"SENSOR_LOCATION"`
	Type         string        `yaml:"type"`
	GPIOPin      int           `yaml:"gpio_pin" env:"SENSOR_GPIO_PIN"`
	ReadInterval time.Duration `yaml:"read_interval" env:"SENSOR_READ_INTERVAL"`
	// LightPath is a sysfs file holding the raw light level. Empty disables
	// the light sensor and reports brightness 0.
	LightPath string `yaml:"light_path" env:"SENSOR_LIGHT_PATH"`
	// LightScale multiplies the raw sysfs value
	LightScale float64 `yaml:"light_scale"`
}

// ServerConfig contains connection settings for the uplink
type ServerConfig struct {
	URL                  string        `yaml:"url" env:"SERVER_URL"`
	AuthToken            string        `yaml:"auth_token" env:"SERVER_AUTH_TOKEN"`
	ConnectTimeout       time.Duration `yaml:"connect_timeout"`
	ReconnectInterval    time.Duration `yaml:"reconnect_interval"`
	MaxReconnectInterval time.Duration `yaml:"max_reconnect_interval"`
	PingInterval         time.Duration `yaml:"ping_interval"`
	PongTimeout          time.Duration `yaml:"pong_timeout"`
	FlushInterval        time.Duration `yaml:"flush_interval"`
	BatchSize            int           `yaml:"batch_size"`
}

// BufferConfig contains settings for the reading buffer
type BufferConfig struct {
	Size       int  `yaml:"size" env:"BUFFER_SIZE"`
	DropOldest bool `yaml:"drop_oldest"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level      string `yaml:"level" env:"LOG_LEVEL"`
	Format     string `yaml:"format" env:"LOG_FORMAT"`
	FilePath   string `yaml:"file_path" env:"LOG_FILE"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
}

// LoadConfig loads the agent configuration from a YAML file
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.ApplyDefaults()
	if err := cfg.OverrideFromEnv(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

// ApplyDefaults sets default values for any unset fields
func (c *Config) ApplyDefaults() {
	if c.Sensor.Type == "" {
		c.Sensor.Type = "DHT11"
	}
	if c.Sensor.ReadInterval == 0 {
		c.Sensor.ReadInterval = 30 * time.Second
	}
	if c.Sensor.LightScale == 0 {
		c.Sensor.LightScale = 1
	}
	if c.Server.ConnectTimeout == 0 {
		c.Server.ConnectTimeout = 10 * time.Second
	}
	if c.Server.ReconnectInterval == 0 {
		c.Server.ReconnectInterval = 1 * time.Second
	}
	if c.Server.MaxReconnectInterval == 0 {
		c.Server.MaxReconnectInterval = 5 * time.Minute
	}
	if c.Server.PingInterval == 0 {
		c.Server.PingInterval = 30 * time.Second
	}
	if c.Server.PongTimeout == 0 {
		c.Server.PongTimeout = 3 * c.Server.PingInterval
	}
	if c.Server.FlushInterval == 0 {
		c.Server.FlushInterval = 5 * time.Second
	}
	if c.Server.BatchSize == 0 {
		c.Server.BatchSize = 50
	}
	if c.Buffer.Size == 0 {
		c.Buffer.Size = 1000
		c.Buffer.DropOldest = true
	}
	c.Logging.applyDefaults()
}

func (l *LoggingConfig) applyDefaults() {
	if l.Level == "" {
		l.Level = "info"
	}
	if l.Format == "" {
		l.Format = "json"
	}
	if l.MaxSizeMB == 0 {
		l.MaxSizeMB = 100
	}
	if l.MaxBackups == 0 {
		l.MaxBackups = 10
	}
}

func (l LoggingConfig) validate() error {
	switch strings.ToLower(l.Level) {
	case "trace", "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown log level %q", l.Level)
	}
	if l.Format != "json" && l.Format != "text" {
		return fmt.Errorf("log format must be json or text")
	}
	return nil
}

// OverrideFromEnv overrides config values from environment variables
func (c *Config) OverrideFromEnv() error {
	return overrideFromEnv(c)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Sensor.ID == "" {
		return fmt.Errorf("sensor ID is required")
	}
	if c.Sensor.GPIOPin <= 0 {
		return fmt.Errorf("GPIO pin must be greater than 0")
	}
	if c.Server.URL == "" {
		return fmt.Errorf("server URL is required")
	}
	if !strings.HasPrefix(c.Server.URL, "ws://") && !strings.HasPrefix(c.Server.URL, "wss://") {
		return fmt.Errorf("server URL must start with ws:// or wss://")
	}
	if c.Server.AuthToken == "" {
		return fmt.Errorf("server auth token is required")
	}
	if c.Sensor.ReadInterval < 1*time.Second {
		return fmt.Errorf("read interval must be at least 1 second")
	}
	if c.Sensor.LightScale <= 0 {
		return fmt.Errorf("light scale must be positive")
	}
	if c.Server.PongTimeout <= c.Server.PingInterval {
		return fmt.Errorf("pong timeout must be longer than ping interval")
	}
	if c.Server.ReconnectInterval < 1*time.Second {
		return fmt.Errorf("reconnect interval must be at least 1 second")
	}
	if c.Buffer.Size < 10 || c.Buffer.Size > 100000 {
		return fmt.Errorf("buffer size must be between 10 and 100000")
	}
	return c.Logging.validate()
}

// String returns a safe string representation (hides auth token)
func (c *Config) String() string {
	return fmt.Sprintf("Config{Sensor: %+v, Server: [URL=%s, Token=%s], Buffer: %+v, Logging: %+v}",
		c.Sensor,
		c.Server.URL,
		maskToken(c.Server.AuthToken),
		c.Buffer,
		c.Logging,
	)
}

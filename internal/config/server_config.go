package config

import (
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/afroash/flaura/internal/care"
)

// AppConfig holds the API server configuration
type AppConfig struct {
	Server   ServerSettings   `yaml:"server"`
	Auth     AuthSettings     `yaml:"auth"`
	Database DatabaseSettings `yaml:"database"`
	Storage  StorageSettings  `yaml:"storage"`
	Catalog  CatalogSettings  `yaml:"catalog"`
	Care     care.Config      `yaml:"care"`
	Metrics  MetricsSettings  `yaml:"metrics"`
	MQTT     MQTTSettings     `yaml:"mqtt"`
	Logging  LoggingConfig    `yaml:"logging"`
}

// ServerSettings contains HTTP server configuration
type ServerSettings struct {
	Port         int           `yaml:"port" env:"SERVER_PORT"`
	Host         string        `yaml:"host" env:"SERVER_HOST"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
	// DeviceToken authenticates devices on the sensor stream
	DeviceToken    string   `yaml:"device_token" env:"DEVICE_TOKEN"`
	AllowedOrigins []string `yaml:"allowed_origins" env:"ALLOWED_ORIGINS" envSeparator:","`
}

// AuthSettings configures bearer token verification for users
type AuthSettings struct {
	JWTSecret string        `yaml:"jwt_secret" env:"JWT_SECRET"`
	Issuer    string        `yaml:"issuer" env:"JWT_ISSUER"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// DatabaseSettings selects and tunes the relational store
type DatabaseSettings struct {
	Driver        string        `yaml:"driver" env:"DB_DRIVER"`
	Path          string        `yaml:"path" env:"DB_PATH"`
	DSN           string        `yaml:"dsn" env:"DATABASE_URL"`
	BatchSize     int           `yaml:"batch_size"`
	FlushPeriod   time.Duration `yaml:"flush_period"`
	ChannelSize   int           `yaml:"channel_size"`
	RetentionDays int           `yaml:"retention_days" env:"DB_RETENTION_DAYS"`
	CleanupPeriod time.Duration `yaml:"cleanup_period"`
}

// StorageSettings sizes the in-memory live reading cache
type StorageSettings struct {
	BufferSize int `yaml:"buffer_size"`
}

// CatalogSettings configures the plant catalog client
type CatalogSettings struct {
	BaseURL    string        `yaml:"base_url" env:"CATALOG_BASE_URL"`
	APIKey     string        `yaml:"api_key" env:"CATALOG_API_KEY"`
	SearchPath string        `yaml:"search_path"`
	DetailPath string        `yaml:"detail_path"`
	Timeout    time.Duration `yaml:"timeout"`
	MaxResults int           `yaml:"max_results"`
	CacheTTL   time.Duration `yaml:"cache_ttl"`
	CacheSize  int64         `yaml:"cache_size"`
}

// MetricsSettings controls the hourly chart series
type MetricsSettings struct {
	MaxRows      int    `yaml:"max_rows"`
	DefaultHours int    `yaml:"default_hours"`
	MaxHours     int    `yaml:"max_hours"`
	Timezone     string `yaml:"timezone" env:"METRICS_TIMEZONE"`
}

// Location resolves Timezone, falling back to UTC
func (m MetricsSettings) Location() *time.Location {
	if m.Timezone == "" {
		return time.UTC
	}
	loc, err := time.LoadLocation(m.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

// MQTTSettings configures the optional broker subscription
type MQTTSettings struct {
	Enabled  bool   `yaml:"enabled" env:"MQTT_ENABLED"`
	Broker   string `yaml:"broker" env:"MQTT_BROKER"`
	ClientID string `yaml:"client_id"`
	Topic    string `yaml:"topic"`
	QoS      byte   `yaml:"qos"`
	Username string `yaml:"username" env:"MQTT_USERNAME"`
	Password string `yaml:"password" env:"MQTT_PASSWORD"`
}

// LoadAppConfig loads server configuration from a YAML file
func LoadAppConfig(path string) (*AppConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	// care profiles start from the reference constants so a partial
	// override only replaces the keys it names
	cfg := AppConfig{Care: care.DefaultConfig()}
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

// ApplyDefaults sets default values for server config
func (ac *AppConfig) ApplyDefaults() {
	if ac.Server.Port == 0 {
		ac.Server.Port = 8081
	}
	if ac.Server.Host == "" {
		ac.Server.Host = "localhost"
	}
	if ac.Server.ReadTimeout == 0 {
		ac.Server.ReadTimeout = 60 * time.Second
	}
	if ac.Server.WriteTimeout == 0 {
		ac.Server.WriteTimeout = 10 * time.Second
	}

	if ac.Auth.TokenTTL == 0 {
		ac.Auth.TokenTTL = 24 * time.Hour
	}

	if ac.Database.Driver == "" {
		ac.Database.Driver = "sqlite"
	}
	if ac.Database.Path == "" {
		ac.Database.Path = "./data/flaura.db"
	}
	if ac.Database.BatchSize == 0 {
		ac.Database.BatchSize = 50
	}
	if ac.Database.FlushPeriod == 0 {
		ac.Database.FlushPeriod = 5 * time.Second
	}
	if ac.Database.ChannelSize == 0 {
		ac.Database.ChannelSize = 1000
	}
	if ac.Database.CleanupPeriod == 0 {
		ac.Database.CleanupPeriod = time.Hour
	}

	if ac.Storage.BufferSize == 0 {
		ac.Storage.BufferSize = 100
	}

	if ac.Catalog.BaseURL == "" {
		ac.Catalog.BaseURL = "https://zylalabs.com"
	}
	if ac.Catalog.SearchPath == "" {
		ac.Catalog.SearchPath = "/api/774/house+plants+database+api/509/search"
	}
	if ac.Catalog.DetailPath == "" {
		ac.Catalog.DetailPath = "/api/774/house+plants+database+api/510/get+plant+by+id"
	}
	if ac.Catalog.Timeout == 0 {
		ac.Catalog.Timeout = 10 * time.Second
	}
	if ac.Catalog.MaxResults == 0 {
		ac.Catalog.MaxResults = 10
	}
	if ac.Catalog.CacheTTL == 0 {
		ac.Catalog.CacheTTL = time.Hour
	}
	if ac.Catalog.CacheSize == 0 {
		ac.Catalog.CacheSize = 1000
	}

	defaults := care.DefaultConfig()
	fillProfile(&ac.Care.Temperature, defaults.Temperature)
	fillProfile(&ac.Care.Humidity, defaults.Humidity)
	fillProfile(&ac.Care.Brightness, defaults.Brightness)
	if ac.Care.SignificantDeviationPct == 0 {
		ac.Care.SignificantDeviationPct = defaults.SignificantDeviationPct
	}
	if ac.Care.LuxPerUnit == 0 {
		ac.Care.LuxPerUnit = defaults.LuxPerUnit
	}

	if ac.Metrics.MaxRows == 0 {
		ac.Metrics.MaxRows = 24
	}
	if ac.Metrics.DefaultHours == 0 {
		ac.Metrics.DefaultHours = 24
	}
	if ac.Metrics.MaxHours == 0 {
		ac.Metrics.MaxHours = 168
	}

	if ac.MQTT.ClientID == "" {
		ac.MQTT.ClientID = "flaura-server"
	}
	if ac.MQTT.Topic == "" {
		ac.MQTT.Topic = "flaura/readings/+"
	}
	if ac.MQTT.QoS == 0 {
		ac.MQTT.QoS = 1
	}

	ac.Logging.applyDefaults()
}

// fillProfile completes a profile that was built without the reference
// constants. An untouched profile becomes def.
func fillProfile(p *care.Profile, def care.Profile) {
	if *p == (care.Profile{}) {
		*p = def
		return
	}
	if p.Mode == "" {
		p.Mode = def.Mode
	}
	if p.Default == (care.Bands{}) {
		p.Default = def.Default
	}
}

// OverrideFromEnv overrides config from environment variables
func (ac *AppConfig) OverrideFromEnv() error {
	return overrideFromEnv(ac)
}

// Validate checks if server configuration is valid
func (ac *AppConfig) Validate() error {
	if ac.Server.Port < 1 || ac.Server.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if ac.Server.DeviceToken == "" {
		return fmt.Errorf("device token is required")
	}
	if ac.Auth.JWTSecret == "" {
		return fmt.Errorf("jwt secret is required")
	}
	if len(ac.Auth.JWTSecret) < 16 {
		return fmt.Errorf("jwt secret must be at least 16 characters")
	}

	switch strings.ToLower(ac.Database.Driver) {
	case "sqlite", "sqlite3":
		if ac.Database.Path == "" {
			return fmt.Errorf("database path is required for sqlite")
		}
	case "postgres", "postgresql":
		if ac.Database.DSN == "" {
			return fmt.Errorf("database dsn is required for postgres")
		}
	default:
		return fmt.Errorf("unsupported database driver %q", ac.Database.Driver)
	}
	if ac.Database.RetentionDays < 0 {
		return fmt.Errorf("retention days must not be negative")
	}

	if ac.Storage.BufferSize < 10 {
		return fmt.Errorf("buffer size must be at least 10")
	}

	if _, err := url.ParseRequestURI(ac.Catalog.BaseURL); err != nil {
		return fmt.Errorf("invalid catalog base url: %w", err)
	}
	if ac.Catalog.MaxResults < 1 {
		return fmt.Errorf("catalog max results must be positive")
	}

	if err := ac.Care.Validate(); err != nil {
		return fmt.Errorf("invalid care config: %w", err)
	}

	if ac.Metrics.MaxRows < 1 {
		return fmt.Errorf("metrics max rows must be positive")
	}
	if ac.Metrics.DefaultHours < 1 || ac.Metrics.DefaultHours > ac.Metrics.MaxHours {
		return fmt.Errorf("metrics default hours must be between 1 and max hours")
	}
	if ac.Metrics.Timezone != "" {
		if _, err := time.LoadLocation(ac.Metrics.Timezone); err != nil {
			return fmt.Errorf("invalid metrics timezone: %w", err)
		}
	}

	if ac.MQTT.Enabled {
		if ac.MQTT.Broker == "" {
			return fmt.Errorf("mqtt broker is required when mqtt is enabled")
		}
		if ac.MQTT.QoS > 2 {
			return fmt.Errorf("mqtt qos must be 0, 1 or 2")
		}
	}

	return ac.Logging.validate()
}

// Addr returns the listen address
func (ac *AppConfig) Addr() string {
	return fmt.Sprintf("%s:%d", ac.Server.Host, ac.Server.Port)
}

// DatabaseDSN returns the data source for the configured driver
func (ac *AppConfig) DatabaseDSN() string {
	switch strings.ToLower(ac.Database.Driver) {
	case "postgres", "postgresql":
		return ac.Database.DSN
	default:
		return ac.Database.Path
	}
}

// String returns a safe string representation (hides secrets)
func (ac *AppConfig) String() string {
	return fmt.Sprintf("AppConfig{Server: [Addr=%s, DeviceToken=%s], Auth: [Secret=%s], Database: [Driver=%s, Retention=%dd], Catalog: [URL=%s, Key=%s], MQTT: [Enabled=%t, Broker=%s], Logging: %+v}",
		ac.Addr(),
		maskToken(ac.Server.DeviceToken),
		maskToken(ac.Auth.JWTSecret),
		ac.Database.Driver,
		ac.Database.RetentionDays,
		ac.Catalog.BaseURL,
		maskToken(ac.Catalog.APIKey),
		ac.MQTT.Enabled,
		ac.MQTT.Broker,
		ac.Logging,
	)
}

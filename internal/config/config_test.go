package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write %s: %v", name, err)
	}
	return path
}

func TestLoadConfig(t *testing.T) {
	path := writeFile(t, "sensor.yaml", `
sensor:
  id: "balcony-pi"
  location: "Balcony"
  gpio_pin: 4
  read_interval: 30s
  light_path: "/sys/bus/iio/devices/iio:device0/in_illuminance_raw"
  light_scale: 10

server:
  url: "wss://example.com/sensor-stream"
  auth_token: "test-token-12345"
  max_reconnect_interval: 5m

buffer:
  size: 500
  drop_oldest: true

logging:
  level: "info"
  format: "json"
  file_path: "/var/log/sensor.log"
  max_size_mb: 10
  max_backups: 3
`)

	cfg, err := LoadConfig(path)
	if err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if cfg.Sensor.ID != "balcony-pi" || cfg.Sensor.GPIOPin != 4 {
		t.Errorf("Sensor = %+v", cfg.Sensor)
	}
	if cfg.Sensor.LightScale != 10 || !strings.HasSuffix(cfg.Sensor.LightPath, "in_illuminance_raw") {
		t.Errorf("light settings = %q scale %v", cfg.Sensor.LightPath, cfg.Sensor.LightScale)
	}
	if cfg.Server.MaxReconnectInterval != 5*time.Minute || cfg.Server.PingInterval != 30*time.Second {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Buffer.Size != 500 || cfg.Logging.MaxBackups != 3 {
		t.Errorf("Buffer = %+v, Logging = %+v", cfg.Buffer, cfg.Logging)
	}
}

func TestLoadConfig_Errors(t *testing.T) {
	if _, err := LoadConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}

	bad := writeFile(t, "bad.yaml", "sensor: [unclosed")
	if _, err := LoadConfig(bad); err == nil {
		t.Error("expected error for malformed yaml")
	}

	invalid := writeFile(t, "invalid.yaml", "sensor:\n  id: x\n")
	if _, err := LoadConfig(invalid); err == nil {
		t.Error("expected validation error")
	}
}

func TestConfig_ApplyDefaults(t *testing.T) {
	cfg := &Config{}
	cfg.ApplyDefaults()

	if cfg.Sensor.Type != "DHT11" {
		t.Errorf("Default Sensor.Type = %v, want DHT11", cfg.Sensor.Type)
	}
	if cfg.Sensor.ReadInterval != 30*time.Second {
		t.Errorf("Default ReadInterval = %v, want 30s", cfg.Sensor.ReadInterval)
	}
	if cfg.Buffer.Size != 1000 || !cfg.Buffer.DropOldest {
		t.Errorf("Default Buffer = %+v", cfg.Buffer)
	}
	if cfg.Server.BatchSize != 50 || cfg.Server.FlushInterval != 5*time.Second {
		t.Errorf("Default Server = %+v", cfg.Server)
	}
	if cfg.Logging.Level != "info" || cfg.Logging.Format != "json" {
		t.Errorf("Default Logging = %+v", cfg.Logging)
	}
}

func TestConfig_OverrideFromEnv(t *testing.T) {
	t.Setenv("SENSOR_ID", "env-sensor-01")
	t.Setenv("SERVER_URL", "wss://env-server.com/ws")
	t.Setenv("SERVER_AUTH_TOKEN", "env-token-xyz")
	t.Setenv("SENSOR_READ_INTERVAL", "45s")
	t.Setenv("LOG_LEVEL", "debug")

	cfg := &Config{
		Sensor:  SensorConfig{ID: "config-sensor", Location: "Kitchen"},
		Server:  ServerConfig{URL: "wss://config-server.com/ws", AuthToken: "config-token"},
		Logging: LoggingConfig{Level: "info"},
	}

	if err := cfg.OverrideFromEnv(); err != nil {
		t.Fatalf("OverrideFromEnv failed: %v", err)
	}

	if cfg.Sensor.ID != "env-sensor-01" {
		t.Errorf("Sensor.ID = %v, want env-sensor-01", cfg.Sensor.ID)
	}
	if cfg.Sensor.Location != "Kitchen" {
		t.Errorf("Sensor.Location = %v, want unchanged Kitchen", cfg.Sensor.Location)
	}
	if cfg.Sensor.ReadInterval != 45*time.Second {
		t.Errorf("Sensor.ReadInterval = %v, want 45s", cfg.Sensor.ReadInterval)
	}
	if cfg.Server.URL != "wss://env-server.com/ws" || cfg.Server.AuthToken != "env-token-xyz" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Logging.Level != "debug" {
		t.Errorf("Logging.Level = %v, want debug", cfg.Logging.Level)
	}
}

func TestConfig_OverrideFromEnv_Invalid(t *testing.T) {
	t.Setenv("SENSOR_GPIO_PIN", "four")

	cfg := &Config{}
	if err := cfg.OverrideFromEnv(); err == nil {
		t.Error("expected error for non-numeric SENSOR_GPIO_PIN")
	}
}

func validConfig() Config {
	cfg := Config{
		Sensor: SensorConfig{ID: "sensor-01", GPIOPin: 4},
		Server: ServerConfig{URL: "wss://example.com/ws", AuthToken: "token123"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *Config)
		wantErr bool
	}{
		{name: "valid config", modify: func(c *Config) {}},
		{name: "missing sensor ID", modify: func(c *Config) { c.Sensor.ID = "" }, wantErr: true},
		{name: "invalid GPIO pin", modify: func(c *Config) { c.Sensor.GPIOPin = 0 }, wantErr: true},
		{name: "missing server URL", modify: func(c *Config) { c.Server.URL = "" }, wantErr: true},
		{name: "missing auth token", modify: func(c *Config) { c.Server.AuthToken = "" }, wantErr: true},
		{name: "invalid server URL scheme", modify: func(c *Config) { c.Server.URL = "http://example.com/ws" }, wantErr: true},
		{name: "buffer size too small", modify: func(c *Config) { c.Buffer.Size = 5 }, wantErr: true},
		{name: "read interval too short", modify: func(c *Config) { c.Sensor.ReadInterval = 500 * time.Millisecond }, wantErr: true},
		{name: "negative light scale", modify: func(c *Config) { c.Sensor.LightScale = -1 }, wantErr: true},
		{name: "unknown log level", modify: func(c *Config) { c.Logging.Level = "loud" }, wantErr: true},
		{name: "unknown log format", modify: func(c *Config) { c.Logging.Format = "xml" }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_String_MasksToken(t *testing.T) {
	cfg := validConfig()
	cfg.Server.AuthToken = "secret-token-12345"

	str := cfg.String()
	if strings.Contains(str, "secret-token-12345") {
		t.Error("String() should mask auth token")
	}
	if !strings.Contains(str, "secr****") {
		t.Error("String() should contain masked token")
	}
}

func TestLoadDotEnv(t *testing.T) {
	path := writeFile(t, ".env", "FLAURA_TEST_DOTENV=from-file\nFLAURA_TEST_PRESET=from-file\n")
	t.Setenv("FLAURA_TEST_PRESET", "from-env")
	t.Cleanup(func() { os.Unsetenv("FLAURA_TEST_DOTENV") })

	if err := LoadDotEnv(path, filepath.Join(t.TempDir(), "missing.env")); err != nil {
		t.Fatalf("LoadDotEnv failed: %v", err)
	}

	if got := os.Getenv("FLAURA_TEST_DOTENV"); got != "from-file" {
		t.Errorf("FLAURA_TEST_DOTENV = %q", got)
	}
	if got := os.Getenv("FLAURA_TEST_PRESET"); got != "from-env" {
		t.Errorf("FLAURA_TEST_PRESET = %q, existing env should win", got)
	}
}

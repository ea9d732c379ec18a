package config

import (
	"strings"
	"testing"
	"time"

	"github.com/afroash/flaura/internal/care"
)

func validAppConfig() AppConfig {
	cfg := AppConfig{
		Server: ServerSettings{DeviceToken: "device-secret"},
		Auth:   AuthSettings{JWTSecret: "0123456789abcdef0123"},
	}
	cfg.ApplyDefaults()
	return cfg
}

func TestLoadAppConfig(t *testing.T) {
	path := writeFile(t, "server.yaml", `
server:
  port: 9000
  host: "0.0.0.0"
  device_token: "device-secret"
  allowed_origins: ["http://localhost:3000"]
auth:
  jwt_secret: "0123456789abcdef0123"
database:
  driver: sqlite
  path: /tmp/flaura.db
  retention_days: 90
catalog:
  api_key: "zyla-key"
care:
  significant_deviation_pct: 10
  temperature:
    mode: additive
    optimal_delta: 1
    warning_delta: 2
    critical_delta: 2
    default:
      optimal: {min: 19, max: 24}
      warning: {min: 17, max: 26}
      critical: {min: 14, max: 29}
metrics:
  timezone: "Europe/London"
mqtt:
  enabled: true
  broker: "tcp://localhost:1883"
`)

	cfg, err := LoadAppConfig(path)
	if err != nil {
		t.Fatalf("LoadAppConfig failed: %v", err)
	}

	if cfg.Addr() != "0.0.0.0:9000" {
		t.Errorf("Addr() = %q", cfg.Addr())
	}
	if len(cfg.Server.AllowedOrigins) != 1 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.DatabaseDSN() != "/tmp/flaura.db" || cfg.Database.RetentionDays != 90 {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Catalog.MaxResults != 10 || !strings.Contains(cfg.Catalog.DetailPath, "get+plant+by+id") {
		t.Errorf("Catalog = %+v", cfg.Catalog)
	}

	if cfg.Care.SignificantDeviationPct != 10 || cfg.Care.Temperature.OptimalDelta != 1 {
		t.Errorf("Care = %+v", cfg.Care)
	}
	if cfg.Care.Brightness.Mode != care.Multiplicative {
		t.Errorf("brightness profile not defaulted: %+v", cfg.Care.Brightness)
	}

	if cfg.Metrics.Location().String() != "Europe/London" || cfg.Metrics.MaxRows != 24 {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.MQTT.Topic != "flaura/readings/+" || cfg.MQTT.QoS != 1 {
		t.Errorf("MQTT = %+v", cfg.MQTT)
	}
}

func TestAppConfig_ApplyDefaults(t *testing.T) {
	cfg := validAppConfig()

	if cfg.Server.Port != 8081 || cfg.Server.Host != "localhost" {
		t.Errorf("Server = %+v", cfg.Server)
	}
	if cfg.Database.Driver != "sqlite" || cfg.Database.RetentionDays != 0 {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if cfg.Database.FlushPeriod != 5*time.Second {
		t.Errorf("FlushPeriod = %v", cfg.Database.FlushPeriod)
	}
	if cfg.Care != care.DefaultConfig() {
		t.Errorf("Care = %+v, want defaults", cfg.Care)
	}
	if cfg.Metrics.DefaultHours != 24 || cfg.Metrics.MaxHours != 168 {
		t.Errorf("Metrics = %+v", cfg.Metrics)
	}
	if cfg.Metrics.Location() != time.UTC {
		t.Errorf("Location() = %v, want UTC", cfg.Metrics.Location())
	}
}

func TestLoadAppConfig_PartialCareProfile(t *testing.T) {
	base := `
server:
  device_token: "device-secret"
auth:
  jwt_secret: "0123456789abcdef0123"
care:
`
	defaults := care.DefaultConfig()

	tests := []struct {
		name    string
		care    string
		wantErr bool
		check   func(t *testing.T, c care.Config)
	}{
		{
			name: "delta only",
			care: "  temperature:\n    optimal_delta: 1\n",
			check: func(t *testing.T, c care.Config) {
				p := c.Temperature
				if p.OptimalDelta != 1 {
					t.Errorf("OptimalDelta = %v, want 1", p.OptimalDelta)
				}
				if p.Mode != care.Additive || p.WarningDelta != 3 || p.Default != defaults.Temperature.Default {
					t.Errorf("unset keys lost their defaults: %+v", p)
				}
			},
		},
		{
			name: "mode without default bands",
			care: "  temperature:\n    mode: additive\n    optimal_delta: 1\n",
			check: func(t *testing.T, c care.Config) {
				if c.Temperature.Default != defaults.Temperature.Default {
					t.Errorf("Default = %+v, want reference bands", c.Temperature.Default)
				}
				ev := care.NewEvaluator(c)
				if m := ev.Evaluate(care.Temperature, 22, nil); m.Status != care.StatusOptimal {
					t.Errorf("22°C without ideal = %s, want optimal", m.Status)
				}
			},
		},
		{
			name:    "empty optimal band",
			care:    "  humidity:\n    default:\n      optimal: {min: 0, max: 0}\n      warning: {min: 0, max: 0}\n      critical: {min: 0, max: 0}\n",
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadAppConfig(writeFile(t, "server.yaml", base+tt.care))
			if (err != nil) != tt.wantErr {
				t.Fatalf("LoadAppConfig() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.check != nil {
				tt.check(t, cfg.Care)
				if cfg.Care.Brightness != defaults.Brightness {
					t.Errorf("untouched brightness profile changed: %+v", cfg.Care.Brightness)
				}
			}
		})
	}
}

func TestAppConfig_OverrideFromEnv(t *testing.T) {
	t.Setenv("SERVER_PORT", "9191")
	t.Setenv("DB_DRIVER", "postgres")
	t.Setenv("DATABASE_URL", "postgres://flaura@localhost/flaura?sslmode=disable")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("JWT_SECRET", "env-secret-0123456789")

	cfg := validAppConfig()
	if err := cfg.OverrideFromEnv(); err != nil {
		t.Fatalf("OverrideFromEnv failed: %v", err)
	}

	if cfg.Server.Port != 9191 {
		t.Errorf("Port = %d, want 9191", cfg.Server.Port)
	}
	if cfg.Database.Driver != "postgres" || !strings.HasPrefix(cfg.DatabaseDSN(), "postgres://") {
		t.Errorf("Database = %+v", cfg.Database)
	}
	if len(cfg.Server.AllowedOrigins) != 2 {
		t.Errorf("AllowedOrigins = %v", cfg.Server.AllowedOrigins)
	}
	if cfg.Auth.JWTSecret != "env-secret-0123456789" {
		t.Errorf("JWTSecret not overridden")
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("Validate() error = %v", err)
	}
}

func TestAppConfig_Validate(t *testing.T) {
	tests := []struct {
		name    string
		modify  func(c *AppConfig)
		wantErr bool
	}{
		{name: "valid", modify: func(c *AppConfig) {}},
		{name: "bad port", modify: func(c *AppConfig) { c.Server.Port = 70000 }, wantErr: true},
		{name: "missing device token", modify: func(c *AppConfig) { c.Server.DeviceToken = "" }, wantErr: true},
		{name: "missing jwt secret", modify: func(c *AppConfig) { c.Auth.JWTSecret = "" }, wantErr: true},
		{name: "short jwt secret", modify: func(c *AppConfig) { c.Auth.JWTSecret = "short" }, wantErr: true},
		{name: "unknown driver", modify: func(c *AppConfig) { c.Database.Driver = "mysql" }, wantErr: true},
		{name: "postgres without dsn", modify: func(c *AppConfig) { c.Database.Driver = "postgres" }, wantErr: true},
		{name: "negative retention", modify: func(c *AppConfig) { c.Database.RetentionDays = -1 }, wantErr: true},
		{name: "small buffer", modify: func(c *AppConfig) { c.Storage.BufferSize = 5 }, wantErr: true},
		{name: "bad catalog url", modify: func(c *AppConfig) { c.Catalog.BaseURL = "not a url" }, wantErr: true},
		{name: "bad care mode", modify: func(c *AppConfig) { c.Care.Temperature.Mode = "geometric" }, wantErr: true},
		{name: "default hours above max", modify: func(c *AppConfig) { c.Metrics.DefaultHours = 200 }, wantErr: true},
		{name: "bad timezone", modify: func(c *AppConfig) { c.Metrics.Timezone = "Mars/Olympus" }, wantErr: true},
		{name: "mqtt without broker", modify: func(c *AppConfig) { c.MQTT.Enabled = true }, wantErr: true},
		{name: "mqtt bad qos", modify: func(c *AppConfig) { c.MQTT.Enabled = true; c.MQTT.Broker = "tcp://b:1883"; c.MQTT.QoS = 3 }, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validAppConfig()
			tt.modify(&cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestAppConfig_String_MasksSecrets(t *testing.T) {
	cfg := validAppConfig()
	cfg.Catalog.APIKey = "zyla-secret-key"

	str := cfg.String()
	for _, secret := range []string{"device-secret", "0123456789abcdef0123", "zyla-secret-key"} {
		if strings.Contains(str, secret) {
			t.Errorf("String() leaks %q", secret)
		}
	}
}

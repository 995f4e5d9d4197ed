package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

const testSecret = "test-secret-key-at-least-32-chars!"

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

func TestLoad_ValidConfig(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
  wal_mode: true
  busy_timeout: 5
api:
  host: "127.0.0.1"
  port: 9000
  pagination:
    default_page_size: 25
    max_page_size: 50
mqtt:
  enabled: true
  broker:
    host: "broker.local"
  topic_prefix: "farm"
security:
  jwt:
    secret: "test-secret-key-at-least-32-chars!"
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Database.Path != "/tmp/test.db" {
		t.Errorf("Database.Path = %q, want %q", cfg.Database.Path, "/tmp/test.db")
	}
	if cfg.API.Port != 9000 {
		t.Errorf("API.Port = %d, want 9000", cfg.API.Port)
	}
	if cfg.API.Pagination.DefaultPageSize != 25 || cfg.API.Pagination.MaxPageSize != 50 {
		t.Errorf("Pagination = %+v, want 25/50", cfg.API.Pagination)
	}
	if cfg.MQTT.Broker.Host != "broker.local" {
		t.Errorf("MQTT.Broker.Host = %q, want %q", cfg.MQTT.Broker.Host, "broker.local")
	}
	// Defaults survive a partial file.
	if cfg.MQTT.Broker.Port != 1883 {
		t.Errorf("MQTT.Broker.Port = %d, want default 1883", cfg.MQTT.Broker.Port)
	}
	if cfg.Security.JWT.AccessTokenTTL != 5 {
		t.Errorf("AccessTokenTTL = %d, want default 5", cfg.Security.JWT.AccessTokenTTL)
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/path/config.yaml")
	if err == nil {
		t.Error("Load() expected error for missing file, got nil")
	}
}

func TestLoad_InvalidYAML(t *testing.T) {
	path := writeConfig(t, "invalid: [yaml: content")

	_, err := Load(path)
	if err == nil {
		t.Error("Load() expected error for invalid YAML, got nil")
	}
}

func TestLoad_MissingSecret(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
`)

	_, err := Load(path)
	if err == nil {
		t.Fatal("Load() expected validation error for missing jwt secret, got nil")
	}
	if !strings.Contains(err.Error(), "HYDRO_JWT_SECRET") {
		t.Errorf("error = %v, want hint about HYDRO_JWT_SECRET", err)
	}
}

func TestLoad_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/from-file.db"
`)
	t.Setenv("HYDRO_DATABASE_PATH", "/tmp/from-env.db")
	t.Setenv("HYDRO_API_PORT", "8088")
	t.Setenv("HYDRO_JWT_SECRET", testSecret)
	t.Setenv("HYDRO_MQTT_ENABLED", "true")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Database.Path != "/tmp/from-env.db" {
		t.Errorf("Database.Path = %q, want env override", cfg.Database.Path)
	}
	if cfg.API.Port != 8088 {
		t.Errorf("API.Port = %d, want 8088", cfg.API.Port)
	}
	if !cfg.MQTT.Enabled {
		t.Error("MQTT.Enabled = false, want true from env")
	}
}

func TestLoad_EnvOverrideNotANumber(t *testing.T) {
	path := writeConfig(t, "security:\n  jwt:\n    secret: \""+testSecret+"\"\n")
	t.Setenv("HYDRO_API_PORT", "eighty")

	if _, err := Load(path); err == nil {
		t.Error("Load() expected error for non-numeric HYDRO_API_PORT, got nil")
	}
}

func TestLoad_DotEnvFile(t *testing.T) {
	path := writeConfig(t, `
database:
  path: "/tmp/test.db"
`)
	envFile := filepath.Join(filepath.Dir(path), ".env")
	if err := os.WriteFile(envFile, []byte("HYDRO_JWT_SECRET="+testSecret+"\n"), 0600); err != nil {
		t.Fatalf("failed to write .env: %v", err)
	}
	// godotenv sets the variable on the process; make sure it is cleared afterwards.
	t.Setenv("HYDRO_JWT_SECRET", "")
	os.Unsetenv("HYDRO_JWT_SECRET")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.Security.JWT.Secret != testSecret {
		t.Errorf("JWT.Secret = %q, want value from .env", cfg.Security.JWT.Secret)
	}
}

func TestConfig_Validate(t *testing.T) {
	valid := func() *Config {
		cfg := defaultConfig()
		cfg.Security.JWT.Secret = testSecret
		return cfg
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{name: "valid config", mutate: func(*Config) {}},
		{name: "missing database path", mutate: func(c *Config) { c.Database.Path = "" }, wantErr: true},
		{name: "port zero", mutate: func(c *Config) { c.API.Port = 0 }, wantErr: true},
		{name: "port too high", mutate: func(c *Config) { c.API.Port = 70000 }, wantErr: true},
		{name: "invalid qos", mutate: func(c *Config) { c.MQTT.QoS = 3 }, wantErr: true},
		{name: "short secret", mutate: func(c *Config) { c.Security.JWT.Secret = "short" }, wantErr: true},
		{name: "zero page size", mutate: func(c *Config) { c.API.Pagination.DefaultPageSize = 0 }, wantErr: true},
		{name: "max below default", mutate: func(c *Config) { c.API.Pagination.MaxPageSize = 5 }, wantErr: true},
		{name: "influx enabled without url", mutate: func(c *Config) { c.InfluxDB.Enabled = true }, wantErr: true},
		{name: "seed user without password", mutate: func(c *Config) { c.Security.SeedUser.Username = "grower" }, wantErr: false},
		{name: "short seed password", mutate: func(c *Config) { c.Security.SeedUser.Password = "short" }, wantErr: true},
		{name: "mqtt enabled without prefix", mutate: func(c *Config) {
			c.MQTT.Enabled = true
			c.MQTT.TopicPrefix = ""
		}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid()
			tt.mutate(cfg)
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestConfig_Durations(t *testing.T) {
	cfg := defaultConfig()
	if got := cfg.GetReadTimeout().Seconds(); got != 30 {
		t.Errorf("GetReadTimeout() = %vs, want 30s", got)
	}
	if got := cfg.AccessTokenTTL().Minutes(); got != 5 {
		t.Errorf("AccessTokenTTL() = %vm, want 5m", got)
	}
	if got := cfg.RefreshTokenTTL().Hours(); got != 24 {
		t.Errorf("RefreshTokenTTL() = %vh, want 24h", got)
	}
}

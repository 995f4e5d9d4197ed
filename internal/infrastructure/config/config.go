package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix for every environment variable override.
const EnvPrefix = "HYDRO_"

// Config is the root configuration structure for Hydroponics Core.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// DatabaseConfig contains SQLite database settings.
type DatabaseConfig struct {
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host       string           `yaml:"host"`
	Port       int              `yaml:"port"`
	Timeouts   APITimeoutConfig `yaml:"timeouts"`
	CORS       CORSConfig       `yaml:"cors"`
	Pagination PaginationConfig `yaml:"pagination"`
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

// PaginationConfig controls list page sizes.
type PaginationConfig struct {
	DefaultPageSize int `yaml:"default_page_size"`
	MaxPageSize     int `yaml:"max_page_size"`
}

// WebSocketConfig contains live feed settings.
type WebSocketConfig struct {
	MaxMessageSize int `yaml:"max_message_size"`
	PingInterval   int `yaml:"ping_interval"`
	PongTimeout    int `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
// Sensor ingestion is disabled unless Enabled is set.
type MQTTConfig struct {
	Enabled     bool                `yaml:"enabled"`
	Broker      MQTTBrokerConfig    `yaml:"broker"`
	Auth        MQTTAuthConfig      `yaml:"auth"`
	QoS         int                 `yaml:"qos"`
	Reconnect   MQTTReconnectConfig `yaml:"reconnect"`
	TopicPrefix string              `yaml:"topic_prefix"`
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
	MaxAttempts  int `yaml:"max_attempts"`
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

// SecurityConfig contains security settings.
type SecurityConfig struct {
	JWT      JWTConfig      `yaml:"jwt"`
	SeedUser SeedUserConfig `yaml:"seed_user"`
}

// JWTConfig contains JWT token settings. TTLs are in minutes.
type JWTConfig struct {
	Secret          string `yaml:"secret"`
	AccessTokenTTL  int    `yaml:"access_token_ttl"`
	RefreshTokenTTL int    `yaml:"refresh_token_ttl"`
}

// SeedUserConfig names an account created on first boot when no users exist.
// Leave Username empty to skip seeding. An empty Password means one is
// generated and logged once.
type SeedUserConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. A .env file next to the config file, if present (never overrides the real environment)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: HYDRO_SECTION_KEY
// For example: HYDRO_DATABASE_PATH, HYDRO_API_PORT
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
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

// loadDotEnv populates the process environment from a dotenv file.
// Variables already present in the environment keep their value.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("loading %s: %w", path, err)
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			Path:        "./data/hydro.db",
			WALMode:     true,
			BusyTimeout: 5,
		},
		API: APIConfig{
			Host: "0.0.0.0",
			Port: 8000,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
			Pagination: PaginationConfig{
				DefaultPageSize: 10,
				MaxPageSize:     100,
			},
		},
		WebSocket: WebSocketConfig{
			MaxMessageSize: 8192,
			PingInterval:   30,
			PongTimeout:    10,
		},
		MQTT: MQTTConfig{
			Broker: MQTTBrokerConfig{
				Host:     "localhost",
				Port:     1883,
				ClientID: "hydrocore",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			TopicPrefix: "hydroponics",
		},
		InfluxDB: InfluxDBConfig{
			Org:           "hydroponics",
			Bucket:        "measurements",
			BatchSize:     100,
			FlushInterval: 10,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Output: "stdout",
		},
		Security: SecurityConfig{
			JWT: JWTConfig{
				AccessTokenTTL:  5,
				RefreshTokenTTL: 1440,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Numeric and boolean variables that fail to parse are reported as errors.
func applyEnvOverrides(cfg *Config) error {
	var errs []string

	str := func(key string, dst *string) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			*dst = v
		}
	}
	num := func(key string, dst *int) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %q is not an integer", EnvPrefix, key, v))
				return
			}
			*dst = n
		}
	}
	flag := func(key string, dst *bool) {
		if v := os.Getenv(EnvPrefix + key); v != "" {
			b, err := strconv.ParseBool(v)
			if err != nil {
				errs = append(errs, fmt.Sprintf("%s%s: %q is not a boolean", EnvPrefix, key, v))
				return
			}
			*dst = b
		}
	}

	// Database
	str("DATABASE_PATH", &cfg.Database.Path)

	// API
	str("API_HOST", &cfg.API.Host)
	num("API_PORT", &cfg.API.Port)

	// MQTT
	flag("MQTT_ENABLED", &cfg.MQTT.Enabled)
	str("MQTT_HOST", &cfg.MQTT.Broker.Host)
	num("MQTT_PORT", &cfg.MQTT.Broker.Port)
	str("MQTT_USERNAME", &cfg.MQTT.Auth.Username)
	str("MQTT_PASSWORD", &cfg.MQTT.Auth.Password)

	// InfluxDB
	flag("INFLUXDB_ENABLED", &cfg.InfluxDB.Enabled)
	str("INFLUXDB_URL", &cfg.InfluxDB.URL)
	str("INFLUXDB_TOKEN", &cfg.InfluxDB.Token)

	// Logging
	str("LOG_LEVEL", &cfg.Logging.Level)

	// Security - JWT secret (always override in production)
	str("JWT_SECRET", &cfg.Security.JWT.Secret)
	str("SEED_USERNAME", &cfg.Security.SeedUser.Username)
	str("SEED_PASSWORD", &cfg.Security.SeedUser.Password)

	if len(errs) > 0 {
		return fmt.Errorf("environment overrides: %s", strings.Join(errs, "; "))
	}
	return nil
}

// Validate checks the configuration for errors and security issues.
func (c *Config) Validate() error {
	var errs []string

	if c.Database.Path == "" {
		errs = append(errs, "database.path is required")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.Pagination.DefaultPageSize < 1 {
		errs = append(errs, "api.pagination.default_page_size must be at least 1")
	}
	if c.API.Pagination.MaxPageSize < c.API.Pagination.DefaultPageSize {
		errs = append(errs, "api.pagination.max_page_size must not be smaller than default_page_size")
	}

	if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
		errs = append(errs, "mqtt.qos must be 0, 1, or 2")
	}
	if c.MQTT.Enabled && c.MQTT.TopicPrefix == "" {
		errs = append(errs, "mqtt.topic_prefix is required when mqtt is enabled")
	}

	if c.InfluxDB.Enabled && c.InfluxDB.URL == "" {
		errs = append(errs, "influxdb.url is required when influxdb is enabled")
	}

	// Anyone holding the secret can mint tokens for any owner.
	const minJWTSecretLength = 32
	const minSeedPasswordLength = 8
	if c.Security.JWT.Secret == "" {
		errs = append(errs, "security.jwt.secret is required (set HYDRO_JWT_SECRET environment variable)")
	} else if len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
	}
	if c.Security.JWT.AccessTokenTTL < 1 || c.Security.JWT.RefreshTokenTTL < 1 {
		errs = append(errs, "security.jwt token TTLs must be positive")
	}
	if p := c.Security.SeedUser.Password; p != "" && len(p) < minSeedPasswordLength {
		errs = append(errs, "security.seed_user.password must be at least 8 characters")
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

// AccessTokenTTL returns the access token lifetime.
func (c *Config) AccessTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.AccessTokenTTL) * time.Minute
}

// RefreshTokenTTL returns the refresh token lifetime.
func (c *Config) RefreshTokenTTL() time.Duration {
	return time.Duration(c.Security.JWT.RefreshTokenTTL) * time.Minute
}

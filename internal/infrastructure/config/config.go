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

// Supported values for enumerated settings.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	EnvDevelopment = "development"
	EnvProduction  = "production"

	// minJWTSecretLength is the shortest HS256 secret accepted.
	minJWTSecretLength = 32
)

// Config is the root configuration structure for devicehub.
// All configuration is loaded from YAML and can be overridden by environment variables.
type Config struct {
	Service   ServiceConfig   `yaml:"service"`
	Database  DatabaseConfig  `yaml:"database"`
	API       APIConfig       `yaml:"api"`
	WebSocket WebSocketConfig `yaml:"websocket"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	AMQP      AMQPConfig      `yaml:"amqp"`
	InfluxDB  InfluxDBConfig  `yaml:"influxdb"`
	Logging   LoggingConfig   `yaml:"logging"`
	Security  SecurityConfig  `yaml:"security"`
}

// ServiceConfig identifies the running instance.
type ServiceConfig struct {
	Name string `yaml:"name"`
	// Environment is "development" or "production". Development responses
	// carry error details on internal failures.
	Environment string `yaml:"environment"`
}

// IsDevelopment reports whether the service runs in development mode.
func (s ServiceConfig) IsDevelopment() bool {
	return s.Environment == EnvDevelopment
}

// DatabaseConfig selects and configures the SQL store.
type DatabaseConfig struct {
	// Driver is "sqlite" (default) or "postgres".
	Driver string `yaml:"driver"`

	// Path is the SQLite database file. Ignored for postgres.
	Path        string `yaml:"path"`
	WALMode     bool   `yaml:"wal_mode"`
	BusyTimeout int    `yaml:"busy_timeout"`

	// DSN is the postgres connection string. Ignored for sqlite.
	DSN          string `yaml:"dsn"`
	MaxOpenConns int    `yaml:"max_open_conns"`

	Connect RetryConfig `yaml:"connect"`
}

// RetryConfig controls connect-with-backoff at startup. Delays are seconds.
type RetryConfig struct {
	InitialDelay int `yaml:"initial_delay"`
	MaxDelay     int `yaml:"max_delay"`
	// MaxAttempts of 0 retries until the context is cancelled.
	MaxAttempts int `yaml:"max_attempts"`
}

// APIConfig contains HTTP API server settings.
type APIConfig struct {
	Host     string           `yaml:"host"`
	Port     int              `yaml:"port"`
	TLS      TLSConfig        `yaml:"tls"`
	Timeouts APITimeoutConfig `yaml:"timeouts"`
	CORS     CORSConfig       `yaml:"cors"`
	// TrustForwardedFor makes POST /devices take the device address from
	// X-Forwarded-For when present.
	TrustForwardedFor bool `yaml:"trust_forwarded_for"`
}

// TLSConfig contains TLS certificate settings.
type TLSConfig struct {
	Enabled  bool   `yaml:"enabled"`
	CertFile string `yaml:"cert_file"`
	KeyFile  string `yaml:"key_file"`
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

// WebSocketConfig contains live feed settings.
type WebSocketConfig struct {
	Path           string `yaml:"path"`
	MaxMessageSize int    `yaml:"max_message_size"`
	PingInterval   int    `yaml:"ping_interval"`
	PongTimeout    int    `yaml:"pong_timeout"`
}

// MQTTConfig contains MQTT broker connection settings.
type MQTTConfig struct {
	Enabled   bool                `yaml:"enabled"`
	Broker    MQTTBrokerConfig    `yaml:"broker"`
	Auth      MQTTAuthConfig      `yaml:"auth"`
	QoS       int                 `yaml:"qos"`
	Reconnect MQTTReconnectConfig `yaml:"reconnect"`
	Topics    MQTTTopicsConfig    `yaml:"topics"`
	// HandlerTimeout bounds processing of one message, in seconds.
	HandlerTimeout int `yaml:"handler_timeout"`
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
	MaxAttempts  int `yaml:"max_attempts"`
}

// MQTTTopicsConfig names the ingest topic and controls data publishing.
type MQTTTopicsConfig struct {
	// Prefix roots every topic devicehub publishes or subscribes to.
	Prefix string `yaml:"prefix"`
	// DataIn is the topic (relative to Prefix) carrying device data messages.
	DataIn string `yaml:"data_in"`
	// PublishData republishes every stored data point under
	// {prefix}/devices/{device_id}/data/{name}.
	PublishData bool `yaml:"publish_data"`
}

// AMQPConfig contains message queue ingress settings.
type AMQPConfig struct {
	Enabled     bool        `yaml:"enabled"`
	Host        string      `yaml:"host"`
	Port        int         `yaml:"port"`
	VHost       string      `yaml:"vhost"`
	Username    string      `yaml:"username"`
	Password    string      `yaml:"password"`
	TLS         bool        `yaml:"tls"`
	Exchange    string      `yaml:"exchange"`
	RoutingKey  string      `yaml:"routing_key"`
	QueueSuffix string      `yaml:"queue_suffix"`
	Durable     bool        `yaml:"durable"`
	Connect     RetryConfig `yaml:"connect"`
	// HandlerTimeout bounds processing of one message, in seconds.
	HandlerTimeout int `yaml:"handler_timeout"`
}

// InfluxDBConfig contains InfluxDB connection settings.
type InfluxDBConfig struct {
	Enabled       bool   `yaml:"enabled"`
	URL           string `yaml:"url"`
	Token         string `yaml:"token"`
	Org           string `yaml:"org"`
	Bucket        string `yaml:"bucket"`
	Measurement   string `yaml:"measurement"`
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
	JWT JWTConfig `yaml:"jwt"`
}

// JWTConfig contains bearer token settings. An empty secret disables auth.
type JWTConfig struct {
	Secret string `yaml:"secret"`
	// TokenTTL is the lifetime of issued tokens in minutes.
	TokenTTL int `yaml:"token_ttl"`
}

// Enabled reports whether API authentication is switched on.
func (j JWTConfig) Enabled() bool {
	return j.Secret != ""
}

// Load reads configuration from a YAML file and applies environment variable overrides.
//
// The configuration loading order is:
//  1. Default values (hardcoded)
//  2. YAML file values (override defaults)
//  3. .env file (never overrides variables already set in the environment)
//  4. Environment variables (override file values)
//
// Environment variables follow the pattern: DEVICEHUB_SECTION_KEY
// For example: DEVICEHUB_DATABASE_PATH, DEVICEHUB_API_PORT
//
// Parameters:
//   - path: Path to the YAML configuration file
//
// Returns:
//   - *Config: Loaded and validated configuration
//   - error: If file cannot be read, parsed, or validation fails
func Load(path string) (*Config, error) {
	cfg := defaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	if err := loadDotEnv(envFilePath()); err != nil {
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

// envFilePath returns the .env location, DEVICEHUB_ENV_FILE or ".env".
func envFilePath() string {
	if p := os.Getenv("DEVICEHUB_ENV_FILE"); p != "" {
		return p
	}
	return ".env"
}

// loadDotEnv populates the process environment from a .env file.
// A missing file is not an error.
func loadDotEnv(path string) error {
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("loading %s: %w", path, err)
	}
	return nil
}

// defaultConfig returns a Config with sensible defaults.
func defaultConfig() *Config {
	return &Config{
		Service: ServiceConfig{
			Name:        "devicehub",
			Environment: EnvProduction,
		},
		Database: DatabaseConfig{
			Driver:       DriverSQLite,
			Path:         "./data/devicehub.db",
			WALMode:      true,
			BusyTimeout:  5,
			MaxOpenConns: 10,
			Connect: RetryConfig{
				InitialDelay: 3,
				MaxDelay:     30,
				MaxAttempts:  0,
			},
		},
		API: APIConfig{
			Host:              "0.0.0.0",
			Port:              8080,
			TrustForwardedFor: true,
			Timeouts: APITimeoutConfig{
				Read:  30,
				Write: 30,
				Idle:  60,
			},
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
				ClientID: "devicehub",
			},
			QoS: 1,
			Reconnect: MQTTReconnectConfig{
				InitialDelay: 1,
				MaxDelay:     60,
			},
			Topics: MQTTTopicsConfig{
				Prefix: "devicehub",
				DataIn: "data/in",
			},
			HandlerTimeout: 10,
		},
		AMQP: AMQPConfig{
			Host:           "localhost",
			Port:           5672,
			VHost:          "/",
			Username:       "guest",
			Password:       "guest",
			Exchange:       "device_data",
			RoutingKey:     "data.produced",
			QueueSuffix:    "devicehub",
			Durable:        true,
			HandlerTimeout: 10,
			Connect: RetryConfig{
				InitialDelay: 3,
				MaxDelay:     30,
			},
		},
		InfluxDB: InfluxDBConfig{
			Measurement:   "device_data",
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
				TokenTTL: 60 * 24,
			},
		},
	}
}

// applyEnvOverrides applies environment variable overrides to the configuration.
// Environment variables follow the pattern: DEVICEHUB_SECTION_KEY
func applyEnvOverrides(cfg *Config) error {
	strs := []struct {
		key string
		dst *string
	}{
		{"DEVICEHUB_ENVIRONMENT", &cfg.Service.Environment},
		{"DEVICEHUB_DATABASE_DRIVER", &cfg.Database.Driver},
		{"DEVICEHUB_DATABASE_PATH", &cfg.Database.Path},
		{"DEVICEHUB_DATABASE_DSN", &cfg.Database.DSN},
		{"DEVICEHUB_API_HOST", &cfg.API.Host},
		{"DEVICEHUB_MQTT_HOST", &cfg.MQTT.Broker.Host},
		{"DEVICEHUB_MQTT_USERNAME", &cfg.MQTT.Auth.Username},
		{"DEVICEHUB_MQTT_PASSWORD", &cfg.MQTT.Auth.Password},
		{"DEVICEHUB_AMQP_HOST", &cfg.AMQP.Host},
		{"DEVICEHUB_AMQP_USERNAME", &cfg.AMQP.Username},
		{"DEVICEHUB_AMQP_PASSWORD", &cfg.AMQP.Password},
		{"DEVICEHUB_INFLUXDB_URL", &cfg.InfluxDB.URL},
		{"DEVICEHUB_INFLUXDB_TOKEN", &cfg.InfluxDB.Token},
		{"DEVICEHUB_LOG_LEVEL", &cfg.Logging.Level},
		// Security - JWT secret (never commit it to the YAML file)
		{"DEVICEHUB_JWT_SECRET", &cfg.Security.JWT.Secret},
	}
	for _, s := range strs {
		if v := os.Getenv(s.key); v != "" {
			*s.dst = v
		}
	}

	ints := []struct {
		key string
		dst *int
	}{
		{"DEVICEHUB_API_PORT", &cfg.API.Port},
		{"DEVICEHUB_MQTT_PORT", &cfg.MQTT.Broker.Port},
		{"DEVICEHUB_AMQP_PORT", &cfg.AMQP.Port},
	}
	for _, i := range ints {
		v := os.Getenv(i.key)
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not an integer", i.key, v)
		}
		*i.dst = n
	}

	bools := []struct {
		key string
		dst *bool
	}{
		{"DEVICEHUB_MQTT_ENABLED", &cfg.MQTT.Enabled},
		{"DEVICEHUB_AMQP_ENABLED", &cfg.AMQP.Enabled},
		{"DEVICEHUB_INFLUXDB_ENABLED", &cfg.InfluxDB.Enabled},
	}
	for _, b := range bools {
		v := os.Getenv(b.key)
		if v == "" {
			continue
		}
		parsed, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%s: %q is not a boolean", b.key, v)
		}
		*b.dst = parsed
	}

	return nil
}

// Validate checks the configuration for errors and security issues.
//
// Returns:
//   - error: Description of every validation failure, or nil if valid
func (c *Config) Validate() error {
	var errs []string

	switch c.Service.Environment {
	case EnvDevelopment, EnvProduction:
	default:
		errs = append(errs, "service.environment must be development or production")
	}

	switch c.Database.Driver {
	case DriverSQLite:
		if c.Database.Path == "" {
			errs = append(errs, "database.path is required for sqlite")
		}
	case DriverPostgres:
		if c.Database.DSN == "" {
			errs = append(errs, "database.dsn is required for postgres (set DEVICEHUB_DATABASE_DSN)")
		}
	default:
		errs = append(errs, "database.driver must be sqlite or postgres")
	}

	if c.API.Port < 1 || c.API.Port > 65535 {
		errs = append(errs, "api.port must be between 1 and 65535")
	}
	if c.API.TLS.Enabled && (c.API.TLS.CertFile == "" || c.API.TLS.KeyFile == "") {
		errs = append(errs, "api.tls requires cert_file and key_file")
	}

	if c.MQTT.Enabled {
		if c.MQTT.QoS < 0 || c.MQTT.QoS > 2 {
			errs = append(errs, "mqtt.qos must be 0, 1, or 2")
		}
		if c.MQTT.Broker.Host == "" {
			errs = append(errs, "mqtt.broker.host is required")
		}
		if c.MQTT.Topics.DataIn == "" {
			errs = append(errs, "mqtt.topics.data_in is required")
		}
	}

	if c.AMQP.Enabled {
		if c.AMQP.Host == "" {
			errs = append(errs, "amqp.host is required")
		}
		if c.AMQP.Exchange == "" {
			errs = append(errs, "amqp.exchange is required")
		}
		if c.AMQP.RoutingKey == "" {
			errs = append(errs, "amqp.routing_key is required")
		}
	}

	if c.InfluxDB.Enabled && (c.InfluxDB.URL == "" || c.InfluxDB.Bucket == "") {
		errs = append(errs, "influxdb.url and influxdb.bucket are required when enabled")
	}

	if c.Security.JWT.Secret != "" && len(c.Security.JWT.Secret) < minJWTSecretLength {
		errs = append(errs, "security.jwt.secret must be at least 32 characters for adequate security")
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

// Durations converts the retry settings to time.Duration values.
func (r RetryConfig) Durations() (initial, maxDelay time.Duration) {
	return time.Duration(r.InitialDelay) * time.Second, time.Duration(r.MaxDelay) * time.Second
}

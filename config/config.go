// Package config provides configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure.
type Config struct {
	Server  ServerConfig  `yaml:"server"`
	Store   StoreConfig   `yaml:"store"`
	Ranges  RangesConfig  `yaml:"ranges"`
	Publish PublishConfig `yaml:"publish"`
	Logging LoggingConfig `yaml:"logging"`
	Metrics MetricsConfig `yaml:"metrics"`
	OpenAPI OpenAPIConfig `yaml:"openapi"`
}

// ServerConfig configures the HTTP trigger.
type ServerConfig struct {
	Host         string        `yaml:"host"`
	Port         int           `yaml:"port"`
	ReadTimeout  time.Duration `yaml:"read_timeout"`
	WriteTimeout time.Duration `yaml:"write_timeout"`
}

// StoreConfig configures the ride store.
// Use "dynamodb" in production, "sqlite" or "postgres" for SQL deployments,
// "memory" for local experiments.
type StoreConfig struct {
	Driver   string        `yaml:"driver"`             // "dynamodb", "sqlite", "postgres", "memory"
	DSN      string        `yaml:"dsn,omitempty"`      // sqlite path or postgres URL
	Region   string        `yaml:"region,omitempty"`   // AWS region (default: ap-south-1)
	Endpoint string        `yaml:"endpoint,omitempty"` // DynamoDB endpoint override (local testing)
	Timeout  time.Duration `yaml:"timeout,omitempty"`  // per-call timeout, 0 = none
	Tables   TablesConfig  `yaml:"tables"`
}

// TablesConfig names the tables used by the store.
type TablesConfig struct {
	Rides   string `yaml:"rides"`
	Monthly string `yaml:"monthly"`
	Yearly  string `yaml:"yearly"`
}

// RangesConfig configures the range computation.
type RangesConfig struct {
	IMEIs         []string `yaml:"imeis"`
	Lenient       bool     `yaml:"lenient"`        // skip malformed records instead of failing
	PersistYearly bool     `yaml:"persist_yearly"` // also write the yearly table
}

// PublishConfig configures where reports are published after persisting.
// Use "none", "kafka" or "rabbitmq".
type PublishConfig struct {
	Driver   string         `yaml:"driver"`
	Encoding string         `yaml:"encoding"` // "json" or "msgpack"
	Kafka    KafkaConfig    `yaml:"kafka,omitempty"`
	RabbitMQ RabbitMQConfig `yaml:"rabbitmq,omitempty"`
}

// KafkaConfig configures the Kafka publisher.
type KafkaConfig struct {
	Brokers      []string      `yaml:"brokers"`
	Topic        string        `yaml:"topic"`
	WriteTimeout time.Duration `yaml:"write_timeout,omitempty"`
}

// RabbitMQConfig configures the RabbitMQ publisher.
type RabbitMQConfig struct {
	URL              string `yaml:"url"`
	Exchange         string `yaml:"exchange"`
	RoutingKeyPrefix string `yaml:"routing_key_prefix"`
}

// LoggingConfig configures logging.
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json" or "console"
}

// MetricsConfig configures Prometheus metrics.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"` // Enable /metrics endpoint
	Path    string `yaml:"path"`    // Custom path (default: /metrics)
}

// OpenAPIConfig configures OpenAPI/Swagger documentation.
type OpenAPIConfig struct {
	Enabled bool `yaml:"enabled"` // Enable OpenAPI endpoints
}

// Load reads configuration from a YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	// Expand environment variables
	data = []byte(os.ExpandEnv(string(data)))

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	// Apply environment variable overrides
	applyEnvOverrides(&cfg)

	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadFromEnv creates configuration entirely from environment variables.
// This is how the Lambda deployment is configured.
//
// Environment variables:
//
//	IMEIS                      - Comma separated device list
//	MAXRANGE_IMEIS             - Same as IMEIS, takes precedence
//	MAXRANGE_LENIENT           - Skip malformed records (default: false)
//	MAXRANGE_PERSIST_YEARLY    - Write yearly aggregates (default: false)
//	MAXRANGE_STORE_DRIVER      - dynamodb, sqlite, postgres, memory (default: dynamodb)
//	MAXRANGE_STORE_DSN         - SQL database DSN
//	MAXRANGE_STORE_REGION      - AWS region (default: ap-south-1)
//	MAXRANGE_STORE_ENDPOINT    - DynamoDB endpoint override
//	MAXRANGE_PUBLISH_DRIVER    - none, kafka, rabbitmq (default: none)
//	MAXRANGE_PUBLISH_ENCODING  - json or msgpack (default: json)
//	MAXRANGE_KAFKA_BROKERS     - Comma separated broker list
//	MAXRANGE_KAFKA_TOPIC       - Kafka topic (default: ride-ranges)
//	MAXRANGE_RABBITMQ_URL      - AMQP URL
//	MAXRANGE_SERVER_HOST       - Server host (default: 0.0.0.0)
//	MAXRANGE_SERVER_PORT       - Server port (default: 8080)
//	MAXRANGE_LOG_LEVEL         - Log level: debug, info, warn, error (default: info)
//	MAXRANGE_LOG_FORMAT        - Log format: json or console (default: json)
//	MAXRANGE_METRICS_ENABLED   - Enable /metrics endpoint
//	MAXRANGE_OPENAPI_ENABLED   - Enable OpenAPI/Swagger
func LoadFromEnv() (*Config, error) {
	var cfg Config

	applyEnvOverrides(&cfg)
	setDefaults(&cfg)

	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return &cfg, nil
}

// LoadWithFallback loads from file when it exists, otherwise from
// environment variables.
func LoadWithFallback(path string) (*Config, error) {
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			return Load(path)
		}
	}
	return LoadFromEnv()
}

// SplitList splits a comma separated list, trimming entries and dropping blanks.
func SplitList(v string) []string {
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// applyEnvOverrides applies MAXRANGE_* environment variables to the config.
// Environment variables always override file-based configuration.
func applyEnvOverrides(cfg *Config) {
	// Server configuration
	if v := os.Getenv("MAXRANGE_SERVER_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("MAXRANGE_SERVER_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("MAXRANGE_SERVER_READ_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.ReadTimeout = d
		}
	}
	if v := os.Getenv("MAXRANGE_SERVER_WRITE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Server.WriteTimeout = d
		}
	}

	// Store configuration
	if v := os.Getenv("MAXRANGE_STORE_DRIVER"); v != "" {
		cfg.Store.Driver = v
	}
	if v := os.Getenv("MAXRANGE_STORE_DSN"); v != "" {
		cfg.Store.DSN = v
	}
	if v := os.Getenv("MAXRANGE_STORE_REGION"); v != "" {
		cfg.Store.Region = v
	}
	if v := os.Getenv("MAXRANGE_STORE_ENDPOINT"); v != "" {
		cfg.Store.Endpoint = v
	}
	if v := os.Getenv("MAXRANGE_STORE_TIMEOUT"); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			cfg.Store.Timeout = d
		}
	}

	// Ranges configuration. IMEIS is the variable the Lambda has always used.
	if v, ok := os.LookupEnv("IMEIS"); ok {
		cfg.Ranges.IMEIs = SplitList(v)
	}
	if v, ok := os.LookupEnv("MAXRANGE_IMEIS"); ok {
		cfg.Ranges.IMEIs = SplitList(v)
	}
	if v := os.Getenv("MAXRANGE_LENIENT"); v != "" {
		cfg.Ranges.Lenient = parseBool(v)
	}
	if v := os.Getenv("MAXRANGE_PERSIST_YEARLY"); v != "" {
		cfg.Ranges.PersistYearly = parseBool(v)
	}

	// Publish configuration
	if v := os.Getenv("MAXRANGE_PUBLISH_DRIVER"); v != "" {
		cfg.Publish.Driver = v
	}
	if v := os.Getenv("MAXRANGE_PUBLISH_ENCODING"); v != "" {
		cfg.Publish.Encoding = v
	}
	if v := os.Getenv("MAXRANGE_KAFKA_BROKERS"); v != "" {
		cfg.Publish.Kafka.Brokers = SplitList(v)
	}
	if v := os.Getenv("MAXRANGE_KAFKA_TOPIC"); v != "" {
		cfg.Publish.Kafka.Topic = v
	}
	if v := os.Getenv("MAXRANGE_RABBITMQ_URL"); v != "" {
		cfg.Publish.RabbitMQ.URL = v
	}
	if v := os.Getenv("MAXRANGE_RABBITMQ_EXCHANGE"); v != "" {
		cfg.Publish.RabbitMQ.Exchange = v
	}

	// Logging configuration
	if v := os.Getenv("MAXRANGE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("MAXRANGE_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	// Metrics configuration
	if v := os.Getenv("MAXRANGE_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("MAXRANGE_METRICS_PATH"); v != "" {
		cfg.Metrics.Path = v
	}

	// OpenAPI configuration
	if v := os.Getenv("MAXRANGE_OPENAPI_ENABLED"); v != "" {
		cfg.OpenAPI.Enabled = parseBool(v)
	}
}

// parseBool parses a boolean from common string values.
func parseBool(v string) bool {
	v = strings.ToLower(strings.TrimSpace(v))
	return v == "true" || v == "1" || v == "yes" || v == "on"
}

func setDefaults(cfg *Config) {
	if cfg.Server.Host == "" {
		cfg.Server.Host = "0.0.0.0"
	}
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.ReadTimeout == 0 {
		cfg.Server.ReadTimeout = 30 * time.Second
	}
	if cfg.Server.WriteTimeout == 0 {
		cfg.Server.WriteTimeout = 5 * time.Minute
	}

	if cfg.Store.Driver == "" {
		cfg.Store.Driver = "dynamodb"
	}
	if cfg.Store.Region == "" {
		cfg.Store.Region = "ap-south-1"
	}
	if cfg.Store.DSN == "" && cfg.Store.Driver == "sqlite" {
		cfg.Store.DSN = "maxrange.db"
	}
	if cfg.Store.Tables.Rides == "" {
		cfg.Store.Tables.Rides = "ride_data"
	}
	if cfg.Store.Tables.Monthly == "" {
		cfg.Store.Tables.Monthly = "ride_data_monthly_range"
	}
	if cfg.Store.Tables.Yearly == "" {
		cfg.Store.Tables.Yearly = "ride_data_yearly_range"
	}

	if cfg.Publish.Driver == "" {
		cfg.Publish.Driver = "none"
	}
	if cfg.Publish.Encoding == "" {
		cfg.Publish.Encoding = "json"
	}
	if cfg.Publish.Kafka.Topic == "" {
		cfg.Publish.Kafka.Topic = "ride-ranges"
	}
	if cfg.Publish.Kafka.WriteTimeout == 0 {
		cfg.Publish.Kafka.WriteTimeout = 10 * time.Second
	}
	if cfg.Publish.RabbitMQ.Exchange == "" {
		cfg.Publish.RabbitMQ.Exchange = "ride.ranges"
	}
	if cfg.Publish.RabbitMQ.RoutingKeyPrefix == "" {
		cfg.Publish.RabbitMQ.RoutingKeyPrefix = "ranges"
	}

	if cfg.Logging.Level == "" {
		cfg.Logging.Level = "info"
	}
	if cfg.Logging.Format == "" {
		cfg.Logging.Format = "json"
	}

	if cfg.Metrics.Path == "" {
		cfg.Metrics.Path = "/metrics"
	}
}

// validate checks structural settings only. An empty device list is not a
// load error: invocations report it to the caller.
func validate(cfg *Config) error {
	validDrivers := map[string]bool{"dynamodb": true, "sqlite": true, "postgres": true, "memory": true}
	if !validDrivers[cfg.Store.Driver] {
		return fmt.Errorf("store.driver must be one of: dynamodb, sqlite, postgres, memory, got %q", cfg.Store.Driver)
	}
	if cfg.Store.Driver == "postgres" && cfg.Store.DSN == "" {
		return fmt.Errorf("store.dsn is required when store.driver is 'postgres'")
	}
	if cfg.Store.Tables.Rides == cfg.Store.Tables.Monthly {
		return fmt.Errorf("store.tables.rides and store.tables.monthly must differ")
	}

	validPublishers := map[string]bool{"none": true, "kafka": true, "rabbitmq": true}
	if !validPublishers[cfg.Publish.Driver] {
		return fmt.Errorf("publish.driver must be one of: none, kafka, rabbitmq, got %q", cfg.Publish.Driver)
	}
	validEncodings := map[string]bool{"json": true, "msgpack": true}
	if !validEncodings[cfg.Publish.Encoding] {
		return fmt.Errorf("publish.encoding must be 'json' or 'msgpack', got %q", cfg.Publish.Encoding)
	}
	if cfg.Publish.Driver == "kafka" && len(cfg.Publish.Kafka.Brokers) == 0 {
		return fmt.Errorf("publish.kafka.brokers is required when publish.driver is 'kafka'")
	}
	if cfg.Publish.Driver == "rabbitmq" && cfg.Publish.RabbitMQ.URL == "" {
		return fmt.Errorf("publish.rabbitmq.url is required when publish.driver is 'rabbitmq'")
	}

	if cfg.Server.Port < 1 || cfg.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", cfg.Server.Port)
	}

	validFormats := map[string]bool{"json": true, "console": true}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("logging.format must be 'json' or 'console', got %q", cfg.Logging.Format)
	}

	return nil
}

package config

import (
	"time"
)

type Config struct {
	Server         ServerConfig         `mapstructure:"server"`
	Database       DatabaseConfig       `mapstructure:"database"`
	Queue          QueueConfig          `mapstructure:"queue"`
	Content        ContentConfig        `mapstructure:"content"`
	Drain          DrainConfig          `mapstructure:"drain"`
	Providers      ProvidersConfig      `mapstructure:"providers"`
	Outcomes       OutcomesConfig       `mapstructure:"outcomes"`
	Broker         BrokerConfig         `mapstructure:"broker"`
	Logging        LoggingConfig        `mapstructure:"logging"`
	API            APIConfig            `mapstructure:"api"`
	CircuitBreaker CircuitBreakerConfig `mapstructure:"circuit_breaker"`
	Tracing        TracingConfig        `mapstructure:"tracing"`
}

type ServerConfig struct {
	Port                int `mapstructure:"port" validate:"min=1,max=65535"`
	ReadTimeoutSeconds  int `mapstructure:"read_timeout_seconds" validate:"gt=0"`
	WriteTimeoutSeconds int `mapstructure:"write_timeout_seconds" validate:"gt=0"`
}

func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

type DatabaseConfig struct {
	Postgres      PostgresConfig `mapstructure:"postgres"`
	SQLite        SQLiteConfig   `mapstructure:"sqlite"`
	Redis         RedisConfig    `mapstructure:"redis"`
	MongoDB       MongoDBConfig  `mapstructure:"mongodb"`
	RunMigrations bool           `mapstructure:"run_migrations"`
}

type PostgresConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	User     string `mapstructure:"user" validate:"required_with=Host"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname" validate:"required_with=Host"`
	SSLMode  string `mapstructure:"sslmode" validate:"omitempty,oneof=disable allow prefer require verify-ca verify-full"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port" validate:"omitempty,min=1,max=65535"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db" validate:"min=0"`
}

type MongoDBConfig struct {
	URI      string `mapstructure:"uri" validate:"omitempty,startswith=mongodb://|startswith=mongodb+srv://"`
	Database string `mapstructure:"database"`
}

type QueueConfig struct {
	Backend        string   `mapstructure:"backend" validate:"oneof=postgres sqlite redis"`
	LeaseSeconds   int      `mapstructure:"lease_seconds" validate:"gt=0"`
	HashExclusions []string `mapstructure:"hash_exclusions"`
}

func (c QueueConfig) Lease() time.Duration {
	return time.Duration(c.LeaseSeconds) * time.Second
}

type ContentConfig struct {
	Driver string `mapstructure:"driver" validate:"oneof=mysql sqlite"`
	DSN    string `mapstructure:"dsn" validate:"required"`
}

type DrainConfig struct {
	Limit           int      `mapstructure:"limit" validate:"min=0"`
	IntervalSeconds int      `mapstructure:"interval_seconds" validate:"min=0"`
	Bundles         []string `mapstructure:"bundles"`
	LockFile        string   `mapstructure:"lock_file"`
}

func (c DrainConfig) Interval() time.Duration {
	return time.Duration(c.IntervalSeconds) * time.Second
}

type ProvidersConfig struct {
	Source string           `mapstructure:"source" validate:"oneof=config postgres"`
	Static []ProviderConfig `mapstructure:"static" validate:"dive"`
}

type ProviderConfig struct {
	ID             string   `mapstructure:"id" validate:"required"`
	Name           string   `mapstructure:"name"`
	SecretHash     string   `mapstructure:"secret_hash"`
	URLPattern     string   `mapstructure:"url_pattern" validate:"omitempty,regexp"`
	AllowedSources []int    `mapstructure:"allowed_sources"`
	NotifyEmails   []string `mapstructure:"notify_emails" validate:"dive,email"`
	UserID         int      `mapstructure:"user_id" validate:"min=0"`
	Rules          []string `mapstructure:"rules"`
}

type OutcomesConfig struct {
	MongoDB bool   `mapstructure:"mongodb"`
	Topic   string `mapstructure:"topic"`
}

type BrokerConfig struct {
	Type  string      `mapstructure:"type" validate:"omitempty,oneof=kafka"`
	Kafka KafkaConfig `mapstructure:"kafka"`
}

type KafkaConfig struct {
	Brokers           []string    `mapstructure:"brokers" validate:"dive,required"`
	GroupID           string      `mapstructure:"group_id"`
	ConfigUpdateTopic string      `mapstructure:"config_update_topic"`
	DLQTopic          string      `mapstructure:"dlq_topic"`
	Retry             RetryConfig `mapstructure:"retry"`
}

type RetryConfig struct {
	MaxAttempts     int           `mapstructure:"max_attempts" validate:"min=0"`
	InitialInterval time.Duration `mapstructure:"initial_interval"`
	MaxInterval     time.Duration `mapstructure:"max_interval"`
	Multiplier      float64       `mapstructure:"multiplier" validate:"min=0"`
	MaxElapsedTime  time.Duration `mapstructure:"max_elapsed_time"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type APIConfig struct {
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type RateLimitConfig struct {
	Enabled         bool    `mapstructure:"enabled"`
	RPS             float64 `mapstructure:"rps" validate:"min=0"`
	Burst           int     `mapstructure:"burst" validate:"min=0"`
	CleanupInterval int     `mapstructure:"cleanup_interval"`
	MaxAge          int     `mapstructure:"max_age"`
}

type CircuitBreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	MaxRequests  uint32        `mapstructure:"max_requests"`
	Interval     time.Duration `mapstructure:"interval"`
	Timeout      time.Duration `mapstructure:"timeout"`
	FailureRatio float64       `mapstructure:"failure_ratio" validate:"min=0,max=1"`
	MinRequests  uint32        `mapstructure:"min_requests"`
}

type TracingConfig struct {
	Enabled     bool          `mapstructure:"enabled"`
	ServiceName string        `mapstructure:"service_name"`
	OTLP        OTLPConfig    `mapstructure:"otlp"`
	Sampler     SamplerConfig `mapstructure:"sampler"`
}

type OTLPConfig struct {
	Endpoint string `mapstructure:"endpoint"`
	Insecure bool   `mapstructure:"insecure"`
}

type SamplerConfig struct {
	Type  string  `mapstructure:"type"`
	Param float64 `mapstructure:"param" validate:"min=0"`
}

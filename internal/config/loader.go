package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"

	"postapi/internal/constants"
)

// envKeys can be overridden from the environment; the variable name is the
// key upper-cased with dots replaced by underscores, e.g. DRAIN_LIMIT.
var envKeys = []string{
	"server.port",
	"server.read_timeout_seconds",
	"server.write_timeout_seconds",

	"database.run_migrations",
	"database.postgres.host",
	"database.postgres.port",
	"database.postgres.user",
	"database.postgres.password",
	"database.postgres.dbname",
	"database.postgres.sslmode",
	"database.sqlite.path",
	"database.redis.host",
	"database.redis.port",
	"database.redis.password",
	"database.redis.db",
	"database.mongodb.uri",
	"database.mongodb.database",

	"queue.backend",
	"queue.lease_seconds",
	"content.driver",
	"content.dsn",

	"drain.limit",
	"drain.interval_seconds",
	"drain.lock_file",

	"providers.source",
	"outcomes.mongodb",
	"outcomes.topic",

	"broker.type",
	"broker.kafka.group_id",
	"broker.kafka.config_update_topic",
	"broker.kafka.dlq_topic",

	"logging.level",
	"logging.format",

	"tracing.enabled",
	"tracing.service_name",
	"tracing.otlp.endpoint",
	"tracing.otlp.insecure",
}

// Load reads the YAML file at path, applies defaults and environment
// overrides, and validates the result.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(path)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)
	for _, key := range envKeys {
		if err := v.BindEnv(key); err != nil {
			return nil, fmt.Errorf("failed to bind %s: %w", key, err)
		}
	}

	if err := v.BindEnv("broker.kafka.brokers", "BROKER_KAFKA_BROKERS"); err != nil {
		return nil, fmt.Errorf("failed to bind broker.kafka.brokers: %w", err)
	}

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	// The env value is a comma separated list; a YAML list reads back as "".
	if brokers := v.GetString("broker.kafka.brokers"); brokers != "" {
		cfg.Broker.Kafka.Brokers = splitList(brokers)
	}

	if err := ValidateStatic(&cfg); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout_seconds", 15)
	v.SetDefault("server.write_timeout_seconds", 15)

	v.SetDefault("queue.backend", constants.QueueBackendSQLite)
	v.SetDefault("queue.lease_seconds", constants.DefaultLeaseSeconds)
	v.SetDefault("queue.hash_exclusions", []string{"provider", "user"})
	v.SetDefault("database.sqlite.path", "postapi.db")

	v.SetDefault("content.driver", constants.ContentDriverSQLite)
	v.SetDefault("content.dsn", "content.db")

	v.SetDefault("drain.limit", constants.DefaultDrainLimit)
	v.SetDefault("drain.interval_seconds", constants.DefaultDrainIntervalSeconds)

	v.SetDefault("providers.source", constants.ProviderSourceConfig)

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")
}

func splitList(s string) []string {
	parts := strings.Split(s, ",")
	out := parts[:0]
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

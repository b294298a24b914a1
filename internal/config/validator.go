package config

import (
	"errors"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"

	"postapi/internal/constants"
)

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Field + ": " + e.Message
}

var structValidator = sync.OnceValue(func() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	// Report fields by their config key, e.g. queue.lease_seconds.
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		name, _, _ := strings.Cut(f.Tag.Get("mapstructure"), ",")
		if name == "-" {
			return ""
		}
		return name
	})
	_ = v.RegisterValidation("regexp", func(fl validator.FieldLevel) bool {
		_, err := regexp.Compile(fl.Field().String())
		return err == nil
	})
	return v
})

// ValidateStatic checks a loaded configuration without touching any backend.
// Field rules live in the validate tags; rules spanning sections are below.
func ValidateStatic(cfg *Config) error {
	var errs []error

	if err := structValidator().Struct(cfg); err != nil {
		var verrs validator.ValidationErrors
		if !errors.As(err, &verrs) {
			return err
		}
		for _, fe := range verrs {
			errs = append(errs, fieldError(fe))
		}
	}
	errs = append(errs, crossChecks(cfg)...)

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("configuration validation failed: %w", err)
	}
	return nil
}

func fieldError(fe validator.FieldError) *ValidationError {
	// Drop the leading "Config." namespace segment.
	_, field, _ := strings.Cut(fe.Namespace(), ".")

	var msg string
	switch fe.Tag() {
	case "required":
		msg = "is required"
	case "required_with":
		msg = "is required when " + strings.ToLower(fe.Param()) + " is set"
	case "min", "gte":
		msg = "must be at least " + fe.Param()
	case "max", "lte":
		msg = "must be at most " + fe.Param()
	case "gt":
		msg = "must be greater than " + fe.Param()
	case "oneof":
		msg = fmt.Sprintf("unknown value %q (supported: %s)", fe.Value(), strings.ReplaceAll(fe.Param(), " ", ", "))
	case "regexp":
		msg = fmt.Sprintf("invalid regular expression %q", fe.Value())
	case "email":
		msg = fmt.Sprintf("invalid email address %q", fe.Value())
	case "startswith":
		msg = "must start with mongodb:// or mongodb+srv://"
	default:
		msg = "failed " + fe.Tag() + " check"
	}
	return &ValidationError{Field: field, Message: msg}
}

func crossChecks(cfg *Config) []error {
	var errs []error
	fail := func(field, format string, args ...interface{}) {
		errs = append(errs, &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)})
	}

	db := cfg.Database
	switch cfg.Queue.Backend {
	case constants.QueueBackendPostgres:
		if db.Postgres.Host == "" {
			fail("queue.backend", "postgres queue backend requires database.postgres")
		}
	case constants.QueueBackendRedis:
		if db.Redis.Host == "" {
			fail("queue.backend", "redis queue backend requires database.redis")
		}
	case constants.QueueBackendSQLite:
		if db.SQLite.Path == "" {
			fail("database.sqlite.path", "sqlite queue backend requires a database path")
		}
	}

	if cfg.Providers.Source == constants.ProviderSourcePostgres && db.Postgres.Host == "" {
		fail("providers.source", "postgres provider source requires database.postgres")
	}
	seen := make(map[string]bool, len(cfg.Providers.Static))
	for i, p := range cfg.Providers.Static {
		if p.ID != "" && seen[p.ID] {
			fail(fmt.Sprintf("providers.static[%d].id", i), "duplicate provider id: %s", p.ID)
		}
		seen[p.ID] = true
	}

	kafka := cfg.Broker.Kafka
	if cfg.Broker.Type == constants.BrokerTypeKafka {
		if len(kafka.Brokers) == 0 {
			fail("broker.kafka.brokers", "at least one Kafka broker is required")
		}
		if kafka.ConfigUpdateTopic != "" && kafka.GroupID == "" {
			fail("broker.kafka.group_id", "a consumer group is required to consume config updates")
		}
	}
	if r := kafka.Retry; r.InitialInterval > 0 && r.MaxInterval > 0 && r.MaxInterval < r.InitialInterval {
		fail("broker.kafka.retry.max_interval", "must not be below initial_interval")
	}

	if cfg.Outcomes.MongoDB && db.MongoDB.URI == "" {
		fail("outcomes.mongodb", "MongoDB outcome sink requires database.mongodb.uri")
	}
	if cfg.Outcomes.Topic != "" && cfg.Broker.Type != constants.BrokerTypeKafka {
		fail("outcomes.topic", "publishing outcomes requires broker.type kafka")
	}

	return errs
}

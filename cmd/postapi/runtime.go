package main

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"

	"postapi/internal/config"
	"postapi/internal/constants"
	"postapi/internal/content"
	"postapi/internal/drain"
	"postapi/internal/logger"
	"postapi/internal/outcome"
	"postapi/internal/processor"
	"postapi/internal/provider"
	"postapi/internal/queue"
	"postapi/pkg/bootstrap"
	"postapi/pkg/health"
	"postapi/pkg/migrations"
)

// Runtime holds the wiring shared by serve and the one-shot commands. Each
// init step is optional so a command only opens what it needs.
type Runtime struct {
	*bootstrap.Base
	dbConnector *bootstrap.DatabaseConnector

	redis      *redis.Client
	postgresDB *sql.DB
	sqliteDB   *sql.DB
	mongo      *mongo.Client
	contentDB  *gorm.DB

	Queue      queue.Queue
	Providers  *provider.Registry
	Processors *processor.Registry
	Outcomes   *outcome.MultiSink
	History    *outcome.MongoSink
}

func NewRuntime(cfg *config.Config, log logger.Logger) *Runtime {
	return &Runtime{
		Base:        bootstrap.NewBase(cfg, log),
		dbConnector: bootstrap.NewDatabaseConnector(cfg, log),
	}
}

func (r *Runtime) postgres(ctx context.Context) (*sql.DB, error) {
	if r.postgresDB != nil {
		return r.postgresDB, nil
	}
	db, err := r.dbConnector.InitPostgreSQL(ctx)
	if err != nil {
		return nil, err
	}
	if db == nil {
		return nil, fmt.Errorf("database.postgres.host is not configured")
	}
	r.postgresDB = db
	return db, nil
}

// InitQueue opens the configured queue backend and applies its schema when
// migrations are enabled. SQLite always gets its schema since it is local.
func (r *Runtime) InitQueue(ctx context.Context) error {
	lease := r.Config.Queue.Lease()

	var q queue.Queue
	switch r.Config.Queue.Backend {
	case constants.QueueBackendPostgres:
		db, err := r.postgres(ctx)
		if err != nil {
			return err
		}
		if r.Config.Database.RunMigrations {
			if err := migrations.Up(ctx, db, migrations.DialectPostgres); err != nil {
				return err
			}
		}
		store, err := queue.NewSQLStore(db, migrations.DialectPostgres, lease)
		if err != nil {
			return err
		}
		q = store

	case constants.QueueBackendSQLite:
		db, err := r.dbConnector.InitSQLite(ctx)
		if err != nil {
			return err
		}
		r.sqliteDB = db
		if err := migrations.Up(ctx, db, migrations.DialectSQLite); err != nil {
			return err
		}
		store, err := queue.NewSQLStore(db, migrations.DialectSQLite, lease)
		if err != nil {
			return err
		}
		q = store

	case constants.QueueBackendRedis:
		client, err := r.dbConnector.InitRedis(ctx)
		if err != nil {
			return err
		}
		r.redis = client
		q = queue.NewRedisStore(client, lease)

	default:
		return fmt.Errorf("unknown queue backend: %s", r.Config.Queue.Backend)
	}

	r.Queue = queue.NewCircuitBreakerQueue(q, "queue", r.Config.CircuitBreaker)
	r.Logger.Infow("Queue initialized", "backend", r.Config.Queue.Backend, "lease", lease.String())
	return nil
}

func (r *Runtime) InitProviders(ctx context.Context) error {
	var store provider.Store
	switch r.Config.Providers.Source {
	case constants.ProviderSourcePostgres:
		db, err := r.postgres(ctx)
		if err != nil {
			return err
		}
		if r.Config.Database.RunMigrations {
			if err := migrations.Up(ctx, db, migrations.DialectPostgres); err != nil {
				return err
			}
		}
		store = provider.NewPostgresStore(db)
	default:
		store = provider.NewStaticStore(r.Config.Providers.Static)
	}

	r.Providers = provider.NewRegistry(store, r.Logger)
	return nil
}

// InitProcessors opens the content store and registers a processor per bundle.
// Requires InitProviders.
func (r *Runtime) InitProcessors(ctx context.Context) error {
	db, err := r.dbConnector.InitContentDB(ctx)
	if err != nil {
		return err
	}
	r.contentDB = db

	if r.Config.Database.RunMigrations || r.Config.Content.Driver == constants.ContentDriverSQLite {
		if err := content.Migrate(db); err != nil {
			return err
		}
	}

	r.Processors = processor.NewRegistry(processor.DefaultProcessors(r.Providers, content.NewRepository(db))...)
	return nil
}

func (r *Runtime) initMongo(ctx context.Context) (*mongo.Database, error) {
	if r.mongo == nil {
		client, err := r.dbConnector.InitMongoDB(ctx)
		if err != nil {
			return nil, err
		}
		if client == nil {
			return nil, fmt.Errorf("database.mongodb.uri is not configured")
		}
		r.mongo = client
	}

	name := r.Config.Database.MongoDB.Database
	if name == "" {
		name = constants.DefaultMongoDBName
	}
	return r.mongo.Database(name), nil
}

// InitHistory connects the MongoDB outcome log.
func (r *Runtime) InitHistory(ctx context.Context) error {
	db, err := r.initMongo(ctx)
	if err != nil {
		return err
	}
	if err := migrations.EnsureOutcomeIndexes(ctx, db, constants.OutcomesCollection); err != nil {
		return err
	}
	r.History = outcome.NewMongoSink(db)
	return nil
}

// InitOutcomes assembles the outcome sinks. MongoDB and Kafka failures only
// disable that sink; outcomes are always logged.
func (r *Runtime) InitOutcomes(ctx context.Context) error {
	sinks := []outcome.Sink{outcome.NewLogSink(r.Logger)}

	if r.Config.Outcomes.MongoDB {
		if err := r.InitHistory(ctx); err != nil {
			r.Logger.WarnwCtx(ctx, "MongoDB outcome sink disabled", "error", err)
		} else {
			sinks = append(sinks, r.History)
		}
	}

	if r.Config.Outcomes.Topic != "" {
		producer, err := r.EnsureProducer()
		if err != nil {
			r.Logger.WarnwCtx(ctx, "Kafka outcome sink disabled", "error", err)
		} else {
			sinks = append(sinks, outcome.NewKafkaSink(producer, r.Config.Outcomes.Topic))
		}
	}

	r.Outcomes = outcome.NewMultiSink(r.Logger, sinks...)
	return nil
}

// InitPipeline runs every step the drain needs.
func (r *Runtime) InitPipeline(ctx context.Context) error {
	steps := []func(context.Context) error{
		r.InitQueue,
		r.InitProviders,
		r.InitProcessors,
		r.InitOutcomes,
	}
	for _, step := range steps {
		if err := step(ctx); err != nil {
			return err
		}
	}
	return nil
}

func (r *Runtime) DrainService() drain.Service {
	return drain.NewService(r.Queue, r.Processors, r.Logger,
		drain.WithOutcomeSink(r.Outcomes),
		drain.WithProviders(r.Providers),
		drain.WithDefaultLimit(r.Config.Drain.Limit),
	)
}

func (r *Runtime) HealthRegistry() *health.Registry {
	registry := health.NewRegistry()
	if r.postgresDB != nil {
		registry.Add(health.SQL("postgresql", r.postgresDB))
	}
	if r.sqliteDB != nil {
		registry.Add(health.SQL("sqlite", r.sqliteDB))
	}
	if r.redis != nil {
		registry.Add(health.Redis(r.redis))
	}
	if r.mongo != nil {
		registry.Add(health.Mongo(r.mongo))
	}
	if r.contentDB != nil {
		registry.Add(health.Gorm("content", r.contentDB))
	}
	if r.Config.CircuitBreaker.Enabled {
		if q, ok := r.Queue.(*queue.CircuitBreakerQueue); ok {
			registry.Add(health.Breaker("queue_breaker", q.IsOpen))
		}
	}
	return registry
}

func (r *Runtime) Close(ctx context.Context) error {
	return r.Shutdown(ctx, r.dbConnector.Close)
}

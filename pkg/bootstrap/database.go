package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	_ "github.com/glebarez/go-sqlite" // registers the "sqlite" driver
	"github.com/glebarez/sqlite"
	_ "github.com/lib/pq"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"gorm.io/driver/mysql"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"postapi/internal/config"
	"postapi/internal/constants"
	"postapi/internal/logger"
	"postapi/pkg/retry"
)

// DatabaseConnector opens the stores named in the database and content
// config sections and remembers them so Close can release them in reverse
// order.
type DatabaseConnector struct {
	Config *config.Config
	Logger logger.Logger

	closers []closer
}

type closer struct {
	store string
	close func(ctx context.Context) error
}

func NewDatabaseConnector(cfg *config.Config, log logger.Logger) *DatabaseConnector {
	return &DatabaseConnector{Config: cfg, Logger: log}
}

// await pings a freshly opened store until it answers or ConnectPolicy gives up.
func (dc *DatabaseConnector) await(ctx context.Context, store string, ping func(context.Context) error) error {
	return retry.Do(ctx, retry.ConnectPolicy(), func() error {
		return ping(ctx)
	}, func(attempt int, err error, next time.Duration) {
		dc.Logger.WarnwCtx(ctx, "Store not ready, retrying", "store", store, "attempt", attempt, "next_retry", next, "error", err)
	})
}

func (dc *DatabaseConnector) track(store string, fn func(ctx context.Context) error) {
	dc.closers = append(dc.closers, closer{store: store, close: fn})
}

func closeSQL(db *sql.DB) func(context.Context) error {
	return func(context.Context) error { return db.Close() }
}

func (dc *DatabaseConnector) InitRedis(ctx context.Context) (*redis.Client, error) {
	cfg := dc.Config.Database.Redis
	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := dc.await(ctx, "redis", func(ctx context.Context) error { return client.Ping(ctx).Err() }); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis at %s:%d unreachable: %w", cfg.Host, cfg.Port, err)
	}

	dc.track("redis", func(context.Context) error { return client.Close() })
	dc.Logger.Infow("Redis connected", "addr", client.Options().Addr)
	return client, nil
}

// PostgresDSN renders the postgres config as a lib/pq URL with escaped credentials.
func PostgresDSN(cfg config.PostgresConfig) string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(cfg.User, cfg.Password),
		Host:   cfg.Host + ":" + strconv.Itoa(cfg.Port),
		Path:   "/" + cfg.DBName,
	}
	if cfg.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": []string{cfg.SSLMode}}.Encode()
	}
	return u.String()
}

// InitPostgreSQL returns nil without error when no host is configured.
func (dc *DatabaseConnector) InitPostgreSQL(ctx context.Context) (*sql.DB, error) {
	cfg := dc.Config.Database.Postgres
	if cfg.Host == "" {
		return nil, nil
	}

	db, err := sql.Open("postgres", PostgresDSN(cfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open postgres: %w", err)
	}
	if err := dc.await(ctx, "postgres", db.PingContext); err != nil {
		db.Close()
		return nil, fmt.Errorf("postgres at %s unreachable: %w", cfg.Host, err)
	}

	dc.track("postgres", closeSQL(db))
	dc.Logger.Infow("PostgreSQL connected", "host", cfg.Host, "dbname", cfg.DBName)
	return db, nil
}

func (dc *DatabaseConnector) InitSQLite(ctx context.Context) (*sql.DB, error) {
	path := dc.Config.Database.SQLite.Path
	db, err := OpenSQLite(ctx, path)
	if err != nil {
		return nil, err
	}

	dc.track("sqlite", closeSQL(db))
	dc.Logger.Infow("SQLite opened", "path", path)
	return db, nil
}

// OpenSQLite opens a single-connection SQLite database in WAL mode, creating
// its directory if needed.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite %s: %w", path, err)
	}
	db.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("%s: %w", pragma, err)
		}
	}
	return db, nil
}

// InitMongoDB returns nil without error when no URI is configured.
func (dc *DatabaseConnector) InitMongoDB(ctx context.Context) (*mongo.Client, error) {
	uri := dc.Config.Database.MongoDB.URI
	if uri == "" {
		return nil, nil
	}

	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, fmt.Errorf("failed to connect to mongodb: %w", err)
	}
	if err := dc.await(ctx, "mongodb", func(ctx context.Context) error { return client.Ping(ctx, nil) }); err != nil {
		client.Disconnect(ctx)
		return nil, fmt.Errorf("mongodb unreachable: %w", err)
	}

	dc.track("mongodb", client.Disconnect)
	dc.Logger.Info("MongoDB connected")
	return client, nil
}

// InitContentDB opens the content store through gorm with the MySQL or
// SQLite dialector.
func (dc *DatabaseConnector) InitContentDB(ctx context.Context) (*gorm.DB, error) {
	cfg := dc.Config.Content

	var dialector gorm.Dialector
	switch cfg.Driver {
	case constants.ContentDriverMySQL:
		dialector = mysql.Open(cfg.DSN)
	case constants.ContentDriverSQLite:
		dialector = sqlite.Open(cfg.DSN)
	default:
		return nil, fmt.Errorf("unsupported content driver: %s", cfg.Driver)
	}

	db, err := gorm.Open(dialector, &gorm.Config{Logger: gormlogger.Default.LogMode(gormlogger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("failed to open content store: %w", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("content store has no sql.DB: %w", err)
	}
	if err := dc.await(ctx, "content", sqlDB.PingContext); err != nil {
		sqlDB.Close()
		return nil, fmt.Errorf("content store unreachable: %w", err)
	}

	dc.track("content", closeSQL(sqlDB))
	dc.Logger.Infow("Content store connected", "driver", cfg.Driver)
	return db, nil
}

// Close releases every store opened so far, newest first.
func (dc *DatabaseConnector) Close(ctx context.Context) []error {
	var errs []error
	for i := len(dc.closers) - 1; i >= 0; i-- {
		c := dc.closers[i]
		if err := c.close(ctx); err != nil {
			errs = append(errs, fmt.Errorf("%s close error: %w", c.store, err))
		}
	}
	dc.closers = nil
	return errs
}

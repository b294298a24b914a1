// Package health reports whether the stores postapi depends on answer.
package health

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"gorm.io/gorm"
)

const probeTimeout = 5 * time.Second

type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"
)

// Probe checks one dependency. A failing optional probe degrades the
// service; a failing required one makes it unhealthy.
type Probe struct {
	Name     string
	Optional bool
	Check    func(ctx context.Context) error
}

type Report struct {
	Status    Status            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Checks    map[string]Result `json:"checks"`
}

type Result struct {
	Status    Status `json:"status"`
	Message   string `json:"message,omitempty"`
	LatencyMS int64  `json:"latency_ms"`
}

type Registry struct {
	probes []Probe
}

func NewRegistry(probes ...Probe) *Registry {
	return &Registry{probes: probes}
}

func (r *Registry) Add(p Probe) {
	r.probes = append(r.probes, p)
}

// Run executes every probe concurrently, each bounded by probeTimeout.
func (r *Registry) Run(ctx context.Context) Report {
	results := make([]Result, len(r.probes))

	var wg sync.WaitGroup
	for i, p := range r.probes {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results[i] = run(ctx, p)
		}()
	}
	wg.Wait()

	report := Report{
		Status:    StatusHealthy,
		Timestamp: time.Now().UTC(),
		Checks:    make(map[string]Result, len(r.probes)),
	}
	for i, p := range r.probes {
		res := results[i]
		report.Checks[p.Name] = res
		switch {
		case res.Status == StatusUnhealthy:
			report.Status = StatusUnhealthy
		case res.Status == StatusDegraded && report.Status == StatusHealthy:
			report.Status = StatusDegraded
		}
	}
	return report
}

func run(ctx context.Context, p Probe) Result {
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	start := time.Now()
	err := p.Check(ctx)
	res := Result{Status: StatusHealthy, LatencyMS: time.Since(start).Milliseconds()}
	if err != nil {
		res.Message = err.Error()
		res.Status = StatusUnhealthy
		if p.Optional {
			res.Status = StatusDegraded
		}
	}
	return res
}

// SQL pings a database/sql pool such as the queue or the provider table.
func SQL(name string, db *sql.DB) Probe {
	return Probe{Name: name, Check: db.PingContext}
}

func Gorm(name string, db *gorm.DB) Probe {
	return Probe{Name: name, Check: func(ctx context.Context) error {
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		return sqlDB.PingContext(ctx)
	}}
}

func Redis(client redis.UniversalClient) Probe {
	return Probe{Name: "redis", Check: func(ctx context.Context) error {
		return client.Ping(ctx).Err()
	}}
}

// Mongo is optional: the outcome log is an audit trail, not part of the pipeline.
func Mongo(client *mongo.Client) Probe {
	return Probe{Name: "mongodb", Optional: true, Check: func(ctx context.Context) error {
		return client.Ping(ctx, nil)
	}}
}

// Breaker degrades the service while a circuit breaker is open.
func Breaker(name string, isOpen func() bool) Probe {
	return Probe{Name: name, Optional: true, Check: func(context.Context) error {
		if isOpen() {
			return errors.New("circuit breaker open")
		}
		return nil
	}}
}

// Handler answers 503 only when the report is unhealthy.
func Handler(r *Registry) gin.HandlerFunc {
	return func(c *gin.Context) {
		report := r.Run(c.Request.Context())
		code := http.StatusOK
		if report.Status == StatusUnhealthy {
			code = http.StatusServiceUnavailable
		}
		c.JSON(code, report)
	}
}

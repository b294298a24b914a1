// Package metrics declares the Prometheus collectors postapi exports on /metrics.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "postapi"

var (
	msBuckets = []float64{1, 5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000}

	// Intake API.
	SubmissionsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "intake", Name: "submissions_total",
		Help: "Submissions received by the intake API by bundle and result.",
	}, []string{"bundle", "status"})
	HTTPRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "requests_total",
		Help: "HTTP requests by route and status code.",
	}, []string{"method", "route", "code"})
	HTTPRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "http", Name: "request_duration_ms",
		Help:    "HTTP request latency in milliseconds.",
		Buckets: msBuckets,
	}, []string{"method", "route"})
	RateLimitRequestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "http", Name: "rate_limit_checks_total",
		Help: "Requests checked against the per-client rate limit by result.",
	}, []string{"status"})

	// Queue and drain.
	QueueClaimsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "queue", Name: "claims_total",
		Help: "Queue claim attempts by result.",
	}, []string{"result"})
	QueueSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "queue", Name: "size",
		Help: "Submissions currently queued, claimed or not.",
	})
	QueueWaitDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "queue", Name: "wait_seconds",
		Help:    "Time a submission spent queued before it was claimed.",
		Buckets: []float64{1, 10, 60, 300, 900, 3600, 21600, 86400},
	}, []string{"bundle"})
	DrainOutcomesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "drain", Name: "outcomes_total",
		Help: "Processed queue items by bundle and outcome status.",
	}, []string{"bundle", "status"})
	DrainProcessingDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "drain", Name: "item_duration_ms",
		Help:    "Processing time of one queue item in milliseconds.",
		Buckets: msBuckets,
	}, []string{"bundle", "status"})
	DrainRunsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "drain", Name: "runs_total",
		Help: "Drain cycles by result.",
	}, []string{"result"})

	// Providers and outcomes.
	ProviderCacheSize = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "provider", Name: "cache_size",
		Help: "Providers held in the registry cache.",
	})
	OutcomeSinkErrorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "outcome", Name: "sink_errors_total",
		Help: "Outcomes a sink failed to record.",
	}, []string{"sink"})

	// Kafka.
	KafkaMessagesWrittenTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "kafka", Name: "messages_written_total",
		Help: "Envelopes written to Kafka.",
	}, []string{"service", "topic"})
	KafkaWriteDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace, Subsystem: "kafka", Name: "write_duration_ms",
		Help:    "Kafka write latency in milliseconds.",
		Buckets: msBuckets[:9],
	}, []string{"service", "topic"})
	RetryAttemptsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "kafka", Name: "handler_retries_total",
		Help: "Retries of a failed message handler.",
	}, []string{"service", "topic"})
	DLQMessagesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "kafka", Name: "dlq_messages_total",
		Help: "Messages moved to the dead letter topic.",
	}, []string{"service", "topic", "reason"})

	// Circuit breakers.
	CircuitBreakerState = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: namespace, Subsystem: "circuit_breaker", Name: "state",
		Help: "Breaker state: 0 closed, 1 half-open, 2 open.",
	}, []string{"name"})
	CircuitBreakerRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "circuit_breaker", Name: "requests_total",
		Help: "Calls made through a breaker by the state after the call.",
	}, []string{"name", "state"})
	CircuitBreakerFailures = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace, Subsystem: "circuit_breaker", Name: "failures_total",
		Help: "Calls through a breaker that returned an error.",
	}, []string{"name"})
)

var registerOnce sync.Once

// Register adds every collector to the default registry. Safe to call more than once.
func Register() {
	registerOnce.Do(func() {
		prometheus.MustRegister(
			SubmissionsTotal, HTTPRequestsTotal, HTTPRequestDuration, RateLimitRequestsTotal,
			QueueClaimsTotal, QueueSize, QueueWaitDuration,
			DrainOutcomesTotal, DrainProcessingDuration, DrainRunsTotal,
			ProviderCacheSize, OutcomeSinkErrorsTotal,
			KafkaMessagesWrittenTotal, KafkaWriteDuration, RetryAttemptsTotal, DLQMessagesTotal,
			CircuitBreakerState, CircuitBreakerRequests, CircuitBreakerFailures,
		)
	})
}

func IncSubmission(bundle, status string) {
	SubmissionsTotal.WithLabelValues(bundle, status).Inc()
}

func ObserveHTTPRequest(method, route, code string, d time.Duration) {
	HTTPRequestsTotal.WithLabelValues(method, route, code).Inc()
	HTTPRequestDuration.WithLabelValues(method, route).Observe(float64(d.Milliseconds()))
}

func IncQueueClaim(result string)  { QueueClaimsTotal.WithLabelValues(result).Inc() }
func SetQueueSize(size int)        { QueueSize.Set(float64(size)) }
func IncDrainRun(result string)    { DrainRunsTotal.WithLabelValues(result).Inc() }
func SetProviderCacheSize(n int)   { ProviderCacheSize.Set(float64(n)) }
func IncOutcomeSinkError(s string) { OutcomeSinkErrorsTotal.WithLabelValues(s).Inc() }

func ObserveQueueWait(bundle string, wait time.Duration) {
	QueueWaitDuration.WithLabelValues(bundle).Observe(wait.Seconds())
}

func ObserveDrainOutcome(bundle, status string, d time.Duration) {
	DrainOutcomesTotal.WithLabelValues(bundle, status).Inc()
	DrainProcessingDuration.WithLabelValues(bundle, status).Observe(float64(d.Milliseconds()))
}

func IncKafkaMessagesWritten(service, topic string) {
	KafkaMessagesWrittenTotal.WithLabelValues(service, topic).Inc()
}

func ObserveKafkaWriteDuration(service, topic string, d time.Duration) {
	KafkaWriteDuration.WithLabelValues(service, topic).Observe(float64(d.Milliseconds()))
}

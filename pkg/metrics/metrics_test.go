package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveDrainOutcome(t *testing.T) {
	before := testutil.ToFloat64(DrainOutcomesTotal.WithLabelValues("report", "created"))

	ObserveDrainOutcome("report", "created", 12*time.Millisecond)

	after := testutil.ToFloat64(DrainOutcomesTotal.WithLabelValues("report", "created"))
	assert.Equal(t, before+1, after)
}

func TestSetQueueSize(t *testing.T) {
	SetQueueSize(7)
	assert.Equal(t, float64(7), testutil.ToFloat64(QueueSize))
}

func TestRegister_Idempotent(t *testing.T) {
	assert.NotPanics(t, func() {
		Register()
		Register()
	})
}

func TestObserveHTTPRequest(t *testing.T) {
	counter := HTTPRequestsTotal.WithLabelValues("PUT", "/api/v2/:bundle/:uuid", "202")
	before := testutil.ToFloat64(counter)

	ObserveHTTPRequest("PUT", "/api/v2/:bundle/:uuid", "202", 3*time.Millisecond)

	assert.Equal(t, before+1, testutil.ToFloat64(counter))
}

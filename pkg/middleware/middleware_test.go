package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"postapi/internal/constants"
	"postapi/internal/logger"
	"postapi/pkg/logging"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestRequestID(t *testing.T) {
	var traceID string
	r := gin.New()
	r.Use(RequestID())
	r.GET("/", func(c *gin.Context) {
		traceID = logging.GetTraceID(c.Request.Context())
		c.Status(http.StatusOK)
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	generated := w.Header().Get(HeaderRequestID)
	assert.Len(t, generated, 36)
	assert.Equal(t, generated, traceID)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	assert.Equal(t, "req-42", w.Header().Get(HeaderRequestID))
}

func TestAccessLog(t *testing.T) {
	core, observed := observer.New(zap.InfoLevel)
	log := logger.FromZap(zap.New(core))

	r := gin.New()
	r.Use(RequestID(), AccessLog(log))
	r.PUT("/api/v2/report/:uuid", func(c *gin.Context) { c.Status(http.StatusAccepted) })
	r.GET("/boom", func(c *gin.Context) { c.Status(http.StatusInternalServerError) })
	r.GET("/missing", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	req := httptest.NewRequest(http.MethodPut, "/api/v2/report/abc", nil)
	req.Header.Set(constants.HeaderProvider, "provider-1")
	r.ServeHTTP(httptest.NewRecorder(), req)
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/boom", nil))
	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/missing", nil))

	entries := observed.FilterMessage("HTTP Request").All()
	require.Len(t, entries, 3)

	first := entries[0].ContextMap()
	assert.Equal(t, int64(http.StatusAccepted), first["status"])
	assert.Equal(t, "provider-1", first["provider_id"])
	assert.NotEmpty(t, first["request_id"])
	assert.NotEmpty(t, first["trace_id"])

	assert.Equal(t, "/api/v2/report/abc", first["path"])

	assert.Equal(t, zap.ErrorLevel, entries[1].Level)
	assert.Equal(t, zap.WarnLevel, entries[2].Level)
}

func TestRecovery(t *testing.T) {
	r := gin.New()
	r.Use(Recovery(logger.NopLogger()))
	r.GET("/", func(c *gin.Context) { panic("boom") })

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Contains(t, w.Body.String(), "INTERNAL_ERROR")
}

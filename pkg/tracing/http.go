package tracing

import (
	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/otel/trace"

	"postapi/pkg/logging"
)

// Gin returns the otelgin server-span middleware followed by a handler that
// copies the span's trace id into the request context for logging.
func Gin(serviceName string) gin.HandlersChain {
	return gin.HandlersChain{otelgin.Middleware(serviceName), traceIDToContext}
}

func traceIDToContext(c *gin.Context) {
	if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
		c.Request = c.Request.WithContext(logging.WithTraceID(c.Request.Context(), sc.TraceID().String()))
	}
	c.Next()
}

// Package middleware holds the gin middleware every postapi route runs behind.
package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"postapi/internal/constants"
	"postapi/internal/logger"
	apperrors "postapi/pkg/errors"
	"postapi/pkg/logging"
	"postapi/pkg/metrics"
)

const (
	HeaderRequestID  = "X-Request-ID"
	ContextRequestID = "request_id"
)

// RequestID echoes X-Request-ID, generating one when absent. Without a
// tracing span the request id doubles as the log trace id.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ContextRequestID, id)
		c.Header(HeaderRequestID, id)

		if ctx := c.Request.Context(); logging.GetTraceID(ctx) == "" {
			c.Request = c.Request.WithContext(logging.WithTraceID(ctx, id))
		}
		c.Next()
	}
}

// AccessLog writes one log line and one metrics sample per request. Server
// errors log at error level, client errors at warn.
func AccessLog(log logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.ObserveHTTPRequest(c.Request.Method, route, strconv.Itoa(status), elapsed)

		fields := []interface{}{
			"method", c.Request.Method,
			"path", c.Request.URL.RequestURI(),
			"status", status,
			"latency", elapsed,
			"client_ip", c.ClientIP(),
			"request_id", c.GetString(ContextRequestID),
		}
		if provider := c.GetHeader(constants.HeaderProvider); provider != "" {
			fields = append(fields, "provider_id", provider)
		}
		if errs := c.Errors.ByType(gin.ErrorTypePrivate).String(); errs != "" {
			fields = append(fields, "error", errs)
		}

		ctx := c.Request.Context()
		switch {
		case status >= http.StatusInternalServerError:
			log.ErrorwCtx(ctx, "HTTP Request", fields...)
		case status >= http.StatusBadRequest:
			log.WarnwCtx(ctx, "HTTP Request", fields...)
		default:
			log.InfowCtx(ctx, "HTTP Request", fields...)
		}
	}
}

// Recovery turns a handler panic into a 500 with the standard error body.
func Recovery(log logger.Logger) gin.HandlerFunc {
	return gin.CustomRecovery(func(c *gin.Context, recovered interface{}) {
		log.ErrorwCtx(c.Request.Context(), "Panic recovered",
			"panic", recovered,
			"method", c.Request.Method,
			"path", c.Request.URL.Path,
		)
		c.AbortWithStatusJSON(http.StatusInternalServerError, apperrors.ToErrorResponse(apperrors.ErrInternal))
	})
}

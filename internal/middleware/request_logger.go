package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/trace"

	"github.com/yungbote/rentline-backend/internal/observability"
	"github.com/yungbote/rentline-backend/internal/platform/logger"
	"github.com/yungbote/rentline-backend/internal/requestdata"
)

// RequestLogger emits one structured line per request and feeds the API
// metrics. 5xx responses log at error level.
func RequestLogger(log *logger.Logger, metrics *observability.Metrics) gin.HandlerFunc {
	reqLog := log.With("component", "http")
	return func(c *gin.Context) {
		start := time.Now()
		if metrics != nil {
			metrics.ApiInflightInc()
		}

		c.Next()

		dur := time.Since(start)
		status := c.Writer.Status()
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		if metrics != nil {
			metrics.ApiInflightDec()
			metrics.ObserveAPI(c.Request.Method, route, strconv.Itoa(status), dur)
		}

		fields := []any{
			"method", c.Request.Method,
			"route", route,
			"status", status,
			"duration_ms", dur.Milliseconds(),
			"ip", c.ClientIP(),
		}
		if rd := requestdata.GetRequestData(c.Request.Context()); rd != nil {
			fields = append(fields, "request_id", rd.RequestID)
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			fields = append(fields, "trace_id", sc.TraceID().String())
		}
		if len(c.Errors) > 0 {
			fields = append(fields, "errors", c.Errors.String())
		}

		if status >= 500 {
			reqLog.Error("request failed", fields...)
		} else {
			reqLog.Info("request", fields...)
		}
	}
}

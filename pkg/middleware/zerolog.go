package middleware

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/yeisme/dataviz/pkg/context"
	"github.com/yeisme/dataviz/pkg/log"
)

// GinLoggerMiddleware 使用zerolog记录Gin请求日志的中间件.
// 日志携带 request_id 以及 trace_id/span_id（启用追踪时）.
func GinLoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		raw := c.Request.URL.RawQuery

		c.Next()

		if raw != "" {
			path = path + "?" + raw
		}

		status := c.Writer.Status()
		logger := context.WithTraceContext(c.Request.Context(), *log.Logger())

		event := logger.Info()

		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		}

		event = event.
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("method", c.Request.Method).
			Str("path", path).
			Str("client_ip", c.ClientIP()).
			Str("request_id", GetRequestID(c))

		if id, ok := GetUserID(c); ok {
			event = event.Uint("user_id", id)
		}

		if len(c.Errors) > 0 {
			event = event.Str("error", c.Errors.String())
		}

		event.Msg("HTTP request")
	}
}

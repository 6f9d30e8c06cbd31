package logger

import (
	"net/http"
	"slices"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ginRequestIDKey is where middleware.RequestID leaves the id on the gin context
const ginRequestIDKey = "request_id"

// AccessLog writes one line per request and puts log into the request
// context, so FromContext downstream carries request_id and the trace ids.
// It must run after the request id and tracing middleware. Requests to
// quiet paths are only logged when they fail with a 5xx.
func AccessLog(log *zap.Logger, quiet ...string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		req := c.Request
		ctx := WithContext(WithRequestID(req.Context(), c.GetString(ginRequestIDKey)), log)
		c.Request = req.WithContext(ctx)

		c.Next()

		status := c.Writer.Status()
		if status < http.StatusInternalServerError && slices.Contains(quiet, req.URL.Path) {
			return
		}

		lvl := zapcore.InfoLevel
		switch {
		case status >= http.StatusInternalServerError:
			lvl = zapcore.ErrorLevel
		case status >= http.StatusBadRequest:
			lvl = zapcore.WarnLevel
		}
		fields := []zap.Field{
			zap.String("method", req.Method),
			zap.String("path", req.URL.Path),
			zap.Int("status", status),
			zap.Duration("latency", time.Since(start)),
			zap.String("client_ip", c.ClientIP()),
			zap.Int("body_size", c.Writer.Size()),
		}
		if route := c.FullPath(); route != "" {
			fields = append(fields, zap.String("route", route))
		}
		if q := req.URL.RawQuery; q != "" {
			fields = append(fields, zap.String("query", q))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.Strings("errors", c.Errors.Errors()))
		}
		FromContext(ctx).Log(lvl, "request served", fields...)
	}
}

// Recovery turns a handler panic into a logged stack trace and a 500 in
// the usual error envelope.
func Recovery(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			r := recover()
			if r == nil {
				return
			}
			requestID := c.GetString(ginRequestIDKey)
			WithTraceContext(c.Request.Context(), log).Error("handler panicked",
				zap.String("request_id", requestID),
				zap.String("method", c.Request.Method),
				zap.String("path", c.Request.URL.Path),
				zap.Any("error", r),
				zap.Stack("stacktrace"),
			)
			c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{
				"success": false,
				"error": gin.H{
					"code":       "ERR_INTERNAL",
					"message":    "internal server error",
					"request_id": requestID,
				},
			})
		}()
		c.Next()
	}
}

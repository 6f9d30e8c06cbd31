package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type ctxKey int

const (
	loggerKey ctxKey = iota
	requestIDKey
	procmanIDKey
	eventIDKey
)

// WithContext stores l in ctx
func WithContext(ctx context.Context, l *zap.Logger) context.Context {
	return context.WithValue(ctx, loggerKey, l)
}

// FromContext returns the logger stored in ctx, or a no-op logger, with the
// correlation fields of ctx attached.
func FromContext(ctx context.Context) *zap.Logger {
	l, ok := ctx.Value(loggerKey).(*zap.Logger)
	if !ok || l == nil {
		return zap.NewNop()
	}
	if fields := Fields(ctx); len(fields) > 0 {
		return l.With(fields...)
	}
	return l
}

// WithRequestID tags ctx with the id of the HTTP request being served
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if requestID == "" {
		return ctx
	}
	return context.WithValue(ctx, requestIDKey, requestID)
}

// WithSagaEvent tags ctx with the process manager and event being handled.
// SQL statements and log lines issued under ctx carry both ids.
func WithSagaEvent(ctx context.Context, procmanID, eventID string) context.Context {
	if procmanID != "" {
		ctx = context.WithValue(ctx, procmanIDKey, procmanID)
	}
	if eventID != "" {
		ctx = context.WithValue(ctx, eventIDKey, eventID)
	}
	return ctx
}

// RequestID returns the request id stored in ctx, if any
func RequestID(ctx context.Context) string {
	return stringValue(ctx, requestIDKey)
}

// ProcmanID returns the process manager id stored in ctx, if any
func ProcmanID(ctx context.Context) string {
	return stringValue(ctx, procmanIDKey)
}

func stringValue(ctx context.Context, key ctxKey) string {
	s, _ := ctx.Value(key).(string)
	return s
}

// Fields collects the correlation fields present in ctx: trace_id and
// span_id from a valid span, then request_id, procman_id and event_id.
func Fields(ctx context.Context) []zap.Field {
	var fields []zap.Field
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		fields = append(fields,
			zap.String("trace_id", sc.TraceID().String()),
			zap.String("span_id", sc.SpanID().String()),
		)
	}
	for _, kv := range []struct {
		key  ctxKey
		name string
	}{
		{requestIDKey, "request_id"},
		{procmanIDKey, "procman_id"},
		{eventIDKey, "event_id"},
	} {
		if v := stringValue(ctx, kv.key); v != "" {
			fields = append(fields, zap.String(kv.name, v))
		}
	}
	return fields
}

// WithTraceContext adds trace_id and span_id from ctx to l
func WithTraceContext(ctx context.Context, l *zap.Logger) *zap.Logger {
	sc := trace.SpanContextFromContext(ctx)
	if !sc.IsValid() {
		return l
	}
	return l.With(
		zap.String("trace_id", sc.TraceID().String()),
		zap.String("span_id", sc.SpanID().String()),
	)
}

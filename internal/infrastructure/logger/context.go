package logger

import (
	"context"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

type contextKey string

// Context keys. Each key except LoggerKey doubles as the log field name.
const (
	LoggerKey    contextKey = "logger"
	RequestIDKey contextKey = "request_id"
	UserIDKey    contextKey = "user_id"
	InvoiceIDKey contextKey = "invoice_id"
)

// WithContext stores logger in ctx
func WithContext(ctx context.Context, logger *zap.Logger) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// FromContext returns the stored logger or a no-op logger
func FromContext(ctx context.Context) *zap.Logger {
	if logger, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return logger
	}
	return zap.NewNop()
}

// bind records value under key and stores a logger carrying it as a field
func bind(ctx context.Context, logger *zap.Logger, key contextKey, value string) (context.Context, *zap.Logger) {
	ctx = context.WithValue(ctx, key, value)
	enriched := logger.With(zap.String(string(key), value))
	return WithContext(ctx, enriched), enriched
}

func value(ctx context.Context, key contextKey) string {
	v, _ := ctx.Value(key).(string)
	return v
}

// WithRequestID binds the HTTP request id
func WithRequestID(ctx context.Context, logger *zap.Logger, requestID string) (context.Context, *zap.Logger) {
	return bind(ctx, logger, RequestIDKey, requestID)
}

// WithUserID binds the authenticated user
func WithUserID(ctx context.Context, logger *zap.Logger, userID string) (context.Context, *zap.Logger) {
	return bind(ctx, logger, UserIDKey, userID)
}

// WithInvoiceID binds the invoice being saved, so service, line item and SQL entries
// of one save share invoice_id. Binding the id already present is a no-op.
func WithInvoiceID(ctx context.Context, fallback *zap.Logger, invoiceID string) (context.Context, *ContextLogger) {
	if value(ctx, InvoiceIDKey) == invoiceID {
		return ctx, Or(ctx, fallback)
	}
	base := fallback
	if l, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		base = l
	}
	if base == nil {
		base = zap.NewNop()
	}
	ctx, enriched := bind(ctx, base, InvoiceIDKey, invoiceID)
	return ctx, &ContextLogger{ctx: ctx, logger: enriched}
}

func GetRequestID(ctx context.Context) string { return value(ctx, RequestIDKey) }

func GetUserID(ctx context.Context) string { return value(ctx, UserIDKey) }

func GetInvoiceID(ctx context.Context) string { return value(ctx, InvoiceIDKey) }

// GetTraceID returns the active span's trace id, or "" without a valid span
func GetTraceID(ctx context.Context) string {
	if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
		return sc.TraceID().String()
	}
	return ""
}

// ContextLogger adds trace_id to every entry when ctx carries a span.
type ContextLogger struct {
	ctx    context.Context
	logger *zap.Logger
}

// L wraps the logger stored in ctx
func L(ctx context.Context) *ContextLogger {
	return &ContextLogger{ctx: ctx, logger: FromContext(ctx)}
}

// Or is L with a fallback for contexts that carry no logger
func Or(ctx context.Context, fallback *zap.Logger) *ContextLogger {
	if l, ok := ctx.Value(LoggerKey).(*zap.Logger); ok {
		return &ContextLogger{ctx: ctx, logger: l}
	}
	if fallback == nil {
		fallback = zap.NewNop()
	}
	return &ContextLogger{ctx: ctx, logger: fallback}
}

func (cl *ContextLogger) traced() *zap.Logger {
	if id := GetTraceID(cl.ctx); id != "" {
		return cl.logger.With(zap.String("trace_id", id))
	}
	return cl.logger
}

func (cl *ContextLogger) With(fields ...zap.Field) *ContextLogger {
	return &ContextLogger{ctx: cl.ctx, logger: cl.logger.With(fields...)}
}

func (cl *ContextLogger) Debug(msg string, fields ...zap.Field) { cl.traced().Debug(msg, fields...) }

func (cl *ContextLogger) Info(msg string, fields ...zap.Field) { cl.traced().Info(msg, fields...) }

func (cl *ContextLogger) Warn(msg string, fields ...zap.Field) { cl.traced().Warn(msg, fields...) }

func (cl *ContextLogger) Error(msg string, fields ...zap.Field) { cl.traced().Error(msg, fields...) }

// Zap returns the wrapped logger with trace_id applied
func (cl *ContextLogger) Zap() *zap.Logger {
	return cl.traced()
}

package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext_DefaultsToNop(t *testing.T) {
	log := FromContext(context.Background())
	require.NotNil(t, log)
	assert.False(t, log.Core().Enabled(zapcore.ErrorLevel))
}

func TestWithRequestIDAndUserID(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	base := zap.New(core)

	ctx, _ := WithRequestID(context.Background(), base, "req-1")
	ctx, _ = WithUserID(ctx, FromContext(ctx), "user-9")

	assert.Equal(t, "req-1", GetRequestID(ctx))
	assert.Equal(t, "user-9", GetUserID(ctx))

	L(ctx).Info("saved")
	entries := recorded.FilterMessage("saved").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "req-1", fields["request_id"])
	assert.Equal(t, "user-9", fields["user_id"])
}

func TestContextLogger_AddsTraceID(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)

	traceID, _ := trace.TraceIDFromHex("4bf92f3577b34da6a3ce929d0e0e4736")
	spanID, _ := trace.SpanIDFromHex("00f067aa0ba902b7")
	sc := trace.NewSpanContext(trace.SpanContextConfig{TraceID: traceID, SpanID: spanID, TraceFlags: trace.FlagsSampled})
	ctx := trace.ContextWithSpanContext(WithContext(context.Background(), zap.New(core)), sc)

	L(ctx).With(zap.String("invoice_id", "abc")).Warn("traced")

	entries := recorded.FilterMessage("traced").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", fields["trace_id"])
	assert.Equal(t, "abc", fields["invoice_id"])
	assert.Equal(t, "4bf92f3577b34da6a3ce929d0e0e4736", GetTraceID(ctx))
}

func TestOr_UsesFallback(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)

	Or(context.Background(), zap.New(core)).Debug("fallback")
	assert.Equal(t, 1, recorded.FilterMessage("fallback").Len())

	assert.NotPanics(t, func() { Or(context.Background(), nil).Info("nop") })
}

func TestWithInvoiceID(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)
	ctx, _ := WithRequestID(context.Background(), zap.New(core), "req-7")

	ctx, log := WithInvoiceID(ctx, nil, "inv-1")
	log.Info("header inserted")
	assert.Equal(t, "inv-1", GetInvoiceID(ctx))

	again, log := WithInvoiceID(ctx, nil, "inv-1")
	assert.Equal(t, ctx, again)
	log.Info("line items inserted")

	entries := recorded.All()
	require.Len(t, entries, 2)
	for _, e := range entries {
		fields := e.ContextMap()
		assert.Equal(t, "req-7", fields["request_id"])
		assert.Equal(t, "inv-1", fields["invoice_id"])
	}
	assert.Len(t, entries[1].Context, 2)
}

func TestWithInvoiceID_UsesFallbackWithoutStoredLogger(t *testing.T) {
	core, recorded := observer.New(zapcore.DebugLevel)

	ctx, log := WithInvoiceID(context.Background(), zap.New(core), "inv-2")
	log.Debug("save started")
	FromContext(ctx).Debug("from context")

	for _, e := range recorded.All() {
		assert.Equal(t, "inv-2", e.ContextMap()["invoice_id"])
	}
	assert.Equal(t, 2, recorded.Len())
}

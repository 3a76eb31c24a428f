package trace

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/sdk/resource"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"

	"github.com/amoylab/wshub/internal/common/config"
)

func TestInitTracing_Disabled(t *testing.T) {
	shutdown, err := InitTracing(context.Background(), &config.TracingConfig{}, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, shutdown(context.Background()))
}

func TestInitTracing_HTTP_NoopUsage(t *testing.T) {
	// HTTP avoids opening a gRPC connection in tests
	cfg := &config.TracingConfig{
		Enabled:     true,
		ServiceName: "wshub-test",
		Protocol:    "http",
		Insecure:    true,
		SamplerRate: 2.5, // clamped to 1.0
		Environment: "dev",
		Headers:     map[string]string{"x-test": "1"},
	}

	prev := otel.GetTracerProvider()
	t.Cleanup(func() { otel.SetTracerProvider(prev) })

	shutdown, err := InitTracing(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	require.NotNil(t, shutdown)
	require.NoError(t, shutdown(context.Background()))
}

func withRecorder(t *testing.T) *tracetest.SpanRecorder {
	t.Helper()
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(
		sdktrace.WithSpanProcessor(sr),
		sdktrace.WithResource(resource.Empty()),
	)
	prev := otel.GetTracerProvider()
	otel.SetTracerProvider(tp)
	t.Cleanup(func() {
		otel.SetTracerProvider(prev)
		_ = tp.Shutdown(context.Background())
	})
	return sr
}

func TestBuilder_Start_WithAttrs_End(t *testing.T) {
	sr := withRecorder(t)

	scope := Tracer("trace-test").Start(context.Background(), "op")
	scope.WithAttrs(attribute.String("k", "v")).End()

	spans := sr.Ended()
	require.Len(t, spans, 1)
	found := false
	for _, a := range spans[0].Attributes() {
		if a.Key == "k" && a.Value.AsString() == "v" {
			found = true
		}
	}
	require.True(t, found, "expected attribute k=v to be set on span")
}

func TestSpanScope_FinishRecordsError(t *testing.T) {
	sr := withRecorder(t)

	Tracer("trace-test").Start(context.Background(), "failing").Finish(errors.New("boom"))

	spans := sr.Ended()
	require.Len(t, spans, 1)
	require.Equal(t, codes.Error, spans[0].Status().Code)
	require.Equal(t, "boom", spans[0].Status().Description)

	// nil scopes are tolerated
	var s *SpanScope
	s.Finish(nil)
	s.End()
}

package interceptors

import (
	"testing"

	"go.opentelemetry.io/otel/propagation"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

func TestTracingOptionsCollectsConfiguredOptions(t *testing.T) {
	opts := TracingOptions{
		TracerProvider: sdktrace.NewTracerProvider(),
		Propagators:    propagation.TraceContext{},
	}
	if got := len(opts.options()); got != 2 {
		t.Fatalf("expected 2 otelgrpc options, got %d", got)
	}
	if got := len(TracingOptions{}.options()); got != 0 {
		t.Fatalf("expected no options for zero value, got %d", got)
	}
}

func TestStatsHandlersAreBuilt(t *testing.T) {
	opts := TracingOptions{TracerProvider: sdktrace.NewTracerProvider()}
	if ServerStatsHandler(opts) == nil || ClientStatsHandler(opts) == nil {
		t.Fatal("expected stats handlers")
	}
	if ServerTracing(opts) == nil || ClientTracing(opts) == nil {
		t.Fatal("expected grpc options")
	}
}

package interceptors

import (
	"google.golang.org/grpc"
	"google.golang.org/grpc/stats"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

// TracingOptions customises the OpenTelemetry instrumentation of gRPC traffic.
type TracingOptions struct {
	TracerProvider trace.TracerProvider
	Propagators    propagation.TextMapPropagator
	Additional     []otelgrpc.Option
}

func (opts TracingOptions) options() []otelgrpc.Option {
	options := make([]otelgrpc.Option, 0, len(opts.Additional)+2)
	if opts.TracerProvider != nil {
		options = append(options, otelgrpc.WithTracerProvider(opts.TracerProvider))
	}
	if opts.Propagators != nil {
		options = append(options, otelgrpc.WithPropagators(opts.Propagators))
	}
	return append(options, opts.Additional...)
}

// ServerStatsHandler returns the otelgrpc stats handler for servers.
func ServerStatsHandler(opts TracingOptions) stats.Handler {
	return otelgrpc.NewServerHandler(opts.options()...)
}

// ClientStatsHandler returns the otelgrpc stats handler for clients.
func ClientStatsHandler(opts TracingOptions) stats.Handler {
	return otelgrpc.NewClientHandler(opts.options()...)
}

// ServerTracing returns a server option that traces every RPC.
func ServerTracing(opts TracingOptions) grpc.ServerOption {
	return grpc.StatsHandler(ServerStatsHandler(opts))
}

// ClientTracing returns a dial option that traces outgoing RPCs and propagates context.
func ClientTracing(opts TracingOptions) grpc.DialOption {
	return grpc.WithStatsHandler(ClientStatsHandler(opts))
}

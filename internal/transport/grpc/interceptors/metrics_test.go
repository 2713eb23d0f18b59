package interceptors

import (
	"context"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func TestGRPCMetricsUnaryInterceptorRecordsMetrics(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	interceptor := metrics.UnaryServerInterceptor()

	handler := func(ctx context.Context, req any) (any, error) {
		time.Sleep(5 * time.Millisecond)
		return "ok", nil
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/portal.v1.AccessService/ValidateToken"}

	if _, err := interceptor(context.Background(), struct{}{}, info, handler); err != nil {
		t.Fatalf("unexpected handler error: %v", err)
	}

	labels := prometheus.Labels{"service": "portal.v1.AccessService", "method": "ValidateToken", "code": codes.OK.String()}

	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected request counter 1, got %f", got)
	}

	if inflight := testutil.ToFloat64(metrics.inFlight.WithLabelValues("portal.v1.AccessService")); inflight != 0 {
		t.Fatalf("expected in-flight gauge 0, got %f", inflight)
	}

	if samples := testutil.CollectAndCount(metrics.duration); samples == 0 {
		t.Fatalf("expected histogram to record observations")
	}
}

func TestGRPCMetricsUnaryInterceptorPropagatesErrors(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}

	interceptor := metrics.UnaryServerInterceptor()

	handler := func(ctx context.Context, req any) (any, error) {
		return nil, status.Error(codes.PermissionDenied, "denied")
	}

	info := &grpc.UnaryServerInfo{FullMethod: "/portal.v1.AccessService/CheckAccess"}

	if _, err := interceptor(context.Background(), struct{}{}, info, handler); status.Code(err) != codes.PermissionDenied {
		t.Fatalf("expected permission denied, got %v", err)
	}

	labels := prometheus.Labels{"service": "portal.v1.AccessService", "method": "CheckAccess", "code": codes.PermissionDenied.String()}
	if got := testutil.ToFloat64(metrics.requests.With(labels)); got != 1 {
		t.Fatalf("expected request counter 1 for denied call, got %f", got)
	}
}

func TestGRPCMetricsReusesRegisteredCollectors(t *testing.T) {
	registry := prometheus.NewRegistry()
	first, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("failed to create metrics: %v", err)
	}
	second, err := NewGRPCMetrics(GRPCMetricsOptions{Registerer: registry})
	if err != nil {
		t.Fatalf("second construction failed: %v", err)
	}
	if first.requests != second.requests {
		t.Fatal("expected the registered counter to be reused")
	}

	first.inFlight.WithLabelValues("portal.v1.AccessService").Inc()
	families, err := registry.Gather()
	if err != nil {
		t.Fatalf("gather: %v", err)
	}
	for _, family := range families {
		if family.GetName() == "portal_grpc_in_flight_requests" {
			return
		}
	}
	t.Fatal("expected portal_grpc_in_flight_requests family")
}

func TestSplitFullMethod(t *testing.T) {
	cases := []struct {
		in, service, method string
	}{
		{"/portal.v1.AccessService/CheckAccess", "portal.v1.AccessService", "CheckAccess"},
		{"", "unknown", "unknown"},
		{"/broken", "broken", "unknown"},
		{"//Method", "unknown", "Method"},
	}
	for _, tc := range cases {
		service, method := splitFullMethod(tc.in)
		if service != tc.service || method != tc.method {
			t.Fatalf("splitFullMethod(%q) = %q, %q", tc.in, service, method)
		}
	}
}

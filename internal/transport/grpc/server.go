package transportgrpc

import (
	"errors"

	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/reflection"

	grpcinterceptors "github.com/arklim/portal-identity/internal/transport/grpc/interceptors"
	"github.com/arklim/portal-identity/internal/transport/grpc/portalv1"
	"github.com/arklim/portal-identity/internal/transport/grpc/server"
)

// ServerDependencies encapsulates services required by the gRPC server layer.
type ServerDependencies struct {
	Auth    server.TokenValidator
	Access  server.AccessChecker
	Metrics *grpcinterceptors.GRPCMetrics
	Tracing *grpcinterceptors.TracingOptions
	Logger  *zap.Logger
	// PublicMethods skip the bearer check. ValidateToken is always public.
	PublicMethods []string
	Reflection    bool
}

// NewServer wires gRPC services with authentication enforced through interceptors.
func NewServer(deps ServerDependencies) (*grpc.Server, error) {
	if deps.Auth == nil {
		return nil, errors.New("token validator is required")
	}
	if deps.Access == nil {
		return nil, errors.New("access checker is required")
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	public := append([]string{portalv1.ValidateTokenMethod}, deps.PublicMethods...)
	authInterceptor := grpcinterceptors.NewAuthInterceptor(deps.Auth, grpcinterceptors.AuthOptions{
		Logger:       logger,
		AllowMethods: public,
	})

	unaryInterceptors := []grpc.UnaryServerInterceptor{
		deps.Metrics.UnaryServerInterceptor(),
		authInterceptor.UnaryServerInterceptor(),
	}

	options := []grpc.ServerOption{grpc.ChainUnaryInterceptor(unaryInterceptors...)}
	if deps.Tracing != nil {
		options = append(options, grpcinterceptors.ServerTracing(*deps.Tracing))
	}

	srv := grpc.NewServer(options...)
	portalv1.RegisterAccessServiceServer(srv, server.NewAccessServer(deps.Auth, deps.Access, logger))

	// grpcurl and similar tools discover services through reflection.
	if deps.Reflection {
		reflection.Register(srv)
	}

	return srv, nil
}

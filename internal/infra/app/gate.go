package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/arklim/portal-identity/internal/gate"
	"github.com/arklim/portal-identity/internal/infra/config"
	"github.com/arklim/portal-identity/internal/infra/logger"
	"github.com/arklim/portal-identity/internal/infra/telemetry"
	grpcinterceptors "github.com/arklim/portal-identity/internal/transport/grpc/interceptors"
	"github.com/arklim/portal-identity/internal/transport/http/middleware"
)

// GateApplication runs the subdomain access-control gate.
type GateApplication struct {
	cfg    *config.GateConfig
	engine *gin.Engine
	logger *zap.Logger
	tracer *telemetry.TracerProvider
	conn   *grpc.ClientConn
}

// NewGate builds the gate from its configuration.
func NewGate(ctx context.Context, cfg *config.GateConfig, version string) (*GateApplication, error) {
	log, err := logger.New(cfg.App.Env, cfg.App.Name)
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	if err := telemetry.InitSentry(cfg.Telemetry.SentryDSN, cfg.App.Env, version); err != nil {
		log.Warn("sentry disabled", zap.Error(err))
	}
	tracer, err := telemetry.NewTracerProvider(ctx, cfg.Telemetry, version, log)
	if err != nil {
		return nil, fmt.Errorf("init tracing: %w", err)
	}

	registry := prometheus.NewRegistry()
	metrics, err := telemetry.NewMetrics(registry, "portal")
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}
	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{
		Registerer: registry,
		Subsystem:  "gate_http",
		SkipPaths:  []string{gate.HealthPath, gate.MetricsPath},
	})
	if err != nil {
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	hosts, err := cfg.Gate.HostTable()
	if err != nil {
		return nil, err
	}
	resolver, err := gate.NewHostResolver(hosts)
	if err != nil {
		return nil, err
	}
	upstreams, err := cfg.Gate.UpstreamTable()
	if err != nil {
		return nil, err
	}

	application := &GateApplication{cfg: cfg, logger: log, tracer: tracer}

	verifier, err := application.verifier()
	if err != nil {
		return nil, err
	}

	var g *gate.Gate
	proxy := gate.NewProxy(upstreams, log, func(w http.ResponseWriter, r *http.Request) {
		g.UpstreamUnavailable(w, r)
	})
	for _, resource := range resolver.Resources() {
		if !proxy.Handles(resource) {
			log.Warn("resource has no upstream configured", zap.String("resource", string(resource)))
		}
	}

	g, err = gate.New(gate.Config{
		Resolver: resolver,
		Verifier: verifier,
		Upstream: proxy,
		Limiter:  gate.NewIPLimiter(cfg.Gate.RateLimitRPS, cfg.Gate.RateLimitBurst),
		Metrics:  metrics,
		Logger:   log,
		MainURL:  cfg.App.PublicURL,
		LoginURL: cfg.Gate.LoginURL,
	})
	if err != nil {
		application.closeConn()
		return nil, err
	}

	application.engine = gate.NewRouter(gate.RouterDependencies{
		Gate:     g,
		Logger:   log,
		Metrics:  httpMetrics,
		Gatherer: registry,
	})
	return application, nil
}

func (a *GateApplication) verifier() (gate.Verifier, error) {
	central := a.cfg.Central
	if central.Transport != "grpc" {
		a.logger.Info("gate verifying over http", zap.String("base_url", central.BaseURL))
		return gate.NewHTTPVerifier(central.BaseURL, central.Timeout, nil)
	}

	conn, err := grpc.NewClient(central.GRPCAddress,
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpcinterceptors.ClientTracing(grpcinterceptors.TracingOptions{}),
	)
	if err != nil {
		return nil, fmt.Errorf("dial identity service: %w", err)
	}
	a.conn = conn
	a.logger.Info("gate verifying over grpc", zap.String("address", central.GRPCAddress))
	return gate.NewGRPCVerifier(conn, central.Timeout), nil
}

// Run serves the gate until ctx is cancelled.
func (a *GateApplication) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.closeConn()

	srv := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.App.Host, fmt.Sprint(a.cfg.App.Port)),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting portal gate",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run gate: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-serverErrCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("gate shutdown failed", zap.Error(err))
	}
	if err := a.tracer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("tracer shutdown failed", zap.Error(err))
	}
	telemetry.FlushSentry()

	return runErr
}

func (a *GateApplication) closeConn() {
	if a.conn != nil {
		_ = a.conn.Close()
		a.conn = nil
	}
}

package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"google.golang.org/grpc"

	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/infra/config"
	"github.com/arklim/portal-identity/internal/infra/database"
	kafkainfra "github.com/arklim/portal-identity/internal/infra/kafka"
	"github.com/arklim/portal-identity/internal/infra/logger"
	"github.com/arklim/portal-identity/internal/infra/mail"
	redisinfra "github.com/arklim/portal-identity/internal/infra/redis"
	"github.com/arklim/portal-identity/internal/infra/security"
	"github.com/arklim/portal-identity/internal/infra/telemetry"
	postgresrepo "github.com/arklim/portal-identity/internal/repository/postgres"
	redisrepo "github.com/arklim/portal-identity/internal/repository/redis"
	transportgrpc "github.com/arklim/portal-identity/internal/transport/grpc"
	grpcinterceptors "github.com/arklim/portal-identity/internal/transport/grpc/interceptors"
	"github.com/arklim/portal-identity/internal/transport/http/middleware"
	"github.com/arklim/portal-identity/internal/transport/http/routes"
	"github.com/arklim/portal-identity/internal/usecase"
)

const shutdownTimeout = 10 * time.Second

// Application owns the identity service's long-lived resources.
type Application struct {
	cfg        *config.AppConfig
	engine     *gin.Engine
	logger     *zap.Logger
	pool       *pgxpool.Pool
	redis      *redisinfra.Client
	producer   *kafkainfra.Producer
	dispatcher *mail.Dispatcher
	janitor    *usecase.TokenJanitor
	tracer     *telemetry.TracerProvider
	grpcServer *grpc.Server
	grpcAddr   string
}

// New connects every backing service and wires the HTTP and gRPC surfaces.
func New(ctx context.Context, cfg *config.AppConfig, version string) (*Application, error) {
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
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics, err := telemetry.NewMetrics(registry, "portal")
	if err != nil {
		return nil, fmt.Errorf("init metrics: %w", err)
	}

	pool, err := database.NewPostgresPool(ctx, cfg.Postgres, log)
	if err != nil {
		return nil, fmt.Errorf("init postgres: %w", err)
	}
	if cfg.Postgres.AutoMigrate {
		if err := database.RunMigrations(ctx, pool, log); err != nil {
			pool.Close()
			return nil, fmt.Errorf("run migrations: %w", err)
		}
	}

	redisClient, err := redisinfra.NewClient(ctx, cfg.Redis, log)
	if err != nil {
		pool.Close()
		return nil, fmt.Errorf("init redis: %w", err)
	}

	application := &Application{
		cfg:    cfg,
		logger: log,
		pool:   pool,
		redis:  redisClient,
		tracer: tracer,
	}

	events := application.eventPublisher()

	dispatcher, err := newDispatcher(cfg.Mail, metrics, log)
	if err != nil {
		application.closeStores()
		return nil, err
	}
	application.dispatcher = dispatcher

	renderer, err := mail.NewRenderer()
	if err != nil {
		application.closeStores()
		return nil, fmt.Errorf("init mail templates: %w", err)
	}
	notifier := mail.NewNotifier(mail.NotifierConfig{
		SiteName:     cfg.App.Name,
		PublicURL:    cfg.App.PublicURL,
		AdminAddress: cfg.Mail.AdminAddress,
	}, renderer, dispatcher, log)

	authenticator, err := security.NewAuthenticator(security.Config{
		BcryptCost:    cfg.Security.BcryptCost,
		AccessSecret:  cfg.JWT.AccessSecret,
		RefreshSecret: cfg.JWT.RefreshSecret,
		Issuer:        cfg.JWT.Issuer,
		AccessTTL:     cfg.JWT.AccessTokenTTL,
		RefreshTTL:    cfg.JWT.RefreshTokenTTL,
	})
	if err != nil {
		application.closeStores()
		return nil, fmt.Errorf("init authenticator: %w", err)
	}

	repos := postgresrepo.NewRepositories(pool)

	authService := usecase.NewAuthService(usecase.AuthConfig{
		AccessTTL:        cfg.JWT.AccessTokenTTL,
		RememberMeTTL:    cfg.JWT.RememberMeTTL,
		LockoutThreshold: cfg.Security.LockoutThreshold,
		LockoutDuration:  cfg.Security.LockoutDuration,
	}, repos.Accounts, repos.Tokens, authenticator, authenticator, notifier, events, log)
	verificationService := usecase.NewVerificationService(repos.Accounts, repos.Tokens, notifier, events, log)
	passwordService := usecase.NewPasswordService(repos.Accounts, repos.Tokens, authenticator, notifier, events, log)
	accountService := usecase.NewAccountService(repos.Accounts, repos.Tokens, authenticator, events, log)
	accessService := usecase.NewAccessService(repos.Grants, repos.Accounts, notifier, events, log)
	contactService := usecase.NewContactService(repos.Contacts, notifier, events, log)

	analyticsStore := redisrepo.NewAnalyticsRepository(redisClient.Client(), redisrepo.AnalyticsConfig{
		KeyPrefix: cfg.Redis.AnalyticsPrefix,
		TTL:       cfg.Redis.AnalyticsTTL,
	})
	analyticsService := usecase.NewAnalyticsService(analyticsStore, log)

	application.janitor = usecase.NewTokenJanitor(repos.Tokens, cfg.Tokens.CleanupInterval, log)

	if created, err := accountService.BootstrapAdmin(ctx, cfg.Admin.BootstrapEmail, cfg.Admin.BootstrapPassword); err != nil {
		log.Error("admin bootstrap failed", zap.String("email", logger.MaskEmail(cfg.Admin.BootstrapEmail)), zap.Error(err))
	} else if created {
		log.Info("bootstrap administrator created", zap.String("email", logger.MaskEmail(cfg.Admin.BootstrapEmail)))
	}

	window := cfg.RateLimit.WindowDuration
	if window <= 0 {
		window = time.Minute
	}
	rateLimitStore := redisrepo.NewRateLimitRepository(redisClient.Client(), redisrepo.SlidingWindowConfig{
		KeyPrefix: cfg.Redis.RateLimitPrefix,
		TTL:       window * 2,
	})

	httpMetrics, err := middleware.NewHTTPMetrics(middleware.HTTPMetricsOptions{
		Registerer: registry,
		SkipPaths:  []string{"/metrics"},
	})
	if err != nil {
		application.closeStores()
		return nil, fmt.Errorf("init http metrics: %w", err)
	}

	application.engine = routes.Register(routes.Dependencies{
		Config:      cfg,
		Logger:      log,
		RateLimiter: middleware.NewRateLimiter(rateLimitStore, log),
		HTTPMetrics: httpMetrics,
		AuthMetrics: metrics,
		Gatherer:    registry,
		Database:    pool,
		Cache:       redisClient,
		Services: routes.ServiceSet{
			Auth:         authService,
			Verification: verificationService,
			Passwords:    passwordService,
			Accounts:     accountService,
			Access:       accessService,
			Contacts:     contactService,
			Analytics:    analyticsService,
		},
	})

	if cfg.GRPC.Enabled {
		grpcMetrics, err := grpcinterceptors.NewGRPCMetrics(grpcinterceptors.GRPCMetricsOptions{Registerer: registry})
		if err != nil {
			application.closeStores()
			return nil, fmt.Errorf("init grpc metrics: %w", err)
		}
		grpcSrv, err := transportgrpc.NewServer(transportgrpc.ServerDependencies{
			Auth:       authService,
			Access:     accessService,
			Metrics:    grpcMetrics,
			Tracing:    &grpcinterceptors.TracingOptions{},
			Logger:     log,
			Reflection: !cfg.App.IsProduction(),
		})
		if err != nil {
			application.closeStores()
			return nil, fmt.Errorf("init grpc server: %w", err)
		}
		application.grpcServer = grpcSrv
		application.grpcAddr = net.JoinHostPort(cfg.GRPC.Host, fmt.Sprint(cfg.GRPC.Port))
	}

	return application, nil
}

func (a *Application) eventPublisher() port.EventPublisher {
	if !a.cfg.Kafka.Enabled || len(a.cfg.Kafka.Brokers) == 0 {
		a.logger.Info("kafka disabled, using stub publisher")
		return kafkainfra.NewStubPublisher(a.logger)
	}

	producer, err := kafkainfra.NewProducer(a.cfg.Kafka, a.logger)
	if err != nil {
		a.logger.Warn("failed to init kafka producer, using stub publisher", zap.Error(err))
		return kafkainfra.NewStubPublisher(a.logger)
	}
	a.producer = producer
	a.logger.Info("kafka event publisher initialized", zap.Strings("brokers", a.cfg.Kafka.Brokers))
	return kafkainfra.NewEventPublisher(producer, a.cfg.App, a.logger)
}

func newDispatcher(cfg config.MailSettings, metrics *telemetry.Metrics, log *zap.Logger) (*mail.Dispatcher, error) {
	var transport mail.Mailer
	switch strings.ToLower(cfg.Transport) {
	case "smtp":
		smtpMailer, err := mail.NewSMTPMailer(mail.SMTPConfig{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			Username: cfg.SMTPUsername,
			Password: cfg.SMTPPassword,
			From:     cfg.From,
			Timeout:  cfg.SendTimeout,
		})
		if err != nil {
			return nil, fmt.Errorf("init smtp mailer: %w", err)
		}
		transport = smtpMailer
	case "", "log":
		transport = mail.NewLogMailer(log)
	default:
		return nil, fmt.Errorf("unsupported mail transport %q", cfg.Transport)
	}

	retrying := mail.NewRetryingMailer(transport, cfg.MaxAttempts, cfg.RetryBackoff, log)
	return mail.NewDispatcher(retrying, mail.DispatcherConfig{
		QueueSize:   cfg.QueueSize,
		Workers:     cfg.Workers,
		SendTimeout: cfg.SendTimeout,
	}, metrics, log), nil
}

// Run serves HTTP and gRPC until ctx is cancelled or a server fails, then drains
// background work and releases every resource.
func (a *Application) Run(ctx context.Context) error {
	defer func() {
		_ = a.logger.Sync()
	}()
	defer a.closeStores()

	a.dispatcher.Start()

	janitorCtx, stopJanitor := context.WithCancel(ctx)
	defer stopJanitor()
	go a.janitor.Run(janitorCtx)

	grpcErrCh := make(chan error, 1)
	if a.grpcServer != nil {
		lis, err := net.Listen("tcp", a.grpcAddr)
		if err != nil {
			return fmt.Errorf("listen grpc: %w", err)
		}
		a.logger.Info("starting gRPC server", zap.String("address", a.grpcAddr))
		go func() {
			if err := a.grpcServer.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
				grpcErrCh <- fmt.Errorf("run grpc server: %w", err)
			}
		}()
	}

	srv := &http.Server{
		Addr:              net.JoinHostPort(a.cfg.App.Host, fmt.Sprint(a.cfg.App.Port)),
		Handler:           a.engine,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	a.logger.Info("starting portal identity API",
		zap.String("env", a.cfg.App.Env),
		zap.String("address", srv.Addr),
	)

	serverErrCh := make(chan error, 1)
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- fmt.Errorf("run server: %w", err)
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		a.logger.Info("shutdown signal received")
	case runErr = <-serverErrCh:
	case runErr = <-grpcErrCh:
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.logger.Error("http shutdown failed", zap.Error(err))
	}
	if a.grpcServer != nil {
		a.grpcServer.GracefulStop()
	}
	stopJanitor()
	if err := a.dispatcher.Stop(shutdownCtx); err != nil {
		a.logger.Warn("mail queue not fully drained", zap.Error(err))
	}
	if err := a.tracer.Shutdown(shutdownCtx); err != nil {
		a.logger.Warn("tracer shutdown failed", zap.Error(err))
	}
	telemetry.FlushSentry()

	return runErr
}

func (a *Application) closeStores() {
	if a.producer != nil {
		if err := a.producer.Close(); err != nil {
			a.logger.Warn("kafka producer close failed", zap.Error(err))
		}
		a.producer = nil
	}
	if a.redis != nil {
		_ = a.redis.Close()
		a.redis = nil
	}
	if a.pool != nil {
		a.pool.Close()
		a.pool = nil
	}
}

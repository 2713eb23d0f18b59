package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const envPrefix = "PORTAL"

type AppConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Postgres  PostgresSettings  `mapstructure:"postgres"`
	Redis     RedisSettings     `mapstructure:"redis"`
	Kafka     KafkaSettings     `mapstructure:"kafka"`
	JWT       JWTSettings       `mapstructure:"jwt"`
	GRPC      GRPCSettings      `mapstructure:"grpc"`
	Security  SecuritySettings  `mapstructure:"security"`
	Cookie    CookieSettings    `mapstructure:"cookie"`
	Mail      MailSettings      `mapstructure:"mail"`
	Admin     AdminSettings     `mapstructure:"admin"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
	RateLimit RateLimitSettings `mapstructure:"rate_limit"`
	Tokens    TokenSettings     `mapstructure:"tokens"`
}

type AppSettings struct {
	Name string `mapstructure:"name"`
	Env  string `mapstructure:"env"`
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
	// PublicURL is the main-site origin used in email links and gate pages.
	PublicURL      string   `mapstructure:"public_url"`
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

// IsProduction reports whether the service runs with production semantics.
func (a AppSettings) IsProduction() bool {
	return strings.EqualFold(a.Env, "production")
}

type GRPCSettings struct {
	Enabled bool   `mapstructure:"enabled"`
	Host    string `mapstructure:"host"`
	Port    int    `mapstructure:"port"`
}

type PostgresSettings struct {
	Host              string        `mapstructure:"host"`
	Port              int           `mapstructure:"port"`
	User              string        `mapstructure:"user"`
	Password          string        `mapstructure:"password"`
	Database          string        `mapstructure:"database"`
	SSLMode           string        `mapstructure:"ssl_mode"`
	MaxConns          int32         `mapstructure:"max_conns"`
	MinConns          int32         `mapstructure:"min_conns"`
	MaxConnLifetime   time.Duration `mapstructure:"max_conn_lifetime"`
	MaxConnIdleTime   time.Duration `mapstructure:"max_conn_idle_time"`
	HealthCheckPeriod time.Duration `mapstructure:"health_check_period"`
	AutoMigrate       bool          `mapstructure:"auto_migrate"`
}

// RedisSettings configures Redis connection and key namespaces.
type RedisSettings struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	DB              int           `mapstructure:"db"`
	Password        string        `mapstructure:"password"`
	TLSEnabled      bool          `mapstructure:"tls_enabled"`
	AnalyticsPrefix string        `mapstructure:"analytics_prefix"`
	AnalyticsTTL    time.Duration `mapstructure:"analytics_ttl"`
	RateLimitPrefix string        `mapstructure:"rate_limit_prefix"`
}

// KafkaSettings configures the domain event producer.
type KafkaSettings struct {
	Enabled     bool     `mapstructure:"enabled"`
	Brokers     []string `mapstructure:"brokers"`
	TopicPrefix string   `mapstructure:"topic_prefix"`
}

type JWTSettings struct {
	AccessSecret    string        `mapstructure:"access_secret"`
	RefreshSecret   string        `mapstructure:"refresh_secret"`
	Issuer          string        `mapstructure:"issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl"`
	RememberMeTTL   time.Duration `mapstructure:"remember_me_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl"`
}

// SecuritySettings configures hashing cost and sign-in lockout.
type SecuritySettings struct {
	BcryptCost       int           `mapstructure:"bcrypt_cost"`
	LockoutThreshold int           `mapstructure:"lockout_threshold"`
	LockoutDuration  time.Duration `mapstructure:"lockout_duration"`
}

// CookieSettings configures the session cookies shared across subdomains.
type CookieSettings struct {
	Domain string `mapstructure:"domain"`
	Path   string `mapstructure:"path"`
}

// MailSettings configures outbound email delivery.
type MailSettings struct {
	Transport    string        `mapstructure:"transport"`
	SMTPHost     string        `mapstructure:"smtp_host"`
	SMTPPort     int           `mapstructure:"smtp_port"`
	SMTPUsername string        `mapstructure:"smtp_username"`
	SMTPPassword string        `mapstructure:"smtp_password"`
	From         string        `mapstructure:"from"`
	AdminAddress string        `mapstructure:"admin_address"`
	QueueSize    int           `mapstructure:"queue_size"`
	Workers      int           `mapstructure:"workers"`
	MaxAttempts  int           `mapstructure:"max_attempts"`
	RetryBackoff time.Duration `mapstructure:"retry_backoff"`
	SendTimeout  time.Duration `mapstructure:"send_timeout"`
}

// AdminSettings seeds the first administrator on start.
type AdminSettings struct {
	BootstrapEmail    string `mapstructure:"bootstrap_email"`
	BootstrapPassword string `mapstructure:"bootstrap_password"`
}

type TelemetrySettings struct {
	OTLPEndpoint  string  `mapstructure:"otlp_endpoint"`
	ServiceName   string  `mapstructure:"service_name"`
	SamplingRate  float64 `mapstructure:"sampling_rate"`
	SentryDSN     string  `mapstructure:"sentry_dsn"`
	EnableTracing bool    `mapstructure:"enable_tracing"`
}

// RateLimitSettings configures rate limiting windows and max attempts per endpoint. Zero disables a rule.
type RateLimitSettings struct {
	WindowDuration            time.Duration `mapstructure:"window_duration"`
	LoginMaxAttempts          int           `mapstructure:"login_max_attempts"`
	RegisterMaxAttempts       int           `mapstructure:"register_max_attempts"`
	PasswordForgotMaxAttempts int           `mapstructure:"password_forgot_max_attempts"`
	ContactMaxAttempts        int           `mapstructure:"contact_max_attempts"`
}

// TokenSettings configures credential token housekeeping.
type TokenSettings struct {
	CleanupInterval time.Duration `mapstructure:"cleanup_interval"`
}

var (
	// ErrMissingSecrets indicates JWT secrets were not provided.
	ErrMissingSecrets = errors.New("config: jwt access and refresh secrets are required")
	// ErrSharedSecrets indicates both JWT namespaces use the same secret.
	ErrSharedSecrets = errors.New("config: jwt access and refresh secrets must differ")
)

func Load() (*AppConfig, error) {
	v := newViper()
	setDefaults(v)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.public_url",
		"app.allowed_origins",
		"grpc.enabled",
		"grpc.host",
		"grpc.port",
		"postgres.host",
		"postgres.port",
		"postgres.user",
		"postgres.password",
		"postgres.database",
		"postgres.ssl_mode",
		"postgres.max_conns",
		"postgres.min_conns",
		"postgres.max_conn_lifetime",
		"postgres.max_conn_idle_time",
		"postgres.health_check_period",
		"postgres.auto_migrate",
		"redis.host",
		"redis.port",
		"redis.db",
		"redis.password",
		"redis.tls_enabled",
		"redis.analytics_prefix",
		"redis.analytics_ttl",
		"redis.rate_limit_prefix",
		"kafka.enabled",
		"kafka.brokers",
		"kafka.topic_prefix",
		"jwt.access_secret",
		"jwt.refresh_secret",
		"jwt.issuer",
		"jwt.access_token_ttl",
		"jwt.remember_me_ttl",
		"jwt.refresh_token_ttl",
		"security.bcrypt_cost",
		"security.lockout_threshold",
		"security.lockout_duration",
		"cookie.domain",
		"cookie.path",
		"mail.transport",
		"mail.smtp_host",
		"mail.smtp_port",
		"mail.smtp_username",
		"mail.smtp_password",
		"mail.from",
		"mail.admin_address",
		"mail.queue_size",
		"mail.workers",
		"mail.max_attempts",
		"mail.retry_backoff",
		"mail.send_timeout",
		"admin.bootstrap_email",
		"admin.bootstrap_password",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"telemetry.sentry_dsn",
		"telemetry.enable_tracing",
		"rate_limit.window_duration",
		"rate_limit.login_max_attempts",
		"rate_limit.register_max_attempts",
		"rate_limit.password_forgot_max_attempts",
		"rate_limit.contact_max_attempts",
		"tokens.cleanup_interval",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg AppConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks invariants that defaults cannot guarantee.
func (c *AppConfig) Validate() error {
	if strings.TrimSpace(c.JWT.AccessSecret) == "" || strings.TrimSpace(c.JWT.RefreshSecret) == "" {
		return ErrMissingSecrets
	}
	if c.JWT.AccessSecret == c.JWT.RefreshSecret {
		return ErrSharedSecrets
	}
	return nil
}

func newViper() *viper.Viper {
	v := viper.New()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetEnvPrefix(envPrefix)
	return v
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.name", "portal-identity")
	v.SetDefault("app.env", "development")
	v.SetDefault("app.host", "0.0.0.0")
	v.SetDefault("app.port", 8080)
	v.SetDefault("app.public_url", "http://localhost:3000")
	v.SetDefault("app.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("grpc.enabled", true)
	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)

	v.SetDefault("postgres.host", "localhost")
	v.SetDefault("postgres.port", 5432)
	v.SetDefault("postgres.user", "portal")
	v.SetDefault("postgres.password", "portal_password")
	v.SetDefault("postgres.database", "portal")
	v.SetDefault("postgres.ssl_mode", "disable")
	v.SetDefault("postgres.max_conns", 10)
	v.SetDefault("postgres.min_conns", 2)
	v.SetDefault("postgres.max_conn_lifetime", "60m")
	v.SetDefault("postgres.max_conn_idle_time", "15m")
	v.SetDefault("postgres.health_check_period", "30s")
	v.SetDefault("postgres.auto_migrate", true)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.tls_enabled", false)
	v.SetDefault("redis.analytics_prefix", "portal:analytics")
	v.SetDefault("redis.analytics_ttl", "2160h")
	v.SetDefault("redis.rate_limit_prefix", "portal:rate_limit")

	v.SetDefault("kafka.enabled", false)
	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.topic_prefix", "portal")

	v.SetDefault("jwt.issuer", "portal-identity")
	v.SetDefault("jwt.access_token_ttl", "24h")
	v.SetDefault("jwt.remember_me_ttl", "168h")
	v.SetDefault("jwt.refresh_token_ttl", "168h")

	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.lockout_threshold", 5)
	v.SetDefault("security.lockout_duration", "30m")

	v.SetDefault("cookie.domain", "")
	v.SetDefault("cookie.path", "/")

	v.SetDefault("mail.transport", "log")
	v.SetDefault("mail.smtp_host", "localhost")
	v.SetDefault("mail.smtp_port", 587)
	v.SetDefault("mail.from", "Portal <no-reply@localhost>")
	v.SetDefault("mail.admin_address", "")
	v.SetDefault("mail.queue_size", 256)
	v.SetDefault("mail.workers", 2)
	v.SetDefault("mail.max_attempts", 3)
	v.SetDefault("mail.retry_backoff", "1s")
	v.SetDefault("mail.send_timeout", "30s")

	v.SetDefault("telemetry.otlp_endpoint", "http://localhost:4318")
	v.SetDefault("telemetry.service_name", "portal-identity")
	v.SetDefault("telemetry.sampling_rate", 1.0)
	v.SetDefault("telemetry.enable_tracing", false)

	// Sliding windows backed by Redis.
	v.SetDefault("rate_limit.window_duration", "1m")
	v.SetDefault("rate_limit.login_max_attempts", 10)
	v.SetDefault("rate_limit.register_max_attempts", 5)
	v.SetDefault("rate_limit.password_forgot_max_attempts", 3)
	v.SetDefault("rate_limit.contact_max_attempts", 3)

	v.SetDefault("tokens.cleanup_interval", "1h")
}

func bindEnvs(v *viper.Viper, keys []string) error {
	for _, key := range keys {
		envKey := strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, envPrefix+"_"+envKey, envKey); err != nil {
			return fmt.Errorf("bind env for %s: %w", key, err)
		}
	}
	return nil
}

package config

import (
	"fmt"
	"net/url"
	"strings"
	"time"
)

// GateConfig configures the subdomain access-control gate.
type GateConfig struct {
	App       AppSettings       `mapstructure:"app"`
	Central   CentralSettings   `mapstructure:"central"`
	Gate      GateSettings      `mapstructure:"gate"`
	Telemetry TelemetrySettings `mapstructure:"telemetry"`
}

// CentralSettings locates the identity service the gate verifies against.
type CentralSettings struct {
	// Transport selects "http" or "grpc".
	Transport   string        `mapstructure:"transport"`
	BaseURL     string        `mapstructure:"base_url"`
	GRPCAddress string        `mapstructure:"grpc_address"`
	Timeout     time.Duration `mapstructure:"timeout"`
}

// GateSettings holds the static host table and upstream targets.
type GateSettings struct {
	// Hosts maps host names to resource identifiers, "labs.example.com=labs,docs.example.com=docs".
	Hosts string `mapstructure:"hosts"`
	// Upstreams maps resource identifiers to upstream origins, "labs=http://labs:3000".
	Upstreams string `mapstructure:"upstreams"`
	// LoginURL is linked from the sign-in page; defaults to PublicURL + "/login".
	LoginURL       string  `mapstructure:"login_url"`
	RateLimitRPS   float64 `mapstructure:"rate_limit_rps"`
	RateLimitBurst int     `mapstructure:"rate_limit_burst"`
}

// HostTable parses Hosts into a lower-cased host to resource map.
func (g GateSettings) HostTable() (map[string]string, error) {
	return parsePairs(g.Hosts, true)
}

// UpstreamTable parses Upstreams into a resource to URL map.
func (g GateSettings) UpstreamTable() (map[string]*url.URL, error) {
	pairs, err := parsePairs(g.Upstreams, false)
	if err != nil {
		return nil, err
	}
	out := make(map[string]*url.URL, len(pairs))
	for resource, raw := range pairs {
		target, err := url.Parse(raw)
		if err != nil || target.Scheme == "" || target.Host == "" {
			return nil, fmt.Errorf("config: invalid upstream for %s: %q", resource, raw)
		}
		out[resource] = target
	}
	return out, nil
}

func parsePairs(raw string, lowerKeys bool) (map[string]string, error) {
	out := make(map[string]string)
	for _, entry := range strings.Split(raw, ",") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		key, value, ok := strings.Cut(entry, "=")
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)
		if !ok || key == "" || value == "" {
			return nil, fmt.Errorf("config: malformed pair %q", entry)
		}
		if lowerKeys {
			key = strings.ToLower(key)
		}
		out[key] = value
	}
	return out, nil
}

// LoadGate reads the gate configuration from the environment.
func LoadGate() (*GateConfig, error) {
	v := newViper()
	setDefaults(v)
	v.SetDefault("app.name", "portal-gate")
	v.SetDefault("app.port", 8090)
	v.SetDefault("telemetry.service_name", "portal-gate")
	v.SetDefault("central.transport", "http")
	v.SetDefault("central.base_url", "http://localhost:8080")
	v.SetDefault("central.grpc_address", "localhost:50051")
	v.SetDefault("central.timeout", "5s")
	v.SetDefault("gate.hosts", "")
	v.SetDefault("gate.upstreams", "")
	v.SetDefault("gate.login_url", "")
	v.SetDefault("gate.rate_limit_rps", 0)
	v.SetDefault("gate.rate_limit_burst", 20)

	if err := bindEnvs(v, []string{
		"app.name",
		"app.env",
		"app.host",
		"app.port",
		"app.public_url",
		"central.transport",
		"central.base_url",
		"central.grpc_address",
		"central.timeout",
		"gate.hosts",
		"gate.upstreams",
		"gate.login_url",
		"gate.rate_limit_rps",
		"gate.rate_limit_burst",
		"telemetry.otlp_endpoint",
		"telemetry.service_name",
		"telemetry.sampling_rate",
		"telemetry.sentry_dsn",
		"telemetry.enable_tracing",
	}); err != nil {
		return nil, err
	}

	v.AutomaticEnv()

	var cfg GateConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal gate config: %w", err)
	}

	if cfg.Gate.LoginURL == "" {
		cfg.Gate.LoginURL = strings.TrimRight(cfg.App.PublicURL, "/") + "/login"
	}
	switch cfg.Central.Transport {
	case "http", "grpc":
	default:
		return nil, fmt.Errorf("config: unsupported central transport %q", cfg.Central.Transport)
	}
	if _, err := cfg.Gate.HostTable(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

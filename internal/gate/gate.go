package gate

import (
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/infra/logger"
)

// Decision outcomes recorded by DecisionRecorder.
const (
	OutcomeAllowed     = "allowed"
	OutcomeUnknownHost = "unknown_host"
	OutcomeRateLimited = "rate_limited"
	OutcomeNoToken     = "no_token"
	OutcomeRejected    = "rejected"
	OutcomeDenied      = "denied"
	OutcomeUnavailable = "unavailable"
	OutcomeNoUpstream  = "no_upstream"
	unresolvedResource = "unresolved"
)

// DecisionRecorder counts gate decisions.
type DecisionRecorder interface {
	RecordGate(resource, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordGate(string, string) {}

// Config carries the gate's collaborators.
type Config struct {
	Resolver *HostResolver
	Verifier Verifier
	Upstream http.Handler
	Limiter  *IPLimiter
	Metrics  DecisionRecorder
	Logger   *zap.Logger
	// MainURL is the portal's public origin; LoginURL its sign-in page.
	MainURL  string
	LoginURL string
	Now      func() time.Time
}

// Gate authorizes subdomain requests.
type Gate struct {
	resolver *HostResolver
	verifier Verifier
	upstream http.Handler
	limiter  *IPLimiter
	metrics  DecisionRecorder
	log      *zap.Logger
	mainURL  string
	loginURL string
	now      func() time.Time
}

// New validates cfg and builds a Gate.
func New(cfg Config) (*Gate, error) {
	if cfg.Resolver == nil {
		return nil, errors.New("gate: host resolver is required")
	}
	if cfg.Verifier == nil {
		return nil, errors.New("gate: verifier is required")
	}
	if cfg.Upstream == nil {
		return nil, errors.New("gate: upstream handler is required")
	}

	g := &Gate{
		resolver: cfg.Resolver,
		verifier: cfg.Verifier,
		upstream: cfg.Upstream,
		limiter:  cfg.Limiter,
		metrics:  cfg.Metrics,
		log:      cfg.Logger,
		mainURL:  strings.TrimRight(cfg.MainURL, "/"),
		loginURL: cfg.LoginURL,
		now:      cfg.Now,
	}
	if g.metrics == nil {
		g.metrics = noopRecorder{}
	}
	if g.log == nil {
		g.log = zap.NewNop()
	}
	if g.now == nil {
		g.now = time.Now
	}
	return g, nil
}

// Handle runs the access decision for one request and forwards it when allowed.
func (g *Gate) Handle(c *gin.Context) {
	resource, found := g.resolver.Resolve(c.Request.Host)
	if !found {
		g.decide(unresolvedResource, OutcomeUnknownHost)
		renderPage(c, unknownHostPage(g.mainURL))
		return
	}
	label := string(resource)

	if !g.limiter.Allow(c.ClientIP()) {
		g.decide(label, OutcomeRateLimited)
		c.Header("Retry-After", "1")
		renderPage(c, rateLimitedPage(g.mainURL))
		return
	}

	token, source := ExtractToken(c.Request)
	if token == "" {
		g.decide(label, OutcomeNoToken)
		renderPage(c, signInPage(g.mainURL, g.loginLink(c)))
		return
	}

	ctx := c.Request.Context()
	log := g.log.With(
		zap.String("resource", label),
		zap.String("token_source", string(source)),
		zap.String("client_ip", logger.MaskIP(c.ClientIP())),
		zap.String("request_id", logger.RequestIDFromContext(ctx)),
	)

	identity, err := g.verifier.Validate(ctx, token)
	if err != nil {
		g.fail(c, log, label, "validate", err)
		return
	}

	decision, err := g.verifier.Check(ctx, token, resource)
	if err != nil {
		g.fail(c, log, label, "check", err)
		return
	}
	if !decision.HasAccess {
		g.decide(label, OutcomeDenied)
		log.Info("gate denied request", zap.String("account_id", identity.AccountID), zap.String("reason", decision.Reason))
		renderPage(c, forbiddenPage(decision.Reason, g.mainURL))
		return
	}

	verifiedAt := decision.CheckedAt
	if verifiedAt.IsZero() {
		verifiedAt = g.now()
	}

	g.decide(label, OutcomeAllowed)
	c.Request = c.Request.WithContext(WithAccess(ctx, Access{
		Identity:   *identity,
		Resource:   resource,
		VerifiedAt: verifiedAt,
	}))
	g.upstream.ServeHTTP(c.Writer, c.Request)
	c.Abort()
}

// UpstreamUnavailable renders the page shown when an upstream cannot be reached.
func (g *Gate) UpstreamUnavailable(w http.ResponseWriter, r *http.Request) {
	if access, found := AccessFromContext(r.Context()); found {
		g.decide(string(access.Resource), OutcomeNoUpstream)
	}
	writePage(w, badGatewayPage(g.mainURL))
}

func (g *Gate) fail(c *gin.Context, log *zap.Logger, resource, op string, err error) {
	var rejected *RejectionError
	if errors.As(err, &rejected) {
		g.decide(resource, OutcomeRejected)
		log.Info("gate rejected token", zap.String("op", op), zap.String("code", rejected.Code))
		renderPage(c, rejectedPage(rejected.Code, g.mainURL, g.loginLink(c)))
		return
	}

	g.decide(resource, OutcomeUnavailable)
	log.Error("gate verification failed", zap.String("op", op), zap.Error(err))
	renderPage(c, unavailablePage(g.mainURL))
}

func (g *Gate) decide(resource, outcome string) {
	g.metrics.RecordGate(resource, outcome)
}

// loginLink points at the sign-in page with a redirect back to the requested URL.
func (g *Gate) loginLink(c *gin.Context) string {
	if g.loginURL == "" {
		return ""
	}
	scheme := "http"
	if c.Request.TLS != nil {
		scheme = "https"
	}
	if proto := c.GetHeader("X-Forwarded-Proto"); proto == "https" || proto == "http" {
		scheme = proto
	}
	back := scheme + "://" + c.Request.Host + c.Request.URL.RequestURI()

	target, err := url.Parse(g.loginURL)
	if err != nil {
		return g.loginURL
	}
	query := target.Query()
	query.Set("redirect", back)
	target.RawQuery = query.Encode()
	return target.String()
}

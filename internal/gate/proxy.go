package gate

import (
	"context"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/core/domain"
)

// Headers set on every proxied request. Client supplied values are dropped.
const (
	HeaderAccountID       = "X-Portal-Account-Id"
	HeaderAccountEmail    = "X-Portal-Account-Email"
	HeaderAccountRole     = "X-Portal-Account-Role"
	HeaderGrantVerifiedAt = "X-Portal-Grant-Verified-At"
	portalHeaderPrefix    = "X-Portal-"
)

// flushImmediately streams upstream responses such as server-sent events.
const flushImmediately = -1

// Access is the verified caller and grant attached to a proxied request.
type Access struct {
	Identity   Identity
	Resource   domain.Resource
	VerifiedAt time.Time
}

type accessKey struct{}

// WithAccess stores the verified access on ctx.
func WithAccess(ctx context.Context, access Access) context.Context {
	return context.WithValue(ctx, accessKey{}, access)
}

// AccessFromContext returns the verified access stored by the gate.
func AccessFromContext(ctx context.Context) (Access, bool) {
	access, found := ctx.Value(accessKey{}).(Access)
	return access, found
}

// Proxy forwards verified requests to the upstream of their resource.
type Proxy struct {
	proxies map[domain.Resource]*httputil.ReverseProxy
	onError func(http.ResponseWriter, *http.Request)
}

// NewProxy builds one reverse proxy per upstream. onError renders failures.
func NewProxy(upstreams map[string]*url.URL, log *zap.Logger, onError func(http.ResponseWriter, *http.Request)) *Proxy {
	if log == nil {
		log = zap.NewNop()
	}

	proxies := make(map[domain.Resource]*httputil.ReverseProxy, len(upstreams))
	for resource, target := range upstreams {
		proxies[domain.Resource(resource)] = &httputil.ReverseProxy{
			Rewrite: func(pr *httputil.ProxyRequest) {
				pr.SetURL(target)
				pr.SetXForwarded()
				setIdentityHeaders(pr.In.Context(), pr.Out.Header)
			},
			FlushInterval: flushImmediately,
			ErrorHandler: func(w http.ResponseWriter, r *http.Request, err error) {
				log.Warn("upstream request failed",
					zap.String("resource", resource),
					zap.String("upstream", target.Host),
					zap.Error(err),
				)
				failUpstream(w, r, onError)
			},
		}
	}
	return &Proxy{proxies: proxies, onError: onError}
}

// Handles reports whether an upstream exists for resource.
func (p *Proxy) Handles(resource domain.Resource) bool {
	_, found := p.proxies[resource]
	return found
}

// ServeHTTP forwards r to the upstream of the resource in its verified access.
func (p *Proxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	access, found := AccessFromContext(r.Context())
	if !found {
		w.WriteHeader(http.StatusForbidden)
		return
	}
	proxy, found := p.proxies[access.Resource]
	if !found {
		failUpstream(w, r, p.onError)
		return
	}
	proxy.ServeHTTP(w, r)
}

func failUpstream(w http.ResponseWriter, r *http.Request, onError func(http.ResponseWriter, *http.Request)) {
	if onError != nil {
		onError(w, r)
		return
	}
	w.WriteHeader(http.StatusBadGateway)
}

func setIdentityHeaders(ctx context.Context, header http.Header) {
	for name := range header {
		if strings.HasPrefix(name, portalHeaderPrefix) {
			header.Del(name)
		}
	}

	access, found := AccessFromContext(ctx)
	if !found {
		return
	}
	header.Set(HeaderAccountID, access.Identity.AccountID)
	header.Set(HeaderAccountEmail, access.Identity.Email)
	header.Set(HeaderAccountRole, access.Identity.Role)
	header.Set(HeaderGrantVerifiedAt, access.VerifiedAt.UTC().Format(time.RFC3339))
}

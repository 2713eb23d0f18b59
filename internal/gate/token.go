package gate

import (
	"net/http"
	"strings"
)

const (
	// SubdomainTokenCookie is issued by subdomain front-ends and takes priority.
	SubdomainTokenCookie = "portal_subdomain_token"
	// AccessTokenCookie is the site-wide session cookie set by the identity service.
	AccessTokenCookie = "access_token"
)

// TokenSource names where a token was found.
type TokenSource string

const (
	SourceNone            TokenSource = ""
	SourceSubdomainCookie TokenSource = "subdomain_cookie"
	SourceAccessCookie    TokenSource = "access_cookie"
	SourceBearer          TokenSource = "bearer"
)

// ExtractToken returns the first non-empty token in cookie, cookie, header order.
func ExtractToken(r *http.Request) (string, TokenSource) {
	for _, candidate := range []struct {
		name   string
		source TokenSource
	}{
		{SubdomainTokenCookie, SourceSubdomainCookie},
		{AccessTokenCookie, SourceAccessCookie},
	} {
		if cookie, err := r.Cookie(candidate.name); err == nil {
			if value := strings.TrimSpace(cookie.Value); value != "" {
				return value, candidate.source
			}
		}
	}

	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		if token := strings.TrimSpace(header[7:]); token != "" {
			return token, SourceBearer
		}
	}
	return "", SourceNone
}

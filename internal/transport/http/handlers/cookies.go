package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/portal-identity/internal/transport/http/middleware"
	"github.com/arklim/portal-identity/internal/usecase"
)

// CookieConfig controls the session cookies shared by every portal subdomain.
type CookieConfig struct {
	Domain string
	Path   string
	// Secure marks both cookies Secure and SameSite=None. Otherwise SameSite=Lax is used.
	Secure bool
}

func (cfg CookieConfig) sameSite() http.SameSite {
	if cfg.Secure {
		return http.SameSiteNoneMode
	}
	return http.SameSiteLaxMode
}

func (cfg CookieConfig) path() string {
	if cfg.Path == "" {
		return "/"
	}
	return cfg.Path
}

func (cfg CookieConfig) set(c *gin.Context, name, value string, maxAge int) {
	c.SetSameSite(cfg.sameSite())
	c.SetCookie(name, value, maxAge, cfg.path(), cfg.Domain, cfg.Secure, true)
}

// setSessionCookies writes both cookies with lifetimes matching the token expiries.
func (cfg CookieConfig) setSessionCookies(c *gin.Context, tokens usecase.TokenPair, now time.Time) {
	cfg.set(c, middleware.AccessTokenCookie, tokens.AccessToken, maxAge(tokens.AccessExpiresAt, now))
	cfg.set(c, middleware.RefreshTokenCookie, tokens.RefreshToken, maxAge(tokens.RefreshExpiresAt, now))
}

func (cfg CookieConfig) clearSessionCookies(c *gin.Context) {
	cfg.set(c, middleware.AccessTokenCookie, "", -1)
	cfg.set(c, middleware.RefreshTokenCookie, "", -1)
}

func maxAge(expiresAt, now time.Time) int {
	seconds := int(expiresAt.Sub(now).Seconds())
	if seconds <= 0 {
		return -1
	}
	return seconds
}

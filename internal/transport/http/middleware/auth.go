package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/usecase"
)

const (
	// AccessTokenCookie carries the access token for every subdomain.
	AccessTokenCookie = "access_token"
	// RefreshTokenCookie carries the refresh token.
	RefreshTokenCookie = "refresh_token"
)

// TokenValidator verifies access tokens against the account store.
type TokenValidator interface {
	ValidateToken(ctx context.Context, accessToken string) (*usecase.TokenValidation, error)
}

// ExtractAccessToken returns the bearer token, falling back to the access cookie.
func ExtractAccessToken(c *gin.Context) string {
	if header := c.GetHeader("Authorization"); header != "" {
		scheme, token, ok := strings.Cut(header, " ")
		if ok && strings.EqualFold(scheme, "Bearer") {
			if token = strings.TrimSpace(token); token != "" {
				return token
			}
		}
	}
	if cookie, err := c.Cookie(AccessTokenCookie); err == nil {
		return strings.TrimSpace(cookie)
	}
	return ""
}

// RequireAuth validates the caller's access token and attaches the account.
func RequireAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := ExtractAccessToken(c)
		if token == "" {
			AbortWithError(c, domain.ErrNoToken)
			return
		}

		validation, err := validator.ValidateToken(c.Request.Context(), token)
		if err != nil {
			AbortWithError(c, err)
			return
		}

		attach(c, validation)
		c.Next()
	}
}

// OptionalAuth attaches the account when a valid token is present and never rejects.
func OptionalAuth(validator TokenValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token := ExtractAccessToken(c); token != "" {
			if validation, err := validator.ValidateToken(c.Request.Context(), token); err == nil {
				attach(c, validation)
			}
		}
		c.Next()
	}
}

// RequireAdmin rejects callers whose role is not admin. It must run after RequireAuth.
func RequireAdmin() gin.HandlerFunc {
	return func(c *gin.Context) {
		account, ok := CurrentAccount(c)
		if !ok {
			AbortWithError(c, domain.ErrNoToken)
			return
		}
		if account.Role != domain.RoleAdmin {
			AbortWithError(c, usecase.ErrForbidden)
			return
		}
		c.Next()
	}
}

func attach(c *gin.Context, validation *usecase.TokenValidation) {
	c.Set(AccountKey, validation.Account)
	c.Set(ValidationKey, validation)
	if reqCtx := GetRequestContext(c); reqCtx != nil {
		reqCtx.AccountID = validation.Account.ID
	}
}

package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/transport/http/middleware"
	"github.com/arklim/portal-identity/internal/usecase"
)

const outcomeSuccess = "success"

// AuthHandler exposes registration, sign-in, session and email verification endpoints.
type AuthHandler struct {
	auth         AuthFlows
	verification VerificationFlows
	passwords    PasswordFlows
	cookies      CookieConfig
	metrics      AuthRecorder
	now          func() time.Time
}

// AuthHandlerOption configures optional AuthHandler dependencies.
type AuthHandlerOption func(*AuthHandler)

// WithAuthMetrics records sign-in, registration and refresh outcomes.
func WithAuthMetrics(metrics AuthRecorder) AuthHandlerOption {
	return func(h *AuthHandler) {
		if metrics != nil {
			h.metrics = metrics
		}
	}
}

// WithHandlerClock overrides the clock used for cookie lifetimes.
func WithHandlerClock(now func() time.Time) AuthHandlerOption {
	return func(h *AuthHandler) {
		if now != nil {
			h.now = now
		}
	}
}

// NewAuthHandler constructs AuthHandler.
func NewAuthHandler(auth AuthFlows, verification VerificationFlows, passwords PasswordFlows, cookies CookieConfig, opts ...AuthHandlerOption) *AuthHandler {
	handler := &AuthHandler{
		auth:         auth,
		verification: verification,
		passwords:    passwords,
		cookies:      cookies,
		metrics:      noopRecorder{},
		now:          time.Now,
	}

	for _, opt := range opts {
		if opt != nil {
			opt(handler)
		}
	}

	return handler
}

// AuthRouteLimits holds the per-route rate limit middleware. Nil entries are skipped.
type AuthRouteLimits struct {
	Register       gin.HandlerFunc
	Login          gin.HandlerFunc
	PasswordForgot gin.HandlerFunc
}

// RegisterRoutes binds authentication routes, applying rate limits ahead of the public forms.
func (h *AuthHandler) RegisterRoutes(r *gin.RouterGroup, limits AuthRouteLimits) {
	requireAuth := middleware.RequireAuth(h.auth)

	r.POST("/register", chain(limits.Register, h.Register)...)
	r.POST("/login", chain(limits.Login, h.Login)...)
	r.POST("/refresh", h.Refresh)
	r.POST("/logout", requireAuth, h.Logout)
	r.GET("/validate", h.Validate)
	r.POST("/verify-email", h.VerifyEmail)
	r.POST("/resend-verification", requireAuth, h.ResendVerification)

	password := r.Group("/password")
	password.POST("/forgot", chain(limits.PasswordForgot, h.ForgotPassword)...)
	password.POST("/reset", h.ResetPassword)
	password.POST("/change", requireAuth, h.ChangePassword)
}

func chain(limit, handler gin.HandlerFunc) []gin.HandlerFunc {
	if limit == nil {
		return []gin.HandlerFunc{handler}
	}
	return []gin.HandlerFunc{limit, handler}
}

// Register godoc
// @Summary Register a new account
// @Description Creates an account, emails a verification link and starts a session.
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body RegisterRequest true "Registration payload"
// @Success 201 {object} SuccessResponse
// @Failure 400 {object} middleware.ErrorEnvelope
// @Failure 409 {object} middleware.ErrorEnvelope
// @Router /api/v1/auth/register [post]
func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.auth.Register(c.Request.Context(), usecase.RegisterInput{
		Email:        req.Email,
		Password:     req.Password,
		FirstName:    req.FirstName,
		LastName:     req.LastName,
		Handle:       req.Handle,
		ReferralCode: req.ReferralCode,
		Client:       middleware.ClientInfo(c),
	})
	h.record("register", err)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	h.cookies.setSessionCookies(c, result.Tokens, h.now())
	c.JSON(http.StatusCreated, SuccessResponse{
		Success: true,
		Message: "registration successful, check your email to verify your address",
		Data:    newSessionPayload(result),
	})
}

// Login godoc
// @Summary Sign in with email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body LoginRequest true "Login payload"
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} middleware.ErrorEnvelope
// @Failure 423 {object} middleware.ErrorEnvelope
// @Failure 429 {object} middleware.ErrorEnvelope
// @Router /api/v1/auth/login [post]
func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if !bindJSON(c, &req) {
		return
	}

	result, err := h.auth.Login(c.Request.Context(), usecase.LoginInput{
		Email:      req.Email,
		Password:   req.Password,
		RememberMe: req.RememberMe,
		Client:     middleware.ClientInfo(c),
	})
	h.record("login", err)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	h.cookies.setSessionCookies(c, result.Tokens, h.now())
	c.JSON(http.StatusOK, success(newSessionPayload(result)))
}

// Refresh godoc
// @Summary Rotate the session tokens
// @Description Accepts the refresh token from the body or the refresh cookie.
// @Tags Authentication
// @Accept json
// @Produce json
// @Success 200 {object} SuccessResponse
// @Failure 401 {object} middleware.ErrorEnvelope
// @Router /api/v1/auth/refresh [post]
func (h *AuthHandler) Refresh(c *gin.Context) {
	var req RefreshRequest
	if !bindJSON(c, &req) {
		return
	}

	token := strings.TrimSpace(req.RefreshToken)
	if token == "" {
		if cookie, err := c.Cookie(middleware.RefreshTokenCookie); err == nil {
			token = strings.TrimSpace(cookie)
		}
	}
	if token == "" {
		h.record("refresh", domain.ErrNoToken)
		RespondWithError(c, domain.ErrNoToken)
		return
	}

	result, err := h.auth.Refresh(c.Request.Context(), token, middleware.ClientInfo(c))
	h.record("refresh", err)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	h.cookies.setSessionCookies(c, result.Tokens, h.now())
	c.JSON(http.StatusOK, success(newSessionPayload(result)))
}

// Logout godoc
// @Summary End every session of the caller
// @Tags Authentication
// @Security Bearer
// @Produce json
// @Success 200 {object} SuccessResponse
// @Router /api/v1/auth/logout [post]
func (h *AuthHandler) Logout(c *gin.Context) {
	account, found := currentAccount(c)
	if !found {
		return
	}

	if _, err := h.auth.Logout(c.Request.Context(), account.ID); err != nil {
		RespondWithError(c, err)
		return
	}

	h.cookies.clearSessionCookies(c)
	c.JSON(http.StatusOK, okMessage("signed out"))
}

// Validate godoc
// @Summary Validate an access token
// @Description Verifies the bearer token or access cookie and returns the owning account.
// @Tags Authentication
// @Produce json
// @Success 200 {object} ValidateResponse
// @Failure 401 {object} middleware.ErrorEnvelope
// @Failure 423 {object} middleware.ErrorEnvelope
// @Router /api/v1/auth/validate [get]
func (h *AuthHandler) Validate(c *gin.Context) {
	token := middleware.ExtractAccessToken(c)
	if token == "" {
		h.record("validate", domain.ErrNoToken)
		RespondWithError(c, domain.ErrNoToken)
		return
	}

	validation, err := h.auth.ValidateToken(c.Request.Context(), token)
	h.record("validate", err)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, ValidateResponse{
		Success: true,
		User:    newAccountPayload(validation.Account),
		Validation: ValidationDetails{
			Valid:       true,
			IssuedAt:    validation.IssuedAt,
			ExpiresAt:   validation.ExpiresAt,
			ValidatedAt: validation.ValidatedAt,
		},
	})
}

// VerifyEmail godoc
// @Summary Confirm an email address
// @Tags Authentication
// @Accept json
// @Produce json
// @Param request body TokenRequest true "Verification token"
// @Success 200 {object} SuccessResponse
// @Failure 400 {object} middleware.ErrorEnvelope
// @Router /api/v1/auth/verify-email [post]
func (h *AuthHandler) VerifyEmail(c *gin.Context) {
	var req TokenRequest
	if !bindJSON(c, &req) {
		return
	}
	if req.Token == "" {
		req.Token = c.Query("token")
	}

	account, err := h.verification.VerifyEmail(c.Request.Context(), req.Token)
	h.record("verify_email", err)
	if err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, SuccessResponse{
		Success: true,
		Message: "email verified",
		Data:    newAccountPayload(*account),
	})
}

// ResendVerification emails a fresh verification link to the caller.
func (h *AuthHandler) ResendVerification(c *gin.Context) {
	account, found := currentAccount(c)
	if !found {
		return
	}

	if err := h.verification.ResendVerification(c.Request.Context(), account.ID, middleware.ClientInfo(c)); err != nil {
		RespondWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, okMessage("verification email sent"))
}

func (h *AuthHandler) record(operation string, err error) {
	outcome := outcomeSuccess
	if err != nil {
		outcome = domain.CodeOf(err)
	}
	h.metrics.RecordAuth(operation, outcome)
}

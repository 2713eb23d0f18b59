package handlers

import (
	"time"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/usecase"
)

// SuccessResponse wraps every successful API payload.
type SuccessResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

func success(data any) SuccessResponse {
	return SuccessResponse{Success: true, Data: data}
}

func okMessage(message string) SuccessResponse {
	return SuccessResponse{Success: true, Message: message}
}

// AccountPayload is the public projection of an account. It never carries the secret hash.
type AccountPayload struct {
	ID            string               `json:"id"`
	Email         string               `json:"email"`
	Handle        *string              `json:"handle,omitempty"`
	FirstName     string               `json:"firstName"`
	LastName      string               `json:"lastName"`
	AvatarURL     *string              `json:"avatarUrl,omitempty"`
	Bio           *string              `json:"bio,omitempty"`
	Role          domain.Role          `json:"role"`
	Status        domain.AccountStatus `json:"status"`
	IsActive      bool                 `json:"isActive"`
	EmailVerified bool                 `json:"emailVerified"`
	ReferralCode  string               `json:"referralCode"`
	LastLoginAt   *time.Time           `json:"lastLoginAt,omitempty"`
	RegisteredAt  time.Time            `json:"registeredAt"`
}

func newAccountPayload(account domain.Account) AccountPayload {
	return AccountPayload{
		ID:            account.ID,
		Email:         account.Email,
		Handle:        account.Handle,
		FirstName:     account.FirstName,
		LastName:      account.LastName,
		AvatarURL:     account.AvatarURL,
		Bio:           account.Bio,
		Role:          account.Role,
		Status:        account.Status,
		IsActive:      account.IsActive,
		EmailVerified: account.EmailVerified,
		ReferralCode:  account.ReferralCode,
		LastLoginAt:   account.LastLoginAt,
		RegisteredAt:  account.RegisteredAt,
	}
}

// RegisterRequest is the sign-up form.
type RegisterRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Handle       string `json:"handle"`
	ReferralCode string `json:"referralCode"`
}

// LoginRequest is the sign-in form.
type LoginRequest struct {
	Email      string `json:"email"`
	Password   string `json:"password"`
	RememberMe bool   `json:"rememberMe"`
}

// RefreshRequest optionally carries the refresh token when the cookie is unavailable.
type RefreshRequest struct {
	RefreshToken string `json:"refreshToken"`
}

// SessionPayload is returned by every flow that starts or rotates a session.
type SessionPayload struct {
	User             AccountPayload `json:"user"`
	AccessToken      string         `json:"accessToken"`
	RefreshToken     string         `json:"refreshToken"`
	ExpiresAt        time.Time      `json:"expiresAt"`
	RefreshExpiresAt time.Time      `json:"refreshExpiresAt"`
	PasswordStrength string         `json:"passwordStrength,omitempty"`
}

func newSessionPayload(result *usecase.AuthResult) SessionPayload {
	return SessionPayload{
		User:             newAccountPayload(result.Account),
		AccessToken:      result.Tokens.AccessToken,
		RefreshToken:     result.Tokens.RefreshToken,
		ExpiresAt:        result.Tokens.AccessExpiresAt,
		RefreshExpiresAt: result.Tokens.RefreshExpiresAt,
		PasswordStrength: string(result.PasswordStrength),
	}
}

// ValidationDetails describes a successfully verified access token.
type ValidationDetails struct {
	Valid       bool      `json:"valid"`
	IssuedAt    time.Time `json:"issuedAt"`
	ExpiresAt   time.Time `json:"expiresAt"`
	ValidatedAt time.Time `json:"validatedAt"`
}

// ValidateResponse is the token validation contract consumed by the subdomain gate.
type ValidateResponse struct {
	Success    bool              `json:"success"`
	User       AccountPayload    `json:"user"`
	Validation ValidationDetails `json:"validation"`
}

// TokenRequest carries a single-use email token.
type TokenRequest struct {
	Token string `json:"token"`
}

// ForgotPasswordRequest starts the reset flow.
type ForgotPasswordRequest struct {
	Email string `json:"email"`
}

// ResetPasswordRequest completes the reset flow.
type ResetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ChangePasswordRequest rotates the caller's password.
type ChangePasswordRequest struct {
	CurrentPassword string `json:"currentPassword"`
	NewPassword     string `json:"newPassword"`
}

// UpdateProfileRequest carries the mutable profile fields. Omitted fields are unchanged.
type UpdateProfileRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Handle    *string `json:"handle"`
	AvatarURL *string `json:"avatarUrl"`
	Bio       *string `json:"bio"`
}

func (r UpdateProfileRequest) toDomain() domain.ProfileUpdate {
	return domain.ProfileUpdate{
		FirstName: r.FirstName,
		LastName:  r.LastName,
		Handle:    r.Handle,
		AvatarURL: r.AvatarURL,
		Bio:       r.Bio,
	}
}

// PagePayload describes the window of a paginated listing.
type PagePayload struct {
	Total  int `json:"total"`
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// AccountListResponse is one page of accounts.
type AccountListResponse struct {
	Accounts   []AccountPayload `json:"accounts"`
	Pagination PagePayload      `json:"pagination"`
}

// ChangeRoleRequest sets an account role.
type ChangeRoleRequest struct {
	Role string `json:"role"`
}

// ChangeStatusRequest sets an account status.
type ChangeStatusRequest struct {
	Status string `json:"status"`
}

// ResourcePayload describes one protected resource.
type ResourcePayload struct {
	ID          domain.Resource `json:"id"`
	Description string          `json:"description"`
}

// AccessRequest asks for access to a resource.
type AccessRequest struct {
	Resource string `json:"resource"`
	Reason   string `json:"reason"`
}

// ReviewRequest carries an administrator decision.
type ReviewRequest struct {
	Message   string     `json:"message"`
	ExpiresAt *time.Time `json:"expiresAt"`
}

// GrantPayload is the public projection of an access grant.
type GrantPayload struct {
	ID              string             `json:"id"`
	AccountID       string             `json:"accountId"`
	Resource        domain.Resource    `json:"resource"`
	Status          domain.GrantStatus `json:"status"`
	Reason          string             `json:"reason"`
	ReviewerID      *string            `json:"reviewerId,omitempty"`
	ReviewerMessage *string            `json:"reviewerMessage,omitempty"`
	ReviewedAt      *time.Time         `json:"reviewedAt,omitempty"`
	ExpiresAt       *time.Time         `json:"expiresAt,omitempty"`
	CreatedAt       time.Time          `json:"createdAt"`
	UpdatedAt       time.Time          `json:"updatedAt"`
}

func newGrantPayload(grant domain.AccessGrant) GrantPayload {
	return GrantPayload{
		ID:              grant.ID,
		AccountID:       grant.AccountID,
		Resource:        grant.Resource,
		Status:          grant.Status,
		Reason:          grant.Reason,
		ReviewerID:      grant.ReviewerID,
		ReviewerMessage: grant.ReviewerMessage,
		ReviewedAt:      grant.ReviewedAt,
		ExpiresAt:       grant.ExpiresAt,
		CreatedAt:       grant.CreatedAt,
		UpdatedAt:       grant.UpdatedAt,
	}
}

// GrantListResponse is one page of grants.
type GrantListResponse struct {
	Requests   []GrantPayload `json:"requests"`
	Pagination PagePayload    `json:"pagination"`
}

func newGrantList(page *usecase.GrantPage) GrantListResponse {
	out := make([]GrantPayload, 0, len(page.Grants))
	for _, grant := range page.Grants {
		out = append(out, newGrantPayload(grant))
	}
	return GrantListResponse{
		Requests:   out,
		Pagination: PagePayload{Total: page.Total, Limit: page.Limit, Offset: page.Offset},
	}
}

// AccessCheckResponse answers whether the caller may use a resource.
type AccessCheckResponse struct {
	Success   bool            `json:"success"`
	Resource  domain.Resource `json:"resource"`
	HasAccess bool            `json:"hasAccess"`
	Reason    string          `json:"reason"`
	Grant     *GrantPayload   `json:"grant,omitempty"`
	CheckedAt time.Time       `json:"checkedAt"`
}

// PurgeResponse reports how many grants were removed.
type PurgeResponse struct {
	Purged int       `json:"purged"`
	Before time.Time `json:"before"`
}

// ContactRequest is the public contact form.
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject"`
	Message string `json:"message"`
}

// ContactPayload is the admin view of a contact message.
type ContactPayload struct {
	ID        string               `json:"id"`
	Name      string               `json:"name"`
	Email     string               `json:"email"`
	Subject   string               `json:"subject"`
	Message   string               `json:"message"`
	Status    domain.ContactStatus `json:"status"`
	AccountID *string              `json:"accountId,omitempty"`
	IP        *string              `json:"ip,omitempty"`
	UserAgent *string              `json:"userAgent,omitempty"`
	CreatedAt time.Time            `json:"createdAt"`
	UpdatedAt time.Time            `json:"updatedAt"`
}

func newContactPayload(msg domain.ContactMessage) ContactPayload {
	return ContactPayload{
		ID:        msg.ID,
		Name:      msg.Name,
		Email:     msg.Email,
		Subject:   msg.Subject,
		Message:   msg.Message,
		Status:    msg.Status,
		AccountID: msg.AccountID,
		IP:        msg.IP,
		UserAgent: msg.UserAgent,
		CreatedAt: msg.CreatedAt,
		UpdatedAt: msg.UpdatedAt,
	}
}

// ContactListResponse is one page of contact messages.
type ContactListResponse struct {
	Messages   []ContactPayload `json:"messages"`
	Pagination PagePayload      `json:"pagination"`
}

// ContactStatusRequest moves a contact message through its handling states.
type ContactStatusRequest struct {
	Status string `json:"status"`
}

// TrackRequest records a client-side page view.
type TrackRequest struct {
	Path     string `json:"path"`
	Host     string `json:"host"`
	Referrer string `json:"referrer"`
}

// BucketPayload is one hour of analytics.
type BucketPayload struct {
	Start    time.Time        `json:"start"`
	Requests int64            `json:"requests"`
	Visitors int64            `json:"visitors"`
	ByHost   map[string]int64 `json:"byHost"`
	ByPath   map[string]int64 `json:"byPath"`
	ByStatus map[string]int64 `json:"byStatus"`
}

// AnalyticsSummaryResponse is the reporting view over a range.
type AnalyticsSummaryResponse struct {
	From     time.Time        `json:"from"`
	To       time.Time        `json:"to"`
	Requests int64            `json:"requests"`
	Visitors int64            `json:"visitors"`
	ByHost   map[string]int64 `json:"byHost"`
	ByPath   map[string]int64 `json:"byPath"`
	ByStatus map[string]int64 `json:"byStatus"`
	Buckets  []BucketPayload  `json:"buckets"`
}

func newAnalyticsSummary(summary *domain.AnalyticsSummary) AnalyticsSummaryResponse {
	buckets := make([]BucketPayload, 0, len(summary.Buckets))
	for _, b := range summary.Buckets {
		buckets = append(buckets, BucketPayload{
			Start:    b.Start,
			Requests: b.Requests,
			Visitors: b.Visitors,
			ByHost:   b.ByHost,
			ByPath:   b.ByPath,
			ByStatus: b.ByStatus,
		})
	}
	return AnalyticsSummaryResponse{
		From:     summary.From,
		To:       summary.To,
		Requests: summary.Requests,
		Visitors: summary.Visitors,
		ByHost:   summary.ByHost,
		ByPath:   summary.ByPath,
		ByStatus: summary.ByStatus,
		Buckets:  buckets,
	}
}

// HealthResponse describes liveness.
type HealthResponse struct {
	Status    string    `json:"status"`
	StartedAt time.Time `json:"startedAt"`
}

// ReadinessResponse reports the state of each dependency.
type ReadinessResponse struct {
	Status string            `json:"status"`
	Checks map[string]string `json:"checks"`
}

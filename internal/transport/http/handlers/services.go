package handlers

import (
	"context"
	"time"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/usecase"
)

// AuthFlows starts, rotates, ends and verifies sessions.
type AuthFlows interface {
	Register(ctx context.Context, input usecase.RegisterInput) (*usecase.AuthResult, error)
	Login(ctx context.Context, input usecase.LoginInput) (*usecase.AuthResult, error)
	Refresh(ctx context.Context, refreshToken string, client usecase.ClientInfo) (*usecase.AuthResult, error)
	Logout(ctx context.Context, accountID string) (int, error)
	ValidateToken(ctx context.Context, accessToken string) (*usecase.TokenValidation, error)
}

// VerificationFlows confirms email ownership.
type VerificationFlows interface {
	VerifyEmail(ctx context.Context, rawToken string) (*domain.Account, error)
	ResendVerification(ctx context.Context, accountID string, client usecase.ClientInfo) error
}

// PasswordFlows resets and rotates secrets.
type PasswordFlows interface {
	RequestReset(ctx context.Context, email string, client usecase.ClientInfo) error
	ResetPassword(ctx context.Context, input usecase.ResetPasswordInput) error
	ChangePassword(ctx context.Context, input usecase.ChangePasswordInput) error
}

// AccountManager covers self-service and administrative account operations.
type AccountManager interface {
	GetProfile(ctx context.Context, accountID string) (*domain.Account, error)
	UpdateProfile(ctx context.Context, accountID string, update domain.ProfileUpdate) (*domain.Account, error)
	DeleteSelf(ctx context.Context, accountID string) error
	ListAccounts(ctx context.Context, actor domain.Account, filter domain.AccountFilter) (*usecase.AccountPage, error)
	GetAccount(ctx context.Context, actor domain.Account, accountID string) (*domain.Account, error)
	ChangeRole(ctx context.Context, actor domain.Account, accountID string, role domain.Role) (*domain.Account, error)
	ChangeStatus(ctx context.Context, actor domain.Account, accountID string, status domain.AccountStatus) (*domain.Account, error)
	DeleteAccount(ctx context.Context, actor domain.Account, accountID string) error
}

// AccessManager handles access requests, reviews and checks.
type AccessManager interface {
	ListResources() []usecase.ResourceInfo
	Submit(ctx context.Context, input usecase.SubmitAccessInput) (*domain.AccessGrant, error)
	Approve(ctx context.Context, actor domain.Account, grantID string, input usecase.ReviewInput) (*domain.AccessGrant, error)
	Deny(ctx context.Context, actor domain.Account, grantID string, input usecase.ReviewInput) (*domain.AccessGrant, error)
	Revoke(ctx context.Context, actor domain.Account, grantID string) (*domain.AccessGrant, error)
	Check(ctx context.Context, account domain.Account, resource string) (*usecase.AccessCheck, error)
	ListMine(ctx context.Context, accountID string, limit, offset int) (*usecase.GrantPage, error)
	ListAll(ctx context.Context, actor domain.Account, filter domain.GrantFilter) (*usecase.GrantPage, error)
	Stats(ctx context.Context, actor domain.Account) (map[domain.Resource]map[domain.GrantStatus]int, error)
	Purge(ctx context.Context, actor domain.Account, before time.Time) (int, error)
}

// ContactInbox stores and triages contact-form messages.
type ContactInbox interface {
	Submit(ctx context.Context, input usecase.ContactInput) (*domain.ContactMessage, error)
	List(ctx context.Context, actor domain.Account, filter domain.ContactFilter) (*usecase.ContactPage, error)
	UpdateStatus(ctx context.Context, actor domain.Account, id string, status domain.ContactStatus) (*domain.ContactMessage, error)
}

// AnalyticsReporter records hits and reports aggregates.
type AnalyticsReporter interface {
	Track(ctx context.Context, hit domain.AnalyticsHit)
	Summary(ctx context.Context, actor domain.Account, from, to time.Time) (*domain.AnalyticsSummary, error)
}

// AuthRecorder counts authentication outcomes.
type AuthRecorder interface {
	RecordAuth(operation, outcome string)
}

type noopRecorder struct{}

func (noopRecorder) RecordAuth(string, string) {}

var (
	_ AuthFlows         = (*usecase.AuthService)(nil)
	_ VerificationFlows = (*usecase.VerificationService)(nil)
	_ PasswordFlows     = (*usecase.PasswordService)(nil)
	_ AccountManager    = (*usecase.AccountService)(nil)
	_ AccessManager     = (*usecase.AccessService)(nil)
	_ ContactInbox      = (*usecase.ContactService)(nil)
	_ AnalyticsReporter = (*usecase.AnalyticsService)(nil)
)

package port

import (
	"context"
	"time"

	"github.com/arklim/portal-identity/internal/core/domain"
)

// AccountRepository exposes persistence behavior for accounts.
type AccountRepository interface {
	Create(ctx context.Context, account domain.Account) error
	GetByID(ctx context.Context, id string) (*domain.Account, error)
	GetByEmail(ctx context.Context, email string) (*domain.Account, error)
	GetByHandle(ctx context.Context, handle string) (*domain.Account, error)
	GetByReferralCode(ctx context.Context, code string) (*domain.Account, error)
	List(ctx context.Context, filter domain.AccountFilter) ([]domain.Account, int, error)
	UpdateProfile(ctx context.Context, id string, update domain.ProfileUpdate, at time.Time) (*domain.Account, error)
	// UpdatePassword stores a new hash and clears lock state.
	UpdatePassword(ctx context.Context, id string, passwordHash string, at time.Time) error
	// MarkEmailVerified sets the verified flag and clears lock state.
	MarkEmailVerified(ctx context.Context, id string, at time.Time) error
	// RecordLoginFailure atomically increments the failure counter and sets lock-until
	// once the counter reaches threshold.
	RecordLoginFailure(ctx context.Context, id string, threshold int, lockFor time.Duration, at time.Time) (domain.LoginFailure, error)
	RecordLoginSuccess(ctx context.Context, id string, ip *string, at time.Time) error
	UpdateRole(ctx context.Context, id string, role domain.Role, at time.Time) error
	UpdateStatus(ctx context.Context, id string, status domain.AccountStatus, at time.Time) error
	// SoftDelete deactivates the account and scrubs email and handle.
	SoftDelete(ctx context.Context, id string, at time.Time) error
}

package port

import (
	"context"
	"time"

	"github.com/arklim/portal-identity/internal/core/domain"
)

// GrantRepository persists access grants.
type GrantRepository interface {
	// Create inserts a pending grant. Returns repository.ErrConflict when a pending
	// grant already exists for the account and resource.
	Create(ctx context.Context, grant domain.AccessGrant) error
	GetByID(ctx context.Context, id string) (*domain.AccessGrant, error)
	FindActive(ctx context.Context, accountID string, resource domain.Resource, at time.Time) (*domain.AccessGrant, error)
	List(ctx context.Context, filter domain.GrantFilter) ([]domain.AccessGrant, int, error)
	// Review moves a pending grant to approved or denied.
	Review(ctx context.Context, review domain.GrantReview) (*domain.AccessGrant, error)
	// Revoke moves an approved grant to revoked.
	Revoke(ctx context.Context, id string, reviewerID string, at time.Time) (*domain.AccessGrant, error)
	Stats(ctx context.Context) ([]domain.GrantStat, error)
	// Purge hard-deletes non-pending grants last updated before the cutoff.
	Purge(ctx context.Context, before time.Time) (int, error)
}

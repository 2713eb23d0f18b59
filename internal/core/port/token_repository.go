package port

import (
	"context"
	"time"

	"github.com/arklim/portal-identity/internal/core/domain"
)

// TokenRepository manages verification, reset and refresh token records.
type TokenRepository interface {
	Create(ctx context.Context, token domain.CredentialToken) error
	GetByHash(ctx context.Context, hash string, tokenType domain.TokenType) (*domain.CredentialToken, error)
	// Consume marks the token used only when it is still unused and unexpired.
	// Returns repository.ErrNotFound when no row qualified.
	Consume(ctx context.Context, id string, at time.Time) error
	// RevokeForAccount marks every outstanding token of the type used.
	RevokeForAccount(ctx context.Context, accountID string, tokenType domain.TokenType, at time.Time) (int, error)
	DeleteExpired(ctx context.Context, before time.Time) (int, error)
}

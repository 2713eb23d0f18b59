package port

import (
	"context"

	"github.com/arklim/portal-identity/internal/core/domain"
)

// Notifier delivers account related emails. Methods other than SendPasswordReset
// enqueue a detached delivery whose failures are logged by the dispatcher.
type Notifier interface {
	SendVerification(ctx context.Context, account domain.Account, rawToken string) error
	SendWelcome(ctx context.Context, account domain.Account) error
	// SendPasswordReset delivers synchronously and reports transport failures.
	SendPasswordReset(ctx context.Context, account domain.Account, rawToken string) error
	SendPasswordChanged(ctx context.Context, account domain.Account) error
	SendGrantReviewed(ctx context.Context, account domain.Account, grant domain.AccessGrant) error
	SendContactReceived(ctx context.Context, message domain.ContactMessage) error
}

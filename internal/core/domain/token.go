package domain

import "time"

// TokenType enumerates the purposes a credential token may serve.
type TokenType string

const (
	TokenTypeEmailVerification TokenType = "email_verification"
	TokenTypePasswordReset     TokenType = "password_reset"
	TokenTypeRefresh           TokenType = "refresh"
)

// Default lifetimes per token type.
const (
	EmailVerificationTTL = 24 * time.Hour
	PasswordResetTTL     = time.Hour
	RefreshTokenTTL      = 7 * 24 * time.Hour
)

// DefaultTTL returns the lifetime assigned to freshly issued tokens of the type.
func (t TokenType) DefaultTTL() time.Duration {
	switch t {
	case TokenTypeEmailVerification:
		return EmailVerificationTTL
	case TokenTypePasswordReset:
		return PasswordResetTTL
	case TokenTypeRefresh:
		return RefreshTokenTTL
	}
	return 0
}

// CredentialToken is a single-use or renewable secret bound to an account.
// Only the SHA-256 hash of the raw value is persisted.
type CredentialToken struct {
	ID        string
	AccountID string
	TokenHash string
	Type      TokenType
	ExpiresAt time.Time
	Used      bool
	UsedAt    *time.Time
	IP        *string
	UserAgent *string
	CreatedAt time.Time
}

// IsExpired reports whether the token has elapsed its validity window.
func (t CredentialToken) IsExpired(at time.Time) bool {
	return !t.ExpiresAt.After(at)
}

// IsValid reports whether the token can still be consumed.
func (t CredentialToken) IsValid(at time.Time) bool {
	return !t.Used && !t.IsExpired(at)
}

// MarkUsed records consumption. Returns true if the token was previously unused.
func (t *CredentialToken) MarkUsed(at time.Time) bool {
	if t.Used {
		return false
	}
	timeCopy := at
	t.Used = true
	t.UsedAt = &timeCopy
	return true
}

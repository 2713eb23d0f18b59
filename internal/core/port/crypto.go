package port

import "time"

// PasswordHasher hashes and verifies secrets using the configured algorithm.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(password string, encoded string) (bool, error)
}

// TokenClaims is the verified content of a signed session token.
type TokenClaims struct {
	Subject   string
	ID        string
	Type      string
	IssuedAt  time.Time
	ExpiresAt time.Time
}

// TokenIssuer signs and verifies access and refresh tokens under separate secrets.
type TokenIssuer interface {
	IssueAccessToken(accountID string, ttl time.Duration) (string, TokenClaims, error)
	IssueRefreshToken(accountID string) (string, TokenClaims, error)
	VerifyAccessToken(token string) (TokenClaims, error)
	VerifyRefreshToken(token string) (TokenClaims, error)
}

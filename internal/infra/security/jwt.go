package security

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	uuid "github.com/google/uuid"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
)

const (
	// TokenTypeAccess marks tokens signed with the access secret.
	TokenTypeAccess = "access"
	// TokenTypeRefresh marks tokens signed with the refresh secret.
	TokenTypeRefresh = "refresh"

	defaultAccessTokenTTL  = 24 * time.Hour
	defaultRefreshTokenTTL = 7 * 24 * time.Hour
	minSecretLength        = 32
)

var (
	// ErrTokenExpired is returned when a token signature is valid but its lifetime has elapsed.
	ErrTokenExpired = domain.ErrTokenExpired
	// ErrTokenMalformed is returned for any other verification failure.
	ErrTokenMalformed = domain.ErrTokenMalformed
	// ErrWeakSecret rejects signing secrets that are too short or shared between namespaces.
	ErrWeakSecret = errors.New("jwt: signing secrets must be distinct and at least 32 bytes")
)

// SessionClaims are the claims carried by access and refresh tokens.
type SessionClaims struct {
	Type string `json:"typ"`
	jwt.RegisteredClaims
}

// TokenManagerConfig configures a TokenManager.
type TokenManagerConfig struct {
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenManager issues and verifies HS256 session tokens. Access and refresh tokens use
// distinct secrets and a typ claim so neither validates as the other.
type TokenManager struct {
	accessSecret  []byte
	refreshSecret []byte
	issuer        string
	accessTTL     time.Duration
	refreshTTL    time.Duration
	now           func() time.Time
}

// NewTokenManager validates the configuration and constructs a TokenManager.
func NewTokenManager(cfg TokenManagerConfig) (*TokenManager, error) {
	if len(cfg.AccessSecret) < minSecretLength || len(cfg.RefreshSecret) < minSecretLength {
		return nil, ErrWeakSecret
	}
	if cfg.AccessSecret == cfg.RefreshSecret {
		return nil, ErrWeakSecret
	}

	accessTTL := cfg.AccessTTL
	if accessTTL <= 0 {
		accessTTL = defaultAccessTokenTTL
	}
	refreshTTL := cfg.RefreshTTL
	if refreshTTL <= 0 {
		refreshTTL = defaultRefreshTokenTTL
	}

	return &TokenManager{
		accessSecret:  []byte(cfg.AccessSecret),
		refreshSecret: []byte(cfg.RefreshSecret),
		issuer:        strings.TrimSpace(cfg.Issuer),
		accessTTL:     accessTTL,
		refreshTTL:    refreshTTL,
		now:           time.Now,
	}, nil
}

// WithClock overrides the time source. Intended for tests.
func (m *TokenManager) WithClock(now func() time.Time) *TokenManager {
	if now != nil {
		m.now = now
	}
	return m
}

// IssueAccessToken signs an access token for accountID. A non-positive ttl uses the default.
func (m *TokenManager) IssueAccessToken(accountID string, ttl time.Duration) (string, port.TokenClaims, error) {
	if ttl <= 0 {
		ttl = m.accessTTL
	}
	return m.issue(accountID, TokenTypeAccess, ttl, m.accessSecret)
}

// IssueRefreshToken signs a refresh token for accountID.
func (m *TokenManager) IssueRefreshToken(accountID string) (string, port.TokenClaims, error) {
	return m.issue(accountID, TokenTypeRefresh, m.refreshTTL, m.refreshSecret)
}

// VerifyAccessToken validates signature, expiry and type of an access token.
func (m *TokenManager) VerifyAccessToken(token string) (port.TokenClaims, error) {
	return m.verify(token, TokenTypeAccess, m.accessSecret)
}

// VerifyRefreshToken validates signature, expiry and type of a refresh token.
func (m *TokenManager) VerifyRefreshToken(token string) (port.TokenClaims, error) {
	return m.verify(token, TokenTypeRefresh, m.refreshSecret)
}

func (m *TokenManager) issue(accountID, tokenType string, ttl time.Duration, secret []byte) (string, port.TokenClaims, error) {
	accountID = strings.TrimSpace(accountID)
	if accountID == "" {
		return "", port.TokenClaims{}, fmt.Errorf("jwt: account id is required")
	}

	now := m.now().UTC().Truncate(time.Second)
	claims := SessionClaims{
		Type: tokenType,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   accountID,
			Issuer:    m.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
	if err != nil {
		return "", port.TokenClaims{}, fmt.Errorf("jwt: sign token: %w", err)
	}

	return signed, toPortClaims(claims), nil
}

func (m *TokenManager) verify(token, tokenType string, secret []byte) (port.TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return port.TokenClaims{}, ErrTokenMalformed
	}

	options := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(m.now),
		jwt.WithExpirationRequired(),
	}
	if m.issuer != "" {
		options = append(options, jwt.WithIssuer(m.issuer))
	}

	claims := &SessionClaims{}
	parsed, err := jwt.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return secret, nil
	}, options...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return port.TokenClaims{}, ErrTokenExpired
		}
		return port.TokenClaims{}, fmt.Errorf("%w: %v", ErrTokenMalformed, err)
	}
	if !parsed.Valid || claims.Type != tokenType || claims.Subject == "" {
		return port.TokenClaims{}, ErrTokenMalformed
	}

	return toPortClaims(*claims), nil
}

func toPortClaims(claims SessionClaims) port.TokenClaims {
	out := port.TokenClaims{
		Subject: claims.Subject,
		ID:      claims.ID,
		Type:    claims.Type,
	}
	if claims.IssuedAt != nil {
		out.IssuedAt = claims.IssuedAt.Time
	}
	if claims.ExpiresAt != nil {
		out.ExpiresAt = claims.ExpiresAt.Time
	}
	return out
}

var _ port.TokenIssuer = (*TokenManager)(nil)

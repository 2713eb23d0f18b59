package security

import (
	"fmt"
	"time"
)

// Config carries the secrets and cost factors for an Authenticator.
type Config struct {
	BcryptCost    int
	AccessSecret  string
	RefreshSecret string
	Issuer        string
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// Authenticator bundles the password hasher and the session token manager.
type Authenticator struct {
	*BcryptHasher
	*TokenManager
}

// NewAuthenticator constructs an Authenticator from explicit configuration.
func NewAuthenticator(cfg Config) (*Authenticator, error) {
	tokens, err := NewTokenManager(TokenManagerConfig{
		AccessSecret:  cfg.AccessSecret,
		RefreshSecret: cfg.RefreshSecret,
		Issuer:        cfg.Issuer,
		AccessTTL:     cfg.AccessTTL,
		RefreshTTL:    cfg.RefreshTTL,
	})
	if err != nil {
		return nil, fmt.Errorf("token manager: %w", err)
	}

	return &Authenticator{
		BcryptHasher: NewBcryptHasher(cfg.BcryptCost),
		TokenManager: tokens,
	}, nil
}

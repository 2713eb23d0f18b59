package usecase

import (
	"context"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/infra/security"
)

const rawTokenBytes = 32

func optional(value string) *string {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil
	}
	return &value
}

// issueCredentialToken stores the hash of a fresh opaque token and returns the raw value.
func issueCredentialToken(ctx context.Context, tokens port.TokenRepository, accountID string, tokenType domain.TokenType, now time.Time, client ClientInfo) (string, error) {
	raw, err := security.GenerateSecureToken(rawTokenBytes)
	if err != nil {
		return "", fmt.Errorf("generate %s token: %w", tokenType, err)
	}

	record := domain.CredentialToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: security.HashToken(raw),
		Type:      tokenType,
		ExpiresAt: now.Add(tokenType.DefaultTTL()),
		IP:        client.ipPtr(),
		UserAgent: client.userAgentPtr(),
		CreatedAt: now,
	}
	if err := tokens.Create(ctx, record); err != nil {
		return "", fmt.Errorf("store %s token: %w", tokenType, err)
	}
	return raw, nil
}

// publishEvent runs a best-effort publish. Delivery failures never fail the caller.
func publishEvent(log *zap.Logger, events port.EventPublisher, name string, fn func() error) {
	if events == nil {
		return
	}
	if err := fn(); err != nil {
		log.Warn("failed to publish event", zap.String("event", name), zap.Error(err))
	}
}

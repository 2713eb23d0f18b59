package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/infra/security"
	"github.com/arklim/portal-identity/internal/repository"
)

// VerificationService confirms email ownership.
type VerificationService struct {
	accounts port.AccountRepository
	tokens   port.TokenRepository
	notifier port.Notifier
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewVerificationService constructs a VerificationService.
func NewVerificationService(
	accounts port.AccountRepository,
	tokens port.TokenRepository,
	notifier port.Notifier,
	events port.EventPublisher,
	log *zap.Logger,
) *VerificationService {
	if log == nil {
		log = zap.NewNop()
	}
	return &VerificationService{
		accounts: accounts,
		tokens:   tokens,
		notifier: notifier,
		events:   events,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *VerificationService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// VerifyEmail consumes a verification token and marks the owner verified.
func (s *VerificationService) VerifyEmail(ctx context.Context, rawToken string) (*domain.Account, error) {
	rawToken = strings.TrimSpace(rawToken)
	if rawToken == "" {
		return nil, requiredField("token")
	}

	record, err := s.tokens.GetByHash(ctx, security.HashToken(rawToken), domain.TokenTypeEmailVerification)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVerificationTokenInvalid
		}
		return nil, fmt.Errorf("lookup verification token: %w", err)
	}

	now := s.now().UTC()
	if record.Used {
		return nil, ErrVerificationTokenInvalid
	}
	if record.IsExpired(now) {
		return nil, ErrVerificationTokenExpired
	}

	account, err := s.accounts.GetByID(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVerificationTokenInvalid
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if account.EmailVerified {
		return nil, ErrAlreadyVerified
	}

	if err := s.tokens.Consume(ctx, record.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrVerificationTokenInvalid
		}
		return nil, fmt.Errorf("consume verification token: %w", err)
	}
	if err := s.accounts.MarkEmailVerified(ctx, account.ID, now); err != nil {
		return nil, fmt.Errorf("mark email verified: %w", err)
	}

	account.EmailVerified = true
	account.FailedLoginAttempts = 0
	account.LockUntil = nil
	account.UpdatedAt = now

	publishEvent(s.logger, s.events, "email verified", func() error {
		return s.events.PublishEmailVerified(ctx, domain.EmailVerifiedEvent{
			AccountID:  account.ID,
			VerifiedAt: now,
		})
	})

	sanitized := account.Sanitized()
	return &sanitized, nil
}

// ResendVerification replaces outstanding verification tokens and emails a new link.
func (s *VerificationService) ResendVerification(ctx context.Context, accountID string, client ClientInfo) error {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountMissing
		}
		return fmt.Errorf("lookup account: %w", err)
	}
	if account.EmailVerified {
		return ErrAlreadyVerified
	}

	now := s.now().UTC()
	if _, err := s.tokens.RevokeForAccount(ctx, account.ID, domain.TokenTypeEmailVerification, now); err != nil {
		return fmt.Errorf("revoke verification tokens: %w", err)
	}
	raw, err := issueCredentialToken(ctx, s.tokens, account.ID, domain.TokenTypeEmailVerification, now, client)
	if err != nil {
		return err
	}

	if err := s.notifier.SendVerification(ctx, *account, raw); err != nil {
		s.logger.Warn("verification email not queued", zap.String("account_id", account.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}
	return nil
}

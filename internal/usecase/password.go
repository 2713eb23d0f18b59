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
	"github.com/arklim/portal-identity/internal/infra/logger"
	"github.com/arklim/portal-identity/internal/infra/security"
	"github.com/arklim/portal-identity/internal/repository"
)

const (
	passwordChangeMethodReset  = "reset"
	passwordChangeMethodChange = "change"
)

// PasswordService handles forgotten and changed passwords.
type PasswordService struct {
	accounts port.AccountRepository
	tokens   port.TokenRepository
	hasher   port.PasswordHasher
	notifier port.Notifier
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewPasswordService constructs a PasswordService.
func NewPasswordService(
	accounts port.AccountRepository,
	tokens port.TokenRepository,
	hasher port.PasswordHasher,
	notifier port.Notifier,
	events port.EventPublisher,
	log *zap.Logger,
) *PasswordService {
	if log == nil {
		log = zap.NewNop()
	}
	return &PasswordService{
		accounts: accounts,
		tokens:   tokens,
		hasher:   hasher,
		notifier: notifier,
		events:   events,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *PasswordService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ResetPasswordInput carries the reset form.
type ResetPasswordInput struct {
	Token       string
	NewPassword string
}

// ChangePasswordInput carries the authenticated change form.
type ChangePasswordInput struct {
	AccountID       string
	CurrentPassword string
	NewPassword     string
}

// RequestReset emails a reset link when the address belongs to an active account.
// The caller always reports success so the response never reveals whether the
// address is registered. Only a delivery failure is surfaced.
func (s *PasswordService) RequestReset(ctx context.Context, email string, client ClientInfo) error {
	email = domain.NormalizeEmail(email)
	if email == "" {
		return requiredField("email")
	}
	if err := security.ValidateEmailFormat(email); err != nil {
		return err
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			s.logger.Info("password reset requested for unknown email", zap.String("email", logger.MaskEmail(email)))
			return nil
		}
		return fmt.Errorf("lookup account: %w", err)
	}
	if !account.CanAuthenticate() {
		s.logger.Info("password reset requested for inactive account", zap.String("account_id", account.ID))
		return nil
	}

	now := s.now().UTC()
	if _, err := s.tokens.RevokeForAccount(ctx, account.ID, domain.TokenTypePasswordReset, now); err != nil {
		return fmt.Errorf("revoke reset tokens: %w", err)
	}
	raw, err := issueCredentialToken(ctx, s.tokens, account.ID, domain.TokenTypePasswordReset, now, client)
	if err != nil {
		return err
	}

	if err := s.notifier.SendPasswordReset(ctx, *account, raw); err != nil {
		s.logger.Error("password reset email failed", zap.String("account_id", account.ID), zap.Error(err))
		return fmt.Errorf("%w: %v", ErrMailUnavailable, err)
	}

	publishEvent(s.logger, s.events, "password reset requested", func() error {
		return s.events.PublishPasswordResetRequested(ctx, domain.PasswordResetRequestedEvent{
			AccountID:   account.ID,
			RequestedAt: now,
			ExpiresAt:   now.Add(domain.PasswordResetTTL),
			IPAddress:   client.ipPtr(),
		})
	})
	return nil
}

// ResetPassword stores a new password using a reset token and ends every session.
func (s *PasswordService) ResetPassword(ctx context.Context, input ResetPasswordInput) error {
	raw := strings.TrimSpace(input.Token)
	if raw == "" {
		return requiredField("token")
	}
	if input.NewPassword == "" {
		return requiredField("password")
	}

	record, err := s.tokens.GetByHash(ctx, security.HashToken(raw), domain.TokenTypePasswordReset)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("lookup reset token: %w", err)
	}

	now := s.now().UTC()
	if record.Used {
		return ErrResetTokenInvalid
	}
	if record.IsExpired(now) {
		return ErrResetTokenExpired
	}

	account, err := s.accounts.GetByID(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("lookup account: %w", err)
	}
	if !account.CanAuthenticate() {
		return domain.ErrAccountInactive
	}
	if _, err := security.ValidatePasswordStrength(input.NewPassword, account.Email, account.FirstName, account.LastName); err != nil {
		return weakPassword(err)
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	if err := s.tokens.Consume(ctx, record.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrResetTokenInvalid
		}
		return fmt.Errorf("consume reset token: %w", err)
	}
	if err := s.accounts.UpdatePassword(ctx, account.ID, hash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}

	revoked, err := s.tokens.RevokeForAccount(ctx, account.ID, domain.TokenTypeRefresh, now)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	s.afterPasswordChange(ctx, *account, passwordChangeMethodReset, revoked, now)
	return nil
}

// ChangePassword replaces the password of a signed-in account after checking the current one.
func (s *PasswordService) ChangePassword(ctx context.Context, input ChangePasswordInput) error {
	if input.CurrentPassword == "" {
		return requiredField("currentPassword")
	}
	if input.NewPassword == "" {
		return requiredField("newPassword")
	}

	account, err := s.accounts.GetByID(ctx, input.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return ErrAccountMissing
		}
		return fmt.Errorf("lookup account: %w", err)
	}

	ok, err := s.hasher.Verify(input.CurrentPassword, account.PasswordHash)
	if err != nil {
		return fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		return ErrCurrentPasswordInvalid
	}
	if input.NewPassword == input.CurrentPassword {
		return ErrPasswordReused
	}
	if _, err := security.ValidatePasswordStrength(input.NewPassword, account.Email, account.FirstName, account.LastName); err != nil {
		return weakPassword(err)
	}

	hash, err := s.hasher.Hash(input.NewPassword)
	if err != nil {
		return fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	if err := s.accounts.UpdatePassword(ctx, account.ID, hash, now); err != nil {
		return fmt.Errorf("update password: %w", err)
	}
	revoked, err := s.tokens.RevokeForAccount(ctx, account.ID, domain.TokenTypeRefresh, now)
	if err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	s.afterPasswordChange(ctx, *account, passwordChangeMethodChange, revoked, now)
	return nil
}

func (s *PasswordService) afterPasswordChange(ctx context.Context, account domain.Account, method string, revoked int, now time.Time) {
	if err := s.notifier.SendPasswordChanged(ctx, account); err != nil {
		s.logger.Warn("password changed email not queued", zap.String("account_id", account.ID), zap.Error(err))
	}

	publishEvent(s.logger, s.events, "password changed", func() error {
		return s.events.PublishPasswordChanged(ctx, domain.PasswordChangedEvent{
			AccountID:     account.ID,
			ChangedAt:     now,
			Method:        method,
			TokensRevoked: revoked,
		})
	})

	s.logger.Info("password changed",
		zap.String("account_id", account.ID),
		zap.String("method", method),
		zap.Int("sessions_revoked", revoked),
	)
}

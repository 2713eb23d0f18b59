package usecase

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/infra/logger"
	"github.com/arklim/portal-identity/internal/infra/security"
	"github.com/arklim/portal-identity/internal/repository"
)

const (
	maxNameLength      = 100
	maxAvatarURLLength = 2048
)

// AccountService covers self-service profile management and account administration.
type AccountService struct {
	accounts port.AccountRepository
	tokens   port.TokenRepository
	hasher   port.PasswordHasher
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewAccountService constructs an AccountService.
func NewAccountService(
	accounts port.AccountRepository,
	tokens port.TokenRepository,
	hasher port.PasswordHasher,
	events port.EventPublisher,
	log *zap.Logger,
) *AccountService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AccountService{
		accounts: accounts,
		tokens:   tokens,
		hasher:   hasher,
		events:   events,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *AccountService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// AccountPage is one page of an account listing.
type AccountPage struct {
	Accounts []domain.Account
	Total    int
	Limit    int
	Offset   int
}

// GetProfile returns the sanitized account of the caller.
func (s *AccountService) GetProfile(ctx context.Context, accountID string) (*domain.Account, error) {
	return s.load(ctx, accountID)
}

// UpdateProfile applies the self-service fields present in update.
func (s *AccountService) UpdateProfile(ctx context.Context, accountID string, update domain.ProfileUpdate) (*domain.Account, error) {
	cleaned, err := sanitizeProfile(update)
	if err != nil {
		return nil, err
	}

	if cleaned.Handle != nil && *cleaned.Handle != "" {
		existing, err := s.accounts.GetByHandle(ctx, *cleaned.Handle)
		switch {
		case err == nil && existing.ID != accountID:
			return nil, ErrHandleTaken
		case err != nil && !errors.Is(err, repository.ErrNotFound):
			return nil, fmt.Errorf("lookup handle: %w", err)
		}
	}

	account, err := s.accounts.UpdateProfile(ctx, accountID, cleaned, s.now().UTC())
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, ErrAccountMissing
		case errors.Is(err, repository.ErrConflict):
			return nil, ErrHandleTaken
		}
		return nil, fmt.Errorf("update profile: %w", err)
	}

	sanitized := account.Sanitized()
	return &sanitized, nil
}

func sanitizeProfile(update domain.ProfileUpdate) (domain.ProfileUpdate, error) {
	var out domain.ProfileUpdate

	if update.FirstName != nil {
		name := security.SanitizeFreeText(*update.FirstName)
		if name == "" {
			return out, requiredField("firstName")
		}
		if utf8.RuneCountInString(name) > maxNameLength {
			return out, tooLong("firstName", maxNameLength)
		}
		out.FirstName = &name
	}
	if update.LastName != nil {
		name := security.SanitizeFreeText(*update.LastName)
		if name == "" {
			return out, requiredField("lastName")
		}
		if utf8.RuneCountInString(name) > maxNameLength {
			return out, tooLong("lastName", maxNameLength)
		}
		out.LastName = &name
	}
	if update.Handle != nil {
		handle := strings.TrimSpace(*update.Handle)
		if handle != "" {
			if err := security.ValidateHandleFormat(handle); err != nil {
				return out, err
			}
		}
		out.Handle = &handle
	}
	if update.AvatarURL != nil {
		avatar := strings.TrimSpace(*update.AvatarURL)
		if avatar != "" && !validAvatarURL(avatar) {
			return out, ErrInvalidAvatar
		}
		out.AvatarURL = &avatar
	}
	if update.Bio != nil {
		bio := security.SanitizeFreeText(*update.Bio)
		out.Bio = &bio
	}
	return out, nil
}

func validAvatarURL(raw string) bool {
	if len(raw) > maxAvatarURLLength {
		return false
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (parsed.Scheme == "http" || parsed.Scheme == "https") && parsed.Host != ""
}

// DeleteSelf soft-deletes the caller and ends every session.
func (s *AccountService) DeleteSelf(ctx context.Context, accountID string) error {
	return s.softDelete(ctx, accountID, accountID)
}

// ListAccounts returns a filtered page of accounts.
func (s *AccountService) ListAccounts(ctx context.Context, actor domain.Account, filter domain.AccountFilter) (*AccountPage, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if filter.Role != nil && !filter.Role.Valid() {
		return nil, ErrInvalidRole
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}
	filter.Search = strings.TrimSpace(filter.Search)

	accounts, total, err := s.accounts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}
	for i := range accounts {
		accounts[i] = accounts[i].Sanitized()
	}
	return &AccountPage{Accounts: accounts, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// GetAccount returns any account to an administrator.
func (s *AccountService) GetAccount(ctx context.Context, actor domain.Account, accountID string) (*domain.Account, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	return s.load(ctx, accountID)
}

// ChangeRole promotes or demotes another account.
func (s *AccountService) ChangeRole(ctx context.Context, actor domain.Account, accountID string, role domain.Role) (*domain.Account, error) {
	if err := s.authorizeAdminAction(actor, accountID); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, ErrInvalidRole
	}

	account, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Role == role {
		return account, nil
	}

	now := s.now().UTC()
	if err := s.accounts.UpdateRole(ctx, accountID, role, now); err != nil {
		return nil, s.writeError("update role", err)
	}

	previous := account.Role
	account.Role = role
	account.UpdatedAt = now
	s.publishUpdated(ctx, actor.ID, accountID, "role", string(previous), string(role), now)
	return account, nil
}

// ChangeStatus suspends, deactivates or reactivates another account. Leaving the
// active status ends every session of the account.
func (s *AccountService) ChangeStatus(ctx context.Context, actor domain.Account, accountID string, status domain.AccountStatus) (*domain.Account, error) {
	if err := s.authorizeAdminAction(actor, accountID); err != nil {
		return nil, err
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	account, err := s.load(ctx, accountID)
	if err != nil {
		return nil, err
	}
	if account.Status == status {
		return account, nil
	}

	now := s.now().UTC()
	if err := s.accounts.UpdateStatus(ctx, accountID, status, now); err != nil {
		return nil, s.writeError("update status", err)
	}
	if status != domain.AccountStatusActive {
		if _, err := s.tokens.RevokeForAccount(ctx, accountID, domain.TokenTypeRefresh, now); err != nil {
			return nil, fmt.Errorf("revoke refresh tokens: %w", err)
		}
	}

	previous := account.Status
	account.Status = status
	account.IsActive = status == domain.AccountStatusActive
	account.UpdatedAt = now
	s.publishUpdated(ctx, actor.ID, accountID, "status", string(previous), string(status), now)
	return account, nil
}

// DeleteAccount soft-deletes another account.
func (s *AccountService) DeleteAccount(ctx context.Context, actor domain.Account, accountID string) error {
	if err := s.authorizeAdminAction(actor, accountID); err != nil {
		return err
	}
	return s.softDelete(ctx, actor.ID, accountID)
}

// BootstrapAdmin creates a verified administrator when no account uses the email.
// It returns false when the account already existed.
func (s *AccountService) BootstrapAdmin(ctx context.Context, email, password string) (bool, error) {
	email = domain.NormalizeEmail(email)
	if email == "" || password == "" {
		return false, nil
	}
	if err := security.ValidateEmailFormat(email); err != nil {
		return false, err
	}

	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return false, nil
	} else if !errors.Is(err, repository.ErrNotFound) {
		return false, fmt.Errorf("lookup admin: %w", err)
	}

	if _, err := security.ValidatePasswordStrength(password, email); err != nil {
		return false, weakPassword(err)
	}
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return false, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:            uuid.NewString(),
		Email:         email,
		PasswordHash:  hash,
		FirstName:     "Portal",
		LastName:      "Administrator",
		Role:          domain.RoleAdmin,
		IsActive:      true,
		Status:        domain.AccountStatusActive,
		EmailVerified: true,
		RegisteredAt:  now,
		UpdatedAt:     now,
	}
	err = createWithReferralCode(ctx, s.accounts, &account, func() error {
		if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
			return ErrEmailTaken
		}
		return nil
	})
	if err != nil {
		if errors.Is(err, ErrEmailTaken) {
			return false, nil
		}
		return false, err
	}

	s.logger.Info("bootstrap administrator created", zap.String("email", logger.MaskEmail(email)))
	return true, nil
}

func (s *AccountService) authorizeAdminAction(actor domain.Account, targetID string) error {
	if actor.Role != domain.RoleAdmin {
		return ErrForbidden
	}
	if actor.ID == targetID {
		return ErrSelfModification
	}
	return nil
}

func (s *AccountService) softDelete(ctx context.Context, actorID, accountID string) error {
	now := s.now().UTC()
	if err := s.accounts.SoftDelete(ctx, accountID, now); err != nil {
		return s.writeError("delete account", err)
	}
	if _, err := s.tokens.RevokeForAccount(ctx, accountID, domain.TokenTypeRefresh, now); err != nil {
		return fmt.Errorf("revoke refresh tokens: %w", err)
	}

	s.publishUpdated(ctx, actorID, accountID, "status", "", string(domain.AccountStatusDeactivated), now)
	s.logger.Info("account deleted", zap.String("account_id", accountID), zap.String("actor_id", actorID))
	return nil
}

func (s *AccountService) load(ctx context.Context, accountID string) (*domain.Account, error) {
	account, err := s.accounts.GetByID(ctx, accountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrAccountMissing
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	sanitized := account.Sanitized()
	return &sanitized, nil
}

func (s *AccountService) writeError(op string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return ErrAccountMissing
	}
	return fmt.Errorf("%s: %w", op, err)
}

func (s *AccountService) publishUpdated(ctx context.Context, actorID, accountID, field, oldValue, newValue string, at time.Time) {
	publishEvent(s.logger, s.events, "account updated", func() error {
		return s.events.PublishAccountUpdated(ctx, domain.AccountUpdatedEvent{
			AccountID: accountID,
			ActorID:   actorID,
			Field:     field,
			OldValue:  oldValue,
			NewValue:  newValue,
			UpdatedAt: at,
		})
	})
}

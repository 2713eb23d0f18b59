package usecase

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/infra/logger"
	"github.com/arklim/portal-identity/internal/infra/security"
	"github.com/arklim/portal-identity/internal/repository"
)

const (
	defaultAccessTTL        = 24 * time.Hour
	defaultRememberMeTTL    = 7 * 24 * time.Hour
	defaultLockoutThreshold = 5
	defaultLockoutDuration  = 30 * time.Minute
	referralCodeAttempts    = 3
)

// AuthConfig carries the session lifetimes and lockout policy.
type AuthConfig struct {
	AccessTTL        time.Duration
	RememberMeTTL    time.Duration
	LockoutThreshold int
	LockoutDuration  time.Duration
}

func (c AuthConfig) withDefaults() AuthConfig {
	if c.AccessTTL <= 0 {
		c.AccessTTL = defaultAccessTTL
	}
	if c.RememberMeTTL <= 0 {
		c.RememberMeTTL = defaultRememberMeTTL
	}
	if c.LockoutThreshold <= 0 {
		c.LockoutThreshold = defaultLockoutThreshold
	}
	if c.LockoutDuration <= 0 {
		c.LockoutDuration = defaultLockoutDuration
	}
	return c
}

// AuthService coordinates sign-up, sign-in and session token flows.
type AuthService struct {
	cfg      AuthConfig
	accounts port.AccountRepository
	tokens   port.TokenRepository
	hasher   port.PasswordHasher
	issuer   port.TokenIssuer
	notifier port.Notifier
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(
	cfg AuthConfig,
	accounts port.AccountRepository,
	tokens port.TokenRepository,
	hasher port.PasswordHasher,
	issuer port.TokenIssuer,
	notifier port.Notifier,
	events port.EventPublisher,
	log *zap.Logger,
) *AuthService {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuthService{
		cfg:      cfg.withDefaults(),
		accounts: accounts,
		tokens:   tokens,
		hasher:   hasher,
		issuer:   issuer,
		notifier: notifier,
		events:   events,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *AuthService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ClientInfo identifies the caller of a request for audit columns.
type ClientInfo struct {
	IP        string
	UserAgent string
}

func (c ClientInfo) ipPtr() *string {
	return optional(c.IP)
}

func (c ClientInfo) userAgentPtr() *string {
	return optional(c.UserAgent)
}

// TokenPair is a freshly issued access and refresh token.
type TokenPair struct {
	AccessToken      string
	AccessExpiresAt  time.Time
	RefreshToken     string
	RefreshExpiresAt time.Time
}

// AuthResult is returned by flows that start a session.
type AuthResult struct {
	Account          domain.Account
	Tokens           TokenPair
	PasswordStrength security.Strength
}

// RegisterInput captures the sign-up form.
type RegisterInput struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	Handle       string
	ReferralCode string
	Client       ClientInfo
}

// LoginInput captures the sign-in form.
type LoginInput struct {
	Email      string
	Password   string
	RememberMe bool
	Client     ClientInfo
}

// TokenValidation is the verified view of an access token.
type TokenValidation struct {
	Account     domain.Account
	IssuedAt    time.Time
	ExpiresAt   time.Time
	ValidatedAt time.Time
}

// Register creates an account, emails a verification link and starts a session.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	email := domain.NormalizeEmail(input.Email)
	firstName := security.SanitizeFreeText(input.FirstName)
	lastName := security.SanitizeFreeText(input.LastName)
	handle := strings.TrimSpace(input.Handle)

	switch {
	case email == "":
		return nil, requiredField("email")
	case input.Password == "":
		return nil, requiredField("password")
	case firstName == "":
		return nil, requiredField("firstName")
	case lastName == "":
		return nil, requiredField("lastName")
	}
	if err := security.ValidateEmailFormat(email); err != nil {
		return nil, err
	}
	strength, err := security.ValidatePasswordStrength(input.Password, email, firstName, lastName)
	if err != nil {
		return nil, weakPassword(err)
	}
	if handle != "" {
		if err := security.ValidateHandleFormat(handle); err != nil {
			return nil, err
		}
	}

	if err := s.ensureAvailable(ctx, email, handle); err != nil {
		return nil, err
	}

	var referredBy *string
	if code := strings.TrimSpace(input.ReferralCode); code != "" {
		referrer, err := s.accounts.GetByReferralCode(ctx, code)
		if err != nil {
			if errors.Is(err, repository.ErrNotFound) {
				return nil, ErrInvalidReferral
			}
			return nil, fmt.Errorf("lookup referrer: %w", err)
		}
		referredBy = &referrer.ID
	}

	passwordHash, err := s.hasher.Hash(input.Password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	now := s.now().UTC()
	account := domain.Account{
		ID:             uuid.NewString(),
		Email:          email,
		Handle:         optional(handle),
		PasswordHash:   passwordHash,
		FirstName:      firstName,
		LastName:       lastName,
		Role:           domain.RoleUser,
		IsActive:       true,
		Status:         domain.AccountStatusActive,
		RegisteredAt:   now,
		RegistrationIP: input.Client.ipPtr(),
		ReferredBy:     referredBy,
		UpdatedAt:      now,
	}
	if err := s.createAccount(ctx, &account); err != nil {
		return nil, err
	}

	rawVerification, err := issueCredentialToken(ctx, s.tokens, account.ID, domain.TokenTypeEmailVerification, now, input.Client)
	if err != nil {
		return nil, err
	}
	if err := s.notifier.SendVerification(ctx, account, rawVerification); err != nil {
		s.logger.Warn("verification email not queued", zap.String("account_id", account.ID), zap.Error(err))
	}
	if err := s.notifier.SendWelcome(ctx, account); err != nil {
		s.logger.Warn("welcome email not queued", zap.String("account_id", account.ID), zap.Error(err))
	}

	pair, err := s.issueSession(ctx, account.ID, s.cfg.AccessTTL, input.Client)
	if err != nil {
		return nil, err
	}

	s.publish("account registered", func() error {
		return s.events.PublishAccountRegistered(ctx, domain.AccountRegisteredEvent{
			AccountID:    account.ID,
			Email:        account.Email,
			Handle:       account.Handle,
			ReferredBy:   account.ReferredBy,
			RegisteredAt: now,
			IPAddress:    account.RegistrationIP,
		})
	})

	s.logger.Info("account registered",
		zap.String("account_id", account.ID),
		zap.String("email", logger.MaskEmail(account.Email)),
	)

	return &AuthResult{Account: account.Sanitized(), Tokens: pair, PasswordStrength: strength}, nil
}

func (s *AuthService) ensureAvailable(ctx context.Context, email, handle string) error {
	if _, err := s.accounts.GetByEmail(ctx, email); err == nil {
		return ErrEmailTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup email: %w", err)
	}

	if handle == "" {
		return nil
	}
	if _, err := s.accounts.GetByHandle(ctx, handle); err == nil {
		return ErrHandleTaken
	} else if !errors.Is(err, repository.ErrNotFound) {
		return fmt.Errorf("lookup handle: %w", err)
	}
	return nil
}

// createAccount assigns a referral code and inserts the row, retrying on code collisions.
func (s *AuthService) createAccount(ctx context.Context, account *domain.Account) error {
	return createWithReferralCode(ctx, s.accounts, account, func() error {
		handle := ""
		if account.Handle != nil {
			handle = *account.Handle
		}
		return s.ensureAvailable(ctx, account.Email, handle)
	})
}

func createWithReferralCode(ctx context.Context, accounts port.AccountRepository, account *domain.Account, recheck func() error) error {
	for attempt := 1; attempt <= referralCodeAttempts; attempt++ {
		code, err := security.GenerateReferralCode()
		if err != nil {
			return err
		}
		account.ReferralCode = code

		err = accounts.Create(ctx, *account)
		if err == nil {
			return nil
		}
		if !errors.Is(err, repository.ErrConflict) {
			return fmt.Errorf("create account: %w", err)
		}
		// A concurrent sign-up may have claimed the email or handle.
		if err := recheck(); err != nil {
			return err
		}
	}
	return fmt.Errorf("create account: referral code collisions after %d attempts", referralCodeAttempts)
}

// Login verifies credentials, applying the lockout policy, and starts a session.
func (s *AuthService) Login(ctx context.Context, input LoginInput) (*AuthResult, error) {
	email := domain.NormalizeEmail(input.Email)
	if email == "" {
		return nil, requiredField("email")
	}
	if input.Password == "" {
		return nil, requiredField("password")
	}

	account, err := s.accounts.GetByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	now := s.now().UTC()
	if account.IsLocked(now) {
		return nil, domain.ErrAccountLocked
	}
	if !account.CanAuthenticate() {
		return nil, domain.ErrAccountInactive
	}

	ok, err := s.hasher.Verify(input.Password, account.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("verify password: %w", err)
	}
	if !ok {
		s.recordFailure(ctx, account.ID, now, input.Client)
		return nil, ErrInvalidCredentials
	}

	if err := s.accounts.RecordLoginSuccess(ctx, account.ID, input.Client.ipPtr(), now); err != nil {
		return nil, fmt.Errorf("record login: %w", err)
	}
	account.FailedLoginAttempts = 0
	account.LockUntil = nil
	account.LastLoginAt = &now
	account.LastLoginIP = input.Client.ipPtr()

	ttl := s.cfg.AccessTTL
	if input.RememberMe {
		ttl = s.cfg.RememberMeTTL
	}
	pair, err := s.issueSession(ctx, account.ID, ttl, input.Client)
	if err != nil {
		return nil, err
	}

	s.publish("account signed in", func() error {
		return s.events.PublishAccountSignedIn(ctx, domain.AccountSignedInEvent{
			AccountID:  account.ID,
			RememberMe: input.RememberMe,
			SignedInAt: now,
			IPAddress:  input.Client.ipPtr(),
		})
	})

	return &AuthResult{Account: account.Sanitized(), Tokens: pair}, nil
}

func (s *AuthService) recordFailure(ctx context.Context, accountID string, now time.Time, client ClientInfo) {
	failure, err := s.accounts.RecordLoginFailure(ctx, accountID, s.cfg.LockoutThreshold, s.cfg.LockoutDuration, now)
	if err != nil {
		s.logger.Error("record login failure", zap.String("account_id", accountID), zap.Error(err))
		return
	}
	if failure.Attempts < s.cfg.LockoutThreshold || failure.LockUntil == nil {
		return
	}

	s.logger.Warn("account locked after failed sign-ins",
		zap.String("account_id", accountID),
		zap.Int("attempts", failure.Attempts),
		zap.Time("lock_until", *failure.LockUntil),
		zap.String("ip", logger.MaskIP(client.IP)),
	)
	s.publish("account locked", func() error {
		return s.events.PublishAccountLocked(ctx, domain.AccountLockedEvent{
			AccountID: accountID,
			Attempts:  failure.Attempts,
			LockUntil: *failure.LockUntil,
			IPAddress: client.ipPtr(),
		})
	})
}

// Refresh rotates a refresh token. The old record is consumed with a conditional
// update so only one of two concurrent callers succeeds.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string, client ClientInfo) (*AuthResult, error) {
	refreshToken = strings.TrimSpace(refreshToken)
	if refreshToken == "" {
		return nil, domain.ErrNoToken
	}

	claims, err := s.issuer.VerifyRefreshToken(refreshToken)
	if err != nil {
		return nil, err
	}

	record, err := s.tokens.GetByHash(ctx, security.HashToken(refreshToken), domain.TokenTypeRefresh)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("lookup refresh token: %w", err)
	}

	now := s.now().UTC()
	if !record.IsValid(now) || record.AccountID != claims.Subject {
		return nil, ErrInvalidRefreshToken
	}

	account, err := s.accounts.GetByID(ctx, record.AccountID)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}
	if !account.CanAuthenticate() {
		return nil, domain.ErrAccountInactive
	}
	if account.IsLocked(now) {
		return nil, domain.ErrAccountLocked
	}

	if err := s.tokens.Consume(ctx, record.ID, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrInvalidRefreshToken
		}
		return nil, fmt.Errorf("consume refresh token: %w", err)
	}

	pair, err := s.issueSession(ctx, account.ID, s.cfg.AccessTTL, client)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Account: account.Sanitized(), Tokens: pair}, nil
}

// Logout revokes every refresh record of the account.
func (s *AuthService) Logout(ctx context.Context, accountID string) (int, error) {
	revoked, err := s.tokens.RevokeForAccount(ctx, accountID, domain.TokenTypeRefresh, s.now().UTC())
	if err != nil {
		return 0, fmt.Errorf("revoke refresh tokens: %w", err)
	}
	return revoked, nil
}

// ValidateToken verifies an access token and the state of its owner.
func (s *AuthService) ValidateToken(ctx context.Context, accessToken string) (*TokenValidation, error) {
	accessToken = strings.TrimSpace(accessToken)
	if accessToken == "" {
		return nil, domain.ErrNoToken
	}

	claims, err := s.issuer.VerifyAccessToken(accessToken)
	if err != nil {
		return nil, err
	}

	account, err := s.accounts.GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, domain.ErrAccountNotFound
		}
		return nil, fmt.Errorf("lookup account: %w", err)
	}

	now := s.now().UTC()
	if !account.CanAuthenticate() {
		return nil, domain.ErrAccountInactive
	}
	if account.IsLocked(now) {
		return nil, domain.ErrAccountLocked
	}

	return &TokenValidation{
		Account:     account.Sanitized(),
		IssuedAt:    claims.IssuedAt,
		ExpiresAt:   claims.ExpiresAt,
		ValidatedAt: now,
	}, nil
}

func (s *AuthService) issueSession(ctx context.Context, accountID string, accessTTL time.Duration, client ClientInfo) (TokenPair, error) {
	access, accessClaims, err := s.issuer.IssueAccessToken(accountID, accessTTL)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue access token: %w", err)
	}
	refresh, refreshClaims, err := s.issuer.IssueRefreshToken(accountID)
	if err != nil {
		return TokenPair{}, fmt.Errorf("issue refresh token: %w", err)
	}

	record := domain.CredentialToken{
		ID:        uuid.NewString(),
		AccountID: accountID,
		TokenHash: security.HashToken(refresh),
		Type:      domain.TokenTypeRefresh,
		ExpiresAt: refreshClaims.ExpiresAt,
		IP:        client.ipPtr(),
		UserAgent: client.userAgentPtr(),
		CreatedAt: s.now().UTC(),
	}
	if err := s.tokens.Create(ctx, record); err != nil {
		return TokenPair{}, fmt.Errorf("store refresh token: %w", err)
	}

	return TokenPair{
		AccessToken:      access,
		AccessExpiresAt:  accessClaims.ExpiresAt,
		RefreshToken:     refresh,
		RefreshExpiresAt: refreshClaims.ExpiresAt,
	}, nil
}

func (s *AuthService) publish(name string, fn func() error) {
	publishEvent(s.logger, s.events, name, fn)
}

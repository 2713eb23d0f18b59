package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/portal-identity/internal/core/domain"
)

type authFixture struct {
	service  *AuthService
	accounts *memAccounts
	tokens   *memTokens
	notifier *recordingNotifier
	events   *recordingEvents
	clock    *fakeClock
}

func newAuthFixture(t *testing.T, seed ...domain.Account) *authFixture {
	t.Helper()
	clock := newFakeClock()
	f := &authFixture{
		accounts: newMemAccounts(seed...),
		tokens:   newMemTokens(),
		notifier: newRecordingNotifier(),
		events:   &recordingEvents{},
		clock:    clock,
	}
	f.service = NewAuthService(AuthConfig{}, f.accounts, f.tokens, plainHasher{}, newTestIssuer(t, clock), f.notifier, f.events, zaptest.NewLogger(t))
	f.service.WithClock(clock.Now)
	return f
}

func validRegistration() RegisterInput {
	return RegisterInput{
		Email:     "  Ada@Example.com ",
		Password:  "Abcd1234!",
		FirstName: "Ada",
		LastName:  "Lovelace",
		Client:    ClientInfo{IP: "203.0.113.9", UserAgent: "test-agent"},
	}
}

func TestAuthService_RegisterCreatesAccountAndSession(t *testing.T) {
	f := newAuthFixture(t)

	result, err := f.service.Register(context.Background(), validRegistration())
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}

	if result.Account.Email != "ada@example.com" {
		t.Fatalf("expected normalized email, got %q", result.Account.Email)
	}
	if result.Account.PasswordHash != "" {
		t.Fatal("expected password hash to be stripped from result")
	}
	if len(result.Account.ReferralCode) != 8 {
		t.Fatalf("expected 8 character referral code, got %q", result.Account.ReferralCode)
	}
	if result.Account.EmailVerified {
		t.Fatal("new accounts must start unverified")
	}
	if result.Tokens.AccessToken == "" || result.Tokens.RefreshToken == "" {
		t.Fatal("expected both tokens to be issued")
	}
	if !result.Tokens.AccessExpiresAt.Equal(testNow.Add(24 * time.Hour)) {
		t.Fatalf("unexpected access expiry %v", result.Tokens.AccessExpiresAt)
	}

	stored := f.accounts.get(result.Account.ID)
	if stored.PasswordHash != "hashed:Abcd1234!" {
		t.Fatalf("expected stored hash, got %q", stored.PasswordHash)
	}
	if stored.RegistrationIP == nil || *stored.RegistrationIP != "203.0.113.9" {
		t.Fatalf("expected registration ip to be recorded, got %v", stored.RegistrationIP)
	}

	verification := f.tokens.ofType(result.Account.ID, domain.TokenTypeEmailVerification)
	if len(verification) != 1 || !verification[0].ExpiresAt.Equal(testNow.Add(24*time.Hour)) {
		t.Fatalf("expected one 24h verification token, got %+v", verification)
	}
	if verification[0].TokenHash == f.notifier.token("verification") {
		t.Fatal("raw verification token must not be persisted")
	}
	if refresh := f.tokens.ofType(result.Account.ID, domain.TokenTypeRefresh); len(refresh) != 1 {
		t.Fatalf("expected one refresh record, got %d", len(refresh))
	}

	if f.notifier.count("verification") != 1 || f.notifier.count("welcome") != 1 {
		t.Fatalf("expected verification and welcome emails, got %v", f.notifier.calls)
	}
	if !f.events.has("registered") {
		t.Fatal("expected registered event")
	}
}

func TestAuthService_RegisterSwallowsEmailFailure(t *testing.T) {
	f := newAuthFixture(t)
	f.notifier.verifyErr = errors.New("queue full")

	if _, err := f.service.Register(context.Background(), validRegistration()); err != nil {
		t.Fatalf("expected email failure to be swallowed, got %v", err)
	}
}

func TestAuthService_RegisterRejectsDuplicates(t *testing.T) {
	existing := activeAccount("acc-1", "ada@example.com")
	handle := "ada_l"
	existing.Handle = &handle
	f := newAuthFixture(t, existing)

	if _, err := f.service.Register(context.Background(), validRegistration()); !errors.Is(err, ErrEmailTaken) {
		t.Fatalf("expected ErrEmailTaken, got %v", err)
	}

	input := validRegistration()
	input.Email = "other@example.com"
	input.Handle = "ada_l"
	if _, err := f.service.Register(context.Background(), input); !errors.Is(err, ErrHandleTaken) {
		t.Fatalf("expected ErrHandleTaken, got %v", err)
	}
}

func TestAuthService_RegisterValidation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*RegisterInput)
		code   string
	}{
		{name: "missing email", mutate: func(in *RegisterInput) { in.Email = "" }, code: "MissingField"},
		{name: "missing last name", mutate: func(in *RegisterInput) { in.LastName = "  " }, code: "MissingField"},
		{name: "bad email", mutate: func(in *RegisterInput) { in.Email = "not-an-email" }, code: "InvalidEmail"},
		{name: "weak password", mutate: func(in *RegisterInput) { in.Password = "abcdefgh" }, code: "WeakPassword"},
		{name: "bad handle", mutate: func(in *RegisterInput) { in.Handle = "a!" }, code: "InvalidHandle"},
		{name: "unknown referral", mutate: func(in *RegisterInput) { in.ReferralCode = "ZZZZZZZZ" }, code: "InvalidReferralCode"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			f := newAuthFixture(t)
			input := validRegistration()
			tc.mutate(&input)

			_, err := f.service.Register(context.Background(), input)
			if err == nil {
				t.Fatal("expected error")
			}
			if got := domain.CodeOf(err); got != tc.code {
				t.Fatalf("expected code %s, got %s (%v)", tc.code, got, err)
			}
			if domain.KindOf(err) != domain.KindValidation {
				t.Fatalf("expected validation kind, got %s", domain.KindOf(err))
			}
		})
	}
}

func TestAuthService_RegisterResolvesReferral(t *testing.T) {
	referrer := activeAccount("acc-ref", "ref@example.com")
	f := newAuthFixture(t, referrer)

	input := validRegistration()
	input.ReferralCode = referrer.ReferralCode
	result, err := f.service.Register(context.Background(), input)
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if result.Account.ReferredBy == nil || *result.Account.ReferredBy != "acc-ref" {
		t.Fatalf("expected referrer to be recorded, got %v", result.Account.ReferredBy)
	}
}

func TestAuthService_LoginRejectsUnknownEmailGenerically(t *testing.T) {
	f := newAuthFixture(t)

	_, err := f.service.Login(context.Background(), LoginInput{Email: "nobody@example.com", Password: "Abcd1234!"})
	if !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
}

func TestAuthService_LoginSuccessResetsCounter(t *testing.T) {
	account := activeAccount("acc-1", "ada@example.com")
	account.FailedLoginAttempts = 3
	f := newAuthFixture(t, account)

	result, err := f.service.Login(context.Background(), LoginInput{
		Email:    "ADA@example.com",
		Password: "Abcd1234!",
		Client:   ClientInfo{IP: "198.51.100.4"},
	})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	stored := f.accounts.get("acc-1")
	if stored.FailedLoginAttempts != 0 {
		t.Fatalf("expected counter reset, got %d", stored.FailedLoginAttempts)
	}
	if stored.LastLoginAt == nil || !stored.LastLoginAt.Equal(testNow) {
		t.Fatalf("expected last login to be recorded, got %v", stored.LastLoginAt)
	}
	if stored.LastLoginIP == nil || *stored.LastLoginIP != "198.51.100.4" {
		t.Fatalf("expected last login ip, got %v", stored.LastLoginIP)
	}
	if !result.Tokens.AccessExpiresAt.Equal(testNow.Add(24 * time.Hour)) {
		t.Fatalf("expected 24h access token, got %v", result.Tokens.AccessExpiresAt)
	}
	if !f.events.has("signed_in") {
		t.Fatal("expected signed_in event")
	}
}

func TestAuthService_LoginRememberMeExtendsAccessToken(t *testing.T) {
	f := newAuthFixture(t, activeAccount("acc-1", "ada@example.com"))

	result, err := f.service.Login(context.Background(), LoginInput{Email: "ada@example.com", Password: "Abcd1234!", RememberMe: true})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if !result.Tokens.AccessExpiresAt.Equal(testNow.Add(7 * 24 * time.Hour)) {
		t.Fatalf("expected 7d access token, got %v", result.Tokens.AccessExpiresAt)
	}
}

func TestAuthService_LockoutAfterFiveFailures(t *testing.T) {
	f := newAuthFixture(t, activeAccount("acc-1", "ada@example.com"))
	ctx := context.Background()
	wrong := LoginInput{Email: "ada@example.com", Password: "Wrong1234!"}

	for i := 0; i < 5; i++ {
		if _, err := f.service.Login(ctx, wrong); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("attempt %d: expected ErrInvalidCredentials, got %v", i+1, err)
		}
	}

	_, err := f.service.Login(ctx, LoginInput{Email: "ada@example.com", Password: "Abcd1234!"})
	if !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected locked account even with correct password, got %v", err)
	}
	if domain.KindOf(err) != domain.KindLocked {
		t.Fatalf("expected locked kind, got %s", domain.KindOf(err))
	}
	if len(f.events.locked) != 1 || f.events.locked[0].Attempts != 5 {
		t.Fatalf("expected one locked event at 5 attempts, got %+v", f.events.locked)
	}
	if stored := f.accounts.get("acc-1"); stored.FailedLoginAttempts != 5 {
		t.Fatalf("locked sign-in must not touch the counter, got %d", stored.FailedLoginAttempts)
	}

	// The counter persists across the lock window, so one more failure re-locks at once.
	f.clock.Advance(31 * time.Minute)
	if _, err := f.service.Login(ctx, wrong); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials after lock elapsed, got %v", err)
	}
	if _, err := f.service.Login(ctx, LoginInput{Email: "ada@example.com", Password: "Abcd1234!"}); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected immediate re-lock, got %v", err)
	}
}

func TestAuthService_LoginAfterLockElapsesResetsCounter(t *testing.T) {
	f := newAuthFixture(t, activeAccount("acc-1", "ada@example.com"))
	ctx := context.Background()
	correct := LoginInput{Email: "ada@example.com", Password: "Abcd1234!"}

	for i := 0; i < 5; i++ {
		_, _ = f.service.Login(ctx, LoginInput{Email: "ada@example.com", Password: "Wrong1234!"})
	}
	if _, err := f.service.Login(ctx, correct); !errors.Is(err, domain.ErrAccountLocked) {
		t.Fatalf("expected locked account, got %v", err)
	}

	f.clock.Advance(31 * time.Minute)
	result, err := f.service.Login(ctx, correct)
	if err != nil {
		t.Fatalf("expected sign-in after the lock elapsed, got %v", err)
	}
	if result.Tokens.AccessToken == "" {
		t.Fatal("expected a session after the lock elapsed")
	}

	stored := f.accounts.get("acc-1")
	if stored.FailedLoginAttempts != 0 || stored.LockUntil != nil {
		t.Fatalf("expected counter and lock to reset, got attempts=%d lock=%v", stored.FailedLoginAttempts, stored.LockUntil)
	}

	// A fresh failure now starts from one instead of re-locking.
	if _, err := f.service.Login(ctx, LoginInput{Email: "ada@example.com", Password: "Wrong1234!"}); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("expected ErrInvalidCredentials, got %v", err)
	}
	if _, err := f.service.Login(ctx, correct); err != nil {
		t.Fatalf("expected one failure not to lock the account, got %v", err)
	}
}

func TestAuthService_RegisterVerifyAndSignIn(t *testing.T) {
	f := newAuthFixture(t)
	verification := NewVerificationService(f.accounts, f.tokens, f.notifier, f.events, zaptest.NewLogger(t))
	verification.WithClock(f.clock.Now)
	ctx := context.Background()
	credentials := LoginInput{Email: "a@b.com", Password: "Abcd1234!"}

	registered, err := f.service.Register(ctx, RegisterInput{
		Email:     "a@b.com",
		Password:  "Abcd1234!",
		FirstName: "Ada",
		LastName:  "Lovelace",
	})
	if err != nil {
		t.Fatalf("Register returned error: %v", err)
	}
	if registered.Account.EmailVerified {
		t.Fatal("expected a new account to be unverified")
	}

	unverified, err := f.service.Login(ctx, credentials)
	if err != nil {
		t.Fatalf("expected unverified sign-in to succeed, got %v", err)
	}
	if unverified.Account.EmailVerified {
		t.Fatal("expected sign-in result to report unverified email")
	}

	rawToken := f.notifier.token("verification")
	if rawToken == "" {
		t.Fatal("expected verification email with a token")
	}
	verified, err := verification.VerifyEmail(ctx, rawToken)
	if err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}
	if !verified.EmailVerified {
		t.Fatal("expected emailVerified after verification")
	}

	f.clock.Advance(time.Minute)
	again, err := f.service.Login(ctx, credentials)
	if err != nil {
		t.Fatalf("expected second sign-in to succeed, got %v", err)
	}
	if !again.Account.EmailVerified || again.Account.ID != registered.Account.ID {
		t.Fatalf("unexpected account after verification %+v", again.Account)
	}

	validation, err := f.service.ValidateToken(ctx, again.Tokens.AccessToken)
	if err != nil {
		t.Fatalf("ValidateToken returned error: %v", err)
	}
	if !validation.Account.EmailVerified {
		t.Fatal("expected validated projection to report verified email")
	}
}

func TestAuthService_LoginRejectsInactiveBeforePasswordCheck(t *testing.T) {
	account := activeAccount("acc-1", "ada@example.com")
	account.Status = domain.AccountStatusSuspended
	account.IsActive = false
	f := newAuthFixture(t, account)

	_, err := f.service.Login(context.Background(), LoginInput{Email: "ada@example.com", Password: "Wrong1234!"})
	if !errors.Is(err, domain.ErrAccountInactive) {
		t.Fatalf("expected ErrAccountInactive, got %v", err)
	}
	if stored := f.accounts.get("acc-1"); stored.FailedLoginAttempts != 0 {
		t.Fatalf("inactive sign-in must not count as a failure, got %d", stored.FailedLoginAttempts)
	}
}

func TestAuthService_RefreshRotatesOnce(t *testing.T) {
	f := newAuthFixture(t, activeAccount("acc-1", "ada@example.com"))
	ctx := context.Background()

	login, err := f.service.Login(ctx, LoginInput{Email: "ada@example.com", Password: "Abcd1234!"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	rotated, err := f.service.Refresh(ctx, login.Tokens.RefreshToken, ClientInfo{})
	if err != nil {
		t.Fatalf("Refresh returned error: %v", err)
	}
	if rotated.Tokens.RefreshToken == login.Tokens.RefreshToken {
		t.Fatal("expected a new refresh token")
	}

	if _, err := f.service.Refresh(ctx, login.Tokens.RefreshToken, ClientInfo{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected reused refresh token to fail, got %v", err)
	}
	if _, err := f.service.Refresh(ctx, rotated.Tokens.RefreshToken, ClientInfo{}); err != nil {
		t.Fatalf("rotated refresh token should still work: %v", err)
	}
}

func TestAuthService_RefreshRejectsAccessToken(t *testing.T) {
	f := newAuthFixture(t, activeAccount("acc-1", "ada@example.com"))
	ctx := context.Background()

	login, err := f.service.Login(ctx, LoginInput{Email: "ada@example.com", Password: "Abcd1234!"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}
	if _, err := f.service.Refresh(ctx, login.Tokens.AccessToken, ClientInfo{}); !errors.Is(err, domain.ErrTokenMalformed) {
		t.Fatalf("expected access token to be rejected as refresh, got %v", err)
	}
	if _, err := f.service.ValidateToken(ctx, login.Tokens.RefreshToken); !errors.Is(err, domain.ErrTokenMalformed) {
		t.Fatalf("expected refresh token to be rejected as access, got %v", err)
	}
}

func TestAuthService_LogoutRevokesRefreshTokens(t *testing.T) {
	f := newAuthFixture(t, activeAccount("acc-1", "ada@example.com"))
	ctx := context.Background()

	login, err := f.service.Login(ctx, LoginInput{Email: "ada@example.com", Password: "Abcd1234!"})
	if err != nil {
		t.Fatalf("Login returned error: %v", err)
	}

	revoked, err := f.service.Logout(ctx, "acc-1")
	if err != nil {
		t.Fatalf("Logout returned error: %v", err)
	}
	if revoked != 1 {
		t.Fatalf("expected one revoked record, got %d", revoked)
	}
	if _, err := f.service.Refresh(ctx, login.Tokens.RefreshToken, ClientInfo{}); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("expected refresh after logout to fail, got %v", err)
	}
}

func TestAuthService_ValidateToken(t *testing.T) {
	ctx := context.Background()

	t.Run("valid", func(t *testing.T) {
		f := newAuthFixture(t, activeAccount("acc-1", "ada@example.com"))
		login, err := f.service.Login(ctx, LoginInput{Email: "ada@example.com", Password: "Abcd1234!"})
		if err != nil {
			t.Fatalf("Login returned error: %v", err)
		}

		f.clock.Advance(time.Minute)
		validation, err := f.service.ValidateToken(ctx, login.Tokens.AccessToken)
		if err != nil {
			t.Fatalf("ValidateToken returned error: %v", err)
		}
		if validation.Account.ID != "acc-1" || validation.Account.PasswordHash != "" {
			t.Fatalf("unexpected account projection %+v", validation.Account)
		}
		if !validation.IssuedAt.Equal(testNow) || !validation.ValidatedAt.Equal(testNow.Add(time.Minute)) {
			t.Fatalf("unexpected timestamps %+v", validation)
		}
	})

	t.Run("no token", func(t *testing.T) {
		f := newAuthFixture(t)
		if _, err := f.service.ValidateToken(ctx, "  "); domain.CodeOf(err) != "NoToken" {
			t.Fatalf("expected NoToken, got %v", err)
		}
	})

	t.Run("malformed", func(t *testing.T) {
		f := newAuthFixture(t)
		if _, err := f.service.ValidateToken(ctx, "garbage"); domain.CodeOf(err) != "TokenMalformed" {
			t.Fatalf("expected TokenMalformed, got %v", err)
		}
	})

	t.Run("expired", func(t *testing.T) {
		f := newAuthFixture(t, activeAccount("acc-1", "ada@example.com"))
		login, err := f.service.Login(ctx, LoginInput{Email: "ada@example.com", Password: "Abcd1234!"})
		if err != nil {
			t.Fatalf("Login returned error: %v", err)
		}
		f.clock.Advance(25 * time.Hour)
		if _, err := f.service.ValidateToken(ctx, login.Tokens.AccessToken); domain.CodeOf(err) != "TokenExpired" {
			t.Fatalf("expected TokenExpired, got %v", err)
		}
	})

	states := []struct {
		name   string
		mutate func(*domain.Account)
		code   string
	}{
		{name: "suspended", mutate: func(a *domain.Account) { a.Status = domain.AccountStatusSuspended; a.IsActive = false }, code: "AccountInactive"},
		{name: "locked", mutate: func(a *domain.Account) { until := testNow.Add(time.Hour); a.LockUntil = &until }, code: "AccountLocked"},
		{name: "deleted row", mutate: func(a *domain.Account) { a.ID = "gone" }, code: "UserNotFound"},
	}
	for _, tc := range states {
		t.Run(tc.name, func(t *testing.T) {
			f := newAuthFixture(t, activeAccount("acc-1", "ada@example.com"))
			login, err := f.service.Login(ctx, LoginInput{Email: "ada@example.com", Password: "Abcd1234!"})
			if err != nil {
				t.Fatalf("Login returned error: %v", err)
			}

			account := f.accounts.get("acc-1")
			tc.mutate(&account)
			f.accounts.mu.Lock()
			delete(f.accounts.accounts, "acc-1")
			f.accounts.accounts[account.ID] = account
			f.accounts.mu.Unlock()

			if _, err := f.service.ValidateToken(ctx, login.Tokens.AccessToken); domain.CodeOf(err) != tc.code {
				t.Fatalf("expected %s, got %v", tc.code, err)
			}
		})
	}
}

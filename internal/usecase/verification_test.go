package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/portal-identity/internal/core/domain"
)

func newVerificationFixture(t *testing.T, seed ...domain.Account) (*VerificationService, *memAccounts, *memTokens, *recordingNotifier, *fakeClock) {
	t.Helper()
	accounts := newMemAccounts(seed...)
	tokens := newMemTokens()
	notifier := newRecordingNotifier()
	clock := newFakeClock()

	service := NewVerificationService(accounts, tokens, notifier, &recordingEvents{}, zaptest.NewLogger(t))
	service.WithClock(clock.Now)
	return service, accounts, tokens, notifier, clock
}

func TestVerificationService_VerifyEmail(t *testing.T) {
	account := activeAccount("acc-1", "ada@example.com")
	until := testNow.Add(10 * time.Minute)
	account.LockUntil = &until
	account.FailedLoginAttempts = 5
	service, accounts, tokens, _, _ := newVerificationFixture(t, account)
	tokens.put("acc-1", domain.TokenTypeEmailVerification, "raw-verify", testNow.Add(time.Hour))

	verified, err := service.VerifyEmail(context.Background(), "raw-verify")
	if err != nil {
		t.Fatalf("VerifyEmail returned error: %v", err)
	}
	if !verified.EmailVerified {
		t.Fatal("expected verified account")
	}

	stored := accounts.get("acc-1")
	if !stored.EmailVerified || stored.LockUntil != nil || stored.FailedLoginAttempts != 0 {
		t.Fatalf("expected verified and unlocked account, got %+v", stored)
	}
	if token := tokens.ofType("acc-1", domain.TokenTypeEmailVerification)[0]; !token.Used {
		t.Fatal("expected token to be consumed")
	}

	if _, err := service.VerifyEmail(context.Background(), "raw-verify"); !errors.Is(err, ErrVerificationTokenInvalid) {
		t.Fatalf("expected reused token to be invalid, got %v", err)
	}
}

func TestVerificationService_VerifyEmailFailures(t *testing.T) {
	verified := activeAccount("acc-2", "bob@example.com")
	verified.EmailVerified = true
	service, _, tokens, _, _ := newVerificationFixture(t, activeAccount("acc-1", "ada@example.com"), verified)
	tokens.put("acc-1", domain.TokenTypeEmailVerification, "expired", testNow.Add(-time.Minute))
	tokens.put("acc-2", domain.TokenTypeEmailVerification, "already", testNow.Add(time.Hour))
	tokens.put("acc-1", domain.TokenTypePasswordReset, "wrong-type", testNow.Add(time.Hour))

	tests := map[string]error{
		"expired":    ErrVerificationTokenExpired,
		"already":    ErrAlreadyVerified,
		"wrong-type": ErrVerificationTokenInvalid,
		"unknown":    ErrVerificationTokenInvalid,
	}
	for raw, want := range tests {
		if _, err := service.VerifyEmail(context.Background(), raw); !errors.Is(err, want) {
			t.Fatalf("%s: expected %v, got %v", raw, want, err)
		}
	}
}

func TestVerificationService_ResendVerification(t *testing.T) {
	service, _, tokens, notifier, _ := newVerificationFixture(t, activeAccount("acc-1", "ada@example.com"))
	old := tokens.put("acc-1", domain.TokenTypeEmailVerification, "old", testNow.Add(time.Hour))

	if err := service.ResendVerification(context.Background(), "acc-1", ClientInfo{}); err != nil {
		t.Fatalf("ResendVerification returned error: %v", err)
	}

	var outstanding int
	for _, token := range tokens.ofType("acc-1", domain.TokenTypeEmailVerification) {
		if token.ID == old.ID && !token.Used {
			t.Fatal("expected previous token to be revoked")
		}
		if !token.Used {
			outstanding++
		}
	}
	if outstanding != 1 {
		t.Fatalf("expected exactly one outstanding token, got %d", outstanding)
	}
	if notifier.count("verification") != 1 {
		t.Fatal("expected verification email")
	}

	notifier.verifyErr = errors.New("queue full")
	if err := service.ResendVerification(context.Background(), "acc-1", ClientInfo{}); !errors.Is(err, ErrMailUnavailable) {
		t.Fatalf("expected ErrMailUnavailable, got %v", err)
	}
}

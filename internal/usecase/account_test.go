package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/arklim/portal-identity/internal/core/domain"
)

func newAccountFixture(t *testing.T, seed ...domain.Account) (*AccountService, *memAccounts, *memTokens, *recordingEvents) {
	t.Helper()
	accounts := newMemAccounts(seed...)
	tokens := newMemTokens()
	events := &recordingEvents{}

	service := NewAccountService(accounts, tokens, plainHasher{}, events, zaptest.NewLogger(t))
	service.WithClock(newFakeClock().Now)
	return service, accounts, tokens, events
}

func strPtr(s string) *string {
	return &s
}

func TestAccountService_UpdateProfile(t *testing.T) {
	taken := activeAccount("acc-2", "bob@example.com")
	taken.Handle = strPtr("bobby")
	service, accounts, _, _ := newAccountFixture(t, activeAccount("acc-1", "ada@example.com"), taken)
	ctx := context.Background()

	updated, err := service.UpdateProfile(ctx, "acc-1", domain.ProfileUpdate{
		FirstName: strPtr("  <b>Augusta</b> "),
		Handle:    strPtr("countess"),
		AvatarURL: strPtr("https://cdn.example.com/a.png"),
		Bio:       strPtr("mathematician"),
	})
	if err != nil {
		t.Fatalf("UpdateProfile returned error: %v", err)
	}
	if updated.FirstName != "bAugusta/b" {
		t.Fatalf("expected sanitized first name, got %q", updated.FirstName)
	}
	if updated.PasswordHash != "" {
		t.Fatal("expected sanitized projection")
	}
	if stored := accounts.get("acc-1"); stored.Handle == nil || *stored.Handle != "countess" || stored.LastName != "Lovelace" {
		t.Fatalf("unexpected stored account %+v", stored)
	}

	if _, err := service.UpdateProfile(ctx, "acc-1", domain.ProfileUpdate{Handle: strPtr("bobby")}); !errors.Is(err, ErrHandleTaken) {
		t.Fatalf("expected ErrHandleTaken, got %v", err)
	}
	if _, err := service.UpdateProfile(ctx, "acc-1", domain.ProfileUpdate{AvatarURL: strPtr("javascript:alert(1)")}); !errors.Is(err, ErrInvalidAvatar) {
		t.Fatalf("expected ErrInvalidAvatar, got %v", err)
	}
	if _, err := service.UpdateProfile(ctx, "acc-1", domain.ProfileUpdate{LastName: strPtr("   ")}); domain.CodeOf(err) != "MissingField" {
		t.Fatalf("expected MissingField, got %v", err)
	}

	cleared, err := service.UpdateProfile(ctx, "acc-1", domain.ProfileUpdate{Handle: strPtr("")})
	if err != nil {
		t.Fatalf("clearing handle returned error: %v", err)
	}
	if cleared.Handle != nil {
		t.Fatalf("expected handle to be cleared, got %v", *cleared.Handle)
	}
}

func TestAccountService_DeleteSelfScrubsAndRevokes(t *testing.T) {
	service, accounts, tokens, _ := newAccountFixture(t, activeAccount("acc-1", "ada@example.com"))
	tokens.put("acc-1", domain.TokenTypeRefresh, "refresh", testNow.Add(time.Hour))

	if err := service.DeleteSelf(context.Background(), "acc-1"); err != nil {
		t.Fatalf("DeleteSelf returned error: %v", err)
	}

	stored := accounts.get("acc-1")
	if stored.Status != domain.AccountStatusDeactivated || stored.IsActive {
		t.Fatalf("expected deactivated account, got %+v", stored)
	}
	if stored.Email != "deleted+acc-1@deleted.invalid" || stored.Handle != nil {
		t.Fatalf("expected scrubbed identity, got %q %v", stored.Email, stored.Handle)
	}
	if token := tokens.ofType("acc-1", domain.TokenTypeRefresh)[0]; !token.Used {
		t.Fatal("expected refresh token revocation")
	}
}

func TestAccountService_AdminGuards(t *testing.T) {
	admin := adminAccount("admin-1")
	user := activeAccount("acc-1", "ada@example.com")
	service, _, _, _ := newAccountFixture(t, admin, user)
	ctx := context.Background()

	if _, err := service.ListAccounts(ctx, user, domain.AccountFilter{}); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin, got %v", err)
	}
	if _, err := service.ChangeRole(ctx, user, "admin-1", domain.RoleUser); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden for non-admin role change, got %v", err)
	}
	if _, err := service.ChangeRole(ctx, admin, "admin-1", domain.RoleUser); !errors.Is(err, ErrSelfModification) {
		t.Fatalf("expected ErrSelfModification, got %v", err)
	}
	if _, err := service.ChangeStatus(ctx, admin, "admin-1", domain.AccountStatusSuspended); !errors.Is(err, ErrSelfModification) {
		t.Fatalf("expected ErrSelfModification for status, got %v", err)
	}
	if err := service.DeleteAccount(ctx, admin, "admin-1"); !errors.Is(err, ErrSelfModification) {
		t.Fatalf("expected ErrSelfModification for delete, got %v", err)
	}
	if _, err := service.ChangeRole(ctx, admin, "acc-1", domain.Role("root")); !errors.Is(err, ErrInvalidRole) {
		t.Fatalf("expected ErrInvalidRole, got %v", err)
	}
	if _, err := service.GetAccount(ctx, admin, "missing"); !errors.Is(err, ErrAccountMissing) {
		t.Fatalf("expected ErrAccountMissing, got %v", err)
	}
}

func TestAccountService_ChangeRoleAndStatus(t *testing.T) {
	admin := adminAccount("admin-1")
	service, accounts, tokens, events := newAccountFixture(t, admin, activeAccount("acc-1", "ada@example.com"))
	tokens.put("acc-1", domain.TokenTypeRefresh, "refresh", testNow.Add(time.Hour))
	ctx := context.Background()

	promoted, err := service.ChangeRole(ctx, admin, "acc-1", domain.RoleAdmin)
	if err != nil {
		t.Fatalf("ChangeRole returned error: %v", err)
	}
	if promoted.Role != domain.RoleAdmin || accounts.get("acc-1").Role != domain.RoleAdmin {
		t.Fatal("expected promotion to be stored")
	}

	suspended, err := service.ChangeStatus(ctx, admin, "acc-1", domain.AccountStatusSuspended)
	if err != nil {
		t.Fatalf("ChangeStatus returned error: %v", err)
	}
	if suspended.IsActive || accounts.get("acc-1").IsActive {
		t.Fatal("suspension must clear the active flag")
	}
	if token := tokens.ofType("acc-1", domain.TokenTypeRefresh)[0]; !token.Used {
		t.Fatal("suspension must end every session")
	}
	if !events.has("account_updated") {
		t.Fatal("expected account_updated event")
	}

	page, err := service.ListAccounts(ctx, admin, domain.AccountFilter{Limit: 10})
	if err != nil {
		t.Fatalf("ListAccounts returned error: %v", err)
	}
	if page.Total != 2 {
		t.Fatalf("expected 2 accounts, got %d", page.Total)
	}
	for _, account := range page.Accounts {
		if account.PasswordHash != "" {
			t.Fatal("listing must not expose password hashes")
		}
	}
}

func TestAccountService_BootstrapAdmin(t *testing.T) {
	service, accounts, _, _ := newAccountFixture(t)
	ctx := context.Background()

	created, err := service.BootstrapAdmin(ctx, "Root@Example.com", "Adm1nPassw0rd!")
	if err != nil {
		t.Fatalf("BootstrapAdmin returned error: %v", err)
	}
	if !created {
		t.Fatal("expected admin to be created")
	}

	admin, err := accounts.GetByEmail(ctx, "root@example.com")
	if err != nil {
		t.Fatalf("expected admin account: %v", err)
	}
	if admin.Role != domain.RoleAdmin || !admin.EmailVerified || len(admin.ReferralCode) != 8 {
		t.Fatalf("unexpected admin account %+v", admin)
	}

	again, err := service.BootstrapAdmin(ctx, "root@example.com", "Adm1nPassw0rd!")
	if err != nil || again {
		t.Fatalf("expected second bootstrap to be a no-op, got %v %v", again, err)
	}

	skipped, err := service.BootstrapAdmin(ctx, "", "")
	if err != nil || skipped {
		t.Fatalf("expected empty config to be ignored, got %v %v", skipped, err)
	}
}

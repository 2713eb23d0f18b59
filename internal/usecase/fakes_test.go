package usecase

import (
	"context"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/infra/security"
	"github.com/arklim/portal-identity/internal/repository"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: testNow}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestIssuer(t *testing.T, clock *fakeClock) *security.TokenManager {
	t.Helper()
	manager, err := security.NewTokenManager(security.TokenManagerConfig{
		AccessSecret:  strings.Repeat("a", 32),
		RefreshSecret: strings.Repeat("r", 32),
		Issuer:        "portal-test",
	})
	if err != nil {
		t.Fatalf("NewTokenManager: %v", err)
	}
	return manager.WithClock(clock.Now)
}

// plainHasher keeps tests fast; bcrypt is covered in the security package.
type plainHasher struct{}

func (plainHasher) Hash(password string) (string, error) {
	return "hashed:" + password, nil
}

func (plainHasher) Verify(password, encoded string) (bool, error) {
	return encoded == "hashed:"+password, nil
}

type memAccounts struct {
	mu       sync.Mutex
	accounts map[string]domain.Account
}

func newMemAccounts(seed ...domain.Account) *memAccounts {
	repo := &memAccounts{accounts: map[string]domain.Account{}}
	for _, a := range seed {
		repo.accounts[a.ID] = a
	}
	return repo
}

func (r *memAccounts) get(id string) domain.Account {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.accounts[id]
}

func (r *memAccounts) Create(_ context.Context, account domain.Account) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.accounts {
		if existing.Email == account.Email || existing.ReferralCode == account.ReferralCode {
			return repository.ErrConflict
		}
		if account.Handle != nil && existing.Handle != nil && *existing.Handle == *account.Handle {
			return repository.ErrConflict
		}
	}
	r.accounts[account.ID] = account
	return nil
}

func (r *memAccounts) find(match func(domain.Account) bool) (*domain.Account, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, a := range r.accounts {
		if match(a) {
			copied := a
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memAccounts) GetByID(_ context.Context, id string) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool { return a.ID == id })
}

func (r *memAccounts) GetByEmail(_ context.Context, email string) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool { return a.Email == email })
}

func (r *memAccounts) GetByHandle(_ context.Context, handle string) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool {
		return a.Handle != nil && strings.EqualFold(*a.Handle, handle)
	})
}

func (r *memAccounts) GetByReferralCode(_ context.Context, code string) (*domain.Account, error) {
	return r.find(func(a domain.Account) bool { return a.ReferralCode == code })
}

func (r *memAccounts) List(_ context.Context, filter domain.AccountFilter) ([]domain.Account, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Account
	for _, a := range r.accounts {
		if filter.Role != nil && a.Role != *filter.Role {
			continue
		}
		if filter.Status != nil && a.Status != *filter.Status {
			continue
		}
		if filter.Search != "" && !strings.Contains(a.Email, filter.Search) {
			continue
		}
		out = append(out, a)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *memAccounts) mutate(id string, fn func(*domain.Account)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	a, ok := r.accounts[id]
	if !ok {
		return repository.ErrNotFound
	}
	fn(&a)
	r.accounts[id] = a
	return nil
}

func (r *memAccounts) UpdateProfile(_ context.Context, id string, update domain.ProfileUpdate, at time.Time) (*domain.Account, error) {
	err := r.mutate(id, func(a *domain.Account) {
		if update.FirstName != nil {
			a.FirstName = *update.FirstName
		}
		if update.LastName != nil {
			a.LastName = *update.LastName
		}
		if update.Handle != nil {
			a.Handle = optional(*update.Handle)
		}
		if update.AvatarURL != nil {
			a.AvatarURL = optional(*update.AvatarURL)
		}
		if update.Bio != nil {
			a.Bio = optional(*update.Bio)
		}
		a.UpdatedAt = at
	})
	if err != nil {
		return nil, err
	}
	account := r.get(id)
	return &account, nil
}

func (r *memAccounts) UpdatePassword(_ context.Context, id string, hash string, at time.Time) error {
	return r.mutate(id, func(a *domain.Account) {
		a.PasswordHash = hash
		a.FailedLoginAttempts = 0
		a.LockUntil = nil
		a.UpdatedAt = at
	})
}

func (r *memAccounts) MarkEmailVerified(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(a *domain.Account) {
		a.EmailVerified = true
		a.FailedLoginAttempts = 0
		a.LockUntil = nil
		a.UpdatedAt = at
	})
}

func (r *memAccounts) RecordLoginFailure(_ context.Context, id string, threshold int, lockFor time.Duration, at time.Time) (domain.LoginFailure, error) {
	var failure domain.LoginFailure
	err := r.mutate(id, func(a *domain.Account) {
		a.FailedLoginAttempts++
		if a.FailedLoginAttempts >= threshold {
			until := at.Add(lockFor)
			a.LockUntil = &until
		}
		failure = domain.LoginFailure{Attempts: a.FailedLoginAttempts, LockUntil: a.LockUntil}
	})
	return failure, err
}

func (r *memAccounts) RecordLoginSuccess(_ context.Context, id string, ip *string, at time.Time) error {
	return r.mutate(id, func(a *domain.Account) {
		a.FailedLoginAttempts = 0
		a.LockUntil = nil
		a.LastLoginAt = &at
		a.LastLoginIP = ip
	})
}

func (r *memAccounts) UpdateRole(_ context.Context, id string, role domain.Role, at time.Time) error {
	return r.mutate(id, func(a *domain.Account) {
		a.Role = role
		a.UpdatedAt = at
	})
}

func (r *memAccounts) UpdateStatus(_ context.Context, id string, status domain.AccountStatus, at time.Time) error {
	return r.mutate(id, func(a *domain.Account) {
		a.Status = status
		a.IsActive = status == domain.AccountStatusActive
		a.UpdatedAt = at
	})
}

func (r *memAccounts) SoftDelete(_ context.Context, id string, at time.Time) error {
	return r.mutate(id, func(a *domain.Account) {
		a.Status = domain.AccountStatusDeactivated
		a.IsActive = false
		a.Email = domain.DeletedEmail(a.ID)
		a.Handle = nil
		a.UpdatedAt = at
	})
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]domain.CredentialToken
}

func newMemTokens() *memTokens {
	return &memTokens{tokens: map[string]domain.CredentialToken{}}
}

func (r *memTokens) Create(_ context.Context, token domain.CredentialToken) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.tokens {
		if existing.TokenHash == token.TokenHash {
			return repository.ErrConflict
		}
	}
	r.tokens[token.ID] = token
	return nil
}

func (r *memTokens) GetByHash(_ context.Context, hash string, tokenType domain.TokenType) (*domain.CredentialToken, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, token := range r.tokens {
		if token.TokenHash == hash && token.Type == tokenType {
			copied := token
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memTokens) Consume(_ context.Context, id string, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	token, ok := r.tokens[id]
	if !ok || !token.IsValid(at) {
		return repository.ErrNotFound
	}
	token.MarkUsed(at)
	r.tokens[id] = token
	return nil
}

func (r *memTokens) RevokeForAccount(_ context.Context, accountID string, tokenType domain.TokenType, at time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	revoked := 0
	for id, token := range r.tokens {
		if token.AccountID == accountID && token.Type == tokenType && !token.Used {
			token.MarkUsed(at)
			r.tokens[id] = token
			revoked++
		}
	}
	return revoked, nil
}

func (r *memTokens) DeleteExpired(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	deleted := 0
	for id, token := range r.tokens {
		if token.ExpiresAt.Before(before) {
			delete(r.tokens, id)
			deleted++
		}
	}
	return deleted, nil
}

func (r *memTokens) ofType(accountID string, tokenType domain.TokenType) []domain.CredentialToken {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.CredentialToken
	for _, token := range r.tokens {
		if token.AccountID == accountID && token.Type == tokenType {
			out = append(out, token)
		}
	}
	return out
}

// put stores a token under the hash of raw and returns it.
func (r *memTokens) put(accountID string, tokenType domain.TokenType, raw string, expiresAt time.Time) domain.CredentialToken {
	token := domain.CredentialToken{
		ID:        "tok-" + raw,
		AccountID: accountID,
		TokenHash: security.HashToken(raw),
		Type:      tokenType,
		ExpiresAt: expiresAt,
		CreatedAt: testNow,
	}
	r.mu.Lock()
	r.tokens[token.ID] = token
	r.mu.Unlock()
	return token
}

type memGrants struct {
	mu     sync.Mutex
	grants map[string]domain.AccessGrant
}

func newMemGrants() *memGrants {
	return &memGrants{grants: map[string]domain.AccessGrant{}}
}

func (r *memGrants) Create(_ context.Context, grant domain.AccessGrant) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, existing := range r.grants {
		if existing.AccountID == grant.AccountID && existing.Resource == grant.Resource && existing.Status == domain.GrantStatusPending {
			return repository.ErrConflict
		}
	}
	r.grants[grant.ID] = grant
	return nil
}

func (r *memGrants) GetByID(_ context.Context, id string) (*domain.AccessGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.grants[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &grant, nil
}

func (r *memGrants) FindActive(_ context.Context, accountID string, resource domain.Resource, at time.Time) (*domain.AccessGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, grant := range r.grants {
		if grant.AccountID == accountID && grant.Resource == resource && grant.IsActive(at) {
			copied := grant
			return &copied, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memGrants) List(_ context.Context, filter domain.GrantFilter) ([]domain.AccessGrant, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.AccessGrant
	for _, grant := range r.grants {
		if filter.AccountID != nil && grant.AccountID != *filter.AccountID {
			continue
		}
		if filter.Resource != nil && grant.Resource != *filter.Resource {
			continue
		}
		if filter.Status != nil && grant.Status != *filter.Status {
			continue
		}
		out = append(out, grant)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, len(out), nil
}

func (r *memGrants) Review(_ context.Context, review domain.GrantReview) (*domain.AccessGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.grants[review.GrantID]
	if !ok || grant.Status != domain.GrantStatusPending {
		return nil, repository.ErrNotFound
	}
	reviewer := review.ReviewerID
	reviewedAt := review.ReviewedAt
	grant.Status = review.Status
	grant.ReviewerID = &reviewer
	grant.ReviewerMessage = review.Message
	grant.ReviewedAt = &reviewedAt
	grant.ExpiresAt = review.ExpiresAt
	grant.UpdatedAt = review.ReviewedAt
	r.grants[grant.ID] = grant
	return &grant, nil
}

func (r *memGrants) Revoke(_ context.Context, id string, reviewerID string, at time.Time) (*domain.AccessGrant, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	grant, ok := r.grants[id]
	if !ok || grant.Status != domain.GrantStatusApproved {
		return nil, repository.ErrNotFound
	}
	grant.Status = domain.GrantStatusRevoked
	grant.ReviewerID = &reviewerID
	grant.ReviewedAt = &at
	grant.UpdatedAt = at
	r.grants[id] = grant
	return &grant, nil
}

func (r *memGrants) Stats(context.Context) ([]domain.GrantStat, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	counts := map[domain.GrantStat]int{}
	for _, grant := range r.grants {
		counts[domain.GrantStat{Resource: grant.Resource, Status: grant.Status}]++
	}
	var out []domain.GrantStat
	for key, count := range counts {
		key.Count = count
		out = append(out, key)
	}
	return out, nil
}

func (r *memGrants) Purge(_ context.Context, before time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	purged := 0
	for id, grant := range r.grants {
		if grant.Status != domain.GrantStatusPending && grant.UpdatedAt.Before(before) {
			delete(r.grants, id)
			purged++
		}
	}
	return purged, nil
}

type memContacts struct {
	mu       sync.Mutex
	messages map[string]domain.ContactMessage
}

func newMemContacts() *memContacts {
	return &memContacts{messages: map[string]domain.ContactMessage{}}
}

func (r *memContacts) Create(_ context.Context, message domain.ContactMessage) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.messages[message.ID] = message
	return nil
}

func (r *memContacts) GetByID(_ context.Context, id string) (*domain.ContactMessage, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	message, ok := r.messages[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	return &message, nil
}

func (r *memContacts) List(_ context.Context, filter domain.ContactFilter) ([]domain.ContactMessage, int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.ContactMessage
	for _, message := range r.messages {
		if filter.Status != nil && message.Status != *filter.Status {
			continue
		}
		out = append(out, message)
	}
	return out, len(out), nil
}

func (r *memContacts) UpdateStatus(_ context.Context, id string, status domain.ContactStatus, at time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	message, ok := r.messages[id]
	if !ok {
		return repository.ErrNotFound
	}
	message.Status = status
	message.UpdatedAt = at
	r.messages[id] = message
	return nil
}

type recordingNotifier struct {
	mu            sync.Mutex
	calls         []string
	rawTokens     map[string]string
	resetErr      error
	verifyErr     error
	grantStatuses []domain.GrantStatus
}

func newRecordingNotifier() *recordingNotifier {
	return &recordingNotifier{rawTokens: map[string]string{}}
}

func (n *recordingNotifier) record(call string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, call)
}

func (n *recordingNotifier) count(call string) int {
	n.mu.Lock()
	defer n.mu.Unlock()
	total := 0
	for _, c := range n.calls {
		if c == call {
			total++
		}
	}
	return total
}

func (n *recordingNotifier) token(kind string) string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.rawTokens[kind]
}

func (n *recordingNotifier) SendVerification(_ context.Context, _ domain.Account, rawToken string) error {
	n.record("verification")
	n.mu.Lock()
	n.rawTokens["verification"] = rawToken
	n.mu.Unlock()
	return n.verifyErr
}

func (n *recordingNotifier) SendWelcome(context.Context, domain.Account) error {
	n.record("welcome")
	return nil
}

func (n *recordingNotifier) SendPasswordReset(_ context.Context, _ domain.Account, rawToken string) error {
	n.record("reset")
	n.mu.Lock()
	n.rawTokens["reset"] = rawToken
	n.mu.Unlock()
	return n.resetErr
}

func (n *recordingNotifier) SendPasswordChanged(context.Context, domain.Account) error {
	n.record("password_changed")
	return nil
}

func (n *recordingNotifier) SendGrantReviewed(_ context.Context, _ domain.Account, grant domain.AccessGrant) error {
	n.record("grant_reviewed")
	n.mu.Lock()
	n.grantStatuses = append(n.grantStatuses, grant.Status)
	n.mu.Unlock()
	return nil
}

func (n *recordingNotifier) SendContactReceived(context.Context, domain.ContactMessage) error {
	n.record("contact")
	return nil
}

type recordingEvents struct {
	mu     sync.Mutex
	names  []string
	err    error
	locked []domain.AccountLockedEvent
}

func (e *recordingEvents) add(name string) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.names = append(e.names, name)
	return e.err
}

func (e *recordingEvents) has(name string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, n := range e.names {
		if n == name {
			return true
		}
	}
	return false
}

func (e *recordingEvents) PublishAccountRegistered(context.Context, domain.AccountRegisteredEvent) error {
	return e.add("registered")
}

func (e *recordingEvents) PublishAccountSignedIn(context.Context, domain.AccountSignedInEvent) error {
	return e.add("signed_in")
}

func (e *recordingEvents) PublishAccountLocked(_ context.Context, event domain.AccountLockedEvent) error {
	e.mu.Lock()
	e.locked = append(e.locked, event)
	e.mu.Unlock()
	return e.add("locked")
}

func (e *recordingEvents) PublishEmailVerified(context.Context, domain.EmailVerifiedEvent) error {
	return e.add("email_verified")
}

func (e *recordingEvents) PublishPasswordChanged(context.Context, domain.PasswordChangedEvent) error {
	return e.add("password_changed")
}

func (e *recordingEvents) PublishPasswordResetRequested(context.Context, domain.PasswordResetRequestedEvent) error {
	return e.add("password_reset_requested")
}

func (e *recordingEvents) PublishAccountUpdated(context.Context, domain.AccountUpdatedEvent) error {
	return e.add("account_updated")
}

func (e *recordingEvents) PublishGrantChanged(context.Context, domain.GrantEvent) error {
	return e.add("grant_changed")
}

func (e *recordingEvents) PublishContactReceived(context.Context, domain.ContactReceivedEvent) error {
	return e.add("contact_received")
}

var (
	_ port.AccountRepository = (*memAccounts)(nil)
	_ port.TokenRepository   = (*memTokens)(nil)
	_ port.GrantRepository   = (*memGrants)(nil)
	_ port.ContactRepository = (*memContacts)(nil)
	_ port.Notifier          = (*recordingNotifier)(nil)
	_ port.EventPublisher    = (*recordingEvents)(nil)
	_ port.PasswordHasher    = plainHasher{}
)

func activeAccount(id, email string) domain.Account {
	return domain.Account{
		ID:           id,
		Email:        email,
		PasswordHash: "hashed:Abcd1234!",
		FirstName:    "Ada",
		LastName:     "Lovelace",
		Role:         domain.RoleUser,
		IsActive:     true,
		Status:       domain.AccountStatusActive,
		ReferralCode: "REF" + strings.ToUpper(id),
		RegisteredAt: testNow.Add(-24 * time.Hour),
		UpdatedAt:    testNow.Add(-24 * time.Hour),
	}
}

func adminAccount(id string) domain.Account {
	account := activeAccount(id, id+"@example.com")
	account.Role = domain.RoleAdmin
	return account
}

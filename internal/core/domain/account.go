package domain

import (
	"strings"
	"time"
)

// Role enumerates authorization levels for an account.
type Role string

const (
	RoleUser  Role = "user"
	RoleAdmin Role = "admin"
)

// Valid reports whether the role is one of the known values.
func (r Role) Valid() bool {
	return r == RoleUser || r == RoleAdmin
}

// AccountStatus enumerates possible account states.
type AccountStatus string

const (
	AccountStatusActive      AccountStatus = "active"
	AccountStatusSuspended   AccountStatus = "suspended"
	AccountStatusDeactivated AccountStatus = "deactivated"
)

// Valid reports whether the status is one of the known values.
func (s AccountStatus) Valid() bool {
	switch s {
	case AccountStatusActive, AccountStatusSuspended, AccountStatusDeactivated:
		return true
	}
	return false
}

// Account mirrors the persisted representation in the accounts table.
type Account struct {
	ID                  string
	Email               string
	Handle              *string
	PasswordHash        string
	FirstName           string
	LastName            string
	AvatarURL           *string
	Bio                 *string
	Role                Role
	IsActive            bool
	Status              AccountStatus
	EmailVerified       bool
	FailedLoginAttempts int
	LockUntil           *time.Time
	LastLoginAt         *time.Time
	LastLoginIP         *string
	RegisteredAt        time.Time
	RegistrationIP      *string
	ReferredBy          *string
	ReferralCode        string
	UpdatedAt           time.Time
}

// IsLocked reports whether a lock is in force at the supplied moment.
func (a Account) IsLocked(at time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(at)
}

// CanAuthenticate reports whether the account may hold a session.
func (a Account) CanAuthenticate() bool {
	return a.IsActive && a.Status == AccountStatusActive
}

// Sanitized returns a copy without the secret hash.
func (a Account) Sanitized() Account {
	a.PasswordHash = ""
	return a
}

// DeletedEmail is the scrubbed address assigned to a soft-deleted account.
func DeletedEmail(accountID string) string {
	return "deleted+" + accountID + "@deleted.invalid"
}

// NormalizeEmail lower-cases and trims an address for storage and lookup.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// AccountFilter narrows account listing queries.
type AccountFilter struct {
	Role   *Role
	Status *AccountStatus
	Search string
	Limit  int
	Offset int
}

// ProfileUpdate carries the mutable self-service fields. Nil means unchanged.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Handle    *string
	AvatarURL *string
	Bio       *string
}

// Empty reports whether the update carries no changes.
func (p ProfileUpdate) Empty() bool {
	return p.FirstName == nil && p.LastName == nil && p.Handle == nil && p.AvatarURL == nil && p.Bio == nil
}

// LoginFailure describes the counter state after a failed sign-in was recorded.
type LoginFailure struct {
	Attempts  int
	LockUntil *time.Time
}

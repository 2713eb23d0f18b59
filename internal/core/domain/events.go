package domain

import "time"

// AccountRegisteredEvent represents the payload for portal.account.registered messages.
type AccountRegisteredEvent struct {
	EventID      string
	AccountID    string
	Email        string
	Handle       *string
	ReferredBy   *string
	RegisteredAt time.Time
	IPAddress    *string
}

// AccountSignedInEvent represents the payload for portal.account.signed_in messages.
type AccountSignedInEvent struct {
	EventID    string
	AccountID  string
	RememberMe bool
	SignedInAt time.Time
	IPAddress  *string
}

// AccountLockedEvent represents the payload for portal.account.locked messages.
type AccountLockedEvent struct {
	EventID   string
	AccountID string
	Attempts  int
	LockUntil time.Time
	IPAddress *string
}

// EmailVerifiedEvent represents the payload for portal.account.email_verified messages.
type EmailVerifiedEvent struct {
	EventID    string
	AccountID  string
	VerifiedAt time.Time
}

// PasswordChangedEvent represents the payload for portal.account.password_changed messages.
type PasswordChangedEvent struct {
	EventID       string
	AccountID     string
	ChangedAt     time.Time
	Method        string
	TokensRevoked int
}

// PasswordResetRequestedEvent represents the payload for portal.account.password_reset_requested messages.
type PasswordResetRequestedEvent struct {
	EventID     string
	AccountID   string
	RequestedAt time.Time
	ExpiresAt   time.Time
	IPAddress   *string
}

// AccountUpdatedEvent represents administrative role or status changes.
type AccountUpdatedEvent struct {
	EventID   string
	AccountID string
	ActorID   string
	Field     string
	OldValue  string
	NewValue  string
	UpdatedAt time.Time
}

// GrantEvent represents the payload for portal.access.* messages.
type GrantEvent struct {
	EventID    string
	GrantID    string
	AccountID  string
	Resource   Resource
	Status     GrantStatus
	ActorID    *string
	OccurredAt time.Time
}

// ContactReceivedEvent represents the payload for portal.contact.received messages.
type ContactReceivedEvent struct {
	EventID    string
	ContactID  string
	Email      string
	Subject    string
	ReceivedAt time.Time
}

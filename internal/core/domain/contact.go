package domain

import "time"

// ContactStatus tracks the handling state of a contact-form submission.
type ContactStatus string

const (
	ContactStatusNew      ContactStatus = "new"
	ContactStatusRead     ContactStatus = "read"
	ContactStatusReplied  ContactStatus = "replied"
	ContactStatusArchived ContactStatus = "archived"
)

// Valid reports whether the status is one of the known values.
func (s ContactStatus) Valid() bool {
	switch s {
	case ContactStatusNew, ContactStatusRead, ContactStatusReplied, ContactStatusArchived:
		return true
	}
	return false
}

// ContactMessage is a submission from the public contact form.
type ContactMessage struct {
	ID        string
	Name      string
	Email     string
	Subject   string
	Message   string
	Status    ContactStatus
	AccountID *string
	IP        *string
	UserAgent *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// ContactFilter narrows contact listing queries.
type ContactFilter struct {
	Status *ContactStatus
	Limit  int
	Offset int
}

package usecase

import (
	"context"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	uuid "github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
	"github.com/arklim/portal-identity/internal/infra/security"
	"github.com/arklim/portal-identity/internal/repository"
)

const (
	maxContactSubjectLength = 200
)

// ContactService stores contact-form submissions and notifies administrators.
type ContactService struct {
	contacts port.ContactRepository
	notifier port.Notifier
	events   port.EventPublisher
	logger   *zap.Logger
	now      func() time.Time
}

// NewContactService constructs a ContactService.
func NewContactService(contacts port.ContactRepository, notifier port.Notifier, events port.EventPublisher, log *zap.Logger) *ContactService {
	if log == nil {
		log = zap.NewNop()
	}
	return &ContactService{
		contacts: contacts,
		notifier: notifier,
		events:   events,
		logger:   log,
		now:      time.Now,
	}
}

// WithClock allows tests to override the clock used by the service.
func (s *ContactService) WithClock(clock func() time.Time) {
	if clock != nil {
		s.now = clock
	}
}

// ContactInput carries the public contact form.
type ContactInput struct {
	Name      string
	Email     string
	Subject   string
	Message   string
	AccountID *string
	Client    ClientInfo
}

// ContactPage is one page of a contact listing.
type ContactPage struct {
	Messages []domain.ContactMessage
	Total    int
	Limit    int
	Offset   int
}

// Submit validates and stores a message. Notification emails are best effort.
func (s *ContactService) Submit(ctx context.Context, input ContactInput) (*domain.ContactMessage, error) {
	name := security.SanitizeFreeText(input.Name)
	email := domain.NormalizeEmail(input.Email)
	subject := security.SanitizeFreeText(input.Subject)
	body := security.SanitizeFreeText(input.Message)

	switch {
	case name == "":
		return nil, requiredField("name")
	case email == "":
		return nil, requiredField("email")
	case subject == "":
		return nil, requiredField("subject")
	case body == "":
		return nil, requiredField("message")
	}
	if utf8.RuneCountInString(name) > maxNameLength {
		return nil, tooLong("name", maxNameLength)
	}
	if utf8.RuneCountInString(subject) > maxContactSubjectLength {
		return nil, tooLong("subject", maxContactSubjectLength)
	}
	if err := security.ValidateEmailFormat(email); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	message := domain.ContactMessage{
		ID:        uuid.NewString(),
		Name:      name,
		Email:     email,
		Subject:   subject,
		Message:   body,
		Status:    domain.ContactStatusNew,
		AccountID: input.AccountID,
		IP:        input.Client.ipPtr(),
		UserAgent: input.Client.userAgentPtr(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.contacts.Create(ctx, message); err != nil {
		return nil, fmt.Errorf("store contact message: %w", err)
	}

	if err := s.notifier.SendContactReceived(ctx, message); err != nil {
		s.logger.Warn("contact emails not queued", zap.String("contact_id", message.ID), zap.Error(err))
	}
	publishEvent(s.logger, s.events, "contact received", func() error {
		return s.events.PublishContactReceived(ctx, domain.ContactReceivedEvent{
			ContactID:  message.ID,
			Email:      message.Email,
			Subject:    message.Subject,
			ReceivedAt: now,
		})
	})
	return &message, nil
}

// List returns contact messages to an administrator.
func (s *ContactService) List(ctx context.Context, actor domain.Account, filter domain.ContactFilter) (*ContactPage, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if filter.Status != nil && !filter.Status.Valid() {
		return nil, ErrInvalidStatus
	}

	messages, total, err := s.contacts.List(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("list contact messages: %w", err)
	}
	return &ContactPage{Messages: messages, Total: total, Limit: filter.Limit, Offset: filter.Offset}, nil
}

// UpdateStatus moves a message between handling states.
func (s *ContactService) UpdateStatus(ctx context.Context, actor domain.Account, id string, status domain.ContactStatus) (*domain.ContactMessage, error) {
	if actor.Role != domain.RoleAdmin {
		return nil, ErrForbidden
	}
	if !status.Valid() {
		return nil, ErrInvalidStatus
	}

	now := s.now().UTC()
	if err := s.contacts.UpdateStatus(ctx, id, status, now); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("update contact status: %w", err)
	}

	message, err := s.contacts.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, ErrContactNotFound
		}
		return nil, fmt.Errorf("lookup contact message: %w", err)
	}
	return message, nil
}

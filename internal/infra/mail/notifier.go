package mail

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/core/domain"
	"github.com/arklim/portal-identity/internal/core/port"
)

// NotifierConfig supplies the links and addresses used in account emails.
type NotifierConfig struct {
	SiteName     string
	PublicURL    string
	AdminAddress string
}

// Notifier renders account emails and hands them to the dispatcher.
type Notifier struct {
	cfg        NotifierConfig
	renderer   *Renderer
	dispatcher *Dispatcher
	logger     *zap.Logger
}

// NewNotifier constructs a Notifier.
func NewNotifier(cfg NotifierConfig, renderer *Renderer, dispatcher *Dispatcher, log *zap.Logger) *Notifier {
	if cfg.SiteName == "" {
		cfg.SiteName = "Portal"
	}
	cfg.PublicURL = strings.TrimRight(cfg.PublicURL, "/")
	if log == nil {
		log = zap.NewNop()
	}
	return &Notifier{cfg: cfg, renderer: renderer, dispatcher: dispatcher, logger: log}
}

// SendVerification queues the verification link, valid for 24 hours.
func (n *Notifier) SendVerification(_ context.Context, account domain.Account, rawToken string) error {
	data := n.baseData(account)
	data.Link = n.link("/verify-email", rawToken)
	data.ExpiresIn = "24 hours"
	return n.enqueue(TemplateVerification, account.Email, data)
}

// SendWelcome queues the welcome email sent after sign-up.
func (n *Notifier) SendWelcome(_ context.Context, account domain.Account) error {
	return n.enqueue(TemplateWelcome, account.Email, n.baseData(account))
}

// SendPasswordReset delivers the reset link synchronously with retry, so a delivery
// failure reaches the caller.
func (n *Notifier) SendPasswordReset(ctx context.Context, account domain.Account, rawToken string) error {
	data := n.baseData(account)
	data.Link = n.link("/reset-password", rawToken)
	data.ExpiresIn = "1 hour"

	msg, err := n.renderer.Render(TemplatePasswordReset, account.Email, data)
	if err != nil {
		return err
	}
	if _, err := n.dispatcher.Deliver(ctx, msg); err != nil {
		return fmt.Errorf("deliver password reset email: %w", err)
	}
	return nil
}

// SendPasswordChanged queues the confirmation sent after a reset or change.
func (n *Notifier) SendPasswordChanged(_ context.Context, account domain.Account) error {
	return n.enqueue(TemplatePasswordChanged, account.Email, n.baseData(account))
}

// SendGrantReviewed queues the approval or denial notice. Other statuses send nothing.
func (n *Notifier) SendGrantReviewed(_ context.Context, account domain.Account, grant domain.AccessGrant) error {
	var name string
	switch grant.Status {
	case domain.GrantStatusApproved:
		name = TemplateGrantApproved
	case domain.GrantStatusDenied:
		name = TemplateGrantDenied
	default:
		return nil
	}

	data := n.baseData(account)
	data.Resource = string(grant.Resource)
	if grant.ReviewerMessage != nil {
		data.Message = *grant.ReviewerMessage
	}
	return n.enqueue(name, account.Email, data)
}

// SendContactReceived queues the admin notification, when an admin address is set,
// and the acknowledgment to the sender.
func (n *Notifier) SendContactReceived(_ context.Context, message domain.ContactMessage) error {
	data := TemplateData{
		SiteName:  n.cfg.SiteName,
		PublicURL: n.cfg.PublicURL,
		Name:      message.Name,
		Email:     message.Email,
		Subject:   message.Subject,
		Body:      message.Message,
	}

	var firstErr error
	if n.cfg.AdminAddress != "" {
		firstErr = n.enqueue(TemplateContactAdmin, n.cfg.AdminAddress, data)
	}
	if err := n.enqueue(TemplateContactAck, message.Email, data); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

func (n *Notifier) enqueue(name, to string, data TemplateData) error {
	msg, err := n.renderer.Render(name, to, data)
	if err != nil {
		return err
	}
	if err := n.dispatcher.Enqueue(msg); err != nil {
		return fmt.Errorf("enqueue %s email: %w", name, err)
	}
	n.logger.Debug("email enqueued", zap.String("template", name), zap.String("message_id", msg.ID))
	return nil
}

func (n *Notifier) baseData(account domain.Account) TemplateData {
	name := strings.TrimSpace(account.FirstName)
	if name == "" {
		name = "there"
	}
	return TemplateData{
		SiteName:  n.cfg.SiteName,
		PublicURL: n.cfg.PublicURL,
		Name:      name,
		Email:     account.Email,
	}
}

func (n *Notifier) link(path, token string) string {
	return n.cfg.PublicURL + path + "?token=" + url.QueryEscape(token)
}

var _ port.Notifier = (*Notifier)(nil)

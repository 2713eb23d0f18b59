package mail

import (
	"context"

	"go.uber.org/zap"

	"github.com/arklim/portal-identity/internal/infra/logger"
)

// LogMailer records messages in the log instead of delivering them.
type LogMailer struct {
	logger *zap.Logger
}

// NewLogMailer constructs a LogMailer.
func NewLogMailer(log *zap.Logger) *LogMailer {
	if log == nil {
		log = zap.NewNop()
	}
	return &LogMailer{logger: log}
}

func (m *LogMailer) Send(_ context.Context, msg Message) (string, error) {
	if msg.To == "" {
		return "", ErrNoRecipient
	}
	if msg.ID == "" {
		msg.ID = NewMessageID()
	}

	m.logger.Info("email logged",
		zap.String("message_id", msg.ID),
		zap.String("template", msg.Template),
		zap.String("to", logger.MaskEmail(msg.To)),
		zap.String("subject", msg.Subject),
	)
	m.logger.Debug("email body", zap.String("message_id", msg.ID), zap.String("text", msg.Text))
	return msg.ID, nil
}

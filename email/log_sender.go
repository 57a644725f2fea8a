package email

import (
	"context"

	"github.com/google/uuid"

	auth "github.com/goliatone/go-auth-tokens"
)

// LogSender is a Sender that logs the email instead of sending it. It logs
// full message bodies, reset links included, so it is meant for development.
type LogSender struct {
	logger auth.Logger
}

// NewLogSender creates a new LogSender.
func NewLogSender(logger auth.Logger) *LogSender {
	return &LogSender{
		logger: logger,
	}
}

// Send logs the email to the logger.
func (s *LogSender) Send(_ context.Context, msg Message) (Receipt, error) {
	id := uuid.NewString()
	s.logger.Info("send email",
		"message_id", id,
		"from", msg.From,
		"to", msg.To,
		"subject", msg.Subject,
		"text", msg.Text,
	)
	return Receipt{MessageID: id, Accepted: []string{msg.To}}, nil
}

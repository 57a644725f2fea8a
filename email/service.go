package email

import (
	"context"
	"strings"
	"time"

	auth "github.com/goliatone/go-auth-tokens"
)

// Service sends the account emails. It fills in the default sender address
// and renders bodies from templates.
type Service struct {
	sender    Sender
	templates *Templates
	from      string
	resetURL  string
	appName   string
	logger    auth.Logger
}

var _ auth.Mailer = (*Service)(nil)

type ServiceOption func(*Service)

func WithTemplates(t *Templates) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.templates = t
		}
	}
}

func WithAppName(name string) ServiceOption {
	return func(s *Service) {
		s.appName = name
	}
}

func WithLogger(logger auth.Logger) ServiceOption {
	return func(s *Service) {
		s.logger = logger
	}
}

// NewService returns a Service sending through sender. from is the default
// sender address, resetURL the base of the link put in reset emails.
func NewService(sender Sender, from, resetURL string, opts ...ServiceOption) *Service {
	s := &Service{
		sender:    sender,
		templates: DefaultTemplates(),
		from:      from,
		resetURL:  strings.TrimRight(resetURL, "/"),
		appName:   "Account",
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Send delivers msg, using the default sender address when msg has none.
func (s *Service) Send(ctx context.Context, msg Message) (Receipt, error) {
	if msg.From == "" {
		msg.From = s.from
	}

	if _, err := ParseAddress(msg.From); err != nil {
		return Receipt{}, deliveryError(err, map[string]any{"from": msg.From})
	}
	if _, err := ParseAddress(msg.To); err != nil {
		return Receipt{}, deliveryError(err, map[string]any{"to": msg.To})
	}

	receipt, err := s.sender.Send(ctx, msg)
	if err != nil {
		if s.logger != nil {
			s.logger.Error("email send failed", "subject", msg.Subject, "error", err)
		}
		return Receipt{}, deliveryError(err, map[string]any{"subject": msg.Subject})
	}
	return receipt, nil
}

// SendPasswordReset mails the reset link for resetToken to user.
func (s *Service) SendPasswordReset(ctx context.Context, user *auth.User, resetToken string, expiresAt time.Time) error {
	link := s.resetURL + "/" + resetToken

	data := map[string]any{
		"app_name":   s.appName,
		"first_name": user.FirstName,
		"full_name":  user.FullName(),
		"reset_link": link,
		"expires_at": expiresAt.UTC().Format(time.RFC1123),
	}

	subject, text, html, err := s.templates.RenderPasswordReset(data)
	if err != nil {
		return deliveryError(err, map[string]any{"template": "password_reset"})
	}

	_, err = s.Send(ctx, Message{
		To:      user.Email,
		Subject: subject,
		Text:    text,
		HTML:    html,
	})
	return err
}

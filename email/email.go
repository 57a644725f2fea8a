package email

import (
	"context"
	"net/mail"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	auth "github.com/goliatone/go-auth-tokens"
)

// ErrInvalidEmail indicates an email address is not valid.
var ErrInvalidEmail = goerrors.New("invalid email address", goerrors.CategoryBadInput).
	WithTextCode("invalid_email").
	WithCode(goerrors.CodeBadRequest)

// Message is a single outgoing email.
type Message struct {
	From    string
	To      string
	Subject string
	Text    string
	HTML    string
}

// Receipt is what a Sender reports back for a delivered message.
type Receipt struct {
	MessageID string
	Accepted  []string
}

// Sender delivers messages.
type Sender interface {
	Send(ctx context.Context, msg Message) (Receipt, error)
}

// ParseAddress checks that raw is a bare email address, without display name
// or comments, and returns it trimmed.
func ParseAddress(raw string) (string, error) {
	trimmed := strings.TrimSpace(raw)

	addr, err := mail.ParseAddress(trimmed)
	if err != nil {
		return "", ErrInvalidEmail
	}

	if addr.Address != trimmed {
		return "", ErrInvalidEmail
	}

	return addr.Address, nil
}

// deliveryError wraps a transport failure into the auth delivery error kind.
func deliveryError(err error, metadata map[string]any) error {
	if auth.IsKind(err, auth.KindEmailDeliveryFailure) {
		return err
	}
	out := auth.ErrEmailDeliveryFailure.Clone()
	out.Source = err
	if len(metadata) > 0 {
		out = out.WithMetadata(metadata)
	}
	return out
}

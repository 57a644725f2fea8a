package email

import (
	"strings"

	"github.com/flosch/pongo2/v6"
)

const (
	defaultResetSubject = `{% autoescape off %}{{ app_name }}: reset your password{% endautoescape %}`

	defaultResetText = `{% autoescape off %}Hello {{ first_name }},

We received a request to reset the password of your {{ app_name }} account.
Use the link below to choose a new password:

{{ reset_link }}

The link expires at {{ expires_at }}. If you did not ask for a reset you can ignore this email.
{% endautoescape %}`

	defaultResetHTML = `<p>Hello {{ first_name }},</p>
<p>We received a request to reset the password of your {{ app_name }} account.</p>
<p><a href="{{ reset_link }}">Choose a new password</a></p>
<p>The link expires at {{ expires_at }}. If you did not ask for a reset you can ignore this email.</p>
`
)

// Templates holds the compiled templates of the password reset email.
type Templates struct {
	resetSubject *pongo2.Template
	resetText    *pongo2.Template
	resetHTML    *pongo2.Template
}

// DefaultTemplates returns the built in templates.
func DefaultTemplates() *Templates {
	t, err := NewTemplates(defaultResetSubject, defaultResetText, defaultResetHTML)
	if err != nil {
		panic("email: invalid default templates: " + err.Error())
	}
	return t
}

// NewTemplates compiles the reset email templates from pongo2 sources.
func NewTemplates(subject, text, html string) (*Templates, error) {
	s, err := pongo2.FromString(subject)
	if err != nil {
		return nil, err
	}
	tx, err := pongo2.FromString(text)
	if err != nil {
		return nil, err
	}
	h, err := pongo2.FromString(html)
	if err != nil {
		return nil, err
	}
	return &Templates{resetSubject: s, resetText: tx, resetHTML: h}, nil
}

// RenderPasswordReset renders subject, plain text and HTML bodies.
func (t *Templates) RenderPasswordReset(data map[string]any) (string, string, string, error) {
	ctx := pongo2.Context(data)

	subject, err := t.resetSubject.Execute(ctx)
	if err != nil {
		return "", "", "", err
	}
	text, err := t.resetText.Execute(ctx)
	if err != nil {
		return "", "", "", err
	}
	html, err := t.resetHTML.Execute(ctx)
	if err != nil {
		return "", "", "", err
	}
	return strings.TrimSpace(subject), text, html, nil
}

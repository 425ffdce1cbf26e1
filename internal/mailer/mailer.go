// Package mailer sends transactional email.
package mailer

import (
	"bytes"
	"context"
	"fmt"
	"html/template"

	"github.com/justestif/muse/internal/logger"
	"github.com/justestif/muse/internal/waitlist"
)

// Address is an email recipient or sender.
type Address struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
}

// Message is a single email. The sender is filled in by the Mailer.
type Message struct {
	To      Address
	Subject string
	Text    string
	HTML    string
}

// Mailer delivers a message.
type Mailer interface {
	Send(ctx context.Context, msg Message) error
}

var welcomeHTML = template.Must(template.New("welcome").Parse(
	`<p>Hi {{.Name}},</p>
<p>You're on the Muse waitlist. We'll email you as soon as your spot opens up.</p>
<p>Until then, keep saving the looks you love.</p>`))

// WelcomeMessage builds the email sent after a waitlist registration.
func WelcomeMessage(e waitlist.Entry) (Message, error) {
	var html bytes.Buffer
	if err := welcomeHTML.Execute(&html, e); err != nil {
		return Message{}, fmt.Errorf("rendering welcome email: %w", err)
	}
	return Message{
		To:      Address{Email: e.Email, Name: e.Name},
		Subject: "You're on the Muse waitlist",
		Text: fmt.Sprintf("Hi %s,\n\nYou're on the Muse waitlist. We'll email you as soon as your spot opens up.\n",
			e.Name),
		HTML: html.String(),
	}, nil
}

// LogMailer logs messages instead of sending them.
type LogMailer struct {
	log *logger.Logger
}

// NewLogMailer creates a mailer that only logs.
func NewLogMailer(log *logger.Logger) *LogMailer {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogMailer{log: log}
}

// Send implements Mailer.
func (m *LogMailer) Send(_ context.Context, msg Message) error {
	m.log.Info("email not sent, mail disabled", "email", msg.To.Email, "subject", msg.Subject)
	return nil
}

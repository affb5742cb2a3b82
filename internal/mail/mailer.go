package mail

import (
	"errors"
	"fmt"
	"math/rand"

	"github.com/openboard/server/internal/config"
	"gopkg.in/gomail.v2"
)

// ErrNoRelay is returned when no usable SMTP relay is configured.
var ErrNoRelay = errors.New("smtp not configured")

// Message is one outbound email.
type Message struct {
	To       string
	Subject  string
	TextBody string
	HTMLBody string
}

// Sender delivers a message. A failed send is terminal for the request; there
// is no retry or failover across relays.
type Sender interface {
	Send(msg Message) error
}

// SMTPSender sends through one of several configured relays, chosen uniformly
// at random per send.
type SMTPSender struct {
	relays []config.SMTPRelay
	pick   func(n int) int
}

// NewSMTPSender creates a sender over the configured relays.
func NewSMTPSender(relays []config.SMTPRelay) *SMTPSender {
	return &SMTPSender{
		relays: relays,
		pick:   rand.Intn,
	}
}

// Send delivers the message via a randomly selected relay.
func (s *SMTPSender) Send(msg Message) error {
	if len(s.relays) == 0 {
		return ErrNoRelay
	}
	relay := s.relays[s.pick(len(s.relays))]
	if relay.Host == "" || relay.User == "" || relay.Pass == "" {
		return ErrNoRelay
	}

	m := gomail.NewMessage()
	m.SetHeader("From", relay.User)
	m.SetHeader("To", msg.To)
	m.SetHeader("Subject", msg.Subject)
	m.SetBody("text/plain", msg.TextBody)
	if msg.HTMLBody != "" {
		m.AddAlternative("text/html", msg.HTMLBody)
	}

	d := gomail.NewDialer(relay.Host, relay.Port, relay.User, relay.Pass)
	d.SSL = relay.Secure

	if err := d.DialAndSend(m); err != nil {
		return fmt.Errorf("smtp send via %s:%d: %w", relay.Host, relay.Port, err)
	}
	return nil
}

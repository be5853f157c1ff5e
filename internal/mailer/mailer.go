// Package mailer delivers transactional email. SMTP is used in production,
// the console backend in development, and Outbox in tests.
package mailer

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/jobboard/backend/internal/config"
	"github.com/jobboard/backend/pkg/logger"
	"github.com/wneessen/go-mail"
)

type Message struct {
	To      string
	Subject string
	Text    string
	HTML    string
}

type Sender interface {
	Send(ctx context.Context, msg Message) error
}

// New builds the sender selected by MAIL_BACKEND.
func New(cfg config.MailConfig) (Sender, error) {
	switch cfg.Backend {
	case "smtp":
		return NewSMTPSender(cfg)
	case "console", "":
		return ConsoleSender{From: cfg.From}, nil
	default:
		return nil, fmt.Errorf("unknown mail backend %q", cfg.Backend)
	}
}

type SMTPSender struct {
	client *mail.Client
	from   string
}

func NewSMTPSender(cfg config.MailConfig) (*SMTPSender, error) {
	opts := []mail.Option{
		mail.WithPort(cfg.Port),
		mail.WithTimeout(cfg.Timeout),
	}
	if cfg.TLS {
		opts = append(opts, mail.WithTLSPolicy(mail.TLSMandatory))
	} else {
		opts = append(opts, mail.WithTLSPolicy(mail.NoTLS))
	}
	if cfg.Username != "" {
		opts = append(opts,
			mail.WithSMTPAuth(mail.SMTPAuthPlain),
			mail.WithUsername(cfg.Username),
			mail.WithPassword(cfg.Password),
		)
	}

	client, err := mail.NewClient(cfg.Host, opts...)
	if err != nil {
		return nil, fmt.Errorf("create smtp client: %w", err)
	}
	return &SMTPSender{client: client, from: cfg.From}, nil
}

func (s *SMTPSender) Send(ctx context.Context, msg Message) error {
	m := mail.NewMsg()
	if err := m.From(s.from); err != nil {
		return fmt.Errorf("set sender: %w", err)
	}
	if err := m.To(msg.To); err != nil {
		return fmt.Errorf("set recipient: %w", err)
	}
	m.Subject(msg.Subject)
	m.SetBodyString(mail.TypeTextPlain, msg.Text)
	if msg.HTML != "" {
		m.AddAlternativeString(mail.TypeTextHTML, msg.HTML)
	}

	if err := s.client.DialAndSendWithContext(ctx, m); err != nil {
		return fmt.Errorf("send mail: %w", err)
	}
	return nil
}

// ConsoleSender writes the plain-text body to the log instead of sending it.
type ConsoleSender struct {
	From string
}

func (c ConsoleSender) Send(_ context.Context, msg Message) error {
	logger.Info("mail_console_delivery", map[string]interface{}{
		"from":    c.From,
		"to":      msg.To,
		"subject": msg.Subject,
		"body":    msg.Text,
	})
	return nil
}

var ErrOutboxClosed = errors.New("outbox rejected message")

// Outbox records messages in memory. Setting Fail makes Send return it.
type Outbox struct {
	mu       sync.Mutex
	messages []Message
	Fail     error
}

func (o *Outbox) Send(_ context.Context, msg Message) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.Fail != nil {
		return o.Fail
	}
	o.messages = append(o.messages, msg)
	return nil
}

func (o *Outbox) SetFail(err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.Fail = err
}

func (o *Outbox) Messages() []Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	out := make([]Message, len(o.messages))
	copy(out, o.messages)
	return out
}

func (o *Outbox) Last() (Message, bool) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.messages) == 0 {
		return Message{}, false
	}
	return o.messages[len(o.messages)-1], true
}

func (o *Outbox) Reset() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = nil
	o.Fail = nil
}

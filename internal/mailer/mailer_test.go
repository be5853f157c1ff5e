package mailer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/jobboard/backend/internal/config"
)

func TestNew(t *testing.T) {
	t.Run("console backend", func(t *testing.T) {
		sender, err := New(config.MailConfig{Backend: "console", From: "no-reply@jobboard.local"})
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		if _, ok := sender.(ConsoleSender); !ok {
			t.Fatalf("expected ConsoleSender, got %T", sender)
		}
		if err := sender.Send(context.Background(), Message{To: "a@b.co", Subject: "s", Text: "t"}); err != nil {
			t.Fatalf("console send returned error: %v", err)
		}
	})

	t.Run("smtp backend", func(t *testing.T) {
		sender, err := New(config.MailConfig{
			Backend:  "smtp",
			Host:     "smtp.example.com",
			Port:     587,
			Username: "user",
			Password: "pass",
			From:     "no-reply@jobboard.local",
			TLS:      true,
			Timeout:  5 * time.Second,
		})
		if err != nil {
			t.Fatalf("New returned error: %v", err)
		}
		if _, ok := sender.(*SMTPSender); !ok {
			t.Fatalf("expected *SMTPSender, got %T", sender)
		}
	})

	t.Run("unknown backend", func(t *testing.T) {
		if _, err := New(config.MailConfig{Backend: "fax"}); err == nil {
			t.Fatal("expected error for unknown backend")
		}
	})
}

func TestSMTPSender_InvalidAddress(t *testing.T) {
	sender, err := NewSMTPSender(config.MailConfig{Host: "smtp.example.com", Port: 25, From: "no-reply@jobboard.local", Timeout: time.Second})
	if err != nil {
		t.Fatalf("NewSMTPSender returned error: %v", err)
	}
	err = sender.Send(context.Background(), Message{To: "not an address", Subject: "s", Text: "t"})
	if err == nil || !strings.Contains(err.Error(), "set recipient") {
		t.Fatalf("expected recipient error, got %v", err)
	}
}

func TestOutbox(t *testing.T) {
	outbox := &Outbox{}
	ctx := context.Background()

	if _, ok := outbox.Last(); ok {
		t.Fatal("expected empty outbox")
	}

	if err := outbox.Send(ctx, Message{To: "first@example.com"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}
	if err := outbox.Send(ctx, Message{To: "second@example.com"}); err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	last, ok := outbox.Last()
	if !ok || last.To != "second@example.com" {
		t.Fatalf("unexpected last message %+v", last)
	}
	if len(outbox.Messages()) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(outbox.Messages()))
	}

	outbox.SetFail(ErrOutboxClosed)
	if err := outbox.Send(ctx, Message{To: "third@example.com"}); !errors.Is(err, ErrOutboxClosed) {
		t.Fatalf("expected ErrOutboxClosed, got %v", err)
	}
	if len(outbox.Messages()) != 2 {
		t.Fatal("failed send must not be recorded")
	}

	outbox.Reset()
	if len(outbox.Messages()) != 0 || outbox.Fail != nil {
		t.Fatal("expected Reset to clear messages and failure")
	}
}

func TestVerificationEmail(t *testing.T) {
	link := "https://jobs.example.com/api/v1/authentication/verify-email/complete/abc.def"
	msg, err := VerificationEmail("user@example.com", link, 15)
	if err != nil {
		t.Fatalf("VerificationEmail returned error: %v", err)
	}
	if msg.To != "user@example.com" {
		t.Errorf("expected recipient user@example.com, got %q", msg.To)
	}
	if msg.Subject == "" {
		t.Error("expected subject")
	}
	if !strings.Contains(msg.Text, link) {
		t.Errorf("expected text body to contain link, got %q", msg.Text)
	}
	if !strings.Contains(msg.HTML, `href="`+link+`"`) {
		t.Errorf("expected html body to contain link, got %q", msg.HTML)
	}
	if !strings.Contains(msg.Text, "15 minutes") {
		t.Errorf("expected expiry note in body, got %q", msg.Text)
	}
}

package notify

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestLogSender(t *testing.T) {
	var buf bytes.Buffer
	s := NewLogSender(slog.New(slog.NewTextHandler(&buf, nil)))
	if err := s.Send(context.Background(), Message{Subject: "2 bills due", Text: "Gas 42.50"}); err != nil {
		t.Fatalf("send: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "2 bills due") || !strings.Contains(out, "Gas 42.50") {
		t.Fatalf("expected subject and text in log, got %q", out)
	}
}

func TestMailgunSenderRequiresRecipients(t *testing.T) {
	s := NewMailgunSender("mg.example.com", "key-test", "billcal@example.com", nil)
	err := s.Send(context.Background(), Message{Subject: "x", Text: "y"})
	if !errors.Is(err, ErrNoRecipients) {
		t.Fatalf("expected ErrNoRecipients, got %v", err)
	}
}

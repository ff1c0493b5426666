package notify

import (
	"context"
	"log/slog"
	"sync"

	"sessiond/cmd/identity"
)

// NoopSender drops every message.
type NoopSender struct{}

func (NoopSender) Send(context.Context, Message) error { return nil }

// LogSender records that a message would have been sent. Bodies are never
// logged because they carry single-use links.
type LogSender struct {
	Log *slog.Logger
}

func (s LogSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	log := s.Log
	if log == nil {
		log = slog.Default()
	}
	log.Info("notify.email.logged", "to", identity.MaskEmail(msg.To), "subject", msg.Subject)
	return nil
}

// RecordingSender keeps every message in memory. Useful in tests and local runs.
type RecordingSender struct {
	mu   sync.Mutex
	sent []Message
	Err  error
}

func (s *RecordingSender) Send(ctx context.Context, msg Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	s.sent = append(s.sent, msg)
	return nil
}

// Sent returns a copy of the recorded messages.
func (s *RecordingSender) Sent() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Message(nil), s.sent...)
}

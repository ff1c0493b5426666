// Package audit records security-relevant authentication events.
//
// Recording is best effort: a Recorder never returns an error to the caller.
// Failures are logged and the operation that produced the event proceeds.
package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	LoginSucceeded         = "auth.login.success"
	LoginFailed            = "auth.login.failed"
	LoginRateLimited       = "auth.login.rate_limited"
	LoginLocked            = "auth.login.locked"
	RefreshSucceeded       = "auth.refresh.success"
	RefreshReuseDetected   = "auth.refresh.reuse_detected"
	Logout                 = "auth.logout"
	PasswordChanged        = "auth.password.changed"
	PasswordResetRequested = "auth.password_reset.requested"
	PasswordResetConfirmed = "auth.password_reset.confirmed"
)

type Event struct {
	Action    string
	AccountID string
	FamilyID  string
	IP        string
	UserAgent string
	Meta      map[string]any
	At        time.Time
}

type Recorder interface {
	Record(ctx context.Context, ev Event)
}

// Discard drops every event.
type Discard struct{}

func (Discard) Record(context.Context, Event) {}

// LogRecorder writes events to a structured logger.
type LogRecorder struct {
	Log *slog.Logger
}

func (r LogRecorder) Record(_ context.Context, ev Event) {
	log := r.Log
	if log == nil {
		log = slog.Default()
	}
	attrs := []any{"action", ev.Action}
	if ev.AccountID != "" {
		attrs = append(attrs, "account_id", ev.AccountID)
	}
	if ev.FamilyID != "" {
		attrs = append(attrs, "family_id", ev.FamilyID)
	}
	if ev.IP != "" {
		attrs = append(attrs, "ip", ev.IP)
	}
	for k, v := range ev.Meta {
		attrs = append(attrs, "meta."+k, v)
	}
	log.Info("audit.event", attrs...)
}

// MemoryRecorder keeps events in memory.
type MemoryRecorder struct {
	mu     sync.Mutex
	events []Event
}

func (r *MemoryRecorder) Record(_ context.Context, ev Event) {
	r.mu.Lock()
	r.events = append(r.events, ev)
	r.mu.Unlock()
}

// Events returns a snapshot of recorded events.
func (r *MemoryRecorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

// Actions returns the action of every recorded event, in order.
func (r *MemoryRecorder) Actions() []string {
	evs := r.Events()
	out := make([]string, len(evs))
	for i, ev := range evs {
		out[i] = ev.Action
	}
	return out
}

// Multi fans an event out to every recorder.
type Multi []Recorder

func (m Multi) Record(ctx context.Context, ev Event) {
	for _, r := range m {
		if r != nil {
			r.Record(ctx, ev)
		}
	}
}

func prepare(ev Event) (Event, *string, bool) {
	ev.Action = strings.TrimSpace(ev.Action)
	if ev.Action == "" {
		return ev, nil, false
	}
	if ev.At.IsZero() {
		ev.At = time.Now().UTC()
	}
	var meta *string
	if len(ev.Meta) > 0 {
		if b, err := json.Marshal(ev.Meta); err == nil {
			s := string(b)
			meta = &s
		}
	}
	return ev, meta, true
}

func trimOrNil(s string) any {
	v := strings.TrimSpace(s)
	if v == "" {
		return nil
	}
	return v
}

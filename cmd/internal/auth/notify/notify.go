package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"sessiond/cmd/identity"
)

// Mode selects how a delivery failure is reported.
type Mode int

const (
	// BestEffort logs failures and returns nil.
	BestEffort Mode = iota
	// Propagate returns failures to the caller.
	Propagate
)

func (m Mode) String() string {
	switch m {
	case BestEffort:
		return "best_effort"
	case Propagate:
		return "propagate"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ErrDelivery wraps every sender failure returned in Propagate mode.
var ErrDelivery = errors.New("email delivery failed")

// Message is one rendered email.
type Message struct {
	To      string
	Subject string
	HTML    string
	Text    string
}

// EmailSender transmits a rendered message.
type EmailSender interface {
	Send(ctx context.Context, msg Message) error
}

// Config holds rendering and delivery settings.
type Config struct {
	FrontendURL     string
	SendTimeout     time.Duration
	ResetTokenTTL   time.Duration
	LockoutDuration time.Duration
}

// DefaultConfig mirrors the reset and lockout defaults.
func DefaultConfig() Config {
	return Config{
		FrontendURL:     "http://localhost:3000",
		SendTimeout:     10 * time.Second,
		ResetTokenTTL:   time.Hour,
		LockoutDuration: 15 * time.Minute,
	}
}

// Notifier renders templates and hands messages to an EmailSender.
type Notifier struct {
	cfg    Config
	sender EmailSender
	log    *slog.Logger
}

// New builds a Notifier. A nil sender discards every message.
func New(cfg Config, sender EmailSender, log *slog.Logger) *Notifier {
	if sender == nil {
		sender = NoopSender{}
	}
	if log == nil {
		log = slog.Default()
	}
	if cfg.SendTimeout <= 0 {
		cfg.SendTimeout = DefaultConfig().SendTimeout
	}
	cfg.FrontendURL = strings.TrimRight(strings.TrimSpace(cfg.FrontendURL), "/")
	return &Notifier{cfg: cfg, sender: sender, log: log}
}

// ResetURL builds the link the reset email points at.
func (n *Notifier) ResetURL(rawToken string) string {
	return n.cfg.FrontendURL + "/reset-password?token=" + url.QueryEscape(rawToken)
}

// PasswordReset sends the reset link for rawToken to to.
func (n *Notifier) PasswordReset(ctx context.Context, to, rawToken string, mode Mode) error {
	msg, err := render(tmplPasswordReset, to, map[string]any{
		"ResetURL":    n.ResetURL(rawToken),
		"ExpiryHours": hours(n.cfg.ResetTokenTTL),
		"FrontendURL": n.cfg.FrontendURL,
	})
	if err != nil {
		return n.fail(mode, "notify.password_reset.render_failed", to, err)
	}
	return n.deliver(ctx, "notify.password_reset", msg, mode)
}

// AccountLocked tells to that the account was locked.
func (n *Notifier) AccountLocked(ctx context.Context, to string, mode Mode) error {
	msg, err := render(tmplAccountLocked, to, map[string]any{
		"LockoutMinutes": int(n.cfg.LockoutDuration.Minutes()),
		"FrontendURL":    n.cfg.FrontendURL,
	})
	if err != nil {
		return n.fail(mode, "notify.account_locked.render_failed", to, err)
	}
	return n.deliver(ctx, "notify.account_locked", msg, mode)
}

func (n *Notifier) deliver(ctx context.Context, event string, msg Message, mode Mode) error {
	sendCtx, cancel := context.WithTimeout(ctx, n.cfg.SendTimeout)
	defer cancel()

	if err := n.sender.Send(sendCtx, msg); err != nil {
		return n.fail(mode, event+".failed", msg.To, err)
	}
	n.log.Info(event+".sent", "to", identity.MaskEmail(msg.To), "mode", mode.String())
	return nil
}

func (n *Notifier) fail(mode Mode, event, to string, err error) error {
	if mode == BestEffort {
		n.log.Warn(event, "to", identity.MaskEmail(to), "mode", mode.String(), "err", err)
		return nil
	}
	n.log.Error(event, "to", identity.MaskEmail(to), "mode", mode.String(), "err", err)
	return fmt.Errorf("%w: %w", ErrDelivery, err)
}

func hours(d time.Duration) int {
	h := int(d / time.Hour)
	if h < 1 {
		return 1
	}
	return h
}

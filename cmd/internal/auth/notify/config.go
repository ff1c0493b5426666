package notify

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

var ErrConfig = errors.New("notify config")

// SenderKind selects the EmailSender built by BuildSender.
type SenderKind string

const (
	SenderLog  SenderKind = "log"
	SenderSMTP SenderKind = "smtp"
	SenderNone SenderKind = "none"
)

// Settings is the env-loaded configuration for notifications.
type Settings struct {
	Notifier Config
	Sender   SenderKind
	SMTP     SMTPConfig
}

// LoadConfigFromEnv reads:
//   - ARC_EMAIL_SENDER (log|smtp|none, default log)
//   - ARC_FRONTEND_URL, ARC_EMAIL_FROM, ARC_EMAIL_TIMEOUT
//   - ARC_SMTP_HOST, ARC_SMTP_PORT, ARC_SMTP_USERNAME, ARC_SMTP_PASSWORD, ARC_SMTP_REQUIRE_TLS
func LoadConfigFromEnv() (Settings, error) {
	s := Settings{
		Notifier: DefaultConfig(),
		Sender:   SenderLog,
		SMTP:     SMTPConfig{Port: 587, From: "no-reply@localhost", RequireTLS: true},
	}

	if v := strings.TrimSpace(os.Getenv("ARC_EMAIL_SENDER")); v != "" {
		switch k := SenderKind(strings.ToLower(v)); k {
		case SenderLog, SenderSMTP, SenderNone:
			s.Sender = k
		default:
			return Settings{}, fmt.Errorf("%w: ARC_EMAIL_SENDER must be log, smtp or none", ErrConfig)
		}
	}
	if v := strings.TrimSpace(os.Getenv("ARC_FRONTEND_URL")); v != "" {
		s.Notifier.FrontendURL = v
	}
	if v := strings.TrimSpace(os.Getenv("ARC_EMAIL_FROM")); v != "" {
		s.SMTP.From = v
	}
	if v := strings.TrimSpace(os.Getenv("ARC_EMAIL_TIMEOUT")); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil || d <= 0 {
			return Settings{}, fmt.Errorf("%w: ARC_EMAIL_TIMEOUT invalid duration", ErrConfig)
		}
		s.Notifier.SendTimeout = d
	}

	s.SMTP.Host = strings.TrimSpace(os.Getenv("ARC_SMTP_HOST"))
	s.SMTP.Username = os.Getenv("ARC_SMTP_USERNAME")
	s.SMTP.Password = os.Getenv("ARC_SMTP_PASSWORD")
	if v := strings.TrimSpace(os.Getenv("ARC_SMTP_PORT")); v != "" {
		p, err := strconv.Atoi(v)
		if err != nil || p <= 0 || p > 65535 {
			return Settings{}, fmt.Errorf("%w: ARC_SMTP_PORT invalid", ErrConfig)
		}
		s.SMTP.Port = p
	}
	if v := strings.TrimSpace(os.Getenv("ARC_SMTP_REQUIRE_TLS")); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return Settings{}, fmt.Errorf("%w: ARC_SMTP_REQUIRE_TLS invalid boolean", ErrConfig)
		}
		s.SMTP.RequireTLS = b
	}
	if s.Sender == SenderSMTP && s.SMTP.Host == "" {
		return Settings{}, fmt.Errorf("%w: ARC_SMTP_HOST is required for the smtp sender", ErrConfig)
	}
	return s, nil
}

// BuildSender returns the EmailSender selected by s.
func (s Settings) BuildSender(log *slog.Logger) (EmailSender, error) {
	switch s.Sender {
	case SenderSMTP:
		return NewSMTPSender(s.SMTP)
	case SenderNone:
		return NoopSender{}, nil
	default:
		return LogSender{Log: log}, nil
	}
}

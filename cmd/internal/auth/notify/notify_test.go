package notify

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestNotifier(sender EmailSender) (*Notifier, *bytes.Buffer) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	cfg := DefaultConfig()
	cfg.FrontendURL = "https://lab.example.com/"
	return New(cfg, sender, log), &buf
}

func TestPasswordReset_RendersLink(t *testing.T) {
	rec := &RecordingSender{}
	n, logs := newTestNotifier(rec)

	require.NoError(t, n.PasswordReset(context.Background(), "alice@example.com", "tok+/=", Propagate))

	sent := rec.Sent()
	require.Len(t, sent, 1)
	msg := sent[0]
	assert.Equal(t, "alice@example.com", msg.To)
	assert.Equal(t, "Reset your password", msg.Subject)
	assert.Contains(t, msg.Text, "https://lab.example.com/reset-password?token=tok%2B%2F%3D")
	assert.Contains(t, msg.Text, "expires in 1 hour and")
	assert.Contains(t, msg.HTML, "reset-password?token=tok%2B%2F%3D")

	assert.NotContains(t, logs.String(), "tok+/=")
	assert.NotContains(t, logs.String(), "alice@example.com")
	assert.Contains(t, logs.String(), "al***@example.com")
}

func TestAccountLocked_RendersMinutes(t *testing.T) {
	rec := &RecordingSender{}
	n, _ := newTestNotifier(rec)

	require.NoError(t, n.AccountLocked(context.Background(), "bob@example.com", BestEffort))

	sent := rec.Sent()
	require.Len(t, sent, 1)
	assert.Equal(t, "Your account was locked for security", sent[0].Subject)
	assert.Contains(t, sent[0].Text, "15 minutes")
}

func TestDeliveryModes(t *testing.T) {
	boom := errors.New("relay down")

	t.Run("best effort swallows", func(t *testing.T) {
		n, logs := newTestNotifier(&RecordingSender{Err: boom})
		assert.NoError(t, n.AccountLocked(context.Background(), "bob@example.com", BestEffort))
		assert.Contains(t, logs.String(), "notify.account_locked.failed")
	})

	t.Run("propagate returns", func(t *testing.T) {
		n, _ := newTestNotifier(&RecordingSender{Err: boom})
		err := n.PasswordReset(context.Background(), "bob@example.com", "t", Propagate)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrDelivery)
		assert.ErrorIs(t, err, boom)
	})
}

type slowSender struct{}

func (slowSender) Send(ctx context.Context, _ Message) error {
	<-ctx.Done()
	return ctx.Err()
}

func TestSendTimeout(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SendTimeout = 20 * time.Millisecond
	n := New(cfg, slowSender{}, slog.New(slog.DiscardHandler))

	start := time.Now()
	err := n.PasswordReset(context.Background(), "c@example.com", "t", Propagate)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestModeString(t *testing.T) {
	assert.Equal(t, "best_effort", BestEffort.String())
	assert.Equal(t, "propagate", Propagate.String())
	assert.Equal(t, "mode(7)", Mode(7).String())
}

// fakeSMTP accepts one session and records the DATA payload.
func fakeSMTP(t *testing.T) (host string, port int, data <-chan string) {
	t.Helper()
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { _ = ln.Close() })

	out := make(chan string, 1)
	var once sync.Once
	go func() {
		conn, err := ln.Accept()
		if err != nil {
			return
		}
		defer conn.Close()
		r := bufio.NewReader(conn)
		reply := func(s string) { _, _ = conn.Write([]byte(s + "\r\n")) }

		reply("220 fake ESMTP")
		var body strings.Builder
		inData := false
		for {
			line, err := r.ReadString('\n')
			if err != nil {
				return
			}
			if inData {
				if line == ".\r\n" {
					inData = false
					once.Do(func() { out <- body.String() })
					reply("250 queued")
					continue
				}
				body.WriteString(line)
				continue
			}
			cmd := strings.ToUpper(strings.TrimSpace(line))
			switch {
			case strings.HasPrefix(cmd, "EHLO"), strings.HasPrefix(cmd, "HELO"):
				reply("250-fake")
				reply("250 8BITMIME")
			case strings.HasPrefix(cmd, "MAIL FROM"), strings.HasPrefix(cmd, "RCPT TO"):
				reply("250 ok")
			case cmd == "DATA":
				inData = true
				reply("354 go ahead")
			case cmd == "QUIT":
				reply("221 bye")
				return
			default:
				reply("502 unsupported")
			}
		}
	}()

	addr := ln.Addr().(*net.TCPAddr)
	return "127.0.0.1", addr.Port, out
}

func TestSMTPSender_Delivers(t *testing.T) {
	host, port, data := fakeSMTP(t)
	s, err := NewSMTPSender(SMTPConfig{Host: host, Port: port, From: "Lab <no-reply@lab.example.com>"})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	err = s.Send(ctx, Message{To: "alice@example.com", Subject: "Hello", Text: "plain body", HTML: "<p>html body</p>"})
	require.NoError(t, err)

	select {
	case got := <-data:
		assert.Contains(t, got, "To: alice@example.com")
		assert.Contains(t, got, "multipart/alternative")
		assert.Contains(t, got, "plain body")
		assert.Contains(t, got, "html body")
	case <-ctx.Done():
		t.Fatal("no DATA received")
	}
}

func TestSMTPSender_RequireTLS(t *testing.T) {
	host, port, _ := fakeSMTP(t)
	s, err := NewSMTPSender(SMTPConfig{Host: host, Port: port, From: "no-reply@lab.example.com", RequireTLS: true})
	require.NoError(t, err)

	err = s.Send(context.Background(), Message{To: "alice@example.com", Subject: "x"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "STARTTLS")
}

func TestNewSMTPSender_Validation(t *testing.T) {
	_, err := NewSMTPSender(SMTPConfig{Port: 25, From: "a@b.c"})
	assert.Error(t, err)
	_, err = NewSMTPSender(SMTPConfig{Host: "h", Port: 0, From: "a@b.c"})
	assert.Error(t, err)
	_, err = NewSMTPSender(SMTPConfig{Host: "h", Port: 25, From: "nobody"})
	assert.Error(t, err)
}

func TestLoadConfigFromEnv(t *testing.T) {
	t.Setenv("ARC_EMAIL_SENDER", "smtp")
	t.Setenv("ARC_SMTP_HOST", "smtp.example.com")
	t.Setenv("ARC_SMTP_PORT", "2525")
	t.Setenv("ARC_EMAIL_FROM", "lab@example.com")
	t.Setenv("ARC_FRONTEND_URL", "https://lab.example.com")
	t.Setenv("ARC_EMAIL_TIMEOUT", "3s")

	s, err := LoadConfigFromEnv()
	require.NoError(t, err)
	assert.Equal(t, SenderSMTP, s.Sender)
	assert.Equal(t, 2525, s.SMTP.Port)
	assert.Equal(t, "lab@example.com", s.SMTP.From)
	assert.Equal(t, 3*time.Second, s.Notifier.SendTimeout)

	sender, err := s.BuildSender(nil)
	require.NoError(t, err)
	assert.IsType(t, &SMTPSender{}, sender)
}

func TestLoadConfigFromEnv_Errors(t *testing.T) {
	cases := map[string]map[string]string{
		"unknown sender": {"ARC_EMAIL_SENDER": "pigeon"},
		"smtp no host":   {"ARC_EMAIL_SENDER": "smtp"},
		"bad port":       {"ARC_SMTP_PORT": "99999"},
		"bad timeout":    {"ARC_EMAIL_TIMEOUT": "-1s"},
	}
	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			for k, v := range env {
				t.Setenv(k, v)
			}
			_, err := LoadConfigFromEnv()
			assert.ErrorIs(t, err, ErrConfig)
		})
	}
}

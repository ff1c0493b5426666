package app

import (
	"bytes"
	"errors"
	"log/slog"
	"strings"
	"testing"
)

func TestPrettyHandler_PlainLine(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}, false))

	log.Info("http.request", "method", "post", "path", "/api/v1/auth/login", "status", 423, "duration_ms", int64(12), "err", errors.New("account locked"))
	log.Debug("hidden")

	out := buf.String()
	if strings.Count(out, "\n") != 1 {
		t.Fatalf("expected one line, got %q", out)
	}
	for _, want := range []string{
		"INFO ",
		"http.request",
		"method=POST",
		"path=/api/v1/auth/login",
		"status=423",
		"duration=12ms",
		`err="account locked"`,
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
	if strings.Contains(out, "\x1b[") {
		t.Fatalf("unexpected colour codes in %q", out)
	}
}

func TestPrettyHandler_GroupsAndAttrs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, false)).With("component", "retention").WithGroup("purge")

	log.Info("retention.purge.ok", "sessions", 3, slog.Group("resets", "deleted", 1))

	out := buf.String()
	for _, want := range []string{"component=retention", "purge.sessions=3", "purge.resets.deleted=1"} {
		if !strings.Contains(out, want) {
			t.Fatalf("missing %q in %q", want, out)
		}
	}
}

func TestPrettyHandler_Colour(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	log := slog.New(newPrettyHandler(&buf, nil, true))
	log.Error("auth.internal", "status", 500)

	out := buf.String()
	if !strings.Contains(out, ansiRed+"ERROR"+ansiReset) {
		t.Fatalf("expected red level tag in %q", out)
	}
	if !strings.Contains(out, ansiRed+"500"+ansiReset) {
		t.Fatalf("expected red status in %q", out)
	}
}

func TestQuoteIfNeeded(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"":          `""`,
		"plain":     "plain",
		"two words": `"two words"`,
		"a=b":       `"a=b"`,
	}
	for in, want := range cases {
		if got := quoteIfNeeded(in); got != want {
			t.Fatalf("quoteIfNeeded(%q)=%q want=%q", in, got, want)
		}
	}
}

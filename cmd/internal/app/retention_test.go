package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePurger struct {
	cutoffs []time.Time
	n       int64
	err     error
}

func (p *fakePurger) Purge(_ context.Context, cutoff time.Time) (int64, error) {
	p.cutoffs = append(p.cutoffs, cutoff)
	return p.n, p.err
}

func TestRetention_RunOnce(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	sessions := &fakePurger{n: 4}
	resets := &fakePurger{n: 2}
	r := newRetention(30*24*time.Hour, sessions, resets, log)
	r.now = func() time.Time { return now }

	require.NoError(t, r.runOnce(context.Background()))

	want := now.Add(-30 * 24 * time.Hour)
	require.Len(t, sessions.cutoffs, 1)
	assert.True(t, sessions.cutoffs[0].Equal(want))
	require.Len(t, resets.cutoffs, 1)
	assert.True(t, resets.cutoffs[0].Equal(want))
	assert.Contains(t, buf.String(), "retention.purge.ok")
	assert.Contains(t, buf.String(), "sessions=4")
}

func TestRetention_OneFailureDoesNotSkipTheOther(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, nil))

	sessions := &fakePurger{err: errors.New("db down")}
	resets := &fakePurger{n: 1}
	r := newRetention(time.Hour, sessions, resets, log)

	err := r.runOnce(context.Background())
	require.Error(t, err)
	assert.Len(t, resets.cutoffs, 1)
	assert.True(t, strings.Contains(buf.String(), "retention.purge.sessions.failed"))
	assert.NotContains(t, buf.String(), "retention.purge.ok")
}

func TestRetention_Scheduler(t *testing.T) {
	r := newRetention(time.Hour, &fakePurger{}, &fakePurger{}, slog.New(slog.DiscardHandler))

	c, err := r.scheduler("@every 1h")
	require.NoError(t, err)
	assert.Len(t, c.Entries(), 1)

	_, err = r.scheduler("not a schedule")
	require.Error(t, err)
}

func TestRetention_RunStopsWithContext(t *testing.T) {
	r := newRetention(time.Hour, &fakePurger{}, &fakePurger{}, slog.New(slog.DiscardHandler))

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- r.run(ctx, "@every 1h") }()

	cancel()
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("retention.run did not return after cancel")
	}
}

package app

import (
	"context"
	"errors"
	"time"

	"github.com/robfig/cron/v3"
)

type purger interface {
	Purge(ctx context.Context, cutoff time.Time) (int64, error)
}

// retention deletes refresh and reset records that expired more than grace ago.
type retention struct {
	grace    time.Duration
	timeout  time.Duration
	sessions purger
	resets   purger
	log      Logger
	now      func() time.Time
}

func newRetention(grace time.Duration, sessions, resets purger, log Logger) *retention {
	return &retention{
		grace:    grace,
		timeout:  time.Minute,
		sessions: sessions,
		resets:   resets,
		log:      log,
		now:      time.Now,
	}
}

// runOnce purges both stores. A failure in one does not skip the other.
func (r *retention) runOnce(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	cutoff := r.now().Add(-r.grace)

	sessions, serr := r.sessions.Purge(ctx, cutoff)
	if serr != nil {
		r.log.Error("retention.purge.sessions.failed", "err", serr)
	}
	resets, rerr := r.resets.Purge(ctx, cutoff)
	if rerr != nil {
		r.log.Error("retention.purge.resets.failed", "err", rerr)
	}
	if err := errors.Join(serr, rerr); err != nil {
		return err
	}

	r.log.Info("retention.purge.ok", "cutoff", cutoff.UTC(), "sessions", sessions, "resets", resets)
	return nil
}

// scheduler returns a cron runner that calls runOnce on schedule. Overlapping
// runs are skipped.
func (r *retention) scheduler(schedule string) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)))
	if _, err := c.AddFunc(schedule, func() {
		_ = r.runOnce(context.Background())
	}); err != nil {
		return nil, err
	}
	return c, nil
}

// run starts the scheduler and blocks until ctx is done, then waits for an
// in-flight purge to finish.
func (r *retention) run(ctx context.Context, schedule string) error {
	if schedule == "" {
		<-ctx.Done()
		return nil
	}
	c, err := r.scheduler(schedule)
	if err != nil {
		return err
	}
	c.Start()
	r.log.Info("retention.started", "schedule", schedule, "grace", r.grace)

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run is the CLI entrypoint used by cmd/sessiond.
// It returns an error instead of calling os.Exit so defers run.
func Run() error {
	cfg, err := LoadConfig()
	if err != nil {
		return err
	}
	log := NewLogger(cfg.LogLevel, cfg.LogFormat)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	a, err := New(ctx, cfg, log)
	if err != nil {
		log.Error("app.init.fail", "err", err)
		return err
	}
	return a.Run(ctx)
}

// Run serves HTTP, runs the retention job and watches the permission file
// until ctx is cancelled or any of them fails.
func (a *App) Run(ctx context.Context) error {
	defer a.close()

	srv := a.server()
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		a.log.Info("server.start", "addr", a.cfg.HTTPAddr, "store", a.backend.kind)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.log.Error("server.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		a.log.Info("server.stop", "reason", "context_done")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), nonZeroDuration(a.cfg.ShutdownTimeout, 10*time.Second))
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			a.log.Error("server.shutdown.fail", "err", err)
			return err
		}
		return nil
	})

	g.Go(func() error {
		return a.retention.run(gctx, a.cfg.RetentionSchedule)
	})

	if a.static != nil {
		g.Go(func() error {
			return a.static.Watch(gctx, 0, a.log)
		})
	}

	err := g.Wait()
	a.log.Info("server.stopped")
	return err
}

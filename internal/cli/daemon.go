package cli

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/raoulx24/wandering-echo/internal/config"
	"github.com/raoulx24/wandering-echo/internal/mailbox"
	"github.com/raoulx24/wandering-echo/internal/picker"
	"github.com/raoulx24/wandering-echo/internal/schedule"
	"github.com/raoulx24/wandering-echo/internal/watcher"
)

func newDaemonCmd(o *options) *cobra.Command {
	return &cobra.Command{
		Use:     "daemon",
		Short:   "Run backups on the configured schedule",
		Args:    cobra.NoArgs,
		PreRunE: asRoot(o),
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := newApp(o.configPath, picker.Unattended{})
			if err != nil {
				return err
			}
			defer a.Close()
			return runDaemon(cmd.Context(), a, o.configPath)
		},
	}
}

// runDaemon runs backups on the cron schedule until ctx is done. Ticks that
// arrive while a run is in flight collapse into one pending run.
func runDaemon(ctx context.Context, a *app, configPath string) error {
	log := a.log.With("component", "daemon")
	runs := mailbox.New[time.Time]()
	reloads := mailbox.New[watcher.Event]()

	sched, err := schedule.New(a.cfg.Schedule.Cron, a.clock, log, func(at time.Time) {
		if runs.Put(at) {
			log.Warn("previous run still pending, ticks coalesced")
		}
	})
	if err != nil {
		return err
	}
	log.Info("daemon started", "cron", sched.Expr(), "next", sched.Next(a.clock.Now()))

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return sched.Run(ctx) })

	g.Go(func() error {
		for {
			at, err := runs.Take(ctx)
			if err != nil {
				return nil
			}
			log.Info("scheduled run", "tick", at)
			report, err := a.lifecycle.Backup(ctx)
			switch {
			case err != nil:
				log.Error("run failed", "error", err)
			case !report.OK():
				log.Warn("run finished with failures", "failed", len(report.Failed()))
			}
		}
	})

	var w *watcher.Watcher
	if a.cfg.ConfigReload.Enabled {
		if _, err := os.Stat(configPath); err == nil {
			w = watcher.New(configPath, a.cfg.ConfigReload, a.clock, log, reloads)
			g.Go(func() error { return w.Start(ctx) })
		} else {
			log.Warn("settings file missing, not watching", "path", configPath)
		}
	}

	g.Go(func() error {
		hup := make(chan os.Signal, 1)
		signal.Notify(hup, syscall.SIGHUP)
		defer signal.Stop(hup)
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-hup:
				reloads.Put(watcher.Event{Path: configPath, ModTime: a.clock.Now()})
			}
		}
	})

	g.Go(func() error {
		for {
			if _, err := reloads.Take(ctx); err != nil {
				return nil
			}
			cfg, err := config.Load(configPath)
			if err != nil {
				log.Error("settings reload failed", "error", err)
				continue
			}
			if _, err := sched.Reschedule(cfg.Schedule.Cron); err != nil {
				log.Error("settings reload failed", "error", err)
				continue
			}
			if w != nil {
				w.UpdateConfig(cfg.ConfigReload)
			}
			log.Info("settings reloaded; other changes apply on restart")
		}
	})

	err = g.Wait()
	log.Info("daemon stopped")
	return err
}

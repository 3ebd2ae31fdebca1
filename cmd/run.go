package cmd

import (
	"context"
	"errors"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/example/appt-scheduler/internal/booking"
	"github.com/example/appt-scheduler/internal/browser"
	"github.com/example/appt-scheduler/internal/config"
	"github.com/example/appt-scheduler/internal/domain/appointment"
	"github.com/example/appt-scheduler/internal/journal"
	"github.com/example/appt-scheduler/internal/notify"
	"github.com/example/appt-scheduler/internal/observability"
	"github.com/example/appt-scheduler/internal/scheduler"
	"github.com/example/appt-scheduler/internal/web"
)

func newRunCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Retry until an earlier appointment is booked",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(cmd, *cfgFile)
			if err != nil {
				return err
			}
			logger, err := observability.NewStdoutLogger(cfg.Logger)
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer cancel()

			return run(ctx, cfg, logger)
		},
	}
}

func run(ctx context.Context, cfg config.Config, logger *zap.Logger) error {
	channel, err := notify.NewChannel(cfg.Notify)
	if err != nil {
		return err
	}

	launcher := browser.NewLauncher(ctx, cfg.Browser, cfg.Timeouts.Navigation, logger)
	defer launcher.Shutdown()

	s := &scheduler.Scheduler{
		Booker:    booking.New(launcher, cfg, logger),
		Resources: appointment.Candidates(cfg.Booking.Resources),
		Backoff:   cfg.Scheduler.Backoff,
		MaxCycles: cfg.Scheduler.MaxCycles,
		Notifier:  notify.NewSink(channel, cfg.Notify, logger),
		Logger:    logger,
	}

	if cfg.Database.URL != "" {
		store, err := journal.Open(ctx, cfg.Database.URL, logger)
		if err != nil {
			return err
		}
		defer store.Close()
		s.Recorder = store
	}

	logger.Info("Starting.",
		zap.Strings("resources", cfg.Booking.Resources),
		zap.String("deadline", cfg.Booking.Deadline),
		zap.String("mode", cfg.Availability.Mode),
		zap.Duration("backoff", cfg.Scheduler.Backoff))

	g, gctx := errgroup.WithContext(ctx)
	runCtx, stop := context.WithCancel(gctx)
	defer stop()

	g.Go(func() error {
		defer stop()
		return s.Run(runCtx)
	})
	if cfg.Status.ListenAddr != "" {
		srv := &web.Server{Status: s, Logger: logger}
		g.Go(func() error {
			return web.Start(runCtx, cfg.Status.ListenAddr, srv.Routes(), logger)
		})
	}

	err = g.Wait()
	if errors.Is(err, context.Canceled) && ctx.Err() != nil {
		logger.Info("Stopped by signal.")
		return nil
	}
	return err
}

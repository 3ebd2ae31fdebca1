package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/example/appt-scheduler/internal/booking"
	"github.com/example/appt-scheduler/internal/browser"
	"github.com/example/appt-scheduler/internal/config"
	"github.com/example/appt-scheduler/internal/internaltypes"
	"github.com/example/appt-scheduler/internal/observability"
)

func newProbeCmd(cfgFile *string) *cobra.Command {
	return &cobra.Command{
		Use:   "probe",
		Short: "Sign in once and report the earliest opening per resource without booking",
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

			launcher := browser.NewLauncher(ctx, cfg.Browser, cfg.Timeouts.Navigation, logger)
			defer launcher.Shutdown()

			return probe(ctx, booking.New(launcher, cfg, logger), cfg.Booking.Resources, cmd.OutOrStdout(), logger)
		},
	}
}

// availabilityChecker is the part of a booking session probe needs.
type availabilityChecker interface {
	CheckAvailability(ctx context.Context, resource string) (earliest time.Time, err error)
	Close(ctx context.Context) error
}

func probe(ctx context.Context, b *booking.Booker, resources []string, out io.Writer, logger *zap.Logger) error {
	session, err := b.OpenSession(ctx)
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("Failed to close session.", zap.Error(err))
		}
	}()
	return report(ctx, session, resources, out)
}

// report writes one line per resource. Only cancellation stops it early.
func report(ctx context.Context, c availabilityChecker, resources []string, out io.Writer) error {
	for _, r := range resources {
		earliest, err := c.CheckAvailability(ctx, r)
		switch {
		case err == nil:
			fmt.Fprintf(out, "%s\tavailable\t%s\n", r, earliest.Format(config.DeadlineLayout))
		case ctx.Err() != nil:
			return ctx.Err()
		case errors.Is(err, internaltypes.ErrNoSlotBeforeDeadline):
			fmt.Fprintf(out, "%s\tafter deadline\t%s\n", r, earliest.Format(config.DeadlineLayout))
		case errors.Is(err, internaltypes.ErrNoAppointmentAvailable):
			fmt.Fprintf(out, "%s\tnone\n", r)
		default:
			fmt.Fprintf(out, "%s\terror\t%v\n", r, err)
		}
	}
	return nil
}

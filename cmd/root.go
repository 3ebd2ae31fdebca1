package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/example/appt-scheduler/internal/config"
)

var (
	Version   = "dev"
	CommitSHA = "none"
	BuildDate = "unknown"
)

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"deadline":    "booking.deadline",
	"reference":   "booking.reference",
	"resources":   "booking.resources",
	"group":       "booking.group",
	"mode":        "availability.mode",
	"backoff":     "scheduler.backoff",
	"max-cycles":  "scheduler.max_cycles",
	"headless":    "browser.headless",
	"status-addr": "status.listen_addr",
	"log-level":   "logger.level",
	"log-format":  "logger.format",
}

func NewRootCmd() *cobra.Command {
	var cfgFile string

	root := &cobra.Command{
		Use:           "apptsched",
		Short:         "Reschedules a booked appointment to the earliest slot before a deadline",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&cfgFile, "config", "c", "", "config file (default is ./apptsched.yaml)")
	pf.String("deadline", "", "latest acceptable appointment date (YYYY-MM-DD)")
	pf.String("reference", "", "booking reference of the existing appointment")
	pf.StringSlice("resources", nil, "facility ids to try, in order")
	pf.Bool("group", false, "the booking covers a group of applicants")
	pf.String("mode", config.ModeCalendar, "availability check: calendar, api or both")
	pf.Duration("backoff", 0, "pause between cycles")
	pf.Int("max-cycles", 0, "stop after this many cycles without a booking (0 = never)")
	pf.Bool("headless", true, "run the browser without a window")
	pf.String("status-addr", "", "listen address of the status server")
	pf.String("log-level", "info", "log level")
	pf.String("log-format", "console", "log format: console or json")

	root.AddCommand(newVersionCmd())
	root.AddCommand(newRunCmd(&cfgFile))
	root.AddCommand(newProbeCmd(&cfgFile))

	return root
}

func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadConfig layers defaults, the config file, APPTSCHED_* variables and
// explicitly set flags, in increasing precedence.
func loadConfig(cmd *cobra.Command, cfgFile string) (config.Config, error) {
	v := config.NewViper()
	if err := readConfigFile(v, cfgFile); err != nil {
		return config.Config{}, err
	}
	if err := bindFlags(v, cmd.Flags()); err != nil {
		return config.Config{}, err
	}
	return config.FromViper(v)
}

func readConfigFile(v *viper.Viper, cfgFile string) error {
	if cfgFile != "" {
		v.SetConfigFile(cfgFile)
	} else {
		v.AddConfigPath(".")
		v.SetConfigName("apptsched")
		v.SetConfigType("yaml")
	}
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if cfgFile != "" || !errors.As(err, &notFound) {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}

func bindFlags(v *viper.Viper, flags *pflag.FlagSet) error {
	for name, key := range flagKeys {
		f := flags.Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := v.BindPFlag(key, f); err != nil {
			return fmt.Errorf("binding --%s: %w", name, err)
		}
	}
	return nil
}

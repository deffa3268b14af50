package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"batteryfriend/internal/app"
	logx "batteryfriend/pkg/logx"
)

// Version is set at build time via ldflags.
var Version = "dev"

type rootFlags struct {
	config            string
	verbose           bool
	disableAutoReload bool
	battery           string
	sysfsRoot         string
}

func (f *rootFlags) options() app.Options {
	return app.Options{
		ConfigPath:        f.config,
		Verbose:           f.verbose,
		DisableAutoReload: f.disableAutoReload,
		Battery:           f.battery,
		SysfsRoot:         f.sysfsRoot,
	}
}

func main() {
	if err := newRootCmd(os.Stdout).Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd(out io.Writer) *cobra.Command {
	f := &rootFlags{}
	root := &cobra.Command{
		Use:   "battery-friend",
		Short: "Desktop notifications driven by battery charge",
		Long: `battery-friend polls the battery and shows a desktop notification for
every configured rule whose status and charge range match. The config file is
watched and changes apply without a restart.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), f)
		},
	}
	root.SetOut(out)

	pf := root.PersistentFlags()
	pf.StringVarP(&f.config, "config", "c", defaultConfigPath(), "path to the config file (.toml, .yaml or .json)")
	pf.BoolVarP(&f.verbose, "verbose", "v", false, "log at debug level regardless of the config")
	pf.BoolVar(&f.disableAutoReload, "disable-autoreload", false, "do not watch the config file for changes")
	pf.StringVar(&f.battery, "battery", "BAT0", "power supply name under /sys/class/power_supply")
	pf.StringVar(&f.sysfsRoot, "sysfs-root", "", "power_supply root directory")
	_ = pf.MarkHidden("sysfs-root")

	root.AddCommand(newCheckCmd(f), newVersionCmd())
	return root
}

func newCheckCmd(f *rootFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Validate the config and show which rules match the current reading",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			level := "warn"
			if f.verbose {
				level = "debug"
			}
			log := logx.NewConsole(level)
			if err := app.Check(f.options(), cmd.OutOrStdout(), log); err != nil {
				log.Error("check failed", logx.Err(err))
				return err
			}
			return nil
		},
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the version",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "battery-friend version %s\n", Version)
		},
	}
}

func runDaemon(parent context.Context, f *rootFlags) error {
	if parent == nil {
		parent = context.Background()
	}
	ctx, cancel := signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	// Used until the config file's logging section is known.
	boot := logx.NewConsole("info")

	a, err := app.NewApp(f.options())
	if err != nil {
		boot.Error("unable to start", logx.String("config", f.config), logx.Err(err))
		return err
	}
	if err := a.Start(ctx); err != nil {
		boot.Error("fatal start", logx.Err(err))
		return err
	}

	select {
	case <-ctx.Done():
	case <-a.Done():
	}

	stopCtx, stopCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer stopCancel()
	stopErr := a.Stop(stopCtx)

	if err := a.Err(); err != nil {
		boot.Error("fatal", logx.Err(err))
		return err
	}
	if stopErr != nil && !errors.Is(stopErr, context.DeadlineExceeded) {
		return stopErr
	}
	return nil
}

// defaultConfigPath is <user config dir>/battery-friend/config.toml.
func defaultConfigPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "config.toml"
	}
	return filepath.Join(dir, "battery-friend", "config.toml")
}

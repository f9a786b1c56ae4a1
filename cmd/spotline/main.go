package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/genricoloni/spotline/internal/config"
	"github.com/spf13/cobra"
	"go.uber.org/fx"
)

// Version information (set via ldflags during build)
var version = "dev"

// globalFlags are shared by every subcommand
type globalFlags struct {
	configFile string
	debug      bool
	output     string
}

func (f *globalFlags) options() config.Options {
	return config.Options{File: f.configFile, Output: f.output}
}

func newRootCmd() *cobra.Command {
	flags := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "spotline",
		Short: "Synced lyrics for the active MPRIS player",
		Long: `spotline follows the media player active on the session bus,
fetches time-synced lyrics for the current track and prints the line
being sung, one update per line.

Run without a subcommand to start the daemon.`,
		Version:       version,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), flags)
		},
	}

	rootCmd.PersistentFlags().StringVar(&flags.configFile, "config", "", "config file (default $XDG_CONFIG_HOME/spotline/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&flags.debug, "debug", false, "enable development logging")
	rootCmd.PersistentFlags().StringVar(&flags.output, "output", "", "output format: plain or json")

	rootCmd.AddCommand(
		newRunCmd(flags),
		newPlayersCmd(flags),
		newControlCmd(flags),
		newLyricsCmd(flags),
	)
	return rootCmd
}

func newRunCmd(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Start the lyrics daemon",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runDaemon(cmd.Context(), flags)
		},
	}
}

// runDaemon starts the application graph and blocks until SIGINT or SIGTERM
func runDaemon(ctx context.Context, flags *globalFlags) error {
	app := fx.New(AppOptions(flags.options(), flags.debug))
	if err := app.Err(); err != nil {
		return err
	}

	// Handle graceful shutdown
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()

	if err := app.Start(ctx); err != nil {
		return fmt.Errorf("failed to start: %w", err)
	}

	<-ctx.Done()

	if err := app.Stop(context.Background()); err != nil {
		return fmt.Errorf("failed to stop cleanly: %w", err)
	}
	return nil
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

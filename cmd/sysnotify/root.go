// Package main provides the CLI entrypoint for sysnotify.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/sysnotify/internal/broadcast"
	"github.com/jmylchreest/sysnotify/internal/config"
	"github.com/jmylchreest/sysnotify/internal/dbus"
	"github.com/jmylchreest/sysnotify/internal/privilege"
	"github.com/jmylchreest/sysnotify/internal/procscan"
	"github.com/jmylchreest/sysnotify/internal/session"
)

// Build-time variables (set via ldflags)
var (
	version   = "dev"
	commit    = "unknown"
	buildTime = "unknown"
)

// Global configuration and state
var (
	cfg        *config.Config
	globalOpts struct {
		verbose    bool
		configPath string
	}
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "sysnotify",
	Short: "Send a desktop notification to every logged-in user",
	Long: `sysnotify delivers a desktop notification into every active user
session on the machine.

It finds each per-user session bus daemon in the process table, rebuilds
that session's DISPLAY and XAUTHORITY, and sends the notification as the
session's owner. Run it as root to reach sessions of other users.`,
	Version:       fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildTime),
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogger()

		var err error
		cfg, err = config.LoadConfig(globalOpts.configPath)
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}
		return nil
	},
}

// Execute runs the root command and exits with the status of the run.
func Execute() {
	err := rootCmd.ExecuteContext(context.Background())
	if err == nil {
		return
	}

	code := exitUsage
	var exitErr *exitError
	if errors.As(err, &exitErr) {
		code = exitErr.code
		err = exitErr.err
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "sysnotify: %v\n", err)
	}
	os.Exit(code)
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&globalOpts.verbose, "verbose", "v", false,
		"Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&globalOpts.configPath, "config", "",
		"Path to config file (default: $SYSNOTIFY_CONFIG or /etc/sysnotify/config.toml)")
}

// setupLogger configures the global slog logger.
func setupLogger() {
	level := slog.LevelWarn
	if globalOpts.verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{
		Level: level,
	}

	// Log to stderr so stdout is clean for output
	handler := slog.NewTextHandler(os.Stderr, opts)
	logger = slog.New(handler)
	slog.SetDefault(logger)
}

// newBroadcaster wires the scan, resolve and dispatch stages from cfg.
// The returned client must be closed by the caller; it is nil when
// dispatching is not requested.
func newBroadcaster(dispatch broadcast.DispatcherOptions, withDispatcher bool) (*broadcast.Broadcaster, *dbus.Client, error) {
	procs, err := procscan.NewProcFS(cfg.Scan.ProcPath, logger)
	if err != nil {
		return nil, nil, err
	}

	locator := session.NewLocator(cfg.Scan.BusBinary, cfg.Scan.SessionFlag)
	resolver := session.NewResolver(session.SystemUsers{}, procs, logger)

	if !withDispatcher {
		return broadcast.NewBroadcaster(procs, locator, resolver, nil, logger), nil, nil
	}

	client := dbus.NewClient(session.SystemUsers{}, logger)
	dispatcher := broadcast.NewDispatcher(privilege.System(), broadcast.ProcessEnv{}, client, dispatch, logger)

	return broadcast.NewBroadcaster(procs, locator, resolver, dispatcher, logger), client, nil
}

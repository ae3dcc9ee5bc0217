package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/jmylchreest/sysnotify/internal/broadcast"
	"github.com/jmylchreest/sysnotify/internal/report"
)

var sessionsOpts struct {
	output string
}

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List the desktop sessions a notification would reach",
	Long: `List the desktop sessions a notification would reach, without
sending anything.

Each session bus daemon found in the process table is shown with the
DISPLAY and XAUTHORITY that would be used, the bus address when known,
and the root directory the delivery would be confined to.`,
	Args: cobra.NoArgs,
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)

	sessionsCmd.Flags().StringVarP(&sessionsOpts.output, "output", "o", string(report.FormatPlain),
		"Output format (plain, json, yaml)")
}

func runSessions(cmd *cobra.Command, args []string) error {
	formatter, err := report.NewFormatter(report.FormatType(sessionsOpts.output))
	if err != nil {
		return err
	}

	cmd.SilenceUsage = true

	b, _, err := newBroadcaster(broadcast.DispatcherOptions{}, false)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	sessions, err := b.Discover(cmd.Context())
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}

	if err := formatter.Sessions(os.Stdout, sessions); err != nil {
		return err
	}

	if len(sessions) == 0 {
		return &exitError{code: exitUnavailable}
	}
	return nil
}

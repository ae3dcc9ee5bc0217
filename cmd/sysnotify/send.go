package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/jmylchreest/sysnotify/internal/broadcast"
	"github.com/jmylchreest/sysnotify/internal/config"
	"github.com/jmylchreest/sysnotify/internal/model"
	"github.com/jmylchreest/sysnotify/internal/report"
)

var sendOpts struct {
	urgency   string
	expire    int
	icon      string
	appName   string
	category  string
	hints     []string
	output    string
	timeout   time.Duration
	noConfine bool
}

var sendCmd = &cobra.Command{
	Use:   "send [flags] SUMMARY [BODY]",
	Short: "Send a notification to every desktop session",
	Long: `Send a notification to every desktop session found on the machine.

The flags follow notify-send. Defaults for app name, icon, urgency,
expiry and category come from the [notification] section of the config.

Exit status:
  0   delivered to at least one session
  1   sessions were found but none accepted the notification
  64  invalid arguments or configuration
  69  no session bus was found
  70  internal error (privileges could not be restored, process table unreadable)

Examples:
  # Warn everyone about a reboot
  sysnotify send -u critical "Reboot at 18:00" "Save your work"

  # Show which sessions were reached
  sysnotify send --output plain "Backup complete"

  # Progress bar hint understood by most servers
  sysnotify send -h int:value:75 "Backup" "75% done"`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSend,
}

func init() {
	rootCmd.AddCommand(sendCmd)

	addSendFlags(sendCmd.Flags())
}

// addSendFlags registers the send flags on fs.
func addSendFlags(fs *pflag.FlagSet) {
	// -h belongs to --hint, as in notify-send.
	fs.Bool("help", false, "help for send")

	fs.StringVarP(&sendOpts.urgency, "urgency", "u", config.DefaultUrgency,
		"Urgency level (low, normal, critical)")
	fs.IntVarP(&sendOpts.expire, "expire-time", "t", model.ExpireDefault,
		"Timeout in milliseconds (-1 = server default, 0 = never)")
	fs.StringVarP(&sendOpts.icon, "icon", "i", "",
		"Icon name or path")
	fs.StringVarP(&sendOpts.appName, "app-name", "a", config.DefaultAppName,
		"Application name")
	fs.StringVarP(&sendOpts.category, "category", "c", "",
		"Notification category")
	fs.StringArrayVarP(&sendOpts.hints, "hint", "h", nil,
		"Extra hint as TYPE:NAME:VALUE (int, double, string, byte, boolean)")
	fs.StringVarP(&sendOpts.output, "output", "o", "",
		"Print per-session results (plain, json, yaml)")
	fs.DurationVar(&sendOpts.timeout, "timeout", 0,
		"Per-session delivery timeout (default from config, 0 = none)")
	fs.BoolVar(&sendOpts.noConfine, "no-confine", false,
		"Do not chroot into sessions running under a different root")
}

func runSend(cmd *cobra.Command, args []string) error {
	n, err := buildNotification(cmd, args)
	if err != nil {
		return err
	}

	var formatter report.Formatter
	if sendOpts.output != "" {
		formatter, err = report.NewFormatter(report.FormatType(sendOpts.output))
		if err != nil {
			return err
		}
	}

	cmd.SilenceUsage = true

	opts := broadcast.DispatcherOptions{
		Confine: cfg.Dispatch.Confine && !sendOpts.noConfine,
		Timeout: cfg.Dispatch.Timeout.Duration(),
	}
	if cmd.Flags().Changed("timeout") {
		opts.Timeout = sendOpts.timeout
	}

	b, client, err := newBroadcaster(opts, true)
	if err != nil {
		return &exitError{code: exitFatal, err: err}
	}
	defer func() {
		if err := client.Close(); err != nil {
			logger.Debug("failed to close bus connection", "error", err)
		}
	}()

	result, err := b.Run(cmd.Context(), n)
	if result != nil && formatter != nil {
		if ferr := formatter.Result(os.Stdout, result); ferr != nil {
			logger.Warn("failed to write report", "error", ferr)
		}
	}
	if err != nil {
		if errors.Is(err, broadcast.ErrFatal) {
			logger.Error("broadcast aborted", "error", err)
		}
		return &exitError{code: exitFatal, err: err}
	}

	if code := statusCode(result.Status); code != exitDelivered {
		return &exitError{code: code}
	}
	return nil
}

// buildNotification assembles the notification from arguments, flags and
// the configured defaults. Flags given explicitly win over the config.
func buildNotification(cmd *cobra.Command, args []string) (*model.Notification, error) {
	defaults := cfg.Notification
	flags := cmd.Flags()

	appName := defaults.AppName
	if flags.Changed("app-name") {
		appName = sendOpts.appName
	}

	body := ""
	if len(args) > 1 {
		body = args[1]
	}

	n, err := model.NewNotification(appName, args[0], body)
	if err != nil {
		return nil, err
	}

	n.AppIcon = defaults.Icon
	if flags.Changed("icon") {
		n.AppIcon = sendOpts.icon
	}

	n.Category = defaults.Category
	if flags.Changed("category") {
		n.Category = sendOpts.category
	}

	n.ExpireTimeout = defaults.ExpireTimeout
	if flags.Changed("expire-time") {
		n.ExpireTimeout = sendOpts.expire
	}

	urgencyName := defaults.Urgency
	if flags.Changed("urgency") {
		urgencyName = sendOpts.urgency
	}
	urgency, err := model.ParseUrgency(urgencyName)
	if err != nil {
		return nil, err
	}
	n.SetUrgency(urgency)

	for _, spec := range sendOpts.hints {
		name, value, err := model.ParseHint(spec)
		if err != nil {
			return nil, err
		}
		n.SetHint(name, value)
	}

	if err := n.Validate(); err != nil {
		return nil, fmt.Errorf("invalid notification: %w", err)
	}

	return n, nil
}

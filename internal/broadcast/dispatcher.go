// Package broadcast delivers one notification into every discovered
// desktop session, one session at a time.
package broadcast

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/jmylchreest/sysnotify/internal/model"
	"github.com/jmylchreest/sysnotify/internal/privilege"
	"github.com/jmylchreest/sysnotify/internal/session"
)

// ErrFatal marks errors after which the process can no longer vouch for
// its own identity or cannot proceed at all. Callers must stop.
var ErrFatal = errors.New("fatal")

// Channel delivers a notification to the bus of a session. It runs with
// the session's identity, root and environment already in place.
type Channel interface {
	// Reset drops any established connection.
	Reset() error
	Deliver(ctx context.Context, s session.Session, n *model.Notification) (uint32, error)
}

// Environment is the process environment seen by the Channel.
type Environment interface {
	Setenv(key, value string) error
	Unsetenv(key string) error
}

// ProcessEnv is the real process environment.
type ProcessEnv struct{}

func (ProcessEnv) Setenv(key, value string) error { return os.Setenv(key, value) }
func (ProcessEnv) Unsetenv(key string) error      { return os.Unsetenv(key) }

// Outcome is the result of one session's dispatch.
type Outcome struct {
	Session        session.Session `json:"session" yaml:"session"`
	Delivered      bool            `json:"delivered" yaml:"delivered"`
	NotificationID uint32          `json:"notification_id,omitempty" yaml:"notification_id,omitempty"`
	Confined       bool            `json:"confined" yaml:"confined"`
	Narrowed       bool            `json:"narrowed" yaml:"narrowed"`
	Error          string          `json:"error,omitempty" yaml:"error,omitempty"`
	Duration       time.Duration   `json:"duration" yaml:"duration"`
}

// DispatcherOptions configures a Dispatcher.
type DispatcherOptions struct {
	// Confine enables the chroot step for sessions with their own root.
	Confine bool
	// Timeout bounds each delivery. Zero waits indefinitely.
	Timeout time.Duration
}

// Dispatcher performs the privileged delivery into a single session.
type Dispatcher struct {
	ops     privilege.Ops
	env     Environment
	channel Channel
	opts    DispatcherOptions
	logger  *slog.Logger
}

// NewDispatcher creates a new Dispatcher.
func NewDispatcher(ops privilege.Ops, env Environment, channel Channel, opts DispatcherOptions, logger *slog.Logger) *Dispatcher {
	if logger == nil {
		logger = slog.Default()
	}
	return &Dispatcher{
		ops:     ops,
		env:     env,
		channel: channel,
		opts:    opts,
		logger:  logger,
	}
}

// Dispatch delivers n into s. The sequence is confine, narrow, inject the
// session environment, reset the connection, deliver, and finally restore
// identity and root on every path. A delivery failure is reported in the
// Outcome only; the returned error is non-nil (and wraps ErrFatal) solely
// when the environment cannot be set or the original state cannot be
// restored.
func (d *Dispatcher) Dispatch(ctx context.Context, s session.Session, n *model.Notification) (out Outcome, err error) {
	start := time.Now()
	out.Session = s

	root := s.Root
	if !d.opts.Confine {
		root = ""
	}

	logger := d.logger.With("pid", s.PID, "uid", s.UID, "display", s.DisplayName())

	guard := privilege.Acquire(d.ops, s.UID, root, logger)
	out.Confined = guard.Confined()
	out.Narrowed = guard.Narrowed()

	defer func() {
		out.Duration = time.Since(start)
		if rerr := guard.Release(); rerr != nil {
			logger.Error("failed to restore privileges (aborting)", "error", rerr)
			out.Delivered = false
			err = fmt.Errorf("%w: %w", ErrFatal, rerr)
		}
	}()

	if err := d.inject(s); err != nil {
		logger.Error("failed to set session environment (aborting)", "error", err)
		return out, fmt.Errorf("%w: %w", ErrFatal, err)
	}

	if err := d.channel.Reset(); err != nil {
		logger.Debug("connection reset failed", "error", err)
	}

	deliverCtx := ctx
	if d.opts.Timeout > 0 {
		var cancel context.CancelFunc
		deliverCtx, cancel = context.WithTimeout(ctx, d.opts.Timeout)
		defer cancel()
	}

	id, derr := d.channel.Deliver(deliverCtx, s, n)
	if derr != nil {
		logger.Warn("delivery failed", "error", derr)
		out.Error = derr.Error()
		return out, nil
	}

	logger.Info("delivered notification", "notification_id", id)
	out.Delivered = true
	out.NotificationID = id
	return out, nil
}

// inject exports the session's display, authority and bus location.
// Bus variables the session does not define are cleared so a previous
// session's values cannot leak into this connection.
func (d *Dispatcher) inject(s session.Session) error {
	for _, entry := range []string{s.Display, s.Authority} {
		key, value, ok := strings.Cut(entry, "=")
		if !ok {
			return fmt.Errorf("malformed environment entry %q", entry)
		}
		if err := d.env.Setenv(key, value); err != nil {
			return fmt.Errorf("failed to set %s: %w", key, err)
		}
	}

	optional := []struct{ key, value string }{
		{session.EnvBusAddress, s.BusAddress},
		{session.EnvRuntimeDir, s.RuntimeDir},
	}
	for _, v := range optional {
		var err error
		if v.value != "" {
			err = d.env.Setenv(v.key, v.value)
		} else {
			err = d.env.Unsetenv(v.key)
		}
		if err != nil {
			return fmt.Errorf("failed to set %s: %w", v.key, err)
		}
	}

	return nil
}

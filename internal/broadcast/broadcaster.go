package broadcast

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/jmylchreest/sysnotify/internal/model"
	"github.com/jmylchreest/sysnotify/internal/procscan"
	"github.com/jmylchreest/sysnotify/internal/session"
)

// Status is the overall result of a broadcast.
type Status int

const (
	// StatusUnavailable means no session was found to deliver into.
	StatusUnavailable Status = iota
	// StatusDelivered means at least one session accepted the notification.
	StatusDelivered
	// StatusFailed means sessions were found but none accepted it.
	StatusFailed
)

// String returns the string representation of the status.
func (s Status) String() string {
	switch s {
	case StatusUnavailable:
		return "unavailable"
	case StatusDelivered:
		return "delivered"
	case StatusFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Result collects the outcomes of one broadcast.
type Result struct {
	RunID    string    `json:"run_id" yaml:"run_id"`
	Status   Status    `json:"status" yaml:"status"`
	Outcomes []Outcome `json:"outcomes" yaml:"outcomes"`
}

// Delivered returns the number of sessions that accepted the notification.
func (r *Result) Delivered() int {
	count := 0
	for _, o := range r.Outcomes {
		if o.Delivered {
			count++
		}
	}
	return count
}

// add folds one outcome into the overall status: delivered if any
// session succeeded, failed otherwise.
func (r *Result) add(o Outcome) {
	r.Outcomes = append(r.Outcomes, o)
	if o.Delivered {
		r.Status = StatusDelivered
	} else if r.Status != StatusDelivered {
		r.Status = StatusFailed
	}
}

// Broadcaster drives one scan of the process table and dispatches into
// every session found.
type Broadcaster struct {
	source     procscan.Source
	locator    *session.Locator
	resolver   *session.Resolver
	dispatcher *Dispatcher
	logger     *slog.Logger
}

// NewBroadcaster creates a new Broadcaster. dispatcher may be nil when
// only Discover is used.
func NewBroadcaster(source procscan.Source, locator *session.Locator, resolver *session.Resolver, dispatcher *Dispatcher, logger *slog.Logger) *Broadcaster {
	if logger == nil {
		logger = slog.Default()
	}
	return &Broadcaster{
		source:     source,
		locator:    locator,
		resolver:   resolver,
		dispatcher: dispatcher,
		logger:     logger,
	}
}

// Discover scans the process table once and returns the resolved session
// of every session bus daemon. Daemons whose context cannot be resolved
// are skipped. Failing to scan at all wraps ErrFatal.
func (b *Broadcaster) Discover(ctx context.Context) ([]session.Session, error) {
	records, err := b.source.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFatal, err)
	}

	var sessions []session.Session
	for _, rec := range records {
		if !b.locator.IsSessionBus(rec) {
			continue
		}

		s, err := b.resolver.Resolve(rec)
		if err != nil {
			b.logger.Debug("skipping session bus", "pid", rec.PID, "uid", rec.EUID, "reason", err)
			continue
		}
		sessions = append(sessions, s)
	}

	b.logger.Debug("scan complete", "processes", len(records), "sessions", len(sessions))
	return sessions, nil
}

// Run delivers n into every discovered session in turn. A failure in one
// session never prevents the next from being attempted; a fatal error
// stops the run at once and is returned with the outcomes gathered so far.
func (b *Broadcaster) Run(ctx context.Context, n *model.Notification) (*Result, error) {
	if b.dispatcher == nil {
		return nil, errors.New("broadcaster has no dispatcher")
	}

	result := &Result{RunID: newRunID(), Status: StatusUnavailable}
	logger := b.logger.With("run", result.RunID)

	sessions, err := b.Discover(ctx)
	if err != nil {
		return result, err
	}
	if len(sessions) == 0 {
		logger.Info("no session bus found")
		return result, nil
	}

	for _, s := range sessions {
		out, err := b.dispatcher.Dispatch(ctx, s, n)
		result.add(out)
		if err != nil {
			return result, err
		}
	}

	logger.Info("broadcast complete",
		"status", result.Status.String(),
		"sessions", len(result.Outcomes),
		"delivered", result.Delivered(),
	)
	return result, nil
}

func newRunID() string {
	id, err := ulid.New(ulid.Timestamp(time.Now()), rand.Reader)
	if err != nil {
		return ""
	}
	return id.String()
}

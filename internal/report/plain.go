package report

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/dustin/go-humanize/english"

	"github.com/jmylchreest/sysnotify/internal/broadcast"
	"github.com/jmylchreest/sysnotify/internal/session"
)

// PlainFormatter formats output as human-readable text.
type PlainFormatter struct{}

// Result writes one line per session followed by a summary line.
func (f *PlainFormatter) Result(w io.Writer, r *broadcast.Result) error {
	var sb strings.Builder

	for _, o := range r.Outcomes {
		state := "delivered"
		if !o.Delivered {
			state = "failed"
		}
		sb.WriteString(fmt.Sprintf("%-9s pid=%d uid=%d display=%s", state, o.Session.PID, o.Session.UID, o.Session.DisplayName()))
		if o.Session.Root != "" {
			sb.WriteString(" root=" + o.Session.Root)
		}
		sb.WriteString(fmt.Sprintf(" (%s)", o.Duration.Round(time.Millisecond)))
		if o.Error != "" {
			sb.WriteString(": " + o.Error)
		}
		sb.WriteString("\n")
	}

	sb.WriteString(summary(r))
	sb.WriteString("\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

// Sessions writes one line per session.
func (f *PlainFormatter) Sessions(w io.Writer, sessions []session.Session) error {
	var sb strings.Builder

	for _, s := range sessions {
		sb.WriteString(fmt.Sprintf("pid=%d uid=%d display=%s %s", s.PID, s.UID, s.DisplayName(), s.Authority))
		if s.BusAddress != "" {
			sb.WriteString(" bus=" + s.BusAddress)
		}
		if s.Root != "" {
			sb.WriteString(" root=" + s.Root)
		}
		sb.WriteString("\n")
	}
	sb.WriteString(english.Plural(len(sessions), "session", "") + " found\n")

	_, err := io.WriteString(w, sb.String())
	return err
}

func summary(r *broadcast.Result) string {
	switch r.Status {
	case broadcast.StatusUnavailable:
		return "no session bus found"
	default:
		return fmt.Sprintf("delivered to %d of %s", r.Delivered(), english.Plural(len(r.Outcomes), "session", ""))
	}
}

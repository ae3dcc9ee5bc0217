// Package report renders broadcast results and discovered sessions.
package report

import (
	"fmt"
	"io"

	"github.com/jmylchreest/sysnotify/internal/broadcast"
	"github.com/jmylchreest/sysnotify/internal/session"
)

// Formatter writes results and session listings.
type Formatter interface {
	// Result writes the outcome of a broadcast.
	Result(w io.Writer, r *broadcast.Result) error
	// Sessions writes a listing of discovered sessions.
	Sessions(w io.Writer, sessions []session.Session) error
}

// FormatType represents an output format type.
type FormatType string

const (
	FormatPlain FormatType = "plain"
	FormatJSON  FormatType = "json"
	FormatYAML  FormatType = "yaml"
)

// NewFormatter creates a formatter for the specified format type.
func NewFormatter(format FormatType) (Formatter, error) {
	switch format {
	case FormatPlain, "":
		return &PlainFormatter{}, nil
	case FormatJSON:
		return &JSONFormatter{}, nil
	case FormatYAML:
		return &YAMLFormatter{}, nil
	default:
		return nil, fmt.Errorf("unknown output format %q (want plain, json or yaml)", format)
	}
}

// sessionList wraps a session slice so structured output has a stable
// top-level object.
type sessionList struct {
	Sessions []session.Session `json:"sessions" yaml:"sessions"`
}

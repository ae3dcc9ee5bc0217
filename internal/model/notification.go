// Package model defines the notification payload broadcast by sysnotify.
package model

import (
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/oklog/ulid/v2"
)

// Urgency levels matching freedesktop spec.
const (
	UrgencyLow      = 0
	UrgencyNormal   = 1
	UrgencyCritical = 2
)

// UrgencyNames maps urgency levels to human-readable names.
var UrgencyNames = map[int]string{
	UrgencyLow:      "low",
	UrgencyNormal:   "normal",
	UrgencyCritical: "critical",
}

// ExpireDefault asks the notification server to apply its own timeout.
const ExpireDefault = -1

// Notification is one message to be delivered into every session.
// The same value is handed to each session's delivery channel unchanged.
type Notification struct {
	ID        string    `json:"id" yaml:"id"`
	CreatedAt time.Time `json:"created_at" yaml:"created_at"`

	// Freedesktop Notify parameters
	AppName       string `json:"app_name" yaml:"app_name"`
	AppIcon       string `json:"app_icon,omitempty" yaml:"app_icon,omitempty"`
	Summary       string `json:"summary" yaml:"summary"`
	Body          string `json:"body,omitempty" yaml:"body,omitempty"`
	ExpireTimeout int    `json:"expire_timeout" yaml:"expire_timeout"` // milliseconds, -1 = server default

	Urgency     int    `json:"urgency" yaml:"urgency"`
	UrgencyName string `json:"urgency_name" yaml:"urgency_name"`
	Category    string `json:"category,omitempty" yaml:"category,omitempty"`

	// Extra hints, keyed by hint name. Values are Go scalars
	// (int32, float64, string, byte, bool).
	Hints map[string]any `json:"hints,omitempty" yaml:"hints,omitempty"`
}

// Validation errors.
var (
	ErrEmptyID         = errors.New("id cannot be empty")
	ErrEmptyAppName    = errors.New("app_name cannot be empty")
	ErrEmptySummary    = errors.New("summary cannot be empty")
	ErrInvalidUrgency  = errors.New("urgency must be 0, 1, or 2")
	ErrInvalidExpire   = errors.New("expire_timeout must be -1 or greater")
	ErrUnknownUrgency  = errors.New("urgency must be one of low, normal, critical")
	ErrMalformedHint   = errors.New("hint must be TYPE:NAME:VALUE")
	ErrUnknownHintType = errors.New("hint type must be one of int, double, string, byte, boolean")
)

// NewNotification creates a new Notification with a generated ULID.
func NewNotification(appName, summary, body string) (*Notification, error) {
	now := time.Now()
	id, err := ulid.New(ulid.Timestamp(now), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate ULID: %w", err)
	}

	return &Notification{
		ID:            id.String(),
		CreatedAt:     now,
		AppName:       appName,
		Summary:       summary,
		Body:          body,
		ExpireTimeout: ExpireDefault,
		Urgency:       UrgencyNormal,
		UrgencyName:   UrgencyNames[UrgencyNormal],
	}, nil
}

// Validate checks that the notification has all required fields.
func (n *Notification) Validate() error {
	if n.ID == "" {
		return ErrEmptyID
	}
	if n.AppName == "" {
		return ErrEmptyAppName
	}
	if n.Summary == "" {
		return ErrEmptySummary
	}
	if n.Urgency < 0 || n.Urgency > 2 {
		return ErrInvalidUrgency
	}
	if n.ExpireTimeout < ExpireDefault {
		return ErrInvalidExpire
	}
	return nil
}

// SetUrgency sets the urgency level and its human-readable name.
func (n *Notification) SetUrgency(level int) {
	if level < 0 || level > 2 {
		level = UrgencyNormal
	}
	n.Urgency = level
	n.UrgencyName = UrgencyNames[level]
}

// SetHint records an extra hint, allocating the map on first use.
func (n *Notification) SetHint(name string, value any) {
	if n.Hints == nil {
		n.Hints = make(map[string]any)
	}
	n.Hints[name] = value
}

// ParseUrgency converts an urgency name (case-insensitive) to its level.
func ParseUrgency(name string) (int, error) {
	for level, n := range UrgencyNames {
		if strings.EqualFold(n, name) {
			return level, nil
		}
	}
	return UrgencyNormal, fmt.Errorf("%w: %q", ErrUnknownUrgency, name)
}

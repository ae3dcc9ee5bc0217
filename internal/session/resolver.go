package session

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/jmylchreest/sysnotify/internal/procscan"
)

// Resolution errors. Each drops a single session; none is fatal.
var (
	ErrNoDisplay = errors.New("bus daemon has no DISPLAY")
	ErrNoHome    = errors.New("owning user has no home directory")
)

// xauthorityFile is the default authority file below the user's home.
const xauthorityFile = ".Xauthority"

// Session is the resolved context of one session bus. Display and
// Authority are always non-empty "KEY=VALUE" entries.
type Session struct {
	PID        int    `json:"pid" yaml:"pid"`
	UID        int    `json:"uid" yaml:"uid"`
	Display    string `json:"display" yaml:"display"`
	Authority  string `json:"authority" yaml:"authority"`
	BusAddress string `json:"bus_address,omitempty" yaml:"bus_address,omitempty"`
	RuntimeDir string `json:"runtime_dir,omitempty" yaml:"runtime_dir,omitempty"`
	Root       string `json:"root,omitempty" yaml:"root,omitempty"` // chroot target, empty = shared root
}

// DisplayName returns the bare DISPLAY value.
func (s Session) DisplayName() string {
	return valueOf(s.Display)
}

// Resolver fills in what the bus daemon environment leaves out.
type Resolver struct {
	users  UserLookup
	roots  procscan.RootResolver
	logger *slog.Logger
}

// NewResolver creates a Resolver. roots may be nil, in which case no
// session is ever confined.
func NewResolver(users UserLookup, roots procscan.RootResolver, logger *slog.Logger) *Resolver {
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{users: users, roots: roots, logger: logger}
}

// Resolve builds the Session for a bus daemon record. A missing display,
// or a missing authority that cannot be defaulted from the owner's home
// directory, drops the session with an error.
func (r *Resolver) Resolve(rec procscan.Record) (Session, error) {
	ex := Extract(rec)
	if valueOf(ex.Display) == "" {
		return Session{}, ErrNoDisplay
	}

	authority := ex.Authority
	if authority == "" {
		home, err := r.users.HomeDir(rec.EUID)
		if err != nil {
			return Session{}, fmt.Errorf("failed to look up uid %d: %w", rec.EUID, err)
		}
		if home == "" {
			return Session{}, ErrNoHome
		}
		authority = EnvXAuthority + "=" + home + "/" + xauthorityFile
	}

	s := Session{
		PID:        rec.PID,
		UID:        rec.EUID,
		Display:    ex.Display,
		Authority:  authority,
		BusAddress: ex.BusAddress,
		RuntimeDir: ex.RuntimeDir,
	}

	if r.roots != nil {
		if root, ok := r.roots.RootOf(rec.PID); ok {
			s.Root = root
		}
	}

	r.logger.Debug("resolved session",
		"pid", s.PID,
		"uid", s.UID,
		"display", s.DisplayName(),
		"root", s.Root,
	)

	return s, nil
}

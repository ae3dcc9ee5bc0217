// Package privilege scopes the identity and filesystem-root changes made
// while acting inside another user's session.
//
// Both the effective uid and the root directory are process-wide, so a
// Guard must be released before the next one is acquired. Guards are not
// safe for concurrent use and must never overlap.
package privilege

import (
	"fmt"
	"log/slog"
)

// Unconfine reverses a successful Chroot.
type Unconfine func() error

// Ops are the process-wide credential and root operations a Guard uses.
type Ops interface {
	Getresuid() (ruid, euid, suid int)
	Setresuid(ruid, euid, suid int) error
	Chroot(root string) (Unconfine, error)
}

// Guard holds the caller's original identity while it is narrowed to a
// session user.
type Guard struct {
	ops    Ops
	logger *slog.Logger

	ruid, euid, suid int

	uid       int
	narrowed  bool
	unconfine Unconfine
	released  bool
}

// Acquire confines the process to root (when non-empty) and then narrows
// the effective and saved uid to uid. Failures of either step are logged
// and tolerated: delivery is still attempted without that protection.
// The real uid is kept so Release can restore the original identity.
func Acquire(ops Ops, uid int, root string, logger *slog.Logger) *Guard {
	if logger == nil {
		logger = slog.Default()
	}

	g := &Guard{ops: ops, logger: logger, uid: uid}
	g.ruid, g.euid, g.suid = ops.Getresuid()

	if root != "" {
		undo, err := ops.Chroot(root)
		if err != nil {
			logger.Warn("chroot failed (ignoring)", "root", root, "error", err)
		} else {
			g.unconfine = undo
		}
	}

	if err := ops.Setresuid(-1, uid, uid); err != nil {
		logger.Warn("setresuid failed (ignoring)", "uid", uid, "error", err)
	} else {
		g.narrowed = true
	}

	return g
}

// Confined reports whether the chroot step took effect.
func (g *Guard) Confined() bool {
	return g.unconfine != nil
}

// Narrowed reports whether the uid switch took effect.
func (g *Guard) Narrowed() bool {
	return g.narrowed
}

// Release restores the original uids and then leaves the chroot. It is
// idempotent. A non-nil error means the process is left in an unknown
// privilege state and must not act on behalf of any further session.
func (g *Guard) Release() error {
	if g.released {
		return nil
	}
	g.released = true

	if g.narrowed {
		if err := g.ops.Setresuid(g.ruid, g.euid, g.suid); err != nil {
			return fmt.Errorf("failed to restore uids %d/%d/%d: %w", g.ruid, g.euid, g.suid, err)
		}
	}

	if g.unconfine != nil {
		if err := g.unconfine(); err != nil {
			return fmt.Errorf("failed to leave chroot: %w", err)
		}
	}

	return nil
}

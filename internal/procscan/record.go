// Package procscan takes snapshots of the live process table.
//
// A snapshot yields one Record per process with its argument vector,
// environment and effective user id. Information the kernel refuses to
// disclose for a given process (permission denied, process exited between
// listing and reading) is reported as absent, never as an error.
package procscan

import (
	"context"
)

// Record is an immutable view of one live process at scan time.
// Args and Env are nil when the information was unavailable.
type Record struct {
	PID  int
	EUID int
	Args []string
	Env  []string
}

// Source yields the process records of one scan pass.
type Source interface {
	Snapshot(ctx context.Context) ([]Record, error)
}

// RootResolver reports the filesystem root of a process. The returned path
// is suitable for chroot(2) and ok is false when the process shares the
// caller's root or the root cannot be determined.
type RootResolver interface {
	RootOf(pid int) (path string, ok bool)
}

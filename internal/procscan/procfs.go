package procscan

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"

	"github.com/prometheus/procfs"
)

// DefaultProcPath is the standard procfs mount point.
const DefaultProcPath = "/proc"

// ProcFS reads process records from a procfs mount.
type ProcFS struct {
	fs     procfs.FS
	path   string
	logger *slog.Logger
}

// NewProcFS opens the procfs mounted at path (DefaultProcPath if empty).
func NewProcFS(path string, logger *slog.Logger) (*ProcFS, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if path == "" {
		path = DefaultProcPath
	}

	fs, err := procfs.NewFS(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open procfs at %s: %w", path, err)
	}

	return &ProcFS{fs: fs, path: path, logger: logger}, nil
}

// Snapshot lists every process and reads its command line, environment
// and effective uid. Processes whose status cannot be read are skipped,
// as they have usually exited since the listing.
func (p *ProcFS) Snapshot(ctx context.Context) ([]Record, error) {
	procs, err := p.fs.AllProcs()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate processes: %w", err)
	}

	records := make([]Record, 0, len(procs))
	for _, proc := range procs {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		status, err := proc.NewStatus()
		if err != nil {
			p.logger.Debug("skipping process without status", "pid", proc.PID, "error", err)
			continue
		}

		rec := Record{
			PID:  proc.PID,
			EUID: int(status.UIDs[1]),
		}

		if args, err := proc.CmdLine(); err == nil && len(args) > 0 {
			rec.Args = args
		}
		if env, err := proc.Environ(); err == nil && len(env) > 0 {
			rec.Env = env
		}

		records = append(records, rec)
	}

	return records, nil
}

// RootOf returns <proc>/<pid>/root when the process has been chrooted
// (its root link does not point at "/").
func (p *ProcFS) RootOf(pid int) (string, bool) {
	proc, err := p.fs.Proc(pid)
	if err != nil {
		return "", false
	}

	root, err := proc.RootDir()
	if err != nil || root == "/" {
		return "", false
	}

	return filepath.Join(p.path, strconv.Itoa(pid), "root"), true
}

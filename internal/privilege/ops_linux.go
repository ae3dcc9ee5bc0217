//go:build linux

package privilege

import (
	"fmt"

	"golang.org/x/sys/unix"
)

// System returns the Ops of the running process.
func System() Ops {
	return linuxOps{}
}

type linuxOps struct{}

func (linuxOps) Getresuid() (int, int, int) {
	return unix.Getresuid()
}

// Setresuid applies to every thread of the process.
func (linuxOps) Setresuid(ruid, euid, suid int) error {
	return unix.Setresuid(ruid, euid, suid)
}

// Chroot changes the root to root and returns a function that climbs back
// out through descriptors of the old root and working directory. The
// climb needs CAP_SYS_CHROOT, so it must run after the uids are restored.
func (linuxOps) Chroot(root string) (Unconfine, error) {
	oldRoot, err := unix.Open("/", unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to open current root: %w", err)
	}
	oldCwd, err := unix.Open(".", unix.O_RDONLY|unix.O_DIRECTORY|unix.O_CLOEXEC, 0)
	if err != nil {
		oldCwd = -1
	}

	closeAll := func() {
		unix.Close(oldRoot)
		if oldCwd >= 0 {
			unix.Close(oldCwd)
		}
	}

	if err := unix.Chroot(root); err != nil {
		closeAll()
		return nil, err
	}
	if err := unix.Chdir("/"); err != nil {
		closeAll()
		return nil, fmt.Errorf("failed to enter new root: %w", err)
	}

	return func() error {
		defer closeAll()

		if err := unix.Fchdir(oldRoot); err != nil {
			return fmt.Errorf("failed to change to old root: %w", err)
		}
		if err := unix.Chroot("."); err != nil {
			return fmt.Errorf("failed to restore old root: %w", err)
		}
		if oldCwd >= 0 {
			return unix.Fchdir(oldCwd)
		}
		return unix.Chdir("/")
	}, nil
}

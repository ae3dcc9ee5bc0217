//go:build !linux

package privilege

import (
	"errors"
	"os"
)

// System returns the Ops of the running process. Outside Linux neither
// the uid switch nor confinement is available, so every Guard degrades to
// a no-op.
func System() Ops {
	return otherOps{}
}

type otherOps struct{}

func (otherOps) Getresuid() (int, int, int) {
	return os.Getuid(), os.Geteuid(), os.Geteuid()
}

func (otherOps) Setresuid(int, int, int) error {
	return errors.ErrUnsupported
}

func (otherOps) Chroot(string) (Unconfine, error) {
	return nil, errors.ErrUnsupported
}

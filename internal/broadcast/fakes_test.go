package broadcast

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/jmylchreest/sysnotify/internal/model"
	"github.com/jmylchreest/sysnotify/internal/privilege"
	"github.com/jmylchreest/sysnotify/internal/procscan"
	"github.com/jmylchreest/sysnotify/internal/session"
)

// journal is the ordered log of every side effect seen by the fakes.
type journal struct {
	events []string
}

func (j *journal) add(format string, args ...any) {
	j.events = append(j.events, fmt.Sprintf(format, args...))
}

func (j *journal) count(prefix string) int {
	n := 0
	for _, e := range j.events {
		if strings.HasPrefix(e, prefix) {
			n++
		}
	}
	return n
}

type fakeSource struct {
	records []procscan.Record
	err     error
}

func (f *fakeSource) Snapshot(context.Context) ([]procscan.Record, error) {
	return f.records, f.err
}

type fakeUsers map[int]string

func (f fakeUsers) HomeDir(uid int) (string, error) {
	home, ok := f[uid]
	if !ok {
		return "", errors.New("unknown user")
	}
	return home, nil
}

type fakeOps struct {
	j *journal

	chrootErr error
	narrowErr error
	// restoreErrAt fails the n-th restore (1-based); 0 never fails.
	restoreErrAt int
	restores     int
}

func (f *fakeOps) Getresuid() (int, int, int) {
	return 0, 0, 0
}

func (f *fakeOps) Setresuid(ruid, euid, suid int) error {
	if ruid == -1 {
		f.j.add("narrow %d", euid)
		return f.narrowErr
	}
	f.restores++
	f.j.add("restore %d", euid)
	if f.restoreErrAt == f.restores {
		return errors.New("setresuid: resource temporarily unavailable")
	}
	return nil
}

func (f *fakeOps) Chroot(root string) (privilege.Unconfine, error) {
	f.j.add("chroot %s", root)
	if f.chrootErr != nil {
		return nil, f.chrootErr
	}
	return func() error {
		f.j.add("unchroot")
		return nil
	}, nil
}

type fakeEnv struct {
	j    *journal
	vars map[string]string
	err  error
}

func (f *fakeEnv) Setenv(key, value string) error {
	if f.err != nil {
		return f.err
	}
	f.j.add("setenv %s=%s", key, value)
	f.vars[key] = value
	return nil
}

func (f *fakeEnv) Unsetenv(key string) error {
	if f.err != nil {
		return f.err
	}
	f.j.add("unsetenv %s", key)
	delete(f.vars, key)
	return nil
}

type fakeChannel struct {
	j   *journal
	env *fakeEnv
	// fail lists DISPLAY values whose delivery fails.
	fail map[string]bool
}

func (f *fakeChannel) Reset() error {
	f.j.add("reset")
	return nil
}

func (f *fakeChannel) Deliver(_ context.Context, _ session.Session, n *model.Notification) (uint32, error) {
	display := f.env.vars["DISPLAY"]
	f.j.add("deliver %s %s", display, n.Summary)
	if f.fail[display] {
		return 0, os.ErrDeadlineExceeded
	}
	return 7, nil
}

type harness struct {
	j       *journal
	ops     *fakeOps
	env     *fakeEnv
	channel *fakeChannel
}

func newHarness() *harness {
	j := &journal{}
	env := &fakeEnv{j: j, vars: map[string]string{}}
	return &harness{
		j:       j,
		ops:     &fakeOps{j: j},
		env:     env,
		channel: &fakeChannel{j: j, env: env, fail: map[string]bool{}},
	}
}

func (h *harness) dispatcher(opts DispatcherOptions) *Dispatcher {
	return NewDispatcher(h.ops, h.env, h.channel, opts, nil)
}

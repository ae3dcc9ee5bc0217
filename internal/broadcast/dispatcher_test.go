package broadcast

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/sysnotify/internal/model"
	"github.com/jmylchreest/sysnotify/internal/session"
)

func testNotification(t *testing.T) *model.Notification {
	t.Helper()
	n, err := model.NewNotification("sysnotify", "Maintenance", "Reboot at 18:00")
	require.NoError(t, err)
	return n
}

func aliceSession() session.Session {
	return session.Session{
		PID:       4242,
		UID:       1000,
		Display:   "DISPLAY=:0",
		Authority: "XAUTHORITY=/home/alice/.Xauthority",
	}
}

func TestDispatch_Sequence(t *testing.T) {
	h := newHarness()
	d := h.dispatcher(DispatcherOptions{Confine: true})

	s := aliceSession()
	s.Root = "/proc/4242/root"
	s.BusAddress = "unix:path=/run/user/1000/bus"

	out, err := d.Dispatch(context.Background(), s, testNotification(t))
	require.NoError(t, err)

	assert.True(t, out.Delivered)
	assert.True(t, out.Confined)
	assert.True(t, out.Narrowed)
	assert.Equal(t, uint32(7), out.NotificationID)
	assert.Empty(t, out.Error)

	assert.Equal(t, []string{
		"chroot /proc/4242/root",
		"narrow 1000",
		"setenv DISPLAY=:0",
		"setenv XAUTHORITY=/home/alice/.Xauthority",
		"setenv DBUS_SESSION_BUS_ADDRESS=unix:path=/run/user/1000/bus",
		"unsetenv XDG_RUNTIME_DIR",
		"reset",
		"deliver :0 Maintenance",
		"restore 0",
		"unchroot",
	}, h.j.events)
}

func TestDispatch_ConfineDisabled(t *testing.T) {
	h := newHarness()
	d := h.dispatcher(DispatcherOptions{Confine: false})

	s := aliceSession()
	s.Root = "/proc/4242/root"

	out, err := d.Dispatch(context.Background(), s, testNotification(t))
	require.NoError(t, err)

	assert.False(t, out.Confined)
	assert.Zero(t, h.j.count("chroot"))
	assert.Zero(t, h.j.count("unchroot"))
}

func TestDispatch_ChrootFailureStillDelivers(t *testing.T) {
	h := newHarness()
	h.ops.chrootErr = errors.New("operation not permitted")
	d := h.dispatcher(DispatcherOptions{Confine: true})

	s := aliceSession()
	s.Root = "/proc/4242/root"

	out, err := d.Dispatch(context.Background(), s, testNotification(t))
	require.NoError(t, err)

	assert.True(t, out.Delivered)
	assert.False(t, out.Confined)
	assert.Equal(t, 1, h.j.count("narrow"))
	assert.Equal(t, 1, h.j.count("deliver"))
	assert.Zero(t, h.j.count("unchroot"))
}

func TestDispatch_NarrowFailureStillDelivers(t *testing.T) {
	h := newHarness()
	h.ops.narrowErr = errors.New("operation not permitted")
	d := h.dispatcher(DispatcherOptions{Confine: true})

	out, err := d.Dispatch(context.Background(), aliceSession(), testNotification(t))
	require.NoError(t, err)

	assert.True(t, out.Delivered)
	assert.False(t, out.Narrowed)
	assert.Zero(t, h.j.count("restore"))
}

func TestDispatch_DeliveryFailureRestores(t *testing.T) {
	h := newHarness()
	h.channel.fail[":0"] = true
	d := h.dispatcher(DispatcherOptions{Confine: true})

	s := aliceSession()
	s.Root = "/proc/4242/root"

	out, err := d.Dispatch(context.Background(), s, testNotification(t))
	require.NoError(t, err)

	assert.False(t, out.Delivered)
	assert.NotEmpty(t, out.Error)
	assert.Equal(t, 1, h.j.count("restore"))
	assert.Equal(t, 1, h.j.count("unchroot"))
}

func TestDispatch_EnvironmentFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.env.err = errors.New("cannot allocate memory")
	d := h.dispatcher(DispatcherOptions{})

	out, err := d.Dispatch(context.Background(), aliceSession(), testNotification(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatal)

	assert.False(t, out.Delivered)
	assert.Zero(t, h.j.count("deliver"))
	// The identity is still restored on the way out.
	assert.Equal(t, 1, h.j.count("restore"))
}

func TestDispatch_RestoreFailureIsFatal(t *testing.T) {
	h := newHarness()
	h.ops.restoreErrAt = 1
	d := h.dispatcher(DispatcherOptions{})

	out, err := d.Dispatch(context.Background(), aliceSession(), testNotification(t))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrFatal)
	assert.False(t, out.Delivered)
}

func TestDispatch_ClearsStaleBusVariables(t *testing.T) {
	h := newHarness()
	h.env.vars["DBUS_SESSION_BUS_ADDRESS"] = "unix:path=/run/user/1001/bus"
	h.env.vars["XDG_RUNTIME_DIR"] = "/run/user/1001"
	d := h.dispatcher(DispatcherOptions{})

	_, err := d.Dispatch(context.Background(), aliceSession(), testNotification(t))
	require.NoError(t, err)

	assert.NotContains(t, h.env.vars, "DBUS_SESSION_BUS_ADDRESS")
	assert.NotContains(t, h.env.vars, "XDG_RUNTIME_DIR")
	assert.Equal(t, ":0", h.env.vars["DISPLAY"])
}

type blockingChannel struct{}

func (blockingChannel) Reset() error { return nil }

func (blockingChannel) Deliver(ctx context.Context, _ session.Session, _ *model.Notification) (uint32, error) {
	<-ctx.Done()
	return 0, ctx.Err()
}

func TestDispatch_Timeout(t *testing.T) {
	h := newHarness()
	d := NewDispatcher(h.ops, h.env, blockingChannel{}, DispatcherOptions{Timeout: 10 * time.Millisecond}, nil)

	out, err := d.Dispatch(context.Background(), aliceSession(), testNotification(t))
	require.NoError(t, err)

	assert.False(t, out.Delivered)
	assert.Contains(t, out.Error, "deadline exceeded")
	assert.Equal(t, 1, h.j.count("restore"))
}

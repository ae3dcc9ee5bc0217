package dbus

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/jmylchreest/sysnotify/internal/session"
)

// ErrNoBusAddress is returned when no bus address can be found for a
// session. The notification is not sent anywhere else instead.
var ErrNoBusAddress = errors.New("no session bus address found")

// LaunchBinary is the helper used for X11 autolaunch lookups.
const LaunchBinary = "dbus-launch"

// machineIDPaths are tried in order for the D-Bus machine id.
var machineIDPaths = []string{"/etc/machine-id", "/var/lib/dbus/machine-id"}

// AddressFinder works out the bus address of one session. It never falls
// back to the caller's own session bus.
type AddressFinder struct {
	users  session.UserLookup
	logger *slog.Logger

	isSocket  func(path string) bool
	readFile  func(path string) ([]byte, error)
	machineID func() (string, error)
	launch    func(ctx context.Context, machineID string) (string, error)
}

// NewAddressFinder creates an AddressFinder. users resolves the home
// directory holding the autolaunch session files; it may be nil.
func NewAddressFinder(users session.UserLookup, logger *slog.Logger) *AddressFinder {
	if logger == nil {
		logger = slog.Default()
	}
	return &AddressFinder{
		users:     users,
		logger:    logger,
		isSocket:  isSocket,
		readFile:  os.ReadFile,
		machineID: readMachineID,
		launch:    autolaunch,
	}
}

// Find returns the address to dial for s, trying in order the address
// the bus daemon was started with, the bus socket in the session's
// runtime directory, the user's autolaunch session file, and finally an
// X11 autolaunch lookup through DISPLAY.
func (f *AddressFinder) Find(ctx context.Context, s session.Session) (string, error) {
	if s.BusAddress != "" {
		return s.BusAddress, nil
	}

	if s.RuntimeDir != "" {
		path := s.RuntimeDir + "/bus"
		if f.isSocket(path) {
			return "unix:path=" + path, nil
		}
	}

	display := s.DisplayName()
	if display == "" {
		return "", ErrNoBusAddress
	}

	mid, err := f.machineID()
	if err != nil {
		f.logger.Debug("no machine id, skipping autolaunch", "error", err)
		return "", ErrNoBusAddress
	}

	if addr := f.sessionFile(s.UID, mid, display); addr != "" {
		return addr, nil
	}

	addr, err := f.launch(ctx, mid)
	if err != nil {
		return "", fmt.Errorf("%w: autolaunch: %w", ErrNoBusAddress, err)
	}
	if addr == "" {
		return "", ErrNoBusAddress
	}
	return addr, nil
}

// sessionFile reads ~/.dbus/session-bus/<machine-id>-<display>, written
// by dbus-launch for X11 sessions.
func (f *AddressFinder) sessionFile(uid int, machineID, display string) string {
	if f.users == nil {
		return ""
	}
	home, err := f.users.HomeDir(uid)
	if err != nil || home == "" {
		return ""
	}

	name := machineID + "-" + displaySuffix(display)
	data, err := f.readFile(filepath.Join(home, ".dbus", "session-bus", name))
	if err != nil {
		return ""
	}
	return parseSessionFile(data)
}

// displaySuffix drops the screen number and a leading colon, so ":0.0"
// becomes "0" and "host:1" stays "host:1".
func displaySuffix(display string) string {
	if i := strings.LastIndexByte(display, ':'); i >= 0 {
		if dot := strings.IndexByte(display[i:], '.'); dot >= 0 {
			display = display[:i+dot]
		}
	}
	return strings.TrimPrefix(display, ":")
}

// parseSessionFile extracts DBUS_SESSION_BUS_ADDRESS from a session file.
func parseSessionFile(data []byte) string {
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		value, ok := strings.CutPrefix(line, session.EnvBusAddress+"=")
		if !ok {
			continue
		}
		return strings.Trim(value, `'"`)
	}
	return ""
}

func isSocket(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode()&os.ModeSocket != 0
}

func readMachineID() (string, error) {
	var lastErr error
	for _, path := range machineIDPaths {
		data, err := os.ReadFile(path)
		if err != nil {
			lastErr = err
			continue
		}
		if id := strings.TrimSpace(string(data)); id != "" {
			return id, nil
		}
	}
	if lastErr == nil {
		lastErr = errors.New("machine id is empty")
	}
	return "", lastErr
}

// autolaunch asks dbus-launch for the bus registered on the X display in
// the process environment.
func autolaunch(ctx context.Context, machineID string) (string, error) {
	cmd := exec.CommandContext(ctx, LaunchBinary,
		"--autolaunch="+machineID, "--binary-syntax", "--close-stderr")
	out, err := cmd.Output()
	if err != nil {
		return "", err
	}
	// The address is NUL-terminated, followed by the daemon pid and window id.
	addr, _, _ := bytes.Cut(out, []byte{0})
	return string(addr), nil
}

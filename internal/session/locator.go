// Package session recognises per-user session bus daemons in a process
// snapshot and rebuilds the display context a notification needs to reach
// each of them.
package session

import (
	"path/filepath"
	"strings"

	"github.com/jmylchreest/sysnotify/internal/procscan"
)

// Defaults for recognising a session bus daemon.
const (
	DefaultBusBinary   = "dbus-daemon"
	DefaultSessionFlag = "--session"
)

// Environment keys read from the bus daemon.
const (
	EnvDisplay    = "DISPLAY"
	EnvXAuthority = "XAUTHORITY"
	EnvBusAddress = "DBUS_SESSION_BUS_ADDRESS"
	EnvRuntimeDir = "XDG_RUNTIME_DIR"
)

const addressFlag = "--address="

// Locator classifies process records. The zero value is not usable; use
// NewLocator.
type Locator struct {
	binary string
	flag   string
}

// NewLocator returns a Locator matching binary invoked with flag. Empty
// arguments select the dbus-daemon defaults.
func NewLocator(binary, flag string) *Locator {
	if binary == "" {
		binary = DefaultBusBinary
	}
	if flag == "" {
		flag = DefaultSessionFlag
	}
	return &Locator{binary: binary, flag: flag}
}

// IsSessionBus reports whether rec is a session-scoped bus daemon.
// The daemon refuses to start with more than one configuration, so a
// session flag alone identifies a per-user instance.
func (l *Locator) IsSessionBus(rec procscan.Record) bool {
	if len(rec.Args) == 0 {
		return false
	}

	if filepath.Base(rec.Args[0]) != l.binary {
		return false
	}

	for _, arg := range rec.Args[1:] {
		if arg == l.flag {
			return true
		}
	}
	return false
}

// Lookup returns the first "KEY=VALUE" entry of env whose key is exactly
// key. It returns the whole entry, ready to be split or re-exported.
// A nil environment and a missing key are indistinguishable.
func Lookup(env []string, key string) (string, bool) {
	prefix := key + "="
	for _, entry := range env {
		if strings.HasPrefix(entry, prefix) {
			return entry, true
		}
	}
	return "", false
}

// Extracted holds the raw session variables found on a bus daemon.
// Display and Authority are full "KEY=VALUE" entries.
type Extracted struct {
	Display    string
	Authority  string
	BusAddress string // bare address, empty if unknown
	RuntimeDir string // bare path, empty if unknown
}

// Extract pulls the session variables out of rec without modifying it.
func Extract(rec procscan.Record) Extracted {
	var ex Extracted

	ex.Display, _ = Lookup(rec.Env, EnvDisplay)
	ex.Authority, _ = Lookup(rec.Env, EnvXAuthority)

	if entry, ok := Lookup(rec.Env, EnvBusAddress); ok {
		ex.BusAddress = valueOf(entry)
	} else {
		ex.BusAddress = addressArg(rec.Args)
	}
	if entry, ok := Lookup(rec.Env, EnvRuntimeDir); ok {
		ex.RuntimeDir = valueOf(entry)
	}

	return ex
}

// addressArg returns the listen address given on the daemon command line.
// systemd socket activation addresses are not connectable and are ignored.
func addressArg(args []string) string {
	if len(args) < 2 {
		return ""
	}
	for _, arg := range args[1:] {
		if addr, ok := strings.CutPrefix(arg, addressFlag); ok {
			if addr == "" || strings.HasPrefix(addr, "systemd:") {
				return ""
			}
			return addr
		}
	}
	return ""
}

func valueOf(entry string) string {
	_, v, _ := strings.Cut(entry, "=")
	return v
}

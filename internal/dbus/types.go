package dbus

import (
	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/sysnotify/internal/model"
)

const (
	// DBusInterface is the notification interface name.
	DBusInterface = "org.freedesktop.Notifications"
	// DBusPath is the notification object path.
	DBusPath = "/org/freedesktop/Notifications"
	// DBusBusName is the well-known name of the notification server.
	DBusBusName = "org.freedesktop.Notifications"

	methodNotify               = DBusInterface + ".Notify"
	methodGetServerInformation = DBusInterface + ".GetServerInformation"
)

// ServerInfo is the reply of GetServerInformation.
type ServerInfo struct {
	Name        string
	Vendor      string
	Version     string
	SpecVersion string
}

// Hints builds the Notify hints dictionary for n. Urgency is always
// sent; category only when set. Extra hints override neither.
func Hints(n *model.Notification) map[string]dbus.Variant {
	hints := make(map[string]dbus.Variant, len(n.Hints)+2)
	for name, value := range n.Hints {
		hints[name] = dbus.MakeVariant(value)
	}

	hints["urgency"] = dbus.MakeVariant(byte(n.Urgency))
	if n.Category != "" {
		hints["category"] = dbus.MakeVariant(n.Category)
	}

	return hints
}

// NotifyArgs returns the Notify call arguments for n, in the order
// app_name, replaces_id, app_icon, summary, body, actions, hints,
// expire_timeout.
func NotifyArgs(n *model.Notification) []any {
	return []any{
		n.AppName,
		uint32(0),
		n.AppIcon,
		n.Summary,
		n.Body,
		[]string{},
		Hints(n),
		int32(n.ExpireTimeout),
	}
}

// Package dbus delivers notifications to a session's
// org.freedesktop.Notifications service. Every delivery opens a private
// connection to the bus of the target session, found from the session's
// own address, runtime directory or X11 autolaunch data. The caller's
// own session bus is never used as a fallback.
package dbus

package dbus

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/sysnotify/internal/model"
	"github.com/jmylchreest/sysnotify/internal/session"
)

// Client sends notifications over a private session bus connection.
// It holds at most one connection, the one opened by the last Deliver.
type Client struct {
	conn   *dbus.Conn
	finder *AddressFinder
	logger *slog.Logger
}

// NewClient creates a new Client. users resolves home directories for
// the autolaunch session files.
func NewClient(users session.UserLookup, logger *slog.Logger) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		finder: NewAddressFinder(users, logger),
		logger: logger,
	}
}

// Reset drops the current connection so the next Deliver reconnects.
func (c *Client) Reset() error {
	if c.conn == nil {
		return nil
	}
	err := c.conn.Close()
	c.conn = nil
	if err != nil {
		return fmt.Errorf("failed to close connection: %w", err)
	}
	return nil
}

// Close releases the current connection, if any.
func (c *Client) Close() error {
	return c.Reset()
}

// Deliver connects to the bus of s and sends n. It authenticates as the
// current effective uid, which is what the bus sees on the socket.
func (c *Client) Deliver(ctx context.Context, s session.Session, n *model.Notification) (uint32, error) {
	if c.conn != nil {
		if err := c.Reset(); err != nil {
			c.logger.Debug("stale connection close failed", "error", err)
		}
	}

	addr, err := c.finder.Find(ctx, s)
	if err != nil {
		return 0, err
	}

	conn, err := dbus.Dial(addr, dbus.WithContext(ctx))
	if err != nil {
		return 0, fmt.Errorf("failed to connect to session bus %s: %w", addr, err)
	}
	c.conn = conn

	uid := strconv.Itoa(os.Geteuid())
	if err := conn.Auth([]dbus.Auth{dbus.AuthExternal(uid)}); err != nil {
		return 0, fmt.Errorf("failed to authenticate as uid %s: %w", uid, err)
	}
	if err := conn.Hello(); err != nil {
		return 0, fmt.Errorf("failed to register on session bus: %w", err)
	}

	obj := conn.Object(DBusBusName, DBusPath)
	id, err := notify(ctx, obj, n)
	if err != nil {
		return 0, err
	}

	if c.logger.Enabled(ctx, slog.LevelDebug) {
		if info, err := serverInfo(ctx, obj); err == nil {
			c.logger.Debug("notification delivered",
				"id", id,
				"address", addr,
				"server", info.Name,
				"vendor", info.Vendor,
				"version", info.Version,
			)
		}
	}

	return id, nil
}

// caller is the part of dbus.BusObject used to talk to the server.
type caller interface {
	CallWithContext(ctx context.Context, method string, flags dbus.Flags, args ...any) *dbus.Call
}

// notify sends n and returns the id assigned by the server.
func notify(ctx context.Context, obj caller, n *model.Notification) (uint32, error) {
	call := obj.CallWithContext(ctx, methodNotify, 0, NotifyArgs(n)...)
	if call.Err != nil {
		return 0, fmt.Errorf("notify call failed: %w", call.Err)
	}

	var id uint32
	if err := call.Store(&id); err != nil {
		return 0, fmt.Errorf("failed to read notification id: %w", err)
	}
	return id, nil
}

// serverInfo queries the notification server.
func serverInfo(ctx context.Context, obj caller) (ServerInfo, error) {
	var info ServerInfo
	call := obj.CallWithContext(ctx, methodGetServerInformation, 0)
	if call.Err != nil {
		return info, call.Err
	}
	err := call.Store(&info.Name, &info.Vendor, &info.Version, &info.SpecVersion)
	return info, err
}

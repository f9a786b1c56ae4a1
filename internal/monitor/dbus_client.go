//go:build linux

package monitor

import (
	"context"
	"fmt"
	"strings"

	"github.com/godbus/dbus/v5"
)

// StdDBusClient is the real implementation using godbus
type StdDBusClient struct {
	conn *dbus.Conn
}

// NewStdDBusClient opens a private connection to the session bus
func NewStdDBusClient() (*StdDBusClient, error) {
	conn, err := dbus.ConnectSessionBus()
	if err != nil {
		return nil, fmt.Errorf("session bus connection failed: %w", err)
	}
	return &StdDBusClient{conn: conn}, nil
}

// Close closes the D-Bus connection
func (c *StdDBusClient) Close() error {
	return c.conn.Close()
}

// AddMatchSignal adds a signal match rule
func (c *StdDBusClient) AddMatchSignal(options ...dbus.MatchOption) error {
	return c.conn.AddMatchSignal(options...)
}

// RemoveMatchSignal removes a signal match rule
func (c *StdDBusClient) RemoveMatchSignal(options ...dbus.MatchOption) error {
	return c.conn.RemoveMatchSignal(options...)
}

// Signal registers a channel to receive D-Bus signals
func (c *StdDBusClient) Signal(ch chan<- *dbus.Signal) {
	c.conn.Signal(ch)
}

// RemoveSignal unregisters a signal channel
func (c *StdDBusClient) RemoveSignal(ch chan<- *dbus.Signal) {
	c.conn.RemoveSignal(ch)
}

// ListNames returns all names on the bus
func (c *StdDBusClient) ListNames(ctx context.Context) ([]string, error) {
	var names []string
	err := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.ListNames", 0).Store(&names)
	return names, err
}

// GetNameOwner returns the unique name that owns the given well-known name
func (c *StdDBusClient) GetNameOwner(ctx context.Context, name string) (string, error) {
	var owner string
	err := c.conn.BusObject().CallWithContext(ctx, "org.freedesktop.DBus.GetNameOwner", 0, name).Store(&owner)
	return owner, err
}

// GetProperty retrieves a property through org.freedesktop.DBus.Properties.Get
func (c *StdDBusClient) GetProperty(ctx context.Context, service, path, prop string) (dbus.Variant, error) {
	idx := strings.LastIndex(prop, ".")
	if idx <= 0 || idx == len(prop)-1 {
		return dbus.Variant{}, fmt.Errorf("invalid property name %q", prop)
	}

	var value dbus.Variant
	obj := c.conn.Object(service, dbus.ObjectPath(path))
	err := obj.CallWithContext(ctx, dbusPropertiesIface+".Get", 0, prop[:idx], prop[idx+1:]).Store(&value)
	return value, err
}

// Call invokes a method and discards its reply
func (c *StdDBusClient) Call(ctx context.Context, service, path, method string, args ...interface{}) error {
	obj := c.conn.Object(service, dbus.ObjectPath(path))
	return obj.CallWithContext(ctx, method, 0, args...).Err
}

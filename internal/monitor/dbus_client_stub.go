//go:build !linux

package monitor

import (
	"context"
	"errors"

	"github.com/godbus/dbus/v5"
)

var errUnsupported = errors.New("MPRIS monitoring is only supported on Linux systems")

// StdDBusClient stub for non-Linux platforms
type StdDBusClient struct{}

// NewStdDBusClient returns an error on non-Linux platforms
func NewStdDBusClient() (*StdDBusClient, error) {
	return nil, errUnsupported
}

func (c *StdDBusClient) Close() error                                { return nil }
func (c *StdDBusClient) AddMatchSignal(...dbus.MatchOption) error    { return errUnsupported }
func (c *StdDBusClient) RemoveMatchSignal(...dbus.MatchOption) error { return errUnsupported }
func (c *StdDBusClient) Signal(chan<- *dbus.Signal)                  {}
func (c *StdDBusClient) RemoveSignal(chan<- *dbus.Signal)            {}
func (c *StdDBusClient) ListNames(context.Context) ([]string, error) { return nil, errUnsupported }
func (c *StdDBusClient) GetNameOwner(context.Context, string) (string, error) {
	return "", errUnsupported
}
func (c *StdDBusClient) GetProperty(context.Context, string, string, string) (dbus.Variant, error) {
	return dbus.Variant{}, errUnsupported
}
func (c *StdDBusClient) Call(context.Context, string, string, string, ...interface{}) error {
	return errUnsupported
}

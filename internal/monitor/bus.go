package monitor

import (
	"context"

	"github.com/godbus/dbus/v5"
)

const (
	// MprisPrefix is the common prefix of every MPRIS player bus name
	MprisPrefix = "org.mpris.MediaPlayer2."
	// MprisPath is the object path every MPRIS player exports
	MprisPath = "/org/mpris/MediaPlayer2"
	// MprisPlayerIface is the player interface holding status, metadata and position
	MprisPlayerIface = "org.mpris.MediaPlayer2.Player"

	propPlaybackStatus = MprisPlayerIface + ".PlaybackStatus"
	propMetadata       = MprisPlayerIface + ".Metadata"
	propPosition       = MprisPlayerIface + ".Position"

	dbusPropertiesIface     = "org.freedesktop.DBus.Properties"
	signalPropertiesChanged = dbusPropertiesIface + ".PropertiesChanged"
	signalNameOwnerChanged  = "org.freedesktop.DBus.NameOwnerChanged"
)

// DBusClient defines the interface for D-Bus operations.
// This abstraction allows us to mock D-Bus interactions in tests.
//
//go:generate mockgen -destination=mocks/dbus_client_mock.go -package=mocks github.com/genricoloni/spotline/internal/monitor DBusClient
type DBusClient interface {
	// Close closes the D-Bus connection
	Close() error

	// AddMatchSignal adds a signal match rule
	AddMatchSignal(options ...dbus.MatchOption) error

	// RemoveMatchSignal removes a match rule previously added with the same options
	RemoveMatchSignal(options ...dbus.MatchOption) error

	// Signal registers a channel to receive D-Bus signals
	Signal(ch chan<- *dbus.Signal)

	// RemoveSignal unregisters a channel passed to Signal
	RemoveSignal(ch chan<- *dbus.Signal)

	// ListNames returns all names on the bus
	ListNames(ctx context.Context) ([]string, error)

	// GetNameOwner returns the unique name that owns the given well-known name
	GetNameOwner(ctx context.Context, name string) (string, error)

	// GetProperty retrieves a property from a D-Bus object
	// service: The bus name (e.g., "org.mpris.MediaPlayer2.spotify")
	// path: The object path (e.g., "/org/mpris/MediaPlayer2")
	// prop: The qualified property name (e.g., "org.mpris.MediaPlayer2.Player.Metadata")
	GetProperty(ctx context.Context, service, path, prop string) (dbus.Variant, error)

	// Call invokes a method and discards its reply
	// method: The qualified method name (e.g., "org.mpris.MediaPlayer2.Player.Next")
	Call(ctx context.Context, service, path, method string, args ...interface{}) error
}

package monitor

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"sync"
	"time"

	"github.com/genricoloni/spotline/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const controlTimeout = 5 * time.Second

// ErrNotConnected is returned when an operation needs an active player
var ErrNotConnected = errors.New("no active player connection")

// ErrConnectorClosed is returned by Connect after Close
var ErrConnectorClosed = errors.New("connector closed")

// Subscription is a live PropertiesChanged match rule for one player.
// Release is idempotent.
type Subscription struct {
	conn     DBusClient
	opts     []dbus.MatchOption
	mu       sync.Mutex
	released bool
}

// Release removes the match rule
func (s *Subscription) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.released {
		return nil
	}
	s.released = true
	return s.conn.RemoveMatchSignal(s.opts...)
}

// Released reports whether Release has been called
func (s *Subscription) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// Connection is the single active link to a player: its names, a cache of
// player properties and the subscription keeping the cache fresh
type Connection struct {
	// Name is the well-known bus name
	Name string
	// Owner is the unique bus name signals are sent from
	Owner string
	props map[string]dbus.Variant
	sub   *Subscription
}

// Metadata extracts the current track from the cached properties
func (c *Connection) Metadata() (domain.TrackMetadata, bool) {
	variant, ok := c.props["Metadata"]
	if !ok {
		return domain.TrackMetadata{}, false
	}
	metadata, ok := variant.Value().(map[string]dbus.Variant)
	if !ok {
		return domain.TrackMetadata{}, false
	}
	return ExtractTrack(metadata)
}

// Status returns the cached playback status
func (c *Connection) Status() domain.PlayerStatus {
	if variant, ok := c.props["PlaybackStatus"]; ok {
		if s, ok := variant.Value().(string); ok {
			return domain.ParsePlayerStatus(s)
		}
	}
	return domain.StatusStopped
}

// Subscription returns the connection's match rule handle
func (c *Connection) Subscription() *Subscription {
	return c.sub
}

// Connector owns at most one active player connection
type Connector struct {
	logger *zap.Logger
	conn   DBusClient
	mu     sync.Mutex
	active *Connection
	closed bool

	// ctx bounds fire-and-forget control calls; Close cancels it
	ctx      context.Context
	cancel   context.CancelFunc
	controls sync.WaitGroup
}

// NewConnector creates a connector over the given bus
func NewConnector(logger *zap.Logger, conn DBusClient) *Connector {
	ctx, cancel := context.WithCancel(context.Background())
	return &Connector{
		logger: logger.With(zap.String("component", "connector")),
		conn:   conn,
		ctx:    ctx,
		cancel: cancel,
	}
}

func propertiesMatch(name string) []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchSender(name),
		dbus.WithMatchObjectPath(MprisPath),
		dbus.WithMatchInterface(dbusPropertiesIface),
		dbus.WithMatchMember("PropertiesChanged"),
	}
}

// Connect replaces the active connection with one bound to name.
// The player is queried before the previous connection is touched, so a
// failed query leaves the previous connection in place. Once the previous
// subscription is released a failed subscribe leaves no active connection.
// No retries are attempted.
func (c *Connector) Connect(ctx context.Context, name string) (*Connection, error) {
	owner, err := c.conn.GetNameOwner(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve owner of %s: %w", name, err)
	}

	props := make(map[string]dbus.Variant, 2)
	metadata, err := c.conn.GetProperty(ctx, name, MprisPath, propMetadata)
	if err != nil {
		return nil, fmt.Errorf("failed to get metadata: %w", err)
	}
	props["Metadata"] = metadata

	if status, err := c.conn.GetProperty(ctx, name, MprisPath, propPlaybackStatus); err == nil {
		props["PlaybackStatus"] = status
	} else {
		c.logger.Debug("Failed to get playback status", zap.String("player", name), zap.Error(err))
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, ErrConnectorClosed
	}

	// The old subscription must be gone before the new one is added
	if err := c.releaseLocked(); err != nil {
		c.logger.Warn("Failed to release previous subscription", zap.Error(err))
	}

	opts := propertiesMatch(name)
	if err := c.conn.AddMatchSignal(opts...); err != nil {
		return nil, fmt.Errorf("failed to subscribe to %s: %w", name, err)
	}

	c.active = &Connection{
		Name:  name,
		Owner: owner,
		props: props,
		sub:   &Subscription{conn: c.conn, opts: opts},
	}

	c.logger.Info("Connected to player",
		zap.String("player", name),
		zap.String("unique", owner))

	return c.active, nil
}

// Disconnect releases the active connection, if any
func (c *Connector) Disconnect() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.releaseLocked()
}

// Close disconnects, cancels pending control calls and waits for them to
// return. The connector cannot be reconnected afterwards.
func (c *Connector) Close() error {
	c.mu.Lock()
	c.closed = true
	err := c.releaseLocked()
	c.mu.Unlock()

	c.cancel()
	c.controls.Wait()
	return err
}

func (c *Connector) releaseLocked() error {
	if c.active == nil {
		return nil
	}
	prev := c.active
	c.active = nil

	c.logger.Info("Disconnected from player", zap.String("player", prev.Name))
	return prev.sub.Release()
}

// Active returns the current connection or nil
func (c *Connector) Active() *Connection {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// HandlePropertiesChanged merges a PropertiesChanged signal from the active
// player into its cache. It reports whether the signal was accepted.
func (c *Connector) HandlePropertiesChanged(sig *dbus.Signal) bool {
	if sig == nil || sig.Name != signalPropertiesChanged || sig.Path != MprisPath || len(sig.Body) < 2 {
		return false
	}

	iface, ok := sig.Body[0].(string)
	if !ok || iface != MprisPlayerIface {
		return false
	}
	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return false
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.active == nil || (sig.Sender != c.active.Owner && sig.Sender != c.active.Name) {
		return false
	}

	// Copy so that a Connection handed out earlier never observes a partial update
	props := maps.Clone(c.active.props)
	for key, value := range changed {
		props[key] = value
	}
	if len(sig.Body) >= 3 {
		if invalidated, ok := sig.Body[2].([]string); ok {
			for _, key := range invalidated {
				delete(props, key)
			}
		}
	}
	c.active.props = props

	c.logger.Debug("Player properties changed",
		zap.String("player", c.active.Name),
		zap.Int("properties", len(changed)))
	return true
}

// GetPosition returns the playback position of the named player in microseconds
func (c *Connector) GetPosition(ctx context.Context, name string) (int64, error) {
	variant, err := c.conn.GetProperty(ctx, name, MprisPath, propPosition)
	if err != nil {
		return 0, fmt.Errorf("failed to get position: %w", err)
	}

	switch pos := variant.Value().(type) {
	case int64:
		return pos, nil
	case uint64:
		return int64(pos), nil
	case int32:
		return int64(pos), nil
	default:
		return 0, fmt.Errorf("unexpected position type %T", variant.Value())
	}
}

// Invoke calls a transport method on the named player and waits for the reply
func (c *Connector) Invoke(ctx context.Context, name string, action domain.Action) error {
	if err := c.conn.Call(ctx, name, MprisPath, MprisPlayerIface+"."+string(action)); err != nil {
		return fmt.Errorf("failed to invoke %s on %s: %w", action, name, err)
	}
	return nil
}

// Control sends a transport action to the active player without waiting
// for completion. Failures are logged and swallowed.
func (c *Connector) Control(action domain.Action) error {
	c.mu.Lock()
	active := c.active
	if active == nil || c.closed {
		c.mu.Unlock()
		c.logger.Debug("Control action without active player", zap.String("action", string(action)))
		return ErrNotConnected
	}
	// Registered under the lock so Close cannot miss it
	c.controls.Add(1)
	c.mu.Unlock()

	go func(name string) {
		defer c.controls.Done()
		ctx, cancel := context.WithTimeout(c.ctx, controlTimeout)
		defer cancel()
		if err := c.Invoke(ctx, name, action); err != nil {
			c.logger.Warn("Control action failed",
				zap.String("action", string(action)),
				zap.Error(err))
		}
	}(active.Name)
	return nil
}

// Play resumes playback on the active player
func (c *Connector) Play() error { return c.Control(domain.ActionPlay) }

// Pause pauses the active player
func (c *Connector) Pause() error { return c.Control(domain.ActionPause) }

// PlayPause toggles playback on the active player
func (c *Connector) PlayPause() error { return c.Control(domain.ActionPlayPause) }

// Next skips to the next track
func (c *Connector) Next() error { return c.Control(domain.ActionNext) }

// Previous returns to the previous track
func (c *Connector) Previous() error { return c.Control(domain.ActionPrevious) }

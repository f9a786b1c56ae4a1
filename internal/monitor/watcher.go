package monitor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"sync"

	"github.com/genricoloni/spotline/internal/domain"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

// ErrNoPlayer is returned when no supported player is on the bus
var ErrNoPlayer = errors.New("no supported player found")

// NameEvent describes a change of ownership of an MPRIS bus name
type NameEvent struct {
	Name     string
	Appeared bool
	Vanished bool
}

// Watcher enumerates supported players and tracks players appearing and
// vanishing on the bus
type Watcher struct {
	logger   *zap.Logger
	conn     DBusClient
	mu       sync.Mutex
	watching bool
	seq      uint64
	appeared map[string]uint64 // well-known name -> appearance sequence
}

// NewWatcher creates a watcher over the given bus
func NewWatcher(logger *zap.Logger, conn DBusClient) *Watcher {
	return &Watcher{
		logger:   logger.With(zap.String("component", "watcher")),
		conn:     conn,
		appeared: make(map[string]uint64),
	}
}

func nameOwnerMatch() []dbus.MatchOption {
	return []dbus.MatchOption{
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
		dbus.WithMatchArg0Namespace(strings.TrimSuffix(MprisPrefix, ".")),
	}
}

// Watch subscribes to NameOwnerChanged for MPRIS names. Calling it twice is a no-op.
func (w *Watcher) Watch() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.watching {
		return nil
	}
	if err := w.conn.AddMatchSignal(nameOwnerMatch()...); err != nil {
		return fmt.Errorf("failed to add NameOwnerChanged match: %w", err)
	}
	w.watching = true
	w.logger.Info("Watching for MPRIS players")
	return nil
}

// Unwatch removes the NameOwnerChanged subscription. It is idempotent.
func (w *Watcher) Unwatch() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if !w.watching {
		return nil
	}
	w.watching = false
	if err := w.conn.RemoveMatchSignal(nameOwnerMatch()...); err != nil {
		return fmt.Errorf("failed to remove NameOwnerChanged match: %w", err)
	}
	w.logger.Info("Stopped watching for MPRIS players")
	return nil
}

// ListCandidates returns every supported player currently owning a name on the bus,
// with its playback status. Players whose status cannot be read are reported as stopped.
func (w *Watcher) ListCandidates(ctx context.Context) ([]domain.PlayerCandidate, error) {
	names, err := w.conn.ListNames(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list bus names: %w", err)
	}

	var candidates []domain.PlayerCandidate
	for _, name := range names {
		if !IsSupportedPlayer(name) {
			continue
		}

		status := domain.StatusStopped
		variant, err := w.conn.GetProperty(ctx, name, MprisPath, propPlaybackStatus)
		if err != nil {
			w.logger.Debug("Failed to read playback status",
				zap.String("player", name),
				zap.Error(err))
		} else if s, ok := variant.Value().(string); ok {
			status = domain.ParsePlayerStatus(s)
		}

		w.mu.Lock()
		seq := w.appeared[name]
		w.mu.Unlock()

		candidates = append(candidates, domain.PlayerCandidate{
			Name:   name,
			Status: status,
			Seq:    seq,
		})
	}

	w.logger.Debug("Player discovery complete", zap.Int("count", len(candidates)))
	return candidates, nil
}

// HandleNameOwnerChanged records appearance order and reports whether the
// signal concerns an MPRIS name
func (w *Watcher) HandleNameOwnerChanged(sig *dbus.Signal) (NameEvent, bool) {
	if sig == nil || sig.Name != signalNameOwnerChanged || len(sig.Body) < 3 {
		return NameEvent{}, false
	}

	name, ok := sig.Body[0].(string)
	if !ok || !strings.HasPrefix(name, MprisPrefix) {
		return NameEvent{}, false
	}
	oldOwner, _ := sig.Body[1].(string)
	newOwner, _ := sig.Body[2].(string)

	event := NameEvent{
		Name:     name,
		Appeared: newOwner != "" && oldOwner == "",
		Vanished: newOwner == "" && oldOwner != "",
	}

	w.mu.Lock()
	switch {
	case event.Appeared:
		w.seq++
		w.appeared[name] = w.seq
	case event.Vanished:
		delete(w.appeared, name)
	}
	w.mu.Unlock()

	w.logger.Info("MPRIS name owner changed",
		zap.String("player", name),
		zap.Bool("appeared", event.Appeared),
		zap.Bool("vanished", event.Vanished))

	return event, true
}

// Rank orders candidates by preference: playing players first, then the
// currently connected player, then the most recently appeared, then by name.
// The result does not depend on the order of the input.
func Rank(candidates []domain.PlayerCandidate, current string) []domain.PlayerCandidate {
	ranked := slices.Clone(candidates)
	slices.SortFunc(ranked, func(a, b domain.PlayerCandidate) int {
		if ap, bp := a.Status == domain.StatusPlaying, b.Status == domain.StatusPlaying; ap != bp {
			if ap {
				return -1
			}
			return 1
		}
		if ac, bc := a.Name == current, b.Name == current; ac != bc {
			if ac {
				return -1
			}
			return 1
		}
		if a.Seq != b.Seq {
			if a.Seq > b.Seq {
				return -1
			}
			return 1
		}
		return strings.Compare(a.Name, b.Name)
	})
	return ranked
}

// SelectPlayer runs one discovery pass and returns the preferred candidate
func (w *Watcher) SelectPlayer(ctx context.Context) (domain.PlayerCandidate, error) {
	candidates, err := w.ListCandidates(ctx)
	if err != nil {
		return domain.PlayerCandidate{}, err
	}
	if len(candidates) == 0 {
		return domain.PlayerCandidate{}, ErrNoPlayer
	}
	return Rank(candidates, "")[0], nil
}

package engine

import "github.com/genricoloni/spotline/internal/domain"

type trackState int

const (
	trackUnset trackState = iota
	trackNone
	trackPresent
)

// Tracker deduplicates metadata snapshots on (title, artist) and numbers
// every track change. It is owned by the engine loop and not safe for
// concurrent use.
type Tracker struct {
	state   trackState
	current domain.TrackMetadata
	epoch   uint64
}

// Observe records a snapshot. ok is false when the player reports no track.
// It returns true when the snapshot is a track change, in which case the
// epoch has been incremented.
func (t *Tracker) Observe(track domain.TrackMetadata, ok bool) bool {
	if !ok {
		if t.state == trackNone {
			return false
		}
		t.state = trackNone
		t.current = domain.TrackMetadata{}
		t.epoch++
		return true
	}

	if t.state == trackPresent && t.current.SameTrack(track) {
		// album or other fields may differ, keep the newest snapshot
		t.current = track
		return false
	}

	t.state = trackPresent
	t.current = track
	t.epoch++
	return true
}

// Reset forgets the tracked pair so the next snapshot counts as a change.
// The epoch is bumped so results computed for the old track are discarded.
func (t *Tracker) Reset() {
	t.state = trackUnset
	t.current = domain.TrackMetadata{}
	t.epoch++
}

// Epoch returns the current track generation
func (t *Tracker) Epoch() uint64 {
	return t.epoch
}

// Current returns the tracked track, if any
func (t *Tracker) Current() (domain.TrackMetadata, bool) {
	return t.current, t.state == trackPresent
}

package domain

import (
	"strings"
	"time"
)

// UnknownField is the value used for any metadata field a player leaves empty
const UnknownField = "Unknown"

// NoMusicLabel is shown whenever there is no player or no track
const NoMusicLabel = "No music playing"

// PlayerStatus represents the current state of the media player
type PlayerStatus string

const (
	// StatusPlaying indicates the media is currently playing
	StatusPlaying PlayerStatus = "Playing"
	// StatusPaused indicates the media is paused
	StatusPaused PlayerStatus = "Paused"
	// StatusStopped indicates the media is stopped
	StatusStopped PlayerStatus = "Stopped"
)

// ParsePlayerStatus maps an MPRIS PlaybackStatus string to a PlayerStatus.
// Unrecognised values are treated as stopped.
func ParsePlayerStatus(s string) PlayerStatus {
	switch PlayerStatus(s) {
	case StatusPlaying, StatusPaused, StatusStopped:
		return PlayerStatus(s)
	default:
		return StatusStopped
	}
}

// PlayerCandidate is a supported player found on the bus during a discovery pass
type PlayerCandidate struct {
	// Name is the well-known bus name (e.g. "org.mpris.MediaPlayer2.spotify")
	Name string
	// Status is the playback status read during discovery
	Status PlayerStatus
	// Seq orders candidates by appearance; higher means more recent
	Seq uint64
}

// TrackMetadata holds the fields extracted from an MPRIS metadata snapshot
type TrackMetadata struct {
	Title  string
	Artist string
	Album  string
}

// Label returns the "<artist> - <title>" fallback label
func (m TrackMetadata) Label() string {
	return m.Artist + " - " + m.Title
}

// SameTrack reports whether two metadata values identify the same track.
// Only title and artist participate; album changes are not track changes.
func (m TrackMetadata) SameTrack(other TrackMetadata) bool {
	return m.Title == other.Title && m.Artist == other.Artist
}

// LyricLine is a single timed line of synced lyrics
type LyricLine struct {
	// TimeMs is the offset from the start of the track in milliseconds
	TimeMs int64
	Text   string
}

// LyricsResult is the interpreted response of the lyrics service
type LyricsResult struct {
	// Synced holds the raw LRC text, empty if unavailable
	Synced string
	// Plain holds newline-separated plain lyrics, empty if unavailable
	Plain string
}

// DisplayStatus classifies what the emitted text represents
type DisplayStatus string

const (
	DisplayIdle     DisplayStatus = "idle"
	DisplayNoTrack  DisplayStatus = "no-track"
	DisplayFetching DisplayStatus = "fetching"
	DisplaySynced   DisplayStatus = "synced"
	DisplayPlain    DisplayStatus = "plain"
	DisplayFallback DisplayStatus = "fallback"
	// DisplayLyricsDisabled is used when lyrics display is switched off
	DisplayLyricsDisabled DisplayStatus = "disabled-lyrics"
)

// DisplayUpdate is one value emitted by the engine for a display adapter
type DisplayUpdate struct {
	// Text is the already truncated string to show
	Text   string
	Status DisplayStatus
	// Player is the bus name of the active connection, empty when idle
	Player string
	// Epoch is the track generation the text belongs to
	Epoch uint64
	At    time.Time
}

// Action is a transport control verb understood by MPRIS players
type Action string

const (
	ActionPlay      Action = "Play"
	ActionPause     Action = "Pause"
	ActionPlayPause Action = "PlayPause"
	ActionNext      Action = "Next"
	ActionPrevious  Action = "Previous"
)

// ParseAction maps a user-facing verb (case-insensitive, "prev" accepted) to an Action
func ParseAction(s string) (Action, bool) {
	switch strings.ToLower(s) {
	case "play":
		return ActionPlay, true
	case "pause":
		return ActionPause, true
	case "playpause", "toggle":
		return ActionPlayPause, true
	case "next":
		return ActionNext, true
	case "prev", "previous":
		return ActionPrevious, true
	}
	return "", false
}

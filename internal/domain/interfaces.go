package domain

import (
	"context"
	"errors"
	"time"
)

// ErrLyricsNotFound reports that the lyrics service has no entry for a track
var ErrLyricsNotFound = errors.New("lyrics not found")

// LyricsClient retrieves lyrics for a track from a remote service
type LyricsClient interface {
	// Fetch issues exactly one request for the given artist and title.
	// A track without lyrics is reported as an error.
	Fetch(ctx context.Context, artist, title string) (LyricsResult, error)
}

// Sink renders display updates produced by the engine
type Sink interface {
	// Render displays a single update
	Render(ctx context.Context, update DisplayUpdate) error
}

// Config defines the resolved configuration values consumed by the core.
// Loading and persisting them is the job of the config package.
type Config interface {
	// LyricsEnabled reports whether lyrics should be fetched and displayed
	LyricsEnabled() bool

	// GetPollInterval returns the position polling interval
	GetPollInterval() time.Duration

	// GetMaxTextLength returns the maximum number of characters per update
	GetMaxTextLength() int

	// GetPosition returns the display position hint (left, center or right)
	GetPosition() string

	// GetLyricsURL returns the base endpoint of the lyrics API
	GetLyricsURL() string

	// GetHTTPTimeout returns the timeout applied to lyrics requests
	GetHTTPTimeout() time.Duration

	// GetOutputFormat returns the writer sink format (plain or json)
	GetOutputFormat() string

	// GetUpdateCommand returns the optional command run on every update
	GetUpdateCommand() string
}

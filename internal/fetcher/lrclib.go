package fetcher

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/genricoloni/spotline/internal/domain"
	"go.uber.org/zap"
)

const (
	_maxResponseSize = 1024 * 1024 // 1 MB
	_userAgent       = "spotline/1.0"
)

// ErrNotFound is returned when the service has no entry for the track
var ErrNotFound = domain.ErrLyricsNotFound

// lrclibResponse is the subset of the LRCLIB /api/get payload we use
type lrclibResponse struct {
	TrackName    string `json:"trackName"`
	ArtistName   string `json:"artistName"`
	PlainLyrics  string `json:"plainLyrics"`
	SyncedLyrics string `json:"syncedLyrics"`
}

// LRCLibClient retrieves lyrics from an LRCLIB-compatible endpoint
type LRCLibClient struct {
	logger  *zap.Logger
	client  *http.Client
	baseURL string
}

// NewLRCLibClient creates a lyrics client for the given base endpoint
func NewLRCLibClient(logger *zap.Logger, baseURL string, timeout time.Duration) *LRCLibClient {
	return &LRCLibClient{
		logger:  logger,
		baseURL: baseURL,
		client: &http.Client{
			Timeout: timeout,
		},
	}
}

// Fetch issues a single GET for the track. Callers treat every error
// (including ErrNotFound) as "no lyrics".
func (c *LRCLibClient) Fetch(ctx context.Context, artist, title string) (domain.LyricsResult, error) {
	reqURL, err := c.buildURL(artist, title)
	if err != nil {
		return domain.LyricsResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return domain.LyricsResult{}, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", _userAgent)

	resp, err := c.client.Do(req)
	if err != nil {
		return domain.LyricsResult{}, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return domain.LyricsResult{}, ErrNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return domain.LyricsResult{}, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	var payload lrclibResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, _maxResponseSize)).Decode(&payload); err != nil {
		return domain.LyricsResult{}, fmt.Errorf("failed to decode response: %w", err)
	}

	c.logger.Debug("Lyrics fetched",
		zap.String("artist", artist),
		zap.String("title", title),
		zap.Bool("synced", payload.SyncedLyrics != ""),
		zap.Bool("plain", payload.PlainLyrics != ""))

	return domain.LyricsResult{
		Synced: payload.SyncedLyrics,
		Plain:  payload.PlainLyrics,
	}, nil
}

// buildURL appends percent-encoded artist_name and track_name to the base URL
func (c *LRCLibClient) buildURL(artist, title string) (string, error) {
	u, err := url.Parse(c.baseURL)
	if err != nil {
		return "", fmt.Errorf("invalid lyrics url %q: %w", c.baseURL, err)
	}
	query := u.Query()
	query.Set("artist_name", artist)
	query.Set("track_name", title)
	u.RawQuery = query.Encode()
	return u.String(), nil
}

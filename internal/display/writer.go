package display

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"

	"github.com/genricoloni/spotline/internal/domain"
	"go.uber.org/zap"
)

const (
	// FormatPlain writes the text followed by a newline
	FormatPlain = "plain"
	// FormatJSON writes one Waybar-compatible JSON object per line
	FormatJSON = "json"
)

// waybarPayload is the custom-module format understood by Waybar and similar bars
type waybarPayload struct {
	Text    string `json:"text"`
	Alt     string `json:"alt"`
	Class   string `json:"class"`
	Tooltip string `json:"tooltip"`
}

// WriterSink renders updates as lines on an io.Writer (usually stdout)
type WriterSink struct {
	logger   *zap.Logger
	mu       sync.Mutex
	w        io.Writer
	format   string
	position string
}

// NewWriterSink creates a sink writing in the given format.
// Unknown formats fall back to plain text.
func NewWriterSink(logger *zap.Logger, w io.Writer, format, position string) *WriterSink {
	if format != FormatJSON && format != FormatPlain {
		logger.Warn("Unknown output format, using plain", zap.String("format", format))
		format = FormatPlain
	}
	return &WriterSink{
		logger:   logger,
		w:        w,
		format:   format,
		position: position,
	}
}

// Render writes a single update
func (s *WriterSink) Render(ctx context.Context, update domain.DisplayUpdate) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.format == FormatPlain {
		if _, err := fmt.Fprintln(s.w, update.Text); err != nil {
			return fmt.Errorf("failed to write update: %w", err)
		}
		return nil
	}

	tooltip := update.Player
	if tooltip == "" {
		tooltip = domain.NoMusicLabel
	}

	data, err := json.Marshal(waybarPayload{
		Text:    update.Text,
		Alt:     s.position,
		Class:   string(update.Status),
		Tooltip: tooltip,
	})
	if err != nil {
		return fmt.Errorf("failed to encode update: %w", err)
	}

	data = append(data, '\n')
	if _, err := s.w.Write(data); err != nil {
		return fmt.Errorf("failed to write update: %w", err)
	}
	return nil
}

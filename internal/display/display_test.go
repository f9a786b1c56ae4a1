package display

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/genricoloni/spotline/internal/domain"
	"go.uber.org/zap"
)

func TestTruncate(t *testing.T) {
	tests := []struct {
		name     string
		text     string
		maxLen   int
		expected string
	}{
		{"Short text unchanged", "Hello", 10, "Hello"},
		{"Exact length unchanged", "Hello", 5, "Hello"},
		{"Long text cut", "Hello, World", 8, "Hello..."},
		{"Multibyte counted as characters", "ありがとうございます", 6, "ありが..."},
		{"Limit below marker", "Hello", 2, "He"},
		{"Zero limit", "Hello", 0, ""},
		{"Empty text", "", 10, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Truncate(tt.text, tt.maxLen)
			if got != tt.expected {
				t.Errorf("Truncate(%q, %d): expected %q, got %q", tt.text, tt.maxLen, tt.expected, got)
			}
		})
	}
}

func TestTruncate_LengthProperty(t *testing.T) {
	text := strings.Repeat("lyric line ", 20)
	for n := 3; n <= len(text)+5; n++ {
		got := Truncate(text, n)
		length := utf8.RuneCountInString(got)
		if length > n {
			t.Fatalf("Truncate(_, %d) returned %d characters", n, length)
		}
		if utf8.RuneCountInString(text) > n {
			if length != n || !strings.HasSuffix(got, Ellipsis) {
				t.Fatalf("Truncate(_, %d) = %q: expected %d characters ending with ellipsis", n, got, n)
			}
		} else if got != text {
			t.Fatalf("Truncate(_, %d) altered text that fits", n)
		}
	}
}

func TestWriterSink_Plain(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(zap.NewNop(), &buf, FormatPlain, "center")

	if err := sink.Render(context.Background(), domain.DisplayUpdate{Text: "First line"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := sink.Render(context.Background(), domain.DisplayUpdate{Text: "Second line"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got := buf.String(); got != "First line\nSecond line\n" {
		t.Errorf("unexpected output: %q", got)
	}
}

func TestWriterSink_JSON(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(zap.NewNop(), &buf, FormatJSON, "right")

	update := domain.DisplayUpdate{
		Text:   "Is this the real life?",
		Status: domain.DisplaySynced,
		Player: "org.mpris.MediaPlayer2.spotify",
	}
	if err := sink.Render(context.Background(), update); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var payload waybarPayload
	if err := json.Unmarshal(buf.Bytes(), &payload); err != nil {
		t.Fatalf("output is not valid JSON: %v", err)
	}
	if payload.Text != update.Text {
		t.Errorf("Text: expected %q, got %q", update.Text, payload.Text)
	}
	if payload.Class != "synced" {
		t.Errorf("Class: expected synced, got %q", payload.Class)
	}
	if payload.Alt != "right" {
		t.Errorf("Alt: expected right, got %q", payload.Alt)
	}
	if payload.Tooltip != update.Player {
		t.Errorf("Tooltip: expected %q, got %q", update.Player, payload.Tooltip)
	}
}

func TestWriterSink_UnknownFormatFallsBack(t *testing.T) {
	var buf bytes.Buffer
	sink := NewWriterSink(zap.NewNop(), &buf, "xml", "left")
	_ = sink.Render(context.Background(), domain.DisplayUpdate{Text: "plain"})
	if buf.String() != "plain\n" {
		t.Errorf("expected plain output, got %q", buf.String())
	}
}

type recordingSink struct {
	texts []string
	err   error
}

func (r *recordingSink) Render(_ context.Context, u domain.DisplayUpdate) error {
	r.texts = append(r.texts, u.Text)
	return r.err
}

func TestMultiSink_ContinuesAfterFailure(t *testing.T) {
	failing := &recordingSink{err: errors.New("boom")}
	ok := &recordingSink{}

	err := MultiSink{failing, ok}.Render(context.Background(), domain.DisplayUpdate{Text: "x"})
	if err == nil || !strings.Contains(err.Error(), "boom") {
		t.Errorf("expected combined error containing boom, got %v", err)
	}
	if len(ok.texts) != 1 {
		t.Errorf("second sink should still render, got %d renders", len(ok.texts))
	}
}

func TestNewCommandSink_Errors(t *testing.T) {
	if _, err := NewCommandSink(zap.NewNop(), "   "); err == nil {
		t.Error("expected error for empty template")
	}
	if _, err := NewCommandSink(zap.NewNop(), "definitely-not-a-real-binary-xyz %s"); err == nil {
		t.Error("expected error for missing binary")
	}
}

func TestPump(t *testing.T) {
	updates := make(chan domain.DisplayUpdate, 3)
	updates <- domain.DisplayUpdate{Text: "a"}
	updates <- domain.DisplayUpdate{Text: "b"}
	close(updates)

	sink := &recordingSink{err: errors.New("ignored")}
	done := make(chan struct{})
	go func() {
		Pump(context.Background(), zap.NewNop(), updates, sink)
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Pump did not return after channel close")
	}

	if strings.Join(sink.texts, ",") != "a,b" {
		t.Errorf("expected a,b rendered, got %v", sink.texts)
	}
}

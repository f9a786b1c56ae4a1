package engine

import (
	"errors"
	"testing"
	"time"

	"github.com/genricoloni/spotline/internal/domain"
)

var abc = []domain.LyricLine{
	{TimeMs: 0, Text: "A"},
	{TimeMs: 1500, Text: "B"},
	{TimeMs: 3000, Text: "C"},
}

func TestPoller_Lifecycle(t *testing.T) {
	p := NewPoller(time.Hour)
	if p.Ticking() || p.C() != nil {
		t.Fatal("new poller should be idle")
	}
	if _, ok := p.BeginQuery(); ok {
		t.Error("idle poller should not query")
	}

	p.Start(nil, "org.mpris.MediaPlayer2.spotify")
	if p.Ticking() {
		t.Error("empty lines should leave the poller idle")
	}

	p.Start(abc, "org.mpris.MediaPlayer2.spotify")
	if !p.Ticking() || p.C() == nil {
		t.Fatal("poller should tick after Start")
	}
	if p.Player() != "org.mpris.MediaPlayer2.spotify" {
		t.Errorf("expected lines keyed to spotify, got %q", p.Player())
	}

	p.Stop()
	p.Stop()
	if p.Ticking() || p.C() != nil {
		t.Error("poller should be idle after Stop")
	}
	if p.Player() != "" {
		t.Errorf("expected no player after Stop, got %q", p.Player())
	}
}

func TestPoller_ResolvesPositions(t *testing.T) {
	p := NewPoller(time.Hour)
	p.Start(abc, "org.mpris.MediaPlayer2.spotify")
	defer p.Stop()

	tests := []struct {
		positionMs int64
		text       string
		emit       bool
	}{
		{0, "A", true},
		{1600, "B", true},
		{1700, "", false}, // still B
		{3000, "C", true},
		{100, "A", true}, // seek backward
	}

	for _, tt := range tests {
		gen, ok := p.BeginQuery()
		if !ok {
			t.Fatalf("BeginQuery failed at %d", tt.positionMs)
		}
		text, emit := p.Resolve(gen, tt.positionMs, nil)
		if emit != tt.emit || text != tt.text {
			t.Errorf("position %d: expected (%q, %v), got (%q, %v)", tt.positionMs, tt.text, tt.emit, text, emit)
		}
	}
}

func TestPoller_SingleQueryInFlight(t *testing.T) {
	p := NewPoller(time.Hour)
	p.Start(abc, "org.mpris.MediaPlayer2.spotify")
	defer p.Stop()

	gen, ok := p.BeginQuery()
	if !ok {
		t.Fatal("first query should start")
	}
	if _, ok := p.BeginQuery(); ok {
		t.Error("second query must wait for the first")
	}

	// A failed query is swallowed and the next one may start
	if _, emit := p.Resolve(gen, 0, errors.New("no reply")); emit {
		t.Error("failed query should not emit")
	}
	if _, ok := p.BeginQuery(); !ok {
		t.Error("query should be possible after a failure")
	}
}

func TestPoller_StaleGeneration(t *testing.T) {
	p := NewPoller(time.Hour)
	p.Start(abc, "org.mpris.MediaPlayer2.spotify")
	defer p.Stop()

	old, _ := p.BeginQuery()
	p.Start([]domain.LyricLine{{TimeMs: 0, Text: "other"}}, "org.mpris.MediaPlayer2.vlc")

	if _, emit := p.Resolve(old, 0, nil); emit {
		t.Error("result from a previous run must be discarded")
	}

	gen, ok := p.BeginQuery()
	if !ok {
		t.Fatal("restart should clear the outstanding query")
	}
	if text, emit := p.Resolve(gen, 0, nil); !emit || text != "other" {
		t.Errorf("expected other, got %q", text)
	}
}

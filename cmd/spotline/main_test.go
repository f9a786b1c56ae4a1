package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/genricoloni/spotline/internal/config"
	"github.com/genricoloni/spotline/internal/domain"
	"github.com/genricoloni/spotline/internal/monitor"
	"github.com/godbus/dbus/v5"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

// TestAppGraphValidity verifies that the dependency graph is resolvable.
// This test will fail if you forget an fx.Provide for a required interface.
func TestAppGraphValidity(t *testing.T) {
	// fx.ValidateApp checks that there are no missing or cyclic dependencies
	err := fx.ValidateApp(AppOptions(config.Options{}, false))
	if err != nil {
		t.Errorf("Dependency graph is not valid: %v", err)
	}
}

// TestNewLogger specifically verifies the logger configuration
func TestNewLogger(t *testing.T) {
	for _, debug := range []bool{false, true} {
		logger, err := newLogger(debug)
		if err != nil {
			t.Fatalf("Failed to create logger: %v", err)
		}
		if logger == nil {
			t.Fatal("Logger should not be nil")
		}
		logger.Info("Test logger initialization")
	}
}

// emptyBus is a session bus without any player
type emptyBus struct{}

func (emptyBus) Close() error                                                       { return nil }
func (emptyBus) AddMatchSignal(...dbus.MatchOption) error                           { return nil }
func (emptyBus) RemoveMatchSignal(...dbus.MatchOption) error                        { return nil }
func (emptyBus) Signal(chan<- *dbus.Signal)                                         {}
func (emptyBus) RemoveSignal(chan<- *dbus.Signal)                                   {}
func (emptyBus) ListNames(context.Context) ([]string, error)                        { return []string{"org.freedesktop.DBus"}, nil }
func (emptyBus) GetNameOwner(context.Context, string) (string, error)               { return "", monitor.ErrNoPlayer }
func (emptyBus) Call(context.Context, string, string, string, ...interface{}) error { return nil }
func (emptyBus) GetProperty(context.Context, string, string, string) (dbus.Variant, error) {
	return dbus.Variant{}, monitor.ErrNoPlayer
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

// TestEndToEndStartup starts the core on a bus without players and checks
// that the idle label reaches the output
func TestEndToEndStartup(t *testing.T) {
	t.Setenv("XDG_CONFIG_HOME", t.TempDir())
	out := &syncBuffer{}

	app := fx.New(
		fx.Supply(config.Options{}),
		fx.Provide(zap.NewNop),
		fx.Provide(func() io.Writer { return out }),
		fx.Provide(func() monitor.DBusClient { return emptyBus{} }),
		CoreModule,
		fx.NopLogger, // Silence Fx logs during tests
	)

	if err := app.Start(testContext(t)); err != nil {
		t.Fatalf("App failed to start: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(out.String(), domain.NoMusicLabel) {
		if time.Now().After(deadline) {
			t.Fatalf("idle label not written, output: %q", out.String())
		}
		time.Sleep(10 * time.Millisecond)
	}

	if err := app.Stop(testContext(t)); err != nil {
		t.Fatalf("App failed to stop: %v", err)
	}
}

func TestPrintLyrics(t *testing.T) {
	track := domain.TrackMetadata{Artist: "Artist", Title: "Song"}

	tests := []struct {
		name     string
		result   domain.LyricsResult
		expected string
	}{
		{
			name:     "Synced",
			result:   domain.LyricsResult{Synced: "[01:02.50]Hello\n[00:00.20]World", Plain: "ignored"},
			expected: "[00:00.20] World\n[01:02.50] Hello\n",
		},
		{
			name:     "Plain",
			result:   domain.LyricsResult{Plain: "Line one\nLine two\n"},
			expected: "Line one\nLine two\n",
		},
		{
			name:     "Nothing",
			expected: "Artist - Song\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var out bytes.Buffer
			if err := printLyrics(&out, track, tt.result); err != nil {
				t.Fatalf("printLyrics: %v", err)
			}
			if out.String() != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, out.String())
			}
		})
	}
}

func TestPrintPlayers(t *testing.T) {
	var out bytes.Buffer
	err := printPlayers(&out, []domain.PlayerCandidate{
		{Name: "org.mpris.MediaPlayer2.spotify", Status: domain.StatusPlaying},
		{Name: "org.mpris.MediaPlayer2.firefox.instance3", Status: domain.StatusPaused},
	})
	if err != nil {
		t.Fatalf("printPlayers: %v", err)
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %q", out.String())
	}
	if !strings.HasPrefix(lines[0], "*") || !strings.Contains(lines[0], "spotify") {
		t.Errorf("first player should be marked, got %q", lines[0])
	}
	if strings.HasPrefix(lines[1], "*") {
		t.Errorf("only one player should be marked, got %q", lines[1])
	}

	out.Reset()
	if err := printPlayers(&out, nil); err != nil {
		t.Fatalf("printPlayers: %v", err)
	}
	if strings.TrimSpace(out.String()) != domain.NoMusicLabel {
		t.Errorf("expected idle label, got %q", out.String())
	}
}

func TestControlRejectsUnknownAction(t *testing.T) {
	cmd := newRootCmd()
	cmd.SetArgs([]string{"control", "rewind"})
	cmd.SetOut(io.Discard)
	cmd.SetErr(io.Discard)

	err := cmd.Execute()
	if err == nil || !strings.Contains(err.Error(), "unknown action") {
		t.Errorf("expected unknown action error, got %v", err)
	}
}

// testContext stands in for testing.T.Context, which needs Go 1.24.
func testContext(t *testing.T) context.Context {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return ctx
}

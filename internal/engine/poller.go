package engine

import (
	"time"

	"github.com/genricoloni/spotline/internal/domain"
	"github.com/genricoloni/spotline/internal/lrc"
)

// Poller resolves the active lyric line against the playback position.
// It is Idle until Start installs synced lines and Ticking until Stop.
// Like Tracker it belongs to the engine loop.
type Poller struct {
	interval   time.Duration
	lines      []domain.LyricLine
	player     string
	ticker     *time.Ticker
	generation uint64
	inFlight   bool
	lastText   string
	emitted    bool
}

// NewPoller creates an idle poller ticking at interval once started
func NewPoller(interval time.Duration) *Poller {
	return &Poller{interval: interval}
}

// Start installs the lines of the track playing on player and arms the
// ticker, replacing any previous run. An empty slice leaves the poller idle.
func (p *Poller) Start(lines []domain.LyricLine, player string) {
	p.Stop()
	if len(lines) == 0 {
		return
	}
	p.lines = lines
	p.player = player
	p.ticker = time.NewTicker(p.interval)
}

// Stop cancels the ticker and clears the lines. Calling it on an idle
// poller is a no-op apart from invalidating outstanding queries.
func (p *Poller) Stop() {
	if p.ticker != nil {
		p.ticker.Stop()
		p.ticker = nil
	}
	p.lines = nil
	p.player = ""
	p.generation++
	p.inFlight = false
	p.lastText = ""
	p.emitted = false
}

// Ticking reports whether synced lines are installed
func (p *Poller) Ticking() bool {
	return p.ticker != nil
}

// Player returns the bus name the installed lines belong to
func (p *Poller) Player() string {
	return p.player
}

// C returns the tick channel, or nil while idle so that a select never fires on it
func (p *Poller) C() <-chan time.Time {
	if p.ticker == nil {
		return nil
	}
	return p.ticker.C
}

// BeginQuery marks a position query as outstanding and returns its
// generation. It returns false while idle or when a query is already out.
func (p *Poller) BeginQuery() (uint64, bool) {
	if p.ticker == nil || p.inFlight {
		return 0, false
	}
	p.inFlight = true
	return p.generation, true
}

// Resolve completes the query of the given generation. It returns the line
// text and true when that text differs from the last one emitted. Results
// from an older generation and failed queries emit nothing.
func (p *Poller) Resolve(generation uint64, positionMs int64, err error) (string, bool) {
	if generation != p.generation {
		return "", false
	}
	p.inFlight = false
	if err != nil {
		return "", false
	}

	line, ok := lrc.ResolveLine(p.lines, positionMs)
	if !ok {
		return "", false
	}
	if p.emitted && line.Text == p.lastText {
		return "", false
	}
	p.lastText = line.Text
	p.emitted = true
	return line.Text, true
}

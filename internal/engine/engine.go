package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/genricoloni/spotline/internal/display"
	"github.com/genricoloni/spotline/internal/domain"
	"github.com/genricoloni/spotline/internal/lrc"
	"github.com/genricoloni/spotline/internal/monitor"
	"github.com/godbus/dbus/v5"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	busCallTimeout = 3 * time.Second
	updatesBuffer  = 8
	dropWarnEvery  = 5 * time.Second
	signalsBuffer  = 32
)

// ErrNotRunning is returned by operations that need the event loop
var ErrNotRunning = errors.New("engine is not running")

type discoveryResult struct {
	player  string // empty when no supported player could be connected
	changed bool
	err     error
}

type lyricsResult struct {
	epoch  uint64
	track  domain.TrackMetadata
	result domain.LyricsResult
	err    error
}

type positionResult struct {
	generation uint64
	positionMs int64
	err        error
}

// Engine follows the active MPRIS player and emits the text to display.
// Bus signals, asynchronous results and poll ticks are all handled on one
// loop goroutine, so the tracker, poller and display state need no locking.
type Engine struct {
	logger    *zap.Logger
	cfg       domain.Config
	conn      monitor.DBusClient
	watcher   *monitor.Watcher
	connector *monitor.Connector
	lyrics    domain.LyricsClient

	signals     chan *dbus.Signal
	updates     chan domain.DisplayUpdate
	discoveries chan discoveryResult
	fetched     chan lyricsResult
	positions   chan positionResult
	toggles     chan bool

	mu       sync.Mutex
	started  bool
	stopped  bool
	done     chan struct{}
	loopDone chan struct{}
	cancel   context.CancelFunc
	workers  sync.WaitGroup

	// loop state
	tracker       Tracker
	poller        *Poller
	lyricsEnabled bool
	discovering   bool
	rediscover    bool
	last          domain.DisplayUpdate
	hasLast       bool
	lastDropWarn  time.Time
}

// NewEngine creates a stopped engine
func NewEngine(
	logger *zap.Logger,
	cfg domain.Config,
	conn monitor.DBusClient,
	watcher *monitor.Watcher,
	connector *monitor.Connector,
	lyrics domain.LyricsClient,
) *Engine {
	return &Engine{
		logger:        logger.With(zap.String("component", "engine")),
		cfg:           cfg,
		conn:          conn,
		watcher:       watcher,
		connector:     connector,
		lyrics:        lyrics,
		signals:       make(chan *dbus.Signal, signalsBuffer),
		updates:       make(chan domain.DisplayUpdate, updatesBuffer),
		discoveries:   make(chan discoveryResult),
		fetched:       make(chan lyricsResult),
		positions:     make(chan positionResult),
		toggles:       make(chan bool),
		done:          make(chan struct{}),
		loopDone:      make(chan struct{}),
		poller:        NewPoller(cfg.GetPollInterval()),
		lyricsEnabled: cfg.LyricsEnabled(),
	}
}

// Updates returns the stream of display updates. When the consumer falls
// behind, the oldest pending update is dropped. The channel is closed by Stop.
func (e *Engine) Updates() <-chan domain.DisplayUpdate {
	return e.updates
}

// Start subscribes to the bus and launches the event loop. It returns
// immediately; discovery runs in the background. An engine cannot be
// restarted once stopped.
func (e *Engine) Start(_ context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.started {
		return fmt.Errorf("engine already started")
	}
	e.started = true

	e.logger.Info("Engine starting...",
		zap.Bool("lyrics", e.lyricsEnabled),
		zap.Duration("poll_interval", e.cfg.GetPollInterval()))

	e.conn.Signal(e.signals)
	if err := e.watcher.Watch(); err != nil {
		// discovery still runs once; players appearing later will be missed
		e.logger.Warn("Could not watch for players", zap.Error(err))
	}

	// The loop outlives the start context, so it gets its own
	ctx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel

	e.emit(domain.NoMusicLabel, domain.DisplayIdle)
	e.discover(ctx)

	go e.runLoop(ctx)
	return nil
}

// Stop disables the engine. Before it returns the name watch is removed
// and the player subscription is released. When ctx expires first those
// are still released and the error reports the loop that has not exited;
// the loop stops its poll timer and closes Updates on its way out.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.started || e.stopped {
		e.mu.Unlock()
		return nil
	}
	e.stopped = true
	e.mu.Unlock()

	e.logger.Info("Engine stopping...")

	close(e.done)
	e.cancel()

	// Background calls may still touch the connector, wait for them too
	finished := make(chan struct{})
	go func() {
		<-e.loopDone
		e.workers.Wait()
		close(finished)
	}()

	var err error
	select {
	case <-finished:
	case <-ctx.Done():
		err = fmt.Errorf("engine loop did not stop: %w", ctx.Err())
	}

	// Bus resources are released even when the loop is slow to exit
	err = multierr.Append(err, e.watcher.Unwatch())
	err = multierr.Append(err, e.connector.Close())
	e.conn.RemoveSignal(e.signals)

	if err != nil {
		e.logger.Warn("Engine teardown incomplete", zap.Error(err))
	} else {
		e.logger.Info("Engine stopped")
	}
	return err
}

// SetLyricsEnabled switches lyrics retrieval on or off for the current and
// following tracks
func (e *Engine) SetLyricsEnabled(enabled bool) error {
	e.mu.Lock()
	running := e.started && !e.stopped
	e.mu.Unlock()
	if !running {
		return ErrNotRunning
	}

	select {
	case e.toggles <- enabled:
		return nil
	case <-e.done:
		return ErrNotRunning
	}
}

// Play resumes playback on the connected player
func (e *Engine) Play() error { return e.connector.Play() }

// Pause pauses the connected player
func (e *Engine) Pause() error { return e.connector.Pause() }

// PlayPause toggles playback on the connected player
func (e *Engine) PlayPause() error { return e.connector.PlayPause() }

// Next skips to the next track
func (e *Engine) Next() error { return e.connector.Next() }

// Previous returns to the previous track
func (e *Engine) Previous() error { return e.connector.Previous() }

func (e *Engine) runLoop(ctx context.Context) {
	// The poller and the updates channel belong to the loop
	defer func() {
		e.poller.Stop()
		close(e.updates)
		close(e.loopDone)
	}()

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine loop stopped")
			return

		case sig, ok := <-e.signals:
			if !ok {
				e.logger.Info("Bus signal channel closed")
				return
			}
			e.handleSignal(ctx, sig)

		case r := <-e.discoveries:
			e.handleDiscovery(ctx, r)

		case r := <-e.fetched:
			e.handleLyrics(ctx, r)

		case r := <-e.positions:
			e.handlePosition(r)

		case <-e.poller.C():
			e.queryPosition(ctx)

		case enabled := <-e.toggles:
			e.handleToggle(ctx, enabled)
		}
	}
}

func (e *Engine) handleSignal(ctx context.Context, sig *dbus.Signal) {
	if event, ok := e.watcher.HandleNameOwnerChanged(sig); ok {
		if active := e.connector.Active(); active != nil && active.Name == event.Name && !event.Appeared {
			// The owner is gone or replaced, the subscription no longer matches
			e.dropConnection()
			e.emit(domain.NoMusicLabel, domain.DisplayIdle)
		}
		if monitor.IsSupportedPlayer(event.Name) {
			e.discover(ctx)
		}
		return
	}

	if e.connector.HandlePropertiesChanged(sig) {
		e.refreshTrack(ctx)
	}
}

// discover runs one discovery pass in the background. A request made while
// a pass is running schedules exactly one more pass.
func (e *Engine) discover(ctx context.Context) {
	if e.discovering {
		e.rediscover = true
		return
	}
	e.discovering = true

	e.workers.Add(1)
	go func() {
		defer e.workers.Done()
		r := e.selectPlayer(ctx)
		select {
		case e.discoveries <- r:
		case <-e.done:
		}
	}()
}

// selectPlayer lists candidates and connects to the best one that answers
func (e *Engine) selectPlayer(ctx context.Context) discoveryResult {
	listCtx, cancel := context.WithTimeout(ctx, busCallTimeout)
	candidates, err := e.watcher.ListCandidates(listCtx)
	cancel()
	if err != nil {
		return discoveryResult{err: err}
	}

	current := ""
	if active := e.connector.Active(); active != nil {
		current = active.Name
	}

	for _, candidate := range monitor.Rank(candidates, current) {
		// A failed Connect may already have released the current player
		if active := e.connector.Active(); active != nil && active.Name == candidate.Name {
			return discoveryResult{player: candidate.Name}
		}
		if ctx.Err() != nil {
			return discoveryResult{err: ctx.Err()}
		}

		connCtx, cancel := context.WithTimeout(ctx, busCallTimeout)
		_, err := e.connector.Connect(connCtx, candidate.Name)
		cancel()
		if err != nil {
			e.logger.Warn("Failed to connect to player",
				zap.String("player", candidate.Name),
				zap.Error(err))
			continue
		}
		return discoveryResult{player: candidate.Name, changed: true}
	}

	return discoveryResult{}
}

func (e *Engine) handleDiscovery(ctx context.Context, r discoveryResult) {
	e.discovering = false

	switch {
	case r.err != nil:
		e.logger.Warn("Player discovery failed", zap.Error(r.err))
		e.dropConnection()
		e.emit(domain.NoMusicLabel, domain.DisplayIdle)
	case r.player == "":
		e.logger.Info("No supported player found")
		e.dropConnection()
		e.emit(domain.NoMusicLabel, domain.DisplayIdle)
	case r.changed:
		if active := e.connector.Active(); active != nil && active.Name == r.player {
			e.poller.Stop()
			e.tracker.Reset()
			e.refreshTrack(ctx)
		}
	}

	if r.err == nil && r.player != "" && e.connector.Active() == nil {
		// A failed switch released the previous player without a replacement
		e.dropConnection()
		e.emit(domain.NoMusicLabel, domain.DisplayIdle)
	}

	if e.rediscover {
		e.rediscover = false
		e.discover(ctx)
	}
}

// dropConnection releases the active connection and everything derived from it
func (e *Engine) dropConnection() {
	e.poller.Stop()
	e.tracker.Reset()
	if err := e.connector.Disconnect(); err != nil {
		e.logger.Warn("Failed to release player subscription", zap.Error(err))
	}
}

// refreshTrack feeds the cached metadata of the active player to the tracker
// and starts the lyrics pipeline on a track change
func (e *Engine) refreshTrack(ctx context.Context) {
	active := e.connector.Active()
	if active == nil {
		return
	}

	track, ok := active.Metadata()
	if !e.tracker.Observe(track, ok) {
		return
	}
	e.poller.Stop()

	if !ok {
		e.logger.Info("Player has no track", zap.String("player", active.Name))
		e.emit(domain.NoMusicLabel, domain.DisplayNoTrack)
		return
	}

	e.logger.Info("Track changed",
		zap.String("track", track.Title),
		zap.String("artist", track.Artist),
		zap.String("album", track.Album),
		zap.Uint64("epoch", e.tracker.Epoch()))

	if !e.lyricsEnabled {
		e.emit(track.Label(), domain.DisplayLyricsDisabled)
		return
	}

	e.emit(track.Label(), domain.DisplayFetching)
	e.fetchLyrics(ctx, track, e.tracker.Epoch())
}

func (e *Engine) fetchLyrics(ctx context.Context, track domain.TrackMetadata, epoch uint64) {
	e.workers.Add(1)
	go func() {
		defer e.workers.Done()
		result, err := e.lyrics.Fetch(ctx, track.Artist, track.Title)
		select {
		case e.fetched <- lyricsResult{epoch: epoch, track: track, result: result, err: err}:
		case <-e.done:
		}
	}()
}

func (e *Engine) handleLyrics(ctx context.Context, r lyricsResult) {
	if r.epoch != e.tracker.Epoch() {
		e.logger.Debug("Discarding lyrics for a previous track",
			zap.String("track", r.track.Title),
			zap.Uint64("epoch", r.epoch),
			zap.Uint64("current", e.tracker.Epoch()))
		return
	}

	if r.err != nil {
		if errors.Is(r.err, domain.ErrLyricsNotFound) {
			e.logger.Info("No lyrics available", zap.String("track", r.track.Title))
		} else {
			e.logger.Warn("Failed to fetch lyrics", zap.String("track", r.track.Title), zap.Error(r.err))
		}
		e.emit(r.track.Label(), domain.DisplayFallback)
		return
	}

	if r.result.Synced != "" {
		if lines := lrc.Parse(r.result.Synced); len(lines) > 0 {
			e.logger.Info("Synced lyrics loaded",
				zap.String("track", r.track.Title),
				zap.Int("lines", len(lines)))
			player := ""
			if active := e.connector.Active(); active != nil {
				player = active.Name
			}
			e.poller.Start(lines, player)
			e.queryPosition(ctx)
			return
		}
		e.logger.Warn("Synced lyrics contained no timed lines", zap.String("track", r.track.Title))
	}

	if line := lrc.FirstPlainLine(r.result.Plain); line != "" {
		e.emit(line, domain.DisplayPlain)
		return
	}

	e.emit(r.track.Label(), domain.DisplayFallback)
}

// queryPosition asks the player for its position unless a query is already
// out. Only the player the lines were loaded for is asked.
func (e *Engine) queryPosition(ctx context.Context) {
	active := e.connector.Active()
	if active == nil || active.Name != e.poller.Player() {
		return
	}
	generation, ok := e.poller.BeginQuery()
	if !ok {
		return
	}

	e.workers.Add(1)
	go func(name string) {
		defer e.workers.Done()
		queryCtx, cancel := context.WithTimeout(ctx, busCallTimeout)
		defer cancel()

		positionUs, err := e.connector.GetPosition(queryCtx, name)
		select {
		case e.positions <- positionResult{generation: generation, positionMs: positionUs / 1000, err: err}:
		case <-e.done:
		}
	}(active.Name)
}

func (e *Engine) handlePosition(r positionResult) {
	if r.err != nil {
		e.logger.Debug("Position query failed", zap.Error(r.err))
	}
	if text, ok := e.poller.Resolve(r.generation, r.positionMs, r.err); ok {
		e.emit(text, domain.DisplaySynced)
	}
}

func (e *Engine) handleToggle(ctx context.Context, enabled bool) {
	if enabled == e.lyricsEnabled {
		return
	}
	e.lyricsEnabled = enabled
	e.logger.Info("Lyrics display toggled", zap.Bool("enabled", enabled))

	// Re-run the current track through the pipeline under the new setting
	e.poller.Stop()
	e.tracker.Reset()
	e.refreshTrack(ctx)
}

// emit publishes an update, dropping the oldest pending one if the consumer
// is behind. Repeats of the last update are suppressed.
func (e *Engine) emit(text string, status domain.DisplayStatus) {
	player := ""
	if active := e.connector.Active(); active != nil {
		player = active.Name
	}

	update := domain.DisplayUpdate{
		Text:   display.Truncate(text, e.cfg.GetMaxTextLength()),
		Status: status,
		Player: player,
		Epoch:  e.tracker.Epoch(),
		At:     time.Now(),
	}
	if e.hasLast && update.Text == e.last.Text && update.Status == e.last.Status && update.Player == e.last.Player {
		return
	}
	e.last = update
	e.hasLast = true

	select {
	case e.updates <- update:
		return
	default:
	}

	select {
	case <-e.updates:
	default:
	}
	select {
	case e.updates <- update:
	default:
	}

	if now := time.Now(); now.Sub(e.lastDropWarn) >= dropWarnEvery {
		e.lastDropWarn = now
		e.logger.Warn("Display consumer is behind, dropping stale updates")
	}
}

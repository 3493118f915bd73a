package tracker

import (
	"context"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/lross/livemediad/internal/domain"
)

const (
	mprisPrefix = "org.mpris.MediaPlayer2."
	mprisPath   = "/org/mpris/MediaPlayer2"

	propMetadata = "org.mpris.MediaPlayer2.Player.Metadata"
	propStatus   = "org.mpris.MediaPlayer2.Player.PlaybackStatus"
	propPosition = "org.mpris.MediaPlayer2.Player.Position"

	methodPlay     = "org.mpris.MediaPlayer2.Player.Play"
	methodPause    = "org.mpris.MediaPlayer2.Player.Pause"
	methodNext     = "org.mpris.MediaPlayer2.Player.Next"
	methodPrevious = "org.mpris.MediaPlayer2.Player.Previous"
	methodRaise    = "org.mpris.MediaPlayer2.Raise"
)

// MprisTracker follows the first active MPRIS player on the session bus,
// normalizes its metadata into MusicState snapshots and emits them on a
// channel, gated by value equality: a snapshot identical to the previously
// emitted one is never emitted again. That gate is what keeps the live
// notification from being re-posted on every redundant player callback.
type MprisTracker struct {
	logger *zap.Logger
	events chan domain.StateEvent

	mu              sync.Mutex
	running         bool
	cancel          context.CancelFunc
	conn            DBusClient // Interface for testability
	player          string     // well-known name of the tracked player
	owner           string     // unique bus name of the tracked player
	last            *domain.MusicState
	lastDropWarning time.Time
	wg              sync.WaitGroup

	// connect is swappable in tests
	connect func() (DBusClient, error)
}

// NewMprisTracker creates a new tracker instance
func NewMprisTracker(logger *zap.Logger) *MprisTracker {
	return &MprisTracker{
		logger: logger,
		events: make(chan domain.StateEvent, 10),
		connect: func() (DBusClient, error) {
			return NewStdDBusClient()
		},
	}
}

// Start connects to the session bus, performs the initial player scan and
// processes signals until the context is cancelled.
func (t *MprisTracker) Start(ctx context.Context) error {
	t.mu.Lock()
	if t.running {
		t.mu.Unlock()
		return nil
	}
	t.running = true

	trackCtx, cancel := context.WithCancel(ctx)
	t.cancel = cancel
	t.mu.Unlock()

	conn, err := t.connect()
	if err != nil {
		t.logger.Error("Failed to connect to session bus", zap.Error(err))
		t.mu.Lock()
		t.running = false
		t.cancel = nil
		t.mu.Unlock()
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	t.mu.Lock()
	t.conn = conn
	t.mu.Unlock()

	if err := conn.AddMatchSignal(
		dbus.WithMatchObjectPath(mprisPath),
		dbus.WithMatchInterface("org.freedesktop.DBus.Properties"),
		dbus.WithMatchMember("PropertiesChanged"),
	); err != nil {
		t.logger.Error("Failed to add PropertiesChanged match", zap.Error(err))
		return fmt.Errorf("failed to add match signal: %w", err)
	}

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.DBus"),
		dbus.WithMatchMember("NameOwnerChanged"),
	); err != nil {
		// Non-fatal, players that appear later just won't be picked up
		// until the next externally triggered rescan
		t.logger.Warn("Failed to add NameOwnerChanged match", zap.Error(err))
	}

	t.Rescan()

	t.wg.Add(1)
	go t.processSignals(trackCtx)

	t.logger.Info("MPRIS tracker started")
	<-trackCtx.Done()
	t.logger.Info("MPRIS tracker stopped")
	return trackCtx.Err()
}

// Stop gracefully stops the tracker and closes the event stream
func (t *MprisTracker) Stop(ctx context.Context) error {
	t.mu.Lock()
	if !t.running {
		t.mu.Unlock()
		return nil
	}
	if t.cancel != nil {
		t.cancel()
	}
	t.running = false
	t.mu.Unlock()

	// Producer goroutines must finish before the channel is closed
	t.wg.Wait()
	close(t.events)

	t.mu.Lock()
	if t.conn != nil {
		if err := t.conn.Close(); err != nil {
			t.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		}
	}
	t.mu.Unlock()

	t.logger.Info("MPRIS tracker shutdown complete")
	return nil
}

// Events returns the deduplicated state stream
func (t *MprisTracker) Events() <-chan domain.StateEvent {
	return t.events
}

// Rescan queries the bus for active MPRIS players and retargets the
// tracked session. The bus enumeration order stands in for session
// priority: the first player found wins. When no player is left the
// tracker signals "no active media" exactly once.
func (t *MprisTracker) Rescan() {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.conn == nil {
		return
	}

	names, err := t.conn.ListNames()
	if err != nil {
		t.logger.Warn("Failed to list bus names", zap.Error(err))
		return
	}

	var found string
	for _, name := range names {
		if strings.HasPrefix(name, mprisPrefix) {
			found = name
			break
		}
	}

	if found == "" {
		if t.player != "" || t.last != nil {
			t.logger.Info("No MPRIS players left, clearing tracked session")
			t.player = ""
			t.owner = ""
			t.last = nil
			t.emitLocked(domain.StateEvent{})
		}
		return
	}

	if found == t.player {
		return
	}

	t.logger.Info("Tracking media player", zap.String("player", found))
	t.player = found
	if owner, err := t.conn.GetNameOwner(found); err == nil {
		t.owner = owner
	} else {
		t.owner = ""
		t.logger.Debug("Could not resolve player owner", zap.Error(err))
	}
	t.pushLocked(t.snapshotLocked(nil, ""))
}

// Snapshot computes the current MusicState from the tracked session, or
// nil when nothing is tracked or the player is stopped.
func (t *MprisTracker) Snapshot() *domain.MusicState {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked(nil, "")
}

// Dispatch forwards a transport command to the tracked session. The
// play/pause toggle consults the status reported at dispatch time.
// Commands are best-effort; failures are logged and swallowed.
func (t *MprisTracker) Dispatch(cmd domain.TransportCommand) {
	t.mu.Lock()
	player := t.player
	conn := t.conn
	t.mu.Unlock()

	if player == "" || conn == nil {
		t.logger.Debug("Transport command with no tracked session", zap.String("cmd", string(cmd)))
		return
	}

	var method string
	switch cmd {
	case domain.CommandPlayPause:
		method = methodPlay
		if v, err := conn.GetProperty(player, mprisPath, propStatus); err == nil {
			if s, ok := v.Value().(string); ok && s == string(domain.StatusPlaying) {
				method = methodPause
			}
		}
	case domain.CommandNext:
		method = methodNext
	case domain.CommandPrevious:
		method = methodPrevious
	default:
		t.logger.Warn("Unknown transport command", zap.String("cmd", string(cmd)))
		return
	}

	if err := conn.Call(player, mprisPath, method); err != nil {
		t.logger.Warn("Transport command failed",
			zap.String("player", player),
			zap.String("method", method),
			zap.Error(err))
	}
}

// Raise asks the tracked player to bring its UI to the foreground
func (t *MprisTracker) Raise() {
	t.mu.Lock()
	player := t.player
	conn := t.conn
	t.mu.Unlock()

	if player == "" || conn == nil {
		return
	}
	if err := conn.Call(player, mprisPath, methodRaise); err != nil {
		t.logger.Debug("Raise failed", zap.String("player", player), zap.Error(err))
	}
}

// processSignals consumes D-Bus signals until the context is cancelled
func (t *MprisTracker) processSignals(ctx context.Context) {
	defer t.wg.Done()

	signals := make(chan *dbus.Signal, 10)
	t.mu.Lock()
	t.conn.Signal(signals)
	t.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig == nil {
				continue
			}
			switch sig.Name {
			case "org.freedesktop.DBus.NameOwnerChanged":
				t.handleNameOwnerChanged(sig)
			case "org.freedesktop.DBus.Properties.PropertiesChanged":
				t.handlePropertiesChanged(sig)
			}
		}
	}
}

// handleNameOwnerChanged rescans whenever any MPRIS name appears,
// disappears or changes hands. Rescanning is cheap and idempotent, so no
// finer-grained bookkeeping is needed.
func (t *MprisTracker) handleNameOwnerChanged(sig *dbus.Signal) {
	if len(sig.Body) < 3 {
		return
	}
	name, ok := sig.Body[0].(string)
	if !ok || !strings.HasPrefix(name, mprisPrefix) {
		return
	}

	oldOwner, _ := sig.Body[1].(string)
	newOwner, _ := sig.Body[2].(string)
	t.logger.Debug("MPRIS name owner changed",
		zap.String("name", name),
		zap.String("old", oldOwner),
		zap.String("new", newOwner))

	t.mu.Lock()
	if name == t.player {
		if newOwner == "" {
			// Tracked player quit; forget it so the rescan can emit
			// "no media" or pick a survivor
			t.player = ""
			t.owner = ""
		} else {
			t.owner = newOwner
		}
	}
	t.mu.Unlock()

	t.Rescan()
}

// handlePropertiesChanged recomputes a snapshot from a player callback.
// Signals carry the fresh values, so they are used as overrides instead of
// re-reading the same properties over the bus.
func (t *MprisTracker) handlePropertiesChanged(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}

	iface, ok := sig.Body[0].(string)
	if !ok || iface != "org.mpris.MediaPlayer2.Player" {
		return
	}

	changed, ok := sig.Body[1].(map[string]dbus.Variant)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if t.player == "" {
		return
	}
	// Only the tracked player's callbacks count; other players keep
	// chattering on the same object path
	if t.owner != "" && sig.Sender != t.owner && sig.Sender != t.player {
		return
	}

	var overrideMeta map[string]dbus.Variant
	var overrideStatus string

	if v, has := changed["Metadata"]; has {
		if m, ok := v.Value().(map[string]dbus.Variant); ok {
			overrideMeta = m
		} else {
			t.logger.Warn("Invalid metadata format in signal, ignoring")
			return
		}
	}
	if v, has := changed["PlaybackStatus"]; has {
		if s, ok := v.Value().(string); ok {
			overrideStatus = s
		} else {
			t.logger.Warn("Invalid playback status format in signal, ignoring")
			return
		}
	}
	if overrideMeta == nil && overrideStatus == "" {
		return
	}

	t.pushLocked(t.snapshotLocked(overrideMeta, overrideStatus))
}

// snapshotLocked builds a MusicState from the tracked player's live
// properties, preferring override values already carried by a signal.
// Returns nil when there is no session, no playback state, or the player
// reports a terminal status. Callers must hold t.mu.
func (t *MprisTracker) snapshotLocked(overrideMeta map[string]dbus.Variant, overrideStatus string) *domain.MusicState {
	if t.player == "" || t.conn == nil {
		return nil
	}

	status := overrideStatus
	if status == "" {
		v, err := t.conn.GetProperty(t.player, mprisPath, propStatus)
		if err != nil {
			t.logger.Debug("No playback status", zap.Error(err))
			return nil
		}
		s, ok := v.Value().(string)
		if !ok {
			return nil
		}
		status = s
	}
	// Terminal/idle states map to "no music", not to a paused snapshot
	if status != string(domain.StatusPlaying) && status != string(domain.StatusPaused) {
		return nil
	}

	meta := overrideMeta
	if meta == nil {
		v, err := t.conn.GetProperty(t.player, mprisPath, propMetadata)
		if err != nil {
			t.logger.Debug("No metadata", zap.Error(err))
			return nil
		}
		m, ok := v.Value().(map[string]dbus.Variant)
		if !ok {
			// Players with no current track return nil or odd types here
			return nil
		}
		meta = m
	}

	state := parseMetadata(meta, t.player, status == string(domain.StatusPlaying))

	// Position is not part of PropertiesChanged payloads; it is polled
	// fresh each time and simply stays zero when unavailable
	if v, err := t.conn.GetProperty(t.player, mprisPath, propPosition); err == nil {
		state.Position = microsToDuration(v.Value())
	}

	return state
}

// pushLocked applies the dedup gate and emits. Callers must hold t.mu.
func (t *MprisTracker) pushLocked(state *domain.MusicState) {
	if state == nil {
		return
	}
	if state.Equal(t.last) {
		t.logger.Debug("Snapshot unchanged, suppressing emit")
		return
	}
	t.last = state
	t.logger.Info("Media state changed",
		zap.String("player", state.Player),
		zap.String("title", state.Title),
		zap.Bool("playing", state.Playing))
	t.emitLocked(domain.StateEvent{State: state})
}

// emitLocked performs a non-blocking send so a slow consumer can never
// stall signal delivery. Dropped events are recovered by the next poll.
func (t *MprisTracker) emitLocked(ev domain.StateEvent) {
	select {
	case t.events <- ev:
	default:
		const warningInterval = 5 * time.Second
		now := time.Now()
		if now.Sub(t.lastDropWarning) >= warningInterval {
			t.logger.Warn("Events channel full, dropping state update")
			t.lastDropWarning = now
		}
	}
}

// parseMetadata converts an MPRIS metadata map into a MusicState
func parseMetadata(meta map[string]dbus.Variant, player string, playing bool) *domain.MusicState {
	state := &domain.MusicState{
		Title:   domain.UnknownTitle,
		Playing: playing,
		Player:  player,
	}

	if v, ok := meta["xesam:title"]; ok {
		if title, ok := v.Value().(string); ok && title != "" {
			state.Title = title
		}
	}

	// Artist can be an array or, from non-compliant players, a plain string
	if v, ok := meta["xesam:artist"]; ok {
		switch artists := v.Value().(type) {
		case []string:
			if len(artists) > 0 {
				state.Artist = domain.NewField(artists[0])
			}
		case string:
			state.Artist = domain.NewField(artists)
		}
	}

	if v, ok := meta["xesam:album"]; ok {
		if album, ok := v.Value().(string); ok {
			state.Album = domain.NewField(album)
		}
	}

	if v, ok := meta["mpris:artUrl"]; ok {
		if artURL, ok := v.Value().(string); ok && artURL != "" {
			if data, ok := decodeDataURI(artURL); ok {
				state.ArtData = data
			} else {
				state.ArtURL = artURL
			}
		}
	}

	if v, ok := meta["mpris:length"]; ok {
		state.Duration = microsToDuration(v.Value())
	}

	return state
}

// microsToDuration converts the numeric microsecond values MPRIS players
// report under a handful of integer types
func microsToDuration(v interface{}) time.Duration {
	switch n := v.(type) {
	case int64:
		return time.Duration(n) * time.Microsecond
	case uint64:
		return time.Duration(n) * time.Microsecond
	case int32:
		return time.Duration(n) * time.Microsecond
	case uint32:
		return time.Duration(n) * time.Microsecond
	case int:
		return time.Duration(n) * time.Microsecond
	case float64:
		return time.Duration(n) * time.Microsecond
	default:
		return 0
	}
}

// decodeDataURI extracts inline image bytes from a data: art URL.
// Browsers and some streaming bridges embed art this way.
func decodeDataURI(url string) ([]byte, bool) {
	if !strings.HasPrefix(url, "data:") {
		return nil, false
	}
	_, payload, found := strings.Cut(url, ",")
	if !found {
		return nil, false
	}
	if !strings.Contains(url[:len(url)-len(payload)], ";base64") {
		return []byte(payload), true
	}
	data, err := base64.StdEncoding.DecodeString(payload)
	if err != nil {
		return nil, false
	}
	return data, true
}

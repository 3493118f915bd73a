// Package engine wires the media tracker, lock monitor, overlay signal,
// scheduler, renderer and notifier into one serialized event loop.
package engine

import (
	"context"
	"fmt"
	"image"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/lross/livemediad/internal/artwork"
	"github.com/lross/livemediad/internal/domain"
	"github.com/lross/livemediad/internal/render"
	"github.com/lross/livemediad/internal/sched"
)

// visibility is the orchestrator's coarse state, kept for logging and for
// the overlay re-show edge
type visibility int

const (
	noMedia visibility = iota
	mediaHidden
	mediaVisible
)

func (v visibility) String() string {
	switch v {
	case mediaHidden:
		return "MEDIA_HIDDEN"
	case mediaVisible:
		return "MEDIA_VISIBLE"
	default:
		return "NO_MEDIA"
	}
}

type artResult struct {
	key string
	img image.Image
}

// Engine is the orchestrator. Every event source funnels into one
// goroutine, so snapshot, pill-timer and art-cache state need no locking;
// only the album-art fetch leaves the loop, and its result comes back in
// as another event.
type Engine struct {
	logger   *zap.Logger
	prefs    domain.Prefs
	tracker  domain.Tracker
	lock     domain.LockMonitor
	overlay  domain.OverlaySignal
	notifier domain.Notifier
	resolver domain.ArtResolver
	renderer *render.Renderer
	sched    *sched.Scheduler

	// loop-owned state
	current          *domain.MusicState
	vis              visibility
	hiddenForOverlay bool
	artKey           string
	art              image.Image
	fetching         string
	artResults       chan artResult

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped chan struct{}
}

// NewEngine creates the orchestrator
func NewEngine(
	logger *zap.Logger,
	prefs domain.Prefs,
	tracker domain.Tracker,
	lock domain.LockMonitor,
	overlay domain.OverlaySignal,
	notifier domain.Notifier,
	resolver domain.ArtResolver,
	renderer *render.Renderer,
	scheduler *sched.Scheduler,
) *Engine {
	return &Engine{
		logger:     logger,
		prefs:      prefs,
		tracker:    tracker,
		lock:       lock,
		overlay:    overlay,
		notifier:   notifier,
		resolver:   resolver,
		renderer:   renderer,
		sched:      scheduler,
		artResults: make(chan artResult, 2),
	}
}

// Start launches the event loop in a goroutine and returns immediately
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.cancel != nil {
		return nil
	}

	// The fx start context ends once startup completes; the loop needs
	// its own lifetime
	loopCtx, cancel := context.WithCancel(context.Background())
	e.cancel = cancel
	e.stopped = make(chan struct{})

	e.logger.Info("Engine starting")
	go e.run(loopCtx)
	return nil
}

// Stop cancels the loop, any pending tick and any in-flight art fetch,
// then withdraws the notification. Safe to call twice or before Start.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	cancel := e.cancel
	stopped := e.stopped
	e.cancel = nil
	e.mu.Unlock()

	if cancel == nil {
		return nil
	}
	cancel()
	select {
	case <-stopped:
	case <-ctx.Done():
		return fmt.Errorf("engine stop timed out: %w", ctx.Err())
	}
	e.sched.Cancel()
	if err := e.notifier.Cancel(ctx); err != nil {
		e.logger.Debug("Cancel on shutdown failed", zap.Error(err))
	}
	e.logger.Info("Engine stopped")
	return nil
}

// run is the serialized event loop. Events are processed strictly in
// arrival order.
func (e *Engine) run(ctx context.Context) {
	defer close(e.stopped)

	overlayCh := e.overlay.Subscribe()
	// Swallow the replayed initial value: there is nothing to re-render yet
	select {
	case open := <-overlayCh:
		e.hiddenForOverlay = open && e.prefs.HideOnOverlayOpen()
	default:
	}

	for {
		select {
		case <-ctx.Done():
			e.logger.Info("Engine loop stopped")
			return

		case ev, ok := <-e.tracker.Events():
			if !ok {
				e.logger.Info("Tracker events channel closed")
				return
			}
			e.onStateEvent(ctx, ev)

		case unlocked, ok := <-e.lock.Events():
			if !ok {
				continue
			}
			e.onLockEdge(ctx, unlocked)

		case open := <-overlayCh:
			e.onOverlayEdge(ctx, open)

		case <-e.sched.C():
			e.onTick(ctx)

		case cmd := <-e.notifier.Commands():
			// A command-triggered player callback will arrive before the
			// next tick recomputes the same state
			e.tracker.Dispatch(cmd)

		case <-e.notifier.Activations():
			e.tracker.Raise()

		case res := <-e.artResults:
			e.onArtResolved(ctx, res)
		}
	}
}

func (e *Engine) onStateEvent(ctx context.Context, ev domain.StateEvent) {
	if ev.State == nil {
		e.logger.Info("No active media, clearing notification")
		e.current = nil
		e.setVisibility(noMedia)
		e.sched.Cancel()
		e.cancelNotification(ctx)
		return
	}

	e.current = ev.State
	e.renderCurrent(ctx)
	e.rearm()
}

func (e *Engine) onLockEdge(ctx context.Context, unlocked bool) {
	if !unlocked {
		e.logger.Info("Session locked, hiding notification")
		if e.vis == mediaVisible {
			e.setVisibility(mediaHidden)
		}
		e.cancelNotification(ctx)
		return
	}

	e.logger.Info("Session unlocked")
	if e.current != nil {
		e.renderCurrent(ctx)
	}
}

func (e *Engine) onOverlayEdge(ctx context.Context, open bool) {
	if open {
		if e.prefs.HideOnOverlayOpen() {
			e.logger.Debug("Overlay opened, hiding notification")
			e.hiddenForOverlay = true
			if e.vis == mediaVisible {
				e.setVisibility(mediaHidden)
			}
			e.cancelNotification(ctx)
		}
		return
	}

	wasHiding := e.hiddenForOverlay
	e.hiddenForOverlay = false
	if wasHiding && e.current != nil {
		e.logger.Debug("Overlay closed, restoring notification")
		e.renderCurrent(ctx)
	}
}

// onTick is one scheduler check cycle: poll the tracker, render if there
// is state, then decide when (whether) to check again.
func (e *Engine) onTick(ctx context.Context) {
	snap := e.tracker.Snapshot()
	if snap != nil {
		e.current = snap
		e.renderCurrent(ctx)
	} else {
		e.current = nil
	}
	e.rearm()
}

func (e *Engine) onArtResolved(ctx context.Context, res artResult) {
	if res.key != e.fetching {
		return // superseded by a newer track
	}
	e.fetching = ""
	if res.img == nil {
		return
	}
	e.artKey = res.key
	e.art = res.img
	if e.current != nil && e.vis == mediaVisible {
		e.renderCurrent(ctx)
	}
}

// renderCurrent evaluates the full gate and either posts or cancels.
// Re-posting identical content is a safe no-op at the notification level;
// the dedup that matters happened in the tracker.
func (e *Engine) renderCurrent(ctx context.Context) {
	if e.current == nil {
		return
	}

	r, ok := e.renderer.Render(
		e.current,
		e.prefs,
		e.lock.IsUnlocked(),
		e.overlay.Current(),
		e.artFor(ctx, e.current),
	)
	if !ok {
		e.setVisibility(mediaHidden)
		e.cancelNotification(ctx)
		return
	}

	if err := e.notifier.Show(ctx, r); err != nil {
		e.logger.Warn("Failed to post notification", zap.Error(err))
		return
	}
	e.setVisibility(mediaVisible)
}

// rearm applies the scheduling policy for the current snapshot
func (e *Engine) rearm() {
	if e.current == nil {
		e.sched.Cancel()
		return
	}
	titleLen := len([]rune(strings.TrimSpace(e.current.Title)))
	delay, ok := sched.NextDelay(
		e.current.Playing,
		e.prefs.ScrollEnabled(),
		e.prefs.PillContent(),
		titleLen,
	)
	if !ok {
		e.sched.Cancel()
		return
	}
	e.sched.Arm(delay)
}

// artFor returns cached album art for the snapshot, kicking off an
// asynchronous fetch when the reference is new. The render proceeds
// without art; the fetch result re-renders on arrival.
func (e *Engine) artFor(ctx context.Context, state *domain.MusicState) image.Image {
	if !e.prefs.ShowAlbumArt() {
		return nil
	}

	key := state.ArtURL
	if len(state.ArtData) > 0 {
		key = fmt.Sprintf("inline:%s:%d", state.Title, len(state.ArtData))
	}
	if key == "" {
		return nil
	}
	if key == e.artKey {
		return e.art
	}

	if len(state.ArtData) > 0 {
		img, err := artwork.Decode(state.ArtData)
		if err != nil {
			e.logger.Debug("Inline art decode failed", zap.Error(err))
			return nil
		}
		e.artKey = key
		e.art = img
		return img
	}

	if e.fetching != key {
		e.fetching = key
		url := state.ArtURL
		go func() {
			img, err := e.resolver.Resolve(ctx, url)
			if err != nil {
				e.logger.Debug("Art resolution failed",
					zap.String("url", url), zap.Error(err))
			}
			select {
			case e.artResults <- artResult{key: key, img: img}:
			case <-ctx.Done():
			}
		}()
	}
	return nil
}

func (e *Engine) setVisibility(v visibility) {
	if v == e.vis {
		return
	}
	e.logger.Debug("Visibility transition",
		zap.Stringer("from", e.vis),
		zap.Stringer("to", v))
	e.vis = v
}

// cancelNotification withdraws the live notification, tolerating repeats
func (e *Engine) cancelNotification(ctx context.Context) {
	if err := e.notifier.Cancel(ctx); err != nil {
		e.logger.Debug("Cancel failed", zap.Error(err))
	}
}

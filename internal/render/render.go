// Package render maps a music snapshot plus preferences and visibility
// inputs into notification content, or into a cancel decision.
package render

import (
	"image"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/lross/livemediad/internal/domain"
	"github.com/lross/livemediad/internal/provider"
)

// maxBodyLength caps the artist/album line before ellipsis truncation
const maxBodyLength = 40

const subTextSeparator = " · "

// Renderer computes notification content. It owns the pill-timer state
// (last title, scroll epoch) and is confined to the engine's event loop;
// it is not safe for concurrent use.
type Renderer struct {
	logger *zap.Logger
	clock  clockwork.Clock

	lastTitle   string
	titleStart  time.Time
	lastPlaying bool
}

// NewRenderer creates a renderer on the given clock
func NewRenderer(logger *zap.Logger, clock clockwork.Clock) *Renderer {
	return &Renderer{logger: logger, clock: clock}
}

// GateOpen evaluates the full visibility gate: the session must be
// unlocked, the overlay must not be hiding us, and the source app must be
// allowed. Evaluated on every render attempt, never only on edges.
func GateOpen(prefs domain.Prefs, player string, unlocked, overlayOpen bool) bool {
	if !unlocked {
		return false
	}
	if overlayOpen && prefs.HideOnOverlayOpen() {
		return false
	}
	return prefs.AppEnabled(player)
}

// Render returns the notification content for the snapshot, or ok=false
// when the visibility gate is closed and the notification must be
// cancelled instead.
func (r *Renderer) Render(state *domain.MusicState, prefs domain.Prefs, unlocked, overlayOpen bool, art image.Image) (domain.Rendered, bool) {
	if !GateOpen(prefs, state.Player, unlocked, overlayOpen) {
		return domain.Rendered{}, false
	}

	r.resetPillTimer(state, prefs)

	p := provider.Lookup(state.Player)

	out := domain.Rendered{
		Summary:  state.Title,
		Body:     r.bodyLine(state, prefs),
		SubText:  subText(state, prefs, p.Name),
		Pill:     PillText(state, prefs.PillContent(), prefs.ScrollEnabled(), r.clock.Since(r.titleStart)),
		IconName: p.Icon,
		Actions:  prefs.ShowActionButtons(),
		Playing:  state.Playing,
		Player:   state.Player,
	}

	if prefs.ShowAlbumArt() && art != nil {
		out.Art = art
	}

	if prefs.ShowProgress() && state.Duration > 0 {
		out.Progress = &domain.Progress{
			Position: state.Position,
			Duration: state.Duration,
		}
	}

	return out, true
}

// PillTimerElapsed exposes the scroll epoch for the scheduler's logging;
// primarily useful in tests
func (r *Renderer) PillTimerElapsed() time.Duration {
	if r.titleStart.IsZero() {
		return 0
	}
	return r.clock.Since(r.titleStart)
}

// resetPillTimer restarts the scroll epoch when the title changes, or when
// playback just paused while the pill was showing a time value: the pause
// flips the pill back to the title, which must start scrolling from the
// beginning rather than from an offset tied to the old time display.
func (r *Renderer) resetPillTimer(state *domain.MusicState, prefs domain.Prefs) {
	justPaused := r.lastPlaying && !state.Playing
	wasShowingTime := prefs.PillContent() != domain.PillTitle

	if state.Title != r.lastTitle || (justPaused && wasShowingTime) {
		r.lastTitle = state.Title
		r.titleStart = r.clock.Now()
		r.logger.Debug("Pill timer reset", zap.String("title", state.Title))
	}
	r.lastPlaying = state.Playing
}

// bodyLine builds the artist/album content line. Absent fields are
// suppressed entirely; the combined line is ellipsis-truncated.
func (r *Renderer) bodyLine(state *domain.MusicState, prefs domain.Prefs) string {
	var parts []string
	if prefs.ShowArtistName() && state.Artist.Present {
		parts = append(parts, state.Artist.Value)
	}
	if prefs.ShowAlbumName() && state.Album.Present {
		parts = append(parts, state.Album.Value)
	}
	return TruncateEllipsis(strings.Join(parts, " - "), maxBodyLength)
}

// subText combines the provider name and position/duration timestamp,
// omitted entirely when both toggles are off
func subText(state *domain.MusicState, prefs domain.Prefs, providerName string) string {
	var parts []string
	if prefs.ShowMusicProvider() {
		parts = append(parts, providerName)
	}
	if prefs.ShowTimestamp() && state.Duration > 0 {
		parts = append(parts, FormatTime(state.Position)+" / "+FormatTime(state.Duration))
	}
	return strings.Join(parts, subTextSeparator)
}

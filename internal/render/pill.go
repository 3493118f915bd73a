package render

import (
	"fmt"
	"strings"
	"time"

	"github.com/lross/livemediad/internal/domain"
	"github.com/lross/livemediad/internal/sched"
)

const (
	pillWidth = sched.VisiblePillWidth

	// The scroll advances one rune per tick, pausing a few ticks at each
	// end of the cycle before snapping back to the start (sawtooth, no
	// ping-pong)
	scrollTick      = sched.ScrollDelay
	startPauseTicks = 3
	endPauseTicks   = 2
)

// FormatTime renders a playback duration as m:ss, or h:mm:ss past an hour
func FormatTime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Second)
	h := total / 3600
	m := (total % 3600) / 60
	s := total % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// fixWidth truncates or right-pads a string to the pill width
func fixWidth(s string) string {
	runes := []rune(s)
	if len(runes) > pillWidth {
		return string(runes[:pillWidth])
	}
	return s + strings.Repeat(" ", pillWidth-len(runes))
}

// ScrollWindow extracts the visible pill substring for a scrolling title.
// It is a pure function of the title and the wall-clock time elapsed since
// the pill timer was last reset, so repeated calls with the same inputs
// return the same window.
func ScrollWindow(title string, elapsed time.Duration) string {
	runes := []rune(strings.TrimSpace(title))
	if len(runes) <= pillWidth {
		return fixWidth(string(runes))
	}

	maxOffset := len(runes) - pillWidth
	cycle := startPauseTicks + maxOffset + endPauseTicks

	step := int(elapsed/scrollTick) % cycle
	offset := step - startPauseTicks
	if offset < 0 {
		offset = 0
	}
	if offset > maxOffset {
		offset = maxOffset
	}

	return string(runes[offset : offset+pillWidth])
}

// PillText computes the status pill. Time-based modes only apply while
// playback is active with a known duration; everything else falls back to
// the title, scrolled when enabled and too long to fit.
func PillText(state *domain.MusicState, pill domain.PillContent, scrollEnabled bool, elapsed time.Duration) string {
	if state.Playing && state.Duration > 0 {
		switch pill {
		case domain.PillElapsed:
			return FormatTime(state.Position)
		case domain.PillRemaining:
			return FormatTime(state.Duration - state.Position)
		}
	}

	title := strings.TrimSpace(state.Title)
	if !scrollEnabled || len([]rune(title)) <= pillWidth {
		return fixWidth(title)
	}
	return ScrollWindow(title, elapsed)
}

// TruncateEllipsis shortens s to at most max runes, marking the cut with
// an ellipsis
func TruncateEllipsis(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max]) + "…"
}

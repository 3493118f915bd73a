package render

import (
	"testing"
	"time"

	"github.com/lross/livemediad/internal/domain"
)

func TestFormatTime(t *testing.T) {
	tests := []struct {
		d        time.Duration
		expected string
	}{
		{0, "0:00"},
		{42 * time.Second, "0:42"},
		{3*time.Minute + 5*time.Second, "3:05"},
		{61 * time.Minute, "1:01:00"},
		{-3 * time.Second, "0:00"}, // clamped, never negative
	}
	for _, tt := range tests {
		if got := FormatTime(tt.d); got != tt.expected {
			t.Errorf("FormatTime(%v): expected %q, got %q", tt.d, tt.expected, got)
		}
	}
}

// TestScrollWindowSawtooth walks the scroll cycle: pause at the start,
// one-directional slide, pause at the end, restart.
func TestScrollWindowSawtooth(t *testing.T) {
	title := "A New Song Name" // 15 runes, maxOffset 8

	tests := []struct {
		name     string
		elapsed  time.Duration
		expected string
	}{
		{"Start of cycle", 0, "A New S"},
		{"Still paused at start", 2 * scrollTick, "A New S"},
		{"Last paused tick", 3 * scrollTick, "A New S"},
		{"First slide step", 4 * scrollTick, " New So"},
		{"End of slide", 11 * scrollTick, "ng Name"},
		{"Paused at end", 12 * scrollTick, "ng Name"},
		{"Cycle restarts", 13 * scrollTick, "A New S"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ScrollWindow(title, tt.elapsed); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

// TestScrollWindowIdempotent verifies the offset is a pure function of
// elapsed time: two calls with the same inputs return the same window.
func TestScrollWindowIdempotent(t *testing.T) {
	title := "Stairway to Heaven"
	for _, elapsed := range []time.Duration{0, 900 * time.Millisecond, 4 * time.Second, time.Minute} {
		first := ScrollWindow(title, elapsed)
		second := ScrollWindow(title, elapsed)
		if first != second {
			t.Errorf("elapsed %v: %q != %q", elapsed, first, second)
		}
	}
}

func TestPillTextTimeModes(t *testing.T) {
	state := &domain.MusicState{
		Title:    "A Very Long Track Title",
		Playing:  true,
		Duration: 4 * time.Minute,
		Position: 90 * time.Second,
	}

	if got := PillText(state, domain.PillElapsed, true, 0); got != "1:30" {
		t.Errorf("elapsed pill: expected 1:30, got %q", got)
	}
	if got := PillText(state, domain.PillRemaining, true, 0); got != "2:30" {
		t.Errorf("remaining pill: expected 2:30, got %q", got)
	}
}

// TestPillTextFallsBackToTitleWhenPaused pins the invariant that a paused
// player never shows a time string, whatever the configured mode.
func TestPillTextFallsBackToTitleWhenPaused(t *testing.T) {
	state := &domain.MusicState{
		Title:    "Song",
		Playing:  false,
		Duration: 4 * time.Minute,
		Position: 90 * time.Second,
	}

	got := PillText(state, domain.PillElapsed, false, 0)
	if got != "Song   " {
		t.Errorf("expected padded title fallback, got %q", got)
	}
}

func TestPillTextUnknownDurationFallsBack(t *testing.T) {
	state := &domain.MusicState{Title: "Song", Playing: true}
	if got := PillText(state, domain.PillRemaining, false, 0); got != "Song   " {
		t.Errorf("expected title fallback for unknown duration, got %q", got)
	}
}

func TestPillTextShortTitlePadded(t *testing.T) {
	state := &domain.MusicState{Title: "A", Playing: true}
	got := PillText(state, domain.PillTitle, true, 0)
	if got != "A      " {
		t.Errorf("expected %q, got %q", "A      ", got)
	}
	if len([]rune(got)) != pillWidth {
		t.Errorf("pill must be exactly %d runes, got %d", pillWidth, len([]rune(got)))
	}
}

func TestTruncateEllipsis(t *testing.T) {
	tests := []struct {
		name     string
		in       string
		max      int
		expected string
	}{
		{"Under the limit", "short", 10, "short"},
		{"At the limit", "exactly-10", 10, "exactly-10"},
		{"Over the limit", "a string well past the limit", 10, "a string w…"},
		{"Multibyte runes", "héllo wörld", 5, "héllo…"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := TruncateEllipsis(tt.in, tt.max); got != tt.expected {
				t.Errorf("expected %q, got %q", tt.expected, got)
			}
		})
	}
}

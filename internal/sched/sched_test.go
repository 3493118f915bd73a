package sched

import (
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/lross/livemediad/internal/domain"
)

// TestNextDelay exercises the full rescheduling policy matrix.
func TestNextDelay(t *testing.T) {
	longTitle := len("A New Song Name") // 15 runes, past the pill width
	shortTitle := len("A")

	tests := []struct {
		name          string
		playing       bool
		scrollEnabled bool
		pill          domain.PillContent
		titleLen      int
		expectedDelay time.Duration
		expectedRun   bool
	}{
		{"Playing, scrolling long title", true, true, domain.PillTitle, longTitle, ScrollDelay, true},
		{"Playing, short title", true, true, domain.PillTitle, shortTitle, StaticDelay, true},
		{"Playing, scroll disabled", true, false, domain.PillTitle, longTitle, StaticDelay, true},
		{"Playing, time pill suppresses scroll", true, true, domain.PillElapsed, longTitle, StaticDelay, true},
		{"Paused, long title still scrolls", false, true, domain.PillElapsed, longTitle, ScrollDelay, true},
		{"Paused, short title stops", false, true, domain.PillTitle, shortTitle, 0, false},
		{"Paused, scroll disabled stops", false, false, domain.PillTitle, longTitle, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			delay, run := NextDelay(tt.playing, tt.scrollEnabled, tt.pill, tt.titleLen)
			if run != tt.expectedRun {
				t.Fatalf("run: expected %v, got %v", tt.expectedRun, run)
			}
			if run && delay != tt.expectedDelay {
				t.Errorf("delay: expected %v, got %v", tt.expectedDelay, delay)
			}
		})
	}
}

func TestSchedulerArmFires(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(zap.NewNop(), clock)

	s.Arm(time.Second)
	clock.Advance(time.Second)

	select {
	case <-s.C():
	case <-time.After(time.Second):
		t.Fatal("armed scheduler did not fire")
	}
}

func TestSchedulerRearmCancelsPending(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(zap.NewNop(), clock)

	s.Arm(time.Second)
	s.Arm(10 * time.Second)

	// The first deadline passes without a tick
	clock.Advance(5 * time.Second)
	select {
	case <-s.C():
		t.Fatal("cancelled deadline fired")
	default:
	}

	clock.Advance(5 * time.Second)
	select {
	case <-s.C():
	case <-time.After(time.Second):
		t.Fatal("re-armed scheduler did not fire")
	}
}

func TestSchedulerCancel(t *testing.T) {
	clock := clockwork.NewFakeClock()
	s := New(zap.NewNop(), clock)

	// Cancel without a pending tick must not panic
	s.Cancel()

	s.Arm(time.Second)
	s.Cancel()
	clock.Advance(2 * time.Second)

	select {
	case <-s.C():
		t.Fatal("cancelled scheduler fired")
	default:
	}
}

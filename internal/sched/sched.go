// Package sched provides the self-rearming check timer that keeps the
// live notification ticking while there is something worth refreshing.
package sched

import (
	"sync"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"github.com/lross/livemediad/internal/domain"
)

const (
	// VisiblePillWidth is the number of runes the status pill can show
	VisiblePillWidth = 7

	// ScrollDelay paces the sawtooth title scroll
	ScrollDelay = 500 * time.Millisecond
	// StaticDelay paces elapsed/remaining ticking and progress refresh
	StaticDelay = 1000 * time.Millisecond
)

// ShouldScroll reports whether the pill is currently a scrolling ticker:
// scrolling must be enabled, the pill must be showing the title (either
// configured to, or falling back to it because playback is paused), and
// the title must not fit the visible width.
func ShouldScroll(playing, scrollEnabled bool, pill domain.PillContent, titleLen int) bool {
	return scrollEnabled &&
		(pill == domain.PillTitle || !playing) &&
		titleLen > VisiblePillWidth
}

// NextDelay is the pure rescheduling policy: it returns the delay before
// the next check cycle and whether one should run at all. When playback is
// stopped and nothing scrolls, the cycle goes dormant until an external
// event re-arms it.
func NextDelay(playing, scrollEnabled bool, pill domain.PillContent, titleLen int) (time.Duration, bool) {
	scroll := ShouldScroll(playing, scrollEnabled, pill, titleLen)
	if !playing && !scroll {
		return 0, false
	}
	if scroll {
		return ScrollDelay, true
	}
	return StaticDelay, true
}

// Scheduler wraps a single re-armable timer. There is no background
// goroutine: the consumer selects on C and re-arms from its own loop.
type Scheduler struct {
	logger *zap.Logger
	clock  clockwork.Clock

	mu    sync.Mutex
	timer clockwork.Timer
}

// New creates a scheduler on the given clock (a fake clock in tests)
func New(logger *zap.Logger, clock clockwork.Clock) *Scheduler {
	t := clock.NewTimer(time.Hour)
	t.Stop()
	return &Scheduler{logger: logger, clock: clock, timer: t}
}

// C is the tick channel; it stays valid across Arm/Cancel calls
func (s *Scheduler) C() <-chan time.Time {
	return s.timer.Chan()
}

// Arm cancels any pending tick and schedules the next one after d.
// Must not race with a concurrent receive on C; the engine only calls it
// from the same loop that consumes C.
func (s *Scheduler) Arm(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.timer.Stop() {
		select {
		case <-s.timer.Chan():
		default:
		}
	}
	s.timer.Reset(d)
	s.logger.Debug("Scheduler armed", zap.Duration("delay", d))
}

// Cancel stops any pending tick; safe when none is pending
func (s *Scheduler) Cancel() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.timer.Stop() {
		select {
		case <-s.timer.Chan():
		default:
		}
	}
	s.logger.Debug("Scheduler cancelled")
}

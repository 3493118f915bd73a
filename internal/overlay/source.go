package overlay

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	// The shell-side observer (a GNOME extension or equivalent) emits this
	// signal with a single boolean body whenever the overlay opens/closes
	sourceInterface = "io.github.lross.livemediad.Shell"
	sourceMember    = "OverlayStateChanged"
	sourceSignal    = sourceInterface + "." + sourceMember
)

// DBusSource feeds a Signal from the shell observer's D-Bus signal.
// The observer itself is out of scope; its contract is just "true while a
// qualifying overlay is on screen".
type DBusSource struct {
	logger *zap.Logger
	signal *Signal

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	conn    *dbus.Conn
	wg      sync.WaitGroup
}

// NewDBusSource creates a source feeding the given signal
func NewDBusSource(logger *zap.Logger, signal *Signal) *DBusSource {
	return &DBusSource{logger: logger, signal: signal}
}

// Start subscribes to the shell observer and blocks until the context is
// cancelled. A missing observer is not an error: the signal simply stays
// false and the notification is never overlay-hidden.
func (s *DBusSource) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = true
	srcCtx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.mu.Unlock()

	conn, err := dbus.SessionBus()
	if err != nil {
		s.mu.Lock()
		s.running = false
		s.cancel = nil
		s.mu.Unlock()
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(sourceInterface),
		dbus.WithMatchMember(sourceMember),
	); err != nil {
		s.logger.Warn("Failed to add overlay match", zap.Error(err))
	}

	signals := make(chan *dbus.Signal, 10)
	conn.Signal(signals)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-srcCtx.Done():
				return
			case sig := <-signals:
				if sig == nil || sig.Name != sourceSignal || len(sig.Body) < 1 {
					continue
				}
				open, ok := sig.Body[0].(bool)
				if !ok {
					continue
				}
				s.logger.Debug("Overlay state signal", zap.Bool("open", open))
				s.signal.Set(open)
			}
		}
	}()

	s.logger.Info("Overlay source started")
	<-srcCtx.Done()
	return srcCtx.Err()
}

// Stop tears the subscription down; safe without a prior Start
func (s *DBusSource) Stop(ctx context.Context) error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	s.running = false
	s.mu.Unlock()

	s.wg.Wait()

	s.mu.Lock()
	if s.conn != nil {
		if err := s.conn.Close(); err != nil {
			s.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		}
	}
	s.mu.Unlock()
	return nil
}

// Package lockwatch tracks the session lock state through the
// freedesktop ScreenSaver interface.
package lockwatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"
)

const (
	screenSaverDest = "org.freedesktop.ScreenSaver"
	screenSaverPath = "/org/freedesktop/ScreenSaver"
	signalActive    = "org.freedesktop.ScreenSaver.ActiveChanged"
)

// ScreenSaverClient defines the bus operations the monitor needs.
// Abstracted for testability, mirroring the tracker's D-Bus client.
type ScreenSaverClient interface {
	// Close closes the D-Bus connection
	Close() error

	// AddMatchSignal adds a signal match rule
	AddMatchSignal(options ...dbus.MatchOption) error

	// Signal registers a channel to receive D-Bus signals
	Signal(ch chan<- *dbus.Signal)

	// Active reports whether the screensaver/lock is currently active
	Active() (bool, error)
}

// StdScreenSaverClient is the real implementation using godbus
type StdScreenSaverClient struct {
	conn *dbus.Conn
}

// NewStdScreenSaverClient connects to the session bus
func NewStdScreenSaverClient() (*StdScreenSaverClient, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	return &StdScreenSaverClient{conn: conn}, nil
}

// Close closes the D-Bus connection
func (c *StdScreenSaverClient) Close() error { return c.conn.Close() }

// AddMatchSignal adds a signal match rule
func (c *StdScreenSaverClient) AddMatchSignal(options ...dbus.MatchOption) error {
	return c.conn.AddMatchSignal(options...)
}

// Signal registers a channel to receive D-Bus signals
func (c *StdScreenSaverClient) Signal(ch chan<- *dbus.Signal) { c.conn.Signal(ch) }

// Active calls org.freedesktop.ScreenSaver.GetActive
func (c *StdScreenSaverClient) Active() (bool, error) {
	var active bool
	err := c.conn.Object(screenSaverDest, screenSaverPath).
		Call("org.freedesktop.ScreenSaver.GetActive", 0).Store(&active)
	return active, err
}

// Monitor listens for lock/unlock transitions and answers point-in-time
// lock queries. Renders can be triggered by unrelated events while the
// screen is locked, so the gate always re-queries IsUnlocked instead of
// trusting the last edge.
type Monitor struct {
	logger *zap.Logger
	events chan bool

	mu         sync.Mutex
	running    bool
	cancel     context.CancelFunc
	conn       ScreenSaverClient
	lastLocked bool
	wg         sync.WaitGroup

	connect func() (ScreenSaverClient, error)
}

// NewMonitor creates a lock-state monitor
func NewMonitor(logger *zap.Logger) *Monitor {
	return &Monitor{
		logger: logger,
		events: make(chan bool, 4),
		connect: func() (ScreenSaverClient, error) {
			return NewStdScreenSaverClient()
		},
	}
}

// Start subscribes to ActiveChanged signals and blocks until the context
// is cancelled. Calling Start twice is a no-op.
func (m *Monitor) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.running {
		m.mu.Unlock()
		return nil
	}
	m.running = true
	watchCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	m.mu.Unlock()

	conn, err := m.connect()
	if err != nil {
		m.mu.Lock()
		m.running = false
		m.cancel = nil
		m.mu.Unlock()
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	m.mu.Lock()
	m.conn = conn
	if active, err := conn.Active(); err == nil {
		m.lastLocked = active
	}
	m.mu.Unlock()

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface("org.freedesktop.ScreenSaver"),
		dbus.WithMatchMember("ActiveChanged"),
	); err != nil {
		m.logger.Warn("Failed to add ActiveChanged match", zap.Error(err))
	}

	m.wg.Add(1)
	go m.processSignals(watchCtx)

	m.logger.Info("Lock monitor started")
	<-watchCtx.Done()
	m.logger.Info("Lock monitor stopped")
	return watchCtx.Err()
}

// Stop releases the subscription. Idempotent and safe even if Start
// never ran or already failed.
func (m *Monitor) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.running {
		m.mu.Unlock()
		return nil
	}
	if m.cancel != nil {
		m.cancel()
	}
	m.running = false
	m.mu.Unlock()

	m.wg.Wait()
	close(m.events)

	m.mu.Lock()
	if m.conn != nil {
		if err := m.conn.Close(); err != nil {
			m.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		}
	}
	m.mu.Unlock()
	return nil
}

// Events emits true on unlock edges and false on lock edges
func (m *Monitor) Events() <-chan bool {
	return m.events
}

// IsUnlocked is a point-in-time query. When the screensaver service is
// unreachable the session is assumed unlocked, so a missing desktop
// component degrades to "notification stays visible" rather than a
// permanently withheld notification.
func (m *Monitor) IsUnlocked() bool {
	m.mu.Lock()
	conn := m.conn
	m.mu.Unlock()

	if conn == nil {
		return true
	}
	active, err := conn.Active()
	if err != nil {
		m.logger.Debug("GetActive failed, assuming unlocked", zap.Error(err))
		return true
	}
	return !active
}

func (m *Monitor) processSignals(ctx context.Context) {
	defer m.wg.Done()

	signals := make(chan *dbus.Signal, 10)
	m.mu.Lock()
	m.conn.Signal(signals)
	m.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig == nil || sig.Name != signalActive || len(sig.Body) < 1 {
				continue
			}
			locked, ok := sig.Body[0].(bool)
			if !ok {
				continue
			}
			m.handleEdge(locked)
		}
	}
}

// handleEdge forwards lock transitions, suppressing repeats of the same
// value so subscribers only see edges
func (m *Monitor) handleEdge(locked bool) {
	m.mu.Lock()
	if locked == m.lastLocked {
		m.mu.Unlock()
		return
	}
	m.lastLocked = locked
	m.mu.Unlock()

	m.logger.Info("Lock state changed", zap.Bool("locked", locked))
	select {
	case m.events <- !locked:
	default:
		m.logger.Warn("Lock events channel full, dropping edge")
	}
}

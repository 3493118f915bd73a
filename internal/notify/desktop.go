// Package notify posts the live notification through the freedesktop
// Notifications service, reusing a single notification identity for the
// daemon's whole lifetime.
package notify

import (
	"context"
	"fmt"
	"image"
	"sync"

	"github.com/disintegration/imaging"
	"github.com/godbus/dbus/v5"
	"go.uber.org/zap"

	"github.com/lross/livemediad/internal/domain"
)

const (
	notifyDest  = "org.freedesktop.Notifications"
	notifyPath  = "/org/freedesktop/Notifications"
	notifyIface = "org.freedesktop.Notifications"

	appName = "livemediad"

	actionDefault  = "default"
	actionPrevious = "previous"
	actionToggle   = "play-pause"
	actionNext     = "next"
)

// NotifyClient defines the bus operations the notifier needs.
// Abstracted for testability.
type NotifyClient interface {
	// Close closes the D-Bus connection
	Close() error

	// Notify posts or replaces a notification and returns its server id
	Notify(app string, replacesID uint32, icon, summary, body string,
		actions []string, hints map[string]dbus.Variant, timeout int32) (uint32, error)

	// CloseNotification withdraws a notification by id
	CloseNotification(id uint32) error

	// AddMatchSignal adds a signal match rule
	AddMatchSignal(options ...dbus.MatchOption) error

	// Signal registers a channel to receive D-Bus signals
	Signal(ch chan<- *dbus.Signal)
}

// StdNotifyClient is the real implementation using godbus
type StdNotifyClient struct {
	conn *dbus.Conn
}

// NewStdNotifyClient connects to the session bus
func NewStdNotifyClient() (*StdNotifyClient, error) {
	conn, err := dbus.SessionBus()
	if err != nil {
		return nil, err
	}
	return &StdNotifyClient{conn: conn}, nil
}

// Close closes the D-Bus connection
func (c *StdNotifyClient) Close() error { return c.conn.Close() }

// Notify posts or replaces a notification and returns its server id
func (c *StdNotifyClient) Notify(app string, replacesID uint32, icon, summary, body string,
	actions []string, hints map[string]dbus.Variant, timeout int32) (uint32, error) {
	var id uint32
	err := c.conn.Object(notifyDest, notifyPath).
		Call(notifyIface+".Notify", 0,
			app, replacesID, icon, summary, body, actions, hints, timeout).
		Store(&id)
	return id, err
}

// CloseNotification withdraws a notification by id
func (c *StdNotifyClient) CloseNotification(id uint32) error {
	return c.conn.Object(notifyDest, notifyPath).
		Call(notifyIface+".CloseNotification", 0, id).Err
}

// AddMatchSignal adds a signal match rule
func (c *StdNotifyClient) AddMatchSignal(options ...dbus.MatchOption) error {
	return c.conn.AddMatchSignal(options...)
}

// Signal registers a channel to receive D-Bus signals
func (c *StdNotifyClient) Signal(ch chan<- *dbus.Signal) { c.conn.Signal(ch) }

// imageData matches the iiibiiay image-data hint layout the notification
// spec inherited from GdkPixbuf
type imageData struct {
	Width         int32
	Height        int32
	Rowstride     int32
	HasAlpha      bool
	BitsPerSample int32
	Channels      int32
	Data          []byte
}

// DesktopNotifier owns the single live-notification identity and forwards
// action-button presses back as transport commands.
type DesktopNotifier struct {
	logger      *zap.Logger
	commands    chan domain.TransportCommand
	activations chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	conn    NotifyClient
	id      uint32
	wg      sync.WaitGroup

	connect func() (NotifyClient, error)
}

// NewDesktopNotifier creates a notifier
func NewDesktopNotifier(logger *zap.Logger) *DesktopNotifier {
	return &DesktopNotifier{
		logger:      logger,
		commands:    make(chan domain.TransportCommand, 4),
		activations: make(chan struct{}, 1),
		connect: func() (NotifyClient, error) {
			return NewStdNotifyClient()
		},
	}
}

// Start connects to the notification service and listens for action
// invocations until the context is cancelled
func (n *DesktopNotifier) Start(ctx context.Context) error {
	n.mu.Lock()
	if n.running {
		n.mu.Unlock()
		return nil
	}
	n.running = true
	runCtx, cancel := context.WithCancel(ctx)
	n.cancel = cancel
	n.mu.Unlock()

	conn, err := n.connect()
	if err != nil {
		n.mu.Lock()
		n.running = false
		n.cancel = nil
		n.mu.Unlock()
		return fmt.Errorf("session bus connection failed: %w", err)
	}

	n.mu.Lock()
	n.conn = conn
	n.mu.Unlock()

	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(notifyIface),
		dbus.WithMatchMember("ActionInvoked"),
	); err != nil {
		n.logger.Warn("Failed to add ActionInvoked match", zap.Error(err))
	}
	if err := conn.AddMatchSignal(
		dbus.WithMatchInterface(notifyIface),
		dbus.WithMatchMember("NotificationClosed"),
	); err != nil {
		n.logger.Warn("Failed to add NotificationClosed match", zap.Error(err))
	}

	n.wg.Add(1)
	go n.processSignals(runCtx)

	n.logger.Info("Desktop notifier started")
	<-runCtx.Done()
	return runCtx.Err()
}

// Stop withdraws the notification and tears the subscription down.
// Safe without a prior Start.
func (n *DesktopNotifier) Stop(ctx context.Context) error {
	n.mu.Lock()
	if !n.running {
		n.mu.Unlock()
		return nil
	}
	if n.cancel != nil {
		n.cancel()
	}
	n.running = false
	conn := n.conn
	id := n.id
	n.id = 0
	n.mu.Unlock()

	n.wg.Wait()

	if conn != nil {
		if id != 0 {
			if err := conn.CloseNotification(id); err != nil {
				n.logger.Debug("CloseNotification on shutdown failed", zap.Error(err))
			}
		}
		if err := conn.Close(); err != nil {
			n.logger.Warn("Failed to close D-Bus connection", zap.Error(err))
		}
	}
	return nil
}

// Commands emits transport commands from the notification's buttons
func (n *DesktopNotifier) Commands() <-chan domain.TransportCommand {
	return n.commands
}

// Activations emits once per tap on the notification body
func (n *DesktopNotifier) Activations() <-chan struct{} {
	return n.activations
}

// Show posts or replaces the live notification. The same server id is
// reused for every update so the notification never stacks.
func (n *DesktopNotifier) Show(ctx context.Context, r domain.Rendered) error {
	n.mu.Lock()
	conn := n.conn
	replaces := n.id
	n.mu.Unlock()

	if conn == nil {
		return fmt.Errorf("notifier not started")
	}

	body := r.Body
	if r.SubText != "" {
		if body != "" {
			body += "\n"
		}
		body += r.SubText
	}

	actions := []string{actionDefault, "Open"}
	if r.Actions {
		toggle := "Pause"
		if !r.Playing {
			toggle = "Play"
		}
		actions = append(actions,
			actionPrevious, "Previous",
			actionToggle, toggle,
			actionNext, "Next",
		)
	}

	hints := map[string]dbus.Variant{
		"urgency":       dbus.MakeVariant(byte(0)), // low: a live update, not an alert
		"resident":      dbus.MakeVariant(true),
		"desktop-entry": dbus.MakeVariant(appName),
		"category":      dbus.MakeVariant("transfer"),
		// The pill is surfaced as a hint for the shell-side compact view
		"x-livemediad-pill": dbus.MakeVariant(r.Pill),
	}
	if r.Art != nil {
		hints["image-data"] = dbus.MakeVariant(toImageData(r.Art))
	}
	if r.Progress != nil && r.Progress.Duration > 0 {
		percent := int32(r.Progress.Position * 100 / r.Progress.Duration)
		if percent < 0 {
			percent = 0
		}
		if percent > 100 {
			percent = 100
		}
		hints["value"] = dbus.MakeVariant(percent)
	}

	id, err := conn.Notify(appName, replaces, r.IconName, r.Summary, body, actions, hints, 0)
	if err != nil {
		return fmt.Errorf("notify failed: %w", err)
	}

	n.mu.Lock()
	n.id = id
	n.mu.Unlock()

	n.logger.Debug("Live notification posted",
		zap.Uint32("id", id),
		zap.String("summary", r.Summary),
		zap.String("pill", r.Pill))
	return nil
}

// Cancel withdraws the live notification; a no-op when none is shown
func (n *DesktopNotifier) Cancel(ctx context.Context) error {
	n.mu.Lock()
	conn := n.conn
	id := n.id
	n.id = 0
	n.mu.Unlock()

	if conn == nil || id == 0 {
		return nil
	}
	if err := conn.CloseNotification(id); err != nil {
		// The server may have already discarded it; benign
		n.logger.Debug("CloseNotification failed", zap.Error(err))
	}
	n.logger.Debug("Live notification cancelled", zap.Uint32("id", id))
	return nil
}

func (n *DesktopNotifier) processSignals(ctx context.Context) {
	defer n.wg.Done()

	signals := make(chan *dbus.Signal, 10)
	n.mu.Lock()
	n.conn.Signal(signals)
	n.mu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-signals:
			if sig == nil {
				continue
			}
			switch sig.Name {
			case notifyIface + ".ActionInvoked":
				n.handleAction(sig)
			case notifyIface + ".NotificationClosed":
				n.handleClosed(sig)
			}
		}
	}
}

func (n *DesktopNotifier) handleAction(sig *dbus.Signal) {
	if len(sig.Body) < 2 {
		return
	}
	id, ok := sig.Body[0].(uint32)
	key, ok2 := sig.Body[1].(string)
	if !ok || !ok2 {
		return
	}

	n.mu.Lock()
	ours := id == n.id && n.id != 0
	n.mu.Unlock()
	if !ours {
		return
	}

	n.logger.Info("Notification action invoked", zap.String("action", key))

	switch key {
	case actionDefault:
		select {
		case n.activations <- struct{}{}:
		default:
		}
		return
	case actionPrevious:
		n.push(domain.CommandPrevious)
	case actionToggle:
		n.push(domain.CommandPlayPause)
	case actionNext:
		n.push(domain.CommandNext)
	}
}

func (n *DesktopNotifier) handleClosed(sig *dbus.Signal) {
	if len(sig.Body) < 1 {
		return
	}
	id, ok := sig.Body[0].(uint32)
	if !ok {
		return
	}
	n.mu.Lock()
	if id == n.id {
		// User dismissed it; next Show must not try to replace a dead id
		n.id = 0
	}
	n.mu.Unlock()
}

func (n *DesktopNotifier) push(cmd domain.TransportCommand) {
	select {
	case n.commands <- cmd:
	default:
		n.logger.Warn("Command channel full, dropping", zap.String("cmd", string(cmd)))
	}
}

// toImageData converts decoded art into the notification image-data hint
func toImageData(img image.Image) imageData {
	nrgba := imaging.Clone(img)
	b := nrgba.Bounds()
	return imageData{
		Width:         int32(b.Dx()),
		Height:        int32(b.Dy()),
		Rowstride:     int32(nrgba.Stride),
		HasAlpha:      true,
		BitsPerSample: 8,
		Channels:      4,
		Data:          nrgba.Pix,
	}
}

package domain

import (
	"context"
	"image"
)

// Tracker follows the currently active MPRIS media session and emits
// deduplicated state snapshots.
// Implementations handle D-Bus/MPRIS communication.
type Tracker interface {
	// Start begins tracking. It blocks until the context is cancelled.
	Start(ctx context.Context) error

	// Stop gracefully stops the tracker and closes the event stream
	Stop(ctx context.Context) error

	// Events returns a read-only channel that emits a StateEvent whenever
	// the deduplicated snapshot changes. A nil event state means no media.
	Events() <-chan StateEvent

	// Rescan re-queries the bus for active players and retargets the
	// tracked session if it changed
	Rescan()

	// Snapshot computes the current MusicState from the tracked session,
	// or nil when there is no session or it is stopped
	Snapshot() *MusicState

	// Dispatch forwards a transport command to the tracked session.
	// It is a no-op when nothing is tracked.
	Dispatch(cmd TransportCommand)

	// Raise asks the tracked player to bring its UI to the foreground
	Raise()
}

// LockMonitor exposes the device screen-lock state
type LockMonitor interface {
	// Start begins listening for lock/unlock transitions
	Start(ctx context.Context) error

	// Stop releases the subscription. Safe to call at any time, including
	// before Start or twice.
	Stop(ctx context.Context) error

	// Events emits true on unlock edges and false on lock edges
	Events() <-chan bool

	// IsUnlocked is a point-in-time query usable outside the edge flow
	IsUnlocked() bool
}

// OverlaySignal is a shared observable boolean reporting whether a system
// overlay (quick settings / notification shade equivalent) is on screen.
// It replays the latest value to new subscribers and only forwards edges.
type OverlaySignal interface {
	// Subscribe returns a channel that first receives the current value
	// and then every transition
	Subscribe() <-chan bool

	// Current returns the latest observed value
	Current() bool
}

// Prefs is the live preference store. Values are read fresh on every
// render; a settings front-end may change them at any time.
type Prefs interface {
	ShowAlbumArt() bool
	ShowArtistName() bool
	ShowAlbumName() bool
	ShowActionButtons() bool
	ShowProgress() bool
	ShowMusicProvider() bool
	ShowTimestamp() bool
	HideOnOverlayOpen() bool
	PillContent() PillContent
	ScrollEnabled() bool

	// AppEnabled reports whether the given player is allowed to drive the
	// live notification. Defaults to true unless explicitly disabled.
	AppEnabled(player string) bool
}

// Notifier owns the single live notification identity
type Notifier interface {
	// Show posts or replaces the live notification
	Show(ctx context.Context, r Rendered) error

	// Cancel withdraws the live notification. Safe to call when nothing
	// is displayed.
	Cancel(ctx context.Context) error

	// Commands emits transport commands triggered from notification
	// action buttons
	Commands() <-chan TransportCommand

	// Activations emits once per tap on the notification body (the
	// default action); the orchestrator raises the source player
	Activations() <-chan struct{}
}

// ArtResolver fetches and decodes album artwork. Implementations must be
// safe to call off the event loop; failures only suppress the icon.
type ArtResolver interface {
	Resolve(ctx context.Context, url string) (image.Image, error)
}

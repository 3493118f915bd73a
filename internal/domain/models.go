package domain

import (
	"bytes"
	"image"
	"time"
)

// PlayerStatus represents the playback status reported by a media player
type PlayerStatus string

const (
	// StatusPlaying indicates the media is currently playing
	StatusPlaying PlayerStatus = "Playing"
	// StatusPaused indicates the media is paused
	StatusPaused PlayerStatus = "Paused"
	// StatusStopped indicates the media is stopped
	StatusStopped PlayerStatus = "Stopped"
)

// TransportCommand is a playback command forwarded to the tracked player
type TransportCommand string

const (
	// CommandPlayPause toggles between play and pause based on the current status
	CommandPlayPause TransportCommand = "play-pause"
	// CommandNext skips to the next track
	CommandNext TransportCommand = "next"
	// CommandPrevious skips to the previous track
	CommandPrevious TransportCommand = "previous"
)

// PillContent selects what the compact status pill displays
type PillContent string

const (
	// PillTitle shows the (possibly scrolling) track title
	PillTitle PillContent = "title"
	// PillElapsed shows the elapsed playback time while playing
	PillElapsed PillContent = "elapsed"
	// PillRemaining shows the remaining playback time while playing
	PillRemaining PillContent = "remaining"
)

// UnknownTitle is displayed when a player omits the track title entirely
const UnknownTitle = "Unknown Title"

// Field is a tri-state metadata value. MPRIS players routinely omit artist
// or album, and display logic must distinguish "absent" from a genuinely
// empty string, so the zero Field means absent rather than empty.
type Field struct {
	Value   string
	Present bool
}

// NewField returns a present Field carrying v
func NewField(v string) Field {
	return Field{Value: v, Present: true}
}

// Or returns the field value, or fallback when the field is absent
func (f Field) Or(fallback string) string {
	if !f.Present {
		return fallback
	}
	return f.Value
}

// MusicState is an immutable snapshot of the tracked media session.
// Snapshots are created fresh on every normalization pass and compared by
// value; the tracker never emits two equal snapshots in a row.
type MusicState struct {
	// Title of the current track, never empty (UnknownTitle if omitted)
	Title string
	// Artist and Album keep the absent/present distinction
	Artist Field
	Album  Field
	// ArtData holds inline album art (decoded from data: URIs); ArtURL is
	// the lazy form resolved by the artwork resolver when ArtData is nil.
	// At most one of the two is expected to be set.
	ArtData []byte
	ArtURL  string
	// Playing is true while the player reports Playing status
	Playing bool
	// Duration of the track; zero when unknown
	Duration time.Duration
	// Position at the time the snapshot was taken. It does not tick.
	Position time.Duration
	// Player is the well-known MPRIS bus name of the source application,
	// e.g. "org.mpris.MediaPlayer2.spotify"
	Player string
}

// Equal reports whether two snapshots are identical field by field.
// Either side may be nil; two nil snapshots are equal.
func (s *MusicState) Equal(o *MusicState) bool {
	if s == nil || o == nil {
		return s == o
	}
	return s.Title == o.Title &&
		s.Artist == o.Artist &&
		s.Album == o.Album &&
		bytes.Equal(s.ArtData, o.ArtData) &&
		s.ArtURL == o.ArtURL &&
		s.Playing == o.Playing &&
		s.Duration == o.Duration &&
		s.Position == o.Position &&
		s.Player == o.Player
}

// StateEvent is emitted by the tracker whenever the deduplicated snapshot
// changes. A nil State signals that no active media session exists.
type StateEvent struct {
	State *MusicState
}

// Progress describes the notification progress bar
type Progress struct {
	Position time.Duration
	Duration time.Duration
}

// Rendered is the fully computed content of the live notification,
// produced by the renderer and posted by the notifier.
type Rendered struct {
	// Summary is the notification title (the track title)
	Summary string
	// Body is the artist/album line; empty when both toggles are off
	Body string
	// SubText combines provider name and timestamp per preferences
	SubText string
	// Pill is the short status-bar text
	Pill string
	// IconName is the themed icon for the source application
	IconName string
	// Art is the resolved album art, nil when disabled or unavailable
	Art image.Image
	// Progress is nil when the progress bar is disabled or duration unknown
	Progress *Progress
	// Actions enables the previous/play-pause/next buttons
	Actions bool
	// Playing flips the play-pause action label
	Playing bool
	// Player is the source application's MPRIS bus name
	Player string
}

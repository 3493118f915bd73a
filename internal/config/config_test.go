package config

import (
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/lross/livemediad/internal/domain"
)

func storeWithFile(t *testing.T, yaml string) *Store {
	t.Helper()
	dir := t.TempDir()
	if yaml != "" {
		path := filepath.Join(dir, "livemediad.yaml")
		if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
			t.Fatalf("writing config file: %v", err)
		}
	}
	t.Setenv("LIVEMEDIAD_CONFIG_DIR", dir)
	return NewStore(zap.NewNop())
}

func TestDefaults(t *testing.T) {
	s := storeWithFile(t, "")

	if !s.ShowAlbumArt() || !s.ShowArtistName() || !s.ShowAlbumName() {
		t.Error("content toggles must default to on")
	}
	if !s.ShowActionButtons() || !s.ShowProgress() || !s.ShowMusicProvider() || !s.ShowTimestamp() {
		t.Error("chrome toggles must default to on")
	}
	if s.HideOnOverlayOpen() {
		t.Error("overlay hiding must default to off")
	}
	if !s.ScrollEnabled() {
		t.Error("scrolling must default to on")
	}
	if s.PillContent() != domain.PillTitle {
		t.Errorf("pill must default to title, got %q", s.PillContent())
	}
	if !s.AppEnabled("org.mpris.MediaPlayer2.spotify") {
		t.Error("every app must default to enabled")
	}
}

func TestFileOverridesDefaults(t *testing.T) {
	s := storeWithFile(t, `
show_album_art: false
show_timestamp: false
hide_on_overlay_open: true
pill_content: elapsed
scroll_enabled: false
`)

	if s.ShowAlbumArt() {
		t.Error("show_album_art: file value not applied")
	}
	if s.ShowTimestamp() {
		t.Error("show_timestamp: file value not applied")
	}
	if !s.HideOnOverlayOpen() {
		t.Error("hide_on_overlay_open: file value not applied")
	}
	if s.PillContent() != domain.PillElapsed {
		t.Errorf("pill_content: expected elapsed, got %q", s.PillContent())
	}
	if s.ScrollEnabled() {
		t.Error("scroll_enabled: file value not applied")
	}
	// Untouched keys keep their defaults
	if !s.ShowArtistName() {
		t.Error("show_artist_name should still default to on")
	}
}

func TestPillContentUnrecognizedFallsBack(t *testing.T) {
	s := storeWithFile(t, "pill_content: sideways\n")
	if s.PillContent() != domain.PillTitle {
		t.Errorf("unrecognized pill mode must fall back to title, got %q", s.PillContent())
	}
}

func TestAppEnabled(t *testing.T) {
	s := storeWithFile(t, `
apps:
  disabled:
    - org.mpris.MediaPlayer2.firefox
    - org.mpris.MediaPlayer2.chromium
`)

	if s.AppEnabled("org.mpris.MediaPlayer2.firefox") {
		t.Error("listed app should be disabled")
	}
	if s.AppEnabled("org.mpris.MediaPlayer2.chromium") {
		t.Error("listed app should be disabled")
	}
	if !s.AppEnabled("org.mpris.MediaPlayer2.spotify") {
		t.Error("unlisted app should stay enabled")
	}
}

package provider

import "testing"

func TestLookup(t *testing.T) {
	tests := []struct {
		busName  string
		expected string
	}{
		{"org.mpris.MediaPlayer2.spotify", "Spotify"},
		{"org.mpris.MediaPlayer2.vlc", "VLC"},
		{"org.mpris.MediaPlayer2.vlc.instance7345", "VLC"},
		{"org.mpris.MediaPlayer2.firefox.instance_1_23", "Firefox"},
		{"org.mpris.MediaPlayer2.some.obscure.player", "Unknown Player"},
		{"org.mpris.MediaPlayer2.nobodyknows", "Unknown Player"},
	}

	for _, tt := range tests {
		t.Run(tt.busName, func(t *testing.T) {
			if got := Lookup(tt.busName).Name; got != tt.expected {
				t.Errorf("Lookup(%s): expected %q, got %q", tt.busName, tt.expected, got)
			}
		})
	}
}

func TestLookupFallbackIcon(t *testing.T) {
	p := Lookup("org.mpris.MediaPlayer2.nobodyknows")
	if p.Icon != "audio-x-generic" {
		t.Errorf("expected generic icon, got %q", p.Icon)
	}
}

// Package provider resolves a media player's MPRIS bus name into a
// friendly display name and a themed icon.
package provider

import "strings"

const mprisPrefix = "org.mpris.MediaPlayer2."

// Provider describes a recognized media application
type Provider struct {
	Name string
	Icon string
}

// unknown is the fallback for players not in the registry
var unknown = Provider{Name: "Unknown Player", Icon: "audio-x-generic"}

// registry keys are the MPRIS bus name suffix. Some players append an
// instance id (e.g. "vlc.instance1234"), so lookup also matches on the
// first dot-separated segment.
var registry = map[string]Provider{
	"spotify":     {Name: "Spotify", Icon: "spotify"},
	"vlc":         {Name: "VLC", Icon: "vlc"},
	"mpv":         {Name: "mpv", Icon: "mpv"},
	"rhythmbox":   {Name: "Rhythmbox", Icon: "rhythmbox"},
	"clementine":  {Name: "Clementine", Icon: "clementine"},
	"strawberry":  {Name: "Strawberry", Icon: "strawberry"},
	"elisa":       {Name: "Elisa", Icon: "elisa"},
	"amarok":      {Name: "Amarok", Icon: "amarok"},
	"audacious":   {Name: "Audacious", Icon: "audacious"},
	"firefox":     {Name: "Firefox", Icon: "firefox"},
	"chromium":    {Name: "Chromium", Icon: "chromium"},
	"chrome":      {Name: "Google Chrome", Icon: "google-chrome"},
	"tidal-hifi":  {Name: "TIDAL", Icon: "tidal-hifi"},
	"YoutubeMusic": {Name: "YouTube Music", Icon: "youtube-music"},
	"telegram":    {Name: "Telegram", Icon: "telegram"},
}

// Lookup resolves an MPRIS bus name such as
// "org.mpris.MediaPlayer2.spotify" to its provider entry, returning a
// generic fallback for unrecognized players.
func Lookup(busName string) Provider {
	suffix := strings.TrimPrefix(busName, mprisPrefix)
	if p, ok := registry[suffix]; ok {
		return p
	}
	// Instance-suffixed names like "vlc.instance7" or "firefox.instance_1_23"
	if head, _, found := strings.Cut(suffix, "."); found {
		if p, ok := registry[head]; ok {
			return p
		}
	}
	return unknown
}

// DisplayName is a convenience wrapper returning only the friendly name
func DisplayName(busName string) string {
	return Lookup(busName).Name
}

package config

import (
	"os"
	"path/filepath"
	"sync"

	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/lross/livemediad/internal/domain"
)

const (
	keyShowAlbumArt      = "show_album_art"
	keyShowArtistName    = "show_artist_name"
	keyShowAlbumName     = "show_album_name"
	keyShowActionButtons = "show_action_buttons"
	keyShowProgress      = "show_progress"
	keyShowMusicProvider = "show_music_provider"
	keyShowTimestamp     = "show_timestamp"
	keyHideOnOverlay     = "hide_on_overlay_open"
	keyPillContent       = "pill_content"
	keyScrollEnabled     = "scroll_enabled"
	keyDisabledApps      = "apps.disabled"
)

// Store is the live preference store backed by a watched config file.
// Reads go straight to viper so a settings front-end editing the file is
// picked up without restarting the daemon; reads may race writes and
// simply reflect the most recent committed value.
type Store struct {
	logger *zap.Logger
	v      *viper.Viper
	mu     sync.RWMutex
}

// NewStore loads livemediad.yaml from $LIVEMEDIAD_CONFIG_DIR or the user
// config directory, creating defaults in memory when no file exists.
func NewStore(logger *zap.Logger) *Store {
	v := viper.New()
	v.SetConfigName("livemediad")
	v.SetConfigType("yaml")

	dir := os.Getenv("LIVEMEDIAD_CONFIG_DIR")
	if dir == "" {
		if userDir, err := os.UserConfigDir(); err == nil {
			dir = filepath.Join(userDir, "livemediad")
		} else {
			dir = "."
		}
	}
	v.AddConfigPath(dir)

	v.SetDefault(keyShowAlbumArt, true)
	v.SetDefault(keyShowArtistName, true)
	v.SetDefault(keyShowAlbumName, true)
	v.SetDefault(keyShowActionButtons, true)
	v.SetDefault(keyShowProgress, true)
	v.SetDefault(keyShowMusicProvider, true)
	v.SetDefault(keyShowTimestamp, true)
	v.SetDefault(keyHideOnOverlay, false)
	v.SetDefault(keyPillContent, string(domain.PillTitle))
	v.SetDefault(keyScrollEnabled, true)
	v.SetDefault(keyDisabledApps, []string{})

	if err := v.ReadInConfig(); err != nil {
		logger.Info("No config file found, using defaults",
			zap.String("dir", dir))
	} else {
		logger.Info("Configuration loaded",
			zap.String("file", v.ConfigFileUsed()))
		v.WatchConfig()
	}

	return &Store{logger: logger, v: v}
}

func (s *Store) getBool(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.v.GetBool(key)
}

// ShowAlbumArt reports whether the large album-art icon is enabled
func (s *Store) ShowAlbumArt() bool { return s.getBool(keyShowAlbumArt) }

// ShowArtistName reports whether the artist appears in the body line
func (s *Store) ShowArtistName() bool { return s.getBool(keyShowArtistName) }

// ShowAlbumName reports whether the album appears in the body line
func (s *Store) ShowAlbumName() bool { return s.getBool(keyShowAlbumName) }

// ShowActionButtons reports whether transport buttons are attached
func (s *Store) ShowActionButtons() bool { return s.getBool(keyShowActionButtons) }

// ShowProgress reports whether the progress bar is enabled
func (s *Store) ShowProgress() bool { return s.getBool(keyShowProgress) }

// ShowMusicProvider reports whether the provider name appears in the subtext
func (s *Store) ShowMusicProvider() bool { return s.getBool(keyShowMusicProvider) }

// ShowTimestamp reports whether position/duration appears in the subtext
func (s *Store) ShowTimestamp() bool { return s.getBool(keyShowTimestamp) }

// HideOnOverlayOpen reports whether the notification is withdrawn while a
// system overlay is on screen
func (s *Store) HideOnOverlayOpen() bool { return s.getBool(keyHideOnOverlay) }

// ScrollEnabled reports whether long titles scroll through the pill
func (s *Store) ScrollEnabled() bool { return s.getBool(keyScrollEnabled) }

// PillContent returns the configured pill mode, falling back to the title
// mode on unrecognized values
func (s *Store) PillContent() domain.PillContent {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch domain.PillContent(s.v.GetString(keyPillContent)) {
	case domain.PillElapsed:
		return domain.PillElapsed
	case domain.PillRemaining:
		return domain.PillRemaining
	default:
		return domain.PillTitle
	}
}

// AppEnabled reports whether the given player may drive the notification.
// Every player is enabled unless listed under apps.disabled.
func (s *Store) AppEnabled(player string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, disabled := range s.v.GetStringSlice(keyDisabledApps) {
		if disabled == player {
			return false
		}
	}
	return true
}

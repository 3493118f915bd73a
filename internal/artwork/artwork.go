// Package artwork resolves album art references into decoded images sized
// for the notification's large icon. Resolution may block on network or
// disk, so callers run it off the event loop; any failure just means the
// notification goes out without art.
package artwork

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"  // GIF format support
	_ "image/jpeg" // JPEG format support
	_ "image/png"  // PNG format support
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/disintegration/imaging"
	"go.uber.org/zap"
)

const (
	_maxImageSize = 10 * 1024 * 1024 // 10 MB

	// IconSize is the edge length album art is downscaled to
	IconSize = 144
)

// Resolver fetches and decodes album art from http(s), file:// and plain
// path references
type Resolver struct {
	logger *zap.Logger
	client *http.Client
}

// NewResolver creates a resolver with a bounded HTTP client
func NewResolver(logger *zap.Logger) *Resolver {
	return &Resolver{
		logger: logger,
		client: &http.Client{
			Timeout: 10 * time.Second, // Essential to prevent stalling art delivery
		},
	}
}

// Resolve fetches the referenced artwork and returns it decoded and
// downscaled to the notification icon size
func (r *Resolver) Resolve(ctx context.Context, ref string) (image.Image, error) {
	data, err := r.fetch(ctx, ref)
	if err != nil {
		return nil, err
	}
	return Decode(data)
}

func (r *Resolver) fetch(ctx context.Context, ref string) ([]byte, error) {
	switch {
	case strings.HasPrefix(ref, "http://"), strings.HasPrefix(ref, "https://"):
		return r.fetchHTTP(ctx, ref)
	case strings.HasPrefix(ref, "file://"):
		u, err := url.Parse(ref)
		if err != nil {
			return nil, fmt.Errorf("invalid file url: %w", err)
		}
		return readFileCapped(u.Path)
	default:
		// Some players hand out bare filesystem paths
		return readFileCapped(ref)
	}
}

func (r *Resolver) fetchHTTP(ctx context.Context, ref string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "livemediad/1.0")

	resp, err := r.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("network error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("url is not an image: %s", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, _maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}

	r.logger.Debug("Artwork fetched", zap.Int("bytes", len(data)), zap.String("url", ref))
	return data, nil
}

func readFileCapped(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open art file: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, _maxImageSize))
	if err != nil {
		return nil, fmt.Errorf("failed to read art file: %w", err)
	}
	return data, nil
}

// Decode parses raw image bytes and downscales them to the icon size,
// preserving aspect ratio. Also used for art delivered inline by players.
func Decode(data []byte) (image.Image, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	bounds := img.Bounds()
	if bounds.Dx() == 0 || bounds.Dy() == 0 {
		return nil, fmt.Errorf("invalid image dimensions: %dx%d", bounds.Dx(), bounds.Dy())
	}

	if bounds.Dx() <= IconSize && bounds.Dy() <= IconSize {
		return img, nil
	}
	return imaging.Fit(img, IconSize, IconSize, imaging.Lanczos), nil
}

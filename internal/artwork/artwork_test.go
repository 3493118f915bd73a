package artwork

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"
)

// pngBytes encodes a solid image of the given size
func pngBytes(t *testing.T, w, h int) []byte {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatalf("encoding test image: %v", err)
	}
	return buf.Bytes()
}

func TestResolveHTTP(t *testing.T) {
	data := pngBytes(t, 64, 64)
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write(data)
	}))
	defer server.Close()

	r := NewResolver(zap.NewNop())
	img, err := r.Resolve(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("expected 64px image, got %d", img.Bounds().Dx())
	}
}

func TestResolveHTTPErrors(t *testing.T) {
	tests := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{
			name: "Not found",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusNotFound)
			},
		},
		{
			name: "Wrong content type",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "text/html")
				w.Write([]byte("<html>not an image</html>"))
			},
		},
		{
			name: "Garbage bytes",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "image/png")
				w.Write([]byte("definitely not a png"))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(tt.handler)
			defer server.Close()

			r := NewResolver(zap.NewNop())
			if _, err := r.Resolve(context.Background(), server.URL); err == nil {
				t.Error("expected an error")
			}
		})
	}
}

func TestResolveFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cover.png")
	if err := os.WriteFile(path, pngBytes(t, 32, 32), 0o644); err != nil {
		t.Fatalf("writing art file: %v", err)
	}

	r := NewResolver(zap.NewNop())

	// file:// URL form
	img, err := r.Resolve(context.Background(), "file://"+path)
	if err != nil {
		t.Fatalf("file url: %v", err)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("expected 32px image, got %d", img.Bounds().Dx())
	}

	// Bare path form
	if _, err := r.Resolve(context.Background(), path); err != nil {
		t.Fatalf("bare path: %v", err)
	}
}

func TestResolveMissingFile(t *testing.T) {
	r := NewResolver(zap.NewNop())
	if _, err := r.Resolve(context.Background(), "/nonexistent/cover.png"); err == nil {
		t.Error("expected an error for a missing file")
	}
}

func TestDecodeDownscalesLargeImages(t *testing.T) {
	img, err := Decode(pngBytes(t, 600, 400))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	bounds := img.Bounds()
	if bounds.Dx() > IconSize || bounds.Dy() > IconSize {
		t.Errorf("image not downscaled: %dx%d", bounds.Dx(), bounds.Dy())
	}
	// Aspect ratio preserved: 600x400 fits to 144x96
	if bounds.Dx() != IconSize || bounds.Dy() != 96 {
		t.Errorf("expected 144x96, got %dx%d", bounds.Dx(), bounds.Dy())
	}
}

func TestDecodeKeepsSmallImages(t *testing.T) {
	img, err := Decode(pngBytes(t, 100, 100))
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if img.Bounds().Dx() != 100 {
		t.Errorf("small image must not be resized, got %d", img.Bounds().Dx())
	}
}

func TestDecodeRejectsGarbage(t *testing.T) {
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("expected a decode error")
	}
}

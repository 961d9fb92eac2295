package normalize

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func writePNG(t *testing.T, path string, w, h int) {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for x := 0; x < w; x += 50 {
		for y := 0; y < h; y++ {
			img.Set(x, y, color.Black)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, img); err != nil {
		t.Fatal(err)
	}
}

func TestNormalize_OversizedImageCapped(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "scan.png")
	writePNG(t, path, 4000, 3000)

	n := New(Config{MaxEdgePixels: 2048}, discardLogger())
	frames, err := n.Normalize(context.Background(), path)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1", len(frames))
	}

	f := frames[0]
	longer := f.Width
	if f.Height > longer {
		longer = f.Height
	}
	if longer > 2048 {
		t.Errorf("longer edge = %d, want <= 2048", longer)
	}
	// 4000x3000 scaled by 2048/4000 -> 2048x1536
	if f.Width != 2048 || f.Height != 1536 {
		t.Errorf("frame = %dx%d, want 2048x1536", f.Width, f.Height)
	}
	if f.MIMEType != "image/jpeg" {
		t.Errorf("mime = %q, want image/jpeg", f.MIMEType)
	}
	if len(f.Data) == 0 {
		t.Error("frame data is empty")
	}
	// Re-encoded bytes must themselves decode within the cap.
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(f.Data))
	if err != nil {
		t.Fatalf("decoding produced JPEG: %v", err)
	}
	if cfg.Width != 2048 || cfg.Height != 1536 {
		t.Errorf("encoded JPEG = %dx%d, want 2048x1536", cfg.Width, cfg.Height)
	}
}

func TestNormalize_SmallImageNotUpscaled(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "small.png")
	writePNG(t, path, 640, 480)

	n := New(Config{}, discardLogger())
	frames, err := n.Normalize(context.Background(), path)
	if err != nil {
		t.Fatalf("Normalize() error = %v", err)
	}
	if frames[0].Width != 640 || frames[0].Height != 480 {
		t.Errorf("frame = %dx%d, want 640x480 untouched", frames[0].Width, frames[0].Height)
	}
}

func TestNormalize_ZeroByteFileFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "empty.pdf")
	if err := os.WriteFile(path, nil, 0o644); err != nil {
		t.Fatal(err)
	}

	n := New(Config{}, discardLogger())
	_, err := n.Normalize(context.Background(), path)

	var nerr *Error
	if !errors.As(err, &nerr) {
		t.Fatalf("err = %v, want *normalize.Error", err)
	}
	// The file stays where it was; normalization never moves or deletes input.
	if _, statErr := os.Stat(path); statErr != nil {
		t.Errorf("source file gone after failed normalization: %v", statErr)
	}
}

func TestNormalize_GarbageSignatureFails(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "notes.pdf")
	if err := os.WriteFile(path, []byte("just some plain text"), 0o644); err != nil {
		t.Fatal(err)
	}

	n := New(Config{}, discardLogger())
	_, err := n.Normalize(context.Background(), path)

	var nerr *Error
	if !errors.As(err, &nerr) {
		t.Fatalf("err = %v, want *normalize.Error", err)
	}
}

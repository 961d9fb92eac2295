// Package normalize converts an arbitrary input document (PDF or raster
// image) into one or more bounded-size JPEG frames suitable for a vision
// backend call. Media kind is decided from the file signature, never from a
// caller-provided hint.
package normalize

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"

	"ledgerscan/constants"
	"ledgerscan/internal/document"
)

// Error is the permanent, file-level normalization failure: the file cannot
// be decoded at all (corrupt, unsupported format, zero pages).
type Error struct {
	Path string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("normalize %s: %v", e.Path, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Config holds rasterization bounds. Backends commonly cap accepted image
// dimensions, so the longer edge is capped and the result re-encoded with
// lossy compression at a fixed quality.
type Config struct {
	MaxEdgePixels int  // longer-edge cap, default 2048
	RenderDPI     int  // PDF rasterization target, default 200
	JPEGQuality   int  // default 85
	FirstPageOnly bool // render only the first PDF page
}

type Normalizer struct {
	cfg    Config
	logger *slog.Logger
}

func New(cfg Config, logger *slog.Logger) *Normalizer {
	if cfg.MaxEdgePixels <= 0 {
		cfg.MaxEdgePixels = 2048
	}
	if cfg.RenderDPI <= 0 {
		cfg.RenderDPI = 200
	}
	if cfg.JPEGQuality <= 0 || cfg.JPEGQuality > 100 {
		cfg.JPEGQuality = 85
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Normalizer{cfg: cfg, logger: logger}
}

// Normalize renders the document at path into bounded JPEG frames.
func (n *Normalizer) Normalize(ctx context.Context, path string) ([]document.Frame, error) {
	format, err := detectFormat(path)
	if err != nil {
		n.logger.Error("normalize.detect_failed", "path", path, "error", err)
		return nil, &Error{Path: path, Err: err}
	}

	var frames []document.Frame
	switch format {
	case constants.PDF:
		frames, err = n.renderPDF(ctx, path)
	case constants.IMAGE:
		frames, err = n.loadImage(path)
	default:
		err = fmt.Errorf("unsupported format: %q", format)
	}
	if err != nil {
		n.logger.Error("normalize.failed", "path", path, "format", string(format), "error", err)
		return nil, &Error{Path: path, Err: err}
	}
	if len(frames) == 0 {
		return nil, &Error{Path: path, Err: fmt.Errorf("document has no renderable pages")}
	}

	n.logger.Debug("normalize.ok",
		"path", path,
		"format", string(format),
		"frames", len(frames),
		"first_frame_px", fmt.Sprintf("%dx%d", frames[0].Width, frames[0].Height),
	)
	return frames, nil
}

// detectFormat sniffs the file signature. The extension alone is not
// trusted: a zero-byte ".pdf" or a renamed file must fail here, before any
// backend call is attempted.
func detectFormat(path string) (constants.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	header := make([]byte, 8)
	k, err := f.Read(header)
	if k < 4 {
		return "", fmt.Errorf("file too short to identify (%d bytes): %v", k, err)
	}
	header = header[:k]

	switch {
	case bytes.HasPrefix(header, []byte("%PDF")):
		return constants.PDF, nil
	case bytes.HasPrefix(header, []byte("\x89PNG")):
		return constants.IMAGE, nil
	case bytes.HasPrefix(header, []byte("\xff\xd8\xff")):
		return constants.IMAGE, nil
	default:
		return "", fmt.Errorf("unrecognized file signature %x", header[:4])
	}
}

package normalize

import (
	"context"
	"fmt"

	"github.com/gen2brain/go-fitz"

	"ledgerscan/internal/document"
)

// renderPDF rasterizes PDF pages at the configured DPI. The fitz document
// handle owns decoded page data; the deferred Close releases it regardless
// of which page fails.
func (n *Normalizer) renderPDF(ctx context.Context, path string) ([]document.Frame, error) {
	doc, err := fitz.New(path)
	if err != nil {
		return nil, fmt.Errorf("open pdf: %w", err)
	}
	defer doc.Close()

	pages := doc.NumPage()
	if pages == 0 {
		return nil, fmt.Errorf("pdf has zero pages")
	}
	if n.cfg.FirstPageOnly {
		pages = 1
	}

	frames := make([]document.Frame, 0, pages)
	for i := 0; i < pages; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		img, err := doc.ImageDPI(i, float64(n.cfg.RenderDPI))
		if err != nil {
			return nil, fmt.Errorf("render page %d: %w", i, err)
		}
		frame, err := n.encodeFrame(img, i)
		if err != nil {
			return nil, fmt.Errorf("encode page %d: %w", i, err)
		}
		frames = append(frames, frame)
	}
	return frames, nil
}

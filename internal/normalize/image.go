package normalize

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png" // register PNG decoder
	"os"

	xdraw "golang.org/x/image/draw"

	"ledgerscan/internal/document"
)

// loadImage decodes a raster file directly; only the cap/re-encode step
// applies.
func (n *Normalizer) loadImage(path string) ([]document.Frame, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open: %w", err)
	}
	defer f.Close()

	img, kind, err := image.Decode(f)
	if err != nil {
		return nil, fmt.Errorf("decode %s image: %w", kind, err)
	}
	frame, err := n.encodeFrame(img, 0)
	if err != nil {
		return nil, err
	}
	return []document.Frame{frame}, nil
}

// encodeFrame caps the longer edge preserving aspect ratio and re-encodes
// as JPEG at the configured quality.
func (n *Normalizer) encodeFrame(img image.Image, pageIndex int) (document.Frame, error) {
	img = n.capLongerEdge(img)
	b := img.Bounds()

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, img, &jpeg.Options{Quality: n.cfg.JPEGQuality}); err != nil {
		return document.Frame{}, fmt.Errorf("jpeg encode: %w", err)
	}
	return document.Frame{
		PageIndex: pageIndex,
		Width:     b.Dx(),
		Height:    b.Dy(),
		MIMEType:  "image/jpeg",
		Data:      buf.Bytes(),
	}, nil
}

func (n *Normalizer) capLongerEdge(img image.Image) image.Image {
	b := img.Bounds()
	w, h := b.Dx(), b.Dy()
	longer := max(w, h)
	if longer <= n.cfg.MaxEdgePixels {
		return img
	}

	scale := float64(n.cfg.MaxEdgePixels) / float64(longer)
	dw := max(1, int(float64(w)*scale))
	dh := max(1, int(float64(h)*scale))

	dst := image.NewRGBA(image.Rect(0, 0, dw, dh))
	xdraw.ApproxBiLinear.Scale(dst, dst.Bounds(), img, b, xdraw.Over, nil)
	return dst
}

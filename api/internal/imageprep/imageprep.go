// Package imageprep decodes user images and re-encodes them as bounded JPEG payloads.
package imageprep

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif" // decoders
	"image/jpeg"
	_ "image/png"
	"io"
	"math"

	xdraw "golang.org/x/image/draw"
	_ "golang.org/x/image/webp"

	"calorie-lens/api/internal/analysis"
)

const (
	MaxDimension = 1024
	JPEGQuality  = 70 // 0.7 on a 0..1 scale
	// MaxPixels bounds the decoded canvas declared by the image header.
	MaxPixels = 50_000_000
	// maxInputBytes caps how much of the source is read before decoding.
	maxInputBytes = 40 << 20
)

type Preprocessor struct {
	maxDim  int
	quality int
}

func New() *Preprocessor {
	return &Preprocessor{maxDim: MaxDimension, quality: JPEGQuality}
}

// ScaledSize returns the output size for a w×h source bounded by maxDim.
// The scale factor never exceeds 1.
func ScaledSize(w, h, maxDim int) (int, int) {
	longest := max(w, h)
	if longest <= 0 {
		return w, h
	}
	scale := math.Min(1, float64(maxDim)/float64(longest))
	if scale == 1 {
		return w, h
	}
	nw := int(math.Round(float64(w) * scale))
	nh := int(math.Round(float64(h) * scale))
	return max(nw, 1), max(nh, 1)
}

// Prepare decodes r and re-encodes it as JPEG within the size bound.
// Undecodable input fails with analysis.ErrInvalidImage.
func (p *Preprocessor) Prepare(ctx context.Context, r io.Reader) (analysis.ImagePayload, error) {
	raw, err := io.ReadAll(io.LimitReader(r, maxInputBytes))
	if err != nil {
		return analysis.ImagePayload{}, fmt.Errorf("%w: read: %v", analysis.ErrInvalidImage, err)
	}
	if err := ctx.Err(); err != nil {
		return analysis.ImagePayload{}, err
	}

	cfg, _, err := image.DecodeConfig(bytes.NewReader(raw))
	if err != nil {
		return analysis.ImagePayload{}, fmt.Errorf("%w: %v", analysis.ErrInvalidImage, err)
	}
	if cfg.Width <= 0 || cfg.Height <= 0 || cfg.Width > MaxPixels/cfg.Height {
		return analysis.ImagePayload{}, fmt.Errorf("%w: %dx%d exceeds %d pixels",
			analysis.ErrInvalidImage, cfg.Width, cfg.Height, MaxPixels)
	}

	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return analysis.ImagePayload{}, fmt.Errorf("%w: %v", analysis.ErrInvalidImage, err)
	}
	b := src.Bounds()
	if b.Dx() == 0 || b.Dy() == 0 {
		return analysis.ImagePayload{}, fmt.Errorf("%w: empty image", analysis.ErrInvalidImage)
	}
	if err := ctx.Err(); err != nil {
		return analysis.ImagePayload{}, err
	}

	w, h := ScaledSize(b.Dx(), b.Dy(), p.maxDim)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	if w == b.Dx() && h == b.Dy() {
		xdraw.Draw(dst, dst.Bounds(), src, b.Min, xdraw.Src)
	} else {
		xdraw.CatmullRom.Scale(dst, dst.Bounds(), src, b, xdraw.Src, nil)
	}
	if err := ctx.Err(); err != nil {
		return analysis.ImagePayload{}, err
	}

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: p.quality}); err != nil {
		return analysis.ImagePayload{}, fmt.Errorf("encode jpeg: %w", err)
	}
	return analysis.ImagePayload{
		Data:      out.Bytes(),
		MediaType: analysis.MediaTypeJPEG,
		Width:     w,
		Height:    h,
	}, nil
}

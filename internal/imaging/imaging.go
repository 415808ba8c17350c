// Package imaging normalises uploaded photos. Every stored image is a JPEG
// no larger than MaxDimension on its long side.
package imaging

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	"image/jpeg"
	_ "image/png"
	"io"

	"golang.org/x/image/draw"
)

const (
	// MaxUploadSize is the largest accepted upload in bytes.
	MaxUploadSize = 10 << 20
	// MaxDimension caps the long side of a stored image.
	MaxDimension = 1280
	// MaxPixels caps the decoded bitmap.
	MaxPixels = 40_000_000
	// JPEGQuality is used for every stored image.
	JPEGQuality = 85
)

// ErrUnsupported is returned for data that is not an accepted image.
var ErrUnsupported = errors.New("unsupported image")

var accepted = map[string]bool{"jpeg": true, "png": true, "gif": true}

// ProcessResult contains the processed image data.
type ProcessResult struct {
	Data []byte
	MIME string
	Ext  string
}

// Process reads at most MaxUploadSize bytes of a JPEG, PNG or GIF and
// returns it as a JPEG that fits within MaxDimension. The format is taken
// from the data, never from client headers.
func Process(r io.Reader) (*ProcessResult, error) {
	data, err := io.ReadAll(io.LimitReader(r, MaxUploadSize+1))
	if err != nil {
		return nil, fmt.Errorf("reading image data: %w", err)
	}
	if len(data) > MaxUploadSize {
		return nil, fmt.Errorf("%w: larger than %d MB", ErrUnsupported, MaxUploadSize>>20)
	}

	cfg, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnsupported, err)
	}
	if !accepted[format] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupported, format)
	}
	if cfg.Width*cfg.Height > MaxPixels {
		return nil, fmt.Errorf("%w: %dx%d pixels", ErrUnsupported, cfg.Width, cfg.Height)
	}

	src, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("decoding %s: %w", format, err)
	}

	b := src.Bounds()
	w, h := fit(b.Dx(), b.Dy(), MaxDimension)

	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, render(src, w, h), &jpeg.Options{Quality: JPEGQuality}); err != nil {
		return nil, fmt.Errorf("encoding JPEG: %w", err)
	}
	return &ProcessResult{Data: buf.Bytes(), MIME: "image/jpeg", Ext: "jpg"}, nil
}

// fit returns the size of a w x h image shrunk, if needed, so that its long
// side is limit. Images are never enlarged.
func fit(w, h, limit int) (int, int) {
	long := max(w, h)
	if long <= limit {
		return w, h
	}
	return max(1, w*limit/long), max(1, h*limit/long)
}

// render draws src onto a white w x h canvas. JPEG has no alpha channel, so
// transparent areas come out white. Opaque JPEG sources already at size are
// returned as is.
func render(src image.Image, w, h int) image.Image {
	b := src.Bounds()
	sameSize := b.Dx() == w && b.Dy() == h
	if _, ok := src.(*image.YCbCr); ok && sameSize {
		return src
	}

	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.Draw(dst, dst.Bounds(), image.White, image.Point{}, draw.Src)
	if sameSize {
		draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Over)
	} else {
		draw.CatmullRom.Scale(dst, dst.Bounds(), src, b, draw.Over, nil)
	}
	return dst
}

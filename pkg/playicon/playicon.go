// Package playicon overlays a video play button on thumbnail images.
package playicon

import (
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	_ "image/png"

	"golang.org/x/image/draw"
	"golang.org/x/image/vector"
	_ "golang.org/x/image/webp"
)

// ErrUndecodable is returned when the input is not a supported image.
var ErrUndecodable = errors.New("playicon: undecodable image")

const DefaultQuality = 90

var (
	buttonColor = color.NRGBA{R: 0xff, G: 0x00, B: 0x00, A: 0xe6}
	arrowColor  = color.NRGBA{R: 0xff, G: 0xff, B: 0xff, A: 0xff}
)

// Decorator renders decorated thumbnails as JPEG.
type Decorator struct {
	// Quality is the JPEG quality, 1..100. Zero means DefaultQuality.
	Quality int
}

// Decorate decodes raw (JPEG, PNG or WebP), draws a centered play button and
// re-encodes the result as JPEG.
func (d Decorator) Decorate(raw []byte) ([]byte, error) {
	src, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUndecodable, err)
	}
	b := src.Bounds()
	if b.Empty() {
		return nil, fmt.Errorf("%w: empty image", ErrUndecodable)
	}

	dst := image.NewRGBA(image.Rect(0, 0, b.Dx(), b.Dy()))
	draw.Draw(dst, dst.Bounds(), src, b.Min, draw.Src)
	overlay(dst)

	quality := d.Quality
	if quality <= 0 || quality > 100 {
		quality = DefaultQuality
	}
	var buf bytes.Buffer
	if err := jpeg.Encode(&buf, dst, &jpeg.Options{Quality: quality}); err != nil {
		return nil, fmt.Errorf("playicon: encode: %w", err)
	}
	return buf.Bytes(), nil
}

// overlay draws a rounded button with a right-pointing arrow, scaled to the
// shorter side of the image.
func overlay(dst *image.RGBA) {
	w, h := dst.Bounds().Dx(), dst.Bounds().Dy()
	short := float32(min(w, h))
	cx, cy := float32(w)/2, float32(h)/2

	bw := short * 0.42
	bh := bw * 0.7
	r := bh * 0.25
	x0, y0 := cx-bw/2, cy-bh/2
	x1, y1 := cx+bw/2, cy+bh/2

	z := vector.NewRasterizer(w, h)
	z.DrawOp = draw.Over
	z.MoveTo(x0+r, y0)
	z.LineTo(x1-r, y0)
	z.QuadTo(x1, y0, x1, y0+r)
	z.LineTo(x1, y1-r)
	z.QuadTo(x1, y1, x1-r, y1)
	z.LineTo(x0+r, y1)
	z.QuadTo(x0, y1, x0, y1-r)
	z.LineTo(x0, y0+r)
	z.QuadTo(x0, y0, x0+r, y0)
	z.ClosePath()
	z.Draw(dst, dst.Bounds(), image.NewUniform(buttonColor), image.Point{})

	th := bh * 0.45
	left, right := cx-th*0.4, cx+th*0.6

	z.Reset(w, h)
	z.DrawOp = draw.Over
	z.MoveTo(left, cy-th/2)
	z.LineTo(right, cy)
	z.LineTo(left, cy+th/2)
	z.ClosePath()
	z.Draw(dst, dst.Bounds(), image.NewUniform(arrowColor), image.Point{})
}

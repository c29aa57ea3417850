package playicon

import (
	"bytes"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"testing"

	"github.com/stretchr/testify/require"
)

var blue = color.RGBA{R: 0x10, G: 0x20, B: 0xf0, A: 0xff}

func solid(w, h int, c color.Color) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func encodeJPEG(t *testing.T, img image.Image) []byte {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 95}))
	return buf.Bytes()
}

func rgb(img image.Image, x, y int) (uint8, uint8, uint8) {
	r, g, b, _ := img.At(x, y).RGBA()
	return uint8(r >> 8), uint8(g >> 8), uint8(b >> 8)
}

func TestDecorate_DrawsCenteredButton(t *testing.T) {
	t.Parallel()

	raw := encodeJPEG(t, solid(320, 180, blue))
	out, err := Decorator{}.Decorate(raw)
	require.NoError(t, err)

	img, format, err := image.Decode(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.Equal(t, 320, img.Bounds().Dx())
	require.Equal(t, 180, img.Bounds().Dy())

	// Arrow in the middle.
	r, g, b := rgb(img, 162, 90)
	require.Greater(t, r, uint8(200))
	require.Greater(t, g, uint8(200))
	require.Greater(t, b, uint8(200))

	// Button body left of the arrow.
	r, _, b = rgb(img, 160-25, 90)
	require.Greater(t, r, uint8(180))
	require.Less(t, b, uint8(100))

	// Corner untouched.
	r, _, b = rgb(img, 5, 5)
	require.Less(t, r, uint8(60))
	require.Greater(t, b, uint8(200))
}

func TestDecorate_AcceptsPNG(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, solid(64, 48, blue)))

	out, err := Decorator{Quality: 80}.Decorate(buf.Bytes())
	require.NoError(t, err)
	cfg, format, err := image.DecodeConfig(bytes.NewReader(out))
	require.NoError(t, err)
	require.Equal(t, "jpeg", format)
	require.Equal(t, 64, cfg.Width)
	require.Equal(t, 48, cfg.Height)
}

func TestDecorate_Deterministic(t *testing.T) {
	t.Parallel()

	raw := encodeJPEG(t, solid(120, 90, blue))
	a, err := Decorator{}.Decorate(raw)
	require.NoError(t, err)
	b, err := Decorator{}.Decorate(raw)
	require.NoError(t, err)
	require.Equal(t, a, b)
}

func TestDecorate_RejectsGarbage(t *testing.T) {
	t.Parallel()

	for _, raw := range [][]byte{nil, []byte("not an image"), {0xff, 0xd8, 0xff, 0x00}} {
		_, err := Decorator{}.Decorate(raw)
		require.ErrorIs(t, err, ErrUndecodable)
	}
}

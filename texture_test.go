package showcase

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	"image/png"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeTextureFlipY(t *testing.T) {
	img := image.NewRGBA(image.Rect(0, 0, 1, 2))
	img.Set(0, 0, color.RGBA{255, 0, 0, 255})
	img.Set(0, 1, color.RGBA{0, 0, 255, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))

	tex, err := DecodeTexture("label.png", buf.Bytes(), TextureOptions{ColorSpace: SRGBColorSpace})
	require.NoError(t, err)
	w, h := tex.Size()
	assert.Equal(t, 1, w)
	assert.Equal(t, 2, h)
	assert.Equal(t, SRGBColorSpace, tex.ColorSpace)
	assert.Equal(t, []byte{255, 0, 0, 255, 0, 0, 255, 255}, tex.RGBA())

	flipped, err := DecodeTexture("label.png", buf.Bytes(), TextureOptions{FlipY: true})
	require.NoError(t, err)
	assert.Equal(t, []byte{0, 0, 255, 255, 255, 0, 0, 255}, flipped.RGBA())

	mt := flipped.ToMst(3)
	assert.Equal(t, int32(3), mt.Id)
	assert.Equal(t, [2]uint64{1, 2}, mt.Size)
}

func TestDecodeTextureRejectsUnknown(t *testing.T) {
	_, err := DecodeTexture("notes.txt", []byte("plain text, not pixels"), TextureOptions{})
	assert.Error(t, err)
}

func TestParseColorSpace(t *testing.T) {
	cs, err := ParseColorSpace("srgb")
	require.NoError(t, err)
	assert.Equal(t, SRGBColorSpace, cs)
	cs, err = ParseColorSpace("srgb-linear")
	require.NoError(t, err)
	assert.Equal(t, LinearColorSpace, cs)
	_, err = ParseColorSpace("p3")
	assert.Error(t, err)
}

func TestHDRRoundTrip(t *testing.T) {
	tex, err := DecodeEnvironment("env.hdr", testHDR(t), TextureOptions{ColorSpace: SRGBColorSpace})
	require.NoError(t, err)
	require.NotNil(t, tex.HDR)
	assert.Equal(t, EquirectangularReflectionMapping, tex.Mapping)
	w, h := tex.Size()
	assert.Equal(t, 4, w)
	assert.Equal(t, 2, h)

	r, g, b := tex.HDR.RGB(0, 0)
	assert.InDelta(t, 0.5, r, 1e-6)
	assert.InDelta(t, 0.25, g, 1e-6)
	assert.InDelta(t, 1, b, 1e-6)

	r, g, b = tex.HDR.RGB(3, 1)
	assert.InDelta(t, 3.5, r, 1e-6)
	assert.InDelta(t, 1.25, g, 1e-6)
	assert.InDelta(t, 1, b, 1e-6)

	// Values above one clamp when viewed as an image.
	px := tex.RGBA()
	assert.Len(t, px, 4*2*4)
	assert.Equal(t, byte(255), px[(1*4+3)*4])
}

func TestDecodeHDRRunLength(t *testing.T) {
	const w = 8
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n-Y 1 +X %d\n", w)
	buf.Write([]byte{2, 2, 0, w})
	// red as literals, the other channels as runs
	buf.WriteByte(w)
	for x := 0; x < w; x++ {
		buf.WriteByte(byte(16 * x))
	}
	buf.Write([]byte{128 + w, 64})
	buf.Write([]byte{128 + w, 0})
	buf.Write([]byte{128 + w, 129})

	img, err := DecodeHDR(&buf)
	require.NoError(t, err)
	require.Equal(t, w, img.Width)
	for x := 0; x < w; x++ {
		r, g, b := img.RGB(x, 0)
		assert.InDelta(t, float32(16*x)/128, r, 1e-6)
		assert.InDelta(t, 0.5, g, 1e-6)
		assert.Zero(t, b)
	}
}

func TestDecodeHDRInvalid(t *testing.T) {
	for name, data := range map[string]string{
		"magic":       "P6\n1 1\n",
		"format":      "#?RADIANCE\nFORMAT=32-bit_rle_xyze\n\n-Y 1 +X 1\n\x80\x80\x80\x81",
		"orientation": "#?RADIANCE\n\n+Y 1 +X 1\n\x80\x80\x80\x81",
		"truncated":   "#?RADIANCE\n\n-Y 2 +X 1\n\x80\x80\x80\x81",
		"huge":        "#?RADIANCE\n\n-Y 2000000000 +X 2000000000\n\x80\x80\x80\x81",
		"too wide":    "#?RADIANCE\n\n-Y 1 +X 20000\n\x80\x80\x80\x81",
		"negative":    "#?RADIANCE\n\n-Y -4 +X 4\n",
		"lying size":  "#?RADIANCE\n\n-Y 8000 +X 16000\n\x02\x02\x3e\x80",
	} {
		_, err := DecodeHDR(bytes.NewReader([]byte(data)))
		assert.ErrorIs(t, err, ErrInvalidHDR, name)
	}
}

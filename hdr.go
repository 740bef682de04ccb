package showcase

import (
	"bufio"
	"bytes"
	"fmt"
	"image"
	"image/color"
	"io"
	"math"
	"strings"

	"github.com/pkg/errors"
)

// FloatImage is a linear RGB float image, as decoded from a Radiance file.
type FloatImage struct {
	Width  int
	Height int
	// Pix holds three floats per texel, rows top to bottom.
	Pix []float32
}

func NewFloatImage(w, h int) *FloatImage {
	return &FloatImage{Width: w, Height: h, Pix: make([]float32, w*h*3)}
}

func (m *FloatImage) RGB(x, y int) (r, g, b float32) {
	i := (y*m.Width + x) * 3
	return m.Pix[i], m.Pix[i+1], m.Pix[i+2]
}

func (m *FloatImage) SetRGB(x, y int, r, g, b float32) {
	i := (y*m.Width + x) * 3
	m.Pix[i], m.Pix[i+1], m.Pix[i+2] = r, g, b
}

func (m *FloatImage) ColorModel() color.Model { return color.RGBA64Model }

func (m *FloatImage) Bounds() image.Rectangle { return image.Rect(0, 0, m.Width, m.Height) }

// At clamps the texel to [0,1].
func (m *FloatImage) At(x, y int) color.Color {
	if x < 0 || y < 0 || x >= m.Width || y >= m.Height {
		return color.RGBA64{}
	}
	r, g, b := m.RGB(x, y)
	return color.RGBA64{R: clamp16(r), G: clamp16(g), B: clamp16(b), A: 0xffff}
}

func clamp16(v float32) uint16 {
	if v <= 0 || math.IsNaN(float64(v)) {
		return 0
	}
	if v >= 1 {
		return 0xffff
	}
	return uint16(v*0xffff + 0.5)
}

var ErrInvalidHDR = errors.New("invalid radiance hdr")

const (
	hdrMinRLEWidth = 8
	hdrMaxRLEWidth = 0x7fff

	// Environment maps larger than 16k x 8k are not expected.
	hdrMaxDim    = 1 << 14
	hdrMaxPixels = hdrMaxDim * hdrMaxDim / 2
)

// DecodeHDR reads a Radiance RGBE picture with either flat or run length
// encoded scanlines. Only the standard "-Y h +X w" orientation is accepted.
func DecodeHDR(r io.Reader) (*FloatImage, error) {
	br := bufio.NewReader(r)
	magic, err := br.ReadString('\n')
	if err != nil {
		return nil, errors.Wrap(ErrInvalidHDR, "missing header")
	}
	if !strings.HasPrefix(magic, "#?") {
		return nil, errors.Wrap(ErrInvalidHDR, "bad magic")
	}
	for {
		line, err := br.ReadString('\n')
		if err != nil {
			return nil, errors.Wrap(ErrInvalidHDR, "unterminated header")
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "FORMAT=") && line != "FORMAT=32-bit_rle_rgbe" {
			return nil, errors.Wrapf(ErrInvalidHDR, "unsupported %s", line)
		}
	}
	res, err := br.ReadString('\n')
	if err != nil {
		return nil, errors.Wrap(ErrInvalidHDR, "missing resolution")
	}
	var w, h int
	if _, err := fmt.Sscanf(strings.TrimSpace(res), "-Y %d +X %d", &h, &w); err != nil {
		return nil, errors.Wrapf(ErrInvalidHDR, "resolution %q", strings.TrimSpace(res))
	}
	if w <= 0 || h <= 0 || w > hdrMaxDim || h > hdrMaxDim || w*h > hdrMaxPixels {
		return nil, errors.Wrapf(ErrInvalidHDR, "size %dx%d", w, h)
	}

	// Pix grows with the scanlines actually read so a lying header on a
	// short file costs no more than the file itself.
	img := &FloatImage{Width: w, Height: h}
	scan := make([]byte, w*4)
	for y := 0; y < h; y++ {
		if err := readScanline(br, scan, w); err != nil {
			return nil, errors.Wrapf(err, "scanline %d", y)
		}
		for x := 0; x < w; x++ {
			px := scan[x*4 : x*4+4]
			rr, gg, bb := rgbe(px[0], px[1], px[2], px[3])
			img.Pix = append(img.Pix, rr, gg, bb)
		}
	}
	return img, nil
}

func rgbe(r, g, b, e byte) (float32, float32, float32) {
	if e == 0 {
		return 0, 0, 0
	}
	f := float32(math.Ldexp(1, int(e)-(128+8)))
	return float32(r) * f, float32(g) * f, float32(b) * f
}

// readScanline fills scan with w RGBE texels, interleaved.
func readScanline(br *bufio.Reader, scan []byte, w int) error {
	var head [4]byte
	if _, err := io.ReadFull(br, head[:]); err != nil {
		return errors.Wrap(ErrInvalidHDR, err.Error())
	}
	rle := w >= hdrMinRLEWidth && w <= hdrMaxRLEWidth &&
		head[0] == 2 && head[1] == 2 && head[2]&0x80 == 0
	if !rle {
		copy(scan, head[:])
		if _, err := io.ReadFull(br, scan[4:]); err != nil {
			return errors.Wrap(ErrInvalidHDR, err.Error())
		}
		return nil
	}
	if int(head[2])<<8|int(head[3]) != w {
		return errors.Wrap(ErrInvalidHDR, "scanline width mismatch")
	}
	for ch := 0; ch < 4; ch++ {
		for x := 0; x < w; {
			count, err := br.ReadByte()
			if err != nil {
				return errors.Wrap(ErrInvalidHDR, err.Error())
			}
			if count > 128 {
				n := int(count) - 128
				if x+n > w {
					return errors.Wrap(ErrInvalidHDR, "run overflows scanline")
				}
				v, err := br.ReadByte()
				if err != nil {
					return errors.Wrap(ErrInvalidHDR, err.Error())
				}
				for ; n > 0; n-- {
					scan[x*4+ch] = v
					x++
				}
				continue
			}
			n := int(count)
			if n == 0 || x+n > w {
				return errors.Wrap(ErrInvalidHDR, "bad literal run")
			}
			for ; n > 0; n-- {
				v, err := br.ReadByte()
				if err != nil {
					return errors.Wrap(ErrInvalidHDR, err.Error())
				}
				scan[x*4+ch] = v
				x++
			}
		}
	}
	return nil
}

// EncodeHDR writes a flat (non run length) Radiance picture.
func EncodeHDR(w io.Writer, m *FloatImage) error {
	var buf bytes.Buffer
	fmt.Fprintf(&buf, "#?RADIANCE\nFORMAT=32-bit_rle_rgbe\n\n-Y %d +X %d\n", m.Height, m.Width)
	for y := 0; y < m.Height; y++ {
		for x := 0; x < m.Width; x++ {
			r, g, b := m.RGB(x, y)
			buf.Write(toRGBE(r, g, b))
		}
	}
	_, err := w.Write(buf.Bytes())
	return err
}

func toRGBE(r, g, b float32) []byte {
	v := r
	if g > v {
		v = g
	}
	if b > v {
		v = b
	}
	if v < 1e-32 {
		return []byte{0, 0, 0, 0}
	}
	frac, exp := math.Frexp(float64(v))
	scale := float32(frac * 256 / float64(v))
	return []byte{byte(r * scale), byte(g * scale), byte(b * scale), byte(exp + 128)}
}

// DecodeEnvironment decodes a radiance file as an equirectangular
// environment texture.
func DecodeEnvironment(name string, data []byte, opts TextureOptions) (*Texture, error) {
	img, err := DecodeHDR(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "environment %s", name)
	}
	return &Texture{
		Name:       name,
		HDR:        img,
		ColorSpace: opts.ColorSpace,
		FlipY:      opts.FlipY,
		Mapping:    EquirectangularReflectionMapping,
	}, nil
}

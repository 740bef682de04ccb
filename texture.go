package showcase

import (
	"bytes"
	"image"
	"image/color"
	"image/gif"
	"image/jpeg"
	"image/png"
	"io"

	"github.com/chai2010/tiff"
	mst "github.com/flywave/go-mst"
	"github.com/h2non/filetype"
	"github.com/pkg/errors"
	"golang.org/x/image/bmp"
)

type ColorSpace int

const (
	NoColorSpace ColorSpace = iota
	SRGBColorSpace
	LinearColorSpace
)

func (c ColorSpace) String() string {
	switch c {
	case SRGBColorSpace:
		return "srgb"
	case LinearColorSpace:
		return "linear"
	}
	return ""
}

func ParseColorSpace(s string) (ColorSpace, error) {
	switch s {
	case "":
		return NoColorSpace, nil
	case "srgb":
		return SRGBColorSpace, nil
	case "linear", "srgb-linear":
		return LinearColorSpace, nil
	}
	return NoColorSpace, errors.Errorf("unknown color space %q", s)
}

type Mapping int

const (
	UVMapping Mapping = iota
	EquirectangularReflectionMapping
)

// TextureOptions are the fixed per-load flags of a texture. They follow the
// convention of the tool that authored the files: glTF exports want
// FlipY=false.
type TextureOptions struct {
	ColorSpace ColorSpace
	FlipY      bool
	Mapping    Mapping
}

// Texture is a decoded image plus its sampling flags. HDR is set instead of
// Image for radiance environment maps.
type Texture struct {
	Name       string
	Image      image.Image
	HDR        *FloatImage
	ColorSpace ColorSpace
	FlipY      bool
	Mapping    Mapping
}

func (t *Texture) Size() (int, int) {
	switch {
	case t.HDR != nil:
		return t.HDR.Width, t.HDR.Height
	case t.Image != nil:
		b := t.Image.Bounds()
		return b.Dx(), b.Dy()
	}
	return 0, 0
}

var ErrUnsupportedImage = errors.New("unsupported image format")

// DecodeTexture sniffs data and decodes it with the matching image codec.
func DecodeTexture(name string, data []byte, opts TextureOptions) (*Texture, error) {
	kind, err := filetype.Match(data)
	if err != nil {
		return nil, errors.Wrapf(err, "texture %s", name)
	}
	img, err := readImage(bytes.NewReader(data), kind.Extension)
	if err != nil {
		return nil, errors.Wrapf(err, "texture %s", name)
	}
	return &Texture{
		Name:       name,
		Image:      img,
		ColorSpace: opts.ColorSpace,
		FlipY:      opts.FlipY,
		Mapping:    opts.Mapping,
	}, nil
}

func readImage(rd io.Reader, ft string) (image.Image, error) {
	switch ft {
	case "jpeg", "jpg":
		return jpeg.Decode(rd)
	case "png":
		return png.Decode(rd)
	case "gif":
		return gif.Decode(rd)
	case "bmp":
		return bmp.Decode(rd)
	case "tif", "tiff":
		return tiff.Decode(rd)
	default:
		return nil, errors.Wrapf(ErrUnsupportedImage, "type %q", ft)
	}
}

// RGBA returns the texel rows top to bottom, or bottom to top when FlipY is
// set. HDR textures are tone clamped to 8 bits.
func (t *Texture) RGBA() []byte {
	w, h := t.Size()
	buf := make([]byte, 0, w*h*4)
	row := func(y int) {
		for x := 0; x < w; x++ {
			var cl color.Color
			if t.HDR != nil {
				cl = t.HDR.At(x, y)
			} else {
				b := t.Image.Bounds()
				cl = t.Image.At(b.Min.X+x, b.Min.Y+y)
			}
			r, g, b, a := color.RGBAModel.Convert(cl).RGBA()
			buf = append(buf, byte(r>>8), byte(g>>8), byte(b>>8), byte(a>>8))
		}
	}
	if t.FlipY {
		for y := h - 1; y >= 0; y-- {
			row(y)
		}
	} else {
		for y := 0; y < h; y++ {
			row(y)
		}
	}
	return buf
}

// ToMst packs the texture into the zlib compressed RGBA layout of an mst
// texture.
func (t *Texture) ToMst(id int32) *mst.Texture {
	w, h := t.Size()
	tex := &mst.Texture{}
	tex.Id = id
	tex.Format = mst.TEXTURE_FORMAT_RGBA
	tex.Size = [2]uint64{uint64(w), uint64(h)}
	tex.Compressed = mst.TEXTURE_COMPRESSED_ZLIB
	tex.Data = mst.CompressImage(t.RGBA())
	return tex
}

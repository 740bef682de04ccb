package showcase

import (
	"image/color"
	"strconv"
	"strings"

	mst "github.com/flywave/go-mst"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/pkg/errors"
)

// MapKind names a texture slot of a Material.
type MapKind string

const (
	MapColor     MapKind = "map"
	MapNormal    MapKind = "normal"
	MapRoughness MapKind = "roughness"
	MapMetalness MapKind = "metalness"
	// MapMRA binds one packed metal/rough/ao texture to both the roughness
	// and metalness slots.
	MapMRA MapKind = "mra"
	MapEnv MapKind = "env"
)

func (k MapKind) Valid() bool {
	switch k {
	case MapColor, MapNormal, MapRoughness, MapMetalness, MapMRA, MapEnv:
		return true
	}
	return false
}

// Material is a physically based surface description: the parameters a
// physical material of a real-time renderer takes, plus its texture maps.
// Version increases on every change so renderers can re-upload lazily.
type Material struct {
	Color    color.RGBA
	Emissive color.RGBA

	Roughness float32
	Metalness float32

	// Transmission is the glass-like see-through fraction, Thickness the
	// volume depth behind it and IOR its index of refraction.
	Transmission float32
	Thickness    float32
	IOR          float32

	Clearcoat          float32
	ClearcoatRoughness float32

	NormalScale     vec2.T
	EnvMapIntensity float32

	Map          *Texture
	NormalMap    *Texture
	RoughnessMap *Texture
	MetalnessMap *Texture
	EnvMap       *Texture

	Version int
}

// NewMaterial returns the defaults of a physical material: white, fully
// rough, dielectric.
func NewMaterial() *Material {
	return &Material{
		Color:           color.RGBA{255, 255, 255, 255},
		Roughness:       1,
		IOR:             1.5,
		NormalScale:     vec2.T{1, 1},
		EnvMapIntensity: 1,
	}
}

func (m *Material) Clone() *Material {
	c := *m
	return &c
}

// SetMap binds tex to the slot named by kind.
func (m *Material) SetMap(kind MapKind, tex *Texture) error {
	switch kind {
	case MapColor:
		m.Map = tex
	case MapNormal:
		m.NormalMap = tex
	case MapRoughness:
		m.RoughnessMap = tex
	case MapMetalness:
		m.MetalnessMap = tex
	case MapMRA:
		m.RoughnessMap = tex
		m.MetalnessMap = tex
	case MapEnv:
		m.EnvMap = tex
	default:
		return errors.Errorf("unknown map %q", kind)
	}
	m.Version++
	return nil
}

// SetEnvironment points the material at the scene environment map.
func (m *Material) SetEnvironment(tex *Texture, intensity float32) {
	m.EnvMap = tex
	m.EnvMapIntensity = intensity
	m.Version++
}

func (m *Material) IsTransparent() bool {
	return m.Transmission > 0 || m.Color.A < 255
}

// ToMst converts to an mst PBR material. Textures are registered through
// texID so a texture shared by several materials is packed once.
func (m *Material) ToMst(texID func(*Texture) *mst.Texture) *mst.PbrMaterial {
	mtl := &mst.PbrMaterial{
		TextureMaterial: mst.TextureMaterial{
			BaseMaterial: mst.BaseMaterial{
				Color:        [3]byte{m.Color.R, m.Color.G, m.Color.B},
				Transparency: m.transparency(),
			},
		},
		Emissive:            [3]byte{m.Emissive.R, m.Emissive.G, m.Emissive.B},
		Metallic:            m.Metalness,
		Roughness:           m.Roughness,
		Reflectance:         0.5,
		AmbientOcclusion:    1.0,
		ClearCoat:           m.Clearcoat,
		ClearCoatRoughness:  m.ClearcoatRoughness,
		AnisotropyDirection: vec3.T{1, 0, 0},
		SheenColor:          [3]byte{128, 128, 128},
		SubSurfaceColor:     [3]byte{128, 128, 128},
	}
	if texID != nil {
		if m.Map != nil {
			mtl.Texture = texID(m.Map)
		}
		if m.NormalMap != nil {
			mtl.Normal = texID(m.NormalMap)
		}
	}
	return mtl
}

func (m *Material) transparency() float32 {
	t := 1 - float32(m.Color.A)/255
	if m.Transmission > t {
		t = m.Transmission
	}
	return t
}

// ParseHexColor parses "#rrggbb", "#rgb" or "#rrggbbaa".
func ParseHexColor(s string) (color.RGBA, error) {
	h := strings.TrimPrefix(strings.TrimSpace(s), "#")
	h = strings.TrimPrefix(h, "0x")
	if len(h) == 3 {
		h = string([]byte{h[0], h[0], h[1], h[1], h[2], h[2]})
	}
	if len(h) == 6 {
		h += "ff"
	}
	if len(h) != 8 {
		return color.RGBA{}, errors.Errorf("invalid color %q", s)
	}
	v, err := strconv.ParseUint(h, 16, 32)
	if err != nil {
		return color.RGBA{}, errors.Wrapf(err, "invalid color %q", s)
	}
	return color.RGBA{R: uint8(v >> 24), G: uint8(v >> 16), B: uint8(v >> 8), A: uint8(v)}, nil
}

func HexColor(c color.RGBA) string {
	if c.A == 255 {
		return "#" + hex2(c.R) + hex2(c.G) + hex2(c.B)
	}
	return "#" + hex2(c.R) + hex2(c.G) + hex2(c.B) + hex2(c.A)
}

func hex2(b uint8) string {
	const digits = "0123456789abcdef"
	return string([]byte{digits[b>>4], digits[b&0xf]})
}

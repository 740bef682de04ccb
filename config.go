package showcase

import (
	"bytes"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/pelletier/go-toml/v2"
	"github.com/pkg/errors"
)

type CameraConfig struct {
	Fov      float64    `toml:"fov"`
	Near     float64    `toml:"near"`
	Far      float64    `toml:"far"`
	Position [3]float32 `toml:"position"`
	Target   [3]float32 `toml:"target"`
	Width    int        `toml:"width"`
	Height   int        `toml:"height"`
}

type LightConfig struct {
	Name          string     `toml:"name"`
	Kind          string     `toml:"kind"`
	Color         string     `toml:"color"`
	Intensity     float32    `toml:"intensity"`
	Position      [3]float32 `toml:"position"`
	Target        [3]float32 `toml:"target"`
	CastShadow    bool       `toml:"cast_shadow"`
	ShadowMapSize int        `toml:"shadow_map_size,omitempty"`
	ShadowNear    float32    `toml:"shadow_near,omitempty"`
	ShadowFar     float32    `toml:"shadow_far,omitempty"`
	ShadowFov     float32    `toml:"shadow_fov,omitempty"`
}

type ModelConfig struct {
	URL    string     `toml:"url"`
	Offset [3]float32 `toml:"offset"`
}

// SlotConfig is the TOML form of a SlotSpec. Unset material fields keep the
// physical material defaults.
type SlotConfig struct {
	Name               string   `toml:"name"`
	Mesh               string   `toml:"mesh,omitempty"`
	Index              *int     `toml:"index,omitempty"`
	Color              string   `toml:"color,omitempty"`
	Emissive           string   `toml:"emissive,omitempty"`
	Roughness          *float32 `toml:"roughness,omitempty"`
	Metalness          *float32 `toml:"metalness,omitempty"`
	Transmission       *float32 `toml:"transmission,omitempty"`
	Thickness          *float32 `toml:"thickness,omitempty"`
	IOR                *float32 `toml:"ior,omitempty"`
	Clearcoat          *float32 `toml:"clearcoat,omitempty"`
	ClearcoatRoughness *float32 `toml:"clearcoat_roughness,omitempty"`
	NormalScale        *float32 `toml:"normal_scale,omitempty"`
}

type BindConfig struct {
	Slot string `toml:"slot"`
	Map  string `toml:"map"`
}

type TextureConfig struct {
	URL        string       `toml:"url"`
	ColorSpace string       `toml:"color_space"`
	FlipY      bool         `toml:"flip_y"`
	Bind       []BindConfig `toml:"bind"`
}

type EnvironmentConfig struct {
	URL        string  `toml:"url"`
	Intensity  float32 `toml:"intensity"`
	ColorSpace string  `toml:"color_space"`
}

type FontConfig struct {
	ID      string `toml:"id"`
	URL     string `toml:"url"`
	Preload bool   `toml:"preload"`
}

type LineConfig struct {
	Text   string     `toml:"text"`
	Offset [3]float32 `toml:"offset"`
	Size   float64    `toml:"size,omitempty"`
}

type EngravingSettings struct {
	Font          string       `toml:"font"`
	Size          float64      `toml:"size"`
	Depth         float64      `toml:"depth"`
	CurveSegments int          `toml:"curve_segments"`
	Align         string       `toml:"align"`
	LetterSpacing float64      `toml:"letter_spacing"`
	Color         string       `toml:"color"`
	Roughness     float32      `toml:"roughness"`
	Metalness     float32      `toml:"metalness"`
	Lines         []LineConfig `toml:"lines"`
}

// Config describes a showcase scene.
type Config struct {
	Background  string            `toml:"background"`
	Decoder     string            `toml:"decoder,omitempty"`
	Camera      CameraConfig      `toml:"camera"`
	Lights      []LightConfig     `toml:"lights"`
	Model       ModelConfig       `toml:"model"`
	Slots       []SlotConfig      `toml:"slots"`
	Textures    []TextureConfig   `toml:"textures"`
	Environment EnvironmentConfig `toml:"environment"`
	Fonts       []FontConfig      `toml:"fonts"`
	Engraving   EngravingSettings `toml:"engraving"`
}

func f32(v float32) *float32 { return &v }
func idx(v int) *int         { return &v }

// Default is the perfume bottle scene.
func Default() Config {
	return Config{
		Background: "#F0F0F0",
		Camera: CameraConfig{
			Fov:      75,
			Near:     0.01,
			Far:      2,
			Position: [3]float32{0, 0, 0.2},
			Width:    1280,
			Height:   720,
		},
		Lights: []LightConfig{{
			Name:          "key",
			Kind:          string(SpotLight),
			Color:         "#FFFFFF",
			Intensity:     10,
			Position:      [3]float32{0, 3, 3},
			CastShadow:    true,
			ShadowMapSize: 1024,
			ShadowNear:    1,
			ShadowFar:     4000,
			ShadowFov:     10,
		}},
		Model: ModelConfig{
			URL:    "/CreedBottle_Optimized.glb",
			Offset: [3]float32{0, -0.06, 0},
		},
		Slots: []SlotConfig{
			{Name: "cap", Index: idx(0), Color: "#090909", Roughness: f32(0.0173)},
			{Name: "capTop", Index: idx(1), Color: "#090909", Roughness: f32(0.0173)},
			{Name: "labelFront", Index: idx(2), Color: "#232323", NormalScale: f32(0.1)},
			{Name: "logo", Index: idx(3), Color: "#191919", Roughness: f32(0.0173), Metalness: f32(0), NormalScale: f32(0.1)},
			{
				Name: "glass", Index: idx(4),
				Roughness: f32(0.01), Transmission: f32(1), Metalness: f32(0), Thickness: f32(0.5),
				Clearcoat: f32(1), ClearcoatRoughness: f32(0.01), NormalScale: f32(0.05),
			},
			{Name: "labelBack", Index: idx(5), Color: "#191919", NormalScale: f32(0.1)},
			{Name: "foil", Index: idx(6), Color: "#090909", NormalScale: f32(1)},
		},
		Textures: []TextureConfig{
			{URL: "textures/T_Material_001_N.jpg", ColorSpace: "srgb", Bind: []BindConfig{{"capTop", "normal"}}},
			{URL: "textures/T_AVENTUS_HOURSE_B.jpg", ColorSpace: "srgb", Bind: []BindConfig{{"labelFront", "map"}}},
			{URL: "/textures/T_AVENTUS_HOURSE_MRA.png", ColorSpace: "srgb", Bind: []BindConfig{{"labelFront", "mra"}}},
			{URL: "/textures/T_Backplate_B.jpg", ColorSpace: "srgb", Bind: []BindConfig{{"labelBack", "map"}}},
			{URL: "/textures/T_Backplate_MRA.png", ColorSpace: "srgb", Bind: []BindConfig{{"labelBack", "mra"}}},
			{URL: "/textures/T_Material_001_MRA.png", ColorSpace: "srgb", Bind: []BindConfig{{"foil", "mra"}}},
			{URL: "/textures/T_Material_N.jpg", ColorSpace: "srgb", Bind: []BindConfig{{"foil", "normal"}}},
			{URL: "/textures/Noise_Normal_Map.jpg", Bind: []BindConfig{{"labelFront", "normal"}, {"logo", "normal"}}},
		},
		Environment: EnvironmentConfig{
			URL:        "/env.hdr",
			Intensity:  1.5,
			ColorSpace: "srgb",
		},
		Fonts: []FontConfig{
			{ID: "goregular", URL: "builtin:goregular", Preload: true},
			{ID: "gobold", URL: "builtin:gobold"},
			{ID: "lmroman10-regular", URL: "builtin:lmroman10-regular"},
			{ID: "lmroman10-bold", URL: "builtin:lmroman10-bold"},
			{ID: "lmmono10-regular", URL: "builtin:lmmono10-regular"},
		},
		Engraving: EngravingSettings{
			Font:          "goregular",
			Size:          0.006,
			Depth:         0.0004,
			CurveSegments: DefaultCurveSegments,
			Align:         "center",
			Color:         "#C9A96E",
			Roughness:     0.2,
			Metalness:     1,
			Lines: []LineConfig{
				{Offset: [3]float32{0, 0.012, 0.021}},
				{Offset: [3]float32{0, 0.004, 0.021}},
			},
		},
	}
}

// Load reads a TOML file over the defaults. Tables present in the file
// replace the default values, arrays replace the default arrays.
func Load(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, errors.Wrap(err, "read config")
	}
	return Parse(data)
}

func Parse(data []byte) (Config, error) {
	var keys map[string]interface{}
	if err := toml.Unmarshal(data, &keys); err != nil {
		return Config{}, describe(err)
	}
	cfg := Default()
	// Arrays of tables would append to the defaults, so the ones present in
	// the file start empty.
	for k := range keys {
		switch k {
		case "lights":
			cfg.Lights = nil
		case "slots":
			cfg.Slots = nil
		case "textures":
			cfg.Textures = nil
		case "fonts":
			cfg.Fonts = nil
		case "engraving":
			if e, ok := keys[k].(map[string]interface{}); ok {
				if _, ok := e["lines"]; ok {
					cfg.Engraving.Lines = nil
				}
			}
		}
	}
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&cfg); err != nil {
		return Config{}, describe(err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func describe(err error) error {
	var derr *toml.DecodeError
	if errors.As(err, &derr) {
		row, col := derr.Position()
		return errors.Errorf("config %d:%d: %s", row, col, derr.Error())
	}
	return errors.Wrap(err, "decode config")
}

func (c Config) Write(w io.Writer) error {
	enc := toml.NewEncoder(w)
	enc.SetIndentTables(true)
	return errors.Wrap(enc.Encode(c), "encode config")
}

func (c Config) Save(path string) error {
	var buf bytes.Buffer
	if err := c.Write(&buf); err != nil {
		return err
	}
	return errors.Wrap(os.WriteFile(path, buf.Bytes(), 0o644), "save config")
}

// Validate checks everything that can be checked without loading assets:
// colors, slot names, texture bindings and fonts.
func (c Config) Validate() error {
	var problems []string
	add := func(format string, args ...interface{}) {
		problems = append(problems, fmt.Sprintf(format, args...))
	}
	if _, err := ParseHexColor(c.Background); err != nil {
		add("background: %v", err)
	}
	if c.Camera.Near <= 0 || c.Camera.Far <= c.Camera.Near {
		add("camera: need 0 < near < far, have %g, %g", c.Camera.Near, c.Camera.Far)
	}
	for _, l := range c.Lights {
		if _, err := l.light(); err != nil {
			add("light %s: %v", l.Name, err)
		}
	}
	if _, err := c.SlotSpecs(); err != nil {
		add("%v", err)
	}
	seen := make(map[string]bool, len(c.Slots))
	for i, s := range c.Slots {
		switch {
		case s.Name == "":
			add("slot %d has no name", i)
		case seen[s.Name]:
			add("slot %q declared twice", s.Name)
		}
		seen[s.Name] = true
	}
	names := c.slotNames()
	for _, t := range c.Textures {
		b, err := t.binding()
		if err != nil {
			add("%v", err)
			continue
		}
		if err := b.Validate(names); err != nil {
			add("%v", err)
		}
	}
	if _, err := ParseColorSpace(c.Environment.ColorSpace); err != nil {
		add("environment: %v", err)
	}
	if _, err := c.EngravingConfig(); err != nil {
		add("%v", err)
	}
	if len(problems) > 0 {
		return errors.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

func (c Config) slotNames() map[string]bool {
	out := make(map[string]bool, len(c.Slots))
	for _, s := range c.Slots {
		out[s.Name] = true
	}
	return out
}

func (s SlotConfig) material() (*Material, error) {
	m := NewMaterial()
	if s.Color != "" {
		col, err := ParseHexColor(s.Color)
		if err != nil {
			return nil, err
		}
		m.Color = col
	}
	if s.Emissive != "" {
		col, err := ParseHexColor(s.Emissive)
		if err != nil {
			return nil, err
		}
		m.Emissive = col
	}
	set := func(dst *float32, v *float32) {
		if v != nil {
			*dst = *v
		}
	}
	set(&m.Roughness, s.Roughness)
	set(&m.Metalness, s.Metalness)
	set(&m.Transmission, s.Transmission)
	set(&m.Thickness, s.Thickness)
	set(&m.IOR, s.IOR)
	set(&m.Clearcoat, s.Clearcoat)
	set(&m.ClearcoatRoughness, s.ClearcoatRoughness)
	if s.NormalScale != nil {
		m.NormalScale = vec2.T{*s.NormalScale, *s.NormalScale}
	}
	return m, nil
}

// SlotSpecs converts the slot tables.
func (c Config) SlotSpecs() ([]SlotSpec, error) {
	out := make([]SlotSpec, 0, len(c.Slots))
	var problems []string
	for _, s := range c.Slots {
		m, err := s.material()
		if err != nil {
			problems = append(problems, fmt.Sprintf("slot %s: %v", s.Name, err))
			continue
		}
		out = append(out, SlotSpec{Name: s.Name, Mesh: s.Mesh, Index: s.Index, Material: m})
	}
	if len(problems) > 0 {
		return nil, errors.New(strings.Join(problems, "; "))
	}
	return out, nil
}

func (t TextureConfig) binding() (TextureBinding, error) {
	cs, err := ParseColorSpace(t.ColorSpace)
	if err != nil {
		return TextureBinding{}, errors.Wrapf(err, "texture %s", t.URL)
	}
	b := TextureBinding{URL: t.URL, ColorSpace: cs, FlipY: t.FlipY}
	for _, bc := range t.Bind {
		b.Bind = append(b.Bind, MapBinding{Slot: bc.Slot, Map: MapKind(bc.Map)})
	}
	return b, nil
}

// TextureBindings converts the texture tables.
func (c Config) TextureBindings() ([]TextureBinding, error) {
	out := make([]TextureBinding, 0, len(c.Textures))
	for _, t := range c.Textures {
		b, err := t.binding()
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// EnvironmentOptions are the decode flags of the environment map.
func (c Config) EnvironmentOptions() TextureOptions {
	cs, _ := ParseColorSpace(c.Environment.ColorSpace)
	return TextureOptions{ColorSpace: cs, Mapping: EquirectangularReflectionMapping}
}

func (c Config) EngravingConfig() (EngravingConfig, error) {
	e := c.Engraving
	align, err := ParseAlign(e.Align)
	if err != nil {
		return EngravingConfig{}, errors.Wrap(err, "engraving")
	}
	m := NewMaterial()
	if e.Color != "" {
		col, err := ParseHexColor(e.Color)
		if err != nil {
			return EngravingConfig{}, errors.Wrap(err, "engraving")
		}
		m.Color = col
	}
	m.Roughness = e.Roughness
	m.Metalness = e.Metalness
	if e.Size <= 0 {
		return EngravingConfig{}, errors.Errorf("engraving: size %g must be positive", e.Size)
	}
	out := EngravingConfig{
		Text: TextOptions{
			Size:          e.Size,
			Depth:         e.Depth,
			CurveSegments: e.CurveSegments,
			Align:         align,
			LetterSpacing: e.LetterSpacing,
		},
		Material:    m,
		DefaultFont: e.Font,
	}
	for _, l := range e.Lines {
		out.Lines = append(out.Lines, LineStyle{Offset: vec3.T(l.Offset), Size: l.Size})
	}
	return out, nil
}

func (c Config) SceneCamera() Camera {
	cam := Camera{
		Fov:      c.Camera.Fov,
		Near:     c.Camera.Near,
		Far:      c.Camera.Far,
		Aspect:   1,
		Position: vec3.T(c.Camera.Position),
		Target:   vec3.T(c.Camera.Target),
	}
	cam.Resize(c.Camera.Width, c.Camera.Height)
	return cam
}

func (l LightConfig) light() (Light, error) {
	col := "#FFFFFF"
	if l.Color != "" {
		col = l.Color
	}
	rgba, err := ParseHexColor(col)
	if err != nil {
		return Light{}, err
	}
	kind := LightKind(l.Kind)
	switch kind {
	case SpotLight, PointLight, DirectionalLight, AmbientLight:
	default:
		return Light{}, errors.Errorf("unknown light kind %q", l.Kind)
	}
	return Light{
		Name:          l.Name,
		Kind:          kind,
		Color:         rgba,
		Intensity:     l.Intensity,
		Position:      vec3.T(l.Position),
		Target:        vec3.T(l.Target),
		CastShadow:    l.CastShadow,
		ShadowMapSize: l.ShadowMapSize,
		ShadowNear:    l.ShadowNear,
		ShadowFar:     l.ShadowFar,
		ShadowFov:     l.ShadowFov,
	}, nil
}

func (c Config) SceneLights() ([]Light, error) {
	out := make([]Light, 0, len(c.Lights))
	for _, lc := range c.Lights {
		l, err := lc.light()
		if err != nil {
			return nil, errors.Wrapf(err, "light %s", lc.Name)
		}
		out = append(out, l)
	}
	return out, nil
}

package showcase

import (
	"bytes"
	"fmt"
	"image/color"
	"math"
	"strconv"

	dae "github.com/flywave/go-collada"
	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/float64/quaternion"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/pkg/errors"
)

// DaeDecoder decodes COLLADA documents. Every primitive group of a geometry
// instanced by a node of the visual scene becomes a Part named after the
// node; a node with several groups gets "name.N" parts. Phong effects give
// the part colors, diffuse images are read through the resources.
type DaeDecoder struct {
	resources ResourceFunc

	geometries map[string]*dae.Geometry
	materials  map[string]*dae.Material
	effects    map[string]*dae.Effect
	images     map[string]*dae.Image
	textures   map[string]*Texture
	seen       map[string]int
	model      *Model
}

func (d *DaeDecoder) SetResources(fn ResourceFunc) { d.resources = fn }

func (d *DaeDecoder) Decode(name string, data []byte) (model *Model, err error) {
	defer func() {
		if r := recover(); r != nil {
			model, err = nil, errors.Errorf("decode %s: malformed collada: %v", name, r)
		}
	}()
	doc, err := dae.LoadDocumentFromReader(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}
	d.index(doc)
	d.seen = make(map[string]int)
	d.model = &Model{Name: name}

	vs := visualScene(doc)
	if vs == nil {
		return nil, errors.Errorf("decode %s: no visual scene", name)
	}
	root := dmat.Ident
	if doc.Asset != nil && doc.Asset.UpAxis == dae.Zup {
		q := quaternion.FromAxisAngle(&dvec3.T{1, 0, 0}, -math.Pi/2)
		root = *dmat.Compose(&dvec3.T{}, &q, &dvec3.T{1, 1, 1})
	}
	for _, nd := range vs.Node {
		if err := d.walk(nd, root, 0); err != nil {
			return nil, errors.Wrapf(err, "decode %s", name)
		}
	}
	return d.model, nil
}

func (d *DaeDecoder) index(doc *dae.Collada) {
	d.geometries = make(map[string]*dae.Geometry)
	d.materials = make(map[string]*dae.Material)
	d.effects = make(map[string]*dae.Effect)
	d.images = make(map[string]*dae.Image)
	d.textures = make(map[string]*Texture)
	for _, lib := range doc.LibraryGeometries {
		for _, g := range lib.Geometry {
			d.geometries[string(g.Id)] = g
		}
	}
	for _, lib := range doc.LibraryMaterials {
		for _, m := range lib.Material {
			d.materials[string(m.Id)] = m
		}
	}
	for _, lib := range doc.LibraryEffects {
		for _, e := range lib.Effect {
			d.effects[string(e.Id)] = e
		}
	}
	for _, lib := range doc.LibraryImages {
		for _, img := range lib.Image {
			d.images[string(img.Id)] = img
		}
	}
}

func visualScene(doc *dae.Collada) *dae.VisualScene {
	var want string
	if doc.Scene != nil && doc.Scene.InstanceVisualScene != nil {
		want = doc.Scene.InstanceVisualScene.Url.GetId()
	}
	var first *dae.VisualScene
	for _, lib := range doc.LibraryVisualScenes {
		for _, vs := range lib.VisualScene {
			if first == nil {
				first = vs
			}
			if string(vs.Id) == want {
				return vs
			}
		}
	}
	return first
}

func (d *DaeDecoder) walk(nd *dae.Node, parent dmat.T, depth int) error {
	if depth > maxNodeDepth {
		return errors.Errorf("node hierarchy deeper than %d", maxNodeDepth)
	}
	world := dmat.Ident
	world.AssignMul(&parent, daeNodeMatrix(nd))

	name := nd.Name
	if name == "" {
		name = string(nd.Id)
	}
	var groups []daePrimitive
	for _, inst := range nd.InstanceGeometry {
		g, ok := d.geometries[inst.Url.GetId()]
		if !ok || g.Mesh == nil {
			continue
		}
		if name == "" {
			name = g.Name
		}
		groups = append(groups, daePrimitives(g.Mesh)...)
	}
	for i, prim := range groups {
		partName := name
		if len(groups) > 1 {
			partName = fmt.Sprintf("%s.%d", name, i)
		}
		part := newPart(uniqueName(d.seen, partName, len(d.model.Parts)), len(d.model.Parts), d.material(prim.material))
		if err := prim.build(part, &world); err != nil {
			return errors.Wrapf(err, "node %q", name)
		}
		d.model.Parts = append(d.model.Parts, part)
	}
	for _, c := range nd.Node {
		if err := d.walk(c, world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

// daeNodeMatrix composes a node's transform. The document order of mixed
// transform elements is not kept by the reader, so translate, rotate and
// scale are applied as T * R * S, and a <matrix> wins when present.
func daeNodeMatrix(nd *dae.Node) *dmat.T {
	if len(nd.Matrix) > 0 {
		v := floats(nd.Matrix[0].ToSlice())
		if len(v) >= 16 {
			var m dmat.T
			for r := 0; r < 4; r++ {
				for c := 0; c < 4; c++ {
					m[c][r] = v[r*4+c]
				}
			}
			return &m
		}
	}
	tra := dvec3.T{}
	for _, t := range nd.Translate {
		v := floats(t.ToSlice())
		if len(v) >= 3 {
			tra = dvec3.Add(&tra, &dvec3.T{v[0], v[1], v[2]})
		}
	}
	rot := quaternion.Ident
	for _, r := range nd.Rotate {
		v := floats(r.ToSlice())
		if len(v) >= 4 && v[3] != 0 {
			axis := dvec3.T{v[0], v[1], v[2]}
			q := quaternion.FromAxisAngle(&axis, v[3]*math.Pi/180)
			rot = quaternion.Mul(&rot, &q)
		}
	}
	sc := dvec3.T{1, 1, 1}
	if len(nd.Scale) > 0 {
		if v := floats(nd.Scale[0].ToSlice()); len(v) >= 3 {
			sc = dvec3.T{v[0], v[1], v[2]}
		}
	}
	return dmat.Compose(&tra, &rot, &sc)
}

// material resolves a primitive's material symbol. The reader does not keep
// <instance_material> bindings, so the symbol is looked up as a material id.
func (d *DaeDecoder) material(symbol string) *Material {
	m, ok := d.materials[symbol]
	if !ok {
		return NewMaterial()
	}
	e, ok := d.effects[m.InstanceEffect.Url.GetId()]
	if !ok || e.ProfileCommon == nil {
		return NewMaterial()
	}
	return d.effectMaterial(e)
}

func (d *DaeDecoder) effectMaterial(e *dae.Effect) *Material {
	mtl := NewMaterial()
	common := e.ProfileCommon
	if common.TechniqueFx == nil || common.TechniqueFx.Phone == nil {
		return mtl
	}
	phong := common.TechniqueFx.Phone
	if c, ok := daeColor(phong.Diffuse); ok {
		mtl.Color = c
	}
	if c, ok := daeColor(phong.Emission); ok && (c.R != 0 || c.G != 0 || c.B != 0) {
		mtl.Emissive = c
	}
	if phong.Shininess != nil && phong.Shininess.Float != nil && phong.Shininess.Float.Value > 0 {
		mtl.Roughness = float32(math.Sqrt(2 / (phong.Shininess.Float.Value + 2)))
	}
	if phong.Transparency != nil && phong.Transparency.Float != nil && phong.Transparency.Float.Value < 1 {
		mtl.Color.A = unitByte(phong.Transparency.Float.Value)
	}
	if phong.IndexOfRefraction != nil && phong.IndexOfRefraction.Float != nil && phong.IndexOfRefraction.Float.Value > 0 {
		mtl.IOR = float32(phong.IndexOfRefraction.Float.Value)
	}
	if phong.Diffuse != nil && phong.Diffuse.Texture != nil {
		mtl.Map = d.texture(e, phong.Diffuse.Texture.Texture)
	}
	return mtl
}

func daeColor(c *dae.FxCommonColorOrTextureType) (col color.RGBA, ok bool) {
	if c == nil || c.Color == nil {
		return col, false
	}
	v := floats(c.Color.ToSlice())
	if len(v) < 3 {
		return col, false
	}
	col.R, col.G, col.B, col.A = unitByte(v[0]), unitByte(v[1]), unitByte(v[2]), 255
	return col, true
}

// texture follows a diffuse texture reference to an image, either directly
// by id or through a sampler parameter of the effect.
func (d *DaeDecoder) texture(e *dae.Effect, ref string) *Texture {
	id := ref
	params := append([]*dae.Newparam(nil), e.Newparam...)
	params = append(params, e.ProfileCommon.Newparam...)
	if _, ok := d.images[id]; !ok {
		for _, p := range params {
			if p.Sid != ref || p.Sampler2D == nil {
				continue
			}
			switch s := p.Sampler2D; {
			case s.InstanceImage != nil:
				id = s.InstanceImage.Url.GetId()
			case s.Source != nil:
				id = s.Source.Texture
			}
		}
	}
	if tex, ok := d.textures[id]; ok {
		return tex
	}
	img, ok := d.images[id]
	if !ok || img.InitFrom == nil || img.InitFrom.Ref.Ref == "" || d.resources == nil {
		return nil
	}
	data, err := d.resources(img.InitFrom.Ref.Ref)
	if err != nil {
		return nil
	}
	tex, err := DecodeTexture(img.InitFrom.Ref.Ref, data, TextureOptions{ColorSpace: SRGBColorSpace})
	if err != nil {
		return nil
	}
	d.textures[id] = tex
	return tex
}

// daePrimitive is one <triangles>, <polylist>, <polygons>, <trifans> or
// <tristrips> element flattened to polygons of corner indices.
type daePrimitive struct {
	material string
	mesh     *dae.Mesh
	inputs   []*dae.InputShared
	indices  []int
	// counts holds the corner count of each polygon in indices.
	counts []int
	strip  bool
}

func daePrimitives(mh *dae.Mesh) []daePrimitive {
	var out []daePrimitive
	for _, t := range mh.Triangles {
		p := daePrimitive{material: t.Material, mesh: mh, inputs: t.Input, indices: ints(t.P)}
		n := p.corners() / 3
		for i := 0; i < n; i++ {
			p.counts = append(p.counts, 3)
		}
		out = append(out, p)
	}
	for _, t := range mh.Polylist {
		p := daePrimitive{material: t.Material, mesh: mh, inputs: t.Input, indices: ints(t.P)}
		if t.VCount != nil {
			for _, s := range t.VCount.ToSlice() {
				n, _ := strconv.Atoi(s)
				p.counts = append(p.counts, n)
			}
		}
		out = append(out, p)
	}
	for _, t := range mh.Polygons {
		p := daePrimitive{material: t.Material, mesh: mh, inputs: t.Input}
		stride := p.stride()
		for _, poly := range t.P {
			idx := ints(poly)
			p.indices = append(p.indices, idx...)
			p.counts = append(p.counts, len(idx)/stride)
		}
		out = append(out, p)
	}
	for _, t := range mh.Trifans {
		p := daePrimitive{material: t.Material, mesh: mh, inputs: t.Input, indices: ints(t.P)}
		p.counts = []int{p.corners()}
		out = append(out, p)
	}
	for _, t := range mh.Tristrips {
		p := daePrimitive{material: t.Material, mesh: mh, inputs: t.Input, indices: ints(t.P), strip: true}
		p.counts = []int{p.corners()}
		out = append(out, p)
	}
	return out
}

// stride is the number of indices per corner, one past the largest offset.
func (p *daePrimitive) stride() int {
	s := 1
	for _, in := range p.inputs {
		if int(in.Offset)+1 > s {
			s = int(in.Offset) + 1
		}
	}
	return s
}

func (p *daePrimitive) corners() int { return len(p.indices) / p.stride() }

type daeSource struct {
	values []float64
	stride int
}

func (s *daeSource) at(i, n int) ([]float64, bool) {
	if s == nil || i < 0 || (i+1)*s.stride > len(s.values) || s.stride < n {
		return nil, false
	}
	return s.values[i*s.stride : i*s.stride+n], true
}

func (p *daePrimitive) source(uri dae.Uri) *daeSource {
	id := uri.GetId()
	for _, src := range p.mesh.Source {
		if string(src.Id) != id || src.FloatArray == nil {
			continue
		}
		stride := src.TechniqueCommon.Accessor.Stride
		if stride <= 0 {
			stride = 1
		}
		return &daeSource{values: floats(src.FloatArray.ToSlice()), stride: stride}
	}
	return nil
}

func (p *daePrimitive) build(part *Part, world *dmat.T) error {
	stride := p.stride()
	var (
		pos, nrm, uv          *daeSource
		posOff, nrmOff, uvOff = -1, -1, -1
	)
	for _, in := range p.inputs {
		switch in.Semantic {
		case "VERTEX":
			posOff = int(in.Offset)
			for _, vi := range p.mesh.Vertices.Input {
				switch vi.Semantic {
				case "POSITION":
					pos = p.source(vi.Source)
				case "NORMAL":
					if nrm == nil {
						nrm, nrmOff = p.source(vi.Source), int(in.Offset)
					}
				}
			}
		case "NORMAL":
			nrm, nrmOff = p.source(in.Source), int(in.Offset)
		case "TEXCOORD":
			if uv == nil {
				uv, uvOff = p.source(in.Source), int(in.Offset)
			}
		}
	}
	if pos == nil || posOff < 0 {
		return errors.New("primitive without positions")
	}

	corner := func(c int) (v vec3.T, t vec2.T, n vec3.T, hasN bool, err error) {
		at := func(off int) int { return p.indices[c*stride+off] }
		x, ok := pos.at(at(posOff), 3)
		if !ok {
			return v, t, n, false, errors.Errorf("position index %d out of range", at(posOff))
		}
		wv := world.MulVec3(&dvec3.T{x[0], x[1], x[2]})
		v = vec3.T{float32(wv[0]), float32(wv[1]), float32(wv[2])}
		if uvOff >= 0 {
			if y, ok := uv.at(at(uvOff), 2); ok {
				t = vec2.T{float32(y[0]), float32(y[1])}
			}
		}
		if nrmOff >= 0 {
			if y, ok := nrm.at(at(nrmOff), 3); ok {
				n = transformNormal(world, &[3]float32{float32(y[0]), float32(y[1]), float32(y[2])})
				hasN = true
			}
		}
		return v, t, n, hasN, nil
	}

	emit := func(a, b, c int) error {
		var (
			ps  [3]vec3.T
			ts  [3]vec2.T
			ns  [3]vec3.T
			all = true
		)
		for k, ci := range [3]int{a, b, c} {
			v, t, n, hasN, err := corner(ci)
			if err != nil {
				return err
			}
			ps[k], ts[k], ns[k] = v, t, n
			all = all && hasN
		}
		if all {
			part.addTriangle(ps, ts, &ns)
		} else {
			part.addTriangle(ps, ts, nil)
		}
		return nil
	}

	total := p.corners()
	start := 0
	for _, n := range p.counts {
		if n < 3 || start+n > total {
			start += n
			continue
		}
		for k := 1; k+1 < n; k++ {
			var err error
			if p.strip {
				// alternate the winding along a strip
				a, b, c := start+k-1, start+k, start+k+1
				if k%2 == 0 {
					a, b = b, a
				}
				err = emit(a, b, c)
			} else {
				err = emit(start, start+k, start+k+1)
			}
			if err != nil {
				return err
			}
		}
		start += n
	}
	return nil
}

func ints(p *dae.P) []int {
	if p == nil {
		return nil
	}
	ss := p.ToSlice()
	out := make([]int, 0, len(ss))
	for _, s := range ss {
		i, err := strconv.Atoi(s)
		if err != nil {
			continue
		}
		out = append(out, i)
	}
	return out
}

func floats(ss []string) []float64 {
	out := make([]float64, 0, len(ss))
	for _, s := range ss {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			continue
		}
		out = append(out, f)
	}
	return out
}

package showcase

import (
	"bytes"
	"encoding/binary"
	"math"

	mst "github.com/flywave/go-mst"
	dmat "github.com/flywave/go3d/float64/mat4"
	"github.com/flywave/go3d/float64/quaternion"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
)

const dracoExtension = "KHR_draco_mesh_compression"

var ErrCompressedGeometry = errors.New("compressed geometry is not supported")

// GltfDecoder decodes glTF and GLB files. Every node of the default scene
// that carries a mesh becomes a Part, in depth first order, with its
// geometry baked into world space.
type GltfDecoder struct {
	resources ResourceFunc

	doc    *gltf.Document
	seen   map[string]int
	model  *Model
	images map[uint32]*Texture
}

func (g *GltfDecoder) Decode(name string, data []byte) (*Model, error) {
	doc := new(gltf.Document)
	dec := gltf.NewDecoder(bytes.NewReader(data)).WithReadHandler(&resourceHandler{model: name, read: g.resources})
	if err := dec.Decode(doc); err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}
	return g.DecodeDoc(name, doc)
}

// SetResources sets where external buffers and images are read from.
// Without it a model may only use embedded data.
func (g *GltfDecoder) SetResources(fn ResourceFunc) { g.resources = fn }

type resourceHandler struct {
	model string
	read  ResourceFunc
}

func (h *resourceHandler) ReadFullResource(uri string, data []byte) error {
	if h.read == nil {
		return errors.Errorf("%s: external resource %q has no source", h.model, uri)
	}
	b, err := h.read(uri)
	if err != nil {
		return err
	}
	if len(b) < len(data) {
		return errors.Errorf("%s: resource %q has %d bytes, want %d", h.model, uri, len(b), len(data))
	}
	copy(data, b)
	return nil
}

func (g *GltfDecoder) DecodeDoc(name string, doc *gltf.Document) (*Model, error) {
	for _, ext := range doc.ExtensionsRequired {
		if ext == dracoExtension {
			return nil, errors.Wrapf(ErrCompressedGeometry, "%s requires %s", name, ext)
		}
	}
	g.doc = doc
	g.seen = make(map[string]int)
	g.images = make(map[uint32]*Texture)
	g.model = &Model{Name: name}

	var roots []uint32
	switch {
	case doc.Scene != nil && int(*doc.Scene) < len(doc.Scenes):
		roots = doc.Scenes[*doc.Scene].Nodes
	case len(doc.Scenes) > 0:
		roots = doc.Scenes[0].Nodes
	default:
		for i := range doc.Nodes {
			roots = append(roots, uint32(i))
		}
	}
	for _, n := range roots {
		if err := g.walk(n, dmat.Ident, 0); err != nil {
			return nil, err
		}
	}
	return g.model, nil
}

const maxNodeDepth = 64

func (g *GltfDecoder) walk(idx uint32, parent dmat.T, depth int) error {
	if depth > maxNodeDepth {
		return errors.Errorf("node hierarchy deeper than %d", maxNodeDepth)
	}
	if int(idx) >= len(g.doc.Nodes) {
		return errors.Errorf("node %d out of range", idx)
	}
	nd := g.doc.Nodes[idx]
	world := dmat.Ident
	world.AssignMul(&parent, localMatrix(nd))

	if nd.Mesh != nil {
		if err := g.transMesh(nd, *nd.Mesh, &world); err != nil {
			return err
		}
	}
	for _, c := range nd.Children {
		if err := g.walk(c, world, depth+1); err != nil {
			return err
		}
	}
	return nil
}

func localMatrix(nd *gltf.Node) *dmat.T {
	var raw [16]float64
	isSet := false
	for i, v := range nd.Matrix {
		raw[i] = float64(v)
		if v != 0 {
			isSet = true
		}
	}
	if isSet && raw != [16]float64{1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1, 0, 0, 0, 0, 1} {
		var mt dmat.T
		for c := 0; c < 4; c++ {
			for r := 0; r < 4; r++ {
				mt[c][r] = raw[c*4+r]
			}
		}
		return &mt
	}
	sc := dvec3.T{float64(nd.Scale[0]), float64(nd.Scale[1]), float64(nd.Scale[2])}
	if sc == (dvec3.T{}) {
		sc = dvec3.T{1, 1, 1}
	}
	tra := dvec3.T{float64(nd.Translation[0]), float64(nd.Translation[1]), float64(nd.Translation[2])}
	rot := quaternion.T{float64(nd.Rotation[0]), float64(nd.Rotation[1]), float64(nd.Rotation[2]), float64(nd.Rotation[3])}
	if rot == (quaternion.T{}) {
		rot = quaternion.Ident
	}
	return dmat.Compose(&tra, &rot, &sc)
}

func (g *GltfDecoder) transMesh(nd *gltf.Node, mhid uint32, mat *dmat.T) error {
	if int(mhid) >= len(g.doc.Meshes) {
		return errors.Errorf("mesh %d out of range", mhid)
	}
	mh := g.doc.Meshes[mhid]
	name := nd.Name
	if name == "" {
		name = mh.Name
	}
	part := &Part{
		Name:   uniqueName(g.seen, name, len(g.model.Parts)),
		Index:  len(g.model.Parts),
		Mesh:   &mst.MeshNode{},
		Bounds: dvec3.MinBox,
	}
	mhNode := part.Mesh

	for _, ps := range mh.Primitives {
		if _, ok := ps.Extensions[dracoExtension]; ok {
			return errors.Wrapf(ErrCompressedGeometry, "mesh %q uses %s", mh.Name, dracoExtension)
		}
		if ps.Mode != gltf.PrimitiveTriangles {
			continue
		}
		posIdx, ok := ps.Attributes["POSITION"]
		if !ok {
			continue
		}
		base := uint32(len(mhNode.Vertices))

		var count int
		err := readDataByAccessor(g.doc, g.accessor(posIdx), func(res interface{}) {
			p, ok := res.(*[3]float32)
			if !ok {
				return
			}
			dv := dvec3.T{float64(p[0]), float64(p[1]), float64(p[2])}
			dv = mat.MulVec3(&dv)
			v := vec3.T{float32(dv[0]), float32(dv[1]), float32(dv[2])}
			mhNode.Vertices = append(mhNode.Vertices, v)
			addPoint(&part.Bounds, v)
			count++
		})
		if err != nil {
			return errors.Wrapf(err, "mesh %q positions", mh.Name)
		}

		if idx, ok := ps.Attributes["NORMAL"]; ok {
			err := readDataByAccessor(g.doc, g.accessor(idx), func(res interface{}) {
				n, ok := res.(*[3]float32)
				if !ok {
					return
				}
				mhNode.Normals = append(mhNode.Normals, transformNormal(mat, n))
			})
			if err != nil {
				return errors.Wrapf(err, "mesh %q normals", mh.Name)
			}
		}

		if idx, ok := ps.Attributes["TEXCOORD_0"]; ok {
			err := readDataByAccessor(g.doc, g.accessor(idx), func(res interface{}) {
				if uv, ok := res.(*[2]float32); ok {
					mhNode.TexCoords = append(mhNode.TexCoords, vec2.T(*uv))
				}
			})
			if err != nil {
				return errors.Wrapf(err, "mesh %q texcoords", mh.Name)
			}
		}

		tg := &mst.MeshTriangle{Batchid: 0}
		var fv []uint32
		if ps.Indices != nil {
			err := readDataByAccessor(g.doc, g.accessor(*ps.Indices), func(res interface{}) {
				switch fcs := res.(type) {
				case *uint8:
					fv = append(fv, uint32(*fcs))
				case *uint16:
					fv = append(fv, uint32(*fcs))
				case *uint32:
					fv = append(fv, *fcs)
				}
			})
			if err != nil {
				return errors.Wrapf(err, "mesh %q indices", mh.Name)
			}
		} else {
			for i := 0; i < count; i++ {
				fv = append(fv, uint32(i))
			}
		}
		for i := 0; i+2 < len(fv); i += 3 {
			if int(fv[i]) >= count || int(fv[i+1]) >= count || int(fv[i+2]) >= count {
				return errors.Errorf("mesh %q: index out of range", mh.Name)
			}
			tg.Faces = append(tg.Faces, &mst.Face{
				Vertex: [3]uint32{base + fv[i], base + fv[i+1], base + fv[i+2]},
			})
		}
		mhNode.FaceGroup = append(mhNode.FaceGroup, tg)

		if part.Material == nil && ps.Material != nil {
			part.Material = g.transMaterial(*ps.Material)
		}
	}
	if part.Material == nil {
		part.Material = NewMaterial()
	}
	g.model.Parts = append(g.model.Parts, part)
	return nil
}

func (g *GltfDecoder) accessor(i uint32) *gltf.Accessor {
	if int(i) >= len(g.doc.Accessors) {
		return nil
	}
	return g.doc.Accessors[i]
}

func transformNormal(mat *dmat.T, n *[3]float32) vec3.T {
	x, y, z := float64(n[0]), float64(n[1]), float64(n[2])
	v := vec3.T{
		float32(mat[0][0]*x + mat[1][0]*y + mat[2][0]*z),
		float32(mat[0][1]*x + mat[1][1]*y + mat[2][1]*z),
		float32(mat[0][2]*x + mat[1][2]*y + mat[2][2]*z),
	}
	if l := v.Length(); l > 0 {
		return vec3.T{v[0] / l, v[1] / l, v[2] / l}
	}
	return v
}

func componentSize(ct gltf.ComponentType) int {
	switch ct {
	case gltf.ComponentByte, gltf.ComponentUbyte:
		return 1
	case gltf.ComponentShort, gltf.ComponentUshort:
		return 2
	}
	return 4
}

func componentCount(t gltf.AccessorType) int {
	switch t {
	case gltf.AccessorScalar:
		return 1
	case gltf.AccessorVec2:
		return 2
	case gltf.AccessorVec3:
		return 3
	case gltf.AccessorVec4:
		return 4
	}
	return 0
}

// readDataByAccessor calls procces once per element of acc. The value passed
// is a pointer to an array (or scalar) of the accessor's component type and
// is reused between calls.
func readDataByAccessor(doc *gltf.Document, acc *gltf.Accessor, procces func(interface{})) error {
	if acc == nil {
		return errors.New("accessor out of range")
	}
	if acc.BufferView == nil {
		return errors.New("sparse or empty accessor")
	}
	if int(*acc.BufferView) >= len(doc.BufferViews) {
		return errors.New("buffer view out of range")
	}
	bv := doc.BufferViews[*acc.BufferView]
	if int(bv.Buffer) >= len(doc.Buffers) {
		return errors.New("buffer out of range")
	}
	buffer := doc.Buffers[bv.Buffer]

	var fcs interface{}
	switch acc.Type {
	case gltf.AccessorVec2:
		switch acc.ComponentType {
		case gltf.ComponentUshort:
			fcs = &[2]uint16{}
		case gltf.ComponentUint:
			fcs = &[2]uint32{}
		case gltf.ComponentFloat:
			fcs = &[2]float32{}
		}
	case gltf.AccessorVec3:
		switch acc.ComponentType {
		case gltf.ComponentUshort:
			fcs = &[3]uint16{}
		case gltf.ComponentUint:
			fcs = &[3]uint32{}
		case gltf.ComponentFloat:
			fcs = &[3]float32{}
		}
	case gltf.AccessorVec4:
		switch acc.ComponentType {
		case gltf.ComponentUshort:
			fcs = &[4]uint16{}
		case gltf.ComponentUint:
			fcs = &[4]uint32{}
		case gltf.ComponentFloat:
			fcs = &[4]float32{}
		}
	case gltf.AccessorScalar:
		switch acc.ComponentType {
		case gltf.ComponentUbyte:
			fcs = new(uint8)
		case gltf.ComponentUshort:
			fcs = new(uint16)
		case gltf.ComponentUint:
			fcs = new(uint32)
		case gltf.ComponentFloat:
			fcs = new(float32)
		}
	default:
		return errors.New("acc have no type")
	}
	if fcs == nil {
		return errors.Errorf("unsupported accessor component type %v", acc.ComponentType)
	}

	elem := componentSize(acc.ComponentType) * componentCount(acc.Type)
	stride := int(bv.ByteStride)
	if stride == 0 {
		stride = elem
	}
	start := int(bv.ByteOffset + acc.ByteOffset)
	end := int(bv.ByteOffset + bv.ByteLength)
	if acc.Count > 0 && (start+stride*(int(acc.Count)-1)+elem > end || end > len(buffer.Data)) {
		return errors.New("accessor exceeds buffer")
	}
	for i := 0; i < int(acc.Count); i++ {
		off := start + i*stride
		if err := binary.Read(bytes.NewReader(buffer.Data[off:off+elem]), binary.LittleEndian, fcs); err != nil {
			return err
		}
		procces(fcs)
	}
	return nil
}

func (g *GltfDecoder) transMaterial(id uint32) *Material {
	mtl := NewMaterial()
	if int(id) >= len(g.doc.Materials) {
		return mtl
	}
	mt := g.doc.Materials[id]
	if ef := mt.EmissiveFactor; ef[0] != 0 || ef[1] != 0 || ef[2] != 0 {
		mtl.Emissive.R = unitByte(float64(mt.EmissiveFactor[0]))
		mtl.Emissive.G = unitByte(float64(mt.EmissiveFactor[1]))
		mtl.Emissive.B = unitByte(float64(mt.EmissiveFactor[2]))
		mtl.Emissive.A = 255
	}
	if pbr := mt.PBRMetallicRoughness; pbr != nil {
		if pbr.BaseColorFactor != nil {
			mtl.Color.R = unitByte(float64(pbr.BaseColorFactor[0]))
			mtl.Color.G = unitByte(float64(pbr.BaseColorFactor[1]))
			mtl.Color.B = unitByte(float64(pbr.BaseColorFactor[2]))
			mtl.Color.A = unitByte(float64(pbr.BaseColorFactor[3]))
		}
		mtl.Metalness = 1
		if pbr.MetallicFactor != nil {
			mtl.Metalness = float32(*pbr.MetallicFactor)
		}
		if pbr.RoughnessFactor != nil {
			mtl.Roughness = float32(*pbr.RoughnessFactor)
		}
		if pbr.BaseColorTexture != nil {
			mtl.Map = g.texture(pbr.BaseColorTexture.Index, SRGBColorSpace)
		}
	}
	if mt.NormalTexture != nil && mt.NormalTexture.Index != nil {
		mtl.NormalMap = g.texture(*mt.NormalTexture.Index, NoColorSpace)
	}
	return mtl
}

// texture decodes the source image of a texture from a buffer view, a data
// uri or an external file. Images that cannot be read leave the map unset.
func (g *GltfDecoder) texture(texIdx uint32, cs ColorSpace) *Texture {
	if int(texIdx) >= len(g.doc.Textures) || g.doc.Textures[texIdx].Source == nil {
		return nil
	}
	src := *g.doc.Textures[texIdx].Source
	if tex, ok := g.images[src]; ok {
		return tex
	}
	if int(src) >= len(g.doc.Images) {
		return nil
	}
	img := g.doc.Images[src]
	bt, err := g.imageData(img)
	if err != nil || len(bt) == 0 {
		return nil
	}
	name := img.Name
	if name == "" {
		name = img.MimeType
	}
	if name == "" {
		name = img.URI
	}
	tex, err := DecodeTexture(name, bt, TextureOptions{ColorSpace: cs})
	if err != nil {
		return nil
	}
	g.images[src] = tex
	return tex
}

func (g *GltfDecoder) imageData(img *gltf.Image) ([]byte, error) {
	switch {
	case img.BufferView != nil:
		if int(*img.BufferView) >= len(g.doc.BufferViews) {
			return nil, errors.New("image buffer view out of range")
		}
		view := g.doc.BufferViews[*img.BufferView]
		if int(view.Buffer) >= len(g.doc.Buffers) {
			return nil, errors.New("image buffer out of range")
		}
		buffer := g.doc.Buffers[view.Buffer]
		if int(view.ByteOffset+view.ByteLength) > len(buffer.Data) {
			return nil, errors.New("image exceeds buffer")
		}
		return buffer.Data[view.ByteOffset : view.ByteOffset+view.ByteLength], nil
	case img.IsEmbeddedResource():
		return img.MarshalData()
	case img.URI != "" && g.resources != nil:
		return g.resources(img.URI)
	}
	return nil, nil
}

func unitByte(v float64) byte {
	return byte(math.Round(math.Max(0, math.Min(1, v)) * 255))
}

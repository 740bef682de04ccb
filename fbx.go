package showcase

import (
	"bytes"
	"fmt"

	mst "github.com/flywave/go-mst"
	dmat "github.com/flywave/go3d/float64/mat4"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	fbx "github.com/flywave/ofbx"
	"github.com/pkg/errors"
)

// FbxDecoder decodes binary FBX files. Every material batch of a mesh
// becomes a Part; a mesh with a single material keeps the mesh name.
// Texture files referenced by the FBX are ignored, the scene configuration
// binds textures.
type FbxDecoder struct {
	seen  map[string]int
	model *Model
}

func (d *FbxDecoder) Decode(name string, data []byte) (model *Model, err error) {
	defer func() {
		// the reader indexes into the file without bounds checks
		if r := recover(); r != nil {
			model, err = nil, errors.Errorf("decode %s: malformed fbx: %v", name, r)
		}
	}()
	scene, err := fbx.Load(bytes.NewReader(data))
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}
	d.seen = make(map[string]int)
	d.model = &Model{Name: name}
	for _, mh := range scene.Meshes {
		d.mesh(mh)
	}
	return d.model, nil
}

func (d *FbxDecoder) mesh(mh *fbx.Mesh) {
	g := mh.Geometry
	pos := func(i int) [3]float64 {
		if i < 0 || i >= len(g.Vertices) {
			i = 0
		}
		p := g.Vertices[i]
		return [3]float64{p[0], p[1], p[2]}
	}
	mtx := fbx.GetGlobalMatrix(mh)
	matrix := dmat.FromArray(mtx.ToArray())

	batches := g.Materials
	if len(batches) == 0 {
		batches = make([]int, len(g.Faces))
	}
	distinct := make(map[int]bool)
	for _, b := range batches {
		distinct[b] = true
	}

	parts := make(map[int]*Part)
	var order []int
	for i, face := range g.Faces {
		if i >= len(batches) {
			break
		}
		batch := batches[i]
		part, ok := parts[batch]
		if !ok {
			name := mh.Name()
			if len(distinct) > 1 {
				name = fmt.Sprintf("%s.%d", name, batch)
			}
			var mt *fbx.Material
			if batch >= 0 && batch < len(mh.Materials) {
				mt = mh.Materials[batch]
			}
			part = &Part{
				Name:     uniqueName(d.seen, name, len(d.model.Parts)+len(order)),
				Mesh:     &mst.MeshNode{FaceGroup: []*mst.MeshTriangle{{Batchid: 0}}},
				Material: fbxMaterial(mt),
				Bounds:   dvec3.MinBox,
			}
			parts[batch] = part
			order = append(order, batch)
		}
		for _, tri := range fbxTriangles(face, len(g.Vertices), pos) {
			base := uint32(len(part.Mesh.Vertices))
			for _, vi := range tri {
				p := pos(vi)
				wv := matrix.MulVec3(&dvec3.T{p[0], p[1], p[2]})
				v := vec3.T{float32(wv[0]), float32(wv[1]), float32(wv[2])}
				part.Mesh.Vertices = append(part.Mesh.Vertices, v)
				if vi >= 0 && len(g.UVs[0]) > vi {
					uv := g.UVs[0][vi]
					part.Mesh.TexCoords = append(part.Mesh.TexCoords, vec2.T{float32(uv[0]), float32(uv[1])})
				}
				addPoint(&part.Bounds, v)
			}
			fg := part.Mesh.FaceGroup[0]
			fg.Faces = append(fg.Faces, &mst.Face{Vertex: [3]uint32{base, base + 1, base + 2}})
		}
	}
	for _, b := range order {
		p := parts[b]
		if len(p.Mesh.TexCoords) != len(p.Mesh.Vertices) {
			p.Mesh.TexCoords = nil
		}
		p.Mesh.ReComputeNormal()
		p.Index = len(d.model.Parts)
		d.model.Parts = append(d.model.Parts, p)
	}
}

// fbxTriangles splits a polygon: quads along the shorter diagonal, larger
// polygons as a fan.
func fbxTriangles(face []int, n int, pos func(int) [3]float64) [][3]int {
	switch {
	case len(face) < 3:
		return nil
	case len(face) == 3:
		return [][3]int{{face[0], face[1], face[2]}}
	case len(face) == 4 && inRange(face, n):
		a, b, c, e := pos(face[0]), pos(face[1]), pos(face[2]), pos(face[3])
		if dist2(a, c) <= dist2(b, e) {
			return [][3]int{{face[0], face[1], face[2]}, {face[0], face[2], face[3]}}
		}
		return [][3]int{{face[0], face[1], face[3]}, {face[1], face[2], face[3]}}
	}
	out := make([][3]int, 0, len(face)-2)
	for i := 1; i+1 < len(face); i++ {
		out = append(out, [3]int{face[0], face[i], face[i+1]})
	}
	return out
}

func inRange(idx []int, n int) bool {
	for _, i := range idx {
		if i < 0 || i >= n {
			return false
		}
	}
	return true
}

func dist2(a, b [3]float64) float64 {
	dx, dy, dz := a[0]-b[0], a[1]-b[1], a[2]-b[2]
	return dx*dx + dy*dy + dz*dz
}

func fbxMaterial(mt *fbx.Material) *Material {
	m := NewMaterial()
	if mt == nil {
		return m
	}
	m.Color.R = unitByte(float64(mt.DiffuseColor.R))
	m.Color.G = unitByte(float64(mt.DiffuseColor.G))
	m.Color.B = unitByte(float64(mt.DiffuseColor.B))
	m.Emissive.R = unitByte(float64(mt.EmissiveColor.R))
	m.Emissive.G = unitByte(float64(mt.EmissiveColor.G))
	m.Emissive.B = unitByte(float64(mt.EmissiveColor.B))
	m.Emissive.A = 255
	return m
}

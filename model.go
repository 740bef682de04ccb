package showcase

import (
	"fmt"

	mst "github.com/flywave/go-mst"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/pkg/errors"
)

// Part is one addressable sub-mesh of a model: a material slot.
type Part struct {
	Name     string
	Index    int
	Mesh     *mst.MeshNode
	Material *Material
	Bounds   dvec3.Box
}

func (p *Part) Triangles() int {
	n := 0
	for _, fg := range p.Mesh.FaceGroup {
		n += len(fg.Faces)
	}
	return n
}

func newPart(name string, idx int, mtl *Material) *Part {
	if mtl == nil {
		mtl = NewMaterial()
	}
	return &Part{
		Name:     name,
		Index:    idx,
		Mesh:     &mst.MeshNode{FaceGroup: []*mst.MeshTriangle{{Batchid: 0}}},
		Material: mtl,
		Bounds:   dvec3.MinBox,
	}
}

// addTriangle appends an unindexed triangle. A nil normals gets the flat
// face normal.
func (p *Part) addTriangle(pos [3]vec3.T, uv [3]vec2.T, normals *[3]vec3.T) {
	if normals == nil {
		n := calculateNormal(pos[0], pos[1], pos[2])
		normals = &[3]vec3.T{n, n, n}
	}
	mh := p.Mesh
	base := uint32(len(mh.Vertices))
	for i := 0; i < 3; i++ {
		mh.Vertices = append(mh.Vertices, pos[i])
		mh.TexCoords = append(mh.TexCoords, uv[i])
		mh.Normals = append(mh.Normals, normals[i])
		addPoint(&p.Bounds, pos[i])
	}
	fg := mh.FaceGroup[0]
	fg.Faces = append(fg.Faces, &mst.Face{Vertex: [3]uint32{base, base + 1, base + 2}})
}

// Model is a decoded model file. Parts keep file order so both named and
// positional lookups are stable for a given file.
type Model struct {
	Name     string
	Parts    []*Part
	Position vec3.T
}

var ErrNoPart = errors.New("no such part")

// Part looks a part up by name.
func (m *Model) Part(name string) (*Part, bool) {
	for _, p := range m.Parts {
		if p.Name == name {
			return p, true
		}
	}
	return nil, false
}

// PartAt returns the part at a file position, bounds checked.
func (m *Model) PartAt(i int) (*Part, error) {
	if i < 0 || i >= len(m.Parts) {
		return nil, errors.Wrapf(ErrNoPart, "index %d out of range [0,%d)", i, len(m.Parts))
	}
	return m.Parts[i], nil
}

func (m *Model) Names() []string {
	out := make([]string, len(m.Parts))
	for i, p := range m.Parts {
		out[i] = p.Name
	}
	return out
}

func (m *Model) Bounds() dvec3.Box {
	bbx := dvec3.MinBox
	for _, p := range m.Parts {
		bbx.Join(&p.Bounds)
	}
	return bbx
}

func (m *Model) Triangles() int {
	n := 0
	for _, p := range m.Parts {
		n += p.Triangles()
	}
	return n
}

// uniqueName keeps part names distinct so name lookup is unambiguous.
func uniqueName(seen map[string]int, name string, idx int) string {
	if name == "" {
		name = fmt.Sprintf("part%d", idx)
	}
	n := seen[name]
	seen[name] = n + 1
	if n == 0 {
		return name
	}
	return fmt.Sprintf("%s.%03d", name, n)
}

func addPoint(bx *dvec3.Box, v vec3.T) {
	bx.Extend(&dvec3.T{float64(v[0]), float64(v[1]), float64(v[2])})
}

func calculateNormal(v0, v1, v2 vec3.T) vec3.T {
	e1 := vec3.Sub(&v1, &v0)
	e2 := vec3.Sub(&v2, &v0)
	normal := vec3.Cross(&e1, &e2)

	length := normal.Length()
	if length > 0 {
		return vec3.T{normal[0] / length, normal[1] / length, normal[2] / length}
	}
	return vec3.T{0, 1, 0}
}

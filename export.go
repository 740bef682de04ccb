package showcase

import (
	"io"

	mst "github.com/flywave/go-mst"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec3"
	"github.com/pkg/errors"
	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
)

// errWriter keeps the first write error.
type errWriter struct {
	w   io.Writer
	n   int64
	err error
}

func (e *errWriter) Write(p []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	n, err := e.w.Write(p)
	e.n += int64(n)
	e.err = err
	return n, err
}

type placed struct {
	path     string
	mesh     *mst.MeshNode
	material *Material
	offset   vec3.T
}

func collect(s *Scene) []placed {
	var out []placed
	s.Walk(func(path string, o *Object, world vec3.T) bool {
		if o.Mesh != nil && len(o.Mesh.Vertices) > 0 {
			m := o.Material
			if m == nil {
				m = NewMaterial()
			}
			out = append(out, placed{path: path, mesh: o.Mesh, material: m.Clone(), offset: world})
		}
		return true
	})
	return out
}

func translated(n *mst.MeshNode, off vec3.T, batch int32) *mst.MeshNode {
	out := &mst.MeshNode{
		Vertices:  make([]vec3.T, len(n.Vertices)),
		Normals:   append([]vec3.T(nil), n.Normals...),
		TexCoords: append(n.TexCoords[:0:0], n.TexCoords...),
	}
	for i, v := range n.Vertices {
		out.Vertices[i] = vec3.Add(&v, &off)
	}
	for _, fg := range n.FaceGroup {
		out.FaceGroup = append(out.FaceGroup, &mst.MeshTriangle{Batchid: batch, Faces: fg.Faces})
	}
	return out
}

// ExportMst writes every mesh of the scene, moved to its world position, as
// one node of an mst mesh. Textures shared between materials are stored
// once. It returns the scene bounds.
func ExportMst(s *Scene, w io.Writer) (*[6]float64, error) {
	mesh := mst.NewMesh()
	texIDs := make(map[*Texture]*mst.Texture)
	texID := func(t *Texture) *mst.Texture {
		if tex, ok := texIDs[t]; ok {
			return tex
		}
		if t.Image == nil {
			return nil
		}
		tex := t.ToMst(int32(len(texIDs)))
		texIDs[t] = tex
		return tex
	}

	bbx := dvec3.MinBox
	for _, p := range collect(s) {
		batch := int32(len(mesh.Materials))
		mesh.Materials = append(mesh.Materials, p.material.ToMst(texID))
		nd := translated(p.mesh, p.offset, batch)
		for _, v := range nd.Vertices {
			addPoint(&bbx, v)
		}
		mesh.Nodes = append(mesh.Nodes, nd)
	}
	if len(mesh.Nodes) == 0 {
		return nil, errors.New("export mst: scene has no meshes")
	}

	ew := &errWriter{w: w}
	mst.MeshMarshal(ew, mesh)
	if ew.err != nil {
		return nil, errors.Wrap(ew.err, "export mst")
	}
	ext := bbx.Array()
	return ext, nil
}

// ExportGLB writes the scene as binary glTF: one node, mesh and material
// per scene object, named by its scene path.
func ExportGLB(s *Scene, w io.Writer) error {
	doc := gltf.NewDocument()
	doc.Asset.Generator = "go-showcase"

	items := collect(s)
	if len(items) == 0 {
		return errors.New("export glb: scene has no meshes")
	}
	for _, p := range items {
		positions := make([][3]float32, len(p.mesh.Vertices))
		for i, v := range p.mesh.Vertices {
			positions[i] = vec3.Add(&v, &p.offset)
		}
		var indices []uint32
		for _, fg := range p.mesh.FaceGroup {
			for _, f := range fg.Faces {
				indices = append(indices, f.Vertex[0], f.Vertex[1], f.Vertex[2])
			}
		}

		attrs := map[string]uint32{
			gltf.POSITION: uint32(modeler.WritePosition(doc, positions)),
		}
		if len(p.mesh.Normals) == len(positions) {
			normals := make([][3]float32, len(p.mesh.Normals))
			for i, n := range p.mesh.Normals {
				normals[i] = n
			}
			attrs[gltf.NORMAL] = uint32(modeler.WriteNormal(doc, normals))
		}
		if len(p.mesh.TexCoords) == len(positions) {
			uvs := make([][2]float32, len(p.mesh.TexCoords))
			for i, t := range p.mesh.TexCoords {
				uvs[i] = t
			}
			attrs[gltf.TEXCOORD_0] = uint32(modeler.WriteTextureCoord(doc, uvs))
		}

		doc.Materials = append(doc.Materials, glbMaterial(p.path, p.material))
		prim := &gltf.Primitive{
			Attributes: attrs,
			Indices:    gltf.Index(uint32(modeler.WriteIndices(doc, indices))),
			Material:   gltf.Index(uint32(len(doc.Materials) - 1)),
		}
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{Name: p.path, Primitives: []*gltf.Primitive{prim}})
		doc.Nodes = append(doc.Nodes, &gltf.Node{Name: p.path, Mesh: gltf.Index(uint32(len(doc.Meshes) - 1))})
		doc.Scenes[0].Nodes = append(doc.Scenes[0].Nodes, uint32(len(doc.Nodes)-1))
	}

	enc := gltf.NewEncoder(w)
	enc.AsBinary = true
	return errors.Wrap(enc.Encode(doc), "export glb")
}

func glbMaterial(name string, m *Material) *gltf.Material {
	unit := func(b uint8) float32 { return float32(b) / 255 }
	out := &gltf.Material{
		Name: name,
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{
			BaseColorFactor: &[4]float32{unit(m.Color.R), unit(m.Color.G), unit(m.Color.B), unit(m.Color.A)},
			MetallicFactor:  gltf.Float(m.Metalness),
			RoughnessFactor: gltf.Float(m.Roughness),
		},
		AlphaMode: gltf.AlphaOpaque,
	}
	if m.IsTransparent() {
		out.AlphaMode = gltf.AlphaBlend
	}
	return out
}

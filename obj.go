package showcase

import (
	"bytes"
	"image/color"
	"math"
	"os"

	gobj "github.com/flywave/go-obj"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/pkg/errors"
)

// ObjDecoder decodes Wavefront OBJ files. Each usemtl group becomes a Part
// named after its material, in order of first use. Materials come from the
// mtllib library when one is referenced and readable.
type ObjDecoder struct {
	resources ResourceFunc
}

func (d *ObjDecoder) SetResources(fn ResourceFunc) { d.resources = fn }

func (d *ObjDecoder) Decode(name string, data []byte) (*Model, error) {
	reader := &gobj.ObjReader{}
	reader.SetOptions(gobj.ReadOptions{DiscardDegeneratedFaces: true})
	if err := reader.Read(bytes.NewReader(data)); err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}
	library, err := d.materials(reader.MTL)
	if err != nil {
		return nil, errors.Wrapf(err, "decode %s", name)
	}

	model := &Model{Name: name}
	groups := make(map[string]*Part)
	seen := make(map[string]int)

	for i := range reader.F {
		face := &reader.F[i]
		materialName := face.Material
		if materialName == "" {
			materialName = "default"
		}
		part, ok := groups[materialName]
		if !ok {
			mtl := NewMaterial()
			if m, ok := library[face.Material]; ok {
				mtl = objMaterial(m)
			}
			part = newPart(uniqueName(seen, materialName, len(model.Parts)), len(model.Parts), mtl)
			groups[materialName] = part
			model.Parts = append(model.Parts, part)
		}
		if len(face.Corners) < 3 {
			continue
		}
		// Fan out the polygon, it is assumed convex.
		corners := make([]objCorner, len(face.Corners))
		for k, c := range face.Corners {
			corners[k] = objCorner{v: c.VertexIndex, t: c.TexcoordIndex, n: c.NormalIndex}
		}
		for k := 1; k+1 < len(corners); k++ {
			processTriangle(part, [3]objCorner{corners[0], corners[k], corners[k+1]}, &reader.ObjBuffer)
		}
	}
	return model, nil
}

// materials reads the referenced material library. A library that cannot
// be fetched leaves the default materials, a malformed one is an error.
func (d *ObjDecoder) materials(lib string) (map[string]*gobj.Material, error) {
	if lib == "" || d.resources == nil {
		return nil, nil
	}
	data, err := d.resources(lib)
	if err != nil {
		return nil, nil
	}
	// go-obj only reads material libraries from disk.
	f, err := os.CreateTemp("", "showcase-*.mtl")
	if err != nil {
		return nil, errors.Wrap(err, "stage material library")
	}
	defer os.Remove(f.Name())
	_, err = f.Write(data)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		return nil, errors.Wrap(err, "stage material library")
	}
	mtls, err := gobj.ReadMaterials(f.Name())
	if err != nil {
		return nil, errors.Wrapf(err, "material library %s", lib)
	}
	return mtls, nil
}

func objMaterial(m *gobj.Material) *Material {
	mtl := NewMaterial()
	if len(m.Diffuse) >= 3 {
		mtl.Color = color.RGBA{unitByte(float64(m.Diffuse[0])), unitByte(float64(m.Diffuse[1])), unitByte(float64(m.Diffuse[2])), 255}
	}
	if m.Opacity < 1 {
		mtl.Color.A = unitByte(m.Opacity)
	}
	switch {
	case m.Roughness > 0:
		mtl.Roughness = m.Roughness
	case m.Shininess > 0:
		mtl.Roughness = float32(math.Sqrt(2 / (m.Shininess + 2)))
	}
	mtl.Metalness = m.Metallic
	return mtl
}

// objCorner holds the zero based vertex, texcoord and normal indices of a
// face corner, negative when absent.
type objCorner struct {
	v, t, n int
}

func processTriangle(part *Part, triangle [3]objCorner, buf *gobj.ObjBuffer) {
	var positions [3]vec3.T
	var texCoords [3]vec2.T
	var normals [3]vec3.T
	hasNormals := true

	for i, corner := range triangle {
		if corner.v >= 0 && corner.v < len(buf.V) {
			positions[i] = buf.V[corner.v]
		}
		if corner.t >= 0 && corner.t < len(buf.VT) {
			texCoords[i] = buf.VT[corner.t]
		}
		if corner.n >= 0 && corner.n < len(buf.VN) {
			normals[i] = buf.VN[corner.n]
		} else {
			hasNormals = false
		}
	}
	if hasNormals {
		part.addTriangle(positions, texCoords, &normals)
	} else {
		part.addTriangle(positions, texCoords, nil)
	}
}

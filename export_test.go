package showcase

import (
	"bytes"
	"image"
	"image/color"
	"testing"

	"github.com/flywave/go3d/vec3"
	"github.com/qmuntal/gltf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func exportScene(t *testing.T) *Scene {
	t.Helper()
	s := newTestScene()
	glass := NewMaterial()
	glass.Transmission = 1
	glass.Roughness = 0.25
	glass.Metalness = 0
	label := NewMaterial()
	label.Map = &Texture{Name: "label", Image: image.NewRGBA(image.Rect(0, 0, 2, 2))}
	label.NormalMap = label.Map

	s.Replace("", &Object{Name: "model", Position: vec3.T{0, -0.06, 0}})
	require.NoError(t, s.Add("model", &Object{Name: "Glass", Mesh: triangleMesh(), Material: glass}))
	require.NoError(t, s.Add("model", &Object{Name: "Label", Mesh: triangleMesh(), Material: label}))
	require.NoError(t, s.Add(EngravingGroup, &Object{Name: "line1", Mesh: triangleMesh(), Position: vec3.T{0, 0.012, 0.021}}))
	return s
}

func TestExportGLB(t *testing.T) {
	s := exportScene(t)
	var buf bytes.Buffer
	require.NoError(t, ExportGLB(s, &buf))

	doc := new(gltf.Document)
	require.NoError(t, gltf.NewDecoder(bytes.NewReader(buf.Bytes())).Decode(doc))
	require.Len(t, doc.Nodes, 3)
	assert.Equal(t, "model/Glass", doc.Nodes[0].Name)
	assert.Equal(t, "engraving/line1", doc.Nodes[2].Name)
	require.Len(t, doc.Materials, 3)
	assert.Equal(t, gltf.AlphaBlend, doc.Materials[0].AlphaMode)
	assert.Equal(t, gltf.AlphaOpaque, doc.Materials[1].AlphaMode)
	pbr := doc.Materials[0].PBRMetallicRoughness
	require.NotNil(t, pbr)
	require.NotNil(t, pbr.RoughnessFactor)
	require.NotNil(t, pbr.MetallicFactor)
	assert.InDelta(t, 0.25, *pbr.RoughnessFactor, 1e-6)
	assert.Zero(t, *pbr.MetallicFactor)

	// Round trip through the model decoder, world positions baked in.
	m, err := (&GltfDecoder{}).DecodeDoc("scene.glb", doc)
	require.NoError(t, err)
	require.Len(t, m.Parts, 3)
	line, ok := m.Part("engraving/line1")
	require.True(t, ok)
	assert.InDelta(t, 0.012, line.Bounds.Min[1], 1e-6)
	assert.InDelta(t, 0.021, line.Bounds.Min[2], 1e-6)
	glassPart, ok := m.Part("model/Glass")
	require.True(t, ok)
	assert.InDelta(t, -0.06, glassPart.Bounds.Min[1], 1e-6)
}

func TestExportMst(t *testing.T) {
	s := exportScene(t)
	var buf bytes.Buffer
	bbx, err := ExportMst(s, &buf)
	require.NoError(t, err)
	assert.NotZero(t, buf.Len())
	require.NotNil(t, bbx)
	assert.InDelta(t, -0.06, bbx[1], 1e-6)
	assert.InDelta(t, 0.021, bbx[5], 1e-6)
}

func TestExportEmptyScene(t *testing.T) {
	s := NewScene(color.RGBA{}, Camera{})
	_, err := ExportMst(s, &bytes.Buffer{})
	assert.Error(t, err)
	assert.Error(t, ExportGLB(s, &bytes.Buffer{}))
}

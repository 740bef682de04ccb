package showcase

import (
	"context"
	"image/color"
	"testing"
	"testing/fstest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecoderFactory(t *testing.T) {
	assert.IsType(t, &GltfDecoder{}, DecoderFactory(".GLB"))
	assert.IsType(t, &GltfDecoder{}, DecoderFactory("gltf"))
	assert.IsType(t, &ObjDecoder{}, DecoderFactory("obj"))
	assert.IsType(t, &FbxDecoder{}, DecoderFactory(".fbx"))
	assert.IsType(t, &DaeDecoder{}, DecoderFactory("DAE"))
	assert.Nil(t, DecoderFactory("usdz"))
}

func TestObjDecoderGroupsByMaterial(t *testing.T) {
	src := `v 0 0 0
v 1 0 0
v 1 1 0
v 0 1 0
usemtl Glass
f 1 2 3 4
usemtl Cap
f 1 2 3
`
	m, err := DecoderFactory("obj").Decode("bottle.obj", []byte(src))
	require.NoError(t, err)
	require.Len(t, m.Parts, 2)
	assert.Equal(t, []string{"Glass", "Cap"}, m.Names())
	assert.Equal(t, 2, m.Parts[0].Triangles())
	assert.Equal(t, 1, m.Parts[1].Triangles())
	assert.Len(t, m.Parts[0].Mesh.Normals, 6)
}

func TestGltfDecoderRejectsGarbage(t *testing.T) {
	_, err := DecoderFactory("glb").Decode("broken.glb", []byte("glTF but not really"))
	assert.Error(t, err)
}

func TestFbxDecoderRejectsGarbage(t *testing.T) {
	_, err := DecoderFactory("fbx").Decode("broken.fbx", []byte("Kaydara? no"))
	assert.Error(t, err)
}

func TestFbxTriangles(t *testing.T) {
	square := [][3]float64{{0, 0, 0}, {1, 0, 0}, {1, 1, 0}, {0, 1, 0}, {0.5, 2, 0}}
	pos := func(i int) [3]float64 { return square[i] }

	assert.Len(t, fbxTriangles([]int{0, 1, 2}, 5, pos), 1)
	assert.Len(t, fbxTriangles([]int{0, 1, 2, 3}, 5, pos), 2)
	assert.Len(t, fbxTriangles([]int{0, 1, 2, 4, 3}, 5, pos), 3)
	assert.Empty(t, fbxTriangles([]int{0, 1}, 5, pos))
}

func TestGltfExternalResourcesUseFetcher(t *testing.T) {
	files := fstest.MapFS{}
	testGLTFExternal(t, files, "models/")
	require.Contains(t, files, "models/tri.bin")

	var model *Model
	p := NewPipeline(&DirFetcher{FS: files})
	p.Add(Request{URL: "/models/bottle.gltf", Kind: KindModel, OnLoad: func(a *Asset) error {
		model = a.Model
		return nil
	}})
	require.NoError(t, p.Run(context.Background()))
	require.NotNil(t, model)
	require.Len(t, model.Parts, 1)

	part := model.Parts[0]
	assert.Equal(t, "LabelFront", part.Name)
	assert.Equal(t, 1, part.Triangles())
	assert.InDelta(t, 1, part.Bounds.Max[0], 1e-6)
	require.NotNil(t, part.Material.Map)
	w, h := part.Material.Map.Size()
	assert.Equal(t, 2, w)
	assert.Equal(t, 2, h)
}

func TestGltfExternalResourceMissing(t *testing.T) {
	files := fstest.MapFS{}
	testGLTFExternal(t, files, "")
	delete(files, "tri.bin")

	dec := &GltfDecoder{}
	dec.SetResources(FetchResources(context.Background(), &DirFetcher{FS: files}, "bottle.gltf"))
	_, err := dec.Decode("bottle.gltf", files["bottle.gltf"].Data)
	assert.Error(t, err)

	// Without a source, external buffers are refused instead of read from
	// the working directory.
	_, err = (&GltfDecoder{}).Decode("bottle.gltf", files["bottle.gltf"].Data)
	assert.ErrorContains(t, err, "no source")
}

func TestResolveURL(t *testing.T) {
	for _, tc := range []struct{ base, ref, want string }{
		{"bottle.gltf", "tri.bin", "tri.bin"},
		{"/models/bottle.gltf", "tri.bin", "/models/tri.bin"},
		{"/models/bottle.gltf?v=2", "tex/label%20front.png", "/models/tex/label front.png"},
		{"/models/bottle.gltf", "/shared/env.hdr", "/shared/env.hdr"},
		{"https://cdn.example.com/m/bottle.gltf", "tri.bin", "https://cdn.example.com/m/tri.bin"},
		{"/models/bottle.gltf", "https://cdn.example.com/tri.bin", "https://cdn.example.com/tri.bin"},
	} {
		assert.Equal(t, tc.want, ResolveURL(tc.base, tc.ref), tc.base+" + "+tc.ref)
	}
}

func TestObjDecoderReadsMaterialLibrary(t *testing.T) {
	files := fstest.MapFS{
		"models/bottle.obj": {Data: []byte(`mtllib bottle.mtl
v 0 0 0
v 1 0 0
v 1 1 0
usemtl Glass
f 1 2 3
usemtl Cap
f 1 2 3
usemtl Foil
f 1 2 3
`)},
		"models/bottle.mtl": {Data: []byte(`newmtl Glass
Kd 0.2 0.4 0.6
d 0.5
Pr 0.1
Pm 0.9
newmtl Cap
Kd 1 0 0
`)},
	}
	dec := &ObjDecoder{}
	dec.SetResources(FetchResources(context.Background(), &DirFetcher{FS: files}, "/models/bottle.obj"))
	m, err := dec.Decode("bottle.obj", files["models/bottle.obj"].Data)
	require.NoError(t, err)
	require.Equal(t, []string{"Glass", "Cap", "Foil"}, m.Names())

	glass := m.Parts[0].Material
	assert.Equal(t, color.RGBA{51, 102, 153, 128}, glass.Color)
	assert.InDelta(t, 0.1, glass.Roughness, 1e-6)
	assert.InDelta(t, 0.9, glass.Metalness, 1e-6)
	assert.Equal(t, "#ff0000", HexColor(m.Parts[1].Material.Color))
	// Not in the library.
	assert.Equal(t, NewMaterial().Color, m.Parts[2].Material.Color)

	// The usemtl names are what slots resolve against.
	slots, err := AssignSlots(m, []SlotSpec{{Name: "glass", Mesh: "Glass", Material: NewMaterial()}})
	require.NoError(t, err)
	assert.Len(t, slots, 1)

	// A library that cannot be fetched keeps the defaults.
	delete(files, "models/bottle.mtl")
	m, err = dec.Decode("bottle.obj", files["models/bottle.obj"].Data)
	require.NoError(t, err)
	assert.Equal(t, NewMaterial().Color, m.Parts[0].Material.Color)
}

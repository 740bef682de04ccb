package showcase

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"sync"
	"testing"
	"testing/fstest"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"
	"github.com/stretchr/testify/require"
)

var bottleParts = []string{"Cap", "CapTop", "LabelFront", "Logo", "Glass", "LabelBack", "Foil"}

// testGLB builds a binary glTF with one triangle mesh per name, all
// children of a single group node like an exported product file.
func testGLB(t *testing.T, names ...string) []byte {
	t.Helper()
	doc := gltf.NewDocument()
	root := &gltf.Node{Name: "Bottle"}
	doc.Nodes = append(doc.Nodes, root)
	for i, name := range names {
		x := float32(i)
		pos := modeler.WritePosition(doc, [][3]float32{{x, 0, 0}, {x + 1, 0, 0}, {x, 1, 0}})
		nrm := modeler.WriteNormal(doc, [][3]float32{{0, 0, 1}, {0, 0, 1}, {0, 0, 1}})
		ind := modeler.WriteIndices(doc, []uint32{0, 1, 2})
		doc.Meshes = append(doc.Meshes, &gltf.Mesh{
			Name: name + "Mesh",
			Primitives: []*gltf.Primitive{{
				Attributes: map[string]uint32{gltf.POSITION: uint32(pos), gltf.NORMAL: uint32(nrm)},
				Indices:    gltf.Index(uint32(ind)),
			}},
		})
		doc.Nodes = append(doc.Nodes, &gltf.Node{Name: name, Mesh: gltf.Index(uint32(len(doc.Meshes) - 1))})
		root.Children = append(root.Children, uint32(len(doc.Nodes)-1))
	}
	doc.Scenes[0].Nodes = []uint32{0}

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf)
	enc.AsBinary = true
	require.NoError(t, enc.Encode(doc))
	return buf.Bytes()
}

func testPNG(t *testing.T, w, h int, c color.Color) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func testHDR(t *testing.T) []byte {
	t.Helper()
	m := NewFloatImage(4, 2)
	for y := 0; y < 2; y++ {
		for x := 0; x < 4; x++ {
			m.SetRGB(x, y, float32(x)+0.5, float32(y)+0.25, 1)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, EncodeHDR(&buf, m))
	return buf.Bytes()
}

// mapWriter collects the external files of a text glTF into a MapFS.
type mapWriter struct {
	files fstest.MapFS
	dir   string
}

func (m mapWriter) WriteResource(uri string, data []byte) error {
	m.files[m.dir+uri] = &fstest.MapFile{Data: append([]byte(nil), data...)}
	return nil
}

// testGLTFExternal writes a text glTF under dir whose geometry lives in
// tri.bin and whose base color texture is label.png, both next to it.
func testGLTFExternal(t *testing.T, files fstest.MapFS, dir string) {
	t.Helper()
	doc := gltf.NewDocument()
	pos := modeler.WritePosition(doc, [][3]float32{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}})
	ind := modeler.WriteIndices(doc, []uint32{0, 1, 2})
	doc.Buffers[0].URI = "tri.bin"
	doc.Images = []*gltf.Image{{URI: "label.png"}}
	doc.Textures = []*gltf.Texture{{Source: gltf.Index(0)}}
	doc.Materials = []*gltf.Material{{
		Name:                 "Label",
		PBRMetallicRoughness: &gltf.PBRMetallicRoughness{BaseColorTexture: &gltf.TextureInfo{Index: 0}},
	}}
	doc.Meshes = []*gltf.Mesh{{Name: "LabelMesh", Primitives: []*gltf.Primitive{{
		Attributes: map[string]uint32{gltf.POSITION: pos},
		Indices:    gltf.Index(ind),
		Material:   gltf.Index(0),
	}}}}
	doc.Nodes = []*gltf.Node{{Name: "LabelFront", Mesh: gltf.Index(0)}}
	doc.Scenes[0].Nodes = []uint32{0}

	var buf bytes.Buffer
	enc := gltf.NewEncoder(&buf).WithWriteHandler(mapWriter{files: files, dir: dir})
	enc.AsBinary = false
	require.NoError(t, enc.Encode(doc))
	files[dir+"bottle.gltf"] = &fstest.MapFile{Data: buf.Bytes()}
	files[dir+"label.png"] = &fstest.MapFile{Data: testPNG(t, 2, 2, color.RGBA{200, 10, 10, 255})}
}

// countingFetcher serves a map and counts fetches per url.
type countingFetcher struct {
	fs Fetcher

	mu     sync.Mutex
	counts map[string]int
}

func newCountingFetcher(files fstest.MapFS) *countingFetcher {
	return &countingFetcher{fs: &DirFetcher{FS: files}, counts: make(map[string]int)}
}

func (c *countingFetcher) Fetch(ctx context.Context, u string) ([]byte, error) {
	c.mu.Lock()
	c.counts[u]++
	c.mu.Unlock()
	if scheme(u) == BuiltinScheme {
		return BuiltinFetcher{}.Fetch(ctx, u)
	}
	return c.fs.Fetch(ctx, u)
}

func (c *countingFetcher) count(u string) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.counts[u]
}

// bottleFiles is the asset tree of the default scene with tiny stand-ins.
func bottleFiles(t *testing.T) fstest.MapFS {
	t.Helper()
	files := fstest.MapFS{
		"CreedBottle_Optimized.glb": {Data: testGLB(t, bottleParts...)},
		"env.hdr":                   {Data: testHDR(t)},
	}
	for _, tc := range Default().Textures {
		name := tc.URL
		if name[0] == '/' {
			name = name[1:]
		}
		files[name] = &fstest.MapFile{Data: testPNG(t, 2, 2, color.RGBA{128, 128, 255, 255})}
	}
	return files
}

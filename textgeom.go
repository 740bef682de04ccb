package showcase

import (
	"math"
	"strings"

	mst "github.com/flywave/go-mst"
	dvec3 "github.com/flywave/go3d/float64/vec3"
	"github.com/flywave/go3d/vec2"
	"github.com/flywave/go3d/vec3"
	"github.com/pkg/errors"
)

type Align int

const (
	AlignLeft Align = iota
	AlignCenter
	AlignRight
)

func (a Align) String() string {
	switch a {
	case AlignCenter:
		return "center"
	case AlignRight:
		return "right"
	}
	return "left"
}

func ParseAlign(s string) (Align, error) {
	switch strings.ToLower(s) {
	case "", "left":
		return AlignLeft, nil
	case "center", "centre":
		return AlignCenter, nil
	case "right":
		return AlignRight, nil
	}
	return AlignLeft, errors.Errorf("unknown alignment %q", s)
}

// TextOptions shape extruded text. Size is the em size and Depth the
// extrusion along +Z, both in scene units.
type TextOptions struct {
	Size          float64
	Depth         float64
	CurveSegments int
	Align         Align
	LetterSpacing float64
}

// TextMesh is extruded text geometry with its extent.
type TextMesh struct {
	Mesh   *mst.MeshNode
	Bounds dvec3.Box
	Width  float64
}

func (t *TextMesh) Triangles() int {
	n := 0
	for _, fg := range t.Mesh.FaceGroup {
		n += len(fg.Faces)
	}
	return n
}

// TextGeometry lays text out on one line with f and extrudes the glyph
// outlines. Runes missing from the font advance by the .notdef width and
// produce no geometry.
func TextGeometry(f *Font, text string, opts TextOptions) (*TextMesh, error) {
	if f == nil {
		return nil, errors.New("text geometry: nil font")
	}
	if opts.Size <= 0 {
		return nil, errors.Errorf("text geometry: size %g must be positive", opts.Size)
	}
	steps := opts.CurveSegments
	if steps <= 0 {
		steps = DefaultCurveSegments
	}
	upem := float64(f.Upem())
	scale := opts.Size / upem
	spacing := opts.LetterSpacing / scale

	var (
		shapes []shape
		pen    float64
	)
	for _, r := range text {
		if r == '\n' || r == '\r' {
			r = ' '
		}
		gid, ok := f.Glyph(r)
		if ok {
			if segs, has := f.Outline(gid); has {
				shapes = append(shapes, groupContours(flattenOutline(segs, steps, 1, pen))...)
			}
		}
		pen += float64(f.Advance(gid)) + spacing
	}
	if len(text) > 0 {
		pen -= spacing
	}

	width := pen * scale
	var shift float64
	switch opts.Align {
	case AlignCenter:
		shift = -width / 2
	case AlignRight:
		shift = -width
	}

	b := &extruder{
		mesh:   &mst.MeshNode{FaceGroup: []*mst.MeshTriangle{{Batchid: 0}}},
		bounds: dvec3.MinBox,
		scale:  scale,
		shift:  shift,
		depth:  opts.Depth,
		width:  pen,
	}
	for _, s := range shapes {
		b.shape(s)
	}
	return &TextMesh{Mesh: b.mesh, Bounds: b.bounds, Width: width}, nil
}

type extruder struct {
	mesh   *mst.MeshNode
	bounds dvec3.Box
	scale  float64
	shift  float64
	depth  float64
	width  float64
}

func (e *extruder) vertex(x, y, z float64, n vec3.T, uv vec2.T) uint32 {
	v := vec3.T{float32(x*e.scale + e.shift), float32(y * e.scale), float32(z)}
	e.mesh.Vertices = append(e.mesh.Vertices, v)
	e.mesh.Normals = append(e.mesh.Normals, n)
	e.mesh.TexCoords = append(e.mesh.TexCoords, uv)
	addPoint(&e.bounds, v)
	return uint32(len(e.mesh.Vertices) - 1)
}

func (e *extruder) face(a, b, c uint32) {
	fg := e.mesh.FaceGroup[0]
	fg.Faces = append(fg.Faces, &mst.Face{Vertex: [3]uint32{a, b, c}})
}

func (e *extruder) capUV(x, y float64) vec2.T {
	if e.width == 0 {
		return vec2.T{}
	}
	return vec2.T{float32(x / e.width), float32(y / e.width)}
}

func (e *extruder) shape(s shape) {
	ring, tris := triangulate(s)
	if len(tris) == 0 {
		return
	}

	front := make([]uint32, len(ring))
	for i, p := range ring {
		front[i] = e.vertex(p[0], p[1], e.depth, vec3.T{0, 0, 1}, e.capUV(p[0], p[1]))
	}
	for _, t := range tris {
		e.face(front[t[0]], front[t[1]], front[t[2]])
	}
	if e.depth == 0 {
		return
	}

	back := make([]uint32, len(ring))
	for i, p := range ring {
		back[i] = e.vertex(p[0], p[1], 0, vec3.T{0, 0, -1}, e.capUV(p[0], p[1]))
	}
	for _, t := range tris {
		e.face(back[t[0]], back[t[2]], back[t[1]])
	}

	e.walls(s.outer)
	for _, h := range s.holes {
		e.walls(h)
	}
}

// walls extrudes every edge of c into a quad with a flat outward normal.
// Outer contours run counter-clockwise and holes clockwise, so the outward
// side is always to the right of the edge direction.
func (e *extruder) walls(c contour) {
	var along float64
	w := e.width
	if w == 0 {
		w = 1
	}
	for i := range c {
		a, b := c[i], c[(i+1)%len(c)]
		dx, dy := b[0]-a[0], b[1]-a[1]
		l := math.Hypot(dx, dy)
		if l == 0 {
			continue
		}
		n := vec3.T{float32(dy / l), float32(-dx / l), 0}
		u0 := float32(along / w)
		along += l
		u1 := float32(along / w)

		a0 := e.vertex(a[0], a[1], 0, n, vec2.T{u0, 0})
		b0 := e.vertex(b[0], b[1], 0, n, vec2.T{u1, 0})
		b1 := e.vertex(b[0], b[1], e.depth, n, vec2.T{u1, 1})
		a1 := e.vertex(a[0], a[1], e.depth, n, vec2.T{u0, 1})
		e.face(a0, b0, b1)
		e.face(a0, b1, a1)
	}
}

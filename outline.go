package showcase

import (
	dvec2 "github.com/flywave/go3d/float64/vec2"
	"github.com/go-text/typesetting/font/opentype"
)

// DefaultCurveSegments is the number of line segments a quadratic or cubic
// outline segment is flattened into.
const DefaultCurveSegments = 6

type contour []dvec2.T

// flattenOutline converts glyph segments into closed polylines, scaled from
// font units and shifted right by dx.
func flattenOutline(segs []opentype.Segment, steps int, scale, dx float64) []contour {
	if steps < 1 {
		steps = 1
	}
	pt := func(p opentype.SegmentPoint) dvec2.T {
		return dvec2.T{float64(p.X)*scale + dx, float64(p.Y) * scale}
	}

	var (
		out []contour
		cur contour
		pen dvec2.T
	)
	flush := func() {
		if c := closeContour(cur); c != nil {
			out = append(out, c)
		}
		cur = nil
	}
	for _, s := range segs {
		switch s.Op {
		case opentype.SegmentOpMoveTo:
			flush()
			pen = pt(s.Args[0])
			cur = append(cur, pen)
		case opentype.SegmentOpLineTo:
			pen = pt(s.Args[0])
			cur = append(cur, pen)
		case opentype.SegmentOpQuadTo:
			c, p := pt(s.Args[0]), pt(s.Args[1])
			for i := 1; i <= steps; i++ {
				t := float64(i) / float64(steps)
				u := 1 - t
				cur = append(cur, dvec2.T{
					u*u*pen[0] + 2*u*t*c[0] + t*t*p[0],
					u*u*pen[1] + 2*u*t*c[1] + t*t*p[1],
				})
			}
			pen = p
		case opentype.SegmentOpCubeTo:
			c1, c2, p := pt(s.Args[0]), pt(s.Args[1]), pt(s.Args[2])
			for i := 1; i <= steps; i++ {
				t := float64(i) / float64(steps)
				u := 1 - t
				cur = append(cur, dvec2.T{
					u*u*u*pen[0] + 3*u*u*t*c1[0] + 3*u*t*t*c2[0] + t*t*t*p[0],
					u*u*u*pen[1] + 3*u*u*t*c1[1] + 3*u*t*t*c2[1] + t*t*t*p[1],
				})
			}
			pen = p
		}
	}
	flush()
	return out
}

// closeContour drops repeated points, including the closing one, and
// rejects contours that enclose no area.
func closeContour(c contour) contour {
	const eps = 1e-12
	var out contour
	for _, p := range c {
		if n := len(out); n > 0 && samePoint(out[n-1], p, eps) {
			continue
		}
		out = append(out, p)
	}
	for len(out) > 1 && samePoint(out[0], out[len(out)-1], eps) {
		out = out[:len(out)-1]
	}
	if len(out) < 3 || abs(signedArea(out)) < eps {
		return nil
	}
	return out
}

func samePoint(a, b dvec2.T, eps float64) bool {
	return abs(a[0]-b[0]) <= eps && abs(a[1]-b[1]) <= eps
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

package showcase

import (
	"math"
	"sort"

	dvec2 "github.com/flywave/go3d/float64/vec2"
)

// shape is an outer contour, counter-clockwise, with its holes, clockwise.
type shape struct {
	outer contour
	holes []contour
}

func signedArea(c contour) float64 {
	a := 0.0
	for i := range c {
		j := (i + 1) % len(c)
		a += c[i][0]*c[j][1] - c[j][0]*c[i][1]
	}
	return a / 2
}

func reversed(c contour) contour {
	out := make(contour, len(c))
	for i, p := range c {
		out[len(c)-1-i] = p
	}
	return out
}

func orient(c contour, ccw bool) contour {
	if (signedArea(c) > 0) != ccw {
		return reversed(c)
	}
	return c
}

// insideContour is an even-odd ray cast.
func insideContour(p dvec2.T, c contour) bool {
	in := false
	for i, j := 0, len(c)-1; i < len(c); j, i = i, i+1 {
		a, b := c[i], c[j]
		if (a[1] > p[1]) != (b[1] > p[1]) &&
			p[0] < (b[0]-a[0])*(p[1]-a[1])/(b[1]-a[1])+a[0] {
			in = !in
		}
	}
	return in
}

// groupContours sorts contours into shapes by containment depth: a contour
// inside an even number of others is an outer boundary, inside an odd
// number it is a hole of its innermost container. Winding direction of the
// input is ignored, fonts disagree on it.
func groupContours(contours []contour) []shape {
	n := len(contours)
	areas := make([]float64, n)
	for i, c := range contours {
		areas[i] = abs(signedArea(c))
	}
	depth := make([]int, n)
	parent := make([]int, n)
	for i := range contours {
		parent[i] = -1
		for j := range contours {
			if i == j || areas[j] <= areas[i] {
				continue
			}
			if insideContour(contours[i][0], contours[j]) {
				depth[i]++
				if parent[i] < 0 || areas[j] < areas[parent[i]] {
					parent[i] = j
				}
			}
		}
	}

	shapes := make([]shape, 0, n)
	index := make(map[int]int)
	for i, c := range contours {
		if depth[i]%2 == 0 {
			index[i] = len(shapes)
			shapes = append(shapes, shape{outer: orient(c, true)})
		}
	}
	for i, c := range contours {
		if depth[i]%2 == 1 && parent[i] >= 0 {
			if s, ok := index[parent[i]]; ok {
				shapes[s].holes = append(shapes[s].holes, orient(c, false))
			}
		}
	}
	return shapes
}

func maxX(c contour) (int, float64) {
	mi, mx := 0, math.Inf(-1)
	for i, p := range c {
		if p[0] > mx {
			mi, mx = i, p[0]
		}
	}
	return mi, mx
}

// bridgeHoles merges every hole into the outer boundary through a pair of
// coincident cut edges, giving one weakly simple polygon. Holes are merged
// rightmost first; each one connects its rightmost vertex to a visible
// vertex of the polygon built so far.
func bridgeHoles(s shape) contour {
	poly := append(contour(nil), s.outer...)
	holes := append([]contour(nil), s.holes...)
	sort.Slice(holes, func(i, j int) bool {
		_, a := maxX(holes[i])
		_, b := maxX(holes[j])
		return a > b
	})

	for _, h := range holes {
		mi, _ := maxX(h)
		m := h[mi]

		best := math.Inf(1)
		pi := -1
		var ip dvec2.T
		for i := range poly {
			a, b := poly[i], poly[(i+1)%len(poly)]
			if a[1] == b[1] {
				continue
			}
			if (a[1] < m[1] && b[1] < m[1]) || (a[1] > m[1] && b[1] > m[1]) {
				continue
			}
			x := a[0] + (m[1]-a[1])*(b[0]-a[0])/(b[1]-a[1])
			if x < m[0] || x >= best {
				continue
			}
			best = x
			ip = dvec2.T{x, m[1]}
			if a[0] > b[0] {
				pi = i
			} else {
				pi = (i + 1) % len(poly)
			}
		}
		if pi < 0 {
			continue
		}

		p := poly[pi]
		if !samePoint(p, ip, 0) {
			// A vertex inside triangle m, ip, p would block the cut; take the
			// one closest in angle to the ray instead.
			minAngle := math.Inf(1)
			minDist := math.Inf(1)
			for j, v := range poly {
				if j == pi || !inTriangle(v, m, ip, p) || samePoint(v, m, 0) {
					continue
				}
				angle := math.Abs(math.Atan2(v[1]-m[1], v[0]-m[0]))
				dist := (v[0]-m[0])*(v[0]-m[0]) + (v[1]-m[1])*(v[1]-m[1])
				if angle < minAngle || (angle == minAngle && dist < minDist) {
					minAngle, minDist = angle, dist
					pi = j
				}
			}
		}

		merged := make(contour, 0, len(poly)+len(h)+2)
		merged = append(merged, poly[:pi+1]...)
		merged = append(merged, h[mi:]...)
		merged = append(merged, h[:mi+1]...)
		merged = append(merged, poly[pi:]...)
		poly = merged
	}
	return poly
}

func cross(o, a, b dvec2.T) float64 {
	return (a[0]-o[0])*(b[1]-o[1]) - (a[1]-o[1])*(b[0]-o[0])
}

// inTriangle reports whether p lies in the closed triangle a, b, c of any
// orientation.
func inTriangle(p, a, b, c dvec2.T) bool {
	d1 := cross(a, b, p)
	d2 := cross(b, c, p)
	d3 := cross(c, a, p)
	neg := d1 < 0 || d2 < 0 || d3 < 0
	pos := d1 > 0 || d2 > 0 || d3 > 0
	return !(neg && pos)
}

// earClip triangulates a counter-clockwise weakly simple polygon. The
// returned triangles index pts and are counter-clockwise.
func earClip(pts contour) [][3]int {
	n := len(pts)
	if n < 3 {
		return nil
	}
	idx := make([]int, n)
	for i := range idx {
		idx[i] = i
	}
	if signedArea(pts) < 0 {
		for i, j := 0, n-1; i < j; i, j = i+1, j-1 {
			idx[i], idx[j] = idx[j], idx[i]
		}
	}

	tris := make([][3]int, 0, n-2)
	for len(idx) > 3 {
		m := len(idx)
		clipped := false
		for i := 0; i < m; i++ {
			a, b, c := idx[(i+m-1)%m], idx[i], idx[(i+1)%m]
			pa, pb, pc := pts[a], pts[b], pts[c]
			if cross(pa, pb, pc) <= 0 {
				continue
			}
			if blocksEar(pts, idx, pa, pb, pc) {
				continue
			}
			tris = append(tris, [3]int{a, b, c})
			idx = append(idx[:i], idx[i+1:]...)
			clipped = true
			break
		}
		if clipped {
			continue
		}
		// No ear: drop a degenerate vertex if there is one, otherwise the
		// polygon self-intersects and the first corner is clipped anyway.
		drop := 0
		for i := 0; i < m; i++ {
			if cross(pts[idx[(i+m-1)%m]], pts[idx[i]], pts[idx[(i+1)%m]]) == 0 {
				drop = i
				clipped = true
				break
			}
		}
		if !clipped {
			tris = append(tris, [3]int{idx[m-1], idx[0], idx[1]})
		}
		idx = append(idx[:drop], idx[drop+1:]...)
	}
	if cross(pts[idx[0]], pts[idx[1]], pts[idx[2]]) > 0 {
		tris = append(tris, [3]int{idx[0], idx[1], idx[2]})
	}
	return tris
}

func blocksEar(pts contour, idx []int, pa, pb, pc dvec2.T) bool {
	for _, k := range idx {
		p := pts[k]
		if samePoint(p, pa, 0) || samePoint(p, pb, 0) || samePoint(p, pc, 0) {
			continue
		}
		if inTriangle(p, pa, pb, pc) {
			return true
		}
	}
	return false
}

// triangulate returns the merged vertex ring of a shape and its triangles.
func triangulate(s shape) (contour, [][3]int) {
	ring := bridgeHoles(s)
	return ring, earClip(ring)
}

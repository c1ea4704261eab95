package geometry

import (
	"math"

	"github.com/ctessum/geom"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// Region is the result of a polygon boolean operation: zero or more rings.
type Region struct {
	poly geom.Polygon
}

// Area is the net area of the region.
func (g Region) Area() float64 {
	if len(g.poly) == 0 {
		return 0
	}
	return math.Abs(g.poly.Area())
}

// Parts splits the region into its connected pieces. Each part is an outer
// ring with the holes directly inside it; Area is the outer area less the
// holes. Holes are never parts of their own. Rings with fewer than 3
// vertices are skipped.
func (g Region) Parts() []Part {
	var rings []Ring
	var paths geom.Polygon
	for _, path := range g.poly {
		if len(path) < 3 {
			continue
		}
		pts := make([]domain.Point, len(path))
		for i, p := range path {
			pts[i] = domain.Point{X: p.X, Y: p.Y}
		}
		r, err := NewRing(pts)
		if err != nil {
			continue
		}
		rings = append(rings, r)
		paths = append(paths, path)
	}

	// depth[i] counts the rings enclosing ring i: even depths are outer
	// boundaries, odd depths are holes of the deepest enclosing ring.
	depth := make([]int, len(rings))
	parent := make([]int, len(rings))
	for i := range rings {
		parent[i] = -1
		for j := range rings {
			if i == j || !encloses(paths[j], paths[i]) {
				continue
			}
			depth[i]++
			if parent[i] < 0 || rings[j].Area() < rings[parent[i]].Area() {
				parent[i] = j
			}
		}
	}

	var out []Part
	index := make(map[int]int)
	for i, r := range rings {
		if depth[i]%2 == 0 {
			index[i] = len(out)
			out = append(out, Part{Ring: r, Area: r.Area()})
		}
	}
	for i, r := range rings {
		if depth[i]%2 == 0 || parent[i] < 0 {
			continue
		}
		k, ok := index[parent[i]]
		if !ok {
			continue
		}
		out[k].Holes = append(out[k].Holes, r)
		out[k].Area -= r.Area()
	}
	for k := range out {
		out[k].Area = math.Max(out[k].Area, 0)
	}
	return out
}

// encloses reports whether ring inner lies inside ring outer, judged by the
// first vertex of inner that is not on the edge of outer.
func encloses(outer, inner geom.Path) bool {
	container := geom.Polygon{outer}
	for _, p := range inner {
		switch p.Within(container) {
		case geom.Inside:
			return true
		case geom.Outside:
			return false
		}
	}
	return false
}

// IsEmpty reports whether the region has no rings.
func (g Region) IsEmpty() bool { return len(g.poly) == 0 }

// Part is one connected piece of a Region.
type Part struct {
	Ring  Ring
	Holes []Ring
	Area  float64
}

// Anchor returns a point to label the part with: the centroid of its outer
// ring, or its first vertex when the centroid falls in or on a hole.
func (p Part) Anchor() domain.Point {
	c := p.Ring.Centroid()
	pt := geom.Point{X: c.X, Y: c.Y}
	for _, h := range p.Holes {
		if pt.Within(h.planar()) != geom.Outside {
			v := p.Ring.Vertices()[0]
			return domain.Point{X: v.X, Y: v.Y}
		}
	}
	return c
}

func (r Ring) planar() geom.Polygon {
	verts := r.Vertices()
	path := make(geom.Path, len(verts))
	for i, p := range verts {
		path[i] = geom.Point{X: p.X, Y: p.Y}
	}
	return geom.Polygon{path}
}

// Intersection returns the region shared by a and b.
func Intersection(a, b Ring) Region {
	if a.IsEmpty() || b.IsEmpty() {
		return Region{}
	}
	return Region{poly: a.planar().Intersection(b.planar()).(geom.Polygon)}
}

// Difference returns the part of a not covered by b.
func Difference(a, b Ring) Region {
	if a.IsEmpty() {
		return Region{}
	}
	if b.IsEmpty() {
		return Region{poly: a.planar()}
	}
	return Region{poly: a.planar().Difference(b.planar()).(geom.Polygon)}
}

// UncoveredBy returns the part of parent not covered by any of the rings.
func UncoveredBy(parent Ring, rings []Ring) Region {
	if parent.IsEmpty() {
		return Region{}
	}
	if len(rings) == 0 {
		return Region{poly: parent.planar()}
	}
	var union geom.Polygon
	for _, r := range rings {
		if r.IsEmpty() {
			continue
		}
		if union == nil {
			union = r.planar()
			continue
		}
		union = union.Union(r.planar()).(geom.Polygon)
	}
	if union == nil {
		return Region{poly: parent.planar()}
	}
	return Region{poly: parent.planar().Difference(union).(geom.Polygon)}
}

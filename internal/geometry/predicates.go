package geometry

import (
	"math"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// SelfIntersections returns the crossing points between non-adjacent edges of r.
func SelfIntersections(r Ring) []domain.Point {
	pts := r.pts
	n := len(pts) - 1
	if n < 4 {
		return nil
	}
	var out []domain.Point
	for i := 0; i < n; i++ {
		for j := i + 1; j < n; j++ {
			if j == i+1 || (i == 0 && j == n-1) {
				continue
			}
			if p, ok := segmentIntersection(pts[i], pts[i+1], pts[j], pts[j+1]); ok {
				out = append(out, p)
			}
		}
	}
	return out
}

// IsDegenerate reports whether r has fewer than 3 distinct vertices or no area.
func IsDegenerate(r Ring) bool {
	verts := r.Vertices()
	distinct := 0
	for i, p := range verts {
		dup := false
		for _, q := range verts[:i] {
			if math.Hypot(p.X-q.X, p.Y-q.Y) <= CloseEpsilon {
				dup = true
				break
			}
		}
		if !dup {
			distinct++
		}
	}
	return distinct < 3 || r.Area() <= CloseEpsilon
}

// Distance is the minimum distance between the boundaries of a and b.
func Distance(a, b Ring) float64 {
	best := math.Inf(1)
	for i := 1; i < len(a.pts); i++ {
		for j := 1; j < len(b.pts); j++ {
			if d := segmentDistance(a.pts[i-1], a.pts[i], b.pts[j-1], b.pts[j]); d < best {
				best = d
			}
		}
	}
	return best
}

// SharedBoundary returns the collinear edge segments a and b have in common
// within tol, as pairs of endpoints.
func SharedBoundary(a, b Ring, tol float64) [][2]domain.Point {
	var out [][2]domain.Point
	for i := 1; i < len(a.pts); i++ {
		p1, p2 := a.pts[i-1], a.pts[i]
		for j := 1; j < len(b.pts); j++ {
			q1, q2 := b.pts[j-1], b.pts[j]
			if seg, ok := collinearOverlap(p1, p2, q1, q2, tol); ok {
				out = append(out, seg)
			}
		}
	}
	return out
}

func cross(o, a, b domain.Point) float64 {
	return (a.X-o.X)*(b.Y-o.Y) - (a.Y-o.Y)*(b.X-o.X)
}

// segmentIntersection returns the proper or touching intersection of p1p2 and q1q2.
func segmentIntersection(p1, p2, q1, q2 domain.Point) (domain.Point, bool) {
	d1 := cross(q1, q2, p1)
	d2 := cross(q1, q2, p2)
	d3 := cross(p1, p2, q1)
	d4 := cross(p1, p2, q2)

	if ((d1 > 0 && d2 < 0) || (d1 < 0 && d2 > 0)) && ((d3 > 0 && d4 < 0) || (d3 < 0 && d4 > 0)) {
		t := d1 / (d1 - d2)
		return domain.Point{X: p1.X + t*(p2.X-p1.X), Y: p1.Y + t*(p2.Y-p1.Y)}, true
	}
	switch {
	case d1 == 0 && onSegment(q1, q2, p1):
		return p1, true
	case d2 == 0 && onSegment(q1, q2, p2):
		return p2, true
	case d3 == 0 && onSegment(p1, p2, q1):
		return q1, true
	case d4 == 0 && onSegment(p1, p2, q2):
		return q2, true
	}
	return domain.Point{}, false
}

func onSegment(a, b, p domain.Point) bool {
	return p.X >= math.Min(a.X, b.X) && p.X <= math.Max(a.X, b.X) &&
		p.Y >= math.Min(a.Y, b.Y) && p.Y <= math.Max(a.Y, b.Y)
}

func pointSegmentDistance(p, a, b domain.Point) float64 {
	dx, dy := b.X-a.X, b.Y-a.Y
	l2 := dx*dx + dy*dy
	if l2 == 0 {
		return math.Hypot(p.X-a.X, p.Y-a.Y)
	}
	t := ((p.X-a.X)*dx + (p.Y-a.Y)*dy) / l2
	t = math.Max(0, math.Min(1, t))
	return math.Hypot(p.X-(a.X+t*dx), p.Y-(a.Y+t*dy))
}

func segmentDistance(p1, p2, q1, q2 domain.Point) float64 {
	if _, ok := segmentIntersection(p1, p2, q1, q2); ok {
		return 0
	}
	return math.Min(
		math.Min(pointSegmentDistance(p1, q1, q2), pointSegmentDistance(p2, q1, q2)),
		math.Min(pointSegmentDistance(q1, p1, p2), pointSegmentDistance(q2, p1, p2)),
	)
}

// collinearOverlap returns the common stretch of two segments lying on the
// same line within tol, if it has positive length.
func collinearOverlap(p1, p2, q1, q2 domain.Point, tol float64) ([2]domain.Point, bool) {
	if pointSegmentDistance(q1, p1, p2) > tol && pointSegmentDistance(q2, p1, p2) > tol &&
		pointSegmentDistance(p1, q1, q2) > tol && pointSegmentDistance(p2, q1, q2) > tol {
		return [2]domain.Point{}, false
	}
	dx, dy := p2.X-p1.X, p2.Y-p1.Y
	l := math.Hypot(dx, dy)
	if l == 0 {
		return [2]domain.Point{}, false
	}
	// Both endpoints of q must sit on p's supporting line.
	if math.Abs(cross(p1, p2, q1))/l > tol || math.Abs(cross(p1, p2, q2))/l > tol {
		return [2]domain.Point{}, false
	}
	ux, uy := dx/l, dy/l
	proj := func(p domain.Point) float64 { return (p.X-p1.X)*ux + (p.Y-p1.Y)*uy }
	s0, s1 := proj(q1), proj(q2)
	if s0 > s1 {
		s0, s1 = s1, s0
	}
	lo, hi := math.Max(0, s0), math.Min(l, s1)
	if hi-lo <= tol {
		return [2]domain.Point{}, false
	}
	return [2]domain.Point{
		{X: p1.X + lo*ux, Y: p1.Y + lo*uy},
		{X: p1.X + hi*ux, Y: p1.Y + hi*uy},
	}, true
}

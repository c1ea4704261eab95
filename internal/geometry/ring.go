// Package geometry provides the typed closed-ring polygon used across the
// engine, its interchange encodings, and the polygon predicates the
// generator and topology validator build on.
package geometry

import (
	"fmt"
	"math"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// CloseEpsilon is the distance below which two ring vertices are treated as the same position.
const CloseEpsilon = 1e-9

// Ring is a closed polygon ring. Its last point always equals its first.
// The zero Ring is empty and has no area.
type Ring struct {
	pts []domain.Point
}

// NewRing builds a closed ring from points, auto-closing an open ring.
// It requires at least 3 distinct vertices and finite coordinates.
func NewRing(points []domain.Point) (Ring, error) {
	for i, p := range points {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			return Ring{}, domain.NewEngineError(domain.ErrNonFiniteValue.Code,
				fmt.Sprintf("%s at vertex %d", domain.ErrNonFiniteValue.Message, i))
		}
	}

	pts := make([]domain.Point, len(points), len(points)+1)
	copy(pts, points)
	if len(pts) > 0 && !IsClosed(pts) {
		pts = append(pts, domain.Point{X: pts[0].X, Y: pts[0].Y})
	}

	if len(pts)-1 < 3 {
		return Ring{}, domain.ErrInsufficientPoints
	}
	return Ring{pts: pts}, nil
}

// IsClosed reports whether the last point coincides with the first.
func IsClosed(points []domain.Point) bool {
	if len(points) < 2 {
		return false
	}
	first, last := points[0], points[len(points)-1]
	return math.Hypot(last.X-first.X, last.Y-first.Y) <= CloseEpsilon
}

// Points returns a copy of the closed ring, closing point included.
func (r Ring) Points() []domain.Point {
	out := make([]domain.Point, len(r.pts))
	copy(out, r.pts)
	return out
}

// Vertices returns a copy of the ring without the repeated closing point.
func (r Ring) Vertices() []domain.Point {
	if len(r.pts) == 0 {
		return nil
	}
	out := make([]domain.Point, len(r.pts)-1)
	copy(out, r.pts[:len(r.pts)-1])
	return out
}

// NumVertices is the number of vertices excluding the closing point.
func (r Ring) NumVertices() int {
	if len(r.pts) == 0 {
		return 0
	}
	return len(r.pts) - 1
}

// IsEmpty reports whether r is the zero Ring.
func (r Ring) IsEmpty() bool { return len(r.pts) == 0 }

// SignedArea is the shoelace area, positive for counter-clockwise rings.
func (r Ring) SignedArea() float64 {
	return signedArea(r.pts)
}

// Area is the absolute enclosed area.
func (r Ring) Area() float64 {
	return math.Abs(r.SignedArea())
}

// Perimeter is the length of the closed boundary.
func (r Ring) Perimeter() float64 {
	var sum float64
	for i := 1; i < len(r.pts); i++ {
		sum += math.Hypot(r.pts[i].X-r.pts[i-1].X, r.pts[i].Y-r.pts[i-1].Y)
	}
	return sum
}

// Bounds returns the axis-aligned envelope of the ring.
func (r Ring) Bounds() Bounds {
	return BoundsOf(r.pts)
}

// Centroid is the area-weighted centroid, falling back to the vertex mean for
// degenerate rings.
func (r Ring) Centroid() domain.Point {
	a := r.SignedArea()
	verts := r.Vertices()
	if len(verts) == 0 {
		return domain.Point{}
	}
	if math.Abs(a) < CloseEpsilon {
		var sx, sy float64
		for _, p := range verts {
			sx += p.X
			sy += p.Y
		}
		n := float64(len(verts))
		return domain.Point{X: sx / n, Y: sy / n}
	}
	var cx, cy float64
	for i := 1; i < len(r.pts); i++ {
		p, q := r.pts[i-1], r.pts[i]
		cross := p.X*q.Y - q.X*p.Y
		cx += (p.X + q.X) * cross
		cy += (p.Y + q.Y) * cross
	}
	return domain.Point{X: cx / (6 * a), Y: cy / (6 * a)}
}

// signedArea applies the shoelace formula, wrapping around if pts is open.
func signedArea(pts []domain.Point) float64 {
	n := len(pts)
	if n < 3 {
		return 0
	}
	var sum float64
	for i := 0; i < n; i++ {
		j := (i + 1) % n
		sum += pts[i].X*pts[j].Y - pts[j].X*pts[i].Y
	}
	return sum / 2
}

// Bounds is an axis-aligned envelope.
type Bounds struct {
	MinX, MinY, MaxX, MaxY float64
}

// BoundsOf computes the envelope of pts. An empty slice yields the zero Bounds.
func BoundsOf(pts []domain.Point) Bounds {
	if len(pts) == 0 {
		return Bounds{}
	}
	b := Bounds{MinX: pts[0].X, MinY: pts[0].Y, MaxX: pts[0].X, MaxY: pts[0].Y}
	for _, p := range pts[1:] {
		b.MinX = math.Min(b.MinX, p.X)
		b.MinY = math.Min(b.MinY, p.Y)
		b.MaxX = math.Max(b.MaxX, p.X)
		b.MaxY = math.Max(b.MaxY, p.Y)
	}
	return b
}

// Width is the east-west extent.
func (b Bounds) Width() float64 { return b.MaxX - b.MinX }

// Height is the north-south extent.
func (b Bounds) Height() float64 { return b.MaxY - b.MinY }

// Overlaps reports whether the interiors of b and o intersect by more than tol
// on both axes. Envelopes that only share an edge do not overlap.
func (b Bounds) Overlaps(o Bounds, tol float64) bool {
	dx := math.Min(b.MaxX, o.MaxX) - math.Max(b.MinX, o.MinX)
	dy := math.Min(b.MaxY, o.MaxY) - math.Max(b.MinY, o.MinY)
	return dx > tol && dy > tol
}

// Contains reports whether o lies within b, allowing tol on every edge.
func (b Bounds) Contains(o Bounds, tol float64) bool {
	return o.MinX >= b.MinX-tol && o.MinY >= b.MinY-tol &&
		o.MaxX <= b.MaxX+tol && o.MaxY <= b.MaxY+tol
}

// Polygon returns the envelope as a closed counter-clockwise ring.
func (b Bounds) Polygon() []domain.Point {
	return []domain.Point{
		{X: b.MinX, Y: b.MinY},
		{X: b.MaxX, Y: b.MinY},
		{X: b.MaxX, Y: b.MaxY},
		{X: b.MinX, Y: b.MaxY},
		{X: b.MinX, Y: b.MinY},
	}
}

package geometry

import (
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

func square(x, y, size float64) []domain.Point {
	return []domain.Point{
		{X: x, Y: y},
		{X: x + size, Y: y},
		{X: x + size, Y: y + size},
		{X: x, Y: y + size},
	}
}

func mustRing(t *testing.T, pts []domain.Point) Ring {
	t.Helper()
	r, err := NewRing(pts)
	require.NoError(t, err)
	return r
}

func TestNewRing_AutoCloses(t *testing.T) {
	r := mustRing(t, square(0, 0, 1))

	pts := r.Points()
	require.Len(t, pts, 5)
	assert.Equal(t, pts[0].X, pts[4].X)
	assert.Equal(t, pts[0].Y, pts[4].Y)
	assert.Equal(t, 4, r.NumVertices())
	assert.Len(t, r.Vertices(), 4)
}

func TestNewRing_AlreadyClosed(t *testing.T) {
	pts := append(square(0, 0, 1), domain.Point{X: 0, Y: 0})
	r := mustRing(t, pts)
	assert.Len(t, r.Points(), 5)
}

func TestNewRing_Errors(t *testing.T) {
	tests := []struct {
		name string
		pts  []domain.Point
		want error
	}{
		{"empty", nil, domain.ErrInsufficientPoints},
		{"two points", []domain.Point{{X: 0, Y: 0}, {X: 1, Y: 1}}, domain.ErrInsufficientPoints},
		{"closed triangle missing a vertex", []domain.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 0, Y: 0}}, domain.ErrInsufficientPoints},
		{"NaN", []domain.Point{{X: 0, Y: 0}, {X: math.NaN(), Y: 0}, {X: 1, Y: 1}}, domain.ErrNonFiniteValue},
		{"Inf", []domain.Point{{X: 0, Y: 0}, {X: 1, Y: math.Inf(1)}, {X: 1, Y: 1}}, domain.ErrNonFiniteValue},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRing(tt.pts)
			require.Error(t, err)
			assert.True(t, errors.Is(err, tt.want), "got %v", err)
		})
	}
}

func TestRing_AreaPerimeter(t *testing.T) {
	r := mustRing(t, square(0, 0, 1))
	assert.InDelta(t, 1.0, r.Area(), 1e-12)
	assert.InDelta(t, 4.0, r.Perimeter(), 1e-12)
	assert.Greater(t, r.SignedArea(), 0.0)

	c := r.Centroid()
	assert.InDelta(t, 0.5, c.X, 1e-12)
	assert.InDelta(t, 0.5, c.Y, 1e-12)
}

func TestRing_ClockwiseAreaPositive(t *testing.T) {
	pts := square(0, 0, 2)
	rev := []domain.Point{pts[3], pts[2], pts[1], pts[0]}
	r := mustRing(t, rev)
	assert.Less(t, r.SignedArea(), 0.0)
	assert.InDelta(t, 4.0, r.Area(), 1e-12)
}

func TestBounds(t *testing.T) {
	a := BoundsOf(square(0, 0, 10))
	b := BoundsOf(square(10, 0, 10))
	c := BoundsOf(square(5, 5, 10))

	assert.Equal(t, 10.0, a.Width())
	assert.Equal(t, 10.0, a.Height())
	assert.False(t, a.Overlaps(b, 0), "edge-sharing envelopes must not overlap")
	assert.True(t, a.Overlaps(c, 0))
	assert.True(t, a.Contains(BoundsOf(square(1, 1, 2)), 0))
	assert.False(t, a.Contains(c, 0))
	assert.Len(t, a.Polygon(), 5)
}

func TestSelfIntersections(t *testing.T) {
	bowtie := mustRing(t, []domain.Point{{X: 0, Y: 0}, {X: 2, Y: 2}, {X: 2, Y: 0}, {X: 0, Y: 2}})
	hits := SelfIntersections(bowtie)
	require.NotEmpty(t, hits)
	assert.InDelta(t, 1.0, hits[0].X, 1e-12)
	assert.InDelta(t, 1.0, hits[0].Y, 1e-12)

	assert.Empty(t, SelfIntersections(mustRing(t, square(0, 0, 1))))
}

func TestIsDegenerate(t *testing.T) {
	line := mustRing(t, []domain.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}})
	assert.True(t, IsDegenerate(line))
	assert.False(t, IsDegenerate(mustRing(t, square(0, 0, 1))))
}

func TestDistanceAndSharedBoundary(t *testing.T) {
	a := mustRing(t, square(0, 0, 10))
	b := mustRing(t, square(10, 0, 10))
	far := mustRing(t, square(30, 0, 10))

	assert.Equal(t, 0.0, Distance(a, b))
	assert.InDelta(t, 10.0, Distance(b, far), 1e-12)

	shared := SharedBoundary(a, b, 1e-6)
	require.Len(t, shared, 1)
	length := math.Hypot(shared[0][1].X-shared[0][0].X, shared[0][1].Y-shared[0][0].Y)
	assert.InDelta(t, 10.0, length, 1e-9)

	assert.Empty(t, SharedBoundary(a, far, 1e-6))
}

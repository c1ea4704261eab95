package topology

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/geometry"
	"github.com/parcelgrid/survey-engine/internal/metrics"
)

func rect(x, y, w, h float64) []domain.Point {
	return []domain.Point{{X: x, Y: y}, {X: x + w, Y: y}, {X: x + w, Y: y + h}, {X: x, Y: y + h}}
}

func ring(t *testing.T, pts []domain.Point) geometry.Ring {
	t.Helper()
	r, err := geometry.NewRing(pts)
	require.NoError(t, err)
	return r
}

func unitAt(n string, floor int, pts []domain.Point) *domain.GeneratedUnitGeometry {
	return &domain.GeneratedUnitGeometry{SectionNumber: n, FloorLevel: floor, Boundary: pts}
}

func floors(units ...*domain.GeneratedUnitGeometry) map[int][]*domain.GeneratedUnitGeometry {
	out := map[int][]*domain.GeneratedUnitGeometry{}
	for _, u := range units {
		out[u.FloorLevel] = append(out[u.FloorLevel], u)
	}
	return out
}

func validateScheme(t *testing.T, parent []domain.Point, opts Options, units ...*domain.GeneratedUnitGeometry) domain.SchemeValidationReport {
	t.Helper()
	rep, err := NewValidator(nil, nil).ValidateSchemeTopology(context.Background(), ring(t, parent), floors(units...), opts)
	require.NoError(t, err)
	return rep
}

func findingsOf(rep domain.SchemeValidationReport, typ domain.TopologyErrorType) []domain.TopologyError {
	var out []domain.TopologyError
	for _, group := range [][]domain.TopologyError{rep.Errors, rep.Warnings, rep.Notices} {
		for _, f := range group {
			if f.Type == typ {
				out = append(out, f)
			}
		}
	}
	return out
}

func TestSharedWallIsNotAnOverlap(t *testing.T) {
	a := unitAt("1", 0, rect(0, 0, 10, 10))
	b := unitAt("2", 0, rect(10, 0, 10, 10))
	rep := validateScheme(t, rect(0, 0, 20, 10), DefaultOptions(), a, b)

	assert.True(t, rep.IsValid, "errors: %+v", rep.Errors)
	assert.Empty(t, findingsOf(rep, domain.TopologyOverlap))
	require.Len(t, rep.Notices, 1)
	assert.Equal(t, domain.TopologyTouching, rep.Notices[0].Type)
	assert.Equal(t, domain.SeverityInfo, rep.Notices[0].Severity)
	require.Len(t, rep.Suggestions, 1)
	assert.Equal(t, domain.PriorityLow, rep.Suggestions[0].Priority)
	assert.Equal(t, 1, rep.Summary.SharedWalls)
	assert.True(t, a.OverlapValidated)
	assert.True(t, b.ContainmentValidated)
}

func TestSharedWallDisallowed(t *testing.T) {
	opts := DefaultOptions()
	opts.AllowSharedWalls = false
	a := unitAt("1", 0, rect(0, 0, 10, 10))
	b := unitAt("2", 0, rect(10, 0, 10, 10))
	rep := validateScheme(t, rect(0, 0, 20, 10), opts, a, b)

	assert.False(t, rep.IsValid)
	require.Len(t, rep.Errors, 1)
	assert.Equal(t, domain.TopologyTouching, rep.Errors[0].Type)
	assert.Empty(t, findingsOf(rep, domain.TopologyOverlap))
	assert.False(t, a.OverlapValidated)
}

func TestTrueOverlapDetected(t *testing.T) {
	a := unitAt("1", 2, rect(0, 0, 10, 10))
	b := unitAt("2", 2, rect(8, 0, 10, 10))
	rep := validateScheme(t, rect(0, 0, 20, 10), DefaultOptions(), a, b)

	assert.False(t, rep.IsValid)
	overlaps := findingsOf(rep, domain.TopologyOverlap)
	require.Len(t, overlaps, 1)
	f := overlaps[0]
	assert.Equal(t, domain.SeverityError, f.Severity)
	assert.InDelta(t, 20.0, f.AffectedArea, 1e-6)
	assert.ElementsMatch(t, []string{"1", "2"}, f.SectionNumbers)
	require.NotNil(t, f.FloorLevel)
	assert.Equal(t, 2, *f.FloorLevel)
	require.NotNil(t, f.Location)
	assert.Equal(t, domain.LocationPolygon, f.Location.Kind)
	assert.NotEmpty(t, f.Location.Coordinates)

	require.NotEmpty(t, rep.Suggestions)
	assert.Equal(t, "adjust boundaries", rep.Suggestions[0].Action)
	assert.Equal(t, domain.PriorityHigh, rep.Suggestions[0].Priority)
	assert.False(t, a.OverlapValidated)
	assert.False(t, b.OverlapValidated)
	assert.Equal(t, 1, rep.Summary.Overlaps)
}

func TestStackedFloorsDoNotOverlap(t *testing.T) {
	a := unitAt("1", 0, rect(0, 0, 10, 10))
	b := unitAt("2", 1, rect(0, 0, 10, 10))
	rep := validateScheme(t, rect(0, 0, 10, 10), DefaultOptions(), a, b)
	assert.True(t, rep.IsValid, "cross-floor overlaps are warnings")
	assert.Empty(t, rep.Errors)
	require.Len(t, rep.Warnings, 1)
	assert.Equal(t, domain.TopologyOverlap, rep.Warnings[0].Type)
	assert.Equal(t, domain.PriorityMedium, rep.Suggestions[0].Priority)

	opts := DefaultOptions()
	opts.CheckCrossFloor = false
	rep = validateScheme(t, rect(0, 0, 10, 10), opts, a, b)
	assert.True(t, rep.IsValid)
	assert.Empty(t, findingsOf(rep, domain.TopologyOverlap))
}

func TestContainment(t *testing.T) {
	inside := unitAt("1", 0, rect(0, 0, 10, 10))
	outside := unitAt("2", 0, rect(15, 0, 10, 10))
	rep := validateScheme(t, rect(0, 0, 20, 10), DefaultOptions(), inside, outside)

	assert.False(t, rep.IsValid)
	cs := findingsOf(rep, domain.TopologyContainment)
	require.Len(t, cs, 1)
	assert.Equal(t, []string{"2"}, cs[0].SectionNumbers)
	assert.InDelta(t, 50.0, cs[0].AffectedArea, 1e-6)
	assert.True(t, inside.ContainmentValidated)
	assert.False(t, outside.ContainmentValidated)

	var found bool
	for _, s := range rep.Suggestions {
		if s.ErrorType == domain.TopologyContainment {
			found = true
			assert.Equal(t, "move inside parent", s.Action)
		}
	}
	assert.True(t, found)
}

func TestGapDetection(t *testing.T) {
	a := unitAt("1", 0, rect(0, 0, 10, 10))
	rep := validateScheme(t, rect(0, 0, 20, 10), DefaultOptions(), a)

	assert.True(t, rep.IsValid, "gaps never block validity")
	require.Len(t, rep.Warnings, 1)
	gap := rep.Warnings[0]
	assert.Equal(t, domain.TopologyGap, gap.Type)
	assert.InDelta(t, 100.0, gap.AffectedArea, 1e-6)
	assert.InDelta(t, 100.0, rep.Summary.TotalGapArea, 1e-6)
	require.NotNil(t, gap.Location)
	assert.Equal(t, "add or extend sections to cover gap", rep.Suggestions[0].Action)
	assert.Equal(t, domain.PriorityMedium, rep.Suggestions[0].Priority)

	opts := DefaultOptions()
	opts.MinGapArea = 150
	rep = validateScheme(t, rect(0, 0, 20, 10), opts, a)
	assert.Empty(t, rep.Warnings)
}

func TestGapDetection_IslandUnit(t *testing.T) {
	// A footprint that does not touch the parent boundary leaves one
	// ring-shaped gap around it.
	island := unitAt("1", 0, rect(40, 40, 10, 10))
	rep := validateScheme(t, rect(0, 0, 100, 100), DefaultOptions(), island)

	gaps := findingsOf(rep, domain.TopologyGap)
	require.Len(t, gaps, 1)
	assert.InDelta(t, 9900.0, gaps[0].AffectedArea, 1e-6)
	assert.InDelta(t, 9900.0, rep.Summary.TotalGapArea, 1e-6)
	assert.Contains(t, gaps[0].Description, "9900.0000 m²")
	assert.NotContains(t, gaps[0].Description, "(45.00, 45.00)", "anchor must lie in the gap, not the unit")
	require.NotNil(t, gaps[0].Location)
	assert.Equal(t, domain.LocationPolygon, gaps[0].Location.Kind)
}

func TestInvalidGeometry(t *testing.T) {
	bowtie := unitAt("X", 0, []domain.Point{{X: 0, Y: 0}, {X: 4, Y: 4}, {X: 4, Y: 0}, {X: 0, Y: 6}})
	flat := unitAt("F", 0, []domain.Point{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 0}})
	short := unitAt("S", 0, []domain.Point{{X: 0, Y: 0}})
	rep := validateScheme(t, rect(0, 0, 10, 10), DefaultOptions(), bowtie, flat, short)

	assert.False(t, rep.IsValid)
	invalid := findingsOf(rep, domain.TopologyInvalidGeometry)
	require.Len(t, invalid, 3)
	assert.Equal(t, 3, rep.Summary.InvalidGeometry)

	var bow domain.TopologyError
	for _, f := range invalid {
		if f.SectionNumbers[0] == "X" {
			bow = f
		}
	}
	require.NotNil(t, bow.Location)
	assert.Equal(t, domain.LocationPoint, bow.Location.Kind)
	assert.InDelta(t, 2.4, bow.Location.Coordinates[0].X, 1e-9)
	assert.InDelta(t, 2.4, bow.Location.Coordinates[0].Y, 1e-9)

	for _, s := range rep.Suggestions {
		if s.ErrorType == domain.TopologyInvalidGeometry {
			assert.Equal(t, "remove self-intersections", s.Action)
			assert.Equal(t, domain.PriorityHigh, s.Priority)
		}
	}
}

func TestEveryFindingHasLocationAndSuggestion(t *testing.T) {
	units := []*domain.GeneratedUnitGeometry{
		unitAt("1", 0, rect(0, 0, 10, 10)),
		unitAt("2", 0, rect(5, 0, 10, 10)),
		unitAt("3", 0, rect(25, 0, 10, 10)),
	}
	rep := validateScheme(t, rect(0, 0, 30, 20), DefaultOptions(), units...)

	total := len(rep.Errors) + len(rep.Warnings) + len(rep.Notices)
	assert.Equal(t, total, len(rep.Suggestions))
	for _, group := range [][]domain.TopologyError{rep.Errors, rep.Warnings} {
		for _, f := range group {
			assert.NotNil(t, f.Location, "%s: %s", f.Type, f.Description)
		}
	}
}

func TestChecksCanBeDisabled(t *testing.T) {
	opts := Options{}
	a := unitAt("1", 0, rect(0, 0, 10, 10))
	b := unitAt("2", 0, rect(5, 0, 10, 10))
	rep := validateScheme(t, rect(0, 0, 1, 1), opts, a, b)
	assert.True(t, rep.IsValid)
	assert.Empty(t, rep.Suggestions)
	assert.False(t, a.OverlapValidated, "flags untouched when the check is off")
}

func TestValidator_Metrics(t *testing.T) {
	m := metrics.New(prometheus.NewRegistry())
	v := NewValidator(nil, m)
	a := unitAt("1", 0, rect(0, 0, 10, 10))
	b := unitAt("2", 0, rect(5, 0, 10, 10))
	_, err := v.ValidateSchemeTopology(context.Background(), ring(t, rect(0, 0, 15, 10)), floors(a, b), DefaultOptions())
	require.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.TopologyFindings.WithLabelValues("overlap", "error")))
}

func TestRehydrate(t *testing.T) {
	u, err := Rehydrate("4", 1, domain.SectionParking, "POLYGON ((0 0, 5 0, 5 2, 0 2, 0 0))")
	require.NoError(t, err)
	assert.InDelta(t, 10.0, u.ComputedArea, 1e-9)
	assert.Equal(t, 1, u.FloorLevel)

	u, err = Rehydrate("5", 0, domain.SectionStorage, `{"type":"Polygon","coordinates":[[[0,0],[2,0],[2,2],[0,2],[0,0]]]}`)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, u.ComputedArea, 1e-9)

	_, err = Rehydrate("6", 0, domain.SectionStorage, "LINESTRING (0 0, 1 1)")
	assert.Error(t, err)
}

package sectional

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/geometry"
)

func generated(t *testing.T, n string, floor int, pts []domain.Point) *domain.GeneratedUnitGeometry {
	t.Helper()
	r, err := geometry.NewRing(pts)
	require.NoError(t, err)
	return &domain.GeneratedUnitGeometry{SectionNumber: n, FloorLevel: floor, Boundary: r.Points(), ComputedArea: r.Area()}
}

func TestGroupByFloor(t *testing.T) {
	units := []*domain.GeneratedUnitGeometry{
		generated(t, "1", 0, rect(0, 0, 1, 1)),
		generated(t, "2", 2, rect(0, 0, 1, 1)),
		generated(t, "3", 0, rect(1, 0, 1, 1)),
		generated(t, "B1", -1, rect(0, 0, 1, 1)),
	}
	groups := GroupByFloor(units)
	assert.Equal(t, []int{-1, 0, 2}, Floors(groups))
	require.Len(t, groups[0], 2)
	assert.Equal(t, "1", groups[0][0].SectionNumber)
	assert.Equal(t, "3", groups[0][1].SectionNumber)
}

func TestValidateFloorLevels(t *testing.T) {
	tests := []struct {
		name     string
		units    []*domain.GeneratedUnitGeometry
		valid    bool
		errors   int
		warnings int
	}{
		{
			name: "adjacent units share a wall",
			units: []*domain.GeneratedUnitGeometry{
				generated(t, "1", 0, rect(0, 0, 10, 10)),
				generated(t, "2", 0, rect(10, 0, 10, 10)),
			},
			valid: true,
		},
		{
			name: "stacked units on different floors",
			units: []*domain.GeneratedUnitGeometry{
				generated(t, "1", 0, rect(0, 0, 10, 10)),
				generated(t, "2", 1, rect(0, 0, 10, 10)),
			},
			valid: true,
		},
		{
			name: "same floor overlap",
			units: []*domain.GeneratedUnitGeometry{
				generated(t, "1", 3, rect(0, 0, 10, 10)),
				generated(t, "2", 3, rect(5, 0, 10, 10)),
			},
			errors: 1,
		},
		{
			name: "implausible span",
			units: []*domain.GeneratedUnitGeometry{
				generated(t, "1", -2, rect(0, 0, 10, 10)),
				generated(t, "2", 60, rect(0, 0, 10, 10)),
			},
			valid:    true,
			warnings: 1,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rep := ValidateFloorLevels(tt.units, 50)
			assert.Equal(t, tt.valid, rep.Valid)
			assert.Len(t, rep.Errors, tt.errors)
			assert.Len(t, rep.Warnings, tt.warnings)
		})
	}
}

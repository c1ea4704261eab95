package sectional

import (
	"fmt"
	"sort"

	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/geometry"
)

// GroupByFloor buckets units by floor level, preserving input order within a floor.
func GroupByFloor(units []*domain.GeneratedUnitGeometry) map[int][]*domain.GeneratedUnitGeometry {
	out := make(map[int][]*domain.GeneratedUnitGeometry)
	for _, u := range units {
		out[u.FloorLevel] = append(out[u.FloorLevel], u)
	}
	return out
}

// Floors returns the floor levels of a grouping in ascending order.
func Floors(groups map[int][]*domain.GeneratedUnitGeometry) []int {
	levels := make([]int, 0, len(groups))
	for l := range groups {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	return levels
}

// FloorLevelReport is the result of ValidateFloorLevels.
type FloorLevelReport struct {
	Valid    bool     `json:"valid"`
	Floors   []int    `json:"floors"`
	Errors   []string `json:"errors"`
	Warnings []string `json:"warnings"`
}

// ValidateFloorLevels flags same-floor units whose envelopes overlap (errors)
// and a floor span wider than maxSpan levels (warning).
func ValidateFloorLevels(units []*domain.GeneratedUnitGeometry, maxSpan int) FloorLevelReport {
	groups := GroupByFloor(units)
	rep := FloorLevelReport{Floors: Floors(groups), Errors: []string{}, Warnings: []string{}}

	for _, level := range rep.Floors {
		floor := groups[level]
		for i := 0; i < len(floor); i++ {
			bi := geometry.BoundsOf(floor[i].Boundary)
			for j := i + 1; j < len(floor); j++ {
				if bi.Overlaps(geometry.BoundsOf(floor[j].Boundary), prescreenTolerance) {
					rep.Errors = append(rep.Errors, fmt.Sprintf("floor %d: sections %s and %s overlap",
						level, floor[i].SectionNumber, floor[j].SectionNumber))
				}
			}
		}
	}

	if n := len(rep.Floors); n > 1 {
		if span := rep.Floors[n-1] - rep.Floors[0]; span > maxSpan {
			rep.Warnings = append(rep.Warnings, fmt.Sprintf("floor levels span %d levels (%d to %d), more than %d",
				span, rep.Floors[0], rep.Floors[n-1], maxSpan))
		}
	}

	rep.Valid = len(rep.Errors) == 0
	return rep
}

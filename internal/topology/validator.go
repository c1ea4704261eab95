// Package topology validates a sectional scheme's unit polygons against the
// parent parcel and each other using true polygon geometry.
package topology

import (
	"context"
	"fmt"
	"log/slog"
	"sort"

	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/geometry"
	"github.com/parcelgrid/survey-engine/internal/logging"
	"github.com/parcelgrid/survey-engine/internal/metrics"
)

// Options toggles the checks and sets their tolerances.
type Options struct {
	CheckOverlaps    bool
	CheckContainment bool
	CheckGaps        bool
	CheckValidity    bool
	// CheckCrossFloor also intersects units on different floors and reports
	// the result as warnings.
	CheckCrossFloor bool
	// AllowSharedWalls downgrades units sharing an edge to a notice.
	AllowSharedWalls bool
	// AllowTouching downgrades units meeting at a point to a notice.
	AllowTouching bool

	OverlapTolerance     float64 // m²
	ContainmentTolerance float64 // m²
	MinGapArea           float64 // m²
	TouchTolerance       float64 // m
}

// DefaultOptions enables every check, cross-floor comparison included, and
// tolerates shared walls.
func DefaultOptions() Options {
	return Options{
		CheckOverlaps:        true,
		CheckContainment:     true,
		CheckGaps:            true,
		CheckValidity:        true,
		CheckCrossFloor:      true,
		AllowSharedWalls:     true,
		AllowTouching:        true,
		OverlapTolerance:     0.01,
		ContainmentTolerance: 0.01,
		MinGapArea:           1,
		TouchTolerance:       0.001,
	}
}

// Validator runs scheme topology validation.
type Validator struct {
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewValidator creates a Validator. logger and m may be nil.
func NewValidator(logger *slog.Logger, m *metrics.Metrics) *Validator {
	return &Validator{logger: logging.OrDiscard(logger), metrics: m}
}

type candidate struct {
	unit *domain.GeneratedUnitGeometry
	ring geometry.Ring
}

// ValidateSchemeTopology checks the grouped unit geometries against parent.
// IsValid is true iff no error-severity finding exists. The unit flags
// ContainmentValidated and OverlapValidated are updated for every check that ran.
func (v *Validator) ValidateSchemeTopology(ctx context.Context, parent geometry.Ring, floors map[int][]*domain.GeneratedUnitGeometry, opts Options) (domain.SchemeValidationReport, error) {
	rep := domain.SchemeValidationReport{
		Errors:      []domain.TopologyError{},
		Warnings:    []domain.TopologyError{},
		Notices:     []domain.TopologyError{},
		Suggestions: []domain.CorrectionSuggestion{},
	}

	levels := make([]int, 0, len(floors))
	for l := range floors {
		levels = append(levels, l)
	}
	sort.Ints(levels)
	rep.Summary.FloorCount = len(levels)

	byFloor := make(map[int][]candidate, len(levels))
	var all []candidate
	for _, level := range levels {
		for _, u := range floors[level] {
			rep.Summary.UnitCount++
			ring, err := geometry.NewRing(u.Boundary)
			if err != nil {
				v.add(&rep, invalidFinding(u, fmt.Sprintf("section %s: %v", u.SectionNumber, err), nil))
				continue
			}
			if opts.CheckValidity {
				if f, bad := validityFinding(u, ring); bad {
					v.add(&rep, f)
					continue
				}
			}
			c := candidate{unit: u, ring: ring}
			byFloor[level] = append(byFloor[level], c)
			all = append(all, c)
		}
	}

	if opts.CheckContainment && !parent.IsEmpty() {
		for _, c := range all {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			outside := geometry.Difference(c.ring, parent)
			ok := outside.Area() <= opts.ContainmentTolerance
			c.unit.ContainmentValidated = ok
			if !ok {
				v.add(&rep, containmentFinding(c.unit, outside))
			}
		}
	}

	if opts.CheckOverlaps {
		overlapping := map[*domain.GeneratedUnitGeometry]bool{}
		for _, level := range levels {
			if err := ctx.Err(); err != nil {
				return rep, err
			}
			group := byFloor[level]
			for i := 0; i < len(group); i++ {
				for j := i + 1; j < len(group); j++ {
					if v.comparePair(&rep, group[i], group[j], opts, true) {
						overlapping[group[i].unit] = true
						overlapping[group[j].unit] = true
					}
				}
			}
		}
		if opts.CheckCrossFloor {
			for i := 0; i < len(all); i++ {
				for j := i + 1; j < len(all); j++ {
					if all[i].unit.FloorLevel != all[j].unit.FloorLevel {
						v.comparePair(&rep, all[i], all[j], opts, false)
					}
				}
			}
		}
		for _, c := range all {
			c.unit.OverlapValidated = !overlapping[c.unit]
		}
	}

	if opts.CheckGaps && !parent.IsEmpty() {
		rings := make([]geometry.Ring, len(all))
		for i, c := range all {
			rings[i] = c.ring
		}
		for _, part := range geometry.UncoveredBy(parent, rings).Parts() {
			if part.Area < opts.MinGapArea {
				continue
			}
			rep.Summary.TotalGapArea += part.Area
			v.add(&rep, gapFinding(part))
		}
	}

	rep.IsValid = len(rep.Errors) == 0
	v.logger.Info("scheme topology validated",
		"units", rep.Summary.UnitCount,
		"floors", rep.Summary.FloorCount,
		"valid", rep.IsValid,
		"errors", len(rep.Errors),
		"warnings", len(rep.Warnings),
		"notices", len(rep.Notices),
	)
	return rep, nil
}

// comparePair intersects two units and records an overlap or touching
// finding. It reports whether a blocking overlap was found.
func (v *Validator) comparePair(rep *domain.SchemeValidationReport, a, b candidate, opts Options, sameFloor bool) bool {
	if !a.ring.Bounds().Overlaps(b.ring.Bounds(), -opts.TouchTolerance) {
		return false
	}

	inter := geometry.Intersection(a.ring, b.ring)
	if area := inter.Area(); area > opts.OverlapTolerance {
		f := overlapFinding(a.unit, b.unit, inter, area)
		if !sameFloor {
			f.Severity = domain.SeverityWarning
			f.FloorLevel = nil
			f.Description = fmt.Sprintf("sections %s (floor %d) and %s (floor %d) overlap in plan by %.4f m²",
				a.unit.SectionNumber, a.unit.FloorLevel, b.unit.SectionNumber, b.unit.FloorLevel, area)
		}
		v.add(rep, f)
		return sameFloor
	}
	if !sameFloor || geometry.Distance(a.ring, b.ring) > opts.TouchTolerance {
		return false
	}

	shared := geometry.SharedBoundary(a.ring, b.ring, opts.TouchTolerance)
	allowed := (len(shared) > 0 && opts.AllowSharedWalls) || (len(shared) == 0 && opts.AllowTouching)
	f := touchingFinding(a.unit, b.unit, shared, allowed)
	if allowed {
		rep.Summary.SharedWalls++
	}
	v.add(rep, f)
	return !allowed
}

// add files a finding by severity, counts it, and attaches its suggestion.
func (v *Validator) add(rep *domain.SchemeValidationReport, f domain.TopologyError) {
	switch f.Severity {
	case domain.SeverityError:
		rep.Errors = append(rep.Errors, f)
	case domain.SeverityWarning:
		rep.Warnings = append(rep.Warnings, f)
	default:
		rep.Notices = append(rep.Notices, f)
	}

	switch f.Type {
	case domain.TopologyOverlap:
		rep.Summary.Overlaps++
	case domain.TopologyContainment:
		rep.Summary.ContainmentFails++
	case domain.TopologyGap:
		rep.Summary.Gaps++
	case domain.TopologyInvalidGeometry:
		rep.Summary.InvalidGeometry++
	}

	rep.Suggestions = append(rep.Suggestions, Suggest(f))
	v.metrics.ObserveTopologyFinding(string(f.Type), string(f.Severity))
}

package topology

import (
	"fmt"
	"strings"

	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/geometry"
)

func floorOf(u *domain.GeneratedUnitGeometry) *int {
	l := u.FloorLevel
	return &l
}

func polygonLocation(pts []domain.Point, desc string) *domain.ErrorLocation {
	return &domain.ErrorLocation{Kind: domain.LocationPolygon, Coordinates: pts, Description: desc}
}

func pointLocation(p domain.Point, desc string) *domain.ErrorLocation {
	return &domain.ErrorLocation{Kind: domain.LocationPoint, Coordinates: []domain.Point{p}, Description: desc}
}

// regionLocation picks the largest ring of a region, falling back to fallback.
func regionLocation(g geometry.Region, fallback []domain.Point, desc string) *domain.ErrorLocation {
	var best *geometry.Part
	parts := g.Parts()
	for i := range parts {
		if best == nil || parts[i].Area > best.Area {
			best = &parts[i]
		}
	}
	if best == nil {
		return polygonLocation(fallback, desc)
	}
	return polygonLocation(best.Ring.Points(), desc)
}

func invalidFinding(u *domain.GeneratedUnitGeometry, desc string, loc *domain.ErrorLocation) domain.TopologyError {
	if loc == nil && len(u.Boundary) > 0 {
		loc = polygonLocation(u.Boundary, "unit boundary")
	}
	return domain.TopologyError{
		Type:           domain.TopologyInvalidGeometry,
		Severity:       domain.SeverityError,
		Description:    desc,
		SectionNumbers: []string{u.SectionNumber},
		FloorLevel:     floorOf(u),
		Location:       loc,
	}
}

func validityFinding(u *domain.GeneratedUnitGeometry, r geometry.Ring) (domain.TopologyError, bool) {
	if geometry.IsDegenerate(r) {
		return invalidFinding(u, fmt.Sprintf("section %s: degenerate ring with no enclosed area", u.SectionNumber), nil), true
	}
	if hits := geometry.SelfIntersections(r); len(hits) > 0 {
		desc := fmt.Sprintf("section %s: boundary crosses itself at %d point(s)", u.SectionNumber, len(hits))
		return invalidFinding(u, desc, pointLocation(hits[0], "self-intersection")), true
	}
	return domain.TopologyError{}, false
}

func containmentFinding(u *domain.GeneratedUnitGeometry, outside geometry.Region) domain.TopologyError {
	area := outside.Area()
	return domain.TopologyError{
		Type:           domain.TopologyContainment,
		Severity:       domain.SeverityError,
		Description:    fmt.Sprintf("section %s extends %.4f m² outside the parent parcel", u.SectionNumber, area),
		SectionNumbers: []string{u.SectionNumber},
		FloorLevel:     floorOf(u),
		AffectedArea:   area,
		Location:       regionLocation(outside, u.Boundary, "area outside parent parcel"),
	}
}

func overlapFinding(a, b *domain.GeneratedUnitGeometry, inter geometry.Region, area float64) domain.TopologyError {
	return domain.TopologyError{
		Type:           domain.TopologyOverlap,
		Severity:       domain.SeverityError,
		Description:    fmt.Sprintf("sections %s and %s overlap by %.4f m² on floor %d", a.SectionNumber, b.SectionNumber, area, a.FloorLevel),
		SectionNumbers: []string{a.SectionNumber, b.SectionNumber},
		FloorLevel:     floorOf(a),
		AffectedArea:   area,
		Location:       regionLocation(inter, a.Boundary, "overlapping area"),
	}
}

func touchingFinding(a, b *domain.GeneratedUnitGeometry, shared [][2]domain.Point, allowed bool) domain.TopologyError {
	f := domain.TopologyError{
		Type:           domain.TopologyTouching,
		Severity:       domain.SeverityError,
		SectionNumbers: []string{a.SectionNumber, b.SectionNumber},
		FloorLevel:     floorOf(a),
	}
	if allowed {
		f.Severity = domain.SeverityInfo
	}
	if len(shared) > 0 {
		f.Description = fmt.Sprintf("sections %s and %s share a wall", a.SectionNumber, b.SectionNumber)
		f.Location = &domain.ErrorLocation{
			Kind:        domain.LocationPolygon,
			Coordinates: []domain.Point{shared[0][0], shared[0][1]},
			Description: "shared wall",
		}
		return f
	}
	f.Description = fmt.Sprintf("sections %s and %s touch at a point", a.SectionNumber, b.SectionNumber)
	f.Location = polygonLocation(a.Boundary, "touching unit")
	return f
}

func gapFinding(p geometry.Part) domain.TopologyError {
	c := p.Anchor()
	return domain.TopologyError{
		Type:         domain.TopologyGap,
		Severity:     domain.SeverityWarning,
		Description:  fmt.Sprintf("%.4f m² of the parent parcel near (%.2f, %.2f) is not covered by any section", p.Area, c.X, c.Y),
		AffectedArea: p.Area,
		Location:     polygonLocation(p.Ring.Points(), "uncovered area"),
	}
}

// Suggest returns the correction for a finding.
func Suggest(f domain.TopologyError) domain.CorrectionSuggestion {
	s := domain.CorrectionSuggestion{
		ErrorType:      f.Type,
		SectionNumbers: f.SectionNumbers,
		Priority:       domain.PriorityHigh,
	}
	sections := strings.Join(f.SectionNumbers, ", ")
	switch f.Type {
	case domain.TopologyOverlap:
		s.Action = "adjust boundaries"
		s.Description = fmt.Sprintf("Adjust the boundaries of sections %s so they no longer overlap.", sections)
	case domain.TopologyContainment:
		s.Action = "move inside parent"
		s.Description = fmt.Sprintf("Move or reshape section %s so it lies within the parent parcel.", sections)
	case domain.TopologyGap:
		s.Action = "add or extend sections to cover gap"
		s.Description = "Add a section or extend neighbouring sections to cover the gap, or confirm it as common property."
		s.Priority = domain.PriorityMedium
	case domain.TopologyInvalidGeometry:
		s.Action = "remove self-intersections"
		s.Description = fmt.Sprintf("Redraw section %s with a simple, non-self-intersecting boundary.", sections)
	case domain.TopologyTouching:
		if f.Severity == domain.SeverityInfo {
			s.Action = "confirm shared boundary"
			s.Description = fmt.Sprintf("Confirm that sections %s share a boundary wall.", sections)
			s.Priority = domain.PriorityLow
		} else {
			s.Action = "separate or merge boundaries"
			s.Description = fmt.Sprintf("Sections %s touch; separate them or record the shared wall.", sections)
		}
	}
	if f.Type == domain.TopologyOverlap && f.Severity != domain.SeverityError {
		s.Priority = domain.PriorityMedium
	}
	return s
}

// Rehydrate rebuilds a unit geometry from a previously stored WKT or GeoJSON
// polygon for re-validation.
func Rehydrate(section string, floor int, typ domain.SectionType, encoded string) (*domain.GeneratedUnitGeometry, error) {
	var (
		r   geometry.Ring
		err error
	)
	if s := strings.TrimSpace(encoded); strings.HasPrefix(s, "{") {
		r, err = geometry.DecodeGeoJSON([]byte(s))
	} else {
		r, err = geometry.DecodeWKT(s)
	}
	if err != nil {
		return nil, fmt.Errorf("section %s: %w", section, err)
	}
	return &domain.GeneratedUnitGeometry{
		SectionNumber: section,
		SectionType:   typ,
		FloorLevel:    floor,
		Boundary:      r.Points(),
		ComputedArea:  r.Area(),
		Perimeter:     r.Perimeter(),
	}, nil
}

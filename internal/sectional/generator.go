// Package sectional generates sectional-title unit geometries from unit
// specifications and a parent parcel.
package sectional

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/go-playground/validator/v10"
	"github.com/twpayne/go-geom"
	"golang.org/x/sync/errgroup"

	"github.com/parcelgrid/survey-engine/internal/config"
	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/geometry"
	"github.com/parcelgrid/survey-engine/internal/logging"
	"github.com/parcelgrid/survey-engine/internal/metrics"
)

// prescreenTolerance absorbs floating-point noise in envelope comparisons.
const prescreenTolerance = 1e-6

var validate = validator.New()

// Generator builds unit geometries. It is safe for concurrent use.
type Generator struct {
	cfg     config.ComputationConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewGenerator creates a Generator. logger and m may be nil.
func NewGenerator(cfg config.ComputationConfig, logger *slog.Logger, m *metrics.Metrics) *Generator {
	return &Generator{cfg: cfg, logger: logging.OrDiscard(logger), metrics: m}
}

type unitOutcome struct {
	unit     *domain.GeneratedUnitGeometry
	warnings []string
	err      error
}

// GenerateSectionalGeometries builds every unit independently; one unit's
// failure is reported as "section <n>: <reason>" and does not stop the others.
// The returned error is non-nil only when generation cannot proceed at all:
// the parent is not a single polygon or ctx is cancelled.
func (g *Generator) GenerateSectionalGeometries(ctx context.Context, parent geom.T, units []domain.UnitSpecification) (domain.GeometryGenerationResult, error) {
	res := domain.GeometryGenerationResult{
		Units:    []*domain.GeneratedUnitGeometry{},
		Errors:   []string{},
		Warnings: []string{},
	}

	parentRing, err := geometry.FromGeom(parent)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
		return res, err
	}
	res.ParentArea = parentRing.Area()

	outcomes := make([]unitOutcome, len(units))
	eg, egCtx := errgroup.WithContext(ctx)
	eg.SetLimit(max(g.cfg.Workers, 1))
	for i := range units {
		i := i
		eg.Go(func() error {
			if err := egCtx.Err(); err != nil {
				return err
			}
			u, warnings, err := g.generateUnit(units[i])
			outcomes[i] = unitOutcome{unit: u, warnings: warnings, err: err}
			return nil
		})
	}
	if err := eg.Wait(); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("generation cancelled: %v", err))
		return res, err
	}

	for i, o := range outcomes {
		res.Warnings = append(res.Warnings, o.warnings...)
		if o.err != nil {
			res.Errors = append(res.Errors, fmt.Sprintf("section %s: %v", sectionName(units[i], i), o.err))
			continue
		}
		res.Units = append(res.Units, o.unit)
	}

	res.Warnings = append(res.Warnings, prescreen(parentRing, res.Units)...)

	for _, u := range res.Units {
		if u.SectionType != domain.SectionCommon {
			res.TotalUnitArea += u.ComputedArea
		}
	}
	res.CommonPropertyArea = math.Max(0, res.ParentArea-res.TotalUnitArea)
	if res.TotalUnitArea > res.ParentArea+g.cfg.AreaDriftTolerance {
		res.Warnings = append(res.Warnings, fmt.Sprintf("unit areas exceed the parent parcel by %.2f m²", res.TotalUnitArea-res.ParentArea))
	}

	res.Success = len(res.Errors) == 0
	g.metrics.AddUnits(len(res.Units))
	g.logger.Info("sectional geometries generated",
		"units", len(res.Units),
		"failed", len(units)-len(res.Units),
		"parent_area_m2", res.ParentArea,
		"common_area_m2", res.CommonPropertyArea,
	)
	return res, nil
}

func sectionName(spec domain.UnitSpecification, idx int) string {
	if spec.SectionNumber != "" {
		return spec.SectionNumber
	}
	return fmt.Sprintf("#%d", idx+1)
}

func (g *Generator) generateUnit(spec domain.UnitSpecification) (*domain.GeneratedUnitGeometry, []string, error) {
	if err := validate.Struct(spec); err != nil {
		return nil, nil, domain.WrapEngineError(domain.ErrUnitSpecInvalid.Code, domain.ErrUnitSpecInvalid.Message, err)
	}
	if len(spec.Coordinates) < 3 {
		return nil, nil, fmt.Errorf("at least 3 coordinates required, got %d", len(spec.Coordinates))
	}
	ring, err := geometry.NewRing(spec.Coordinates)
	if err != nil {
		return nil, nil, err
	}
	area := ring.Area()
	if area <= geometry.CloseEpsilon {
		return nil, nil, domain.ErrZeroArea
	}

	u := &domain.GeneratedUnitGeometry{
		SectionNumber: spec.SectionNumber,
		SectionType:   spec.SectionType,
		FloorLevel:    spec.FloorLevel,
		Boundary:      ring.Points(),
		ComputedArea:  area,
		Perimeter:     ring.Perimeter(),
	}

	var warnings []string
	if spec.DeclaredArea != nil {
		declared := *spec.DeclaredArea
		diff := area - declared
		u.DeclaredArea = &declared
		u.AreaDifference = &diff
		if math.Abs(diff) > g.cfg.AreaDriftTolerance {
			warnings = append(warnings, fmt.Sprintf("section %s: computed area %.2f m² differs from declared %.2f m² by %.2f m²",
				spec.SectionNumber, area, declared, diff))
			g.logger.Warn("declared area drift",
				"section", spec.SectionNumber,
				"computed_m2", area,
				"declared_m2", declared,
				"difference_m2", diff,
			)
		}
	}

	if spec.Dimensions != nil {
		u.Dimensions = *spec.Dimensions
	} else {
		b := ring.Bounds()
		u.Dimensions = domain.Dimensions{
			Length: math.Max(b.Width(), b.Height()),
			Width:  math.Min(b.Width(), b.Height()),
		}
	}

	for i, eu := range spec.ExclusiveUseAreas {
		r, err := geometry.NewRing(eu.Coordinates)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("section %s: exclusive use area %d (%s) skipped: %v",
				spec.SectionNumber, i+1, eu.Type, err))
			continue
		}
		a := r.Area()
		u.ExclusiveUseAreas = append(u.ExclusiveUseAreas, domain.ExclusiveUseArea{
			Type:     eu.Type,
			Boundary: r.Points(),
			Area:     a,
		})
		u.ExclusiveUseTotal += a
	}

	return u, warnings, nil
}

// prescreen runs the envelope containment and same-floor envelope overlap
// checks and sets the two validation flags on each unit. It is a fast filter;
// the topology validator is authoritative.
func prescreen(parent geometry.Ring, units []*domain.GeneratedUnitGeometry) []string {
	var warnings []string
	pb := parent.Bounds()

	boxes := make([]geometry.Bounds, len(units))
	for i, u := range units {
		boxes[i] = geometry.BoundsOf(u.Boundary)
		u.ContainmentValidated = pb.Contains(boxes[i], prescreenTolerance)
		if !u.ContainmentValidated {
			warnings = append(warnings, fmt.Sprintf("section %s: bounding box extends beyond the parent parcel", u.SectionNumber))
		}
		u.OverlapValidated = true
	}

	for i := 0; i < len(units); i++ {
		for j := i + 1; j < len(units); j++ {
			if units[i].FloorLevel != units[j].FloorLevel {
				continue
			}
			if boxes[i].Overlaps(boxes[j], prescreenTolerance) {
				units[i].OverlapValidated = false
				units[j].OverlapValidated = false
				warnings = append(warnings, fmt.Sprintf("sections %s and %s: bounding boxes overlap on floor %d",
					units[i].SectionNumber, units[j].SectionNumber, units[i].FloorLevel))
			}
		}
	}
	return warnings
}

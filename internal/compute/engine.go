// Package compute runs the outside-figure computation over a submitted
// traverse: closure, area, optional adjustment, accuracy grading and the
// quality-control battery.
package compute

import (
	"context"
	"fmt"
	"log/slog"
	"math"

	"github.com/parcelgrid/survey-engine/internal/cogo"
	"github.com/parcelgrid/survey-engine/internal/config"
	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/logging"
	"github.com/parcelgrid/survey-engine/internal/metrics"
)

// QC check names.
const (
	CheckClosure      = "Closure Tolerance"
	CheckArea         = "Minimum Area"
	CheckAdjustment   = "Traverse Adjustment"
	CheckDuplicates   = "Duplicate Points"
	CheckCollinear    = "Collinear Points"
	CheckBounds       = "Coordinate Range"
	CheckControlPoint = "Control Point Agreement"
)

// FigureInput is a traverse submitted for computation. The traverse is
// expected to return to its first station; MeasuredDistances are per leg.
type FigureInput struct {
	Coordinates       []domain.Point `json:"coordinates"`
	SurveyMethod      string         `json:"survey_method,omitempty"`
	ControlPoints     []domain.Point `json:"control_points,omitempty"`
	MeasuredDistances []float64      `json:"measured_distances,omitempty"`
}

// Engine computes outside figures under one ComputationConfig.
type Engine struct {
	cfg     config.ComputationConfig
	logger  *slog.Logger
	metrics *metrics.Metrics
}

// NewEngine creates an Engine. logger and m may be nil.
func NewEngine(cfg config.ComputationConfig, logger *slog.Logger, m *metrics.Metrics) *Engine {
	return &Engine{cfg: cfg, logger: logging.OrDiscard(logger), metrics: m}
}

// ComputeOutsideFigure never fails outright: every problem is reported in
// the result's Errors or Warnings and Success is false only when errors exist.
func (e *Engine) ComputeOutsideFigure(ctx context.Context, in FigureInput) domain.ComputationResult {
	res := domain.ComputationResult{
		SurveyMethod: in.SurveyMethod,
		PointCount:   len(in.Coordinates),
		Errors:       []string{},
		Warnings:     []string{},
	}
	res.Area.Unit = domain.SquareMeters

	if err := ctx.Err(); err != nil {
		res.Errors = append(res.Errors, fmt.Sprintf("computation cancelled: %v", err))
		return res
	}
	if len(in.Coordinates) < 3 {
		res.Errors = append(res.Errors, fmt.Sprintf("%s, got %d", domain.ErrInsufficientPoints.Message, len(in.Coordinates)))
		e.finish(&res)
		return res
	}
	for i, p := range in.Coordinates {
		if math.IsNaN(p.X) || math.IsNaN(p.Y) || math.IsInf(p.X, 0) || math.IsInf(p.Y, 0) {
			res.Errors = append(res.Errors, fmt.Sprintf("point %d: %s", i+1, domain.ErrNonFiniteValue.Message))
		}
	}
	if len(res.Errors) > 0 {
		e.finish(&res)
		return res
	}

	pts := in.Coordinates
	tol := e.cfg.ClosureTolerance

	res.Closure = cogo.ComputeTraverseClosure(pts, in.MeasuredDistances, tol)
	closureCheck := domain.QCCheck{
		Name:     CheckClosure,
		Passed:   res.Closure.IsWithinTolerance,
		Severity: domain.SeverityError,
		Message: fmt.Sprintf("misclosure %.4f m (%s), tolerance %s",
			res.Closure.ClosureError, cogo.FormatRatio(res.Closure.FractionalError), cogo.FormatRatio(tol)),
	}
	res.QualityControl.Checks = append(res.QualityControl.Checks, closureCheck)
	if !closureCheck.Passed {
		res.Errors = append(res.Errors, "closure exceeds tolerance: "+closureCheck.Message)
	}

	area, err := cogo.ComputeArea(pts)
	res.Area = area
	areaCheck := domain.QCCheck{
		Name:     CheckArea,
		Passed:   err == nil && area.Area > 0,
		Severity: domain.SeverityError,
		Message:  fmt.Sprintf("area %.4f m²", area.Area),
	}
	res.QualityControl.Checks = append(res.QualityControl.Checks, areaCheck)
	if err != nil {
		res.Errors = append(res.Errors, err.Error())
	}

	if res.Closure.ClosureError > e.cfg.AdjustmentTrigger && len(in.MeasuredDistances) > 0 {
		res.Adjustment = e.adjust(pts, in.MeasuredDistances, res.Closure)
		check := domain.QCCheck{Name: CheckAdjustment, Passed: res.Adjustment.Improved}
		switch {
		case res.Adjustment.Error != "":
			check.Severity = domain.SeverityWarning
			check.Message = res.Adjustment.Error
			res.Warnings = append(res.Warnings, "traverse adjustment failed: "+res.Adjustment.Error)
		case res.Adjustment.Improved:
			check.Severity = domain.SeverityInfo
			check.Message = fmt.Sprintf("adjusted misclosure %.4f m", res.Adjustment.Closure.ClosureError)
		default:
			check.Severity = domain.SeverityWarning
			check.Message = "adjustment did not reduce the misclosure"
			res.Warnings = append(res.Warnings, check.Message)
		}
		res.QualityControl.Checks = append(res.QualityControl.Checks, check)
	}

	acc := cogo.AssessAccuracy(res.Closure, tol)
	res.Accuracy = &acc

	for _, check := range []domain.QCCheck{
		duplicateCheck(pts, e.cfg.DuplicateTolerance),
		collinearCheck(pts, e.cfg.CollinearTolerance),
		boundsCheck(pts, e.cfg.JurisdictionBounds),
	} {
		res.QualityControl.Checks = append(res.QualityControl.Checks, check)
		if !check.Passed {
			res.Warnings = append(res.Warnings, check.Message)
		}
	}
	if len(in.ControlPoints) > 0 {
		check := controlPointCheck(pts, in.ControlPoints, e.cfg.DuplicateTolerance)
		res.QualityControl.Checks = append(res.QualityControl.Checks, check)
		if !check.Passed {
			res.Warnings = append(res.Warnings, check.Message)
		}
	}

	res.QualityControl.Passed = res.Closure.IsWithinTolerance && res.Area.Area > 0
	for _, c := range res.QualityControl.Checks {
		if c.Severity == domain.SeverityError && !c.Passed {
			res.QualityControl.Passed = false
		}
	}

	e.finish(&res)
	return res
}

func (e *Engine) finish(res *domain.ComputationResult) {
	res.Success = len(res.Errors) == 0
	e.metrics.ObserveComputation(res.Success, res.Closure.FractionalError)

	attrs := []any{
		"points", res.PointCount,
		"success", res.Success,
		"misclosure_m", res.Closure.ClosureError,
		"auto_closed", res.Closure.AutoClosed,
		"area_m2", res.Area.Area,
		"errors", len(res.Errors),
		"warnings", len(res.Warnings),
	}
	if res.Accuracy != nil {
		attrs = append(attrs, "grade", res.Accuracy.Grade)
	}
	e.logger.Info("outside figure computed", attrs...)
}

// adjust runs the compass-rule adjustment and reports whether the recomputed
// closure improved. An open ring is closed back to its first station first.
func (e *Engine) adjust(pts []domain.Point, measured []float64, before domain.TraverseClosure) *domain.AdjustmentOutcome {
	out := &domain.AdjustmentOutcome{Attempted: true}

	st, _ := cogo.CloseTraverse(pts)
	adjusted, err := cogo.LeastSquaresAdjustment(st[0], cogo.ObservationsFrom(st, measured))
	if err != nil {
		out.Error = err.Error()
		e.logger.Warn("traverse adjustment failed", "error", err)
		return out
	}

	ring := append(append([]domain.Point{}, adjusted...), adjusted[0])
	closure := cogo.ComputeClosure(ring, e.cfg.ClosureTolerance)
	out.AdjustedPoints = ring
	out.Closure = &closure
	out.Improved = closure.ClosureError < before.ClosureError
	return out
}

// Package cogo implements the coordinate-geometry primitives of land
// surveying: bearing and distance, traverse closure, polygon area, compass-rule
// traverse adjustment and accuracy grading.
package cogo

import (
	"fmt"
	"math"

	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/geometry"
)

// Accuracy grade thresholds on fractional closure error.
const (
	ExcellentThreshold = 0.00005
	GoodThreshold      = 0.0001
)

// BearingDistance returns the grid bearing (degrees clockwise from north,
// in [0,360)) and distance from a to b.
func BearingDistance(a, b domain.Point) domain.BearingDistance {
	dx, dy := b.X-a.X, b.Y-a.Y
	return domain.BearingDistance{
		Bearing:  normalizeBearing(math.Atan2(dx, dy) * 180 / math.Pi),
		Distance: math.Hypot(dx, dy),
	}
}

// Offset applies a bearing/distance leg to p.
func Offset(p domain.Point, bearing, distance float64) domain.Point {
	rad := bearing * math.Pi / 180
	return domain.Point{X: p.X + distance*math.Sin(rad), Y: p.Y + distance*math.Cos(rad)}
}

func normalizeBearing(deg float64) float64 {
	deg = math.Mod(deg, 360)
	if deg < 0 {
		deg += 360
	}
	if deg >= 360 {
		deg = 0
	}
	return deg
}

// ReobservationLimit is the largest gap between the final and first points,
// as a fraction of the traverse length, for which the final point is read as
// an observed return to the first station. A wider gap is a closing leg.
const ReobservationLimit = 0.01

// CloseTraverse returns the stations of the traverse through points, ending
// with the return to the first station. A final point that coincides with the
// first, carries the first point's ID, or lies within ReobservationLimit of it
// is that return. Otherwise the ring is open: the first point is appended and
// autoClosed is true.
func CloseTraverse(points []domain.Point) (stations []domain.Point, autoClosed bool) {
	stations = append([]domain.Point(nil), points...)
	if len(points) < 3 {
		return stations, false
	}
	first, last := points[0], points[len(points)-1]
	if geometry.IsClosed(points) || (first.ID != "" && first.ID == last.ID) {
		return stations, false
	}
	var length float64
	for i := 1; i < len(points); i++ {
		length += BearingDistance(points[i-1], points[i]).Distance
	}
	if gap := BearingDistance(last, first).Distance; length > 0 && gap <= ReobservationLimit*length {
		return stations, false
	}
	return append(stations, domain.Point{X: first.X, Y: first.Y, ID: first.ID}), true
}

// ComputeClosure measures the misclosure of a traverse from its coordinates
// alone. See ComputeTraverseClosure.
func ComputeClosure(points []domain.Point, tolerance float64) domain.TraverseClosure {
	return ComputeTraverseClosure(points, nil, tolerance)
}

// ComputeTraverseClosure measures the misclosure of a traverse that is
// expected to end where it began. An open ring is closed first (see
// CloseTraverse). Legs keep their computed bearings; a positive measured
// distance, indexed by leg, replaces the computed length and shifts every
// later station along the leg. The misclosure is the vector from the traverse
// end back to the start. Fewer than 3 points yields a zero result with Valid
// false.
func ComputeTraverseClosure(points []domain.Point, measured []float64, tolerance float64) domain.TraverseClosure {
	if len(points) < 3 {
		return domain.TraverseClosure{Tolerance: tolerance}
	}
	st, autoClosed := CloseTraverse(points)

	var perimeter, shiftX, shiftY float64
	for i := 1; i < len(st); i++ {
		dx, dy := st[i].X-st[i-1].X, st[i].Y-st[i-1].Y
		d := math.Hypot(dx, dy)
		if i-1 < len(measured) && measured[i-1] > 0 && d > 0 {
			k := measured[i-1]/d - 1
			shiftX += dx * k
			shiftY += dy * k
			d = measured[i-1]
		}
		perimeter += d
	}

	last := st[len(st)-1]
	end := domain.Point{X: last.X + shiftX, Y: last.Y + shiftY}
	mis := BearingDistance(end, st[0])

	c := domain.TraverseClosure{
		Valid:           true,
		AutoClosed:      autoClosed,
		ClosureError:    mis.Distance,
		ClosureDistance: mis.Distance,
		ClosureBearing:  mis.Bearing,
		Perimeter:       perimeter,
		Tolerance:       tolerance,
	}
	if mis.Distance > 0 && perimeter > 0 {
		c.ClosureErrorRatio = perimeter / mis.Distance
		c.FractionalError = mis.Distance / perimeter
	}
	c.IsWithinTolerance = c.FractionalError <= tolerance
	return c
}

// ComputeArea returns the shoelace area and perimeter of the ring through
// points, auto-closing it. A zero area is returned together with ErrZeroArea.
func ComputeArea(points []domain.Point) (domain.AreaResult, error) {
	if len(points) < 3 {
		return domain.AreaResult{Unit: domain.SquareMeters}, domain.ErrInsufficientPoints
	}
	r, err := geometry.NewRing(points)
	if err != nil {
		return domain.AreaResult{Unit: domain.SquareMeters}, err
	}
	res := domain.AreaResult{
		Area:      r.Area(),
		Unit:      domain.SquareMeters,
		Perimeter: r.Perimeter(),
	}
	if res.Area <= geometry.CloseEpsilon {
		res.Area = 0
		return res, domain.ErrZeroArea
	}
	return res, nil
}

// LeastSquaresAdjustment distributes a traverse's misclosure across its legs in
// proportion to leg length (the compass rule) and returns the adjusted station
// coordinates, origin first. Observations must form a single chain in which
// each leg starts where the previous one ended and the last returns to the
// first station. The caller is responsible for re-checking the adjusted
// closure; improvement is not guaranteed.
func LeastSquaresAdjustment(origin domain.Point, observations []domain.Observation) ([]domain.Point, error) {
	if len(observations) < 3 {
		return nil, domain.WrapEngineError(domain.ErrAdjustmentFailed.Code, domain.ErrAdjustmentFailed.Message,
			domain.ErrInsufficientPoints)
	}

	var total float64
	for i, o := range observations {
		if !(o.Distance > 0) || math.IsInf(o.Distance, 0) || math.IsNaN(o.Bearing) {
			return nil, domain.NewEngineError(domain.ErrAdjustmentFailed.Code,
				fmt.Sprintf("%s: leg %d has invalid distance %v", domain.ErrAdjustmentFailed.Message, i, o.Distance))
		}
		if i > 0 && observations[i-1].To != o.From {
			return nil, domain.NewEngineError(domain.ErrBrokenTraverse.Code,
				fmt.Sprintf("%s: leg %d starts at %q, previous ended at %q",
					domain.ErrBrokenTraverse.Message, i, o.From, observations[i-1].To))
		}
		total += o.Distance
	}
	if first, last := observations[0], observations[len(observations)-1]; last.To != first.From {
		return nil, domain.NewEngineError(domain.ErrBrokenTraverse.Code,
			fmt.Sprintf("%s: traverse ends at %q, expected %q", domain.ErrBrokenTraverse.Message, last.To, first.From))
	}

	// Unadjusted latitudes/departures accumulate the misclosure.
	raw := make([]domain.Point, len(observations)+1)
	raw[0] = origin
	for i, o := range observations {
		raw[i+1] = Offset(raw[i], o.Bearing, o.Distance)
	}
	end := raw[len(raw)-1]
	errX, errY := end.X-origin.X, end.Y-origin.Y

	out := make([]domain.Point, len(observations))
	out[0] = domain.Point{X: origin.X, Y: origin.Y, ID: observations[0].From}
	var cum float64
	for i := 1; i < len(observations); i++ {
		cum += observations[i-1].Distance
		w := cum / total
		out[i] = domain.Point{
			X:  raw[i].X - errX*w,
			Y:  raw[i].Y - errY*w,
			ID: observations[i].From,
		}
	}
	return out, nil
}

// ObservationsFrom builds the legs of a closed traverse from consecutive
// points, where the final point is the observed return to the first station.
// Measured distances, indexed by leg, replace computed ones where positive.
func ObservationsFrom(points []domain.Point, measured []float64) []domain.Observation {
	if len(points) < 2 {
		return nil
	}
	n := len(points) - 1
	obs := make([]domain.Observation, n)
	for i := 0; i < n; i++ {
		bd := BearingDistance(points[i], points[i+1])
		if i < len(measured) && measured[i] > 0 {
			bd.Distance = measured[i]
		}
		to := i + 1
		if to == n {
			to = 0
		}
		obs[i] = domain.Observation{
			From:     stationName(points[i], i),
			To:       stationName(points[to], to),
			Distance: bd.Distance,
			Bearing:  bd.Bearing,
		}
	}
	return obs
}

func stationName(p domain.Point, idx int) string {
	if p.ID != "" {
		return p.ID
	}
	return fmt.Sprintf("P%d", idx+1)
}

// AssessAccuracy grades a closure against standard, the largest acceptable
// fractional error.
func AssessAccuracy(closure domain.TraverseClosure, standard float64) domain.AccuracyAssessment {
	a := domain.AccuracyAssessment{
		FractionalError: closure.FractionalError,
		Standard:        standard,
	}
	if !closure.Valid {
		a.Grade = domain.GradePoor
		a.Message = "closure could not be computed"
		return a
	}

	fe := closure.FractionalError
	a.MeetsStandard = fe <= standard
	switch {
	case fe <= ExcellentThreshold:
		a.Grade = domain.GradeExcellent
	case fe <= GoodThreshold && a.MeetsStandard:
		a.Grade = domain.GradeGood
	case a.MeetsStandard:
		a.Grade = domain.GradeAcceptable
	default:
		a.Grade = domain.GradePoor
	}

	if a.MeetsStandard {
		a.Message = fmt.Sprintf("closure %s meets the %s standard", FormatRatio(fe), FormatRatio(standard))
	} else {
		a.Message = fmt.Sprintf("closure %s fails the %s standard", FormatRatio(fe), FormatRatio(standard))
	}
	return a
}

// FormatRatio renders a fractional error in survey notation, "1:N".
func FormatRatio(fractional float64) string {
	if fractional <= 0 {
		return "1:∞"
	}
	return fmt.Sprintf("1:%.0f", 1/fractional)
}

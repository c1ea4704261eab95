// Package domain defines the core value types for the survey computation engine.
package domain

import "time"

// Point is a 2D coordinate in a projected reference system (easting, northing).
type Point struct {
	X  float64 `json:"x"`
	Y  float64 `json:"y"`
	ID string  `json:"id,omitempty"`
}

// ParsedCoordinate is a point produced by coordinate parsing.
type ParsedCoordinate struct {
	Point
	Z           *float64 `json:"z,omitempty"`
	Label       string   `json:"label,omitempty"`
	Description string   `json:"description,omitempty"`
	// Zone is the UTM zone designator ("35J") when the source notation was UTM.
	Zone string `json:"zone,omitempty"`
	// Line is the 1-based source line the coordinate was read from, 0 if unknown.
	Line int `json:"line,omitempty"`
}

// Points strips parse metadata from a coordinate list.
func Points(coords []ParsedCoordinate) []Point {
	out := make([]Point, len(coords))
	for i, c := range coords {
		out[i] = c.Point
	}
	return out
}

// TraverseClosure describes the misclosure of a traverse.
//
// IsWithinTolerance == (FractionalError <= Tolerance) whenever Valid is true.
// ClosureErrorRatio is N in "1:N"; it is 0 for an exact closure.
type TraverseClosure struct {
	Valid bool `json:"valid"`
	// AutoClosed is set when the input ring was open and closed back to its
	// first station before measuring.
	AutoClosed        bool    `json:"auto_closed,omitempty"`
	ClosureError      float64 `json:"closure_error"`
	ClosureErrorRatio float64 `json:"closure_error_ratio"`
	FractionalError   float64 `json:"fractional_error"`
	ClosureDistance   float64 `json:"closure_distance"`
	ClosureBearing    float64 `json:"closure_bearing"`
	Perimeter         float64 `json:"perimeter"`
	IsWithinTolerance bool    `json:"is_within_tolerance"`
	Tolerance         float64 `json:"tolerance"`
}

// AreaUnit names the unit of an area value.
type AreaUnit string

const (
	SquareMeters AreaUnit = "square_meters"
	Hectares     AreaUnit = "hectares"
)

// AreaResult holds a polygon area and its perimeter.
type AreaResult struct {
	Area      float64  `json:"area"`
	Unit      AreaUnit `json:"unit"`
	Perimeter float64  `json:"perimeter"`
}

// BearingDistance is a single traverse leg.
type BearingDistance struct {
	Bearing  float64 `json:"bearing"`
	Distance float64 `json:"distance"`
}

// Observation is a measured traverse leg between two named stations.
type Observation struct {
	From     string  `json:"from"`
	To       string  `json:"to"`
	Distance float64 `json:"distance"`
	Bearing  float64 `json:"bearing"`
}

// AccuracyGrade ranks a traverse closure.
type AccuracyGrade string

const (
	GradeExcellent  AccuracyGrade = "excellent"
	GradeGood       AccuracyGrade = "good"
	GradeAcceptable AccuracyGrade = "acceptable"
	GradePoor       AccuracyGrade = "poor"
)

// AccuracyAssessment grades a closure against the regulatory standard.
type AccuracyAssessment struct {
	MeetsStandard   bool          `json:"meets_standard"`
	Grade           AccuracyGrade `json:"grade"`
	FractionalError float64       `json:"fractional_error"`
	Standard        float64       `json:"standard"`
	Message         string        `json:"message"`
}

// Severity classifies a finding.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// QCCheck is one quality-control check in a computation.
type QCCheck struct {
	Name     string   `json:"name"`
	Passed   bool     `json:"passed"`
	Severity Severity `json:"severity"`
	Message  string   `json:"message"`
}

// QualityControl aggregates the QC battery of a computation.
type QualityControl struct {
	Passed bool      `json:"passed"`
	Checks []QCCheck `json:"checks"`
}

// AdjustmentOutcome records a traverse adjustment attempt.
type AdjustmentOutcome struct {
	Attempted      bool             `json:"attempted"`
	Improved       bool             `json:"improved"`
	AdjustedPoints []Point          `json:"adjusted_points,omitempty"`
	Closure        *TraverseClosure `json:"closure,omitempty"`
	Error          string           `json:"error,omitempty"`
}

// ComputationResult is the output of an outside-figure computation.
type ComputationResult struct {
	Success        bool                `json:"success"`
	SurveyMethod   string              `json:"survey_method,omitempty"`
	PointCount     int                 `json:"point_count"`
	Closure        TraverseClosure     `json:"closure"`
	Area           AreaResult          `json:"area"`
	Adjustment     *AdjustmentOutcome  `json:"adjustment,omitempty"`
	Accuracy       *AccuracyAssessment `json:"accuracy,omitempty"`
	QualityControl QualityControl      `json:"quality_control"`
	Errors         []string            `json:"errors"`
	Warnings       []string            `json:"warnings"`
}

// SectionType classifies a sectional unit.
type SectionType string

const (
	SectionResidential SectionType = "residential"
	SectionCommercial  SectionType = "commercial"
	SectionParking     SectionType = "parking"
	SectionStorage     SectionType = "storage"
	SectionCommon      SectionType = "common"
	SectionOther       SectionType = "other"
)

// Valid reports whether t is a known section type.
func (t SectionType) Valid() bool {
	switch t {
	case SectionResidential, SectionCommercial, SectionParking, SectionStorage, SectionCommon, SectionOther:
		return true
	}
	return false
}

// Dimensions are the bounding length and width of a unit.
type Dimensions struct {
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
}

// ExclusiveUseSpec is an input exclusive-use area (balcony, garden, parking bay).
type ExclusiveUseSpec struct {
	Type        string  `json:"type" validate:"required"`
	Coordinates []Point `json:"coordinates"`
}

// UnitSpecification is the input for one sectional unit.
type UnitSpecification struct {
	SectionNumber     string             `json:"section_number" validate:"required,max=64"`
	SectionType       SectionType        `json:"section_type" validate:"required,oneof=residential commercial parking storage common other"`
	FloorLevel        int                `json:"floor_level" validate:"gte=-10,lte=200"`
	Coordinates       []Point            `json:"coordinates"`
	DeclaredArea      *float64           `json:"declared_area,omitempty" validate:"omitempty,gte=0"`
	Dimensions        *Dimensions        `json:"dimensions,omitempty"`
	ExclusiveUseAreas []ExclusiveUseSpec `json:"exclusive_use_areas,omitempty" validate:"dive"`
}

// ExclusiveUseArea is a generated exclusive-use polygon.
type ExclusiveUseArea struct {
	Type     string  `json:"type"`
	Boundary []Point `json:"boundary"`
	Area     float64 `json:"area"`
}

// GeneratedUnitGeometry is the generated polygon of a sectional unit.
//
// ContainmentValidated and OverlapValidated are only written by the generator's
// pre-screen and afterwards by the topology validator.
type GeneratedUnitGeometry struct {
	SectionNumber        string             `json:"section_number"`
	SectionType          SectionType        `json:"section_type"`
	FloorLevel           int                `json:"floor_level"`
	Boundary             []Point            `json:"boundary"`
	ComputedArea         float64            `json:"computed_area"`
	Perimeter            float64            `json:"perimeter"`
	DeclaredArea         *float64           `json:"declared_area,omitempty"`
	AreaDifference       *float64           `json:"area_difference,omitempty"`
	Dimensions           Dimensions         `json:"dimensions"`
	ExclusiveUseAreas    []ExclusiveUseArea `json:"exclusive_use_areas,omitempty"`
	ExclusiveUseTotal    float64            `json:"exclusive_use_total"`
	ContainmentValidated bool               `json:"containment_validated"`
	OverlapValidated     bool               `json:"overlap_validated"`
}

// GeometryGenerationResult is the output of sectional geometry generation.
type GeometryGenerationResult struct {
	Success            bool                     `json:"success"`
	ParentArea         float64                  `json:"parent_area"`
	Units              []*GeneratedUnitGeometry `json:"units"`
	TotalUnitArea      float64                  `json:"total_unit_area"`
	CommonPropertyArea float64                  `json:"common_property_area"`
	Errors             []string                 `json:"errors"`
	Warnings           []string                 `json:"warnings"`
}

// QuotaUnit is the input of quota calculation.
type QuotaUnit struct {
	ID            string      `json:"id"`
	SectionNumber string      `json:"section_number"`
	Area          float64     `json:"area"`
	SectionType   SectionType `json:"section_type"`
}

// QuotaResult is one unit's participation quota.
type QuotaResult struct {
	UnitID          string  `json:"unit_id"`
	SectionNumber   string  `json:"section_number"`
	Quota           float64 `json:"quota"`
	Area            float64 `json:"area"`
	CommonAreaShare float64 `json:"common_area_share"`
}

// QuotaCalculationResult is the output of quota calculation or override.
type QuotaCalculationResult struct {
	Success           bool          `json:"success"`
	IsValid           bool          `json:"is_valid"`
	Quotas            []QuotaResult `json:"quotas"`
	TotalQuota        float64       `json:"total_quota"`
	TotalArea         float64       `json:"total_area"`
	AdjustmentApplied bool          `json:"adjustment_applied"`
	AdjustedSection   string        `json:"adjusted_section,omitempty"`
	AdjustmentAmount  float64       `json:"adjustment_amount"`
	Errors            []string      `json:"errors"`
	Warnings          []string      `json:"warnings"`
}

// QuotaSumCheck is the result of re-verifying a persisted quota set.
type QuotaSumCheck struct {
	IsValid    bool    `json:"is_valid"`
	Total      float64 `json:"total"`
	Difference float64 `json:"difference"`
	Message    string  `json:"message"`
}

// TopologyErrorType classifies a topology finding.
type TopologyErrorType string

const (
	TopologyOverlap         TopologyErrorType = "overlap"
	TopologyContainment     TopologyErrorType = "containment"
	TopologyGap             TopologyErrorType = "gap"
	TopologyInvalidGeometry TopologyErrorType = "invalid_geometry"
	TopologyTouching        TopologyErrorType = "touching_boundary"
)

// LocationKind is the shape of an error location.
type LocationKind string

const (
	LocationPoint   LocationKind = "point"
	LocationPolygon LocationKind = "polygon"
)

// ErrorLocation is a renderable map overlay for a finding.
type ErrorLocation struct {
	Kind        LocationKind `json:"kind"`
	Coordinates []Point      `json:"coordinates"`
	Description string       `json:"description"`
}

// TopologyError is a single topology finding.
type TopologyError struct {
	Type           TopologyErrorType `json:"type"`
	Severity       Severity          `json:"severity"`
	Description    string            `json:"description"`
	SectionNumbers []string          `json:"section_numbers,omitempty"`
	FloorLevel     *int              `json:"floor_level,omitempty"`
	AffectedArea   float64           `json:"affected_area"`
	Location       *ErrorLocation    `json:"location,omitempty"`
}

// Priority ranks a correction suggestion.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// CorrectionSuggestion is a human-actionable fix for a finding.
type CorrectionSuggestion struct {
	ErrorType      TopologyErrorType `json:"error_type"`
	Action         string            `json:"action"`
	Description    string            `json:"description"`
	Priority       Priority          `json:"priority"`
	SectionNumbers []string          `json:"section_numbers,omitempty"`
}

// TopologySummary counts findings by kind.
type TopologySummary struct {
	UnitCount        int     `json:"unit_count"`
	FloorCount       int     `json:"floor_count"`
	Overlaps         int     `json:"overlaps"`
	ContainmentFails int     `json:"containment_failures"`
	Gaps             int     `json:"gaps"`
	InvalidGeometry  int     `json:"invalid_geometry"`
	SharedWalls      int     `json:"shared_walls"`
	TotalGapArea     float64 `json:"total_gap_area"`
}

// SchemeValidationReport is the output of topology validation.
type SchemeValidationReport struct {
	IsValid     bool                   `json:"is_valid"`
	Errors      []TopologyError        `json:"errors"`
	Warnings    []TopologyError        `json:"warnings"`
	Notices     []TopologyError        `json:"notices"`
	Suggestions []CorrectionSuggestion `json:"suggestions"`
	Summary     TopologySummary        `json:"summary"`
}

// SealFacts are the computed facts bound by a seal.
type SealFacts struct {
	SectionCount     int       `json:"section_count"`
	TotalUnitArea    float64   `json:"total_unit_area"`
	ParentParcelArea float64   `json:"parent_parcel_area"`
	GeneratedAt      time.Time `json:"generated_at"`
}

// SealResult is the immutable seal over a fact set.
type SealResult struct {
	SealHash string    `json:"seal_hash"`
	SealedAt time.Time `json:"sealed_at"`
}

// SealRecord is a seal stored alongside the facts it was computed from.
type SealRecord struct {
	PlanID string     `json:"plan_id"`
	Facts  SealFacts  `json:"facts"`
	Seal   SealResult `json:"seal"`
}

// SealVerification is the outcome of verifying a seal.
type SealVerification struct {
	IsValid      bool   `json:"is_valid"`
	ComputedHash string `json:"computed_hash"`
	Error        string `json:"error,omitempty"`
}

// GateDecision is the result of evaluating a stage precondition.
type GateDecision struct {
	Allow    bool
	Blockers []string
}

// ComputationSnapshot captures a stage output for a survey plan.
type ComputationSnapshot struct {
	ID           int64
	PlanID       string
	Stage        string
	SnapshotJSON string
	Checksum     string
	CreatedAt    int64
}

// AuditRecord logs an engine event for a survey plan.
type AuditRecord struct {
	ID         string
	PlanID     string
	Category   string
	Actor      string
	Action     string
	DetailJSON string
	Severity   string
	CreatedAt  int64
}

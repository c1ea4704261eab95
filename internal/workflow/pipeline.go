package workflow

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/parcelgrid/survey-engine/internal/compute"
	"github.com/parcelgrid/survey-engine/internal/config"
	"github.com/parcelgrid/survey-engine/internal/coords"
	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/geometry"
	"github.com/parcelgrid/survey-engine/internal/logging"
	"github.com/parcelgrid/survey-engine/internal/metrics"
	"github.com/parcelgrid/survey-engine/internal/quota"
	"github.com/parcelgrid/survey-engine/internal/review"
	"github.com/parcelgrid/survey-engine/internal/seal"
	"github.com/parcelgrid/survey-engine/internal/sectional"
	"github.com/parcelgrid/survey-engine/internal/store"
	"github.com/parcelgrid/survey-engine/internal/topology"
)

// PlanInput is everything needed to take a survey plan from raw parent
// coordinates to a seal.
type PlanInput struct {
	// PlanID is generated when empty.
	PlanID string
	Actor  string

	// ParentFile names the coordinate file; its extension selects the parser.
	ParentFile    string
	ParentData    []byte
	ParseOptions  coords.ParseOptions
	SurveyMethod  string
	ControlPoints []domain.Point

	// MeasuredDistances are per traverse leg, used for adjustment.
	MeasuredDistances []float64

	Units           []domain.UnitSpecification
	QuotaOptions    quota.Options
	TopologyOptions topology.Options

	// Seal requests the seal stage once every gate passes.
	Seal bool
}

// PlanOutcome collects every stage output produced so far.
type PlanOutcome struct {
	PlanID string `json:"plan_id"`
	// Stage is the last stage that ran.
	Stage       Stage                           `json:"stage"`
	Parse       coords.ParseResult              `json:"parse"`
	Computation domain.ComputationResult        `json:"computation"`
	Generation  domain.GeometryGenerationResult `json:"generation"`
	Quotas      domain.QuotaCalculationResult   `json:"quotas"`
	Topology    domain.SchemeValidationReport   `json:"topology"`
	Seal        *domain.SealRecord              `json:"seal,omitempty"`
	// Blockers explains why the pipeline stopped before sealing.
	Blockers []string `json:"blockers,omitempty"`

	ran map[Stage]bool
}

// Readiness exposes the outputs of the stages that ran to the blocker checker.
func (o *PlanOutcome) Readiness() review.SealReadiness {
	var r review.SealReadiness
	if o.ran[StageCompute] {
		r.Computation = &o.Computation
	}
	if o.ran[StageGenerate] {
		r.Generation = &o.Generation
	}
	if o.ran[StageApportion] {
		r.Quotas = &o.Quotas
	}
	if o.ran[StageValidate] {
		r.Topology = &o.Topology
	}
	return r
}

// Sealed reports whether the plan reached a seal.
func (o *PlanOutcome) Sealed() bool { return o.Seal != nil }

// Pipeline wires the stage components under one configuration.
type Pipeline struct {
	cfg       config.ComputationConfig
	logger    *slog.Logger
	metrics   *metrics.Metrics
	engine    *compute.Engine
	generator *sectional.Generator
	validator *topology.Validator
	sealer    *seal.Sealer
	gates     *StageGateRegistry
	parsers   map[coords.Format]coords.FormatParser
	now       func() time.Time

	db           *sql.DB
	sealRepo     *store.SealRepo
	snapshotRepo *store.SnapshotRepo
	auditRepo    *store.AuditRepo
}

// NewPipeline creates a pipeline. logger and m may be nil.
func NewPipeline(cfg config.ComputationConfig, logger *slog.Logger, m *metrics.Metrics) *Pipeline {
	logger = logging.OrDiscard(logger)
	return &Pipeline{
		cfg:       cfg,
		logger:    logger,
		metrics:   m,
		engine:    compute.NewEngine(cfg, logger, m),
		generator: sectional.NewGenerator(cfg, logger, m),
		validator: topology.NewValidator(logger, m),
		sealer:    seal.NewSealer(logger, m),
		gates:     NewStageGateRegistry(),
		parsers:   map[coords.Format]coords.FormatParser{},
		now:       time.Now,
	}
}

// WithStore persists snapshots, audit records and seals to db.
func (p *Pipeline) WithStore(db *sql.DB) *Pipeline {
	p.db = db
	p.sealRepo = &store.SealRepo{}
	p.snapshotRepo = &store.SnapshotRepo{}
	p.auditRepo = &store.AuditRepo{}
	return p
}

// WithClock replaces the time source for audit records and seals.
func (p *Pipeline) WithClock(now func() time.Time) *Pipeline {
	p.now = now
	p.sealer.WithClock(now)
	return p
}

// Gates returns the registry so callers can replace stage gates.
func (p *Pipeline) Gates() *StageGateRegistry { return p.gates }

// RegisterParser adds a coordinate parser, e.g. for shapefiles.
func (p *Pipeline) RegisterParser(f coords.Format, parser coords.FormatParser) {
	p.parsers[f] = parser
}

// Run executes the stages in order. A stage whose gate blocks stops the run
// and the outcome carries the blockers; the returned error is reserved for
// cancellation, bad input that prevents a stage from running at all, and
// store failures.
func (p *Pipeline) Run(ctx context.Context, in PlanInput) (*PlanOutcome, error) {
	out := &PlanOutcome{PlanID: in.PlanID, ran: map[Stage]bool{}}
	if out.PlanID == "" {
		out.PlanID = uuid.NewString()
	}
	if in.Actor == "" {
		in.Actor = "system"
	}
	log := p.logger.With("plan_id", out.PlanID)

	stage := StageParse
	for {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		if err := p.runStage(ctx, stage, in, out); err != nil {
			return out, fmt.Errorf("stage %s: %w", stage, err)
		}
		out.Stage = stage
		out.ran[stage] = true
		log.Debug("stage complete", "stage", stage)

		if err := p.persistStage(ctx, in.Actor, stage, out); err != nil {
			return out, err
		}
		if stage == StageSeal {
			return out, nil
		}

		gate, err := p.gates.Get(stage)
		if err != nil {
			return out, err
		}
		decision, err := gate.Evaluate(ctx, out)
		if err != nil {
			return out, fmt.Errorf("evaluate gate: %w", err)
		}
		if !decision.Allow {
			out.Blockers = decision.Blockers
			log.Warn("plan blocked", "stage", stage, "gate", gate.Name(), "blockers", len(decision.Blockers))
			if err := p.audit(ctx, p.db, in.Actor, out.PlanID, "workflow", "blocked", domain.SeverityWarning,
				map[string]any{"stage": stage, "gate": gate.Name(), "blockers": decision.Blockers}); err != nil {
				return out, err
			}
			return out, nil
		}
		if stage == StageValidate && !in.Seal {
			return out, nil
		}

		next, err := Next(stage)
		if err != nil {
			return out, err
		}
		if !IsValidTransition(stage, next) {
			return out, domain.NewEngineError(
				domain.ErrInvalidTransition.Code,
				fmt.Sprintf("illegal transition %s -> %s", stage, next),
			)
		}
		stage = next
	}
}

func (p *Pipeline) runStage(ctx context.Context, stage Stage, in PlanInput, out *PlanOutcome) error {
	switch stage {
	case StageParse:
		router := coords.NewRouter(p.cfg, in.ParseOptions, p.logger)
		for f, parser := range p.parsers {
			router.Register(f, parser)
		}
		res, err := router.Parse(ctx, in.ParentFile, in.ParentData)
		if err != nil {
			return err
		}
		out.Parse = res

	case StageCompute:
		out.Computation = p.engine.ComputeOutsideFigure(ctx, compute.FigureInput{
			Coordinates:       domain.Points(out.Parse.Coordinates),
			SurveyMethod:      in.SurveyMethod,
			ControlPoints:     in.ControlPoints,
			MeasuredDistances: in.MeasuredDistances,
		})

	case StageGenerate:
		parent, err := geometry.PolygonGeom(out.parentPoints())
		if err != nil {
			return err
		}
		res, err := p.generator.GenerateSectionalGeometries(ctx, parent, in.Units)
		if err != nil {
			return err
		}
		out.Generation = res

	case StageApportion:
		opts := in.QuotaOptions
		if opts == (quota.Options{}) {
			opts = quota.DefaultOptions()
			opts.Precision = p.cfg.Precision
		}
		out.Quotas = quota.CalculateParticipationQuotas(quotaUnits(out.Generation.Units), out.Generation.CommonPropertyArea, opts)

	case StageValidate:
		parent, err := geometry.NewRing(out.parentPoints())
		if err != nil {
			return err
		}
		opts := in.TopologyOptions
		if opts == (topology.Options{}) {
			opts = topology.DefaultOptions()
		}
		rep, err := p.validator.ValidateSchemeTopology(ctx, parent, sectional.GroupByFloor(out.Generation.Units), opts)
		if err != nil {
			return err
		}
		out.Topology = rep

	case StageSeal:
		rec, err := p.sealer.SealSurveyPlan(out.PlanID, domain.SealFacts{
			SectionCount:     len(out.Generation.Units),
			TotalUnitArea:    out.Generation.TotalUnitArea,
			ParentParcelArea: out.Computation.Area.Area,
		})
		if err != nil {
			return err
		}
		out.Seal = &rec

	default:
		return domain.NewEngineError(domain.ErrInvalidTransition.Code, fmt.Sprintf("unknown stage %s", stage))
	}
	return nil
}

// parentPoints prefers the adjusted traverse when adjustment improved closure.
func (o *PlanOutcome) parentPoints() []domain.Point {
	if adj := o.Computation.Adjustment; adj != nil && adj.Improved && len(adj.AdjustedPoints) >= 3 {
		return adj.AdjustedPoints
	}
	return domain.Points(o.Parse.Coordinates)
}

func quotaUnits(units []*domain.GeneratedUnitGeometry) []domain.QuotaUnit {
	out := make([]domain.QuotaUnit, len(units))
	for i, u := range units {
		out[i] = domain.QuotaUnit{
			ID:            u.SectionNumber,
			SectionNumber: u.SectionNumber,
			Area:          u.ComputedArea,
			SectionType:   u.SectionType,
		}
	}
	return out
}

// stageOutput returns the value snapshotted for a stage.
func (o *PlanOutcome) stageOutput(stage Stage) any {
	switch stage {
	case StageParse:
		return o.Parse
	case StageCompute:
		return o.Computation
	case StageGenerate:
		return o.Generation
	case StageApportion:
		return o.Quotas
	case StageValidate:
		return o.Topology
	default:
		return o.Seal
	}
}

// persistStage writes the stage snapshot and audit record in one transaction.
// The seal stage also stores the seal itself.
func (p *Pipeline) persistStage(ctx context.Context, actor string, stage Stage, out *PlanOutcome) error {
	if p.db == nil {
		return nil
	}
	payload, err := json.Marshal(out.stageOutput(stage))
	if err != nil {
		return fmt.Errorf("encode %s snapshot: %w", stage, err)
	}

	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	now := p.now().Unix()
	if err := p.snapshotRepo.Save(ctx, tx, domain.ComputationSnapshot{
		PlanID:       out.PlanID,
		Stage:        string(stage),
		SnapshotJSON: string(payload),
		CreatedAt:    now,
	}); err != nil {
		return err
	}
	if stage == StageSeal && out.Seal != nil {
		if err := p.sealRepo.Save(ctx, tx, *out.Seal); err != nil {
			return err
		}
	}
	if err := p.audit(ctx, tx, actor, out.PlanID, string(stage), "completed", domain.SeverityInfo,
		map[string]any{"stage": stage, "checksum": store.Checksum(string(payload))}); err != nil {
		return err
	}
	return tx.Commit()
}

func (p *Pipeline) audit(ctx context.Context, ex store.Execer, actor, planID, category, action string, sev domain.Severity, detail map[string]any) error {
	if p.db == nil {
		return nil
	}
	raw, err := json.Marshal(detail)
	if err != nil {
		return fmt.Errorf("encode audit detail: %w", err)
	}
	_, err = p.auditRepo.Record(ctx, ex, domain.AuditRecord{
		PlanID:     planID,
		Category:   category,
		Actor:      actor,
		Action:     action,
		DetailJSON: string(raw),
		Severity:   string(sev),
		CreatedAt:  p.now().Unix(),
	})
	return err
}

// VerifyStored loads the seal stored for planID and verifies it against its
// recorded facts.
func (p *Pipeline) VerifyStored(ctx context.Context, planID string) (domain.SealVerification, error) {
	if p.db == nil {
		return domain.SealVerification{}, domain.NewEngineError(domain.ErrStoreQuery.Code, "no store attached")
	}
	rec, err := p.sealRepo.Get(ctx, p.db, planID)
	if err != nil {
		return domain.SealVerification{}, err
	}
	v := p.sealer.VerifyRecord(*rec)
	sev := domain.SeverityInfo
	if !v.IsValid {
		sev = domain.SeverityError
	}
	if err := p.audit(ctx, p.db, "system", planID, "seal", "verified", sev,
		map[string]any{"valid": v.IsValid, "computed_hash": v.ComputedHash}); err != nil {
		return v, err
	}
	return v, nil
}

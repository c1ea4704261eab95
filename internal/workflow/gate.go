package workflow

import (
	"context"
	"fmt"

	"github.com/parcelgrid/survey-engine/internal/domain"
	"github.com/parcelgrid/survey-engine/internal/review"
)

// Gate evaluates whether a plan can leave its current stage.
type Gate interface {
	Name() string
	Evaluate(ctx context.Context, out *PlanOutcome) (domain.GateDecision, error)
}

// GateFunc adapts a function to the Gate interface.
type GateFunc struct {
	GateName string
	Fn       func(out *PlanOutcome) []string
}

// Name returns the gate name.
func (g GateFunc) Name() string { return g.GateName }

// Evaluate allows the transition when Fn reports no blockers.
func (g GateFunc) Evaluate(ctx context.Context, out *PlanOutcome) (domain.GateDecision, error) {
	if err := ctx.Err(); err != nil {
		return domain.GateDecision{}, err
	}
	blockers := g.Fn(out)
	return domain.GateDecision{Allow: len(blockers) == 0, Blockers: blockers}, nil
}

// SealGate refuses to seal a plan with any outstanding blocker.
type SealGate struct {
	Checker *review.BlockerChecker
}

// Name returns the gate name.
func (g *SealGate) Name() string {
	return "seal"
}

// Evaluate runs the blocker checker over every stage output.
func (g *SealGate) Evaluate(ctx context.Context, out *PlanOutcome) (domain.GateDecision, error) {
	if err := ctx.Err(); err != nil {
		return domain.GateDecision{}, err
	}
	blocking, reasons := g.Checker.Check(out.Readiness())
	return domain.GateDecision{Allow: !blocking, Blockers: reasons}, nil
}

func parseGate(out *PlanOutcome) []string {
	var b []string
	for _, e := range out.Parse.Errors {
		b = append(b, e.Error())
	}
	if n := len(out.Parse.Coordinates); n < 3 {
		b = append(b, fmt.Sprintf("parent parcel has %d coordinates, at least 3 required", n))
	}
	return b
}

func computeGate(out *PlanOutcome) []string {
	if out.Computation.Success {
		return nil
	}
	return append([]string{"outside figure computation failed"}, out.Computation.Errors...)
}

func generateGate(out *PlanOutcome) []string {
	if out.Generation.Success && len(out.Generation.Units) > 0 {
		return nil
	}
	if len(out.Generation.Errors) == 0 {
		return []string{"no unit geometries were generated"}
	}
	return out.Generation.Errors
}

func apportionGate(out *PlanOutcome) []string {
	if out.Quotas.Success && out.Quotas.IsValid {
		return nil
	}
	b := append([]string{}, out.Quotas.Errors...)
	if len(b) == 0 {
		b = append(b, fmt.Sprintf("participation quotas total %.4f, not 100", out.Quotas.TotalQuota))
	}
	return b
}

// StageGateRegistry maps each stage to the gate guarding its exit.
type StageGateRegistry struct {
	gates map[Stage]Gate
}

// NewStageGateRegistry creates a registry with the standard gates. The
// validate stage is guarded by the seal gate.
func NewStageGateRegistry() *StageGateRegistry {
	return &StageGateRegistry{gates: map[Stage]Gate{
		StageParse:     GateFunc{GateName: "parse", Fn: parseGate},
		StageCompute:   GateFunc{GateName: "compute", Fn: computeGate},
		StageGenerate:  GateFunc{GateName: "generate", Fn: generateGate},
		StageApportion: GateFunc{GateName: "apportion", Fn: apportionGate},
		StageValidate:  &SealGate{Checker: &review.BlockerChecker{}},
	}}
}

// Register sets a custom gate for a stage.
func (r *StageGateRegistry) Register(stage Stage, gate Gate) {
	r.gates[stage] = gate
}

// Get returns the gate for a stage, or an error if none is registered.
func (r *StageGateRegistry) Get(stage Stage) (Gate, error) {
	g, ok := r.gates[stage]
	if !ok {
		return nil, domain.ErrGateNotRegistered
	}
	return g, nil
}

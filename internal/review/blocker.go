package review

import (
	"fmt"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

// SealReadiness gathers the stage outputs a plan must present before sealing.
// A nil field means the stage has not run.
type SealReadiness struct {
	Computation *domain.ComputationResult
	Generation  *domain.GeometryGenerationResult
	Quotas      *domain.QuotaCalculationResult
	Topology    *domain.SchemeValidationReport
}

// BlockerChecker inspects stage outputs for conditions that must be resolved
// before a plan can be sealed.
type BlockerChecker struct{}

// Check returns whether any blocking condition was found and the list of reasons.
func (c *BlockerChecker) Check(in SealReadiness) (blocking bool, reasons []string) {
	switch comp := in.Computation; {
	case comp == nil:
		reasons = append(reasons, "outside figure has not been computed")
	case !comp.Success:
		reasons = append(reasons, fmt.Sprintf("outside figure computation failed with %d error(s)", len(comp.Errors)))
	case !comp.Closure.IsWithinTolerance:
		reasons = append(reasons, fmt.Sprintf(
			"closure fractional error %.6f exceeds tolerance %.6f",
			comp.Closure.FractionalError, comp.Closure.Tolerance))
	}

	switch gen := in.Generation; {
	case gen == nil:
		reasons = append(reasons, "unit geometries have not been generated")
	case !gen.Success:
		for _, e := range gen.Errors {
			reasons = append(reasons, "generation: "+e)
		}
		if len(gen.Errors) == 0 {
			reasons = append(reasons, "unit geometry generation failed")
		}
	}

	switch q := in.Quotas; {
	case q == nil:
		reasons = append(reasons, "participation quotas have not been calculated")
	case !q.Success || !q.IsValid:
		reasons = append(reasons, fmt.Sprintf("participation quotas total %.4f, not 100", q.TotalQuota))
	}

	switch topo := in.Topology; {
	case topo == nil:
		reasons = append(reasons, "scheme topology has not been validated")
	case !topo.IsValid:
		for _, e := range topo.Errors {
			reasons = append(reasons, fmt.Sprintf("topology %s: %s", e.Type, e.Description))
		}
	}
	return len(reasons) > 0, reasons
}

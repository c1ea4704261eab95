// Package quota computes participation quotas: each unit's percentage share
// of a sectional scheme, proportional to its floor area and reconciled to
// exactly 100%.
package quota

import (
	"fmt"
	"math"

	"github.com/shopspring/decimal"

	"github.com/parcelgrid/survey-engine/internal/config"
	"github.com/parcelgrid/survey-engine/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Options controls quota calculation.
type Options struct {
	// ExcludeCommonUnits drops units of section type "common" before apportioning.
	ExcludeCommonUnits bool
	// Precision is the number of decimal places; 0 selects the default of 4.
	Precision int
	// AdjustTo100 assigns any rounding slack to the largest-quota unit.
	AdjustTo100 bool
}

// DefaultOptions excludes common units, rounds to 4 places and reconciles to 100.
func DefaultOptions() Options {
	return Options{ExcludeCommonUnits: true, Precision: config.DefaultPrecision, AdjustTo100: true}
}

func precisionOf(p int) int32 {
	if p <= 0 {
		return config.DefaultPrecision
	}
	return int32(p)
}

// CalculateParticipationQuotas apportions 100% across the eligible units by
// area. When the rounded quotas do not sum to exactly 100 and AdjustTo100 is
// set, the whole signed difference is applied to the single largest-quota unit
// (the first one in input order on a tie).
func CalculateParticipationQuotas(units []domain.QuotaUnit, commonPropertyArea float64, opts Options) domain.QuotaCalculationResult {
	prec := precisionOf(opts.Precision)
	res := newResult()

	var eligible []domain.QuotaUnit
	for _, u := range units {
		if opts.ExcludeCommonUnits && u.SectionType == domain.SectionCommon {
			continue
		}
		eligible = append(eligible, u)
	}
	if len(eligible) == 0 {
		res.Errors = append(res.Errors, domain.ErrNoEligibleUnits.Message)
		return res
	}
	if msgs := checkAreas(eligible); len(msgs) > 0 {
		res.Errors = append(res.Errors, msgs...)
		return res
	}

	total := decimal.Zero
	for _, u := range eligible {
		total = total.Add(decimal.NewFromFloat(u.Area))
	}
	res.TotalArea = total.InexactFloat64()
	if !total.IsPositive() {
		res.Errors = append(res.Errors, domain.ErrZeroTotalArea.Message)
		return res
	}

	common := decimal.NewFromFloat(commonPropertyArea)
	quotas := make([]decimal.Decimal, len(eligible))
	for i, u := range eligible {
		quotas[i] = decimal.NewFromFloat(u.Area).Div(total).Mul(hundred).Round(prec)
	}

	if opts.AdjustTo100 {
		reconcile(&res, eligible, quotas, largest(quotas, -1))
	}
	finish(&res, eligible, quotas, common, prec)
	return res
}

// AdjustQuota fixes one unit's quota at newQuota and redistributes the
// remaining 100 - newQuota across the other non-common units in proportion
// to their area. Rounding slack among the others goes to the largest of them.
func AdjustQuota(units []domain.QuotaUnit, adjustedUnitID string, newQuota, commonPropertyArea float64, precision int) domain.QuotaCalculationResult {
	prec := precisionOf(precision)
	res := newResult()

	if math.IsNaN(newQuota) || newQuota < 0 || newQuota > 100 {
		res.Errors = append(res.Errors, fmt.Sprintf("%s, got %v", domain.ErrQuotaOutOfRange.Message, newQuota))
		return res
	}

	var eligible []domain.QuotaUnit
	target := -1
	for _, u := range units {
		if u.SectionType == domain.SectionCommon {
			continue
		}
		if u.ID == adjustedUnitID {
			target = len(eligible)
		}
		eligible = append(eligible, u)
	}
	if target < 0 {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: %s", domain.ErrUnitNotFound.Message, adjustedUnitID))
		return res
	}
	if msgs := checkAreas(eligible); len(msgs) > 0 {
		res.Errors = append(res.Errors, msgs...)
		return res
	}

	remainingArea := decimal.Zero
	total := decimal.Zero
	for i, u := range eligible {
		a := decimal.NewFromFloat(u.Area)
		total = total.Add(a)
		if i != target {
			remainingArea = remainingArea.Add(a)
		}
	}
	res.TotalArea = total.InexactFloat64()
	if !remainingArea.IsPositive() {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: remaining units have no area", domain.ErrZeroTotalArea.Message))
		return res
	}

	fixed := decimal.NewFromFloat(newQuota).Round(prec)
	remaining := hundred.Sub(fixed)
	quotas := make([]decimal.Decimal, len(eligible))
	for i, u := range eligible {
		if i == target {
			quotas[i] = fixed
			continue
		}
		quotas[i] = decimal.NewFromFloat(u.Area).Div(remainingArea).Mul(remaining).Round(prec)
	}

	reconcile(&res, eligible, quotas, largest(quotas, target))
	res.Warnings = append(res.Warnings, fmt.Sprintf("quota of section %s manually set to %s%%",
		eligible[target].SectionNumber, fixed.StringFixed(prec)))
	finish(&res, eligible, quotas, decimal.NewFromFloat(commonPropertyArea), prec)
	return res
}

// ValidateQuotaSum re-verifies a quota set without recomputing it.
func ValidateQuotaSum(quotas []domain.QuotaResult, precision int) domain.QuotaSumCheck {
	prec := precisionOf(precision)
	total := decimal.Zero
	for _, q := range quotas {
		total = total.Add(decimal.NewFromFloat(q.Quota))
	}
	total = total.Round(prec)
	diff := total.Sub(hundred)

	check := domain.QuotaSumCheck{
		IsValid:    diff.IsZero(),
		Total:      total.InexactFloat64(),
		Difference: diff.InexactFloat64(),
	}
	switch {
	case check.IsValid:
		check.Message = fmt.Sprintf("quotas sum to exactly %s%%", hundred.StringFixed(prec))
	case diff.IsNegative():
		check.Message = fmt.Sprintf("quotas sum to %s%%, %s%% short of 100", total.StringFixed(prec), diff.Abs().StringFixed(prec))
	default:
		check.Message = fmt.Sprintf("quotas sum to %s%%, %s%% over 100", total.StringFixed(prec), diff.StringFixed(prec))
	}
	return check
}

func newResult() domain.QuotaCalculationResult {
	return domain.QuotaCalculationResult{
		Quotas:   []domain.QuotaResult{},
		Errors:   []string{},
		Warnings: []string{},
	}
}

func checkAreas(units []domain.QuotaUnit) []string {
	var msgs []string
	for _, u := range units {
		if math.IsNaN(u.Area) || math.IsInf(u.Area, 0) || u.Area < 0 {
			msgs = append(msgs, fmt.Sprintf("section %s: area must be a non-negative number, got %v", u.SectionNumber, u.Area))
		}
	}
	return msgs
}

// largest returns the index of the largest quota, skipping skip; ties keep
// the earliest index.
func largest(quotas []decimal.Decimal, skip int) int {
	best := -1
	for i, q := range quotas {
		if i == skip {
			continue
		}
		if best < 0 || q.GreaterThan(quotas[best]) {
			best = i
		}
	}
	return best
}

func reconcile(res *domain.QuotaCalculationResult, units []domain.QuotaUnit, quotas []decimal.Decimal, idx int) {
	sum := decimal.Zero
	for _, q := range quotas {
		sum = sum.Add(q)
	}
	diff := hundred.Sub(sum)
	if diff.IsZero() || idx < 0 {
		return
	}
	quotas[idx] = quotas[idx].Add(diff)
	res.AdjustmentApplied = true
	res.AdjustedSection = units[idx].SectionNumber
	res.AdjustmentAmount = diff.InexactFloat64()
	res.Warnings = append(res.Warnings, fmt.Sprintf("rounding adjustment of %s%% applied to section %s",
		diff.String(), units[idx].SectionNumber))
}

func finish(res *domain.QuotaCalculationResult, units []domain.QuotaUnit, quotas []decimal.Decimal, common decimal.Decimal, prec int32) {
	sum := decimal.Zero
	for i, u := range units {
		q := quotas[i]
		sum = sum.Add(q)
		res.Quotas = append(res.Quotas, domain.QuotaResult{
			UnitID:          u.ID,
			SectionNumber:   u.SectionNumber,
			Quota:           q.InexactFloat64(),
			Area:            u.Area,
			CommonAreaShare: q.Div(hundred).Mul(common).Round(2).InexactFloat64(),
		})
		if q.IsNegative() {
			res.Errors = append(res.Errors, fmt.Sprintf("section %s: quota %s is negative", u.SectionNumber, q.String()))
		}
	}
	res.TotalQuota = sum.Round(prec).InexactFloat64()
	res.IsValid = sum.Round(prec).Equal(hundred)
	if !res.IsValid {
		res.Errors = append(res.Errors, fmt.Sprintf("%s: total %s%%", domain.ErrQuotaSumMismatch.Message, sum.StringFixed(prec)))
	}
	res.Success = len(res.Errors) == 0
}

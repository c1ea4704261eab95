package quota

import (
	"fmt"
	"math/rand"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parcelgrid/survey-engine/internal/domain"
)

func schemeUnits() []domain.QuotaUnit {
	return []domain.QuotaUnit{
		{ID: "u1", SectionNumber: "1", Area: 300, SectionType: domain.SectionResidential},
		{ID: "u2", SectionNumber: "2", Area: 300, SectionType: domain.SectionResidential},
		{ID: "u3", SectionNumber: "3", Area: 350, SectionType: domain.SectionResidential},
		{ID: "c1", SectionNumber: "C", Area: 50, SectionType: domain.SectionCommon},
	}
}

func TestCalculate_LargestUnitAbsorbsSlack(t *testing.T) {
	res := CalculateParticipationQuotas(schemeUnits(), 50, DefaultOptions())

	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.True(t, res.IsValid)
	require.Len(t, res.Quotas, 3, "common unit excluded")

	assert.Equal(t, 31.5789, res.Quotas[0].Quota)
	assert.Equal(t, 31.5789, res.Quotas[1].Quota)
	assert.Equal(t, 36.8422, res.Quotas[2].Quota)
	assert.Equal(t, 100.0, res.TotalQuota)
	assert.Equal(t, 950.0, res.TotalArea)

	assert.True(t, res.AdjustmentApplied)
	assert.Equal(t, "3", res.AdjustedSection)
	assert.InDelta(t, 0.0001, res.AdjustmentAmount, 1e-12)
	require.Len(t, res.Warnings, 1)
	assert.Contains(t, res.Warnings[0], "section 3")

	assert.Equal(t, 15.79, res.Quotas[0].CommonAreaShare)
	assert.Equal(t, 18.42, res.Quotas[2].CommonAreaShare)
}

func TestCalculate_AlreadyBalancedIsUntouched(t *testing.T) {
	units := []domain.QuotaUnit{
		{ID: "a", SectionNumber: "1", Area: 100},
		{ID: "b", SectionNumber: "2", Area: 100},
		{ID: "c", SectionNumber: "3", Area: 200},
	}
	res := CalculateParticipationQuotas(units, 0, DefaultOptions())

	require.True(t, res.Success)
	assert.False(t, res.AdjustmentApplied)
	assert.Empty(t, res.AdjustedSection)
	assert.Equal(t, 25.0, res.Quotas[0].Quota)
	assert.Equal(t, 25.0, res.Quotas[1].Quota)
	assert.Equal(t, 50.0, res.Quotas[2].Quota)
	assert.Empty(t, res.Warnings)
}

func TestCalculate_TieGoesToFirst(t *testing.T) {
	units := []domain.QuotaUnit{
		{ID: "a", SectionNumber: "1", Area: 1},
		{ID: "b", SectionNumber: "2", Area: 1},
		{ID: "c", SectionNumber: "3", Area: 1},
	}
	res := CalculateParticipationQuotas(units, 0, DefaultOptions())
	require.True(t, res.IsValid)
	assert.Equal(t, "1", res.AdjustedSection)
	assert.Equal(t, 33.3334, res.Quotas[0].Quota)
	assert.Equal(t, 33.3333, res.Quotas[1].Quota)
}

func TestCalculate_WithoutAdjustment(t *testing.T) {
	opts := DefaultOptions()
	opts.AdjustTo100 = false
	res := CalculateParticipationQuotas(schemeUnits(), 50, opts)

	assert.False(t, res.Success)
	assert.False(t, res.IsValid)
	assert.False(t, res.AdjustmentApplied)
	assert.Equal(t, 99.9999, res.TotalQuota)
	require.NotEmpty(t, res.Errors)
	assert.Contains(t, res.Errors[0], "quotas do not sum to 100")
}

func TestCalculate_IncludeCommon(t *testing.T) {
	opts := DefaultOptions()
	opts.ExcludeCommonUnits = false
	res := CalculateParticipationQuotas(schemeUnits(), 0, opts)
	require.True(t, res.IsValid)
	require.Len(t, res.Quotas, 4)
	assert.Equal(t, 5.0, res.Quotas[3].Quota)
	assert.Equal(t, 30.0, res.Quotas[0].Quota)
}

func TestCalculate_Precision(t *testing.T) {
	opts := DefaultOptions()
	opts.Precision = 2
	res := CalculateParticipationQuotas(schemeUnits(), 50, opts)
	require.True(t, res.IsValid)
	assert.Equal(t, 31.58, res.Quotas[0].Quota)
	assert.Equal(t, 36.84, res.Quotas[2].Quota)
	assert.False(t, res.AdjustmentApplied)
}

func TestCalculate_Failures(t *testing.T) {
	tests := []struct {
		name  string
		units []domain.QuotaUnit
		want  string
	}{
		{"empty", nil, "no eligible units"},
		{"only common", []domain.QuotaUnit{{ID: "c", Area: 10, SectionType: domain.SectionCommon}}, "no eligible units"},
		{"zero area", []domain.QuotaUnit{{ID: "a", Area: 0}, {ID: "b", Area: 0}}, "total eligible area is zero"},
		{"negative area", []domain.QuotaUnit{{ID: "a", SectionNumber: "1", Area: -5}}, "non-negative"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := CalculateParticipationQuotas(tt.units, 0, DefaultOptions())
			assert.False(t, res.Success)
			assert.False(t, res.IsValid)
			require.NotEmpty(t, res.Errors)
			assert.Contains(t, res.Errors[0], tt.want)
		})
	}
}

func TestCalculate_SumPropertyRandomised(t *testing.T) {
	rng := rand.New(rand.NewSource(20240611))
	for iter := 0; iter < 200; iter++ {
		n := 2 + rng.Intn(49)
		units := make([]domain.QuotaUnit, n)
		for i := range units {
			units[i] = domain.QuotaUnit{
				ID:            fmt.Sprintf("u%d", i),
				SectionNumber: fmt.Sprintf("%d", i+1),
				Area:          1 + rng.Float64()*500,
				SectionType:   domain.SectionResidential,
			}
		}
		res := CalculateParticipationQuotas(units, rng.Float64()*1000, DefaultOptions())
		require.True(t, res.IsValid, "iteration %d (%d units): %v", iter, n, res.Errors)
		require.Len(t, res.Quotas, n)

		check := ValidateQuotaSum(res.Quotas, 4)
		require.True(t, check.IsValid, "iteration %d: %s", iter, check.Message)
		require.Equal(t, 0.0, check.Difference)
	}
}

func TestAdjustQuota(t *testing.T) {
	res := AdjustQuota(schemeUnits(), "u3", 40, 50, 4)

	require.True(t, res.Success, "errors: %v", res.Errors)
	assert.True(t, res.IsValid)
	require.Len(t, res.Quotas, 3)
	assert.Equal(t, 30.0, res.Quotas[0].Quota)
	assert.Equal(t, 30.0, res.Quotas[1].Quota)
	assert.Equal(t, 40.0, res.Quotas[2].Quota)
	assert.Equal(t, 20.0, res.Quotas[2].CommonAreaShare)
	assert.False(t, res.AdjustmentApplied)
	assert.True(t, strings.Contains(strings.Join(res.Warnings, " "), "manually set"))
}

func TestAdjustQuota_ReconcilesOthers(t *testing.T) {
	units := []domain.QuotaUnit{
		{ID: "a", SectionNumber: "1", Area: 10},
		{ID: "b", SectionNumber: "2", Area: 10},
		{ID: "c", SectionNumber: "3", Area: 10},
		{ID: "d", SectionNumber: "4", Area: 10},
	}
	res := AdjustQuota(units, "d", 10.5, 0, 4)
	require.True(t, res.IsValid)
	assert.True(t, res.AdjustmentApplied)
	assert.Equal(t, "1", res.AdjustedSection)
	assert.Equal(t, 10.5, res.Quotas[3].Quota, "fixed quota never absorbs slack")
	assert.Equal(t, 29.8334, res.Quotas[0].Quota)
	assert.Equal(t, 100.0, res.TotalQuota)
}

func TestAdjustQuota_Failures(t *testing.T) {
	tests := []struct {
		name  string
		units []domain.QuotaUnit
		id    string
		quota float64
		want  string
	}{
		{"above 100", schemeUnits(), "u1", 100.5, "between 0 and 100"},
		{"negative", schemeUnits(), "u1", -1, "between 0 and 100"},
		{"unknown unit", schemeUnits(), "zz", 10, "unit not found"},
		{"common unit not adjustable", schemeUnits(), "c1", 10, "unit not found"},
		{"no remaining area", []domain.QuotaUnit{{ID: "a", Area: 10}, {ID: "b", Area: 0}}, "a", 50, "remaining units have no area"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := AdjustQuota(tt.units, tt.id, tt.quota, 0, 4)
			assert.False(t, res.Success)
			require.NotEmpty(t, res.Errors)
			assert.Contains(t, res.Errors[0], tt.want)
		})
	}
}

func TestValidateQuotaSum(t *testing.T) {
	tests := []struct {
		name   string
		quotas []float64
		valid  bool
		diff   float64
		msg    string
	}{
		{"exact", []float64{31.5789, 31.5789, 36.8422}, true, 0, "exactly 100.0000%"},
		{"short", []float64{31.5789, 31.5789, 36.8421}, false, -0.0001, "short of 100"},
		{"over", []float64{50, 50.01}, false, 0.01, "over 100"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var qs []domain.QuotaResult
			for _, q := range tt.quotas {
				qs = append(qs, domain.QuotaResult{Quota: q})
			}
			check := ValidateQuotaSum(qs, 4)
			assert.Equal(t, tt.valid, check.IsValid)
			assert.InDelta(t, tt.diff, check.Difference, 1e-12)
			assert.Contains(t, check.Message, tt.msg)
		})
	}
}

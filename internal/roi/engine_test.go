package roi

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func float(v float64) *float64 { return &v }

func newTestEngine(t *testing.T) *Engine {
	t.Helper()
	b, err := LoadBenchmarks("")
	require.NoError(t, err)
	e, err := NewEngine(b)
	require.NoError(t, err)
	return e
}

func baseInput() Input {
	return Input{
		CompanyName:      "Acme Corp",
		Industry:         "Aerospace",
		Revenue:          100_000_000,
		CogsPct:          0.6,
		LogisticsCostPct: 0.08,
		ExceptionCostPct: 0.02,
	}
}

func TestRunWithDerivedDefaults(t *testing.T) {
	res, err := newTestEngine(t).Run(baseInput())
	require.NoError(t, err)

	dm := res.DerivedMetrics
	assert.InDelta(t, 60_000_000, dm.Cogs, 0.01)
	assert.InDelta(t, 40_000_000, dm.GrossMargin, 0.01)
	assert.InDelta(t, 7_500_000, dm.AvgInventoryValue, 0.01)
	assert.InDelta(t, 4, dm.LogisticsPlannerFTE, 1e-9)

	sb := res.SavingsBreakdown
	assert.InDelta(t, 500_000, sb.ExceptionReduction, 0.01)
	assert.InDelta(t, 400_000, sb.LogisticsOptimization, 0.01)
	assert.InDelta(t, 150_000, sb.InventoryCarryingSavings, 0.01)
	assert.InDelta(t, 750_000, sb.OneTimeCashRelease, 0.01)
	assert.InDelta(t, 72_000, sb.PlannerCostAvoidance, 0.01)

	tot := res.Totals
	assert.InDelta(t, 1_050_000, tot.RecurringEBITSavings, 0.01)
	assert.InDelta(t, 1_122_000, tot.TotalAnnualBenefit, 0.01)
	assert.InDelta(t, 1_472_000, tot.NetFirstYearBenefit, 0.01)
	assert.InDelta(t, 368, res.ROIPercent, 0.001)

	// one-time cash release already covers implementation
	require.NotNil(t, res.PaybackMonths)
	assert.Equal(t, 0.0, *res.PaybackMonths)
}

func TestRunWithExplicitInventory(t *testing.T) {
	in := baseInput()
	in.AvgInventoryValue = float(0)
	in.LogisticsPlannerFTE = float(4)

	res, err := newTestEngine(t).Run(in)
	require.NoError(t, err)

	assert.InDelta(t, 972_000, res.Totals.TotalAnnualBenefit, 0.01)
	assert.InDelta(t, 143, res.ROIPercent, 0.001)
	require.NotNil(t, res.PaybackMonths)
	assert.InDelta(t, 2.49, *res.PaybackMonths, 1e-9)
}

func TestRunWithoutPayback(t *testing.T) {
	in := baseInput()
	in.Revenue = 1_000_000

	res, err := newTestEngine(t).Run(in)
	require.NoError(t, err)

	assert.InDelta(t, 1, res.DerivedMetrics.LogisticsPlannerFTE, 1e-9, "fte is floored at one")
	assert.Nil(t, res.PaybackMonths)
	assert.Less(t, res.ROIPercent, 0.0)
}

func TestRunUsesIndustryBenchmark(t *testing.T) {
	e := newTestEngine(t)

	generic, err := e.Run(baseInput())
	require.NoError(t, err)

	in := baseInput()
	in.Industry = "  Retail "
	retail, err := e.Run(in)
	require.NoError(t, err)

	assert.InDelta(t, 6_000_000, retail.DerivedMetrics.AvgInventoryValue, 0.01)
	assert.NotEqual(t, generic.Totals.AnnualPlatformCost, retail.Totals.AnnualPlatformCost)
}

func TestRunZeroInvestment(t *testing.T) {
	b, err := ParseBenchmarks([]byte("default:\n  inventory_turns_benchmark: 0\n"))
	require.NoError(t, err)
	e, err := NewEngine(b)
	require.NoError(t, err)

	res, err := e.Run(baseInput())
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.ROIPercent)
	assert.InDelta(t, 7_500_000, res.DerivedMetrics.AvgInventoryValue, 0.01, "zero turns fall back to 8")
}

func TestValidate(t *testing.T) {
	in := Input{Revenue: -1, CogsPct: 1.5, LogisticsPlannerFTE: float(-2)}
	err := in.Validate()

	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Contains(t, verr.Fields, "company_name")
	assert.Contains(t, verr.Fields, "industry")
	assert.Contains(t, verr.Fields, "revenue")
	assert.Contains(t, verr.Fields, "cogs_pct")
	assert.Contains(t, verr.Fields, "logistics_planner_fte")
	assert.NotContains(t, verr.Fields, "exception_cost_pct")
	assert.Contains(t, err.Error(), "company_name is required")

	_, err = newTestEngine(t).Run(in)
	assert.Error(t, err)
}

func TestBenchmarksLookup(t *testing.T) {
	b, err := LoadBenchmarks("")
	require.NoError(t, err)

	assert.Equal(t, b["food_and_beverage"], b.For("Food & Beverage"))
	assert.Equal(t, b["default"], b.For("unknown"))

	_, err = ParseBenchmarks([]byte("retail:\n  carrying_cost_rate: 0.2\n"))
	assert.Error(t, err, "default entry is mandatory")

	_, err = LoadBenchmarks("/does/not/exist.yaml")
	assert.Error(t, err)
}

func TestRound2(t *testing.T) {
	assert.Equal(t, 2.49, round2(2.4930747922437675))
	assert.Equal(t, 0.12, round2(0.125))
	assert.Equal(t, -1.5, round2(-1.5))
}

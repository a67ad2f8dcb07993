package roi

import (
	"errors"
	"fmt"
	"math"
	"strings"
)

const defaultInventoryTurns = 8.0

// Input is what the assistant collects from the user.
type Input struct {
	CompanyName         string   `json:"company_name"`
	Industry            string   `json:"industry"`
	Revenue             float64  `json:"revenue"`
	CogsPct             float64  `json:"cogs_pct"`
	LogisticsCostPct    float64  `json:"logistics_cost_pct"`
	ExceptionCostPct    float64  `json:"exception_cost_pct"`
	AvgInventoryValue   *float64 `json:"avg_inventory_value"`
	LogisticsPlannerFTE *float64 `json:"logistics_planner_fte"`
}

type DerivedMetrics struct {
	Revenue             float64 `json:"revenue"`
	Cogs                float64 `json:"cogs"`
	GrossMargin         float64 `json:"gross_margin"`
	LogisticsCost       float64 `json:"logistics_cost"`
	ExceptionCost       float64 `json:"exception_cost"`
	AvgInventoryValue   float64 `json:"avg_inventory_value"`
	LogisticsPlannerFTE float64 `json:"logistics_planner_fte"`
}

type SavingsBreakdown struct {
	ExceptionReduction       float64 `json:"exception_reduction"`
	LogisticsOptimization    float64 `json:"logistics_optimization"`
	InventoryCarryingSavings float64 `json:"inventory_carrying_savings"`
	OneTimeCashRelease       float64 `json:"one_time_cash_release"`
	PlannerCostAvoidance     float64 `json:"planner_cost_avoidance"`
}

type Totals struct {
	RecurringEBITSavings float64 `json:"recurring_ebit_savings"`
	CostAvoidance        float64 `json:"cost_avoidance"`
	AnnualPlatformCost   float64 `json:"annual_platform_cost"`
	ImplementationCost   float64 `json:"implementation_cost"`
	TotalAnnualBenefit   float64 `json:"total_annual_benefit"`
	TotalOneTimeBenefit  float64 `json:"total_one_time_benefit"`
	NetFirstYearBenefit  float64 `json:"net_first_year_benefit"`
}

// Result is the full model output. PaybackMonths is nil when the platform
// never pays back (non-positive monthly run rate).
type Result struct {
	Inputs           Input            `json:"inputs"`
	DerivedMetrics   DerivedMetrics   `json:"derived_metrics"`
	SavingsBreakdown SavingsBreakdown `json:"savings_breakdown"`
	Totals           Totals           `json:"totals"`
	ROIPercent       float64          `json:"roi_percent"`
	PaybackMonths    *float64         `json:"payback_months"`
}

// ValidationError lists the input fields that failed validation.
type ValidationError struct {
	Fields map[string]string
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, name := range fieldOrder {
		if msg, ok := e.Fields[name]; ok {
			parts = append(parts, name+" "+msg)
		}
	}
	return "invalid roi input: " + strings.Join(parts, "; ")
}

var fieldOrder = []string{
	"company_name", "industry", "revenue", "cogs_pct", "logistics_cost_pct",
	"exception_cost_pct", "avg_inventory_value", "logistics_planner_fte",
}

// Validate checks required fields and ranges.
func (in Input) Validate() error {
	fields := make(map[string]string)
	if strings.TrimSpace(in.CompanyName) == "" {
		fields["company_name"] = "is required"
	}
	if strings.TrimSpace(in.Industry) == "" {
		fields["industry"] = "is required"
	}
	if in.Revenue <= 0 || math.IsInf(in.Revenue, 0) || math.IsNaN(in.Revenue) {
		fields["revenue"] = "must be positive"
	}
	checkPct := func(name string, v float64) {
		if v < 0 || v > 1 || math.IsNaN(v) {
			fields[name] = "must be a decimal between 0 and 1"
		}
	}
	checkPct("cogs_pct", in.CogsPct)
	checkPct("logistics_cost_pct", in.LogisticsCostPct)
	checkPct("exception_cost_pct", in.ExceptionCostPct)
	if in.AvgInventoryValue != nil && *in.AvgInventoryValue < 0 {
		fields["avg_inventory_value"] = "must not be negative"
	}
	if in.LogisticsPlannerFTE != nil && *in.LogisticsPlannerFTE < 0 {
		fields["logistics_planner_fte"] = "must not be negative"
	}
	if len(fields) > 0 {
		return &ValidationError{Fields: fields}
	}
	return nil
}

// Engine runs the ROI model against a benchmark table.
type Engine struct {
	benchmarks Benchmarks
}

func NewEngine(benchmarks Benchmarks) (*Engine, error) {
	if _, ok := benchmarks[defaultIndustry]; !ok {
		return nil, errors.New("benchmarks have no default entry")
	}
	return &Engine{benchmarks: benchmarks}, nil
}

// Run validates the input and computes the model.
func (e *Engine) Run(in Input) (Result, error) {
	if err := in.Validate(); err != nil {
		return Result{}, err
	}
	b := e.benchmarks.For(in.Industry)

	revenue := in.Revenue
	cogs := revenue * in.CogsPct
	logisticsCost := revenue * in.LogisticsCostPct
	exceptionCost := revenue * in.ExceptionCostPct
	grossMargin := revenue - cogs

	turns := b.InventoryTurns
	if turns == 0 {
		turns = defaultInventoryTurns
	}
	avgInventory := cogs / turns
	if in.AvgInventoryValue != nil {
		avgInventory = *in.AvgInventoryValue
	}
	fte := math.Max(1.0, (revenue/100_000_000.0)*b.PlannerFTEPer100MRevenue)
	if in.LogisticsPlannerFTE != nil {
		fte = *in.LogisticsPlannerFTE
	}

	excReduction := exceptionCost * b.ExceptionReductionPct
	logOptimization := logisticsCost * b.LogisticsOptimizationPct
	inventoryReduction := avgInventory * b.InventoryReductionPct
	carryingSavings := inventoryReduction * b.CarryingCostRate
	oneTimeCashRelease := inventoryReduction
	plannerCostAvoidance := fte * b.PlannerProductivityImprovementPct * b.PlannerFullyLoadedCost

	recurring := excReduction + logOptimization + carryingSavings
	costAvoidance := plannerCostAvoidance
	totalAnnualBenefit := recurring + costAvoidance
	totalOneTimeBenefit := oneTimeCashRelease
	netFirstYear := totalAnnualBenefit + totalOneTimeBenefit - b.AnnualPlatformCost - b.ImplementationCost

	investment := b.AnnualPlatformCost + b.ImplementationCost
	roiPercent := 0.0
	if investment != 0 {
		roiPercent = netFirstYear / investment * 100.0
	}

	var payback *float64
	monthlyNetRunRate := (totalAnnualBenefit - b.AnnualPlatformCost) / 12.0
	if monthlyNetRunRate > 0 {
		months := 0.0
		if numerator := b.ImplementationCost - totalOneTimeBenefit; numerator > 0 {
			months = numerator / monthlyNetRunRate
		}
		months = round2(months)
		payback = &months
	}

	return Result{
		Inputs: in,
		DerivedMetrics: DerivedMetrics{
			Revenue:             round2(revenue),
			Cogs:                round2(cogs),
			GrossMargin:         round2(grossMargin),
			LogisticsCost:       round2(logisticsCost),
			ExceptionCost:       round2(exceptionCost),
			AvgInventoryValue:   round2(avgInventory),
			LogisticsPlannerFTE: fte,
		},
		SavingsBreakdown: SavingsBreakdown{
			ExceptionReduction:       round2(excReduction),
			LogisticsOptimization:    round2(logOptimization),
			InventoryCarryingSavings: round2(carryingSavings),
			OneTimeCashRelease:       round2(oneTimeCashRelease),
			PlannerCostAvoidance:     round2(plannerCostAvoidance),
		},
		Totals: Totals{
			RecurringEBITSavings: round2(recurring),
			CostAvoidance:        round2(costAvoidance),
			AnnualPlatformCost:   round2(b.AnnualPlatformCost),
			ImplementationCost:   round2(b.ImplementationCost),
			TotalAnnualBenefit:   round2(totalAnnualBenefit),
			TotalOneTimeBenefit:  round2(totalOneTimeBenefit),
			NetFirstYearBenefit:  round2(netFirstYear),
		},
		ROIPercent:    round2(roiPercent),
		PaybackMonths: payback,
	}, nil
}

func round2(v float64) float64 {
	return math.RoundToEven(v*100) / 100
}

func (r Result) String() string {
	return fmt.Sprintf("roi=%.2f%% net=%.2f", r.ROIPercent, r.Totals.NetFirstYearBenefit)
}

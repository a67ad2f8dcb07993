package roi

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const defaultIndustry = "default"

//go:embed benchmarks.yaml
var defaultBenchmarks []byte

// Benchmark holds the industry assumptions the model is built on.
type Benchmark struct {
	InventoryTurns                    float64 `yaml:"inventory_turns_benchmark"`
	PlannerFTEPer100MRevenue          float64 `yaml:"planner_fte_per_100m_revenue"`
	ExceptionReductionPct             float64 `yaml:"exception_reduction_pct"`
	LogisticsOptimizationPct          float64 `yaml:"logistics_optimization_pct"`
	InventoryReductionPct             float64 `yaml:"inventory_reduction_pct"`
	CarryingCostRate                  float64 `yaml:"carrying_cost_rate"`
	PlannerProductivityImprovementPct float64 `yaml:"planner_productivity_improvement_pct"`
	PlannerFullyLoadedCost            float64 `yaml:"planner_fully_loaded_cost"`
	AnnualPlatformCost                float64 `yaml:"annual_platform_cost"`
	ImplementationCost                float64 `yaml:"implementation_cost"`
}

// Benchmarks maps a lower-cased industry name to its benchmark.
type Benchmarks map[string]Benchmark

// LoadBenchmarks reads benchmarks from path, or the built-in table when path
// is empty.
func LoadBenchmarks(path string) (Benchmarks, error) {
	data := defaultBenchmarks
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read benchmarks: %w", err)
		}
		data = b
	}
	return ParseBenchmarks(data)
}

func ParseBenchmarks(data []byte) (Benchmarks, error) {
	raw := make(map[string]Benchmark)
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse benchmarks: %w", err)
	}

	out := make(Benchmarks, len(raw))
	for name, b := range raw {
		out[normalizeIndustry(name)] = b
	}
	if _, ok := out[defaultIndustry]; !ok {
		return nil, fmt.Errorf("benchmarks must define a %q entry", defaultIndustry)
	}
	return out, nil
}

// For returns the benchmark for industry, falling back to the default entry.
func (b Benchmarks) For(industry string) Benchmark {
	if bm, ok := b[normalizeIndustry(industry)]; ok {
		return bm
	}
	return b[defaultIndustry]
}

func normalizeIndustry(name string) string {
	name = strings.ReplaceAll(strings.ToLower(name), "&", " and ")
	return strings.Join(strings.FieldsFunc(name, func(r rune) bool {
		return r == ' ' || r == '-' || r == '_' || r == '\t'
	}), "_")
}

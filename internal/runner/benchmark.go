// File: internal/runner/benchmark.go
package runner

import (
	"context"
	"sort"
	"time"

	"go.uber.org/zap"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
)

// BenchmarkStats aggregates repeated executions of the same scenario set,
// surfacing which steps fail most often. Useful for judging how reliably a
// given engine model interprets a feature file.
type BenchmarkStats struct {
	Iterations int                 `json:"iterations"`
	Duration   time.Duration       `json:"duration"`
	Scenarios  []ScenarioBenchmark `json:"scenarios"`
}

// ScenarioBenchmark is the per-scenario aggregate across all iterations.
type ScenarioBenchmark struct {
	Scenario string             `json:"scenario"`
	Feature  string             `json:"feature"`
	Passed   int                `json:"passed"`
	Failed   int                `json:"failed"`
	Aborted  int                `json:"aborted"`
	Steps    []StepFailureCount `json:"step_failures,omitempty"`
}

// PassRate returns the fraction of iterations that passed, in [0, 1].
func (s ScenarioBenchmark) PassRate() float64 {
	total := s.Passed + s.Failed + s.Aborted
	if total == 0 {
		return 0
	}
	return float64(s.Passed) / float64(total)
}

// StepFailureCount counts how often one step was the first failure.
type StepFailureCount struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
	Count int    `json:"count"`
}

// benchmarkCollector folds run results into aggregate stats keyed by
// feature/scenario name.
type benchmarkCollector struct {
	order []string
	byKey map[string]*ScenarioBenchmark
	steps map[string]map[int]*StepFailureCount
}

func newBenchmarkCollector() *benchmarkCollector {
	return &benchmarkCollector{
		byKey: make(map[string]*ScenarioBenchmark),
		steps: make(map[string]map[int]*StepFailureCount),
	}
}

func (c *benchmarkCollector) observe(run *schemas.RunResult) {
	for _, result := range run.Scenarios {
		key := result.Feature + "/" + result.Scenario
		agg, ok := c.byKey[key]
		if !ok {
			agg = &ScenarioBenchmark{Scenario: result.Scenario, Feature: result.Feature}
			c.byKey[key] = agg
			c.steps[key] = make(map[int]*StepFailureCount)
			c.order = append(c.order, key)
		}

		switch result.Status {
		case schemas.ScenarioPassed:
			agg.Passed++
		case schemas.ScenarioAborted:
			agg.Aborted++
		case schemas.ScenarioFailed:
			agg.Failed++
			if result.FailureIndex >= 0 && result.FailureIndex < len(result.Steps) {
				step := result.Steps[result.FailureIndex].Step
				counter, ok := c.steps[key][step.Index]
				if !ok {
					counter = &StepFailureCount{Index: step.Index, Text: step.FullText()}
					c.steps[key][step.Index] = counter
				}
				counter.Count++
			}
		}
	}
}

func (c *benchmarkCollector) stats(iterations int, duration time.Duration) *BenchmarkStats {
	out := &BenchmarkStats{Iterations: iterations, Duration: duration}
	for _, key := range c.order {
		agg := *c.byKey[key]
		for _, counter := range c.steps[key] {
			agg.Steps = append(agg.Steps, *counter)
		}
		sort.Slice(agg.Steps, func(i, j int) bool { return agg.Steps[i].Index < agg.Steps[j].Index })
		out.Scenarios = append(out.Scenarios, agg)
	}
	return out
}

// RunBenchmark executes the scenario set iterations times and aggregates the
// outcomes. Individual runs are persisted and reported as usual; the caller
// presents the returned stats.
func (r *Runner) RunBenchmark(ctx context.Context, scenarios []schemas.Scenario, iterations int) (*BenchmarkStats, error) {
	if iterations < 1 {
		iterations = 1
	}
	start := time.Now()
	collector := newBenchmarkCollector()

	for i := 1; i <= iterations; i++ {
		r.logger.Info("Benchmark iteration started",
			zap.Int("iteration", i), zap.Int("total", iterations))
		run, err := r.Run(ctx, scenarios)
		if run != nil {
			collector.observe(run)
		}
		if err != nil {
			return collector.stats(i, time.Since(start)), err
		}
	}
	return collector.stats(iterations, time.Since(start)), nil
}

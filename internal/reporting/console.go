// File: internal/reporting/console.go

// Package reporting presents run results: a colorized console stream as
// scenarios finish, an optional JSON report file, and benchmark summaries.
package reporting

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
	"github.com/xkilldash9x/kosher-cli/internal/runner"
)

const (
	ansiReset  = "\x1b[0m"
	ansiGreen  = "\x1b[32m"
	ansiRed    = "\x1b[31m"
	ansiYellow = "\x1b[33m"
	ansiDim    = "\x1b[2m"
)

// ConsoleReporter streams scenario results to a writer as they complete.
// Safe for concurrent use; scenarios running in parallel report through the
// same instance.
type ConsoleReporter struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

var _ schemas.Reporter = (*ConsoleReporter)(nil)

func NewConsoleReporter(out io.Writer, color bool) *ConsoleReporter {
	return &ConsoleReporter{out: out, color: color}
}

func (r *ConsoleReporter) paint(code, s string) string {
	if !r.color {
		return s
	}
	return code + s + ansiReset
}

func (r *ConsoleReporter) statusLabel(status schemas.ScenarioStatus) string {
	switch status {
	case schemas.ScenarioPassed:
		return r.paint(ansiGreen, "PASS")
	case schemas.ScenarioAborted:
		return r.paint(ansiYellow, "ABORT")
	default:
		return r.paint(ansiRed, "FAIL")
	}
}

func (r *ConsoleReporter) verdictMark(v schemas.StepVerdict) string {
	switch v {
	case schemas.VerdictPassed:
		return r.paint(ansiGreen, "✓")
	case schemas.VerdictSkipped:
		return r.paint(ansiDim, "-")
	default:
		return r.paint(ansiRed, "✗")
	}
}

// ScenarioCompleted prints one scenario block: header, per-step verdicts, and
// the failure reason when there is one.
func (r *ConsoleReporter) ScenarioCompleted(result schemas.ScenarioResult) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "%s  %s: %s  (%s)\n",
		r.statusLabel(result.Status),
		result.Feature,
		result.Scenario,
		result.Duration.Round(time.Millisecond))

	for _, step := range result.Steps {
		line := fmt.Sprintf("  %s %s %s", r.verdictMark(step.Verdict), step.Step.Keyword, step.Step.Text)
		if step.Attempts > 1 {
			line += r.paint(ansiDim, fmt.Sprintf("  [%d attempts]", step.Attempts))
		}
		fmt.Fprintln(r.out, line)
	}

	if result.Reason != "" {
		fmt.Fprintf(r.out, "    %s %s\n", r.paint(ansiRed, "reason:"), result.Reason)
	}
	fmt.Fprintln(r.out)
}

// RunCompleted prints the aggregate line for the whole run.
func (r *ConsoleReporter) RunCompleted(run *schemas.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	passed, failed, aborted := run.Counts()
	fmt.Fprintf(r.out, "%d scenarios: %s passed, %s failed, %s aborted  (%s)\n",
		len(run.Scenarios),
		r.paint(ansiGreen, fmt.Sprintf("%d", passed)),
		r.paint(ansiRed, fmt.Sprintf("%d", failed)),
		r.paint(ansiYellow, fmt.Sprintf("%d", aborted)),
		run.Duration.Round(time.Millisecond))
	return nil
}

// PrintBenchmark renders aggregate benchmark statistics: pass rates per
// scenario and the steps that failed first, ranked by how often.
func (r *ConsoleReporter) PrintBenchmark(stats *runner.BenchmarkStats) {
	r.mu.Lock()
	defer r.mu.Unlock()

	fmt.Fprintf(r.out, "Benchmark: %d iterations in %s\n\n",
		stats.Iterations, stats.Duration.Round(time.Millisecond))

	for _, sc := range stats.Scenarios {
		fmt.Fprintf(r.out, "%s: %s  %.0f%% pass (%d passed, %d failed, %d aborted)\n",
			sc.Feature, sc.Scenario, sc.PassRate()*100, sc.Passed, sc.Failed, sc.Aborted)
		for _, step := range sc.Steps {
			fmt.Fprintf(r.out, "  step %d failed first %d time(s): %s\n",
				step.Index+1, step.Count, step.Text)
		}
	}
}

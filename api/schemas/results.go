package schemas

import "time"

// StepVerdict is the per-step outcome recorded in a scenario result.
type StepVerdict string

const (
	VerdictPassed  StepVerdict = "passed"
	VerdictFailed  StepVerdict = "failed"
	VerdictSkipped StepVerdict = "skipped"
)

// StepResult is the verdict for one step, derived from its action outcome plus
// assertion logic for Then steps.
type StepResult struct {
	Step     Step          `json:"step"`
	Verdict  StepVerdict   `json:"verdict"`
	Detail   string        `json:"detail,omitempty"`
	Attempts int           `json:"attempts"`
	Duration time.Duration `json:"duration"`
}

// ScenarioStatus is the terminal state of one scenario execution.
type ScenarioStatus string

const (
	// ScenarioPassed means every step passed.
	ScenarioPassed ScenarioStatus = "passed"
	// ScenarioFailed means a step failed: the test subject is wrong.
	ScenarioFailed ScenarioStatus = "failed"
	// ScenarioAborted means the harness could not complete the test
	// (engine unreachable, action service lost, timeout, cancellation).
	ScenarioAborted ScenarioStatus = "aborted"
)

// ScenarioResult is the terminal artifact of one scenario execution, immutable
// once produced. FailureIndex is -1 unless the scenario failed, in which case
// it is the index of the first failing step; execution never continues past it.
type ScenarioResult struct {
	RunID        string             `json:"run_id"`
	Scenario     string             `json:"scenario"`
	Feature      string             `json:"feature"`
	URI          string             `json:"uri"`
	Status       ScenarioStatus     `json:"status"`
	FailureIndex int                `json:"failure_index"`
	Reason       string             `json:"reason,omitempty"`
	Steps        []StepResult       `json:"steps"`
	Turns        []ConversationTurn `json:"turns,omitempty"`
	StartedAt    time.Time          `json:"started_at"`
	Duration     time.Duration      `json:"duration"`
}

// RunResult aggregates the scenario results of one run.
type RunResult struct {
	RunID     string           `json:"run_id"`
	StartedAt time.Time        `json:"started_at"`
	Duration  time.Duration    `json:"duration"`
	Scenarios []ScenarioResult `json:"scenarios"`
}

// Counts returns the number of passed, failed, and aborted scenarios.
func (r *RunResult) Counts() (passed, failed, aborted int) {
	for _, s := range r.Scenarios {
		switch s.Status {
		case ScenarioPassed:
			passed++
		case ScenarioFailed:
			failed++
		case ScenarioAborted:
			aborted++
		}
	}
	return passed, failed, aborted
}

// OK reports whether every scenario in the run passed.
func (r *RunResult) OK() bool {
	passed, failed, aborted := r.Counts()
	return failed == 0 && aborted == 0 && passed == len(r.Scenarios)
}

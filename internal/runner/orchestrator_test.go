package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
)

// A three-step scenario where the second step needs one repair: the scenario
// passes, the repaired step records two attempts, and the conversation holds
// all three turns in step order.
func TestRunScenario_PassWithOneRepair(t *testing.T) {
	engine := &scriptedEngine{replies: []string{
		`{"action":"navigate","params":{"url":"https://example.com/login"}}`,
		`click the submit button please`,
		`{"action":"click","params":{"ref":"e2"}}`,
		`{"action":"wait_for","params":{"text":"Welcome back"},"expect":"Welcome back"}`,
	}}
	orch := newTestOrchestrator(t, engine, testRunnerConfig())
	svc := newFakeService("s1")

	result := orch.RunScenario(context.Background(), loginScenario(), svc)

	assert.Equal(t, schemas.ScenarioPassed, result.Status)
	assert.Equal(t, -1, result.FailureIndex)
	require.Len(t, result.Steps, 3)
	assert.Equal(t, schemas.VerdictPassed, result.Steps[0].Verdict)
	assert.Equal(t, 1, result.Steps[0].Attempts)
	assert.Equal(t, 2, result.Steps[1].Attempts, "the repaired step consumed two engine invocations")
	assert.Equal(t, 4, engine.callCount())

	require.Len(t, result.Turns, 3)
	for i, turn := range result.Turns {
		assert.Equal(t, i, turn.Step.Index, "turns are strictly ordered by step")
	}
	assert.Equal(t, []string{"navigate", "click", "wait_for"}, svc.executedActions())
}

// With a repair limit of 2 and an engine that never produces valid output,
// the first step consumes exactly 3 invocations, the scenario fails at index
// 0, and nothing is ever dispatched.
func TestRunScenario_UnresolvableFirstStep(t *testing.T) {
	engine := &scriptedEngine{replies: []string{`garbage`, `garbage`, `garbage`}}
	orch := newTestOrchestrator(t, engine, testRunnerConfig())
	svc := newFakeService("s1")

	result := orch.RunScenario(context.Background(), loginScenario(), svc)

	assert.Equal(t, schemas.ScenarioFailed, result.Status)
	assert.Equal(t, 0, result.FailureIndex)
	assert.Equal(t, 3, engine.callCount(), "repair limit 2 means exactly 3 invocations")
	assert.Empty(t, svc.executedActions(), "nothing is dispatched for an uninterpretable step")

	require.Len(t, result.Steps, 3)
	assert.Equal(t, schemas.VerdictFailed, result.Steps[0].Verdict)
	assert.Equal(t, 3, result.Steps[0].Attempts)
	assert.Equal(t, schemas.VerdictSkipped, result.Steps[1].Verdict)
	assert.Equal(t, schemas.VerdictSkipped, result.Steps[2].Verdict)
}

// The first failing step short-circuits the scenario: later steps are neither
// interpreted nor dispatched.
func TestRunScenario_FirstFailureShortCircuits(t *testing.T) {
	engine := &scriptedEngine{replies: []string{
		`{"action":"navigate","params":{"url":"https://example.com/login"}}`,
		`{"action":"click","params":{"ref":"e2"}}`,
	}}
	orch := newTestOrchestrator(t, engine, testRunnerConfig())
	svc := newFakeService("s1",
		success(),
		failure("element e2 is not clickable"),
	)

	result := orch.RunScenario(context.Background(), loginScenario(), svc)

	assert.Equal(t, schemas.ScenarioFailed, result.Status)
	assert.Equal(t, 1, result.FailureIndex)
	assert.Equal(t, 2, engine.callCount(), "the Then step is never interpreted")
	assert.Equal(t, schemas.VerdictSkipped, result.Steps[2].Verdict)
	assert.Contains(t, result.Reason, "not clickable")
}

// Losing the action service mid-scenario aborts: the harness broke, the test
// subject was not proven wrong.
func TestRunScenario_ServiceLossAborts(t *testing.T) {
	engine := &scriptedEngine{replies: []string{
		`{"action":"navigate","params":{"url":"https://example.com/login"}}`,
		`{"action":"click","params":{"ref":"e2"}}`,
	}}
	orch := newTestOrchestrator(t, engine, testRunnerConfig())
	svc := newFakeService("s1",
		success(),
		serviceLoss("browser connection dropped"),
	)

	result := orch.RunScenario(context.Background(), loginScenario(), svc)

	assert.Equal(t, schemas.ScenarioAborted, result.Status)
	assert.Equal(t, -1, result.FailureIndex, "aborts carry no failure index")
	assert.Contains(t, result.Reason, "browser connection dropped")
}

// A timed-out action is re-dispatched up to the retry bound before the
// timeout becomes the step outcome.
func TestRunScenario_ActionTimeoutRetried(t *testing.T) {
	engine := &scriptedEngine{replies: []string{
		`{"action":"navigate","params":{"url":"https://example.com/login"}}`,
	}}
	cfg := testRunnerConfig()
	orch := newTestOrchestrator(t, engine, cfg)
	svc := newFakeService("s1",
		timeout("page load stalled"),
		success(),
	)

	scenario := loginScenario()
	scenario.Steps = scenario.Steps[:1]
	result := orch.RunScenario(context.Background(), scenario, svc)

	assert.Equal(t, schemas.ScenarioPassed, result.Status)
	assert.Equal(t, []string{"navigate", "navigate"}, svc.executedActions())
}

func TestRunScenario_ActionTimeoutExhaustsRetries(t *testing.T) {
	engine := &scriptedEngine{replies: []string{
		`{"action":"navigate","params":{"url":"https://example.com/login"}}`,
	}}
	orch := newTestOrchestrator(t, engine, testRunnerConfig())
	svc := newFakeService("s1",
		timeout("page load stalled"),
		timeout("page load stalled"),
	)

	scenario := loginScenario()
	scenario.Steps = scenario.Steps[:1]
	result := orch.RunScenario(context.Background(), scenario, svc)

	assert.Equal(t, schemas.ScenarioFailed, result.Status)
	assert.Equal(t, 0, result.FailureIndex)
	assert.Len(t, svc.executedActions(), 2, "retry bound 1 means two dispatches")
}

// When the engine supplies no expect value for a Then step, the first quoted
// span of the step text is asserted via an extra wait_for dispatch.
func TestRunScenario_ThenAssertionFallsBackToQuotedText(t *testing.T) {
	engine := &scriptedEngine{replies: []string{
		`{"action":"snapshot"}`,
	}}
	orch := newTestOrchestrator(t, engine, testRunnerConfig())
	svc := newFakeService("s1")

	scenario := loginScenario()
	scenario.Steps = []schemas.Step{
		{Index: 0, Kind: schemas.StepThen, Keyword: "Then", Text: `the page shows "Welcome back"`},
	}
	result := orch.RunScenario(context.Background(), scenario, svc)

	assert.Equal(t, schemas.ScenarioPassed, result.Status)
	actions := svc.executedActions()
	require.Equal(t, []string{"snapshot", "wait_for"}, actions)

	text, _ := svc.executed[1].StringParam("text")
	assert.Equal(t, "Welcome back", text)
}

// A Then assertion that finds no matching content fails the step.
func TestRunScenario_ThenAssertionFails(t *testing.T) {
	engine := &scriptedEngine{replies: []string{
		`{"action":"snapshot","expect":"Welcome back"}`,
	}}
	orch := newTestOrchestrator(t, engine, testRunnerConfig())
	svc := newFakeService("s1",
		success(),
		timeout(`text "Welcome back" did not appear`),
		timeout(`text "Welcome back" did not appear`),
	)

	scenario := loginScenario()
	scenario.Steps = []schemas.Step{
		{Index: 0, Kind: schemas.StepThen, Keyword: "Then", Text: `the page shows "Welcome back"`},
	}
	result := orch.RunScenario(context.Background(), scenario, svc)

	assert.Equal(t, schemas.ScenarioFailed, result.Status)
	assert.Contains(t, result.Reason, "Welcome back")
}

// Cancelling the run mid-dispatch aborts the scenario. The session reports
// the interrupted action as an ordinary failure outcome (its own context is
// still healthy), but that must not be read as the page being wrong.
func TestRunScenario_CancellationAborts(t *testing.T) {
	engine := &scriptedEngine{replies: []string{
		`{"action":"navigate","params":{"url":"https://example.com/login"}}`,
	}}
	orch := newTestOrchestrator(t, engine, testRunnerConfig())
	svc := newFakeService("s1",
		failure("navigation to https://example.com/login failed: context canceled"),
	)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	result := orch.RunScenario(ctx, loginScenario(), svc)

	assert.Equal(t, schemas.ScenarioAborted, result.Status)
	assert.Equal(t, -1, result.FailureIndex, "an interrupted run carries no failure index")
	assert.Contains(t, result.Reason, "interrupted")
	assert.Equal(t, schemas.VerdictSkipped, result.Steps[1].Verdict)
	assert.Equal(t, schemas.VerdictSkipped, result.Steps[2].Verdict)
}

// The scenario hard timeout likewise aborts: the session maps the expired
// deadline to a timeout outcome, which is neither retried nor failed.
func TestRunScenario_ScenarioTimeoutAborts(t *testing.T) {
	engine := &scriptedEngine{replies: []string{
		`{"action":"navigate","params":{"url":"https://example.com/login"}}`,
	}}
	cfg := testRunnerConfig()
	cfg.ScenarioTimeout = time.Nanosecond
	orch := newTestOrchestrator(t, engine, cfg)
	svc := newFakeService("s1",
		timeout("navigation deadline exceeded"),
	)

	scenario := loginScenario()
	result := orch.RunScenario(context.Background(), scenario, svc)

	assert.Equal(t, schemas.ScenarioAborted, result.Status)
	assert.Equal(t, -1, result.FailureIndex)
	assert.Len(t, svc.executedActions(), 1, "a dead scenario context is never retried")
}

// An engine outage (transport failure surfaced by the gateway) aborts the
// scenario rather than failing it.
func TestRunScenario_EngineOutageAborts(t *testing.T) {
	engine := &scriptedEngine{errs: []error{
		assert.AnError,
	}}
	orch := newTestOrchestrator(t, engine, testRunnerConfig())
	svc := newFakeService("s1")

	result := orch.RunScenario(context.Background(), loginScenario(), svc)

	assert.Equal(t, schemas.ScenarioAborted, result.Status)
	assert.Empty(t, svc.executedActions())
}

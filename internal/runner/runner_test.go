package runner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
	"github.com/xkilldash9x/kosher-cli/internal/interpreter"
)

// passingEngine answers every prompt with a catalog-valid navigate.
type passingEngine struct{}

func (passingEngine) Complete(ctx context.Context, req schemas.GenerationRequest) (string, error) {
	return `{"action":"navigate","params":{"url":"https://example.com"},"expect":"Example"}`, nil
}

// recordingReporter captures completed scenarios thread-safely.
type recordingReporter struct {
	mu        sync.Mutex
	completed []schemas.ScenarioResult
	runs      int
}

func (r *recordingReporter) ScenarioCompleted(result schemas.ScenarioResult) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.completed = append(r.completed, result)
}

func (r *recordingReporter) RunCompleted(run *schemas.RunResult) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.runs++
	return nil
}

// memoryStore records persisted runs.
type memoryStore struct {
	mu   sync.Mutex
	runs []*schemas.RunResult
	err  error
}

func (m *memoryStore) PersistRun(ctx context.Context, run *schemas.RunResult) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.runs = append(m.runs, run)
	return nil
}

func (m *memoryStore) Close() {}

func simpleScenario(name string) schemas.Scenario {
	return schemas.Scenario{
		Name:        name,
		FeatureName: "Smoke",
		URI:         "features/smoke.feature",
		Steps: []schemas.Step{
			{Index: 0, Kind: schemas.StepGiven, Keyword: "Given", Text: "the user is on the home page"},
		},
	}
}

func newTestRunner(t *testing.T, engine interpreter.EngineCompleter, provider schemas.SessionProvider, concurrency int, opts ...Option) *Runner {
	t.Helper()
	cfg := testRunnerConfig()
	cfg.Concurrency = concurrency
	interp := interpreter.New(engine, cfg, testEngineConfig(), zap.NewNop())
	return New(interp, provider, cfg, zap.NewNop(), opts...)
}

func TestRun_ResultsKeepInputOrder(t *testing.T) {
	provider := &fakeProvider{services: []*fakeService{
		newFakeService("a"), newFakeService("b"), newFakeService("c"),
	}}
	reporter := &recordingReporter{}
	runner := newTestRunner(t, passingEngine{}, provider, 3, WithReporter(reporter))

	scenarios := []schemas.Scenario{
		simpleScenario("first"), simpleScenario("second"), simpleScenario("third"),
	}
	run, err := runner.Run(context.Background(), scenarios)

	require.NoError(t, err)
	require.Len(t, run.Scenarios, 3)
	assert.Equal(t, "first", run.Scenarios[0].Scenario)
	assert.Equal(t, "second", run.Scenarios[1].Scenario)
	assert.Equal(t, "third", run.Scenarios[2].Scenario)
	assert.True(t, run.OK())

	reporter.mu.Lock()
	assert.Len(t, reporter.completed, 3)
	reporter.mu.Unlock()
}

func TestRun_SessionsReleasedAfterEachScenario(t *testing.T) {
	services := []*fakeService{newFakeService("a"), newFakeService("b")}
	provider := &fakeProvider{services: services}
	runner := newTestRunner(t, passingEngine{}, provider, 1)

	_, err := runner.Run(context.Background(), []schemas.Scenario{
		simpleScenario("one"), simpleScenario("two"),
	})

	require.NoError(t, err)
	for _, svc := range services {
		assert.True(t, svc.closed, "session %s must be closed", svc.id)
	}
}

func TestRun_AcquireFailureAbortsScenario(t *testing.T) {
	provider := &fakeProvider{err: errors.New("browser did not start")}
	runner := newTestRunner(t, passingEngine{}, provider, 1)

	run, err := runner.Run(context.Background(), []schemas.Scenario{simpleScenario("only")})

	require.NoError(t, err, "acquisition failure is a scenario abort, not a run error")
	require.Len(t, run.Scenarios, 1)
	assert.Equal(t, schemas.ScenarioAborted, run.Scenarios[0].Status)
	assert.Contains(t, run.Scenarios[0].Reason, "browser did not start")
	require.Len(t, run.Scenarios[0].Steps, 1)
	assert.Equal(t, schemas.VerdictSkipped, run.Scenarios[0].Steps[0].Verdict)
}

func TestRun_PersistsViaStore(t *testing.T) {
	store := &memoryStore{}
	provider := &fakeProvider{services: []*fakeService{newFakeService("a")}}
	runner := newTestRunner(t, passingEngine{}, provider, 1, WithStore(store))

	run, err := runner.Run(context.Background(), []schemas.Scenario{simpleScenario("only")})

	require.NoError(t, err)
	store.mu.Lock()
	require.Len(t, store.runs, 1)
	assert.Equal(t, run.RunID, store.runs[0].RunID)
	store.mu.Unlock()
}

func TestRun_StoreFailureSurfaces(t *testing.T) {
	store := &memoryStore{err: errors.New("connection refused")}
	provider := &fakeProvider{services: []*fakeService{newFakeService("a")}}
	runner := newTestRunner(t, passingEngine{}, provider, 1, WithStore(store))

	run, err := runner.Run(context.Background(), []schemas.Scenario{simpleScenario("only")})

	require.Error(t, err)
	require.NotNil(t, run, "results survive a persistence failure")
	assert.True(t, run.OK())
}

func TestRunBenchmark_AggregatesIterations(t *testing.T) {
	// The engine fails the single step on every iteration by answering with
	// an action the page rejects.
	engine := passingEngine{}
	provider := &fakeProvider{}
	runner := newTestRunner(t, engine, provider, 1)

	stats, err := runner.RunBenchmark(context.Background(), []schemas.Scenario{simpleScenario("smoke")}, 3)

	require.NoError(t, err)
	assert.Equal(t, 3, stats.Iterations)
	require.Len(t, stats.Scenarios, 1)
	agg := stats.Scenarios[0]
	assert.Equal(t, "smoke", agg.Scenario)
	assert.Equal(t, 3, agg.Passed+agg.Failed+agg.Aborted)
	assert.InDelta(t, 1.0, agg.PassRate(), 0.001)
}

func TestBenchmarkCollector_CountsFirstFailingStep(t *testing.T) {
	collector := newBenchmarkCollector()

	failing := schemas.ScenarioResult{
		Scenario:     "login",
		Feature:      "auth",
		Status:       schemas.ScenarioFailed,
		FailureIndex: 1,
		Steps: []schemas.StepResult{
			{Step: schemas.Step{Index: 0, Kind: schemas.StepGiven, Text: "a"}, Verdict: schemas.VerdictPassed},
			{Step: schemas.Step{Index: 1, Kind: schemas.StepWhen, Text: "b"}, Verdict: schemas.VerdictFailed},
		},
	}
	passing := failing
	passing.Status = schemas.ScenarioPassed
	passing.FailureIndex = -1

	collector.observe(&schemas.RunResult{Scenarios: []schemas.ScenarioResult{failing}})
	collector.observe(&schemas.RunResult{Scenarios: []schemas.ScenarioResult{failing}})
	collector.observe(&schemas.RunResult{Scenarios: []schemas.ScenarioResult{passing}})

	stats := collector.stats(3, time.Second)
	require.Len(t, stats.Scenarios, 1)
	agg := stats.Scenarios[0]
	assert.Equal(t, 1, agg.Passed)
	assert.Equal(t, 2, agg.Failed)
	require.Len(t, agg.Steps, 1)
	assert.Equal(t, 1, agg.Steps[0].Index)
	assert.Equal(t, 2, agg.Steps[0].Count)
	assert.Equal(t, "When b", agg.Steps[0].Text)
}

// File: internal/runner/runner.go
package runner

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
	"github.com/xkilldash9x/kosher-cli/internal/config"
)

// Runner executes a set of scenarios, each in its own browser session.
// Scenario-level parallelism is bounded by configuration; results keep the
// input order regardless of completion order.
type Runner struct {
	orch     *Orchestrator
	sessions schemas.SessionProvider
	cfg      config.RunnerConfig
	logger   *zap.Logger
	reporter schemas.Reporter
	store    schemas.ResultStore
}

// Option customizes a Runner.
type Option func(*Runner)

// WithReporter streams scenario results as they complete.
func WithReporter(r schemas.Reporter) Option {
	return func(run *Runner) { run.reporter = r }
}

// WithStore persists each finished run.
func WithStore(s schemas.ResultStore) Option {
	return func(run *Runner) { run.store = s }
}

func New(interp StepInterpreter, sessions schemas.SessionProvider, cfg config.RunnerConfig, logger *zap.Logger, opts ...Option) *Runner {
	r := &Runner{
		orch:     NewOrchestrator(interp, cfg, logger),
		sessions: sessions,
		cfg:      cfg,
		logger:   logger.Named("runner"),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Run executes all scenarios and returns the aggregated result. Scenario
// failures and aborts are recorded in the result, not returned as errors; the
// error return covers run-level breakage only (context cancellation,
// persistence failure).
func (r *Runner) Run(ctx context.Context, scenarios []schemas.Scenario) (*schemas.RunResult, error) {
	run := &schemas.RunResult{
		RunID:     uuid.New().String(),
		StartedAt: time.Now(),
		Scenarios: make([]schemas.ScenarioResult, len(scenarios)),
	}
	r.logger.Info("Run started",
		zap.String("run_id", run.RunID),
		zap.Int("scenarios", len(scenarios)),
		zap.Int("concurrency", r.cfg.Concurrency))

	g, groupCtx := errgroup.WithContext(ctx)
	g.SetLimit(r.cfg.Concurrency)

	for i, scenario := range scenarios {
		g.Go(func() error {
			result := r.runOne(groupCtx, scenario)
			run.Scenarios[i] = result
			if r.reporter != nil {
				r.reporter.ScenarioCompleted(result)
			}
			return nil
		})
	}

	// Workers never return errors; Wait only synchronizes completion.
	_ = g.Wait()
	run.Duration = time.Since(run.StartedAt)

	if err := ctx.Err(); err != nil {
		return run, err
	}

	if r.store != nil {
		if err := r.store.PersistRun(ctx, run); err != nil {
			r.logger.Error("Failed to persist run", zap.Error(err))
			return run, err
		}
	}
	return run, nil
}

// runOne acquires a dedicated session, executes the scenario, and guarantees
// the session is released even when execution panics the scenario away.
func (r *Runner) runOne(ctx context.Context, scenario schemas.Scenario) schemas.ScenarioResult {
	svc, err := r.sessions.Acquire(ctx)
	if err != nil {
		r.logger.Error("Failed to acquire browser session",
			zap.String("scenario", scenario.Name), zap.Error(err))
		return abortedResult(scenario, "could not acquire a browser session: "+err.Error())
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if cerr := svc.Close(closeCtx); cerr != nil {
			r.logger.Warn("Error releasing session",
				zap.String("session_id", svc.ID()), zap.Error(cerr))
		}
	}()

	return r.orch.RunScenario(ctx, scenario, svc)
}

// abortedResult records a scenario that never started executing steps: every
// step is skipped and the status is aborted.
func abortedResult(scenario schemas.Scenario, reason string) schemas.ScenarioResult {
	return schemas.ScenarioResult{
		RunID:        uuid.New().String(),
		Scenario:     scenario.Name,
		Feature:      scenario.FeatureName,
		URI:          scenario.URI,
		Status:       schemas.ScenarioAborted,
		FailureIndex: -1,
		Reason:       reason,
		Steps:        skippedSteps(scenario.Steps),
		StartedAt:    time.Now(),
	}
}

// File: internal/runner/orchestrator.go

// Package runner executes parsed scenarios: each step is interpreted into an
// action request, dispatched against a browser session, and recorded as a
// conversation turn. Scenarios stop at the first failing step.
package runner

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
	"github.com/xkilldash9x/kosher-cli/internal/config"
	"github.com/xkilldash9x/kosher-cli/internal/interpreter"
)

// StepInterpreter is the slice of the interpreter the orchestrator consumes.
type StepInterpreter interface {
	Interpret(ctx context.Context, pctx interpreter.PromptContext, catalog schemas.ActionCatalog) (interpreter.Interpretation, error)
}

// Orchestrator drives one scenario at a time through the
// interpret-dispatch-record cycle.
type Orchestrator struct {
	interp StepInterpreter
	cfg    config.RunnerConfig
	logger *zap.Logger
}

func NewOrchestrator(interp StepInterpreter, cfg config.RunnerConfig, logger *zap.Logger) *Orchestrator {
	return &Orchestrator{
		interp: interp,
		cfg:    cfg,
		logger: logger.Named("orchestrator"),
	}
}

// quotedTextRegex captures the first double-quoted span of a step, used as
// the assertion text when the engine supplies no explicit expectation.
var quotedTextRegex = regexp.MustCompile(`"([^"]+)"`)

// RunScenario executes every step of the scenario in order against the given
// session and returns the terminal result. It never returns an error: harness
// breakage is expressed as an aborted result.
func (o *Orchestrator) RunScenario(ctx context.Context, scenario schemas.Scenario, svc schemas.ActionService) schemas.ScenarioResult {
	result := schemas.ScenarioResult{
		RunID:        uuid.New().String(),
		Scenario:     scenario.Name,
		Feature:      scenario.FeatureName,
		URI:          scenario.URI,
		Status:       schemas.ScenarioPassed,
		FailureIndex: -1,
		StartedAt:    time.Now(),
	}

	logger := o.logger.With(
		zap.String("scenario", scenario.Name),
		zap.String("session_id", svc.ID()))
	logger.Info("Scenario started", zap.Int("steps", len(scenario.Steps)))

	if o.cfg.ScenarioTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.ScenarioTimeout)
		defer cancel()
	}

	conv := NewConversation()
	catalog := svc.Catalog()
	var snapshot *schemas.PageSnapshot

	for i, step := range scenario.Steps {
		stepStart := time.Now()

		turn, verdict := o.runStep(ctx, scenario, step, svc, catalog, conv, snapshot)

		stepResult := schemas.StepResult{
			Step:     step,
			Verdict:  verdict.kind,
			Detail:   verdict.detail,
			Attempts: turn.Attempts,
			Duration: time.Since(stepStart),
		}
		result.Steps = append(result.Steps, stepResult)

		if verdict.kind == schemas.VerdictPassed {
			conv.Append(turn)
			snapshot = o.refreshSnapshot(ctx, svc, logger)
			continue
		}

		// First failure wins: no further steps are interpreted or dispatched.
		if verdict.aborted {
			result.Status = schemas.ScenarioAborted
		} else {
			result.Status = schemas.ScenarioFailed
			result.FailureIndex = i
		}
		result.Reason = verdict.detail
		conv.Append(turn)
		result.Steps = append(result.Steps, skippedSteps(scenario.Steps[i+1:])...)
		break
	}

	result.Turns = conv.All()
	result.Duration = time.Since(result.StartedAt)
	logger.Info("Scenario finished",
		zap.String("status", string(result.Status)),
		zap.Duration("duration", result.Duration))
	return result
}

// stepVerdict is the internal outcome of one step attempt.
type stepVerdict struct {
	kind    schemas.StepVerdict
	detail  string
	aborted bool
}

func passVerdict() stepVerdict {
	return stepVerdict{kind: schemas.VerdictPassed}
}

func failVerdict(detail string) stepVerdict {
	return stepVerdict{kind: schemas.VerdictFailed, detail: detail}
}

func abortVerdict(detail string) stepVerdict {
	return stepVerdict{kind: schemas.VerdictFailed, detail: detail, aborted: true}
}

func (o *Orchestrator) runStep(
	ctx context.Context,
	scenario schemas.Scenario,
	step schemas.Step,
	svc schemas.ActionService,
	catalog schemas.ActionCatalog,
	conv *Conversation,
	snapshot *schemas.PageSnapshot,
) (schemas.ConversationTurn, stepVerdict) {

	turn := schemas.ConversationTurn{Step: step}

	pctx := interpreter.PromptContext{
		Scenario: scenario,
		Step:     step,
		Turns:    conv.Window(o.cfg.ContextWindowTurns),
		Snapshot: snapshot,
	}

	out, err := o.interp.Interpret(ctx, pctx, catalog)
	turn.Attempts = out.Attempts
	turn.RawResponse = out.RawReply
	if err != nil {
		var unresolvable *interpreter.UnresolvableStepError
		if errors.As(err, &unresolvable) {
			// The engine kept producing invalid replies; the harness is fine,
			// the step just cannot be interpreted. That fails the scenario.
			turn.Attempts = unresolvable.Attempts
			turn.RawResponse = unresolvable.RawReply
			turn.Outcome = schemas.ActionOutcome{Status: schemas.OutcomeFailure, Error: unresolvable.Error()}
			return turn, failVerdict(unresolvable.Error())
		}
		turn.Outcome = schemas.ActionOutcome{Status: schemas.OutcomeFailure, Error: err.Error()}
		return turn, abortVerdict(fmt.Sprintf("step %d could not be interpreted: %v", step.Index, err))
	}
	turn.Request = out.Request

	outcome, err := o.dispatch(ctx, svc, out.Request)
	if err != nil {
		turn.Outcome = schemas.ActionOutcome{Status: schemas.OutcomeFailure, Error: err.Error()}
		return turn, abortVerdict(fmt.Sprintf("action service lost during step %d: %v", step.Index, err))
	}
	turn.Outcome = outcome

	if outcome.Status != schemas.OutcomeSuccess {
		// Cancellation and the scenario hard timeout surface as ordinary
		// failure/timeout outcomes from the session, whose own context is
		// still healthy. That is the harness being interrupted, not the page
		// being wrong.
		if ctx.Err() != nil {
			return turn, abortVerdict(fmt.Sprintf("scenario interrupted during step %d: %v", step.Index, ctx.Err()))
		}
		return turn, failVerdict(fmt.Sprintf("action %s did not succeed: %s", out.Request.Action, outcome.String()))
	}

	// Assertion steps additionally verify expected page content.
	if step.Kind == schemas.StepThen {
		if verdict, ok := o.assertExpectation(ctx, svc, catalog, step, &turn); !ok {
			return turn, verdict
		}
	}

	return turn, passVerdict()
}

// dispatch executes one validated request, retrying timed-out actions up to
// the configured bound. Genuine failures are never retried; a failed click is
// a signal about the page, not a flake.
func (o *Orchestrator) dispatch(ctx context.Context, svc schemas.ActionService, req schemas.ActionRequest) (schemas.ActionOutcome, error) {
	var outcome schemas.ActionOutcome
	var err error

	for attempt := 0; attempt <= o.cfg.MaxActionRetries; attempt++ {
		actionCtx := ctx
		var cancel context.CancelFunc
		if o.cfg.ActionTimeout > 0 {
			actionCtx, cancel = context.WithTimeout(ctx, o.cfg.ActionTimeout)
		}
		outcome, err = svc.Execute(actionCtx, req)
		if cancel != nil {
			cancel()
		}
		if err != nil {
			return schemas.ActionOutcome{}, err
		}
		if outcome.Status != schemas.OutcomeTimeout || ctx.Err() != nil {
			return outcome, nil
		}
		o.logger.Warn("Action timed out, retrying",
			zap.String("action", req.Action),
			zap.Int("attempt", attempt+1))
	}
	return outcome, nil
}

// assertExpectation checks a Then step's expected content. The engine is
// asked to provide it via the request's expect field; when absent, the first
// quoted span of the step text is used. With neither, a successful action
// outcome carries the assertion.
func (o *Orchestrator) assertExpectation(
	ctx context.Context,
	svc schemas.ActionService,
	catalog schemas.ActionCatalog,
	step schemas.Step,
	turn *schemas.ConversationTurn,
) (stepVerdict, bool) {

	expect := turn.Request.Expect
	if expect == "" {
		if m := quotedTextRegex.FindStringSubmatch(step.Text); m != nil {
			expect = m[1]
		}
	}
	if expect == "" {
		return passVerdict(), true
	}

	// When the step's own action already proved the expectation, skip the
	// extra round trip.
	if turn.Request.Action == "wait_for" {
		if text, _ := turn.Request.StringParam("text"); text == expect {
			return passVerdict(), true
		}
	}

	if _, ok := catalog.Lookup("wait_for"); !ok {
		return passVerdict(), true
	}

	check := schemas.ActionRequest{
		Action: "wait_for",
		Params: map[string]any{"text": expect},
	}
	outcome, err := o.dispatch(ctx, svc, check)
	if err != nil {
		turn.Outcome = schemas.ActionOutcome{Status: schemas.OutcomeFailure, Error: err.Error()}
		return abortVerdict(fmt.Sprintf("action service lost during assertion: %v", err)), false
	}
	if outcome.Status != schemas.OutcomeSuccess {
		turn.Outcome = outcome
		if ctx.Err() != nil {
			return abortVerdict(fmt.Sprintf("scenario interrupted during assertion: %v", ctx.Err())), false
		}
		return failVerdict(fmt.Sprintf("expected page content %q not found: %s", expect, outcome.String())), false
	}
	return passVerdict(), true
}

// refreshSnapshot captures the page state for the next step's prompt. A
// failed capture degrades the prompt but does not stop the scenario; a truly
// lost session surfaces on the next dispatch.
func (o *Orchestrator) refreshSnapshot(ctx context.Context, svc schemas.ActionService, logger *zap.Logger) *schemas.PageSnapshot {
	snap, err := svc.Snapshot(ctx)
	if err != nil {
		logger.Warn("Page snapshot failed", zap.Error(err))
		return nil
	}
	return &snap
}

func skippedSteps(steps []schemas.Step) []schemas.StepResult {
	out := make([]schemas.StepResult, 0, len(steps))
	for _, s := range steps {
		out = append(out, schemas.StepResult{
			Step:    s,
			Verdict: schemas.VerdictSkipped,
			Detail:  "not executed: an earlier step did not pass",
		})
	}
	return out
}

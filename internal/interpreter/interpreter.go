// File: internal/interpreter/interpreter.go

// Package interpreter turns Gherkin steps into validated browser action
// requests by prompting an inference engine and repairing malformed replies a
// bounded number of times.
package interpreter

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
	"github.com/xkilldash9x/kosher-cli/internal/config"
)

// EngineCompleter is the narrow slice of the engine gateway the interpreter
// needs: one prompt in, one raw completion out.
type EngineCompleter interface {
	Complete(ctx context.Context, req schemas.GenerationRequest) (string, error)
}

// UnresolvableStepError reports that the engine could not produce a valid
// action request for a step within the repair budget. The owning scenario
// fails (the step could not be interpreted); it does not abort, because the
// harness itself is healthy.
type UnresolvableStepError struct {
	Step     schemas.Step
	Attempts int
	Last     *ValidationError
	RawReply string
}

func (e *UnresolvableStepError) Error() string {
	return fmt.Sprintf("step %d (%s) unresolvable after %d attempts: %v",
		e.Step.Index, e.Step.FullText(), e.Attempts, e.Last)
}

func (e *UnresolvableStepError) Unwrap() error { return e.Last }

// Interpretation is the successful output of one step interpretation.
type Interpretation struct {
	Request  schemas.ActionRequest
	RawReply string
	// Attempts counts engine invocations consumed, including repairs.
	Attempts int
}

// Interpreter drives the interpret-validate-repair cycle for single steps.
type Interpreter struct {
	engine        EngineCompleter
	logger        *zap.Logger
	maxRepairs    int
	engineOptions schemas.GenerationOptions
}

// New builds an Interpreter. maxRepairs comes from runner configuration; with
// R repairs allowed a step consumes at most R+1 engine invocations.
func New(engine EngineCompleter, runnerCfg config.RunnerConfig, engineCfg config.EngineConfig, logger *zap.Logger) *Interpreter {
	return &Interpreter{
		engine:     engine,
		logger:     logger.Named("interpreter"),
		maxRepairs: runnerCfg.MaxRepairAttempts,
		engineOptions: schemas.GenerationOptions{
			Temperature:     engineCfg.Temperature,
			ForceJSONFormat: true,
			MaxTokens:       engineCfg.MaxTokens,
		},
	}
}

// Interpret produces a validated action request for pctx.Step, invoking the
// engine up to maxRepairs+1 times. Engine transport failures propagate
// immediately and are never spent against the repair budget; only invalid
// replies trigger repair.
func (i *Interpreter) Interpret(ctx context.Context, pctx PromptContext, catalog schemas.ActionCatalog) (Interpretation, error) {
	systemPrompt := BuildSystemPrompt(catalog)
	originalPrompt := BuildUserPrompt(pctx)
	userPrompt := originalPrompt

	var lastErr *ValidationError
	var lastRaw string

	for attempt := 1; attempt <= i.maxRepairs+1; attempt++ {
		raw, err := i.engine.Complete(ctx, schemas.GenerationRequest{
			SystemPrompt: systemPrompt,
			UserPrompt:   userPrompt,
			Options:      i.engineOptions,
		})
		if err != nil {
			return Interpretation{}, fmt.Errorf("engine invocation for step %d failed: %w", pctx.Step.Index, err)
		}
		lastRaw = raw

		req, verr := i.parseAndValidate(raw, catalog)
		if verr == nil {
			if attempt > 1 {
				i.logger.Info("Step interpretation repaired",
					zap.Int("step", pctx.Step.Index),
					zap.Int("attempts", attempt))
			}
			return Interpretation{Request: req, RawReply: raw, Attempts: attempt}, nil
		}
		lastErr = verr

		i.logger.Warn("Engine reply rejected",
			zap.Int("step", pctx.Step.Index),
			zap.Int("attempt", attempt),
			zap.String("check", verr.Check),
			zap.String("detail", verr.Detail))

		// Repair prompts always extend the ORIGINAL context, not the
		// previous repair prompt, so rejected replies never stack up.
		userPrompt = BuildRepairPrompt(originalPrompt, verr, raw)
	}

	return Interpretation{}, &UnresolvableStepError{
		Step:     pctx.Step,
		Attempts: i.maxRepairs + 1,
		Last:     lastErr,
		RawReply: lastRaw,
	}
}

// parseAndValidate folds extraction into the validation pipeline: a reply
// that yields no JSON object fails the extractable check.
func (i *Interpreter) parseAndValidate(raw string, catalog schemas.ActionCatalog) (schemas.ActionRequest, *ValidationError) {
	req, err := ExtractActionRequest(raw)
	if err != nil {
		return schemas.ActionRequest{}, &ValidationError{
			Check:  CheckExtractable,
			Detail: fmt.Sprintf("the reply must be a single JSON object: %v", err),
		}
	}
	if verr := Validate(req, catalog); verr != nil {
		return schemas.ActionRequest{}, verr
	}
	return req, nil
}

// File: internal/interpreter/prompt.go
package interpreter

import (
	"fmt"
	"strings"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
)

const systemPromptHeader = `You are a test automation operator. You translate one Gherkin step at a time into exactly one browser action.

Rules:
- Reply with a single JSON object and nothing else: {"action": "...", "params": {...}, "expect": "...", "rationale": "..."}.
- "action" must be one of the catalog actions listed below, with the declared parameters.
- Element references (e1, e2, ...) come from the page snapshot; only use refs that appear there.
- Use concrete values taken from the step text or the page snapshot. Never emit template placeholders such as <value>, {{value}}, ${value}, YOUR_..., or TODO.
- For "Then" steps, set "expect" to the exact text the page should contain for the assertion to pass.
- "rationale" is one short sentence; it is optional.

Action catalog:`

// BuildSystemPrompt renders the operator instructions plus the session's
// action catalog. The catalog is data negotiated per session, so the prompt is
// rebuilt whenever a new session starts.
func BuildSystemPrompt(catalog schemas.ActionCatalog) string {
	var b strings.Builder
	b.WriteString(systemPromptHeader)
	b.WriteString("\n")
	for _, spec := range catalog {
		b.WriteString(fmt.Sprintf("- %s: %s\n", spec.Name, spec.Description))
		for _, p := range spec.Params {
			req := "optional"
			if p.Required {
				req = "required"
			}
			b.WriteString(fmt.Sprintf("    %s (%s, %s): %s\n", p.Name, p.Type, req, p.Description))
		}
	}
	return b.String()
}

// PromptContext carries everything the engine needs to interpret one step.
type PromptContext struct {
	Scenario schemas.Scenario
	Step     schemas.Step
	// Turns is the already-bounded window of completed turns, in step order.
	Turns    []schemas.ConversationTurn
	Snapshot *schemas.PageSnapshot
}

// BuildUserPrompt assembles the per-step prompt: scenario framing, the bounded
// history of completed turns, the current page snapshot, and the step to
// perform now.
func BuildUserPrompt(pctx PromptContext) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Feature: %s\nScenario: %s\n", pctx.Scenario.FeatureName, pctx.Scenario.Name)

	if len(pctx.Turns) > 0 {
		b.WriteString("\nCompleted steps:\n")
		for _, turn := range pctx.Turns {
			fmt.Fprintf(&b, "%d. %s -> %s(%s) -> %s\n",
				turn.Step.Index+1,
				turn.Step.FullText(),
				turn.Request.Action,
				renderParams(turn.Request.Params),
				turn.Outcome.String())
		}
	}

	if pctx.Snapshot != nil {
		fmt.Fprintf(&b, "\nCurrent page: %s (%s)\n%s\n", pctx.Snapshot.Title, pctx.Snapshot.URL, pctx.Snapshot.Digest)
	}

	fmt.Fprintf(&b, "\nPerform this step now:\n%s\n", pctx.Step.FullText())
	writeStepAttachments(&b, pctx.Step)

	if pctx.Step.Kind == schemas.StepThen {
		b.WriteString("\nThis is an assertion step. Set \"expect\" to the exact text that must be present on the page.\n")
	}

	return b.String()
}

// BuildRepairPrompt extends the original prompt with the rejection reason and
// the raw reply that was rejected, asking for a corrected reply. The engine
// sees the full original context again; repair never mutates the rejected
// reply directly.
func BuildRepairPrompt(original string, verr *ValidationError, rawReply string) string {
	var b strings.Builder
	b.WriteString(original)
	b.WriteString("\nYour previous reply was rejected: ")
	b.WriteString(verr.Detail)
	b.WriteString("\nPrevious reply:\n")
	b.WriteString(strings.TrimSpace(rawReply))
	b.WriteString("\n\nReply again with a single corrected JSON object.\n")
	return b.String()
}

func writeStepAttachments(b *strings.Builder, step schemas.Step) {
	if step.Table != nil && len(step.Table.Rows) > 0 {
		b.WriteString("Step data table:\n")
		for _, row := range step.Table.Rows {
			fmt.Fprintf(b, "| %s |\n", strings.Join(row, " | "))
		}
	}
	if step.Doc != nil && step.Doc.Content != "" {
		fmt.Fprintf(b, "Step text block:\n%s\n", step.Doc.Content)
	}
}

func renderParams(params map[string]any) string {
	if len(params) == 0 {
		return ""
	}
	data, err := json.Marshal(params)
	if err != nil {
		return ""
	}
	return string(data)
}

package schemas

import "context"

// -- Inference engine boundary --

// GenerationOptions controls the text generation process of the engine.
type GenerationOptions struct {
	Temperature     float64 `json:"temperature"`
	ForceJSONFormat bool    `json:"force_json_format"`
	MaxTokens       int     `json:"max_tokens,omitempty"`
}

// GenerationRequest encapsulates one complete request to the inference engine.
// The engine returns free-form text; no output schema is enforced at this
// boundary. Structured-output enforcement is entirely the validator's job.
type GenerationRequest struct {
	SystemPrompt string            `json:"system_prompt"`
	UserPrompt   string            `json:"user_prompt"`
	Options      GenerationOptions `json:"options"`
}

// EngineClient abstracts a natural-language completion provider (Gemini,
// Ollama). Implementations own provider-level transport concerns only.
type EngineClient interface {
	// Generate produces a raw text completion for the request.
	Generate(ctx context.Context, req GenerationRequest) (string, error)
	// Close releases any resources held by the client.
	Close() error
}

// -- Action-execution service boundary --

// ActionService is one browser session offering a finite, session-negotiated
// catalog of named operations. Execute returns an error only when the service
// itself is lost (connection dropped, browser gone); action-level problems are
// reported through the returned ActionOutcome.
type ActionService interface {
	// ID returns the unique identifier of the underlying session.
	ID() string
	// Catalog returns the operations negotiated for this session.
	Catalog() ActionCatalog
	// Execute performs one validated action and normalizes its result.
	Execute(ctx context.Context, req ActionRequest) (ActionOutcome, error)
	// Snapshot captures a fresh textual digest of the current page state.
	Snapshot(ctx context.Context) (PageSnapshot, error)
	// Close releases the session. Sessions are never reused across scenarios.
	Close(ctx context.Context) error
}

// SessionProvider hands out isolated action-service sessions, one per
// scenario execution (scoped acquisition, guaranteed release).
type SessionProvider interface {
	Acquire(ctx context.Context) (ActionService, error)
}

// -- Persistence boundary --

// ResultStore persists run history. Persistence is optional; runs proceed
// without a store configured.
type ResultStore interface {
	PersistRun(ctx context.Context, run *RunResult) error
	Close()
}

// -- Reporter boundary --

// Reporter consumes scenario results as they complete and a final run
// aggregate. It accepts no return value; presentation is its own concern.
type Reporter interface {
	ScenarioCompleted(result ScenarioResult)
	RunCompleted(run *RunResult) error
}

package schemas

import "fmt"

// ParamType enumerates the parameter types the action catalog can express.
type ParamType string

const (
	ParamString  ParamType = "string"
	ParamNumber  ParamType = "number"
	ParamBoolean ParamType = "boolean"
)

// ParamSpec describes one named parameter of a catalog action.
type ParamSpec struct {
	Name        string    `json:"name"`
	Type        ParamType `json:"type"`
	Required    bool      `json:"required"`
	Description string    `json:"description,omitempty"`
}

// ActionSpec is one entry of the session-negotiated action catalog: a callable
// browser operation with its parameter schema. The catalog is data, not a
// closed enumeration; validation checks membership and schema conformance.
type ActionSpec struct {
	Name        string      `json:"name"`
	Description string      `json:"description"`
	Params      []ParamSpec `json:"params,omitempty"`
}

// Param returns the spec for the named parameter, if declared.
func (a ActionSpec) Param(name string) (ParamSpec, bool) {
	for _, p := range a.Params {
		if p.Name == name {
			return p, true
		}
	}
	return ParamSpec{}, false
}

// ActionCatalog is the full set of operations offered by the action-execution
// service for one session.
type ActionCatalog []ActionSpec

// Lookup returns the spec for the named action, if present.
func (c ActionCatalog) Lookup(name string) (ActionSpec, bool) {
	for _, a := range c {
		if a.Name == name {
			return a, true
		}
	}
	return ActionSpec{}, false
}

// Names returns the action names in catalog order.
func (c ActionCatalog) Names() []string {
	out := make([]string, len(c))
	for i, a := range c {
		out[i] = a.Name
	}
	return out
}

// ActionRequest is a validated, structured instruction to perform one named
// action with bound parameters. It exists only transiently per step attempt;
// every repair attempt produces a fresh request.
type ActionRequest struct {
	Action string         `json:"action"`
	Params map[string]any `json:"params,omitempty"`
	// Expect carries the expected page content for assertion (Then) steps.
	Expect    string `json:"expect,omitempty"`
	Rationale string `json:"rationale,omitempty"`
}

// StringParam returns the named parameter as a string, when present and
// actually a string.
func (r ActionRequest) StringParam(name string) (string, bool) {
	v, ok := r.Params[name]
	if !ok {
		return "", false
	}
	s, ok := v.(string)
	return s, ok
}

// OutcomeStatus is the three-way normalization of action execution results.
type OutcomeStatus string

const (
	OutcomeSuccess OutcomeStatus = "success"
	OutcomeFailure OutcomeStatus = "failure"
	OutcomeTimeout OutcomeStatus = "timeout"
)

// ActionOutcome is the normalized result of dispatching one ActionRequest.
type ActionOutcome struct {
	Status OutcomeStatus `json:"status"`
	// Result holds the success payload (extracted text, confirmation detail).
	Result string `json:"result,omitempty"`
	// Error holds the failure detail when Status is failure or timeout.
	Error string `json:"error,omitempty"`
}

func (o ActionOutcome) String() string {
	switch o.Status {
	case OutcomeSuccess:
		return "success"
	case OutcomeTimeout:
		return fmt.Sprintf("timeout: %s", o.Error)
	default:
		return fmt.Sprintf("failure: %s", o.Error)
	}
}

// PageSnapshot is a textual digest of the current page state, produced by the
// action service after navigation or interaction. Element refs embedded in the
// digest are the currency for targetRef-style action parameters.
type PageSnapshot struct {
	URL    string `json:"url"`
	Title  string `json:"title"`
	Digest string `json:"digest"`
}

// ConversationTurn records one completed step: the final request used, its
// outcome, and how many engine invocations the step consumed. Turns are
// append-only and strictly ordered by step index.
type ConversationTurn struct {
	Step        Step          `json:"step"`
	Request     ActionRequest `json:"request"`
	RawResponse string        `json:"raw_response,omitempty"`
	Outcome     ActionOutcome `json:"outcome"`
	Attempts    int           `json:"attempts"`
}

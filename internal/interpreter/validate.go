// File: internal/interpreter/validate.go
package interpreter

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
)

// Check names identify which validation stage rejected a reply. They appear in
// repair prompts and in logs, so they read as plain English.
const (
	CheckExtractable   = "extractable"
	CheckKnownAction   = "known_action"
	CheckRequiredParam = "required_param"
	CheckParamType     = "param_type"
	CheckPlaceholder   = "placeholder"
)

// ValidationError describes why an engine reply was rejected. The Detail is
// written to be fed back to the engine verbatim during repair.
type ValidationError struct {
	Check  string
	Detail string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed (%s): %s", e.Check, e.Detail)
}

// placeholderPatterns match values the engine emitted without grounding them
// in the actual page or step: template markers and stock filler text.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`^<[^>]*>$`),
	regexp.MustCompile(`\{\{[^}]*\}\}`),
	regexp.MustCompile(`\$\{[^}]*\}`),
	regexp.MustCompile(`(?i)\bYOUR_[A-Z_]+\b`),
	regexp.MustCompile(`(?i)^(?:TODO|TBD|PLACEHOLDER|FIXME)$`),
}

// Validate checks a parsed action request against the session catalog. Checks
// run in a fixed order and the first failure wins: action membership, required
// parameters, parameter types, placeholder rejection. Validation is a pure
// function of (request, catalog); validating twice gives the same answer.
func Validate(req schemas.ActionRequest, catalog schemas.ActionCatalog) *ValidationError {
	if strings.TrimSpace(req.Action) == "" {
		return &ValidationError{
			Check:  CheckKnownAction,
			Detail: fmt.Sprintf("the reply names no action; choose one of: %s", strings.Join(catalog.Names(), ", ")),
		}
	}

	spec, ok := catalog.Lookup(req.Action)
	if !ok {
		return &ValidationError{
			Check:  CheckKnownAction,
			Detail: fmt.Sprintf("action %q is not in the catalog; choose one of: %s", req.Action, strings.Join(catalog.Names(), ", ")),
		}
	}

	for _, p := range spec.Params {
		v, present := req.Params[p.Name]
		if !present {
			if p.Required {
				return &ValidationError{
					Check:  CheckRequiredParam,
					Detail: fmt.Sprintf("action %q requires parameter %q (%s)", spec.Name, p.Name, p.Type),
				}
			}
			continue
		}
		if err := checkParamType(spec.Name, p, v); err != nil {
			return err
		}
	}

	for _, p := range spec.Params {
		if s, ok := req.StringParam(p.Name); ok {
			if pattern := matchPlaceholder(s); pattern != "" {
				return &ValidationError{
					Check:  CheckPlaceholder,
					Detail: fmt.Sprintf("parameter %q value %q is a placeholder (%s); use a concrete value from the step or the page snapshot", p.Name, s, pattern),
				}
			}
		}
	}
	if pattern := matchPlaceholder(req.Expect); pattern != "" {
		return &ValidationError{
			Check:  CheckPlaceholder,
			Detail: fmt.Sprintf("expect value %q is a placeholder (%s); quote the concrete text the page should contain", req.Expect, pattern),
		}
	}

	return nil
}

func checkParamType(action string, p schemas.ParamSpec, v any) *ValidationError {
	ok := false
	switch p.Type {
	case schemas.ParamString:
		_, ok = v.(string)
	case schemas.ParamNumber:
		// JSON numbers decode to float64.
		switch v.(type) {
		case float64, int, int64:
			ok = true
		}
	case schemas.ParamBoolean:
		_, ok = v.(bool)
	default:
		ok = true
	}
	if !ok {
		return &ValidationError{
			Check:  CheckParamType,
			Detail: fmt.Sprintf("parameter %q of action %q must be a %s, got %T", p.Name, action, p.Type, v),
		}
	}
	return nil
}

// matchPlaceholder returns the offending pattern when s looks like an
// unfilled template value, or "" when s is concrete. Empty strings are not
// placeholders; required-presence is a separate check.
func matchPlaceholder(s string) string {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return ""
	}
	for _, re := range placeholderPatterns {
		if re.MatchString(trimmed) {
			return re.String()
		}
	}
	return ""
}

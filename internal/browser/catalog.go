// File: internal/browser/catalog.go
package browser

import "github.com/xkilldash9x/kosher-cli/api/schemas"

// DefaultCatalog is the set of operations a browser session offers. The
// catalog is negotiated per session; today every session offers the full set,
// but callers must treat it as data and never assume membership.
func DefaultCatalog() schemas.ActionCatalog {
	return schemas.ActionCatalog{
		{
			Name:        "navigate",
			Description: "Load a URL in the browser and wait for the page to be ready.",
			Params: []schemas.ParamSpec{
				{Name: "url", Type: schemas.ParamString, Required: true, Description: "Absolute URL to load."},
			},
		},
		{
			Name:        "click",
			Description: "Click an element identified by a snapshot ref.",
			Params: []schemas.ParamSpec{
				{Name: "ref", Type: schemas.ParamString, Required: true, Description: "Element ref from the page snapshot, e.g. e3."},
			},
		},
		{
			Name:        "fill",
			Description: "Clear an input element and type text into it.",
			Params: []schemas.ParamSpec{
				{Name: "ref", Type: schemas.ParamString, Required: true, Description: "Element ref from the page snapshot."},
				{Name: "text", Type: schemas.ParamString, Required: true, Description: "Text to type."},
			},
		},
		{
			Name:        "press_key",
			Description: "Press a keyboard key in the focused element, e.g. Enter or Tab.",
			Params: []schemas.ParamSpec{
				{Name: "key", Type: schemas.ParamString, Required: true, Description: "Key name: Enter, Tab, Escape, Backspace, or a single character."},
			},
		},
		{
			Name:        "get_text",
			Description: "Read the visible text of an element.",
			Params: []schemas.ParamSpec{
				{Name: "ref", Type: schemas.ParamString, Required: true, Description: "Element ref from the page snapshot."},
			},
		},
		{
			Name:        "wait_for",
			Description: "Wait until the given text is visible on the page.",
			Params: []schemas.ParamSpec{
				{Name: "text", Type: schemas.ParamString, Required: true, Description: "Exact text to wait for."},
				{Name: "timeout_seconds", Type: schemas.ParamNumber, Required: false, Description: "How long to wait before giving up."},
			},
		},
		{
			Name:        "snapshot",
			Description: "Capture a fresh digest of the current page, refreshing element refs.",
		},
	}
}

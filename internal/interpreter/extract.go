// File: internal/interpreter/extract.go
package interpreter

import (
	"fmt"
	"regexp"
	"strings"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Regex uses \x60 for backticks because Go raw strings cannot contain them.
// fencedObjectRegex extracts a JSON object wrapped in a markdown code fence.
var fencedObjectRegex = regexp.MustCompile("(?s)\x60\x60\x60(?:json)?\\s*({.*})\\s*\x60\x60\x60")

// ExtractActionRequest pulls a single structured action request out of a raw
// engine reply. Engines frequently wrap the JSON in markdown fences or pad it
// with conversational text, so extraction tolerates both before unmarshalling.
func ExtractActionRequest(raw string) (schemas.ActionRequest, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return schemas.ActionRequest{}, fmt.Errorf("reply is empty")
	}

	candidate := raw
	if strings.HasPrefix(raw, "```") {
		if matches := fencedObjectRegex.FindStringSubmatch(raw); len(matches) > 1 {
			candidate = matches[1]
		}
	} else if !strings.HasPrefix(raw, "{") {
		// Locate object boundaries inside conversational text.
		first := strings.Index(raw, "{")
		last := strings.LastIndex(raw, "}")
		if first == -1 || last <= first {
			return schemas.ActionRequest{}, fmt.Errorf("no JSON object found in reply")
		}
		candidate = raw[first : last+1]
	}

	var req schemas.ActionRequest
	if err := json.Unmarshal([]byte(candidate), &req); err != nil {
		return schemas.ActionRequest{}, fmt.Errorf("reply is not valid JSON: %w (extracted: %s)", err, truncate(candidate, 300))
	}
	return req, nil
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}

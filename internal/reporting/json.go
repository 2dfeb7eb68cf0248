// File: internal/reporting/json.go
package reporting

import (
	"fmt"
	"os"

	jsoniter "github.com/json-iterator/go"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// WriteJSONReport writes the full run result to path as indented JSON,
// including per-step verdicts and the recorded conversation turns.
func WriteJSONReport(path string, run *schemas.RunResult) error {
	data, err := json.MarshalIndent(run, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode run report: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("failed to write run report to %s: %w", path, err)
	}
	return nil
}

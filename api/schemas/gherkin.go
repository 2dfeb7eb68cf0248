package schemas

import "strings"

// StepKind is the semantic kind of a Gherkin step. And/But steps inherit the
// kind of the step they follow, so parsed steps never carry a conjunction kind.
type StepKind string

const (
	StepGiven   StepKind = "Given"
	StepWhen    StepKind = "When"
	StepThen    StepKind = "Then"
	StepUnknown StepKind = "*"
)

// DataTable is a pipe-delimited table attached to a step.
type DataTable struct {
	Rows [][]string `json:"rows"`
}

// Maps converts the table into one map per data row, using the first row as
// headers. A table with fewer than two rows yields no maps.
func (t *DataTable) Maps() []map[string]string {
	if t == nil || len(t.Rows) < 2 {
		return nil
	}
	headers := t.Rows[0]
	out := make([]map[string]string, 0, len(t.Rows)-1)
	for _, row := range t.Rows[1:] {
		m := make(map[string]string, len(headers))
		for i, cell := range row {
			if i < len(headers) {
				m[headers[i]] = cell
			}
		}
		out = append(out, m)
	}
	return out
}

// DocString is a triple-quoted text block attached to a step.
type DocString struct {
	Content   string `json:"content"`
	MediaType string `json:"media_type,omitempty"`
}

// Step is one Given/When/Then line of a scenario. Steps are immutable once
// parsed; Index is the zero-based position within the owning scenario.
type Step struct {
	Index   int        `json:"index"`
	Kind    StepKind   `json:"kind"`
	Keyword string     `json:"keyword"` // literal keyword as written, e.g. "And"
	Text    string     `json:"text"`
	Table   *DataTable `json:"table,omitempty"`
	Doc     *DocString `json:"doc_string,omitempty"`
}

// FullText renders the step the way it is presented to the inference engine,
// using the resolved kind rather than the literal conjunction keyword.
func (s Step) FullText() string {
	return string(s.Kind) + " " + strings.TrimSpace(s.Text)
}

// Scenario is an ordered sequence of steps forming one test case. Scenario
// Outlines are expanded at parse time, one Scenario per example row.
type Scenario struct {
	Name        string   `json:"name"`
	FeatureName string   `json:"feature_name"`
	URI         string   `json:"uri"`
	Tags        []string `json:"tags,omitempty"`
	Steps       []Step   `json:"steps"`
}

// Feature is a parsed .feature file.
type Feature struct {
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	URI         string     `json:"uri"`
	Tags        []string   `json:"tags,omitempty"`
	Scenarios   []Scenario `json:"scenarios"`
}

// File: internal/parser/gherkin.go
// Description: Parses Gherkin .feature files into the typed feature model.
// Scenario Outlines are expanded against their Examples tables at parse time,
// so consumers only ever see concrete scenarios.
package parser

import (
	"fmt"
	"os"
	"strings"

	"github.com/xkilldash9x/kosher-cli/api/schemas"
)

// ParseError describes a Gherkin syntax problem with its location.
type ParseError struct {
	Message string
	URI     string
	Line    int
}

func (e *ParseError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("%s: %s at line %d", e.URI, e.Message, e.Line)
	}
	return fmt.Sprintf("%s: %s", e.URI, e.Message)
}

// ParseFile parses a .feature file from disk.
func ParseFile(path string) (*schemas.Feature, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read feature file: %w", err)
	}
	return Parse(string(content), path)
}

// Parse parses Gherkin content. The uri is used for error messages and the
// feature's URI field.
func Parse(content, uri string) (*schemas.Feature, error) {
	p := &parser{uri: uri}
	if err := p.run(content); err != nil {
		return nil, err
	}
	return p.finish()
}

// rawStep is a step as written, before And/But kind resolution and outline
// expansion.
type rawStep struct {
	keyword string
	text    string
	line    int
	table   *schemas.DataTable
	doc     *schemas.DocString
}

// rawScenario buffers one Scenario or Scenario Outline block.
type rawScenario struct {
	name     string
	tags     []string
	outline  bool
	steps    []rawStep
	examples []*schemas.DataTable
}

type parser struct {
	uri string

	feature     *schemas.Feature
	featureTags []string
	pendingTags []string
	description []string

	background []rawStep
	scenarios  []*rawScenario

	// mode tracks which block step lines currently belong to.
	mode        blockMode
	current     *rawScenario
	inDocString bool
	docDelim    string
	docLines    []string
	docStep     *rawStep
}

type blockMode int

const (
	modeNone blockMode = iota
	modeFeature
	modeBackground
	modeScenario
	modeExamples
)

var stepKeywords = []string{"Given", "When", "Then", "And", "But", "*"}

func (p *parser) errf(line int, format string, args ...any) error {
	return &ParseError{Message: fmt.Sprintf(format, args...), URI: p.uri, Line: line}
}

func (p *parser) run(content string) error {
	lines := strings.Split(content, "\n")
	for i, raw := range lines {
		lineNo := i + 1
		if p.inDocString {
			if err := p.consumeDocStringLine(raw); err != nil {
				return err
			}
			continue
		}

		trimmed := strings.TrimSpace(raw)
		switch {
		case trimmed == "" || strings.HasPrefix(trimmed, "#"):
			continue
		case strings.HasPrefix(trimmed, `"""`) || strings.HasPrefix(trimmed, "```"):
			if err := p.openDocString(trimmed, lineNo); err != nil {
				return err
			}
		case strings.HasPrefix(trimmed, "@"):
			p.pendingTags = append(p.pendingTags, parseTags(trimmed)...)
		case strings.HasPrefix(trimmed, "|"):
			if err := p.consumeTableRow(trimmed, lineNo); err != nil {
				return err
			}
		case strings.HasPrefix(trimmed, "Feature:"):
			if p.feature != nil {
				return p.errf(lineNo, "multiple Feature declarations")
			}
			p.feature = &schemas.Feature{
				Name: strings.TrimSpace(strings.TrimPrefix(trimmed, "Feature:")),
				URI:  p.uri,
			}
			p.featureTags = p.takeTags()
			p.mode = modeFeature
		case strings.HasPrefix(trimmed, "Background:"):
			if p.feature == nil {
				return p.errf(lineNo, "Background outside of a Feature")
			}
			if len(p.scenarios) > 0 {
				return p.errf(lineNo, "Background must precede all scenarios")
			}
			p.mode = modeBackground
		case strings.HasPrefix(trimmed, "Scenario Outline:") || strings.HasPrefix(trimmed, "Scenario Template:"):
			name := strings.TrimSpace(trimmed[strings.Index(trimmed, ":")+1:])
			if err := p.openScenario(name, true, lineNo); err != nil {
				return err
			}
		case strings.HasPrefix(trimmed, "Scenario:") || strings.HasPrefix(trimmed, "Example:"):
			name := strings.TrimSpace(trimmed[strings.Index(trimmed, ":")+1:])
			if err := p.openScenario(name, false, lineNo); err != nil {
				return err
			}
		case strings.HasPrefix(trimmed, "Examples:") || strings.HasPrefix(trimmed, "Scenarios:"):
			if p.current == nil || !p.current.outline {
				return p.errf(lineNo, "Examples outside of a Scenario Outline")
			}
			p.current.examples = append(p.current.examples, &schemas.DataTable{})
			p.mode = modeExamples
		default:
			if kw, rest, ok := splitStepKeyword(trimmed); ok {
				if err := p.consumeStep(kw, rest, lineNo); err != nil {
					return err
				}
			} else if p.mode == modeFeature {
				p.description = append(p.description, trimmed)
			} else {
				return p.errf(lineNo, "unexpected content %q", trimmed)
			}
		}
	}

	if p.inDocString {
		return p.errf(len(lines), "unterminated doc string")
	}
	return nil
}

func (p *parser) takeTags() []string {
	tags := p.pendingTags
	p.pendingTags = nil
	return tags
}

func (p *parser) openScenario(name string, outline bool, line int) error {
	if p.feature == nil {
		return p.errf(line, "Scenario outside of a Feature")
	}
	sc := &rawScenario{name: name, outline: outline, tags: p.takeTags()}
	p.scenarios = append(p.scenarios, sc)
	p.current = sc
	p.mode = modeScenario
	return nil
}

func (p *parser) consumeStep(keyword, text string, line int) error {
	step := rawStep{keyword: keyword, text: strings.TrimSpace(text), line: line}
	switch p.mode {
	case modeBackground:
		p.background = append(p.background, step)
	case modeScenario:
		p.current.steps = append(p.current.steps, step)
	default:
		return p.errf(line, "step %q outside of a Scenario or Background", keyword)
	}
	return nil
}

func (p *parser) consumeTableRow(trimmed string, line int) error {
	cells := parseTableRow(trimmed)
	switch p.mode {
	case modeExamples:
		table := p.current.examples[len(p.current.examples)-1]
		table.Rows = append(table.Rows, cells)
		return nil
	case modeBackground:
		return attachRow(p.background, cells, p, line)
	case modeScenario:
		if p.current == nil {
			return p.errf(line, "table row outside of a step")
		}
		return attachRow(p.current.steps, cells, p, line)
	default:
		return p.errf(line, "table row outside of a step")
	}
}

func attachRow(steps []rawStep, cells []string, p *parser, line int) error {
	if len(steps) == 0 {
		return p.errf(line, "table row without a preceding step")
	}
	last := &steps[len(steps)-1]
	if last.table == nil {
		last.table = &schemas.DataTable{}
	}
	last.table.Rows = append(last.table.Rows, cells)
	return nil
}

func (p *parser) openDocString(trimmed string, line int) error {
	var steps []rawStep
	switch p.mode {
	case modeBackground:
		steps = p.background
	case modeScenario:
		if p.current != nil {
			steps = p.current.steps
		}
	}
	if len(steps) == 0 {
		return p.errf(line, "doc string without a preceding step")
	}
	p.inDocString = true
	p.docDelim = trimmed[:3]
	p.docLines = nil
	p.docStep = &steps[len(steps)-1]
	p.docStep.doc = &schemas.DocString{MediaType: strings.TrimSpace(trimmed[3:])}
	return nil
}

func (p *parser) consumeDocStringLine(raw string) error {
	if strings.TrimSpace(raw) == p.docDelim {
		p.docStep.doc.Content = strings.Join(p.docLines, "\n")
		p.inDocString = false
		p.docStep = nil
		return nil
	}
	p.docLines = append(p.docLines, raw)
	return nil
}

// finish resolves And/But kinds, expands outlines, and assembles the feature.
func (p *parser) finish() (*schemas.Feature, error) {
	if p.feature == nil {
		return nil, &ParseError{Message: "no Feature declaration found", URI: p.uri}
	}
	p.feature.Description = strings.Join(p.description, "\n")
	p.feature.Tags = p.featureTags

	for _, raw := range p.scenarios {
		if raw.outline {
			if len(raw.examples) == 0 {
				return nil, &ParseError{
					Message: fmt.Sprintf("Scenario Outline %q has no Examples", raw.name),
					URI:     p.uri,
				}
			}
			for _, table := range raw.examples {
				for _, row := range table.Maps() {
					p.feature.Scenarios = append(p.feature.Scenarios, p.buildScenario(raw, row))
				}
			}
		} else {
			p.feature.Scenarios = append(p.feature.Scenarios, p.buildScenario(raw, nil))
		}
	}
	return p.feature, nil
}

// buildScenario produces a concrete scenario, substituting example values and
// prepending background steps.
func (p *parser) buildScenario(raw *rawScenario, example map[string]string) schemas.Scenario {
	sc := schemas.Scenario{
		Name:        substitute(raw.name, example),
		FeatureName: p.feature.Name,
		URI:         p.uri,
		Tags:        append(append([]string{}, p.featureTags...), raw.tags...),
	}

	all := make([]rawStep, 0, len(p.background)+len(raw.steps))
	all = append(all, p.background...)
	all = append(all, raw.steps...)

	kind := schemas.StepUnknown
	for i, rs := range all {
		kind = resolveKind(rs.keyword, kind)
		step := schemas.Step{
			Index:   i,
			Kind:    kind,
			Keyword: rs.keyword,
			Text:    substitute(rs.text, example),
		}
		if rs.table != nil {
			t := &schemas.DataTable{Rows: make([][]string, len(rs.table.Rows))}
			for j, row := range rs.table.Rows {
				cells := make([]string, len(row))
				for k, cell := range row {
					cells[k] = substitute(cell, example)
				}
				t.Rows[j] = cells
			}
			step.Table = t
		}
		if rs.doc != nil {
			step.Doc = &schemas.DocString{
				Content:   substitute(rs.doc.Content, example),
				MediaType: rs.doc.MediaType,
			}
		}
		sc.Steps = append(sc.Steps, step)
	}
	return sc
}

// resolveKind maps a literal keyword to a semantic kind; And/But/* inherit the
// kind of the preceding step.
func resolveKind(keyword string, previous schemas.StepKind) schemas.StepKind {
	switch keyword {
	case "Given":
		return schemas.StepGiven
	case "When":
		return schemas.StepWhen
	case "Then":
		return schemas.StepThen
	default:
		if previous == "" {
			return schemas.StepUnknown
		}
		return previous
	}
}

func splitStepKeyword(line string) (keyword, rest string, ok bool) {
	for _, kw := range stepKeywords {
		if strings.HasPrefix(line, kw+" ") {
			return kw, line[len(kw)+1:], true
		}
	}
	return "", "", false
}

func parseTags(line string) []string {
	var tags []string
	for _, f := range strings.Fields(line) {
		if strings.HasPrefix(f, "@") && len(f) > 1 {
			tags = append(tags, f)
		}
	}
	return tags
}

// parseTableRow splits a |-delimited row into trimmed cells. Escaped pipes
// (\|) are kept literal.
func parseTableRow(line string) []string {
	line = strings.Trim(line, "|")
	var cells []string
	var cur strings.Builder
	escaped := false
	for _, r := range line {
		switch {
		case escaped:
			switch r {
			case '|', '\\':
				cur.WriteRune(r)
			case 'n':
				cur.WriteRune('\n')
			default:
				cur.WriteRune('\\')
				cur.WriteRune(r)
			}
			escaped = false
		case r == '\\':
			escaped = true
		case r == '|':
			cells = append(cells, strings.TrimSpace(cur.String()))
			cur.Reset()
		default:
			cur.WriteRune(r)
		}
	}
	cells = append(cells, strings.TrimSpace(cur.String()))
	return cells
}

// substitute replaces <name> placeholders with example row values. Outside of
// outline expansion it returns the text unchanged.
func substitute(text string, example map[string]string) string {
	if len(example) == 0 {
		return text
	}
	for k, v := range example {
		text = strings.ReplaceAll(text, "<"+k+">", v)
	}
	return text
}

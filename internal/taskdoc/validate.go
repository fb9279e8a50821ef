package taskdoc

import (
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/opentask/taskin/internal/task"
)

// Severity ranks a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue is one problem found in a task document.
type Issue struct {
	Source     string   `json:"source"`
	Line       int      `json:"line,omitempty"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
	Suggestion string   `json:"suggestion,omitempty"`
}

func (i Issue) String() string {
	loc := i.Source
	if i.Line > 0 {
		loc = fmt.Sprintf("%s:%d", i.Source, i.Line)
	}
	return fmt.Sprintf("%s: %s: %s", loc, i.Severity, i.Message)
}

// Policy holds caller-controlled validation rules.
type Policy struct {
	// RequireType makes a missing Type an error instead of no issue.
	RequireType bool
}

// DefaultPolicy requires a Type on every task.
func DefaultPolicy() Policy {
	return Policy{RequireType: true}
}

var fileNameConvention = regexp.MustCompile(`^task-\d{2,3}-[a-z0-9]+(?:-[a-z0-9]+)*\.md$`)

// ValidFileName reports whether name follows task-NNN-kebab-title.md.
func ValidFileName(name string) bool {
	return fileNameConvention.MatchString(filepath.Base(name))
}

// Validate checks content with DefaultParser.
func Validate(source, content string, policy Policy) []Issue {
	return DefaultParser.Validate(source, content, policy)
}

// Validate checks one document and returns every issue found. The file
// name convention is checked against the base name of source.
func (p *Parser) Validate(source, content string, policy Policy) []Issue {
	doc := p.Parse(content)
	v := &validation{source: source}

	switch {
	case doc.TitleLine == 0:
		v.add(1, SeverityError, "missing title: the document must start with a level-1 heading",
			"# Task 001 — Title")
	case doc.Title == "":
		v.add(doc.TitleLine, SeverityError, "title is empty", "# Task 001 — Title")
	case doc.Number == "":
		v.add(doc.TitleLine, SeverityError,
			fmt.Sprintf("title %q does not match the \"Task NNN — Title\" shape", doc.Title),
			"# Task 001 — "+doc.Title)
	}

	for _, sf := range doc.Sections {
		v.add(sf.HeadingLine, SeverityError,
			fmt.Sprintf("%s is written as a subsection; metadata must be an inline line below the title", sf.Label),
			fmt.Sprintf("%s: %s", sf.Label, sf.Value))
	}

	for _, f := range Fields {
		v.checkField(doc, f, policy)
	}

	for _, fl := range doc.Late {
		v.add(fl.Line, SeverityError,
			fmt.Sprintf("%s appears after the first subsection (line %d); metadata must precede all subsections", fl.Label, doc.FirstSection),
			"move it directly below the title")
	}

	if base := filepath.Base(source); strings.HasSuffix(base, ".md") && !ValidFileName(base) {
		v.add(0, SeverityWarning,
			fmt.Sprintf("file name %q does not follow the task-NNN-kebab-title.md convention", base), "")
	}

	if doc.TitleLine > 0 && !doc.HasHeading(English.Description, Portuguese.Description) {
		v.add(0, SeverityInfo, "document has no description section", "## "+English.Description)
	}

	return v.issues
}

type validation struct {
	source string
	issues []Issue
}

func (v *validation) add(line int, sev Severity, msg, suggestion string) {
	v.issues = append(v.issues, Issue{
		Source:     v.source,
		Line:       line,
		Message:    msg,
		Severity:   sev,
		Suggestion: suggestion,
	})
}

func (v *validation) checkField(doc *Document, f Field, policy Policy) {
	var found []FieldLine
	for _, fl := range doc.Header {
		if fl.Field == f {
			found = append(found, fl)
		}
	}
	for _, dup := range found[min(1, len(found)):] {
		v.add(dup.Line, SeverityError, fmt.Sprintf("duplicate %s line", dup.Label), "")
	}

	if len(found) == 0 {
		if elsewhere(doc, f) {
			return
		}
		switch f {
		case FieldStatus:
			v.add(0, SeverityError, "missing Status", "Status: pending")
		case FieldType:
			if policy.RequireType {
				v.add(0, SeverityError, "missing Type", "Type: feat")
			}
		case FieldAssignee:
			v.add(0, SeverityWarning, "missing Assignee", "Assignee: "+English.DefaultAssignee)
		}
		return
	}

	fl := found[0]
	switch f {
	case FieldStatus:
		if _, err := task.ParseStatus(fl.Value); err != nil {
			v.add(fl.Line, SeverityError, err.Error(), fl.Label+": pending")
		}
	case FieldType:
		if _, err := task.ParseType(fl.Value); err != nil {
			v.add(fl.Line, SeverityError, err.Error(), fl.Label+": feat")
		}
	case FieldAssignee:
		if fl.Value == "" {
			v.add(fl.Line, SeverityWarning, "Assignee is empty", fl.Label+": "+English.DefaultAssignee)
		}
	}
}

// elsewhere reports whether f is present outside the header, which is
// already reported as misplaced.
func elsewhere(doc *Document, f Field) bool {
	for _, sf := range doc.Sections {
		if sf.Field == f {
			return true
		}
	}
	for _, fl := range doc.Late {
		if fl.Field == f {
			return true
		}
	}
	return false
}

// LintResult aggregates the issues of a lint pass.
type LintResult struct {
	Valid        bool    `json:"valid"`
	Files        int     `json:"files"`
	Fixed        int     `json:"fixed"`
	ErrorCount   int     `json:"errorCount"`
	WarningCount int     `json:"warningCount"`
	InfoCount    int     `json:"infoCount"`
	Issues       []Issue `json:"issues"`
}

// Add appends issues and updates the counts.
func (r *LintResult) Add(issues ...Issue) {
	for _, is := range issues {
		switch is.Severity {
		case SeverityError:
			r.ErrorCount++
		case SeverityWarning:
			r.WarningCount++
		default:
			r.InfoCount++
		}
	}
	r.Issues = append(r.Issues, issues...)
	r.Valid = r.ErrorCount == 0
}

// NewLintResult builds a result from a flat issue list.
func NewLintResult(issues []Issue) LintResult {
	r := LintResult{Valid: true, Issues: []Issue{}}
	r.Add(issues...)
	return r
}

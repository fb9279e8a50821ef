package taskdoc

import (
	"fmt"
	"strings"
)

// Metadata is the extracted header of a task document.
type Metadata struct {
	Number   string
	Title    string
	Status   string
	Type     string
	Assignee string
}

// Extract returns the document's title and header metadata. Values are
// returned as written; callers validate them.
func (p *Parser) Extract(content string) Metadata {
	doc := p.Parse(content)
	return Metadata{
		Number:   doc.Number,
		Title:    doc.TaskTitle,
		Status:   doc.Value(FieldStatus),
		Type:     doc.Value(FieldType),
		Assignee: doc.Value(FieldAssignee),
	}
}

// Extract uses DefaultParser.
func Extract(content string) Metadata {
	return DefaultParser.Extract(content)
}

// SetField writes value into the inline header line for f, migrating any
// misplaced metadata first. A missing line is added after the last header
// metadata line, or right after the title, using loc's label.
func (p *Parser) SetField(content string, f Field, value string, loc Locale) string {
	fixed, _ := p.Fix(content)
	doc := p.Parse(fixed)
	lines := append([]string(nil), doc.Lines...)

	if fl, ok := doc.HeaderField(f); ok {
		lines[fl.Line-1] = inlineLine(fl.Label, value)
		return finish(lines)
	}

	line := inlineLine(loc.label(f), value)
	switch {
	case len(doc.Header) > 0:
		at := doc.Header[len(doc.Header)-1].Line
		lines = insert(lines, at, line)
	case doc.TitleLine > 0:
		lines = insert(lines, doc.TitleLine, "", line, "")
	default:
		lines = insert(lines, 0, line, "")
	}
	return finish(lines)
}

// SetFields applies SetField for every entry of values, in canonical field
// order.
func (p *Parser) SetFields(content string, values map[Field]string, loc Locale) string {
	for _, f := range Fields {
		if v, ok := values[f]; ok {
			content = p.SetField(content, f, v, loc)
		}
	}
	return content
}

func insert(lines []string, at int, add ...string) []string {
	out := make([]string, 0, len(lines)+len(add))
	out = append(out, lines[:at]...)
	out = append(out, add...)
	return append(out, lines[at:]...)
}

// NewDocument describes a task document to render.
type NewDocument struct {
	Number      string
	Title       string
	Status      string
	Type        string
	Assignee    string
	Description string
	Items       []string
}

// Render produces a task document in the inline-metadata format using
// loc's labels and section names.
func Render(d NewDocument, loc Locale) string {
	assignee := d.Assignee
	if strings.TrimSpace(assignee) == "" {
		assignee = loc.DefaultAssignee
	}

	var b strings.Builder
	fmt.Fprintf(&b, "# 🧩 Task %s — %s\n\n", d.Number, strings.TrimSpace(d.Title))
	b.WriteString(inlineLine(loc.Status, d.Status) + "\n")
	b.WriteString(inlineLine(loc.Type, d.Type) + "\n")
	b.WriteString(inlineLine(loc.Assignee, assignee) + "\n\n")

	fmt.Fprintf(&b, "## %s\n\n", loc.Description)
	if desc := strings.TrimSpace(d.Description); desc != "" {
		b.WriteString(desc + "\n\n")
	} else {
		b.WriteString(strings.TrimSpace(d.Title) + "\n\n")
	}

	fmt.Fprintf(&b, "## %s\n\n", loc.Tasks)
	if len(d.Items) == 0 {
		b.WriteString("- [ ] \n\n")
	}
	for _, it := range d.Items {
		fmt.Fprintf(&b, "- [ ] %s\n", it)
	}
	if len(d.Items) > 0 {
		b.WriteString("\n")
	}

	fmt.Fprintf(&b, "## %s\n", loc.Notes)
	return b.String()
}

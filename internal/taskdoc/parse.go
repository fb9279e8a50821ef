// Package taskdoc parses, validates and repairs the metadata header of task
// documents.
//
// A task document looks like:
//
//	# 🧩 Task 001 — Setup project
//
//	Status: pending
//	Type: feat
//	Assignee: Ana
//
//	## Description
//	...
//
// Metadata lives between the title and the first level-2 heading. Lines
// inside fenced code blocks or block quotes are literal text and are never
// read as metadata, wherever they appear.
package taskdoc

import (
	"regexp"
	"strings"
)

// Field identifies one metadata field.
type Field int

const (
	FieldStatus Field = iota
	FieldType
	FieldAssignee
)

// Fields lists the metadata fields in canonical order.
var Fields = []Field{FieldStatus, FieldType, FieldAssignee}

func (f Field) String() string {
	switch f {
	case FieldStatus:
		return "Status"
	case FieldType:
		return "Type"
	default:
		return "Assignee"
	}
}

// FieldLine is one inline "Label: value" metadata line.
type FieldLine struct {
	Field Field
	Label string // as written in the document
	Value string // trimmed
	Line  int    // 1-based
}

// SectionField is metadata written as its own subsection:
//
//	## Status
//	pending
type SectionField struct {
	Field       Field
	Label       string
	Value       string
	HeadingLine int // 1-based
	ValueLine   int // 1-based, 0 when the section has no value
}

// Document is the parsed form of a task document.
type Document struct {
	Lines []string

	TitleLine int    // 1-based, 0 when the document has no title
	Title     string // heading text after "# "
	Number    string // "001" when the title has the "Task NNN — Title" shape
	TaskTitle string // title text after the dash, or Title

	FirstSection int      // 1-based line of the first level-2 heading, 0 when none
	Headings     []string // level-2 heading texts, in order

	Header   []FieldLine    // inline metadata before the first subsection
	Late     []FieldLine    // inline metadata after the first subsection
	Sections []SectionField // metadata written as subsections

	literal []bool
}

var (
	titleShape  = regexp.MustCompile(`^(?:[^\w\s]+\s+)?Task\s+(\d{2,3})\s+[—–-]\s+(\S.*?)\s*$`)
	level2      = regexp.MustCompile(`^##\s+(.+?)\s*#*\s*$`)
	inlineField = regexp.MustCompile(`^ {0,3}(\p{L}[\p{L}\-]*)[ \t]*:[ \t]*(.*?)[ \t]*$`)
)

// Parser extracts metadata using the labels of a set of locales.
type Parser struct {
	labels map[string]Field
}

// NewParser returns a parser that accepts the labels of every given locale.
// English labels are always accepted.
func NewParser(locs ...Locale) *Parser {
	p := &Parser{labels: make(map[string]Field)}
	for _, loc := range append([]Locale{English}, locs...) {
		for _, f := range Fields {
			p.labels[strings.ToLower(loc.label(f))] = f
		}
	}
	return p
}

// DefaultParser accepts English and Portuguese labels.
var DefaultParser = NewParser(Portuguese)

// Parse parses content with DefaultParser.
func Parse(content string) *Document {
	return DefaultParser.Parse(content)
}

func (p *Parser) field(label string) (Field, bool) {
	f, ok := p.labels[strings.ToLower(strings.TrimSpace(label))]
	return f, ok
}

// Parse splits content into lines and locates the title, the first
// subsection and every metadata occurrence outside literal blocks.
func (p *Parser) Parse(content string) *Document {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := strings.Split(content, "\n")
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}

	doc := &Document{Lines: lines, literal: literalLines(lines)}
	seenContent := false

	for i := 0; i < len(lines); i++ {
		if doc.literal[i] {
			seenContent = true
			continue
		}
		text := lines[i]
		trimmed := strings.TrimSpace(text)
		if trimmed == "" {
			continue
		}

		if !seenContent {
			seenContent = true
			if text == "#" || strings.HasPrefix(text, "# ") {
				doc.TitleLine = i + 1
				doc.Title = strings.TrimSpace(strings.TrimPrefix(text, "#"))
				doc.TaskTitle = doc.Title
				if m := titleShape.FindStringSubmatch(doc.Title); m != nil {
					doc.Number = m[1]
					doc.TaskTitle = m[2]
				}
				continue
			}
		}

		if m := level2.FindStringSubmatch(text); m != nil {
			if doc.FirstSection == 0 {
				doc.FirstSection = i + 1
			}
			doc.Headings = append(doc.Headings, m[1])
			if f, ok := p.field(m[1]); ok {
				sf := SectionField{Field: f, Label: m[1], HeadingLine: i + 1}
				if j := doc.sectionValue(i + 1); j >= 0 {
					sf.Value = strings.TrimSpace(lines[j])
					sf.ValueLine = j + 1
					i = j
				}
				doc.Sections = append(doc.Sections, sf)
			}
			continue
		}

		m := inlineField.FindStringSubmatch(text)
		if m == nil {
			continue
		}
		f, ok := p.field(m[1])
		if !ok {
			continue
		}
		fl := FieldLine{Field: f, Label: m[1], Value: m[2], Line: i + 1}
		if doc.FirstSection == 0 {
			doc.Header = append(doc.Header, fl)
		} else {
			doc.Late = append(doc.Late, fl)
		}
	}
	return doc
}

// sectionValue returns the index of the first non-blank, non-heading line
// at or after start, or -1 when the section is empty.
func (d *Document) sectionValue(start int) int {
	for j := start; j < len(d.Lines); j++ {
		if d.literal[j] {
			return -1
		}
		t := strings.TrimSpace(d.Lines[j])
		if t == "" {
			continue
		}
		if strings.HasPrefix(t, "#") {
			return -1
		}
		return j
	}
	return -1
}

// HeaderField returns the first inline occurrence of f in the header.
func (d *Document) HeaderField(f Field) (FieldLine, bool) {
	for _, fl := range d.Header {
		if fl.Field == f {
			return fl, true
		}
	}
	return FieldLine{}, false
}

// Value returns the header value of f, trimmed.
func (d *Document) Value(f Field) string {
	fl, _ := d.HeaderField(f)
	return fl.Value
}

// HasHeading reports whether the document has a level-2 heading equal to
// one of names.
func (d *Document) HasHeading(names ...string) bool {
	for _, h := range d.Headings {
		for _, n := range names {
			if strings.EqualFold(h, n) {
				return true
			}
		}
	}
	return false
}

// literalLines marks every line that belongs to a fenced code block
// (fence lines included) or a block quote.
func literalLines(lines []string) []bool {
	lit := make([]bool, len(lines))
	var fence fenceTracker
	for i, l := range lines {
		if fence.step(l) {
			lit[i] = true
			continue
		}
		if strings.HasPrefix(strings.TrimSpace(l), ">") {
			lit[i] = true
		}
	}
	return lit
}

// fenceTracker follows ``` and ~~~ fences line by line.
type fenceTracker struct {
	marker string
}

// step consumes one line and reports whether it is part of a fenced block.
func (ft *fenceTracker) step(line string) bool {
	t := strings.TrimSpace(line)
	for _, m := range []string{"```", "~~~"} {
		if !strings.HasPrefix(t, m) {
			continue
		}
		switch ft.marker {
		case "":
			ft.marker = m
		case m:
			ft.marker = ""
		}
		return true
	}
	return ft.marker != ""
}

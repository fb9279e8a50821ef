package taskdoc

import (
	"strings"
)

// lineBreak is appended to every inline metadata line so markdown renderers
// keep each field on its own line.
const lineBreak = "  "

// Fix repairs content with DefaultParser.
func Fix(content string) (string, bool) {
	return DefaultParser.Fix(content)
}

// Fix moves metadata written as subsections (or below the first
// subsection) into inline lines right after the title, appends the line
// break sentinel to every inline metadata line and collapses runs of blank
// lines. It returns the original content and false when the result differs
// from it only in blank lines around the title.
//
// Fix is idempotent.
func (p *Parser) Fix(content string) (string, bool) {
	doc := p.Parse(content)

	var lines []string
	if needsRebuild(doc) {
		lines = rebuild(doc)
	} else {
		lines = normalizeHeader(doc)
	}
	fixed := finish(lines)

	if canonical(fixed) == canonical(content) {
		return content, false
	}
	return fixed, true
}

// needsRebuild reports whether any metadata has to move into the header.
func needsRebuild(doc *Document) bool {
	if len(doc.Sections) > 0 {
		return true
	}
	for _, fl := range doc.Late {
		if _, ok := doc.HeaderField(fl.Field); !ok {
			return true
		}
	}
	return false
}

func inlineLine(label, value string) string {
	if value == "" {
		return label + ":"
	}
	return label + ": " + value + lineBreak
}

// normalizeHeader rewrites header metadata lines in place.
func normalizeHeader(doc *Document) []string {
	lines := append([]string(nil), doc.Lines...)
	for _, fl := range doc.Header {
		if fl.Value == "" {
			continue
		}
		lines[fl.Line-1] = inlineLine(fl.Label, fl.Value)
	}
	return lines
}

// rebuild emits the title, one inline line per known field, then the rest
// of the document with the moved metadata removed.
func rebuild(doc *Document) []string {
	drop := make(map[int]bool)
	var meta []string

	for _, f := range Fields {
		label, value, ok := "", "", false
		if fl, found := doc.HeaderField(f); found {
			label, value, ok = fl.Label, fl.Value, fl.Value != ""
		}
		for _, sf := range doc.Sections {
			if sf.Field != f {
				continue
			}
			drop[sf.HeadingLine] = true
			if sf.ValueLine > 0 {
				drop[sf.ValueLine] = true
			}
			if !ok && sf.Value != "" {
				label, value, ok = sf.Label, sf.Value, true
			}
		}
		if !ok {
			for _, fl := range doc.Late {
				if fl.Field == f {
					drop[fl.Line] = true
					label, value, ok = fl.Label, fl.Value, true
					break
				}
			}
		}
		if label != "" {
			meta = append(meta, inlineLine(label, value))
		}
	}
	for _, fl := range doc.Header {
		drop[fl.Line] = true
	}

	var out []string
	start := 0
	if doc.TitleLine > 0 {
		out = append(out, doc.Lines[:doc.TitleLine]...)
		out = append(out, "")
		start = doc.TitleLine
	}
	out = append(out, meta...)
	out = append(out, "")

	var rest []string
	for i := start; i < len(doc.Lines); i++ {
		if drop[i+1] {
			continue
		}
		rest = append(rest, doc.Lines[i])
	}
	for len(rest) > 0 && strings.TrimSpace(rest[0]) == "" {
		rest = rest[1:]
	}
	return append(out, rest...)
}

// finish collapses blank-line runs outside fences, drops trailing blank
// lines and terminates the text with a single newline.
func finish(lines []string) string {
	lines = collapseBlankLines(lines)
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return strings.Join(lines, "\n") + "\n"
}

func collapseBlankLines(lines []string) []string {
	out := make([]string, 0, len(lines))
	var fence fenceTracker
	prevBlank := false
	for _, l := range lines {
		if fence.step(l) {
			out = append(out, l)
			prevBlank = false
			continue
		}
		blank := strings.TrimSpace(l) == ""
		if blank && prevBlank {
			continue
		}
		if blank {
			l = ""
		}
		out = append(out, l)
		prevBlank = blank
	}
	return out
}

// canonical is the comparison form used to decide whether a fix changed
// anything: line endings unified, blank runs collapsed, outer blank lines
// trimmed and exactly one blank line after the title.
func canonical(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	lines := collapseBlankLines(strings.Split(content, "\n"))
	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	if len(lines) > 1 && strings.HasPrefix(lines[0], "# ") && strings.TrimSpace(lines[1]) != "" {
		lines = append(lines[:1], append([]string{""}, lines[1:]...)...)
	}
	return strings.Join(lines, "\n")
}

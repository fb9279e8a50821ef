package taskdoc

import (
	"fmt"
	"regexp"
	"sort"
)

// Locale holds the labels used for metadata fields and standard sections
// in one language.
type Locale struct {
	Code string

	Status   string
	Type     string
	Assignee string

	Description string
	Tasks       string
	Notes       string

	DefaultAssignee string
}

var (
	English = Locale{
		Code:            "en-US",
		Status:          "Status",
		Type:            "Type",
		Assignee:        "Assignee",
		Description:     "Description",
		Tasks:           "Tasks",
		Notes:           "Notes",
		DefaultAssignee: "To be defined",
	}

	Portuguese = Locale{
		Code:            "pt-BR",
		Status:          "Status",
		Type:            "Tipo",
		Assignee:        "Responsável",
		Description:     "Descrição",
		Tasks:           "Tarefas",
		Notes:           "Notas",
		DefaultAssignee: "A definir",
	}
)

var locales = map[string]Locale{
	English.Code:    English,
	Portuguese.Code: Portuguese,
}

// LookupLocale returns the locale registered under code.
func LookupLocale(code string) (Locale, error) {
	loc, ok := locales[code]
	if !ok {
		return Locale{}, fmt.Errorf("unknown locale %q: must be one of: %v", code, LocaleCodes())
	}
	return loc, nil
}

// LocaleCodes lists the registered locale codes, sorted.
func LocaleCodes() []string {
	codes := make([]string, 0, len(locales))
	for c := range locales {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

var portugueseHeading = regexp.MustCompile(`(?m)^##\s+(Descrição|Tipo|Responsável|Tarefas)\s*$`)

// DetectLocale guesses the locale a document was written in from its
// section headings. Anything without a Portuguese heading is English.
func DetectLocale(content string) Locale {
	if portugueseHeading.MatchString(content) {
		return Portuguese
	}
	return English
}

// label returns the locale's label for f.
func (l Locale) label(f Field) string {
	switch f {
	case FieldStatus:
		return l.Status
	case FieldType:
		return l.Type
	default:
		return l.Assignee
	}
}

package task

import (
	"fmt"
	"strconv"
	"strings"
)

// NormalizeID strips a "task-" prefix and surrounding whitespace.
// "task-007", "007" and " 7 " all normalize to a value SameID treats as 7.
func NormalizeID(id string) string {
	id = strings.TrimSpace(id)
	id = strings.TrimPrefix(strings.ToLower(id), "task-")
	return id
}

// SameID reports whether two task ids refer to the same task. Numeric ids
// compare by value so "1", "01" and "001" match.
func SameID(a, b string) bool {
	a, b = NormalizeID(a), NormalizeID(b)
	if a == b {
		return true
	}
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	return errA == nil && errB == nil && na == nb
}

// FormatID zero-pads a sequence number to three digits.
func FormatID(n int) string {
	return fmt.Sprintf("%03d", n)
}

const maxSlugLen = 50

// Slugify converts a title into a kebab-case filename fragment.
// Example: "Setup Project" → "setup-project"
//
// Accented Latin letters are folded to ASCII; any other non-alphanumeric
// rune becomes a separator. Empty input returns "untitled".
func Slugify(title string) string {
	s := strings.ToLower(strings.TrimSpace(title))

	var b strings.Builder
	prevHyphen := true
	for _, r := range s {
		if f, ok := foldAccent[r]; ok {
			r = f
		}
		switch {
		case (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9'):
			b.WriteRune(r)
			prevHyphen = false
		default:
			if !prevHyphen {
				b.WriteByte('-')
				prevHyphen = true
			}
		}
	}

	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		return "untitled"
	}
	if len(slug) <= maxSlugLen {
		return slug
	}

	truncated := slug[:maxSlugLen]
	if lastHyphen := strings.LastIndex(truncated, "-"); lastHyphen > maxSlugLen/2 {
		truncated = truncated[:lastHyphen]
	}
	return strings.TrimRight(truncated, "-")
}

var foldAccent = map[rune]rune{
	'á': 'a', 'à': 'a', 'â': 'a', 'ã': 'a', 'ä': 'a',
	'é': 'e', 'è': 'e', 'ê': 'e', 'ë': 'e',
	'í': 'i', 'ì': 'i', 'î': 'i', 'ï': 'i',
	'ó': 'o', 'ò': 'o', 'ô': 'o', 'õ': 'o', 'ö': 'o',
	'ú': 'u', 'ù': 'u', 'û': 'u', 'ü': 'u',
	'ç': 'c', 'ñ': 'n',
}

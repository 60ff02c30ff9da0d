package command

import (
	"fmt"
	"strconv"
	"strings"
)

var boolWords = []struct {
	word  string
	value bool
}{
	{"true", true},
	{"false", false},
	{"yes", true},
	{"no", false},
	{"on", true},
	{"off", false},
}

// ParseBool parses a script boolean: an integer (non-zero is true) or a
// case-insensitive, unambiguous prefix of true, false, yes, no, on or off.
func ParseBool(s string) (bool, error) {
	if n, err := strconv.ParseInt(strings.TrimSpace(s), 0, 64); err == nil {
		return n != 0, nil
	}

	word := strings.ToLower(strings.TrimSpace(s))
	if word != "" {
		var (
			value   bool
			matches int
		)
		for _, w := range boolWords {
			if strings.HasPrefix(w.word, word) {
				value = w.value
				matches++
			}
		}
		if matches == 1 {
			return value, nil
		}
	}
	return false, fmt.Errorf("%w but got %q", ErrNotBoolean, s)
}

// FormatList renders elems in the host's list syntax: elements that are
// empty or contain whitespace or special characters are wrapped in braces.
func FormatList(elems []string) string {
	var b strings.Builder
	for i, e := range elems {
		if i > 0 {
			b.WriteByte(' ')
		}
		b.WriteString(listElement(e))
	}
	return b.String()
}

func listElement(e string) string {
	if e == "" {
		return "{}"
	}
	if !strings.ContainsAny(e, " \t\n\r{}[]$\";\\") {
		return e
	}
	if balanced(e) && !strings.HasSuffix(e, "\\") {
		return "{" + e + "}"
	}

	var b strings.Builder
	for _, r := range e {
		switch r {
		case ' ', '{', '}', '[', ']', '$', '"', '\\', ';':
			b.WriteByte('\\')
			b.WriteRune(r)
		case '\t':
			b.WriteString(`\t`)
		case '\n':
			b.WriteString(`\n`)
		case '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	return b.String()
}

func balanced(s string) bool {
	depth := 0
	for _, r := range s {
		switch r {
		case '{':
			depth++
		case '}':
			depth--
			if depth < 0 {
				return false
			}
		}
	}
	return depth == 0
}

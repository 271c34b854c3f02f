package rows

import (
	"strings"
	"unicode"

	"github.com/espace/zotsync/pkg/errors"
)

// escape marks the next character of a list cell as literal.
const escape = '\\'

// separator is the delimiter without its padding, e.g. ";" for "; ".
func separator(delim string) string {
	if sep := strings.TrimSpace(delim); sep != "" {
		return sep
	}
	return delim
}

// ValidDelimiter rejects delimiters that cannot carry authors: a
// separator containing a comma would cut "Last, First" names apart when
// files written by other tools are read back.
func ValidDelimiter(delim string) error {
	sep := separator(delim)
	switch {
	case sep == "":
		return errors.NewValidationError("delimiter", delim, "delimiter must not be empty")
	case strings.ContainsRune(sep, ','):
		return errors.NewValidationError("delimiter", delim, "delimiter must not contain a comma")
	case strings.ContainsRune(sep, escape):
		return errors.NewValidationError("delimiter", delim, "delimiter must not contain a backslash")
	}
	return nil
}

// joinList writes items into one cell. Backslashes, separator characters
// and outer whitespace of an item are escaped so that splitList returns
// the items unchanged.
func joinList(items []string, delim string) string {
	sep := separator(delim)
	parts := make([]string, len(items))
	for i, item := range items {
		parts[i] = escapeItem(item, sep)
	}
	return strings.Join(parts, delim)
}

func escapeItem(item, sep string) string {
	rs := []rune(item)
	var b strings.Builder
	for i, r := range rs {
		outer := (i == 0 || i == len(rs)-1) && unicode.IsSpace(r)
		if r == escape || outer || strings.ContainsRune(sep, r) {
			b.WriteRune(escape)
		}
		b.WriteRune(r)
	}
	return b.String()
}

// splitList cuts a cell on unescaped separators. Unescaped whitespace
// around an item is padding and is dropped, as are blank items.
func splitList(s, delim string) []string {
	sep := []rune(separator(delim))
	rs := []rune(s)

	var out []string
	var cur []rune
	var literal []bool
	flush := func() {
		start, end := 0, len(cur)
		for start < end && !literal[start] && unicode.IsSpace(cur[start]) {
			start++
		}
		for end > start && !literal[end-1] && unicode.IsSpace(cur[end-1]) {
			end--
		}
		if start < end {
			out = append(out, string(cur[start:end]))
		}
		cur, literal = cur[:0], literal[:0]
	}

	for i := 0; i < len(rs); i++ {
		switch {
		case rs[i] == escape && i+1 < len(rs):
			i++
			cur = append(cur, rs[i])
			literal = append(literal, true)
		case hasPrefix(rs[i:], sep):
			flush()
			i += len(sep) - 1
		default:
			cur = append(cur, rs[i])
			literal = append(literal, false)
		}
	}
	flush()
	return out
}

func hasPrefix(rs, prefix []rune) bool {
	if len(prefix) == 0 || len(rs) < len(prefix) {
		return false
	}
	for i, r := range prefix {
		if rs[i] != r {
			return false
		}
	}
	return true
}

package tagcodec

import "strings"

var (
	includedLabels = []string{"1", "included", "relevant", "yes", "true", "y"}
	excludedLabels = []string{"0", "-1", "excluded", "irrelevant", "no", "false", "n"}
)

// ParseLabel maps a screening label column value to a status.
// Blank and unrecognized values report ok=false.
func ParseLabel(label string) (s Status, ok bool) {
	l := strings.ToLower(strings.TrimSpace(label))
	// labels exported by spreadsheets often arrive as floats
	l = strings.TrimSuffix(l, ".0")
	for _, v := range includedLabels {
		if l == v {
			return Status{Included: true}, true
		}
	}
	for _, v := range excludedLabels {
		if l == v {
			return Status{Excluded: true}, true
		}
	}
	return Status{}, false
}

// Label renders a status as a screening label: "1", "0" or "".
// Ambiguous statuses have no label.
func (s Status) Label() string {
	switch {
	case s.Ambiguous():
		return ""
	case s.Included:
		return "1"
	case s.Excluded:
		return "0"
	}
	return ""
}

// Package tagcodec maps review status to and from plain tag strings.
//
// A status tag is the configured prefix followed by "include" or "exclude".
// Older exports wrote "included"/"excluded" or "Decision=included"; those
// spellings are recognized too, always case-insensitively. Decoding only
// ever writes the canonical spelling.
package tagcodec

import (
	"slices"
	"strings"

	"github.com/espace/zotsync/pkg/errors"
)

// Canonical status suffixes written by the codec.
const (
	SuffixInclude = "include"
	SuffixExclude = "exclude"
	SuffixReason  = "Reason="
	SuffixTime    = "Time="
)

var (
	includeSuffixes = []string{"include", "included", "decision=include", "decision=included"}
	excludeSuffixes = []string{"exclude", "excluded", "decision=exclude", "decision=excluded"}
)

// Status is the review decision carried by a tag set.
type Status struct {
	Included bool `json:"included" yaml:"included"`
	Excluded bool `json:"excluded" yaml:"excluded"`
}

// Ambiguous reports whether both flags are set.
func (s Status) Ambiguous() bool {
	return s.Included && s.Excluded
}

// String implements fmt.Stringer.
func (s Status) String() string {
	switch {
	case s.Ambiguous():
		return "ambiguous"
	case s.Included:
		return "included"
	case s.Excluded:
		return "excluded"
	default:
		return "undecided"
	}
}

// Delta is a set of tag additions and removals.
type Delta struct {
	Add    []string
	Remove []string
}

// IsEmpty reports whether the delta changes nothing.
func (d Delta) IsEmpty() bool {
	return len(d.Add) == 0 && len(d.Remove) == 0
}

// Codec recognizes and produces prefixed review tags.
type Codec struct {
	prefix string
	lower  string
}

// New returns a codec for prefix. The prefix must not be blank.
func New(prefix string) (*Codec, error) {
	if strings.TrimSpace(prefix) == "" {
		return nil, errors.NewValidationError("tag_prefix", prefix, "must not be empty")
	}
	return &Codec{prefix: prefix, lower: strings.ToLower(prefix)}, nil
}

// Prefix returns the prefix as configured.
func (c *Codec) Prefix() string {
	return c.prefix
}

// Has reports whether tag carries the prefix.
func (c *Codec) Has(tag string) bool {
	return strings.HasPrefix(strings.ToLower(tag), c.lower)
}

// suffix returns the lower-cased part after the prefix.
func (c *Codec) suffix(tag string) (string, bool) {
	lt := strings.ToLower(strings.TrimSpace(tag))
	if !strings.HasPrefix(lt, c.lower) {
		return "", false
	}
	return lt[len(c.lower):], true
}

func (c *Codec) isInclude(tag string) bool {
	s, ok := c.suffix(tag)
	return ok && slices.Contains(includeSuffixes, s)
}

func (c *Codec) isExclude(tag string) bool {
	s, ok := c.suffix(tag)
	return ok && slices.Contains(excludeSuffixes, s)
}

// EncodeStatus derives the review status from tags. The tags are not modified.
func (c *Codec) EncodeStatus(tags []string) Status {
	var s Status
	for _, t := range tags {
		if c.isInclude(t) {
			s.Included = true
		}
		if c.isExclude(t) {
			s.Excluded = true
		}
	}
	return s
}

// DecodeStatus computes the smallest delta that brings tags to want.
// Unrelated tags are never touched; existing status tags in any recognized
// spelling are kept when they already express the wanted flag.
func (c *Codec) DecodeStatus(want Status, tags []string) Delta {
	var d Delta
	have := c.EncodeStatus(tags)

	if want.Included && !have.Included {
		d.Add = append(d.Add, c.prefix+SuffixInclude)
	}
	if want.Excluded && !have.Excluded {
		d.Add = append(d.Add, c.prefix+SuffixExclude)
	}
	for _, t := range tags {
		if (!want.Included && c.isInclude(t)) || (!want.Excluded && c.isExclude(t)) {
			d.Remove = append(d.Remove, t)
		}
	}
	return d
}

// ApplyStatus returns tags changed to carry exactly want.
func (c *Codec) ApplyStatus(tags []string, want Status) []string {
	return ApplyDelta(tags, c.DecodeStatus(want, tags))
}

// ApplyDelta returns a copy of tags with d.Remove dropped and d.Add appended.
// Removal compares exactly; additions already present are not duplicated.
func ApplyDelta(tags []string, d Delta) []string {
	out := make([]string, 0, len(tags)+len(d.Add))
	for _, t := range tags {
		if !slices.Contains(d.Remove, t) {
			out = append(out, t)
		}
	}
	for _, t := range d.Add {
		if !slices.Contains(out, t) {
			out = append(out, t)
		}
	}
	return out
}

// Prefixed returns the tags carrying the prefix, in order.
func (c *Codec) Prefixed(tags []string) []string {
	var out []string
	for _, t := range tags {
		if c.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Strip returns the tags that do not carry the prefix.
func (c *Codec) Strip(tags []string) []string {
	out := make([]string, 0, len(tags))
	for _, t := range tags {
		if !c.Has(t) {
			out = append(out, t)
		}
	}
	return out
}

// Note returns the value of the first Reason= tag.
func (c *Codec) Note(tags []string) string {
	return c.value(tags, SuffixReason)
}

// SetNote replaces every Reason= tag with one carrying note.
// An empty note only removes.
func (c *Codec) SetNote(tags []string, note string) []string {
	return c.setValue(tags, SuffixReason, note)
}

// Time returns the value of the first Time= tag.
func (c *Codec) Time(tags []string) string {
	return c.value(tags, SuffixTime)
}

// SetTime replaces every Time= tag with one carrying ts.
func (c *Codec) SetTime(tags []string, ts string) []string {
	return c.setValue(tags, SuffixTime, ts)
}

func (c *Codec) value(tags []string, key string) string {
	lk := strings.ToLower(key)
	for _, t := range tags {
		s, ok := c.suffix(t)
		if ok && strings.HasPrefix(s, lk) {
			// slice the original tag so the value keeps its case
			return strings.TrimSpace(strings.TrimSpace(t)[len(c.prefix)+len(key):])
		}
	}
	return ""
}

func (c *Codec) setValue(tags []string, key, value string) []string {
	lk := strings.ToLower(key)
	value = strings.TrimSpace(value)
	out := make([]string, 0, len(tags)+1)
	placed := value == ""
	for _, t := range tags {
		if s, ok := c.suffix(t); ok && strings.HasPrefix(s, lk) {
			// the first existing tag is replaced in place so order survives
			if !placed {
				out = append(out, c.prefix+key+value)
				placed = true
			}
			continue
		}
		out = append(out, t)
	}
	if !placed {
		out = append(out, c.prefix+key+value)
	}
	return out
}

// Package extract defines the contract shared by all format extractors:
// a slot is one translatable string location inside a document, and an
// extractor finds slots and writes translations back without disturbing
// the bytes around them.
//
// Concrete extractors live in langfile, nestedjson, snbt, kubejs and
// jarlang.
package extract

import (
	"strconv"
	"strings"
)

// ---------------------------------------------------------------------------
// Paths
// ---------------------------------------------------------------------------

// Path locates a value inside a document as an ordered list of segments.
// Object keys are stored verbatim; list indices are rendered as "[i]".
type Path []string

// Index returns the path segment for list position i.
func Index(i int) string {
	return "[" + strconv.Itoa(i) + "]"
}

// IsIndex reports whether seg is a list index segment.
func IsIndex(seg string) bool {
	return len(seg) >= 2 && seg[0] == '[' && seg[len(seg)-1] == ']'
}

// Child returns a copy of p extended by seg. The copy never aliases p, so
// sibling paths built from the same parent stay independent.
func (p Path) Child(seg string) Path {
	out := make(Path, len(p)+1)
	copy(out, p)
	out[len(p)] = seg
	return out
}

// LastKey returns the last segment that is not a list index, or "" when the
// path holds indices only.
func (p Path) LastKey() string {
	for i := len(p) - 1; i >= 0; i-- {
		if !IsIndex(p[i]) {
			return p[i]
		}
	}
	return ""
}

// Contains reports whether any segment equals seg, ignoring case.
func (p Path) Contains(seg string) bool {
	for _, s := range p {
		if strings.EqualFold(s, seg) {
			return true
		}
	}
	return false
}

// String renders the path dotted, e.g. "quests.[0].title".
func (p Path) String() string {
	return strings.Join(p, ".")
}

// ---------------------------------------------------------------------------
// Classification
// ---------------------------------------------------------------------------

// Classification tells how a slot's path was judged.
type Classification int

const (
	// Heuristic paths are translated only when the text itself looks like prose.
	Heuristic Classification = iota
	// ForcedText paths are always translated when non-blank.
	ForcedText
	// ForcedTechnical paths are never translated.
	ForcedTechnical
)

func (c Classification) String() string {
	switch c {
	case ForcedText:
		return "forced-text"
	case ForcedTechnical:
		return "forced-technical"
	default:
		return "heuristic"
	}
}

// ---------------------------------------------------------------------------
// Slots and extractors
// ---------------------------------------------------------------------------

// Slot is one translatable string found in a document.
type Slot struct {
	Path  Path
	Text  string
	Class Classification
}

// Extractor finds translatable slots in a document and rewrites the
// document with translated text. Rewrite looks translations up by the exact
// slot text; a missing entry keeps the original.
type Extractor interface {
	FindSlots(data []byte) ([]Slot, error)
	Rewrite(data []byte, translations map[string]string) ([]byte, error)
}

// Texts returns the distinct slot texts in first-seen order.
func Texts(slots []Slot) []string {
	seen := make(map[string]bool, len(slots))
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		if seen[s.Text] {
			continue
		}
		seen[s.Text] = true
		out = append(out, s.Text)
	}
	return out
}

// Zip pairs source texts with their translations. Entries beyond the
// shorter slice are dropped.
func Zip(src, dst []string) map[string]string {
	n := min(len(src), len(dst))
	m := make(map[string]string, n)
	for i := 0; i < n; i++ {
		m[src[i]] = dst[i]
	}
	return m
}

// Identity returns a translation map sending every slot text to itself.
func Identity(slots []Slot) map[string]string {
	texts := Texts(slots)
	return Zip(texts, texts)
}

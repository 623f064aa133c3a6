// Package nestedjson extracts text from arbitrary nested JSON documents
// such as Patchouli book entries and tip files.
package nestedjson

import (
	"strings"

	"github.com/minios-linux/mclokit/extract"
	"github.com/minios-linux/mclokit/jsondoc"
	"github.com/minios-linux/mclokit/tokenguard"
)

// DefaultTextKeys are object keys whose string values are always text.
var DefaultTextKeys = []string{
	"title", "name", "subtitle", "text", "message", "description",
	"tooltip", "note", "hint", "summary", "landing_text", "contents",
}

// Extractor walks the whole document. A string is a slot when its nearest
// object key is a text key, or when the string itself looks like prose.
type Extractor struct {
	textKeys   map[string]bool
	safeMaxLen int
}

var _ extract.Extractor = (*Extractor)(nil)

// New returns an extractor for the given text keys (DefaultTextKeys when
// empty). Strings longer than safeMaxLen runes are only taken under a text
// key.
func New(textKeys []string, safeMaxLen int) *Extractor {
	if len(textKeys) == 0 {
		textKeys = DefaultTextKeys
	}
	keys := make(map[string]bool, len(textKeys))
	for _, k := range textKeys {
		keys[strings.ToLower(k)] = true
	}
	return &Extractor{textKeys: keys, safeMaxLen: safeMaxLen}
}

func (e *Extractor) FindSlots(data []byte) ([]extract.Slot, error) {
	root, err := jsondoc.Parse(data)
	if err != nil {
		return nil, err
	}
	var slots []extract.Slot
	e.walk(root, func(p extract.Path, n *jsondoc.Node, c extract.Classification) {
		slots = append(slots, extract.Slot{Path: p, Text: n.Str, Class: c})
	})
	return slots, nil
}

func (e *Extractor) Rewrite(data []byte, translations map[string]string) ([]byte, error) {
	root, err := jsondoc.Parse(data)
	if err != nil {
		return nil, err
	}
	e.walk(root, func(_ extract.Path, n *jsondoc.Node, _ extract.Classification) {
		if tr, ok := translations[n.Str]; ok {
			n.Str = tr
		}
	})
	return jsondoc.MarshalIndent(root), nil
}

// walk visits every string that qualifies.
func (e *Extractor) walk(root *jsondoc.Node, fn func(extract.Path, *jsondoc.Node, extract.Classification)) {
	root.Walk(func(path extract.Path, key string, n *jsondoc.Node) {
		if c, ok := e.classify(strings.ToLower(key), n.Str); ok {
			fn(path, n, c)
		}
	})
}

func (e *Extractor) classify(key, s string) (extract.Classification, bool) {
	if e.textKeys[key] {
		return extract.ForcedText, true
	}
	if tokenguard.IsLikelyTranslatableText(s, e.safeMaxLen) {
		return extract.Heuristic, true
	}
	return 0, false
}

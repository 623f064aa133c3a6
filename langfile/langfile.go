// Package langfile handles Minecraft locale tables: flat JSON objects such
// as assets/<modid>/lang/en_us.json mapping translation keys to text.
package langfile

import (
	"fmt"

	"github.com/minios-linux/mclokit/extract"
	"github.com/minios-linux/mclokit/jsondoc"
)

// Extractor treats every top-level string value as a slot.
type Extractor struct{}

var _ extract.Extractor = Extractor{}

// FindSlots returns one slot per string value, keyed by its table key.
func (Extractor) FindSlots(data []byte) ([]extract.Slot, error) {
	root, err := parseTable(data)
	if err != nil {
		return nil, err
	}
	var slots []extract.Slot
	for _, m := range root.Members {
		if m.Value.Kind != jsondoc.String {
			continue
		}
		slots = append(slots, extract.Slot{
			Path:  extract.Path{m.Key},
			Text:  m.Value.Str,
			Class: extract.ForcedText,
		})
	}
	return slots, nil
}

// Rewrite replaces string values that have a translation. Non-string values
// and key order are kept; output is two-space indented.
func (Extractor) Rewrite(data []byte, translations map[string]string) ([]byte, error) {
	root, err := parseTable(data)
	if err != nil {
		return nil, err
	}
	Apply(root, translations)
	return jsondoc.MarshalIndent(root), nil
}

// Apply translates the string values of a parsed table in place.
func Apply(root *jsondoc.Node, translations map[string]string) {
	for _, m := range root.Members {
		if m.Value.Kind != jsondoc.String {
			continue
		}
		if tr, ok := translations[m.Value.Str]; ok {
			m.Value.Str = tr
		}
	}
}

func parseTable(data []byte) (*jsondoc.Node, error) {
	root, err := jsondoc.Parse(data)
	if err != nil {
		return nil, err
	}
	if root.Kind != jsondoc.Object {
		return nil, fmt.Errorf("locale table must be a JSON object")
	}
	return root, nil
}

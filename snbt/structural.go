package snbt

import (
	"strings"

	"github.com/minios-linux/mclokit/extract"
	"github.com/minios-linux/mclokit/jsondoc"
)

// visitFunc receives a translatable text and returns its replacement, or
// false to keep it.
type visitFunc func(p extract.Path, text string, c extract.Classification) (string, bool)

// StructuralExtractor parses the document and classifies every string
// literal by its path.
type StructuralExtractor struct {
	rules      Rules
	safeMaxLen int
}

var (
	_ extract.Extractor = (*StructuralExtractor)(nil)
	_ Reporter          = (*StructuralExtractor)(nil)
)

// NewStructural returns a structural extractor. nil rules mean DefaultRules.
func NewStructural(rules Rules, safeMaxLen int) *StructuralExtractor {
	if rules == nil {
		rules = DefaultRules
	}
	return &StructuralExtractor{rules: rules, safeMaxLen: safeMaxLen}
}

func (x *StructuralExtractor) FindSlots(data []byte) ([]extract.Slot, error) {
	root, err := parse(data)
	if err != nil {
		return nil, err
	}
	var slots []extract.Slot
	x.walk(root, nil, func(p extract.Path, text string, c extract.Classification) (string, bool) {
		slots = append(slots, extract.Slot{Path: p, Text: text, Class: c})
		return "", false
	}, nil, nil)
	return slots, nil
}

func (x *StructuralExtractor) Rewrite(data []byte, translations map[string]string) ([]byte, error) {
	out, _, err := x.RewriteReport(data, translations)
	return out, err
}

// RewriteReport rewrites data and returns the string nodes that failed.
// Failed nodes keep their original bytes; the error is only set when the
// document itself does not parse.
func (x *StructuralExtractor) RewriteReport(data []byte, translations map[string]string) ([]byte, []NodeError, error) {
	root, err := parse(data)
	if err != nil {
		return nil, nil, err
	}
	var (
		edits []edit
		errs  []NodeError
	)
	x.walk(root, nil, func(_ extract.Path, text string, _ extract.Classification) (string, bool) {
		tr, ok := translations[text]
		return tr, ok
	}, &edits, &errs)
	return applyEdits(data, edits), errs, nil
}

func (x *StructuralExtractor) walk(n *node, path extract.Path, visit visitFunc, edits *[]edit, errs *[]NodeError) {
	switch n.kind {
	case compoundNode:
		for i, child := range n.children {
			x.walk(child, path.Child(n.keys[i]), visit, edits, errs)
		}
	case listNode:
		for i, child := range n.children {
			x.walk(child, path.Child(extract.Index(i)), visit, edits, errs)
		}
	case stringNode:
		val, changed, err := x.stringValue(path, n, visit)
		if err != nil {
			if errs != nil {
				*errs = append(*errs, NodeError{Path: path, Err: err})
			}
			return
		}
		if changed && edits != nil {
			*edits = append(*edits, edit{start: n.start, end: n.end, text: encode(val, n.quote)})
		}
	}
}

// stringValue computes the new value of one string literal.
func (x *StructuralExtractor) stringValue(path extract.Path, n *node, visit visitFunc) (string, bool, error) {
	text, err := decode(n.inner, n.quote)
	if err != nil {
		return "", false, err
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", false, nil
	}
	if trimmed[0] == '{' || trimmed[0] == '[' {
		if doc, err := jsondoc.Parse([]byte(trimmed)); err == nil {
			if x.walkChat(doc, path, visit) {
				return string(jsondoc.MarshalCompact(doc)), true, nil
			}
			return "", false, nil
		}
	}
	out, ok := x.leaf(path, text, visit)
	return out, ok, nil
}

// walkChat translates a chat component in place and reports whether
// anything changed.
func (x *StructuralExtractor) walkChat(n *jsondoc.Node, path extract.Path, visit visitFunc) bool {
	changed := false
	switch n.Kind {
	case jsondoc.String:
		if out, ok := x.leaf(path, n.Str, visit); ok {
			n.Str = out
			changed = true
		}
	case jsondoc.Object:
		for _, m := range n.Members {
			if x.walkChat(m.Value, path.Child(m.Key), visit) {
				changed = true
			}
		}
	case jsondoc.Array:
		for i, it := range n.Items {
			if x.walkChat(it, path.Child(extract.Index(i)), visit) {
				changed = true
			}
		}
	}
	return changed
}

// leaf handles one plain string: format codes are split off, the rest is
// classified and offered to visit.
func (x *StructuralExtractor) leaf(path extract.Path, s string, visit visitFunc) (string, bool) {
	prefix, core := splitFormat(s)
	c, ok := x.rules.translatable(path, core, x.safeMaxLen)
	if !ok {
		return "", false
	}
	tr, ok := visit(path, core, c)
	if !ok || tr == core {
		return "", false
	}
	return prefix + tr, true
}

// Package snbt extracts translatable text from FTB Quests SNBT files.
//
// Two strategies implement the same extract.Extractor:
//
//   - field-pattern (default) scans for known text keys followed by a
//     string literal or a list of literals and touches nothing else;
//   - structural parses the whole document, classifies every string by its
//     path with a rule table, and also translates chat-component JSON
//     embedded in strings.
//
// Both rewrite only the byte spans of changed literals, so everything else
// in the file is preserved exactly.
package snbt

import (
	"fmt"
	"sort"

	"go.trai.ch/zerr"

	"github.com/minios-linux/mclokit/extract"
)

// Mode selects the extraction strategy.
type Mode string

const (
	FieldPattern Mode = "field-pattern"
	Structural   Mode = "structural"
)

// Modes lists the accepted modes, for flag completion and validation.
var Modes = []Mode{FieldPattern, Structural}

// ErrUnknownMode is returned by New for an unsupported mode.
var ErrUnknownMode = zerr.New("unknown snbt mode")

// DefaultTextKeys are the FTB Quests keys scanned in field-pattern mode.
var DefaultTextKeys = []string{
	"title", "subtitle", "description", "text", "message", "chapter",
	"task", "hint", "note", "body", "book_text", "page_text",
}

// Options configures New.
type Options struct {
	Mode       Mode
	SafeMaxLen int
	// TextKeys overrides DefaultTextKeys in field-pattern mode.
	TextKeys []string
	// Rules overrides DefaultRules in structural mode.
	Rules Rules
}

// New returns the extractor for opts.Mode. An empty mode means
// field-pattern.
func New(opts Options) (extract.Extractor, error) {
	switch opts.Mode {
	case FieldPattern, "":
		return NewFieldPattern(opts.TextKeys, opts.SafeMaxLen), nil
	case Structural:
		return NewStructural(opts.Rules, opts.SafeMaxLen), nil
	}
	return nil, zerr.With(zerr.Wrap(ErrUnknownMode, "snbt"), "mode", string(opts.Mode))
}

// NodeError records a string node that could not be processed. The node
// keeps its original bytes.
type NodeError struct {
	Path extract.Path
	Err  error
}

func (e NodeError) Error() string {
	return fmt.Sprintf("%s: %v", e.Path, e.Err)
}

func (e NodeError) Unwrap() error { return e.Err }

// Reporter is implemented by extractors that can report per-node failures
// alongside a rewrite.
type Reporter interface {
	RewriteReport(data []byte, translations map[string]string) ([]byte, []NodeError, error)
}

// edit replaces src[start:end] with text.
type edit struct {
	start, end int
	text       string
}

func applyEdits(src []byte, edits []edit) []byte {
	if len(edits) == 0 {
		out := make([]byte, len(src))
		copy(out, src)
		return out
	}
	sort.Slice(edits, func(i, j int) bool { return edits[i].start < edits[j].start })
	out := make([]byte, 0, len(src))
	last := 0
	for _, e := range edits {
		out = append(out, src[last:e.start]...)
		out = append(out, e.text...)
		last = e.end
	}
	return append(out, src[last:]...)
}

package snbt

import (
	"regexp"
	"sort"
	"strings"

	"github.com/minios-linux/mclokit/extract"
	"github.com/minios-linux/mclokit/tokenguard"
)

// FieldExtractor finds `key: "literal"`, `key: 'literal'` and
// `key: [literal ...]` for a fixed set of text keys. List elements may be
// separated by commas or whitespace.
type FieldExtractor struct {
	keyRe      *regexp.Regexp
	safeMaxLen int
}

var _ extract.Extractor = (*FieldExtractor)(nil)

// NewFieldPattern returns a field-pattern extractor for keys
// (DefaultTextKeys when empty).
func NewFieldPattern(keys []string, safeMaxLen int) *FieldExtractor {
	if len(keys) == 0 {
		keys = DefaultTextKeys
	}
	alts := make([]string, len(keys))
	for i, k := range keys {
		alts[i] = regexp.QuoteMeta(k)
	}
	re := regexp.MustCompile(`\b(` + strings.Join(alts, "|") + `)["']?\s*:\s*`)
	return &FieldExtractor{keyRe: re, safeMaxLen: safeMaxLen}
}

// literal is one quoted string found after a text key.
type literal struct {
	path       extract.Path
	start, end int // span including quotes
	quote      byte
	text       string
}

func (x *FieldExtractor) FindSlots(data []byte) ([]extract.Slot, error) {
	var slots []extract.Slot
	for _, lit := range x.scan(data) {
		if x.translatable(lit.text) {
			slots = append(slots, extract.Slot{Path: lit.path, Text: lit.text, Class: extract.Heuristic})
		}
	}
	return slots, nil
}

func (x *FieldExtractor) Rewrite(data []byte, translations map[string]string) ([]byte, error) {
	var edits []edit
	for _, lit := range x.scan(data) {
		if !x.translatable(lit.text) {
			continue
		}
		tr, ok := translations[lit.text]
		if !ok || tr == lit.text {
			continue
		}
		edits = append(edits, edit{start: lit.start, end: lit.end, text: escapeField(tr, lit.quote)})
	}
	return applyEdits(data, edits), nil
}

func (x *FieldExtractor) translatable(s string) bool {
	return strings.TrimSpace(s) != "" && tokenguard.IsLikelyTranslatableText(s, x.safeMaxLen)
}

// scan returns the literals of every matched field in document order.
// Key matches inside a string literal are ignored unless the literal is
// the quoted key itself.
func (x *FieldExtractor) scan(data []byte) []literal {
	var (
		out    []literal
		cursor int
	)
	spans := literalSpans(data)
	for _, m := range x.keyRe.FindAllSubmatchIndex(data, -1) {
		if m[0] < cursor || m[1] >= len(data) {
			continue
		}
		if sp, ok := enclosing(spans, m[2]); ok && (sp.start != m[2]-1 || sp.end != m[3]+1) {
			continue
		}
		key := string(data[m[2]:m[3]])
		switch c := data[m[1]]; c {
		case '"', '\'':
			lit, ok := scanLiteral(data, m[1])
			if !ok {
				continue
			}
			lit.path = extract.Path{key}
			out = append(out, lit)
			cursor = lit.end
		case '[':
			lits, end, ok := scanList(data, m[1])
			if !ok {
				continue
			}
			for i := range lits {
				lits[i].path = extract.Path{key, extract.Index(i)}
			}
			out = append(out, lits...)
			cursor = end
		}
	}
	return out
}

type span struct{ start, end int }

// literalSpans lexes data for quoted literals.
func literalSpans(data []byte) []span {
	var spans []span
	for i := 0; i < len(data); i++ {
		if data[i] != '"' && data[i] != '\'' {
			continue
		}
		lit, ok := scanLiteral(data, i)
		if !ok {
			break
		}
		spans = append(spans, span{lit.start, lit.end})
		i = lit.end - 1
	}
	return spans
}

// enclosing returns the literal span strictly containing pos.
func enclosing(spans []span, pos int) (span, bool) {
	i := sort.Search(len(spans), func(i int) bool { return spans[i].end > pos })
	if i < len(spans) && spans[i].start < pos {
		return spans[i], true
	}
	return span{}, false
}

func scanLiteral(data []byte, pos int) (literal, bool) {
	q := data[pos]
	for i := pos + 1; i < len(data); i++ {
		switch data[i] {
		case '\\':
			i++
		case q:
			return literal{
				start: pos,
				end:   i + 1,
				quote: q,
				text:  unescapeField(string(data[pos+1:i]), q),
			}, true
		}
	}
	return literal{}, false
}

// scanList accepts a list made only of string literals.
func scanList(data []byte, pos int) ([]literal, int, bool) {
	var lits []literal
	i := pos + 1
	for i < len(data) {
		switch c := data[i]; c {
		case ' ', '\t', '\r', '\n', ',':
			i++
		case ']':
			return lits, i + 1, true
		case '"', '\'':
			lit, ok := scanLiteral(data, i)
			if !ok {
				return nil, 0, false
			}
			lits = append(lits, lit)
			i = lit.end
		default:
			return nil, 0, false
		}
	}
	return nil, 0, false
}

// unescapeField resolves only \\ and the escaped active quote; any other
// backslash sequence is kept as written.
func unescapeField(s string, quote byte) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) && (s[i+1] == '\\' || s[i+1] == quote) {
			b.WriteByte(s[i+1])
			i++
			continue
		}
		b.WriteByte(s[i])
	}
	return b.String()
}

func escapeField(s string, quote byte) string {
	s = strings.ReplaceAll(s, `\`, `\\`)
	s = strings.ReplaceAll(s, string(quote), `\`+string(quote))
	return string(quote) + s + string(quote)
}

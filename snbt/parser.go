package snbt

import (
	"fmt"
	"strconv"
	"strings"
)

type nodeKind int

const (
	compoundNode nodeKind = iota
	listNode
	arrayNode
	stringNode
	scalarNode
)

// node is one parsed SNBT value. String nodes remember their exact source
// span so a rewrite can replace only the literal.
type node struct {
	kind     nodeKind
	keys     []string // compound member names, parallel to children
	children []*node

	// stringNode
	quote      byte
	start, end int // span of the literal including quotes
	inner      string

	// scalarNode
	word string
}

// syntaxError reports a parse failure with a 1-based line and column.
type syntaxError struct {
	line, col int
	msg       string
}

func (e *syntaxError) Error() string {
	return fmt.Sprintf("snbt: line %d, column %d: %s", e.line, e.col, e.msg)
}

type parser struct {
	src []byte
	pos int
}

func parse(data []byte) (*node, error) {
	p := &parser{src: data}
	p.skipBOM()
	p.skipSpace()
	n, err := p.value()
	if err != nil {
		return nil, err
	}
	p.skipSpace()
	if p.pos < len(p.src) {
		return nil, p.errorf("unexpected %q after document", p.src[p.pos])
	}
	return n, nil
}

func (p *parser) errorf(format string, args ...any) error {
	line, col := 1, 1
	for _, c := range p.src[:min(p.pos, len(p.src))] {
		if c == '\n' {
			line++
			col = 1
		} else {
			col++
		}
	}
	return &syntaxError{line: line, col: col, msg: fmt.Sprintf(format, args...)}
}

func (p *parser) skipBOM() {
	if strings.HasPrefix(string(p.src), "\uFEFF") {
		p.pos = 3
	}
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case ' ', '\t', '\r', '\n':
			p.pos++
		default:
			return
		}
	}
}

func (p *parser) peek() byte {
	if p.pos < len(p.src) {
		return p.src[p.pos]
	}
	return 0
}

func (p *parser) value() (*node, error) {
	switch c := p.peek(); {
	case c == '{':
		return p.compound()
	case c == '[':
		return p.list()
	case c == '"' || c == '\'':
		return p.str()
	case isWordByte(c):
		return &node{kind: scalarNode, word: p.word()}, nil
	case c == 0:
		return nil, p.errorf("unexpected end of input")
	default:
		return nil, p.errorf("unexpected %q", c)
	}
}

func (p *parser) compound() (*node, error) {
	n := &node{kind: compoundNode}
	p.pos++ // {
	for {
		p.skipSpace()
		switch c := p.peek(); {
		case c == '}':
			p.pos++
			return n, nil
		case c == ',':
			p.pos++
			continue
		case c == 0:
			return nil, p.errorf("unterminated compound")
		}

		key, err := p.key()
		if err != nil {
			return nil, err
		}
		p.skipSpace()
		if p.peek() != ':' {
			return nil, p.errorf("expected ':' after key %q", key)
		}
		p.pos++
		p.skipSpace()
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		n.keys = append(n.keys, key)
		n.children = append(n.children, v)
	}
}

func (p *parser) key() (string, error) {
	c := p.peek()
	if c == '"' || c == '\'' {
		s, err := p.str()
		if err != nil {
			return "", err
		}
		return decode(s.inner, s.quote)
	}
	if !isWordByte(c) {
		return "", p.errorf("expected key, got %q", c)
	}
	return p.word(), nil
}

func (p *parser) list() (*node, error) {
	p.pos++ // [
	kind := listNode
	if p.pos+1 < len(p.src) && p.src[p.pos+1] == ';' && strings.IndexByte("BIL", p.src[p.pos]) >= 0 {
		kind = arrayNode
		p.pos += 2
	}
	n := &node{kind: kind}
	for {
		p.skipSpace()
		switch c := p.peek(); {
		case c == ']':
			p.pos++
			return n, nil
		case c == ',':
			p.pos++
			continue
		case c == 0:
			return nil, p.errorf("unterminated list")
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		if kind == arrayNode && v.kind != scalarNode {
			return nil, p.errorf("typed array holds a non-numeric value")
		}
		n.children = append(n.children, v)
	}
}

// str scans a quoted literal. Escapes are only skipped here; decoding
// happens later so a bad escape fails one node instead of the document.
func (p *parser) str() (*node, error) {
	q := p.src[p.pos]
	start := p.pos
	p.pos++
	for p.pos < len(p.src) {
		switch p.src[p.pos] {
		case '\\':
			p.pos += 2
		case q:
			p.pos++
			return &node{
				kind:  stringNode,
				quote: q,
				start: start,
				end:   p.pos,
				inner: string(p.src[start+1 : p.pos-1]),
			}, nil
		default:
			p.pos++
		}
	}
	p.pos = start
	return nil, p.errorf("unterminated string")
}

func (p *parser) word() string {
	start := p.pos
	for p.pos < len(p.src) && isWordByte(p.src[p.pos]) {
		p.pos++
	}
	return string(p.src[start:p.pos])
}

// isWordByte matches the characters SNBT allows in unquoted keys, numbers
// (with their b/s/l/f/d suffixes) and bare words.
func isWordByte(c byte) bool {
	return c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' ||
		c == '_' || c == '-' || c == '.' || c == '+'
}

// ---------------------------------------------------------------------------
// String escapes
// ---------------------------------------------------------------------------

// decode resolves the escapes of a quoted literal body.
func decode(inner string, quote byte) (string, error) {
	if strings.IndexByte(inner, '\\') < 0 {
		return inner, nil
	}
	var b strings.Builder
	b.Grow(len(inner))
	for i := 0; i < len(inner); i++ {
		c := inner[i]
		if c != '\\' {
			b.WriteByte(c)
			continue
		}
		i++
		if i >= len(inner) {
			return "", fmt.Errorf("dangling backslash")
		}
		switch e := inner[i]; e {
		case '\\', '"', '\'':
			b.WriteByte(e)
		case 'n':
			b.WriteByte('\n')
		case 't':
			b.WriteByte('\t')
		case 'r':
			b.WriteByte('\r')
		case 'b':
			b.WriteByte('\b')
		case 'f':
			b.WriteByte('\f')
		case 'u':
			if i+4 >= len(inner) {
				return "", fmt.Errorf("short \\u escape")
			}
			v, err := strconv.ParseUint(inner[i+1:i+5], 16, 32)
			if err != nil {
				return "", fmt.Errorf("bad \\u escape %q", inner[i+1:i+5])
			}
			b.WriteRune(rune(v))
			i += 4
		default:
			return "", fmt.Errorf("unknown escape \\%c", e)
		}
	}
	return b.String(), nil
}

// encode renders s as a literal in the given quote style.
func encode(s string, quote byte) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(quote)
	for _, r := range s {
		switch {
		case r == '\\':
			b.WriteString(`\\`)
		case r == rune(quote):
			b.WriteByte('\\')
			b.WriteByte(quote)
		case r == '\n':
			b.WriteString(`\n`)
		case r == '\t':
			b.WriteString(`\t`)
		case r == '\r':
			b.WriteString(`\r`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(quote)
	return b.String()
}

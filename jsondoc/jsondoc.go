// Package jsondoc is an order-preserving JSON tree.
//
// encoding/json decodes objects into maps, which loses key order and
// collapses duplicate keys. Locale files and books are diffed by humans, so
// the rewrite must keep both. Parse walks the json.Decoder token stream
// instead and Marshal writes the tree back without HTML escaping.
package jsondoc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/minios-linux/mclokit/extract"
)

// Kind is the JSON type of a node.
type Kind int

const (
	Null Kind = iota
	Bool
	Number
	String
	Object
	Array
)

// Member is one key/value pair of an object. Duplicate keys are kept as
// separate members.
type Member struct {
	Key   string
	Value *Node
}

// Node is a JSON value.
type Node struct {
	Kind    Kind
	Bool    bool
	Num     json.Number
	Str     string
	Members []Member
	Items   []*Node
}

var bom = []byte{0xEF, 0xBB, 0xBF}

// Parse decodes data into a tree. A leading UTF-8 BOM is ignored.
func Parse(data []byte) (*Node, error) {
	data = bytes.TrimPrefix(data, bom)
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	n, err := parseValue(dec)
	if err != nil {
		return nil, fmt.Errorf("parsing JSON: %w", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parsing JSON: trailing data after value")
	}
	return n, nil
}

func parseValue(dec *json.Decoder) (*Node, error) {
	t, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch v := t.(type) {
	case json.Delim:
		switch v {
		case '{':
			return parseObject(dec)
		case '[':
			return parseArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %v", v)
	case string:
		return &Node{Kind: String, Str: v}, nil
	case json.Number:
		return &Node{Kind: Number, Num: v}, nil
	case bool:
		return &Node{Kind: Bool, Bool: v}, nil
	case nil:
		return &Node{Kind: Null}, nil
	}
	return nil, fmt.Errorf("unexpected token %T", t)
}

func parseObject(dec *json.Decoder) (*Node, error) {
	n := &Node{Kind: Object, Members: []Member{}}
	for dec.More() {
		kt, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := kt.(string)
		if !ok {
			return nil, fmt.Errorf("expected string key, got %T", kt)
		}
		val, err := parseValue(dec)
		if err != nil {
			return nil, fmt.Errorf("key %q: %w", key, err)
		}
		n.Members = append(n.Members, Member{Key: key, Value: val})
	}
	// closing brace
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return n, nil
}

func parseArray(dec *json.Decoder) (*Node, error) {
	n := &Node{Kind: Array, Items: []*Node{}}
	for dec.More() {
		val, err := parseValue(dec)
		if err != nil {
			return nil, fmt.Errorf("index %d: %w", len(n.Items), err)
		}
		n.Items = append(n.Items, val)
	}
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return n, nil
}

// Get returns the value of the first member named key.
func (n *Node) Get(key string) (*Node, bool) {
	if n == nil || n.Kind != Object {
		return nil, false
	}
	for _, m := range n.Members {
		if m.Key == key {
			return m.Value, true
		}
	}
	return nil, false
}

// Walk calls fn for every string leaf in document order with its path and
// nearest enclosing object key ("" at the root or inside a top-level
// array). Array items inherit the key of their array.
func (n *Node) Walk(fn func(path extract.Path, key string, leaf *Node)) {
	n.walk(nil, "", fn)
}

func (n *Node) walk(path extract.Path, key string, fn func(extract.Path, string, *Node)) {
	switch n.Kind {
	case String:
		fn(path, key, n)
	case Object:
		for _, m := range n.Members {
			m.Value.walk(path.Child(m.Key), m.Key, fn)
		}
	case Array:
		for i, it := range n.Items {
			it.walk(path.Child(extract.Index(i)), key, fn)
		}
	}
}

// ---------------------------------------------------------------------------
// Marshal
// ---------------------------------------------------------------------------

// MarshalIndent renders the tree with two-space indentation and a trailing
// newline, the layout Minecraft resource packs use.
func MarshalIndent(n *Node) []byte {
	var b strings.Builder
	writeNode(&b, n, "  ", 0)
	b.WriteByte('\n')
	return []byte(b.String())
}

// MarshalCompact renders the tree on one line without insignificant
// whitespace.
func MarshalCompact(n *Node) []byte {
	var b strings.Builder
	writeNode(&b, n, "", 0)
	return []byte(b.String())
}

func writeNode(b *strings.Builder, n *Node, indent string, depth int) {
	switch n.Kind {
	case Null:
		b.WriteString("null")
	case Bool:
		if n.Bool {
			b.WriteString("true")
		} else {
			b.WriteString("false")
		}
	case Number:
		b.WriteString(n.Num.String())
	case String:
		b.WriteString(Quote(n.Str))
	case Object:
		if len(n.Members) == 0 {
			b.WriteString("{}")
			return
		}
		b.WriteByte('{')
		for i, m := range n.Members {
			if i > 0 {
				b.WriteByte(',')
			}
			newline(b, indent, depth+1)
			b.WriteString(Quote(m.Key))
			b.WriteByte(':')
			if indent != "" {
				b.WriteByte(' ')
			}
			writeNode(b, m.Value, indent, depth+1)
		}
		newline(b, indent, depth)
		b.WriteByte('}')
	case Array:
		if len(n.Items) == 0 {
			b.WriteString("[]")
			return
		}
		b.WriteByte('[')
		for i, it := range n.Items {
			if i > 0 {
				b.WriteByte(',')
			}
			newline(b, indent, depth+1)
			writeNode(b, it, indent, depth+1)
		}
		newline(b, indent, depth)
		b.WriteByte(']')
	}
}

func newline(b *strings.Builder, indent string, depth int) {
	if indent == "" {
		return
	}
	b.WriteByte('\n')
	for i := 0; i < depth; i++ {
		b.WriteString(indent)
	}
}

// Quote returns s as a JSON string literal. Non-ASCII text and the
// characters <, > and & are written as-is.
func Quote(s string) string {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		// strings always encode
		panic(err)
	}
	return strings.TrimSuffix(buf.String(), "\n")
}

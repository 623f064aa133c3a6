// Package kubejs extracts player-facing messages from KubeJS scripts.
//
// Only the first argument of a known chat/log call is considered, and only
// when it is a plain string literal; template literals with ${...}
// substitutions are left alone.
package kubejs

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/minios-linux/mclokit/extract"
)

// Calls are the functions whose first string argument is translated.
var Calls = []string{"Text.of", "player.tell", "server.tell", "console.log", "sendMessage", "tell"}

var callRe = func() *regexp.Regexp {
	alts := make([]string, len(Calls))
	for i, c := range Calls {
		alts[i] = regexp.QuoteMeta(c)
	}
	return regexp.MustCompile(`\b(` + strings.Join(alts, "|") + `)\s*\(\s*`)
}()

// Extractor implements extract.Extractor for .js sources.
type Extractor struct{}

var _ extract.Extractor = Extractor{}

type literal struct {
	path       extract.Path
	start, end int
	quote      byte
	text       string
}

func (Extractor) FindSlots(data []byte) ([]extract.Slot, error) {
	var slots []extract.Slot
	for _, lit := range scan(data) {
		slots = append(slots, extract.Slot{Path: lit.path, Text: lit.text, Class: extract.ForcedText})
	}
	return slots, nil
}

func (Extractor) Rewrite(data []byte, translations map[string]string) ([]byte, error) {
	var (
		out  []byte
		last int
	)
	for _, lit := range scan(data) {
		tr, ok := translations[lit.text]
		if !ok || tr == lit.text {
			continue
		}
		out = append(out, data[last:lit.start]...)
		out = append(out, quote(tr, lit.quote)...)
		last = lit.end
	}
	return append(out, data[last:]...), nil
}

// scan finds the first-argument literals of every known call.
func scan(data []byte) []literal {
	var (
		out   []literal
		count = map[string]int{}
	)
	for _, m := range callRe.FindAllSubmatchIndex(data, -1) {
		pos := m[1]
		if pos >= len(data) {
			continue
		}
		q := data[pos]
		if q != '"' && q != '\'' && q != '`' {
			continue
		}
		end, ok := closing(data, pos)
		if !ok {
			continue
		}
		raw := string(data[pos+1 : end-1])
		if q == '`' && strings.Contains(raw, "${") {
			continue
		}
		text := unquote(raw, q)
		if strings.TrimSpace(text) == "" {
			continue
		}
		fn := string(data[m[2]:m[3]])
		out = append(out, literal{
			path:  extract.Path{fn, extract.Index(count[fn])},
			start: pos,
			end:   end,
			quote: q,
			text:  text,
		})
		count[fn]++
	}
	return out
}

// closing returns the offset just past the literal opened at pos.
func closing(data []byte, pos int) (int, bool) {
	q := data[pos]
	for i := pos + 1; i < len(data); i++ {
		switch data[i] {
		case '\\':
			i++
		case q:
			return i + 1, true
		case '\n':
			if q != '`' {
				return 0, false
			}
		}
	}
	return 0, false
}

// unquote decodes the JavaScript escapes of a literal body.
func unquote(s string, q byte) string {
	if strings.IndexByte(s, '\\') < 0 {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c != '\\' || i+1 >= len(s) {
			b.WriteByte(c)
			continue
		}
		i++
		switch e := s[i]; e {
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
		case 'v':
			b.WriteByte('\v')
		case 'u':
			if i+4 < len(s) {
				if v, err := strconv.ParseUint(s[i+1:i+5], 16, 32); err == nil {
					b.WriteRune(rune(v))
					i += 4
					continue
				}
			}
			b.WriteByte(e)
		case '\n':
			// line continuation
		default:
			b.WriteByte(e)
		}
	}
	return b.String()
}

// quote renders s as a literal. Template literals only escape the
// backslash and the backtick; quoted strings also escape line breaks.
func quote(s string, q byte) string {
	var b strings.Builder
	b.Grow(len(s) + 2)
	b.WriteByte(q)
	for _, r := range s {
		switch {
		case r == '\\' || r == rune(q):
			b.WriteByte('\\')
			b.WriteRune(r)
		case q != '`' && r == '\n':
			b.WriteString(`\n`)
		case q != '`' && r == '\r':
			b.WriteString(`\r`)
		case q != '`' && r == '\t':
			b.WriteString(`\t`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte(q)
	return b.String()
}

// Package tokenguard finds the protected tokens of a string (format
// placeholders and namespaced identifiers) and decides whether a string
// looks like natural-language text worth translating.
//
// Everything here is pure and deterministic.
package tokenguard

import (
	"regexp"
	"sort"
	"strings"
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Patterns
// ---------------------------------------------------------------------------

var (
	// %s, %1$s, %02d, %.2f, {count}, {player.name}
	placeholderRe = regexp.MustCompile(`%(?:\d+\$)?-?\d*(?:\.\d+)?[sdifx]|\{[\w.]+\}`)
	// modid:item, minecraft:textures/gui/icon.png
	namespaceRe = regexp.MustCompile(`[A-Za-z0-9_.-]+:[A-Za-z0-9_/.-]+`)
	heavyRe     = regexp.MustCompile("[{}<>$%^\\\\\\[\\]|`~]")
)

// ---------------------------------------------------------------------------
// Token sets
// ---------------------------------------------------------------------------

// TokenSet is a sorted multiset of protected tokens.
type TokenSet []string

// Equal reports whether two token sets contain the same tokens with the
// same multiplicity.
func (ts TokenSet) Equal(other TokenSet) bool {
	if len(ts) != len(other) {
		return false
	}
	for i := range ts {
		if ts[i] != other[i] {
			return false
		}
	}
	return true
}

// String renders the set for log messages.
func (ts TokenSet) String() string {
	return "[" + strings.Join(ts, " ") + "]"
}

// ExtractTokens returns the placeholders and namespaced identifiers of s.
func ExtractTokens(s string) TokenSet {
	if s == "" {
		return TokenSet{}
	}
	toks := placeholderRe.FindAllString(s, -1)
	toks = append(toks, namespaceRe.FindAllString(s, -1)...)
	sort.Strings(toks)
	if toks == nil {
		return TokenSet{}
	}
	return TokenSet(toks)
}

// Span is a half-open byte range [Start, End) of s holding a token.
type Span struct {
	Start, End int
}

// Spans returns the byte ranges of every token in s, ordered by start.
// Overlapping matches of the two patterns are merged.
func Spans(s string) []Span {
	var spans []Span
	for _, loc := range placeholderRe.FindAllStringIndex(s, -1) {
		spans = append(spans, Span{loc[0], loc[1]})
	}
	for _, loc := range namespaceRe.FindAllStringIndex(s, -1) {
		spans = append(spans, Span{loc[0], loc[1]})
	}
	if len(spans) < 2 {
		return spans
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].Start < spans[j].Start })

	merged := spans[:1]
	for _, sp := range spans[1:] {
		last := &merged[len(merged)-1]
		if sp.Start < last.End {
			if sp.End > last.End {
				last.End = sp.End
			}
			continue
		}
		merged = append(merged, sp)
	}
	return merged
}

// Inside reports whether byte offset i falls strictly inside a span, that is
// cutting s at i would split a token.
func Inside(spans []Span, i int) (Span, bool) {
	for _, sp := range spans {
		if i > sp.Start && i < sp.End {
			return sp, true
		}
	}
	return Span{}, false
}

// ---------------------------------------------------------------------------
// Text heuristics
// ---------------------------------------------------------------------------

// HasLatin reports whether s contains an ASCII Latin letter.
func HasLatin(s string) bool {
	for i := 0; i < len(s); i++ {
		c := s[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			return true
		}
	}
	return false
}

// IsLikelyTranslatableText reports whether s looks like plain prose: not
// empty, at most maxLen characters, contains Latin letters, and carries no
// structural symbols or namespaced identifiers.
func IsLikelyTranslatableText(s string, maxLen int) bool {
	if s == "" {
		return false
	}
	if maxLen > 0 && utf8.RuneCountInString(s) > maxLen {
		return false
	}
	if !HasLatin(s) {
		return false
	}
	if heavyRe.MatchString(s) {
		return false
	}
	if namespaceRe.MatchString(s) {
		return false
	}
	return true
}

// IsTargetLanguageOnly reports whether s is already written entirely in
// Cyrillic (the default ru_ru target): it has Cyrillic letters and no Latin.
func IsTargetLanguageOnly(s string) bool {
	return containsScript(s, unicode.Cyrillic) && !HasLatin(s)
}

// IsTargetScriptOnly generalizes IsTargetLanguageOnly to the script of a
// Minecraft locale. Latin-script locales always return false because their
// text cannot be told apart from English by script alone.
func IsTargetScriptOnly(s, locale string) bool {
	tables := ScriptOf(locale)
	if len(tables) == 0 || HasLatin(s) {
		return false
	}
	return containsScript(s, tables...)
}

// scriptByLang maps the language part of a locale to its writing system.
var scriptByLang = map[string][]*unicode.RangeTable{
	"ru": {unicode.Cyrillic},
	"uk": {unicode.Cyrillic},
	"be": {unicode.Cyrillic},
	"bg": {unicode.Cyrillic},
	"sr": {unicode.Cyrillic},
	"kk": {unicode.Cyrillic},
	"mk": {unicode.Cyrillic},
	"mn": {unicode.Cyrillic},
	"el": {unicode.Greek},
	"zh": {unicode.Han},
	"ja": {unicode.Han, unicode.Hiragana, unicode.Katakana},
	"ko": {unicode.Hangul},
	"ar": {unicode.Arabic},
	"fa": {unicode.Arabic},
	"he": {unicode.Hebrew},
	"th": {unicode.Thai},
}

// ScriptOf returns the Unicode script tables for a locale such as "ru_ru"
// or "ja-JP", or nil for Latin-script and unknown locales.
func ScriptOf(locale string) []*unicode.RangeTable {
	lang := strings.ToLower(strings.TrimSpace(locale))
	if i := strings.IndexAny(lang, "_-"); i >= 0 {
		lang = lang[:i]
	}
	return scriptByLang[lang]
}

func containsScript(s string, tables ...*unicode.RangeTable) bool {
	for _, r := range s {
		if unicode.In(r, tables...) {
			return true
		}
	}
	return false
}

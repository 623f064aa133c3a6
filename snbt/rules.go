package snbt

import (
	"regexp"
	"strings"

	"github.com/minios-linux/mclokit/extract"
	"github.com/minios-linux/mclokit/tokenguard"
)

// Rule classifies a path. A rule matches when the last semantic key is in
// LastKey (or LastKey is empty) and some segment is in Within (or Within is
// empty). Names are compared lowercased.
type Rule struct {
	Name    string
	Class   extract.Classification
	LastKey []string
	Within  []string
}

func (r Rule) matches(p extract.Path) bool {
	if len(r.LastKey) == 0 && len(r.Within) == 0 {
		return false
	}
	if len(r.LastKey) > 0 && !containsFold(r.LastKey, p.LastKey()) {
		return false
	}
	if len(r.Within) > 0 {
		for _, seg := range p {
			if containsFold(r.Within, seg) {
				return true
			}
		}
		return false
	}
	return true
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}

// Rules is an ordered rule table. Technical rules are evaluated before
// forced-text rules regardless of their position; within one class the
// first match wins.
type Rules []Rule

// Classify returns the classification of p, Heuristic when no rule matches.
func (rs Rules) Classify(p extract.Path) extract.Classification {
	for _, want := range []extract.Classification{extract.ForcedTechnical, extract.ForcedText} {
		for _, r := range rs {
			if r.Class == want && r.matches(p) {
				return want
			}
		}
	}
	return extract.Heuristic
}

// DefaultRules is the FTB Quests and chat-component rule table.
var DefaultRules = Rules{
	{
		Name:  "technical-keys",
		Class: extract.ForcedTechnical,
		LastKey: []string{
			"id", "filename", "group", "icon", "order_index", "quest_links",
			"x", "y", "z", "pos", "size", "color", "background", "shape", "dimension",
		},
	},
	{
		Name:    "task-type",
		Class:   extract.ForcedTechnical,
		LastKey: []string{"type"},
		Within:  []string{"tasks"},
	},
	{
		Name:   "click-event",
		Class:  extract.ForcedTechnical,
		Within: []string{"clickEvent"},
	},
	{
		Name:    "chat-technical",
		Class:   extract.ForcedTechnical,
		LastKey: []string{"translate", "keybind", "selector", "score", "nbt", "font", "insertion"},
	},
	{
		Name:  "text-keys",
		Class: extract.ForcedText,
		LastKey: []string{
			"title", "subtitle", "description", "desc", "text", "message",
			"lore", "name", "hover", "hover_text", "chapter_title",
		},
	},
	{
		Name:   "text-containers",
		Class:  extract.ForcedText,
		Within: []string{"lore", "pages", "description", "subtitle", "title", "name"},
	},
}

var resourcePathRe = regexp.MustCompile(`^[a-z0-9_./:-]+$`)

// IsResourcePath reports whether s looks like an identifier or resource
// location such as "minecraft:stone" or "textures/gui/icon.png".
func IsResourcePath(s string) bool {
	return resourcePathRe.MatchString(strings.TrimSpace(s))
}

// translatable decides whether a string at path p becomes a slot.
func (rs Rules) translatable(p extract.Path, s string, safeMaxLen int) (extract.Classification, bool) {
	if strings.TrimSpace(s) == "" {
		return 0, false
	}
	switch c := rs.Classify(p); c {
	case extract.ForcedTechnical:
		return c, false
	case extract.ForcedText:
		return c, true
	default:
		if IsResourcePath(s) || !tokenguard.IsLikelyTranslatableText(s, safeMaxLen) {
			return c, false
		}
		return c, true
	}
}

var formatPrefixRe = regexp.MustCompile(`^(?:§.)+`)

// splitFormat splits a leading run of § format codes off s.
func splitFormat(s string) (prefix, core string) {
	loc := formatPrefixRe.FindStringIndex(s)
	if loc == nil {
		return "", s
	}
	return s[:loc[1]], s[loc[1]:]
}

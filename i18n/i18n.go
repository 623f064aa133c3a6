// Package i18n translates mclokit's own CLI messages.
//
// Catalogs are embedded from locales/<lang>/LC_MESSAGES/mclokit.po. English
// is the message source and needs no catalog. Init picks the catalog from
// MCLOKIT_LANG or the gettext variables; T and N look messages up in it:
//
//	i18n.Init("")
//	fmt.Println(i18n.N("%d file", "%d files", count))
package i18n

import (
	"embed"
	"io/fs"
	"os"
	"path"
	"sort"
	"strings"

	"github.com/leonelquinteros/gotext"
)

//go:embed all:locales
var locales embed.FS

const (
	domain     = "mclokit"
	localesDir = "locales"
	// sourceLang is the language of the msgids.
	sourceLang = "en"
)

var (
	po      *gotext.Locale
	current = sourceLang
)

// Init loads the catalog for lang, or for the language detected from the
// environment when lang is empty, and returns the catalog language in use.
// A language without a catalog leaves messages in English.
func Init(lang string) string {
	if lang == "" {
		lang = detectLanguage()
	}

	cat, ok := resolve(lang)
	if !ok {
		po, current = nil, sourceLang
		return current
	}
	po = gotext.NewLocaleFSWithPath(cat, locales, localesDir)
	po.AddDomain(domain)
	po.SetDomain(domain)
	current = cat
	return current
}

// Language returns the catalog language chosen by the last Init.
func Language() string {
	return current
}

// Languages returns the languages messages can be shown in, sorted,
// English included.
func Languages() []string {
	langs := []string{sourceLang}
	entries, err := fs.ReadDir(locales, localesDir)
	if err != nil {
		return langs
	}
	for _, e := range entries {
		if e.IsDir() && hasCatalog(e.Name()) {
			langs = append(langs, e.Name())
		}
	}
	sort.Strings(langs)
	return langs
}

// T translates msgid, returning it unchanged when no translation exists.
func T(msgid string) string {
	if po == nil {
		return msgid
	}
	return po.Get(msgid)
}

// N translates a plural message. Without a catalog the singular is used
// for n == 1.
func N(singular, plural string, n int) string {
	if po == nil {
		if n == 1 {
			return singular
		}
		return plural
	}
	return po.GetN(singular, plural, n)
}

// resolve maps a locale such as ru_RU.UTF-8 or pt-BR to an embedded catalog,
// trying the full code before the bare language.
func resolve(lang string) (string, bool) {
	lang = strings.ReplaceAll(stripModifiers(lang), "-", "_")
	if lang == "" {
		return "", false
	}
	base, _, _ := strings.Cut(lang, "_")
	for _, c := range []string{lang, strings.ToLower(lang), base, strings.ToLower(base)} {
		if c == sourceLang {
			return "", false
		}
		if hasCatalog(c) {
			return c, true
		}
	}
	return "", false
}

func hasCatalog(lang string) bool {
	_, err := fs.Stat(locales, path.Join(localesDir, lang, "LC_MESSAGES", domain+".po"))
	return err == nil
}

// stripModifiers drops the codeset and modifier: ru_RU.UTF-8@euro -> ru_RU.
func stripModifiers(val string) string {
	if idx := strings.IndexAny(val, ".@"); idx >= 0 {
		return val[:idx]
	}
	return val
}

// detectLanguage checks MCLOKIT_LANG, then follows GNU gettext:
// LANGUAGE > LC_ALL > LC_MESSAGES > LANG. LANGUAGE may list several
// languages; the first one with a catalog wins.
func detectLanguage() string {
	if val := stripModifiers(os.Getenv("MCLOKIT_LANG")); val != "" {
		return val
	}
	for _, env := range []string{"LANGUAGE", "LC_ALL", "LC_MESSAGES", "LANG"} {
		val := os.Getenv(env)
		if val == "" {
			continue
		}
		if env == "LANGUAGE" {
			list := strings.Split(val, ":")
			for _, l := range list {
				if _, ok := resolve(l); ok {
					return stripModifiers(l)
				}
			}
			val = list[0]
		}
		val = stripModifiers(val)
		if val == "C" || val == "POSIX" || val == "" {
			continue
		}
		return val
	}
	return sourceLang
}

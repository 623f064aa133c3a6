// Package langmeta maps Minecraft locale codes (ru_ru, pt_br, zh_cn) to
// display metadata used in provider prompts and CLI output.
package langmeta

import (
	"regexp"
	"sort"
	"strings"
)

// Meta describes language display metadata.
type Meta struct {
	// English is the name used in prompts ("Brazilian Portuguese").
	English string
	// Native is the name in the language itself.
	Native string
	Flag   string
}

// Registry contains the Minecraft locales mclokit knows by name. Codes are
// lowercase with an underscore, as in assets/<modid>/lang/<code>.json.
var Registry = map[string]Meta{
	"ar_sa": {English: "Arabic", Native: "العربية", Flag: "🇸🇦"},
	"be_by": {English: "Belarusian", Native: "Беларуская", Flag: "🇧🇾"},
	"bg_bg": {English: "Bulgarian", Native: "Български", Flag: "🇧🇬"},
	"cs_cz": {English: "Czech", Native: "Čeština", Flag: "🇨🇿"},
	"da_dk": {English: "Danish", Native: "Dansk", Flag: "🇩🇰"},
	"de_at": {English: "Austrian German", Native: "Deutsch (Österreich)", Flag: "🇦🇹"},
	"de_ch": {English: "Swiss German", Native: "Deutsch (Schweiz)", Flag: "🇨🇭"},
	"de_de": {English: "German", Native: "Deutsch", Flag: "🇩🇪"},
	"el_gr": {English: "Greek", Native: "Ελληνικά", Flag: "🇬🇷"},
	"en_gb": {English: "British English", Native: "English (UK)", Flag: "🇬🇧"},
	"en_us": {English: "English", Native: "English (US)", Flag: "🇺🇸"},
	"es_ar": {English: "Argentinian Spanish", Native: "Español (Argentina)", Flag: "🇦🇷"},
	"es_es": {English: "Spanish", Native: "Español", Flag: "🇪🇸"},
	"es_mx": {English: "Mexican Spanish", Native: "Español (México)", Flag: "🇲🇽"},
	"et_ee": {English: "Estonian", Native: "Eesti", Flag: "🇪🇪"},
	"fi_fi": {English: "Finnish", Native: "Suomi", Flag: "🇫🇮"},
	"fr_ca": {English: "Canadian French", Native: "Français (Canada)", Flag: "🇨🇦"},
	"fr_fr": {English: "French", Native: "Français", Flag: "🇫🇷"},
	"he_il": {English: "Hebrew", Native: "עברית", Flag: "🇮🇱"},
	"hu_hu": {English: "Hungarian", Native: "Magyar", Flag: "🇭🇺"},
	"id_id": {English: "Indonesian", Native: "Bahasa Indonesia", Flag: "🇮🇩"},
	"it_it": {English: "Italian", Native: "Italiano", Flag: "🇮🇹"},
	"ja_jp": {English: "Japanese", Native: "日本語", Flag: "🇯🇵"},
	"kk_kz": {English: "Kazakh", Native: "Қазақ тілі", Flag: "🇰🇿"},
	"ko_kr": {English: "Korean", Native: "한국어", Flag: "🇰🇷"},
	"lt_lt": {English: "Lithuanian", Native: "Lietuvių", Flag: "🇱🇹"},
	"lv_lv": {English: "Latvian", Native: "Latviešu", Flag: "🇱🇻"},
	"nl_nl": {English: "Dutch", Native: "Nederlands", Flag: "🇳🇱"},
	"no_no": {English: "Norwegian", Native: "Norsk", Flag: "🇳🇴"},
	"pl_pl": {English: "Polish", Native: "Polski", Flag: "🇵🇱"},
	"pt_br": {English: "Brazilian Portuguese", Native: "Português (Brasil)", Flag: "🇧🇷"},
	"pt_pt": {English: "European Portuguese", Native: "Português (Portugal)", Flag: "🇵🇹"},
	"ro_ro": {English: "Romanian", Native: "Română", Flag: "🇷🇴"},
	"ru_ru": {English: "Russian", Native: "Русский", Flag: "🇷🇺"},
	"sk_sk": {English: "Slovak", Native: "Slovenčina", Flag: "🇸🇰"},
	"sr_sp": {English: "Serbian", Native: "Српски", Flag: "🇷🇸"},
	"sv_se": {English: "Swedish", Native: "Svenska", Flag: "🇸🇪"},
	"th_th": {English: "Thai", Native: "ไทย", Flag: "🇹🇭"},
	"tr_tr": {English: "Turkish", Native: "Türkçe", Flag: "🇹🇷"},
	"uk_ua": {English: "Ukrainian", Native: "Українська", Flag: "🇺🇦"},
	"vi_vn": {English: "Vietnamese", Native: "Tiếng Việt", Flag: "🇻🇳"},
	"zh_cn": {English: "Simplified Chinese", Native: "简体中文", Flag: "🇨🇳"},
	"zh_tw": {English: "Traditional Chinese", Native: "繁體中文", Flag: "🇹🇼"},
}

var localeRe = regexp.MustCompile(`^[a-z]{2,3}_[a-z]{2,4}$`)

// Canonicalize turns "pt-BR", " PT_br " and similar spellings into the
// Minecraft form "pt_br".
func Canonicalize(locale string) string {
	return strings.ReplaceAll(strings.ToLower(strings.TrimSpace(locale)), "-", "_")
}

// Valid reports whether locale is shaped like a Minecraft locale code.
func Valid(locale string) bool {
	return localeRe.MatchString(locale)
}

// Resolve returns best-effort metadata for a locale. An unknown region
// falls back to the language's home locale (fr_fr for fr_be), then to any
// registered locale of the same language. An unknown language yields the
// code itself as its name.
func Resolve(locale string) Meta {
	code := Canonicalize(locale)
	if m, ok := Registry[code]; ok {
		return m
	}
	lang, _, _ := strings.Cut(code, "_")
	if m, ok := Registry[lang+"_"+lang]; ok {
		return m
	}
	for _, c := range Codes() {
		if strings.HasPrefix(c, lang+"_") {
			return Registry[c]
		}
	}
	return Meta{English: locale, Native: locale}
}

// PromptName returns the English language name for prompts.
func PromptName(locale string) string {
	return Resolve(locale).English
}

// Codes returns the registered locale codes in sorted order.
func Codes() []string {
	codes := make([]string, 0, len(Registry))
	for c := range Registry {
		codes = append(codes, c)
	}
	sort.Strings(codes)
	return codes
}

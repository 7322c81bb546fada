// Package lang is the static table of languages the translate_tts endpoint
// can speak.
package lang

import (
	"log/slog"
	"sort"
	"strings"
)

// Language is one speakable language.
type Language struct {
	Code string `json:"code"`
	Name string `json:"name"`
}

// Table answers whether a language code can be spoken.
type Table struct {
	byCode map[string]string
	log    *slog.Logger
}

var mainLangs = map[string]string{
	"af":    "Afrikaans",
	"ar":    "Arabic",
	"bg":    "Bulgarian",
	"bn":    "Bengali",
	"bs":    "Bosnian",
	"ca":    "Catalan",
	"cs":    "Czech",
	"cy":    "Welsh",
	"da":    "Danish",
	"de":    "German",
	"el":    "Greek",
	"en":    "English",
	"eo":    "Esperanto",
	"es":    "Spanish",
	"et":    "Estonian",
	"fi":    "Finnish",
	"fr":    "French",
	"gu":    "Gujarati",
	"hi":    "Hindi",
	"hr":    "Croatian",
	"hu":    "Hungarian",
	"hy":    "Armenian",
	"id":    "Indonesian",
	"is":    "Icelandic",
	"it":    "Italian",
	"iw":    "Hebrew",
	"ja":    "Japanese",
	"jw":    "Javanese",
	"km":    "Khmer",
	"kn":    "Kannada",
	"ko":    "Korean",
	"la":    "Latin",
	"lv":    "Latvian",
	"mk":    "Macedonian",
	"ml":    "Malayalam",
	"mr":    "Marathi",
	"my":    "Myanmar (Burmese)",
	"ne":    "Nepali",
	"nl":    "Dutch",
	"no":    "Norwegian",
	"pl":    "Polish",
	"pt":    "Portuguese",
	"ro":    "Romanian",
	"ru":    "Russian",
	"si":    "Sinhala",
	"sk":    "Slovak",
	"sq":    "Albanian",
	"sr":    "Serbian",
	"su":    "Sundanese",
	"sv":    "Swedish",
	"sw":    "Swahili",
	"ta":    "Tamil",
	"te":    "Telugu",
	"th":    "Thai",
	"tl":    "Filipino",
	"tr":    "Turkish",
	"uk":    "Ukrainian",
	"ur":    "Urdu",
	"vi":    "Vietnamese",
	"zh":    "Chinese (Mandarin)",
	"zh-cn": "Chinese (Mandarin/China)",
	"zh-tw": "Chinese (Mandarin/Taiwan)",
}

// extraLangs are regional codes the endpoint accepts on top of mainLangs.
var extraLangs = map[string]string{
	"en-us": "English (US)",
	"en-ca": "English (Canada)",
	"en-uk": "English (UK)",
	"en-gb": "English (UK)",
	"en-au": "English (Australia)",
	"en-gh": "English (Ghana)",
	"en-in": "English (India)",
	"en-ie": "English (Ireland)",
	"en-nz": "English (New Zealand)",
	"en-ng": "English (Nigeria)",
	"en-ph": "English (Philippines)",
	"en-za": "English (South Africa)",
	"en-tz": "English (Tanzania)",
	"fr-ca": "French (Canada)",
	"fr-fr": "French (France)",
	"pt-br": "Portuguese (Brazil)",
	"pt-pt": "Portuguese (Portugal)",
	"es-es": "Spanish (Spain)",
	"es-us": "Spanish (United States)",
}

// deprecated maps regional codes to the base language the endpoint now
// speaks for them.
var deprecated = map[string]string{
	"en-us": "en", "en-ca": "en", "en-uk": "en", "en-gb": "en", "en-au": "en",
	"en-gh": "en", "en-in": "en", "en-ie": "en", "en-nz": "en", "en-ng": "en",
	"en-ph": "en", "en-za": "en", "en-tz": "en",
	"fr-ca": "fr", "fr-fr": "fr",
	"pt-br": "pt", "pt-pt": "pt",
	"es-es": "es", "es-us": "es",
	"zh-cn": "zh-CN", "zh-tw": "zh-TW",
}

// Default returns the built-in table.
func Default() *Table {
	t := &Table{
		byCode: make(map[string]string, len(mainLangs)+len(extraLangs)),
		log:    slog.Default(),
	}
	for code, name := range mainLangs {
		t.byCode[code] = name
	}
	for code, name := range extraLangs {
		t.byCode[code] = name
	}
	return t
}

// WithLogger returns a copy of t logging fallbacks to l.
func (t *Table) WithLogger(l *slog.Logger) *Table {
	next := *t
	next.log = l
	return &next
}

// IsSupported reports whether code can be spoken. Matching ignores case.
func (t *Table) IsSupported(code string) bool {
	_, ok := t.byCode[strings.ToLower(strings.TrimSpace(code))]
	return ok
}

// Fallback maps a deprecated regional code to the code the endpoint now
// expects. Other codes are returned lower-cased.
func (t *Table) Fallback(code string) string {
	c := strings.ToLower(strings.TrimSpace(code))
	if base, ok := deprecated[c]; ok {
		t.log.Warn("language code is deprecated, using base language",
			slog.String("lang", c),
			slog.String("fallback", base),
		)
		return base
	}
	return c
}

// Languages lists the table sorted by code.
func (t *Table) Languages() []Language {
	out := make([]Language, 0, len(t.byCode))
	for code, name := range t.byCode {
		out = append(out, Language{Code: code, Name: name})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

package text

import (
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"golang.org/x/text/unicode/norm"
)

// ToneMarks change intonation; the endpoint reads them best followed by a pause.
const ToneMarks = "?!？！"

// TitleAbbreviations lose their period before segmentation so the endpoint
// does not read a full stop after them.
var TitleAbbreviations = []string{"dr", "jr", "mr", "mrs", "ms", "msgr", "prof", "sr", "st"}

// SubPair is one find/replace substitution.
type SubPair struct {
	Find    string
	Replace string
}

// WordSubs are the built-in word substitutions.
var WordSubs = []SubPair{
	{Find: "Esq.", Replace: "Esquire"},
	{Find: "M.", Replace: "Monsieur"},
}

// DefaultRules returns the built-in preprocessing rules in application order.
func DefaultRules() []Rule {
	return []Rule{
		NFCRule(),
		ToneMarksRule(),
		EndOfLineRule(),
		AbbreviationsRule(TitleAbbreviations),
		WordSubRule(WordSubs),
	}
}

// NFCRule composes characters so equivalent spellings sign and split alike.
func NFCRule() Rule {
	return NewFuncRule("unicode-nfc", norm.NFC.String)
}

// ToneMarksRule adds a space after every tone mark.
func ToneMarksRule() Rule {
	return mustRegexRule("tone-marks", "(["+regexp.QuoteMeta(ToneMarks)+"])", "$1 ")
}

// EndOfLineRule rejoins words hyphenated across a line break.
func EndOfLineRule() Rule {
	return mustRegexRule("end-of-line", `-\n`, "")
}

// AbbreviationsRule drops the period after each abbreviation, ignoring case.
func AbbreviationsRule(abbrevs []string) Rule {
	alts := make([]string, 0, len(abbrevs))
	for _, a := range abbrevs {
		alts = append(alts, regexp.QuoteMeta(a))
	}
	return mustRegexRule("abbreviations", `(?i)\b(`+strings.Join(alts, "|")+`)\.`, "${1}")
}

// WordSubRule replaces whole words, case-sensitively. A find string only
// matches at the start of the text or after whitespace or an opening bracket,
// and only when whitespace or the end of the text follows it.
func WordSubRule(pairs []SubPair) Rule {
	type sub struct {
		re   *regexp.Regexp
		repl string
	}
	subs := make([]sub, 0, len(pairs))
	for _, p := range pairs {
		subs = append(subs, sub{
			re:   regexp.MustCompile(`(?:^|[\s(\["'])(` + regexp.QuoteMeta(p.Find) + `)`),
			repl: p.Replace,
		})
	}
	return NewFuncRule("word-sub", func(s string) string {
		for _, sb := range subs {
			s = replaceWords(s, sb.re, sb.repl)
		}
		return s
	})
}

// replaceWords replaces the first submatch of every re match that ends at
// whitespace or the end of s.
func replaceWords(s string, re *regexp.Regexp, repl string) string {
	var b strings.Builder
	last := 0
	for _, m := range re.FindAllStringSubmatchIndex(s, -1) {
		start, end := m[2], m[3]
		if end < len(s) {
			if r, _ := utf8.DecodeRuneInString(s[end:]); !unicode.IsSpace(r) {
				continue
			}
		}
		b.WriteString(s[last:start])
		b.WriteString(repl)
		last = end
	}
	if last == 0 {
		return s
	}
	b.WriteString(s[last:])
	return b.String()
}

// SubstitutionRules builds one case-insensitive rule per "find=replace" pair.
func SubstitutionRules(pairs []string) ([]Rule, error) {
	rules := make([]Rule, 0, len(pairs))
	for _, item := range pairs {
		find, repl, ok := strings.Cut(item, "=")
		find = strings.TrimSpace(find)
		if !ok || find == "" {
			return nil, fmt.Errorf("%w: substitution %q: expected find=replace", ErrInvalidInput, item)
		}
		r, err := NewRegexRule("sub:"+find, "(?i)"+regexp.QuoteMeta(find), strings.ReplaceAll(strings.TrimSpace(repl), "$", "$$"))
		if err != nil {
			return nil, err
		}
		rules = append(rules, r)
	}
	return rules, nil
}

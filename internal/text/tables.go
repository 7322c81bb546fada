package text

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"
)

// Tables holds the recognition sets used by the Segmenter. Every field is
// plain data so locales and domains can replace or extend it.
type Tables struct {
	// Abbreviations are matched case-sensitively without their trailing
	// period ("Dr" matches the atom "Dr."). A matching atom never ends a
	// sentence.
	Abbreviations []string `yaml:"abbreviations" toml:"abbreviations" json:"abbreviations"`

	// SentenceEnders end a sentence when they close an atom.
	SentenceEnders string `yaml:"sentence_enders" toml:"sentence_enders" json:"sentence_enders"`

	// ClauseMarks end a clause when they close an atom.
	ClauseMarks string `yaml:"clause_marks" toml:"clause_marks" json:"clause_marks"`

	// Unspaced marks close an atom even when no whitespace follows them
	// (scripts written without spaces).
	Unspaced string `yaml:"unspaced" toml:"unspaced" json:"unspaced"`

	// Openers and Closers are quotes and brackets ignored when looking at
	// the first or last meaningful character of an atom.
	Openers string `yaml:"openers" toml:"openers" json:"openers"`
	Closers string `yaml:"closers" toml:"closers" json:"closers"`

	// DecimalPattern recognises a number atom. It must match the whole atom.
	DecimalPattern string `yaml:"decimal_pattern" toml:"decimal_pattern" json:"decimal_pattern"`
}

// DefaultTables returns the built-in English-centric tables plus the
// full-width punctuation used by CJK scripts.
func DefaultTables() Tables {
	return Tables{
		Abbreviations: []string{
			"Dr", "Mr", "Mrs", "Ms", "Mx", "Jr", "Sr", "St", "Prof", "Msgr",
			"Rev", "Gen", "Col", "Capt", "Lt", "Sgt", "Mt", "Ft",
			"dr", "mr", "mrs", "ms", "jr", "sr", "st", "prof", "msgr",
			"Inc", "Ltd", "Corp", "vs", "approx", "cf", "e.g", "i.e",
		},
		SentenceEnders: ".!?…‥。！？",
		ClauseMarks:    ",;:—،，、；：",
		Unspaced:       "。！？，、；：",
		Openers:        "\"'([{«“‘「『",
		Closers:        "\"')]}»”’」』",
		DecimalPattern: `^[+-]?\d+([.,]\d+)?$`,
	}
}

// LoadTables reads tables from a YAML, TOML or JSON file chosen by
// extension. Fields absent from the file keep their default value.
func LoadTables(path string) (Tables, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Tables{}, fmt.Errorf("read tables: %w", err)
	}

	var overlay Tables
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &overlay)
	case ".toml":
		_, err = toml.Decode(string(data), &overlay)
	case ".json":
		err = json.Unmarshal(data, &overlay)
	default:
		return Tables{}, fmt.Errorf("unsupported tables format %q (want yaml|toml|json)", filepath.Ext(path))
	}
	if err != nil {
		return Tables{}, fmt.Errorf("decode tables %s: %w", path, err)
	}

	return DefaultTables().merge(overlay), nil
}

func (t Tables) merge(o Tables) Tables {
	if o.Abbreviations != nil {
		t.Abbreviations = o.Abbreviations
	}
	if o.SentenceEnders != "" {
		t.SentenceEnders = o.SentenceEnders
	}
	if o.ClauseMarks != "" {
		t.ClauseMarks = o.ClauseMarks
	}
	if o.Unspaced != "" {
		t.Unspaced = o.Unspaced
	}
	if o.Openers != "" {
		t.Openers = o.Openers
	}
	if o.Closers != "" {
		t.Closers = o.Closers
	}
	if o.DecimalPattern != "" {
		t.DecimalPattern = o.DecimalPattern
	}
	return t
}

// compiledTables is the lookup form of Tables.
type compiledTables struct {
	abbrev   map[string]struct{}
	enders   string
	clause   string
	unspaced string
	openers  string
	closers  string
	decimal  *regexp.Regexp
}

func (t Tables) compile() (*compiledTables, error) {
	if t.SentenceEnders == "" {
		return nil, fmt.Errorf("%w: sentence enders must not be empty", ErrInvalidInput)
	}
	pattern := t.DecimalPattern
	if pattern == "" {
		pattern = DefaultTables().DecimalPattern
	}
	re, err := regexp.Compile(pattern)
	if err != nil {
		return nil, fmt.Errorf("%w: decimal pattern: %w", ErrInvalidInput, err)
	}

	c := &compiledTables{
		abbrev:   make(map[string]struct{}, len(t.Abbreviations)),
		enders:   t.SentenceEnders,
		clause:   t.ClauseMarks,
		unspaced: t.Unspaced,
		openers:  t.Openers,
		closers:  t.Closers,
		decimal:  re,
	}
	for _, a := range t.Abbreviations {
		a = strings.TrimSuffix(strings.TrimSpace(a), ".")
		if a != "" {
			c.abbrev[a] = struct{}{}
		}
	}
	return c, nil
}

func (c *compiledTables) isAbbreviation(word string) bool {
	word = strings.TrimLeft(word, c.openers)
	if !strings.HasSuffix(word, ".") {
		return false
	}
	_, ok := c.abbrev[strings.TrimSuffix(word, ".")]
	return ok
}

func (c *compiledTables) isNumber(word string) bool {
	word = strings.TrimLeft(word, c.openers)
	word = strings.TrimRight(word, c.closers+c.enders+c.clause)
	return word != "" && c.decimal.MatchString(word)
}

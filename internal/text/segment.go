package text

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"
)

// DefaultMaxLen is the longest text the translate_tts endpoint reads reliably.
const DefaultMaxLen = 100

// Segment is one ordered, 1-indexed piece of the input text.
type Segment struct {
	Index int    `json:"index"`
	Text  string `json:"text"`
}

// Boundary is the strength of the break that follows an atom.
type Boundary int

const (
	BoundaryWord Boundary = iota + 1
	BoundaryClause
	BoundarySentence
)

func (b Boundary) String() string {
	switch b {
	case BoundaryWord:
		return "word"
	case BoundaryClause:
		return "clause"
	case BoundarySentence:
		return "sentence"
	default:
		return fmt.Sprintf("boundary(%d)", int(b))
	}
}

// ParseBoundary converts a case-insensitive level name to a Boundary.
func ParseBoundary(s string) (Boundary, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "word", "whitespace":
		return BoundaryWord, nil
	case "clause", "comma":
		return BoundaryClause, nil
	case "sentence":
		return BoundarySentence, nil
	default:
		return 0, fmt.Errorf("%w: unknown boundary %q (want sentence|clause|word)", ErrInvalidInput, s)
	}
}

// AtomKind classifies an atom.
type AtomKind int

const (
	AtomWord AtomKind = iota
	AtomNumber
	AtomAbbreviation
)

// Atom is a run of text that is never split across segments.
type Atom struct {
	Text  string
	Kind  AtomKind
	Break Boundary
	// Spaced reports whether whitespace followed the atom in the input.
	Spaced bool
}

// Segmenter partitions text into bounded-length, speech-natural segments.
// A Segmenter is immutable and safe for concurrent use.
type Segmenter struct {
	tables        *compiledTables
	levels        []Boundary
	packSentences bool
}

// SegmenterOption configures a Segmenter.
type SegmenterOption func(*Segmenter)

// WithLevels sets the order in which boundaries are tried. The word level
// is always appended when missing so every atom can be isolated.
func WithLevels(levels ...Boundary) SegmenterOption {
	return func(s *Segmenter) { s.levels = append([]Boundary(nil), levels...) }
}

// WithPackSentences lets several short sentences share one segment.
func WithPackSentences(pack bool) SegmenterOption {
	return func(s *Segmenter) { s.packSentences = pack }
}

// NewSegmenter compiles tables into a Segmenter.
func NewSegmenter(tables Tables, opts ...SegmenterOption) (*Segmenter, error) {
	compiled, err := tables.compile()
	if err != nil {
		return nil, err
	}

	s := &Segmenter{
		tables: compiled,
		levels: []Boundary{BoundarySentence, BoundaryClause, BoundaryWord},
	}
	for _, opt := range opts {
		opt(s)
	}

	hasWord := false
	for _, l := range s.levels {
		if l == BoundaryWord {
			hasWord = true
		}
	}
	if !hasWord {
		s.levels = append(s.levels, BoundaryWord)
	}

	return s, nil
}

// Segment splits text into segments of at most maxLen runes. A single atom
// longer than maxLen is returned as its own segment rather than cut.
func (s *Segmenter) Segment(text string, maxLen int) ([]Segment, error) {
	if strings.TrimSpace(text) == "" {
		return nil, ErrEmptyText
	}
	if maxLen <= 0 {
		return nil, ErrInvalidMaxLen
	}

	pieces := s.split(s.Atoms(text), 0, maxLen)

	segments := make([]Segment, 0, len(pieces))
	for _, p := range pieces {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		segments = append(segments, Segment{Index: len(segments) + 1, Text: p})
	}
	if len(segments) == 0 {
		return nil, ErrEmptyText
	}
	return segments, nil
}

// Atoms scans text into atoms in input order.
func (s *Segmenter) Atoms(text string) []Atom {
	t := s.tables
	var atoms []Atom
	var cur strings.Builder
	cut := false

	flush := func(spaced bool) {
		if cur.Len() == 0 {
			return
		}
		atoms = append(atoms, s.classify(cur.String(), spaced))
		cur.Reset()
		cut = false
	}

	for i, r := range text {
		if unicode.IsSpace(r) {
			flush(true)
			continue
		}
		if cut && !strings.ContainsRune(t.closers, r) && !strings.ContainsRune(t.unspaced, r) {
			flush(false)
		}
		cur.WriteRune(r)

		if strings.ContainsRune(t.unspaced, r) && !s.glued(cur.String(), text[i+utf8.RuneLen(r):]) {
			cut = true
		}
	}
	flush(true)

	return atoms
}

// glued reports whether an unspaced mark at the end of word belongs to the
// atom: a decimal separator between digits or the period of an abbreviation.
func (s *Segmenter) glued(word, rest string) bool {
	last, size := utf8.DecodeLastRuneInString(word)
	before, _ := utf8.DecodeLastRuneInString(word[:len(word)-size])
	next, _ := utf8.DecodeRuneInString(rest)
	if (last == '.' || last == ',') && unicode.IsDigit(before) && unicode.IsDigit(next) {
		return true
	}
	return last == '.' && s.tables.isAbbreviation(word)
}

func (s *Segmenter) classify(word string, spaced bool) Atom {
	t := s.tables
	a := Atom{Text: word, Kind: AtomWord, Break: BoundaryWord, Spaced: spaced}

	switch {
	case t.isAbbreviation(word):
		a.Kind = AtomAbbreviation
		return a
	case t.isNumber(word):
		a.Kind = AtomNumber
	}

	core := strings.TrimRight(word, t.closers)
	last, _ := utf8.DecodeLastRuneInString(core)
	switch {
	case core == "":
	case strings.ContainsRune(t.enders, last):
		a.Break = BoundarySentence
	case strings.ContainsRune(t.clause, last):
		a.Break = BoundaryClause
	}
	return a
}

// split cuts atoms at levels[level] and recurses into pieces that still do
// not fit. Pieces are packed greedily except at the sentence level unless
// packSentences is set.
func (s *Segmenter) split(atoms []Atom, level, maxLen int) []string {
	if len(atoms) == 0 {
		return nil
	}
	if width(atoms) <= maxLen || len(atoms) == 1 {
		return []string{join(atoms)}
	}
	if level >= len(s.levels) {
		out := make([]string, 0, len(atoms))
		for _, a := range atoms {
			out = append(out, a.Text)
		}
		return out
	}

	boundary := s.levels[level]
	pack := boundary != BoundarySentence || s.packSentences

	var out []string
	var pending []Atom
	flush := func() {
		if len(pending) > 0 {
			out = append(out, join(pending))
			pending = nil
		}
	}

	for _, g := range group(atoms, boundary) {
		switch {
		case width(g) > maxLen:
			flush()
			out = append(out, s.split(g, level+1, maxLen)...)
		case !pack:
			flush()
			out = append(out, join(g))
		default:
			if len(pending) > 0 && width(append(pending[:len(pending):len(pending)], g...)) > maxLen {
				flush()
			}
			pending = append(pending, g...)
		}
	}
	flush()

	return out
}

// group cuts atoms after every atom whose break equals boundary. The word
// level isolates every atom.
func group(atoms []Atom, boundary Boundary) [][]Atom {
	var groups [][]Atom
	start := 0
	for i, a := range atoms {
		if boundary == BoundaryWord || a.Break == boundary {
			groups = append(groups, atoms[start:i+1])
			start = i + 1
		}
	}
	if start < len(atoms) {
		groups = append(groups, atoms[start:])
	}
	return groups
}

func join(atoms []Atom) string {
	var b strings.Builder
	for i, a := range atoms {
		if i > 0 && atoms[i-1].Spaced {
			b.WriteByte(' ')
		}
		b.WriteString(a.Text)
	}
	return b.String()
}

func width(atoms []Atom) int {
	n := 0
	for i, a := range atoms {
		if i > 0 && atoms[i-1].Spaced {
			n++
		}
		n += utf8.RuneCountInString(a.Text)
	}
	return n
}

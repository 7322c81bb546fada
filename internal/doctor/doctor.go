// Package doctor provides preflight checks for gtts.
package doctor

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/example/go-gtts/internal/text"
	"github.com/example/go-gtts/internal/token"
)

// PassMark and FailMark are the prefix symbols printed for each check result.
const (
	PassMark = "✓"
	FailMark = "✗"
)

// Reference signing vector. A signer that disagrees with it produces tokens
// the endpoint rejects.
var (
	referenceSeed  = token.Seed{A: 406986, B: 2817744745}
	referenceText  = "test"
	referenceToken = "278125.134055"
)

// SeedFunc fetches the current token seed.
type SeedFunc func(ctx context.Context) (token.Seed, error)

// ProbeFunc synthesizes a short phrase end to end and returns the audio.
type ProbeFunc func(ctx context.Context) ([]byte, error)

// LangChecker reports whether a language code is speakable.
type LangChecker interface {
	IsSupported(code string) bool
}

// Config holds injectable dependencies for each doctor check.
type Config struct {
	// FetchSeed scrapes the seed from the endpoint home page.
	FetchSeed SeedFunc
	// StaticSeed is the configured fixed seed. When set FetchSeed is skipped.
	StaticSeed string
	// Lang is the configured default language.
	Lang string
	// Langs checks Lang. A nil checker skips the language check.
	Langs LangChecker
	// TablesPath is an optional segmentation tables file to load.
	TablesPath string
	// Probe runs one real synthesis. Nil skips it.
	Probe ProbeFunc
}

// Result collects the outcome of all checks.
type Result struct {
	failures []string
}

// Failed returns true if any check failed.
func (r *Result) Failed() bool { return len(r.failures) > 0 }

// Failures returns the list of failure messages.
func (r *Result) Failures() []string { return append([]string(nil), r.failures...) }

// AddFailure appends an external failure message to the result.
func (r *Result) AddFailure(msg string) { r.failures = append(r.failures, msg) }

func (r *Result) fail(msg string) { r.failures = append(r.failures, msg) }

// Run executes all configured checks and writes human-readable output to w.
// Each check line is prefixed with PassMark or FailMark.
func Run(ctx context.Context, cfg Config, w io.Writer) Result {
	var res Result

	// ---- token signer -----------------------------------------------------
	if err := checkSigner(); err != nil {
		res.fail(fmt.Sprintf("token signer: %v", err))
		fmt.Fprintf(w, "%s token signer: %v\n", FailMark, err)
	} else {
		fmt.Fprintf(w, "%s token signer: %s -> %s\n", PassMark, referenceText, referenceToken)
	}

	// ---- token seed -------------------------------------------------------
	switch {
	case cfg.StaticSeed != "":
		seed, err := token.ParseSeed(cfg.StaticSeed)
		if err != nil {
			res.fail(fmt.Sprintf("token seed: %v", err))
			fmt.Fprintf(w, "%s token seed: invalid static seed (%v)\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s token seed: static %s\n", PassMark, seed)
		}
	case cfg.FetchSeed == nil:
		fmt.Fprintf(w, "%s token seed: skipped\n", PassMark)
	default:
		seed, err := cfg.FetchSeed(ctx)
		if err == nil {
			err = checkSeed(seed)
		}
		if err != nil {
			res.fail(fmt.Sprintf("token seed: %v", err))
			fmt.Fprintf(w, "%s token seed: unavailable (%v)\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s token seed: %s\n", PassMark, seed)
		}
	}

	// ---- language ---------------------------------------------------------
	if cfg.Langs != nil {
		if cfg.Langs.IsSupported(cfg.Lang) {
			fmt.Fprintf(w, "%s language: %s\n", PassMark, cfg.Lang)
		} else {
			res.fail(fmt.Sprintf("language %q: not supported", cfg.Lang))
			fmt.Fprintf(w, "%s language %s: not supported\n", FailMark, cfg.Lang)
		}
	}

	// ---- segmentation tables ----------------------------------------------
	if cfg.TablesPath != "" {
		if _, err := text.LoadTables(cfg.TablesPath); err != nil {
			res.fail(fmt.Sprintf("tables file %q: %v", cfg.TablesPath, err))
			fmt.Fprintf(w, "%s tables file %s: %v\n", FailMark, cfg.TablesPath, err)
		} else {
			fmt.Fprintf(w, "%s tables file: %s\n", PassMark, cfg.TablesPath)
		}
	}

	// ---- sample synthesis -------------------------------------------------
	if cfg.Probe != nil {
		audio, err := cfg.Probe(ctx)
		if err == nil && !looksLikeMP3(audio) {
			err = fmt.Errorf("reply is not MP3 (%d bytes)", len(audio))
		}
		if err != nil {
			res.fail(fmt.Sprintf("sample synthesis: %v", err))
			fmt.Fprintf(w, "%s sample synthesis: %v\n", FailMark, err)
		} else {
			fmt.Fprintf(w, "%s sample synthesis: %d bytes\n", PassMark, len(audio))
		}
	}

	return res
}

// checkSigner compares the signer against the reference vector.
func checkSigner() error {
	got, err := token.Sign(referenceSeed, referenceText)
	if err != nil {
		return err
	}
	if got != referenceToken {
		return fmt.Errorf("got %s, want %s", got, referenceToken)
	}
	return nil
}

// checkSeed returns an error if seed cannot sign a probe text into a
// well-formed "N.M" token.
func checkSeed(seed token.Seed) error {
	if seed.IsZero() {
		return fmt.Errorf("seed is zero")
	}
	tk, err := token.Sign(seed, referenceText)
	if err != nil {
		return err
	}
	if _, _, err := parseToken(tk); err != nil {
		return err
	}
	return nil
}

func parseToken(tk string) (first, second int64, err error) {
	parts := strings.SplitN(tk, ".", 3)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("unexpected token format %q", tk)
	}
	first, err = strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad first half in %q: %w", tk, err)
	}
	second, err = strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("bad second half in %q: %w", tk, err)
	}
	return first, second, nil
}

// looksLikeMP3 accepts an ID3 tag or an MPEG frame sync.
func looksLikeMP3(b []byte) bool {
	if len(b) >= 3 && string(b[:3]) == "ID3" {
		return true
	}
	return len(b) >= 2 && b[0] == 0xFF && b[1]&0xE0 == 0xE0
}

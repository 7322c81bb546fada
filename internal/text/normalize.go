package text

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidInput is the class of every caller error reported by this package.
var ErrInvalidInput = errors.New("invalid input")

var (
	// ErrEmptyText is returned when the input text is empty or whitespace-only.
	ErrEmptyText = fmt.Errorf("%w: text is empty", ErrInvalidInput)

	// ErrInvalidMaxLen is returned when the segment budget is not positive.
	ErrInvalidMaxLen = fmt.Errorf("%w: max length must be positive", ErrInvalidInput)
)

// Normalize prepares raw input text for synthesis.
// It trims surrounding whitespace, normalizes line endings to \n,
// and rejects empty or whitespace-only input.
func Normalize(s string) (string, error) {
	// Normalize line endings: CRLF → LF, then bare CR → LF.
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.ReplaceAll(s, "\r", "\n")

	s = strings.TrimSpace(s)

	if s == "" {
		return "", ErrEmptyText
	}

	return s, nil
}

package tts

import (
	"errors"
	"fmt"

	"github.com/example/go-gtts/internal/text"
	"github.com/example/go-gtts/internal/translate"
)

var (
	// ErrInvalidInput is returned before any request is made: empty text,
	// a non-positive max length or an unsupported language.
	ErrInvalidInput = text.ErrInvalidInput

	// ErrEndpointRejected means a segment was refused twice, the second
	// time with a freshly fetched seed.
	ErrEndpointRejected = errors.New("endpoint rejected request")

	// ErrTransport wraps failures reported by the transport that are not
	// token rejections.
	ErrTransport = errors.New("transport failure")
)

// SegmentError reports which segment failed. Chunks before Index were
// already delivered and remain valid.
type SegmentError struct {
	Index int
	Err   error
}

func (e *SegmentError) Error() string {
	return fmt.Sprintf("segment %d: %v", e.Index, e.Err)
}

func (e *SegmentError) Unwrap() error { return e.Err }

// Retryable reports whether repeating the whole call later may succeed.
func (e *SegmentError) Retryable() bool {
	if errors.Is(e.Err, translate.ErrRateLimited) || errors.Is(e.Err, translate.ErrNetwork) {
		return true
	}
	var se *translate.StatusError
	return errors.As(e.Err, &se) && se.Code >= 500
}

// stale reports whether err means the token no longer matches the
// endpoint's seed.
func stale(err error) bool {
	return errors.Is(err, translate.ErrUnauthorized) || errors.Is(err, translate.ErrMalformedResponse)
}

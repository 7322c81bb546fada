package translate

import (
	"errors"
	"fmt"
	"net/http"
)

var (
	// ErrUnauthorized means the endpoint rejected the request token.
	ErrUnauthorized = errors.New("translate: token rejected")
	// ErrRateLimited means the endpoint is throttling this client.
	ErrRateLimited = errors.New("translate: rate limited")
	// ErrNetwork covers connection-level failures.
	ErrNetwork = errors.New("translate: network error")
	// ErrMalformedResponse means a 2xx reply that carried no audio.
	ErrMalformedResponse = errors.New("translate: malformed response")
	// ErrSeedNotFound means the home page did not expose a token seed.
	ErrSeedNotFound = errors.New("translate: token seed not found")
)

// StatusError is a non-2xx reply from the endpoint.
type StatusError struct {
	Code   int
	Status string
	Lang   string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%d (%s) from TTS API. Probable cause: %s", e.Code, e.Status, e.Cause())
}

// Cause is a best guess at why the endpoint refused the request.
func (e *StatusError) Cause() string {
	switch {
	case e.Code == http.StatusForbidden:
		return "Bad token or upstream API changes"
	case e.Code == http.StatusTooManyRequests:
		return "Too many requests"
	case e.Code == http.StatusNotFound:
		return fmt.Sprintf("Unsupported language '%s'", e.Lang)
	case e.Code >= 500:
		return "Upstream API error. Try again later"
	default:
		return "Unknown"
	}
}

func (e *StatusError) Unwrap() error {
	switch e.Code {
	case http.StatusForbidden:
		return ErrUnauthorized
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return nil
	}
}

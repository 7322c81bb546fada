// Package testutil provides fakes of the translate_tts endpoint and skip
// helpers for integration tests.
//
// Integration tests reach the real endpoint and only run when
// GTTS_INTEGRATION is set:
//
//	func TestLiveSynthesis(t *testing.T) {
//	    testutil.RequireIntegration(t)
//	    ...
//	}
package testutil

import (
	"os"
	"testing"
)

// IntegrationEnv enables tests that talk to the live endpoint.
const IntegrationEnv = "GTTS_INTEGRATION"

// RequireIntegration skips the test unless GTTS_INTEGRATION is set to a
// non-empty value other than "0".
func RequireIntegration(tb testing.TB) {
	tb.Helper()

	v := os.Getenv(IntegrationEnv)
	if v == "" || v == "0" {
		tb.Skipf("live endpoint tests disabled; set %s=1 to enable", IntegrationEnv)
	}
}

// AssertMP3 checks that data starts like an MP3 stream: an ID3 tag or an
// MPEG frame sync.
func AssertMP3(tb testing.TB, data []byte) {
	tb.Helper()

	if len(data) < 3 {
		tb.Fatalf("MP3 data too short: %d bytes", len(data))
	}
	if string(data[:3]) == "ID3" {
		return
	}
	if data[0] == 0xFF && data[1]&0xE0 == 0xE0 {
		return
	}
	tb.Fatalf("MP3: missing ID3 tag or frame sync (got % x)", data[:3])
}

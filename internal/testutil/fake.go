package testutil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"testing"

	"github.com/example/go-gtts/internal/token"
	"github.com/example/go-gtts/internal/translate"
)

// FakeAudio is the body the fakes return for a request.
func FakeAudio(index int, text string) []byte {
	return []byte(fmt.Sprintf("ID3|%d|%s", index, text))
}

// ---------------------------------------------------------------------------
// FakeEndpoint
// ---------------------------------------------------------------------------

// FakeEndpoint is an in-process translate.google server. It publishes a
// seed on its home page and only answers translate_tts calls whose tk
// matches that seed.
type FakeEndpoint struct {
	*httptest.Server

	mu        sync.Mutex
	seed      token.Seed
	published token.Seed
	ttsCalls  int
	seedCalls int
}

// NewFakeEndpoint starts a fake endpoint and closes it when tb ends.
func NewFakeEndpoint(tb testing.TB, seed token.Seed) *FakeEndpoint {
	tb.Helper()

	f := &FakeEndpoint{seed: seed, published: seed}
	mux := http.NewServeMux()
	mux.HandleFunc("/", f.handleHome)
	mux.HandleFunc("/translate_tts", f.handleTTS)
	f.Server = httptest.NewServer(mux)
	tb.Cleanup(f.Close)
	return f
}

// Rotate makes the endpoint accept only tokens signed with seed. The home
// page keeps publishing the old seed until Publish is called.
func (f *FakeEndpoint) Rotate(seed token.Seed) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.seed = seed
}

// Publish exposes the accepted seed on the home page.
func (f *FakeEndpoint) Publish() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.published = f.seed
}

// Calls returns how many translate_tts and home page requests were served.
func (f *FakeEndpoint) Calls() (tts, seed int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.ttsCalls, f.seedCalls
}

func (f *FakeEndpoint) handleHome(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	f.mu.Lock()
	f.seedCalls++
	published := f.published
	f.mu.Unlock()

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = fmt.Fprintf(w, "<html><script>window.cfg={tkk:'%s',lang:'en'};</script></html>", published)
}

func (f *FakeEndpoint) handleTTS(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	f.mu.Lock()
	f.ttsCalls++
	seed := f.seed
	f.mu.Unlock()

	want, err := token.Sign(seed, q.Get("q"))
	if err != nil || q.Get("tk") != want {
		http.Error(w, "forbidden", http.StatusForbidden)
		return
	}
	if q.Get("client") != "tw-ob" || q.Get("tl") == "" {
		http.Error(w, "bad request", http.StatusBadRequest)
		return
	}

	idx, _ := strconv.Atoi(q.Get("idx"))
	w.Header().Set("Content-Type", "audio/mpeg")
	_, _ = w.Write(FakeAudio(idx+1, q.Get("q")))
}

// ---------------------------------------------------------------------------
// FakeTransport
// ---------------------------------------------------------------------------

// FakeTransport answers Fetch calls in process. Respond decides the reply;
// when nil every request gets FakeAudio.
type FakeTransport struct {
	Respond func(ctx context.Context, req translate.Request) ([]byte, error)

	mu       sync.Mutex
	requests []translate.Request
}

func (f *FakeTransport) Fetch(ctx context.Context, req translate.Request) ([]byte, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if f.Respond != nil {
		return f.Respond(ctx, req)
	}
	return FakeAudio(req.Index, req.Text), nil
}

// Requests returns every request seen so far in arrival order.
func (f *FakeTransport) Requests() []translate.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]translate.Request(nil), f.requests...)
}

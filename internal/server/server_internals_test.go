package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/example/go-gtts/internal/config"
	"github.com/example/go-gtts/internal/translate"
	"github.com/example/go-gtts/internal/tts"
)

// --- New & WithShutdownTimeout ---

func TestNew_ShutdownTimeoutFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()

	s := New(cfg, nil)
	if s.shutdownTimeout != 30*time.Second {
		t.Errorf("shutdownTimeout = %v; want 30s", s.shutdownTimeout)
	}

	cfg.Server.ShutdownTimeout = 7
	if got := New(cfg, nil).shutdownTimeout; got != 7*time.Second {
		t.Errorf("shutdownTimeout = %v; want 7s", got)
	}

	cfg.Server.ShutdownTimeout = 0
	if got := New(cfg, nil).shutdownTimeout; got != 30*time.Second {
		t.Errorf("shutdownTimeout = %v; want 30s fallback", got)
	}
}

func TestWithShutdownTimeout_Chaining(t *testing.T) {
	s := New(config.DefaultConfig(), nil)

	returned := s.WithShutdownTimeout(10 * time.Second)
	if returned != s {
		t.Error("WithShutdownTimeout should return the same *Server")
	}

	if s.shutdownTimeout != 10*time.Second {
		t.Errorf("shutdownTimeout = %v; want 10s", s.shutdownTimeout)
	}
}

// --- Handler ---

func TestHandler_ServesMetrics(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Endpoint.Seed = "406986.2817744745"

	h, err := New(cfg, nil).Handler()
	if err != nil {
		t.Fatalf("Handler() error = %v", err)
	}

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("/metrics status = %d; want 200", rec.Code)
	}

	body := rec.Body.String()
	for _, name := range []string{"gtts_segment_fetch_duration_seconds", "go_goroutines"} {
		if !strings.Contains(body, name) {
			t.Errorf("/metrics missing %s", name)
		}
	}
}

func TestHandler_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Endpoint.TLD = "not a tld"

	if _, err := New(cfg, nil).Handler(); err == nil {
		t.Error("Handler() = nil error; want error for invalid tld")
	}
}

func TestStart_InvalidConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Text.Substitutions = []string{"missing-equals"}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := New(cfg, nil).Start(ctx); err == nil {
		t.Error("Start() = nil; want error for invalid substitution")
	}
}

// --- statusFor ---

func TestStatusFor(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"deadline", context.DeadlineExceeded, http.StatusGatewayTimeout},
		{"canceled", fmt.Errorf("wrapped: %w", context.Canceled), http.StatusGatewayTimeout},
		{"invalid input", fmt.Errorf("%w: empty", tts.ErrInvalidInput), http.StatusBadRequest},
		{"rate limited", &tts.SegmentError{Index: 2, Err: fmt.Errorf("%w: %w", tts.ErrTransport, translate.ErrRateLimited)}, http.StatusServiceUnavailable},
		{"rejected", &tts.SegmentError{Index: 1, Err: tts.ErrEndpointRejected}, http.StatusBadGateway},
		{"transport", &tts.SegmentError{Index: 1, Err: tts.ErrTransport}, http.StatusBadGateway},
		{"other", errors.New("boom"), http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := statusFor(tt.err); got != tt.want {
				t.Errorf("statusFor(%v) = %d; want %d", tt.err, got, tt.want)
			}
		})
	}
}

// --- ProbeHTTP ---

func TestProbeHTTP_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/health" {
			w.WriteHeader(http.StatusOK)
		} else {
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	// ProbeHTTP uses "http://" prefix + addr, so strip the scheme.
	addr := srv.Listener.Addr().String()

	if err := ProbeHTTP(addr); err != nil {
		t.Errorf("ProbeHTTP(%q) = %v; want nil", addr, err)
	}
}

func TestProbeHTTP_NonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	if err := ProbeHTTP(srv.Listener.Addr().String()); err == nil {
		t.Error("ProbeHTTP() = nil; want error for non-200 response")
	}
}

func TestProbeHTTP_ConnectionRefused(t *testing.T) {
	if err := ProbeHTTP("127.0.0.1:1"); err == nil {
		t.Error("ProbeHTTP() = nil; want error for unreachable host")
	}
}

// --- Functional options ---

func TestOptions_Defaults(t *testing.T) {
	opts := defaultOptions()

	if opts.maxTextBytes != 4096 || opts.workers != 2 || opts.requestTimeout != 60*time.Second {
		t.Errorf("defaultOptions() = %+v", opts)
	}

	if opts.defaults != tts.DefaultOptions() {
		t.Errorf("defaults = %+v; want tts.DefaultOptions()", opts.defaults)
	}
}

func TestOptions_Setters(t *testing.T) {
	opts := defaultOptions()
	WithMaxTextBytes(1024)(&opts)
	WithWorkers(8)(&opts)
	WithRequestTimeout(90 * time.Second)(&opts)

	if opts.maxTextBytes != 1024 {
		t.Errorf("maxTextBytes = %d; want 1024", opts.maxTextBytes)
	}

	if opts.workers != 8 {
		t.Errorf("workers = %d; want 8", opts.workers)
	}

	if opts.requestTimeout != 90*time.Second {
		t.Errorf("requestTimeout = %v; want 90s", opts.requestTimeout)
	}
}

func TestNewHandler_NilLoggerFallsBack(t *testing.T) {
	h := NewHandler(nil, nil, WithLogger(nil), WithWorkers(0))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

	if rec.Code != http.StatusOK {
		t.Errorf("/health status = %d; want 200", rec.Code)
	}
}

func TestTTSRequest_Options(t *testing.T) {
	slow := true
	req := ttsRequest{Lang: "fr", Slow: &slow, MaxChars: 42}

	got := req.options(tts.DefaultOptions())
	if got.Lang != "fr" || !got.Slow || got.MaxLen != 42 || got.Concurrency != 1 {
		t.Errorf("options = %+v", got)
	}

	if got := (ttsRequest{}).options(tts.DefaultOptions()); got != tts.DefaultOptions() {
		t.Errorf("empty request options = %+v; want defaults", got)
	}
}

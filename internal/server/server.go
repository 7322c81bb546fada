package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"iter"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/go-gtts/internal/config"
	"github.com/example/go-gtts/internal/lang"
	"github.com/example/go-gtts/internal/translate"
	"github.com/example/go-gtts/internal/tts"
)

// ParseLogLevel converts a case-insensitive level string to slog.Level.
// An empty string returns slog.LevelInfo. Unknown strings return an error.
func ParseLogLevel(s string) (slog.Level, error) {
	switch strings.ToLower(s) {
	case "", "info":
		return slog.LevelInfo, nil
	case "debug":
		return slog.LevelDebug, nil
	case "warn", "warning":
		return slog.LevelWarn, nil
	case "error":
		return slog.LevelError, nil
	default:
		return slog.LevelInfo, fmt.Errorf("unknown log level %q (want debug|info|warn|error)", s)
	}
}

// Synthesizer signs and fetches text as ordered MP3 chunks.
type Synthesizer interface {
	Requests(ctx context.Context, text string, opts tts.Options) iter.Seq2[tts.Request, error]
	Synthesize(ctx context.Context, text string, opts tts.Options) iter.Seq2[tts.Chunk, error]
}

// LanguageLister returns the speakable languages.
type LanguageLister interface {
	Languages() []lang.Language
}

// RequestIDHeader carries the id logged for each request.
const RequestIDHeader = "X-Request-Id"

// errorTrailer reports a failure after audio has started streaming.
const errorTrailer = "X-Synthesis-Error"

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

type options struct {
	maxTextBytes   int
	workers        int
	requestTimeout time.Duration
	defaults       tts.Options
	metrics        prometheus.Gatherer
	logger         *slog.Logger
}

func defaultOptions() options {
	return options{
		maxTextBytes:   4096,
		workers:        2,
		requestTimeout: 60 * time.Second,
		defaults:       tts.DefaultOptions(),
		logger:         slog.Default(),
	}
}

// Option configures the HTTP handler.
type Option func(*options)

// WithMaxTextBytes sets the maximum allowed text length in bytes for POST /tts.
func WithMaxTextBytes(n int) Option {
	return func(o *options) { o.maxTextBytes = n }
}

// WithWorkers sets the maximum number of concurrent synthesis calls.
func WithWorkers(n int) Option {
	return func(o *options) { o.workers = n }
}

// WithRequestTimeout sets the per-request synthesis deadline.
func WithRequestTimeout(d time.Duration) Option {
	return func(o *options) { o.requestTimeout = d }
}

// WithDefaults sets the synthesis options used when a request omits them.
func WithDefaults(d tts.Options) Option {
	return func(o *options) { o.defaults = d }
}

// WithMetrics serves g on GET /metrics.
func WithMetrics(g prometheus.Gatherer) Option {
	return func(o *options) { o.metrics = g }
}

// WithLogger sets the slog.Logger used for request logging.
func WithLogger(l *slog.Logger) Option {
	return func(o *options) { o.logger = l }
}

// ---------------------------------------------------------------------------
// handler
// ---------------------------------------------------------------------------

// handler holds the dependencies needed to serve HTTP requests.
type handler struct {
	synth Synthesizer
	langs LanguageLister
	opts  options
	sem   chan struct{} // semaphore for worker pool
	log   *slog.Logger
}

// NewHandler returns an http.Handler that serves /health, /langs,
// POST /segments, POST /tts and, when configured, /metrics.
func NewHandler(synth Synthesizer, langs LanguageLister, optFns ...Option) http.Handler {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.logger == nil {
		opts.logger = slog.Default()
	}

	h := &handler{
		synth: synth,
		langs: langs,
		opts:  opts,
		log:   opts.logger,
	}
	if opts.workers > 0 {
		h.sem = make(chan struct{}, opts.workers)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/health", h.handleHealth)
	mux.HandleFunc("/langs", h.handleLangs)
	mux.HandleFunc("/segments", h.handleSegments)
	mux.HandleFunc("/tts", h.handleTTS)
	if opts.metrics != nil {
		mux.Handle("/metrics", promhttp.HandlerFor(opts.metrics, promhttp.HandlerOpts{}))
	}
	return mux
}

func buildVersion() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "dev"
}

func (h *handler) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": buildVersion(),
	})
}

func (h *handler) handleLangs(w http.ResponseWriter, _ *http.Request) {
	langs := h.langs.Languages()
	if langs == nil {
		langs = []lang.Language{}
	}
	writeJSON(w, http.StatusOK, langs)
}

type ttsRequest struct {
	Text     string `json:"text"`
	Lang     string `json:"lang"`
	Slow     *bool  `json:"slow"`
	MaxChars int    `json:"max_chars"`
}

func (r ttsRequest) options(defaults tts.Options) tts.Options {
	o := defaults
	if r.Lang != "" {
		o.Lang = r.Lang
	}
	if r.Slow != nil {
		o.Slow = *r.Slow
	}
	if r.MaxChars != 0 {
		o.MaxLen = r.MaxChars
	}
	return o
}

// decodeRequest validates a POST body shared by /segments and /tts. It
// writes the error response itself and reports whether to continue.
func (h *handler) decodeRequest(w http.ResponseWriter, r *http.Request) (ttsRequest, bool) {
	var req ttsRequest

	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return req, false
	}

	if r.Body == nil {
		writeError(w, http.StatusBadRequest, "request body is required")
		return req, false
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes(h.opts.maxTextBytes))
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge,
				fmt.Sprintf("request body exceeds maximum size of %d bytes", tooLarge.Limit))
			return req, false
		}
		writeError(w, http.StatusBadRequest, "invalid JSON: "+err.Error())
		return req, false
	}

	if strings.TrimSpace(req.Text) == "" {
		writeError(w, http.StatusBadRequest, "text field is required")
		return req, false
	}

	if len(req.Text) > h.opts.maxTextBytes {
		writeError(w, http.StatusRequestEntityTooLarge,
			fmt.Sprintf("text exceeds maximum size of %d bytes", h.opts.maxTextBytes))
		return req, false
	}

	return req, true
}

// maxBodyBytes bounds a request body carrying maxText bytes of text. Each
// text byte may be escaped as \u00XX; the rest covers the other fields.
func maxBodyBytes(maxText int) int64 {
	return int64(maxText)*6 + 1024
}

type segmentsResponse struct {
	Segments []tts.Request `json:"segments"`
}

func (h *handler) handleSegments(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	resp := segmentsResponse{Segments: []tts.Request{}}
	for sr, err := range h.synth.Requests(ctx, req.Text, req.options(h.opts.defaults)) {
		if err != nil {
			writeError(w, statusFor(err), err.Error())
			return
		}
		resp.Segments = append(resp.Segments, sr)
	}
	writeJSON(w, http.StatusOK, resp)
}

func (h *handler) handleTTS(w http.ResponseWriter, r *http.Request) {
	req, ok := h.decodeRequest(w, r)
	if !ok {
		return
	}

	requestID := r.Header.Get(RequestIDHeader)
	if requestID == "" {
		requestID = uuid.NewString()
	}
	w.Header().Set(RequestIDHeader, requestID)

	// Acquire a worker slot, honouring context cancellation while waiting.
	if h.sem != nil {
		select {
		case h.sem <- struct{}{}:
			// slot acquired
		case <-r.Context().Done():
			writeError(w, http.StatusServiceUnavailable, "request cancelled while waiting for worker")
			return
		}
		defer func() { <-h.sem }()
	}

	// Apply per-request timeout.
	ctx, cancel := context.WithTimeout(r.Context(), h.opts.requestTimeout)
	defer cancel()

	opts := req.options(h.opts.defaults)
	attrs := []any{
		slog.String("request_id", requestID),
		slog.String("lang", opts.Lang),
		slog.Int("text_len", len(req.Text)),
	}

	start := time.Now()
	var (
		segments int
		written  int
		synthErr error
	)
	rc := http.NewResponseController(w)
	for chunk, err := range h.synth.Synthesize(ctx, req.Text, opts) {
		if err != nil {
			synthErr = err
			break
		}
		if segments == 0 {
			w.Header().Set("Content-Type", "audio/mpeg")
			w.Header().Set("Trailer", errorTrailer)
			w.WriteHeader(http.StatusOK)
		}
		segments++
		n, err := w.Write(chunk.Audio)
		written += n
		if err != nil {
			synthErr = fmt.Errorf("write response: %w", err)
			break
		}
		_ = rc.Flush()
	}
	durationMS := time.Since(start).Milliseconds()

	attrs = append(attrs,
		slog.Int("segments", segments),
		slog.Int("mp3_bytes", written),
		slog.Int64("duration_ms", durationMS),
	)

	if synthErr == nil {
		h.log.InfoContext(r.Context(), "synthesis complete", attrs...)
		return
	}

	attrs = append(attrs, slog.String("error", synthErr.Error()))
	status := statusFor(synthErr)
	if status == http.StatusGatewayTimeout {
		h.log.WarnContext(r.Context(), "synthesis timed out", attrs...)
	} else {
		h.log.ErrorContext(r.Context(), "synthesis failed", attrs...)
	}

	if segments > 0 {
		// Headers are gone; report through the declared trailer.
		w.Header().Set(errorTrailer, synthErr.Error())
		return
	}
	msg := synthErr.Error()
	if status == http.StatusGatewayTimeout {
		msg = "synthesis timed out"
	}
	writeError(w, status, msg)
}

// statusFor maps a synthesis error to the HTTP status returned to callers.
func statusFor(err error) int {
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return http.StatusGatewayTimeout
	case errors.Is(err, tts.ErrInvalidInput):
		return http.StatusBadRequest
	case errors.Is(err, translate.ErrRateLimited):
		return http.StatusServiceUnavailable
	case errors.Is(err, tts.ErrEndpointRejected), errors.Is(err, tts.ErrTransport):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// ---------------------------------------------------------------------------
// Server wires handler into net/http.Server with graceful shutdown
// ---------------------------------------------------------------------------

// Server wires the HTTP handler into a net/http.Server with graceful shutdown.
type Server struct {
	cfg             config.Config
	synth           *tts.Synthesizer
	shutdownTimeout time.Duration
}

// New returns a server for cfg. A nil synth is built from cfg on Start.
func New(cfg config.Config, synth *tts.Synthesizer) *Server {
	shutdown := 30 * time.Second
	if cfg.Server.ShutdownTimeout > 0 {
		shutdown = time.Duration(cfg.Server.ShutdownTimeout) * time.Second
	}
	return &Server{
		cfg:             cfg,
		synth:           synth,
		shutdownTimeout: shutdown,
	}
}

// WithShutdownTimeout overrides the graceful-shutdown drain period.
func (s *Server) WithShutdownTimeout(d time.Duration) *Server {
	s.shutdownTimeout = d
	return s
}

// Handler builds the HTTP handler and its metrics registry from the
// server's config.
func (s *Server) Handler() (http.Handler, error) {
	synth := s.synth
	if synth == nil {
		var err error
		synth, err = tts.FromConfig(s.cfg, nil, slog.Default())
		if err != nil {
			return nil, fmt.Errorf("initialize synthesizer: %w", err)
		}
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	if err := tts.RegisterMetrics(reg); err != nil {
		return nil, fmt.Errorf("register metrics: %w", err)
	}

	return NewHandler(synth, lang.Default(),
		WithWorkers(s.cfg.Server.Workers),
		WithMaxTextBytes(s.cfg.Server.MaxTextBytes),
		WithRequestTimeout(time.Duration(s.cfg.Server.RequestTimeout)*time.Second),
		WithDefaults(tts.OptionsFromConfig(s.cfg.TTS)),
		WithMetrics(reg),
	), nil
}

func (s *Server) Start(ctx context.Context) error {
	h, err := s.Handler()
	if err != nil {
		return err
	}

	httpServer := &http.Server{
		Addr:              s.cfg.Server.ListenAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- httpServer.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.shutdownTimeout)
		defer cancel()
		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("http shutdown: %w", err)
		}
		return nil
	case err := <-errCh:
		if err == http.ErrServerClosed {
			return nil
		}
		return fmt.Errorf("http listen: %w", err)
	}
}

func ProbeHTTP(addr string) error {
	resp, err := http.Get("http://" + addr + "/health") //nolint:noctx
	if err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected health status: %s", resp.Status)
	}
	return nil
}

// Package translate talks to the Google Translate translate_tts endpoint.
package translate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const (
	DefaultTLD       = "com"
	DefaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64; rv:65.0) Gecko/20100101 Firefox/65.0"
	DefaultTimeout   = 30 * time.Second

	// maxAudioBytes caps a single segment reply.
	maxAudioBytes = 8 << 20
)

// Request is one signed translate_tts call. Index is 1-based.
type Request struct {
	Index int    `json:"index"`
	Total int    `json:"total"`
	Text  string `json:"text"`
	Token string `json:"token"`
	Lang  string `json:"lang"`
	Slow  bool   `json:"slow"`
}

// Query renders the request as translate_tts query parameters.
func (r Request) Query() url.Values {
	speed := "1"
	if r.Slow {
		speed = "0.3"
	}
	q := url.Values{}
	q.Set("ie", "UTF-8")
	q.Set("q", r.Text)
	q.Set("tl", r.Lang)
	q.Set("ttsspeed", speed)
	q.Set("total", strconv.Itoa(r.Total))
	q.Set("idx", strconv.Itoa(max(r.Index-1, 0)))
	q.Set("client", "tw-ob")
	q.Set("textlen", strconv.Itoa(len([]rune(r.Text))))
	q.Set("tk", r.Token)
	return q
}

// Client fetches audio and token seeds over HTTP.
type Client struct {
	baseURL   string
	userAgent string
	http      *http.Client
	limiter   *rate.Limiter
	now       func() time.Time
	log       *slog.Logger
	maxBody   int64
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the endpoint host, e.g. for a test server.
func WithBaseURL(u string) Option {
	return func(c *Client) {
		if u != "" {
			c.baseURL = strings.TrimRight(u, "/")
		}
	}
}

// WithTLD selects the translate.google.<tld> host.
func WithTLD(tld string) Option {
	return func(c *Client) {
		if tld != "" {
			c.baseURL = "https://translate.google." + strings.TrimPrefix(tld, ".")
		}
	}
}

func WithUserAgent(ua string) Option {
	return func(c *Client) {
		if ua != "" {
			c.userAgent = ua
		}
	}
}

func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) {
		if h != nil {
			c.http = h
		}
	}
}

// WithRateLimit caps outgoing requests per second. Zero disables limiting.
func WithRateLimit(perSecond float64, burst int) Option {
	return func(c *Client) {
		if perSecond <= 0 {
			c.limiter = nil
			return
		}
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(perSecond), burst)
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.log = l
		}
	}
}

// NewClient returns a client for https://translate.google.com.
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL:   "https://translate.google." + DefaultTLD,
		userAgent: DefaultUserAgent,
		http:      &http.Client{Timeout: DefaultTimeout},
		now:       time.Now,
		log:       slog.Default(),
		maxBody:   maxAudioBytes,
	}
	for _, o := range opts {
		o(c)
	}
	return c
}

// BaseURL returns the endpoint host in use.
func (c *Client) BaseURL() string { return c.baseURL }

// URL returns the translate_tts address for req.
func (c *Client) URL(req Request) string {
	return c.baseURL + "/translate_tts?" + req.Query().Encode()
}

// Fetch performs one translate_tts call and returns the MP3 bytes.
func (c *Client) Fetch(ctx context.Context, req Request) ([]byte, error) {
	u := c.URL(req)

	start := time.Now()
	resp, err := c.get(ctx, u)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	c.log.DebugContext(ctx, "translate_tts response",
		slog.Int("idx", req.Index),
		slog.Int("total", req.Total),
		slog.Int("status", resp.StatusCode),
		slog.Duration("elapsed", time.Since(start)),
	)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return nil, &StatusError{
			Code:   resp.StatusCode,
			Status: http.StatusText(resp.StatusCode),
			Lang:   req.Lang,
		}
	}

	if ct := resp.Header.Get("Content-Type"); ct != "" && !isAudio(ct) {
		return nil, fmt.Errorf("%w: content type %q", ErrMalformedResponse, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %w", ErrNetwork, err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, fmt.Errorf("%w: body exceeds %d bytes", ErrMalformedResponse, c.maxBody)
	}
	if len(body) == 0 {
		return nil, fmt.Errorf("%w: empty body", ErrMalformedResponse)
	}
	return body, nil
}

func (c *Client) get(ctx context.Context, u string) (*http.Response, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	httpReq.Header.Set("User-Agent", c.userAgent)
	httpReq.Header.Set("Referer", c.baseURL+"/")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, ctxErr
		}
		return nil, fmt.Errorf("%w: %w", ErrNetwork, err)
	}
	return resp, nil
}

func isAudio(contentType string) bool {
	ct := strings.ToLower(contentType)
	return strings.HasPrefix(ct, "audio/") || strings.HasPrefix(ct, "application/octet-stream")
}

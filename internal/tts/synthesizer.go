// Package tts turns text into ordered MP3 chunks fetched from translate_tts.
package tts

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/go-gtts/internal/lang"
	"github.com/example/go-gtts/internal/text"
	"github.com/example/go-gtts/internal/token"
	"github.com/example/go-gtts/internal/translate"
)

// Request is one segment paired with its token.
type Request = translate.Request

// Chunk is the audio for one segment.
type Chunk struct {
	Index int
	Total int
	Text  string
	Audio []byte
}

// Transport performs a single signed request.
type Transport interface {
	Fetch(ctx context.Context, req Request) ([]byte, error)
}

// Languages checks and maps language codes.
type Languages interface {
	IsSupported(code string) bool
	Fallback(code string) string
}

// Options control one synthesis call.
type Options struct {
	Lang        string
	Slow        bool
	MaxLen      int
	Concurrency int
	LangCheck   bool
}

// DefaultOptions returns English at normal speed, 100 runes per segment and
// one fetch at a time.
func DefaultOptions() Options {
	return Options{
		Lang:        "en",
		MaxLen:      text.DefaultMaxLen,
		Concurrency: 1,
		LangCheck:   true,
	}
}

// ---------------------------------------------------------------------------
// Functional options
// ---------------------------------------------------------------------------

// Option configures a Synthesizer.
type Option func(*Synthesizer)

// WithPipeline replaces the default preprocessing rules.
func WithPipeline(p *text.Pipeline) Option {
	return func(s *Synthesizer) {
		if p != nil {
			s.pipeline = p
		}
	}
}

// WithSegmenter replaces the default segmenter.
func WithSegmenter(seg *text.Segmenter) Option {
	return func(s *Synthesizer) {
		if seg != nil {
			s.segmenter = seg
		}
	}
}

// WithLanguages replaces the built-in language table.
func WithLanguages(l Languages) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.langs = l
		}
	}
}

// WithLogger sets the logger used for reseeds and failures.
func WithLogger(l *slog.Logger) Option {
	return func(s *Synthesizer) {
		if l != nil {
			s.log = l
		}
	}
}

// ---------------------------------------------------------------------------
// Synthesizer
// ---------------------------------------------------------------------------

// Synthesizer preprocesses and segments text, signs each segment and hands
// it to the transport. It is safe for concurrent use.
type Synthesizer struct {
	transport Transport
	seeds     *token.Store
	pipeline  *text.Pipeline
	segmenter *text.Segmenter
	langs     Languages
	log       *slog.Logger
}

// New returns a Synthesizer fetching through transport and signing with
// seeds from store.
func New(transport Transport, store *token.Store, opts ...Option) (*Synthesizer, error) {
	if transport == nil {
		return nil, errors.New("tts: transport is required")
	}
	if store == nil {
		return nil, errors.New("tts: seed store is required")
	}

	s := &Synthesizer{
		transport: transport,
		seeds:     store,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(s)
	}

	if s.pipeline == nil {
		s.pipeline = text.NewPipeline(text.DefaultRules()...).WithLogger(s.log)
	}
	if s.segmenter == nil {
		seg, err := text.NewSegmenter(text.DefaultTables())
		if err != nil {
			return nil, fmt.Errorf("tts: default segmenter: %w", err)
		}
		s.segmenter = seg
	}
	if s.langs == nil {
		s.langs = lang.Default().WithLogger(s.log)
	}
	return s, nil
}

// Segments returns the segments text would be sent as, without signing.
func (s *Synthesizer) Segments(input string, opts Options) ([]text.Segment, error) {
	segs, _, err := s.plan(input, opts)
	return segs, err
}

// Requests yields a signed request per segment in index order. Each range
// over the result starts again from the text.
func (s *Synthesizer) Requests(ctx context.Context, input string, opts Options) iter.Seq2[Request, error] {
	return func(yield func(Request, error) bool) {
		segs, o, err := s.plan(input, opts)
		if err != nil {
			yield(Request{}, err)
			return
		}
		for _, seg := range segs {
			seed, err := s.seeds.Current(ctx)
			if err != nil {
				yield(Request{}, s.segmentErr(ctx, seg.Index, ErrTransport, err))
				return
			}
			req, err := sign(seed, seg, len(segs), o)
			if !yield(req, err) || err != nil {
				return
			}
		}
	}
}

// Synthesize yields one chunk per segment in index order. Up to
// opts.Concurrency segments are fetched at once. The first error ends the
// sequence; chunks yielded before it stay valid.
func (s *Synthesizer) Synthesize(ctx context.Context, input string, opts Options) iter.Seq2[Chunk, error] {
	return func(yield func(Chunk, error) bool) {
		segs, o, err := s.plan(input, opts)
		if err != nil {
			yield(Chunk{}, err)
			return
		}

		type result struct {
			audio []byte
			err   error
		}

		workCtx, cancel := context.WithCancel(ctx)
		slots := make([]chan result, len(segs))
		for i := range slots {
			slots[i] = make(chan result, 1)
		}

		done := make(chan struct{})
		go func() {
			defer close(done)
			var g errgroup.Group
			g.SetLimit(o.Concurrency)
			for i, seg := range segs {
				if workCtx.Err() != nil {
					slots[i] <- result{err: workCtx.Err()}
					continue
				}
				g.Go(func() error {
					audio, err := s.fetch(workCtx, seg, len(segs), o)
					slots[i] <- result{audio: audio, err: err}
					return nil
				})
			}
			_ = g.Wait()
		}()
		defer func() {
			cancel()
			<-done
		}()

		for i, seg := range segs {
			var r result
			select {
			case r = <-slots[i]:
			case <-ctx.Done():
				yield(Chunk{}, ctx.Err())
				return
			}
			if r.err != nil {
				yield(Chunk{}, r.err)
				return
			}
			chunk := Chunk{Index: seg.Index, Total: len(segs), Text: seg.Text, Audio: r.audio}
			if !yield(chunk, nil) {
				return
			}
		}
	}
}

// WriteTo streams the audio for input into w and returns the bytes written.
func (s *Synthesizer) WriteTo(ctx context.Context, w io.Writer, input string, opts Options) (int64, error) {
	var n int64
	for chunk, err := range s.Synthesize(ctx, input, opts) {
		if err != nil {
			return n, err
		}
		written, err := w.Write(chunk.Audio)
		n += int64(written)
		if err != nil {
			return n, fmt.Errorf("write chunk %d: %w", chunk.Index, err)
		}
	}
	return n, nil
}

// Save writes the audio for input to path. The file only appears once every
// segment has been fetched.
func (s *Synthesizer) Save(ctx context.Context, path, input string, opts Options) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".gtts-*.mp3")
	if err != nil {
		return fmt.Errorf("create output: %w", err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := s.WriteTo(ctx, tmp, input, opts); err != nil {
		_ = tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("rename output: %w", err)
	}
	return nil
}

// plan validates opts, preprocesses input and splits it into segments.
func (s *Synthesizer) plan(input string, opts Options) ([]text.Segment, Options, error) {
	o, err := s.resolve(opts)
	if err != nil {
		return nil, o, err
	}

	clean, err := text.Normalize(input)
	if err != nil {
		return nil, o, err
	}
	segs, err := s.segmenter.Segment(s.pipeline.Apply(clean), o.MaxLen)
	if err != nil {
		return nil, o, err
	}
	return segs, o, nil
}

func (s *Synthesizer) resolve(opts Options) (Options, error) {
	o := opts
	o.Lang = strings.ToLower(strings.TrimSpace(o.Lang))
	if o.Lang == "" {
		o.Lang = "en"
	}
	if o.LangCheck && !s.langs.IsSupported(o.Lang) {
		return o, fmt.Errorf("%w: language not supported: %s", ErrInvalidInput, o.Lang)
	}
	o.Lang = s.langs.Fallback(o.Lang)

	switch {
	case o.MaxLen == 0:
		o.MaxLen = text.DefaultMaxLen
	case o.MaxLen < 0:
		return o, text.ErrInvalidMaxLen
	}
	if o.Concurrency < 1 {
		o.Concurrency = 1
	}
	return o, nil
}

func sign(seed token.Seed, seg text.Segment, total int, o Options) (Request, error) {
	tk, err := token.Sign(seed, seg.Text)
	if err != nil {
		return Request{}, &SegmentError{Index: seg.Index, Err: err}
	}
	return Request{
		Index: seg.Index,
		Total: total,
		Text:  seg.Text,
		Token: tk,
		Lang:  o.Lang,
		Slow:  o.Slow,
	}, nil
}

// fetch signs and fetches one segment and records its outcome.
func (s *Synthesizer) fetch(ctx context.Context, seg text.Segment, total int, o Options) ([]byte, error) {
	audio, err := s.fetchSegment(ctx, seg, total, o)
	segmentsTotal.WithLabelValues(outcome(err)).Inc()
	return audio, err
}

// outcome names the final result of one segment for segmentsTotal.
func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrEndpointRejected):
		return "rejected"
	case errors.Is(err, ErrTransport):
		return "transport"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "invalid"
	}
}

// fetchSegment retries a stale token once with a fresh seed.
func (s *Synthesizer) fetchSegment(ctx context.Context, seg text.Segment, total int, o Options) ([]byte, error) {
	seed, err := s.seeds.Current(ctx)
	if err != nil {
		return nil, s.segmentErr(ctx, seg.Index, ErrTransport, err)
	}
	req, err := sign(seed, seg, total, o)
	if err != nil {
		return nil, err
	}

	audio, err := s.do(ctx, req)
	if err == nil {
		return audio, nil
	}
	if ctx.Err() != nil || !stale(err) {
		return nil, s.segmentErr(ctx, seg.Index, ErrTransport, err)
	}

	s.log.WarnContext(ctx, "token rejected, refreshing seed",
		slog.Int("segment", seg.Index),
		slog.String("seed", seed.String()),
		slog.String("error", err.Error()),
	)
	reseedsTotal.Inc()

	fresh, err := s.reseed(ctx, seed)
	if err != nil {
		return nil, s.segmentErr(ctx, seg.Index, ErrTransport, err)
	}
	if req, err = sign(fresh, seg, total, o); err != nil {
		return nil, err
	}

	audio, err = s.do(ctx, req)
	if err == nil {
		return audio, nil
	}
	if ctx.Err() == nil && stale(err) {
		s.log.ErrorContext(ctx, "segment rejected after reseed",
			slog.Int("segment", seg.Index),
			slog.String("error", err.Error()),
		)
		return nil, &SegmentError{Index: seg.Index, Err: fmt.Errorf("%w: %w", ErrEndpointRejected, err)}
	}
	return nil, s.segmentErr(ctx, seg.Index, ErrTransport, err)
}

func (s *Synthesizer) do(ctx context.Context, req Request) ([]byte, error) {
	start := time.Now()
	audio, err := s.transport.Fetch(ctx, req)
	fetchDuration.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}
	audioBytesTotal.Add(float64(len(audio)))
	return audio, nil
}

// reseed returns a seed different from used. If another fetch already
// refreshed the store, its seed is reused.
func (s *Synthesizer) reseed(ctx context.Context, used token.Seed) (token.Seed, error) {
	if cur, err := s.seeds.Current(ctx); err == nil && cur != used {
		return cur, nil
	}
	return s.seeds.Refresh(ctx)
}

// segmentErr classifies a failed segment. Cancellation is returned as the
// context error.
func (s *Synthesizer) segmentErr(ctx context.Context, index int, class, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	return &SegmentError{Index: index, Err: fmt.Errorf("%w: %w", class, err)}
}

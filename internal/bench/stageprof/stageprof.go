// Package stageprof times the stages of a synthesis call separately and
// labels them for pprof.
package stageprof

import (
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"runtime/pprof"
	"time"

	textpkg "github.com/example/go-gtts/internal/text"
	"github.com/example/go-gtts/internal/tts"
)

// Synthesizer exposes each stage of a synthesis call.
type Synthesizer interface {
	Segments(input string, opts tts.Options) ([]textpkg.Segment, error)
	Requests(ctx context.Context, input string, opts tts.Options) iter.Seq2[tts.Request, error]
	Synthesize(ctx context.Context, input string, opts tts.Options) iter.Seq2[tts.Chunk, error]
}

// Timings holds one run's stage durations.
type Timings struct {
	Segment  time.Duration
	Sign     time.Duration
	Fetch    time.Duration
	Total    time.Duration
	Segments int
	Bytes    int
}

// Options configure Profile.
type Options struct {
	Runs       int
	Warmup     int
	CPUProfile io.Writer // nil disables CPU profiling
}

// Report averages the profiled runs.
type Report struct {
	Input  string
	Runs   int
	Warmup int
	Avg    Timings
}

// Profile runs opts.Warmup unrecorded runs then opts.Runs profiled ones.
func Profile(ctx context.Context, s Synthesizer, input string, o tts.Options, opts Options) (Report, error) {
	if opts.Runs < 1 {
		return Report{}, errors.New("runs must be >= 1")
	}

	for i := range opts.Warmup {
		if _, err := RunOnce(ctx, s, input, o); err != nil {
			return Report{}, fmt.Errorf("warmup run %d failed: %w", i+1, err)
		}
	}

	if opts.CPUProfile != nil {
		if err := pprof.StartCPUProfile(opts.CPUProfile); err != nil {
			return Report{}, fmt.Errorf("start cpuprofile: %w", err)
		}
		defer pprof.StopCPUProfile()
	}

	var agg Timings
	for i := range opts.Runs {
		t, err := RunOnce(ctx, s, input, o)
		if err != nil {
			return Report{}, fmt.Errorf("profiled run %d failed: %w", i+1, err)
		}
		agg.Segment += t.Segment
		agg.Sign += t.Sign
		agg.Fetch += t.Fetch
		agg.Total += t.Total
		agg.Segments = t.Segments
		agg.Bytes = t.Bytes
	}

	n := time.Duration(opts.Runs)
	agg.Segment /= n
	agg.Sign /= n
	agg.Fetch /= n
	agg.Total /= n

	return Report{Input: input, Runs: opts.Runs, Warmup: opts.Warmup, Avg: agg}, nil
}

// RunOnce times segmentation, signing and fetching as three passes over
// the same input.
func RunOnce(ctx context.Context, s Synthesizer, input string, o tts.Options) (Timings, error) {
	var out Timings
	startTotal := time.Now()

	var segErr error
	pprof.Do(ctx, pprof.Labels("stage", "segment"), func(context.Context) {
		start := time.Now()
		var segs []textpkg.Segment
		segs, segErr = s.Segments(input, o)
		out.Segments = len(segs)
		out.Segment = time.Since(start)
	})
	if segErr != nil {
		return out, fmt.Errorf("segment: %w", segErr)
	}
	if out.Segments == 0 {
		return out, errors.New("no segments produced")
	}

	var signErr error
	pprof.Do(ctx, pprof.Labels("stage", "sign"), func(ctx context.Context) {
		start := time.Now()
		for _, err := range s.Requests(ctx, input, o) {
			if err != nil {
				signErr = err
				return
			}
		}
		// Requests segments again; report signing alone.
		out.Sign = max(time.Since(start)-out.Segment, 0)
	})
	if signErr != nil {
		return out, fmt.Errorf("sign: %w", signErr)
	}

	var fetchErr error
	pprof.Do(ctx, pprof.Labels("stage", "fetch"), func(ctx context.Context) {
		start := time.Now()
		for chunk, err := range s.Synthesize(ctx, input, o) {
			if err != nil {
				fetchErr = err
				return
			}
			out.Bytes += len(chunk.Audio)
		}
		out.Fetch = time.Since(start)
	})
	if fetchErr != nil {
		return out, fmt.Errorf("fetch: %w", fetchErr)
	}

	out.Total = time.Since(startTotal)
	return out, nil
}

// Write prints the report as key: value lines.
func (r Report) Write(w io.Writer) {
	ms := func(d time.Duration) float64 { return d.Seconds() * 1000 }

	fmt.Fprintf(w, "text: %q\n", r.Input)
	fmt.Fprintf(w, "runs: %d (warmup %d)\n", r.Runs, r.Warmup)
	fmt.Fprintf(w, "segments: %d\n", r.Avg.Segments)
	fmt.Fprintf(w, "mp3_bytes: %d\n", r.Avg.Bytes)
	fmt.Fprintf(w, "avg_segment_ms: %.2f\n", ms(r.Avg.Segment))
	fmt.Fprintf(w, "avg_sign_ms: %.2f\n", ms(r.Avg.Sign))
	fmt.Fprintf(w, "avg_fetch_ms: %.2f\n", ms(r.Avg.Fetch))
	fmt.Fprintf(w, "avg_total_ms: %.2f\n", ms(r.Avg.Total))

	if total := ms(r.Avg.Segment + r.Avg.Sign + r.Avg.Fetch); total > 0 {
		fmt.Fprintf(w, "share_segment_pct: %.2f\n", 100*ms(r.Avg.Segment)/total)
		fmt.Fprintf(w, "share_sign_pct: %.2f\n", 100*ms(r.Avg.Sign)/total)
		fmt.Fprintf(w, "share_fetch_pct: %.2f\n", 100*ms(r.Avg.Fetch)/total)
	}
}

package tts

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/go-gtts/internal/testutil"
	"github.com/example/go-gtts/internal/token"
	"github.com/example/go-gtts/internal/translate"
)

var (
	seedA = token.Seed{A: 406986, B: 2817744745}
	seedB = token.Seed{A: 443338, B: 1211239541}
)

const sixSentences = "One. Two. Three. Four. Five. Six."

func newSynth(t *testing.T, transport Transport, provider token.Provider) *Synthesizer {
	t.Helper()
	if provider == nil {
		provider = token.StaticProvider(seedA)
	}
	s, err := New(transport, token.NewStore(provider, nil))
	require.NoError(t, err)
	return s
}

// countingProvider hands out seedA on the first fetch and seedB afterwards.
func countingProvider(calls *atomic.Int32) token.Provider {
	return token.ProviderFunc(func(context.Context) (token.Seed, error) {
		if calls.Add(1) == 1 {
			return seedA, nil
		}
		return seedB, nil
	})
}

func opts(maxLen, concurrency int) Options {
	o := DefaultOptions()
	o.MaxLen = maxLen
	o.Concurrency = concurrency
	return o
}

func collect(t *testing.T, s *Synthesizer, ctx context.Context, text string, o Options) ([]Chunk, error) {
	t.Helper()
	var chunks []Chunk
	for c, err := range s.Synthesize(ctx, text, o) {
		if err != nil {
			return chunks, err
		}
		chunks = append(chunks, c)
	}
	return chunks, nil
}

func TestSynthesize_OrderedDespiteOutOfOrderCompletion(t *testing.T) {
	var finished []int
	done := make(chan int, 6)
	ft := &testutil.FakeTransport{Respond: func(_ context.Context, req Request) ([]byte, error) {
		// Later segments finish first.
		time.Sleep(time.Duration(7-req.Index) * 15 * time.Millisecond)
		done <- req.Index
		return testutil.FakeAudio(req.Index, req.Text), nil
	}}
	s := newSynth(t, ft, nil)

	chunks, err := collect(t, s, context.Background(), sixSentences, opts(10, 6))
	require.NoError(t, err)
	close(done)
	for i := range done {
		finished = append(finished, i)
	}

	want := []string{"One.", "Two.", "Three.", "Four.", "Five.", "Six."}
	require.Len(t, chunks, len(want))
	for i, c := range chunks {
		assert.Equal(t, i+1, c.Index)
		assert.Equal(t, len(want), c.Total)
		assert.Equal(t, want[i], c.Text)
		assert.Equal(t, testutil.FakeAudio(i+1, want[i]), c.Audio)
	}
	assert.NotEqual(t, []int{1, 2, 3, 4, 5, 6}, finished, "fetches should have completed out of order")
}

func TestSynthesize_ConcurrencyLimit(t *testing.T) {
	var inFlight, peak atomic.Int32
	ft := &testutil.FakeTransport{Respond: func(_ context.Context, req Request) ([]byte, error) {
		n := inFlight.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(10 * time.Millisecond)
		inFlight.Add(-1)
		return testutil.FakeAudio(req.Index, req.Text), nil
	}}
	s := newSynth(t, ft, nil)

	chunks, err := collect(t, s, context.Background(), sixSentences, opts(10, 2))
	require.NoError(t, err)
	assert.Len(t, chunks, 6)
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestSynthesize_RejectedTwiceKeepsEarlierChunks(t *testing.T) {
	var seedCalls atomic.Int32
	var tokens []string
	ft := &testutil.FakeTransport{Respond: func(_ context.Context, req Request) ([]byte, error) {
		if req.Index == 3 {
			tokens = append(tokens, req.Token)
			return nil, &translate.StatusError{Code: 403, Status: "Forbidden"}
		}
		return testutil.FakeAudio(req.Index, req.Text), nil
	}}
	s := newSynth(t, ft, countingProvider(&seedCalls))

	chunks, err := collect(t, s, context.Background(), sixSentences, opts(10, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrEndpointRejected)
	assert.ErrorIs(t, err, translate.ErrUnauthorized)

	var se *SegmentError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 3, se.Index)
	assert.False(t, se.Retryable())

	require.Len(t, chunks, 2)
	assert.Equal(t, "One.", chunks[0].Text)
	assert.Equal(t, "Two.", chunks[1].Text)

	assert.Equal(t, int32(2), seedCalls.Load(), "one load and one refresh")
	require.Len(t, tokens, 2)
	first, _ := token.Sign(seedA, "Three.")
	second, _ := token.Sign(seedB, "Three.")
	assert.Equal(t, []string{first, second}, tokens)
}

func TestSynthesize_ReseedRecovers(t *testing.T) {
	var seedCalls atomic.Int32
	ft := &testutil.FakeTransport{Respond: func(_ context.Context, req Request) ([]byte, error) {
		want, _ := token.Sign(seedB, req.Text)
		if req.Token != want {
			return nil, fmt.Errorf("%w: empty body", translate.ErrMalformedResponse)
		}
		return testutil.FakeAudio(req.Index, req.Text), nil
	}}
	s := newSynth(t, ft, countingProvider(&seedCalls))

	chunks, err := collect(t, s, context.Background(), sixSentences, opts(10, 1))
	require.NoError(t, err)
	assert.Len(t, chunks, 6)
	assert.Equal(t, int32(2), seedCalls.Load())
	// Only the first segment paid for the stale seed.
	assert.Len(t, ft.Requests(), 7)
}

func TestSynthesize_ReseedRecoversConcurrently(t *testing.T) {
	var seedCalls atomic.Int32
	ft := &testutil.FakeTransport{Respond: func(_ context.Context, req Request) ([]byte, error) {
		want, _ := token.Sign(seedB, req.Text)
		if req.Token != want {
			return nil, &translate.StatusError{Code: 403, Status: "Forbidden"}
		}
		return testutil.FakeAudio(req.Index, req.Text), nil
	}}
	s := newSynth(t, ft, countingProvider(&seedCalls))

	chunks, err := collect(t, s, context.Background(), sixSentences, opts(10, 4))
	require.NoError(t, err)
	for i, c := range chunks {
		assert.Equal(t, i+1, c.Index)
	}
	assert.Len(t, chunks, 6)
	assert.GreaterOrEqual(t, seedCalls.Load(), int32(2))
}

func TestSynthesize_TransportErrorIsNotRetried(t *testing.T) {
	var seedCalls atomic.Int32
	ft := &testutil.FakeTransport{Respond: func(_ context.Context, req Request) ([]byte, error) {
		if req.Index == 2 {
			return nil, fmt.Errorf("%w: connection reset", translate.ErrNetwork)
		}
		return testutil.FakeAudio(req.Index, req.Text), nil
	}}
	s := newSynth(t, ft, countingProvider(&seedCalls))

	chunks, err := collect(t, s, context.Background(), sixSentences, opts(10, 1))
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, translate.ErrNetwork)
	assert.NotErrorIs(t, err, ErrEndpointRejected)

	var se *SegmentError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, 2, se.Index)
	assert.True(t, se.Retryable())

	assert.Len(t, chunks, 1)
	assert.Equal(t, int32(1), seedCalls.Load())

	var hits int
	for _, r := range ft.Requests() {
		if r.Index == 2 {
			hits++
		}
	}
	assert.Equal(t, 1, hits)
}

func TestSynthesize_SeedFetchFailure(t *testing.T) {
	boom := errors.New("home page unreachable")
	ft := &testutil.FakeTransport{}
	s := newSynth(t, ft, token.ProviderFunc(func(context.Context) (token.Seed, error) {
		return token.Seed{}, boom
	}))

	_, err := collect(t, s, context.Background(), "Hello.", DefaultOptions())
	assert.ErrorIs(t, err, ErrTransport)
	assert.ErrorIs(t, err, boom)
	assert.Empty(t, ft.Requests())
}

func TestSynthesize_Cancellation(t *testing.T) {
	ft := &testutil.FakeTransport{Respond: func(ctx context.Context, req Request) ([]byte, error) {
		if req.Index == 1 {
			return testutil.FakeAudio(req.Index, req.Text), nil
		}
		<-ctx.Done()
		return nil, ctx.Err()
	}}
	s := newSynth(t, ft, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var chunks []Chunk
	var gotErr error
	for c, err := range s.Synthesize(ctx, sixSentences, opts(10, 3)) {
		if err != nil {
			gotErr = err
			break
		}
		chunks = append(chunks, c)
		cancel()
	}

	require.Len(t, chunks, 1)
	assert.ErrorIs(t, gotErr, context.Canceled)
}

func TestSynthesize_EarlyBreakStopsFetching(t *testing.T) {
	var started atomic.Int32
	ft := &testutil.FakeTransport{Respond: func(ctx context.Context, req Request) ([]byte, error) {
		started.Add(1)
		if req.Index > 1 {
			<-ctx.Done()
			return nil, ctx.Err()
		}
		return testutil.FakeAudio(req.Index, req.Text), nil
	}}
	s := newSynth(t, ft, nil)

	for c, err := range s.Synthesize(context.Background(), sixSentences, opts(10, 2)) {
		require.NoError(t, err)
		assert.Equal(t, 1, c.Index)
		break
	}
	// Returning from the loop waits for in-flight fetches to unwind.
	assert.LessOrEqual(t, started.Load(), int32(6))
}

func TestSynthesize_InvalidInput(t *testing.T) {
	ft := &testutil.FakeTransport{}
	s := newSynth(t, ft, nil)

	badLang := DefaultOptions()
	badLang.Lang = "xx"

	tests := []struct {
		name string
		text string
		opts Options
	}{
		{"empty", "", DefaultOptions()},
		{"whitespace", " \t\n ", DefaultOptions()},
		{"negative max length", "Hello.", opts(-1, 1)},
		{"unsupported language", "Hello.", badLang},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := collect(t, s, context.Background(), tt.text, tt.opts)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	assert.Empty(t, ft.Requests())
}

func TestSynthesize_LanguageHandling(t *testing.T) {
	ft := &testutil.FakeTransport{}
	s := newSynth(t, ft, nil)

	o := DefaultOptions()
	o.Lang = "EN-gb"
	_, err := collect(t, s, context.Background(), "Hello.", o)
	require.NoError(t, err)

	o = DefaultOptions()
	o.Lang = "xx"
	o.LangCheck = false
	o.Slow = true
	_, err = collect(t, s, context.Background(), "Hello.", o)
	require.NoError(t, err)

	reqs := ft.Requests()
	require.Len(t, reqs, 2)
	assert.Equal(t, "en", reqs[0].Lang)
	assert.False(t, reqs[0].Slow)
	assert.Equal(t, "xx", reqs[1].Lang)
	assert.True(t, reqs[1].Slow)
}

func TestRequests_SignedAndRestartable(t *testing.T) {
	s := newSynth(t, &testutil.FakeTransport{}, nil)
	seq := s.Requests(context.Background(), sixSentences, opts(10, 1))

	var first, second []Request
	for r, err := range seq {
		require.NoError(t, err)
		first = append(first, r)
	}
	for r, err := range seq {
		require.NoError(t, err)
		second = append(second, r)
	}

	require.Len(t, first, 6)
	assert.Equal(t, first, second)
	for i, r := range first {
		want, err := token.Sign(seedA, r.Text)
		require.NoError(t, err)
		assert.Equal(t, want, r.Token)
		assert.Equal(t, i+1, r.Index)
		assert.Equal(t, 6, r.Total)
		assert.Equal(t, "en", r.Lang)
	}
}

func TestRequests_InvalidInput(t *testing.T) {
	s := newSynth(t, &testutil.FakeTransport{}, nil)

	var errs []error
	for _, err := range s.Requests(context.Background(), "", DefaultOptions()) {
		errs = append(errs, err)
	}
	require.Len(t, errs, 1)
	assert.ErrorIs(t, errs[0], ErrInvalidInput)
}

func TestSegments_KeepsAbbreviationsAndDecimals(t *testing.T) {
	s := newSynth(t, &testutil.FakeTransport{}, nil)

	segs, err := s.Segments("Dr. Smith has 3.14 dollars.", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, segs, 1)
	assert.Contains(t, segs[0].Text, "3.14")
}

func TestWriteTo_ConcatenatesInOrder(t *testing.T) {
	s := newSynth(t, &testutil.FakeTransport{}, nil)

	var buf bytes.Buffer
	n, err := s.WriteTo(context.Background(), &buf, sixSentences, opts(10, 3))
	require.NoError(t, err)

	var want []byte
	for i, text := range []string{"One.", "Two.", "Three.", "Four.", "Five.", "Six."} {
		want = append(want, testutil.FakeAudio(i+1, text)...)
	}
	assert.Equal(t, want, buf.Bytes())
	assert.Equal(t, int64(len(want)), n)
}

func TestSave(t *testing.T) {
	dir := t.TempDir()
	s := newSynth(t, &testutil.FakeTransport{}, nil)

	path := filepath.Join(dir, "out.mp3")
	require.NoError(t, s.Save(context.Background(), path, "Hello.", DefaultOptions()))
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	testutil.AssertMP3(t, data)

	failing := newSynth(t, &testutil.FakeTransport{Respond: func(context.Context, Request) ([]byte, error) {
		return nil, translate.ErrNetwork
	}}, nil)
	bad := filepath.Join(dir, "bad.mp3")
	require.Error(t, failing.Save(context.Background(), bad, "Hello.", DefaultOptions()))
	_, err = os.Stat(bad)
	assert.True(t, os.IsNotExist(err))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files are cleaned up")
}

func TestSynthesize_AgainstFakeEndpoint(t *testing.T) {
	ep := testutil.NewFakeEndpoint(t, seedA)
	client := translate.NewClient(translate.WithBaseURL(ep.URL))
	s, err := New(client, token.NewStore(client, nil))
	require.NoError(t, err)

	chunks, err := collect(t, s, context.Background(), sixSentences, opts(10, 3))
	require.NoError(t, err)
	require.Len(t, chunks, 6)

	// The endpoint moves on; the next call reseeds from the home page.
	ep.Rotate(seedB)
	ep.Publish()
	chunks, err = collect(t, s, context.Background(), "Hello there.", DefaultOptions())
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, testutil.FakeAudio(1, "Hello there."), chunks[0].Audio)

	_, seedCalls := ep.Calls()
	assert.Equal(t, 2, seedCalls)
}

func TestNew_RequiresCollaborators(t *testing.T) {
	_, err := New(nil, token.NewStore(token.StaticProvider(seedA), nil))
	assert.Error(t, err)
	_, err = New(&testutil.FakeTransport{}, nil)
	assert.Error(t, err)
}

func TestRegisterMetrics_Idempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	require.NoError(t, RegisterMetrics(reg))
	require.NoError(t, RegisterMetrics(reg))
}

// ---------------------------------------------------------------------------
// Segment outcome metrics
// ---------------------------------------------------------------------------

func counterValue(t *testing.T, c prometheus.Counter) float64 {
	t.Helper()
	var m dto.Metric
	require.NoError(t, c.Write(&m))
	return m.GetCounter().GetValue()
}

// outcomeCounts snapshots segmentsTotal per status plus reseedsTotal.
func outcomeCounts(t *testing.T) map[string]float64 {
	t.Helper()
	out := map[string]float64{"reseeds": counterValue(t, reseedsTotal)}
	for _, status := range []string{"ok", "rejected", "transport", "canceled", "invalid"} {
		out[status] = counterValue(t, segmentsTotal.WithLabelValues(status))
	}
	return out
}

func outcomeDelta(t *testing.T, before map[string]float64) map[string]float64 {
	t.Helper()
	delta := map[string]float64{}
	for k, v := range outcomeCounts(t) {
		if d := v - before[k]; d != 0 {
			delta[k] = d
		}
	}
	return delta
}

func TestSegmentsTotal_OneOutcomePerSegment(t *testing.T) {
	t.Run("reseeded segments count once as ok", func(t *testing.T) {
		var seedCalls atomic.Int32
		ft := &testutil.FakeTransport{Respond: func(_ context.Context, req Request) ([]byte, error) {
			want, _ := token.Sign(seedB, req.Text)
			if req.Token != want {
				return nil, &translate.StatusError{Code: 403, Status: "Forbidden"}
			}
			return testutil.FakeAudio(req.Index, req.Text), nil
		}}
		s := newSynth(t, ft, countingProvider(&seedCalls))

		before := outcomeCounts(t)
		_, err := collect(t, s, context.Background(), sixSentences, opts(10, 1))
		require.NoError(t, err)

		assert.Len(t, ft.Requests(), 7)
		assert.Equal(t, map[string]float64{"ok": 6, "reseeds": 1}, outcomeDelta(t, before))
	})

	t.Run("rejected twice", func(t *testing.T) {
		ft := &testutil.FakeTransport{Respond: func(context.Context, Request) ([]byte, error) {
			return nil, &translate.StatusError{Code: 403, Status: "Forbidden"}
		}}
		s := newSynth(t, ft, nil)

		before := outcomeCounts(t)
		_, err := collect(t, s, context.Background(), "Three.", opts(10, 1))
		require.ErrorIs(t, err, ErrEndpointRejected)

		assert.Len(t, ft.Requests(), 2)
		assert.Equal(t, map[string]float64{"rejected": 1, "reseeds": 1}, outcomeDelta(t, before))
	})

	t.Run("transport failure", func(t *testing.T) {
		ft := &testutil.FakeTransport{Respond: func(context.Context, Request) ([]byte, error) {
			return nil, translate.ErrNetwork
		}}
		s := newSynth(t, ft, nil)

		before := outcomeCounts(t)
		_, err := collect(t, s, context.Background(), "Three.", opts(10, 1))
		require.ErrorIs(t, err, ErrTransport)

		assert.Equal(t, map[string]float64{"transport": 1}, outcomeDelta(t, before))
	})
}

func TestOutcome(t *testing.T) {
	tests := []struct {
		err  error
		want string
	}{
		{nil, "ok"},
		{&SegmentError{Index: 1, Err: fmt.Errorf("%w: %w", ErrEndpointRejected, translate.ErrUnauthorized)}, "rejected"},
		{&SegmentError{Index: 1, Err: fmt.Errorf("%w: %w", ErrTransport, context.DeadlineExceeded)}, "transport"},
		{context.Canceled, "canceled"},
		{context.DeadlineExceeded, "canceled"},
		{token.ErrEmptyText, "invalid"},
	}

	for _, tt := range tests {
		assert.Equal(t, tt.want, outcome(tt.err), "outcome(%v)", tt.err)
	}
}

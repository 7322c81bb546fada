package bench

import (
	"context"
	"iter"
	"time"

	"github.com/example/go-gtts/internal/tts"
)

// Synthesizer streams ordered audio chunks for a text.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string, opts tts.Options) iter.Seq2[tts.Chunk, error]
}

// Measure runs one synthesis and records its timings. Run index 0 is
// marked cold. The audio is discarded.
func Measure(ctx context.Context, s Synthesizer, text string, opts tts.Options, index int) (RunResult, error) {
	res := RunResult{Index: index, Cold: index == 0}

	var audio []byte
	start := time.Now()
	for chunk, err := range s.Synthesize(ctx, text, opts) {
		if err != nil {
			res.Duration = time.Since(start)
			return res, err
		}
		if res.Segments == 0 {
			res.FirstChunk = time.Since(start)
		}
		res.Segments++
		audio = append(audio, chunk.Audio...)
	}
	res.Duration = time.Since(start)
	res.Bytes = len(audio)

	// Unparseable audio still counts; it just has no RTF.
	if d, err := MP3Duration(audio); err == nil {
		res.AudioDuration = d
		res.RTF = CalcRTF(res.Duration, d)
	}
	return res, nil
}

// MeanRTF averages the RTF of runs that have one.
func MeanRTF(runs []RunResult) float64 {
	var (
		sum float64
		n   int
	)
	for _, r := range runs {
		if r.AudioDuration > 0 {
			sum += r.RTF
			n++
		}
	}
	if n == 0 {
		return 0
	}
	return sum / float64(n)
}

package tts

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "gtts"

var (
	// segmentsTotal counts segments by final outcome. A segment that
	// succeeds after a reseed counts once as ok.
	segmentsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "segments_total",
			Help:      "Total number of segments by final outcome",
		},
		[]string{"status"}, // status: ok, rejected, transport, canceled, invalid
	)

	// reseedsTotal counts seed refreshes triggered by a rejected token.
	reseedsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "reseeds_total",
			Help:      "Total number of seed refreshes after a rejected token",
		},
	)

	// fetchDuration is a histogram of single segment fetch latency.
	fetchDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "segment_fetch_duration_seconds",
			Help:      "Duration of translate_tts calls in seconds",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)

	// audioBytesTotal counts MP3 bytes received.
	audioBytesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "audio_bytes_total",
			Help:      "Total MP3 bytes received from the endpoint",
		},
	)

	allMetrics = []prometheus.Collector{
		segmentsTotal,
		reseedsTotal,
		fetchDuration,
		audioBytesTotal,
	}
)

// RegisterMetrics adds the synthesizer collectors to reg. Registering twice
// is not an error.
func RegisterMetrics(reg prometheus.Registerer) error {
	for _, c := range allMetrics {
		if err := reg.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if errors.As(err, &are) {
				continue
			}
			return err
		}
	}
	return nil
}

package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/go-gtts/internal/bench"
	"github.com/example/go-gtts/internal/bench/stageprof"
	"github.com/example/go-gtts/internal/tts"
)

func newBenchCmd() *cobra.Command {
	var (
		text         string
		runs         int
		warmup       int
		format       string
		rtfThreshold float64
		stages       bool
		cpuprofile   string
	)

	cmd := &cobra.Command{
		Use:   "bench",
		Short: "Benchmark synthesis latency and realtime factor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			if strings.TrimSpace(text) == "" {
				return fmt.Errorf("--text is required for bench")
			}
			if runs < 1 {
				return fmt.Errorf("--runs must be at least 1")
			}
			if format != "table" && format != "json" {
				return fmt.Errorf("--format must be 'table' or 'json'")
			}

			synth, err := tts.FromConfig(cfg, nil, slog.Default())
			if err != nil {
				return err
			}
			opts := tts.OptionsFromConfig(cfg.TTS)
			out := cmd.OutOrStdout()

			if stages {
				return runStageProfile(cmd.Context(), synth, text, opts, stageprof.Options{Runs: runs, Warmup: warmup}, cpuprofile, out)
			}

			results, err := runBench(cmd.Context(), synth, text, opts, runs)
			if err != nil {
				return mapSynthError(err, cfg)
			}

			durations := make([]time.Duration, len(results))
			for i, r := range results {
				durations[i] = r.Duration
			}
			stats := bench.ComputeStats(durations)

			switch format {
			case "json":
				bench.FormatJSON(results, stats, out)
			default:
				bench.FormatTable(results, stats, out)
			}

			return bench.CheckRTFThreshold(bench.MeanRTF(results), rtfThreshold)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to synthesize for each run (required)")
	cmd.Flags().IntVar(&runs, "runs", 5, "Number of synthesis runs")
	cmd.Flags().IntVar(&warmup, "warmup", 1, "Unrecorded warmup runs before --stages profiling")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json")
	cmd.Flags().Float64Var(&rtfThreshold, "rtf-threshold", 0, "Exit non-zero if mean RTF exceeds this value (0 = disabled)")
	cmd.Flags().BoolVar(&stages, "stages", false, "Time segmentation, signing and fetching separately")
	cmd.Flags().StringVar(&cpuprofile, "cpuprofile", "", "Write a CPU profile of the --stages runs to this file")

	return cmd
}

func runBench(ctx context.Context, synth bench.Synthesizer, text string, opts tts.Options, runs int) ([]bench.RunResult, error) {
	results := make([]bench.RunResult, 0, runs)

	for i := range runs {
		res, err := bench.Measure(ctx, synth, text, opts, i)
		if err != nil {
			return nil, fmt.Errorf("run %d failed: %w", i+1, err)
		}
		if res.AudioDuration == 0 {
			// Non-fatal: the run is kept without an RTF.
			slog.Warn("could not parse MP3 duration", slog.Int("run", i+1), slog.Int("bytes", res.Bytes))
		}
		results = append(results, res)
	}

	return results, nil
}

func runStageProfile(ctx context.Context, synth stageprof.Synthesizer, text string, opts tts.Options, popts stageprof.Options, cpuprofile string, out io.Writer) error {
	if cpuprofile != "" {
		f, err := os.Create(cpuprofile)
		if err != nil {
			return fmt.Errorf("create cpuprofile: %w", err)
		}
		defer f.Close()
		popts.CPUProfile = f
	}

	rep, err := stageprof.Profile(ctx, synth, text, opts, popts)
	if err != nil {
		return err
	}
	rep.Write(out)
	return nil
}

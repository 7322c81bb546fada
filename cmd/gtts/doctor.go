package main

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/go-gtts/internal/doctor"
	"github.com/example/go-gtts/internal/lang"
	"github.com/example/go-gtts/internal/tts"
)

// probeText is spoken by doctor --probe.
const probeText = "Hello."

func newDoctorCmd() *cobra.Command {
	var probe bool

	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run endpoint, token and configuration checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			client, err := tts.NewClient(cfg.Endpoint, slog.Default())
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "endpoint: %s\n", client.BaseURL())

			dcfg := doctor.Config{
				FetchSeed:  client.FetchSeed,
				StaticSeed: cfg.Endpoint.Seed,
				Lang:       cfg.TTS.Lang,
				Langs:      lang.Default(),
				TablesPath: cfg.Text.TablesPath,
			}
			if probe {
				synth, err := tts.FromConfig(cfg, client, slog.Default())
				if err != nil {
					return err
				}
				opts := tts.OptionsFromConfig(cfg.TTS)
				dcfg.Probe = func(ctx context.Context) ([]byte, error) {
					var buf bytes.Buffer
					_, err := synth.WriteTo(ctx, &buf, probeText, opts)
					return buf.Bytes(), err
				}
			}

			result := doctor.Run(cmd.Context(), dcfg, out)

			if result.Failed() {
				for _, f := range result.Failures() {
					// #nosec G705 -- Writes plain diagnostic text to stderr for CLI output, not HTML rendering.
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	cmd.Flags().BoolVar(&probe, "probe", false, "Also synthesize a short phrase against the endpoint")

	return cmd
}

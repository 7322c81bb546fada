package main

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/example/go-gtts/internal/translate"
	"github.com/example/go-gtts/internal/tts"
)

func newSegmentsCmd() *cobra.Command {
	var (
		text   string
		file   string
		format string
	)

	cmd := &cobra.Command{
		Use:   "segments [text...]",
		Short: "Print the signed requests text would be sent as",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if format != "table" && format != "json" && format != "url" {
				return fmt.Errorf("--format must be 'table', 'json' or 'url'")
			}

			inputText, err := readSynthText(args, text, file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			synth, err := tts.FromConfig(cfg, nil, slog.Default())
			if err != nil {
				return err
			}

			var reqs []tts.Request
			for req, err := range synth.Requests(cmd.Context(), inputText, tts.OptionsFromConfig(cfg.TTS)) {
				if err != nil {
					return mapSynthError(err, cfg)
				}
				reqs = append(reqs, req)
			}

			client, err := tts.NewClient(cfg.Endpoint, slog.Default())
			if err != nil {
				return err
			}
			return writeSegments(cmd.OutOrStdout(), format, client, reqs)
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to segment")
	cmd.Flags().StringVar(&file, "file", "", "Read text from this file ('-' for stdin)")
	cmd.Flags().StringVar(&format, "format", "table", "Output format: table|json|url")

	return cmd
}

func writeSegments(w io.Writer, format string, client *translate.Client, reqs []translate.Request) error {
	switch format {
	case "json":
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(reqs)
	case "url":
		for _, r := range reqs {
			if _, err := fmt.Fprintln(w, client.URL(r)); err != nil {
				return err
			}
		}
		return nil
	default:
		for _, r := range reqs {
			if _, err := fmt.Fprintf(w, "%d/%d\t%s\t%q\n", r.Index, r.Total, r.Token, r.Text); err != nil {
				return err
			}
		}
		return nil
	}
}

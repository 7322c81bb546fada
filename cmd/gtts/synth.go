package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-gtts/internal/config"
	"github.com/example/go-gtts/internal/translate"
	"github.com/example/go-gtts/internal/tts"
)

func newSynthCmd() *cobra.Command {
	var text string
	var file string
	var out string

	cmd := &cobra.Command{
		Use:   "synth [text...]",
		Short: "Synthesize text to MP3",
		Long: "Synthesize text to MP3. Text comes from --text, the arguments, --file\n" +
			"or stdin, in that order. Long text is split into segments that are\n" +
			"fetched separately and written back to back.",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			inputText, err := readSynthText(args, text, file, cmd.InOrStdin())
			if err != nil {
				return err
			}

			synth, err := tts.FromConfig(cfg, nil, slog.Default())
			if err != nil {
				return err
			}

			err = writeSynthOutput(cmd.Context(), synth, out, inputText, tts.OptionsFromConfig(cfg.TTS), cmd.OutOrStdout())
			if err != nil {
				return mapSynthError(err, cfg)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&text, "text", "", "Text to synthesize")
	cmd.Flags().StringVar(&file, "file", "", "Read text from this file ('-' for stdin)")
	cmd.Flags().StringVar(&out, "out", "out.mp3", "Output MP3 path ('-' for stdout)")

	return cmd
}

// synthWriter is the part of *tts.Synthesizer the synth command uses.
type synthWriter interface {
	WriteTo(ctx context.Context, w io.Writer, input string, opts tts.Options) (int64, error)
	Save(ctx context.Context, path, input string, opts tts.Options) error
}

func writeSynthOutput(ctx context.Context, synth synthWriter, outPath, input string, opts tts.Options, stdout io.Writer) error {
	if outPath == "-" {
		if stdout == nil {
			return fmt.Errorf("stdout writer is nil")
		}
		_, err := synth.WriteTo(ctx, stdout, input, opts)
		return err
	}
	return synth.Save(ctx, outPath, input, opts)
}

func readSynthText(args []string, text, file string, stdin io.Reader) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}
	if joined := strings.Join(args, " "); strings.TrimSpace(joined) != "" {
		return joined, nil
	}

	var (
		b   []byte
		err error
	)
	switch file {
	case "", "-":
		b, err = io.ReadAll(stdin)
		if err != nil {
			return "", fmt.Errorf("read stdin: %w", err)
		}
	default:
		b, err = os.ReadFile(file)
		if err != nil {
			return "", fmt.Errorf("read --file: %w", err)
		}
	}

	input := strings.TrimSpace(string(b))
	if input == "" {
		return "", fmt.Errorf("either provide text, --text, --file or pipe text on stdin")
	}
	return input, nil
}

func mapSynthError(err error, cfg config.Config) error {
	if errors.Is(err, tts.ErrInvalidInput) {
		return fmt.Errorf("synth failed: %w", err)
	}

	if errors.Is(err, tts.ErrEndpointRejected) {
		return fmt.Errorf("synth failed: endpoint rejected the token twice; the seed format may have changed or set --seed: %w", err)
	}

	var statusErr *translate.StatusError
	if errors.As(err, &statusErr) && statusErr.Code == 404 && cfg.Endpoint.TLD != "com" {
		return fmt.Errorf("synth failed: %w (tld %q may not serve this language)", err, cfg.Endpoint.TLD)
	}

	var segErr *tts.SegmentError
	if errors.As(err, &segErr) && segErr.Retryable() {
		return fmt.Errorf("synth failed: temporary endpoint failure, try again later: %w", err)
	}

	if errors.Is(err, context.Canceled) {
		return fmt.Errorf("synth cancelled: %w", err)
	}

	return err
}

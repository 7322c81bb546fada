package tts

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/example/go-gtts/internal/config"
	"github.com/example/go-gtts/internal/text"
	"github.com/example/go-gtts/internal/token"
	"github.com/example/go-gtts/internal/translate"
)

// NewClient builds the endpoint client described by cfg.
func NewClient(cfg config.EndpointConfig, log *slog.Logger) (*translate.Client, error) {
	tld, err := config.NormalizeTLD(cfg.TLD)
	if err != nil {
		return nil, err
	}
	return translate.NewClient(
		translate.WithTLD(tld),
		translate.WithBaseURL(cfg.BaseURL),
		translate.WithUserAgent(cfg.UserAgent),
		translate.WithTimeout(time.Duration(cfg.Timeout)*time.Second),
		translate.WithRateLimit(cfg.RateLimit, cfg.Burst),
		translate.WithLogger(log),
	), nil
}

// SeedProvider returns the configured fixed seed, or client when none is set.
func SeedProvider(cfg config.EndpointConfig, client token.Provider) (token.Provider, error) {
	if cfg.Seed == "" {
		return client, nil
	}
	seed, err := token.ParseSeed(cfg.Seed)
	if err != nil {
		return nil, fmt.Errorf("endpoint.seed: %w", err)
	}
	return token.StaticProvider(seed), nil
}

// NewPipeline builds the default rules followed by the configured
// substitutions.
func NewPipeline(cfg config.TextConfig, log *slog.Logger) (*text.Pipeline, error) {
	subs, err := text.SubstitutionRules(cfg.Substitutions)
	if err != nil {
		return nil, err
	}
	return text.NewPipeline(append(text.DefaultRules(), subs...)...).WithLogger(log), nil
}

// NewSegmenter builds a segmenter from the configured tables and levels.
func NewSegmenter(cfg config.TextConfig) (*text.Segmenter, error) {
	tables := text.DefaultTables()
	if cfg.TablesPath != "" {
		loaded, err := text.LoadTables(cfg.TablesPath)
		if err != nil {
			return nil, err
		}
		tables = loaded
	}

	opts := []text.SegmenterOption{text.WithPackSentences(cfg.PackSentences)}
	if len(cfg.Levels) > 0 {
		levels, err := cfg.Boundaries()
		if err != nil {
			return nil, err
		}
		opts = append(opts, text.WithLevels(levels...))
	}
	return text.NewSegmenter(tables, opts...)
}

// FromConfig wires a Synthesizer for cfg against transport. A nil
// transport means the live endpoint.
func FromConfig(cfg config.Config, transport Transport, log *slog.Logger) (*Synthesizer, error) {
	if log == nil {
		log = slog.Default()
	}

	client, err := NewClient(cfg.Endpoint, log)
	if err != nil {
		return nil, err
	}
	if transport == nil {
		transport = client
	}
	provider, err := SeedProvider(cfg.Endpoint, client)
	if err != nil {
		return nil, err
	}

	pipeline, err := NewPipeline(cfg.Text, log)
	if err != nil {
		return nil, err
	}
	segmenter, err := NewSegmenter(cfg.Text)
	if err != nil {
		return nil, err
	}

	return New(transport, token.NewStore(provider, log),
		WithPipeline(pipeline),
		WithSegmenter(segmenter),
		WithLogger(log),
	)
}

// OptionsFromConfig maps the tts config section onto call options.
func OptionsFromConfig(c config.TTSConfig) Options {
	return Options{
		Lang:        c.Lang,
		Slow:        c.Slow,
		MaxLen:      c.MaxChars,
		Concurrency: c.Concurrency,
		LangCheck:   c.LangCheck,
	}
}

package config

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/example/go-gtts/internal/text"
	"github.com/example/go-gtts/internal/token"
)

var tldPattern = regexp.MustCompile(`^[a-z]{2,}(\.[a-z]{2,})?$`)

// NormalizeTLD lower-cases raw and strips a leading dot. An empty value
// means "com".
func NormalizeTLD(raw string) (string, error) {
	tld := strings.TrimPrefix(strings.ToLower(strings.TrimSpace(raw)), ".")
	if tld == "" {
		return "com", nil
	}
	if !tldPattern.MatchString(tld) {
		return "", fmt.Errorf("invalid tld %q (want e.g. com|co.uk|com.au)", raw)
	}
	return tld, nil
}

// Boundaries parses the configured segmentation levels.
func (c TextConfig) Boundaries() ([]text.Boundary, error) {
	out := make([]text.Boundary, 0, len(c.Levels))
	for _, l := range c.Levels {
		b, err := text.ParseBoundary(l)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	return out, nil
}

// Validate reports the first setting that cannot be used.
func (c Config) Validate() error {
	switch {
	case c.Server.Workers < 0:
		return fmt.Errorf("server.workers must be >= 0, got %d", c.Server.Workers)
	case c.Server.MaxTextBytes <= 0:
		return fmt.Errorf("server.max_text_bytes must be > 0, got %d", c.Server.MaxTextBytes)
	case c.TTS.MaxChars <= 0:
		return fmt.Errorf("tts.max_chars must be > 0, got %d", c.TTS.MaxChars)
	case c.TTS.Concurrency < 1:
		return fmt.Errorf("tts.concurrency must be >= 1, got %d", c.TTS.Concurrency)
	case c.Endpoint.RateLimit < 0:
		return fmt.Errorf("endpoint.rate_limit must be >= 0, got %g", c.Endpoint.RateLimit)
	case c.Endpoint.Timeout < 0:
		return fmt.Errorf("endpoint.timeout must be >= 0, got %d", c.Endpoint.Timeout)
	}
	if _, err := NormalizeTLD(c.Endpoint.TLD); err != nil {
		return err
	}
	if c.Endpoint.Seed != "" {
		if _, err := token.ParseSeed(c.Endpoint.Seed); err != nil {
			return fmt.Errorf("endpoint.seed: %w", err)
		}
	}
	if _, err := c.Text.Boundaries(); err != nil {
		return fmt.Errorf("text.levels: %w", err)
	}
	return nil
}

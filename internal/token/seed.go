package token

import (
	"context"
	"fmt"
	"strconv"
	"strings"
)

// Seed is the rotating numeric pair ("TKK") the signature is derived from.
type Seed struct {
	A int64
	B int64
}

// String formats the seed as "A.B", the form the endpoint publishes.
func (s Seed) String() string {
	return strconv.FormatInt(s.A, 10) + "." + strconv.FormatInt(s.B, 10)
}

// IsZero reports whether s is the zero seed.
func (s Seed) IsZero() bool { return s == Seed{} }

// ParseSeed parses "A.B". Either half may be negative.
func ParseSeed(raw string) (Seed, error) {
	first, second, ok := strings.Cut(strings.TrimSpace(raw), ".")
	if !ok {
		return Seed{}, fmt.Errorf("parse seed %q: expected A.B", raw)
	}
	a, err := strconv.ParseInt(first, 10, 64)
	if err != nil {
		return Seed{}, fmt.Errorf("parse seed %q: %w", raw, err)
	}
	b, err := strconv.ParseInt(second, 10, 64)
	if err != nil {
		return Seed{}, fmt.Errorf("parse seed %q: %w", raw, err)
	}
	return Seed{A: a, B: b}, nil
}

// Provider fetches a fresh seed from wherever the endpoint publishes it.
type Provider interface {
	FetchSeed(ctx context.Context) (Seed, error)
}

// ProviderFunc adapts a function to Provider.
type ProviderFunc func(ctx context.Context) (Seed, error)

func (f ProviderFunc) FetchSeed(ctx context.Context) (Seed, error) { return f(ctx) }

// StaticProvider always returns the same seed.
type StaticProvider Seed

func (p StaticProvider) FetchSeed(context.Context) (Seed, error) { return Seed(p), nil }

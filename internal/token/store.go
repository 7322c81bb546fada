package token

import (
	"context"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"
)

// Store owns the process-wide seed. Reads are lock-free; a refresh swaps in
// a whole new value so readers never see half a pair. Concurrent refreshes
// share one fetch.
type Store struct {
	provider Provider
	current  atomic.Pointer[Seed]
	group    singleflight.Group
	log      *slog.Logger
}

// NewStore returns a store that loads seeds from provider on first use.
func NewStore(provider Provider, log *slog.Logger) *Store {
	if log == nil {
		log = slog.Default()
	}
	return &Store{provider: provider, log: log}
}

// Current returns the seed in use, fetching one if none is loaded yet.
func (s *Store) Current(ctx context.Context) (Seed, error) {
	if p := s.current.Load(); p != nil {
		return *p, nil
	}
	return s.fetch(ctx, "load")
}

// Refresh discards the current seed and fetches a new one.
func (s *Store) Refresh(ctx context.Context) (Seed, error) {
	return s.fetch(ctx, "refresh")
}

// Set replaces the current seed.
func (s *Store) Set(seed Seed) {
	s.current.Store(&seed)
}

func (s *Store) fetch(ctx context.Context, reason string) (Seed, error) {
	v, err, shared := s.group.Do(reason, func() (any, error) {
		seed, err := s.provider.FetchSeed(ctx)
		if err != nil {
			return Seed{}, err
		}
		s.current.Store(&seed)
		return seed, nil
	})
	if err != nil {
		return Seed{}, fmt.Errorf("%s token seed: %w", reason, err)
	}

	seed := v.(Seed)
	s.log.DebugContext(ctx, "token seed updated",
		slog.String("reason", reason),
		slog.String("seed", seed.String()),
		slog.Bool("shared", shared),
	)
	return seed, nil
}

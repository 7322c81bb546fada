package translate

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strconv"

	"github.com/example/go-gtts/internal/token"
)

var (
	tkkExpr     = regexp.MustCompile(`(tkk:.*?),`)
	tkkLiteral  = regexp.MustCompile(`\d{6}\.[0-9]+`)
	tkkPartA    = regexp.MustCompile(`a\\+x3d(-?\d+);`)
	tkkPartB    = regexp.MustCompile(`b\\+x3d(-?\d+);`)
	maxHomePage = int64(4 << 20)
)

// FetchSeed scrapes the current token seed from the translate home page.
func (c *Client) FetchSeed(ctx context.Context) (token.Seed, error) {
	resp, err := c.get(ctx, c.baseURL+"/")
	if err != nil {
		return token.Seed{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))
		return token.Seed{}, &StatusError{Code: resp.StatusCode, Status: http.StatusText(resp.StatusCode)}
	}

	page, err := io.ReadAll(io.LimitReader(resp.Body, maxHomePage))
	if err != nil {
		return token.Seed{}, fmt.Errorf("%w: read home page: %w", ErrNetwork, err)
	}

	seed, err := parseSeed(string(page), c.now().Unix())
	if err != nil {
		return token.Seed{}, err
	}
	c.log.DebugContext(ctx, "scraped token seed", slog.String("seed", seed.String()))
	return seed, nil
}

// parseSeed extracts the seed from a home page. Pages that only carry the
// obfuscated a/b form get a seed built from the hours since the epoch.
func parseSeed(page string, unix int64) (token.Seed, error) {
	m := tkkExpr.FindStringSubmatch(page)
	if m == nil {
		return token.Seed{}, ErrSeedNotFound
	}
	expr := m[1]

	if lit := tkkLiteral.FindString(expr); lit != "" {
		return token.ParseSeed(lit)
	}

	a := tkkPartA.FindStringSubmatch(expr)
	b := tkkPartB.FindStringSubmatch(expr)
	if a == nil || b == nil {
		return token.Seed{}, fmt.Errorf("%w: unrecognised tkk expression", ErrSeedNotFound)
	}
	av, err := strconv.ParseInt(a[1], 10, 64)
	if err != nil {
		return token.Seed{}, fmt.Errorf("%w: %w", ErrSeedNotFound, err)
	}
	bv, err := strconv.ParseInt(b[1], 10, 64)
	if err != nil {
		return token.Seed{}, fmt.Errorf("%w: %w", ErrSeedNotFound, err)
	}
	return token.Seed{A: unix / 3600, B: av + bv}, nil
}

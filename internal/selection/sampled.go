package selection

import (
	"context"
	"math/rand/v2"
	"strings"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/logger"
)

// SampledSearchStrategy runs a wide smart search and picks n of the results
// at random, so a theme that repeats does not show the same top hits.
type SampledSearchStrategy struct {
	source     AssetSource
	filters    *FilterBuilder
	maxResults int
	shuffle    func(n int, swap func(i, j int))
}

func NewSampledSearchStrategy(source AssetSource, filters *FilterBuilder, maxResults int) *SampledSearchStrategy {
	if maxResults <= 0 {
		maxResults = config.DefaultMaxSearchResults
	}
	return &SampledSearchStrategy{source: source, filters: filters, maxResults: maxResults, shuffle: rand.Shuffle}
}

func (s *SampledSearchStrategy) Mode() string { return config.ModeSampledSearch }

func (s *SampledSearchStrategy) Select(ctx context.Context, theme *domain.Theme, n int) ([]domain.AssetDescriptor, error) {
	if n <= 0 || theme == nil || strings.TrimSpace(theme.Text) == "" {
		return nil, nil
	}

	f, err := s.filters.Build(ctx)
	if err != nil {
		return nil, err
	}

	assets, err := s.source.SearchSmart(ctx, theme.Text, max(s.maxResults, n), f)
	if err != nil {
		return nil, err
	}

	pool := describeAll(assets, len(assets))
	s.shuffle(len(pool), func(i, j int) { pool[i], pool[j] = pool[j], pool[i] })
	if len(pool) > n {
		pool = pool[:n]
	}

	logger.With(logger.Fields{logger.FieldMode: s.Mode()}).WithCount(len(pool)).
		Debug(ctx, "Sampled %d of %d results for %q", len(pool), len(assets), theme.Text)
	return pool, nil
}

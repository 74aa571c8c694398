package selection

import (
	"context"
	"strings"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/logger"
)

// SearchStrategy uses the theme text as a smart-search query and keeps the
// backend's ranking.
type SearchStrategy struct {
	source  AssetSource
	filters *FilterBuilder
}

func NewSearchStrategy(source AssetSource, filters *FilterBuilder) *SearchStrategy {
	return &SearchStrategy{source: source, filters: filters}
}

func (s *SearchStrategy) Mode() string { return config.ModeSearch }

func (s *SearchStrategy) Select(ctx context.Context, theme *domain.Theme, n int) ([]domain.AssetDescriptor, error) {
	if n <= 0 || theme == nil || strings.TrimSpace(theme.Text) == "" {
		return nil, nil
	}

	f, err := s.filters.Build(ctx)
	if err != nil {
		return nil, err
	}

	assets, err := s.source.SearchSmart(ctx, theme.Text, n, f)
	if err != nil {
		return nil, err
	}

	out := describeAll(assets, n)
	if len(out) < n {
		logger.With(logger.Fields{logger.FieldMode: s.Mode()}).WithCount(len(out)).
			Info(ctx, "Search for %q found %d of %d assets", theme.Text, len(out), n)
	}
	return out, nil
}

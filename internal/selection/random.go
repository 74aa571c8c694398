package selection

import (
	"context"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
)

// RandomStrategy picks random images, optionally filtered. It ignores the theme.
type RandomStrategy struct {
	source  AssetSource
	filters *FilterBuilder
}

func NewRandomStrategy(source AssetSource, filters *FilterBuilder) *RandomStrategy {
	return &RandomStrategy{source: source, filters: filters}
}

func (s *RandomStrategy) Mode() string { return config.ModeRandom }

func (s *RandomStrategy) Select(ctx context.Context, _ *domain.Theme, n int) ([]domain.AssetDescriptor, error) {
	if n <= 0 {
		return nil, nil
	}

	f, err := s.filters.Build(ctx)
	if err != nil {
		return nil, err
	}

	assets, err := s.source.SearchRandom(ctx, n, f)
	if err != nil {
		return nil, err
	}
	return describeAll(assets, n), nil
}

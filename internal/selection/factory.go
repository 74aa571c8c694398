package selection

import (
	"fmt"

	"github.com/timmy/immiframe/internal/config"
)

// New builds the configured selection strategy.
func New(mode string, source AssetSource, filters *FilterBuilder) (Strategy, error) {
	switch mode {
	case config.ModeSearch:
		return NewSearchStrategy(source, filters), nil
	case config.ModeSampledSearch:
		return NewSampledSearchStrategy(source, filters, config.DefaultMaxSearchResults), nil
	case config.ModeRandom:
		return NewRandomStrategy(source, filters), nil
	case config.ModeOnThisDay:
		return NewOnThisDayStrategy(source), nil
	default:
		return nil, fmt.Errorf("unknown selection mode %q", mode)
	}
}

// FilterSet is one named selection setup: the configured mode plus a random
// strategy over the same filters for backfill.
type FilterSet struct {
	Name    string
	Primary Strategy
	Random  Strategy
}

// NewFilterSet builds the strategies of one configured filter set.
func NewFilterSet(cfg config.FilterSet, source AssetSource, people PeopleResolver) (FilterSet, error) {
	filters := NewFilterBuilder(cfg.Filters, people)

	var primary Strategy
	if cfg.Mode == config.ModeSampledSearch {
		primary = NewSampledSearchStrategy(source, filters, cfg.MaxSearchResults)
	} else {
		var err error
		if primary, err = New(cfg.Mode, source, filters); err != nil {
			return FilterSet{}, fmt.Errorf("filter set %q: %w", cfg.Name, err)
		}
	}

	return FilterSet{
		Name:    cfg.Name,
		Primary: primary,
		Random:  NewRandomStrategy(source, filters),
	}, nil
}

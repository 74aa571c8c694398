package selection

import (
	"context"
	"fmt"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/immich"
)

// PeopleResolver maps person names to Immich person IDs.
type PeopleResolver interface {
	ResolvePeople(ctx context.Context, names []string) ([]string, error)
}

// FilterBuilder turns configured filters into request filters. Person names
// are resolved on every run so renames in Immich are picked up once the
// client cache expires.
type FilterBuilder struct {
	cfg    config.SelectionFilter
	people PeopleResolver
}

func NewFilterBuilder(cfg config.SelectionFilter, people PeopleResolver) *FilterBuilder {
	return &FilterBuilder{cfg: cfg, people: people}
}

// Build returns the filters for one request.
func (b *FilterBuilder) Build(ctx context.Context) (immich.Filters, error) {
	if b == nil {
		return immich.Filters{}, nil
	}

	after, before, err := b.cfg.TakenRange()
	if err != nil {
		return immich.Filters{}, fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}

	f := immich.Filters{
		AlbumIDs:      b.cfg.AlbumIDs,
		City:          b.cfg.City,
		TakenAfter:    after,
		TakenBefore:   before,
		FavoritesOnly: b.cfg.FavoritesOnly,
	}

	if len(b.cfg.People) > 0 && b.people != nil {
		ids, err := b.people.ResolvePeople(ctx, b.cfg.People)
		if err != nil {
			return immich.Filters{}, err
		}
		f.PersonIDs = ids
	}
	return f, nil
}

// Package selection turns a theme (or a non-textual mode) into at most N
// remote asset descriptors.
package selection

import (
	"context"
	"time"

	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/immich"
)

// AssetSource is the part of the Immich client selection relies on.
type AssetSource interface {
	SearchSmart(ctx context.Context, query string, limit int, f immich.Filters) ([]immich.Asset, error)
	SearchRandom(ctx context.Context, count int, f immich.Filters) ([]immich.Asset, error)
	MemoriesOnDate(ctx context.Context, date time.Time) ([]immich.Memory, error)
}

// Strategy selects up to n assets. Backend failures are reported as
// domain.ErrSourceUnavailable; an empty result is not an error.
type Strategy interface {
	Mode() string
	Select(ctx context.Context, theme *domain.Theme, n int) ([]domain.AssetDescriptor, error)
}

func describe(a immich.Asset) domain.AssetDescriptor {
	takenAt := a.TakenAt()
	d := domain.AssetDescriptor{
		ID:       a.ID,
		TakenAt:  takenAt,
		FileName: a.OriginalFileName,
	}
	if !takenAt.IsZero() {
		d.Year = takenAt.Year()
	}
	return d
}

func describeAll(assets []immich.Asset, n int) []domain.AssetDescriptor {
	out := make([]domain.AssetDescriptor, 0, min(len(assets), n))
	seen := make(map[string]bool, len(assets))
	for _, a := range assets {
		if len(out) == n {
			break
		}
		if a.ID == "" || seen[a.ID] {
			continue
		}
		seen[a.ID] = true
		out = append(out, describe(a))
	}
	return out
}

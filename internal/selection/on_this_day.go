package selection

import (
	"context"
	"sort"
	"time"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
)

// OnThisDayStrategy shows photos taken on today's calendar day in past years.
type OnThisDayStrategy struct {
	source AssetSource
	now    func() time.Time
}

func NewOnThisDayStrategy(source AssetSource) *OnThisDayStrategy {
	return &OnThisDayStrategy{source: source, now: time.Now}
}

func (s *OnThisDayStrategy) Mode() string { return config.ModeOnThisDay }

func (s *OnThisDayStrategy) Select(ctx context.Context, _ *domain.Theme, n int) ([]domain.AssetDescriptor, error) {
	if n <= 0 {
		return nil, nil
	}

	memories, err := s.source.MemoriesOnDate(ctx, s.now())
	if err != nil {
		return nil, err
	}

	var all []domain.AssetDescriptor
	seen := make(map[string]bool)
	for _, m := range memories {
		for _, a := range m.Assets {
			if a.ID == "" || seen[a.ID] {
				continue
			}
			seen[a.ID] = true
			d := describe(a)
			if m.Data.Year > 0 {
				d.Year = m.Data.Year
			}
			all = append(all, d)
		}
	}
	return spreadAcrossYears(all, n), nil
}

// spreadAcrossYears keeps at most n assets: one per year, most recent year
// first and most recent asset within it, then the most recent of the rest.
func spreadAcrossYears(all []domain.AssetDescriptor, n int) []domain.AssetDescriptor {
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Year != all[j].Year {
			return all[i].Year > all[j].Year
		}
		return all[i].TakenAt.After(all[j].TakenAt)
	})
	if len(all) <= n {
		return all
	}

	out := make([]domain.AssetDescriptor, 0, n)
	var rest []domain.AssetDescriptor
	lastYear := 0
	first := true
	for _, d := range all {
		if (first || d.Year != lastYear) && len(out) < n {
			out = append(out, d)
		} else {
			rest = append(rest, d)
		}
		lastYear = d.Year
		first = false
	}

	sort.SliceStable(rest, func(i, j int) bool {
		return rest[i].TakenAt.After(rest[j].TakenAt)
	})
	for _, d := range rest {
		if len(out) == n {
			break
		}
		out = append(out, d)
	}
	return out
}

package selection

import (
	"context"
	"fmt"

	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/logger"
)

// maxBackfillRounds bounds how often the random source is asked again when a
// round returns only duplicates.
const maxBackfillRounds = 3

// Backfill tops up primary to n with assets from random, skipping IDs already
// present, and assigns ordinals 1..len to the result. The result is always
// usable; an error only reports that the random source failed.
func Backfill(ctx context.Context, primary []domain.AssetDescriptor, random Strategy, n int) ([]domain.AssetDescriptor, error) {
	out := make([]domain.AssetDescriptor, 0, n)
	seen := make(map[string]bool, n)
	for _, d := range primary {
		if len(out) == n {
			break
		}
		if seen[d.ID] {
			continue
		}
		seen[d.ID] = true
		out = append(out, d)
	}

	start := len(out)
	var backfillErr error
	for round := 0; round < maxBackfillRounds && len(out) < n && random != nil; round++ {
		// oversample by the number of IDs that could come back as duplicates
		want := n - len(out) + len(seen)
		extra, err := random.Select(ctx, nil, want)
		if err != nil {
			backfillErr = fmt.Errorf("backfill: %w", err)
			break
		}

		added := 0
		for _, d := range extra {
			if len(out) == n {
				break
			}
			if seen[d.ID] {
				continue
			}
			seen[d.ID] = true
			out = append(out, d)
			added++
		}
		if added == 0 {
			break
		}
	}

	if filled := len(out) - start; filled > 0 {
		logger.With(logger.Fields{logger.FieldMode: "backfill"}).WithCount(filled).
			Info(ctx, "Backfilled %d assets (%d requested)", filled, n)
	}
	return domain.AssignOrdinals(out), backfillErr
}

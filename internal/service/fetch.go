package service

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/timmy/immiframe/internal/cache"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/logger"
)

// AssetFetcher downloads the reduced rendition of one asset.
type AssetFetcher interface {
	FetchReduced(ctx context.Context, id string) ([]byte, string, error)
}

// FetchStats counts the outcome of one fetch phase.
type FetchStats struct {
	Requested int
	Fetched   int
	Failed    int
	Duration  time.Duration
}

// fetchAll downloads descriptors with at most workers transfers in flight.
// A failed or unreadable asset is skipped; the phase itself never fails.
// Results are returned in ordinal order.
func (o *Orchestrator) fetchAll(ctx context.Context, descs []domain.AssetDescriptor) ([]domain.CachedAsset, *FetchStats) {
	stats := &FetchStats{Requested: len(descs)}
	start := time.Now()

	var (
		mu  sync.Mutex
		out = make([]domain.CachedAsset, 0, len(descs))
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(o.cfg.FetchWorkers)
	for _, d := range descs {
		g.Go(func() error {
			asset, err := o.fetchOne(gctx, d)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				stats.Failed++
				logger.With(logger.Fields{
					logger.FieldAssetID: d.ID,
					logger.FieldOrdinal: d.Ordinal,
				}).Warn(ctx, "Skipping asset: %v", err)
				return nil
			}
			out = append(out, *asset)
			return nil
		})
	}
	_ = g.Wait()

	sort.Slice(out, func(i, j int) bool { return out[i].Ordinal < out[j].Ordinal })
	stats.Fetched = len(out)
	stats.Duration = time.Since(start)
	return out, stats
}

func (o *Orchestrator) fetchOne(ctx context.Context, d domain.AssetDescriptor) (*domain.CachedAsset, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrAssetFetch, err)
	}
	if o.cfg.FetchTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.cfg.FetchTimeout)
		defer cancel()
	}

	start := time.Now()
	data, contentType, err := o.fetcher.FetchReduced(ctx, d.ID)
	if err == nil {
		// a transfer that finished after its deadline is still a timeout
		err = ctx.Err()
	}
	if err == nil {
		contentType, err = cache.VerifyImage(data)
	}
	o.metrics.ObserveFetch(err == nil, time.Since(start))
	if err != nil {
		if !errors.Is(err, domain.ErrAssetFetch) {
			err = fmt.Errorf("%w: asset %s: %w", domain.ErrAssetFetch, d.ID, err)
		}
		return nil, err
	}

	return &domain.CachedAsset{
		Ordinal:     d.Ordinal,
		AssetID:     d.ID,
		Data:        data,
		ContentType: contentType,
	}, nil
}

package main

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"

	"github.com/timmy/immiframe/internal/cache"
	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/homeassistant"
	"github.com/timmy/immiframe/internal/immich"
	"github.com/timmy/immiframe/internal/logger"
	"github.com/timmy/immiframe/internal/metrics"
	"github.com/timmy/immiframe/internal/notify"
	"github.com/timmy/immiframe/internal/repository"
	"github.com/timmy/immiframe/internal/selection"
	"github.com/timmy/immiframe/internal/service"
	"github.com/timmy/immiframe/internal/storage"
	"github.com/timmy/immiframe/internal/theme"
)

// app holds everything a command needs once configuration is valid.
type app struct {
	cfg      *config.Config
	immich   *immich.Client
	orch     *service.Orchestrator
	runs     *repository.RunRepository
	mirror   *storage.Mirror
	metrics  *metrics.Metrics
	notifier *notify.Multi
	db       *gorm.DB
}

func buildApp(ctx context.Context, cfg *config.Config) (*app, error) {
	a := &app{cfg: cfg}

	m, err := metrics.New(prometheus.NewRegistry())
	if err != nil {
		return nil, err
	}
	a.metrics = m

	a.immich = immich.NewClient(&immich.Config{
		BaseURL:        cfg.Immich.URL,
		APIKey:         cfg.Immich.APIKey,
		Timeout:        cfg.Immich.Timeout,
		PeopleCacheTTL: cfg.Immich.PeopleCacheTTL,
	})

	var hass *homeassistant.Client
	themeDeps := theme.Deps{}
	if cfg.HomeAssistant.Token != "" {
		hass = homeassistant.NewClient(&homeassistant.Config{
			BaseURL: cfg.HomeAssistant.URL,
			Token:   cfg.HomeAssistant.Token,
			Timeout: cfg.HomeAssistant.Timeout,
		})
		themeDeps.States = hass
	}

	resolver, err := theme.NewResolverFromConfig(ctx, cfg.Theme, themeDeps)
	if err != nil {
		return nil, fmt.Errorf("failed to build theme chain: %w", err)
	}
	resolver.SetObserver(m.ObserveTheme)

	var sets []selection.FilterSet
	for _, fs := range cfg.Selection.Sets() {
		set, err := selection.NewFilterSet(fs, a.immich, a.immich)
		if err != nil {
			return nil, err
		}
		if !cfg.Selection.Backfill {
			set.Random = nil
		}
		sets = append(sets, set)
	}

	store, err := cache.NewStore(cache.Options{
		Dir:        cfg.Cache.Path,
		FilePrefix: cfg.Cache.FilePrefix,
		FileExt:    cfg.Cache.FileExt,
		GapPolicy:  cfg.Cache.GapPolicy,
	})
	if err != nil {
		return nil, err
	}
	if err := store.Recover(); err != nil {
		logger.Warn("Failed to clean up staging directories: %v", err)
	}

	var publisher service.Publisher
	if cfg.Mirror.Enabled {
		objects, err := storage.NewStorage(storage.S3ConfigFromMirror(cfg.Mirror))
		if err != nil {
			return nil, fmt.Errorf("failed to initialize mirror storage: %w", err)
		}
		if err := objects.EnsureBucket(ctx); err != nil {
			return nil, fmt.Errorf("failed to ensure mirror bucket: %w", err)
		}
		a.mirror = storage.NewMirror(objects, cfg.Mirror.Prefix)
		publisher = a.mirror
	}

	var setter notify.TextSetter
	if hass != nil {
		setter = hass
	}
	a.notifier, err = notify.FromConfig(cfg.Notify, setter)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize notifications: %w", err)
	}

	a.db, err = repository.InitDB(&cfg.State)
	if err != nil {
		return nil, err
	}
	rotation := repository.NewRotationRepository(a.db)
	a.runs = repository.NewRunRepository(a.db)

	deps := service.Deps{
		Themes:      resolver,
		RotationKey: rotationKey(cfg.Theme),
		FilterSets:  sets,
		Fetcher:     a.immich,
		Store:       store,
		Rotation:    rotation,
		Runs:        a.runs,
		Metrics:     m,
		Mirror:      publisher,
	}
	if a.notifier.Len() > 0 {
		deps.Notifier = a.notifier
	}
	a.orch = service.NewOrchestrator(deps, service.ConfigFrom(cfg))

	logger.Info("Initialized: filter_sets=%d, count=%d, theme_sources=%d, notify_sinks=%d, mirror=%v",
		len(sets), cfg.Selection.Count, len(resolver.Sources()), a.notifier.Len(), cfg.Mirror.Enabled)
	return a, nil
}

// rotationKey names the static source whose counter feeds the chain. Validate
// guarantees there is at most one, at the end of the chain.
func rotationKey(cfg config.ThemeConfig) string {
	for _, src := range cfg.Sources {
		if src.Kind == config.ThemeKindStatic && len(src.Items) > 0 {
			return src.Name
		}
	}
	return ""
}

func (a *app) Close() {
	if a.notifier != nil {
		a.notifier.Close()
	}
	if a.db != nil {
		if sqlDB, err := a.db.DB(); err == nil {
			sqlDB.Close()
		}
	}
}

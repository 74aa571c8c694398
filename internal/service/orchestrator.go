// Package service runs the photo-frame cycle: resolve a theme, select assets,
// fetch them, publish a Generation, notify, and advance the rotation.
package service

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
	"github.com/timmy/immiframe/internal/logger"
	"github.com/timmy/immiframe/internal/metrics"
	"github.com/timmy/immiframe/internal/notify"
	"github.com/timmy/immiframe/internal/selection"
	"github.com/timmy/immiframe/internal/theme"
)

// recordTimeout bounds bookkeeping writes that run after the run context
// may already be cancelled.
const recordTimeout = 5 * time.Second

// ThemeResolver yields the theme of a run. It never fails.
type ThemeResolver interface {
	Resolve(ctx context.Context, req theme.Request) domain.Theme
}

// GenerationStore is the publish directory.
type GenerationStore interface {
	Dir() string
	Commit(ctx context.Context, gen domain.Generation) (*domain.GenerationManifest, error)
	Current() (*domain.GenerationManifest, error)
}

// Publisher mirrors a committed Generation elsewhere.
type Publisher interface {
	Publish(ctx context.Context, dir string, manifest *domain.GenerationManifest) error
}

// Notifier announces a committed Generation.
type Notifier interface {
	Notify(ctx context.Context, n *notify.Notification) error
}

// RotationStore persists the static rotation counters.
type RotationStore interface {
	Get(ctx context.Context, strategy string) (int, error)
	Advance(ctx context.Context, strategy string) (int, error)
}

// RunStore persists run history.
type RunStore interface {
	Create(ctx context.Context, rec *domain.RunRecord) error
	Prune(ctx context.Context, keep int) (int64, error)
}

// Deps are the collaborators of an Orchestrator. Mirror, Notifier, Runs and
// Metrics are optional; Random nil disables backfill. FilterSets, when given,
// replace Primary and Random and are used in turn, one per run.
type Deps struct {
	Themes      ThemeResolver
	RotationKey string // static strategy whose counter feeds theme.Request
	Primary     selection.Strategy
	Random      selection.Strategy
	FilterSets  []selection.FilterSet
	Fetcher     AssetFetcher
	Store       GenerationStore
	Mirror      Publisher
	Notifier    Notifier
	Rotation    RotationStore
	Runs        RunStore
	Metrics     *metrics.Metrics
}

// OrchestratorConfig holds the run policy.
type OrchestratorConfig struct {
	Count            int
	Backfill         bool
	FetchWorkers     int
	FetchTimeout     time.Duration
	NotifyOnPartial  bool
	AdvanceOnPartial bool
	HistoryLimit     int
}

// ConfigFrom extracts the run policy from the application configuration.
func ConfigFrom(cfg *config.Config) *OrchestratorConfig {
	return &OrchestratorConfig{
		Count:            cfg.Selection.Count,
		Backfill:         cfg.Selection.Backfill,
		FetchWorkers:     cfg.Fetch.Workers,
		FetchTimeout:     cfg.Fetch.Timeout,
		NotifyOnPartial:  cfg.Notify.OnPartial,
		AdvanceOnPartial: cfg.Rotation.AdvanceOnPartial,
		HistoryLimit:     cfg.State.HistoryLimit,
	}
}

// Orchestrator executes runs. At most one run is in flight; a trigger that
// arrives meanwhile is refused with domain.ErrRunInProgress.
type Orchestrator struct {
	themes      ThemeResolver
	rotationKey string
	sets        []selection.FilterSet
	fetcher     AssetFetcher
	store       GenerationStore
	mirror      Publisher
	notifier    Notifier
	rotation    RotationStore
	runs        RunStore
	metrics     *metrics.Metrics
	cfg         OrchestratorConfig
	now         func() time.Time

	running atomic.Bool

	mu       sync.RWMutex
	state    State
	schedule ScheduleState
	lastRun  *domain.RunOutcome
}

// NewOrchestrator creates an orchestrator.
func NewOrchestrator(deps Deps, cfg *OrchestratorConfig) *Orchestrator {
	c := *cfg
	if c.FetchWorkers <= 0 {
		c.FetchWorkers = 1
	}
	sets := deps.FilterSets
	if len(sets) == 0 {
		sets = []selection.FilterSet{{Name: config.DefaultFilterSet, Primary: deps.Primary, Random: deps.Random}}
	}
	return &Orchestrator{
		themes:      deps.Themes,
		rotationKey: deps.RotationKey,
		sets:        sets,
		fetcher:     deps.Fetcher,
		store:       deps.Store,
		mirror:      deps.Mirror,
		notifier:    deps.Notifier,
		rotation:    deps.Rotation,
		runs:        deps.Runs,
		metrics:     deps.Metrics,
		cfg:         c,
		now:         time.Now,
		state:       StateIdle,
	}
}

// Busy reports whether a run is in flight.
func (o *Orchestrator) Busy() bool {
	return o.running.Load()
}

// Status returns a snapshot of the orchestrator state.
func (o *Orchestrator) Status() Status {
	o.mu.RLock()
	defer o.mu.RUnlock()
	st := Status{State: o.state, Schedule: o.schedule}
	if o.lastRun != nil {
		last := *o.lastRun
		st.LastRun = &last
	}
	return st
}

// Current returns the manifest of the live Generation, or nil before the first commit.
func (o *Orchestrator) Current() (*domain.GenerationManifest, error) {
	return o.store.Current()
}

func (o *Orchestrator) setState(s State) {
	o.mu.Lock()
	o.state = s
	o.mu.Unlock()
}

func (o *Orchestrator) setSchedule(update func(*ScheduleState)) {
	o.mu.Lock()
	update(&o.schedule)
	o.mu.Unlock()
}

// Run executes one full run and returns its outcome. A run that fails still
// returns a nil error; the failure is in the outcome.
func (o *Orchestrator) Run(ctx context.Context, trigger string) (*domain.RunOutcome, error) {
	if !o.running.CompareAndSwap(false, true) {
		o.metrics.SkipTrigger(trigger)
		logger.With(logger.Fields{logger.FieldTrigger: trigger}).
			Warn(ctx, "Skipping %s trigger: a run is already in progress", trigger)
		return nil, domain.ErrRunInProgress
	}
	defer o.running.Store(false)

	return o.run(ctx, trigger), nil
}

func (o *Orchestrator) run(ctx context.Context, trigger string) *domain.RunOutcome {
	outcome := &domain.RunOutcome{
		RunID:     uuid.New().String(),
		Trigger:   trigger,
		Requested: o.cfg.Count,
		StartedAt: o.now(),
	}
	ctx = logger.SetRunID(ctx, outcome.RunID)
	ctx = logger.WithField(ctx, logger.FieldTrigger, trigger)
	o.setState(StateRunning)

	set := o.filterSet(ctx)
	outcome.FilterSet = set.Name
	ctx = logger.WithField(ctx, logger.FieldFilterSet, set.Name)
	logger.CtxInfo(ctx, "Run started")

	defer o.finish(ctx, outcome)

	outcome.Theme = o.themes.Resolve(ctx, theme.Request{
		Now:           outcome.StartedAt,
		RotationIndex: o.rotationIndex(ctx),
	})

	descs, err := o.selectAssets(ctx, set, &outcome.Theme)
	if err != nil {
		o.abort(outcome, err)
		return outcome
	}

	assets, stats := o.fetchAll(ctx, descs)
	outcome.Skipped = stats.Failed
	logger.With(logger.Fields{"failed": stats.Failed}).WithCount(stats.Fetched).WithDuration(stats.Duration).
		Info(ctx, "Fetched %d of %d assets", stats.Fetched, stats.Requested)

	if err := ctx.Err(); err != nil {
		o.abort(outcome, fmt.Errorf("run cancelled: %w", err))
		return outcome
	}
	if len(assets) == 0 {
		o.abort(outcome, domain.ErrNoAssets)
		return outcome
	}

	o.setState(StateCommitting)
	manifest, err := o.store.Commit(ctx, domain.Generation{
		ID:        uuid.New().String(),
		Theme:     outcome.Theme,
		Assets:    assets,
		CreatedAt: o.now(),
	})
	if err != nil {
		o.abort(outcome, err)
		return outcome
	}

	outcome.Cached = len(manifest.Files)
	outcome.Status = domain.RunStatusSuccess
	if outcome.Cached < outcome.Requested {
		outcome.Status = domain.RunStatusPartial
	}

	o.publish(ctx, manifest)
	o.announce(ctx, outcome, manifest)
	o.advance(ctx, outcome)
	return outcome
}

func (o *Orchestrator) abort(outcome *domain.RunOutcome, err error) {
	o.setState(StateAborting)
	outcome.Status = domain.RunStatusFailed
	outcome.Err = err
}

// selectAssets picks at most Count descriptors with ordinals 1..len. When the
// primary mode comes up short, or its backend is unavailable, random assets
// fill the remaining slots if backfill is enabled.
func (o *Orchestrator) selectAssets(ctx context.Context, set selection.FilterSet, th *domain.Theme) ([]domain.AssetDescriptor, error) {
	n := o.cfg.Count
	mctx := logger.WithField(ctx, logger.FieldMode, set.Primary.Mode())

	descs, err := set.Primary.Select(mctx, th, n)
	canBackfill := o.cfg.Backfill && set.Random != nil
	if err != nil {
		if !canBackfill || !errors.Is(err, domain.ErrSourceUnavailable) {
			return nil, fmt.Errorf("select %s: %w", set.Primary.Mode(), err)
		}
		logger.CtxWarn(mctx, "Selection failed, backfilling: %v", err)
		descs = nil
	}

	if len(descs) < n && canBackfill {
		filled, bErr := selection.Backfill(mctx, descs, set.Random, n)
		if bErr != nil {
			logger.CtxWarn(mctx, "Backfill incomplete: %v", bErr)
		}
		descs = filled
	} else {
		if len(descs) > n {
			descs = descs[:n]
		}
		descs = domain.AssignOrdinals(descs)
	}

	logger.With(nil).WithCount(len(descs)).Info(mctx, "Selected %d of %d assets", len(descs), n)
	if len(descs) == 0 {
		if err != nil {
			return nil, fmt.Errorf("%w: %w", domain.ErrNoAssets, err)
		}
		return nil, domain.ErrNoAssets
	}
	return descs, nil
}

// filterSet returns the filter set of this run. With several sets the
// persisted counter picks one; a failed read falls back to the first.
func (o *Orchestrator) filterSet(ctx context.Context) selection.FilterSet {
	if len(o.sets) == 1 || o.rotation == nil {
		return o.sets[0]
	}
	idx, err := o.rotation.Get(ctx, domain.FilterSetRotationKey)
	if err != nil {
		o.metrics.StateError("rotation_get")
		logger.CtxWarn(ctx, "Failed to read filter set index, using the first set: %v", err)
		idx = 0
	}
	o.setSchedule(func(st *ScheduleState) { st.FilterSetIndex = idx })
	return o.sets[setPosition(idx, len(o.sets))]
}

func setPosition(idx, n int) int {
	pos := idx % n
	if pos < 0 {
		pos += n
	}
	return pos
}

func (o *Orchestrator) rotationIndex(ctx context.Context) int {
	if o.rotationKey == "" || o.rotation == nil {
		return 0
	}
	idx, err := o.rotation.Get(ctx, o.rotationKey)
	if err != nil {
		o.metrics.StateError("rotation_get")
		logger.CtxWarn(ctx, "Failed to read rotation index, using 0: %v", err)
		return 0
	}
	o.setSchedule(func(st *ScheduleState) { st.RotationIndex = idx })
	return idx
}

func (o *Orchestrator) publish(ctx context.Context, manifest *domain.GenerationManifest) {
	if o.mirror == nil {
		return
	}
	if err := o.mirror.Publish(ctx, o.store.Dir(), manifest); err != nil {
		o.metrics.MirrorFailed()
		logger.CtxWarn(ctx, "Mirror publish failed: %v", err)
	}
}

func (o *Orchestrator) announce(ctx context.Context, outcome *domain.RunOutcome, manifest *domain.GenerationManifest) {
	if o.notifier == nil {
		return
	}
	if outcome.Status == domain.RunStatusPartial && !o.cfg.NotifyOnPartial {
		logger.CtxInfo(ctx, "Partial run, notification disabled")
		return
	}

	files := make([]string, len(manifest.Files))
	for i, f := range manifest.Files {
		files[i] = f.File
	}
	err := o.notifier.Notify(ctx, &notify.Notification{
		RunID:        outcome.RunID,
		GenerationID: manifest.ID,
		Status:       outcome.Status,
		Theme:        outcome.Theme.Text,
		ThemeSource:  outcome.Theme.Source,
		Requested:    outcome.Requested,
		Cached:       outcome.Cached,
		Files:        files,
		Timestamp:    o.now(),
	})
	if err != nil {
		o.metrics.NotifyFailed()
		logger.CtxWarn(ctx, "Notification failed: %v", err)
	}
}

// advance moves the rotation of the static strategy that produced the theme
// and, with several filter sets, on to the next set.
func (o *Orchestrator) advance(ctx context.Context, outcome *domain.RunOutcome) {
	if o.rotation == nil {
		return
	}
	if outcome.Status == domain.RunStatusPartial && !o.cfg.AdvanceOnPartial {
		return
	}

	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if outcome.Theme.Kind == config.ThemeKindStatic {
		idx, err := o.rotation.Advance(wctx, outcome.Theme.Source)
		if err != nil {
			o.metrics.StateError("rotation_advance")
			logger.CtxWarn(ctx, "Failed to advance rotation: %v", err)
		} else {
			if outcome.Theme.Source == o.rotationKey {
				o.setSchedule(func(st *ScheduleState) { st.RotationIndex = idx })
			}
			logger.CtxDebug(logger.SetStrategy(ctx, outcome.Theme.Source), "Rotation advanced to %d", idx)
		}
	}

	if len(o.sets) > 1 {
		idx, err := o.rotation.Advance(wctx, domain.FilterSetRotationKey)
		if err != nil {
			o.metrics.StateError("rotation_advance")
			logger.CtxWarn(ctx, "Failed to advance filter set: %v", err)
			return
		}
		o.setSchedule(func(st *ScheduleState) { st.FilterSetIndex = idx })
		logger.CtxInfo(ctx, "Next run uses filter set %q", o.sets[setPosition(idx, len(o.sets))].Name)
	}
}

func (o *Orchestrator) finish(ctx context.Context, outcome *domain.RunOutcome) {
	outcome.FinishedAt = o.now()

	entry := logger.With(logger.Fields{
		"theme":        outcome.Theme.Text,
		"theme_source": outcome.Theme.Source,
		"requested":    outcome.Requested,
		"skipped":      outcome.Skipped,
	}).WithCount(outcome.Cached).WithDuration(outcome.Duration()).WithStatus(string(outcome.Status))
	if outcome.Err != nil {
		entry.Error(ctx, "Run failed: %v", outcome.Err)
	} else {
		entry.Info(ctx, "Run finished: %s", outcome.Status)
	}

	o.record(ctx, outcome)
	o.metrics.ObserveRun(outcome)

	o.mu.Lock()
	o.lastRun = outcome
	o.state = StateIdle
	o.mu.Unlock()
}

func (o *Orchestrator) record(ctx context.Context, outcome *domain.RunOutcome) {
	if o.runs == nil {
		return
	}
	wctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	defer cancel()

	if err := o.runs.Create(wctx, domain.NewRunRecord(outcome)); err != nil {
		o.metrics.StateError("run_create")
		logger.CtxWarn(ctx, "Failed to record run: %v", err)
		return
	}
	if o.cfg.HistoryLimit > 0 {
		if _, err := o.runs.Prune(wctx, o.cfg.HistoryLimit); err != nil {
			o.metrics.StateError("run_prune")
			logger.CtxWarn(ctx, "Failed to prune run history: %v", err)
		}
	}
}

package repository

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/timmy/immiframe/internal/config"
	"github.com/timmy/immiframe/internal/domain"
)

func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	name := strings.NewReplacer("/", "_", " ", "_").Replace(t.Name())
	db, err := InitDB(&config.StateConfig{Driver: "sqlite", DSN: fmt.Sprintf("file:%s?mode=memory&cache=shared", name)})
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

func TestRotationRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRotationRepository(openTestDB(t))

	idx, err := repo.Get(ctx, "weekly")
	require.NoError(t, err)
	assert.Equal(t, 0, idx)

	for want := 1; want <= 3; want++ {
		got, err := repo.Advance(ctx, "weekly")
		require.NoError(t, err)
		assert.Equal(t, want, got)
	}

	require.NoError(t, repo.Set(ctx, "other", 10))
	idx, err = repo.Get(ctx, "weekly")
	require.NoError(t, err)
	assert.Equal(t, 3, idx)
	idx, err = repo.Get(ctx, "other")
	require.NoError(t, err)
	assert.Equal(t, 10, idx)
}

func TestRotationSurvivesReopen(t *testing.T) {
	ctx := context.Background()
	cfg := &config.StateConfig{Driver: "sqlite", DSN: filepath.Join(t.TempDir(), "state", "immiframe.db")}

	db, err := InitDB(cfg)
	require.NoError(t, err)
	_, err = NewRotationRepository(db).Advance(ctx, "weekly")
	require.NoError(t, err)
	sqlDB, _ := db.DB()
	require.NoError(t, sqlDB.Close())

	db, err = InitDB(cfg)
	require.NoError(t, err)
	idx, err := NewRotationRepository(db).Get(ctx, "weekly")
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
	sqlDB, _ = db.DB()
	sqlDB.Close()
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()
	repo := NewRunRepository(openTestDB(t))

	latest, err := repo.Latest(ctx)
	require.NoError(t, err)
	assert.Nil(t, latest)

	base := time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)
	statuses := []domain.RunStatus{domain.RunStatusSuccess, domain.RunStatusPartial, domain.RunStatusFailed, domain.RunStatusSuccess, domain.RunStatusSuccess}
	for i, st := range statuses {
		require.NoError(t, repo.Create(ctx, &domain.RunRecord{
			ID:        fmt.Sprintf("run-%d", i),
			Status:    st,
			StartedAt: base.Add(time.Duration(i) * time.Hour),
		}))
	}

	recs, err := repo.List(ctx, 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, "run-4", recs[0].ID)
	assert.Equal(t, "run-3", recs[1].ID)

	counts, err := repo.CountByStatus(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), counts[domain.RunStatusSuccess])
	assert.Equal(t, int64(1), counts[domain.RunStatusFailed])

	removed, err := repo.Prune(ctx, 3)
	require.NoError(t, err)
	assert.Equal(t, int64(2), removed)

	recs, err = repo.List(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, recs, 3)
	assert.Equal(t, "run-2", recs[2].ID)

	latest, err = repo.Latest(ctx)
	require.NoError(t, err)
	assert.Equal(t, "run-4", latest.ID)
}

package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"

	"github.com/timmy/immiframe/internal/domain"
)

// RunRepository stores the run history shown by the status API.
type RunRepository struct {
	db *gorm.DB
}

// NewRunRepository creates a new RunRepository.
func NewRunRepository(db *gorm.DB) *RunRepository {
	return &RunRepository{db: db}
}

// Create inserts a run record.
func (r *RunRepository) Create(ctx context.Context, rec *domain.RunRecord) error {
	return r.db.WithContext(ctx).Create(rec).Error
}

// List returns the most recent runs, newest first.
func (r *RunRepository) List(ctx context.Context, limit int) ([]domain.RunRecord, error) {
	var recs []domain.RunRecord
	q := r.db.WithContext(ctx).Order("started_at DESC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	if err := q.Find(&recs).Error; err != nil {
		return nil, err
	}
	return recs, nil
}

// Latest returns the newest run, or nil when there is none.
func (r *RunRepository) Latest(ctx context.Context) (*domain.RunRecord, error) {
	var rec domain.RunRecord
	err := r.db.WithContext(ctx).Order("started_at DESC").First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}

// CountByStatus returns how many stored runs ended in each status.
func (r *RunRepository) CountByStatus(ctx context.Context) (map[domain.RunStatus]int64, error) {
	var rows []struct {
		Status domain.RunStatus
		Count  int64
	}
	if err := r.db.WithContext(ctx).Model(&domain.RunRecord{}).
		Select("status, COUNT(*) AS count").Group("status").Scan(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[domain.RunStatus]int64, len(rows))
	for _, row := range rows {
		out[row.Status] = row.Count
	}
	return out, nil
}

// Prune keeps the newest keep records and deletes the rest.
func (r *RunRepository) Prune(ctx context.Context, keep int) (int64, error) {
	if keep <= 0 {
		return 0, nil
	}
	var cutoff domain.RunRecord
	err := r.db.WithContext(ctx).Order("started_at DESC").Offset(keep - 1).Limit(1).First(&cutoff).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	res := r.db.WithContext(ctx).Where("started_at < ?", cutoff.StartedAt).Delete(&domain.RunRecord{})
	return res.RowsAffected, res.Error
}

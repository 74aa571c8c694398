package repository

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/timmy/immiframe/internal/domain"
)

// RotationRepository persists the static-rotation counter per strategy.
type RotationRepository struct {
	db *gorm.DB
}

// NewRotationRepository creates a new RotationRepository.
func NewRotationRepository(db *gorm.DB) *RotationRepository {
	return &RotationRepository{db: db}
}

// Get returns the stored index for strategy, 0 when none is stored.
func (r *RotationRepository) Get(ctx context.Context, strategy string) (int, error) {
	var state domain.RotationState
	err := r.db.WithContext(ctx).First(&state, "strategy = ?", strategy).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return state.Index, nil
}

// Set stores index for strategy.
func (r *RotationRepository) Set(ctx context.Context, strategy string, index int) error {
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "strategy"}},
		DoUpdates: clause.AssignmentColumns([]string{"rotation_index", "updated_at"}),
	}).Create(&domain.RotationState{Strategy: strategy, Index: index}).Error
}

// Advance increments the index for strategy and returns the new value.
func (r *RotationRepository) Advance(ctx context.Context, strategy string) (int, error) {
	var next int
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		repo := &RotationRepository{db: tx}
		cur, err := repo.Get(ctx, strategy)
		if err != nil {
			return err
		}
		next = cur + 1
		return repo.Set(ctx, strategy, next)
	})
	return next, err
}

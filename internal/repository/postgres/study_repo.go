package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/dmehra2102/prod-golang-projects/radflow/internal/domain/study"
)

type StudyRepository struct {
	db *gorm.DB
}

func NewStudyRepository(db *gorm.DB) *StudyRepository {
	return &StudyRepository{db: db}
}

func (r *StudyRepository) Create(ctx context.Context, s *study.Study) error {
	if err := r.db.WithContext(ctx).Create(s).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return study.ErrStudyAlreadyExists
		}
		return fmt.Errorf("inserting study: %w", err)
	}
	return nil
}

func (r *StudyRepository) GetByID(ctx context.Context, id uuid.UUID) (*study.Study, error) {
	var s study.Study
	err := r.db.WithContext(ctx).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, study.ErrStudyNotFound
		}
		return nil, fmt.Errorf("fetching study: %w", err)
	}
	return &s, nil
}

// GetForUpdate takes a row lock so concurrent assignment writes on the same
// study serialize; the second writer blocks until the first commits and then
// observes its result.
func (r *StudyRepository) GetForUpdate(ctx context.Context, id uuid.UUID) (*study.Study, error) {
	var s study.Study
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("id = ? AND deleted_at IS NULL", id).
		First(&s).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, study.ErrStudyNotFound
		}
		return nil, fmt.Errorf("locking study: %w", err)
	}
	return &s, nil
}

func (r *StudyRepository) Save(ctx context.Context, s *study.Study) error {
	if err := r.db.WithContext(ctx).Save(s).Error; err != nil {
		return fmt.Errorf("saving study: %w", err)
	}
	return nil
}

func (r *StudyRepository) CountOverdue(ctx context.Context, cutoff time.Time) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&study.Study{}).
		Where("report_finalized_at IS NULL AND created_at < ? AND deleted_at IS NULL", cutoff).
		Count(&n).Error
	if err != nil {
		return 0, fmt.Errorf("counting overdue studies: %w", err)
	}
	return n, nil
}

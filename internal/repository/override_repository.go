package repository

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"jobcard-service/internal/model"
)

// OverrideRepository журнал обходов СОП: только вставка и чтение
type OverrideRepository struct {
	db *gorm.DB
}

func NewOverrideRepository(db *gorm.DB) *OverrideRepository {
	return &OverrideRepository{db: db}
}

func (r *OverrideRepository) Create(ctx context.Context, record *model.OverrideRecord) error {
	return conn(ctx, r.db).Create(record).Error
}

func (r *OverrideRepository) ListByJobCardID(ctx context.Context, jobCardID uuid.UUID) ([]model.OverrideRecord, error) {
	var records []model.OverrideRecord
	err := conn(ctx, r.db).
		Where("job_card_id = ?", jobCardID).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}
	return records, nil
}

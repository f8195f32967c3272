package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"jobcard-service/internal/model"
)

var ErrVersionConflict = errors.New("job card version conflict")

type JobCardRepository struct {
	db *gorm.DB
}

func NewJobCardRepository(db *gorm.DB) *JobCardRepository {
	return &JobCardRepository{db: db}
}

// Create сохраняет заказ-наряд вместе с записями чек-листа
func (r *JobCardRepository) Create(ctx context.Context, jobCard *model.JobCard) error {
	return conn(ctx, r.db).Create(jobCard).Error
}

func (r *JobCardRepository) GetByID(ctx context.Context, id uuid.UUID) (*model.JobCard, error) {
	var jobCard model.JobCard
	err := conn(ctx, r.db).
		Preload("SOPChecklists", orderByPosition).
		Where("id = ?", id).
		First(&jobCard).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, gorm.ErrRecordNotFound
		}
		return nil, err
	}
	return &jobCard, nil
}

// Save обновляет заказ-наряд только если версия в базе совпадает с прочитанной,
// затем записывает все записи чек-листа. При успехе версия увеличивается на единицу.
func (r *JobCardRepository) Save(ctx context.Context, jobCard *model.JobCard) error {
	return conn(ctx, r.db).Transaction(func(tx *gorm.DB) error {
		now := time.Now()

		result := tx.Model(&model.JobCard{}).
			Where("id = ? AND version = ?", jobCard.ID, jobCard.Version).
			Updates(map[string]interface{}{
				"service_status":    jobCard.ServiceStatus,
				"sop_template_id":   jobCard.SOPTemplateID,
				"sop_progress":      jobCard.SOPProgress,
				"promised_ready_at": jobCard.PromisedReadyAt,
				"payment_status":    jobCard.PaymentStatus,
				"version":           gorm.Expr("version + 1"),
				"updated_at":        now,
			})
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return ErrVersionConflict
		}

		for i := range jobCard.SOPChecklists {
			entry := &jobCard.SOPChecklists[i]
			entry.JobCardID = jobCard.ID
			entry.UpdatedAt = now

			err := tx.Clauses(clause.OnConflict{
				Columns: []clause.Column{{Name: "job_card_id"}, {Name: "step_id"}},
				DoUpdates: clause.AssignmentColumns([]string{
					"position",
					"completed",
					"completed_checkpoints",
					"photos",
					"completed_at",
					"updated_at",
				}),
			}).Create(entry).Error
			if err != nil {
				return err
			}
		}

		jobCard.Version++
		jobCard.UpdatedAt = now
		return nil
	})
}

type JobCardListFilter struct {
	Status *model.ServiceStatus
	// OverdueAt отбирает невыданные заказ-наряды с истёкшим сроком на этот момент
	OverdueAt *time.Time
}

func (r *JobCardRepository) List(ctx context.Context, filter JobCardListFilter) ([]model.JobCard, error) {
	var jobCards []model.JobCard
	query := conn(ctx, r.db).Model(&model.JobCard{}).Preload("SOPChecklists", orderByPosition)

	if filter.Status != nil {
		statuses := []model.ServiceStatus{*filter.Status}
		if *filter.Status == model.ServiceStatusPrep {
			statuses = append(statuses, model.ServiceStatusInspect)
		}
		query = query.Where("service_status IN ?", statuses)
	}
	if filter.OverdueAt != nil {
		query = query.Where("promised_ready_at IS NOT NULL AND promised_ready_at < ? AND service_status <> ?",
			*filter.OverdueAt, model.ServiceStatusPickup)
	}

	if err := query.Order("created_at DESC").Find(&jobCards).Error; err != nil {
		return nil, err
	}

	return jobCards, nil
}

func orderByPosition(db *gorm.DB) *gorm.DB {
	return db.Order("position ASC")
}

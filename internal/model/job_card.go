package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type PaymentStatus string

const (
	PaymentStatusPending PaymentStatus = "pending"
	PaymentStatusPartial PaymentStatus = "partial"
	PaymentStatusPaid    PaymentStatus = "paid"
)

type JobCard struct {
	ID              uuid.UUID           `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	ServiceStatus   ServiceStatus       `gorm:"type:varchar(20);not null;default:'check-in';index" json:"service_status"`
	SOPTemplateID   *string             `gorm:"column:sop_template_id;type:varchar(64)" json:"sop_template_id"`
	SOPChecklists   []SOPChecklistEntry `gorm:"foreignKey:JobCardID" json:"sop_checklists"`
	SOPProgress     decimal.Decimal     `gorm:"column:sop_progress;type:numeric(5,2);not null;default:0" json:"sop_progress"`
	PromisedReadyAt *time.Time          `json:"promised_ready_at"`
	PaymentStatus   PaymentStatus       `gorm:"type:varchar(20);not null;default:'pending'" json:"payment_status"`
	CreatedByUserID uuid.UUID           `gorm:"type:uuid;not null" json:"created_by_user_id"`
	Version         int64               `gorm:"not null;default:1" json:"version"`
	CreatedAt       time.Time           `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time           `gorm:"autoUpdateTime" json:"updated_at"`
}

func (JobCard) TableName() string {
	return "job_cards"
}

func (j *JobCard) BeforeCreate(tx *gorm.DB) error {
	if j.ID == uuid.Nil {
		j.ID = uuid.New()
	}
	if j.ServiceStatus == "" {
		j.ServiceStatus = ServiceStatusCheckIn
	}
	if j.PaymentStatus == "" {
		j.PaymentStatus = PaymentStatusPending
	}
	if j.Version == 0 {
		j.Version = 1
	}
	return nil
}

// AfterFind нормализует устаревший статус inspect при чтении
func (j *JobCard) AfterFind(tx *gorm.DB) error {
	j.ServiceStatus = j.ServiceStatus.Normalize()
	return nil
}

func (j *JobCard) HasTemplate() bool {
	return j.SOPTemplateID != nil && *j.SOPTemplateID != ""
}

func (j *JobCard) Entry(stepID string) (*SOPChecklistEntry, bool) {
	for i := range j.SOPChecklists {
		if j.SOPChecklists[i].StepID == stepID {
			return &j.SOPChecklists[i], true
		}
	}
	return nil, false
}

// IsOverdue срок SLA истёк, а машина ещё не выдана. Только для отображения.
func (j *JobCard) IsOverdue(now time.Time) bool {
	if j.PromisedReadyAt == nil || j.ServiceStatus.IsTerminal() {
		return false
	}
	return now.After(*j.PromisedReadyAt)
}

// Clone глубокая копия, чтобы изменения не утекали до успешного сохранения
func (j *JobCard) Clone() *JobCard {
	clone := *j
	if j.SOPTemplateID != nil {
		id := *j.SOPTemplateID
		clone.SOPTemplateID = &id
	}
	if j.PromisedReadyAt != nil {
		at := *j.PromisedReadyAt
		clone.PromisedReadyAt = &at
	}
	if j.SOPChecklists != nil {
		clone.SOPChecklists = make([]SOPChecklistEntry, len(j.SOPChecklists))
		for i, entry := range j.SOPChecklists {
			clone.SOPChecklists[i] = entry.Clone()
		}
	}
	return &clone
}

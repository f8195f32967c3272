package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// OverrideRecord запись аудита обхода СОП. Только добавление, без изменений и удаления.
type OverrideRecord struct {
	ID              uuid.UUID                   `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	JobCardID       uuid.UUID                   `gorm:"type:uuid;not null;index" json:"job_card_id"`
	FromStatus      ServiceStatus               `gorm:"type:varchar(20);not null" json:"from_status"`
	ToStatus        ServiceStatus               `gorm:"type:varchar(20);not null" json:"to_status"`
	Reason          string                      `gorm:"type:text;not null" json:"reason"`
	BypassedStepIDs datatypes.JSONSlice[string] `gorm:"column:bypassed_step_ids;type:jsonb;not null" json:"bypassed_step_ids"`
	ActorUserID     uuid.UUID                   `gorm:"type:uuid;not null" json:"actor_user_id"`
	ActorRole       string                      `gorm:"type:varchar(50);not null" json:"actor_role"`
	Timestamp       time.Time                   `gorm:"column:created_at;not null" json:"timestamp"`
}

func (OverrideRecord) TableName() string {
	return "sop_override_records"
}

func (o *OverrideRecord) BeforeCreate(tx *gorm.DB) error {
	if o.ID == uuid.Nil {
		o.ID = uuid.New()
	}
	if o.Timestamp.IsZero() {
		o.Timestamp = time.Now()
	}
	return nil
}

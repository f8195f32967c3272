package model

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type MediaType string

const (
	MediaTypePhoto MediaType = "photo"
	MediaTypeVideo MediaType = "video"
)

func (m MediaType) Valid() bool {
	return m == MediaTypePhoto || m == MediaTypeVideo
}

// PhotoEvidence принадлежит только своей записи чек-листа
type PhotoEvidence struct {
	URL        string    `json:"url"`
	MediaType  MediaType `json:"media_type"`
	CapturedAt time.Time `json:"captured_at"`
}

// SOPChecklistEntry экземпляр шага СОП для конкретного заказ-наряда
type SOPChecklistEntry struct {
	ID                   uuid.UUID                          `gorm:"type:uuid;primaryKey;default:uuid_generate_v4()" json:"id"`
	JobCardID            uuid.UUID                          `gorm:"type:uuid;not null;uniqueIndex:uq_sop_checklist_step,priority:1" json:"job_card_id"`
	StepID               string                             `gorm:"type:varchar(64);not null;uniqueIndex:uq_sop_checklist_step,priority:2" json:"step_id"`
	Position             int                                `gorm:"not null" json:"position"`
	Completed            bool                               `gorm:"not null;default:false" json:"completed"`
	CompletedCheckpoints datatypes.JSONSlice[string]        `gorm:"type:jsonb;not null;default:'[]'" json:"completed_checkpoints"`
	Photos               datatypes.JSONSlice[PhotoEvidence] `gorm:"type:jsonb;not null;default:'[]'" json:"photos"`
	CompletedAt          *time.Time                         `json:"completed_at"`
	CreatedAt            time.Time                          `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt            time.Time                          `gorm:"autoUpdateTime" json:"updated_at"`
}

func (SOPChecklistEntry) TableName() string {
	return "sop_checklist_entries"
}

func (e *SOPChecklistEntry) BeforeCreate(tx *gorm.DB) error {
	if e.ID == uuid.Nil {
		e.ID = uuid.New()
	}
	return nil
}

func (e *SOPChecklistEntry) HasCheckpoint(checkpoint string) bool {
	for _, c := range e.CompletedCheckpoints {
		if c == checkpoint {
			return true
		}
	}
	return false
}

func (e SOPChecklistEntry) Clone() SOPChecklistEntry {
	clone := e
	clone.CompletedCheckpoints = append(datatypes.JSONSlice[string]{}, e.CompletedCheckpoints...)
	clone.Photos = append(datatypes.JSONSlice[PhotoEvidence]{}, e.Photos...)
	if e.CompletedAt != nil {
		at := *e.CompletedAt
		clone.CompletedAt = &at
	}
	return clone
}

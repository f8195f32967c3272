package sop

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"jobcard-service/internal/model"
)

type RequiredStatus struct {
	Completed int `json:"completed"`
	Total     int `json:"total"`
}

// Shortfall чего не хватает шагу, чтобы его можно было отметить выполненным
type Shortfall struct {
	RequiredPhotos     int      `json:"required_photos"`
	CapturedPhotos     int      `json:"captured_photos"`
	MissingPhotos      int      `json:"missing_photos"`
	MissingCheckpoints []string `json:"missing_checkpoints"`
}

func (s Shortfall) PhotosMissing() bool {
	return s.MissingPhotos > 0
}

func (s Shortfall) CheckpointsMissing() bool {
	return len(s.MissingCheckpoints) > 0
}

func (s Shortfall) Satisfied() bool {
	return !s.PhotosMissing() && !s.CheckpointsMissing()
}

// BuildChecklist по одной незавершённой записи на каждый шаг шаблона
func BuildChecklist(jobCardID uuid.UUID, template model.SOPTemplate) []model.SOPChecklistEntry {
	entries := make([]model.SOPChecklistEntry, 0, len(template.Steps))
	for i, step := range template.Steps {
		entries = append(entries, model.SOPChecklistEntry{
			ID:                   uuid.New(),
			JobCardID:            jobCardID,
			StepID:               step.ID,
			Position:             i,
			CompletedCheckpoints: []string{},
			Photos:               []model.PhotoEvidence{},
		})
	}
	return entries
}

// ComputeProgress round(100 * выполнено / всего), без учёта обязательности шагов
func ComputeProgress(template model.SOPTemplate, checklist []model.SOPChecklistEntry) decimal.Decimal {
	total := len(template.Steps)
	if total == 0 {
		return decimal.Zero
	}

	entries := indexEntries(checklist)
	completed := 0
	for _, step := range template.Steps {
		if entry, ok := entries[step.ID]; ok && entry.Completed {
			completed++
		}
	}

	return decimal.NewFromInt(int64(100 * completed)).
		Div(decimal.NewFromInt(int64(total))).
		Round(0)
}

func RequiredStepStatus(template model.SOPTemplate, checklist []model.SOPChecklistEntry) RequiredStatus {
	entries := indexEntries(checklist)
	status := RequiredStatus{}
	for _, step := range template.Steps {
		if !step.Required {
			continue
		}
		status.Total++
		if entry, ok := entries[step.ID]; ok && entry.Completed {
			status.Completed++
		}
	}
	return status
}

// StepShortfall сравнивает доказательства записи с требованиями шага.
// Правило одинаково для обязательных и необязательных шагов.
func StepShortfall(step model.SOPStep, entry model.SOPChecklistEntry) Shortfall {
	shortfall := Shortfall{
		CapturedPhotos:     len(entry.Photos),
		MissingCheckpoints: []string{},
	}

	if step.PhotoRequired {
		shortfall.RequiredPhotos = step.RequiredPhotos
		if missing := step.RequiredPhotos - len(entry.Photos); missing > 0 {
			shortfall.MissingPhotos = missing
		}
	}

	for _, checkpoint := range step.Checkpoints {
		if !entry.HasCheckpoint(checkpoint) {
			shortfall.MissingCheckpoints = append(shortfall.MissingCheckpoints, checkpoint)
		}
	}

	return shortfall
}

func StepSatisfiesRequirements(step model.SOPStep, entry model.SOPChecklistEntry) bool {
	return StepShortfall(step, entry).Satisfied()
}

// IncompleteRequiredSteps обязательные шаги без отметки о выполнении, в порядке шаблона.
// Именно этот список показывается при подтверждении обхода.
func IncompleteRequiredSteps(template model.SOPTemplate, checklist []model.SOPChecklistEntry) []model.SOPStep {
	entries := indexEntries(checklist)
	steps := []model.SOPStep{}
	for _, step := range template.Steps {
		if !step.Required {
			continue
		}
		if entry, ok := entries[step.ID]; ok && entry.Completed {
			continue
		}
		steps = append(steps, step)
	}
	return steps
}

// CompleteEntry отмечает запись выполненной; повторная отметка ничего не меняет
func CompleteEntry(entry *model.SOPChecklistEntry, now time.Time) bool {
	if entry.Completed {
		return false
	}
	entry.Completed = true
	entry.CompletedAt = &now
	return true
}

func ReopenEntry(entry *model.SOPChecklistEntry) {
	entry.Completed = false
	entry.CompletedAt = nil
}

func indexEntries(checklist []model.SOPChecklistEntry) map[string]model.SOPChecklistEntry {
	entries := make(map[string]model.SOPChecklistEntry, len(checklist))
	for _, entry := range checklist {
		entries[entry.StepID] = entry
	}
	return entries
}

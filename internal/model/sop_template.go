package model

type PhotoType string

const (
	PhotoTypeBefore     PhotoType = "before"
	PhotoTypeAfter      PhotoType = "after"
	PhotoTypeProcess    PhotoType = "process"
	PhotoTypeDamage     PhotoType = "damage"
	PhotoTypeInspection PhotoType = "inspection"
)

// Категория шагов, которые считаются отдельным контролем качества
const StepCategoryInspection = "inspection"

// SOPTemplate справочный шаблон СОП для типа услуги. Неизменяем после публикации,
// заказ-наряд хранит только ссылку на него.
type SOPTemplate struct {
	ID                       string    `json:"id" validate:"required"`
	ServiceName              string    `json:"service_name" validate:"required"`
	EstimatedDurationMinutes int       `json:"estimated_duration_minutes" validate:"gte=0"`
	Steps                    []SOPStep `json:"steps" validate:"dive"`
}

type SOPStep struct {
	ID             string    `json:"id" validate:"required"`
	Name           string    `json:"name" validate:"required"`
	Category       string    `json:"category"`
	Required       bool      `json:"required"`
	PhotoRequired  bool      `json:"photo_required"`
	RequiredPhotos int       `json:"required_photos" validate:"gte=0"`
	PhotoType      PhotoType `json:"photo_type,omitempty" validate:"omitempty,oneof=before after process damage inspection"`
	Checkpoints    []string  `json:"checkpoints,omitempty" validate:"unique,dive,required"`
}

func (t SOPTemplate) Step(stepID string) (SOPStep, bool) {
	for _, step := range t.Steps {
		if step.ID == stepID {
			return step, true
		}
	}
	return SOPStep{}, false
}

func (t SOPTemplate) RequiredSteps() []SOPStep {
	var steps []SOPStep
	for _, step := range t.Steps {
		if step.Required {
			steps = append(steps, step)
		}
	}
	return steps
}

func (s SOPStep) HasCheckpoint(checkpoint string) bool {
	for _, c := range s.Checkpoints {
		if c == checkpoint {
			return true
		}
	}
	return false
}

func (s SOPStep) IsInspection() bool {
	return s.Category == StepCategoryInspection
}

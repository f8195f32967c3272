// Package sop содержит справочник шаблонов СОП и расчёт прогресса чек-листа.
package sop

import (
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"

	"jobcard-service/internal/model"
	"jobcard-service/internal/utils"
)

var (
	ErrTemplateNotFound = errors.New("sop template not found")
	ErrInvalidTemplate  = errors.New("invalid sop template")
)

// Registry неизменяемый после загрузки каталог шаблонов; безопасен для
// конкурентного чтения без блокировок.
type Registry struct {
	templates map[string]model.SOPTemplate
	ids       []string
}

func NewRegistry(templates []model.SOPTemplate) (*Registry, error) {
	validate := newValidator()

	registry := &Registry{
		templates: make(map[string]model.SOPTemplate, len(templates)),
	}

	for _, template := range templates {
		if err := validateTemplate(validate, template); err != nil {
			return nil, err
		}
		if _, exists := registry.templates[template.ID]; exists {
			return nil, fmt.Errorf("%w: duplicate template id %q", ErrInvalidTemplate, template.ID)
		}

		template = cloneTemplate(template)
		for i := range template.Steps {
			template.Steps[i].Category = utils.NormalizeKey(template.Steps[i].Category)
		}

		registry.templates[template.ID] = template
		registry.ids = append(registry.ids, template.ID)
	}

	sort.Strings(registry.ids)
	return registry, nil
}

func (r *Registry) Get(templateID string) (model.SOPTemplate, error) {
	template, ok := r.templates[templateID]
	if !ok {
		return model.SOPTemplate{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
	}
	return cloneTemplate(template), nil
}

func (r *Registry) List() []model.SOPTemplate {
	templates := make([]model.SOPTemplate, 0, len(r.ids))
	for _, id := range r.ids {
		templates = append(templates, cloneTemplate(r.templates[id]))
	}
	return templates
}

// Validate проверяет шаблон теми же правилами, что и при загрузке каталога
func Validate(template model.SOPTemplate) error {
	return validateTemplate(newValidator(), template)
}

func newValidator() *validator.Validate {
	validate := validator.New(validator.WithRequiredStructEnabled())
	validate.RegisterStructValidation(stepStructLevel, model.SOPStep{})
	validate.RegisterStructValidation(templateStructLevel, model.SOPTemplate{})
	return validate
}

func validateTemplate(validate *validator.Validate, template model.SOPTemplate) error {
	if err := validate.Struct(template); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			first := validationErrors[0]
			return fmt.Errorf("%w %q: %s failed on %s", ErrInvalidTemplate, template.ID, first.Namespace(), first.Tag())
		}
		return fmt.Errorf("%w %q: %v", ErrInvalidTemplate, template.ID, err)
	}
	return nil
}

// Шаг с обязательным фото должен требовать хотя бы один снимок
func stepStructLevel(sl validator.StructLevel) {
	step := sl.Current().Interface().(model.SOPStep)
	if step.PhotoRequired && step.RequiredPhotos < 1 {
		sl.ReportError(step.RequiredPhotos, "RequiredPhotos", "required_photos", "photo_required_min", "")
	}
}

func templateStructLevel(sl validator.StructLevel) {
	template := sl.Current().Interface().(model.SOPTemplate)
	seen := make(map[string]struct{}, len(template.Steps))
	for _, step := range template.Steps {
		if _, ok := seen[step.ID]; ok {
			sl.ReportError(template.Steps, "Steps", "steps", "unique_step_id", step.ID)
			return
		}
		seen[step.ID] = struct{}{}
	}
}

func cloneTemplate(template model.SOPTemplate) model.SOPTemplate {
	clone := template
	clone.Steps = make([]model.SOPStep, len(template.Steps))
	for i, step := range template.Steps {
		step.Checkpoints = append([]string(nil), step.Checkpoints...)
		clone.Steps[i] = step
	}
	return clone
}

package service

import (
	"errors"
	"fmt"
	"strings"

	"jobcard-service/internal/model"
	"jobcard-service/internal/sop"
)

var (
	ErrNotFound         = errors.New("not found")
	ErrPermissionDenied = errors.New("permission denied")
	ErrInvalidInput     = errors.New("invalid input")
	ErrConflict         = errors.New("conflict")

	ErrJobCardNotFound    = fmt.Errorf("job card %w", ErrNotFound)
	ErrTemplateNotFound   = fmt.Errorf("sop template %w", ErrNotFound)
	ErrStepNotFound       = fmt.Errorf("sop step %w", ErrNotFound)
	ErrCheckpointNotFound = fmt.Errorf("checkpoint %w", ErrNotFound)

	ErrAlreadyTerminal         = errors.New("job card already at terminal status")
	ErrInvalidTransition       = errors.New("invalid status transition")
	ErrSOPRequirementsNotMet   = errors.New("sop requirements not met")
	ErrPhotosRequired          = errors.New("photos required")
	ErrCheckpointsRequired     = errors.New("checkpoints required")
	ErrReasonRequired          = errors.New("override reason required")
	ErrReasonTooShort          = errors.New("override reason too short")
	ErrTemplateAlreadyAssigned = errors.New("sop template already assigned")
)

// Коды для клиента в теле ответа рядом с текстом ошибки
const (
	CodeSOPRequirementsNotMet = "SOP_REQUIREMENTS_NOT_MET"
	CodePhotosRequired        = "PHOTOS_REQUIRED"
	CodeCheckpointsRequired   = "CHECKPOINTS_REQUIRED"
)

type MissingPhotos struct {
	StepID   string `json:"stepId"`
	StepName string `json:"stepName"`
	Required int    `json:"required"`
	Captured int    `json:"captured"`
}

type MissingCheckpoints struct {
	StepID      string   `json:"stepId"`
	StepName    string   `json:"stepName"`
	Checkpoints []string `json:"checkpoints"`
}

// SOPRequirementsDetails четыре корзины, по которым клиент строит список доработок.
// Форма стабильна и не должна меняться.
type SOPRequirementsDetails struct {
	MissingSteps       []string             `json:"missingSteps"`
	MissingPhotos      []MissingPhotos      `json:"missingPhotos"`
	MissingCheckpoints []MissingCheckpoints `json:"missingCheckpoints"`
	MissingInspections []string             `json:"missingInspections"`
}

func (d SOPRequirementsDetails) Empty() bool {
	return len(d.MissingSteps) == 0
}

// BuildRequirementsDetails раскладывает незавершённые обязательные шаги по корзинам
func BuildRequirementsDetails(template model.SOPTemplate, checklist []model.SOPChecklistEntry) SOPRequirementsDetails {
	details := SOPRequirementsDetails{
		MissingSteps:       []string{},
		MissingPhotos:      []MissingPhotos{},
		MissingCheckpoints: []MissingCheckpoints{},
		MissingInspections: []string{},
	}

	entries := make(map[string]model.SOPChecklistEntry, len(checklist))
	for _, entry := range checklist {
		entries[entry.StepID] = entry
	}

	for _, step := range sop.IncompleteRequiredSteps(template, checklist) {
		details.MissingSteps = append(details.MissingSteps, step.Name)
		if step.IsInspection() {
			details.MissingInspections = append(details.MissingInspections, step.Name)
		}

		shortfall := sop.StepShortfall(step, entries[step.ID])
		if shortfall.PhotosMissing() {
			details.MissingPhotos = append(details.MissingPhotos, MissingPhotos{
				StepID:   step.ID,
				StepName: step.Name,
				Required: shortfall.RequiredPhotos,
				Captured: shortfall.CapturedPhotos,
			})
		}
		if shortfall.CheckpointsMissing() {
			details.MissingCheckpoints = append(details.MissingCheckpoints, MissingCheckpoints{
				StepID:      step.ID,
				StepName:    step.Name,
				Checkpoints: shortfall.MissingCheckpoints,
			})
		}
	}

	return details
}

type SOPRequirementsError struct {
	Details SOPRequirementsDetails
}

func (e *SOPRequirementsError) Error() string {
	return fmt.Sprintf("%s: %s", ErrSOPRequirementsNotMet, strings.Join(e.Details.MissingSteps, ", "))
}

func (e *SOPRequirementsError) Unwrap() error {
	return ErrSOPRequirementsNotMet
}

func (e *SOPRequirementsError) Code() string {
	return CodeSOPRequirementsNotMet
}

// StepRequirementsError шаг нельзя отметить выполненным. Kind равен
// ErrPhotosRequired либо ErrCheckpointsRequired.
type StepRequirementsError struct {
	Kind      error
	StepID    string
	StepName  string
	Shortfall sop.Shortfall
}

func newStepRequirementsError(step model.SOPStep, shortfall sop.Shortfall) *StepRequirementsError {
	kind := ErrCheckpointsRequired
	// при нехватке и фото, и чекпоинтов сообщаем о фото
	if shortfall.PhotosMissing() {
		kind = ErrPhotosRequired
	}
	return &StepRequirementsError{
		Kind:      kind,
		StepID:    step.ID,
		StepName:  step.Name,
		Shortfall: shortfall,
	}
}

func (e *StepRequirementsError) Error() string {
	if errors.Is(e.Kind, ErrPhotosRequired) {
		return fmt.Sprintf("%s: step %q has %d of %d", e.Kind, e.StepName, e.Shortfall.CapturedPhotos, e.Shortfall.RequiredPhotos)
	}
	return fmt.Sprintf("%s: step %q missing %s", e.Kind, e.StepName, strings.Join(e.Shortfall.MissingCheckpoints, ", "))
}

func (e *StepRequirementsError) Unwrap() error {
	return e.Kind
}

func (e *StepRequirementsError) Code() string {
	if errors.Is(e.Kind, ErrPhotosRequired) {
		return CodePhotosRequired
	}
	return CodeCheckpointsRequired
}

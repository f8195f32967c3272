package service

import (
	"fmt"
	"strings"
	"time"

	"jobcard-service/internal/model"
	"jobcard-service/internal/sop"
)

// StatusTransitionEngine двигает заказ-наряд ровно на одну стадию вперёд.
// Обход снимает только проверку СОП, порядок стадий не меняется.
type StatusTransitionEngine struct {
	auditor *OverrideAuditor
}

func NewStatusTransitionEngine(auditor *OverrideAuditor) *StatusTransitionEngine {
	return &StatusTransitionEngine{auditor: auditor}
}

type AdvanceCheck struct {
	Allowed    bool                   `json:"canAdvance"`
	Reason     string                 `json:"reason,omitempty"`
	Incomplete []model.SOPStep        `json:"-"`
	Details    SOPRequirementsDetails `json:"-"`
}

type AdvanceRequest struct {
	// Target пустой означает следующую стадию
	Target         model.ServiceStatus
	Override       bool
	OverrideReason string
	Actor          model.Principal
}

func (r AdvanceRequest) overrideSupplied() bool {
	return r.Override || strings.TrimSpace(r.OverrideReason) != ""
}

type AdvanceResult struct {
	From     model.ServiceStatus
	To       model.ServiceStatus
	Override *model.OverrideRecord
}

func (e *StatusTransitionEngine) Next(status model.ServiceStatus) (model.ServiceStatus, bool) {
	return status.Next()
}

// CanAdvance без шаблона переход разрешён всегда
func (e *StatusTransitionEngine) CanAdvance(jobCard *model.JobCard, template *model.SOPTemplate) AdvanceCheck {
	if template == nil {
		return AdvanceCheck{Allowed: true}
	}

	incomplete := sop.IncompleteRequiredSteps(*template, jobCard.SOPChecklists)
	if len(incomplete) == 0 {
		return AdvanceCheck{Allowed: true}
	}

	return AdvanceCheck{
		Allowed:    false,
		Reason:     fmt.Sprintf("%d required sop steps incomplete", len(incomplete)),
		Incomplete: incomplete,
		Details:    BuildRequirementsDetails(*template, jobCard.SOPChecklists),
	}
}

// Advance меняет статус переданного заказ-наряда. Сохранение и запись обхода
// выполняет вызывающий в одной транзакции.
func (e *StatusTransitionEngine) Advance(
	jobCard *model.JobCard,
	template *model.SOPTemplate,
	req AdvanceRequest,
	now time.Time,
) (*AdvanceResult, error) {
	from := jobCard.ServiceStatus.Normalize()
	if !from.Valid() {
		return nil, fmt.Errorf("%w: unknown current status %q", ErrInvalidTransition, jobCard.ServiceStatus)
	}
	target, ok := e.Next(from)
	if !ok {
		return nil, ErrAlreadyTerminal
	}
	if req.Target != "" && req.Target.Normalize() != target {
		return nil, fmt.Errorf("%w: %s -> %s, expected %s", ErrInvalidTransition, from, req.Target, target)
	}

	result := &AdvanceResult{From: from, To: target}

	check := e.CanAdvance(jobCard, template)
	if !check.Allowed {
		if !req.overrideSupplied() {
			return nil, &SOPRequirementsError{Details: check.Details}
		}
		if err := e.auditor.Authorize(req.Actor); err != nil {
			return nil, err
		}
		reason, err := e.auditor.Validate(req.OverrideReason)
		if err != nil {
			return nil, err
		}
		result.Override = e.auditor.NewRecord(jobCard.ID, from, target, reason, check.Incomplete, req.Actor, now)
	}

	jobCard.ServiceStatus = target
	return result, nil
}

package service

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"jobcard-service/internal/model"
)

// DefaultMinOverrideReasonLength нижняя граница длины причины; настройка может её только поднять
const DefaultMinOverrideReasonLength = 10

// OverrideAuditor проверяет и сохраняет обходы СОП. Записи только добавляются.
type OverrideAuditor struct {
	store           OverrideStore
	minReasonLength int
	allowedRoles    []model.UserRole
}

func NewOverrideAuditor(store OverrideStore, minReasonLength int, allowedRoles []model.UserRole) *OverrideAuditor {
	if minReasonLength < DefaultMinOverrideReasonLength {
		minReasonLength = DefaultMinOverrideReasonLength
	}
	return &OverrideAuditor{
		store:           store,
		minReasonLength: minReasonLength,
		allowedRoles:    allowedRoles,
	}
}

// Validate возвращает причину без пробелов по краям
func (a *OverrideAuditor) Validate(reason string) (string, error) {
	trimmed := strings.TrimSpace(reason)
	if trimmed == "" {
		return "", ErrReasonRequired
	}
	if utf8.RuneCountInString(trimmed) < a.minReasonLength {
		return "", fmt.Errorf("%w: at least %d characters", ErrReasonTooShort, a.minReasonLength)
	}
	return trimmed, nil
}

// Authorize пустой список ролей разрешает обход всем
func (a *OverrideAuditor) Authorize(principal model.Principal) error {
	if len(a.allowedRoles) == 0 || principal.HasRole(a.allowedRoles...) {
		return nil
	}
	return fmt.Errorf("%w: role %q cannot override sop requirements", ErrPermissionDenied, principal.Role)
}

func (a *OverrideAuditor) NewRecord(
	jobCardID uuid.UUID,
	from, to model.ServiceStatus,
	reason string,
	bypassed []model.SOPStep,
	actor model.Principal,
	now time.Time,
) *model.OverrideRecord {
	stepIDs := make(datatypes.JSONSlice[string], 0, len(bypassed))
	for _, step := range bypassed {
		stepIDs = append(stepIDs, step.ID)
	}

	return &model.OverrideRecord{
		ID:              uuid.New(),
		JobCardID:       jobCardID,
		FromStatus:      from,
		ToStatus:        to,
		Reason:          reason,
		BypassedStepIDs: stepIDs,
		ActorUserID:     actor.UserID,
		ActorRole:       string(actor.Role),
		Timestamp:       now,
	}
}

func (a *OverrideAuditor) Record(ctx context.Context, record *model.OverrideRecord) error {
	if err := a.store.Create(ctx, record); err != nil {
		return fmt.Errorf("record override: %w", err)
	}
	return nil
}

func (a *OverrideAuditor) List(ctx context.Context, jobCardID uuid.UUID) ([]model.OverrideRecord, error) {
	return a.store.ListByJobCardID(ctx, jobCardID)
}

package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"jobcard-service/internal/model"
	"jobcard-service/internal/repository"
	"jobcard-service/internal/sop"
	"jobcard-service/internal/utils"
)

// WorkflowService операции над заказ-нарядом и его чек-листом СОП.
// Каждая изменяющая операция выполняется под блокировкой заказ-наряда
// и в одной транзакции.
type WorkflowService struct {
	jobCards JobCardStore
	tx       Transactor
	registry *sop.Registry
	auditor  *OverrideAuditor
	engine   *StatusTransitionEngine
	ledger   PhotoEvidenceLedger
	blobs    BlobStore
	locks    *jobCardLocks
	log      zerolog.Logger
	now      func() time.Time
}

func NewWorkflowService(
	jobCards JobCardStore,
	tx Transactor,
	registry *sop.Registry,
	auditor *OverrideAuditor,
	blobs BlobStore,
	log zerolog.Logger,
) *WorkflowService {
	return &WorkflowService{
		jobCards: jobCards,
		tx:       tx,
		registry: registry,
		auditor:  auditor,
		engine:   NewStatusTransitionEngine(auditor),
		blobs:    blobs,
		locks:    newJobCardLocks(),
		log:      log,
		now:      time.Now,
	}
}

type CreateJobCardInput struct {
	SOPTemplateID   string
	PromisedReadyAt *time.Time
	PaymentStatus   string
}

type JobCardListInput struct {
	Status  string
	Overdue bool
}

type CapturePhotoInput struct {
	BlobURL   string
	MediaType string
}

type UploadMediaInput struct {
	Filename    string
	ContentType string
	Size        int64
	Body        io.Reader
	MediaType   string
}

type AdvanceStageInput struct {
	Status         string
	Override       bool
	OverrideReason string
}

// ChecklistUpdate результат операции над шагом
type ChecklistUpdate struct {
	JobCard       *model.JobCard
	Entry         model.SOPChecklistEntry
	AutoCompleted bool
}

type ProgressSummary struct {
	Progress                decimal.Decimal `json:"progress"`
	RequiredCompleted       int             `json:"requiredCompleted"`
	RequiredTotal           int             `json:"requiredTotal"`
	IncompleteRequiredSteps []model.SOPStep `json:"incompleteRequiredSteps"`
}

func (s *WorkflowService) ListTemplates() []model.SOPTemplate {
	return s.registry.List()
}

func (s *WorkflowService) GetTemplate(templateID string) (*model.SOPTemplate, error) {
	template, err := s.registry.Get(strings.TrimSpace(templateID))
	if err != nil {
		if errors.Is(err, sop.ErrTemplateNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrTemplateNotFound, templateID)
		}
		return nil, err
	}
	return &template, nil
}

func (s *WorkflowService) CreateJobCard(ctx context.Context, principal model.Principal, input CreateJobCardInput) (*model.JobCard, error) {
	paymentStatus := model.PaymentStatusPending
	if raw := utils.NormalizeKey(input.PaymentStatus); raw != "" {
		paymentStatus = model.PaymentStatus(raw)
		switch paymentStatus {
		case model.PaymentStatusPending, model.PaymentStatusPartial, model.PaymentStatusPaid:
		default:
			return nil, fmt.Errorf("%w: unknown payment status %q", ErrInvalidInput, input.PaymentStatus)
		}
	}

	jobCard := &model.JobCard{
		ID:              uuid.New(),
		ServiceStatus:   model.ServiceStatusCheckIn,
		SOPChecklists:   []model.SOPChecklistEntry{},
		SOPProgress:     decimal.Zero,
		PromisedReadyAt: input.PromisedReadyAt,
		PaymentStatus:   paymentStatus,
		CreatedByUserID: principal.UserID,
		Version:         1,
	}

	if templateID := strings.TrimSpace(input.SOPTemplateID); templateID != "" {
		template, err := s.GetTemplate(templateID)
		if err != nil {
			return nil, err
		}
		jobCard.SOPTemplateID = &template.ID
		jobCard.SOPChecklists = sop.BuildChecklist(jobCard.ID, *template)
	}

	if err := s.jobCards.Create(ctx, jobCard); err != nil {
		return nil, err
	}

	return jobCard, nil
}

func (s *WorkflowService) Get(ctx context.Context, id string) (*model.JobCard, error) {
	jobCardID, err := parseJobCardID(id)
	if err != nil {
		return nil, err
	}
	return s.load(ctx, jobCardID)
}

func (s *WorkflowService) List(ctx context.Context, input JobCardListInput) ([]model.JobCard, error) {
	filter := repository.JobCardListFilter{}

	if strings.TrimSpace(input.Status) != "" {
		status, ok := model.ParseServiceStatus(input.Status)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidInput, input.Status)
		}
		status = status.Normalize()
		filter.Status = &status
	}
	if input.Overdue {
		now := s.now()
		filter.OverdueAt = &now
	}

	return s.jobCards.List(ctx, filter)
}

// AssignTemplate повторное назначение того же шаблона ничего не меняет
func (s *WorkflowService) AssignTemplate(ctx context.Context, id, templateID string) (*model.JobCard, error) {
	jobCardID, err := parseJobCardID(id)
	if err != nil {
		return nil, err
	}
	template, err := s.GetTemplate(templateID)
	if err != nil {
		return nil, err
	}

	return s.withJobCard(ctx, jobCardID, func(ctx context.Context, jobCard *model.JobCard) error {
		if len(jobCard.SOPChecklists) > 0 {
			if jobCard.HasTemplate() && *jobCard.SOPTemplateID == template.ID {
				return nil
			}
			return fmt.Errorf("%w: job card %s already uses %s", ErrTemplateAlreadyAssigned, jobCard.ID, templateIDOf(jobCard))
		}

		jobCard.SOPTemplateID = &template.ID
		jobCard.SOPChecklists = sop.BuildChecklist(jobCard.ID, *template)
		jobCard.SOPProgress = decimal.Zero

		return s.save(ctx, jobCard)
	})
}

// ToggleStep отметка выполнения требует всех фото и чекпоинтов шага; снять отметку можно всегда
func (s *WorkflowService) ToggleStep(ctx context.Context, id, stepID string, completed bool) (*ChecklistUpdate, error) {
	jobCardID, err := parseJobCardID(id)
	if err != nil {
		return nil, err
	}

	update := &ChecklistUpdate{}
	jobCard, err := s.withJobCard(ctx, jobCardID, func(ctx context.Context, jobCard *model.JobCard) error {
		template, step, entry, err := s.resolveStep(jobCard, stepID)
		if err != nil {
			return err
		}

		if entry.Completed == completed {
			update.Entry = entry.Clone()
			return nil
		}

		if completed {
			if shortfall := sop.StepShortfall(step, *entry); !shortfall.Satisfied() {
				return newStepRequirementsError(step, shortfall)
			}
			sop.CompleteEntry(entry, s.now())
		} else {
			sop.ReopenEntry(entry)
		}

		jobCard.SOPProgress = sop.ComputeProgress(*template, jobCard.SOPChecklists)
		update.Entry = entry.Clone()
		return s.save(ctx, jobCard)
	})
	if err != nil {
		return nil, err
	}

	update.JobCard = jobCard
	return update, nil
}

// ToggleCheckpoint отмеченные чекпоинты хранятся в порядке шаблона
func (s *WorkflowService) ToggleCheckpoint(ctx context.Context, id, stepID, checkpoint string, completed bool) (*ChecklistUpdate, error) {
	jobCardID, err := parseJobCardID(id)
	if err != nil {
		return nil, err
	}

	update := &ChecklistUpdate{}
	jobCard, err := s.withJobCard(ctx, jobCardID, func(ctx context.Context, jobCard *model.JobCard) error {
		_, step, entry, err := s.resolveStep(jobCard, stepID)
		if err != nil {
			return err
		}
		if !step.HasCheckpoint(checkpoint) {
			return fmt.Errorf("%w: %q in step %s", ErrCheckpointNotFound, checkpoint, step.ID)
		}

		if entry.HasCheckpoint(checkpoint) == completed {
			update.Entry = entry.Clone()
			return nil
		}

		ticked := make([]string, 0, len(step.Checkpoints))
		for _, c := range step.Checkpoints {
			if c == checkpoint {
				if completed {
					ticked = append(ticked, c)
				}
				continue
			}
			if entry.HasCheckpoint(c) {
				ticked = append(ticked, c)
			}
		}
		entry.CompletedCheckpoints = ticked

		update.Entry = entry.Clone()
		return s.save(ctx, jobCard)
	})
	if err != nil {
		return nil, err
	}

	update.JobCard = jobCard
	return update, nil
}

// CapturePhoto добавляет доказательство и закрывает шаг, как только его требования выполнены
func (s *WorkflowService) CapturePhoto(ctx context.Context, id, stepID string, input CapturePhotoInput) (*ChecklistUpdate, error) {
	jobCardID, err := parseJobCardID(id)
	if err != nil {
		return nil, err
	}
	mediaType, err := ParseMediaType(input.MediaType)
	if err != nil {
		return nil, err
	}

	update := &ChecklistUpdate{}
	jobCard, err := s.withJobCard(ctx, jobCardID, func(ctx context.Context, jobCard *model.JobCard) error {
		template, step, _, err := s.resolveStep(jobCard, stepID)
		if err != nil {
			return err
		}

		now := s.now()
		entry, _, err := s.ledger.Attach(jobCard, step.ID, input.BlobURL, mediaType, now)
		if err != nil {
			return err
		}

		if !entry.Completed && sop.StepSatisfiesRequirements(step, *entry) {
			update.AutoCompleted = sop.CompleteEntry(entry, now)
		}
		jobCard.SOPProgress = sop.ComputeProgress(*template, jobCard.SOPChecklists)

		update.Entry = entry.Clone()
		return s.save(ctx, jobCard)
	})
	if err != nil {
		return nil, err
	}

	if update.AutoCompleted {
		s.log.Debug().
			Str("job_card_id", jobCardID.String()).
			Str("step_id", stepID).
			Msg("sop step auto-completed on capture")
	}

	update.JobCard = jobCard
	return update, nil
}

// UploadMedia кладёт файл в хранилище и прикрепляет его URL к шагу.
// Ошибка хранилища возвращается как есть и не превращается в ошибку проверки СОП.
func (s *WorkflowService) UploadMedia(ctx context.Context, id, stepID string, input UploadMediaInput) (*ChecklistUpdate, error) {
	if s.blobs == nil {
		return nil, errors.New("blob store is not configured")
	}
	if input.Body == nil {
		return nil, fmt.Errorf("%w: file is required", ErrInvalidInput)
	}

	mediaType, err := ParseMediaType(input.MediaType)
	if err != nil {
		return nil, err
	}

	jobCard, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if _, _, _, err := s.resolveStep(jobCard, stepID); err != nil {
		return nil, err
	}

	key := path.Join("job-cards", jobCard.ID.String(), stepID, uuid.NewString()+strings.ToLower(path.Ext(input.Filename)))
	url, err := s.blobs.Put(ctx, key, input.Body, input.Size, input.ContentType)
	if err != nil {
		return nil, fmt.Errorf("upload media: %w", err)
	}

	update, err := s.CapturePhoto(ctx, id, stepID, CapturePhotoInput{
		BlobURL:   url,
		MediaType: string(mediaType),
	})
	if err != nil {
		// файл уже в хранилище, но к шагу не привязан
		s.log.Warn().
			Err(err).
			Str("job_card_id", jobCard.ID.String()).
			Str("step_id", stepID).
			Str("blob_key", key).
			Str("blob_url", url).
			Msg("uploaded media left unattached")
		return nil, err
	}
	return update, nil
}

func (s *WorkflowService) CanAdvance(ctx context.Context, id string) (*AdvanceCheck, error) {
	jobCard, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	template, err := s.templateFor(jobCard)
	if err != nil {
		return nil, err
	}

	check := s.engine.CanAdvance(jobCard, template)
	return &check, nil
}

// AdvanceStage переход и запись обхода сохраняются в одной транзакции
func (s *WorkflowService) AdvanceStage(ctx context.Context, principal model.Principal, id string, input AdvanceStageInput) (*model.JobCard, error) {
	jobCardID, err := parseJobCardID(id)
	if err != nil {
		return nil, err
	}

	req := AdvanceRequest{
		Override:       input.Override,
		OverrideReason: input.OverrideReason,
		Actor:          principal,
	}
	if strings.TrimSpace(input.Status) != "" {
		target, ok := model.ParseServiceStatus(input.Status)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidTransition, input.Status)
		}
		req.Target = target
	}

	var result *AdvanceResult
	jobCard, err := s.withJobCard(ctx, jobCardID, func(ctx context.Context, jobCard *model.JobCard) error {
		template, err := s.templateFor(jobCard)
		if err != nil {
			return err
		}

		result, err = s.engine.Advance(jobCard, template, req, s.now())
		if err != nil {
			return err
		}

		if err := s.save(ctx, jobCard); err != nil {
			return err
		}
		if result.Override != nil {
			return s.auditor.Record(ctx, result.Override)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	if result.Override != nil {
		s.log.Warn().
			Str("job_card_id", jobCard.ID.String()).
			Str("from", string(result.From)).
			Str("to", string(result.To)).
			Str("actor_user_id", principal.UserID.String()).
			Str("actor_role", string(principal.Role)).
			Strs("bypassed_step_ids", result.Override.BypassedStepIDs).
			Msg("sop requirements overridden")
	}

	return jobCard, nil
}

func (s *WorkflowService) Progress(ctx context.Context, id string) (*ProgressSummary, error) {
	jobCard, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	template, err := s.templateFor(jobCard)
	if err != nil {
		return nil, err
	}

	summary := &ProgressSummary{
		Progress:                decimal.Zero,
		IncompleteRequiredSteps: []model.SOPStep{},
	}
	if template == nil {
		return summary, nil
	}

	status := sop.RequiredStepStatus(*template, jobCard.SOPChecklists)
	summary.Progress = sop.ComputeProgress(*template, jobCard.SOPChecklists)
	summary.RequiredCompleted = status.Completed
	summary.RequiredTotal = status.Total
	summary.IncompleteRequiredSteps = sop.IncompleteRequiredSteps(*template, jobCard.SOPChecklists)

	return summary, nil
}

func (s *WorkflowService) ListOverrides(ctx context.Context, id string) ([]model.OverrideRecord, error) {
	jobCard, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.auditor.List(ctx, jobCard.ID)
}

// withJobCard читает свежую копию под блокировкой; fn меняет копию и сохраняет её сам
func (s *WorkflowService) withJobCard(ctx context.Context, id uuid.UUID, fn func(ctx context.Context, jobCard *model.JobCard) error) (*model.JobCard, error) {
	unlock := s.locks.Lock(id)
	defer unlock()

	var updated *model.JobCard
	err := s.tx.WithinTransaction(ctx, func(ctx context.Context) error {
		current, err := s.load(ctx, id)
		if err != nil {
			return err
		}

		jobCard := current.Clone()
		if err := fn(ctx, jobCard); err != nil {
			return err
		}

		updated = jobCard
		return nil
	})
	if err != nil {
		return nil, err
	}

	return updated, nil
}

func (s *WorkflowService) load(ctx context.Context, id uuid.UUID) (*model.JobCard, error) {
	jobCard, err := s.jobCards.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrJobCardNotFound, id)
		}
		return nil, err
	}
	return jobCard, nil
}

func (s *WorkflowService) save(ctx context.Context, jobCard *model.JobCard) error {
	if err := s.jobCards.Save(ctx, jobCard); err != nil {
		if errors.Is(err, repository.ErrVersionConflict) {
			return fmt.Errorf("%w: job card %s was modified concurrently", ErrConflict, jobCard.ID)
		}
		return err
	}
	return nil
}

func (s *WorkflowService) templateFor(jobCard *model.JobCard) (*model.SOPTemplate, error) {
	if !jobCard.HasTemplate() {
		return nil, nil
	}
	return s.GetTemplate(*jobCard.SOPTemplateID)
}

func (s *WorkflowService) resolveStep(jobCard *model.JobCard, stepID string) (*model.SOPTemplate, model.SOPStep, *model.SOPChecklistEntry, error) {
	stepID = strings.TrimSpace(stepID)

	template, err := s.templateFor(jobCard)
	if err != nil {
		return nil, model.SOPStep{}, nil, err
	}
	if template == nil {
		return nil, model.SOPStep{}, nil, fmt.Errorf("%w: job card has no sop template", ErrStepNotFound)
	}

	step, ok := template.Step(stepID)
	if !ok {
		return nil, model.SOPStep{}, nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}
	entry, ok := jobCard.Entry(stepID)
	if !ok {
		return nil, model.SOPStep{}, nil, fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}

	return template, step, entry, nil
}

func parseJobCardID(raw string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(raw))
	if err != nil {
		return uuid.Nil, fmt.Errorf("%w: invalid job card id", ErrInvalidInput)
	}
	return id, nil
}

func templateIDOf(jobCard *model.JobCard) string {
	if jobCard.HasTemplate() {
		return *jobCard.SOPTemplateID
	}
	return "unknown template"
}

package http

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"jobcard-service/internal/http/middleware"
	"jobcard-service/internal/model"
	"jobcard-service/internal/service"
)

const (
	maxMediaUploadBytes = 50 << 20
	// заголовки multipart и поле media_type сверх самого файла
	multipartOverheadBytes = 1 << 20
)

// WorkflowService операции заказ-наряда, которые публикует API
type WorkflowService interface {
	ListTemplates() []model.SOPTemplate
	GetTemplate(templateID string) (*model.SOPTemplate, error)
	CreateJobCard(ctx context.Context, principal model.Principal, input service.CreateJobCardInput) (*model.JobCard, error)
	Get(ctx context.Context, id string) (*model.JobCard, error)
	List(ctx context.Context, input service.JobCardListInput) ([]model.JobCard, error)
	AssignTemplate(ctx context.Context, id, templateID string) (*model.JobCard, error)
	ToggleStep(ctx context.Context, id, stepID string, completed bool) (*service.ChecklistUpdate, error)
	ToggleCheckpoint(ctx context.Context, id, stepID, checkpoint string, completed bool) (*service.ChecklistUpdate, error)
	CapturePhoto(ctx context.Context, id, stepID string, input service.CapturePhotoInput) (*service.ChecklistUpdate, error)
	UploadMedia(ctx context.Context, id, stepID string, input service.UploadMediaInput) (*service.ChecklistUpdate, error)
	CanAdvance(ctx context.Context, id string) (*service.AdvanceCheck, error)
	AdvanceStage(ctx context.Context, principal model.Principal, id string, input service.AdvanceStageInput) (*model.JobCard, error)
	Progress(ctx context.Context, id string) (*service.ProgressSummary, error)
	ListOverrides(ctx context.Context, id string) ([]model.OverrideRecord, error)
}

type Handler struct {
	workflow       WorkflowService
	log            zerolog.Logger
	now            func() time.Time
	maxUploadBytes int64
}

func NewHandler(workflow WorkflowService, log zerolog.Logger) *Handler {
	return &Handler{
		workflow:       workflow,
		log:            log,
		now:            time.Now,
		maxUploadBytes: maxMediaUploadBytes,
	}
}

func (h *Handler) Register(r *gin.Engine, authMiddleware gin.HandlerFunc) {
	protected := r.Group("/")
	protected.Use(authMiddleware)

	templates := protected.Group("/sop-templates")
	{
		templates.GET("", h.listTemplates)
		templates.GET("/:id", h.getTemplate)
	}

	jobCards := protected.Group("/job-cards")
	{
		jobCards.POST("", h.createJobCard)
		jobCards.GET("", h.listJobCards)
		jobCards.GET("/:id", h.getJobCard)
		jobCards.PUT("/:id/sop-template", h.assignTemplate)
		jobCards.GET("/:id/sop-progress", h.getProgress)
		// Чек-лист СОП
		jobCards.PUT("/:id/sop/steps/:stepId", h.toggleStep)
		jobCards.PUT("/:id/sop/steps/:stepId/checkpoints", h.toggleCheckpoint)
		jobCards.POST("/:id/sop/steps/:stepId/photos", h.capturePhoto)
		jobCards.POST("/:id/sop/steps/:stepId/media", h.uploadMedia)
		// Стадии
		jobCards.GET("/:id/can-advance", h.canAdvance)
		jobCards.PUT("/:id/status", h.advanceStage)
		jobCards.GET("/:id/overrides", h.listOverrides)
	}
}

type jobCardResponse struct {
	*model.JobCard
	Overdue bool `json:"overdue"`
}

type checklistUpdateResponse struct {
	Entry         model.SOPChecklistEntry `json:"entry"`
	SOPProgress   string                  `json:"sop_progress"`
	AutoCompleted bool                    `json:"auto_completed"`
}

func (h *Handler) jobCardView(jobCard *model.JobCard) jobCardResponse {
	return jobCardResponse{JobCard: jobCard, Overdue: jobCard.IsOverdue(h.now())}
}

func checklistView(update *service.ChecklistUpdate) checklistUpdateResponse {
	return checklistUpdateResponse{
		Entry:         update.Entry,
		SOPProgress:   update.JobCard.SOPProgress.String(),
		AutoCompleted: update.AutoCompleted,
	}
}

func (h *Handler) listTemplates(c *gin.Context) {
	c.JSON(http.StatusOK, successResponse(h.workflow.ListTemplates()))
}

func (h *Handler) getTemplate(c *gin.Context) {
	template, err := h.workflow.GetTemplate(strings.TrimSpace(c.Param("id")))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(template))
}

func (h *Handler) createJobCard(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		SOPTemplateID   string `json:"sop_template_id"`
		PromisedReadyAt string `json:"promised_ready_at"`
		PaymentStatus   string `json:"payment_status"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	input := service.CreateJobCardInput{
		SOPTemplateID: req.SOPTemplateID,
		PaymentStatus: req.PaymentStatus,
	}
	if strings.TrimSpace(req.PromisedReadyAt) != "" {
		promisedReadyAt, err := parseTime(req.PromisedReadyAt)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid promised_ready_at"))
			return
		}
		input.PromisedReadyAt = &promisedReadyAt
	}

	jobCard, err := h.workflow.CreateJobCard(c.Request.Context(), principal, input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(h.jobCardView(jobCard)))
}

func (h *Handler) listJobCards(c *gin.Context) {
	input := service.JobCardListInput{
		Status: c.Query("status"),
	}
	if raw := strings.TrimSpace(c.Query("overdue")); raw != "" {
		overdue, err := strconv.ParseBool(raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, errorResponse("invalid overdue flag"))
			return
		}
		input.Overdue = overdue
	}

	jobCards, err := h.workflow.List(c.Request.Context(), input)
	if err != nil {
		h.handleError(c, err)
		return
	}

	views := make([]jobCardResponse, 0, len(jobCards))
	for i := range jobCards {
		views = append(views, h.jobCardView(&jobCards[i]))
	}

	c.JSON(http.StatusOK, successResponse(views))
}

func (h *Handler) getJobCard(c *gin.Context) {
	jobCard, err := h.workflow.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(h.jobCardView(jobCard)))
}

func (h *Handler) assignTemplate(c *gin.Context) {
	var req struct {
		TemplateID string `json:"template_id" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	jobCard, err := h.workflow.AssignTemplate(c.Request.Context(), c.Param("id"), req.TemplateID)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(h.jobCardView(jobCard)))
}

func (h *Handler) getProgress(c *gin.Context) {
	summary, err := h.workflow.Progress(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(summary))
}

func (h *Handler) toggleStep(c *gin.Context) {
	var req struct {
		Completed *bool `json:"completed" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	update, err := h.workflow.ToggleStep(c.Request.Context(), c.Param("id"), c.Param("stepId"), *req.Completed)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(checklistView(update)))
}

func (h *Handler) toggleCheckpoint(c *gin.Context) {
	var req struct {
		Checkpoint string `json:"checkpoint" binding:"required"`
		Completed  *bool  `json:"completed" binding:"required"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	update, err := h.workflow.ToggleCheckpoint(c.Request.Context(), c.Param("id"), c.Param("stepId"), req.Checkpoint, *req.Completed)
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(checklistView(update)))
}

func (h *Handler) capturePhoto(c *gin.Context) {
	var req struct {
		BlobURL   string `json:"blob_url" binding:"required"`
		MediaType string `json:"media_type"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	update, err := h.workflow.CapturePhoto(c.Request.Context(), c.Param("id"), c.Param("stepId"), service.CapturePhotoInput{
		BlobURL:   req.BlobURL,
		MediaType: req.MediaType,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(checklistView(update)))
}

func (h *Handler) uploadMedia(c *gin.Context) {
	bodyLimit := h.maxUploadBytes + multipartOverheadBytes
	if c.Request.ContentLength > bodyLimit {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse("file is too large"))
		return
	}
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, bodyLimit)

	fileHeader, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, errorResponse("file is too large"))
			return
		}
		c.JSON(http.StatusBadRequest, errorResponse("file is required"))
		return
	}
	if fileHeader.Size > h.maxUploadBytes {
		c.JSON(http.StatusRequestEntityTooLarge, errorResponse("file is too large"))
		return
	}

	file, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorResponse("cannot read file"))
		return
	}
	defer file.Close()

	contentType := fileHeader.Header.Get("Content-Type")
	mediaType := c.PostForm("media_type")
	if mediaType == "" && strings.HasPrefix(contentType, "video/") {
		mediaType = string(model.MediaTypeVideo)
	}

	update, err := h.workflow.UploadMedia(c.Request.Context(), c.Param("id"), c.Param("stepId"), service.UploadMediaInput{
		Filename:    fileHeader.Filename,
		ContentType: contentType,
		Size:        fileHeader.Size,
		Body:        file,
		MediaType:   mediaType,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusCreated, successResponse(checklistView(update)))
}

func (h *Handler) canAdvance(c *gin.Context) {
	check, err := h.workflow.CanAdvance(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(check))
}

func (h *Handler) advanceStage(c *gin.Context) {
	principal, ok := middleware.MustPrincipal(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, errorResponse("missing principal"))
		return
	}

	var req struct {
		Status         string `json:"status"`
		Override       bool   `json:"override"`
		OverrideReason string `json:"override_reason"`
	}

	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
		return
	}

	jobCard, err := h.workflow.AdvanceStage(c.Request.Context(), principal, c.Param("id"), service.AdvanceStageInput{
		Status:         req.Status,
		Override:       req.Override,
		OverrideReason: req.OverrideReason,
	})
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(h.jobCardView(jobCard)))
}

func (h *Handler) listOverrides(c *gin.Context) {
	records, err := h.workflow.ListOverrides(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.handleError(c, err)
		return
	}

	c.JSON(http.StatusOK, successResponse(records))
}

func (h *Handler) handleError(c *gin.Context, err error) {
	var sopErr *service.SOPRequirementsError
	var stepErr *service.StepRequirementsError

	switch {
	case errors.As(err, &sopErr):
		c.JSON(http.StatusConflict, detailedErrorResponse(err.Error(), sopErr.Code(), sopErr.Details))
	case errors.As(err, &stepErr):
		c.JSON(http.StatusUnprocessableEntity, detailedErrorResponse(err.Error(), stepErr.Code(), gin.H{
			"stepId":             stepErr.StepID,
			"stepName":           stepErr.StepName,
			"requiredPhotos":     stepErr.Shortfall.RequiredPhotos,
			"capturedPhotos":     stepErr.Shortfall.CapturedPhotos,
			"missingCheckpoints": stepErr.Shortfall.MissingCheckpoints,
		}))
	case errors.Is(err, service.ErrPermissionDenied):
		c.JSON(http.StatusForbidden, errorResponse(err.Error()))
	case errors.Is(err, service.ErrNotFound):
		c.JSON(http.StatusNotFound, errorResponse(err.Error()))
	case errors.Is(err, service.ErrInvalidInput),
		errors.Is(err, service.ErrReasonRequired),
		errors.Is(err, service.ErrReasonTooShort),
		errors.Is(err, service.ErrInvalidTransition):
		c.JSON(http.StatusBadRequest, errorResponse(err.Error()))
	case errors.Is(err, service.ErrConflict),
		errors.Is(err, service.ErrAlreadyTerminal),
		errors.Is(err, service.ErrTemplateAlreadyAssigned):
		c.JSON(http.StatusConflict, errorResponse(err.Error()))
	default:
		h.log.Error().Err(err).Str("path", c.FullPath()).Msg("handler error")
		c.JSON(http.StatusInternalServerError, errorResponse("internal error"))
	}
}

func successResponse(data interface{}) gin.H {
	return gin.H{
		"data": data,
	}
}

func errorResponse(message string) gin.H {
	return gin.H{
		"error": message,
	}
}

func detailedErrorResponse(message, code string, details interface{}) gin.H {
	return gin.H{
		"error":   message,
		"code":    code,
		"details": details,
	}
}

func parseTime(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04"} {
		if t, err := time.Parse(layout, raw); err == nil {
			return t, nil
		}
	}
	return time.Time{}, errors.New("invalid time format")
}

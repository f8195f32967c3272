package service

import (
	"fmt"
	"strings"
	"time"

	"jobcard-service/internal/model"
	"jobcard-service/internal/utils"
)

// PhotoEvidenceLedger добавляет фото и видео к записи чек-листа.
// Удаления нет, доказательства только накапливаются.
type PhotoEvidenceLedger struct{}

func ParseMediaType(raw string) (model.MediaType, error) {
	mediaType := model.MediaType(utils.NormalizeKey(raw))
	if mediaType == "" {
		return model.MediaTypePhoto, nil
	}
	if !mediaType.Valid() {
		return "", fmt.Errorf("%w: unsupported media type %q", ErrInvalidInput, raw)
	}
	return mediaType, nil
}

// Attach не меняет признак выполнения, это решает вызывающий
func (PhotoEvidenceLedger) Attach(
	jobCard *model.JobCard,
	stepID string,
	blobURL string,
	mediaType model.MediaType,
	now time.Time,
) (*model.SOPChecklistEntry, model.PhotoEvidence, error) {
	blobURL = strings.TrimSpace(blobURL)
	if blobURL == "" {
		return nil, model.PhotoEvidence{}, fmt.Errorf("%w: blob url is required", ErrInvalidInput)
	}
	if !mediaType.Valid() {
		return nil, model.PhotoEvidence{}, fmt.Errorf("%w: unsupported media type %q", ErrInvalidInput, mediaType)
	}

	entry, ok := jobCard.Entry(stepID)
	if !ok {
		return nil, model.PhotoEvidence{}, fmt.Errorf("%w: %s", ErrStepNotFound, stepID)
	}

	evidence := model.PhotoEvidence{
		URL:        blobURL,
		MediaType:  mediaType,
		CapturedAt: now,
	}
	entry.Photos = append(entry.Photos, evidence)

	return entry, evidence, nil
}

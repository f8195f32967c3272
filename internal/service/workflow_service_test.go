package service

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jobcard-service/internal/model"
	"jobcard-service/internal/repository"
)

func TestCreateJobCard(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	t.Run("without template", func(t *testing.T) {
		jobCard, err := f.service.CreateJobCard(ctx, technician(), CreateJobCardInput{})
		require.NoError(t, err)
		assert.Equal(t, model.ServiceStatusCheckIn, jobCard.ServiceStatus)
		assert.Equal(t, model.PaymentStatusPending, jobCard.PaymentStatus)
		assert.False(t, jobCard.HasTemplate())
		assert.Empty(t, jobCard.SOPChecklists)
	})

	t.Run("with template", func(t *testing.T) {
		jobCard, err := f.service.CreateJobCard(ctx, technician(), CreateJobCardInput{SOPTemplateID: "three-step", PaymentStatus: "Partial"})
		require.NoError(t, err)
		require.Len(t, jobCard.SOPChecklists, 3)
		assert.Equal(t, model.PaymentStatusPartial, jobCard.PaymentStatus)
		assert.True(t, jobCard.SOPProgress.IsZero())
		for _, entry := range jobCard.SOPChecklists {
			assert.Equal(t, jobCard.ID, entry.JobCardID)
		}
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := f.service.CreateJobCard(ctx, technician(), CreateJobCardInput{SOPTemplateID: "missing"})
		assert.ErrorIs(t, err, ErrTemplateNotFound)
		assert.ErrorIs(t, err, ErrNotFound)
	})

	t.Run("unknown payment status", func(t *testing.T) {
		_, err := f.service.CreateJobCard(ctx, technician(), CreateJobCardInput{PaymentStatus: "barter"})
		assert.ErrorIs(t, err, ErrInvalidInput)
	})
}

func TestGetJobCard(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	_, err := f.service.Get(ctx, "not-a-uuid")
	assert.ErrorIs(t, err, ErrInvalidInput)

	_, err = f.service.Get(ctx, uuid.NewString())
	assert.ErrorIs(t, err, ErrJobCardNotFound)
}

func TestGetNormalizesLegacyInspectStatus(t *testing.T) {
	f := newWorkflowFixture(t)
	jobCard := f.createJobCard(t, "")

	f.store.jobCards[jobCard.ID].ServiceStatus = model.ServiceStatusInspect

	reloaded := f.reload(t, jobCard)
	assert.Equal(t, model.ServiceStatusPrep, reloaded.ServiceStatus)

	advanced, err := f.service.AdvanceStage(context.Background(), technician(), jobCard.ID.String(), AdvanceStageInput{})
	require.NoError(t, err)
	assert.Equal(t, model.ServiceStatusService, advanced.ServiceStatus)
}

func TestListJobCards(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	past := f.now.Add(-time.Hour)
	future := f.now.Add(time.Hour)

	overdue, err := f.service.CreateJobCard(ctx, technician(), CreateJobCardInput{PromisedReadyAt: &past})
	require.NoError(t, err)
	_, err = f.service.CreateJobCard(ctx, technician(), CreateJobCardInput{PromisedReadyAt: &future})
	require.NoError(t, err)
	advanced := f.createJobCard(t, "")
	_, err = f.service.AdvanceStage(ctx, technician(), advanced.ID.String(), AdvanceStageInput{})
	require.NoError(t, err)

	all, err := f.service.List(ctx, JobCardListInput{})
	require.NoError(t, err)
	assert.Len(t, all, 3)

	late, err := f.service.List(ctx, JobCardListInput{Overdue: true})
	require.NoError(t, err)
	require.Len(t, late, 1)
	assert.Equal(t, overdue.ID, late[0].ID)

	prep, err := f.service.List(ctx, JobCardListInput{Status: "PREP"})
	require.NoError(t, err)
	require.Len(t, prep, 1)
	assert.Equal(t, advanced.ID, prep[0].ID)

	_, err = f.service.List(ctx, JobCardListInput{Status: "washing"})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestAssignTemplate(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	jobCard := f.createJobCard(t, "")

	assigned, err := f.service.AssignTemplate(ctx, jobCard.ID.String(), "exterior-wash")
	require.NoError(t, err)
	require.True(t, assigned.HasTemplate())
	assert.Equal(t, "exterior-wash", *assigned.SOPTemplateID)
	require.Len(t, assigned.SOPChecklists, 6)
	for i, entry := range assigned.SOPChecklists {
		assert.Equal(t, i, entry.Position)
		assert.False(t, entry.Completed)
		assert.Empty(t, entry.Photos)
		assert.Empty(t, entry.CompletedCheckpoints)
	}
	assert.True(t, assigned.SOPProgress.IsZero())

	t.Run("same template is a no-op", func(t *testing.T) {
		again, err := f.service.AssignTemplate(ctx, jobCard.ID.String(), "exterior-wash")
		require.NoError(t, err)
		assert.Equal(t, assigned.Version, again.Version)
	})

	t.Run("different template is rejected", func(t *testing.T) {
		_, err := f.service.AssignTemplate(ctx, jobCard.ID.String(), "interior-detail")
		assert.ErrorIs(t, err, ErrTemplateAlreadyAssigned)
		assert.Equal(t, "exterior-wash", *f.reload(t, jobCard).SOPTemplateID)
	})

	t.Run("unknown template", func(t *testing.T) {
		_, err := f.service.AssignTemplate(ctx, jobCard.ID.String(), "missing")
		assert.ErrorIs(t, err, ErrTemplateNotFound)
	})

	t.Run("unknown job card", func(t *testing.T) {
		_, err := f.service.AssignTemplate(ctx, uuid.NewString(), "exterior-wash")
		assert.ErrorIs(t, err, ErrJobCardNotFound)
	})
}

func TestToggleStepRequiresPhotos(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	jobCard := f.createJobCard(t, "three-step")

	_, err := f.service.ToggleStep(ctx, jobCard.ID.String(), "photos", true)
	require.ErrorIs(t, err, ErrPhotosRequired)

	var stepErr *StepRequirementsError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, "photos", stepErr.StepID)
	assert.Equal(t, 2, stepErr.Shortfall.RequiredPhotos)
	assert.Equal(t, 0, stepErr.Shortfall.CapturedPhotos)
	assert.Equal(t, CodePhotosRequired, stepErr.Code())

	// видео тоже считается доказательством
	_, err = f.service.CapturePhoto(ctx, jobCard.ID.String(), "photos", CapturePhotoInput{BlobURL: "https://blobs.test/a.mp4", MediaType: "video"})
	require.NoError(t, err)

	_, err = f.service.ToggleStep(ctx, jobCard.ID.String(), "photos", true)
	assert.ErrorIs(t, err, ErrPhotosRequired)
}

func TestToggleStepRequiresCheckpoints(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	jobCard := f.createJobCard(t, "three-step")

	_, err := f.service.ToggleStep(ctx, jobCard.ID.String(), "checks", true)
	require.ErrorIs(t, err, ErrCheckpointsRequired)

	var stepErr *StepRequirementsError
	require.True(t, errors.As(err, &stepErr))
	assert.Equal(t, []string{"Keys logged"}, stepErr.Shortfall.MissingCheckpoints)
	assert.Equal(t, CodeCheckpointsRequired, stepErr.Code())

	_, err = f.service.ToggleCheckpoint(ctx, jobCard.ID.String(), "checks", "Keys logged", true)
	require.NoError(t, err)

	update, err := f.service.ToggleStep(ctx, jobCard.ID.String(), "checks", true)
	require.NoError(t, err)
	assert.True(t, update.Entry.Completed)
	require.NotNil(t, update.Entry.CompletedAt)
	assert.Equal(t, f.now, *update.Entry.CompletedAt)
	assert.Equal(t, int64(33), update.JobCard.SOPProgress.IntPart())
}

func TestToggleStepReopenAlwaysAllowed(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	jobCard := f.createJobCard(t, "three-step")

	_, err := f.service.ToggleStep(ctx, jobCard.ID.String(), "vacuum", true)
	require.NoError(t, err)

	update, err := f.service.ToggleStep(ctx, jobCard.ID.String(), "vacuum", false)
	require.NoError(t, err)
	assert.False(t, update.Entry.Completed)
	assert.Nil(t, update.Entry.CompletedAt)
	assert.True(t, update.JobCard.SOPProgress.IsZero())
}

func TestToggleStepOptionalStepStillNeedsEvidence(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	jobCard := f.createJobCard(t, "ceramic-coating")

	_, err := f.service.ToggleStep(ctx, jobCard.ID.String(), "existing-damage", true)
	assert.ErrorIs(t, err, ErrPhotosRequired)
}

func TestToggleStepUnknownStep(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()

	withTemplate := f.createJobCard(t, "three-step")
	_, err := f.service.ToggleStep(ctx, withTemplate.ID.String(), "polish", true)
	assert.ErrorIs(t, err, ErrStepNotFound)

	withoutTemplate := f.createJobCard(t, "")
	_, err = f.service.ToggleStep(ctx, withoutTemplate.ID.String(), "photos", true)
	assert.ErrorIs(t, err, ErrStepNotFound)
}

func TestToggleCheckpoint(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	jobCard := f.createJobCard(t, "exterior-wash")
	id := jobCard.ID.String()

	for _, checkpoint := range []string{"Glass", "Wheels and tyres", "Upper panels"} {
		_, err := f.service.ToggleCheckpoint(ctx, id, "contact-wash", checkpoint, true)
		require.NoError(t, err)
	}

	update, err := f.service.ToggleCheckpoint(ctx, id, "contact-wash", "Upper panels", false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Wheels and tyres", "Glass"}, []string(update.Entry.CompletedCheckpoints))
	assert.False(t, update.Entry.Completed)

	// все чекпоинты отмечены, но шаг сам не закрывается
	for _, checkpoint := range []string{"Upper panels", "Lower panels"} {
		update, err = f.service.ToggleCheckpoint(ctx, id, "contact-wash", checkpoint, true)
		require.NoError(t, err)
	}
	assert.Len(t, update.Entry.CompletedCheckpoints, 4)
	assert.False(t, update.Entry.Completed)

	_, err = f.service.ToggleCheckpoint(ctx, id, "contact-wash", "Roof box", true)
	assert.ErrorIs(t, err, ErrCheckpointNotFound)
}

func TestCapturePhotoAutoCompletesOnce(t *testing.T) {
	f := newWorkflowFixture(t)
	jobCard := f.createJobCard(t, "three-step")

	first := f.capture(t, jobCard, "photos")
	assert.False(t, first.AutoCompleted)
	assert.False(t, first.Entry.Completed)
	assert.Len(t, first.Entry.Photos, 1)

	second := f.capture(t, jobCard, "photos")
	assert.True(t, second.AutoCompleted)
	assert.True(t, second.Entry.Completed)
	assert.Equal(t, int64(33), second.JobCard.SOPProgress.IntPart())

	third := f.capture(t, jobCard, "photos")
	assert.False(t, third.AutoCompleted)
	assert.True(t, third.Entry.Completed)
	assert.Len(t, third.Entry.Photos, 3)
	assert.Equal(t, *second.Entry.CompletedAt, *third.Entry.CompletedAt)
}

func TestCapturePhotoWaitsForCheckpoints(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	jobCard := f.createJobCard(t, "exterior-wash")
	id := jobCard.ID.String()

	var update *ChecklistUpdate
	for i := 0; i < 4; i++ {
		update = f.capture(t, jobCard, "walkaround")
	}
	assert.False(t, update.AutoCompleted)
	assert.False(t, update.Entry.Completed)

	for _, checkpoint := range []string{"Front", "Rear", "Left side", "Right side"} {
		_, err := f.service.ToggleCheckpoint(ctx, id, "walkaround", checkpoint, true)
		require.NoError(t, err)
	}

	update = f.capture(t, jobCard, "walkaround")
	assert.True(t, update.AutoCompleted)
	assert.True(t, update.Entry.Completed)
}

func TestCapturePhotoValidation(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	jobCard := f.createJobCard(t, "three-step")
	id := jobCard.ID.String()

	tests := []struct {
		name   string
		stepID string
		input  CapturePhotoInput
		want   error
	}{
		{name: "unknown step", stepID: "polish", input: CapturePhotoInput{BlobURL: "https://x/1.jpg"}, want: ErrStepNotFound},
		{name: "blank url", stepID: "photos", input: CapturePhotoInput{BlobURL: "  "}, want: ErrInvalidInput},
		{name: "bad media type", stepID: "photos", input: CapturePhotoInput{BlobURL: "https://x/1.gif", MediaType: "gif"}, want: ErrInvalidInput},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.service.CapturePhoto(ctx, id, tt.stepID, tt.input)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	assert.Empty(t, f.reload(t, jobCard).SOPChecklists[0].Photos)
}

func TestUploadMedia(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	jobCard := f.createJobCard(t, "three-step")

	update, err := f.service.UploadMedia(ctx, jobCard.ID.String(), "photos", UploadMediaInput{
		Filename:    "front.JPG",
		ContentType: "image/jpeg",
		Size:        4,
		Body:        fileBody("data"),
	})
	require.NoError(t, err)
	require.Len(t, update.Entry.Photos, 1)
	assert.Equal(t, model.MediaTypePhoto, update.Entry.Photos[0].MediaType)
	assert.True(t, strings.HasPrefix(update.Entry.Photos[0].URL, "https://blobs.test/job-cards/"+jobCard.ID.String()+"/photos/"))
	assert.True(t, strings.HasSuffix(update.Entry.Photos[0].URL, ".jpg"))
	assert.Len(t, f.blobs.keys, 1)
}

func TestUploadMediaStorageFailureIsNotAValidationError(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	jobCard := f.createJobCard(t, "three-step")
	f.blobs.err = errStorageDown

	_, err := f.service.UploadMedia(ctx, jobCard.ID.String(), "photos", UploadMediaInput{
		Filename: "front.jpg",
		Body:     fileBody("data"),
	})
	require.ErrorIs(t, err, errStorageDown)
	assert.NotErrorIs(t, err, ErrPhotosRequired)
	assert.Empty(t, f.reload(t, jobCard).SOPChecklists[0].Photos)
}

func TestUploadMediaLogsUnattachedBlobOnConflict(t *testing.T) {
	f := newWorkflowFixture(t)
	var logs bytes.Buffer
	f.service.log = zerolog.New(&logs)
	jobCard := f.createJobCard(t, "three-step")
	f.store.saveErr = repository.ErrVersionConflict

	_, err := f.service.UploadMedia(context.Background(), jobCard.ID.String(), "photos", UploadMediaInput{
		Filename: "front.jpg",
		Body:     fileBody("data"),
	})
	require.ErrorIs(t, err, ErrConflict)
	require.Len(t, f.blobs.keys, 1)

	var entry map[string]any
	require.NoError(t, json.Unmarshal(logs.Bytes(), &entry))
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, f.blobs.keys[0], entry["blob_key"])
	assert.Equal(t, "https://blobs.test/"+f.blobs.keys[0], entry["blob_url"])
	assert.Equal(t, jobCard.ID.String(), entry["job_card_id"])
	assert.Equal(t, "photos", entry["step_id"])
}

func TestUploadMediaUnknownStepSkipsUpload(t *testing.T) {
	f := newWorkflowFixture(t)
	jobCard := f.createJobCard(t, "three-step")

	_, err := f.service.UploadMedia(context.Background(), jobCard.ID.String(), "polish", UploadMediaInput{
		Filename: "front.jpg",
		Body:     fileBody("data"),
	})
	assert.ErrorIs(t, err, ErrStepNotFound)
	assert.Empty(t, f.blobs.keys)
}

func TestProgressSummary(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	jobCard := f.createJobCard(t, "three-step")

	_, err := f.service.ToggleStep(ctx, jobCard.ID.String(), "vacuum", true)
	require.NoError(t, err)

	summary, err := f.service.Progress(ctx, jobCard.ID.String())
	require.NoError(t, err)
	assert.Equal(t, int64(33), summary.Progress.IntPart())
	assert.Equal(t, 0, summary.RequiredCompleted)
	assert.Equal(t, 2, summary.RequiredTotal)
	require.Len(t, summary.IncompleteRequiredSteps, 2)

	empty := f.createJobCard(t, "")
	summary, err = f.service.Progress(ctx, empty.ID.String())
	require.NoError(t, err)
	assert.True(t, summary.Progress.IsZero())
	assert.Empty(t, summary.IncompleteRequiredSteps)
}

func TestProgressReaches100OnlyWhenAllStepsComplete(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	jobCard := f.createJobCard(t, "three-step")
	id := jobCard.ID.String()

	f.capture(t, jobCard, "photos")
	f.capture(t, jobCard, "photos")
	_, err := f.service.ToggleCheckpoint(ctx, id, "checks", "Keys logged", true)
	require.NoError(t, err)
	update, err := f.service.ToggleStep(ctx, id, "checks", true)
	require.NoError(t, err)
	assert.Equal(t, int64(67), update.JobCard.SOPProgress.IntPart())

	update, err = f.service.ToggleStep(ctx, id, "vacuum", true)
	require.NoError(t, err)
	assert.Equal(t, int64(100), update.JobCard.SOPProgress.IntPart())

	update, err = f.service.ToggleStep(ctx, id, "checks", false)
	require.NoError(t, err)
	assert.Equal(t, int64(67), update.JobCard.SOPProgress.IntPart())
}

func TestConcurrentCheckpointTogglesAreNotLost(t *testing.T) {
	f := newWorkflowFixture(t)
	ctx := context.Background()
	jobCard := f.createJobCard(t, "ceramic-coating")
	id := jobCard.ID.String()

	checkpoints := []string{"Iron remover", "Tar remover", "Clay bar"}

	var wg sync.WaitGroup
	errs := make(chan error, len(checkpoints)*2)
	for _, checkpoint := range checkpoints {
		wg.Add(2)
		go func(checkpoint string) {
			defer wg.Done()
			_, err := f.service.ToggleCheckpoint(ctx, id, "decontamination", checkpoint, true)
			errs <- err
		}(checkpoint)
		go func() {
			defer wg.Done()
			_, err := f.service.CapturePhoto(ctx, id, "correction", CapturePhotoInput{BlobURL: "https://blobs.test/" + uuid.NewString()})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	for err := range errs {
		require.NoError(t, err)
	}

	reloaded := f.reload(t, jobCard)
	decontamination, ok := reloaded.Entry("decontamination")
	require.True(t, ok)
	assert.Equal(t, checkpoints, []string(decontamination.CompletedCheckpoints))

	correction, ok := reloaded.Entry("correction")
	require.True(t, ok)
	assert.Len(t, correction.Photos, 3)
	assert.True(t, correction.Completed)

	assert.Equal(t, 0, f.service.locks.size())
}

func TestSaveVersionConflictMapsToConflict(t *testing.T) {
	f := newWorkflowFixture(t)
	jobCard := f.createJobCard(t, "three-step")

	stale := f.reload(t, jobCard)
	f.capture(t, jobCard, "photos")

	err := f.service.save(context.Background(), stale)
	assert.ErrorIs(t, err, ErrConflict)
}

func TestListOverridesUnknownJobCard(t *testing.T) {
	f := newWorkflowFixture(t)
	_, err := f.service.ListOverrides(context.Background(), uuid.NewString())
	assert.ErrorIs(t, err, ErrJobCardNotFound)
}

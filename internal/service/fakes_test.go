package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"jobcard-service/internal/model"
	"jobcard-service/internal/repository"
	"jobcard-service/internal/sop"
)

type memoryStore struct {
	mu        sync.Mutex
	jobCards  map[uuid.UUID]*model.JobCard
	overrides []model.OverrideRecord

	saveErr     error
	overrideErr error
	saves       int
}

func newMemoryStore() *memoryStore {
	return &memoryStore{jobCards: make(map[uuid.UUID]*model.JobCard)}
}

type memoryJobCards struct{ store *memoryStore }

func (r memoryJobCards) Create(ctx context.Context, jobCard *model.JobCard) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if jobCard.Version == 0 {
		jobCard.Version = 1
	}
	r.store.jobCards[jobCard.ID] = jobCard.Clone()
	return nil
}

func (r memoryJobCards) GetByID(ctx context.Context, id uuid.UUID) (*model.JobCard, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	jobCard, ok := r.store.jobCards[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	clone := jobCard.Clone()
	clone.ServiceStatus = clone.ServiceStatus.Normalize()
	return clone, nil
}

func (r memoryJobCards) Save(ctx context.Context, jobCard *model.JobCard) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.saveErr != nil {
		return r.store.saveErr
	}
	stored, ok := r.store.jobCards[jobCard.ID]
	if !ok {
		return gorm.ErrRecordNotFound
	}
	if stored.Version != jobCard.Version {
		return repository.ErrVersionConflict
	}
	jobCard.Version++
	r.store.jobCards[jobCard.ID] = jobCard.Clone()
	r.store.saves++
	return nil
}

func (r memoryJobCards) List(ctx context.Context, filter repository.JobCardListFilter) ([]model.JobCard, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	var result []model.JobCard
	for _, jobCard := range r.store.jobCards {
		if filter.Status != nil && jobCard.ServiceStatus.Normalize() != *filter.Status {
			continue
		}
		if filter.OverdueAt != nil && !jobCard.IsOverdue(*filter.OverdueAt) {
			continue
		}
		result = append(result, *jobCard.Clone())
	}
	sort.Slice(result, func(i, j int) bool { return result[i].ID.String() < result[j].ID.String() })
	return result, nil
}

type memoryOverrides struct{ store *memoryStore }

func (r memoryOverrides) Create(ctx context.Context, record *model.OverrideRecord) error {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	if r.store.overrideErr != nil {
		return r.store.overrideErr
	}
	r.store.overrides = append(r.store.overrides, *record)
	return nil
}

func (r memoryOverrides) ListByJobCardID(ctx context.Context, jobCardID uuid.UUID) ([]model.OverrideRecord, error) {
	r.store.mu.Lock()
	defer r.store.mu.Unlock()
	result := []model.OverrideRecord{}
	for _, record := range r.store.overrides {
		if record.JobCardID == jobCardID {
			result = append(result, record)
		}
	}
	return result, nil
}

// memoryTransactor откатывает состояние хранилища, если fn вернула ошибку
type memoryTransactor struct{ store *memoryStore }

func (t memoryTransactor) WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	t.store.mu.Lock()
	jobCards := make(map[uuid.UUID]*model.JobCard, len(t.store.jobCards))
	for id, jobCard := range t.store.jobCards {
		jobCards[id] = jobCard.Clone()
	}
	overrides := append([]model.OverrideRecord(nil), t.store.overrides...)
	t.store.mu.Unlock()

	if err := fn(ctx); err != nil {
		t.store.mu.Lock()
		t.store.jobCards = jobCards
		t.store.overrides = overrides
		t.store.mu.Unlock()
		return err
	}
	return nil
}

type memoryBlobs struct {
	mu   sync.Mutex
	keys []string
	err  error
}

func (b *memoryBlobs) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	if b.err != nil {
		return "", b.err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.keys = append(b.keys, key)
	return "https://blobs.test/" + key, nil
}

var errStorageDown = errors.New("storage down")

type workflowFixture struct {
	service *WorkflowService
	store   *memoryStore
	blobs   *memoryBlobs
	now     time.Time
}

func threeStepTemplate() model.SOPTemplate {
	return model.SOPTemplate{
		ID:          "three-step",
		ServiceName: "Three Step",
		Steps: []model.SOPStep{
			{ID: "photos", Name: "Before photos", Category: "inspection", Required: true, PhotoRequired: true, RequiredPhotos: 2, PhotoType: model.PhotoTypeBefore},
			{ID: "checks", Name: "Safety checks", Category: "prep", Required: true, Checkpoints: []string{"Keys logged"}},
			{ID: "vacuum", Name: "Optional vacuum", Category: "interior"},
		},
	}
}

func newWorkflowFixture(t *testing.T) *workflowFixture {
	t.Helper()

	templates := append(sop.DefaultTemplates(), threeStepTemplate())
	registry, err := sop.NewRegistry(templates)
	require.NoError(t, err)

	store := newMemoryStore()
	blobs := &memoryBlobs{}
	auditor := NewOverrideAuditor(
		memoryOverrides{store: store},
		DefaultMinOverrideReasonLength,
		[]model.UserRole{model.UserRoleSupervisor, model.UserRoleManager, model.UserRoleAdmin},
	)

	service := NewWorkflowService(
		memoryJobCards{store: store},
		memoryTransactor{store: store},
		registry,
		auditor,
		blobs,
		zerolog.Nop(),
	)

	fixture := &workflowFixture{
		service: service,
		store:   store,
		blobs:   blobs,
		now:     time.Date(2026, 3, 10, 9, 0, 0, 0, time.UTC),
	}
	service.now = func() time.Time { return fixture.now }

	return fixture
}

func (f *workflowFixture) createJobCard(t *testing.T, templateID string) *model.JobCard {
	t.Helper()
	jobCard, err := f.service.CreateJobCard(context.Background(), technician(), CreateJobCardInput{SOPTemplateID: templateID})
	require.NoError(t, err)
	return jobCard
}

func (f *workflowFixture) reload(t *testing.T, jobCard *model.JobCard) *model.JobCard {
	t.Helper()
	reloaded, err := f.service.Get(context.Background(), jobCard.ID.String())
	require.NoError(t, err)
	return reloaded
}

func (f *workflowFixture) capture(t *testing.T, jobCard *model.JobCard, stepID string) *ChecklistUpdate {
	t.Helper()
	update, err := f.service.CapturePhoto(context.Background(), jobCard.ID.String(), stepID, CapturePhotoInput{
		BlobURL:   "https://blobs.test/" + uuid.NewString() + ".jpg",
		MediaType: "photo",
	})
	require.NoError(t, err)
	return update
}

func technician() model.Principal {
	return model.Principal{UserID: uuid.New(), Role: model.UserRoleTechnician}
}

func supervisor() model.Principal {
	return model.Principal{UserID: uuid.New(), Role: model.UserRoleSupervisor}
}

func fileBody(content string) io.Reader {
	return bytes.NewBufferString(content)
}

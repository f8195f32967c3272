package service

import (
	"context"
	"io"

	"github.com/google/uuid"

	"jobcard-service/internal/model"
	"jobcard-service/internal/repository"
)

// JobCardStore хранилище заказ-нарядов вместе с записями чек-листа.
// Save сравнивает версию и возвращает repository.ErrVersionConflict при расхождении.
type JobCardStore interface {
	Create(ctx context.Context, jobCard *model.JobCard) error
	GetByID(ctx context.Context, id uuid.UUID) (*model.JobCard, error)
	Save(ctx context.Context, jobCard *model.JobCard) error
	List(ctx context.Context, filter repository.JobCardListFilter) ([]model.JobCard, error)
}

type OverrideStore interface {
	Create(ctx context.Context, record *model.OverrideRecord) error
	ListByJobCardID(ctx context.Context, jobCardID uuid.UUID) ([]model.OverrideRecord, error)
}

type Transactor interface {
	WithinTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// BlobStore принимает байты и возвращает постоянный URL
type BlobStore interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

// Package storage хранилища байтов фото и видео, возвращающие постоянный URL.
package storage

import (
	"context"
	"fmt"
	"io"

	"jobcard-service/internal/config"
)

type Store interface {
	Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error)
}

func New(ctx context.Context, cfg config.BlobConfig) (Store, error) {
	switch cfg.Driver {
	case config.BlobDriverS3:
		return NewS3Store(ctx, cfg.S3)
	case config.BlobDriverLocal, "":
		return NewLocalFS(cfg.LocalRoot, cfg.PublicBaseURL), nil
	default:
		return nil, fmt.Errorf("unknown blob driver %q", cfg.Driver)
	}
}

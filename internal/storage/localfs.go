package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
)

var ErrInvalidKey = errors.New("invalid blob key")

// LocalFS хранилище на диске для разработки; файлы раздаются роутером по PublicBaseURL
type LocalFS struct {
	Root          string
	PublicBaseURL string
}

func NewLocalFS(root, publicBaseURL string) *LocalFS {
	if publicBaseURL == "" {
		publicBaseURL = "/media"
	}
	return &LocalFS{
		Root:          root,
		PublicBaseURL: strings.TrimRight(publicBaseURL, "/"),
	}
}

func (l *LocalFS) Put(ctx context.Context, key string, body io.Reader, size int64, contentType string) (string, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return "", err
	}

	abs := filepath.Join(l.Root, filepath.FromSlash(clean))
	if err := os.MkdirAll(filepath.Dir(abs), 0o755); err != nil {
		return "", err
	}

	f, err := os.Create(abs)
	if err != nil {
		return "", err
	}
	defer f.Close()

	if _, err := io.Copy(f, body); err != nil {
		return "", fmt.Errorf("write blob %s: %w", clean, err)
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	return l.PublicBaseURL + "/" + clean, nil
}

func (l *LocalFS) Open(key string) (*os.File, error) {
	clean, err := cleanKey(key)
	if err != nil {
		return nil, err
	}
	return os.Open(filepath.Join(l.Root, filepath.FromSlash(clean)))
}

// cleanKey ключ всегда относительный и не выходит за корень
func cleanKey(key string) (string, error) {
	key = strings.TrimSpace(strings.ReplaceAll(key, "\\", "/"))
	if key == "" {
		return "", ErrInvalidKey
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", fmt.Errorf("%w: %s", ErrInvalidKey, key)
		}
	}
	clean := strings.TrimPrefix(filepath.ToSlash(filepath.Clean("/"+key)), "/")
	if clean == "" {
		return "", ErrInvalidKey
	}
	return clean, nil
}

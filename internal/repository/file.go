package repository

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/flybeeper/balises-backend/pkg/utils"
)

// FileBlobStore хранит каждый ключ в отдельном файле каталога.
// Запись идет во временный файл с последующим rename, поэтому
// читатель никогда не видит частично записанный блоб.
type FileBlobStore struct {
	dir    string
	logger *utils.Logger
}

// NewFileBlobStore создает хранилище в каталоге dir
func NewFileBlobStore(dir string, logger *utils.Logger) (*FileBlobStore, error) {
	if dir == "" {
		return nil, fmt.Errorf("cache dir is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache dir: %w", err)
	}
	return &FileBlobStore{dir: dir, logger: logger}, nil
}

// path переводит ключ в имя файла без разделителей каталогов
func (f *FileBlobStore) path(key string) string {
	name := strings.NewReplacer("/", "_", "\\", "_", "..", "_").Replace(key)
	return filepath.Join(f.dir, name+".cache")
}

// Ping проверяет доступность каталога
func (f *FileBlobStore) Ping(ctx context.Context) error {
	info, err := os.Stat(f.dir)
	if err != nil {
		return fmt.Errorf("cache dir unavailable: %w", err)
	}
	if !info.IsDir() {
		return fmt.Errorf("cache path %s is not a directory", f.dir)
	}
	return nil
}

func (f *FileBlobStore) Close() error { return nil }

// Put атомарно перезаписывает файл ключа
func (f *FileBlobStore) Put(ctx context.Context, key string, data []byte) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	tmp, err := os.CreateTemp(f.dir, ".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write %s: %w", key, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to sync %s: %w", key, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close %s: %w", key, err)
	}
	if err := os.Rename(tmpName, f.path(key)); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace %s: %w", key, err)
	}

	f.logger.WithFields(map[string]interface{}{
		"key":  key,
		"size": len(data),
	}).Debug("Cache blob written to file")
	return nil
}

// Get читает файл ключа целиком
func (f *FileBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := os.ReadFile(f.path(key))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", key, err)
	}
	return data, nil
}

// Delete удаляет файл ключа
func (f *FileBlobStore) Delete(ctx context.Context, key string) error {
	err := os.Remove(f.path(key))
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

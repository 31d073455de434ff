package repository

import (
	"context"
	"errors"
)

// ErrNotFound под ключом ничего не сохранено
var ErrNotFound = errors.New("repository: blob not found")

// BlobStore хранилище байтовых блобов по строковому ключу.
// Put полностью перезаписывает значение; успешный Put виден последующему Get.
type BlobStore interface {
	// Проверка соединения
	Ping(ctx context.Context) error
	Close() error

	// Put записывает значение целиком
	Put(ctx context.Context, key string, data []byte) error

	// Get читает значение целиком; ErrNotFound если ключа нет
	Get(ctx context.Context, key string) ([]byte, error)

	// Delete удаляет значение; отсутствие ключа не ошибка
	Delete(ctx context.Context, key string) error
}

// Ensure implementations
var _ BlobStore = (*RedisBlobStore)(nil)
var _ BlobStore = (*MySQLBlobStore)(nil)
var _ BlobStore = (*FileBlobStore)(nil)
var _ BlobStore = (*MemoryBlobStore)(nil)

// Package cache сохраняет и восстанавливает наборы станций и наблюдений
// провайдера в BlobStore.
//
// Текущий формат: поток saveable-записей подряд, без счетчика, сжатый gzip.
// Если блоб не читается в текущем формате, делается попытка прочитать его
// как прежний несжатый формат (gob всей коллекции); удачно прочитанные
// данные сразу перезаписываются в текущем формате.
package cache

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"maps"
	"slices"
	"time"

	"github.com/flybeeper/balises-backend/internal/metrics"
	"github.com/flybeeper/balises-backend/internal/models"
	"github.com/flybeeper/balises-backend/internal/repository"
	"github.com/flybeeper/balises-backend/internal/saveable"
	"github.com/flybeeper/balises-backend/pkg/utils"
	"github.com/klauspost/compress/gzip"
)

// ErrCacheCorrupt блоб не читается ни в текущем, ни в прежнем формате.
// Блоб при этом не удаляется.
var ErrCacheCorrupt = errors.New("cache: corrupt entry")

const (
	kindStations = "stations"
	kindReadings = "readings"
)

// Factory создает пустые сущности при восстановлении
type Factory interface {
	NewStation() *models.Station
	NewReading() *models.Reading
}

// entity сущность, которую умеет хранить кэш
type entity interface {
	saveable.Saveable
	ID() string
}

// SaveableCache кэш сущностей поверх BlobStore
type SaveableCache struct {
	store  repository.BlobStore
	logger *utils.Logger
}

// NewSaveableCache создает кэш
func NewSaveableCache(store repository.BlobStore, logger *utils.Logger) *SaveableCache {
	return &SaveableCache{
		store:  store,
		logger: logger.WithField("component", "cache"),
	}
}

// StoreStations перезаписывает станции под ключом key
func (c *SaveableCache) StoreStations(ctx context.Context, key string, stations map[string]*models.Station) error {
	return store(ctx, c, kindStations, key, stations)
}

// RestoreStations восстанавливает станции из ключа key
func (c *SaveableCache) RestoreStations(ctx context.Context, key string, factory Factory) (map[string]*models.Station, error) {
	return restore(ctx, c, kindStations, key, factory.NewStation, func(data []byte) (map[string]*models.Station, error) {
		return decodeLegacyStations(data, factory)
	})
}

// StoreReadings перезаписывает наблюдения под ключом key
func (c *SaveableCache) StoreReadings(ctx context.Context, key string, readings map[string]*models.Reading) error {
	return store(ctx, c, kindReadings, key, readings)
}

// RestoreReadings восстанавливает наблюдения из ключа key
func (c *SaveableCache) RestoreReadings(ctx context.Context, key string, factory Factory) (map[string]*models.Reading, error) {
	return restore(ctx, c, kindReadings, key, factory.NewReading, func(data []byte) (map[string]*models.Reading, error) {
		return decodeLegacyReadings(data, factory)
	})
}

func store[T entity](ctx context.Context, c *SaveableCache, kind, key string, items map[string]T) error {
	start := time.Now()

	data, err := encode(items)
	if err != nil {
		return fmt.Errorf("failed to encode %s for %s: %w", kind, key, err)
	}

	if err := c.store.Put(ctx, key, data); err != nil {
		return fmt.Errorf("failed to store %s: %w", kind, err)
	}

	metrics.CacheOperationDuration.WithLabelValues("store", kind).Observe(time.Since(start).Seconds())
	c.logger.WithFields(map[string]interface{}{
		"key":   key,
		"kind":  kind,
		"count": len(items),
		"size":  len(data),
	}).Debug("Cache stored")
	return nil
}

func restore[T entity](
	ctx context.Context,
	c *SaveableCache,
	kind, key string,
	newItem func() T,
	decodeLegacy func([]byte) (map[string]T, error),
) (map[string]T, error) {
	start := time.Now()

	data, err := c.store.Get(ctx, key)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s from %s: %w", kind, key, err)
	}

	items, currentErr := decode(data, newItem)
	if currentErr == nil {
		metrics.CacheOperationDuration.WithLabelValues("restore", kind).Observe(time.Since(start).Seconds())
		return items, nil
	}

	// Прежний формат
	items, legacyErr := decodeLegacy(data)
	if legacyErr != nil {
		metrics.CacheCorruptTotal.WithLabelValues(kind).Inc()
		return nil, fmt.Errorf("%w: %s %s: %w (legacy: %v)", ErrCacheCorrupt, kind, key, currentErr, legacyErr)
	}

	c.logger.WithFields(map[string]interface{}{
		"key":   key,
		"kind":  kind,
		"count": len(items),
		"cause": currentErr.Error(),
	}).Warn("Restored cache from legacy format, migrating")
	metrics.CacheMigrationsTotal.WithLabelValues(kind).Inc()

	// Миграция однократная и не обязательная: чтение уже удалось
	if err := store(ctx, c, kind, key, items); err != nil {
		c.logger.WithFields(map[string]interface{}{
			"key":   key,
			"kind":  kind,
			"error": err,
		}).Warn("Failed to persist migrated cache")
	}

	return items, nil
}

// encode пишет сущности подряд в gzip поток в порядке ключей
func encode[T entity](items map[string]T) ([]byte, error) {
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	w := saveable.NewWriter(make([]byte, 0, 256))

	for _, id := range slices.Sorted(maps.Keys(items)) {
		w.Reset()
		if err := items[id].SaveSaveable(w); err != nil {
			zw.Close()
			return nil, fmt.Errorf("entity %q: %w", id, err)
		}
		if _, err := zw.Write(w.Bytes()); err != nil {
			zw.Close()
			return nil, fmt.Errorf("failed to compress: %w", err)
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finish compression: %w", err)
	}
	return buf.Bytes(), nil
}

// decode читает сущности, пока поток не закончится. Пустой блоб дает пустой набор.
func decode[T entity](data []byte, newItem func() T) (map[string]T, error) {
	items := make(map[string]T)
	if len(data) == 0 {
		return items, nil
	}

	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("failed to decompress: %w", err)
	}

	r := saveable.NewReader(raw)
	for r.Len() > 0 {
		item := newItem()
		if err := item.LoadSaveable(r); err != nil {
			return nil, err
		}
		items[item.ID()] = item
	}

	return items, nil
}

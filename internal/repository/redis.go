package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/flybeeper/balises-backend/internal/config"
	"github.com/flybeeper/balises-backend/internal/metrics"
	"github.com/flybeeper/balises-backend/pkg/utils"
	"github.com/redis/go-redis/v9"
)

const (
	// Префикс ключей блобов кэша
	CachePrefix = "balises:cache:" // balises:cache:{key}
)

// RedisBlobStore хранит блобы кэша в Redis строками
type RedisBlobStore struct {
	client *redis.Client
	logger *utils.Logger
	config *config.RedisConfig
}

// NewRedisBlobStore создает новое Redis хранилище
func NewRedisBlobStore(cfg *config.RedisConfig, logger *utils.Logger) (*RedisBlobStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}

	// Парсим Redis URL
	opt, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	// Дополнительные настройки
	if cfg.Password != "" {
		opt.Password = cfg.Password
	}
	opt.DB = cfg.DB
	opt.PoolSize = cfg.PoolSize
	opt.MinIdleConns = cfg.MinIdleConns
	opt.ConnMaxIdleTime = 30 * time.Minute
	opt.DialTimeout = 10 * time.Second
	opt.ReadTimeout = 3 * time.Second
	opt.WriteTimeout = 3 * time.Second

	return newRedisBlobStore(redis.NewClient(opt), cfg, logger), nil
}

func newRedisBlobStore(client *redis.Client, cfg *config.RedisConfig, logger *utils.Logger) *RedisBlobStore {
	return &RedisBlobStore{
		client: client,
		logger: logger,
		config: cfg,
	}
}

// Ping проверяет соединение с Redis
func (r *RedisBlobStore) Ping(ctx context.Context) error {
	_, err := r.client.Ping(ctx).Result()
	if err != nil {
		return fmt.Errorf("redis ping failed: %w", err)
	}
	return nil
}

// Close закрывает соединение с Redis
func (r *RedisBlobStore) Close() error {
	return r.client.Close()
}

// Put перезаписывает блоб без TTL
func (r *RedisBlobStore) Put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	defer func() {
		metrics.RedisOperationDuration.WithLabelValues("put").Observe(time.Since(start).Seconds())
	}()

	if err := r.client.Set(ctx, CachePrefix+key, data, 0).Err(); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("put").Inc()
		return fmt.Errorf("failed to put %s: %w", key, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"key":  key,
		"size": len(data),
	}).Debug("Cache blob written to Redis")
	return nil
}

// Get читает блоб; redis.Nil превращается в ErrNotFound
func (r *RedisBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.RedisOperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	}()

	data, err := r.client.Get(ctx, CachePrefix+key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, ErrNotFound
	}
	if err != nil {
		metrics.RedisOperationErrors.WithLabelValues("get").Inc()
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

// Delete удаляет блоб
func (r *RedisBlobStore) Delete(ctx context.Context, key string) error {
	if err := r.client.Del(ctx, CachePrefix+key).Err(); err != nil {
		metrics.RedisOperationErrors.WithLabelValues("delete").Inc()
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

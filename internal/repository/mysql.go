package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/flybeeper/balises-backend/internal/config"
	"github.com/flybeeper/balises-backend/internal/metrics"
	"github.com/flybeeper/balises-backend/pkg/utils"
	_ "github.com/go-sql-driver/mysql"
)

const cacheTableSchema = `
	CREATE TABLE IF NOT EXISTS balise_cache (
		cache_key  VARCHAR(191) NOT NULL PRIMARY KEY,
		data       LONGBLOB     NOT NULL,
		updated_at DATETIME(3)  NOT NULL
	) ENGINE=InnoDB DEFAULT CHARSET=utf8mb4`

// MySQLBlobStore хранит блобы кэша в таблице balise_cache
type MySQLBlobStore struct {
	db     *sql.DB
	logger *utils.Logger
	config *config.MySQLConfig
}

// NewMySQLBlobStore создает новое MySQL хранилище
func NewMySQLBlobStore(cfg *config.MySQLConfig, logger *utils.Logger) (*MySQLBlobStore, error) {
	if cfg == nil {
		return nil, fmt.Errorf("mysql config cannot be nil")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger cannot be nil")
	}
	if cfg.DSN == "" {
		return nil, fmt.Errorf("mysql DSN is required")
	}

	db, err := sql.Open("mysql", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	// Настройки connection pool
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetConnMaxLifetime(1 * time.Hour)

	return &MySQLBlobStore{
		db:     db,
		logger: logger,
		config: cfg,
	}, nil
}

// EnsureSchema создает таблицу кэша, если ее нет
func (r *MySQLBlobStore) EnsureSchema(ctx context.Context) error {
	if _, err := r.db.ExecContext(ctx, cacheTableSchema); err != nil {
		return fmt.Errorf("failed to create balise_cache table: %w", err)
	}
	return nil
}

// Ping проверяет соединение с MySQL
func (r *MySQLBlobStore) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// Close закрывает соединение с MySQL
func (r *MySQLBlobStore) Close() error {
	return r.db.Close()
}

// Put перезаписывает блоб ключа
func (r *MySQLBlobStore) Put(ctx context.Context, key string, data []byte) error {
	start := time.Now()
	defer func() {
		metrics.MySQLOperationDuration.WithLabelValues("put").Observe(time.Since(start).Seconds())
	}()

	query := `
		INSERT INTO balise_cache (cache_key, data, updated_at)
		VALUES (?, ?, ?)
		ON DUPLICATE KEY UPDATE
			data = VALUES(data),
			updated_at = VALUES(updated_at)`

	if _, err := r.db.ExecContext(ctx, query, key, data, time.Now().UTC()); err != nil {
		metrics.MySQLWriteErrors.WithLabelValues("cache").Inc()
		return fmt.Errorf("failed to put %s: %w", key, err)
	}

	r.logger.WithFields(map[string]interface{}{
		"key":  key,
		"size": len(data),
	}).Debug("Cache blob written to MySQL")
	return nil
}

// Get читает блоб ключа
func (r *MySQLBlobStore) Get(ctx context.Context, key string) ([]byte, error) {
	start := time.Now()
	defer func() {
		metrics.MySQLOperationDuration.WithLabelValues("get").Observe(time.Since(start).Seconds())
	}()

	var data []byte
	err := r.db.QueryRowContext(ctx, `SELECT data FROM balise_cache WHERE cache_key = ?`, key).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get %s: %w", key, err)
	}
	return data, nil
}

// Delete удаляет блоб ключа
func (r *MySQLBlobStore) Delete(ctx context.Context, key string) error {
	if _, err := r.db.ExecContext(ctx, `DELETE FROM balise_cache WHERE cache_key = ?`, key); err != nil {
		return fmt.Errorf("failed to delete %s: %w", key, err)
	}
	return nil
}

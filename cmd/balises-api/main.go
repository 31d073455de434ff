package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/flybeeper/balises-backend/internal/cache"
	"github.com/flybeeper/balises-backend/internal/config"
	"github.com/flybeeper/balises-backend/internal/handler"
	"github.com/flybeeper/balises-backend/internal/metrics"
	"github.com/flybeeper/balises-backend/internal/mqtt"
	"github.com/flybeeper/balises-backend/internal/provider/romma"
	"github.com/flybeeper/balises-backend/internal/repository"
	"github.com/flybeeper/balises-backend/internal/scheduler"
	"github.com/flybeeper/balises-backend/internal/service"
	"github.com/flybeeper/balises-backend/pkg/utils"
)

var (
	// Version будет установлен при сборке через ldflags
	Version = "dev"
)

func main() {
	// Загружаем конфигурацию
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	// Инициализируем логирование
	logger := utils.NewLogger(config.LogLevel(), config.LogFormat())
	utils.SetDefaultLogger(logger)
	logger.WithField("version", Version).Info("Starting Balises Backend")

	handler.Version = Version
	metrics.SetAppInfo(Version)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Хранилище кэша рабочего набора
	store, err := openBlobStore(ctx, cfg, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize cache store")
	}
	defer store.Close()
	logger.WithField("backend", cfg.Cache.Backend).Info("Cache store ready")

	// Источник ROMMA
	source, err := romma.New(romma.Config{
		Name:        cfg.Provider.Name,
		Country:     cfg.Provider.Country,
		BaseURL:     cfg.Provider.BaseURL,
		Key:         cfg.Provider.Key,
		Zipped:      cfg.Provider.Zipped,
		Timeout:     cfg.Provider.FetchTimeout,
		MinInterval: cfg.Provider.MinInterval,
	}, nil, logger)
	if err != nil {
		logger.WithField("error", err).Fatal("Failed to initialize provider")
	}

	refresher := service.NewRefresher(source, cache.NewSaveableCache(store, logger), cfg.Cache.KeyPrefix, logger)
	if err := refresher.Restore(ctx); err != nil {
		logger.WithField("error", err).Warn("Failed to restore working set, starting empty")
	}

	if !source.IsAvailable(ctx) {
		logger.WithField("provider", source.Name()).Warn("Provider is not reachable at startup")
	}

	// HTTP сервер и live-лента
	server := handler.NewServer(cfg, refresher, logger)
	refresher.AddListener(server.WebSocket().BroadcastReadings)

	// Публикация изменений в MQTT (опционально)
	if cfg.MQTT.Enabled {
		publisher, err := mqtt.NewPublisher(&cfg.MQTT, logger)
		if err != nil {
			logger.WithField("error", err).Fatal("Failed to initialize MQTT publisher")
		}
		if err := publisher.Connect(); err != nil {
			logger.WithField("error", err).Warn("MQTT broker unavailable, will keep retrying")
		}
		defer publisher.Disconnect()
		refresher.AddListener(publisher.PublishReadings)
	}

	// Периодические обновления
	sched := scheduler.New(refresher, scheduler.Intervals{
		Readings: cfg.Scheduler.ReadingsInterval,
		Stations: cfg.Scheduler.StationsInterval,
		Persist:  cfg.Scheduler.PersistInterval,
		Timeout:  cfg.Provider.MinInterval + 2*cfg.Provider.FetchTimeout,
	}, logger)
	if err := sched.Start(); err != nil {
		logger.WithField("error", err).Fatal("Failed to start scheduler")
	}

	// Запускаем HTTP сервер в горутине
	go func() {
		if err := server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithField("error", err).Fatal("Failed to start HTTP server")
		}
	}()

	// Ждем сигнала остановки
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigChan

	logger.WithField("signal", sig).Info("Received shutdown signal")

	// Graceful shutdown
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	sched.Stop()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithField("error", err).Error("Failed to shutdown HTTP server gracefully")
	}

	if err := refresher.Persist(shutdownCtx); err != nil {
		logger.WithField("error", err).Error("Failed to persist working set")
	}

	logger.Info("Balises Backend stopped")
}

// openBlobStore создает хранилище кэша по CACHE_BACKEND
func openBlobStore(ctx context.Context, cfg *config.Config, logger *utils.Logger) (repository.BlobStore, error) {
	switch cfg.Cache.Backend {
	case config.CacheBackendRedis:
		store, err := repository.NewRedisBlobStore(&cfg.Redis, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		return store, nil

	case config.CacheBackendMySQL:
		store, err := repository.NewMySQLBlobStore(&cfg.MySQL, logger)
		if err != nil {
			return nil, err
		}
		if err := store.Ping(ctx); err != nil {
			store.Close()
			return nil, fmt.Errorf("failed to connect to MySQL: %w", err)
		}
		if err := store.EnsureSchema(ctx); err != nil {
			store.Close()
			return nil, err
		}
		return store, nil

	case config.CacheBackendFile:
		return repository.NewFileBlobStore(cfg.Cache.Dir, logger)

	case config.CacheBackendMemory:
		return repository.NewMemoryBlobStore(), nil

	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}
}

package service

import (
	"context"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/flybeeper/balises-backend/internal/cache"
	"github.com/flybeeper/balises-backend/internal/metrics"
	"github.com/flybeeper/balises-backend/internal/models"
	"github.com/flybeeper/balises-backend/internal/provider"
	"github.com/flybeeper/balises-backend/internal/repository"
	"github.com/flybeeper/balises-backend/pkg/utils"
)

// Store постоянное хранилище рабочего набора
type Store interface {
	StoreStations(ctx context.Context, key string, stations map[string]*models.Station) error
	RestoreStations(ctx context.Context, key string, factory cache.Factory) (map[string]*models.Station, error)
	StoreReadings(ctx context.Context, key string, readings map[string]*models.Reading) error
	RestoreReadings(ctx context.Context, key string, factory cache.Factory) (map[string]*models.Reading, error)
}

// ChangeListener получает наблюдения, измененные обновлением
type ChangeListener func(providerName string, changed []*models.Reading)

// Status состояние рабочего набора
type Status struct {
	Provider         string    `json:"provider"`
	Country          string    `json:"country"`
	Stations         int       `json:"stations"`
	Readings         int       `json:"readings"`
	Changed          int       `json:"changed"`
	StationsRefresh  time.Time `json:"stations_refreshed_at"`
	ReadingsRefresh  time.Time `json:"readings_refreshed_at"`
	LastRefreshError string    `json:"last_refresh_error,omitempty"`
}

// Refresher владеет рабочим набором одного источника: восстанавливает его
// из кэша, обновляет и сохраняет. Обновления выполняются по одному, чтение
// возможно параллельно. Сущности, отданные читателям, после вставки в
// рабочий набор не изменяются.
type Refresher struct {
	provider provider.Provider
	store    Store
	logger   *utils.Logger

	stationsKey string
	readingsKey string

	// refreshMu сериализует писателей, mu защищает рабочий набор
	refreshMu sync.Mutex
	mu        sync.RWMutex
	ws        *provider.WorkingSet

	stationsRefresh time.Time
	readingsRefresh time.Time
	lastErr         error

	dirty atomic.Bool

	listenersMu sync.RWMutex
	listeners   []ChangeListener
}

// NewRefresher создает Refresher. Ключи кэша: "<keyPrefix><name>.stations"
// и "<keyPrefix><name>.readings".
func NewRefresher(p provider.Provider, store Store, keyPrefix string, logger *utils.Logger) *Refresher {
	return &Refresher{
		provider:    p,
		store:       store,
		logger:      logger.WithField("provider", p.Name()),
		stationsKey: keyPrefix + p.Name() + ".stations",
		readingsKey: keyPrefix + p.Name() + ".readings",
		ws:          provider.NewWorkingSet(),
	}
}

// Provider источник, которым управляет Refresher
func (r *Refresher) Provider() provider.Provider {
	return r.provider
}

// AddListener подписывает на изменения наблюдений
func (r *Refresher) AddListener(l ChangeListener) {
	r.listenersMu.Lock()
	defer r.listenersMu.Unlock()
	r.listeners = append(r.listeners, l)
}

// Restore загружает рабочий набор из кэша. Отсутствующий или поврежденный
// кэш не ошибка: источник начнет с пустого набора.
func (r *Refresher) Restore(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	stations, err := r.store.RestoreStations(ctx, r.stationsKey, r.provider)
	if err := r.classifyRestoreError("stations", err); err != nil {
		return err
	}

	readings, err := r.store.RestoreReadings(ctx, r.readingsKey, r.provider)
	if err := r.classifyRestoreError("readings", err); err != nil {
		return err
	}

	r.mu.Lock()
	if stations != nil {
		r.ws.RestoreStations(stations)
	}
	if readings != nil {
		r.ws.RestoreReadings(readings)
	}
	r.updateSizeMetrics()
	r.mu.Unlock()

	r.logger.WithFields(map[string]interface{}{
		"stations": len(stations),
		"readings": len(readings),
	}).Info("Working set restored from cache")
	return nil
}

func (r *Refresher) classifyRestoreError(kind string, err error) error {
	switch {
	case err == nil:
		return nil
	case errors.Is(err, repository.ErrNotFound):
		r.logger.WithField("kind", kind).Info("No cached data, starting empty")
		return nil
	case errors.Is(err, cache.ErrCacheCorrupt):
		r.logger.WithFields(map[string]interface{}{
			"kind":  kind,
			"error": err,
		}).Warn("Cached data is corrupt, starting empty")
		return nil
	default:
		return fmt.Errorf("failed to restore %s: %w", kind, err)
	}
}

// RefreshStations заменяет набор станций свежим списком источника
func (r *Refresher) RefreshStations(ctx context.Context) error {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	start := time.Now()
	stations, err := r.provider.FetchStations(ctx)
	metrics.RefreshDuration.WithLabelValues(r.provider.Name(), "stations").Observe(time.Since(start).Seconds())
	if err != nil {
		return r.refreshFailed("stations", err)
	}

	r.mu.Lock()
	r.ws.SetStations(stations)
	r.stationsRefresh = time.Now().UTC()
	r.lastErr = nil
	r.updateSizeMetrics()
	r.mu.Unlock()

	r.dirty.Store(true)
	r.logger.WithField("count", len(stations)).Info("Stations refreshed")
	return nil
}

// RefreshReadings загружает наблюдения, сливает их с удерживаемыми
// и уведомляет подписчиков об измененных. Возвращает измененные наблюдения.
func (r *Refresher) RefreshReadings(ctx context.Context) ([]*models.Reading, error) {
	r.refreshMu.Lock()
	defer r.refreshMu.Unlock()

	start := time.Now()
	incoming, err := r.provider.FetchReadings(ctx)
	if err != nil {
		metrics.RefreshDuration.WithLabelValues(r.provider.Name(), "readings").Observe(time.Since(start).Seconds())
		return nil, r.refreshFailed("readings", err)
	}

	r.mu.Lock()
	changed := sortedReadings(r.ws.ApplyReadings(incoming))
	r.readingsRefresh = time.Now().UTC()
	r.lastErr = nil
	r.updateSizeMetrics()
	r.mu.Unlock()

	metrics.RefreshDuration.WithLabelValues(r.provider.Name(), "readings").Observe(time.Since(start).Seconds())
	metrics.ReadingsChanged.WithLabelValues(r.provider.Name()).Observe(float64(len(changed)))

	if len(changed) > 0 {
		r.dirty.Store(true)
		r.notify(changed)
	}

	r.logger.WithFields(map[string]interface{}{
		"fetched": len(incoming),
		"changed": len(changed),
	}).Debug("Readings refreshed")
	return changed, nil
}

func (r *Refresher) refreshFailed(kind string, err error) error {
	metrics.RefreshErrors.WithLabelValues(r.provider.Name(), kind).Inc()
	msg := r.provider.FilterErrorMessage(err.Error())

	r.mu.Lock()
	r.lastErr = errors.New(msg)
	r.mu.Unlock()

	r.logger.WithFields(map[string]interface{}{
		"kind":  kind,
		"error": msg,
	}).Warn("Provider refresh failed")
	return fmt.Errorf("failed to refresh %s: %w", kind, err)
}

func (r *Refresher) notify(changed []*models.Reading) {
	r.listenersMu.RLock()
	listeners := slices.Clone(r.listeners)
	r.listenersMu.RUnlock()

	for _, l := range listeners {
		l(r.provider.Name(), changed)
	}
}

// Persist сохраняет рабочий набор, если он менялся с прошлого сохранения
func (r *Refresher) Persist(ctx context.Context) error {
	if !r.dirty.Swap(false) {
		return nil
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if err := r.store.StoreStations(ctx, r.stationsKey, r.ws.Stations()); err != nil {
		r.dirty.Store(true)
		return fmt.Errorf("failed to persist stations: %w", err)
	}
	if readings := r.ws.Readings(); readings != nil {
		if err := r.store.StoreReadings(ctx, r.readingsKey, readings); err != nil {
			r.dirty.Store(true)
			return fmt.Errorf("failed to persist readings: %w", err)
		}
	}

	r.logger.WithFields(map[string]interface{}{
		"stations": len(r.ws.Stations()),
		"readings": len(r.ws.Readings()),
	}).Debug("Working set persisted")
	return nil
}

// Stations станции, отсортированные по id
func (r *Refresher) Stations() []*models.Station {
	r.mu.RLock()
	defer r.mu.RUnlock()

	stations := r.ws.Stations()
	out := make([]*models.Station, 0, len(stations))
	for _, id := range slices.Sorted(maps.Keys(stations)) {
		out = append(out, stations[id])
	}
	return out
}

// StationsNear станции с координатами не дальше radiusKm от center
func (r *Refresher) StationsNear(center models.GeoPoint, radiusKm float64) []*models.Station {
	var out []*models.Station
	for _, s := range r.Stations() {
		if s.Position != nil && s.Position.DistanceTo(center) <= radiusKm {
			out = append(out, s)
		}
	}
	return out
}

// Station станция по id
func (r *Refresher) Station(id string) (*models.Station, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ws.Station(id)
}

// Readings удерживаемые наблюдения, отсортированные по id
func (r *Refresher) Readings() []*models.Reading {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedReadings(r.ws.Readings())
}

// Changed наблюдения, измененные последним обновлением
func (r *Refresher) Changed() []*models.Reading {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return sortedReadings(r.ws.Changed())
}

// Reading наблюдение по id станции
func (r *Refresher) Reading(id string) (*models.Reading, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.ws.Reading(id)
}

// Status текущее состояние рабочего набора
func (r *Refresher) Status() Status {
	r.mu.RLock()
	defer r.mu.RUnlock()

	st := Status{
		Provider:        r.provider.Name(),
		Country:         r.provider.Country(),
		Stations:        len(r.ws.Stations()),
		Readings:        len(r.ws.Readings()),
		Changed:         len(r.ws.Changed()),
		StationsRefresh: r.stationsRefresh,
		ReadingsRefresh: r.readingsRefresh,
	}
	if r.lastErr != nil {
		st.LastRefreshError = r.lastErr.Error()
	}
	return st
}

// updateSizeMetrics вызывается под r.mu
func (r *Refresher) updateSizeMetrics() {
	metrics.WorkingSetSize.WithLabelValues(r.provider.Name(), "stations").Set(float64(len(r.ws.Stations())))
	metrics.WorkingSetSize.WithLabelValues(r.provider.Name(), "readings").Set(float64(len(r.ws.Readings())))
}

func sortedReadings(m map[string]*models.Reading) []*models.Reading {
	out := make([]*models.Reading, 0, len(m))
	for _, id := range slices.Sorted(maps.Keys(m)) {
		out = append(out, m[id])
	}
	return out
}

package provider

import (
	"github.com/flybeeper/balises-backend/internal/models"
)

// WorkingSet состояние одного источника: станции, наблюдения и наблюдения,
// измененные последним обновлением. changed не сохраняется в кэш.
//
// WorkingSet не синхронизирован; владелец обеспечивает одного писателя.
type WorkingSet struct {
	stations map[string]*models.Station
	readings map[string]*models.Reading
	changed  map[string]*models.Reading
}

// NewWorkingSet создает пустой рабочий набор. Наблюдения остаются nil до
// первого обновления или восстановления, что включает режим первичной загрузки.
func NewWorkingSet() *WorkingSet {
	return &WorkingSet{
		stations: make(map[string]*models.Station),
		changed:  make(map[string]*models.Reading),
	}
}

// SetStations заменяет набор станций целиком
func (ws *WorkingSet) SetStations(stations []*models.Station) {
	next := make(map[string]*models.Station, len(stations))
	for _, s := range stations {
		if s == nil || s.ID() == "" {
			continue
		}
		next[s.ID()] = s
	}
	ws.stations = next
}

// RestoreStations подставляет станции, восстановленные из кэша
func (ws *WorkingSet) RestoreStations(stations map[string]*models.Station) {
	if stations == nil {
		stations = make(map[string]*models.Station)
	}
	ws.stations = stations
}

// RestoreReadings подставляет наблюдения, восстановленные из кэша.
// Следующее обновление сравнивает с ними, а не загружает заново.
func (ws *WorkingSet) RestoreReadings(readings map[string]*models.Reading) {
	ws.readings = readings
}

// ApplyReadings очищает changed и сливает incoming в удерживаемые наблюдения
func (ws *WorkingSet) ApplyReadings(incoming map[string]*models.Reading) map[string]*models.Reading {
	clear(ws.changed)
	ws.readings, ws.changed = Reconcile(ws.readings, incoming)
	return ws.changed
}

// Stations удерживаемые станции
func (ws *WorkingSet) Stations() map[string]*models.Station {
	return ws.stations
}

// Readings удерживаемые наблюдения, nil до первой загрузки
func (ws *WorkingSet) Readings() map[string]*models.Reading {
	return ws.readings
}

// Changed наблюдения, замененные последним ApplyReadings
func (ws *WorkingSet) Changed() map[string]*models.Reading {
	return ws.changed
}

// Station возвращает станцию по id
func (ws *WorkingSet) Station(id string) (*models.Station, bool) {
	s, ok := ws.stations[id]
	return s, ok
}

// Reading возвращает наблюдение по id станции
func (ws *WorkingSet) Reading(id string) (*models.Reading, bool) {
	r, ok := ws.readings[id]
	return r, ok
}

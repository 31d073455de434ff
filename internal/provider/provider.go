// Package provider описывает источник данных метеостанций и рабочий набор,
// который источник держит между обновлениями.
package provider

import (
	"context"

	"github.com/flybeeper/balises-backend/internal/models"
)

// Provider источник станций и наблюдений.
// Реализации не хранят рабочий набор сами: им владеет WorkingSet.
type Provider interface {
	// Name короткое имя источника, используется в ключах кэша и топиках MQTT
	Name() string

	// Country код страны в верхнем регистре
	Country() string

	// NewStation и NewReading создают пустые сущности при восстановлении из кэша
	NewStation() *models.Station
	NewReading() *models.Reading

	// FetchStations загружает полный список станций
	FetchStations(ctx context.Context) ([]*models.Station, error)

	// FetchReadings загружает последние наблюдения по id станции
	FetchReadings(ctx context.Context) (map[string]*models.Reading, error)

	// IsAvailable проверка доступности источника, не авторитетная
	IsAvailable(ctx context.Context) bool

	// FilterErrorMessage убирает из сообщения секреты (ключи API)
	FilterErrorMessage(msg string) string

	// StationDetailURL и StationHistoryURL ссылки на страницы станции у источника
	StationDetailURL(id string) string
	StationHistoryURL(id string) string
}

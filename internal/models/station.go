package models

import (
	"fmt"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/flybeeper/balises-backend/internal/saveable"
)

// StationFormatTag тег формата Station, версия схемы 2
const StationFormatTag uint64 = 0x42414C4953450002

// Station представляет метеостанцию (balise). Набор станций провайдера
// заменяется целиком при обновлении списка, поля по отдельности не сливаются.
type Station struct {
	id   string
	hash uint64

	Name      string    // Название станции
	Country   string    // Код страны ISO
	Position  *GeoPoint // Координаты, nil = неизвестны
	Altitude  *int      // Высота (м)
	Active    *bool     // nil = неизвестно
	UpdatedAt time.Time // Время последнего обновления метаданных
}

// NewStation создает станцию с идентификатором id
func NewStation(id string) *Station {
	s := &Station{}
	s.SetID(id)
	return s
}

// ID возвращает идентификатор станции
func (s *Station) ID() string {
	return s.id
}

// SetID назначает идентификатор и пересчитывает hash
func (s *Station) SetID(id string) {
	s.id = id
	s.hash = xxhash.Sum64String(id)
}

// Hash возвращает hash, вычисленный из id
func (s *Station) Hash() uint64 {
	return s.hash
}

// Validate проверяет корректность данных станции
func (s *Station) Validate() error {
	if s.id == "" {
		return fmt.Errorf("id is required")
	}

	if s.Position != nil {
		if err := s.Position.Validate(); err != nil {
			return fmt.Errorf("position: %w", err)
		}
	}

	// Проверка высоты (реалистичные значения)
	if s.Altitude != nil && (*s.Altitude < -500 || *s.Altitude > 9000) {
		return fmt.Errorf("invalid altitude: %d", *s.Altitude)
	}

	return nil
}

// IsStale проверяет, устарели ли метаданные станции
func (s *Station) IsStale(maxAge time.Duration) bool {
	return s.UpdatedAt.IsZero() || time.Since(s.UpdatedAt) > maxAge
}

// FormatTag реализует saveable.Saveable
func (s *Station) FormatTag() uint64 {
	return StationFormatTag
}

// SaveSaveable пишет станцию в фиксированном порядке полей
func (s *Station) SaveSaveable(w *saveable.Writer) error {
	if s.id == "" {
		return fmt.Errorf("%w: station without id", saveable.ErrEncode)
	}

	w.WriteTag(StationFormatTag)
	w.WriteString(s.id)
	w.WriteString(s.Name)
	w.WriteString(s.Country)
	w.WriteBool(s.Position != nil)
	if s.Position != nil {
		w.WriteFloat(s.Position.Latitude)
		w.WriteFloat(s.Position.Longitude)
	}
	w.WriteOptionalInt(s.Altitude)
	w.WriteTriState(s.Active)
	w.WriteTime(s.UpdatedAt)

	return nil
}

// LoadSaveable проверяет тег формата и читает поля
func (s *Station) LoadSaveable(r *saveable.Reader) error {
	if err := r.CheckTag(StationFormatTag); err != nil {
		return err
	}

	s.SetID(r.ReadString())
	s.Name = r.ReadString()
	s.Country = r.ReadString()
	s.Position = nil
	if r.ReadBool() {
		s.Position = &GeoPoint{
			Latitude:  r.ReadFloat(),
			Longitude: r.ReadFloat(),
		}
	}
	s.Altitude = r.ReadOptionalInt()
	s.Active = r.ReadTriState()
	s.UpdatedAt = r.ReadTime()

	if err := r.Err(); err != nil {
		return err
	}
	if s.id == "" {
		return fmt.Errorf("%w: station without id", saveable.ErrCorrupt)
	}
	return nil
}

package cache

import (
	"bytes"
	"encoding/gob"
	"fmt"
	"math"
	"time"

	"github.com/flybeeper/balises-backend/internal/models"
)

// Прежний формат кэша: вся коллекция одним gob-значением, без сжатия.
// Отсутствующие значения обозначались sentinel-значениями: NaN для
// дробных, math.MinInt32 для целых, legacyBoolNull для тройного состояния.
// Формат только читается, новые данные в нем не сохраняются.

const (
	legacyBoolNull  = -1
	legacyBoolFalse = 0
	legacyBoolTrue  = 1
)

type legacyStation struct {
	ID        string
	Name      string
	Country   string
	Latitude  float64
	Longitude float64
	Altitude  int32
	Active    int
	UpdatedAt *int64
}

type legacyReading struct {
	ID                  string
	Date                *int64
	PreviousDate        *int64
	WindAvg             float64
	WindAvgTrend        float64
	WindMin             float64
	WindMinTrend        float64
	WindMax             float64
	WindMaxTrend        float64
	WindMaxDate         *int64
	DirectionAvg        int32
	DirectionInstant    int32
	DirectionVariation1 int32
	DirectionVariation2 int32
	Temperature         float64
	DewPoint            float64
	Rain                int32
	Hydrometry          float64
	Clouds              int32
	CloudCeiling        int32
	Cumulonimbus        int
	Pressure            float64
	Luminosity          string
	Humidity            int32
}

// gobDecode декодирует gob; паника декодера на мусорных данных становится ошибкой
func gobDecode(data []byte, v interface{}) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = fmt.Errorf("legacy decoder panic: %v", p)
		}
	}()
	return gob.NewDecoder(bytes.NewReader(data)).Decode(v)
}

func decodeLegacyStations(data []byte, factory Factory) (map[string]*models.Station, error) {
	var legacy map[string]*legacyStation
	if err := gobDecode(data, &legacy); err != nil {
		return nil, fmt.Errorf("failed to decode legacy stations: %w", err)
	}

	stations := make(map[string]*models.Station, len(legacy))
	for key, ls := range legacy {
		if ls == nil || ls.ID == "" {
			return nil, fmt.Errorf("legacy station %q without id", key)
		}
		s := factory.NewStation()
		s.SetID(ls.ID)
		s.Name = ls.Name
		s.Country = ls.Country
		if !math.IsNaN(ls.Latitude) && !math.IsNaN(ls.Longitude) {
			s.Position = &models.GeoPoint{Latitude: ls.Latitude, Longitude: ls.Longitude}
		}
		s.Altitude = fromLegacyInt(ls.Altitude)
		s.Active = fromLegacyBool(ls.Active)
		s.UpdatedAt = fromLegacyTime(ls.UpdatedAt)
		stations[s.ID()] = s
	}
	return stations, nil
}

func decodeLegacyReadings(data []byte, factory Factory) (map[string]*models.Reading, error) {
	var legacy map[string]*legacyReading
	if err := gobDecode(data, &legacy); err != nil {
		return nil, fmt.Errorf("failed to decode legacy readings: %w", err)
	}

	readings := make(map[string]*models.Reading, len(legacy))
	for key, lr := range legacy {
		if lr == nil || lr.ID == "" {
			return nil, fmt.Errorf("legacy reading %q without id", key)
		}
		r := factory.NewReading()
		r.SetID(lr.ID)
		r.Date = fromLegacyTime(lr.Date)
		r.PreviousDate = fromLegacyTime(lr.PreviousDate)
		r.WindAvg = fromLegacyFloat(lr.WindAvg)
		r.WindAvgTrend = fromLegacyFloat(lr.WindAvgTrend)
		r.WindMin = fromLegacyFloat(lr.WindMin)
		r.WindMinTrend = fromLegacyFloat(lr.WindMinTrend)
		r.WindMax = fromLegacyFloat(lr.WindMax)
		r.WindMaxTrend = fromLegacyFloat(lr.WindMaxTrend)
		r.WindMaxDate = fromLegacyTime(lr.WindMaxDate)
		r.DirectionAvg = fromLegacyInt(lr.DirectionAvg)
		r.DirectionInstant = fromLegacyInt(lr.DirectionInstant)
		r.DirectionVariation1 = fromLegacyInt(lr.DirectionVariation1)
		r.DirectionVariation2 = fromLegacyInt(lr.DirectionVariation2)
		r.Temperature = fromLegacyFloat(lr.Temperature)
		r.DewPoint = fromLegacyFloat(lr.DewPoint)
		r.Rain = fromLegacyRain(lr.Rain)
		r.Hydrometry = fromLegacyFloat(lr.Hydrometry)
		r.Clouds = fromLegacyInt(lr.Clouds)
		r.CloudCeiling = fromLegacyInt(lr.CloudCeiling)
		r.Cumulonimbus = fromLegacyBool(lr.Cumulonimbus)
		r.Pressure = fromLegacyFloat(lr.Pressure)
		if lr.Luminosity != "" {
			r.Luminosity = models.String(lr.Luminosity)
		}
		r.Humidity = fromLegacyInt(lr.Humidity)
		readings[r.ID()] = r
	}
	return readings, nil
}

func fromLegacyFloat(v float64) *float64 {
	if math.IsNaN(v) {
		return nil
	}
	return &v
}

func fromLegacyInt(v int32) *int {
	if v == math.MinInt32 {
		return nil
	}
	i := int(v)
	return &i
}

func fromLegacyBool(v int) *bool {
	switch v {
	case legacyBoolTrue:
		return models.Bool(true)
	case legacyBoolFalse:
		return models.Bool(false)
	default:
		return nil
	}
}

func fromLegacyTime(ms *int64) time.Time {
	if ms == nil {
		return time.Time{}
	}
	return time.UnixMilli(*ms).UTC()
}

// fromLegacyRain значение вне перечисления считается отсутствующим
func fromLegacyRain(v int32) *models.Rain {
	rain := fromLegacyInt(v)
	if rain == nil || !models.Rain(*rain).Valid() {
		return nil
	}
	return models.RainPtr(models.Rain(*rain))
}

package models

import (
	"encoding/json"
	"time"
)

// Точность geohash в JSON представлении станции
const StationGeohashPrecision = 7

type stationJSON struct {
	ID        string     `json:"id"`
	Name      string     `json:"name,omitempty"`
	Country   string     `json:"country,omitempty"`
	Position  *GeoPoint  `json:"position,omitempty"`
	Geohash   string     `json:"geohash,omitempty"`
	Altitude  *int       `json:"altitude,omitempty"`
	Active    *bool      `json:"active,omitempty"`
	UpdatedAt *time.Time `json:"updated_at,omitempty"`
}

// MarshalJSON сериализует станцию вместе с id и geohash
func (s *Station) MarshalJSON() ([]byte, error) {
	v := stationJSON{
		ID:        s.id,
		Name:      s.Name,
		Country:   s.Country,
		Position:  s.Position,
		Altitude:  s.Altitude,
		Active:    s.Active,
		UpdatedAt: timePtr(s.UpdatedAt),
	}
	if s.Position != nil {
		v.Geohash = s.Position.Geohash(StationGeohashPrecision)
	}
	return json.Marshal(v)
}

// UnmarshalJSON восстанавливает станцию, geohash игнорируется
func (s *Station) UnmarshalJSON(data []byte) error {
	var v stationJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	s.SetID(v.ID)
	s.Name = v.Name
	s.Country = v.Country
	s.Position = v.Position
	s.Altitude = v.Altitude
	s.Active = v.Active
	s.UpdatedAt = timeValue(v.UpdatedAt)
	return nil
}

type readingJSON struct {
	ID                  string     `json:"id"`
	Date                *time.Time `json:"date,omitempty"`
	PreviousDate        *time.Time `json:"previous_date,omitempty"`
	WindAvg             *float64   `json:"wind_avg,omitempty"`
	WindAvgTrend        *float64   `json:"wind_avg_trend,omitempty"`
	WindMin             *float64   `json:"wind_min,omitempty"`
	WindMinTrend        *float64   `json:"wind_min_trend,omitempty"`
	WindMax             *float64   `json:"wind_max,omitempty"`
	WindMaxTrend        *float64   `json:"wind_max_trend,omitempty"`
	WindMaxDate         *time.Time `json:"wind_max_date,omitempty"`
	DirectionAvg        *int       `json:"direction_avg,omitempty"`
	DirectionInstant    *int       `json:"direction_instant,omitempty"`
	DirectionVariation1 *int       `json:"direction_variation_1,omitempty"`
	DirectionVariation2 *int       `json:"direction_variation_2,omitempty"`
	Temperature         *float64   `json:"temperature,omitempty"`
	DewPoint            *float64   `json:"dew_point,omitempty"`
	Rain                *Rain      `json:"rain,omitempty"`
	Hydrometry          *float64   `json:"hydrometry,omitempty"`
	Clouds              *int       `json:"clouds,omitempty"`
	CloudCeiling        *int       `json:"cloud_ceiling,omitempty"`
	Cumulonimbus        *bool      `json:"cumulonimbus,omitempty"`
	Pressure            *float64   `json:"pressure,omitempty"`
	Luminosity          *string    `json:"luminosity,omitempty"`
	Humidity            *int       `json:"humidity,omitempty"`
}

// MarshalJSON сериализует наблюдение, отсутствующие поля опускаются
func (r *Reading) MarshalJSON() ([]byte, error) {
	return json.Marshal(readingJSON{
		ID:                  r.id,
		Date:                timePtr(r.Date),
		PreviousDate:        timePtr(r.PreviousDate),
		WindAvg:             r.WindAvg,
		WindAvgTrend:        r.WindAvgTrend,
		WindMin:             r.WindMin,
		WindMinTrend:        r.WindMinTrend,
		WindMax:             r.WindMax,
		WindMaxTrend:        r.WindMaxTrend,
		WindMaxDate:         timePtr(r.WindMaxDate),
		DirectionAvg:        r.DirectionAvg,
		DirectionInstant:    r.DirectionInstant,
		DirectionVariation1: r.DirectionVariation1,
		DirectionVariation2: r.DirectionVariation2,
		Temperature:         r.Temperature,
		DewPoint:            r.DewPoint,
		Rain:                r.Rain,
		Hydrometry:          r.Hydrometry,
		Clouds:              r.Clouds,
		CloudCeiling:        r.CloudCeiling,
		Cumulonimbus:        r.Cumulonimbus,
		Pressure:            r.Pressure,
		Luminosity:          r.Luminosity,
		Humidity:            r.Humidity,
	})
}

// UnmarshalJSON восстанавливает наблюдение
func (r *Reading) UnmarshalJSON(data []byte) error {
	var v readingJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	r.SetID(v.ID)
	r.Date = timeValue(v.Date)
	r.PreviousDate = timeValue(v.PreviousDate)
	r.WindAvg = v.WindAvg
	r.WindAvgTrend = v.WindAvgTrend
	r.WindMin = v.WindMin
	r.WindMinTrend = v.WindMinTrend
	r.WindMax = v.WindMax
	r.WindMaxTrend = v.WindMaxTrend
	r.WindMaxDate = timeValue(v.WindMaxDate)
	r.DirectionAvg = v.DirectionAvg
	r.DirectionInstant = v.DirectionInstant
	r.DirectionVariation1 = v.DirectionVariation1
	r.DirectionVariation2 = v.DirectionVariation2
	r.Temperature = v.Temperature
	r.DewPoint = v.DewPoint
	r.Rain = v.Rain
	r.Hydrometry = v.Hydrometry
	r.Clouds = v.Clouds
	r.CloudCeiling = v.CloudCeiling
	r.Cumulonimbus = v.Cumulonimbus
	r.Pressure = v.Pressure
	r.Luminosity = v.Luminosity
	r.Humidity = v.Humidity
	return nil
}

func timePtr(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	u := t.UTC()
	return &u
}

func timeValue(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return t.UTC()
}

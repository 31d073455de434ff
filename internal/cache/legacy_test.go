package cache

import (
	"bytes"
	"encoding/gob"
	"math"
	"time"

	"github.com/flybeeper/balises-backend/internal/models"
)

// Кодировщики прежнего формата нужны только тестам миграции

func encodeLegacyStations(stations map[string]*models.Station) ([]byte, error) {
	legacy := make(map[string]*legacyStation, len(stations))
	for id, s := range stations {
		ls := &legacyStation{
			ID:        s.ID(),
			Name:      s.Name,
			Country:   s.Country,
			Latitude:  math.NaN(),
			Longitude: math.NaN(),
			Altitude:  toLegacyInt(s.Altitude),
			Active:    toLegacyBool(s.Active),
			UpdatedAt: toLegacyTime(s.UpdatedAt),
		}
		if s.Position != nil {
			ls.Latitude = s.Position.Latitude
			ls.Longitude = s.Position.Longitude
		}
		legacy[id] = ls
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(legacy); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeLegacyReadings(readings map[string]*models.Reading) ([]byte, error) {
	legacy := make(map[string]*legacyReading, len(readings))
	for id, r := range readings {
		lr := &legacyReading{
			ID:                  r.ID(),
			Date:                toLegacyTime(r.Date),
			PreviousDate:        toLegacyTime(r.PreviousDate),
			WindAvg:             toLegacyFloat(r.WindAvg),
			WindAvgTrend:        toLegacyFloat(r.WindAvgTrend),
			WindMin:             toLegacyFloat(r.WindMin),
			WindMinTrend:        toLegacyFloat(r.WindMinTrend),
			WindMax:             toLegacyFloat(r.WindMax),
			WindMaxTrend:        toLegacyFloat(r.WindMaxTrend),
			WindMaxDate:         toLegacyTime(r.WindMaxDate),
			DirectionAvg:        toLegacyInt(r.DirectionAvg),
			DirectionInstant:    toLegacyInt(r.DirectionInstant),
			DirectionVariation1: toLegacyInt(r.DirectionVariation1),
			DirectionVariation2: toLegacyInt(r.DirectionVariation2),
			Temperature:         toLegacyFloat(r.Temperature),
			DewPoint:            toLegacyFloat(r.DewPoint),
			Rain:                math.MinInt32,
			Hydrometry:          toLegacyFloat(r.Hydrometry),
			Clouds:              toLegacyInt(r.Clouds),
			CloudCeiling:        toLegacyInt(r.CloudCeiling),
			Cumulonimbus:        toLegacyBool(r.Cumulonimbus),
			Pressure:            toLegacyFloat(r.Pressure),
			Humidity:            toLegacyInt(r.Humidity),
		}
		if r.Rain != nil {
			lr.Rain = int32(*r.Rain)
		}
		if r.Luminosity != nil {
			lr.Luminosity = *r.Luminosity
		}
		legacy[id] = lr
	}

	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(legacy); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func toLegacyFloat(v *float64) float64 {
	if v == nil {
		return math.NaN()
	}
	return *v
}

func toLegacyInt(v *int) int32 {
	if v == nil {
		return math.MinInt32
	}
	return int32(*v)
}

func toLegacyBool(v *bool) int {
	switch {
	case v == nil:
		return legacyBoolNull
	case *v:
		return legacyBoolTrue
	default:
		return legacyBoolFalse
	}
}

func toLegacyTime(t time.Time) *int64 {
	if t.IsZero() {
		return nil
	}
	ms := t.UnixMilli()
	return &ms
}

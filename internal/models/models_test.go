package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/flybeeper/balises-backend/internal/saveable"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var observed = time.Date(2024, 7, 14, 12, 30, 0, 0, time.UTC)

func fullReading() *Reading {
	r := NewReading("67001")
	r.Date = observed
	r.PreviousDate = observed.Add(-10 * time.Minute)
	r.WindAvg = Float(18.5)
	r.WindAvgTrend = Float(-1.5)
	r.WindMin = Float(9)
	r.WindMinTrend = Float(0)
	r.WindMax = Float(31.2)
	r.WindMaxTrend = Float(4)
	r.WindMaxDate = observed.Add(-3 * time.Minute)
	r.DirectionAvg = Int(270)
	r.DirectionInstant = Int(292)
	r.DirectionVariation1 = Int(247)
	r.DirectionVariation2 = Int(315)
	r.Temperature = Float(-3.25)
	r.DewPoint = Float(-8)
	r.Rain = RainPtr(RainLight)
	r.Hydrometry = Float(0.82)
	r.Clouds = Int(6)
	r.CloudCeiling = Int(1200)
	r.Cumulonimbus = Bool(false)
	r.Pressure = Float(1013.2)
	r.Luminosity = String("day")
	r.Humidity = Int(77)
	return r
}

func fullStation() *Station {
	s := NewStation("67002")
	s.Name = "Le Markstein"
	s.Country = "FR"
	s.Position = &GeoPoint{Latitude: 47.92, Longitude: 7.03}
	s.Altitude = Int(1183)
	s.Active = Bool(true)
	s.UpdatedAt = observed
	return s
}

func TestReading_SaveableRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   *Reading
	}{
		{name: "all absent", in: NewReading("67001")},
		{name: "all present", in: fullReading()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := saveable.Marshal(tt.in)
			require.NoError(t, err)

			out := &Reading{}
			require.NoError(t, saveable.Unmarshal(data, out))
			assert.Equal(t, tt.in, out)
			assert.Equal(t, tt.in.Hash(), out.Hash())
		})
	}
}

func TestStation_SaveableRoundTrip(t *testing.T) {
	tests := []struct {
		name string
		in   *Station
	}{
		{name: "all absent", in: NewStation("67001")},
		{name: "all present", in: fullStation()},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			data, err := saveable.Marshal(tt.in)
			require.NoError(t, err)

			out := &Station{}
			require.NoError(t, saveable.Unmarshal(data, out))
			assert.Equal(t, tt.in, out)
		})
	}
}

func TestSaveable_EncodeWithoutID(t *testing.T) {
	_, err := saveable.Marshal(&Reading{})
	assert.ErrorIs(t, err, saveable.ErrEncode)

	_, err = saveable.Marshal(&Station{})
	assert.ErrorIs(t, err, saveable.ErrEncode)
}

func TestReading_EncodeInvalidRain(t *testing.T) {
	r := fullReading()
	r.Rain = RainPtr(Rain(7))

	_, err := saveable.Marshal(r)
	assert.ErrorIs(t, err, saveable.ErrEncode)
}

func TestSaveable_WrongEntityType(t *testing.T) {
	data, err := saveable.Marshal(NewStation("67001"))
	require.NoError(t, err)

	err = saveable.Unmarshal(data, &Reading{})
	assert.ErrorIs(t, err, saveable.ErrFormatMismatch)
}

func TestReading_TruncatedRecord(t *testing.T) {
	data, err := saveable.Marshal(fullReading())
	require.NoError(t, err)

	for _, n := range []int{0, 7, 9, len(data) / 2, len(data) - 1} {
		err := saveable.Unmarshal(data[:n], &Reading{})
		assert.ErrorIs(t, err, saveable.ErrCorrupt, "cut at %d", n)
	}
}

func TestReading_EqualAndHash(t *testing.T) {
	a := NewReading("67001")
	a.Date = observed
	a.WindAvg = Float(10)

	b := NewReading("67001")
	b.Date = observed
	b.WindAvg = Float(25)

	later := NewReading("67001")
	later.Date = observed.Add(10 * time.Minute)

	other := NewReading("67002")
	other.Date = observed

	assert.True(t, a.Equal(b), "measurements do not take part in equality")
	assert.Equal(t, a.Hash(), b.Hash())

	assert.False(t, a.Equal(later))
	assert.Equal(t, a.Hash(), later.Hash(), "hash depends on id only")

	assert.False(t, a.Equal(other))
	assert.False(t, a.Equal(nil))

	undated := NewReading("67001")
	assert.True(t, undated.Equal(later))
}

func TestReading_Validate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(r *Reading)
		wantErr string
	}{
		{name: "valid", mutate: func(r *Reading) {}},
		{name: "no id", mutate: func(r *Reading) { r.SetID("") }, wantErr: "id is required"},
		{name: "direction 360", mutate: func(r *Reading) { r.DirectionAvg = Int(360) }, wantErr: "direction_avg"},
		{name: "negative wind", mutate: func(r *Reading) { r.WindMax = Float(-1) }, wantErr: "wind_max"},
		{name: "unknown rain", mutate: func(r *Reading) { r.Rain = RainPtr(Rain(9)) }, wantErr: "rain"},
		{name: "clouds over 8", mutate: func(r *Reading) { r.Clouds = Int(9) }, wantErr: "clouds"},
		{name: "humidity over 100", mutate: func(r *Reading) { r.Humidity = Int(101) }, wantErr: "humidity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := fullReading()
			tt.mutate(r)
			err := r.Validate()
			if tt.wantErr == "" {
				assert.NoError(t, err)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestStation_Validate(t *testing.T) {
	s := NewStation("67001")
	assert.NoError(t, s.Validate())

	s.Position = &GeoPoint{Latitude: 95, Longitude: 7}
	assert.Error(t, s.Validate())

	s.Position = &GeoPoint{Latitude: 47.9, Longitude: 7}
	s.Altitude = Int(12000)
	assert.Error(t, s.Validate())

	assert.Error(t, (&Station{}).Validate())
}

func TestReading_JSON(t *testing.T) {
	r := NewReading("67001")
	r.Date = observed
	r.WindAvg = Float(0)
	r.Rain = RainPtr(RainNone)

	data, err := json.Marshal(r)
	require.NoError(t, err)
	assert.JSONEq(t, `{"id":"67001","date":"2024-07-14T12:30:00Z","wind_avg":0,"rain":0}`, string(data))

	var back Reading
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, r, &back)
}

func TestStation_JSON(t *testing.T) {
	s := NewStation("67001")
	s.Name = "Le Markstein"
	s.Position = &GeoPoint{Latitude: 47.92, Longitude: 7.03}

	data, err := json.Marshal(s)
	require.NoError(t, err)

	var raw map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &raw))
	assert.Equal(t, "67001", raw["id"])
	assert.Equal(t, s.Position.Geohash(StationGeohashPrecision), raw["geohash"])
	assert.NotContains(t, raw, "altitude")

	var back Station
	require.NoError(t, json.Unmarshal(data, &back))
	assert.Equal(t, s, &back)
}

func TestRain_String(t *testing.T) {
	assert.Equal(t, "moderate", RainModerate.String())
	assert.Equal(t, "rain(7)", Rain(7).String())
}

package models

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGeoPoint_Validate(t *testing.T) {
	tests := []struct {
		name    string
		point   GeoPoint
		wantErr string
	}{
		{name: "Vosges", point: GeoPoint{Latitude: 48.06, Longitude: 7.02}},
		{name: "North Pole", point: GeoPoint{Latitude: 90, Longitude: 0}},
		{name: "Date line negative", point: GeoPoint{Latitude: 0, Longitude: -180}},
		{name: "latitude too high", point: GeoPoint{Latitude: 91, Longitude: 0}, wantErr: "invalid latitude"},
		{name: "latitude too low", point: GeoPoint{Latitude: -91, Longitude: 0}, wantErr: "invalid latitude"},
		{name: "longitude too high", point: GeoPoint{Latitude: 0, Longitude: 181}, wantErr: "invalid longitude"},
		{name: "NaN", point: GeoPoint{Latitude: math.NaN(), Longitude: 7}, wantErr: "NaN"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.point.Validate()
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestGeoPoint_DistanceTo(t *testing.T) {
	tests := []struct {
		name      string
		a, b      GeoPoint
		expected  float64
		tolerance float64
	}{
		{
			name:      "same point",
			a:         GeoPoint{Latitude: 45.9, Longitude: 6.1},
			b:         GeoPoint{Latitude: 45.9, Longitude: 6.1},
			expected:  0,
			tolerance: 0.01,
		},
		{
			name:      "1 degree latitude",
			a:         GeoPoint{Latitude: 45, Longitude: 6},
			b:         GeoPoint{Latitude: 46, Longitude: 6},
			expected:  111,
			tolerance: 2,
		},
		{
			name:      "Annecy to Chamonix",
			a:         GeoPoint{Latitude: 45.8992, Longitude: 6.1294},
			b:         GeoPoint{Latitude: 45.9237, Longitude: 6.8694},
			expected:  57,
			tolerance: 3,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := tt.a.DistanceTo(tt.b)
			assert.InDelta(t, tt.expected, d, tt.tolerance)
			assert.InDelta(t, d, tt.b.DistanceTo(tt.a), 1e-9)
		})
	}
}

func TestGeoPoint_Geohash(t *testing.T) {
	p := GeoPoint{Latitude: 45.8992, Longitude: 6.1294}

	for _, precision := range []int{5, 7, 9} {
		assert.Len(t, p.Geohash(precision), precision)
	}
	assert.Equal(t, p.Geohash(7)[:5], p.Geohash(5))
}

func TestGeoPoint_JSON(t *testing.T) {
	data, err := json.Marshal(GeoPoint{Latitude: 45.5, Longitude: 6.25})
	require.NoError(t, err)
	assert.JSONEq(t, `{"lat":45.5,"lon":6.25}`, string(data))
}

func BenchmarkGeoPoint_DistanceTo(b *testing.B) {
	p1 := GeoPoint{Latitude: 45.9, Longitude: 6.1}
	p2 := GeoPoint{Latitude: 46.9, Longitude: 7.1}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = p1.DistanceTo(p2)
	}
}

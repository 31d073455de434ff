package provider

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flybeeper/balises-backend/internal/models"
)

func TestWorkingSet_SetStationsReplacesWholesale(t *testing.T) {
	ws := NewWorkingSet()
	ws.SetStations([]*models.Station{models.NewStation("A"), models.NewStation("B")})
	ws.SetStations([]*models.Station{models.NewStation("C"), nil, models.NewStation("")})

	require.Len(t, ws.Stations(), 1)
	_, ok := ws.Station("C")
	assert.True(t, ok)
	_, ok = ws.Station("A")
	assert.False(t, ok)
}

func TestWorkingSet_ApplyReadingsRebuildsChanged(t *testing.T) {
	ws := NewWorkingSet()
	assert.Nil(t, ws.Readings())

	changed := ws.ApplyReadings(map[string]*models.Reading{
		"S1": reading("S1", 100, models.Float(5)),
		"S2": reading("S2", 100, models.Float(5)),
	})
	assert.Len(t, changed, 2)

	changed = ws.ApplyReadings(map[string]*models.Reading{
		"S1": reading("S1", 200, models.Float(8)),
	})
	assert.Len(t, changed, 1)
	assert.Len(t, ws.Changed(), 1)
	assert.Len(t, ws.Readings(), 2)

	r, ok := ws.Reading("S1")
	require.True(t, ok)
	require.NotNil(t, r.WindAvgTrend)
	assert.InDelta(t, 3.0, *r.WindAvgTrend, 1e-9)
}

func TestWorkingSet_RestoredReadingsAreDiffedAgainst(t *testing.T) {
	ws := NewWorkingSet()
	ws.RestoreReadings(map[string]*models.Reading{"S1": reading("S1", 100, models.Float(5))})

	changed := ws.ApplyReadings(map[string]*models.Reading{"S1": reading("S1", 100, models.Float(5))})

	assert.Empty(t, changed)
}

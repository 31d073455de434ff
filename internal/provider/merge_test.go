package provider

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/flybeeper/balises-backend/internal/models"
)

func ms(v int64) time.Time {
	return time.UnixMilli(v).UTC()
}

func reading(id string, date int64, avg *float64) *models.Reading {
	r := models.NewReading(id)
	if date >= 0 {
		r.Date = ms(date)
	}
	r.WindAvg = avg
	return r
}

func TestReconcile_ComputesTrendWhenHeldIsFresher(t *testing.T) {
	held := map[string]*models.Reading{"S1": reading("S1", 100, models.Float(5))}
	next := reading("S1", 200, models.Float(8))
	next.PreviousDate = ms(50)

	newHeld, changed := Reconcile(held, map[string]*models.Reading{"S1": next})

	require.Contains(t, changed, "S1")
	got := newHeld["S1"]
	assert.Equal(t, ms(200), got.Date)
	assert.Equal(t, ms(100), got.PreviousDate)
	require.NotNil(t, got.WindAvgTrend)
	assert.InDelta(t, 3.0, *got.WindAvgTrend, 1e-9)
	assert.Equal(t, 8.0, *got.WindAvg)
}

func TestReconcile_Bootstrap(t *testing.T) {
	incoming := map[string]*models.Reading{
		"S1": reading("S1", 100, models.Float(5)),
		"S2": reading("S2", -1, nil),
		"S3": nil,
	}

	newHeld, changed := Reconcile(nil, incoming)

	assert.Len(t, newHeld, 2)
	assert.Len(t, changed, 2)
	assert.Nil(t, newHeld["S1"].WindAvgTrend)
	assert.NotContains(t, newHeld, "S3")
	assert.NotContains(t, changed, "S3")

	// changed отдельная карта: ее очистка не трогает рабочий набор
	clear(changed)
	assert.Len(t, newHeld, 2)
}

func TestReconcile_Idempotent(t *testing.T) {
	tests := []struct {
		name     string
		held     map[string]*models.Reading
		incoming map[string]*models.Reading
	}{
		{
			name:     "bootstrap",
			held:     nil,
			incoming: map[string]*models.Reading{"S1": reading("S1", 100, models.Float(1))},
		},
		{
			name: "newer reading",
			held: map[string]*models.Reading{"S1": reading("S1", 100, models.Float(1))},
			incoming: map[string]*models.Reading{
				"S1": reading("S1", 200, models.Float(2)),
				"S2": reading("S2", 50, nil),
			},
		},
		{
			name:     "readings without timestamps",
			held:     map[string]*models.Reading{},
			incoming: map[string]*models.Reading{"S1": reading("S1", -1, models.Float(2))},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			held, first := Reconcile(tt.held, tt.incoming)
			assert.NotEmpty(t, first)

			_, second := Reconcile(held, tt.incoming)
			assert.Empty(t, second)
		})
	}
}

func TestReconcile_TimestampOrdering(t *testing.T) {
	tests := []struct {
		name        string
		heldDate    int64
		nextDate    int64
		wantChanged bool
	}{
		{"strictly newer wins", 100, 101, true},
		{"equal is ignored", 100, 100, false},
		{"older is ignored", 100, 99, false},
		{"absent never beats present", 100, -1, false},
		{"present beats absent", -1, 100, true},
		{"absent does not beat absent", -1, -1, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prev := reading("S1", tt.heldDate, models.Float(5))
			held := map[string]*models.Reading{"S1": prev}
			next := reading("S1", tt.nextDate, models.Float(9))

			newHeld, changed := Reconcile(held, map[string]*models.Reading{"S1": next})

			if tt.wantChanged {
				assert.Contains(t, changed, "S1")
				assert.Same(t, next, newHeld["S1"])
			} else {
				assert.NotContains(t, changed, "S1")
				assert.Same(t, prev, newHeld["S1"])
			}
		})
	}
}

func TestReconcile_TrendGuard(t *testing.T) {
	serverTrend := models.Float(-1)

	tests := []struct {
		name      string
		prevDate  int64
		serverPrv int64
		wantTrend float64
		wantPrev  int64
	}{
		{"held fresher than declared previous", 100, 50, 3, 100},
		{"no declared previous", 100, -1, 3, 100},
		{"declared previous equals held", 100, 100, -1, 100},
		{"declared previous newer than held", 100, 150, -1, 150},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			held := map[string]*models.Reading{"S1": reading("S1", tt.prevDate, models.Float(5))}
			next := reading("S1", 200, models.Float(8))
			next.WindAvgTrend = serverTrend
			if tt.serverPrv >= 0 {
				next.PreviousDate = ms(tt.serverPrv)
			}

			newHeld, _ := Reconcile(held, map[string]*models.Reading{"S1": next})

			got := newHeld["S1"]
			require.NotNil(t, got.WindAvgTrend)
			assert.InDelta(t, tt.wantTrend, *got.WindAvgTrend, 1e-9)
			assert.Equal(t, ms(tt.wantPrev), got.PreviousDate)
		})
	}
}

func TestReconcile_TrendNeedsBothValues(t *testing.T) {
	prev := reading("S1", 100, models.Float(5))
	prev.WindMin = nil
	prev.WindMax = models.Float(12)
	held := map[string]*models.Reading{"S1": prev}

	next := reading("S1", 200, nil)
	next.WindMin = models.Float(2)
	next.WindMax = models.Float(20)

	newHeld, _ := Reconcile(held, map[string]*models.Reading{"S1": next})

	got := newHeld["S1"]
	assert.Nil(t, got.WindAvgTrend)
	assert.Nil(t, got.WindMinTrend)
	require.NotNil(t, got.WindMaxTrend)
	assert.InDelta(t, 8.0, *got.WindMaxTrend, 1e-9)
}

func TestReconcile_KeepsUntouchedEntries(t *testing.T) {
	held := map[string]*models.Reading{
		"S1": reading("S1", 100, models.Float(5)),
		"S2": reading("S2", 100, models.Float(6)),
	}

	newHeld, changed := Reconcile(held, map[string]*models.Reading{"S1": reading("S1", 200, models.Float(7))})

	assert.Len(t, newHeld, 2)
	assert.Equal(t, []string{"S1"}, keys(changed))
	assert.Equal(t, 6.0, *newHeld["S2"].WindAvg)
}

func keys(m map[string]*models.Reading) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	return out
}

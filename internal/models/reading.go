package models

import (
	"fmt"
	"strings"
	"time"

	"github.com/cespare/xxhash/v2"
	"github.com/flybeeper/balises-backend/internal/saveable"
)

// ReadingFormatTag тег формата Reading, версия схемы 2 (флаги присутствия)
const ReadingFormatTag uint64 = 0x52454C4556450002

// Rain интенсивность осадков
type Rain int

const (
	RainNone Rain = iota
	RainLight
	RainModerate
	RainHeavy
	RainTorrential
)

// Valid проверяет, что значение входит в перечисление
func (r Rain) Valid() bool {
	return r >= RainNone && r <= RainTorrential
}

// String возвращает название интенсивности
func (r Rain) String() string {
	switch r {
	case RainNone:
		return "none"
	case RainLight:
		return "light"
	case RainModerate:
		return "moderate"
	case RainHeavy:
		return "heavy"
	case RainTorrential:
		return "torrential"
	default:
		return fmt.Sprintf("rain(%d)", int(r))
	}
}

// Reading представляет одно наблюдение метеостанции (releve).
//
// Идентичность определяется только id станции. Hash вычисляется один раз
// при назначении id и не зависит от изменяемых полей измерений, тогда как
// Equal дополнительно сравнивает Date. Два равных Reading всегда имеют
// одинаковый Hash; изменение Date на Hash не влияет. Это намеренно.
type Reading struct {
	id   string
	hash uint64

	Date         time.Time // Время наблюдения, нулевое = отсутствует
	PreviousDate time.Time // Время предыдущего наблюдения по данным станции

	WindAvg      *float64 // Средний ветер (км/ч)
	WindAvgTrend *float64 // Тренд = текущее - предыдущее
	WindMin      *float64
	WindMinTrend *float64
	WindMax      *float64
	WindMaxTrend *float64
	WindMaxDate  time.Time // Время максимального порыва

	DirectionAvg        *int // Градусы, nil = неизвестно
	DirectionInstant    *int
	DirectionVariation1 *int
	DirectionVariation2 *int

	Temperature  *float64 // °C
	DewPoint     *float64 // °C
	Rain         *Rain
	Hydrometry   *float64 // Доля влажности
	Clouds       *int     // В восьмых
	CloudCeiling *int     // Высота нижней границы облаков (м)
	Cumulonimbus *bool    // nil = неизвестно
	Pressure     *float64 // гПа
	Luminosity   *string
	Humidity     *int // Относительная влажность (%)
}

// NewReading создает наблюдение для станции id
func NewReading(id string) *Reading {
	r := &Reading{}
	r.SetID(id)
	return r
}

// ID возвращает идентификатор станции
func (r *Reading) ID() string {
	return r.id
}

// SetID назначает идентификатор и пересчитывает hash
func (r *Reading) SetID(id string) {
	r.id = id
	r.hash = xxhash.Sum64String(id)
}

// Hash возвращает hash, вычисленный из id
func (r *Reading) Hash() uint64 {
	return r.hash
}

// Equal сравнивает id и, если у r есть Date, время наблюдения
func (r *Reading) Equal(other *Reading) bool {
	if other == nil {
		return false
	}
	return r.id == other.id && (r.Date.IsZero() || r.Date.Equal(other.Date))
}

// Validate проверяет правдоподобность значений
func (r *Reading) Validate() error {
	if r.id == "" {
		return fmt.Errorf("id is required")
	}

	for name, dir := range map[string]*int{
		"direction_avg":         r.DirectionAvg,
		"direction_instant":     r.DirectionInstant,
		"direction_variation_1": r.DirectionVariation1,
		"direction_variation_2": r.DirectionVariation2,
	} {
		if dir != nil && (*dir < 0 || *dir >= 360) {
			return fmt.Errorf("invalid %s: %d", name, *dir)
		}
	}

	if r.Rain != nil && !r.Rain.Valid() {
		return fmt.Errorf("invalid rain: %d", int(*r.Rain))
	}

	if r.Clouds != nil && (*r.Clouds < 0 || *r.Clouds > 8) {
		return fmt.Errorf("invalid clouds: %d", *r.Clouds)
	}

	if r.Humidity != nil && (*r.Humidity < 0 || *r.Humidity > 100) {
		return fmt.Errorf("invalid humidity: %d", *r.Humidity)
	}

	for name, v := range map[string]*float64{
		"wind_avg": r.WindAvg,
		"wind_min": r.WindMin,
		"wind_max": r.WindMax,
	} {
		if v != nil && *v < 0 {
			return fmt.Errorf("invalid %s: %f", name, *v)
		}
	}

	return nil
}

// FormatTag реализует saveable.Saveable
func (r *Reading) FormatTag() uint64 {
	return ReadingFormatTag
}

// SaveSaveable пишет наблюдение в фиксированном порядке полей
func (r *Reading) SaveSaveable(w *saveable.Writer) error {
	if r.id == "" {
		return fmt.Errorf("%w: reading without id", saveable.ErrEncode)
	}
	if r.Rain != nil && !r.Rain.Valid() {
		return fmt.Errorf("%w: reading %s: invalid rain %d", saveable.ErrEncode, r.id, int(*r.Rain))
	}

	w.WriteTag(ReadingFormatTag)
	w.WriteString(r.id)
	w.WriteTime(r.Date)
	w.WriteTime(r.PreviousDate)
	w.WriteOptionalFloat(r.WindAvg)
	w.WriteOptionalFloat(r.WindAvgTrend)
	w.WriteOptionalFloat(r.WindMin)
	w.WriteOptionalFloat(r.WindMinTrend)
	w.WriteOptionalFloat(r.WindMax)
	w.WriteOptionalFloat(r.WindMaxTrend)
	w.WriteTime(r.WindMaxDate)
	w.WriteOptionalInt(r.DirectionAvg)
	w.WriteOptionalInt(r.DirectionInstant)
	w.WriteOptionalInt(r.DirectionVariation1)
	w.WriteOptionalInt(r.DirectionVariation2)
	w.WriteOptionalFloat(r.Temperature)
	w.WriteOptionalFloat(r.DewPoint)
	w.WriteOptionalInt(rainToInt(r.Rain))
	w.WriteOptionalInt(r.Clouds)
	w.WriteOptionalInt(r.CloudCeiling)
	w.WriteTriState(r.Cumulonimbus)
	w.WriteOptionalFloat(r.Hydrometry)
	w.WriteOptionalFloat(r.Pressure)
	w.WriteOptionalString(r.Luminosity)
	w.WriteOptionalInt(r.Humidity)

	return nil
}

// LoadSaveable проверяет тег формата и читает поля
func (r *Reading) LoadSaveable(rd *saveable.Reader) error {
	if err := rd.CheckTag(ReadingFormatTag); err != nil {
		return err
	}

	r.SetID(rd.ReadString())
	r.Date = rd.ReadTime()
	r.PreviousDate = rd.ReadTime()
	r.WindAvg = rd.ReadOptionalFloat()
	r.WindAvgTrend = rd.ReadOptionalFloat()
	r.WindMin = rd.ReadOptionalFloat()
	r.WindMinTrend = rd.ReadOptionalFloat()
	r.WindMax = rd.ReadOptionalFloat()
	r.WindMaxTrend = rd.ReadOptionalFloat()
	r.WindMaxDate = rd.ReadTime()
	r.DirectionAvg = rd.ReadOptionalInt()
	r.DirectionInstant = rd.ReadOptionalInt()
	r.DirectionVariation1 = rd.ReadOptionalInt()
	r.DirectionVariation2 = rd.ReadOptionalInt()
	r.Temperature = rd.ReadOptionalFloat()
	r.DewPoint = rd.ReadOptionalFloat()
	r.Rain = intToRain(rd.ReadOptionalInt())
	r.Clouds = rd.ReadOptionalInt()
	r.CloudCeiling = rd.ReadOptionalInt()
	r.Cumulonimbus = rd.ReadTriState()
	r.Hydrometry = rd.ReadOptionalFloat()
	r.Pressure = rd.ReadOptionalFloat()
	r.Luminosity = rd.ReadOptionalString()
	r.Humidity = rd.ReadOptionalInt()

	if err := rd.Err(); err != nil {
		return err
	}
	if r.id == "" {
		return fmt.Errorf("%w: reading without id", saveable.ErrCorrupt)
	}
	if r.Rain != nil && !r.Rain.Valid() {
		return fmt.Errorf("%w: invalid rain %d", saveable.ErrCorrupt, int(*r.Rain))
	}
	return nil
}

// String возвращает краткое описание для логов
func (r *Reading) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "id=%s", r.id)
	if !r.Date.IsZero() {
		fmt.Fprintf(&b, ", date=%s", r.Date.Format(time.RFC3339))
	}
	if !r.PreviousDate.IsZero() {
		fmt.Fprintf(&b, ", prev=%s", r.PreviousDate.Format(time.RFC3339))
	}
	writeFloat(&b, "avg", r.WindAvg)
	writeFloat(&b, "avgTrend", r.WindAvgTrend)
	writeFloat(&b, "min", r.WindMin)
	writeFloat(&b, "max", r.WindMax)
	if r.DirectionAvg != nil {
		fmt.Fprintf(&b, ", dir=%d", *r.DirectionAvg)
	}
	writeFloat(&b, "temp", r.Temperature)
	return b.String()
}

func writeFloat(b *strings.Builder, name string, v *float64) {
	if v != nil {
		fmt.Fprintf(b, ", %s=%.1f", name, *v)
	}
}

package provider

import (
	"time"

	"github.com/flybeeper/balises-backend/internal/models"
)

// noStamp метка отсутствующего времени: старше любого настоящего
const noStamp int64 = -1

// stamp время в мс или noStamp
func stamp(t time.Time) int64 {
	if t.IsZero() {
		return noStamp
	}
	return t.UnixMilli()
}

// Reconcile сливает свежие наблюдения incoming с удерживаемыми held.
//
// held изменяется на месте и возвращается как newHeld. Если held == nil,
// incoming становится рабочим набором целиком, а changed получает его копию.
// Наблюдение заменяет удерживаемое, только если оно строго новее; при замене
// тренды ветра пересчитываются, когда удерживаемое наблюдение свежее
// предыдущего наблюдения, заявленного станцией. changed содержит ровно
// замененные ключи.
//
// Reconcile не потокобезопасна: на один held должен быть один писатель.
func Reconcile(held, incoming map[string]*models.Reading) (newHeld, changed map[string]*models.Reading) {
	if held == nil {
		newHeld = make(map[string]*models.Reading, len(incoming))
		changed = make(map[string]*models.Reading, len(incoming))
		for k, r := range incoming {
			if r == nil {
				continue
			}
			newHeld[k] = r
			changed[k] = r
		}
		return newHeld, changed
	}

	changed = make(map[string]*models.Reading)
	for k, next := range incoming {
		if next == nil {
			continue
		}

		prev, ok := held[k]
		if ok && prev != nil && stamp(next.Date) <= stamp(prev.Date) {
			continue
		}

		if ok && prev != nil {
			applyTrends(prev, next)
		}

		held[k] = next
		changed[k] = next
	}

	return held, changed
}

// applyTrends вычисляет тренды next относительно prev под защитой свежести
func applyTrends(prev, next *models.Reading) {
	if prev.Date.IsZero() || next.Date.IsZero() {
		return
	}
	// Станция уже прислала тренд относительно наблюдения не старше нашего
	if stamp(prev.Date) <= stamp(next.PreviousDate) {
		return
	}

	next.PreviousDate = prev.Date
	next.WindMinTrend = trend(prev.WindMin, next.WindMin, next.WindMinTrend)
	next.WindAvgTrend = trend(prev.WindAvg, next.WindAvg, next.WindAvgTrend)
	next.WindMaxTrend = trend(prev.WindMax, next.WindMax, next.WindMaxTrend)
}

func trend(prev, cur, current *float64) *float64 {
	if prev == nil || cur == nil {
		return current
	}
	d := *cur - *prev
	return &d
}

package models

// Помощники для необязательных полей. Отсутствие значения всегда nil,
// никаких NaN или MinInt в данных.

// Float возвращает указатель на v
func Float(v float64) *float64 { return &v }

// Int возвращает указатель на v
func Int(v int) *int { return &v }

// Bool возвращает указатель на v
func Bool(v bool) *bool { return &v }

// String возвращает указатель на v
func String(v string) *string { return &v }

// RainPtr возвращает указатель на v
func RainPtr(v Rain) *Rain { return &v }

func rainToInt(r *Rain) *int {
	if r == nil {
		return nil
	}
	v := int(*r)
	return &v
}

func intToRain(v *int) *Rain {
	if v == nil {
		return nil
	}
	r := Rain(*v)
	return &r
}

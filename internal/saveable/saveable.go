// Package saveable реализует компактный версионируемый бинарный формат сущностей.
//
// Каждая сущность начинается с 64-битного тега формата (тип + версия схемы),
// за которым следуют поля в фиксированном порядке. Необязательные поля
// кодируются флагом присутствия и значением, без числовых sentinel-значений.
// Примитивы построены на google.golang.org/protobuf/encoding/protowire.
package saveable

import (
	"errors"
	"fmt"
)

var (
	// ErrFormatMismatch тег формата не совпадает с ожидаемой схемой
	ErrFormatMismatch = errors.New("saveable: format mismatch")

	// ErrCorrupt поток обрывается внутри записи или содержит недопустимые значения
	ErrCorrupt = errors.New("saveable: corrupt stream")

	// ErrEncode сущность нарушает контракт кодирования
	ErrEncode = errors.New("saveable: encode failed")
)

// Saveable сущность, умеющая сохранять и загружать себя в бинарном формате
type Saveable interface {
	// FormatTag уникальный тег (тип сущности, версия схемы)
	FormatTag() uint64

	// SaveSaveable пишет тег и поля сущности
	SaveSaveable(w *Writer) error

	// LoadSaveable проверяет тег и читает поля сущности
	LoadSaveable(r *Reader) error
}

// Marshal кодирует одну сущность
func Marshal(s Saveable) ([]byte, error) {
	w := NewWriter(nil)
	if err := s.SaveSaveable(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// Unmarshal декодирует одну сущность и требует, чтобы буфер был прочитан целиком
func Unmarshal(data []byte, s Saveable) error {
	r := NewReader(data)
	if err := s.LoadSaveable(r); err != nil {
		return err
	}
	if r.Len() != 0 {
		return fmt.Errorf("%w: %d trailing bytes", ErrCorrupt, r.Len())
	}
	return nil
}

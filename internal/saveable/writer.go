package saveable

import (
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Значения тройного состояния на проводе
const (
	triUnknown uint64 = 0
	triFalse   uint64 = 1
	triTrue    uint64 = 2
)

// Writer накапливает закодированные сущности в буфере
type Writer struct {
	buf []byte
}

// NewWriter создает Writer, дописывающий в buf
func NewWriter(buf []byte) *Writer {
	return &Writer{buf: buf}
}

// Bytes возвращает закодированные данные
func (w *Writer) Bytes() []byte {
	return w.buf
}

// Len возвращает размер закодированных данных
func (w *Writer) Len() int {
	return len(w.buf)
}

// Reset очищает буфер, сохраняя выделенную память
func (w *Writer) Reset() {
	w.buf = w.buf[:0]
}

// WriteTag пишет тег формата фиксированной ширины
func (w *Writer) WriteTag(tag uint64) {
	w.buf = protowire.AppendFixed64(w.buf, tag)
}

// WriteString пишет строку с префиксом длины
func (w *Writer) WriteString(s string) {
	w.buf = protowire.AppendString(w.buf, s)
}

// WriteBool пишет булево значение
func (w *Writer) WriteBool(b bool) {
	w.buf = protowire.AppendVarint(w.buf, protowire.EncodeBool(b))
}

// WriteOptionalString пишет флаг присутствия и строку
func (w *Writer) WriteOptionalString(s *string) {
	w.WriteBool(s != nil)
	if s != nil {
		w.WriteString(*s)
	}
}

// WriteFloat пишет IEEE-754 значение
func (w *Writer) WriteFloat(v float64) {
	w.buf = protowire.AppendFixed64(w.buf, math.Float64bits(v))
}

// WriteOptionalFloat пишет флаг присутствия и IEEE-754 значение
func (w *Writer) WriteOptionalFloat(v *float64) {
	w.WriteBool(v != nil)
	if v != nil {
		w.WriteFloat(*v)
	}
}

// WriteOptionalInt пишет флаг присутствия и zigzag-varint
func (w *Writer) WriteOptionalInt(v *int) {
	w.WriteBool(v != nil)
	if v != nil {
		w.buf = protowire.AppendVarint(w.buf, protowire.EncodeZigZag(int64(*v)))
	}
}

// WriteTime пишет флаг присутствия и миллисекунды с начала эпохи Unix.
// Нулевое время считается отсутствующим.
func (w *Writer) WriteTime(t time.Time) {
	w.WriteBool(!t.IsZero())
	if !t.IsZero() {
		w.buf = protowire.AppendFixed64(w.buf, uint64(t.UnixMilli()))
	}
}

// WriteTriState пишет тройное состояние: nil, false, true
func (w *Writer) WriteTriState(b *bool) {
	v := triUnknown
	if b != nil {
		if *b {
			v = triTrue
		} else {
			v = triFalse
		}
	}
	w.buf = protowire.AppendVarint(w.buf, v)
}

package saveable

import (
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Reader читает сущности из буфера. Первая ошибка запоминается,
// последующие чтения возвращают нулевые значения.
type Reader struct {
	buf []byte
	err error
}

// NewReader создает Reader поверх data
func NewReader(data []byte) *Reader {
	return &Reader{buf: data}
}

// Len возвращает количество непрочитанных байт
func (r *Reader) Len() int {
	return len(r.buf)
}

// Err возвращает первую ошибку чтения
func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) fail(what string, n int) {
	if r.err == nil {
		r.err = fmt.Errorf("%w: %s: %v", ErrCorrupt, what, protowire.ParseError(n))
	}
	r.buf = nil
}

// CheckTag читает тег формата и сверяет его с ожидаемым
func (r *Reader) CheckTag(want uint64) error {
	if r.err != nil {
		return r.err
	}
	got, n := protowire.ConsumeFixed64(r.buf)
	if n < 0 {
		r.fail("format tag", n)
		return r.err
	}
	if got != want {
		r.err = fmt.Errorf("%w: got %#016x, want %#016x", ErrFormatMismatch, got, want)
		r.buf = nil
		return r.err
	}
	r.buf = r.buf[n:]
	return nil
}

func (r *Reader) varint(what string) uint64 {
	if r.err != nil {
		return 0
	}
	v, n := protowire.ConsumeVarint(r.buf)
	if n < 0 {
		r.fail(what, n)
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *Reader) fixed64(what string) uint64 {
	if r.err != nil {
		return 0
	}
	v, n := protowire.ConsumeFixed64(r.buf)
	if n < 0 {
		r.fail(what, n)
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

// ReadBool читает булево значение (0 или 1)
func (r *Reader) ReadBool() bool {
	v := r.varint("bool")
	if v > 1 && r.err == nil {
		r.err = fmt.Errorf("%w: invalid presence flag %d", ErrCorrupt, v)
		r.buf = nil
		return false
	}
	return v == 1
}

// ReadString читает строку с префиксом длины
func (r *Reader) ReadString() string {
	if r.err != nil {
		return ""
	}
	s, n := protowire.ConsumeString(r.buf)
	if n < 0 {
		r.fail("string", n)
		return ""
	}
	r.buf = r.buf[n:]
	return s
}

// ReadOptionalString читает флаг присутствия и строку
func (r *Reader) ReadOptionalString() *string {
	if !r.ReadBool() {
		return nil
	}
	s := r.ReadString()
	if r.err != nil {
		return nil
	}
	return &s
}

// ReadFloat читает IEEE-754 значение
func (r *Reader) ReadFloat() float64 {
	return math.Float64frombits(r.fixed64("float"))
}

// ReadOptionalFloat читает флаг присутствия и IEEE-754 значение
func (r *Reader) ReadOptionalFloat() *float64 {
	if !r.ReadBool() {
		return nil
	}
	v := r.ReadFloat()
	if r.err != nil {
		return nil
	}
	return &v
}

// ReadOptionalInt читает флаг присутствия и zigzag-varint
func (r *Reader) ReadOptionalInt() *int {
	if !r.ReadBool() {
		return nil
	}
	raw := r.varint("int")
	if r.err != nil {
		return nil
	}
	v := int(protowire.DecodeZigZag(raw))
	return &v
}

// ReadTime читает флаг присутствия и метку времени в миллисекундах (UTC)
func (r *Reader) ReadTime() time.Time {
	if !r.ReadBool() {
		return time.Time{}
	}
	ms := r.fixed64("time")
	if r.err != nil {
		return time.Time{}
	}
	return time.UnixMilli(int64(ms)).UTC()
}

// ReadTriState читает тройное состояние
func (r *Reader) ReadTriState() *bool {
	switch v := r.varint("tri-state"); v {
	case triUnknown:
		return nil
	case triFalse:
		b := false
		return &b
	case triTrue:
		b := true
		return &b
	default:
		if r.err == nil {
			r.err = fmt.Errorf("%w: invalid tri-state %d", ErrCorrupt, v)
			r.buf = nil
		}
		return nil
	}
}

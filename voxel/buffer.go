package voxel

import (
	"encoding/binary"
	"fmt"
	"math"
)

// Buffer is a run of voxel values of a single pixel kind.  The concrete type of
// any Buffer returned by this module is Values[T] for the T backing Kind().
type Buffer interface {
	Kind() PixelKind

	// Len returns the number of values, not bytes.
	Len() int

	// Float64At returns value i converted to a float64.
	Float64At(i int) float64

	// Bytes serializes the values with the given byte order.
	Bytes(order binary.ByteOrder) []byte

	// Slice returns the values [lo, hi) sharing storage with the receiver.
	Slice(lo, hi int) Buffer

	// CopyFrom copies src, which must be of the same kind, into the receiver starting
	// at value off.  It returns the number of values copied.
	CopyFrom(off int, src Buffer) (int, error)
}

// Values is a typed Buffer.
type Values[T Element] []T

func (v Values[T]) Kind() PixelKind { return KindOf[T]() }

func (v Values[T]) Len() int { return len(v) }

func (v Values[T]) Float64At(i int) float64 { return float64(v[i]) }

func (v Values[T]) Bytes(order binary.ByteOrder) []byte {
	nbytes := KindOf[T]().Bytes()
	out := make([]byte, len(v)*nbytes)
	PutValues(out, order, []T(v))
	return out
}

func (v Values[T]) Slice(lo, hi int) Buffer { return v[lo:hi] }

func (v Values[T]) CopyFrom(off int, src Buffer) (int, error) {
	vals, err := As[T](src)
	if err != nil {
		return 0, err
	}
	if off < 0 || off > len(v) {
		return 0, fmt.Errorf("copy offset %d outside buffer of %d values", off, len(v))
	}
	return copy(v[off:], vals), nil
}

// As returns the typed slice behind a Buffer.  It fails if the buffer does not
// hold values of type T.
func As[T Element](b Buffer) ([]T, error) {
	switch v := b.(type) {
	case Values[T]:
		return []T(v), nil
	case nil:
		return nil, fmt.Errorf("nil buffer cannot be viewed as %s", KindOf[T]())
	}
	return nil, fmt.Errorf("buffer of kind %s cannot be viewed as %s", b.Kind(), KindOf[T]())
}

// NewBuffer returns a zeroed buffer of n values of the given kind.
func NewBuffer(kind PixelKind, n int) (Buffer, error) {
	switch kind {
	case T_uint8:
		return make(Values[uint8], n), nil
	case T_int8:
		return make(Values[int8], n), nil
	case T_uint16:
		return make(Values[uint16], n), nil
	case T_int16:
		return make(Values[int16], n), nil
	case T_uint32:
		return make(Values[uint32], n), nil
	case T_int32:
		return make(Values[int32], n), nil
	case T_uint64:
		return make(Values[uint64], n), nil
	case T_int64:
		return make(Values[int64], n), nil
	case T_float32:
		return make(Values[float32], n), nil
	case T_float64:
		return make(Values[float64], n), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
}

// PutValues writes src into dst using the given byte order.  dst must hold at least
// len(src) * size of T bytes.
func PutValues[T Element](dst []byte, order binary.ByteOrder, src []T) {
	nbytes := KindOf[T]().Bytes()
	for i, val := range src {
		b := dst[i*nbytes : (i+1)*nbytes]
		switch x := any(val).(type) {
		case uint8:
			b[0] = x
		case int8:
			b[0] = uint8(x)
		case uint16:
			order.PutUint16(b, x)
		case int16:
			order.PutUint16(b, uint16(x))
		case uint32:
			order.PutUint32(b, x)
		case int32:
			order.PutUint32(b, uint32(x))
		case uint64:
			order.PutUint64(b, x)
		case int64:
			order.PutUint64(b, uint64(x))
		case float32:
			order.PutUint32(b, math.Float32bits(x))
		case float64:
			order.PutUint64(b, math.Float64bits(x))
		}
	}
}

// DecodeValues fills dst with values read from src in the given byte order and
// returns the number of values decoded, which is limited by both lengths.
func DecodeValues[T Element](dst []T, order binary.ByteOrder, src []byte) int {
	nbytes := KindOf[T]().Bytes()
	n := len(src) / nbytes
	if n > len(dst) {
		n = len(dst)
	}
	var zero T
	switch any(zero).(type) {
	case uint8:
		for i := 0; i < n; i++ {
			dst[i] = T(src[i])
		}
	case int8:
		for i := 0; i < n; i++ {
			dst[i] = T(int8(src[i]))
		}
	case uint16:
		for i := 0; i < n; i++ {
			dst[i] = T(order.Uint16(src[i*2:]))
		}
	case int16:
		for i := 0; i < n; i++ {
			dst[i] = T(int16(order.Uint16(src[i*2:])))
		}
	case uint32:
		for i := 0; i < n; i++ {
			dst[i] = T(order.Uint32(src[i*4:]))
		}
	case int32:
		for i := 0; i < n; i++ {
			dst[i] = T(int32(order.Uint32(src[i*4:])))
		}
	case uint64:
		for i := 0; i < n; i++ {
			dst[i] = T(order.Uint64(src[i*8:]))
		}
	case int64:
		for i := 0; i < n; i++ {
			dst[i] = T(int64(order.Uint64(src[i*8:])))
		}
	case float32:
		for i := 0; i < n; i++ {
			dst[i] = T(math.Float32frombits(order.Uint32(src[i*4:])))
		}
	case float64:
		for i := 0; i < n; i++ {
			dst[i] = T(math.Float64frombits(order.Uint64(src[i*8:])))
		}
	}
	return n
}

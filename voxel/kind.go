/*
	This file handles the numeric kinds a voxel value can take and their
	representable bounds.
*/

package voxel

import (
	"fmt"
	"math"
	"strings"
)

// PixelKind identifies the numeric representation of one voxel value, e.g., a uint16
// or a float32.  The zero value is T_unknown.
type PixelKind uint8

const (
	T_unknown PixelKind = iota
	T_uint8
	T_int8
	T_uint16
	T_int16
	T_uint32
	T_int32
	T_uint64
	T_int64
	T_float32
	T_float64
)

// Kinds lists every valid pixel kind.
var Kinds = []PixelKind{
	T_uint8, T_int8, T_uint16, T_int16, T_uint32, T_int32, T_uint64, T_int64, T_float32, T_float64,
}

var kindBytes = map[PixelKind]int{
	T_uint8:   1,
	T_int8:    1,
	T_uint16:  2,
	T_int16:   2,
	T_uint32:  4,
	T_int32:   4,
	T_uint64:  8,
	T_int64:   8,
	T_float32: 4,
	T_float64: 8,
}

var kindNames = map[PixelKind]string{
	T_uint8:   "uint8",
	T_int8:    "int8",
	T_uint16:  "uint16",
	T_int16:   "int16",
	T_uint32:  "uint32",
	T_int32:   "int32",
	T_uint64:  "uint64",
	T_int64:   "int64",
	T_float32: "float32",
	T_float64: "float64",
}

// Valid returns true if the kind is one of the 10 supported kinds.
func (k PixelKind) Valid() bool {
	_, found := kindBytes[k]
	return found
}

// Bytes returns the # of bytes for one value of this kind, or 0 for an unknown kind.
func (k PixelKind) Bytes() int {
	return kindBytes[k]
}

// Bits returns the # of bits for one value of this kind.
func (k PixelKind) Bits() int {
	return kindBytes[k] * 8
}

// IsSigned returns true for signed integer kinds.
func (k PixelKind) IsSigned() bool {
	switch k {
	case T_int8, T_int16, T_int32, T_int64:
		return true
	}
	return false
}

// IsFloat returns true for floating point kinds.
func (k PixelKind) IsFloat() bool {
	return k == T_float32 || k == T_float64
}

func (k PixelKind) String() string {
	if name, found := kindNames[k]; found {
		return name
	}
	return fmt.Sprintf("unknown kind (%d)", uint8(k))
}

// ParsePixelKind returns the kind for a name like "uint16" or "float32".
func ParsePixelKind(s string) (PixelKind, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for k, kname := range kindNames {
		if kname == name {
			return k, nil
		}
	}
	return T_unknown, fmt.Errorf("%w: %q", ErrUnknownKind, s)
}

// MinValue returns the smallest value representable by the kind.  For floating
// point kinds this is the most negative finite value.
func MinValue(k PixelKind) (float64, error) {
	switch k {
	case T_uint8, T_uint16, T_uint32, T_uint64:
		return 0, nil
	case T_int8:
		return math.MinInt8, nil
	case T_int16:
		return math.MinInt16, nil
	case T_int32:
		return math.MinInt32, nil
	case T_int64:
		return math.MinInt64, nil
	case T_float32:
		return -math.MaxFloat32, nil
	case T_float64:
		return -math.MaxFloat64, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
}

// MaxValue returns the largest value representable by the kind.
func MaxValue(k PixelKind) (float64, error) {
	switch k {
	case T_uint8:
		return math.MaxUint8, nil
	case T_uint16:
		return math.MaxUint16, nil
	case T_uint32:
		return math.MaxUint32, nil
	case T_uint64:
		return math.MaxUint64, nil
	case T_int8:
		return math.MaxInt8, nil
	case T_int16:
		return math.MaxInt16, nil
	case T_int32:
		return math.MaxInt32, nil
	case T_int64:
		return math.MaxInt64, nil
	case T_float32:
		return math.MaxFloat32, nil
	case T_float64:
		return math.MaxFloat64, nil
	}
	return 0, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(k))
}

// Element is the set of Go types that back the supported pixel kinds.
type Element interface {
	~uint8 | ~int8 | ~uint16 | ~int16 | ~uint32 | ~int32 | ~uint64 | ~int64 | ~float32 | ~float64
}

// KindOf returns the pixel kind backed by the Go type T.
func KindOf[T Element]() PixelKind {
	var zero T
	switch any(zero).(type) {
	case uint8:
		return T_uint8
	case int8:
		return T_int8
	case uint16:
		return T_uint16
	case int16:
		return T_int16
	case uint32:
		return T_uint32
	case int32:
		return T_int32
	case uint64:
		return T_uint64
	case int64:
		return T_int64
	case float32:
		return T_float32
	case float64:
		return T_float64
	}
	return T_unknown
}

// KindBounds returns the bounds of kind k expressed as values of type T using
// the same unchecked conversion as Convert.
func KindBounds[T Element](k PixelKind) (lo, hi T, err error) {
	var fmin, fmax float64
	if fmin, err = MinValue(k); err != nil {
		return
	}
	if fmax, err = MaxValue(k); err != nil {
		return
	}
	// 64-bit integer bounds are not exact in a float64.
	switch k {
	case T_uint64:
		var u uint64 = math.MaxUint64
		return 0, T(u), nil
	case T_int64:
		var i0, i1 int64 = math.MinInt64, math.MaxInt64
		return T(i0), T(i1), nil
	}
	return T(fmin), T(fmax), nil
}

package voxel

import "fmt"

// ConvertSlice converts each value of src to D with Go's conversion rules.  No
// clamping or saturation is applied: out-of-range integers wrap or truncate, and
// float to integer conversions of values outside the target range are
// implementation-dependent.
func ConvertSlice[D, S Element](src []S) []D {
	dst := make([]D, len(src))
	for i, v := range src {
		dst[i] = D(v)
	}
	return dst
}

// ConvertTo returns a Values[D] holding the values of src.  When S and D are the
// same type the source slice is returned without copying.
func ConvertTo[D, S Element](src []S) Values[D] {
	if same, ok := any(src).([]D); ok {
		return Values[D](same)
	}
	return Values[D](ConvertSlice[D](src))
}

// Convert returns the values of b as a buffer of the requested kind using the
// unchecked conversion of ConvertSlice.  A buffer already of the requested kind is
// returned as is.
func Convert(b Buffer, kind PixelKind) (Buffer, error) {
	if b == nil {
		return nil, fmt.Errorf("cannot convert nil buffer to %s", kind)
	}
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
	}
	if b.Kind() == kind {
		return b, nil
	}
	switch v := b.(type) {
	case Values[uint8]:
		return convertFrom(v, kind)
	case Values[int8]:
		return convertFrom(v, kind)
	case Values[uint16]:
		return convertFrom(v, kind)
	case Values[int16]:
		return convertFrom(v, kind)
	case Values[uint32]:
		return convertFrom(v, kind)
	case Values[int32]:
		return convertFrom(v, kind)
	case Values[uint64]:
		return convertFrom(v, kind)
	case Values[int64]:
		return convertFrom(v, kind)
	case Values[float32]:
		return convertFrom(v, kind)
	case Values[float64]:
		return convertFrom(v, kind)
	}
	return nil, fmt.Errorf("unsupported buffer type %T", b)
}

// ConvertAs converts b to the kind backing T and returns the typed slice.
func ConvertAs[T Element](b Buffer) ([]T, error) {
	out, err := Convert(b, KindOf[T]())
	if err != nil {
		return nil, err
	}
	return As[T](out)
}

// ToKind converts a typed slice to a buffer of the requested kind.
func ToKind[S Element](src []S, kind PixelKind) (Buffer, error) {
	return convertFrom(src, kind)
}

func convertFrom[S Element](src []S, kind PixelKind) (Buffer, error) {
	switch kind {
	case T_uint8:
		return ConvertTo[uint8](src), nil
	case T_int8:
		return ConvertTo[int8](src), nil
	case T_uint16:
		return ConvertTo[uint16](src), nil
	case T_int16:
		return ConvertTo[int16](src), nil
	case T_uint32:
		return ConvertTo[uint32](src), nil
	case T_int32:
		return ConvertTo[int32](src), nil
	case T_uint64:
		return ConvertTo[uint64](src), nil
	case T_int64:
		return ConvertTo[int64](src), nil
	case T_float32:
		return ConvertTo[float32](src), nil
	case T_float64:
		return ConvertTo[float64](src), nil
	}
	return nil, fmt.Errorf("%w: %d", ErrUnknownKind, uint8(kind))
}

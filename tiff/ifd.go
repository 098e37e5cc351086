package tiff

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
)

var (
	// ErrNotTIFF is returned when a file does not start with a TIFF header.
	ErrNotTIFF = errors.New("not a TIFF file")

	// ErrCorrupt is returned when directory structures point outside the file or
	// are otherwise malformed.
	ErrCorrupt = errors.New("corrupt TIFF structure")

	// ErrNoDirectory is returned when a directory index is beyond the last directory.
	ErrNoDirectory = errors.New("no such directory")
)

const (
	maxEntries   = 1 << 16
	maxEntryData = 1 << 30
	maxDirs      = 1 << 24
)

// entry is one raw IFD field.  The value bytes are in file byte order.
type entry struct {
	tag   uint16
	typ   uint16
	count uint64
	raw   []byte
}

// ifdReader reads TIFF and BigTIFF directory structures from an io.ReaderAt.
type ifdReader struct {
	r     io.ReaderAt
	order binary.ByteOrder
	big   bool
	first uint64
}

func newIFDReader(r io.ReaderAt) (*ifdReader, error) {
	var hdr [16]byte
	n, err := r.ReadAt(hdr[:], 0)
	if n < 8 {
		if err == nil || err == io.EOF {
			err = ErrNotTIFF
		}
		return nil, err
	}
	ir := &ifdReader{r: r}
	switch string(hdr[0:2]) {
	case "II":
		ir.order = binary.LittleEndian
	case "MM":
		ir.order = binary.BigEndian
	default:
		return nil, ErrNotTIFF
	}
	switch ir.order.Uint16(hdr[2:4]) {
	case 42:
		ir.first = uint64(ir.order.Uint32(hdr[4:8]))
	case 43:
		if n < 16 || ir.order.Uint16(hdr[4:6]) != 8 {
			return nil, fmt.Errorf("%w: bad BigTIFF header", ErrNotTIFF)
		}
		ir.big = true
		ir.first = ir.order.Uint64(hdr[8:16])
	default:
		return nil, ErrNotTIFF
	}
	return ir, nil
}

func (ir *ifdReader) readAt(off uint64, n int) ([]byte, error) {
	if off > math.MaxInt64 {
		return nil, fmt.Errorf("%w: offset %d", ErrCorrupt, off)
	}
	buf := make([]byte, n)
	if got, err := ir.r.ReadAt(buf, int64(off)); got < n {
		if err == nil || err == io.EOF {
			return nil, fmt.Errorf("%w: read of %d bytes at %d past end of file", ErrCorrupt, n, off)
		}
		return nil, err
	}
	return buf, nil
}

// readDirectory returns the entries of the directory at off and the offset of the
// next directory, which is 0 for the last one.
func (ir *ifdReader) readDirectory(off uint64) (map[uint16]entry, uint64, error) {
	countSize, entrySize, valueSize := 2, 12, 4
	if ir.big {
		countSize, entrySize, valueSize = 8, 20, 8
	}
	b, err := ir.readAt(off, countSize)
	if err != nil {
		return nil, 0, err
	}
	var n uint64
	if ir.big {
		n = ir.order.Uint64(b)
	} else {
		n = uint64(ir.order.Uint16(b))
	}
	if n == 0 || n > maxEntries {
		return nil, 0, fmt.Errorf("%w: directory at %d has %d entries", ErrCorrupt, off, n)
	}
	body, err := ir.readAt(off+uint64(countSize), int(n)*entrySize+valueSize)
	if err != nil {
		return nil, 0, err
	}
	entries := make(map[uint16]entry, n)
	for i := 0; i < int(n); i++ {
		e := body[i*entrySize : (i+1)*entrySize]
		ent := entry{
			tag: ir.order.Uint16(e[0:2]),
			typ: ir.order.Uint16(e[2:4]),
		}
		var inline []byte
		if ir.big {
			ent.count = ir.order.Uint64(e[4:12])
			inline = e[12:20]
		} else {
			ent.count = uint64(ir.order.Uint32(e[4:8]))
			inline = e[8:12]
		}
		size, known := lengths[ent.typ]
		if !known {
			continue
		}
		datalen := ent.count * uint64(size)
		if datalen > maxEntryData {
			return nil, 0, fmt.Errorf("%w: tag %d claims %d bytes", ErrCorrupt, ent.tag, datalen)
		}
		if datalen <= uint64(valueSize) {
			ent.raw = inline[:datalen]
		} else {
			var valOff uint64
			if ir.big {
				valOff = ir.order.Uint64(inline)
			} else {
				valOff = uint64(ir.order.Uint32(inline))
			}
			if ent.raw, err = ir.readAt(valOff, int(datalen)); err != nil {
				return nil, 0, err
			}
		}
		entries[ent.tag] = ent
	}
	tail := body[int(n)*entrySize:]
	var next uint64
	if ir.big {
		next = ir.order.Uint64(tail)
	} else {
		next = uint64(ir.order.Uint32(tail))
	}
	return entries, next, nil
}

// directoryOffsets walks the directory chain and returns every directory offset.
func (ir *ifdReader) directoryOffsets() ([]uint64, error) {
	var offsets []uint64
	seen := make(map[uint64]bool)
	for off := ir.first; off != 0; {
		if seen[off] {
			return nil, fmt.Errorf("%w: directory loop at offset %d", ErrCorrupt, off)
		}
		if len(offsets) >= maxDirs {
			return nil, fmt.Errorf("%w: more than %d directories", ErrCorrupt, maxDirs)
		}
		seen[off] = true
		offsets = append(offsets, off)
		_, next, err := ir.readDirectory(off)
		if err != nil {
			return nil, err
		}
		off = next
	}
	return offsets, nil
}

// directoryOffset returns the offset of the i-th directory.
func (ir *ifdReader) directoryOffset(i int) (uint64, error) {
	off := ir.first
	for d := 0; off != 0; d++ {
		if d == i {
			return off, nil
		}
		if d >= maxDirs {
			break
		}
		_, next, err := ir.readDirectory(off)
		if err != nil {
			return 0, err
		}
		off = next
	}
	return 0, fmt.Errorf("%w: %d", ErrNoDirectory, i)
}

// uints returns the integer values of an entry.
func (ir *ifdReader) uints(e entry) ([]uint64, error) {
	vals := make([]uint64, e.count)
	for i := range vals {
		switch e.typ {
		case dtByte, dtUndefined:
			vals[i] = uint64(e.raw[i])
		case dtSByte:
			vals[i] = uint64(int8(e.raw[i]))
		case dtShort:
			vals[i] = uint64(ir.order.Uint16(e.raw[2*i:]))
		case dtSShort:
			vals[i] = uint64(int16(ir.order.Uint16(e.raw[2*i:])))
		case dtLong:
			vals[i] = uint64(ir.order.Uint32(e.raw[4*i:]))
		case dtSLong:
			vals[i] = uint64(int32(ir.order.Uint32(e.raw[4*i:])))
		case dtLong8, dtSLong8, dtIFD8:
			vals[i] = ir.order.Uint64(e.raw[8*i:])
		default:
			return nil, fmt.Errorf("%w: tag %d has non-integer type %d", ErrCorrupt, e.tag, e.typ)
		}
	}
	return vals, nil
}

// floats returns the values of a numeric entry as float64.
func (ir *ifdReader) floats(e entry) ([]float64, error) {
	vals := make([]float64, e.count)
	for i := range vals {
		switch e.typ {
		case dtRational:
			num, den := ir.order.Uint32(e.raw[8*i:]), ir.order.Uint32(e.raw[8*i+4:])
			if den != 0 {
				vals[i] = float64(num) / float64(den)
			}
		case dtSRational:
			num, den := int32(ir.order.Uint32(e.raw[8*i:])), int32(ir.order.Uint32(e.raw[8*i+4:]))
			if den != 0 {
				vals[i] = float64(num) / float64(den)
			}
		case dtFloat:
			vals[i] = float64(math.Float32frombits(ir.order.Uint32(e.raw[4*i:])))
		case dtDouble:
			vals[i] = math.Float64frombits(ir.order.Uint64(e.raw[8*i:]))
		case dtSByte:
			vals[i] = float64(int8(e.raw[i]))
		case dtSShort:
			vals[i] = float64(int16(ir.order.Uint16(e.raw[2*i:])))
		case dtSLong:
			vals[i] = float64(int32(ir.order.Uint32(e.raw[4*i:])))
		case dtSLong8:
			vals[i] = float64(int64(ir.order.Uint64(e.raw[8*i:])))
		default:
			u, err := ir.uints(entry{tag: e.tag, typ: e.typ, count: 1, raw: e.raw[i*lengths[e.typ]:]})
			if err != nil {
				return nil, err
			}
			vals[i] = float64(u[0])
		}
	}
	return vals, nil
}

// firstUint returns the first integer value of the tag, or dflt if absent.
func (ir *ifdReader) firstUint(entries map[uint16]entry, tag uint16, dflt uint64) (uint64, error) {
	e, found := entries[tag]
	if !found || e.count == 0 {
		return dflt, nil
	}
	vals, err := ir.uints(e)
	if err != nil {
		return 0, err
	}
	return vals[0], nil
}

func ascii(e entry) string {
	b := e.raw
	for i, c := range b {
		if c == 0 {
			b = b[:i]
			break
		}
	}
	return string(b)
}

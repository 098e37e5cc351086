package tiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"

	"github.com/janelia-flyem/vstack/voxel"
)

// ReadStrip returns the decompressed bytes of strip i, with any predictor undone.
// The result holds exactly Width * StripRows(i) samples.
func (f *Frame) ReadStrip(r io.ReaderAt, i int) ([]byte, binary.ByteOrder, error) {
	if i < 0 || i >= f.StripCount() {
		return nil, nil, fmt.Errorf("strip %d out of range [0,%d)", i, f.StripCount())
	}
	rows := f.StripRows(i)
	bytesPerSample := f.BitsPerSample / 8
	rowBytes := f.Width * f.SamplesPerPixel * bytesPerSample
	expected := rows * rowBytes

	count, offset := f.StripByteCounts[i], f.StripOffsets[i]
	if err := checkStripExtent(r, offset, count); err != nil {
		return nil, nil, &voxel.IOError{Path: f.Path, Op: fmt.Sprintf("read strip %d of directory %d", i, f.Directory), Err: err}
	}
	if f.Compression == CompressionNone && count > uint64(expected) {
		count = uint64(expected)
	}
	raw := make([]byte, count)
	if n, err := r.ReadAt(raw, int64(offset)); n < len(raw) {
		if err == nil || err == io.EOF {
			err = io.ErrUnexpectedEOF
		}
		return nil, nil, &voxel.IOError{Path: f.Path, Op: fmt.Sprintf("read strip %d of directory %d", i, f.Directory), Err: err}
	}
	data, err := decompress(f.Compression, raw, expected)
	if err != nil {
		return nil, nil, &voxel.IOError{Path: f.Path, Op: fmt.Sprintf("decode strip %d of directory %d", i, f.Directory), Err: err}
	}
	if len(data) < expected {
		return nil, nil, &voxel.IOError{
			Path: f.Path,
			Op:   fmt.Sprintf("decode strip %d of directory %d", i, f.Directory),
			Err:  fmt.Errorf("%w: got %d of %d bytes", ErrShortStrip, len(data), expected),
		}
	}

	order := f.ByteOrder
	switch f.Predictor {
	case PredictorHorizontal:
		if f.SampleFormat == SampleFormatFloat {
			return nil, nil, &voxel.UnsupportedFormatError{Path: f.Path, Reason: voxel.Compression, Detail: "horizontal predictor on float samples"}
		}
		data = append([]byte(nil), data...)
		undoHorizontal(data, order, rows, f.Width*f.SamplesPerPixel, bytesPerSample)
	case PredictorFloatingPoint:
		data = undoFloatingPoint(data, rows, f.Width*f.SamplesPerPixel, bytesPerSample)
		order = binary.BigEndian
	}
	return data, order, nil
}

// checkStripExtent rejects strips larger than maxEntryData or, when the size of r
// is known, extending past its end.
func checkStripExtent(r io.ReaderAt, offset, count uint64) error {
	if count > maxEntryData || offset > math.MaxInt64-maxEntryData {
		return fmt.Errorf("%w: strip of %d bytes at offset %d", ErrCorrupt, count, offset)
	}
	if size, known := readerSize(r); known && offset+count > uint64(size) {
		return fmt.Errorf("%w: strip of %d bytes at offset %d ends past the %d byte file", ErrCorrupt, count, offset, size)
	}
	return nil
}

func readerSize(r io.ReaderAt) (int64, bool) {
	switch v := r.(type) {
	case interface{ Size() int64 }:
		return v.Size(), true
	case interface{ Stat() (os.FileInfo, error) }:
		if fi, err := v.Stat(); err == nil {
			return fi.Size(), true
		}
	}
	return 0, false
}

// DecodeStrip decodes strip i into dst, which must hold Width * StripRows(i) values.
// On error dst is left unmodified.
func DecodeStrip[T voxel.Element](f *Frame, r io.ReaderAt, i int, dst []T) error {
	want := f.Width * f.SamplesPerPixel * f.StripRows(i)
	if len(dst) < want {
		return fmt.Errorf("destination holds %d values, strip %d needs %d", len(dst), i, want)
	}
	if kind, err := f.Kind(); err != nil {
		return err
	} else if kind != voxel.KindOf[T]() {
		return fmt.Errorf("frame holds %s values, decode requested %s", kind, voxel.KindOf[T]())
	}
	data, order, err := f.ReadStrip(r, i)
	if err != nil {
		return err
	}
	voxel.DecodeValues(dst[:want], order, data)
	return nil
}

// DecodeFrame decodes every strip of the frame into dst, which must hold
// Width * Height values.  Strip failures are passed to onError; if onError returns
// an error, decoding stops and that error is returned.  A nil onError stops at the
// first failure.  Strips that fail are left unmodified in dst.
func DecodeFrame[T voxel.Element](f *Frame, r io.ReaderAt, dst []T, onError func(strip int, err error) error) error {
	stripLen := f.Width * f.SamplesPerPixel * f.RowsPerStrip
	for i := 0; i < f.StripCount(); i++ {
		start := i * stripLen
		end := start + f.Width*f.SamplesPerPixel*f.StripRows(i)
		if end > len(dst) {
			return fmt.Errorf("destination holds %d values, frame needs %d", len(dst), end)
		}
		if err := DecodeStrip(f, r, i, dst[start:end]); err != nil {
			if onError == nil {
				return err
			}
			if err = onError(i, err); err != nil {
				return err
			}
		}
	}
	return nil
}

// undoHorizontal reverses horizontal differencing in place.  Sums wrap at the
// sample width.
func undoHorizontal(data []byte, order binary.ByteOrder, rows, samplesPerRow, bytesPerSample int) {
	rowBytes := samplesPerRow * bytesPerSample
	for y := 0; y < rows; y++ {
		row := data[y*rowBytes : (y+1)*rowBytes]
		switch bytesPerSample {
		case 1:
			for x := 1; x < samplesPerRow; x++ {
				row[x] += row[x-1]
			}
		case 2:
			prev := order.Uint16(row)
			for x := 1; x < samplesPerRow; x++ {
				prev += order.Uint16(row[2*x:])
				order.PutUint16(row[2*x:], prev)
			}
		case 4:
			prev := order.Uint32(row)
			for x := 1; x < samplesPerRow; x++ {
				prev += order.Uint32(row[4*x:])
				order.PutUint32(row[4*x:], prev)
			}
		case 8:
			prev := order.Uint64(row)
			for x := 1; x < samplesPerRow; x++ {
				prev += order.Uint64(row[8*x:])
				order.PutUint64(row[8*x:], prev)
			}
		}
	}
}

// undoFloatingPoint reverses the floating point predictor: bytes are differenced
// across each row, with the row stored as byte planes from most to least
// significant.  The result is big-endian.
func undoFloatingPoint(data []byte, rows, samplesPerRow, bytesPerSample int) []byte {
	rowBytes := samplesPerRow * bytesPerSample
	out := make([]byte, len(data))
	for y := 0; y < rows; y++ {
		row := append([]byte(nil), data[y*rowBytes:(y+1)*rowBytes]...)
		for x := 1; x < rowBytes; x++ {
			row[x] += row[x-1]
		}
		dst := out[y*rowBytes : (y+1)*rowBytes]
		for s := 0; s < samplesPerRow; s++ {
			for b := 0; b < bytesPerSample; b++ {
				dst[s*bytesPerSample+b] = row[b*samplesPerRow+s]
			}
		}
	}
	return out
}

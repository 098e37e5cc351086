package tiff

import (
	"bytes"
	"compress/lzw"
	"encoding/binary"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/janelia-flyem/vstack/voxel"
)

func writeTestFile(t *testing.T, name string, pages []Page, opt *Options) string {
	path := filepath.Join(t.TempDir(), name)
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("can't create %s: %v\n", path, err)
	}
	defer f.Close()
	if err := Encode(f, pages, opt); err != nil {
		t.Fatalf("can't encode %s: %v\n", path, err)
	}
	return path
}

func rampUint16(w, h, base int) voxel.Values[uint16] {
	vals := make(voxel.Values[uint16], w*h)
	for i := range vals {
		vals[i] = uint16(base + i*7)
	}
	return vals
}

func decodeAll[T voxel.Element](t *testing.T, f *Frame) []T {
	file, err := os.Open(f.Path)
	if err != nil {
		t.Fatalf("can't open %s: %v\n", f.Path, err)
	}
	defer file.Close()
	dst := make([]T, f.Width*f.Height)
	if err := DecodeFrame(f, file, dst, nil); err != nil {
		t.Fatalf("decode of %s directory %d failed: %v\n", f.Path, f.Directory, err)
	}
	return dst
}

func TestRoundTripCompressions(t *testing.T) {
	const w, h = 13, 11
	data := rampUint16(w, h, 100)
	for _, order := range []binary.ByteOrder{binary.LittleEndian, binary.BigEndian} {
		for _, comp := range []uint16{CompressionNone, CompressionDeflate, CompressionOldDeflate, CompressionPackBits, CompressionZstd} {
			for _, predictor := range []bool{false, true} {
				opt := &Options{ByteOrder: order, Compression: comp, Predictor: predictor, RowsPerStrip: 4}
				path := writeTestFile(t, "rt.tif", []Page{{w, h, data}}, opt)
				f, err := ReadFrame(path, 0)
				if err != nil {
					t.Fatalf("compression %d: can't read frame: %v\n", comp, err)
				}
				if err := f.CheckSupported(); err != nil {
					t.Fatalf("compression %d: unexpected rejection: %v\n", comp, err)
				}
				if f.StripCount() != 3 || f.StripRows(2) != 3 {
					t.Fatalf("expected 3 strips with 3 rows in the last, got %d strips, %d rows\n", f.StripCount(), f.StripRows(2))
				}
				got := decodeAll[uint16](t, f)
				if !reflect.DeepEqual(got, []uint16(data)) {
					t.Fatalf("compression %d, predictor %t, order %v: decoded data differs\n", comp, predictor, order)
				}
			}
		}
	}
}

func TestKinds(t *testing.T) {
	const w, h = 5, 3
	bufs := []voxel.Buffer{
		voxel.Values[uint8]{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 255},
		voxel.Values[int8]{-128, -1, 0, 1, 127, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14},
		voxel.Values[int32]{-7, 1 << 30, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, -12},
		voxel.Values[uint64]{math.MaxUint64, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14},
		voxel.Values[float32]{-1.5, 0.25, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 1e20},
		voxel.Values[float64]{-1.5, 0.25, 3, 4, 5, 6, 7, 8, 9, 10, 11, 12, 13, 14, 1e200},
	}
	for _, buf := range bufs {
		path := writeTestFile(t, "kind.tif", []Page{{w, h, buf}}, &Options{Compression: CompressionDeflate})
		f, err := ReadFrame(path, 0)
		if err != nil {
			t.Fatalf("%s: can't read frame: %v\n", buf.Kind(), err)
		}
		kind, err := f.Kind()
		if err != nil || kind != buf.Kind() {
			t.Fatalf("expected kind %s, got %s (%v)\n", buf.Kind(), kind, err)
		}
		file, _ := os.Open(path)
		out, _ := voxel.NewBuffer(kind, w*h)
		switch dst := out.(type) {
		case voxel.Values[uint8]:
			err = DecodeFrame(f, file, dst, nil)
		case voxel.Values[int8]:
			err = DecodeFrame(f, file, dst, nil)
		case voxel.Values[int32]:
			err = DecodeFrame(f, file, dst, nil)
		case voxel.Values[uint64]:
			err = DecodeFrame(f, file, dst, nil)
		case voxel.Values[float32]:
			err = DecodeFrame(f, file, dst, nil)
		case voxel.Values[float64]:
			err = DecodeFrame(f, file, dst, nil)
		}
		file.Close()
		if err != nil {
			t.Fatalf("%s: decode failed: %v\n", kind, err)
		}
		if !reflect.DeepEqual(out, buf) {
			t.Fatalf("%s: expected %v, got %v\n", kind, buf, out)
		}
	}
}

func TestMultiPage(t *testing.T) {
	pages := []Page{
		{4, 2, rampUint16(4, 2, 0)},
		{4, 2, rampUint16(4, 2, 1000)},
		{4, 2, rampUint16(4, 2, 2000)},
	}
	path := writeTestFile(t, "pages.tif", pages, &Options{Compression: CompressionZstd})
	n, err := CountDirectories(path)
	if err != nil || n != 3 {
		t.Fatalf("expected 3 directories, got %d (%v)\n", n, err)
	}
	frames, err := ReadFrames(path)
	if err != nil || len(frames) != 3 {
		t.Fatalf("expected 3 frames, got %d (%v)\n", len(frames), err)
	}
	for i, f := range frames {
		if f.Directory != i {
			t.Fatalf("frame %d reports directory %d\n", i, f.Directory)
		}
		got := decodeAll[uint16](t, f)
		if !reflect.DeepEqual(got, []uint16(pages[i].Data.(voxel.Values[uint16]))) {
			t.Fatalf("page %d decoded incorrectly: %v\n", i, got)
		}
	}
	f, err := ReadFrame(path, 2)
	if err != nil || f.Directory != 2 {
		t.Fatalf("can't read directory 2: %v\n", err)
	}
	if _, err := ReadFrame(path, 3); !errors.Is(err, ErrNoDirectory) {
		t.Fatalf("expected ErrNoDirectory, got %v\n", err)
	}
}

func TestRejections(t *testing.T) {
	data := rampUint16(4, 4, 0)
	tests := []struct {
		name   string
		pages  []Page
		opt    Options
		reason voxel.FormatReason
	}{
		{"tiled", []Page{{4, 4, data}}, Options{Tiled: true}, voxel.Tiled},
		{"planar", []Page{{4, 4, data}}, Options{PlanarConfig: PlanarSeparate}, voxel.PlanarConfig},
		{"palette", []Page{{4, 4, data}}, Options{Photometric: PhotometricPalette}, voxel.Photometric},
		{"mask", []Page{{4, 4, data}}, Options{Photometric: PhotometricMask}, voxel.Photometric},
		{"separated", []Page{{4, 4, data}}, Options{Photometric: PhotometricSeparated}, voxel.Photometric},
		{"logl", []Page{{4, 4, data}}, Options{Photometric: PhotometricLogL}, voxel.Photometric},
		{"logluv", []Page{{4, 4, data}}, Options{Photometric: PhotometricLogLuv}, voxel.Photometric},
		{"multisample", []Page{{2, 4, data}}, Options{SamplesPerPixel: 2}, voxel.MultiSample},
		{"void", []Page{{4, 4, data}}, Options{SampleFormat: SampleFormatVoid}, voxel.NoMatchingKind},
		{"float16", []Page{{4, 4, data}}, Options{SampleFormat: SampleFormatFloat}, voxel.NoMatchingKind},
	}
	for _, tc := range tests {
		opt := tc.opt
		path := writeTestFile(t, tc.name+".tif", tc.pages, &opt)
		f, err := ReadFrame(path, 0)
		if err != nil {
			t.Fatalf("%s: can't read frame: %v\n", tc.name, err)
		}
		err = f.CheckSupported()
		var uerr *voxel.UnsupportedFormatError
		if !errors.As(err, &uerr) {
			t.Fatalf("%s: expected UnsupportedFormatError, got %v\n", tc.name, err)
		}
		if uerr.Reason != tc.reason {
			t.Fatalf("%s: expected reason %q, got %q\n", tc.name, tc.reason, uerr.Reason)
		}
		if CanRead(path) {
			t.Fatalf("%s: CanRead accepted unsupported file\n", tc.name)
		}
	}
}

func TestMetadata(t *testing.T) {
	rng := [2]float64{10, 900}
	opt := &Options{SampleRange: &rng, VoxelSize: voxel.Vector3f{0.5, 0.25, 2}, Description: "made by test"}
	path := writeTestFile(t, "meta.tif", []Page{{4, 4, rampUint16(4, 4, 0)}}, opt)
	f, err := ReadFrame(path, 0)
	if err != nil {
		t.Fatalf("can't read frame: %v\n", err)
	}
	if !f.HasSampleRange || f.MinSample != 10 || f.MaxSample != 900 {
		t.Fatalf("expected sample range [10,900], got %t [%g,%g]\n", f.HasSampleRange, f.MinSample, f.MaxSample)
	}
	size, ok := f.VoxelSize()
	if !ok || size != (voxel.Vector3f{0.5, 0.25, 2}) {
		t.Fatalf("expected voxel size (0.5,0.25,2), got %s (%t)\n", size, ok)
	}

	plain := writeTestFile(t, "plain.tif", []Page{{4, 4, rampUint16(4, 4, 0)}}, nil)
	f, err = ReadFrame(plain, 0)
	if err != nil {
		t.Fatalf("can't read frame: %v\n", err)
	}
	if f.HasSampleRange {
		t.Fatalf("plain file reports a sample range\n")
	}
	if size, ok := f.VoxelSize(); ok || size != (voxel.Vector3f{1, 1, 1}) {
		t.Fatalf("expected default voxel size, got %s (%t)\n", size, ok)
	}
	if !CanRead(plain) {
		t.Fatalf("CanRead rejected a plain file\n")
	}
}

func TestNotTIFF(t *testing.T) {
	path := filepath.Join(t.TempDir(), "junk.tif")
	if err := os.WriteFile(path, []byte("this is not an image"), 0644); err != nil {
		t.Fatalf("can't write file: %v\n", err)
	}
	_, err := ReadFrame(path, 0)
	var ioErr *voxel.IOError
	if !errors.As(err, &ioErr) || !errors.Is(err, ErrNotTIFF) {
		t.Fatalf("expected IOError wrapping ErrNotTIFF, got %v\n", err)
	}
	if _, err := CountDirectories(filepath.Join(t.TempDir(), "missing.tif")); !errors.As(err, &ioErr) {
		t.Fatalf("expected IOError for missing file, got %v\n", err)
	}
	if CanRead(path) || CanRead("image.png") || CanRead() {
		t.Fatalf("CanRead accepted a bad path\n")
	}
}

func TestTruncatedStrip(t *testing.T) {
	data := rampUint16(8, 8, 0)
	path := writeTestFile(t, "trunc.tif", []Page{{8, 8, data}}, &Options{RowsPerStrip: 2})
	f, err := ReadFrame(path, 0)
	if err != nil {
		t.Fatalf("can't read frame: %v\n", err)
	}
	// Cut the file inside the last strip.
	last := f.StripCount() - 1
	if err := os.Truncate(path, int64(f.StripOffsets[last]+2)); err != nil {
		t.Fatalf("can't truncate: %v\n", err)
	}
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("can't open: %v\n", err)
	}
	defer file.Close()

	dst := make([]uint16, 64)
	var failed []int
	err = DecodeFrame(f, file, dst, func(strip int, err error) error {
		failed = append(failed, strip)
		return nil
	})
	if err != nil {
		t.Fatalf("expected strip errors to be absorbed, got %v\n", err)
	}
	if !reflect.DeepEqual(failed, []int{last}) {
		t.Fatalf("expected only strip %d to fail, got %v\n", last, failed)
	}
	if !reflect.DeepEqual(dst[:48], []uint16(data[:48])) {
		t.Fatalf("intact strips decoded incorrectly\n")
	}
	for i, v := range dst[48:] {
		if v != 0 {
			t.Fatalf("failed strip value %d is %d, expected 0\n", i, v)
		}
	}
	if err := DecodeFrame(f, file, dst, nil); err == nil {
		t.Fatalf("expected error without a strip error handler\n")
	}
}

func TestLZWStrip(t *testing.T) {
	src := make([]byte, 120)
	for i := range src {
		src[i] = byte(i % 9)
	}
	var buf bytes.Buffer
	zw := lzw.NewWriter(&buf, lzw.MSB, 8)
	zw.Write(src)
	zw.Close()
	out, err := decompress(CompressionLZW, buf.Bytes(), len(src))
	if err != nil {
		t.Fatalf("lzw decode failed: %v\n", err)
	}
	if !bytes.Equal(out, src) {
		t.Fatalf("lzw decoded data differs\n")
	}
}

func TestPackBits(t *testing.T) {
	// PackBits sample run from the TIFF 6.0 document.
	packed := []byte{0xFE, 0xAA, 0x02, 0x80, 0x00, 0x2A, 0xFD, 0xAA, 0x03, 0x80, 0x00, 0x2A, 0x22, 0xF7, 0xAA}
	expected := []byte{0xAA, 0xAA, 0xAA, 0x80, 0x00, 0x2A, 0xAA, 0xAA, 0xAA, 0xAA, 0x80, 0x00, 0x2A, 0x22,
		0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA, 0xAA}
	out, err := unpackBits(packed, len(expected))
	if err != nil {
		t.Fatalf("unpack failed: %v\n", err)
	}
	if !bytes.Equal(out, expected) {
		t.Fatalf("expected %x, got %x\n", expected, out)
	}
	back, err := unpackBits(packBits(expected), len(expected))
	if err != nil || !bytes.Equal(back, expected) {
		t.Fatalf("pack/unpack mismatch: %x (%v)\n", back, err)
	}
	if _, err := unpackBits([]byte{0x05, 0x01}, 6); err == nil {
		t.Fatalf("expected error on truncated literal run\n")
	}
}

func TestFloatingPointPredictor(t *testing.T) {
	// Two float32 samples in one row: 1.0 (3f800000) and -2.0 (c0000000).
	planes := []byte{0x3f, 0xc0, 0x80, 0x00, 0x00, 0x00, 0x00, 0x00}
	diffed := make([]byte, len(planes))
	diffed[0] = planes[0]
	for i := 1; i < len(planes); i++ {
		diffed[i] = planes[i] - planes[i-1]
	}
	out := undoFloatingPoint(diffed, 1, 2, 4)
	vals := make([]float32, 2)
	voxel.DecodeValues(vals, binary.BigEndian, out)
	if vals[0] != 1 || vals[1] != -2 {
		t.Fatalf("expected [1 -2], got %v\n", vals)
	}
}

func TestCompressionNames(t *testing.T) {
	for _, c := range []uint16{CompressionNone, CompressionLZW, CompressionDeflate, CompressionPackBits, CompressionOldDeflate, CompressionZstd} {
		got, err := ParseCompression(CompressionName(c))
		if err != nil || got != c {
			t.Errorf("compression %d did not survive its name %q: %d (%v)\n", c, CompressionName(c), got, err)
		}
	}
	if c, err := ParseCompression(""); err != nil || c != CompressionNone {
		t.Errorf("empty name should be no compression, got %d (%v)\n", c, err)
	}
	if _, err := ParseCompression("jpeg"); err == nil {
		t.Errorf("expected error for unsupported compression name\n")
	}
}

func TestBigTIFF(t *testing.T) {
	type field struct {
		tag, typ uint16
		val      uint64
	}
	fields := []field{
		{tagImageWidth, dtShort, 3},
		{tagImageLength, dtShort, 2},
		{tagBitsPerSample, dtShort, 8},
		{tagStripOffsets, dtLong8, 0},
		{tagRowsPerStrip, dtShort, 2},
		{tagStripByteCounts, dtLong8, 6},
	}
	dataOffset := uint64(16 + 8 + len(fields)*20 + 8)
	fields[3].val = dataOffset

	le := binary.LittleEndian
	var buf bytes.Buffer
	buf.WriteString("II")
	binary.Write(&buf, le, uint16(43))
	binary.Write(&buf, le, uint16(8))
	binary.Write(&buf, le, uint16(0))
	binary.Write(&buf, le, uint64(16))
	binary.Write(&buf, le, uint64(len(fields)))
	for _, f := range fields {
		binary.Write(&buf, le, f.tag)
		binary.Write(&buf, le, f.typ)
		binary.Write(&buf, le, uint64(1))
		var inline [8]byte
		if f.typ == dtShort {
			le.PutUint16(inline[:], uint16(f.val))
		} else {
			le.PutUint64(inline[:], f.val)
		}
		buf.Write(inline[:])
	}
	binary.Write(&buf, le, uint64(0))
	if uint64(buf.Len()) != dataOffset {
		t.Fatalf("bad test layout: data at %d, expected %d\n", buf.Len(), dataOffset)
	}
	buf.Write([]byte{1, 2, 3, 4, 5, 6})

	path := filepath.Join(t.TempDir(), "big.tif")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("can't write %s: %v\n", path, err)
	}
	frames, err := ReadFrames(path)
	if err != nil {
		t.Fatalf("can't read BigTIFF frames: %v\n", err)
	}
	if len(frames) != 1 || frames[0].Width != 3 || frames[0].Height != 2 {
		t.Fatalf("unexpected BigTIFF frames %v\n", frames)
	}
	if err := frames[0].CheckSupported(); err != nil {
		t.Fatalf("BigTIFF frame should be supported: %v\n", err)
	}
	if got := decodeAll[uint8](t, frames[0]); !reflect.DeepEqual(got, []uint8{1, 2, 3, 4, 5, 6}) {
		t.Fatalf("unexpected BigTIFF values %v\n", got)
	}
}

// readerOnly hides the size of the underlying reader.
type readerOnly struct{ r io.ReaderAt }

func (r readerOnly) ReadAt(p []byte, off int64) (int, error) { return r.r.ReadAt(p, off) }

func TestCorruptStripByteCounts(t *testing.T) {
	data := rampUint16(4, 4, 0)
	path := writeTestFile(t, "counts.tif", []Page{{4, 4, data}}, &Options{RowsPerStrip: 2})
	file, err := os.Open(path)
	if err != nil {
		t.Fatalf("can't open: %v\n", err)
	}
	defer file.Close()

	for _, count := range []uint64{1 << 63, math.MaxUint64, 0xFFFFFFFF, 1 << 20} {
		for _, r := range []io.ReaderAt{file, readerOnly{file}} {
			f, err := ReadFrame(path, 0)
			if err != nil {
				t.Fatalf("can't read frame: %v\n", err)
			}
			f.StripByteCounts[1] = count
			if _, sized := r.(*os.File); !sized && count <= maxEntryData {
				continue
			}
			dst := make([]uint16, 16)
			var failed []int
			err = DecodeFrame(f, r, dst, func(strip int, err error) error {
				if !errors.Is(err, ErrCorrupt) {
					t.Errorf("strip %d with %d bytes: expected ErrCorrupt, got %v\n", strip, count, err)
				}
				var ioerr *voxel.IOError
				if !errors.As(err, &ioerr) {
					t.Errorf("strip %d with %d bytes: expected IOError, got %T\n", strip, count, err)
				}
				failed = append(failed, strip)
				return nil
			})
			if err != nil {
				t.Fatalf("byte count %d: expected strip error to be absorbed, got %v\n", count, err)
			}
			if !reflect.DeepEqual(failed, []int{1}) {
				t.Fatalf("byte count %d: expected strip 1 to fail, got %v\n", count, failed)
			}
			if !reflect.DeepEqual(dst[:8], []uint16(data[:8])) || !reflect.DeepEqual(dst[12:], []uint16(data[12:])) {
				t.Fatalf("byte count %d: intact strips decoded incorrectly: %v\n", count, dst)
			}
			for i, v := range dst[8:12] {
				if v != 0 {
					t.Fatalf("byte count %d: failed strip value %d is %d, expected 0\n", count, i, v)
				}
			}
		}
	}
}

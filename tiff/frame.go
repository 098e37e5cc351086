package tiff

import (
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/janelia-flyem/vstack/voxel"
)

// Frame describes one 2d plane stored in one directory of one file.  Frames are
// immutable once read.
type Frame struct {
	Path      string
	Directory int
	Offset    uint64

	Width           int
	Height          int
	RowsPerStrip    int
	SamplesPerPixel int
	BitsPerSample   int

	SampleFormat uint16
	Compression  uint16
	Predictor    uint16
	Photometric  uint16
	PlanarConfig uint16
	Tiled        bool

	StripOffsets    []uint64
	StripByteCounts []uint64

	// HasSampleRange is set when the frame carries min/max sample value tags.
	HasSampleRange bool
	MinSample      float64
	MaxSample      float64

	// XResolution and YResolution are in pixels per ResolutionUnit; 0 if absent.
	XResolution    float64
	YResolution    float64
	ResolutionUnit uint16

	Description string
	ByteOrder   binary.ByteOrder
}

// StripCount returns the number of strips in the frame.
func (f *Frame) StripCount() int {
	return len(f.StripOffsets)
}

// StripRows returns the number of rows in strip i.  All strips have RowsPerStrip
// rows except the last, which holds the remaining rows.
func (f *Frame) StripRows(i int) int {
	rows := f.Height - i*f.RowsPerStrip
	if rows > f.RowsPerStrip {
		rows = f.RowsPerStrip
	}
	if rows < 0 {
		rows = 0
	}
	return rows
}

// Kind returns the pixel kind for the frame's sample format and bit depth.
func (f *Frame) Kind() (voxel.PixelKind, error) {
	kind, err := PixelKindOf(f.SampleFormat, f.BitsPerSample)
	if err != nil {
		return voxel.T_unknown, &voxel.UnsupportedFormatError{
			Path:   f.Path,
			Reason: voxel.NoMatchingKind,
			Detail: err.Error(),
		}
	}
	return kind, nil
}

// CheckSupported returns an *voxel.UnsupportedFormatError if the frame uses storage
// the decoder cannot represent.
func (f *Frame) CheckSupported() error {
	unsupported := func(reason voxel.FormatReason, detail string) error {
		return &voxel.UnsupportedFormatError{Path: f.Path, Reason: reason, Detail: detail}
	}
	if f.Tiled {
		return unsupported(voxel.Tiled, fmt.Sprintf("directory %d", f.Directory))
	}
	if f.PlanarConfig != PlanarContiguous {
		return unsupported(voxel.PlanarConfig, fmt.Sprintf("planar configuration %d", f.PlanarConfig))
	}
	switch f.Photometric {
	case PhotometricPalette, PhotometricMask, PhotometricSeparated, PhotometricLogL, PhotometricLogLuv:
		return unsupported(voxel.Photometric, fmt.Sprintf("photometric interpretation %d", f.Photometric))
	}
	if f.SamplesPerPixel > 1 {
		return unsupported(voxel.MultiSample, fmt.Sprintf("%d samples per pixel", f.SamplesPerPixel))
	}
	if !supportedCompression(f.Compression) {
		return unsupported(voxel.Compression, fmt.Sprintf("compression %d", f.Compression))
	}
	if f.Predictor != PredictorNone && f.Predictor != PredictorHorizontal && f.Predictor != PredictorFloatingPoint {
		return unsupported(voxel.Compression, fmt.Sprintf("predictor %d", f.Predictor))
	}
	if _, err := f.Kind(); err != nil {
		return err
	}
	return nil
}

// SameGeometry returns true if the frame has the reference frame's width, height and
// bits per sample.
func (f *Frame) SameGeometry(ref *Frame) bool {
	return f.Width == ref.Width && f.Height == ref.Height && f.BitsPerSample == ref.BitsPerSample
}

// PixelKindOf maps a sample format and bit depth onto a pixel kind.  A sample format
// of 0 is read as unsigned integer, the TIFF default.
func PixelKindOf(sampleFormat uint16, bitsPerSample int) (voxel.PixelKind, error) {
	switch sampleFormat {
	case 0, SampleFormatUint:
		switch bitsPerSample {
		case 8:
			return voxel.T_uint8, nil
		case 16:
			return voxel.T_uint16, nil
		case 32:
			return voxel.T_uint32, nil
		case 64:
			return voxel.T_uint64, nil
		}
	case SampleFormatInt:
		switch bitsPerSample {
		case 8:
			return voxel.T_int8, nil
		case 16:
			return voxel.T_int16, nil
		case 32:
			return voxel.T_int32, nil
		case 64:
			return voxel.T_int64, nil
		}
	case SampleFormatFloat:
		switch bitsPerSample {
		case 32:
			return voxel.T_float32, nil
		case 64:
			return voxel.T_float64, nil
		}
	}
	return voxel.T_unknown, fmt.Errorf("no pixel kind for sample format %d with %d bits", sampleFormat, bitsPerSample)
}

// VoxelSize returns the physical voxel size given by the frame's resolution tags
// and an ImageJ-style "spacing=" description entry.  Resolutions with inch or
// centimeter units are display densities and are ignored.  ok is false if no
// physical size is recorded.
func (f *Frame) VoxelSize() (size voxel.Vector3f, ok bool) {
	size = voxel.Vector3f{1, 1, 1}
	if f.ResolutionUnit == ResUnitNone && f.XResolution > 0 && f.YResolution > 0 {
		size[0] = float32(1 / f.XResolution)
		size[1] = float32(1 / f.YResolution)
		ok = true
	}
	for _, line := range strings.Split(f.Description, "\n") {
		if value, found := strings.CutPrefix(strings.TrimSpace(line), "spacing="); found {
			if z, err := strconv.ParseFloat(value, 32); err == nil && z > 0 {
				size[2] = float32(z)
				ok = true
			}
		}
	}
	return
}

// CountDirectories returns the number of directories in a TIFF file.
func CountDirectories(path string) (int, error) {
	file, err := os.Open(path)
	if err != nil {
		return 0, &voxel.IOError{Path: path, Op: "open", Err: err}
	}
	defer file.Close()
	ir, err := newIFDReader(file)
	if err != nil {
		return 0, &voxel.IOError{Path: path, Op: "read header", Err: err}
	}
	offsets, err := ir.directoryOffsets()
	if err != nil {
		return 0, &voxel.IOError{Path: path, Op: "read directories", Err: err}
	}
	return len(offsets), nil
}

// ReadFrame opens a file and reads the descriptor of directory dir.
func ReadFrame(path string, dir int) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &voxel.IOError{Path: path, Op: "open", Err: err}
	}
	defer file.Close()
	frames, err := readFrames(path, file, dir, 1)
	if err != nil {
		return nil, err
	}
	return frames[0], nil
}

// ReadFrames reads the descriptors of every directory in a file.
func ReadFrames(path string) ([]*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &voxel.IOError{Path: path, Op: "open", Err: err}
	}
	defer file.Close()
	return readFrames(path, file, 0, -1)
}

// DecodeFrames reads frame descriptors from r, starting at directory first.  At most
// limit frames are returned; a negative limit reads to the last directory.
func DecodeFrames(path string, r io.ReaderAt, first, limit int) ([]*Frame, error) {
	return readFrames(path, r, first, limit)
}

func readFrames(path string, r io.ReaderAt, first, limit int) ([]*Frame, error) {
	ir, err := newIFDReader(r)
	if err != nil {
		return nil, &voxel.IOError{Path: path, Op: "read header", Err: err}
	}
	off, err := ir.directoryOffset(first)
	if err != nil {
		return nil, &voxel.IOError{Path: path, Op: "find directory", Err: err}
	}
	var frames []*Frame
	for dir := first; off != 0 && (limit < 0 || len(frames) < limit); dir++ {
		entries, next, err := ir.readDirectory(off)
		if err != nil {
			return nil, &voxel.IOError{Path: path, Op: fmt.Sprintf("read directory %d", dir), Err: err}
		}
		f, err := ir.frame(path, dir, off, entries)
		if err != nil {
			return nil, &voxel.IOError{Path: path, Op: fmt.Sprintf("parse directory %d", dir), Err: err}
		}
		frames = append(frames, f)
		off = next
	}
	return frames, nil
}

func (ir *ifdReader) frame(path string, dir int, off uint64, entries map[uint16]entry) (*Frame, error) {
	f := &Frame{
		Path:      path,
		Directory: dir,
		Offset:    off,
		ByteOrder: ir.order,
	}
	var err error
	getInt := func(tag uint16, dflt uint64) int {
		if err != nil {
			return 0
		}
		var v uint64
		v, err = ir.firstUint(entries, tag, dflt)
		return int(v)
	}
	getShort := func(tag uint16, dflt uint64) uint16 {
		return uint16(getInt(tag, dflt))
	}

	f.Width = getInt(tagImageWidth, 0)
	f.Height = getInt(tagImageLength, 0)
	f.SamplesPerPixel = getInt(tagSamplesPerPixel, 1)
	f.BitsPerSample = getInt(tagBitsPerSample, 1)
	f.SampleFormat = getShort(tagSampleFormat, uint64(SampleFormatUint))
	f.Compression = getShort(tagCompression, uint64(CompressionNone))
	f.Predictor = getShort(tagPredictor, uint64(PredictorNone))
	f.Photometric = getShort(tagPhotometricInterpretation, uint64(PhotometricBlackIsZero))
	f.PlanarConfig = getShort(tagPlanarConfiguration, uint64(PlanarContiguous))
	f.ResolutionUnit = getShort(tagResolutionUnit, uint64(ResUnitInch))
	f.RowsPerStrip = getInt(tagRowsPerStrip, uint64(f.Height))
	if err != nil {
		return nil, err
	}
	if f.Width <= 0 || f.Height <= 0 {
		return nil, fmt.Errorf("%w: frame is %d x %d", ErrCorrupt, f.Width, f.Height)
	}
	if f.RowsPerStrip <= 0 || f.RowsPerStrip > f.Height {
		f.RowsPerStrip = f.Height
	}

	_, hasTileWidth := entries[tagTileWidth]
	_, hasTileOffsets := entries[tagTileOffsets]
	f.Tiled = hasTileWidth || hasTileOffsets

	if !f.Tiled {
		offsets, found := entries[tagStripOffsets]
		if !found {
			return nil, fmt.Errorf("%w: no strip offsets", ErrCorrupt)
		}
		if f.StripOffsets, err = ir.uints(offsets); err != nil {
			return nil, err
		}
		if counts, found := entries[tagStripByteCounts]; found {
			if f.StripByteCounts, err = ir.uints(counts); err != nil {
				return nil, err
			}
		} else if len(f.StripOffsets) == 1 && f.Compression == CompressionNone {
			f.StripByteCounts = []uint64{uint64(f.Width * f.Height * f.SamplesPerPixel * f.BitsPerSample / 8)}
		} else {
			return nil, fmt.Errorf("%w: no strip byte counts", ErrCorrupt)
		}
		if len(f.StripOffsets) != len(f.StripByteCounts) {
			return nil, fmt.Errorf("%w: %d strip offsets but %d byte counts", ErrCorrupt,
				len(f.StripOffsets), len(f.StripByteCounts))
		}
	}

	if f.HasSampleRange, f.MinSample, f.MaxSample, err = ir.sampleRange(entries); err != nil {
		return nil, err
	}
	if e, found := entries[tagXResolution]; found {
		if vals, err := ir.floats(e); err == nil && len(vals) > 0 {
			f.XResolution = vals[0]
		}
	}
	if e, found := entries[tagYResolution]; found {
		if vals, err := ir.floats(e); err == nil && len(vals) > 0 {
			f.YResolution = vals[0]
		}
	}
	if e, found := entries[tagImageDescription]; found && e.typ == dtASCII {
		f.Description = ascii(e)
	}
	return f, nil
}

// sampleRange reads the SMin/SMaxSampleValue tags, falling back to the
// Min/MaxSampleValue tags.  With multiple values, the widest range is kept.
func (ir *ifdReader) sampleRange(entries map[uint16]entry) (found bool, lo, hi float64, err error) {
	minEntry, hasMin := entries[tagSMinSampleValue]
	maxEntry, hasMax := entries[tagSMaxSampleValue]
	if !hasMin || !hasMax {
		minEntry, hasMin = entries[tagMinSampleValue]
		maxEntry, hasMax = entries[tagMaxSampleValue]
	}
	if !hasMin || !hasMax || minEntry.count == 0 || maxEntry.count == 0 {
		return false, 0, 0, nil
	}
	mins, err := ir.floats(minEntry)
	if err != nil {
		return false, 0, 0, err
	}
	maxs, err := ir.floats(maxEntry)
	if err != nil {
		return false, 0, 0, err
	}
	lo, hi = mins[0], maxs[0]
	for _, v := range mins[1:] {
		lo = min(lo, v)
	}
	for _, v := range maxs[1:] {
		hi = max(hi, v)
	}
	return true, lo, hi, nil
}

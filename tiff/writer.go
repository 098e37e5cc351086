package tiff

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"
	"sort"

	"github.com/janelia-flyem/vstack/voxel"
)

// Page is one 2d plane to encode.  Data holds Width * Height * SamplesPerPixel
// values in row-major order.
type Page struct {
	Width  int
	Height int
	Data   voxel.Buffer
}

// Options control how pages are encoded.  The zero value writes little-endian,
// uncompressed, single-strip, single-sample pages.
type Options struct {
	ByteOrder    binary.ByteOrder
	Compression  uint16
	Predictor    bool
	RowsPerStrip int

	// SampleRange, if set, is written as SMin/SMaxSampleValue.
	SampleRange *[2]float64

	// VoxelSize, if non-zero, is written as resolution tags and an ImageJ-style
	// spacing entry in the description.
	VoxelSize voxel.Vector3f

	Description string

	// The following produce frames the decoder rejects.  Tiled writes the page as a
	// single padded tile.  A zero Photometric writes BlackIsZero.
	Tiled           bool
	PlanarConfig    uint16
	Photometric     uint16
	SamplesPerPixel int
	SampleFormat    uint16
}

// ErrEncoderClosed is returned when pages are written after Close.
var ErrEncoderClosed = errors.New("encoder closed")

// Encoder writes a multi-page TIFF to an io.Writer.  Each page's directory precedes
// its strip data, and one page is held back so the last directory can end the chain.
type Encoder struct {
	w       *bufio.Writer
	opt     Options
	order   binary.ByteOrder
	pos     uint64
	pending *encodedPage
	pages   int
	closed  bool
}

type encodedPage struct {
	tags   []field
	strips [][]byte
}

type field struct {
	tag   uint16
	typ   uint16
	count uint32
	data  []byte
}

// NewEncoder returns an encoder writing to w.
func NewEncoder(w io.Writer, opt *Options) *Encoder {
	e := &Encoder{w: bufio.NewWriter(w)}
	if opt != nil {
		e.opt = *opt
	}
	if e.opt.ByteOrder == nil {
		e.opt.ByteOrder = binary.LittleEndian
	}
	if e.opt.Compression == 0 {
		e.opt.Compression = CompressionNone
	}
	if e.opt.SamplesPerPixel < 1 {
		e.opt.SamplesPerPixel = 1
	}
	if e.opt.PlanarConfig == 0 {
		e.opt.PlanarConfig = PlanarContiguous
	}
	e.order = e.opt.ByteOrder
	return e
}

// Encode writes all pages as one TIFF file.
func Encode(w io.Writer, pages []Page, opt *Options) error {
	enc := NewEncoder(w, opt)
	for i, p := range pages {
		if err := enc.WritePage(p); err != nil {
			return fmt.Errorf("page %d: %w", i, err)
		}
	}
	return enc.Close()
}

// Pages returns the number of pages accepted so far.
func (e *Encoder) Pages() int { return e.pages }

// WritePage encodes a page.  It is written out once the next page or Close arrives.
func (e *Encoder) WritePage(p Page) error {
	if e.closed {
		return ErrEncoderClosed
	}
	ep, err := e.encode(p)
	if err != nil {
		return err
	}
	if e.pages == 0 {
		if err := e.writeHeader(); err != nil {
			return err
		}
	}
	if e.pending != nil {
		if err := e.flush(e.pending, false); err != nil {
			return err
		}
	}
	e.pending = ep
	e.pages++
	return nil
}

// Close writes the last page and flushes the output.  It does not close the
// underlying writer.
func (e *Encoder) Close() error {
	if e.closed {
		return nil
	}
	e.closed = true
	if e.pages == 0 {
		return errors.New("no pages written")
	}
	if err := e.flush(e.pending, true); err != nil {
		return err
	}
	e.pending = nil
	return e.w.Flush()
}

func (e *Encoder) writeHeader() error {
	hdr := make([]byte, 8)
	if e.order == binary.BigEndian {
		copy(hdr, "MM")
	} else {
		copy(hdr, "II")
	}
	e.order.PutUint16(hdr[2:], 42)
	e.order.PutUint32(hdr[4:], 8)
	return e.write(hdr)
}

func (e *Encoder) write(b []byte) error {
	n, err := e.w.Write(b)
	e.pos += uint64(n)
	if err == nil && e.pos > math.MaxUint32 {
		err = errors.New("output exceeds 4 GiB classic TIFF limit")
	}
	return err
}

func (e *Encoder) encode(p Page) (*encodedPage, error) {
	if p.Width <= 0 || p.Height <= 0 {
		return nil, fmt.Errorf("bad page size %d x %d", p.Width, p.Height)
	}
	if p.Data == nil {
		return nil, errors.New("page has no data")
	}
	spp := e.opt.SamplesPerPixel
	if p.Data.Len() != p.Width*p.Height*spp {
		return nil, fmt.Errorf("page %d x %d x %d needs %d values, got %d", p.Width, p.Height, spp,
			p.Width*p.Height*spp, p.Data.Len())
	}
	kind := p.Data.Kind()
	bytesPerSample := kind.Bytes()
	rowSamples := p.Width * spp
	raw := p.Data.Bytes(e.order)

	ep := &encodedPage{}
	sampleFormat := e.opt.SampleFormat
	if sampleFormat == 0 {
		switch {
		case kind.IsFloat():
			sampleFormat = SampleFormatFloat
		case kind.IsSigned():
			sampleFormat = SampleFormatInt
		default:
			sampleFormat = SampleFormatUint
		}
	}
	photometric := e.opt.Photometric
	if photometric == PhotometricWhiteIsZero {
		photometric = PhotometricBlackIsZero
	}
	bits := make([]uint64, spp)
	for i := range bits {
		bits[i] = uint64(kind.Bits())
	}
	ep.add(tagNewSubfileType, dtLong, e.order, 0)
	ep.add(tagImageWidth, dtLong, e.order, uint64(p.Width))
	ep.add(tagImageLength, dtLong, e.order, uint64(p.Height))
	ep.add(tagBitsPerSample, dtShort, e.order, bits...)
	ep.add(tagCompression, dtShort, e.order, uint64(e.opt.Compression))
	ep.add(tagPhotometricInterpretation, dtShort, e.order, uint64(photometric))
	ep.add(tagSamplesPerPixel, dtShort, e.order, uint64(spp))
	ep.add(tagPlanarConfiguration, dtShort, e.order, uint64(e.opt.PlanarConfig))
	ep.add(tagSampleFormat, dtShort, e.order, uint64(sampleFormat))
	if e.opt.Predictor {
		if kind.IsFloat() {
			return nil, errors.New("horizontal predictor needs integer samples")
		}
		ep.add(tagPredictor, dtShort, e.order, uint64(PredictorHorizontal))
	}
	if r := e.opt.SampleRange; r != nil {
		ep.addDoubles(tagSMinSampleValue, e.order, r[0])
		ep.addDoubles(tagSMaxSampleValue, e.order, r[1])
	}
	desc := e.opt.Description
	if vs := e.opt.VoxelSize; vs != (voxel.Vector3f{}) {
		ep.addRational(tagXResolution, e.order, 1/float64(vs[0]))
		ep.addRational(tagYResolution, e.order, 1/float64(vs[1]))
		ep.add(tagResolutionUnit, dtShort, e.order, uint64(ResUnitNone))
		if desc != "" {
			desc += "\n"
		}
		desc += fmt.Sprintf("spacing=%g", vs[2])
	}
	if desc != "" {
		ep.tags = append(ep.tags, field{tag: tagImageDescription, typ: dtASCII,
			count: uint32(len(desc) + 1), data: append([]byte(desc), 0)})
	}
	ep.tags = append(ep.tags, field{tag: tagSoftware, typ: dtASCII, count: 7, data: []byte("vstack\x00")})

	if e.opt.Tiled {
		tw := (p.Width + 15) / 16 * 16
		th := (p.Height + 15) / 16 * 16
		tile := make([]byte, tw*th*spp*bytesPerSample)
		srcRow := rowSamples * bytesPerSample
		for y := 0; y < p.Height; y++ {
			copy(tile[y*tw*spp*bytesPerSample:], raw[y*srcRow:(y+1)*srcRow])
		}
		data, err := compress(e.opt.Compression, tile)
		if err != nil {
			return nil, err
		}
		ep.strips = [][]byte{data}
		ep.add(tagTileWidth, dtLong, e.order, uint64(tw))
		ep.add(tagTileLength, dtLong, e.order, uint64(th))
		ep.add(tagTileOffsets, dtLong, e.order, 0)
		ep.add(tagTileByteCounts, dtLong, e.order, uint64(len(data)))
		return ep, nil
	}

	rowsPerStrip := e.opt.RowsPerStrip
	if rowsPerStrip <= 0 || rowsPerStrip > p.Height {
		rowsPerStrip = p.Height
	}
	nstrips := (p.Height + rowsPerStrip - 1) / rowsPerStrip
	counts := make([]uint64, nstrips)
	for i := 0; i < nstrips; i++ {
		rows := min(rowsPerStrip, p.Height-i*rowsPerStrip)
		start := i * rowsPerStrip * rowSamples * bytesPerSample
		strip := append([]byte(nil), raw[start:start+rows*rowSamples*bytesPerSample]...)
		if e.opt.Predictor {
			applyHorizontal(strip, e.order, rows, rowSamples, bytesPerSample)
		}
		data, err := compress(e.opt.Compression, strip)
		if err != nil {
			return nil, err
		}
		ep.strips = append(ep.strips, data)
		counts[i] = uint64(len(data))
	}
	ep.add(tagRowsPerStrip, dtLong, e.order, uint64(rowsPerStrip))
	ep.add(tagStripOffsets, dtLong, e.order, make([]uint64, nstrips)...)
	ep.add(tagStripByteCounts, dtLong, e.order, counts...)
	return ep, nil
}

// flush writes a page's directory, out-of-line values and strip data.
func (e *Encoder) flush(ep *encodedPage, last bool) error {
	if e.pos%2 == 1 {
		if err := e.write([]byte{0}); err != nil {
			return err
		}
	}
	sort.Slice(ep.tags, func(i, j int) bool { return ep.tags[i].tag < ep.tags[j].tag })

	ifdStart := e.pos
	ifdLen := uint64(2 + 12*len(ep.tags) + 4)
	extraStart := ifdStart + ifdLen
	var extra []byte
	extraOffsets := make([]uint64, len(ep.tags))
	for i, f := range ep.tags {
		if len(f.data) > 4 {
			extraOffsets[i] = extraStart + uint64(len(extra))
			extra = append(extra, f.data...)
			if len(extra)%2 == 1 {
				extra = append(extra, 0)
			}
		}
	}
	dataStart := extraStart + uint64(len(extra))

	// Fill in strip or tile offsets now that the data position is known.
	offsets := make([]uint64, len(ep.strips))
	pos := dataStart
	for i, s := range ep.strips {
		offsets[i] = pos
		pos += uint64(len(s))
	}
	next := uint64(0)
	if !last {
		next = pos + pos%2
	}
	for i, f := range ep.tags {
		if f.tag == tagStripOffsets || f.tag == tagTileOffsets {
			for j, off := range offsets {
				e.order.PutUint32(f.data[4*j:], uint32(off))
			}
			if len(f.data) > 4 {
				copy(extra[extraOffsets[i]-extraStart:], f.data)
			}
		}
	}

	ifd := make([]byte, ifdLen)
	e.order.PutUint16(ifd, uint16(len(ep.tags)))
	for i, f := range ep.tags {
		b := ifd[2+12*i:]
		e.order.PutUint16(b[0:], f.tag)
		e.order.PutUint16(b[2:], f.typ)
		e.order.PutUint32(b[4:], f.count)
		if len(f.data) > 4 {
			e.order.PutUint32(b[8:], uint32(extraOffsets[i]))
		} else {
			copy(b[8:12], f.data)
		}
	}
	e.order.PutUint32(ifd[ifdLen-4:], uint32(next))

	if err := e.write(ifd); err != nil {
		return err
	}
	if err := e.write(extra); err != nil {
		return err
	}
	for _, s := range ep.strips {
		if err := e.write(s); err != nil {
			return err
		}
	}
	return nil
}

func (ep *encodedPage) add(tag, typ uint16, order binary.ByteOrder, vals ...uint64) {
	size := lengths[typ]
	data := make([]byte, size*len(vals))
	for i, v := range vals {
		switch typ {
		case dtShort:
			order.PutUint16(data[2*i:], uint16(v))
		case dtLong:
			order.PutUint32(data[4*i:], uint32(v))
		}
	}
	ep.tags = append(ep.tags, field{tag: tag, typ: typ, count: uint32(len(vals)), data: data})
}

func (ep *encodedPage) addDoubles(tag uint16, order binary.ByteOrder, vals ...float64) {
	data := make([]byte, 8*len(vals))
	for i, v := range vals {
		order.PutUint64(data[8*i:], math.Float64bits(v))
	}
	ep.tags = append(ep.tags, field{tag: tag, typ: dtDouble, count: uint32(len(vals)), data: data})
}

// addRational writes v as a rational with a fixed denominator.
func (ep *encodedPage) addRational(tag uint16, order binary.ByteOrder, v float64) {
	den := 1000000.0
	for v*den > math.MaxUint32 && den > 1 {
		den /= 10
	}
	data := make([]byte, 8)
	order.PutUint32(data, uint32(math.Round(v*den)))
	order.PutUint32(data[4:], uint32(den))
	ep.tags = append(ep.tags, field{tag: tag, typ: dtRational, count: 1, data: data})
}

func applyHorizontal(data []byte, order binary.ByteOrder, rows, samplesPerRow, bytesPerSample int) {
	rowBytes := samplesPerRow * bytesPerSample
	for y := 0; y < rows; y++ {
		row := data[y*rowBytes : (y+1)*rowBytes]
		for x := samplesPerRow - 1; x > 0; x-- {
			switch bytesPerSample {
			case 1:
				row[x] -= row[x-1]
			case 2:
				order.PutUint16(row[2*x:], order.Uint16(row[2*x:])-order.Uint16(row[2*x-2:]))
			case 4:
				order.PutUint32(row[4*x:], order.Uint32(row[4*x:])-order.Uint32(row[4*x-4:]))
			case 8:
				order.PutUint64(row[8*x:], order.Uint64(row[8*x:])-order.Uint64(row[8*x-8:]))
			}
		}
	}
}

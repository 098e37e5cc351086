/*
Package export writes regions of a volume.Source to files and summarizes channel
values.  Z slabs are read in parallel and written in order.
*/
package export

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"runtime"
	"strings"

	"github.com/golang/snappy"
	"golang.org/x/sync/errgroup"

	"github.com/janelia-flyem/vstack/tiff"
	"github.com/janelia-flyem/vstack/volume"
	"github.com/janelia-flyem/vstack/voxel"
)

// Format is an export file format.
type Format uint8

const (
	// Raw is the interleaved little-endian values, x fastest then y then z.
	Raw Format = iota

	// Snappy is Raw compressed with the snappy framing format.
	Snappy

	// TIFF is a multi-page TIFF with one page per z slice.  A volume with several
	// channels is written as one TIFF per channel, matching the one file list per
	// channel that stack.Open reads.
	TIFF
)

var formatNames = map[Format]string{Raw: "raw", Snappy: "snappy", TIFF: "tiff"}

func (f Format) String() string {
	if name, found := formatNames[f]; found {
		return name
	}
	return fmt.Sprintf("format %d", uint8(f))
}

// Ext returns the file extension used for the format.
func (f Format) Ext() string {
	switch f {
	case Snappy:
		return ".sz"
	case TIFF:
		return ".tif"
	}
	return ".raw"
}

// ParseFormat returns the format with the given name, ignoring case.
func ParseFormat(s string) (Format, error) {
	for f, name := range formatNames {
		if strings.EqualFold(s, name) {
			return f, nil
		}
	}
	return Raw, fmt.Errorf("unknown export format %q", s)
}

const (
	DefaultBlockDepth = 16
)

// ErrChannelWriters is returned when the number of TIFF outputs does not match the
// number of channels.
var ErrChannelWriters = errors.New("TIFF export needs one output per channel")

// ChannelFilenames returns the TIFF file names used to export a volume with the
// given number of channels to out.  A single channel is written to out itself;
// otherwise channel c goes to out with "_c<c>" inserted before a TIFF extension,
// or with "_c<c>.tif" replacing any other extension.
func ChannelFilenames(out string, channels int) []string {
	if channels <= 1 {
		return []string{out}
	}
	ext := filepath.Ext(out)
	if !tiff.HasExtension(out) {
		ext = TIFF.Ext()
	}
	base := strings.TrimSuffix(out, filepath.Ext(out))
	names := make([]string, channels)
	for c := range names {
		names[c] = fmt.Sprintf("%s_c%d%s", base, c, ext)
	}
	return names
}

// Options control an export.  The zero value exports the whole source as raw
// values of its native kind using one worker per CPU.
type Options struct {
	Format Format

	// Kind of the written values.  T_unknown writes the source's native kind.
	Kind voxel.PixelKind

	// Origin and Size select the exported box.  A zero Size exports from Origin to
	// the end of the source.
	Origin voxel.Point3d
	Size   voxel.Point3d

	// Workers is the number of z slabs read at once.
	Workers int

	// BlockDepth is the number of z slices in a slab.
	BlockDepth int

	// Compression is the TIFF strip compression.
	Compression uint16
}

func (o Options) withDefaults(src volume.Source) Options {
	if o.Kind == voxel.T_unknown {
		o.Kind = src.NativeKind()
	}
	if o.Size == (voxel.Point3d{}) {
		o.Size = src.Resolution().Sub(o.Origin)
	}
	if o.Workers < 1 {
		o.Workers = runtime.NumCPU()
	}
	if o.BlockDepth < 1 {
		o.BlockDepth = DefaultBlockDepth
	}
	return o
}

// slab is a z range [z0, z0+depth) of the exported box, relative to its origin.
type slab struct {
	z0, depth int32
}

func slabs(size voxel.Point3d, depth int) []slab {
	var out []slab
	for z := int32(0); z < size[2]; z += int32(depth) {
		out = append(out, slab{z, min(int32(depth), size[2]-z)})
	}
	return out
}

// readSlabs reads the exported box slab by slab with up to o.Workers reads in
// flight and passes each slab to fn in z order.
func readSlabs(ctx context.Context, src volume.Source, o Options, fn func(s slab, buf voxel.Buffer) error) error {
	all := slabs(o.Size, o.BlockDepth)
	for start := 0; start < len(all); start += o.Workers {
		batch := all[start:min(start+o.Workers, len(all))]
		bufs := make([]voxel.Buffer, len(batch))
		g, gctx := errgroup.WithContext(ctx)
		for i, s := range batch {
			g.Go(func() error {
				if err := gctx.Err(); err != nil {
					return err
				}
				origin := o.Origin.Add(voxel.Point3d{0, 0, s.z0})
				size := voxel.Point3d{o.Size[0], o.Size[1], s.depth}
				buf, err := src.ReadSubRegion(o.Kind, origin, size)
				if err != nil {
					return fmt.Errorf("read of slab at z %d: %w", origin[2], err)
				}
				bufs[i] = buf
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return err
		}
		for i, s := range batch {
			if err := fn(s, bufs[i]); err != nil {
				return err
			}
		}
	}
	return nil
}

func (o Options) check() error {
	if err := volume.CheckRegion(o.Origin, o.Size); err != nil {
		return err
	}
	if !o.Kind.Valid() {
		return fmt.Errorf("%w: %d", voxel.ErrUnknownKind, uint8(o.Kind))
	}
	return nil
}

// Volume writes a box of src to w.  It returns the number of bytes of voxel data
// exported, before any compression.  TIFF exports of more than one channel need
// one output per channel and go through Channels.
func Volume(ctx context.Context, src volume.Source, w io.Writer, opt Options) (int64, error) {
	o := opt.withDefaults(src)
	if err := o.check(); err != nil {
		return 0, err
	}
	if o.Format == TIFF && src.Channels() > 1 {
		return 0, fmt.Errorf("%w: %q has %d channels", ErrChannelWriters, src.Name(), src.Channels())
	}
	tlog := voxel.NewTimeLog()
	var written int64
	var err error
	switch o.Format {
	case Raw:
		err = readSlabs(ctx, src, o, func(_ slab, buf voxel.Buffer) error {
			n, err := w.Write(buf.Bytes(binary.LittleEndian))
			written += int64(n)
			return err
		})
	case Snappy:
		sw := snappy.NewBufferedWriter(w)
		err = readSlabs(ctx, src, o, func(_ slab, buf voxel.Buffer) error {
			n, err := sw.Write(buf.Bytes(binary.LittleEndian))
			written += int64(n)
			return err
		})
		if cerr := sw.Close(); err == nil {
			err = cerr
		}
	case TIFF:
		written, err = writeTIFF(ctx, src, []io.Writer{w}, o)
	default:
		err = fmt.Errorf("unknown export format %d", uint8(o.Format))
	}
	if err != nil {
		return written, err
	}
	tlog.Infof("Exported %s of %q at %s as %s %s", o.Size, src.Name(), o.Origin, o.Kind, o.Format)
	return written, nil
}

// Channels writes a box of src as one multi-page TIFF per channel, channel c to
// ws[c].  Pages are z slices.  It returns the number of bytes of voxel data
// exported, before any compression.
func Channels(ctx context.Context, src volume.Source, ws []io.Writer, opt Options) (int64, error) {
	o := opt.withDefaults(src)
	o.Format = TIFF
	if err := o.check(); err != nil {
		return 0, err
	}
	if len(ws) != src.Channels() {
		return 0, fmt.Errorf("%w: %d outputs for %d channels of %q", ErrChannelWriters, len(ws), src.Channels(), src.Name())
	}
	tlog := voxel.NewTimeLog()
	written, err := writeTIFF(ctx, src, ws, o)
	if err != nil {
		return written, err
	}
	tlog.Infof("Exported %s of %q at %s as %d %s TIFF files", o.Size, src.Name(), o.Origin, len(ws), o.Kind)
	return written, nil
}

func writeTIFF(ctx context.Context, src volume.Source, ws []io.Writer, o Options) (int64, error) {
	channels := src.Channels()
	encs := make([]*tiff.Encoder, channels)
	for c := range encs {
		topt := &tiff.Options{
			Compression: o.Compression,
			VoxelSize:   src.VoxelSize(),
		}
		if r, err := src.ReadValueRange(o.Kind, c); err == nil {
			topt.SampleRange = &[2]float64{r.Float64At(0), r.Float64At(1)}
		}
		encs[c] = tiff.NewEncoder(ws[c], topt)
	}
	width, height := int(o.Size[0]), int(o.Size[1])
	planeLen := width * height
	var written int64
	err := readSlabs(ctx, src, o, func(s slab, buf voxel.Buffer) error {
		for z := 0; z < int(s.depth); z++ {
			plane := buf.Slice(z*planeLen*channels, (z+1)*planeLen*channels)
			for c, enc := range encs {
				page, err := channelPlane(plane, channels, c)
				if err != nil {
					return err
				}
				if err := enc.WritePage(tiff.Page{Width: width, Height: height, Data: page}); err != nil {
					return err
				}
				written += int64(page.Len() * o.Kind.Bytes())
			}
		}
		return nil
	})
	for _, enc := range encs {
		if cerr := enc.Close(); err == nil {
			err = cerr
		}
	}
	return written, err
}

// channelPlane extracts channel c from an interleaved buffer.
func channelPlane(b voxel.Buffer, channels, c int) (voxel.Buffer, error) {
	if channels == 1 {
		return b, nil
	}
	switch v := b.(type) {
	case voxel.Values[uint8]:
		return deinterleave(v, channels, c), nil
	case voxel.Values[int8]:
		return deinterleave(v, channels, c), nil
	case voxel.Values[uint16]:
		return deinterleave(v, channels, c), nil
	case voxel.Values[int16]:
		return deinterleave(v, channels, c), nil
	case voxel.Values[uint32]:
		return deinterleave(v, channels, c), nil
	case voxel.Values[int32]:
		return deinterleave(v, channels, c), nil
	case voxel.Values[uint64]:
		return deinterleave(v, channels, c), nil
	case voxel.Values[int64]:
		return deinterleave(v, channels, c), nil
	case voxel.Values[float32]:
		return deinterleave(v, channels, c), nil
	case voxel.Values[float64]:
		return deinterleave(v, channels, c), nil
	}
	return nil, fmt.Errorf("%w: buffer of type %T", voxel.ErrUnknownKind, b)
}

func deinterleave[T voxel.Element](v voxel.Values[T], channels, c int) voxel.Values[T] {
	out := make(voxel.Values[T], len(v)/channels)
	for i := range out {
		out[i] = v[i*channels+c]
	}
	return out
}

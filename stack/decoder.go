package stack

import (
	"fmt"

	"github.com/janelia-flyem/vstack/cache"
	"github.com/janelia-flyem/vstack/tiff"
	"github.com/janelia-flyem/vstack/volume"
	"github.com/janelia-flyem/vstack/voxel"
)

// decoder is the per-kind decode strategy of a Source.  Callers hold the source's
// mutex for every method except foldRange, which only runs during parse.
type decoder interface {
	readSubRegion(kind voxel.PixelKind, origin, size voxel.Point3d) (voxel.Buffer, error)
	valueRange(kind voxel.PixelKind, channel int) (voxel.Buffer, error)
	foldRange(channel int, f *tiff.Frame)
	finishRanges() error
	cacheStats() cache.Stats
	cachedPlanes() []any
	clear()
}

func newDecoder(s *Source, kind voxel.PixelKind, channels, slots int) (decoder, error) {
	switch kind {
	case voxel.T_uint8:
		return newTypedDecoder[uint8](s, channels, slots), nil
	case voxel.T_int8:
		return newTypedDecoder[int8](s, channels, slots), nil
	case voxel.T_uint16:
		return newTypedDecoder[uint16](s, channels, slots), nil
	case voxel.T_int16:
		return newTypedDecoder[int16](s, channels, slots), nil
	case voxel.T_uint32:
		return newTypedDecoder[uint32](s, channels, slots), nil
	case voxel.T_int32:
		return newTypedDecoder[int32](s, channels, slots), nil
	case voxel.T_uint64:
		return newTypedDecoder[uint64](s, channels, slots), nil
	case voxel.T_int64:
		return newTypedDecoder[int64](s, channels, slots), nil
	case voxel.T_float32:
		return newTypedDecoder[float32](s, channels, slots), nil
	case voxel.T_float64:
		return newTypedDecoder[float64](s, channels, slots), nil
	}
	return nil, fmt.Errorf("%w: %d", voxel.ErrUnknownKind, uint8(kind))
}

// typedDecoder decodes frames holding values of type T and caches interleaved z
// slices keyed by z.
type typedDecoder[T voxel.Element] struct {
	src    *Source
	slices *cache.SlotCache[int32, []T]
	ranges [][2]T
	seen   []bool
}

func newTypedDecoder[T voxel.Element](s *Source, channels, slots int) *typedDecoder[T] {
	return &typedDecoder[T]{
		src:    s,
		slices: cache.New[int32, []T](slots),
		ranges: make([][2]T, channels),
		seen:   make([]bool, channels),
	}
}

func (d *typedDecoder[T]) readSubRegion(kind voxel.PixelKind, origin, size voxel.Point3d) (voxel.Buffer, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("%w: %d", voxel.ErrUnknownKind, uint8(kind))
	}
	vals, err := volume.ReadRegion(d.src.res, d.src.channels, origin, size, d.slice)
	if err != nil {
		return nil, err
	}
	return voxel.ToKind(vals, kind)
}

// slice returns the interleaved plane at z, decoding and caching it on a miss.
func (d *typedDecoder[T]) slice(z int32) ([]T, error) {
	if plane, found := d.slices.Lookup(z); found {
		return plane, nil
	}
	tlog := voxel.NewTimeLog()
	s := d.src
	row := s.dir[z]
	width, height := s.ref.Width, s.ref.Height
	nch := s.channels

	var plane []T
	var channelPlane []T
	if nch == 1 {
		plane = make([]T, width*height)
		channelPlane = plane
	} else {
		plane = make([]T, width*height*nch)
		channelPlane = make([]T, width*height)
	}
	for c, frame := range row {
		r, err := s.reader(frame.Path)
		if err != nil {
			if s.opts.failOnStripError {
				return nil, err
			}
			s.stripFailed(frame, -1, err)
			continue
		}
		if nch > 1 {
			clear(channelPlane)
		}
		err = tiff.DecodeFrame(frame, r, channelPlane, func(strip int, err error) error {
			if s.opts.failOnStripError {
				return err
			}
			s.stripFailed(frame, strip, err)
			return nil
		})
		if err != nil {
			return nil, err
		}
		if nch > 1 {
			for i, v := range channelPlane {
				plane[i*nch+c] = v
			}
		}
	}
	d.slices.Insert(z, plane)
	tlog.Debugf("decoded slice %d of %q", z, s.name)
	return plane, nil
}

func (d *typedDecoder[T]) valueRange(kind voxel.PixelKind, channel int) (voxel.Buffer, error) {
	r := d.ranges[channel]
	return voxel.ToKind([]T{r[0], r[1]}, kind)
}

func (d *typedDecoder[T]) foldRange(channel int, f *tiff.Frame) {
	if !f.HasSampleRange {
		return
	}
	lo, hi := T(f.MinSample), T(f.MaxSample)
	if !d.seen[channel] {
		d.ranges[channel] = [2]T{lo, hi}
		d.seen[channel] = true
		return
	}
	d.ranges[channel][0] = min(d.ranges[channel][0], lo)
	d.ranges[channel][1] = max(d.ranges[channel][1], hi)
}

// finishRanges gives channels without sample range tags the bounds of the kind.
func (d *typedDecoder[T]) finishRanges() error {
	lo, hi, err := voxel.KindBounds[T](voxel.KindOf[T]())
	if err != nil {
		return err
	}
	for c := range d.ranges {
		if !d.seen[c] {
			d.ranges[c] = [2]T{lo, hi}
		}
	}
	return nil
}

func (d *typedDecoder[T]) cacheStats() cache.Stats { return d.slices.Stats() }

// cachedPlanes returns the cached slices.  Cached slices are never written after
// insertion, so they may be inspected without holding the source's lock.
func (d *typedDecoder[T]) cachedPlanes() []any {
	planes := make([]any, 0, d.slices.Len())
	d.slices.Values(func(_ int, plane []T) {
		planes = append(planes, plane)
	})
	return planes
}

func (d *typedDecoder[T]) clear() { d.slices.Clear() }

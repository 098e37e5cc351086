/*
Package volume defines the Source interface for typed, region-based access to
multi-channel 3d voxel data, the shared sub-region read algorithm, and read-only
views that crop or resample another Source.

A Source stores values in one native pixel kind but every read names the pixel
kind the caller wants.  Values are converted with the unchecked conversion of
voxel.Convert: no clamping or saturation is applied.
*/
package volume

import (
	"fmt"

	"github.com/janelia-flyem/vstack/voxel"
)

// Source is a multi-channel 3d volume that can be read by region.  Geometry is
// immutable once the source is constructed.
type Source interface {
	// Resolution returns the number of voxels along x, y and z.
	Resolution() voxel.Point3d

	// Channels returns the number of values per voxel.
	Channels() int

	// VoxelSize returns the physical size of one voxel.
	VoxelSize() voxel.Vector3f

	Name() string

	// SetName renames the source.  An empty name is ignored.
	SetName(string)

	BoundingBox() voxel.BoundingBox

	// OnDisk returns true if the values are read from files rather than memory.
	OnDisk() bool

	// NativeKind returns the pixel kind values are stored in.
	NativeKind() voxel.PixelKind

	// ReadSubRegion returns the values of the box at origin with the given size as a
	// buffer of the requested kind holding exactly size.x*size.y*size.z*Channels()
	// values, interleaved by channel, x fastest then y then z.  Parts of the box
	// outside the source are zero.
	ReadSubRegion(kind voxel.PixelKind, origin, size voxel.Point3d) (voxel.Buffer, error)

	// ReadValueRange returns a 2-value buffer of the requested kind with the minimum
	// and maximum values of a channel.
	ReadValueRange(kind voxel.PixelKind, channel int) (voxel.Buffer, error)
}

// ReadSubRegionAs reads a region as values of type T.
func ReadSubRegionAs[T voxel.Element](src Source, origin, size voxel.Point3d) ([]T, error) {
	buf, err := src.ReadSubRegion(voxel.KindOf[T](), origin, size)
	if err != nil {
		return nil, err
	}
	return voxel.As[T](buf)
}

// ReadValueRangeAs returns the minimum and maximum of a channel as values of type T.
func ReadValueRangeAs[T voxel.Element](src Source, channel int) (lo, hi T, err error) {
	buf, err := src.ReadValueRange(voxel.KindOf[T](), channel)
	if err != nil {
		return
	}
	vals, err := voxel.As[T](buf)
	if err != nil {
		return
	}
	if len(vals) != 2 {
		err = fmt.Errorf("value range of %q has %d values", src.Name(), len(vals))
		return
	}
	return vals[0], vals[1], nil
}

// ReadVoxel returns the channel values of one voxel.
func ReadVoxel(src Source, kind voxel.PixelKind, p voxel.Point3d) (voxel.Buffer, error) {
	return src.ReadSubRegion(kind, p, voxel.Point3d{1, 1, 1})
}

// ReadLine returns the full x line at (y, z).
func ReadLine(src Source, kind voxel.PixelKind, y, z int32) (voxel.Buffer, error) {
	res := src.Resolution()
	return src.ReadSubRegion(kind, voxel.Point3d{0, y, z}, voxel.Point3d{res[0], 1, 1})
}

// ReadSlice returns the full xy plane at z.
func ReadSlice(src Source, kind voxel.PixelKind, z int32) (voxel.Buffer, error) {
	res := src.Resolution()
	return src.ReadSubRegion(kind, voxel.Point3d{0, 0, z}, voxel.Point3d{res[0], res[1], 1})
}

// CheckChannel returns voxel.ErrChannelRange if channel is not a channel of src.
func CheckChannel(src Source, channel int) error {
	if channel < 0 || channel >= src.Channels() {
		return fmt.Errorf("%w: channel %d of %d in %q", voxel.ErrChannelRange, channel, src.Channels(), src.Name())
	}
	return nil
}

// Readier is implemented by sources whose geometry is known only once loading
// finishes, such as a stack still being parsed.
type Readier interface {
	Ready() bool
}

// CheckReady returns voxel.ErrNotReady if src is a Readier that is not ready.
func CheckReady(src Source) error {
	if r, ok := src.(Readier); ok && !r.Ready() {
		return fmt.Errorf("%w: %q", voxel.ErrNotReady, src.Name())
	}
	return nil
}

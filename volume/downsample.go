package volume

import (
	"fmt"
	"math"

	"github.com/janelia-flyem/vstack/voxel"
)

// Resampler computes one voxel of a resampled view.  scale is the ratio of the
// parent's resolution to the view's resolution along each axis.  The returned
// buffer holds one value per parent channel in the requested kind.
type Resampler interface {
	Sample(kind voxel.PixelKind, index voxel.Point3d, parent Source, scale voxel.Vector3f) (voxel.Buffer, error)
}

// NullResampler returns zeros for every voxel.
type NullResampler struct{}

func (NullResampler) Sample(kind voxel.PixelKind, index voxel.Point3d, parent Source, scale voxel.Vector3f) (voxel.Buffer, error) {
	return voxel.NewBuffer(kind, parent.Channels())
}

// NearestNeighbor returns the parent voxel at floor(index*scale).
type NearestNeighbor struct{}

func (NearestNeighbor) Sample(kind voxel.PixelKind, index voxel.Point3d, parent Source, scale voxel.Vector3f) (voxel.Buffer, error) {
	var pos voxel.Point3d
	for i := 0; i < 3; i++ {
		pos[i] = int32(math.Floor(float64(index[i]) * float64(scale[i])))
	}
	if pos.AnyNegative() {
		return voxel.NewBuffer(kind, parent.Channels())
	}
	return ReadVoxel(parent, kind, pos)
}

// Downsampled is a read-only view of a parent Source at another resolution.  Each
// voxel is computed on demand by a Resampler.
type Downsampled struct {
	parent    Source
	target    voxel.Point3d
	scale     voxel.Vector3f
	voxelSize voxel.Vector3f
	resampler Resampler
	name      string
}

// NewDownsampled returns a view of parent at the target resolution.  A nil
// resampler samples the nearest neighbor.  The parent must be ready, since its
// resolution and voxel size are fixed into the view.
func NewDownsampled(parent Source, target voxel.Point3d, resampler Resampler) (*Downsampled, error) {
	if err := CheckReady(parent); err != nil {
		return nil, err
	}
	if target[0] < 1 || target[1] < 1 || target[2] < 1 {
		return nil, fmt.Errorf("%w: target resolution %s", voxel.ErrBadRegion, target)
	}
	if resampler == nil {
		resampler = NearestNeighbor{}
	}
	res := parent.Resolution()
	var scale voxel.Vector3f
	for i := 0; i < 3; i++ {
		scale[i] = float32(res[i]) / float32(target[i])
	}
	return &Downsampled{
		parent:    parent,
		target:    target,
		scale:     scale,
		voxelSize: parent.VoxelSize().Mult(scale),
		resampler: resampler,
		name:      parent.Name() + "_downsampled",
	}, nil
}

// Scale returns the parent to view resolution ratio along each axis.
func (d *Downsampled) Scale() voxel.Vector3f { return d.scale }

func (d *Downsampled) Resolution() voxel.Point3d { return d.target }

func (d *Downsampled) Channels() int { return d.parent.Channels() }

func (d *Downsampled) VoxelSize() voxel.Vector3f { return d.voxelSize }

func (d *Downsampled) Name() string { return d.name }

func (d *Downsampled) SetName(name string) {
	if name != "" {
		d.name = name
	}
}

// BoundingBox is the parent's: resampling does not change the physical extent.
func (d *Downsampled) BoundingBox() voxel.BoundingBox { return d.parent.BoundingBox() }

func (d *Downsampled) OnDisk() bool { return false }

func (d *Downsampled) NativeKind() voxel.PixelKind { return d.parent.NativeKind() }

func (d *Downsampled) ReadSubRegion(kind voxel.PixelKind, origin, size voxel.Point3d) (voxel.Buffer, error) {
	if err := CheckRegion(origin, size); err != nil {
		return nil, err
	}
	nch := d.Channels()
	result, err := voxel.NewBuffer(kind, int(size.Prod())*nch)
	if err != nil {
		return nil, err
	}
	clipped, inside := clipRegion(d.target, origin, size)
	if !inside {
		return result, nil
	}
	for z := int32(0); z < clipped[2]; z++ {
		for y := int32(0); y < clipped[1]; y++ {
			for x := int32(0); x < clipped[0]; x++ {
				index := origin.Add(voxel.Point3d{x, y, z})
				sample, err := d.resampler.Sample(kind, index, d.parent, d.scale)
				if err != nil {
					return nil, fmt.Errorf("resampling %q at %s: %w", d.name, index, err)
				}
				if sample.Len() != nch {
					return nil, fmt.Errorf("resampler returned %d values at %s, expected %d", sample.Len(), index, nch)
				}
				off := ((int(z)*int(size[1])+int(y))*int(size[0]) + int(x)) * nch
				if _, err := result.CopyFrom(off, sample); err != nil {
					return nil, err
				}
			}
		}
	}
	return result, nil
}

// ReadValueRange returns the parent's range.
func (d *Downsampled) ReadValueRange(kind voxel.PixelKind, channel int) (voxel.Buffer, error) {
	return d.parent.ReadValueRange(kind, channel)
}

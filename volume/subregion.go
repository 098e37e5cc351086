package volume

import (
	"fmt"

	"github.com/janelia-flyem/vstack/voxel"
)

// SubRegion is a read-only view of a box within a parent Source.  Coordinates in
// the view are relative to the box origin.
type SubRegion struct {
	parent Source
	origin voxel.Point3d
	size   voxel.Point3d
	name   string
}

// NewSubRegion returns a view of the box (origin, size), which must lie inside the
// parent.  The parent must be ready.
func NewSubRegion(parent Source, origin, size voxel.Point3d) (*SubRegion, error) {
	if err := CheckReady(parent); err != nil {
		return nil, err
	}
	if err := CheckRegion(origin, size); err != nil {
		return nil, err
	}
	res := parent.Resolution()
	for i := 0; i < 3; i++ {
		if int64(origin[i])+int64(size[i]) > int64(res[i]) {
			return nil, fmt.Errorf("%w: box at %s of size %s exceeds %q resolution %s",
				voxel.ErrBadRegion, origin, size, parent.Name(), res)
		}
	}
	return &SubRegion{
		parent: parent,
		origin: origin,
		size:   size,
		name:   parent.Name() + "_subregion",
	}, nil
}

// Parent returns the viewed source.
func (s *SubRegion) Parent() Source { return s.parent }

// Origin returns the position of the view's first voxel in the parent.
func (s *SubRegion) Origin() voxel.Point3d { return s.origin }

func (s *SubRegion) Resolution() voxel.Point3d { return s.size }

func (s *SubRegion) Channels() int { return s.parent.Channels() }

func (s *SubRegion) VoxelSize() voxel.Vector3f { return s.parent.VoxelSize() }

func (s *SubRegion) Name() string { return s.name }

func (s *SubRegion) SetName(name string) {
	if name != "" {
		s.name = name
	}
}

// BoundingBox spans the view's voxels, offset from the parent's minimum corner by
// origin*voxelSize.
func (s *SubRegion) BoundingBox() voxel.BoundingBox {
	vs := s.VoxelSize()
	corner := s.parent.BoundingBox().Min.Add(vs.Scaled(s.origin))
	return voxel.BoundingBox{Min: corner, Max: corner.Add(vs.Scaled(s.size))}
}

func (s *SubRegion) OnDisk() bool { return false }

func (s *SubRegion) NativeKind() voxel.PixelKind { return s.parent.NativeKind() }

// ReadSubRegion clips the request to the view, reads the clipped box from the parent
// and pads the result with zeros.
func (s *SubRegion) ReadSubRegion(kind voxel.PixelKind, origin, size voxel.Point3d) (voxel.Buffer, error) {
	if err := CheckRegion(origin, size); err != nil {
		return nil, err
	}
	clipped, inside := clipRegion(s.size, origin, size)
	if !inside || clipped.Prod() == 0 {
		return voxel.NewBuffer(kind, int(size.Prod())*s.Channels())
	}
	inner, err := s.parent.ReadSubRegion(kind, s.origin.Add(origin), clipped)
	if err != nil {
		return nil, err
	}
	if clipped == size {
		return inner, nil
	}
	planeLen := int(clipped[0]) * int(clipped[1]) * s.Channels()
	return ReadRegionBuffer(kind, clipped, s.Channels(), voxel.Point3d{}, size, func(z int32) (voxel.Buffer, error) {
		return inner.Slice(int(z)*planeLen, int(z+1)*planeLen), nil
	})
}

func (s *SubRegion) ReadValueRange(kind voxel.PixelKind, channel int) (voxel.Buffer, error) {
	return s.parent.ReadValueRange(kind, channel)
}

package volume

import (
	"fmt"

	"github.com/janelia-flyem/vstack/voxel"
)

// CheckRegion returns voxel.ErrBadRegion if any origin or size component is negative.
func CheckRegion(origin, size voxel.Point3d) error {
	if origin.AnyNegative() || size.AnyNegative() {
		return fmt.Errorf("%w: origin %s, size %s", voxel.ErrBadRegion, origin, size)
	}
	return nil
}

// ReadRegion copies the part of the box (origin, size) that lies inside a volume of
// resolution res into a zeroed result of size.x*size.y*size.z*channels values.
// slice returns the full interleaved xy plane at z, holding res.x*res.y*channels
// values.  slice is only called for planes that intersect the box.
func ReadRegion[T voxel.Element](res voxel.Point3d, channels int, origin, size voxel.Point3d,
	slice func(z int32) ([]T, error)) ([]T, error) {

	if err := CheckRegion(origin, size); err != nil {
		return nil, err
	}
	nch := int64(channels)
	result := make([]T, size.Prod()*nch)
	if len(result) == 0 {
		return result, nil
	}
	if origin[0] >= res[0] || origin[1] >= res[1] || origin[2] >= res[2] {
		return result, nil
	}

	// Intersecting ranges: [origin, min(origin+size, res)) along each axis.
	zEnd := min(int64(origin[2])+int64(size[2]), int64(res[2]))
	yEnd := min(int64(origin[1])+int64(size[1]), int64(res[1]))
	xEnd := min(int64(origin[0])+int64(size[0]), int64(res[0]))
	runLen := (xEnd - int64(origin[0])) * nch

	srcLine := int64(res[0]) * nch
	srcPlane := int64(res[1]) * srcLine
	dstLine := int64(size[0]) * nch
	dstPlane := int64(size[1]) * dstLine

	for z := int64(origin[2]); z < zEnd; z++ {
		plane, err := slice(int32(z))
		if err != nil {
			return nil, err
		}
		if int64(len(plane)) < srcPlane {
			return nil, fmt.Errorf("slice %d holds %d values, expected %d", z, len(plane), srcPlane)
		}
		dstZ := (z - int64(origin[2])) * dstPlane
		for y := int64(origin[1]); y < yEnd; y++ {
			src := y*srcLine + int64(origin[0])*nch
			dst := dstZ + (y-int64(origin[1]))*dstLine
			copy(result[dst:dst+runLen], plane[src:src+runLen])
		}
	}
	return result, nil
}

// ReadRegionBuffer is ReadRegion for a pixel kind chosen at run time.  slice must
// return buffers of the requested kind.
func ReadRegionBuffer(kind voxel.PixelKind, res voxel.Point3d, channels int, origin, size voxel.Point3d,
	slice func(z int32) (voxel.Buffer, error)) (voxel.Buffer, error) {

	switch kind {
	case voxel.T_uint8:
		return readRegionBuffer[uint8](res, channels, origin, size, slice)
	case voxel.T_int8:
		return readRegionBuffer[int8](res, channels, origin, size, slice)
	case voxel.T_uint16:
		return readRegionBuffer[uint16](res, channels, origin, size, slice)
	case voxel.T_int16:
		return readRegionBuffer[int16](res, channels, origin, size, slice)
	case voxel.T_uint32:
		return readRegionBuffer[uint32](res, channels, origin, size, slice)
	case voxel.T_int32:
		return readRegionBuffer[int32](res, channels, origin, size, slice)
	case voxel.T_uint64:
		return readRegionBuffer[uint64](res, channels, origin, size, slice)
	case voxel.T_int64:
		return readRegionBuffer[int64](res, channels, origin, size, slice)
	case voxel.T_float32:
		return readRegionBuffer[float32](res, channels, origin, size, slice)
	case voxel.T_float64:
		return readRegionBuffer[float64](res, channels, origin, size, slice)
	}
	return nil, fmt.Errorf("%w: %d", voxel.ErrUnknownKind, uint8(kind))
}

func readRegionBuffer[T voxel.Element](res voxel.Point3d, channels int, origin, size voxel.Point3d,
	slice func(z int32) (voxel.Buffer, error)) (voxel.Buffer, error) {

	vals, err := ReadRegion(res, channels, origin, size, func(z int32) ([]T, error) {
		buf, err := slice(z)
		if err != nil {
			return nil, err
		}
		return voxel.As[T](buf)
	})
	if err != nil {
		return nil, err
	}
	return voxel.Values[T](vals), nil
}

// clipRegion returns the part of size that lies inside res starting at origin.
// ok is false if the box starts outside res.
func clipRegion(res, origin, size voxel.Point3d) (clipped voxel.Point3d, ok bool) {
	for i := 0; i < 3; i++ {
		if origin[i] >= res[i] {
			return voxel.Point3d{}, false
		}
		clipped[i] = int32(min(int64(origin[i])+int64(size[i]), int64(res[i])) - int64(origin[i]))
	}
	return clipped, true
}

package voxel

import (
	"fmt"
	"strconv"
	"strings"
)

// Point3d is an ordered list of three 32-bit signed integers (x, y, z) used for
// voxel coordinates, region sizes and resolutions.
type Point3d [3]int32

// Prod returns the product of the point elements.
func (p Point3d) Prod() int64 {
	return int64(p[0]) * int64(p[1]) * int64(p[2])
}

func (p Point3d) Add(x Point3d) Point3d {
	return Point3d{p[0] + x[0], p[1] + x[1], p[2] + x[2]}
}

func (p Point3d) Sub(x Point3d) Point3d {
	return Point3d{p[0] - x[0], p[1] - x[1], p[2] - x[2]}
}

// Min returns a point where each element is the minimum of the two points' elements.
func (p Point3d) Min(x Point3d) Point3d {
	return Point3d{min(p[0], x[0]), min(p[1], x[1]), min(p[2], x[2])}
}

// AnyNegative returns true if some element is below zero.
func (p Point3d) AnyNegative() bool {
	return p[0] < 0 || p[1] < 0 || p[2] < 0
}

func (p Point3d) String() string {
	return fmt.Sprintf("(%d,%d,%d)", p[0], p[1], p[2])
}

// StringToPoint3d parses a string of format "%d<sep>%d<sep>%d" into a Point3d.
func StringToPoint3d(str, separator string) (Point3d, error) {
	elems := strings.Split(str, separator)
	if len(elems) != 3 {
		return Point3d{}, fmt.Errorf("can't convert %q into a 3d point", str)
	}
	var p Point3d
	for i, elem := range elems {
		n, err := strconv.ParseInt(strings.TrimSpace(elem), 10, 32)
		if err != nil {
			return Point3d{}, fmt.Errorf("bad element %d in %q: %w", i, str, err)
		}
		p[i] = int32(n)
	}
	return p, nil
}

// Vector3f is a 3d vector of 32-bit floats, used for physical voxel sizes and
// bounding boxes.
type Vector3f [3]float32

func (v Vector3f) Add(x Vector3f) Vector3f {
	return Vector3f{v[0] + x[0], v[1] + x[1], v[2] + x[2]}
}

// Mult returns the element-wise product.
func (v Vector3f) Mult(x Vector3f) Vector3f {
	return Vector3f{v[0] * x[0], v[1] * x[1], v[2] * x[2]}
}

// Scaled returns the vector with each element multiplied by a point element.
func (v Vector3f) Scaled(p Point3d) Vector3f {
	return Vector3f{v[0] * float32(p[0]), v[1] * float32(p[1]), v[2] * float32(p[2])}
}

func (v Vector3f) String() string {
	return fmt.Sprintf("(%g,%g,%g)", v[0], v[1], v[2])
}

func StringToVector3f(str, separator string) (Vector3f, error) {
	elems := strings.Split(str, separator)
	if len(elems) != 3 {
		return Vector3f{}, fmt.Errorf("can't convert string %q (length %d) to Vector3f", str, len(elems))
	}
	var v Vector3f
	for i, elem := range elems {
		f, err := strconv.ParseFloat(strings.TrimSpace(elem), 32)
		if err != nil {
			return Vector3f{}, err
		}
		v[i] = float32(f)
	}
	return v, nil
}

// BoundingBox is an axis-aligned box in physical space.
type BoundingBox struct {
	Min, Max Vector3f
}

// NewBoundingBox returns the box spanning a volume of the given resolution and
// voxel size with its minimum corner at the origin.
func NewBoundingBox(res Point3d, voxelSize Vector3f) BoundingBox {
	return BoundingBox{Max: voxelSize.Scaled(res)}
}

// Offset returns the box translated by d.
func (b BoundingBox) Offset(d Vector3f) BoundingBox {
	return BoundingBox{Min: b.Min.Add(d), Max: b.Max.Add(d)}
}

func (b BoundingBox) String() string {
	return fmt.Sprintf("%s-%s", b.Min, b.Max)
}

package volume

import (
	"errors"
	"reflect"
	"testing"

	"github.com/janelia-flyem/vstack/voxel"
)

// makeCube returns a source whose voxel (x,y,z) channel c holds
// ((z*res.y + y)*res.x + x)*channels + c + 1.
func makeCube(t *testing.T, res voxel.Point3d, channels int) *Memory[uint16] {
	data := make([]uint16, res.Prod()*int64(channels))
	for i := range data {
		data[i] = uint16(i + 1)
	}
	m, err := NewMemory("cube", res, channels, data)
	if err != nil {
		t.Fatalf("can't create memory source: %v\n", err)
	}
	return m
}

func TestPartialOverlap(t *testing.T) {
	src := makeCube(t, voxel.Point3d{4, 4, 4}, 1)
	got, err := ReadSubRegionAs[uint16](src, voxel.Point3d{2, 2, 2}, voxel.Point3d{4, 4, 4})
	if err != nil {
		t.Fatalf("read failed: %v\n", err)
	}
	if len(got) != 64 {
		t.Fatalf("expected 64 values, got %d\n", len(got))
	}
	for z := 0; z < 4; z++ {
		for y := 0; y < 4; y++ {
			for x := 0; x < 4; x++ {
				v := got[(z*4+y)*4+x]
				var expected uint16
				if x < 2 && y < 2 && z < 2 {
					expected = uint16(((z+2)*4+(y+2))*4 + (x + 2) + 1)
				}
				if v != expected {
					t.Fatalf("voxel (%d,%d,%d): expected %d, got %d\n", x, y, z, expected, v)
				}
			}
		}
	}
}

func TestFullyOutside(t *testing.T) {
	src := makeCube(t, voxel.Point3d{5, 3, 2}, 2)
	for _, origin := range []voxel.Point3d{{5, 0, 0}, {0, 3, 0}, {0, 0, 2}, {100, 100, 100}} {
		buf, err := src.ReadSubRegion(voxel.T_float32, origin, voxel.Point3d{3, 2, 2})
		if err != nil {
			t.Fatalf("origin %s: unexpected error %v\n", origin, err)
		}
		if buf.Kind() != voxel.T_float32 || buf.Len() != 3*2*2*2 {
			t.Fatalf("origin %s: expected 24 float32 values, got %d %s\n", origin, buf.Len(), buf.Kind())
		}
		for i := 0; i < buf.Len(); i++ {
			if buf.Float64At(i) != 0 {
				t.Fatalf("origin %s: value %d not zero\n", origin, i)
			}
		}
	}
}

func TestFullExtentMatchesSlices(t *testing.T) {
	res := voxel.Point3d{6, 5, 4}
	src := makeCube(t, res, 3)
	full, err := ReadSubRegionAs[uint16](src, voxel.Point3d{}, res)
	if err != nil {
		t.Fatalf("full read failed: %v\n", err)
	}
	var concat []uint16
	for z := int32(0); z < res[2]; z++ {
		buf, err := ReadSlice(src, voxel.T_uint16, z)
		if err != nil {
			t.Fatalf("slice %d read failed: %v\n", z, err)
		}
		vals, _ := voxel.As[uint16](buf)
		concat = append(concat, vals...)
	}
	if !reflect.DeepEqual(full, concat) {
		t.Fatalf("full read differs from concatenated slices\n")
	}
	if !reflect.DeepEqual(full, src.data) {
		t.Fatalf("full read differs from stored data\n")
	}
}

func TestKindConversion(t *testing.T) {
	data := []uint16{0, 1, 65535, 40000, 7, 8, 9, 10}
	src, err := NewMemory("k", voxel.Point3d{2, 2, 2}, 1, data)
	if err != nil {
		t.Fatalf("can't create source: %v\n", err)
	}
	same, err := ReadSubRegionAs[uint16](src, voxel.Point3d{}, voxel.Point3d{2, 2, 2})
	if err != nil || !reflect.DeepEqual(same, data) {
		t.Fatalf("uint16 read not bit-identical: %v (%v)\n", same, err)
	}
	wide, err := ReadSubRegionAs[int32](src, voxel.Point3d{}, voxel.Point3d{2, 2, 2})
	if err != nil {
		t.Fatalf("int32 read failed: %v\n", err)
	}
	for i, v := range wide {
		if v != int32(data[i]) {
			t.Fatalf("value %d: expected %d, got %d\n", i, data[i], v)
		}
	}
	narrow, err := ReadSubRegionAs[int8](src, voxel.Point3d{}, voxel.Point3d{2, 2, 2})
	if err != nil {
		t.Fatalf("int8 read failed: %v\n", err)
	}
	if narrow[2] != -1 || narrow[3] != int8(64) {
		t.Fatalf("expected wrapped values -1 and 64, got %d and %d\n", narrow[2], narrow[3])
	}
}

func TestBadRegion(t *testing.T) {
	src := makeCube(t, voxel.Point3d{2, 2, 2}, 1)
	if _, err := src.ReadSubRegion(voxel.T_uint8, voxel.Point3d{-1, 0, 0}, voxel.Point3d{1, 1, 1}); !errors.Is(err, voxel.ErrBadRegion) {
		t.Fatalf("expected ErrBadRegion for negative origin, got %v\n", err)
	}
	if _, err := src.ReadSubRegion(voxel.T_uint8, voxel.Point3d{}, voxel.Point3d{1, -1, 1}); !errors.Is(err, voxel.ErrBadRegion) {
		t.Fatalf("expected ErrBadRegion for negative size, got %v\n", err)
	}
	if _, err := src.ReadSubRegion(voxel.T_unknown, voxel.Point3d{}, voxel.Point3d{1, 1, 1}); !errors.Is(err, voxel.ErrUnknownKind) {
		t.Fatalf("expected ErrUnknownKind, got %v\n", err)
	}
	buf, err := src.ReadSubRegion(voxel.T_uint8, voxel.Point3d{}, voxel.Point3d{0, 3, 3})
	if err != nil || buf.Len() != 0 {
		t.Fatalf("expected empty buffer for empty region, got %v (%v)\n", buf, err)
	}
}

func TestVoxelAndLine(t *testing.T) {
	src := makeCube(t, voxel.Point3d{3, 3, 3}, 2)
	buf, err := ReadVoxel(src, voxel.T_uint32, voxel.Point3d{1, 2, 0})
	if err != nil {
		t.Fatalf("voxel read failed: %v\n", err)
	}
	vals, _ := voxel.As[uint32](buf)
	if !reflect.DeepEqual(vals, []uint32{15, 16}) {
		t.Fatalf("expected [15 16], got %v\n", vals)
	}
	buf, err = ReadLine(src, voxel.T_uint16, 1, 1)
	if err != nil {
		t.Fatalf("line read failed: %v\n", err)
	}
	line, _ := voxel.As[uint16](buf)
	if !reflect.DeepEqual(line, []uint16{25, 26, 27, 28, 29, 30}) {
		t.Fatalf("unexpected line: %v\n", line)
	}
}

func TestValueRange(t *testing.T) {
	data := []int16{-5, 100, 3, 7, 12, -40, 0, 2}
	src, err := NewMemory("r", voxel.Point3d{2, 2, 1}, 2, data)
	if err != nil {
		t.Fatalf("can't create source: %v\n", err)
	}
	lo, hi, err := ReadValueRangeAs[int16](src, 0)
	if err != nil || lo != -5 || hi != 12 {
		t.Fatalf("channel 0: expected [-5,12], got [%d,%d] (%v)\n", lo, hi, err)
	}
	flo, fhi, err := ReadValueRangeAs[float64](src, 1)
	if err != nil || flo != -40 || fhi != 100 {
		t.Fatalf("channel 1: expected [-40,100], got [%g,%g] (%v)\n", flo, fhi, err)
	}
	if _, err := src.ReadValueRange(voxel.T_int16, 2); !errors.Is(err, voxel.ErrChannelRange) {
		t.Fatalf("expected ErrChannelRange, got %v\n", err)
	}
}

func TestSubRegion(t *testing.T) {
	parent := makeCube(t, voxel.Point3d{6, 6, 6}, 1)
	parent.SetVoxelSize(voxel.Vector3f{0.5, 0.5, 2})
	view, err := NewSubRegion(parent, voxel.Point3d{1, 2, 3}, voxel.Point3d{4, 3, 2})
	if err != nil {
		t.Fatalf("can't create view: %v\n", err)
	}
	if view.Resolution() != (voxel.Point3d{4, 3, 2}) || view.Channels() != 1 || view.OnDisk() {
		t.Fatalf("unexpected view geometry\n")
	}
	if view.Name() != "cube_subregion" {
		t.Fatalf("unexpected view name %q\n", view.Name())
	}
	view.SetName("")
	view.SetName("crop")
	if view.Name() != "crop" {
		t.Fatalf("expected rename to crop, got %q\n", view.Name())
	}
	bbox := view.BoundingBox()
	if bbox.Min != (voxel.Vector3f{0.5, 1, 6}) || bbox.Max != (voxel.Vector3f{2.5, 2.5, 10}) {
		t.Fatalf("unexpected bounding box %s\n", bbox)
	}

	// Whole view equals the parent's box.
	got, err := ReadSubRegionAs[uint16](view, voxel.Point3d{}, voxel.Point3d{4, 3, 2})
	if err != nil {
		t.Fatalf("view read failed: %v\n", err)
	}
	expected, _ := ReadSubRegionAs[uint16](parent, voxel.Point3d{1, 2, 3}, voxel.Point3d{4, 3, 2})
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("view read differs from parent box\n")
	}

	// Reads past the view's extent are zero even where the parent has data.
	got, err = ReadSubRegionAs[uint16](view, voxel.Point3d{3, 2, 1}, voxel.Point3d{2, 2, 2})
	if err != nil {
		t.Fatalf("view read failed: %v\n", err)
	}
	corner := uint16(((3+1)*6+(2+2))*6 + (1 + 3) + 1)
	if got[0] != corner {
		t.Fatalf("expected corner value %d, got %d\n", corner, got[0])
	}
	for i, v := range got[1:] {
		if v != 0 {
			t.Fatalf("value %d outside view is %d, expected 0\n", i+1, v)
		}
	}

	// Views of views.
	inner, err := NewSubRegion(view, voxel.Point3d{1, 1, 1}, voxel.Point3d{1, 1, 1})
	if err != nil {
		t.Fatalf("can't create nested view: %v\n", err)
	}
	one, err := ReadSubRegionAs[uint16](inner, voxel.Point3d{}, voxel.Point3d{1, 1, 1})
	if err != nil || one[0] != uint16(((3+1)*6+(2+1))*6+(1+1)+1) {
		t.Fatalf("nested view read %v (%v)\n", one, err)
	}

	if _, err := NewSubRegion(parent, voxel.Point3d{4, 0, 0}, voxel.Point3d{3, 1, 1}); !errors.Is(err, voxel.ErrBadRegion) {
		t.Fatalf("expected ErrBadRegion for box past parent, got %v\n", err)
	}
	lo, hi, err := ReadValueRangeAs[uint16](view, 0)
	if err != nil || lo != 1 || hi != 216 {
		t.Fatalf("expected parent range [1,216], got [%d,%d] (%v)\n", lo, hi, err)
	}
}

func TestDownsampled(t *testing.T) {
	parent := makeCube(t, voxel.Point3d{8, 4, 2}, 1)
	parent.SetVoxelSize(voxel.Vector3f{1, 1, 3})
	down, err := NewDownsampled(parent, voxel.Point3d{4, 2, 1}, nil)
	if err != nil {
		t.Fatalf("can't create downsampled view: %v\n", err)
	}
	if down.VoxelSize() != (voxel.Vector3f{2, 2, 6}) {
		t.Fatalf("unexpected voxel size %s\n", down.VoxelSize())
	}
	if down.BoundingBox() != parent.BoundingBox() {
		t.Fatalf("bounding box should be the parent's\n")
	}
	got, err := ReadSubRegionAs[uint16](down, voxel.Point3d{}, voxel.Point3d{5, 2, 1})
	if err != nil {
		t.Fatalf("downsampled read failed: %v\n", err)
	}
	expected := []uint16{
		1, 3, 5, 7, 0,
		17, 19, 21, 23, 0,
	}
	if !reflect.DeepEqual(got, expected) {
		t.Fatalf("expected %v, got %v\n", expected, got)
	}

	null, err := NewDownsampled(parent, voxel.Point3d{2, 2, 2}, NullResampler{})
	if err != nil {
		t.Fatalf("can't create null view: %v\n", err)
	}
	zeros, err := ReadSubRegionAs[uint16](null, voxel.Point3d{}, voxel.Point3d{2, 2, 2})
	if err != nil || !reflect.DeepEqual(zeros, make([]uint16, 8)) {
		t.Fatalf("null resampler produced %v (%v)\n", zeros, err)
	}
	if _, err := NewDownsampled(parent, voxel.Point3d{0, 1, 1}, nil); !errors.Is(err, voxel.ErrBadRegion) {
		t.Fatalf("expected ErrBadRegion for zero target, got %v\n", err)
	}
}

// loading is a source that reports it is still loading.
type loading struct {
	*Memory[uint16]
	ready bool
}

func (l loading) Ready() bool { return l.ready }

func TestViewsNeedReadyParent(t *testing.T) {
	cube := makeCube(t, voxel.Point3d{4, 4, 4}, 1)
	parent := loading{Memory: cube}
	if _, err := NewSubRegion(parent, voxel.Point3d{}, voxel.Point3d{2, 2, 2}); !errors.Is(err, voxel.ErrNotReady) {
		t.Fatalf("expected ErrNotReady for sub-region of a loading parent, got %v\n", err)
	}
	if _, err := NewDownsampled(parent, voxel.Point3d{2, 2, 2}, nil); !errors.Is(err, voxel.ErrNotReady) {
		t.Fatalf("expected ErrNotReady for downsampling a loading parent, got %v\n", err)
	}

	parent.ready = true
	view, err := NewSubRegion(parent, voxel.Point3d{}, voxel.Point3d{2, 2, 2})
	if err != nil {
		t.Fatalf("can't create view of a ready parent: %v\n", err)
	}
	down, err := NewDownsampled(view, voxel.Point3d{1, 1, 1}, nil)
	if err != nil {
		t.Fatalf("can't downsample a view: %v\n", err)
	}
	if down.VoxelSize() != (voxel.Vector3f{2, 2, 2}) {
		t.Errorf("expected voxel size (2,2,2), got %s\n", down.VoxelSize())
	}
}

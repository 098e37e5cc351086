package volume

import (
	"fmt"

	"github.com/janelia-flyem/vstack/voxel"
)

// Memory is a Source over values held in memory.
type Memory[T voxel.Element] struct {
	name      string
	res       voxel.Point3d
	channels  int
	voxelSize voxel.Vector3f
	data      []T
	ranges    [][2]T
}

// NewMemory returns an in-memory source.  data holds res.x*res.y*res.z*channels
// values interleaved by channel, x fastest.  The source keeps data without copying.
func NewMemory[T voxel.Element](name string, res voxel.Point3d, channels int, data []T) (*Memory[T], error) {
	if res.AnyNegative() || channels < 1 {
		return nil, fmt.Errorf("%w: resolution %s with %d channels", voxel.ErrBadRegion, res, channels)
	}
	if want := res.Prod() * int64(channels); int64(len(data)) != want {
		return nil, fmt.Errorf("memory source %q needs %d values, got %d", name, want, len(data))
	}
	m := &Memory[T]{
		name:      name,
		res:       res,
		channels:  channels,
		voxelSize: voxel.Vector3f{1, 1, 1},
		data:      data,
		ranges:    make([][2]T, channels),
	}
	for c := 0; c < channels; c++ {
		if len(data) == 0 {
			break
		}
		lo, hi := data[c], data[c]
		for i := c; i < len(data); i += channels {
			lo = min(lo, data[i])
			hi = max(hi, data[i])
		}
		m.ranges[c] = [2]T{lo, hi}
	}
	return m, nil
}

// SetVoxelSize sets the physical size of one voxel.
func (m *Memory[T]) SetVoxelSize(size voxel.Vector3f) { m.voxelSize = size }

func (m *Memory[T]) Resolution() voxel.Point3d { return m.res }

func (m *Memory[T]) Channels() int { return m.channels }

func (m *Memory[T]) VoxelSize() voxel.Vector3f { return m.voxelSize }

func (m *Memory[T]) Name() string { return m.name }

func (m *Memory[T]) SetName(name string) {
	if name != "" {
		m.name = name
	}
}

func (m *Memory[T]) BoundingBox() voxel.BoundingBox {
	return voxel.NewBoundingBox(m.res, m.voxelSize)
}

func (m *Memory[T]) OnDisk() bool { return false }

func (m *Memory[T]) NativeKind() voxel.PixelKind { return voxel.KindOf[T]() }

func (m *Memory[T]) ReadSubRegion(kind voxel.PixelKind, origin, size voxel.Point3d) (voxel.Buffer, error) {
	planeLen := int64(m.res[0]) * int64(m.res[1]) * int64(m.channels)
	vals, err := ReadRegion(m.res, m.channels, origin, size, func(z int32) ([]T, error) {
		return m.data[int64(z)*planeLen : int64(z+1)*planeLen], nil
	})
	if err != nil {
		return nil, err
	}
	return voxel.ToKind(vals, kind)
}

func (m *Memory[T]) ReadValueRange(kind voxel.PixelKind, channel int) (voxel.Buffer, error) {
	if err := CheckChannel(m, channel); err != nil {
		return nil, err
	}
	r := m.ranges[channel]
	return voxel.ToKind([]T{r[0], r[1]}, kind)
}

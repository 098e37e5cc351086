package stack

import (
	"github.com/janelia-flyem/vstack/cache"
	"github.com/janelia-flyem/vstack/voxel"
)

type options struct {
	slots            int
	failOnStripError bool
	name             string
	voxelSize        *voxel.Vector3f
}

func defaultOptions() options {
	return options{slots: cache.DefaultCapacity}
}

// Option configures a Source.
type Option func(*options)

// WithCacheSlots sets how many decoded z slices are kept.  Values below 1 keep one.
func WithCacheSlots(n int) Option {
	return func(o *options) { o.slots = n }
}

// FailOnStripError makes a read fail when a strip cannot be decoded.  By default a
// failed strip is logged, counted in Stats, and read as zeros.
func FailOnStripError(fail bool) Option {
	return func(o *options) { o.failOnStripError = fail }
}

// WithName sets the source name instead of deriving it from the first file.
func WithName(name string) Option {
	return func(o *options) { o.name = name }
}

// WithVoxelSize sets the physical voxel size instead of reading it from the
// reference frame.
func WithVoxelSize(size voxel.Vector3f) Option {
	return func(o *options) { o.voxelSize = &size }
}

/*
Package stack implements a volume.Source over a stack of multi-directory TIFF
files, one ordered file list per channel.  Every directory of every file is one z
slice of one channel; directories are counted file after file.

Open validates the file lists synchronously and returns a task.Task tracking the
parse of every frame, which runs in the background.  The source can be read once
the task ends without error.  Decoded z slices are kept in a bounded slot cache
shared by all readers.
*/
package stack

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/janelia-flyem/vstack/task"
	"github.com/janelia-flyem/vstack/tiff"
	"github.com/janelia-flyem/vstack/volume"
	"github.com/janelia-flyem/vstack/voxel"
)

// Directory holds the frame of each channel at each z, indexed [z][channel].
type Directory [][]*tiff.Frame

// Source reads a stack of TIFF files.  It is safe for concurrent use.
type Source struct {
	filenames [][]string
	opts      options
	ref       *tiff.Frame
	kind      voxel.PixelKind
	channels  int
	task      *task.Task

	// Set by the parse before ready is closed and never modified afterwards.
	dir       Directory
	res       voxel.Point3d
	voxelSize voxel.Vector3f
	ready     chan struct{}

	stripErrors atomic.Uint64

	// mu guards the name, the decoder cache and the open files.
	mu      sync.Mutex
	name    string
	decoder decoder
	files   map[string]*os.File
	closed  bool
}

var _ volume.Source = (*Source)(nil)

// Open validates a stack given as one ordered list of files per channel and starts
// parsing its frames in the background.  Every channel must have the same number of
// files, and files at the same position must hold the same number of directories.
// The first directory of the first file is the reference frame and must be of a
// supported format.  Errors found during validation are returned directly; errors
// found while parsing end the returned task and the source never becomes ready.
func Open(filenames [][]string, opts ...Option) (*Source, *task.Task, error) {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if len(filenames) == 0 {
		return nil, nil, &voxel.ConsistencyError{
			Reason: voxel.FileCountMismatch, Expected: 1, Got: 0, Detail: "no channels given",
		}
	}
	nfiles := len(filenames[0])
	for c, files := range filenames {
		if len(files) == 0 || len(files) != nfiles {
			return nil, nil, &voxel.ConsistencyError{
				Reason:   voxel.FileCountMismatch,
				Channel:  c,
				Expected: int64(max(nfiles, 1)),
				Got:      int64(len(files)),
			}
		}
	}

	counts := make([]int, nfiles)
	var units int
	for f := 0; f < nfiles; f++ {
		for c := range filenames {
			n, err := tiff.CountDirectories(filenames[c][f])
			if err != nil {
				return nil, nil, err
			}
			if c == 0 {
				counts[f] = n
			} else if n != counts[f] {
				return nil, nil, &voxel.ConsistencyError{
					Reason:   voxel.FrameCountMismatch,
					Channel:  c,
					File:     f,
					Expected: int64(counts[f]),
					Got:      int64(n),
				}
			}
			units += n
		}
	}

	ref, err := tiff.ReadFrame(filenames[0][0], 0)
	if err != nil {
		return nil, nil, err
	}
	if err := ref.CheckSupported(); err != nil {
		return nil, nil, err
	}
	kind, err := ref.Kind()
	if err != nil {
		return nil, nil, err
	}

	s := &Source{
		filenames: filenames,
		opts:      o,
		ref:       ref,
		kind:      kind,
		channels:  len(filenames),
		ready:     make(chan struct{}),
		files:     make(map[string]*os.File),
		name:      o.name,
	}
	if s.name == "" {
		base := filepath.Base(filenames[0][0])
		s.name = strings.TrimSuffix(base, filepath.Ext(base))
	}
	if s.decoder, err = newDecoder(s, kind, s.channels, o.slots); err != nil {
		return nil, nil, err
	}

	s.task = task.New()
	s.task.SetUnitCount(units)
	voxel.Infof("Opened stack %q: %d channel(s) of %d file(s), %d frame(s) of %s\n",
		s.name, s.channels, nfiles, units, kind)
	go s.parse(s.task, counts)
	return s, s.task, nil
}

// parse reads the frames of every file, checks them against the reference frame,
// and publishes the directory.  Nothing is published if any frame fails.
func (s *Source) parse(t task.Reporter, counts []int) {
	tlog := voxel.NewTimeLog()
	var depth int
	for _, n := range counts {
		depth += n
	}
	dir := make(Directory, 0, depth)
	for f, n := range counts {
		perChannel := make([][]*tiff.Frame, s.channels)
		for c := range s.filenames {
			frames, err := tiff.ReadFrames(s.filenames[c][f])
			if err != nil {
				s.fail(t, err)
				return
			}
			if len(frames) != n {
				s.fail(t, &voxel.ConsistencyError{
					Reason: voxel.FrameCountMismatch, Channel: c, File: f,
					Expected: int64(n), Got: int64(len(frames)),
				})
				return
			}
			perChannel[c] = frames
		}
		for d := 0; d < n; d++ {
			row := make([]*tiff.Frame, s.channels)
			for c := range row {
				frame := perChannel[c][d]
				if err := s.checkFrame(frame, c, f); err != nil {
					s.fail(t, err)
					return
				}
				s.decoder.foldRange(c, frame)
				row[c] = frame
				t.Advance(1)
			}
			dir = append(dir, row)
		}
		t.PushMessage(fmt.Sprintf("parsed file %d of %d", f+1, len(counts)))
	}
	if err := s.decoder.finishRanges(); err != nil {
		s.fail(t, err)
		return
	}

	s.dir = dir
	s.res = voxel.Point3d{int32(s.ref.Width), int32(s.ref.Height), int32(len(dir))}
	if s.opts.voxelSize != nil {
		s.voxelSize = *s.opts.voxelSize
	} else if vs, found := s.ref.VoxelSize(); found {
		s.voxelSize = vs
	} else {
		s.voxelSize = voxel.Vector3f{1, 1, 1}
	}
	close(s.ready)
	tlog.Infof("Parsed stack %q, resolution %s", s.Name(), s.res)
	t.End(nil)
}

func (s *Source) checkFrame(frame *tiff.Frame, channel, file int) error {
	if !frame.SameGeometry(s.ref) {
		return &voxel.ConsistencyError{
			Reason:   voxel.GeometryMismatch,
			Channel:  channel,
			File:     file,
			Expected: int64(s.ref.Width) * int64(s.ref.Height),
			Got:      int64(frame.Width) * int64(frame.Height),
			Detail: fmt.Sprintf("directory %d is %dx%d, %d bits; reference is %dx%d, %d bits",
				frame.Directory, frame.Width, frame.Height, frame.BitsPerSample,
				s.ref.Width, s.ref.Height, s.ref.BitsPerSample),
		}
	}
	if err := frame.CheckSupported(); err != nil {
		return err
	}
	if kind, _ := frame.Kind(); kind != s.kind {
		return &voxel.ConsistencyError{
			Reason:   voxel.GeometryMismatch,
			Channel:  channel,
			File:     file,
			Expected: int64(s.kind),
			Got:      int64(kind),
			Detail:   fmt.Sprintf("directory %d holds %s values, reference holds %s", frame.Directory, kind, s.kind),
		}
	}
	return nil
}

func (s *Source) fail(t task.Reporter, err error) {
	voxel.Errorf("Parse of stack %q failed: %v\n", s.Name(), err)
	t.PushMessage(err.Error())
	t.End(err)
}

// Task returns the task tracking the background parse.
func (s *Source) Task() *task.Task { return s.task }

// Ready returns true once every frame has been parsed without error.
func (s *Source) Ready() bool {
	select {
	case <-s.ready:
		return true
	default:
		return false
	}
}

func (s *Source) checkReady() error {
	if s.Ready() {
		return nil
	}
	if err := s.task.Err(); err != nil {
		return fmt.Errorf("%w: parse failed: %v", voxel.ErrNotReady, err)
	}
	return fmt.Errorf("%w: stack %q is still being parsed", voxel.ErrNotReady, s.Name())
}

// Resolution is zero until the source is ready.
func (s *Source) Resolution() voxel.Point3d {
	if !s.Ready() {
		return voxel.Point3d{}
	}
	return s.res
}

func (s *Source) Channels() int { return s.channels }

// VoxelSize is zero until the source is ready.
func (s *Source) VoxelSize() voxel.Vector3f {
	if !s.Ready() {
		return voxel.Vector3f{}
	}
	return s.voxelSize
}

func (s *Source) Name() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.name
}

func (s *Source) SetName(name string) {
	if name == "" {
		return
	}
	s.mu.Lock()
	s.name = name
	s.mu.Unlock()
}

func (s *Source) BoundingBox() voxel.BoundingBox {
	return voxel.NewBoundingBox(s.Resolution(), s.VoxelSize())
}

func (s *Source) OnDisk() bool { return true }

func (s *Source) NativeKind() voxel.PixelKind { return s.kind }

// Filenames returns the file lists the source was opened with.
func (s *Source) Filenames() [][]string {
	out := make([][]string, len(s.filenames))
	for c, files := range s.filenames {
		out[c] = append([]string(nil), files...)
	}
	return out
}

// Frame returns the frame of a channel at z.  It returns false until the source is
// ready or if z or channel is out of range.
func (s *Source) Frame(z int32, channel int) (*tiff.Frame, bool) {
	if !s.Ready() || z < 0 || int(z) >= len(s.dir) || channel < 0 || channel >= s.channels {
		return nil, false
	}
	return s.dir[z][channel], true
}

func (s *Source) ReadSubRegion(kind voxel.PixelKind, origin, size voxel.Point3d) (voxel.Buffer, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, ErrClosed
	}
	return s.decoder.readSubRegion(kind, origin, size)
}

func (s *Source) ReadValueRange(kind voxel.PixelKind, channel int) (voxel.Buffer, error) {
	if err := s.checkReady(); err != nil {
		return nil, err
	}
	if err := volume.CheckChannel(s, channel); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.decoder.valueRange(kind, channel)
}

// ErrClosed is returned by reads after Close.
var ErrClosed = errors.New("stack source is closed")

// Close releases open files and cached slices.  Reads after Close fail.
func (s *Source) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var firstErr error
	for path, f := range s.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = &voxel.IOError{Path: path, Op: "close", Err: err}
		}
	}
	clear(s.files)
	s.decoder.clear()
	s.closed = true
	return firstErr
}

// reader returns an open handle on path.  Callers hold mu.
func (s *Source) reader(path string) (*os.File, error) {
	if f, found := s.files[path]; found {
		return f, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, &voxel.IOError{Path: path, Op: "open", Err: err}
	}
	s.files[path] = f
	return f, nil
}

func (s *Source) stripFailed(frame *tiff.Frame, strip int, err error) {
	s.stripErrors.Add(1)
	if strip < 0 {
		voxel.Errorf("Stack %q: could not read directory %d of %s, reading zeros: %v\n",
			s.name, frame.Directory, frame.Path, err)
		return
	}
	voxel.Errorf("Stack %q: strip %d of directory %d of %s failed, reading zeros: %v\n",
		s.name, strip, frame.Directory, frame.Path, err)
}

// Load opens a stack and waits for its parse to finish.
func Load(ctx context.Context, filenames [][]string, opts ...Option) (*Source, error) {
	s, t, err := Open(filenames, opts...)
	if err != nil {
		return nil, err
	}
	if err := t.Wait(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

package main

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/janelia-flyem/vstack"
	"github.com/janelia-flyem/vstack/config"
	"github.com/janelia-flyem/vstack/export"
	"github.com/janelia-flyem/vstack/manifest"
	"github.com/janelia-flyem/vstack/stack"
	"github.com/janelia-flyem/vstack/task"
	"github.com/janelia-flyem/vstack/tiff"
	"github.com/janelia-flyem/vstack/volume"
	"github.com/janelia-flyem/vstack/voxel"
)

// maxPrinted is the largest region "read" prints instead of requiring out=.
const maxPrinted = 4096

// DoCommand serves as a switchboard for commands.
func DoCommand(ctx context.Context, cfg *config.Config, cmd voxel.Command, w io.Writer) error {
	if len(cmd) == 0 {
		return fmt.Errorf("blank command")
	}
	switch cmd.Name() {
	case "about":
		fmt.Fprintln(w, vstack.Versions())
		return nil
	case "info":
		return DoInfo(ctx, cfg, cmd, w)
	case "read":
		return DoRead(ctx, cfg, cmd, w)
	case "stats":
		return DoStats(ctx, cfg, cmd, w)
	case "export":
		return DoExport(ctx, cfg, cmd, w)
	case "probe":
		return DoProbe(cmd, w)
	}
	return fmt.Errorf("unknown command %q, try 'vstack help'", cmd.Name())
}

// openDataset opens the dataset named by the command's positional arguments and
// waits for it to be parsed.
func openDataset(ctx context.Context, cfg *config.Config, cmd voxel.Command) (*stack.Source, error) {
	args := cmd.CommandArgs()
	if len(args) == 0 {
		return nil, fmt.Errorf("%s needs a manifest or TIFF files", cmd.Name())
	}
	var src *stack.Source
	var t *task.Task
	var err error
	if len(args) == 1 && !tiff.HasExtension(args[0]) {
		m, err := manifest.Load(args[0])
		if err != nil {
			return nil, err
		}
		src, t, err = m.Open(cfg.StackOptions()...)
		if err != nil {
			return nil, err
		}
	} else {
		src, t, err = stack.Open([][]string{args}, cfg.StackOptions()...)
		if err != nil {
			return nil, err
		}
	}
	if err := waitParse(ctx, src.Name(), t); err != nil {
		src.Close()
		return nil, err
	}
	if name, found := cmd.Parameter(voxel.KeyName); found {
		src.SetName(name)
	}
	return src, nil
}

func waitParse(ctx context.Context, name string, t *task.Task) error {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()
	for {
		select {
		case <-t.Done():
			return t.Err()
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			done, total := t.Progress()
			voxel.Infof("Parsing %s: %d of %d frames\n", name, done, total)
		}
	}
}

// region returns the box selected by offset= and size= settings, defaulting to the
// rest of the source from the offset.
func region(cmd voxel.Command, src volume.Source) (origin, size voxel.Point3d, err error) {
	if origin, err = cmd.PointParameter(voxel.KeyOffset, voxel.Point3d{}); err != nil {
		return
	}
	size, err = cmd.PointParameter(voxel.KeySize, src.Resolution().Sub(origin))
	return
}

// DoInfo prints the geometry of a dataset.
func DoInfo(ctx context.Context, cfg *config.Config, cmd voxel.Command, w io.Writer) error {
	src, err := openDataset(ctx, cfg, cmd)
	if err != nil {
		return err
	}
	defer src.Close()
	fmt.Fprintf(w, "Name:          %s\n", src.Name())
	fmt.Fprintf(w, "Resolution:    %s\n", src.Resolution())
	fmt.Fprintf(w, "Channels:      %d\n", src.Channels())
	fmt.Fprintf(w, "Pixel kind:    %s\n", src.NativeKind())
	fmt.Fprintf(w, "Voxel size:    %s\n", src.VoxelSize())
	fmt.Fprintf(w, "Bounding box:  %s\n", src.BoundingBox())
	voxels := uint64(src.Resolution().Prod()) * uint64(src.Channels())
	fmt.Fprintf(w, "Data size:     %s\n", humanize.Bytes(voxels*uint64(src.NativeKind().Bytes())))
	if frame, found := src.Frame(0, 0); found {
		fmt.Fprintf(w, "Compression:   %s\n", tiff.CompressionName(frame.Compression))
		fmt.Fprintf(w, "Rows/strip:    %d\n", frame.RowsPerStrip)
		fmt.Fprintf(w, "Byte order:    %s\n", frame.ByteOrder)
	}
	for c := 0; c < src.Channels(); c++ {
		r, err := src.ReadValueRange(voxel.T_float64, c)
		if err != nil {
			return err
		}
		files := src.Filenames()[c]
		fmt.Fprintf(w, "Channel %d:     %d file(s), range [%g, %g]\n", c, len(files), r.Float64At(0), r.Float64At(1))
	}
	return nil
}

// DoRead reads a region and prints its values or writes them to out= as raw
// little-endian values.
func DoRead(ctx context.Context, cfg *config.Config, cmd voxel.Command, w io.Writer) error {
	src, err := openDataset(ctx, cfg, cmd)
	if err != nil {
		return err
	}
	defer src.Close()
	origin, size, err := region(cmd, src)
	if err != nil {
		return err
	}
	kind, err := cmd.KindParameter(src.NativeKind())
	if err != nil {
		return err
	}
	buf, err := src.ReadSubRegion(kind, origin, size)
	if err != nil {
		return err
	}
	if out, found := cmd.Parameter(voxel.KeyOutput); found {
		data := buf.Bytes(binary.LittleEndian)
		if err := os.WriteFile(out, data, 0644); err != nil {
			return &voxel.IOError{Path: out, Op: "write", Err: err}
		}
		fmt.Fprintf(w, "Wrote %s of %s values to %s\n", humanize.Bytes(uint64(len(data))), kind, out)
		return nil
	}
	if buf.Len() > maxPrinted {
		return fmt.Errorf("region holds %d values, use out= to save more than %d", buf.Len(), maxPrinted)
	}
	channels := src.Channels()
	line := int(size[0]) * channels
	for i := 0; i < buf.Len(); i++ {
		if i > 0 && i%line == 0 {
			fmt.Fprintln(w)
		}
		if i%line != 0 {
			fmt.Fprint(w, " ")
		}
		fmt.Fprintf(w, "%g", buf.Float64At(i))
	}
	if buf.Len() > 0 {
		fmt.Fprintln(w)
	}
	return nil
}

// DoStats prints per-channel statistics over a region and the cache activity.
func DoStats(ctx context.Context, cfg *config.Config, cmd voxel.Command, w io.Writer) error {
	src, err := openDataset(ctx, cfg, cmd)
	if err != nil {
		return err
	}
	defer src.Close()
	opt, err := exportOptions(cfg, cmd, src)
	if err != nil {
		return err
	}
	stats, err := export.Summarize(ctx, src, opt)
	if err != nil {
		return err
	}
	for _, s := range stats {
		fmt.Fprintln(w, s)
	}
	fmt.Fprintln(w, src.Stats())
	return nil
}

func exportOptions(cfg *config.Config, cmd voxel.Command, src volume.Source) (export.Options, error) {
	opt, err := cfg.ExportOptions()
	if err != nil {
		return opt, err
	}
	if opt.Origin, opt.Size, err = region(cmd, src); err != nil {
		return opt, err
	}
	if opt.Workers, err = cmd.IntParameter(voxel.KeyWorkers, opt.Workers); err != nil {
		return opt, err
	}
	if opt.Kind, err = cmd.KindParameter(voxel.T_unknown); err != nil {
		return opt, err
	}
	if s, found := cmd.Parameter(voxel.KeyFormat); found {
		if opt.Format, err = export.ParseFormat(s); err != nil {
			return opt, err
		}
	}
	return opt, nil
}

// DoExport writes a region, optionally downsampled to target=, to out=.
func DoExport(ctx context.Context, cfg *config.Config, cmd voxel.Command, w io.Writer) error {
	out, found := cmd.Parameter(voxel.KeyOutput)
	if !found {
		return fmt.Errorf("export needs an out= setting")
	}
	src, err := openDataset(ctx, cfg, cmd)
	if err != nil {
		return err
	}
	defer src.Close()
	opt, err := exportOptions(cfg, cmd, src)
	if err != nil {
		return err
	}

	var view volume.Source = src
	if opt.Origin != (voxel.Point3d{}) || opt.Size != src.Resolution() {
		if view, err = volume.NewSubRegion(src, opt.Origin, opt.Size); err != nil {
			return err
		}
	}
	if s, found := cmd.Parameter(voxel.KeyTarget); found {
		target, err := voxel.StringToPoint3d(s, ",")
		if err != nil {
			return fmt.Errorf("bad %s setting: %w", voxel.KeyTarget, err)
		}
		if view, err = volume.NewDownsampled(view, target, nil); err != nil {
			return err
		}
	}
	opt.Origin, opt.Size = voxel.Point3d{}, view.Resolution()

	if opt.Format == export.TIFF && view.Channels() > 1 {
		return exportChannels(ctx, view, opt, out, w)
	}
	f, err := os.Create(out)
	if err != nil {
		return &voxel.IOError{Path: out, Op: "create", Err: err}
	}
	n, err := export.Volume(ctx, view, f, opt)
	if cerr := f.Close(); err == nil && cerr != nil {
		err = &voxel.IOError{Path: out, Op: "close", Err: cerr}
	}
	if err != nil {
		return err
	}
	fmt.Fprintf(w, "Exported %s of %s as %s (%s of voxel data) to %s\n",
		view.Resolution(), view.Name(), opt.Format, humanize.Bytes(uint64(n)), out)
	return nil
}

// exportChannels writes one TIFF per channel next to out and a JSON manifest at
// out with the extension replaced, so the export opens as the same volume.
func exportChannels(ctx context.Context, view volume.Source, opt export.Options, out string, w io.Writer) error {
	names := export.ChannelFilenames(out, view.Channels())
	ws := make([]io.Writer, len(names))
	files := make([]*os.File, 0, len(names))
	closeAll := func() error {
		var first error
		for _, f := range files {
			if err := f.Close(); err != nil && first == nil {
				first = &voxel.IOError{Path: f.Name(), Op: "close", Err: err}
			}
		}
		files = nil
		return first
	}
	defer closeAll()
	for c, name := range names {
		f, err := os.Create(name)
		if err != nil {
			return &voxel.IOError{Path: name, Op: "create", Err: err}
		}
		files = append(files, f)
		ws[c] = f
	}
	n, err := export.Channels(ctx, view, ws, opt)
	if cerr := closeAll(); err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	vs := view.VoxelSize()
	m := &manifest.Manifest{
		Name:      view.Name(),
		VoxelSize: []float32{vs[0], vs[1], vs[2]},
		Channels:  make([][]string, len(names)),
	}
	for c, name := range names {
		m.Channels[c] = []string{filepath.Base(name)}
	}
	mpath := strings.TrimSuffix(out, filepath.Ext(out)) + ".json"
	if err := m.Write(mpath, manifest.JSON); err != nil {
		return err
	}
	fmt.Fprintf(w, "Exported %s of %s as %d TIFF channels (%s of voxel data) with manifest %s\n",
		view.Resolution(), view.Name(), len(names), humanize.Bytes(uint64(n)), mpath)
	return nil
}

// DoProbe reports which files the TIFF decoder can read.
func DoProbe(cmd voxel.Command, w io.Writer) error {
	files := cmd.CommandArgs()
	if len(files) == 0 {
		return fmt.Errorf("probe needs files")
	}
	for _, path := range files {
		status := "readable"
		if !tiff.CanRead(path) {
			status = "not readable"
		}
		fmt.Fprintf(w, "%s: %s\n", path, status)
	}
	return nil
}

package manifest

import (
	"context"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/janelia-flyem/vstack/tiff"
	"github.com/janelia-flyem/vstack/voxel"
)

func TestParseJSON(t *testing.T) {
	m, err := Parse([]byte(`{"name": "brain", "voxelSize": [0.5, 0.5, 2], "channels": [["a.tif", "b.tif"], ["c.tif", "d.tif"]]}`), JSON)
	if err != nil {
		t.Fatalf("parse failed: %v\n", err)
	}
	if m.Name != "brain" || !reflect.DeepEqual(m.VoxelSize, []float32{0.5, 0.5, 2}) {
		t.Errorf("bad manifest: %+v\n", m)
	}
	if len(m.Channels) != 2 || m.Channels[1][1] != "d.tif" {
		t.Errorf("bad channels: %v\n", m.Channels)
	}
	if len(m.Options()) != 2 {
		t.Errorf("expected name and voxel size options, got %d\n", len(m.Options()))
	}
}

func TestParseYAML(t *testing.T) {
	doc := `
name: brain
cacheSlots: 4
channels:
  - [a.tif]
  - [b.tif]
`
	m, err := Parse([]byte(doc), YAML)
	if err != nil {
		t.Fatalf("parse failed: %v\n", err)
	}
	if m.Name != "brain" || m.CacheSlots != 4 || len(m.Channels) != 2 {
		t.Errorf("bad manifest: %+v\n", m)
	}
}

func TestSchemaRejects(t *testing.T) {
	tests := []string{
		`{}`,
		`{"channels": []}`,
		`{"channels": [[]]}`,
		`{"channels": [[""]]}`,
		`{"channels": [["a.tif"]], "voxelSize": [1, 1]}`,
		`{"channels": [["a.tif"]], "voxelSize": [1, 0, 1]}`,
		`{"channels": [["a.tif"]], "cacheSlots": 0}`,
		`{"channels": [["a.tif"]], "color": "red"}`,
		`{"channels": "a.tif"}`,
	}
	for _, doc := range tests {
		if _, err := Parse([]byte(doc), JSON); err == nil {
			t.Errorf("expected %s to be rejected\n", doc)
		} else if !strings.Contains(err.Error(), "invalid manifest") {
			t.Errorf("expected schema failure for %s, got %v\n", doc, err)
		}
	}
	if _, err := Parse([]byte(`{"channels": [`), JSON); err == nil {
		t.Errorf("expected truncated json to fail\n")
	}
	if _, err := Parse([]byte("channels: [a"), YAML); err == nil {
		t.Errorf("expected bad yaml to fail\n")
	}
}

func TestFormatOf(t *testing.T) {
	for path, want := range map[string]Format{"m.json": JSON, "m.YAML": YAML, "m.yml": YAML, "m": JSON} {
		if got := FormatOf(path); got != want {
			t.Errorf("%s: expected %s, got %s\n", path, want, got)
		}
	}
}

func writeStackFile(t *testing.T, path string, depth int) {
	f, err := os.Create(path)
	if err != nil {
		t.Fatalf("can't create %s: %v\n", path, err)
	}
	defer f.Close()
	pages := make([]tiff.Page, depth)
	for i := range pages {
		data := make(voxel.Values[uint8], 4)
		for j := range data {
			data[j] = uint8(i*4 + j)
		}
		pages[i] = tiff.Page{Width: 2, Height: 2, Data: data}
	}
	if err := tiff.Encode(f, pages, nil); err != nil {
		t.Fatalf("can't encode %s: %v\n", path, err)
	}
}

func TestLoadAndOpen(t *testing.T) {
	dir := t.TempDir()
	for _, sub := range []string{"ch0", "ch1"} {
		if err := os.Mkdir(filepath.Join(dir, sub), 0755); err != nil {
			t.Fatalf("can't make %s: %v\n", sub, err)
		}
	}
	for _, name := range []string{"ch0/s_001.tif", "ch0/s_000.tif", "ch1/a.tif", "ch1/b.tif"} {
		writeStackFile(t, filepath.Join(dir, name), 2)
	}

	m := &Manifest{
		Name:      "twochannel",
		VoxelSize: []float32{1, 1, 4},
		Channels:  [][]string{{"ch0/s_*.tif"}, {"ch1/a.tif", "ch1/b.tif"}},
	}
	path := filepath.Join(dir, "stack.yaml")
	if err := m.Write(path, YAML); err != nil {
		t.Fatalf("write failed: %v\n", err)
	}

	loaded, err := Load(path)
	if err != nil {
		t.Fatalf("load failed: %v\n", err)
	}
	filenames, err := loaded.Filenames()
	if err != nil {
		t.Fatalf("can't resolve files: %v\n", err)
	}
	want := [][]string{
		{filepath.Join(dir, "ch0/s_000.tif"), filepath.Join(dir, "ch0/s_001.tif")},
		{filepath.Join(dir, "ch1/a.tif"), filepath.Join(dir, "ch1/b.tif")},
	}
	if !reflect.DeepEqual(filenames, want) {
		t.Errorf("expected files %v, got %v\n", want, filenames)
	}

	src, tk, err := loaded.Open()
	if err != nil {
		t.Fatalf("open failed: %v\n", err)
	}
	defer src.Close()
	if err := tk.Wait(context.Background()); err != nil {
		t.Fatalf("parse failed: %v\n", err)
	}
	if src.Name() != "twochannel" || src.VoxelSize() != (voxel.Vector3f{1, 1, 4}) {
		t.Errorf("manifest settings not applied: %q %s\n", src.Name(), src.VoxelSize())
	}
	if src.Resolution() != (voxel.Point3d{2, 2, 4}) || src.Channels() != 2 {
		t.Errorf("bad geometry %s with %d channels\n", src.Resolution(), src.Channels())
	}
}

func TestUnmatchedGlob(t *testing.T) {
	m := &Manifest{Dir: t.TempDir(), Channels: [][]string{{"*.tif"}}}
	if _, err := m.Filenames(); err == nil {
		t.Errorf("expected error for glob without matches\n")
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Errorf("expected error for missing manifest\n")
	}
}

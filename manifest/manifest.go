/*
Package manifest reads dataset description files naming the files of a stacked
TIFF dataset.  A manifest is JSON or YAML:

	{
		"name": "brain",
		"voxelSize": [0.5, 0.5, 2],
		"channels": [
			["ch0/*.tif"],
			["ch1/slab_000.tif", "ch1/slab_001.tif"]
		]
	}

Each channel lists files or glob patterns in stack order.  Globs expand to their
matches in lexical order.  Relative paths are taken against the directory holding
the manifest.
*/
package manifest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/santhosh-tekuri/jsonschema/v5"
	"gopkg.in/yaml.v3"

	"github.com/janelia-flyem/vstack/stack"
	"github.com/janelia-flyem/vstack/task"
	"github.com/janelia-flyem/vstack/voxel"
)

const schemaJSON = `{
	"type": "object",
	"required": ["channels"],
	"additionalProperties": false,
	"properties": {
		"name": {"type": "string"},
		"voxelSize": {
			"type": "array",
			"minItems": 3,
			"maxItems": 3,
			"items": {"type": "number", "exclusiveMinimum": 0}
		},
		"cacheSlots": {"type": "integer", "minimum": 1},
		"channels": {
			"type": "array",
			"minItems": 1,
			"items": {
				"type": "array",
				"minItems": 1,
				"items": {"type": "string", "minLength": 1}
			}
		}
	}
}`

var schema = jsonschema.MustCompileString("manifest.json", schemaJSON)

// Format is the encoding of a manifest file.
type Format uint8

const (
	JSON Format = iota
	YAML
)

func (f Format) String() string {
	if f == YAML {
		return "yaml"
	}
	return "json"
}

// FormatOf returns the format implied by a file extension.  Unknown extensions
// are read as JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	}
	return JSON
}

// Manifest describes a stacked dataset.
type Manifest struct {
	Name       string     `json:"name,omitempty" yaml:"name,omitempty"`
	VoxelSize  []float32  `json:"voxelSize,omitempty" yaml:"voxelSize,omitempty"`
	CacheSlots int        `json:"cacheSlots,omitempty" yaml:"cacheSlots,omitempty"`
	Channels   [][]string `json:"channels" yaml:"channels"`

	// Dir is the directory relative paths are resolved against.
	Dir string `json:"-" yaml:"-"`
}

// Parse validates and decodes a manifest.
func Parse(data []byte, format Format) (*Manifest, error) {
	if format == YAML {
		var doc interface{}
		if err := yaml.Unmarshal(data, &doc); err != nil {
			return nil, fmt.Errorf("bad yaml manifest: %w", err)
		}
		var err error
		if data, err = json.Marshal(doc); err != nil {
			return nil, fmt.Errorf("yaml manifest is not representable as json: %w", err)
		}
	}
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("bad json manifest: %w", err)
	}
	if err := schema.Validate(doc); err != nil {
		return nil, fmt.Errorf("invalid manifest: %w", err)
	}
	m := new(Manifest)
	if err := json.Unmarshal(data, m); err != nil {
		return nil, fmt.Errorf("can't decode manifest: %w", err)
	}
	return m, nil
}

// Load reads the manifest at path.  Relative file names in it are resolved
// against path's directory.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, &voxel.IOError{Path: path, Op: "read manifest", Err: err}
	}
	m, err := Parse(data, FormatOf(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	if m.Dir, err = filepath.Abs(filepath.Dir(path)); err != nil {
		return nil, err
	}
	return m, nil
}

// Filenames returns the resolved file list of every channel.  A glob that matches
// nothing is an error.
func (m *Manifest) Filenames() ([][]string, error) {
	out := make([][]string, len(m.Channels))
	for c, entries := range m.Channels {
		for _, entry := range entries {
			path := entry
			if !filepath.IsAbs(path) && m.Dir != "" {
				path = filepath.Join(m.Dir, path)
			}
			if !hasMeta(entry) {
				out[c] = append(out[c], path)
				continue
			}
			matches, err := filepath.Glob(path)
			if err != nil {
				return nil, fmt.Errorf("channel %d: bad pattern %q: %w", c, entry, err)
			}
			if len(matches) == 0 {
				return nil, fmt.Errorf("channel %d: pattern %q matches no files", c, entry)
			}
			out[c] = append(out[c], matches...)
		}
	}
	return out, nil
}

func hasMeta(path string) bool {
	return strings.ContainsAny(path, `*?[`)
}

// Options returns the stack options the manifest sets.
func (m *Manifest) Options() []stack.Option {
	var opts []stack.Option
	if m.Name != "" {
		opts = append(opts, stack.WithName(m.Name))
	}
	if len(m.VoxelSize) == 3 {
		opts = append(opts, stack.WithVoxelSize(voxel.Vector3f{m.VoxelSize[0], m.VoxelSize[1], m.VoxelSize[2]}))
	}
	if m.CacheSlots > 0 {
		opts = append(opts, stack.WithCacheSlots(m.CacheSlots))
	}
	return opts
}

// Open resolves the manifest's files and opens them as a stack.  Options given
// here are defaults that the manifest's own settings override.
func (m *Manifest) Open(opts ...stack.Option) (*stack.Source, *task.Task, error) {
	filenames, err := m.Filenames()
	if err != nil {
		return nil, nil, err
	}
	all := append(append([]stack.Option(nil), opts...), m.Options()...)
	return stack.Open(filenames, all...)
}

// Write encodes the manifest in the given format.
func (m *Manifest) Write(path string, format Format) error {
	var data []byte
	var err error
	if format == YAML {
		data, err = yaml.Marshal(m)
	} else {
		data, err = json.MarshalIndent(m, "", "    ")
	}
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return &voxel.IOError{Path: path, Op: "write manifest", Err: err}
	}
	return nil
}

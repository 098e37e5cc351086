// Package config loads vstack settings from a TOML file.
package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/BurntSushi/toml"
	"github.com/blang/semver"

	"github.com/janelia-flyem/vstack/cache"
	"github.com/janelia-flyem/vstack/export"
	"github.com/janelia-flyem/vstack/stack"
	"github.com/janelia-flyem/vstack/tiff"
	"github.com/janelia-flyem/vstack/voxel"
)

// Version is the configuration format written by this build.  Files declaring a
// version with the same major number and no newer are accepted.
const Version = "1.0.0"

var current = semver.MustParse(Version)

// Config holds every section of a configuration file.
type Config struct {
	Version string
	Logging voxel.LogConfig
	Cache   CacheConfig
	Decode  DecodeConfig
	Export  ExportConfig

	location string
}

type CacheConfig struct {
	// Slots is the number of decoded z slices kept per stack.
	Slots int
}

type DecodeConfig struct {
	FailOnStripError bool `toml:"fail_on_strip_error"`
}

type ExportConfig struct {
	Workers     int
	BlockDepth  int `toml:"block_depth"`
	Format      string
	Compression string
}

// Default returns the settings used when no file is given.
func Default() *Config {
	return &Config{
		Version: Version,
		Cache:   CacheConfig{Slots: cache.DefaultCapacity},
		Export: ExportConfig{
			BlockDepth: export.DefaultBlockDepth,
			Format:     export.Raw.String(),
		},
	}
}

// Load reads a TOML configuration file over the defaults.
func Load(filename string) (*Config, error) {
	if filename == "" {
		return nil, fmt.Errorf("no TOML configuration file provided")
	}
	c := Default()
	c.Version = ""
	if _, err := toml.DecodeFile(filename, c); err != nil {
		return nil, fmt.Errorf("could not decode TOML config %q: %w", filename, err)
	}
	c.location = filename
	if err := c.checkVersion(); err != nil {
		return nil, err
	}
	if err := c.convertPathsToAbsolute(filename); err != nil {
		return nil, fmt.Errorf("could not convert relative paths to absolute paths in TOML config: %w", err)
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	voxel.Debugf("TOML config %s: %+v\n", filename, *c)
	return c, nil
}

func (c *Config) checkVersion() error {
	if c.Version == "" {
		c.Version = Version
		return nil
	}
	v, err := semver.Parse(c.Version)
	if err != nil {
		return fmt.Errorf("bad config version %q: %w", c.Version, err)
	}
	if v.Major != current.Major || v.GT(current) {
		return fmt.Errorf("config version %s is not supported, expected %d.x up to %s", v, current.Major, current)
	}
	return nil
}

// Some settings can be given as paths relative to the TOML file's own directory.
func (c *Config) convertPathsToAbsolute(configPath string) error {
	configDir := filepath.Dir(configPath)

	// [logging].logfile
	if c.Logging.Logfile != "" {
		abs, err := toAbsolute(c.Logging.Logfile, configDir)
		if err != nil {
			return fmt.Errorf("error converting logfile setting to absolute path: %w", err)
		}
		c.Logging.Logfile = abs
	}
	return nil
}

func toAbsolute(path, dir string) (string, error) {
	if filepath.IsAbs(path) {
		return path, nil
	}
	return filepath.Abs(filepath.Join(dir, path))
}

// Validate checks settings that cannot be checked while decoding.
func (c *Config) Validate() error {
	if _, err := voxel.ParseLogMode(c.Logging.Level); err != nil {
		return fmt.Errorf("[logging] %w", err)
	}
	if c.Cache.Slots < 0 {
		return fmt.Errorf("[cache] slots must not be negative, got %d", c.Cache.Slots)
	}
	if c.Export.Workers < 0 || c.Export.BlockDepth < 0 {
		return fmt.Errorf("[export] workers and block_depth must not be negative")
	}
	if _, err := export.ParseFormat(c.Export.Format); err != nil {
		return fmt.Errorf("[export] %w", err)
	}
	if _, err := c.compression(); err != nil {
		return err
	}
	return nil
}

// Location returns the file the configuration was loaded from, if any.
func (c *Config) Location() string { return c.location }

// StackOptions returns the stack options set by the [cache] and [decode] sections.
func (c *Config) StackOptions() []stack.Option {
	var opts []stack.Option
	if c.Cache.Slots > 0 {
		opts = append(opts, stack.WithCacheSlots(c.Cache.Slots))
	}
	if c.Decode.FailOnStripError {
		opts = append(opts, stack.FailOnStripError(true))
	}
	return opts
}

// ExportOptions returns the export options set by the [export] section.
func (c *Config) ExportOptions() (export.Options, error) {
	format, err := export.ParseFormat(c.Export.Format)
	if err != nil {
		return export.Options{}, err
	}
	comp, err := c.compression()
	if err != nil {
		return export.Options{}, err
	}
	return export.Options{
		Format:      format,
		Workers:     c.Export.Workers,
		BlockDepth:  c.Export.BlockDepth,
		Compression: comp,
	}, nil
}

func (c *Config) compression() (uint16, error) {
	comp, err := tiff.ParseCompression(c.Export.Compression)
	if err != nil {
		return 0, fmt.Errorf("[export] %w", err)
	}
	return comp, nil
}

// SetLogger directs logging as the [logging] section says.
func (c *Config) SetLogger() {
	c.Logging.SetLogger()
}

// Write encodes the configuration as TOML.
func (c *Config) Write(filename string) error {
	f, err := os.Create(filename)
	if err != nil {
		return &voxel.IOError{Path: filename, Op: "create", Err: err}
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(c)
}

/*
vstack provides typed, cached access to multi-channel 3d voxel images stored as
stacks of multi-directory TIFF files.

A dataset is one ordered list of files per channel.  Every directory of every file
is one z slice of one channel, so a channel may be split across files that each
hold a slab of slices.  Reads name a box and the pixel kind the caller wants;
values are converted from the stored kind on the way out.

Packages

	voxel     pixel kinds, typed buffers, geometry, errors and logging
	cache     bounded slot cache for decoded slices
	task      progress handle for background parsing
	tiff      frame descriptors, strip decoding and a multi-page writer
	volume    the Source interface, region reads, crop and downsample views
	stack     Source over a stack of TIFF files
	manifest  JSON/YAML dataset descriptions
	config    TOML settings
	export    parallel export and channel statistics

# Command line

The vstack command reads datasets given as a manifest file or a list of TIFF files
forming a single channel.  In the following, the type of brackets designate
<required parameter> and [optional parameter].

	vstack about
	vstack info <dataset...>
	vstack read <dataset...> [offset=x,y,z] [size=x,y,z] [kind=uint16] [out=path]
	vstack stats <dataset...> [offset=x,y,z] [size=x,y,z] [workers=n]
	vstack export <dataset...> out=path [format=raw|snappy|tiff] [kind=...]
	              [offset=x,y,z] [size=x,y,z] [target=x,y,z] [workers=n]
	vstack probe <file...>

Settings not given on the command line come from the TOML file passed with
-config:

	version = "1.0.0"

	[logging]
	logfile = "/var/log/vstack.log"
	max_log_size = 500 # MB
	max_log_age = 30   # days
	level = "info"     # debug, info, warning, error or silent

	[cache]
	slots = 16

	[decode]
	fail_on_strip_error = false

	[export]
	workers = 8
	block_depth = 16
	format = "tiff"
	compression = "zstd"
*/
package vstack

package voxel

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownKind is returned when a pixel kind is T_unknown or out of range.
	ErrUnknownKind = errors.New("unknown pixel kind")

	// ErrBadRegion is returned for a region with a negative origin or size component.
	ErrBadRegion = errors.New("bad region")

	// ErrChannelRange is returned when a channel index is not below the channel count.
	ErrChannelRange = errors.New("channel out of range")

	// ErrNotReady is returned when a source is used before its parse completed.
	ErrNotReady = errors.New("source not ready")
)

// FormatReason names the structural feature that made a frame unreadable.
type FormatReason uint8

const (
	Tiled FormatReason = iota + 1
	PlanarConfig
	Photometric
	MultiSample
	NoMatchingKind
	Compression
)

func (r FormatReason) String() string {
	switch r {
	case Tiled:
		return "tiled storage"
	case PlanarConfig:
		return "non-contiguous planar configuration"
	case Photometric:
		return "unsupported photometric interpretation"
	case MultiSample:
		return "more than one sample per pixel"
	case NoMatchingKind:
		return "no matching pixel kind"
	case Compression:
		return "unsupported compression"
	}
	return fmt.Sprintf("format reason %d", uint8(r))
}

// UnsupportedFormatError is a structural feature of an input the decoder cannot
// represent.
type UnsupportedFormatError struct {
	Path   string
	Reason FormatReason
	Detail string
}

func (e *UnsupportedFormatError) Error() string {
	msg := fmt.Sprintf("unsupported format in %q: %s", e.Path, e.Reason)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// ConsistencyReason names a mismatch across the files or frames of a dataset.
type ConsistencyReason uint8

const (
	FileCountMismatch ConsistencyReason = iota + 1
	FrameCountMismatch
	GeometryMismatch
)

func (r ConsistencyReason) String() string {
	switch r {
	case FileCountMismatch:
		return "file count mismatch"
	case FrameCountMismatch:
		return "frame count mismatch"
	case GeometryMismatch:
		return "geometry mismatch"
	}
	return fmt.Sprintf("consistency reason %d", uint8(r))
}

// ConsistencyError is a geometric or structural mismatch across files or frames.
// Expected and Got hold the compared counts or dimensions when meaningful.
type ConsistencyError struct {
	Reason   ConsistencyReason
	Channel  int
	File     int
	Expected int64
	Got      int64
	Detail   string
}

func (e *ConsistencyError) Error() string {
	msg := fmt.Sprintf("%s at channel %d, file %d: expected %d, got %d", e.Reason, e.Channel, e.File, e.Expected, e.Got)
	if e.Detail != "" {
		msg += " (" + e.Detail + ")"
	}
	return msg
}

// IOError wraps a failure to open or read a file.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %q: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

/*
	This file holds the Command type used by the command-line front end.  Commands
	are a command name followed by positional arguments and optional settings of
	the form "<key>=<value>".
*/

package voxel

import (
	"fmt"
	"strconv"
	"strings"
)

// Keys for setting various arguments within the command line via "key=value" strings.
const (
	KeyConfigFile = "config"
	KeyKind       = "kind"
	KeyOffset     = "offset"
	KeySize       = "size"
	KeyChannel    = "channel"
	KeyOutput     = "out"
	KeyFormat     = "format"
	KeyWorkers    = "workers"
	KeyName       = "name"
	KeyTarget     = "target"
)

var setKeys = map[string]bool{
	KeyConfigFile: true,
	KeyKind:       true,
	KeyOffset:     true,
	KeySize:       true,
	KeyChannel:    true,
	KeyOutput:     true,
	KeyFormat:     true,
	KeyWorkers:    true,
	KeyName:       true,
	KeyTarget:     true,
}

// Command is a command line split into words.  The first item is the command name,
// e.g., "info" or "export".  The other arguments are positional arguments or
// optional settings of the form "<key>=<value>".
type Command []string

// String returns a space-separated command line
func (cmd Command) String() string {
	return strings.Join([]string(cmd), " ")
}

// Name returns the first argument which is assumed to be the name of the command.
func (cmd Command) Name() string {
	if len(cmd) == 0 {
		return ""
	}
	return cmd[0]
}

// Parameter scans a command for any "key=value" argument and returns
// the value of the passed 'key'.
func (cmd Command) Parameter(key string) (value string, found bool) {
	if len(cmd) > 1 {
		for _, arg := range cmd[1:] {
			elems := strings.SplitN(arg, "=", 2)
			if len(elems) == 2 && elems[0] == key {
				return elems[1], true
			}
		}
	}
	return
}

// PointParameter parses a "x,y,z" setting.  If the key is absent, dflt is returned.
func (cmd Command) PointParameter(key string, dflt Point3d) (Point3d, error) {
	s, found := cmd.Parameter(key)
	if !found {
		return dflt, nil
	}
	p, err := StringToPoint3d(s, ",")
	if err != nil {
		return Point3d{}, fmt.Errorf("bad %s setting: %w", key, err)
	}
	return p, nil
}

// IntParameter parses an integer setting.  If the key is absent, dflt is returned.
func (cmd Command) IntParameter(key string, dflt int) (int, error) {
	s, found := cmd.Parameter(key)
	if !found {
		return dflt, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("bad %s setting %q: %w", key, s, err)
	}
	return n, nil
}

// KindParameter parses a pixel kind setting.  If the key is absent, dflt is returned.
func (cmd Command) KindParameter(dflt PixelKind) (PixelKind, error) {
	s, found := cmd.Parameter(KeyKind)
	if !found {
		return dflt, nil
	}
	return ParsePixelKind(s)
}

// CommandArgs sets a variadic argument set of string pointers to
// command arguments, ignoring setting arguments of the form "<key>=<value>".
// If there aren't enough arguments to set a target, the target is set to the
// empty string.  It returns an 'overflow' slice that has all arguments
// beyond those needed for targets.
func (cmd Command) CommandArgs(targets ...*string) (overflow []string) {
	overflow = make([]string, 0, len(cmd))
	for _, target := range targets {
		*target = ""
	}
	if len(cmd) > 1 {
		curTarget := 0
		for _, arg := range cmd[1:] {
			elems := strings.SplitN(arg, "=", 2)
			if len(elems) == 2 && setKeys[elems[0]] {
				continue
			}
			if curTarget >= len(targets) {
				overflow = append(overflow, arg)
			} else {
				*(targets[curTarget]) = arg
			}
			curTarget++
		}
	}
	return
}

package tiff

import (
	"path/filepath"
	"strings"
)

// Extensions lists the file extensions recognized as TIFF files.
var Extensions = []string{".tif", ".tiff"}

// HasExtension returns true if the path ends in a recognized TIFF extension.
func HasExtension(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// CanRead returns true if every path has a TIFF extension and its first frame
// can be parsed and decoded.
func CanRead(paths ...string) bool {
	if len(paths) == 0 {
		return false
	}
	for _, path := range paths {
		if !HasExtension(path) {
			return false
		}
		f, err := ReadFrame(path, 0)
		if err != nil {
			return false
		}
		if err := f.CheckSupported(); err != nil {
			return false
		}
	}
	return true
}

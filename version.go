package vstack

import (
	"fmt"

	"github.com/janelia-flyem/vstack/config"
	"github.com/janelia-flyem/vstack/tiff"
)

// Version is the release of this module.
const Version = "0.9.0"

// Versions returns compile-time version information.
func Versions() string {
	var text string = "\nCompile-time version information for this vstack executable:\n\n"
	writeLine := func(name, version string) {
		text += fmt.Sprintf("%-20s   %s\n", name, version)
	}
	writeLine("Name", "Version")
	writeLine("vstack", Version)
	writeLine("Config format", config.Version)
	writeLine("TIFF extensions", fmt.Sprint(tiff.Extensions))
	return text
}

// Command-line interface to stacked TIFF datasets.
// Provides inspection, region reads, statistics and export.

package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"runtime"
	"runtime/pprof"
	"strings"
	"syscall"

	"github.com/janelia-flyem/vstack/config"
	"github.com/janelia-flyem/vstack/voxel"
)

var (
	// Display usage if true.
	showHelp = flag.Bool("help", false, "")

	// Run in verbose mode if true.
	runVerbose = flag.Bool("verbose", false, "")

	// Path to TOML configuration file.
	configFile = flag.String("config", "", "")

	// Number of decoded z slices cached per dataset, overriding the configuration.
	cacheSlots = flag.Int("slots", 0, "")

	// Profile CPU usage using standard gotest system.
	cpuprofile = flag.String("cpuprofile", "", "")

	// Number of logical CPUs to use.
	useCPU = flag.Int("numcpu", 0, "")
)

const helpMessage = `
vstack gives typed, cached access to multi-channel voxel stacks stored as TIFF files

Usage: vstack [options] <command> <dataset...> [key=value...]

      -config     =string   TOML configuration file.
      -slots      =number   Number of decoded z slices cached per dataset.
      -cpuprofile =string   Write CPU profile to this file.
      -numcpu     =number   Number of logical CPUs to use.
      -verbose    (flag)    Run in verbose mode.
  -h, -help       (flag)    Show help message

A dataset is a manifest file (.json, .yaml, .yml) or a list of TIFF files forming
one channel in stack order.

Commands:

	about
	help
	info   <dataset...>
	read   <dataset...> [offset=x,y,z] [size=x,y,z] [kind=uint16] [out=path]
	stats  <dataset...> [offset=x,y,z] [size=x,y,z] [workers=n]
	export <dataset...> out=path [format=raw|snappy|tiff] [kind=...]
	       [offset=x,y,z] [size=x,y,z] [target=x,y,z] [workers=n]
	probe  <file...>
`

var usage = func() {
	fmt.Print(helpMessage)
}

func main() {
	flag.BoolVar(showHelp, "h", false, "Show help message")
	flag.Usage = usage
	flag.Parse()

	if flag.NArg() >= 1 && strings.ToLower(flag.Args()[0]) == "help" {
		*showHelp = true
	}
	if *showHelp || flag.NArg() == 0 {
		flag.Usage()
		os.Exit(0)
	}
	if *cpuprofile != "" {
		f, err := os.Create(*cpuprofile)
		if err != nil {
			log.Fatal(err)
		}
		pprof.StartCPUProfile(f)
		defer pprof.StopCPUProfile()
	}
	if *useCPU != 0 {
		runtime.GOMAXPROCS(*useCPU)
	}

	cfg := config.Default()
	if *configFile != "" {
		var err error
		if cfg, err = config.Load(*configFile); err != nil {
			fmt.Fprintln(os.Stderr, err.Error())
			os.Exit(1)
		}
	}
	if *cacheSlots > 0 {
		cfg.Cache.Slots = *cacheSlots
	}
	cfg.SetLogger()
	defer voxel.Shutdown()
	if *runVerbose {
		voxel.SetLogMode(voxel.DebugMode)
	}

	// Capture ctrl+c and other interrupts to abandon work in progress.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	command := voxel.Command(flag.Args())
	if err := DoCommand(ctx, cfg, command, os.Stdout); err != nil {
		fmt.Fprintln(os.Stderr, err.Error())
		stop()
		pprof.StopCPUProfile()
		voxel.Shutdown()
		os.Exit(1)
	}
}

package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"os"
	"time"

	"github.com/cheggaaa/pb"
	flag "github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/kennylevinsen/gocam/config"
	"github.com/kennylevinsen/gocam/export"
	"github.com/kennylevinsen/gocam/job"
	"github.com/kennylevinsen/gocam/optimize"
	"github.com/kennylevinsen/gocam/streaming"
)

var (
	settingsFile  = flag.String("settings", "", "Settings file (yaml)")
	device        = flag.String("device", "", "Serial device for CNC control")
	baud          = flag.Int("baud", 115200, "Serial baud rate")
	outputFile    = flag.String("output", "", "Location to dump generated gcode")
	dumpStdout    = flag.Bool("stdout", false, "Output to stdout")
	debugDump     = flag.Bool("debugdump", false, "Dump VM position state after optimization")
	verbose       = flag.BoolP("verbose", "v", false, "Log planning details")
	noOpt         = flag.Bool("noopt", false, "Disable all optimization")
	optVector     = flag.Float64("optvector", 0.001, "Merge straight moves deviating less than this (0 disables)")
	optLiftSpeed  = flag.Bool("optlifts", true, "Use rapid position for Z-only upwards moves")
	optDrillSpeed = flag.Bool("optdrill", true, "Use rapid position for drills to last drilled depth")
	optPrepTool   = flag.Bool("preparetool", false, "Preselect the next tool ahead of each change")
	feedLimit     = flag.Float64("feedlimit", -1, "Maximum feedrate")
	feedMultiply  = flag.Float64("feedmultiplier", 1, "Scale every feedrate by this factor")
	enforceReturn = flag.Bool("enforcereturn", true, "Enforce rapid return to X0 Y0 at the highest Z")
)

func usage() {
	fmt.Fprintf(os.Stderr, "Usage: %s [options] job.yaml\n", os.Args[0])
	flag.PrintDefaults()
}

func fail(code int, format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(code)
}

func progressBar(total int) *pb.ProgressBar {
	bar := pb.New(total)
	bar.Output = os.Stderr
	bar.Format("[=> ]")
	return bar.Start()
}

func main() {
	// Parse arguments
	config.Flags(flag.CommandLine)
	flag.Usage = usage
	flag.Parse()
	if flag.NArg() != 1 {
		usage()
		os.Exit(1)
	}

	if *outputFile == "" && *device == "" && !*dumpStdout && !*debugDump {
		fmt.Fprintf(os.Stderr, "Error: No output location provided\n")
		usage()
		os.Exit(1)
	}

	logger := log.New(io.Discard, "", 0)
	if *verbose {
		logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	settings, err := config.Load(viper.New(), *settingsFile, flag.CommandLine)
	if err != nil {
		fail(2, "%s", err)
	}

	widgets, err := job.Load(flag.Arg(0))
	if err != nil {
		fail(2, "Could not read job: %s", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	var streamer streaming.Streamer = &streaming.GrblStreamer{Logger: logger}

	signals := make(chan string, 1)
	registerSignals(signals)
	go func() {
		for range signals {
			fmt.Fprintf(os.Stderr, "\nStopping...\n")
			cancel()
			if *device != "" {
				streamer.Stop()
				os.Exit(7)
			}
		}
	}()

	// Plan
	bar := progressBar(len(widgets))
	m, err := job.Run(ctx, settings, widgets, logger, func(done, total int) {
		bar.Set(done)
	})
	bar.Finish()
	if errors.Is(err, context.Canceled) {
		os.Exit(7)
	} else if err != nil {
		fail(3, "Planning failed: %s", err)
	}

	// Optimize as requested
	if !*noOpt {
		if *optDrillSpeed {
			optimize.OptDrillSpeed(m, 0, true)
		}
		if *optVector > 0 {
			optimize.OptVector(m, *optVector)
		}
		if *optLiftSpeed {
			optimize.OptLiftSpeed(m)
		}
		if *optPrepTool {
			optimize.OptPrepareTool(m)
		}
	}

	// Apply requested modifications
	if *feedMultiply > 0 && *feedMultiply != 1 {
		m.FeedrateMultiplier(*feedMultiply)
	}
	if *feedLimit > 0 {
		m.LimitFeedrate(*feedLimit)
	}

	if *enforceReturn {
		m.Return()
	}

	// Handle VM output
	if *debugDump {
		m.Dump(os.Stderr)
	}

	output, err := export.Export(m, settings.Device.Dialect)
	if err != nil {
		fail(3, "Could not export vm state: %s", err)
	}
	precision := settings.Device.Precision

	if *dumpStdout {
		fmt.Println(output.Export(precision))
	}

	if *outputFile != "" {
		if err := os.WriteFile(*outputFile, []byte(output.Export(precision)+"\n"), 0644); err != nil {
			fail(2, "Could not write to file: %s", err)
		}
	}

	if *device != "" {
		startTime := time.Now()
		if err := streamer.Connect(*device, *baud); err != nil {
			fail(2, "Unable to connect to device: %s", err)
		}

		pBar := progressBar(output.Length())
		progress := make(chan int)
		result := make(chan error, 1)
		go func() {
			result <- streamer.Send(output, precision, progress)
		}()
		for n := range progress {
			pBar.Set(n)
		}
		pBar.Finish()

		if err := <-result; err != nil {
			streamer.Stop()
			fail(2, "Send failed: %s", err)
		}
		fmt.Fprintf(os.Stderr, "%s\n", time.Since(startTime))
	}
}

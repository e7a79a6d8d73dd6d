// Command process-frames reads a recording of sensor frames and writes each
// frame's point clouds, camera images and metadata to the output directory.
//
// Usage:
//
//	go run ./cmd/process-frames [flags]
//
// Flags:
//
//	-config   Path to a JSON, YAML or TOML config file
//	-input    Override input_path
//	-output   Override output_dir
//	-version  Print version and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/olala7846/car-data-visualization/internal/config"
	"github.com/olala7846/car-data-visualization/internal/fsutil"
	"github.com/olala7846/car-data-visualization/internal/monitoring"
	"github.com/olala7846/car-data-visualization/internal/pipeline"
	"github.com/olala7846/car-data-visualization/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON, YAML or TOML)")
	input := flag.String("input", "", "Recording to read (overrides input_path)")
	output := flag.String("output", "", "Output directory (overrides output_dir)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("process-frames", version.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "process-frames: %v\n", err)
		os.Exit(1)
	}
	if *input != "" {
		cfg.InputPath = *input
	}
	if *output != "" {
		cfg.OutputDir = *output
	}
	if err := monitoring.Configure(os.Stderr, cfg.Log.Level, cfg.Log.Console); err != nil {
		fmt.Fprintf(os.Stderr, "process-frames: %v\n", err)
		os.Exit(1)
	}
	log := monitoring.Component("pipeline")
	log.Info().Str("version", version.String()).Msg("process-frames starting")

	proc, err := pipeline.New(cfg, fsutil.OSFileSystem{}, log)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to build pipeline")
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	sum, err := proc.Run(ctx)
	if err != nil {
		log.Error().Err(err).Str("run_id", sum.RunID).Msg("run aborted")
		stop()
		os.Exit(1)
	}
	monitoring.Logf("processed %d frame(s), %d failed, %d artifact(s) in %s",
		sum.FramesProcessed, sum.FramesFailed, sum.Artifacts, sum.Elapsed)
	if sum.FramesFailed > 0 && sum.FramesProcessed == 0 {
		stop()
		os.Exit(2)
	}
}

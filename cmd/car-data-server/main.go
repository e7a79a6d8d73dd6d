// Command car-data-server exposes frames over the CarDataService ListFrames
// server-streaming call.
//
// Usage:
//
//	go run ./cmd/car-data-server [flags]
//
// Flags:
//
//	-config   Path to a JSON, YAML or TOML config file
//	-addr     Override stream.listen_addr
//	-version  Print version and exit
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/olala7846/car-data-visualization/internal/config"
	"github.com/olala7846/car-data-visualization/internal/fsutil"
	"github.com/olala7846/car-data-visualization/internal/monitoring"
	"github.com/olala7846/car-data-visualization/internal/recording"
	"github.com/olala7846/car-data-visualization/internal/stream"
	"github.com/olala7846/car-data-visualization/internal/version"
)

func main() {
	configPath := flag.String("config", "", "Path to config file (JSON, YAML or TOML)")
	addr := flag.String("addr", "", "Listen address (overrides stream.listen_addr)")
	showVersion := flag.Bool("version", false, "Print version and exit")
	flag.Parse()

	if *showVersion {
		fmt.Println("car-data-server", version.String())
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "car-data-server: %v\n", err)
		os.Exit(1)
	}
	if *addr != "" {
		cfg.Stream.ListenAddr = *addr
	}
	if err := monitoring.Configure(os.Stderr, cfg.Log.Level, cfg.Log.Console); err != nil {
		fmt.Fprintf(os.Stderr, "car-data-server: %v\n", err)
		os.Exit(1)
	}
	log := monitoring.Component("stream")

	source, err := newSource(cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to configure frame source")
	}
	svc := stream.NewService(cfg.Stream.ListenAddr, stream.NewServer(source, cfg.Stream.PoolSize, log), log)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := svc.Start(); err != nil {
			return err
		}
		log.Info().
			Str("version", version.String()).
			Str("source", cfg.Stream.Source).
			Int("pool_size", cfg.Stream.PoolSize).
			Msg("car-data-server ready")
		<-ctx.Done()
		log.Info().Msg("shutting down")
		svc.Stop()
		return nil
	})

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("server failed")
		stop()
		os.Exit(1)
	}
}

func newSource(cfg *config.Config) (stream.Source, error) {
	switch cfg.Stream.Source {
	case config.StreamSourceRecording:
		compression, err := recording.ParseCompression(cfg.InputCompression)
		if err != nil {
			return nil, err
		}
		return stream.RecordingSource{
			FS:      fsutil.OSFileSystem{},
			Path:    cfg.InputPath,
			Options: recording.ReaderOptions{Compression: compression, VerifyChecksums: cfg.VerifyChecksums},
			Logger:  monitoring.Component("recording"),
		}, nil
	default:
		return stream.PlaceholderSource{Count: cfg.Stream.PlaceholderFrames}, nil
	}
}

// Package pipeline drives frames from a recording through decode, projection,
// association and export. Frames are processed one at a time; a failure in
// one frame or one artifact is logged and does not stop the run.
package pipeline

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/olala7846/car-data-visualization/internal/association"
	"github.com/olala7846/car-data-visualization/internal/config"
	"github.com/olala7846/car-data-visualization/internal/export"
	"github.com/olala7846/car-data-visualization/internal/fsutil"
	"github.com/olala7846/car-data-visualization/internal/rangeimage"
	"github.com/olala7846/car-data-visualization/internal/recording"
	"github.com/olala7846/car-data-visualization/internal/timeutil"
	"github.com/olala7846/car-data-visualization/internal/waymo"
)

// Processor runs the per-frame pipeline for one configuration.
type Processor struct {
	cfg      config.Config
	fs       fsutil.FileSystem
	readOpts recording.ReaderOptions
	proj     *rangeimage.Projector
	exporter *export.Exporter
	clock    timeutil.Clock
	log      zerolog.Logger
}

// FrameResult is the outcome of processing one decoded frame.
type FrameResult struct {
	FrameID   string
	Artifacts []string
	Points    int
	// Errors holds projection and write failures; the frame's other
	// artifacts were still produced.
	Errors []error
}

// Summary describes a completed run.
type Summary struct {
	RunID           string
	StartedAt       time.Time
	RecordsRead     int
	FramesSkipped   int
	FramesProcessed int
	FramesFailed    int // records that did not decode
	Artifacts       int
	Points          int
	Errors          []error
	Elapsed         time.Duration
}

// New validates cfg and builds a Processor that reads and writes through fs.
func New(cfg *config.Config, fs fsutil.FileSystem, logger zerolog.Logger) (*Processor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	compression, err := recording.ParseCompression(cfg.InputCompression)
	if err != nil {
		return nil, err
	}

	returns := make([]waymo.ReturnIndex, 0, len(cfg.ExportReturns))
	for _, r := range cfg.ExportReturns {
		returns = append(returns, waymo.ReturnIndex(r))
	}

	return &Processor{
		cfg:      *cfg,
		fs:       fs,
		readOpts: recording.ReaderOptions{Compression: compression, VerifyChecksums: cfg.VerifyChecksums},
		proj:     rangeimage.NewProjector(rangeimage.Options{PixelPose: cfg.PixelPose}),
		exporter: export.New(fs, export.Options{
			OutputDir:           cfg.OutputDir,
			Color:               cfg.GetPointCloudColor(),
			PerFramePointClouds: cfg.PerFramePointClouds,
			Returns:             returns,
			PreviewMaxPoints:    cfg.Preview.MaxPoints,
		}),
		clock: timeutil.RealClock{},
		log:   logger,
	}, nil
}

// WithClock replaces the clock used to time runs.
func (p *Processor) WithClock(c timeutil.Clock) *Processor {
	p.clock = c
	return p
}

// Run processes the configured recording. It returns an error only when the
// recording itself cannot be read or ctx is cancelled; the summary is valid
// in every case.
func (p *Processor) Run(ctx context.Context) (Summary, error) {
	sum := Summary{RunID: uuid.NewString()}
	log := p.log.With().Str("run_id", sum.RunID).Logger()
	start := p.clock.Now()
	sum.StartedAt = start

	log.Info().
		Str("path", p.cfg.InputPath).
		Int("skip_frames", p.cfg.SkipFrames).
		Int("max_frames", p.cfg.MaxFrames).
		Msg("processing recording")

	seq := 0
	for rec, err := range recording.Records(p.fs, p.cfg.InputPath, p.readOpts) {
		if err != nil {
			log.Error().Err(err).Int("records", sum.RecordsRead).Msg("recording unreadable")
			sum.Elapsed = p.clock.Since(start)
			return sum, fmt.Errorf("read %s: %w", p.cfg.InputPath, err)
		}
		if err := ctx.Err(); err != nil {
			sum.Elapsed = p.clock.Since(start)
			return sum, err
		}

		idx := seq
		seq++
		sum.RecordsRead++
		if idx < p.cfg.SkipFrames {
			sum.FramesSkipped++
			continue
		}

		res, err := p.ProcessRecord(rec, idx)
		if err != nil {
			log.Warn().Err(err).Int("record", idx).Msg("frame failed to decode")
			sum.FramesFailed++
			sum.Errors = append(sum.Errors, err)
		} else {
			sum.FramesProcessed++
			sum.Artifacts += len(res.Artifacts)
			sum.Points += res.Points
			sum.Errors = append(sum.Errors, res.Errors...)
		}

		if p.cfg.MaxFrames > 0 && sum.FramesProcessed+sum.FramesFailed >= p.cfg.MaxFrames {
			break
		}
	}

	sum.Elapsed = p.clock.Since(start)
	log.Info().
		Int("records", sum.RecordsRead).
		Int("processed", sum.FramesProcessed).
		Int("failed", sum.FramesFailed).
		Int("artifacts", sum.Artifacts).
		Int("points", sum.Points).
		Int("errors", len(sum.Errors)).
		Dur("elapsed", sum.Elapsed).
		Msg("run complete")
	return sum, nil
}

// ProcessRecord decodes one record, naming it by seq when the configuration
// asks for sequence ids or the record has no context name, and processes it.
func (p *Processor) ProcessRecord(blob []byte, seq int) (FrameResult, error) {
	id := strconv.Itoa(seq)
	opt := waymo.WithFallbackFrameID(id)
	if p.cfg.FrameIDSource == config.FrameIDFromSequence {
		opt = waymo.WithFrameID(id)
	}
	frame, err := waymo.Decode(blob, opt)
	if err != nil {
		return FrameResult{FrameID: id}, err
	}
	return p.ProcessFrame(frame), nil
}

// ProcessFrame projects and exports every artifact of frame.
func (p *Processor) ProcessFrame(frame *waymo.Frame) FrameResult {
	set := association.Associate(frame, p.proj)
	res := FrameResult{FrameID: set.FrameID}
	log := p.log.With().Str("frame_id", res.FrameID).Logger()

	record := func(path string, err error) bool {
		if err != nil {
			log.Warn().Err(err).Str("path", path).Msg("artifact not written")
			res.Errors = append(res.Errors, err)
			return false
		}
		res.Artifacts = append(res.Artifacts, path)
		return true
	}

	for _, name := range set.LaserNames() {
		entry, _ := set.Laser(name)
		if entry.Err != nil {
			log.Warn().Err(entry.Err).Str("laser", name.String()).Msg("projection failed")
			res.Errors = append(res.Errors, entry.Err)
		}
		for _, ret := range p.exporter.Returns() {
			cloud, ok := entry.Cloud(ret)
			if !ok {
				continue
			}
			path, err := p.exporter.WritePointCloud(res.FrameID, cloud)
			if record(path, err) {
				res.Points += cloud.Len()
				log.Debug().
					Str("laser", name.String()).
					Stringer("return", ret).
					Int("points", cloud.Len()).
					Str("path", path).
					Msg("wrote point cloud")
			}
		}
	}

	for _, name := range set.CameraNames() {
		entry, _ := set.Camera(name)
		path, err := p.exporter.WriteImage(res.FrameID, name, entry.Image.Image)
		if record(path, err) {
			log.Debug().Str("camera", name.String()).Str("path", path).Msg("wrote image")
		}
	}

	record(p.exporter.WriteMetadata(frame))
	if p.cfg.Preview.Enabled {
		record(p.exporter.WritePreview(res.FrameID, set))
	}
	if p.cfg.Report.Enabled {
		record(p.exporter.WriteReport(res.FrameID, set))
	}

	log.Info().
		Int("lasers", len(set.LaserNames())).
		Int("cameras", len(set.CameraNames())).
		Int("points", res.Points).
		Int("artifacts", len(res.Artifacts)).
		Int("errors", len(res.Errors)).
		Msg("frame processed")
	return res
}

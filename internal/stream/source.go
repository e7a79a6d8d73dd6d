// Package stream serves frame descriptors over the cardata.CarDataService
// ListFrames server-streaming call.
package stream

import (
	"context"
	"iter"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/olala7846/car-data-visualization/internal/fsutil"
	"github.com/olala7846/car-data-visualization/internal/recording"
	"github.com/olala7846/car-data-visualization/internal/waymo"
)

// Descriptor summarises one frame of a stream.
type Descriptor struct {
	FrameID         int64
	ContextName     string
	TimestampMicros int64
	Lasers          int
	Cameras         int
	Labels          int
}

// DescribeFrame summarises a decoded frame under the given stream id.
func DescribeFrame(id int64, f *waymo.Frame) Descriptor {
	return Descriptor{
		FrameID:         id,
		ContextName:     f.ContextName(),
		TimestampMicros: f.TimestampMicros(),
		Lasers:          len(f.Lasers()),
		Cameras:         len(f.Cameras()),
		Labels:          len(f.Labels()),
	}
}

// Source produces the frames of one stream. Every call to Frames returns an
// independent, single-pass sequence that stops early once ctx is done.
type Source interface {
	Frames(ctx context.Context) iter.Seq2[Descriptor, error]
}

// PlaceholderSource yields Count synthetic frames with ids 0..Count-1.
type PlaceholderSource struct {
	Count int
}

func (s PlaceholderSource) Frames(ctx context.Context) iter.Seq2[Descriptor, error] {
	return func(yield func(Descriptor, error) bool) {
		for i := 0; i < s.Count; i++ {
			if ctx.Err() != nil {
				return
			}
			if !yield(Descriptor{FrameID: int64(i)}, nil) {
				return
			}
		}
	}
}

// RecordingSource yields one descriptor per decodable frame of a recording.
// The frame id is the record's index in the file. Frames that fail to decode
// are logged and skipped; a damaged container ends the sequence with an
// error.
type RecordingSource struct {
	FS      fsutil.FileSystem
	Path    string
	Options recording.ReaderOptions
	Logger  zerolog.Logger
}

func (s RecordingSource) Frames(ctx context.Context) iter.Seq2[Descriptor, error] {
	return func(yield func(Descriptor, error) bool) {
		var index int64
		for rec, err := range recording.Records(s.FS, s.Path, s.Options) {
			if err != nil {
				yield(Descriptor{}, err)
				return
			}
			if ctx.Err() != nil {
				return
			}
			id := index
			index++

			frame, err := waymo.Decode(rec, waymo.WithFallbackFrameID(strconv.FormatInt(id, 10)))
			if err != nil {
				s.Logger.Warn().Err(err).Int64("frame_id", id).Str("path", s.Path).Msg("skipping undecodable frame")
				continue
			}
			if !yield(DescribeFrame(id, frame), nil) {
				return
			}
		}
	}
}

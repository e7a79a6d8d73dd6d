package stream

import (
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/semaphore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/olala7846/car-data-visualization/internal/stream/cardatapb"
)

// Ensure Server implements the gRPC interface.
var _ cardatapb.CarDataServiceServer = (*Server)(nil)

// Server implements CarDataService. Each ListFrames call pulls its own
// sequence from the Source; at most poolSize calls are served at once and the
// rest wait for a slot.
type Server struct {
	cardatapb.UnimplementedCarDataServiceServer

	source Source
	pool   *semaphore.Weighted
	log    zerolog.Logger

	// Stats
	activeStreams atomic.Int32
	streamsServed atomic.Uint64
	framesSent    atomic.Uint64
}

// Stats is a snapshot of server counters.
type Stats struct {
	ActiveStreams int32
	StreamsServed uint64
	FramesSent    uint64
}

// NewServer creates a Server over source. poolSize < 1 is treated as 1.
func NewServer(source Source, poolSize int, logger zerolog.Logger) *Server {
	if poolSize < 1 {
		poolSize = 1
	}
	return &Server{
		source: source,
		pool:   semaphore.NewWeighted(int64(poolSize)),
		log:    logger,
	}
}

// Stats returns the current counters.
func (s *Server) Stats() Stats {
	return Stats{
		ActiveStreams: s.activeStreams.Load(),
		StreamsServed: s.streamsServed.Load(),
		FramesSent:    s.framesSent.Load(),
	}
}

// ListFrames streams frame descriptors until the source is exhausted,
// req.max_frames have been sent, or the caller goes away.
func (s *Server) ListFrames(req *cardatapb.ListFramesRequest, stream cardatapb.CarDataService_ListFramesServer) error {
	ctx := stream.Context()
	log := s.log.With().Str("stream_id", uuid.NewString()).Logger()

	if err := s.pool.Acquire(ctx, 1); err != nil {
		log.Debug().Err(err).Msg("caller left while waiting for a stream slot")
		return status.FromContextError(err).Err()
	}
	defer s.pool.Release(1)

	s.activeStreams.Add(1)
	defer s.activeStreams.Add(-1)

	limit := int(req.GetMaxFrames())
	start := time.Now()
	log.Info().Int("max_frames", limit).Msg("ListFrames started")

	sent := 0
	for d, err := range s.source.Frames(ctx) {
		if err != nil {
			log.Error().Err(err).Int("sent", sent).Msg("frame source failed")
			return status.Errorf(codes.Internal, "read frames: %v", err)
		}
		if err := ctx.Err(); err != nil {
			log.Info().Int("sent", sent).Msg("ListFrames cancelled")
			return status.FromContextError(err).Err()
		}
		if err := stream.Send(toProto(d)); err != nil {
			log.Info().Err(err).Int("sent", sent).Msg("send failed")
			return err
		}
		sent++
		s.framesSent.Add(1)
		if limit > 0 && sent >= limit {
			break
		}
	}
	if err := ctx.Err(); err != nil {
		log.Info().Int("sent", sent).Msg("ListFrames cancelled")
		return status.FromContextError(err).Err()
	}

	s.streamsServed.Add(1)
	log.Info().Int("sent", sent).Dur("elapsed", time.Since(start)).Msg("ListFrames completed")
	return nil
}

func toProto(d Descriptor) *cardatapb.SingleFrame {
	return cardatapb.NewSingleFrame().
		SetFrameId(d.FrameID).
		SetContextName(d.ContextName).
		SetTimestampMicros(d.TimestampMicros).
		SetLaserCount(int32(d.Lasers)).
		SetCameraCount(int32(d.Cameras)).
		SetLabelCount(int32(d.Labels))
}

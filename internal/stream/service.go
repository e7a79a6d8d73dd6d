package stream

import (
	"fmt"
	"net"
	"sync"
	"sync/atomic"

	"github.com/rs/zerolog"
	"google.golang.org/grpc"

	"github.com/olala7846/car-data-visualization/internal/stream/cardatapb"
)

// maxMsgSize matches the client default with headroom for large descriptors.
const maxMsgSize = 16 * 1024 * 1024

// Service owns the listener and gRPC server that expose a Server. There is no
// TLS or authentication.
type Service struct {
	listenAddr string
	srv        *Server
	log        zerolog.Logger

	server   *grpc.Server
	listener net.Listener

	running atomic.Bool
	wg      sync.WaitGroup
}

// NewService creates a Service that will listen on listenAddr.
func NewService(listenAddr string, srv *Server, logger zerolog.Logger) *Service {
	return &Service{listenAddr: listenAddr, srv: srv, log: logger}
}

// Start binds the configured address and serves in the background.
func (s *Service) Start() error {
	if s.running.Load() {
		return fmt.Errorf("stream service already running")
	}
	lis, err := net.Listen("tcp", s.listenAddr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", s.listenAddr, err)
	}
	return s.Serve(lis)
}

// Serve serves on an existing listener in the background. The Service takes
// ownership of lis and closes it if the service is already running.
func (s *Service) Serve(lis net.Listener) error {
	if !s.running.CompareAndSwap(false, true) {
		lis.Close()
		return fmt.Errorf("stream service already running")
	}
	s.listener = lis
	s.server = grpc.NewServer(
		grpc.MaxRecvMsgSize(maxMsgSize),
		grpc.MaxSendMsgSize(maxMsgSize),
	)
	cardatapb.RegisterCarDataServiceServer(s.server, s.srv)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		s.log.Info().Str("addr", lis.Addr().String()).Msg("gRPC server listening")
		if err := s.server.Serve(lis); err != nil && s.running.Load() {
			s.log.Error().Err(err).Msg("gRPC server error")
		}
	}()
	return nil
}

// Addr returns the bound address, or nil before Start.
func (s *Service) Addr() net.Addr {
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Stop gracefully stops the gRPC server and waits for in-flight streams.
func (s *Service) Stop() {
	if !s.running.CompareAndSwap(true, false) {
		return
	}
	if s.server != nil {
		s.server.GracefulStop()
	}
	if s.listener != nil {
		s.listener.Close()
	}
	s.wg.Wait()
	st := s.srv.Stats()
	s.log.Info().Uint64("streams", st.StreamsServed).Uint64("frames", st.FramesSent).Msg("gRPC server stopped")
}

package stream

import (
	"bytes"
	"context"
	"errors"
	"iter"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/olala7846/car-data-visualization/internal/fsutil"
	"github.com/olala7846/car-data-visualization/internal/recording"
	"github.com/olala7846/car-data-visualization/internal/stream/cardatapb"
	"github.com/olala7846/car-data-visualization/internal/testutil"
	"github.com/olala7846/car-data-visualization/internal/waymo"
)

type mockListFramesStream struct {
	ctx  context.Context
	send func(*cardatapb.SingleFrame) error
}

func (m *mockListFramesStream) Send(frame *cardatapb.SingleFrame) error {
	return m.send(frame)
}

func (m *mockListFramesStream) Context() context.Context {
	return m.ctx
}

func (m *mockListFramesStream) SetHeader(md metadata.MD) error  { return nil }
func (m *mockListFramesStream) SendHeader(md metadata.MD) error { return nil }
func (m *mockListFramesStream) SetTrailer(md metadata.MD)       {}
func (m *mockListFramesStream) SendMsg(msg interface{}) error   { return nil }
func (m *mockListFramesStream) RecvMsg(msg interface{}) error   { return nil }

func collect(ctx context.Context, t *testing.T, srv *Server, maxFrames int32) ([]int64, error) {
	t.Helper()
	var ids []int64
	stream := &mockListFramesStream{
		ctx: ctx,
		send: func(f *cardatapb.SingleFrame) error {
			ids = append(ids, f.GetFrameId())
			return nil
		},
	}
	err := srv.ListFrames(cardatapb.NewListFramesRequest().SetMaxFrames(maxFrames), stream)
	return ids, err
}

func TestPlaceholderSource_Sequence(t *testing.T) {
	var ids []int64
	for d, err := range (PlaceholderSource{Count: 10}).Frames(context.Background()) {
		require.NoError(t, err)
		ids = append(ids, d.FrameID)
	}
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, ids)
}

func TestPlaceholderSource_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	n := 0
	for range (PlaceholderSource{Count: 1000}).Frames(ctx) {
		n++
		if n == 3 {
			cancel()
		}
	}
	assert.Equal(t, 3, n)
}

func TestServer_ListFrames(t *testing.T) {
	srv := NewServer(PlaceholderSource{Count: 10}, 2, zerolog.Nop())

	ids, err := collect(context.Background(), t, srv, 0)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2, 3, 4, 5, 6, 7, 8, 9}, ids)

	st := srv.Stats()
	assert.Equal(t, uint64(1), st.StreamsServed)
	assert.Equal(t, uint64(10), st.FramesSent)
	assert.Equal(t, int32(0), st.ActiveStreams)
}

func TestServer_MaxFrames(t *testing.T) {
	srv := NewServer(PlaceholderSource{Count: 10}, 1, zerolog.Nop())

	ids, err := collect(context.Background(), t, srv, 3)
	require.NoError(t, err)
	assert.Equal(t, []int64{0, 1, 2}, ids)

	ids, err = collect(context.Background(), t, srv, 50)
	require.NoError(t, err)
	assert.Len(t, ids, 10)
}

func TestServer_SendErrorStopsStream(t *testing.T) {
	srv := NewServer(PlaceholderSource{Count: 10}, 1, zerolog.Nop())
	sendErr := errors.New("transport closed")
	calls := 0
	stream := &mockListFramesStream{
		ctx: context.Background(),
		send: func(*cardatapb.SingleFrame) error {
			calls++
			if calls == 4 {
				return sendErr
			}
			return nil
		},
	}

	err := srv.ListFrames(cardatapb.NewListFramesRequest(), stream)
	assert.ErrorIs(t, err, sendErr)
	assert.Equal(t, 4, calls)
	assert.Equal(t, uint64(0), srv.Stats().StreamsServed)
}

func TestServer_CancelledContext(t *testing.T) {
	srv := NewServer(PlaceholderSource{Count: 10}, 1, zerolog.Nop())
	ctx, cancel := context.WithCancel(context.Background())

	var ids []int64
	stream := &mockListFramesStream{
		ctx: ctx,
		send: func(f *cardatapb.SingleFrame) error {
			ids = append(ids, f.GetFrameId())
			if len(ids) == 2 {
				cancel()
			}
			return nil
		},
	}

	err := srv.ListFrames(cardatapb.NewListFramesRequest(), stream)
	assert.Equal(t, codes.Canceled, status.Code(err))
	assert.Equal(t, []int64{0, 1}, ids)
}

type failingSource struct{}

func (failingSource) Frames(context.Context) iter.Seq2[Descriptor, error] {
	return func(yield func(Descriptor, error) bool) {
		if !yield(Descriptor{FrameID: 0}, nil) {
			return
		}
		yield(Descriptor{}, errors.New("disk gone"))
	}
}

func TestServer_SourceError(t *testing.T) {
	srv := NewServer(failingSource{}, 1, zerolog.Nop())

	ids, err := collect(context.Background(), t, srv, 0)
	assert.Equal(t, []int64{0}, ids)
	assert.Equal(t, codes.Internal, status.Code(err))
	assert.Contains(t, err.Error(), "disk gone")
}

func writeRecording(t *testing.T, mem *fsutil.MemoryFileSystem, path string, records ...[]byte) {
	t.Helper()
	var buf bytes.Buffer
	w, err := recording.NewWriter(&buf, recording.CompressionNone)
	require.NoError(t, err)
	for _, r := range records {
		require.NoError(t, w.Write(r))
	}
	require.NoError(t, w.Close())
	require.NoError(t, mem.MkdirAll("/data", 0755))
	require.NoError(t, mem.WriteFile(path, buf.Bytes(), 0644))
}

func TestRecordingSource(t *testing.T) {
	mem := fsutil.NewMemoryFileSystem()
	good := waymo.Encode(testutil.SyntheticFrame(t, "segment-a"))
	writeRecording(t, mem, "/data/rec.tfrecord", good, []byte{0x0a, 0x05, 0x01}, good)

	src := RecordingSource{FS: mem, Path: "/data/rec.tfrecord", Options: recording.ReaderOptions{VerifyChecksums: true}, Logger: zerolog.Nop()}

	var got []Descriptor
	for d, err := range src.Frames(context.Background()) {
		require.NoError(t, err)
		got = append(got, d)
	}

	require.Len(t, got, 2, "undecodable record must be skipped")
	assert.Equal(t, int64(0), got[0].FrameID)
	assert.Equal(t, int64(2), got[1].FrameID)
	assert.Equal(t, "segment-a", got[0].ContextName)
	assert.Equal(t, len(waymo.LaserNames()), got[0].Lasers)
	assert.Equal(t, 2, got[0].Cameras)
	assert.Equal(t, 2, got[0].Labels)
}

func TestRecordingSource_MissingFile(t *testing.T) {
	src := RecordingSource{FS: fsutil.NewMemoryFileSystem(), Path: "/none", Logger: zerolog.Nop()}
	srv := NewServer(src, 1, zerolog.Nop())

	_, err := collect(context.Background(), t, srv, 0)
	assert.Equal(t, codes.Internal, status.Code(err))
}

package cardatapb

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/protobuf/proto"
)

func TestDescriptor(t *testing.T) {
	fd := FileDescriptor()
	assert.Equal(t, "cardata", string(fd.Package()))

	svc := fd.Services().ByName("CarDataService")
	require.NotNil(t, svc)
	m := svc.Methods().ByName("ListFrames")
	require.NotNil(t, m)
	assert.True(t, m.IsStreamingServer())
	assert.False(t, m.IsStreamingClient())
	assert.Equal(t, ServiceName, string(svc.FullName()))
}

func TestSingleFrame_WireRoundTrip(t *testing.T) {
	in := NewSingleFrame().
		SetFrameId(7).
		SetContextName("segment-1").
		SetTimestampMicros(1_550_083_467_346_370).
		SetLaserCount(5).
		SetCameraCount(5).
		SetLabelCount(42)

	b, err := proto.Marshal(in)
	require.NoError(t, err)

	out := NewSingleFrame()
	require.NoError(t, proto.Unmarshal(b, out))

	assert.Equal(t, int64(7), out.GetFrameId())
	assert.Equal(t, "segment-1", out.GetContextName())
	assert.Equal(t, int64(1_550_083_467_346_370), out.GetTimestampMicros())
	assert.Equal(t, int32(5), out.GetLaserCount())
	assert.Equal(t, int32(5), out.GetCameraCount())
	assert.Equal(t, int32(42), out.GetLabelCount())
}

func TestSingleFrame_FrameIDFieldNumber(t *testing.T) {
	b, err := proto.Marshal(NewSingleFrame().SetFrameId(3))
	require.NoError(t, err)
	// tag 1, varint, value 3
	assert.Equal(t, []byte{0x08, 0x03}, b)
}

func TestListFramesRequest(t *testing.T) {
	b, err := proto.Marshal(NewListFramesRequest().SetMaxFrames(4))
	require.NoError(t, err)

	req := NewListFramesRequest()
	require.NoError(t, proto.Unmarshal(b, req))
	assert.Equal(t, int32(4), req.GetMaxFrames())

	var nilReq *ListFramesRequest
	assert.Equal(t, int32(0), nilReq.GetMaxFrames())
}

package cardatapb

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// CarDataServiceClient is the client API for CarDataService.
type CarDataServiceClient interface {
	ListFrames(ctx context.Context, in *ListFramesRequest, opts ...grpc.CallOption) (CarDataService_ListFramesClient, error)
}

type carDataServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewCarDataServiceClient wraps a connection.
func NewCarDataServiceClient(cc grpc.ClientConnInterface) CarDataServiceClient {
	return &carDataServiceClient{cc}
}

func (c *carDataServiceClient) ListFrames(ctx context.Context, in *ListFramesRequest, opts ...grpc.CallOption) (CarDataService_ListFramesClient, error) {
	stream, err := c.cc.NewStream(ctx, &CarDataService_ServiceDesc.Streams[0], ListFramesFullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &carDataServiceListFramesClient{stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// CarDataService_ListFramesClient receives the frames of one ListFrames call.
type CarDataService_ListFramesClient interface {
	Recv() (*SingleFrame, error)
	grpc.ClientStream
}

type carDataServiceListFramesClient struct {
	grpc.ClientStream
}

func (x *carDataServiceListFramesClient) Recv() (*SingleFrame, error) {
	m := NewSingleFrame()
	if err := x.ClientStream.RecvMsg(m); err != nil {
		return nil, err
	}
	return m, nil
}

// CarDataServiceServer is the server API for CarDataService.
type CarDataServiceServer interface {
	ListFrames(*ListFramesRequest, CarDataService_ListFramesServer) error
}

// UnimplementedCarDataServiceServer can be embedded for forward compatibility.
type UnimplementedCarDataServiceServer struct{}

func (UnimplementedCarDataServiceServer) ListFrames(*ListFramesRequest, CarDataService_ListFramesServer) error {
	return status.Errorf(codes.Unimplemented, "method ListFrames not implemented")
}

// RegisterCarDataServiceServer registers srv on s.
func RegisterCarDataServiceServer(s grpc.ServiceRegistrar, srv CarDataServiceServer) {
	s.RegisterService(&CarDataService_ServiceDesc, srv)
}

func _CarDataService_ListFrames_Handler(srv interface{}, stream grpc.ServerStream) error {
	m := NewListFramesRequest()
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(CarDataServiceServer).ListFrames(m, &carDataServiceListFramesServer{stream})
}

// CarDataService_ListFramesServer sends the frames of one ListFrames call.
type CarDataService_ListFramesServer interface {
	Send(*SingleFrame) error
	grpc.ServerStream
}

type carDataServiceListFramesServer struct {
	grpc.ServerStream
}

func (x *carDataServiceListFramesServer) Send(m *SingleFrame) error {
	return x.ServerStream.SendMsg(m)
}

// CarDataService_ServiceDesc is the grpc.ServiceDesc for CarDataService.
var CarDataService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*CarDataServiceServer)(nil),
	Methods:     []grpc.MethodDesc{},
	Streams: []grpc.StreamDesc{
		{
			StreamName:    "ListFrames",
			Handler:       _CarDataService_ListFrames_Handler,
			ServerStreams: true,
		},
	},
	Metadata: protoFile,
}

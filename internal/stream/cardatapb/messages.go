// Package cardatapb holds the wire types of the cardata.CarDataService gRPC
// service described by proto/cardata/car_data_service.proto. Messages are
// backed by dynamicpb over a descriptor built at init, so they marshal with
// the standard protobuf codec.
package cardatapb

import (
	"fmt"

	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/reflect/protodesc"
	"google.golang.org/protobuf/reflect/protoreflect"
	"google.golang.org/protobuf/reflect/protoregistry"
	"google.golang.org/protobuf/types/descriptorpb"
	"google.golang.org/protobuf/types/dynamicpb"
)

const (
	protoFile   = "car_data_service.proto"
	protoPkg    = "cardata"
	ServiceName = "cardata.CarDataService"

	ListFramesFullMethodName = "/cardata.CarDataService/ListFrames"
)

var (
	fileDesc        protoreflect.FileDescriptor
	listFramesDesc  protoreflect.MessageDescriptor
	singleFrameDesc protoreflect.MessageDescriptor
)

func scalarField(name string, num int32, typ descriptorpb.FieldDescriptorProto_Type, jsonName string) *descriptorpb.FieldDescriptorProto {
	return &descriptorpb.FieldDescriptorProto{
		Name:     proto.String(name),
		Number:   proto.Int32(num),
		Label:    descriptorpb.FieldDescriptorProto_LABEL_OPTIONAL.Enum(),
		Type:     typ.Enum(),
		JsonName: proto.String(jsonName),
	}
}

func init() {
	fdp := &descriptorpb.FileDescriptorProto{
		Name:    proto.String(protoFile),
		Package: proto.String(protoPkg),
		Syntax:  proto.String("proto3"),
		MessageType: []*descriptorpb.DescriptorProto{
			{
				Name: proto.String("ListFramesRequest"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("max_frames", 1, descriptorpb.FieldDescriptorProto_TYPE_INT32, "maxFrames"),
				},
			},
			{
				Name: proto.String("SingleFrame"),
				Field: []*descriptorpb.FieldDescriptorProto{
					scalarField("frame_id", 1, descriptorpb.FieldDescriptorProto_TYPE_INT64, "frameId"),
					scalarField("context_name", 2, descriptorpb.FieldDescriptorProto_TYPE_STRING, "contextName"),
					scalarField("timestamp_micros", 3, descriptorpb.FieldDescriptorProto_TYPE_INT64, "timestampMicros"),
					scalarField("laser_count", 4, descriptorpb.FieldDescriptorProto_TYPE_INT32, "laserCount"),
					scalarField("camera_count", 5, descriptorpb.FieldDescriptorProto_TYPE_INT32, "cameraCount"),
					scalarField("label_count", 6, descriptorpb.FieldDescriptorProto_TYPE_INT32, "labelCount"),
				},
			},
		},
		Service: []*descriptorpb.ServiceDescriptorProto{
			{
				Name: proto.String("CarDataService"),
				Method: []*descriptorpb.MethodDescriptorProto{
					{
						Name:            proto.String("ListFrames"),
						InputType:       proto.String(".cardata.ListFramesRequest"),
						OutputType:      proto.String(".cardata.SingleFrame"),
						ServerStreaming: proto.Bool(true),
					},
				},
			},
		},
	}

	fd, err := protodesc.NewFile(fdp, new(protoregistry.Files))
	if err != nil {
		panic(fmt.Sprintf("cardatapb: build descriptor: %v", err))
	}
	fileDesc = fd
	listFramesDesc = fd.Messages().ByName("ListFramesRequest")
	singleFrameDesc = fd.Messages().ByName("SingleFrame")
}

// FileDescriptor returns the descriptor of car_data_service.proto.
func FileDescriptor() protoreflect.FileDescriptor { return fileDesc }

func getInt(m *dynamicpb.Message, name protoreflect.Name) int64 {
	if m == nil {
		return 0
	}
	return m.Get(m.Descriptor().Fields().ByName(name)).Int()
}

func setInt32(m *dynamicpb.Message, name protoreflect.Name, v int32) {
	m.Set(m.Descriptor().Fields().ByName(name), protoreflect.ValueOfInt32(v))
}

func setInt64(m *dynamicpb.Message, name protoreflect.Name, v int64) {
	m.Set(m.Descriptor().Fields().ByName(name), protoreflect.ValueOfInt64(v))
}

// ListFramesRequest asks for a stream of frames. MaxFrames <= 0 means the
// whole sequence.
type ListFramesRequest struct {
	msg *dynamicpb.Message
}

// NewListFramesRequest returns an empty request.
func NewListFramesRequest() *ListFramesRequest {
	return &ListFramesRequest{msg: dynamicpb.NewMessage(listFramesDesc)}
}

func (x *ListFramesRequest) ProtoReflect() protoreflect.Message { return x.msg }

func (x *ListFramesRequest) GetMaxFrames() int32 {
	if x == nil {
		return 0
	}
	return int32(getInt(x.msg, "max_frames"))
}

func (x *ListFramesRequest) SetMaxFrames(v int32) *ListFramesRequest {
	setInt32(x.msg, "max_frames", v)
	return x
}

// SingleFrame describes one frame of the stream.
type SingleFrame struct {
	msg *dynamicpb.Message
}

// NewSingleFrame returns an empty frame descriptor.
func NewSingleFrame() *SingleFrame {
	return &SingleFrame{msg: dynamicpb.NewMessage(singleFrameDesc)}
}

func (x *SingleFrame) ProtoReflect() protoreflect.Message { return x.msg }

func (x *SingleFrame) GetFrameId() int64 {
	if x == nil {
		return 0
	}
	return getInt(x.msg, "frame_id")
}

func (x *SingleFrame) GetContextName() string {
	if x == nil {
		return ""
	}
	return x.msg.Get(singleFrameDesc.Fields().ByName("context_name")).String()
}

func (x *SingleFrame) GetTimestampMicros() int64 {
	if x == nil {
		return 0
	}
	return getInt(x.msg, "timestamp_micros")
}

func (x *SingleFrame) GetLaserCount() int32 {
	if x == nil {
		return 0
	}
	return int32(getInt(x.msg, "laser_count"))
}

func (x *SingleFrame) GetCameraCount() int32 {
	if x == nil {
		return 0
	}
	return int32(getInt(x.msg, "camera_count"))
}

func (x *SingleFrame) GetLabelCount() int32 {
	if x == nil {
		return 0
	}
	return int32(getInt(x.msg, "label_count"))
}

func (x *SingleFrame) SetFrameId(v int64) *SingleFrame {
	setInt64(x.msg, "frame_id", v)
	return x
}

func (x *SingleFrame) SetContextName(v string) *SingleFrame {
	x.msg.Set(singleFrameDesc.Fields().ByName("context_name"), protoreflect.ValueOfString(v))
	return x
}

func (x *SingleFrame) SetTimestampMicros(v int64) *SingleFrame {
	setInt64(x.msg, "timestamp_micros", v)
	return x
}

func (x *SingleFrame) SetLaserCount(v int32) *SingleFrame {
	setInt32(x.msg, "laser_count", v)
	return x
}

func (x *SingleFrame) SetCameraCount(v int32) *SingleFrame {
	setInt32(x.msg, "camera_count", v)
	return x
}

func (x *SingleFrame) SetLabelCount(v int32) *SingleFrame {
	setInt32(x.msg, "label_count", v)
	return x
}

package api

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ControlLoopServiceName is the fully qualified gRPC service name.
const ControlLoopServiceName = "aegis.v1.ControlLoop"

const (
	methodIngestEvents = "/" + ControlLoopServiceName + "/IngestEvents"
	methodGetStats     = "/" + ControlLoopServiceName + "/GetStats"
	methodHeal         = "/" + ControlLoopServiceName + "/Heal"
	methodControl      = "/" + ControlLoopServiceName + "/Control"
)

// ControlLoopServer is the server API of the ControlLoop service. Requests and
// responses are JSON-shaped structs; see the payload types in this package.
type ControlLoopServer interface {
	IngestEvents(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	Heal(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Control(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedControlLoopServer can be embedded for forward compatibility.
type UnimplementedControlLoopServer struct{}

func (UnimplementedControlLoopServer) IngestEvents(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method IngestEvents not implemented")
}

func (UnimplementedControlLoopServer) GetStats(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method GetStats not implemented")
}

func (UnimplementedControlLoopServer) Heal(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Heal not implemented")
}

func (UnimplementedControlLoopServer) Control(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method Control not implemented")
}

// RegisterControlLoopServer attaches srv to a gRPC registrar.
func RegisterControlLoopServer(s grpc.ServiceRegistrar, srv ControlLoopServer) {
	s.RegisterService(&ControlLoopServiceDesc, srv)
}

// ControlLoopServiceDesc describes the ControlLoop service.
var ControlLoopServiceDesc = grpc.ServiceDesc{
	ServiceName: ControlLoopServiceName,
	HandlerType: (*ControlLoopServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "IngestEvents", Handler: structHandler(methodIngestEvents, ControlLoopServer.IngestEvents)},
		{MethodName: "GetStats", Handler: getStatsHandler},
		{MethodName: "Heal", Handler: structHandler(methodHeal, ControlLoopServer.Heal)},
		{MethodName: "Control", Handler: structHandler(methodControl, ControlLoopServer.Control)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "aegis/v1/control_loop.proto",
}

type structMethod func(ControlLoopServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func structHandler(fullMethod string, call structMethod) func(interface{}, context.Context, func(interface{}) error, grpc.UnaryServerInterceptor) (interface{}, error) {
	return func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(ControlLoopServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req interface{}) (interface{}, error) {
			return call(srv.(ControlLoopServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func getStatsHandler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlLoopServer).GetStats(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetStats}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlLoopServer).GetStats(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

// ControlLoopClient is the client API of the ControlLoop service.
type ControlLoopClient struct {
	cc grpc.ClientConnInterface
}

// NewControlLoopClient wraps a client connection.
func NewControlLoopClient(cc grpc.ClientConnInterface) *ControlLoopClient {
	return &ControlLoopClient{cc: cc}
}

// IngestEvents submits a batch.
func (c *ControlLoopClient) IngestEvents(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodIngestEvents, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetStats fetches the process counters.
func (c *ControlLoopClient) GetStats(ctx context.Context, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetStats, &emptypb.Empty{}, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Heal requests a manual remediation.
func (c *ControlLoopClient) Heal(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodHeal, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Control runs an operator control operation.
func (c *ControlLoopClient) Control(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodControl, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

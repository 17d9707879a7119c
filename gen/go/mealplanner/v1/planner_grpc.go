// Package mealplannerv1 holds the gRPC contract of the meal planner backend.
//
// The service is described by hand rather than generated: every message is a
// well-known type (google.protobuf.Struct or google.protobuf.Empty), so there
// is no .proto schema to compile. The layout mirrors protoc-gen-go-grpc output.
package mealplannerv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "mealplanner.v1.Planner"

const (
	Planner_SignUp_FullMethodName               = "/mealplanner.v1.Planner/SignUp"
	Planner_SignIn_FullMethodName               = "/mealplanner.v1.Planner/SignIn"
	Planner_SignOut_FullMethodName              = "/mealplanner.v1.Planner/SignOut"
	Planner_Me_FullMethodName                   = "/mealplanner.v1.Planner/Me"
	Planner_RequestPasswordReset_FullMethodName = "/mealplanner.v1.Planner/RequestPasswordReset"
	Planner_ConfirmPasswordReset_FullMethodName = "/mealplanner.v1.Planner/ConfirmPasswordReset"
	Planner_ChangePassword_FullMethodName       = "/mealplanner.v1.Planner/ChangePassword"
	Planner_CreateDocument_FullMethodName       = "/mealplanner.v1.Planner/CreateDocument"
	Planner_UpdateDocument_FullMethodName       = "/mealplanner.v1.Planner/UpdateDocument"
	Planner_DeleteDocument_FullMethodName       = "/mealplanner.v1.Planner/DeleteDocument"
	Planner_Watch_FullMethodName                = "/mealplanner.v1.Planner/Watch"
)

// PlannerClient is the client API for the Planner service.
type PlannerClient interface {
	SignUp(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SignIn(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	SignOut(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error)
	Me(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error)
	RequestPasswordReset(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	ConfirmPasswordReset(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	ChangePassword(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error)
	CreateDocument(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	UpdateDocument(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	DeleteDocument(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Watch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error)
}

type plannerClient struct {
	cc grpc.ClientConnInterface
}

// NewPlannerClient wraps a connection.
func NewPlannerClient(cc grpc.ClientConnInterface) PlannerClient {
	return &plannerClient{cc}
}

func invoke[Req, Resp proto.Message](ctx context.Context, cc grpc.ClientConnInterface, method string, in Req, out Resp, opts []grpc.CallOption) (Resp, error) {
	if err := cc.Invoke(ctx, method, in, out, opts...); err != nil {
		var zero Resp
		return zero, err
	}
	return out, nil
}

func (c *plannerClient) SignUp(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, Planner_SignUp_FullMethodName, in, new(structpb.Struct), opts)
}

func (c *plannerClient) SignIn(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, Planner_SignIn_FullMethodName, in, new(structpb.Struct), opts)
}

func (c *plannerClient) SignOut(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke(ctx, c.cc, Planner_SignOut_FullMethodName, in, new(emptypb.Empty), opts)
}

func (c *plannerClient) Me(ctx context.Context, in *emptypb.Empty, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, Planner_Me_FullMethodName, in, new(structpb.Struct), opts)
}

func (c *plannerClient) RequestPasswordReset(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke(ctx, c.cc, Planner_RequestPasswordReset_FullMethodName, in, new(emptypb.Empty), opts)
}

func (c *plannerClient) ConfirmPasswordReset(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke(ctx, c.cc, Planner_ConfirmPasswordReset_FullMethodName, in, new(emptypb.Empty), opts)
}

func (c *plannerClient) ChangePassword(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*emptypb.Empty, error) {
	return invoke(ctx, c.cc, Planner_ChangePassword_FullMethodName, in, new(emptypb.Empty), opts)
}

func (c *plannerClient) CreateDocument(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, Planner_CreateDocument_FullMethodName, in, new(structpb.Struct), opts)
}

func (c *plannerClient) UpdateDocument(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, Planner_UpdateDocument_FullMethodName, in, new(structpb.Struct), opts)
}

func (c *plannerClient) DeleteDocument(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return invoke(ctx, c.cc, Planner_DeleteDocument_FullMethodName, in, new(structpb.Struct), opts)
}

func (c *plannerClient) Watch(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (grpc.ServerStreamingClient[structpb.Struct], error) {
	stream, err := c.cc.NewStream(ctx, &Planner_ServiceDesc.Streams[0], Planner_Watch_FullMethodName, opts...)
	if err != nil {
		return nil, err
	}
	x := &grpc.GenericClientStream[structpb.Struct, structpb.Struct]{ClientStream: stream}
	if err := x.ClientStream.SendMsg(in); err != nil {
		return nil, err
	}
	if err := x.ClientStream.CloseSend(); err != nil {
		return nil, err
	}
	return x, nil
}

// PlannerServer is the server API for the Planner service.
type PlannerServer interface {
	SignUp(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignIn(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SignOut(context.Context, *emptypb.Empty) (*emptypb.Empty, error)
	Me(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	RequestPasswordReset(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	ConfirmPasswordReset(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	ChangePassword(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	CreateDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	UpdateDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteDocument(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Watch(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error
}

// UnimplementedPlannerServer can be embedded to get forward-compatible
// implementations.
type UnimplementedPlannerServer struct{}

func unimplemented(m string) error { return status.Errorf(codes.Unimplemented, "method %s not implemented", m) }

func (UnimplementedPlannerServer) SignUp(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("SignUp")
}
func (UnimplementedPlannerServer) SignIn(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("SignIn")
}
func (UnimplementedPlannerServer) SignOut(context.Context, *emptypb.Empty) (*emptypb.Empty, error) {
	return nil, unimplemented("SignOut")
}
func (UnimplementedPlannerServer) Me(context.Context, *emptypb.Empty) (*structpb.Struct, error) {
	return nil, unimplemented("Me")
}
func (UnimplementedPlannerServer) RequestPasswordReset(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, unimplemented("RequestPasswordReset")
}
func (UnimplementedPlannerServer) ConfirmPasswordReset(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, unimplemented("ConfirmPasswordReset")
}
func (UnimplementedPlannerServer) ChangePassword(context.Context, *structpb.Struct) (*emptypb.Empty, error) {
	return nil, unimplemented("ChangePassword")
}
func (UnimplementedPlannerServer) CreateDocument(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("CreateDocument")
}
func (UnimplementedPlannerServer) UpdateDocument(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("UpdateDocument")
}
func (UnimplementedPlannerServer) DeleteDocument(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, unimplemented("DeleteDocument")
}
func (UnimplementedPlannerServer) Watch(*structpb.Struct, grpc.ServerStreamingServer[structpb.Struct]) error {
	return unimplemented("Watch")
}

// RegisterPlannerServer registers srv on s.
func RegisterPlannerServer(s grpc.ServiceRegistrar, srv PlannerServer) {
	s.RegisterService(&Planner_ServiceDesc, srv)
}

// unaryHandler adapts a typed method to grpc.MethodHandler.
func unaryHandler[Req, Resp proto.Message](
	fullMethod string, newReq func() Req, call func(PlannerServer, context.Context, Req) (Resp, error),
) func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := newReq()
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(PlannerServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(PlannerServer), ctx, req.(Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

func newStruct() *structpb.Struct { return new(structpb.Struct) }
func newEmpty() *emptypb.Empty    { return new(emptypb.Empty) }

func _Planner_Watch_Handler(srv any, stream grpc.ServerStream) error {
	m := new(structpb.Struct)
	if err := stream.RecvMsg(m); err != nil {
		return err
	}
	return srv.(PlannerServer).Watch(m, &grpc.GenericServerStream[structpb.Struct, structpb.Struct]{ServerStream: stream})
}

// Planner_ServiceDesc is the grpc.ServiceDesc for the Planner service.
var Planner_ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*PlannerServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "SignUp", Handler: unaryHandler(Planner_SignUp_FullMethodName, newStruct, PlannerServer.SignUp)},
		{MethodName: "SignIn", Handler: unaryHandler(Planner_SignIn_FullMethodName, newStruct, PlannerServer.SignIn)},
		{MethodName: "SignOut", Handler: unaryHandler(Planner_SignOut_FullMethodName, newEmpty, PlannerServer.SignOut)},
		{MethodName: "Me", Handler: unaryHandler(Planner_Me_FullMethodName, newEmpty, PlannerServer.Me)},
		{MethodName: "RequestPasswordReset", Handler: unaryHandler(Planner_RequestPasswordReset_FullMethodName, newStruct, PlannerServer.RequestPasswordReset)},
		{MethodName: "ConfirmPasswordReset", Handler: unaryHandler(Planner_ConfirmPasswordReset_FullMethodName, newStruct, PlannerServer.ConfirmPasswordReset)},
		{MethodName: "ChangePassword", Handler: unaryHandler(Planner_ChangePassword_FullMethodName, newStruct, PlannerServer.ChangePassword)},
		{MethodName: "CreateDocument", Handler: unaryHandler(Planner_CreateDocument_FullMethodName, newStruct, PlannerServer.CreateDocument)},
		{MethodName: "UpdateDocument", Handler: unaryHandler(Planner_UpdateDocument_FullMethodName, newStruct, PlannerServer.UpdateDocument)},
		{MethodName: "DeleteDocument", Handler: unaryHandler(Planner_DeleteDocument_FullMethodName, newStruct, PlannerServer.DeleteDocument)},
	},
	Streams: []grpc.StreamDesc{
		{StreamName: "Watch", Handler: _Planner_Watch_Handler, ServerStreams: true},
	},
	Metadata: "mealplanner/v1/planner",
}

package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "lifecycle.v1.LifecycleService"

// LifecycleServer is the server API. Messages are google.protobuf.Struct so
// gateways can call the service without generated stubs.
type LifecycleServer interface {
	GetApplicationView(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RequestTransition(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type rpc func(LifecycleServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call rpc) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(LifecycleServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: "/" + ServiceName + "/" + method}
			return interceptor(ctx, in, info, func(ctx context.Context, req any) (any, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes LifecycleService for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*LifecycleServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("GetApplicationView", LifecycleServer.GetApplicationView),
		unary("RequestTransition", LifecycleServer.RequestTransition),
		unary("Submit", LifecycleServer.Submit),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "lifecycle/v1/lifecycle.proto",
}

// Client calls LifecycleService over conn.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient returns a Client on conn.
func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

func (c *Client) invoke(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// GetApplicationView calls the RPC of the same name.
func (c *Client) GetApplicationView(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "GetApplicationView", in, opts...)
}

// RequestTransition calls the RPC of the same name.
func (c *Client) RequestTransition(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "RequestTransition", in, opts...)
}

// Submit calls the RPC of the same name.
func (c *Client) Submit(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Submit", in, opts...)
}

package grpc

import (
	"context"

	"github.com/dmitrijs2005/credengine/internal/common"
	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

// Method names of the credential service.
const (
	MethodPing            = "Ping"
	MethodVerify          = "Verify"
	MethodChangePassword  = "ChangePassword"
	MethodSetPassword     = "SetPassword"
	MethodGetPolicy       = "GetPolicy"
	MethodSetPolicy       = "SetPolicy"
	MethodGetGlobalPolicy = "GetGlobalPolicy"
	MethodSetGlobalPolicy = "SetGlobalPolicy"
	MethodEnableAccount   = "EnableAccount"
	MethodSetAuthority    = "SetAuthority"
	MethodReadSecret      = "ReadSecret"
	MethodWriteSecret     = "WriteSecret"
)

// FullMethod returns the gRPC path of a method.
func FullMethod(method string) string {
	return "/" + common.DefaultServiceName + "/" + method
}

// CredentialServiceServer is implemented by GRPCServer. Every method
// exchanges a google.protobuf.Struct.
type CredentialServiceServer interface {
	Ping(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Verify(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ChangePassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetPassword(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetPolicy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetPolicy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetGlobalPolicy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetGlobalPolicy(context.Context, *structpb.Struct) (*structpb.Struct, error)
	EnableAccount(context.Context, *structpb.Struct) (*structpb.Struct, error)
	SetAuthority(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ReadSecret(context.Context, *structpb.Struct) (*structpb.Struct, error)
	WriteSecret(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(CredentialServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(method string, call unaryMethod) grpc.MethodDesc {
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			s := srv.(CredentialServiceServer)
			if interceptor == nil {
				return call(s, ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: FullMethod(method)}
			return interceptor(ctx, in, info, func(ctx context.Context, req interface{}) (interface{}, error) {
				return call(s, ctx, req.(*structpb.Struct))
			})
		},
	}
}

// ServiceDesc describes the credential service for grpc.Server.RegisterService.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: common.DefaultServiceName,
	HandlerType: (*CredentialServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		unaryHandler(MethodPing, CredentialServiceServer.Ping),
		unaryHandler(MethodVerify, CredentialServiceServer.Verify),
		unaryHandler(MethodChangePassword, CredentialServiceServer.ChangePassword),
		unaryHandler(MethodSetPassword, CredentialServiceServer.SetPassword),
		unaryHandler(MethodGetPolicy, CredentialServiceServer.GetPolicy),
		unaryHandler(MethodSetPolicy, CredentialServiceServer.SetPolicy),
		unaryHandler(MethodGetGlobalPolicy, CredentialServiceServer.GetGlobalPolicy),
		unaryHandler(MethodSetGlobalPolicy, CredentialServiceServer.SetGlobalPolicy),
		unaryHandler(MethodEnableAccount, CredentialServiceServer.EnableAccount),
		unaryHandler(MethodSetAuthority, CredentialServiceServer.SetAuthority),
		unaryHandler(MethodReadSecret, CredentialServiceServer.ReadSecret),
		unaryHandler(MethodWriteSecret, CredentialServiceServer.WriteSecret),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "credengine/v1/credential.proto",
}

// Client calls the credential service over conn.
type Client struct {
	conn grpc.ClientConnInterface
}

func NewClient(conn grpc.ClientConnInterface) *Client {
	return &Client{conn: conn}
}

// Call invokes method with the request fields in req.
func (c *Client) Call(ctx context.Context, method string, req map[string]any, opts ...grpc.CallOption) (*structpb.Struct, error) {
	in, err := structpb.NewStruct(req)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

// Package portalv1 holds the portal.v1.AccessService contract. Messages are the
// well-known protobuf types so no code generation step is needed: requests are
// StringValue and responses are Struct documents with the fields listed below.
//
// ValidateToken response: valid, user{id,email,firstName,lastName,role,status,emailVerified},
// issuedAt, expiresAt, validatedAt, error{code,message}.
//
// CheckAccess response: resource, hasAccess, reason, checkedAt.
package portalv1

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
	"google.golang.org/protobuf/types/known/wrapperspb"
)

const (
	ServiceName = "portal.v1.AccessService"

	ValidateTokenMethod = "/" + ServiceName + "/ValidateToken"
	CheckAccessMethod   = "/" + ServiceName + "/CheckAccess"
)

// AccessServiceServer is the server API for portal.v1.AccessService.
type AccessServiceServer interface {
	// ValidateToken verifies the access token carried in the request value.
	ValidateToken(ctx context.Context, token *wrapperspb.StringValue) (*structpb.Struct, error)
	// CheckAccess answers for the caller authenticated through the authorization metadata.
	CheckAccess(ctx context.Context, resource *wrapperspb.StringValue) (*structpb.Struct, error)
}

// RegisterAccessServiceServer registers srv on s.
func RegisterAccessServiceServer(s grpc.ServiceRegistrar, srv AccessServiceServer) {
	s.RegisterService(&AccessServiceDesc, srv)
}

// AccessServiceDesc describes portal.v1.AccessService for grpc.Server registration.
var AccessServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AccessServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "ValidateToken", Handler: validateTokenHandler},
		{MethodName: "CheckAccess", Handler: checkAccessHandler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "portal/v1/access.proto",
}

func validateTokenHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AccessServiceServer).ValidateToken(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: ValidateTokenMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AccessServiceServer).ValidateToken(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

func checkAccessHandler(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
	in := new(wrapperspb.StringValue)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(AccessServiceServer).CheckAccess(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: CheckAccessMethod}
	handler := func(ctx context.Context, req any) (any, error) {
		return srv.(AccessServiceServer).CheckAccess(ctx, req.(*wrapperspb.StringValue))
	}
	return interceptor(ctx, in, info, handler)
}

// AccessServiceClient is the client API for portal.v1.AccessService.
type AccessServiceClient interface {
	ValidateToken(ctx context.Context, token *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
	CheckAccess(ctx context.Context, resource *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type accessServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewAccessServiceClient wraps a connection.
func NewAccessServiceClient(cc grpc.ClientConnInterface) AccessServiceClient {
	return &accessServiceClient{cc: cc}
}

func (c *accessServiceClient) ValidateToken(ctx context.Context, token *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, ValidateTokenMethod, token, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *accessServiceClient) CheckAccess(ctx context.Context, resource *wrapperspb.StringValue, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, CheckAccessMethod, resource, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

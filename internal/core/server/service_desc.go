package server

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"
)

/*
 * formkeeper.v1.FormService wire contract.
 *
 * Every method takes and returns a google.protobuf.Struct whose fields are
 * the JSON encoding of the matching api request/response type, so specs and
 * snapshots (open-ended JSON values) cross the wire without a schema per
 * form. The descriptor is written by hand; there is no .proto to generate
 * from.
 *
 *   PutSpec       api.PutSpecRequest      -> api.PutSpecResponse
 *   GetSpec       {form_id, revision_id}  -> api.SpecRevision
 *   ListSpecs     {limit}                 -> {specs, etag}
 *   ListRevisions {form_id, limit}        -> {revisions}
 *   DeleteForm    {form_id}               -> {}
 *   Resolve       api.ResolveRequest      -> api.ResolveResponse
 *   ResolveDelta  api.ResolveDeltaRequest -> api.ResolveDeltaResponse
 */

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "formkeeper.v1.FormService"

// FormServiceServer is the server API of formkeeper.v1.FormService.
type FormServiceServer interface {
	PutSpec(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GetSpec(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListSpecs(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRevisions(context.Context, *structpb.Struct) (*structpb.Struct, error)
	DeleteForm(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Resolve(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ResolveDelta(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

type unaryMethod func(FormServiceServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a FormServiceServer method to grpc.MethodHandler,
// running it through the server's interceptor chain.
func unaryHandler(name string, call unaryMethod) grpc.MethodHandler {
	fullMethod := "/" + ServiceName + "/" + name
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(FormServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(FormServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// FormServiceDesc describes formkeeper.v1.FormService for grpc.RegisterService.
var FormServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*FormServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PutSpec", Handler: unaryHandler("PutSpec", FormServiceServer.PutSpec)},
		{MethodName: "GetSpec", Handler: unaryHandler("GetSpec", FormServiceServer.GetSpec)},
		{MethodName: "ListSpecs", Handler: unaryHandler("ListSpecs", FormServiceServer.ListSpecs)},
		{MethodName: "ListRevisions", Handler: unaryHandler("ListRevisions", FormServiceServer.ListRevisions)},
		{MethodName: "DeleteForm", Handler: unaryHandler("DeleteForm", FormServiceServer.DeleteForm)},
		{MethodName: "Resolve", Handler: unaryHandler("Resolve", FormServiceServer.Resolve)},
		{MethodName: "ResolveDelta", Handler: unaryHandler("ResolveDelta", FormServiceServer.ResolveDelta)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "formkeeper/v1/form_service.proto",
}

// FormServiceClient calls formkeeper.v1.FormService.
type FormServiceClient struct {
	cc grpc.ClientConnInterface
}

// NewFormServiceClient creates a client over an established connection.
func NewFormServiceClient(cc grpc.ClientConnInterface) *FormServiceClient {
	return &FormServiceClient{cc: cc}
}

// Call invokes method with in and returns the response struct.
func (c *FormServiceClient) Call(ctx context.Context, method string, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+ServiceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

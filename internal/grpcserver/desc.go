package grpcserver

import (
	"context"

	"google.golang.org/grpc"
)

const serviceName = "cardhub.CatalogService"

// ServiceDesc is written by hand in the shape protoc-gen-go-grpc emits.
var ServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*CatalogServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Query", Handler: unary(func(s CatalogServer, ctx context.Context, req *QueryRequest) (any, error) {
			return s.Query(ctx, req)
		})},
		{MethodName: "Stats", Handler: unary(func(s CatalogServer, ctx context.Context, req *StatsRequest) (any, error) {
			return s.Stats(ctx, req)
		})},
		{MethodName: "Diagnostics", Handler: unary(func(s CatalogServer, ctx context.Context, req *DiagnosticsRequest) (any, error) {
			return s.Diagnostics(ctx, req)
		})},
		{MethodName: "Reload", Handler: unary(func(s CatalogServer, ctx context.Context, req *ReloadRequest) (any, error) {
			return s.Reload(ctx, req)
		})},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "cardhub/catalog.json",
}

// FullMethod returns the wire name of a method, e.g. "/cardhub.CatalogService/Query".
func FullMethod(method string) string {
	return "/" + serviceName + "/" + method
}

func unary[Req any](call func(CatalogServer, context.Context, *Req) (any, error)) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(Req)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(CatalogServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{Server: srv}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(CatalogServer), ctx, req.(*Req))
		}
		return interceptor(ctx, in, info, handler)
	}
}

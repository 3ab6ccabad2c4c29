package grpc

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/oauth2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials"
	"google.golang.org/grpc/credentials/oauth"
	"google.golang.org/grpc/metadata"

	"github.com/panyam/authlink"
)

// UnaryClientInterceptor returns a gRPC unary client interceptor that runs
// every call through the auth pipeline. Extra stages run after the auth stage.
// A call that cannot be authenticated goes out without credentials and the
// server's Unauthenticated status reaches the caller unchanged.
func UnaryClientInterceptor(auth *authlink.AuthInterceptor, extra ...authlink.Interceptor) grpc.UnaryClientInterceptor {
	stages := append([]authlink.Interceptor{auth.Intercept}, extra...)

	return func(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
		send := authlink.Chain(func(ctx context.Context, op *authlink.Operation) error {
			return invoker(withHeaderMetadata(ctx, op.Header), method, req, reply, cc, opts...)
		}, stages...)

		return send(ctx, authlink.NewOperation(method, req))
	}
}

// StreamClientInterceptor returns a gRPC stream client interceptor. The token
// is attached once, when the stream is opened.
func StreamClientInterceptor(auth *authlink.AuthInterceptor, extra ...authlink.Interceptor) grpc.StreamClientInterceptor {
	stages := append([]authlink.Interceptor{auth.Intercept}, extra...)

	return func(ctx context.Context, desc *grpc.StreamDesc, cc *grpc.ClientConn, method string, streamer grpc.Streamer, opts ...grpc.CallOption) (grpc.ClientStream, error) {
		var stream grpc.ClientStream
		send := authlink.Chain(func(ctx context.Context, op *authlink.Operation) error {
			var err error
			stream, err = streamer(withHeaderMetadata(ctx, op.Header), desc, cc, method, opts...)
			return err
		}, stages...)

		if err := send(ctx, authlink.NewOperation(method, desc)); err != nil {
			return nil, err
		}
		return stream, nil
	}
}

// DialOptions returns the options that install both interceptors.
func DialOptions(auth *authlink.AuthInterceptor) []grpc.DialOption {
	return []grpc.DialOption{
		grpc.WithChainUnaryInterceptor(UnaryClientInterceptor(auth)),
		grpc.WithChainStreamInterceptor(StreamClientInterceptor(auth)),
	}
}

// PerRPCCredentials wraps an oauth2.TokenSource (see the authlink oauth2
// package) as gRPC per-RPC credentials. Unlike the interceptors, a call fails
// if no token can be obtained. gRPC only sends these over TLS.
func PerRPCCredentials(src oauth2.TokenSource) credentials.PerRPCCredentials {
	return oauth.TokenSource{TokenSource: src}
}

// withHeaderMetadata copies pipeline headers into outgoing metadata.
// gRPC metadata keys are lower case.
func withHeaderMetadata(ctx context.Context, header http.Header) context.Context {
	if len(header) == 0 {
		return ctx
	}
	kv := make([]string, 0, 2*len(header))
	for k, values := range header {
		for _, v := range values {
			kv = append(kv, strings.ToLower(k), v)
		}
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}

// Package grpc adapts the authlink pipeline to gRPC clients: interceptors that
// attach the access token as request metadata, and helpers for reading it back
// on the server side.
package grpc

import (
	"context"
	"strings"

	"google.golang.org/grpc/metadata"
)

const (
	// DefaultMetadataKeyAuthorization is the gRPC metadata key carrying the access token
	DefaultMetadataKeyAuthorization = "authorization"

	// DefaultScheme prefixes the token in the metadata value
	DefaultScheme = "Bearer"
)

// BearerToOutgoingContext adds "authorization: Bearer <token>" to outgoing
// metadata. An empty token leaves ctx unchanged.
func BearerToOutgoingContext(ctx context.Context, token string) context.Context {
	if token == "" {
		return ctx
	}
	return metadata.AppendToOutgoingContext(ctx, DefaultMetadataKeyAuthorization, DefaultScheme+" "+token)
}

// TokenFromIncomingContext returns the bearer token in incoming metadata, or
// "" if there is none.
func TokenFromIncomingContext(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	return bearerToken(md.Get(DefaultMetadataKeyAuthorization))
}

// TokenFromOutgoingContext returns the bearer token already attached to
// outgoing metadata, or "".
func TokenFromOutgoingContext(ctx context.Context) string {
	md, ok := metadata.FromOutgoingContext(ctx)
	if !ok {
		return ""
	}
	return bearerToken(md.Get(DefaultMetadataKeyAuthorization))
}

func bearerToken(values []string) string {
	for _, v := range values {
		scheme, token, found := strings.Cut(v, " ")
		if found && strings.EqualFold(scheme, DefaultScheme) && token != "" {
			return token
		}
	}
	return ""
}

package client

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/panyam/authlink"
)

// RequestIDHeader is the header set by RequestIDInterceptor
const RequestIDHeader = "X-Request-ID"

// RequestIDInterceptor tags every operation with a fresh request id unless
// the caller already set one. Install it with WithInterceptors.
func RequestIDInterceptor() authlink.Interceptor {
	return func(ctx context.Context, op *authlink.Operation, next authlink.Invoker) error {
		if req, ok := op.Payload.(*http.Request); ok && req.Header.Get(RequestIDHeader) != "" {
			return next(ctx, op)
		}
		if op.Header == nil {
			op.Header = make(http.Header)
		}
		if op.Header.Get(RequestIDHeader) == "" {
			op.Header.Set(RequestIDHeader, uuid.New().String())
		}
		return next(ctx, op)
	}
}

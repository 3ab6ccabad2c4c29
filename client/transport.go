package client

import (
	"context"
	"net/http"

	"github.com/panyam/authlink"
)

// Transport is an http.RoundTripper that runs every request through an
// interceptor pipeline and sends it with Base.
type Transport struct {
	Base         http.RoundTripper
	Interceptors []authlink.Interceptor
}

// NewTransport creates a Transport. A nil base uses http.DefaultTransport.
func NewTransport(base http.RoundTripper, interceptors ...authlink.Interceptor) *Transport {
	return &Transport{
		Base:         base,
		Interceptors: interceptors,
	}
}

// RoundTrip implements http.RoundTripper
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.Base
	if base == nil {
		base = http.DefaultTransport
	}

	var resp *http.Response
	send := authlink.Chain(func(ctx context.Context, op *authlink.Operation) error {
		out := req
		if len(op.Header) > 0 {
			// Clone the request to avoid mutating the original
			out = req.Clone(ctx)
			for k, v := range op.Header {
				out.Header[k] = append([]string(nil), v...)
			}
		}
		var err error
		resp, err = base.RoundTrip(out)
		return err
	}, t.Interceptors...)

	op := authlink.NewOperation(req.Method+" "+req.URL.Path, req)
	if err := send(req.Context(), op); err != nil {
		return nil, err
	}
	return resp, nil
}

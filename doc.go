// Package authlink implements the client side of bearer-token authentication
// against a server that keeps a long-lived refresh credential in an HTTP-only
// cookie and hands out short-lived access tokens.
//
// # Architecture
//
// TokenStore: holds the current access token. It is never persisted; the
// refresh cookie is what survives restarts.
//
// Validator: decodes a token's claims (without verifying the signature) and
// classifies it as absent, valid, expired or malformed.
//
// RefreshGateway: one network exchange of the refresh cookie for a new access
// token. HTTPRefreshGateway POSTs to /refresh_token.
//
// Coordinator: allows at most one refresh in flight. Every operation that
// needs a token while a refresh is running waits for that refresh and sees its
// outcome.
//
// AuthInterceptor: a pipeline stage that attaches "Authorization: Bearer ..."
// to each outgoing operation, refreshing first if needed. If no token can be
// had the operation is sent unauthenticated and the server's rejection reaches
// the caller.
//
// Bootstrap: the one silent refresh run at startup, reporting Loading until it
// finishes and Ready after, whatever the outcome.
//
// # Basic Usage
//
// Most applications use the client package, which wires a Session into an
// http.Client:
//
//	c := client.NewAuthClient("http://localhost:5000")
//	c.Bootstrap(ctx)
//	if !c.Session().IsAuthenticated() {
//	    // show the login form
//	}
//	resp, err := c.HTTPClient().Get("http://localhost:5000/api/todos")
//
// A Session can also be built directly around any RefreshGateway and used with
// a custom transport through Chain:
//
//	session := authlink.NewSession(authlink.Config{}, gateway, nil)
//	send := authlink.Chain(transport, session.Interceptor().Intercept)
//	err := send(ctx, authlink.NewOperation("todos.list", payload))
//
// The grpc and oauth2 packages adapt the same session to gRPC client
// interceptors and to oauth2.TokenSource.
//
// # Errors
//
// Refresh failures are *RefreshError values. Match them with errors.Is
// against ErrNetworkFailure (transient), ErrRefreshRejected (log in again)
// and ErrMalformedResponse.
package authlink

package authlink

import (
	"context"
	"log/slog"
	"net/http"
)

// Operation is one outgoing protected request on its way through the pipeline.
type Operation struct {
	// Name identifies the operation in logs, e.g. "POST /graphql" or a gRPC method.
	Name string

	// Payload is the transport-specific request. The pipeline never inspects it.
	Payload any

	// Header collects the headers the pipeline adds before the transport
	// stage sends the operation.
	Header http.Header
}

// NewOperation creates an operation with an empty header set.
func NewOperation(name string, payload any) *Operation {
	return &Operation{Name: name, Payload: payload, Header: make(http.Header)}
}

// Invoker runs the rest of the pipeline for an operation.
type Invoker func(ctx context.Context, op *Operation) error

// Interceptor is one pipeline stage. It may change op and must call next to
// forward it.
type Interceptor func(ctx context.Context, op *Operation, next Invoker) error

// Chain builds a pipeline where interceptors run in the given order and final
// is the transport stage.
func Chain(final Invoker, interceptors ...Interceptor) Invoker {
	next := final
	for i := len(interceptors) - 1; i >= 0; i-- {
		stage, rest := interceptors[i], next
		next = func(ctx context.Context, op *Operation) error {
			return stage(ctx, op, rest)
		}
	}
	return next
}

// TokenProvider returns a usable access token, refreshing if needed.
// *Coordinator implements it.
type TokenProvider interface {
	EnsureValidToken(ctx context.Context) (string, error)
}

// AuthInterceptor attaches the access token to outgoing operations. When no
// token can be obtained the operation goes out unauthenticated and the server's
// answer reaches the caller as a normal operation failure.
type AuthInterceptor struct {
	store     TokenStore
	validator *Validator
	provider  TokenProvider
	header    string
	scheme    string
	logger    *slog.Logger
}

// NewAuthInterceptor creates an interceptor. Header, scheme and logger come
// from cfg.
func NewAuthInterceptor(store TokenStore, validator *Validator, provider TokenProvider, cfg Config) *AuthInterceptor {
	cfg.EnsureReasonableDefaults()
	if validator == nil {
		validator = NewValidator(cfg.Now)
	}
	return &AuthInterceptor{
		store:     store,
		validator: validator,
		provider:  provider,
		header:    cfg.AuthHeader,
		scheme:    cfg.AuthScheme,
		logger:    cfg.Logger,
	}
}

// Token returns the token to attach, or "" to send unauthenticated. It never
// fails.
func (a *AuthInterceptor) Token(ctx context.Context) string {
	// fast path: no coordination when the stored token is usable
	token := a.store.Get()
	if a.validator.Classify(token) == TokenValid {
		return token
	}

	token, err := a.provider.EnsureValidToken(ctx)
	if err != nil {
		a.logger.Warn("sending request unauthenticated", "error", err)
		return ""
	}
	return token
}

// HeaderValue formats token for the credential header.
func (a *AuthInterceptor) HeaderValue(token string) string {
	if a.scheme == "" {
		return token
	}
	return a.scheme + " " + token
}

// HeaderName returns the name of the credential header.
func (a *AuthInterceptor) HeaderName() string {
	return a.header
}

// Intercept is the Interceptor stage.
func (a *AuthInterceptor) Intercept(ctx context.Context, op *Operation, next Invoker) error {
	if token := a.Token(ctx); token != "" {
		if op.Header == nil {
			op.Header = make(http.Header)
		}
		op.Header.Set(a.header, a.HeaderValue(token))
	} else {
		a.logger.Debug("no credential attached", "operation", op.Name)
	}
	return next(ctx, op)
}

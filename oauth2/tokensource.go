// Package oauth2 adapts an authlink session to golang.org/x/oauth2, so code
// written against oauth2.TokenSource or oauth2.Transport can share the
// session's token store and refresh coordination.
package oauth2

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/panyam/authlink"
)

// ErrNoToken is returned when the provider has no token to give.
var ErrNoToken = errors.New("no access token available")

type tokenSource struct {
	ctx       context.Context
	provider  authlink.TokenProvider
	validator *authlink.Validator
}

// TokenSource returns an oauth2.TokenSource backed by provider. Each Token
// call goes through provider, so concurrent callers share a single refresh.
// The token's Expiry is read from its exp claim.
//
// Unlike authlink.AuthInterceptor, a failed refresh is an error here, and
// oauth2.Transport fails the request.
func TokenSource(ctx context.Context, provider authlink.TokenProvider, validator *authlink.Validator) oauth2.TokenSource {
	if validator == nil {
		validator = authlink.NewValidator(nil)
	}
	return &tokenSource{ctx: ctx, provider: provider, validator: validator}
}

// SessionTokenSource returns a TokenSource over the session's coordinator.
func SessionTokenSource(ctx context.Context, session *authlink.Session) oauth2.TokenSource {
	return TokenSource(ctx, session.Coordinator(), session.Validator())
}

// Token implements oauth2.TokenSource
func (s *tokenSource) Token() (*oauth2.Token, error) {
	token, err := s.provider.EnsureValidToken(s.ctx)
	if err != nil {
		return nil, err
	}
	if token == "" {
		return nil, ErrNoToken
	}
	return &oauth2.Token{
		AccessToken: token,
		TokenType:   authlink.DefaultAuthScheme,
		Expiry:      s.validator.ExpiresAt(token),
	}, nil
}

// NewClient returns an HTTP client that authenticates with the session's
// tokens through oauth2.Transport. If ctx carries an *http.Client under
// oauth2.HTTPClient, its transport is the base, as with oauth2.NewClient.
//
// The source is not wrapped in oauth2.ReuseTokenSource: the session store is
// the cache, so a cleared or replaced token takes effect on the next request.
func NewClient(ctx context.Context, session *authlink.Session) *http.Client {
	var base http.RoundTripper
	if hc, ok := ctx.Value(oauth2.HTTPClient).(*http.Client); ok && hc != nil {
		base = hc.Transport
	}
	return &http.Client{
		Transport: &oauth2.Transport{
			Source: SessionTokenSource(ctx, session),
			Base:   base,
		},
	}
}

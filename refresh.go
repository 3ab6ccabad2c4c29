package authlink

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
)

// maxRefreshBody caps how much of a refresh response is read.
const maxRefreshBody = 1 << 20

// RefreshGateway exchanges the ambient refresh credential for a new access
// token. Implementations make exactly one attempt and return a *RefreshError
// on failure. Retry policy belongs to the caller.
type RefreshGateway interface {
	Refresh(ctx context.Context) (string, error)
}

// RefreshGatewayFunc adapts a function to a RefreshGateway.
type RefreshGatewayFunc func(ctx context.Context) (string, error)

// Refresh calls f(ctx)
func (f RefreshGatewayFunc) Refresh(ctx context.Context) (string, error) {
	return f(ctx)
}

// RefreshResponse is the body returned by the refresh endpoint. Both the
// {ok, accessToken} shape and an OAuth2 token response are understood.
type RefreshResponse struct {
	OK               *bool  `json:"ok,omitempty"`
	AccessToken      string `json:"accessToken,omitempty"`
	OAuthAccessToken string `json:"access_token,omitempty"`
	Error            string `json:"error,omitempty"`
	ErrorDesc        string `json:"error_description,omitempty"`
}

// Token returns whichever token field the server filled in.
func (r *RefreshResponse) Token() string {
	if r.AccessToken != "" {
		return r.AccessToken
	}
	return r.OAuthAccessToken
}

// HTTPRefreshGateway POSTs to the refresh endpoint with no body. The refresh
// credential is a cookie, so HTTPClient must carry a cookie jar holding it;
// the gateway never touches the cookie itself.
//
// HTTPClient must not route through the auth pipeline, or a refresh would
// trigger itself.
type HTTPRefreshGateway struct {
	URL        string
	HTTPClient *http.Client
}

// NewHTTPRefreshGateway creates a gateway for refreshURL.
func NewHTTPRefreshGateway(refreshURL string, httpClient *http.Client) *HTTPRefreshGateway {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &HTTPRefreshGateway{URL: refreshURL, HTTPClient: httpClient}
}

// Refresh performs one refresh exchange.
func (g *HTTPRefreshGateway) Refresh(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.URL, nil)
	if err != nil {
		return "", &RefreshError{Kind: NetworkFailure, Err: fmt.Errorf("failed to build refresh request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")

	resp, err := g.HTTPClient.Do(req)
	if err != nil {
		return "", &RefreshError{Kind: NetworkFailure, Err: fmt.Errorf("failed to connect to server: %w", err)}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRefreshBody))
	if err != nil {
		return "", &RefreshError{Kind: NetworkFailure, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if kind, failed := classifyStatus(resp.StatusCode); failed {
		return "", &RefreshError{Kind: kind, StatusCode: resp.StatusCode, Err: describeBody(body)}
	}

	var out RefreshResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return "", &RefreshError{Kind: MalformedResponse, StatusCode: resp.StatusCode, Err: fmt.Errorf("invalid response from server: %w", err)}
	}

	switch {
	case out.Error != "":
		return "", &RefreshError{Kind: Rejected, StatusCode: resp.StatusCode, Err: out.asError()}
	case out.OK != nil && !*out.OK:
		return "", &RefreshError{Kind: Rejected, StatusCode: resp.StatusCode}
	case out.Token() != "":
		return out.Token(), nil
	case out.OK != nil:
		// ok:true with no token
		return "", &RefreshError{Kind: Rejected, StatusCode: resp.StatusCode, Err: errors.New("empty access token")}
	}
	return "", &RefreshError{Kind: MalformedResponse, StatusCode: resp.StatusCode, Err: errors.New("no access token in response")}
}

// classifyStatus maps a non-2xx status to an error kind.
func classifyStatus(code int) (RefreshErrorKind, bool) {
	switch {
	case code >= 200 && code < 300:
		return 0, false
	case code == http.StatusTooManyRequests, code >= 500:
		return NetworkFailure, true
	case code == http.StatusBadRequest, code == http.StatusUnauthorized, code == http.StatusForbidden:
		return Rejected, true
	}
	return MalformedResponse, true
}

func (r *RefreshResponse) asError() error {
	if r.ErrorDesc != "" {
		return fmt.Errorf("%s: %s", r.Error, r.ErrorDesc)
	}
	return errors.New(r.Error)
}

// describeBody extracts an error message from a failed response, if there is one.
func describeBody(body []byte) error {
	var out RefreshResponse
	if err := json.Unmarshal(body, &out); err == nil && out.Error != "" {
		return out.asError()
	}
	return nil
}

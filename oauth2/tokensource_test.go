package oauth2_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	xoauth2 "golang.org/x/oauth2"

	"github.com/panyam/authlink"
	"github.com/panyam/authlink/oauth2"
)

func makeToken(t *testing.T, ttl time.Duration) (string, time.Time) {
	t.Helper()
	exp := time.Now().Add(ttl).Truncate(time.Second)
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"userId": 1,
		"exp":    exp.Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token, exp
}

func TestSessionTokenSource(t *testing.T) {
	fresh, exp := makeToken(t, time.Hour)
	calls := 0
	session := authlink.NewSession(authlink.Config{}, authlink.RefreshGatewayFunc(func(ctx context.Context) (string, error) {
		calls++
		return fresh, nil
	}), nil)

	src := oauth2.SessionTokenSource(context.Background(), session)

	tok, err := src.Token()
	require.NoError(t, err)
	assert.Equal(t, fresh, tok.AccessToken)
	assert.Equal(t, "Bearer", tok.TokenType)
	assert.True(t, tok.Expiry.Equal(exp), "Expiry = %v, want %v", tok.Expiry, exp)

	// the second call is served from the session's store
	_, err = src.Token()
	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestSessionTokenSource_RefreshFails(t *testing.T) {
	session := authlink.NewSession(authlink.Config{}, authlink.RefreshGatewayFunc(func(ctx context.Context) (string, error) {
		return "", &authlink.RefreshError{Kind: authlink.Rejected}
	}), nil)

	_, err := oauth2.SessionTokenSource(context.Background(), session).Token()
	assert.ErrorIs(t, err, authlink.ErrRefreshRejected)
}

func TestTokenSource_EmptyToken(t *testing.T) {
	provider := authlink.NewCoordinator(authlink.NewMemoryTokenStore(), nil,
		authlink.RefreshGatewayFunc(func(ctx context.Context) (string, error) { return "", nil }))

	_, err := oauth2.TokenSource(context.Background(), provider, nil).Token()
	assert.ErrorIs(t, err, oauth2.ErrNoToken)
}

func TestNewClient(t *testing.T) {
	var receivedAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		receivedAuth = r.Header.Get("Authorization")
	}))
	defer server.Close()

	token, _ := makeToken(t, time.Hour)
	session := authlink.NewSession(authlink.Config{}, authlink.RefreshGatewayFunc(func(ctx context.Context) (string, error) {
		return "", &authlink.RefreshError{Kind: authlink.Rejected}
	}), nil)
	session.SetAccessToken(token)

	resp, err := oauth2.NewClient(context.Background(), session).Get(server.URL + "/api/resource")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "Bearer "+token, receivedAuth)
}

func TestNewClient_FailsWithoutToken(t *testing.T) {
	var hits int
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
	}))
	defer server.Close()

	session := authlink.NewSession(authlink.Config{}, authlink.RefreshGatewayFunc(func(ctx context.Context) (string, error) {
		return "", &authlink.RefreshError{Kind: authlink.Rejected}
	}), nil)

	_, err := oauth2.NewClient(context.Background(), session).Get(server.URL + "/api/resource")
	require.Error(t, err)
	assert.ErrorIs(t, err, authlink.ErrRefreshRejected)
	assert.Zero(t, hits, "request should not reach the server")
}

func TestNewClient_FollowsSessionChanges(t *testing.T) {
	var received []string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		received = append(received, r.Header.Get("Authorization"))
	}))
	defer server.Close()

	first, _ := makeToken(t, time.Hour)
	second, _ := makeToken(t, 2*time.Hour)
	refreshes := 0
	session := authlink.NewSession(authlink.Config{}, authlink.RefreshGatewayFunc(func(ctx context.Context) (string, error) {
		refreshes++
		return "", &authlink.RefreshError{Kind: authlink.Rejected}
	}), nil)
	session.SetAccessToken(first)
	client := oauth2.NewClient(context.Background(), session)

	resp, err := client.Get(server.URL + "/api/resource")
	require.NoError(t, err)
	resp.Body.Close()

	// after logout the cleared token must not be sent again
	session.ClearSession()
	_, err = client.Get(server.URL + "/api/resource")
	require.Error(t, err)
	assert.ErrorIs(t, err, authlink.ErrRefreshRejected)
	assert.Equal(t, 1, refreshes)

	// a new login is picked up on the next request
	session.SetAccessToken(second)
	resp, err = client.Get(server.URL + "/api/resource")
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, []string{"Bearer " + first, "Bearer " + second}, received)
}

func TestNewClient_UsesContextTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer server.Close()

	token, _ := makeToken(t, time.Hour)
	session := authlink.NewSession(authlink.Config{}, authlink.RefreshGatewayFunc(func(ctx context.Context) (string, error) {
		return "", &authlink.RefreshError{Kind: authlink.Rejected}
	}), nil)
	session.SetAccessToken(token)

	var viaBase int
	base := &http.Client{Transport: roundTripFunc(func(r *http.Request) (*http.Response, error) {
		viaBase++
		return http.DefaultTransport.RoundTrip(r)
	})}
	ctx := context.WithValue(context.Background(), xoauth2.HTTPClient, base)

	resp, err := oauth2.NewClient(ctx, session).Get(server.URL + "/")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, 1, viaBase)
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

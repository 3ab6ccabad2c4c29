package client

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/panyam/authlink"
)

// AuthClient is an HTTP client with automatic access token management.
// The refresh credential lives in the cookie jar; the access token lives in
// the session's token store.
type AuthClient struct {
	config        authlink.Config
	session       *authlink.Session
	httpClient    *http.Client
	baseClient    *http.Client
	baseTransport http.RoundTripper
	jar           http.CookieJar
	interceptors  []authlink.Interceptor
}

// ClientOption configures an AuthClient
type ClientOption func(*AuthClient)

// WithRefreshPath sets a custom refresh endpoint path
func WithRefreshPath(path string) ClientOption {
	return func(c *AuthClient) {
		c.config.RefreshPath = path
	}
}

// WithGraphQLPath sets a custom GraphQL endpoint path
func WithGraphQLPath(path string) ClientOption {
	return func(c *AuthClient) {
		c.config.GraphQLPath = path
	}
}

// WithRefreshTimeout bounds each refresh episode
func WithRefreshTimeout(d time.Duration) ClientOption {
	return func(c *AuthClient) {
		c.config.RefreshTimeout = d
	}
}

// WithLogger sets the logger for pipeline events
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *AuthClient) {
		c.config.Logger = logger
	}
}

// WithConfig replaces the whole session configuration. The server URL passed
// to NewAuthClient still wins.
func WithConfig(cfg authlink.Config) ClientOption {
	return func(c *AuthClient) {
		serverURL := c.config.ServerURL
		c.config = cfg
		c.config.ServerURL = serverURL
	}
}

// WithHTTPClient sets a custom base HTTP client (for timeouts, TLS config, etc.)
// The transport from this client will be wrapped with auth handling.
func WithHTTPClient(client *http.Client) ClientOption {
	return func(c *AuthClient) {
		if client == nil {
			return
		}
		if client.Transport != nil {
			c.baseTransport = client.Transport
		}
		if client.Jar != nil {
			c.jar = client.Jar
		}
		c.httpClient.Timeout = client.Timeout
		c.httpClient.CheckRedirect = client.CheckRedirect
	}
}

// WithTransport sets a custom base transport (for connection pooling, proxies, etc.)
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *AuthClient) {
		c.baseTransport = transport
	}
}

// WithCookieJar sets the jar holding the refresh cookie, e.g. a persistent one.
func WithCookieJar(jar http.CookieJar) ClientOption {
	return func(c *AuthClient) {
		c.jar = jar
	}
}

// WithInterceptors adds pipeline stages that run after the auth stage.
func WithInterceptors(interceptors ...authlink.Interceptor) ClientOption {
	return func(c *AuthClient) {
		c.interceptors = append(c.interceptors, interceptors...)
	}
}

// NewAuthClient creates a new authenticated HTTP client for a server
func NewAuthClient(serverURL string, opts ...ClientOption) *AuthClient {
	c := &AuthClient{
		config:        authlink.Config{ServerURL: serverURL},
		httpClient:    &http.Client{},
		baseTransport: http.DefaultTransport,
	}

	for _, opt := range opts {
		opt(c)
	}
	c.config.EnsureReasonableDefaults()

	if c.jar == nil {
		// cookiejar.New only fails on a nil PublicSuffixList
		c.jar, _ = cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	}

	// Refresh goes through the base transport directly to avoid an auth loop,
	// but shares the jar so the refresh cookie is sent.
	c.baseClient = &http.Client{
		Transport: c.baseTransport,
		Jar:       c.jar,
		Timeout:   c.httpClient.Timeout,
	}
	gateway := authlink.NewHTTPRefreshGateway(c.config.RefreshURL(), c.baseClient)
	c.session = authlink.NewSession(c.config, gateway, nil)

	stages := append([]authlink.Interceptor{c.session.Interceptor().Intercept}, c.interceptors...)
	c.httpClient.Transport = NewTransport(c.baseTransport, stages...)
	c.httpClient.Jar = c.jar

	return c
}

// HTTPClient returns the underlying HTTP client with auth handling
func (c *AuthClient) HTTPClient() *http.Client {
	return c.httpClient
}

// ServerURL returns the server URL this client is configured for
func (c *AuthClient) ServerURL() string {
	return c.config.ServerURL
}

// Session returns the auth session behind this client
func (c *AuthClient) Session() *authlink.Session {
	return c.session
}

// CookieJar returns the jar holding the refresh cookie
func (c *AuthClient) CookieJar() http.CookieJar {
	return c.jar
}

// Bootstrap runs the startup silent refresh. It returns once the session is
// ready, and the refresh error is informational: check IsLoggedIn for the
// outcome. The jar is saved afterwards, since the refresh response may have
// rotated the cookie.
func (c *AuthClient) Bootstrap(ctx context.Context) error {
	err := c.session.Bootstrap().Run(ctx)
	if saveErr := c.saveJar(); saveErr != nil && err == nil {
		return fmt.Errorf("failed to save cookies: %w", saveErr)
	}
	return err
}

// GetToken returns the current access token, refreshing if needed
func (c *AuthClient) GetToken(ctx context.Context) (string, error) {
	return c.session.Token(ctx)
}

// IsLoggedIn returns true if the session holds a token with an identity
func (c *AuthClient) IsLoggedIn() bool {
	return c.session.IsAuthenticated()
}

// saver is implemented by jars that persist cookies.
type saver interface {
	Save() error
}

// saveJar persists the refresh cookie if the jar supports it.
func (c *AuthClient) saveJar() error {
	if s, ok := c.jar.(saver); ok {
		return s.Save()
	}
	return nil
}

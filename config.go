package authlink

import (
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"strings"
	"time"
)

// Defaults used by EnsureReasonableDefaults
const (
	DefaultServerURL   = "http://localhost:5000"
	DefaultRefreshPath = "/refresh_token"
	DefaultGraphQLPath = "/graphql"
	DefaultAuthHeader  = "Authorization"
	DefaultAuthScheme  = "Bearer"
)

// Config holds the settings shared by every component of a Session.
type Config struct {
	// ServerURL is the scheme://host of the API server.
	ServerURL string

	// RefreshPath is the path of the refresh endpoint on ServerURL.
	RefreshPath string

	// GraphQLPath is the path of the GraphQL endpoint on ServerURL.
	GraphQLPath string

	// AuthHeader is the header the access token is attached to.
	AuthHeader string

	// AuthScheme prefixes the token in AuthHeader ("Bearer <token>").
	AuthScheme string

	// RefreshTimeout bounds a single refresh episode. Zero leaves the timeout
	// to the gateway's HTTP client.
	RefreshTimeout time.Duration

	// Logger receives pipeline events. Defaults to slog.Default().
	Logger *slog.Logger

	// Now is the clock used to classify tokens. Defaults to time.Now.
	Now func() time.Time
}

// EnsureReasonableDefaults fills in defaults for any unset fields.
func (c *Config) EnsureReasonableDefaults() {
	if c.ServerURL == "" {
		c.ServerURL = DefaultServerURL
	}
	c.ServerURL = NormalizeServerURL(c.ServerURL)
	if c.RefreshPath == "" {
		c.RefreshPath = DefaultRefreshPath
	}
	if c.GraphQLPath == "" {
		c.GraphQLPath = DefaultGraphQLPath
	}
	if c.AuthHeader == "" {
		c.AuthHeader = DefaultAuthHeader
	}
	if c.AuthScheme == "" {
		c.AuthScheme = DefaultAuthScheme
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
	if c.Now == nil {
		c.Now = time.Now
	}
}

// RefreshURL returns the absolute URL of the refresh endpoint.
func (c *Config) RefreshURL() string {
	return c.ServerURL + c.RefreshPath
}

// GraphQLURL returns the absolute URL of the GraphQL endpoint.
func (c *Config) GraphQLURL() string {
	return c.ServerURL + c.GraphQLPath
}

// ConfigFromEnv builds a Config from AUTHLINK_* environment variables.
// Unset variables are left for EnsureReasonableDefaults.
func ConfigFromEnv() (Config, error) {
	cfg := Config{
		ServerURL:   os.Getenv("AUTHLINK_SERVER_URL"),
		RefreshPath: os.Getenv("AUTHLINK_REFRESH_PATH"),
		GraphQLPath: os.Getenv("AUTHLINK_GRAPHQL_PATH"),
	}
	if v := os.Getenv("AUTHLINK_REFRESH_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return cfg, fmt.Errorf("invalid AUTHLINK_REFRESH_TIMEOUT: %w", err)
		}
		cfg.RefreshTimeout = d
	}
	return cfg, nil
}

// NormalizeServerURL reduces a URL to scheme://host, dropping any path.
func NormalizeServerURL(serverURL string) string {
	u, err := url.Parse(serverURL)
	if err == nil && u.Scheme != "" && u.Host != "" {
		return fmt.Sprintf("%s://%s", u.Scheme, u.Host)
	}
	return strings.TrimRight(serverURL, "/")
}

package authlink

import (
	"testing"
	"time"
)

func TestConfig_EnsureReasonableDefaults(t *testing.T) {
	cfg := Config{}
	cfg.EnsureReasonableDefaults()

	if cfg.RefreshURL() != "http://localhost:5000/refresh_token" {
		t.Errorf("RefreshURL() = %v", cfg.RefreshURL())
	}
	if cfg.GraphQLURL() != "http://localhost:5000/graphql" {
		t.Errorf("GraphQLURL() = %v", cfg.GraphQLURL())
	}
	if cfg.AuthHeader != "Authorization" || cfg.AuthScheme != "Bearer" {
		t.Errorf("auth header = %q %q", cfg.AuthHeader, cfg.AuthScheme)
	}
	if cfg.Logger == nil || cfg.Now == nil {
		t.Error("expected Logger and Now to be set")
	}
}

func TestNormalizeServerURL(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"http://localhost:5000/", "http://localhost:5000"},
		{"https://api.example.com/graphql", "https://api.example.com"},
		{"localhost:5000/", "localhost:5000"},
	}
	for _, tt := range tests {
		if got := NormalizeServerURL(tt.in); got != tt.want {
			t.Errorf("NormalizeServerURL(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func TestConfigFromEnv(t *testing.T) {
	t.Setenv("AUTHLINK_SERVER_URL", "https://todo.example.com")
	t.Setenv("AUTHLINK_REFRESH_PATH", "/auth/refresh")
	t.Setenv("AUTHLINK_REFRESH_TIMEOUT", "15s")

	cfg, err := ConfigFromEnv()
	if err != nil {
		t.Fatalf("ConfigFromEnv() error = %v", err)
	}
	cfg.EnsureReasonableDefaults()

	if cfg.RefreshURL() != "https://todo.example.com/auth/refresh" {
		t.Errorf("RefreshURL() = %v", cfg.RefreshURL())
	}
	if cfg.RefreshTimeout != 15*time.Second {
		t.Errorf("RefreshTimeout = %v, want 15s", cfg.RefreshTimeout)
	}

	t.Setenv("AUTHLINK_REFRESH_TIMEOUT", "soon")
	if _, err := ConfigFromEnv(); err == nil {
		t.Error("expected an error for an invalid timeout")
	}
}

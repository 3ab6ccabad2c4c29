package authlink

import (
	"context"
	"log/slog"
)

// Session wires the pipeline components for one client: the token store,
// the validator, the refresh coordinator, the auth interceptor and the
// startup bootstrap.
type Session struct {
	config      Config
	store       TokenStore
	validator   *Validator
	coordinator *Coordinator
	interceptor *AuthInterceptor
	bootstrap   *Bootstrap
}

// NewSession creates a session that refreshes through gateway. A nil store
// gets a MemoryTokenStore.
func NewSession(cfg Config, gateway RefreshGateway, store TokenStore) *Session {
	cfg.EnsureReasonableDefaults()
	if store == nil {
		store = NewMemoryTokenStore()
	}
	validator := NewValidator(cfg.Now)
	coordinator := NewCoordinator(store, validator, gateway,
		WithCoordinatorLogger(cfg.Logger),
		WithRefreshTimeout(cfg.RefreshTimeout))

	return &Session{
		config:      cfg,
		store:       store,
		validator:   validator,
		coordinator: coordinator,
		interceptor: NewAuthInterceptor(store, validator, coordinator, cfg),
		bootstrap:   NewBootstrap(coordinator, cfg.Logger),
	}
}

// Config returns the session's configuration with defaults applied.
func (s *Session) Config() Config {
	return s.config
}

// Store returns the token store
func (s *Session) Store() TokenStore {
	return s.store
}

// Validator returns the token validator
func (s *Session) Validator() *Validator {
	return s.validator
}

// Coordinator returns the refresh coordinator
func (s *Session) Coordinator() *Coordinator {
	return s.coordinator
}

// Interceptor returns the auth interceptor
func (s *Session) Interceptor() *AuthInterceptor {
	return s.interceptor
}

// Bootstrap returns the startup bootstrap
func (s *Session) Bootstrap() *Bootstrap {
	return s.bootstrap
}

// Logger returns the session logger
func (s *Session) Logger() *slog.Logger {
	return s.config.Logger
}

// Token returns a usable access token, refreshing if needed.
func (s *Session) Token(ctx context.Context) (string, error) {
	return s.coordinator.EnsureValidToken(ctx)
}

// SetAccessToken installs a token obtained outside the refresh flow, e.g.
// from a login call. It overwrites whatever the store holds.
func (s *Session) SetAccessToken(token string) {
	s.store.Set(token)
}

// IsAuthenticated reports whether the current token decodes and carries an
// identity. Expiry is not checked: an expired token is refreshed on next use.
func (s *Session) IsAuthenticated() bool {
	return s.UserID() != ""
}

// UserID returns the identity in the current token, or "".
func (s *Session) UserID() string {
	claims, err := s.validator.Claims(s.store.Get())
	if err != nil {
		return ""
	}
	return claims.Identity()
}

// State classifies the current token.
func (s *Session) State() TokenState {
	return s.validator.Classify(s.store.Get())
}

// ClearSession forgets the access token. It does not contact the server or
// clear the refresh cookie: call the server's logout first.
func (s *Session) ClearSession() {
	s.store.Set("")
	s.config.Logger.Debug("session cleared")
}

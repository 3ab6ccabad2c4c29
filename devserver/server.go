// Package devserver is a small API server that speaks the protocol the
// authlink client expects: a refresh credential kept in an HttpOnly cookie,
// short-lived HS256 access tokens carrying a userId claim, a POST refresh
// endpoint answering {ok, accessToken}, and a GraphQL endpoint with the
// Login, Logout, Register and Me operations.
//
// It exists for local development and for end-to-end tests of the client.
// Users live in memory.
package devserver

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/alexedwards/scs/v2"
	"github.com/gorilla/mux"
)

const (
	// RefreshCookieName is the name of the HttpOnly refresh cookie.
	RefreshCookieName = "jid"

	DefaultAccessTokenExpiry = 15 * time.Minute
	DefaultRefreshLifetime   = 7 * 24 * time.Hour

	sessionUserKey = "userId"
)

type contextKey string

const contextKeyUserID contextKey = "devserver.userId"

// Server holds the dev server's state. Zero values are filled by EnsureDefaults.
type Server struct {
	Users *UserStore

	// Sessions backs the refresh cookie. The cookie carries an opaque session
	// token; the user id lives server side.
	Sessions *scs.SessionManager

	// LoginLimiter, if set, throttles login attempts per email.
	LoginLimiter RateLimiter

	JWTSecretKey      string
	AccessTokenExpiry time.Duration
	RefreshPath       string
	GraphQLPath       string

	Logger *slog.Logger
	Now    func() time.Time

	routerOnce sync.Once
	router     *mux.Router
}

func New() *Server {
	return (&Server{}).EnsureDefaults()
}

func (s *Server) EnsureDefaults() *Server {
	if s.Users == nil {
		s.Users = NewUserStore()
	}
	if s.Sessions == nil {
		s.Sessions = scs.New()
		s.Sessions.Lifetime = DefaultRefreshLifetime
		s.Sessions.Cookie.Name = RefreshCookieName
		s.Sessions.Cookie.HttpOnly = true
		s.Sessions.Cookie.Path = "/"
		s.Sessions.Cookie.SameSite = http.SameSiteLaxMode
	}
	if s.JWTSecretKey == "" {
		s.JWTSecretKey = strings.TrimSpace(os.Getenv("AUTHLINK_JWT_SECRET_KEY"))
		if s.JWTSecretKey == "" {
			s.JWTSecretKey = "MyTestJWTSecretKey123456"
		}
	}
	if s.AccessTokenExpiry <= 0 {
		s.AccessTokenExpiry = DefaultAccessTokenExpiry
	}
	if s.RefreshPath == "" {
		s.RefreshPath = "/refresh_token"
	}
	if s.GraphQLPath == "" {
		s.GraphQLPath = "/graphql"
	}
	if s.Logger == nil {
		s.Logger = slog.Default()
	}
	if s.Now == nil {
		s.Now = time.Now
	}
	return s
}

// Handler returns the server's routes wrapped in the session middleware.
func (s *Server) Handler() http.Handler {
	s.routerOnce.Do(s.setupRoutes)
	return s.Sessions.LoadAndSave(s.router)
}

func (s *Server) setupRoutes() {
	s.EnsureDefaults()
	r := mux.NewRouter()
	r.Use(requestLogger(s.Logger))
	r.HandleFunc(s.RefreshPath, s.handleRefresh).Methods(http.MethodPost)
	r.HandleFunc(s.GraphQLPath, s.handleGraphQL).Methods(http.MethodPost)
	r.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()
	api.Use(s.RequireAuth)
	api.HandleFunc("/me", s.handleAPIMe).Methods(http.MethodGet)
	api.HandleFunc("/users", s.handleAPIUsers).Methods(http.MethodGet)

	s.router = r
}

// RequireAuth rejects requests without a valid access token and puts the
// user id in the request context.
func (s *Server) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := s.userFromRequest(r)
		if err != nil {
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("WWW-Authenticate", `Bearer realm="api"`)
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error":             "unauthorized",
				"error_description": err.Error(),
			})
			return
		}
		ctx := context.WithValue(r.Context(), contextKeyUserID, userID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// UserIDFromContext returns the user id set by RequireAuth, or 0.
func UserIDFromContext(ctx context.Context) int {
	id, _ := ctx.Value(contextKeyUserID).(int)
	return id
}

func (s *Server) userFromRequest(r *http.Request) (int, error) {
	token, err := bearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return 0, err
	}
	return s.verifyAccessToken(token)
}

type refreshResponse struct {
	OK          bool   `json:"ok"`
	AccessToken string `json:"accessToken"`
}

// handleRefresh exchanges the refresh cookie for a new access token. A
// missing or stale cookie is answered with {ok: false} and status 200.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	userID := s.Sessions.GetInt(ctx, sessionUserKey)
	if userID == 0 {
		s.writeJSON(w, http.StatusOK, refreshResponse{})
		return
	}

	user, ok := s.Users.Get(userID)
	if !ok {
		s.Logger.Warn("refresh cookie for unknown user", "userId", userID)
		if err := s.Sessions.Destroy(ctx); err != nil {
			s.Logger.Error("failed to destroy session", "error", err)
		}
		s.writeJSON(w, http.StatusOK, refreshResponse{})
		return
	}

	token, err := s.createAccessToken(user.ID)
	if err != nil {
		s.Logger.Error("failed to create access token", "userId", user.ID, "error", err)
		s.writeJSON(w, http.StatusInternalServerError, refreshResponse{})
		return
	}
	s.Logger.Debug("access token refreshed", "userId", user.ID)
	s.writeJSON(w, http.StatusOK, refreshResponse{OK: true, AccessToken: token})
}

func (s *Server) handleAPIMe(w http.ResponseWriter, r *http.Request) {
	user, ok := s.Users.Get(UserIDFromContext(r.Context()))
	if !ok {
		http.Error(w, "user not found", http.StatusNotFound)
		return
	}
	s.writeJSON(w, http.StatusOK, user)
}

func (s *Server) handleAPIUsers(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, s.Users.List())
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.Logger.Warn("failed to write response", "error", err)
	}
}

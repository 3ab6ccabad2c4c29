package devserver

import (
	"encoding/json"
	"errors"
	"net/http"
)

// GraphQL error codes, carried in extensions.code
const (
	CodeBadUserInput    = "BAD_USER_INPUT"
	CodeUnauthenticated = "UNAUTHENTICATED"
	CodeInternal        = "INTERNAL_SERVER_ERROR"
	CodeRateLimited     = "RATE_LIMITED"
)

type graphQLRequest struct {
	OperationName string          `json:"operationName"`
	Query         string          `json:"query"`
	Variables     json.RawMessage `json:"variables"`
}

type graphQLError struct {
	Message    string         `json:"message"`
	Extensions map[string]any `json:"extensions,omitempty"`
}

type graphQLResponse struct {
	Data   any            `json:"data"`
	Errors []graphQLError `json:"errors,omitempty"`
}

type loginPayload struct {
	AccessToken string `json:"accessToken"`
	User        *User  `json:"user"`
}

// handleGraphQL serves the operations the client uses. Operations are
// dispatched by operationName; the query text is not parsed.
func (s *Server) handleGraphQL(w http.ResponseWriter, r *http.Request) {
	var req graphQLRequest
	if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(&req); err != nil {
		s.graphQLError(w, http.StatusBadRequest, "invalid request body", CodeBadUserInput)
		return
	}

	switch req.OperationName {
	case "Login":
		s.gqlLogin(w, r, req.Variables)
	case "Logout":
		s.gqlLogout(w, r)
	case "Register":
		s.gqlRegister(w, r, req.Variables)
	case "Me":
		s.gqlMe(w, r)
	default:
		s.graphQLError(w, http.StatusBadRequest, "unknown operation: "+req.OperationName, CodeBadUserInput)
	}
}

func (s *Server) gqlLogin(w http.ResponseWriter, r *http.Request, raw json.RawMessage) {
	var vars struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(raw, &vars); err != nil {
		s.graphQLError(w, http.StatusOK, "invalid variables", CodeBadUserInput)
		return
	}

	if s.LoginLimiter != nil && !s.LoginLimiter.Allow(normalizeEmail(vars.Email)) {
		s.Logger.Warn("login rate limited", "email", vars.Email)
		s.graphQLError(w, http.StatusOK, "too many login attempts", CodeRateLimited)
		return
	}

	user, err := s.Users.Authenticate(vars.Email, vars.Password)
	if err != nil {
		s.Logger.Info("login failed", "email", vars.Email)
		s.graphQLError(w, http.StatusOK, "invalid login", CodeBadUserInput)
		return
	}

	ctx := r.Context()
	// new session token on privilege change
	if err := s.Sessions.RenewToken(ctx); err != nil {
		s.Logger.Error("failed to renew session", "error", err)
		s.graphQLError(w, http.StatusOK, "internal error", CodeInternal)
		return
	}
	s.Sessions.Put(ctx, sessionUserKey, user.ID)

	token, err := s.createAccessToken(user.ID)
	if err != nil {
		s.Logger.Error("failed to create access token", "userId", user.ID, "error", err)
		s.graphQLError(w, http.StatusOK, "internal error", CodeInternal)
		return
	}

	s.Logger.Info("user logged in", "userId", user.ID)
	s.writeJSON(w, http.StatusOK, graphQLResponse{Data: map[string]any{
		"login": loginPayload{AccessToken: token, User: user},
	}})
}

func (s *Server) gqlLogout(w http.ResponseWriter, r *http.Request) {
	if err := s.Sessions.Destroy(r.Context()); err != nil {
		s.Logger.Warn("error clearing session", "error", err)
	}
	s.writeJSON(w, http.StatusOK, graphQLResponse{Data: map[string]any{"logout": true}})
}

func (s *Server) gqlRegister(w http.ResponseWriter, r *http.Request, raw json.RawMessage) {
	var vars struct {
		Name     string `json:"name"`
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := json.Unmarshal(raw, &vars); err != nil {
		s.graphQLError(w, http.StatusOK, "invalid variables", CodeBadUserInput)
		return
	}

	user, err := s.Users.Create(vars.Name, vars.Email, vars.Password)
	if err != nil {
		if !errors.Is(err, ErrEmailTaken) {
			s.Logger.Info("registration failed", "error", err)
		}
		s.graphQLError(w, http.StatusOK, err.Error(), CodeBadUserInput)
		return
	}
	s.Logger.Info("user registered", "userId", user.ID)
	s.writeJSON(w, http.StatusOK, graphQLResponse{Data: map[string]any{"register": user}})
}

// gqlMe answers null for a missing or invalid token rather than an error.
func (s *Server) gqlMe(w http.ResponseWriter, r *http.Request) {
	var me *User
	if userID, err := s.userFromRequest(r); err == nil {
		if user, ok := s.Users.Get(userID); ok {
			me = user
		}
	}
	s.writeJSON(w, http.StatusOK, graphQLResponse{Data: map[string]any{"me": me}})
}

func (s *Server) graphQLError(w http.ResponseWriter, status int, message, code string) {
	s.writeJSON(w, status, graphQLResponse{Errors: []graphQLError{{
		Message:    message,
		Extensions: map[string]any{"code": code},
	}}})
}

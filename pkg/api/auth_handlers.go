package api

import (
	"net/http"
	"time"

	"github.com/taskhive/taskhive/pkg/auth"
	"github.com/taskhive/taskhive/pkg/httputil"
	"github.com/taskhive/taskhive/pkg/users"
)

type registerRequest struct {
	Login    string `json:"login"`
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Login, "login") ||
		!httputil.RequireNonEmpty(w, req.Username, "username") ||
		!httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	existing, err := s.users.GetByLogin(r.Context(), req.Login)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if existing != nil {
		httputil.WriteConflict(w, "login already taken")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	user := &users.User{
		Login:        req.Login,
		Username:     req.Username,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.users.Create(r.Context(), user); err != nil {
		s.writeDomainError(w, r, err)
		return
	}

	httputil.WriteCreated(w, user)
}

type loginRequest struct {
	Login    string `json:"login"`
	Password string `json:"password"`
}

type loginResponse struct {
	Token     string      `json:"token"`
	ExpiresAt *time.Time  `json:"expires_at,omitempty"`
	User      *users.User `json:"user"`
}

// handleLogin verifies credentials and issues a fresh API token. Invalid
// logins and deactivated accounts get the same answer.
func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Login, "login") ||
		!httputil.RequireNonEmpty(w, req.Password, "password") {
		return
	}

	user, err := s.users.GetByLogin(r.Context(), req.Login)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if user == nil || !user.IsActive {
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}
	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		httputil.WriteUnauthorized(w, "invalid credentials")
		return
	}

	expiresAt := time.Now().Add(30 * 24 * time.Hour)
	apiToken, token, err := s.tokens.CreateToken(r.Context(), user.ID, "login", &expiresAt)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if s.recorder != nil {
		s.recorder.TokenCreated(r.Context(), user.ID, apiToken.ID)
	}

	httputil.WriteSuccess(w, loginResponse{
		Token:     token,
		ExpiresAt: apiToken.ExpiresAt,
		User:      user,
	})
}

func (s *Server) handleCurrentUser(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}

	user, err := s.users.GetByID(r.Context(), actorID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if user == nil {
		httputil.WriteNotFoundError(w, "user not found")
		return
	}
	httputil.WriteSuccess(w, user)
}

type createTokenRequest struct {
	Name      string     `json:"name"`
	ExpiresAt *time.Time `json:"expires_at"`
}

type createTokenResponse struct {
	Token    string         `json:"token"`
	APIToken *auth.APIToken `json:"api_token"`
}

func (s *Server) handleCreateToken(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}

	var req createTokenRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if !httputil.RequireNonEmpty(w, req.Name, "name") {
		return
	}

	apiToken, token, err := s.tokens.CreateToken(r.Context(), actorID, req.Name, req.ExpiresAt)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	if s.recorder != nil {
		s.recorder.TokenCreated(r.Context(), actorID, apiToken.ID)
	}

	httputil.WriteCreated(w, createTokenResponse{Token: token, APIToken: apiToken})
}

func (s *Server) handleListTokens(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}

	tokens, err := s.tokens.ListUserTokens(r.Context(), actorID)
	if err != nil {
		s.writeDomainError(w, r, err)
		return
	}
	httputil.WriteSuccess(w, tokens)
}

func (s *Server) handleRevokeToken(w http.ResponseWriter, r *http.Request) {
	actorID, ok := s.actor(w, r)
	if !ok {
		return
	}
	tokenID, ok := httputil.ParsePathInt64OrError(w, r, "tokenID")
	if !ok {
		return
	}

	if err := s.tokens.RevokeToken(r.Context(), actorID, tokenID); err != nil {
		httputil.WriteNotFoundError(w, "token not found")
		return
	}
	if s.recorder != nil {
		s.recorder.TokenRevoked(r.Context(), actorID, tokenID)
	}
	httputil.WriteNoContent(w)
}

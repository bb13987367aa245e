package api

import (
	"net/http"

	"github.com/crewhub/crewhub/pkg/auth"
	"github.com/crewhub/crewhub/pkg/httputil"
)

type registerRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"display_name"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type authResponse struct {
	Token string     `json:"token"`
	User  *auth.User `json:"user"`
}

// Register creates a new user account and returns a token
func (s *Server) Register(w http.ResponseWriter, r *http.Request) {
	var req registerRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}
	if req.Email == "" || req.Password == "" {
		httputil.WriteBadRequest(w, "email and password are required")
		return
	}

	user, err := s.users.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	token, err := s.tokenManager.GenerateToken(user)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	httputil.WriteCreated(w, authResponse{Token: token, User: user})
}

// Login authenticates a user and returns a token
func (s *Server) Login(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if !httputil.ParseJSONOrError(w, r, &req) {
		return
	}

	user, err := s.users.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	token, err := s.tokenManager.GenerateToken(user)
	if err != nil {
		s.writeServiceError(w, err)
		return
	}

	httputil.WriteSuccess(w, authResponse{Token: token, User: user})
}

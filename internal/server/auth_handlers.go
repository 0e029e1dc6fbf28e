package server

import (
	"errors"
	"net/http"
	"strings"

	"artiquity/internal/api"
	"artiquity/internal/auth"
	"artiquity/internal/store"
)

type credentialsRequest struct {
	Email       string `json:"email"`
	Password    string `json:"password"`
	DisplayName string `json:"displayName,omitempty"`
}

func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.services.Auth == nil {
		s.writeError(w, http.StatusNotFound, "authentication is disabled")
		return
	}
	var req credentialsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	user, err := s.services.Auth.Register(r.Context(), req.Email, req.Password, req.DisplayName)
	if err != nil {
		if errors.Is(err, store.ErrEmailTaken) {
			s.writeError(w, http.StatusConflict, "email already registered")
			return
		}
		s.writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.writeJSON(w, http.StatusCreated, api.AuthResponse{User: api.FromUser(user)})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.services.Auth == nil {
		s.writeError(w, http.StatusNotFound, "authentication is disabled")
		return
	}
	var req credentialsRequest
	if !s.decodeBody(w, r, &req) {
		return
	}
	token, user, err := s.services.Auth.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		if errors.Is(err, auth.ErrInvalidCredentials) {
			s.writeError(w, http.StatusUnauthorized, "invalid email or password")
			return
		}
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusOK, api.AuthResponse{Token: token, User: api.FromUser(user)})
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if s.services.Auth == nil {
		s.writeJSON(w, http.StatusNoContent, nil)
		return
	}
	header := r.Header.Get("Authorization")
	token := strings.TrimPrefix(header, "Bearer ")
	if err := s.services.Auth.Logout(r.Context(), token); err != nil {
		s.writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	s.writeJSON(w, http.StatusNoContent, nil)
}

func (s *Server) handleMe(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	user := s.currentUser(r)
	if user == nil {
		s.writeError(w, http.StatusNotFound, "authentication is disabled")
		return
	}
	s.writeJSON(w, http.StatusOK, api.AuthResponse{User: api.FromUser(user)})
}

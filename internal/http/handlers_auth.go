package http

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"budget/internal/auth"
	"budget/internal/core"
	"budget/internal/storage"
)

type credentialsRequest struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
}

func (c credentialsRequest) validate() error {
	if strings.TrimSpace(c.Username) == "" {
		return errors.New("username is required")
	}
	if c.Password == "" {
		return errors.New("password is required")
	}
	return nil
}

// handleRegister creates the account and immediately issues a token, so a new
// user never needs a second round trip to log in.
func (s *Server) handleRegister(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}
	if err := req.validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	user := core.User{Username: req.Username, PasswordHash: hash}
	if err := s.store.CreateUser(r.Context(), user); err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	token, err := s.auth.IssueToken(user.Username)
	if err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	slog.InfoContext(r.Context(), "User registered", "username", user.Username)
	writeJSON(w, http.StatusCreated, tokenResponse{AccessToken: token, TokenType: auth.TokenType})
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request payload")
		return
	}

	user, err := s.store.GetUser(r.Context(), req.Username)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			// Same response as a bad password, so login probing cannot
			// enumerate usernames.
			writeError(w, http.StatusUnauthorized, auth.ErrInvalidCredentials.Error())
			return
		}
		writeAPIError(r.Context(), w, err)
		return
	}

	if err := auth.CheckPassword(user.PasswordHash, req.Password); err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	token, err := s.auth.IssueToken(user.Username)
	if err != nil {
		writeAPIError(r.Context(), w, err)
		return
	}

	writeJSON(w, http.StatusOK, tokenResponse{AccessToken: token, TokenType: auth.TokenType})
}

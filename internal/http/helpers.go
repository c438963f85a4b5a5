package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"budget/internal/auth"
	"budget/internal/core"
	"budget/internal/storage"
)

type contextKey string

// usernameKey carries the authenticated username through the request context.
const usernameKey contextKey = "username"

func usernameFrom(ctx context.Context) string {
	if u, ok := ctx.Value(usernameKey).(string); ok {
		return u
	}
	return ""
}

// requireAuth resolves the bearer token and verifies the subject still exists
// before letting the request through.
func (s *Server) requireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, token, found := strings.Cut(header, " ")
		if !found || !strings.EqualFold(scheme, "Bearer") || token == "" {
			writeError(w, http.StatusUnauthorized, "missing or malformed bearer token")
			return
		}

		username, err := s.auth.ResolveToken(token)
		if err != nil {
			writeAPIError(r.Context(), w, err)
			return
		}

		if _, err := s.store.GetUser(r.Context(), username); err != nil {
			if errors.Is(err, storage.ErrNotFound) {
				writeError(w, http.StatusUnauthorized, "unknown user")
				return
			}
			writeAPIError(r.Context(), w, err)
			return
		}

		ctx := context.WithValue(r.Context(), usernameKey, username)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("Failed to encode response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, detail string) {
	writeJSON(w, status, map[string]string{"detail": detail})
}

// writeAPIError maps domain errors onto HTTP statuses. Unrecognized errors
// become opaque 500s so internals never leak to the client.
func writeAPIError(ctx context.Context, w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, auth.ErrInvalidCredentials),
		errors.Is(err, auth.ErrTokenExpired),
		errors.Is(err, auth.ErrTokenInvalid):
		writeError(w, http.StatusUnauthorized, err.Error())

	case errors.Is(err, storage.ErrNotFound):
		writeError(w, http.StatusNotFound, "not found")

	case errors.Is(err, storage.ErrUsernameTaken),
		errors.Is(err, core.ErrLimitNotConfigured),
		errors.Is(err, core.ErrInsufficientFunds),
		errors.Is(err, core.ErrInvalidFrequency),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrInvalidDate),
		errors.Is(err, core.ErrEmptyCategory):
		writeError(w, http.StatusBadRequest, err.Error())

	default:
		slog.ErrorContext(ctx, "Request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

// idParam parses the {id} URL parameter as a positive integer.
func idParam(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}

// Package http exposes the budget API over JSON. Routes are registered on a
// chi router; everything under /api requires a bearer token and is scoped to
// the authenticated user.
package http

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"budget/internal/auth"
	applog "budget/internal/log"
	"budget/internal/services"
	"budget/internal/storage"
)

type Server struct {
	store    storage.Store
	auth     *auth.Service
	expenses *services.ExpenseService
	server   *http.Server
}

func NewServer(addr string, store storage.Store, authSvc *auth.Service, expenses *services.ExpenseService) *Server {
	s := &Server{
		store:    store,
		auth:     authSvc,
		expenses: expenses,
	}

	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.routes(),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(applog.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           300,
	}))

	r.Get("/healthz", s.handleHealth)
	r.Get("/readyz", s.handleReady)

	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/login", s.handleLogin)

	r.Route("/api", func(api chi.Router) {
		api.Use(s.requireAuth)

		api.Post("/expenses", s.handleCreateExpense)
		api.Get("/expenses", s.handleListExpenses)
		api.Get("/expenses/{id}", s.handleGetExpense)
		api.Delete("/expenses/{id}", s.handleDeleteExpense)
		api.Post("/expenses/expense-limit", s.handleSetExpenseLimit)

		api.Post("/recurring-expenses", s.handleCreateRecurringExpense)
		api.Get("/recurring-expenses", s.handleListRecurringExpenses)

		api.Get("/analytics/category-trends", s.handleCategoryTrends)
		api.Get("/export-report", s.handleExportReport)
	})

	return r
}

// ListenAndServe runs the HTTP server until Shutdown is called.
func (s *Server) ListenAndServe() error {
	slog.Info("HTTP server listening", "addr", s.server.Addr)
	if err := s.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests until the context expires.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}

// Handler exposes the route tree, used by the tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	if _, err := s.store.GetUser(r.Context(), "__readiness_probe__"); err != nil && !errors.Is(err, storage.ErrNotFound) {
		writeError(w, http.StatusServiceUnavailable, "store unavailable")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

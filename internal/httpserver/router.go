package httpserver

import (
	"context"
	"encoding/json"
	"net/http"

	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"siakad/internal/audit"
	"siakad/internal/auth"
	"siakad/internal/authconfig"
	"siakad/internal/users"
)

type AuditLog interface {
	List(ctx context.Context, f audit.Filter) ([]audit.Event, error)
	Insert(ctx context.Context, e *audit.Event) error
}

func NewRouter(
	logger *slog.Logger,
	authHandlers authconfig.Handlers,
	sessions auth.SessionReader,
	directory users.Directory,
	auditLog AuditLog,
	gatherer prometheus.Gatherer,
	corsOrigins []string,
) http.Handler {
	mux := http.NewServeMux()

	// Health check
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))

	// Auth
	mux.Handle("GET /api/auth/", authHandlers.GET)
	mux.Handle("POST /api/auth/", authHandlers.POST)

	secured := auth.SessionMiddleware(sessions)
	mux.Handle("/api/v1/me", secured(users.MeHandler{}))

	// Users
	listHandler := &users.ListHandler{
		Directory: directory,
		Logger:    logger,
	}
	detailHandler := &users.DetailHandler{
		Directory: directory,
		Audit:     auditLog,
		Logger:    logger,
	}
	mux.Handle("/api/v1/users", secured(auth.RequireRole(listHandler.ServeHTTP, auth.RoleAdmin)))
	mux.Handle("/api/v1/users/", secured(auth.RequireRole(detailHandler.ServeHTTP, auth.RoleAdmin)))

	// Audit
	queryHandler := &audit.QueryHandler{
		Store:  auditLog,
		Logger: logger,
	}
	mux.Handle("/api/v1/audit", secured(auth.RequireRole(queryHandler.ServeHTTP, auth.RoleAdmin)))

	return withCORS(corsOrigins, mux)
}

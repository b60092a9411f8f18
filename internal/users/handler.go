package users

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"log/slog"

	"siakad/internal/audit"
	"siakad/internal/auth"
	"siakad/internal/logging"
)

// Directory is the user store as seen by administrators: roles are shown as
// stored, including unassigned ones.
type Directory interface {
	ListUsers(ctx context.Context, f auth.UserFilter) ([]auth.User, error)
	GetUser(ctx context.Context, id string) (*auth.User, error)
	SetRole(ctx context.Context, id string, role auth.Role) error
}

type Recorder interface {
	Insert(ctx context.Context, e *audit.Event) error
}

type ListHandler struct {
	Directory Directory
	Logger    *slog.Logger
}

func (h *ListHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter := auth.UserFilter{}
	if role := q.Get("role"); role != "" {
		parsed, err := auth.ParseRole(role)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		filter.Role = parsed
	}
	filter.Email = strings.ToLower(strings.TrimSpace(q.Get("email")))
	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = l
		}
	}

	list, err := h.Directory.ListUsers(r.Context(), filter)
	if err != nil {
		h.Logger.Error("list users", logging.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if list == nil {
		list = []auth.User{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(list)
}

type DetailHandler struct {
	Directory Directory
	Audit     Recorder
	Logger    *slog.Logger
}

func (h *DetailHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet && r.Method != http.MethodPatch {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	// Path is /api/v1/users/{id}
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	if len(parts) != 4 || parts[3] == "" {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	id := parts[3]

	if r.Method == http.MethodGet {
		u, err := h.Directory.GetUser(r.Context(), id)
		if err != nil {
			h.Logger.Error("get user", logging.Err(err), "user", id)
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		if u == nil {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(u)
		return
	}

	// PATCH: assign role
	var payload struct {
		Role string `json:"role"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	role, err := auth.ParseRole(payload.Role)
	if err != nil {
		w.WriteHeader(http.StatusBadRequest)
		return
	}
	if err := h.Directory.SetRole(r.Context(), id, role); err != nil {
		if errors.Is(err, auth.ErrUserNotFound) {
			w.WriteHeader(http.StatusNotFound)
			return
		}
		h.Logger.Error("set role", logging.Err(err), "user", id)
		w.WriteHeader(http.StatusInternalServerError)
		return
	}

	if h.Audit != nil {
		ev := &audit.Event{
			Kind:   audit.KindRoleChange,
			UserID: id,
			Fields: map[string]interface{}{"role": string(role)},
		}
		if admin, ok := auth.UserFromContext(r.Context()); ok {
			ev.Fields["changed_by"] = admin.ID
		}
		if err := h.Audit.Insert(r.Context(), ev); err != nil {
			h.Logger.Error("record role change", logging.Err(err), "user", id)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// MeHandler returns the session user of the request.
type MeHandler struct{}

func (MeHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	user, ok := auth.UserFromContext(r.Context())
	if !ok {
		w.WriteHeader(http.StatusUnauthorized)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(user)
}

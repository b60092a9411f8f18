package audit

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"siakad/internal/logging"
)

type Lister interface {
	List(ctx context.Context, f Filter) ([]Event, error)
}

// QueryHandler lists audit events. Access control is left to the router.
type QueryHandler struct {
	Store  Lister
	Logger *slog.Logger
}

func (h *QueryHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	q := r.URL.Query()
	filter := Filter{}
	filter.UserID = q.Get("user_id")
	if kind := q.Get("kind"); kind != "" {
		filter.Kind = Kind(kind)
	}
	if sinceStr := q.Get("since"); sinceStr != "" {
		t, err := time.Parse(time.RFC3339, sinceStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		filter.Since = t
	}
	if untilStr := q.Get("until"); untilStr != "" {
		t, err := time.Parse(time.RFC3339, untilStr)
		if err != nil {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		filter.Until = t
	}
	if limitStr := q.Get("limit"); limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil {
			filter.Limit = l
		}
	}

	events, err := h.Store.List(r.Context(), filter)
	if err != nil {
		h.Logger.Error("list audit events", logging.Err(err))
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	if events == nil {
		events = []Event{}
	}

	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(events)
}

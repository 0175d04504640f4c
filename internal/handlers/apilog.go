package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/epaproditus/geo-profile-dashboard/internal/repo"
)

// APILogHandler serves the append-only SimpleMDM call log for postmortems.
type APILogHandler struct {
	Repo *repo.APILogRepo
}

// ListLogs returns recent call log entries. Query: limit (default 50), offset (default 0).
func (h *APILogHandler) ListLogs(w http.ResponseWriter, r *http.Request) {
	limit := 50
	offset := 0
	if l := r.URL.Query().Get("limit"); l != "" {
		if val, err := strconv.Atoi(l); err == nil && val > 0 && val <= 200 {
			limit = val
		}
	}
	if o := r.URL.Query().Get("offset"); o != "" {
		if val, err := strconv.Atoi(o); err == nil && val >= 0 {
			offset = val
		}
	}

	entries, err := h.Repo.List(r.Context(), limit, offset)
	if err != nil {
		JSONError(w, ErrMessageInternal, http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(entries)
}

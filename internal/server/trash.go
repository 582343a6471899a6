package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/babarot/stowage/internal/core/types"
	"github.com/babarot/stowage/internal/trash"
)

// trashItem is a trash entry as listed to clients
type trashItem struct {
	types.TrashEntry
	DaysUntilDeletion *int `json:"days_until_deletion,omitempty"`
}

func (s *Server) trashView(e types.TrashEntry) trashItem {
	item := trashItem{TrashEntry: e}
	if !e.DeletionDate.IsZero() {
		days := e.DaysUntilDeletion(time.Now())
		item.DaysUntilDeletion = &days
	}
	return item
}

func (s *Server) listTrash(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var opts trash.FilterOptions
	if v := q.Get("type"); v != "" {
		kind, err := types.ParseItemType(v)
		if err != nil {
			respondError(w, r, err)
			return
		}
		opts.Include.Type = kind
	}
	if v := q.Get("pattern"); v != "" {
		opts.Include.Globs = []string{v}
	}
	if v := q.Get("regex"); v != "" {
		opts.Include.Patterns = []string{v}
	}
	if v := q.Get("within_days"); v != "" {
		days, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, r, types.NewError("list_trash", types.ErrInvalid, "within_days", err))
			return
		}
		opts.Include.WithinDays = days
	}
	if err := opts.Validate(); err != nil {
		respondError(w, r, err)
		return
	}

	entries := s.trash.List(opts)
	items := make([]trashItem, 0, len(entries))
	for _, e := range entries {
		items = append(items, s.trashView(e))
	}
	respondJSON(w, http.StatusOK, items)
}

func (s *Server) getTrash(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	e, err := s.trash.Get(id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, s.trashView(e))
}

func (s *Server) restoreTrash(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	restored, err := s.trash.Restore(r.Context(), id)
	if err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, restored)
}

func (s *Server) purgeTrash(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		respondError(w, r, err)
		return
	}
	if err := s.trash.Purge(r.Context(), id); err != nil {
		respondError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"id": id, "status": trash.StatusPurged})
}

func (s *Server) emptyTrash(w http.ResponseWriter, r *http.Request) {
	report, err := s.trash.Empty(r.Context())
	status := http.StatusOK
	switch {
	case err != nil:
		logger(r.Context()).Warn("empty trash interrupted", "error", err)
		status = http.StatusServiceUnavailable
	case report.Failed > 0:
		status = http.StatusInternalServerError
	}
	respondJSON(w, status, report)
}

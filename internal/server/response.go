package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/babarot/stowage/internal/core/atomic"
	"github.com/babarot/stowage/internal/core/types"
)

// problem is an RFC 7807 problem document
type problem struct {
	Type      string `json:"type"`
	Title     string `json:"title"`
	Status    int    `json:"status"`
	Detail    string `json:"detail,omitempty"`
	Instance  string `json:"instance,omitempty"`
	Kind      string `json:"kind,omitempty"`
	RequestID string `json:"request_id,omitempty"`
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	payload, err := json.Marshal(data)
	if err != nil {
		slog.Error("failed to encode response", "error", err)
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte("internal server error"))
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

func respondProblem(w http.ResponseWriter, r *http.Request, status int, kind, detail string) {
	p := problem{
		Type:      problemType(status),
		Title:     http.StatusText(status),
		Status:    status,
		Detail:    detail,
		Instance:  r.URL.Path,
		Kind:      kind,
		RequestID: requestID(r.Context()),
	}
	payload, _ := json.Marshal(p)
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	_, _ = w.Write(payload)
}

// respondError maps an error kind onto a status code
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	status, kind := statusOf(err)
	log := logger(r.Context())
	if status >= http.StatusInternalServerError {
		log.Error("request failed", "status", status, "error", err)
	} else {
		log.Debug("request rejected", "status", status, "error", err)
	}
	respondProblem(w, r, status, kind, err.Error())
}

func statusOf(err error) (int, string) {
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, atomic.ErrTooLarge), errors.As(err, &tooLarge):
		return http.StatusRequestEntityTooLarge, "invalid"
	case errors.Is(err, types.ErrNotFound):
		return http.StatusNotFound, "not_found"
	case errors.Is(err, types.ErrConflict):
		return http.StatusConflict, "conflict"
	case errors.Is(err, types.ErrInvalid):
		return http.StatusBadRequest, "invalid"
	case errors.Is(err, types.ErrIndexCorrupt):
		return http.StatusInternalServerError, "index_corrupt"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable, "cancelled"
	default:
		return http.StatusInternalServerError, "io_failure"
	}
}

func problemType(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.1"
	case http.StatusNotFound:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.4"
	case http.StatusConflict:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.8"
	case http.StatusRequestEntityTooLarge:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.5.11"
	case http.StatusServiceUnavailable:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.6.4"
	default:
		return "https://datatracker.ietf.org/doc/html/rfc7231#section-6.6.1"
	}
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(nil, r.Body, 1<<20))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return types.NewError("decode", types.ErrInvalid, "request body", err)
	}
	return nil
}

// pathID parses the {id} wildcard
func pathID(r *http.Request) (types.ID, error) {
	return types.ParseID(r.PathValue("id"))
}

// queryID parses an optional identifier query parameter; absent means root
func queryID(r *http.Request, name string) (types.ID, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return "", nil
	}
	return types.ParseID(v)
}

// Package httpapi exposes the record service over HTTP. Each resource gets
// the same five operations; settings and backups have their own endpoints.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"farmcore/internal/backup"
	"farmcore/internal/core"
	"farmcore/pkg/record"
)

// Backups triggers backup runs on demand.
type Backups interface {
	Run(ctx context.Context) (backup.Result, error)
}

// Handler routes resource, settings, health and backup requests.
type Handler struct {
	Service *core.Service
	Backups Backups
}

// NewHandler constructs the API handler.
func NewHandler(service *core.Service) *Handler {
	return &Handler{Service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimSuffix(r.URL.Path, "/")
	if !strings.HasPrefix(path, "/api/") {
		http.NotFound(w, r)
		return
	}
	remainder := strings.TrimPrefix(path, "/api/")

	switch {
	case remainder == "health":
		if r.Method != http.MethodGet {
			writeError(w, http.StatusMethodNotAllowed, "method not allowed")
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "OK", "message": "Server is running"})
		return
	case remainder == "settings":
		h.handleSettings(w, r)
		return
	case remainder == "backups":
		h.handleBackups(w, r)
		return
	}

	segments := strings.SplitN(remainder, "/", 2)
	res, ok := core.ResourceByPath(segments[0])
	if !ok {
		http.NotFound(w, r)
		return
	}
	if len(segments) == 1 {
		h.handleCollection(w, r, res)
		return
	}
	h.handleItem(w, r, res, segments[1])
}

func (h *Handler) handleCollection(w http.ResponseWriter, r *http.Request, res core.Resource) {
	switch r.Method {
	case http.MethodGet:
		records, err := h.Service.List(r.Context(), res)
		if err != nil {
			h.writeFailure(w, res, err)
			return
		}
		writeJSON(w, http.StatusOK, records)
	case http.MethodPost:
		payload := readPayload(r)
		created, err := h.Service.Create(r.Context(), res, payload)
		if err != nil {
			h.writeFailure(w, res, err)
			return
		}
		writeJSON(w, http.StatusCreated, created)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleItem(w http.ResponseWriter, r *http.Request, res core.Resource, id string) {
	if id == "" || strings.Contains(id, "/") {
		http.NotFound(w, r)
		return
	}
	switch r.Method {
	case http.MethodGet:
		rec, err := h.Service.Get(r.Context(), res, id)
		if err != nil {
			h.writeFailure(w, res, err)
			return
		}
		writeJSON(w, http.StatusOK, rec)
	case http.MethodPut:
		payload := readPayload(r)
		updated, err := h.Service.Update(r.Context(), res, id, payload)
		if err != nil {
			h.writeFailure(w, res, err)
			return
		}
		writeJSON(w, http.StatusOK, updated)
	case http.MethodDelete:
		if _, err := h.Service.Delete(r.Context(), res, id); err != nil {
			h.writeFailure(w, res, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": fmt.Sprintf("%s deleted successfully", res.Label)})
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleSettings(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodGet:
		settings, err := h.Service.GetSettings(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Unable to load settings")
			return
		}
		writeJSON(w, http.StatusOK, settings)
	case http.MethodPut:
		settings, err := h.Service.UpdateSettings(r.Context(), readPayload(r))
		if err != nil {
			writeError(w, http.StatusInternalServerError, "Unable to update settings")
			return
		}
		writeJSON(w, http.StatusOK, settings)
	default:
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	}
}

func (h *Handler) handleBackups(w http.ResponseWriter, r *http.Request) {
	if h.Backups == nil {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	result, err := h.Backups.Run(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Backup failed")
		return
	}
	writeJSON(w, http.StatusCreated, result)
}

// writeFailure maps service errors to status codes: validation failures are
// 400, missing records 404, anything else a generic 500.
func (h *Handler) writeFailure(w http.ResponseWriter, res core.Resource, err error) {
	var vErr core.ValidationError
	if errors.As(err, &vErr) {
		writeError(w, http.StatusBadRequest, vErr.Error())
		return
	}
	var nfErr core.NotFoundError
	if errors.As(err, &nfErr) {
		writeError(w, http.StatusNotFound, fmt.Sprintf("%s not found", res.Label))
		return
	}
	writeError(w, http.StatusInternalServerError, "Internal server error")
}

// readPayload decodes the request body as a record, tolerating absent or
// malformed bodies the way the service expects: they become empty payloads.
func readPayload(r *http.Request) record.Record {
	var payload record.Record
	if r.Body == nil {
		return record.Record{}
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil || payload == nil {
		return record.Record{}
	}
	return payload
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

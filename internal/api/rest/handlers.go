// Package rest exposes the job API: submission, status polling, output
// download, and the audit tail.
package rest

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/crowdstack/ghextract/internal/audit"
	"github.com/crowdstack/ghextract/internal/jobs"
)

// auditTailLimit caps the number of entries served by the audit endpoint.
const auditTailLimit = 100

// Handler handles REST API requests.
type Handler struct {
	registry *jobs.Registry
	audit    *audit.Logger
	logger   *zap.Logger
}

// NewHandler creates a new REST handler.
func NewHandler(registry *jobs.Registry, auditLog *audit.Logger, logger *zap.Logger) *Handler {
	return &Handler{
		registry: registry,
		audit:    auditLog,
		logger:   logger,
	}
}

// ExtractRequest represents a request to start an extraction job.
type ExtractRequest struct {
	Type  string         `json:"type"`
	Token string         `json:"token"`
	Args  map[string]any `json:"args"`
}

// ExtractResponse carries the id of the started job.
type ExtractResponse struct {
	JobID string `json:"job_id"`
}

// StartExtraction handles POST /extract.
func (h *Handler) StartExtraction(w http.ResponseWriter, r *http.Request) {
	var req ExtractRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	tool, err := jobs.ParseTool(req.Type)
	if err != nil {
		h.writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	jobID, err := h.registry.Submit(tool, normalizeArgs(req.Args), strings.TrimSpace(req.Token))
	if err != nil {
		var vErr *jobs.ValidationError
		if errors.As(err, &vErr) {
			h.writeError(w, http.StatusBadRequest, vErr.Error())
			return
		}
		h.logger.Error("failed to submit job", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to submit job")
		return
	}

	h.writeJSON(w, http.StatusOK, ExtractResponse{JobID: jobID})
}

// GetStatus handles GET /status/{id}.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	snap, err := h.registry.Status(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "unknown job id")
		return
	}
	h.writeJSON(w, http.StatusOK, snap)
}

// GetOutputs handles GET /outputs/{id}.
func (h *Handler) GetOutputs(w http.ResponseWriter, r *http.Request) {
	outputs, err := h.registry.Outputs(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "unknown job id")
		return
	}
	if outputs == nil {
		outputs = []string{}
	}
	h.writeJSON(w, http.StatusOK, map[string][]string{"outputs": outputs})
}

// Download handles GET /download/{id}/{filename}.
func (h *Handler) Download(w http.ResponseWriter, r *http.Request) {
	outDir, err := h.registry.OutDir(chi.URLParam(r, "id"))
	if err != nil {
		h.writeError(w, http.StatusNotFound, "unknown job id")
		return
	}

	filename := chi.URLParam(r, "filename")
	// Serve only files inside the job's own directory.
	path := filepath.Join(outDir, filepath.Clean("/"+filename))
	if rel, err := filepath.Rel(outDir, path); err != nil || strings.HasPrefix(rel, "..") {
		h.writeError(w, http.StatusBadRequest, "invalid filename")
		return
	}

	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filepath.Base(path)))
	http.ServeFile(w, r, path)
}

// GetAudit handles GET /audit.
func (h *Handler) GetAudit(w http.ResponseWriter, r *http.Request) {
	entries, err := h.audit.Tail(auditTailLimit)
	if err != nil {
		h.logger.Error("failed to read audit log", zap.Error(err))
		h.writeError(w, http.StatusInternalServerError, "failed to read audit log")
		return
	}
	if entries == nil {
		entries = []audit.Entry{}
	}
	h.writeJSON(w, http.StatusOK, entries)
}

// RegisterRoutes registers REST API routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/extract", h.StartExtraction)
	r.Get("/status/{id}", h.GetStatus)
	r.Get("/outputs/{id}", h.GetOutputs)
	r.Get("/download/{id}/{filename}", h.Download)
	r.Get("/audit", h.GetAudit)
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		h.logger.Error("failed to encode response", zap.Error(err))
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, msg string) {
	h.writeJSON(w, status, map[string]string{"error": msg})
}

// normalizeArgs flattens the JSON argument object into the string map the
// registry consumes; booleans arrive as JSON true/false from form clients.
func normalizeArgs(args map[string]any) map[string]string {
	out := make(map[string]string, len(args))
	for k, v := range args {
		switch val := v.(type) {
		case nil:
		case string:
			if val != "" {
				out[k] = val
			}
		case bool:
			out[k] = fmt.Sprintf("%t", val)
		default:
			out[k] = fmt.Sprint(val)
		}
	}
	return out
}

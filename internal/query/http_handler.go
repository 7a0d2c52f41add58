package query

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/datadeck/datadeck/internal/auth"
	"github.com/datadeck/datadeck/internal/domain"
	"github.com/datadeck/datadeck/internal/repository"
)

// Handler exposes the read-side endpoints: catalog listings, per-upload
// row reads, filtered cross-table queries, and job history.
type Handler struct {
	service *Service
	jobs    repository.JobRepository
}

// NewHTTPHandler builds the read-side router. jobs may be nil; the job
// endpoints then report 404.
func NewHTTPHandler(service *Service, jobs repository.JobRepository) http.Handler {
	h := &Handler{service: service, jobs: jobs}

	r := chi.NewRouter()
	r.Get("/list", h.listAll)
	r.Get("/uploads", h.listOwned)
	r.Get("/file/{uploadID}", h.fetchRows)
	r.Post("/query", h.queryFiltered)
	r.Get("/jobs", h.listJobs)
	r.Get("/jobs/{jobID}", h.getJob)
	r.Get("/metrics", h.metrics)
	return r
}

func (h *Handler) listAll(w http.ResponseWriter, r *http.Request) {
	uploads, err := h.service.ListAll(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list datasets", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":    len(uploads),
		"datasets": uploads,
	})
}

func (h *Handler) listOwned(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "owner id is required", "")
		return
	}

	uploads, err := h.service.ListOwned(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list uploads", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count":   len(uploads),
		"uploads": uploads,
	})
}

func (h *Handler) fetchRows(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "owner id is required", "")
		return
	}

	uploadID, err := uuid.Parse(chi.URLParam(r, "uploadID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid upload id: %v", err), "")
		return
	}

	limit, err := intQueryParam(r, "limit", 0)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}

	rows, upload, err := h.service.FetchRows(r.Context(), uploadID, ownerID, limit)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"upload_id":  upload.ID,
		"filename":   upload.FileName,
		"table_name": upload.PhysicalTableName,
		"row_count":  upload.RowCount,
		"returned":   len(rows),
		"rows":       rows,
	})
}

func (h *Handler) queryFiltered(w http.ResponseWriter, r *http.Request) {
	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, "owner id is required", "")
		return
	}

	var filter domain.DataFilter
	if err := json.NewDecoder(r.Body).Decode(&filter); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid filter body: %v", err), "")
		return
	}

	rows, err := h.service.QueryFiltered(r.Context(), ownerID, filter)
	if err != nil {
		h.writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(rows),
		"rows":  rows,
	})
}

func (h *Handler) listJobs(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, http.StatusNotFound, "job tracking is disabled", "")
		return
	}

	limit, err := intQueryParam(r, "limit", 50)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if limit < 1 || limit > MaxLimit {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("limit %d not in [1, %d]", limit, MaxLimit), "")
		return
	}

	status := domain.JobStatus(r.URL.Query().Get("status"))
	switch status {
	case "", domain.JobStatusRunning, domain.JobStatusCompleted, domain.JobStatusFailed:
	default:
		writeError(w, http.StatusBadRequest, fmt.Sprintf("unknown status %q", status), "")
		return
	}

	jobs, err := h.jobs.List(r.Context(), status, limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list jobs", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"count": len(jobs),
		"jobs":  jobs,
	})
}

func (h *Handler) getJob(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, http.StatusNotFound, "job tracking is disabled", "")
		return
	}

	jobID, err := uuid.Parse(chi.URLParam(r, "jobID"))
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid job id: %v", err), "")
		return
	}

	job, err := h.jobs.GetByID(r.Context(), jobID)
	if err != nil {
		if errors.Is(err, repository.ErrJobNotFound) {
			writeError(w, http.StatusNotFound, err.Error(), "")
			return
		}
		writeError(w, http.StatusInternalServerError, "failed to get job", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, job)
}

func (h *Handler) metrics(w http.ResponseWriter, r *http.Request) {
	if h.jobs == nil {
		writeError(w, http.StatusNotFound, "job tracking is disabled", "")
		return
	}

	days, err := intQueryParam(r, "days", 7)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error(), "")
		return
	}
	if days < 1 || days > 365 {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("days %d not in [1, 365]", days), "")
		return
	}

	metrics, err := h.jobs.GetMetrics(r.Context(), days)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to aggregate metrics", err.Error())
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}

// writeServiceError maps read-side service errors to HTTP statuses.
// Reserved filter fields map to 422 so clients can tell "fix your
// request" apart from "bad value".
func (h *Handler) writeServiceError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, repository.ErrUploadNotFound):
		writeError(w, http.StatusNotFound, err.Error(), "")
	case errors.Is(err, ErrLimitExceeded):
		writeError(w, http.StatusBadRequest, err.Error(), "")
	case errors.Is(err, ErrFilterNotSupported):
		writeError(w, http.StatusUnprocessableEntity, err.Error(), "")
	default:
		writeError(w, http.StatusInternalServerError, "query failed", err.Error())
	}
}

func intQueryParam(r *http.Request, name string, fallback int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return fallback, nil
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %q", name, raw)
	}
	return value, nil
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]string{"error": message}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

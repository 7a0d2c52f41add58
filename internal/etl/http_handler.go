package etl

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/datadeck/datadeck/internal/auth"
)

// Handler exposes ingestion as an HTTP endpoint.
type Handler struct {
	service *Service
}

// NewHTTPHandler wraps the service with a POST upload endpoint.
func NewHTTPHandler(service *Service) http.Handler {
	return &Handler{service: service}
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	ownerID, ok := auth.OwnerIDFromContext(r.Context())
	if !ok {
		writeError(w, http.StatusBadRequest, ErrInvalidOwnerID.Error(), "")
		return
	}

	if err := r.ParseMultipartForm(32 << 20); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid form data: %v", err), "")
		return
	}

	// A form-supplied ownerId must agree with the authenticated scope;
	// headers and form values naming different owners are a caller error.
	if raw := r.FormValue("ownerId"); raw != "" {
		formOwner, err := uuid.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: %q", ErrInvalidOwnerID, raw), "")
			return
		}
		if err := auth.EnforceOwnerScope(r.Context(), formOwner); err != nil {
			writeError(w, http.StatusBadRequest, err.Error(), "")
			return
		}
	}

	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("file required: %v", err), "")
		return
	}
	defer file.Close()

	payload, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("failed to read file: %v", err), "")
		return
	}

	result, err := h.service.Ingest(r.Context(), Request{
		Payload:  payload,
		FileName: header.Filename,
		OwnerID:  ownerID,
	})
	if err != nil {
		if IsCallerError(err) {
			writeError(w, http.StatusBadRequest, err.Error(), "")
			return
		}
		writeError(w, http.StatusInternalServerError, "file processing failed", err.Error())
		return
	}

	writeJSON(w, http.StatusOK, result)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError emits a structured failure. Details are populated only for
// infra failures; caller errors stay generic.
func writeError(w http.ResponseWriter, status int, message, details string) {
	body := map[string]string{"error": message}
	if details != "" {
		body["details"] = details
	}
	writeJSON(w, status, body)
}

package auth

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
)

// OwnerHeader carries the caller's owner id on every data-plane request.
const OwnerHeader = "X-Owner-ID"

// Middleware resolves the request's owner scope and stores it on the
// context. Resolution order: the X-Owner-ID header, then the ownerId
// form value, then the configured fallback owner (uuid.Nil disables the
// fallback). A supplied owner id that is not a well-formed UUID rejects
// the request outright; falling back instead would attribute the
// caller's data to another principal. Requests without any owner at all
// pass through unscoped; handlers decide whether that is an error.
func Middleware(fallbackOwner uuid.UUID) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			id, ok, err := resolveOwner(r, fallbackOwner)
			if err != nil {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusBadRequest)
				_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
				return
			}
			if ok {
				r = r.WithContext(ContextWithOwnerID(r.Context(), id))
			}
			next.ServeHTTP(w, r)
		})
	}
}

func resolveOwner(r *http.Request, fallbackOwner uuid.UUID) (uuid.UUID, bool, error) {
	if raw := r.Header.Get(OwnerHeader); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			return uuid.Nil, false, fmt.Errorf("invalid owner id %q", raw)
		}
		return id, true, nil
	}
	// FormValue parses the body once and caches it on the request, so a
	// later FormFile in the handler still sees the upload.
	if raw := r.FormValue("ownerId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil || id == uuid.Nil {
			return uuid.Nil, false, fmt.Errorf("invalid owner id %q", raw)
		}
		return id, true, nil
	}
	if fallbackOwner != uuid.Nil {
		return fallbackOwner, true, nil
	}
	return uuid.Nil, false, nil
}

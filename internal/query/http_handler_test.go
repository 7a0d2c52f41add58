package query

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/datadeck/datadeck/internal/auth"
	"github.com/datadeck/datadeck/internal/domain"
)

func newTestHandler(catalog *stubCatalog, rows *stubRows) http.Handler {
	return NewHTTPHandler(NewService(catalog, rows), nil)
}

func doRequest(handler http.Handler, req *http.Request, owner uuid.UUID) *httptest.ResponseRecorder {
	if owner != uuid.Nil {
		req = req.WithContext(auth.ContextWithOwnerID(req.Context(), owner))
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestQueryEndpointRejectsReservedFilter(t *testing.T) {
	handler := newTestHandler(&stubCatalog{}, &stubRows{})

	body := strings.NewReader(`{"search_term": "widgets"}`)
	req := httptest.NewRequest(http.MethodPost, "/query", body)
	rec := doRequest(handler, req, uuid.New())

	if rec.Code != http.StatusUnprocessableEntity {
		t.Errorf("expected 422, got %d: %s", rec.Code, rec.Body.String())
	}
}

func TestQueryEndpointRequiresOwner(t *testing.T) {
	handler := newTestHandler(&stubCatalog{}, &stubRows{})

	req := httptest.NewRequest(http.MethodPost, "/query", strings.NewReader(`{}`))
	rec := doRequest(handler, req, uuid.Nil)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 without owner, got %d", rec.Code)
	}
}

func TestFileEndpointNotFoundForForeignUpload(t *testing.T) {
	owner := uuid.New()
	upload := domain.NewUpload(uuid.New(), owner, "people.csv", 1)
	handler := newTestHandler(&stubCatalog{uploads: []domain.Upload{upload}}, &stubRows{})

	req := httptest.NewRequest(http.MethodGet, "/file/"+upload.ID.String(), nil)
	rec := doRequest(handler, req, uuid.New())

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 for foreign upload, got %d", rec.Code)
	}
}

func TestFileEndpointRejectsOversizedLimit(t *testing.T) {
	owner := uuid.New()
	upload := domain.NewUpload(uuid.New(), owner, "people.csv", 1)
	handler := newTestHandler(&stubCatalog{uploads: []domain.Upload{upload}}, &stubRows{})

	req := httptest.NewRequest(http.MethodGet, "/file/"+upload.ID.String()+"?limit=1500", nil)
	rec := doRequest(handler, req, owner)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("expected 400 for limit 1500, got %d", rec.Code)
	}
}

func TestListEndpointReportsCount(t *testing.T) {
	owner := uuid.New()
	uploads := []domain.Upload{
		domain.NewUpload(uuid.New(), owner, "a.csv", 2),
		domain.NewUpload(uuid.New(), owner, "b.csv", 3),
	}
	handler := newTestHandler(&stubCatalog{uploads: uploads}, &stubRows{})

	req := httptest.NewRequest(http.MethodGet, "/list", nil)
	rec := doRequest(handler, req, uuid.Nil)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rec.Code, rec.Body.String())
	}

	var payload struct {
		Count    int              `json:"count"`
		Datasets []map[string]any `json:"datasets"`
	}
	if err := json.NewDecoder(rec.Body).Decode(&payload); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if payload.Count != 2 || len(payload.Datasets) != 2 {
		t.Errorf("expected 2 datasets, got count=%d len=%d", payload.Count, len(payload.Datasets))
	}
}

func TestJobsEndpointDisabledWithoutRepository(t *testing.T) {
	handler := newTestHandler(&stubCatalog{}, &stubRows{})

	req := httptest.NewRequest(http.MethodGet, "/jobs", nil)
	rec := doRequest(handler, req, uuid.New())

	if rec.Code != http.StatusNotFound {
		t.Errorf("expected 404 when job tracking is disabled, got %d", rec.Code)
	}
}

package etl

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/google/uuid"

	"github.com/datadeck/datadeck/internal/domain"
)

type stubCatalog struct {
	created []domain.Upload
	fail    bool
}

func (s *stubCatalog) Create(_ context.Context, upload domain.Upload) error {
	if s.fail {
		return errors.New("catalog unavailable")
	}
	s.created = append(s.created, upload)
	return nil
}

func (s *stubCatalog) ListAll(context.Context) ([]domain.Upload, error) { return nil, nil }
func (s *stubCatalog) ListOwned(context.Context, uuid.UUID) ([]domain.Upload, error) {
	return nil, nil
}
func (s *stubCatalog) GetOwned(context.Context, uuid.UUID, uuid.UUID) (domain.Upload, error) {
	return domain.Upload{}, nil
}
func (s *stubCatalog) ResolveTables(context.Context, uuid.UUID, []string) ([]domain.Upload, error) {
	return nil, nil
}

type stubProvisioner struct {
	ensured    []string
	dropped    []string
	failEnsure bool
	failReady  bool
}

func (s *stubProvisioner) EnsureTable(_ context.Context, name string, _ uuid.UUID) error {
	if s.failEnsure {
		return errors.New("provisioning exhausted")
	}
	s.ensured = append(s.ensured, name)
	return nil
}

func (s *stubProvisioner) WaitReady(_ context.Context, name string) error {
	if s.failReady {
		return errors.New("never became visible")
	}
	return nil
}

func (s *stubProvisioner) DropTable(_ context.Context, name string) error {
	s.dropped = append(s.dropped, name)
	return nil
}

type stubJobs struct {
	created []domain.ETLJob
	updates []domain.JobStatus
}

func (s *stubJobs) Create(_ context.Context, job domain.ETLJob) error {
	s.created = append(s.created, job)
	return nil
}

func (s *stubJobs) UpdateStatus(_ context.Context, _ uuid.UUID, status domain.JobStatus, _ string, _ int) error {
	s.updates = append(s.updates, status)
	return nil
}

func (s *stubJobs) List(context.Context, domain.JobStatus, int) ([]domain.ETLJob, error) {
	return nil, nil
}
func (s *stubJobs) GetByID(context.Context, uuid.UUID) (domain.ETLJob, error) {
	return domain.ETLJob{}, nil
}
func (s *stubJobs) GetMetrics(context.Context, int) (domain.JobMetrics, error) {
	return domain.JobMetrics{}, nil
}

const sampleCSV = "name,age\nalice,30\nbob,25\n,,\ncarol,41\n"

func newTestService(catalog *stubCatalog, provisioner *stubProvisioner, store *stubRowStore, jobs *stubJobs) *Service {
	loader := NewBatchLoader(store, 2, 1)
	if jobs == nil {
		return NewService(catalog, provisioner, loader, nil)
	}
	return NewService(catalog, provisioner, loader, jobs)
}

func TestIngestSuccess(t *testing.T) {
	catalog := &stubCatalog{}
	provisioner := &stubProvisioner{}
	store := &stubRowStore{}
	jobs := &stubJobs{}
	service := newTestService(catalog, provisioner, store, jobs)

	result, err := service.Ingest(context.Background(), Request{
		Payload:  []byte(sampleCSV),
		FileName: "people.csv",
		OwnerID:  uuid.New(),
	})
	if err != nil {
		t.Fatalf("Ingest returned error: %v", err)
	}

	if result.Status != "success" {
		t.Errorf("expected status success, got %q", result.Status)
	}
	if result.OriginalRows != 4 || result.CleanedRows != 3 || result.InsertedRows != 3 {
		t.Errorf("unexpected counts: original=%d cleaned=%d inserted=%d",
			result.OriginalRows, result.CleanedRows, result.InsertedRows)
	}
	if !strings.HasPrefix(result.TableName, "data_") {
		t.Errorf("expected data_ table prefix, got %q", result.TableName)
	}
	if strings.Contains(result.TableName, "-") {
		t.Errorf("expected no dashes in table name, got %q", result.TableName)
	}

	if len(catalog.created) != 1 {
		t.Fatalf("expected 1 catalog entry, got %d", len(catalog.created))
	}
	entry := catalog.created[0]
	if entry.RowCount != 3 {
		t.Errorf("expected catalog row_count 3 (confirmed inserted), got %d", entry.RowCount)
	}
	if entry.PhysicalTableName != result.TableName {
		t.Errorf("catalog table %q does not match result %q", entry.PhysicalTableName, result.TableName)
	}

	if len(provisioner.dropped) != 0 {
		t.Errorf("expected no cleanup on success, got drops %v", provisioner.dropped)
	}
	if len(jobs.created) != 1 || len(jobs.updates) != 1 || jobs.updates[0] != domain.JobStatusCompleted {
		t.Errorf("expected one completed job update, got created=%d updates=%v", len(jobs.created), jobs.updates)
	}
}

func TestIngestRejectsNilOwner(t *testing.T) {
	service := newTestService(&stubCatalog{}, &stubProvisioner{}, &stubRowStore{}, nil)

	_, err := service.Ingest(context.Background(), Request{
		Payload:  []byte(sampleCSV),
		FileName: "people.csv",
	})
	if !errors.Is(err, ErrInvalidOwnerID) {
		t.Errorf("expected ErrInvalidOwnerID, got %v", err)
	}
}

func TestIngestCleansUpWhenLoadFails(t *testing.T) {
	catalog := &stubCatalog{}
	provisioner := &stubProvisioner{}
	store := &stubRowStore{
		failBatchFn: func([]domain.RowRecord) bool { return true },
		failSingles: true,
	}
	jobs := &stubJobs{}
	service := newTestService(catalog, provisioner, store, jobs)

	_, err := service.Ingest(context.Background(), Request{
		Payload:  []byte(sampleCSV),
		FileName: "people.csv",
		OwnerID:  uuid.New(),
	})
	if !errors.Is(err, ErrNoRowsInserted) {
		t.Fatalf("expected ErrNoRowsInserted, got %v", err)
	}

	if len(provisioner.dropped) != 1 {
		t.Errorf("expected the provisioned table to be dropped, got %v", provisioner.dropped)
	}
	if len(catalog.created) != 0 {
		t.Errorf("expected no catalog entry on failure, got %d", len(catalog.created))
	}
	if len(jobs.updates) != 1 || jobs.updates[0] != domain.JobStatusFailed {
		t.Errorf("expected a failed job update, got %v", jobs.updates)
	}
}

func TestIngestCleansUpWhenTableNeverReady(t *testing.T) {
	catalog := &stubCatalog{}
	provisioner := &stubProvisioner{failReady: true}
	service := newTestService(catalog, provisioner, &stubRowStore{}, nil)

	_, err := service.Ingest(context.Background(), Request{
		Payload:  []byte(sampleCSV),
		FileName: "people.csv",
		OwnerID:  uuid.New(),
	})
	if err == nil {
		t.Fatal("expected error when table never becomes ready")
	}
	if len(provisioner.dropped) != 1 {
		t.Errorf("expected cleanup drop, got %v", provisioner.dropped)
	}
	if len(catalog.created) != 0 {
		t.Errorf("expected no catalog entry, got %d", len(catalog.created))
	}
}

func TestIngestNoCleanupBeforeProvisioning(t *testing.T) {
	provisioner := &stubProvisioner{}
	service := newTestService(&stubCatalog{}, provisioner, &stubRowStore{}, nil)

	_, err := service.Ingest(context.Background(), Request{
		Payload:  []byte("garbage"),
		FileName: "notes.txt",
		OwnerID:  uuid.New(),
	})
	if !errors.Is(err, ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
	if len(provisioner.ensured) != 0 || len(provisioner.dropped) != 0 {
		t.Errorf("expected no provisioning activity, got ensured=%v dropped=%v",
			provisioner.ensured, provisioner.dropped)
	}
}

func TestIngestKeepsTableWhenCatalogWriteFails(t *testing.T) {
	catalog := &stubCatalog{fail: true}
	provisioner := &stubProvisioner{}
	service := newTestService(catalog, provisioner, &stubRowStore{}, nil)

	_, err := service.Ingest(context.Background(), Request{
		Payload:  []byte(sampleCSV),
		FileName: "people.csv",
		OwnerID:  uuid.New(),
	})
	if err == nil {
		t.Fatal("expected error when catalog write fails")
	}
	// Rows were persisted; the table must survive for reconciliation.
	if len(provisioner.dropped) != 0 {
		t.Errorf("expected no drop after successful load, got %v", provisioner.dropped)
	}
}

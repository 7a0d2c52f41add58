package etl

import (
	"context"
	"fmt"
	"log"

	"github.com/google/uuid"

	"github.com/datadeck/datadeck/internal/domain"
	"github.com/datadeck/datadeck/internal/repository"
)

// Service runs the ingestion pipeline: extract, normalize, provision,
// load, record. Each upload gets its own physical table, so concurrent
// ingestions never contend on row storage; the catalog is the only
// shared table.
type Service struct {
	catalog     repository.CatalogRepository
	provisioner repository.TableProvisioner
	loader      *BatchLoader
	jobs        repository.JobRepository
}

// NewService wires the ingestion service. The job repository may be nil;
// job tracking is then skipped.
func NewService(
	catalog repository.CatalogRepository,
	provisioner repository.TableProvisioner,
	loader *BatchLoader,
	jobs repository.JobRepository,
) *Service {
	return &Service{
		catalog:     catalog,
		provisioner: provisioner,
		loader:      loader,
		jobs:        jobs,
	}
}

// Request describes one ingestion input.
type Request struct {
	Payload  []byte
	FileName string
	OwnerID  uuid.UUID
}

// Result reports a successful ingestion. InsertedRows may be lower than
// CleanedRows when some batch partially failed.
type Result struct {
	Status       string    `json:"status"`
	UploadID     uuid.UUID `json:"upload_id"`
	TableName    string    `json:"table_name"`
	OriginalRows int       `json:"original_rows"`
	CleanedRows  int       `json:"cleaned_rows"`
	InsertedRows int       `json:"inserted_rows"`
}

// Ingest processes one uploaded file end to end. The catalog row is
// written only after rows have been persisted; on failure after table
// creation the table is dropped best-effort before the error propagates.
func (s *Service) Ingest(ctx context.Context, req Request) (Result, error) {
	if req.OwnerID == uuid.Nil {
		return Result{}, fmt.Errorf("%w: owner id is required", ErrInvalidOwnerID)
	}

	job := domain.NewETLJob(req.OwnerID, "ingest", req.FileName)
	s.recordJobStart(ctx, job)

	result, err := s.run(ctx, req)
	if err != nil {
		s.recordJobEnd(ctx, job.ID, domain.JobStatusFailed, err.Error(), result.InsertedRows)
		return Result{}, err
	}

	s.recordJobEnd(ctx, job.ID, domain.JobStatusCompleted, "", result.InsertedRows)
	return result, nil
}

func (s *Service) run(ctx context.Context, req Request) (Result, error) {
	records, originalRows, cleanedRows, err := Extract(req.Payload, req.FileName)
	if err != nil {
		return Result{}, err
	}

	uploadID := uuid.New()
	tableName := domain.PhysicalTableName(uploadID)

	if err := s.provisioner.EnsureTable(ctx, tableName, req.OwnerID); err != nil {
		s.cleanupTable(ctx, tableName)
		return Result{}, err
	}

	if err := s.provisioner.WaitReady(ctx, tableName); err != nil {
		s.cleanupTable(ctx, tableName)
		return Result{}, fmt.Errorf("table %s not ready: %w", tableName, err)
	}

	inserted, err := s.loader.Load(ctx, tableName, records, req.OwnerID)
	if err != nil {
		s.cleanupTable(ctx, tableName)
		return Result{}, err
	}

	upload := domain.NewUpload(uploadID, req.OwnerID, req.FileName, inserted)
	if err := s.catalog.Create(ctx, upload); err != nil {
		// Rows are already persisted; dropping them here would lose data.
		// Surface the inconsistency for external reconciliation instead.
		return Result{}, fmt.Errorf("catalog write failed after successful load of %s: %w", tableName, err)
	}

	log.Printf("[etl] ingested %s into %s (original=%d cleaned=%d inserted=%d)",
		req.FileName, tableName, originalRows, cleanedRows, inserted)

	return Result{
		Status:       "success",
		UploadID:     uploadID,
		TableName:    tableName,
		OriginalRows: originalRows,
		CleanedRows:  cleanedRows,
		InsertedRows: inserted,
	}, nil
}

// cleanupTable drops a partially created table. Failure is logged but
// never masks the original ingestion error.
func (s *Service) cleanupTable(ctx context.Context, tableName string) {
	if err := s.provisioner.DropTable(ctx, tableName); err != nil {
		log.Printf("[etl] failed to clean up table %s: %v", tableName, err)
		return
	}
	log.Printf("[etl] cleaned up table %s", tableName)
}

func (s *Service) recordJobStart(ctx context.Context, job domain.ETLJob) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.Create(ctx, job); err != nil {
		log.Printf("[etl] failed to record job %s: %v", job.ID, err)
	}
}

func (s *Service) recordJobEnd(ctx context.Context, jobID uuid.UUID, status domain.JobStatus, message string, rows int) {
	if s.jobs == nil {
		return
	}
	if err := s.jobs.UpdateStatus(ctx, jobID, status, message, rows); err != nil {
		log.Printf("[etl] failed to update job %s: %v", jobID, err)
	}
}

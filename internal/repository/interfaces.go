package repository

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/datadeck/datadeck/internal/domain"
)

var (
	// ErrUploadNotFound is returned when an upload id does not resolve
	// for the requesting owner.
	ErrUploadNotFound = errors.New("upload not found")

	// ErrJobNotFound is returned when a job id does not exist.
	ErrJobNotFound = errors.New("job not found")

	// ErrTableProvisioningFailed is returned when every provisioning
	// strategy has been exhausted.
	ErrTableProvisioningFailed = errors.New("table provisioning failed")
)

// CatalogRepository is the single source of truth for which physical
// tables are live. All enumeration of upload tables goes through it.
type CatalogRepository interface {
	Create(ctx context.Context, upload domain.Upload) error
	// ListAll is the administrative, unscoped listing (uploaded_at desc).
	ListAll(ctx context.Context) ([]domain.Upload, error)
	// ListOwned is the owner-scoped counterpart.
	ListOwned(ctx context.Context, ownerID uuid.UUID) ([]domain.Upload, error)
	// GetOwned resolves one upload for one owner or ErrUploadNotFound.
	GetOwned(ctx context.Context, uploadID, ownerID uuid.UUID) (domain.Upload, error)
	// ResolveTables returns the owner's catalog rows, optionally
	// restricted to the given physical table names, in catalog order.
	ResolveTables(ctx context.Context, ownerID uuid.UUID, tableNames []string) ([]domain.Upload, error)
}

// RowStore reads and writes the per-upload physical tables.
type RowStore interface {
	// InsertBatch bulk-inserts rows and returns the backend-reported
	// inserted count.
	InsertBatch(ctx context.Context, table string, rows []domain.RowRecord) (int, error)
	InsertOne(ctx context.Context, table string, row domain.RowRecord) error
	// SelectRows returns up to limit owner-scoped rows from one table.
	SelectRows(ctx context.Context, table string, ownerID uuid.UUID, limit int) ([]domain.RowEnvelope, error)
}

// TableProvisioner ensures a physical table exists before loading and
// tears it down on unrecoverable failure.
type TableProvisioner interface {
	EnsureTable(ctx context.Context, physicalName string, ownerID uuid.UUID) error
	// WaitReady polls until the table is visible, with bounded backoff.
	WaitReady(ctx context.Context, physicalName string) error
	// DropTable is best effort; failures are for the caller to log, not
	// to propagate over the original error.
	DropTable(ctx context.Context, physicalName string) error
}

// JobRepository persists ingestion job lifecycle records and aggregates
// metrics over them.
type JobRepository interface {
	Create(ctx context.Context, job domain.ETLJob) error
	UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, message string, rowsProcessed int) error
	List(ctx context.Context, status domain.JobStatus, limit int) ([]domain.ETLJob, error)
	GetByID(ctx context.Context, id uuid.UUID) (domain.ETLJob, error)
	GetMetrics(ctx context.Context, days int) (domain.JobMetrics, error)
}

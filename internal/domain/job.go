package domain

import (
	"time"

	"github.com/google/uuid"
)

// JobStatus tracks the lifecycle of one ingestion job.
type JobStatus string

const (
	JobStatusRunning   JobStatus = "running"
	JobStatusCompleted JobStatus = "completed"
	JobStatusFailed    JobStatus = "failed"
)

// ETLJob is the persisted record of one ingestion run. It backs the job
// history and metrics surface; the ETL core itself only writes it.
type ETLJob struct {
	ID            uuid.UUID  `json:"id"`
	OwnerID       uuid.UUID  `json:"owner_id"`
	Kind          string     `json:"kind"`
	FileName      string     `json:"filename"`
	Status        JobStatus  `json:"status"`
	Message       string     `json:"message,omitempty"`
	RowsProcessed int        `json:"rows_processed"`
	StartedAt     time.Time  `json:"started_at"`
	CompletedAt   *time.Time `json:"completed_at,omitempty"`
}

// NewETLJob creates a running job record for an ingestion that has just
// started.
func NewETLJob(ownerID uuid.UUID, kind, fileName string) ETLJob {
	return ETLJob{
		ID:        uuid.New(),
		OwnerID:   ownerID,
		Kind:      kind,
		FileName:  fileName,
		Status:    JobStatusRunning,
		StartedAt: time.Now().UTC(),
	}
}

// JobMetrics aggregates job activity over a trailing window.
type JobMetrics struct {
	WindowDays         int     `json:"window_days"`
	TotalJobs          int64   `json:"total_jobs"`
	CompletedJobs      int64   `json:"completed_jobs"`
	FailedJobs         int64   `json:"failed_jobs"`
	SuccessRate        float64 `json:"success_rate"`
	RowsProcessedTotal int64   `json:"rows_processed_total"`
}

package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datadeck/datadeck/internal/domain"
)

type jobRepository struct {
	pool *pgxpool.Pool
}

// NewJobRepository wires the etl_jobs store backed by pgxpool.
func NewJobRepository(pool *pgxpool.Pool) JobRepository {
	return &jobRepository{pool: pool}
}

func (r *jobRepository) Create(ctx context.Context, job domain.ETLJob) error {
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO etl_jobs (id, owner_id, kind, file_name, status, message, rows_processed, started_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		job.ID,
		job.OwnerID,
		job.Kind,
		job.FileName,
		job.Status,
		job.Message,
		job.RowsProcessed,
		job.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}
	return nil
}

func (r *jobRepository) UpdateStatus(ctx context.Context, id uuid.UUID, status domain.JobStatus, message string, rowsProcessed int) error {
	_, err := r.pool.Exec(
		ctx,
		`UPDATE etl_jobs
		 SET status = $2, message = $3, rows_processed = $4, completed_at = $5
		 WHERE id = $1`,
		id,
		status,
		message,
		rowsProcessed,
		time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update job %s: %w", id, err)
	}
	return nil
}

func (r *jobRepository) List(ctx context.Context, status domain.JobStatus, limit int) ([]domain.ETLJob, error) {
	query := `SELECT id, owner_id, kind, file_name, status, message, rows_processed, started_at, completed_at
		 FROM etl_jobs`
	args := []any{}
	if status != "" {
		query += ` WHERE status = $1`
		args = append(args, status)
	}
	query += fmt.Sprintf(` ORDER BY started_at DESC LIMIT $%d`, len(args)+1)
	args = append(args, limit)

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}
	defer rows.Close()

	jobs := []domain.ETLJob{}
	for rows.Next() {
		job, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, job)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate jobs: %w", err)
	}
	return jobs, nil
}

func (r *jobRepository) GetByID(ctx context.Context, id uuid.UUID) (domain.ETLJob, error) {
	row := r.pool.QueryRow(
		ctx,
		`SELECT id, owner_id, kind, file_name, status, message, rows_processed, started_at, completed_at
		 FROM etl_jobs
		 WHERE id = $1`,
		id,
	)
	job, err := scanJob(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ETLJob{}, fmt.Errorf("%w: job %s", ErrJobNotFound, id)
		}
		return domain.ETLJob{}, err
	}
	return job, nil
}

func (r *jobRepository) GetMetrics(ctx context.Context, days int) (domain.JobMetrics, error) {
	metrics := domain.JobMetrics{WindowDays: days}
	err := r.pool.QueryRow(
		ctx,
		`SELECT
			count(*),
			count(*) FILTER (WHERE status = 'completed'),
			count(*) FILTER (WHERE status = 'failed'),
			coalesce(sum(rows_processed), 0)
		 FROM etl_jobs
		 WHERE started_at >= now() - make_interval(days => $1)`,
		days,
	).Scan(
		&metrics.TotalJobs,
		&metrics.CompletedJobs,
		&metrics.FailedJobs,
		&metrics.RowsProcessedTotal,
	)
	if err != nil {
		return domain.JobMetrics{}, fmt.Errorf("failed to aggregate job metrics: %w", err)
	}
	if metrics.TotalJobs > 0 {
		metrics.SuccessRate = float64(metrics.CompletedJobs) / float64(metrics.TotalJobs)
	}
	return metrics, nil
}

func scanJob(row pgx.Row) (domain.ETLJob, error) {
	var job domain.ETLJob
	err := row.Scan(
		&job.ID,
		&job.OwnerID,
		&job.Kind,
		&job.FileName,
		&job.Status,
		&job.Message,
		&job.RowsProcessed,
		&job.StartedAt,
		&job.CompletedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.ETLJob{}, err
		}
		return domain.ETLJob{}, fmt.Errorf("failed to scan job: %w", err)
	}
	return job, nil
}

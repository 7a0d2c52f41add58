package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datadeck/datadeck/internal/domain"
)

type catalogRepository struct {
	pool *pgxpool.Pool
}

// NewCatalogRepository wires the uploads catalog backed by pgxpool.
func NewCatalogRepository(pool *pgxpool.Pool) CatalogRepository {
	return &catalogRepository{pool: pool}
}

func (r *catalogRepository) Create(ctx context.Context, upload domain.Upload) error {
	_, err := r.pool.Exec(
		ctx,
		`INSERT INTO uploads (id, owner_id, filename, physical_table_name, uploaded_at, row_count)
		 VALUES ($1, $2, $3, $4, $5, $6)`,
		upload.ID,
		upload.OwnerID,
		upload.FileName,
		upload.PhysicalTableName,
		upload.UploadedAt,
		upload.RowCount,
	)
	if err != nil {
		return fmt.Errorf("failed to create catalog entry: %w", err)
	}
	return nil
}

func (r *catalogRepository) ListAll(ctx context.Context) ([]domain.Upload, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, owner_id, filename, physical_table_name, uploaded_at, row_count
		 FROM uploads
		 ORDER BY uploaded_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list uploads: %w", err)
	}
	return scanUploads(rows)
}

func (r *catalogRepository) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]domain.Upload, error) {
	rows, err := r.pool.Query(
		ctx,
		`SELECT id, owner_id, filename, physical_table_name, uploaded_at, row_count
		 FROM uploads
		 WHERE owner_id = $1
		 ORDER BY uploaded_at DESC`,
		ownerID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list owned uploads: %w", err)
	}
	return scanUploads(rows)
}

func (r *catalogRepository) GetOwned(ctx context.Context, uploadID, ownerID uuid.UUID) (domain.Upload, error) {
	var upload domain.Upload
	err := r.pool.QueryRow(
		ctx,
		`SELECT id, owner_id, filename, physical_table_name, uploaded_at, row_count
		 FROM uploads
		 WHERE id = $1 AND owner_id = $2`,
		uploadID,
		ownerID,
	).Scan(
		&upload.ID,
		&upload.OwnerID,
		&upload.FileName,
		&upload.PhysicalTableName,
		&upload.UploadedAt,
		&upload.RowCount,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return domain.Upload{}, fmt.Errorf("%w: upload %s for owner %s", ErrUploadNotFound, uploadID, ownerID)
		}
		return domain.Upload{}, fmt.Errorf("failed to get upload: %w", err)
	}
	return upload, nil
}

func (r *catalogRepository) ResolveTables(ctx context.Context, ownerID uuid.UUID, tableNames []string) ([]domain.Upload, error) {
	query := `SELECT id, owner_id, filename, physical_table_name, uploaded_at, row_count
		 FROM uploads
		 WHERE owner_id = $1`
	args := []any{ownerID}
	if len(tableNames) > 0 {
		query += ` AND physical_table_name = ANY($2)`
		args = append(args, tableNames)
	}
	query += ` ORDER BY uploaded_at DESC`

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tables: %w", err)
	}
	return scanUploads(rows)
}

func scanUploads(rows pgx.Rows) ([]domain.Upload, error) {
	defer rows.Close()

	uploads := []domain.Upload{}
	for rows.Next() {
		var upload domain.Upload
		if err := rows.Scan(
			&upload.ID,
			&upload.OwnerID,
			&upload.FileName,
			&upload.PhysicalTableName,
			&upload.UploadedAt,
			&upload.RowCount,
		); err != nil {
			return nil, fmt.Errorf("failed to scan upload: %w", err)
		}
		uploads = append(uploads, upload)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate uploads: %w", err)
	}
	return uploads, nil
}

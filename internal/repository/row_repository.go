package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/datadeck/datadeck/internal/domain"
)

type rowRepository struct {
	pool *pgxpool.Pool
}

// NewRowRepository wires the per-upload table store backed by pgxpool.
func NewRowRepository(pool *pgxpool.Pool) RowStore {
	return &rowRepository{pool: pool}
}

// quoteIdent quotes a dynamic table name. Physical names are derived
// from UUIDs, but they still travel through SQL text rather than bind
// parameters, so they are always quoted.
func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func (r *rowRepository) InsertBatch(ctx context.Context, table string, rows []domain.RowRecord) (int, error) {
	if len(rows) == 0 {
		return 0, nil
	}

	payloads := make([]json.RawMessage, len(rows))
	for i, row := range rows {
		payload, err := row.PayloadJSON()
		if err != nil {
			return 0, fmt.Errorf("failed to marshal payload %d: %w", i, err)
		}
		payloads[i] = payload
	}
	batchJSON, err := json.Marshal(payloads)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal batch: %w", err)
	}

	tag, err := r.pool.Exec(
		ctx,
		fmt.Sprintf(
			`INSERT INTO %s (owner_id, payload)
			 SELECT $1, jsonb_array_elements($2::jsonb)`,
			quoteIdent(table),
		),
		rows[0].OwnerID,
		batchJSON,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert batch into %s: %w", table, err)
	}
	return int(tag.RowsAffected()), nil
}

func (r *rowRepository) InsertOne(ctx context.Context, table string, row domain.RowRecord) error {
	payload, err := row.PayloadJSON()
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	_, err = r.pool.Exec(
		ctx,
		fmt.Sprintf(`INSERT INTO %s (owner_id, payload) VALUES ($1, $2)`, quoteIdent(table)),
		row.OwnerID,
		payload,
	)
	if err != nil {
		return fmt.Errorf("failed to insert row into %s: %w", table, err)
	}
	return nil
}

func (r *rowRepository) SelectRows(ctx context.Context, table string, ownerID uuid.UUID, limit int) ([]domain.RowEnvelope, error) {
	rows, err := r.pool.Query(
		ctx,
		fmt.Sprintf(
			`SELECT id, owner_id, payload FROM %s WHERE owner_id = $1 ORDER BY created_at LIMIT $2`,
			quoteIdent(table),
		),
		ownerID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to select rows from %s: %w", table, err)
	}
	defer rows.Close()

	envelopes := []domain.RowEnvelope{}
	for rows.Next() {
		var (
			envelope    domain.RowEnvelope
			payloadJSON json.RawMessage
		)
		if err := rows.Scan(&envelope.RecordID, &envelope.OwnerID, &payloadJSON); err != nil {
			return nil, fmt.Errorf("failed to scan row from %s: %w", table, err)
		}
		if err := json.Unmarshal(payloadJSON, &envelope.Payload); err != nil {
			return nil, fmt.Errorf("failed to decode payload for record %s: %w", envelope.RecordID, err)
		}
		envelope.SourceTable = table
		envelopes = append(envelopes, envelope)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate rows from %s: %w", table, err)
	}
	return envelopes, nil
}

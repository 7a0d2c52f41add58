package query

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/datadeck/datadeck/internal/domain"
	"github.com/datadeck/datadeck/internal/repository"
)

const (
	// DefaultLimit applies when a request does not specify one.
	DefaultLimit = 100

	// MaxLimit caps any single read; requests beyond it are rejected, not
	// clamped, so callers learn the bound instead of silently losing rows.
	MaxLimit = 1000
)

var (
	// ErrLimitExceeded is returned when a requested limit falls outside
	// [1, MaxLimit].
	ErrLimitExceeded = errors.New("limit out of range")

	// ErrFilterNotSupported is returned when a query sets filter fields
	// that are declared but not implemented.
	ErrFilterNotSupported = errors.New("filter not supported")
)

// Service reads back ingested data. All row access is owner-scoped; the
// catalog decides which physical tables an owner may touch.
type Service struct {
	catalog repository.CatalogRepository
	rows    repository.RowStore
}

// NewService wires the read-side service.
func NewService(catalog repository.CatalogRepository, rows repository.RowStore) *Service {
	return &Service{catalog: catalog, rows: rows}
}

// ListAll returns every catalog entry, newest first. Administrative; no
// owner scoping.
func (s *Service) ListAll(ctx context.Context) ([]domain.Upload, error) {
	return s.catalog.ListAll(ctx)
}

// ListOwned returns the owner's catalog entries, newest first.
func (s *Service) ListOwned(ctx context.Context, ownerID uuid.UUID) ([]domain.Upload, error) {
	return s.catalog.ListOwned(ctx, ownerID)
}

// FetchRows reads up to limit rows from one upload. The upload must
// belong to the owner or ErrUploadNotFound propagates; limit 0 means
// DefaultLimit.
func (s *Service) FetchRows(ctx context.Context, uploadID, ownerID uuid.UUID, limit int) ([]map[string]any, domain.Upload, error) {
	if limit == 0 {
		limit = DefaultLimit
	}
	if limit < 1 || limit > MaxLimit {
		return nil, domain.Upload{}, fmt.Errorf("%w: %d not in [1, %d]", ErrLimitExceeded, limit, MaxLimit)
	}

	upload, err := s.catalog.GetOwned(ctx, uploadID, ownerID)
	if err != nil {
		return nil, domain.Upload{}, err
	}

	envelopes, err := s.rows.SelectRows(ctx, upload.PhysicalTableName, ownerID, limit)
	if err != nil {
		return nil, domain.Upload{}, err
	}
	return flatten(envelopes), upload, nil
}

// QueryFiltered aggregates rows across the owner's tables. Table names
// outside the owner's catalog are silently dropped by resolution; the
// reserved filter fields are rejected up front.
func (s *Service) QueryFiltered(ctx context.Context, ownerID uuid.UUID, filter domain.DataFilter) ([]map[string]any, error) {
	if filter.HasReservedFields() {
		return nil, fmt.Errorf("%w: search_term and date range filters are not implemented", ErrFilterNotSupported)
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultLimit
	}
	if filter.Limit < 1 || filter.Limit > MaxLimit {
		return nil, fmt.Errorf("%w: %d not in [1, %d]", ErrLimitExceeded, filter.Limit, MaxLimit)
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	uploads, err := s.catalog.ResolveTables(ctx, ownerID, filter.TableNames)
	if err != nil {
		return nil, err
	}

	// Each table contributes at most filter.Limit rows; the concatenation
	// is then windowed, so offset pages walk the per-table-capped lists in
	// catalog order.
	collected := []domain.RowEnvelope{}
	for _, upload := range uploads {
		envelopes, err := s.rows.SelectRows(ctx, upload.PhysicalTableName, ownerID, filter.Limit)
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", upload.PhysicalTableName, err)
		}
		collected = append(collected, envelopes...)
		if len(collected) >= filter.Offset+filter.Limit {
			break
		}
	}

	if filter.Offset >= len(collected) {
		return []map[string]any{}, nil
	}
	collected = collected[filter.Offset:]
	if len(collected) > filter.Limit {
		collected = collected[:filter.Limit]
	}
	return flatten(collected), nil
}

func flatten(envelopes []domain.RowEnvelope) []map[string]any {
	out := make([]map[string]any, len(envelopes))
	for i, envelope := range envelopes {
		out[i] = envelope.Flatten()
	}
	return out
}

package etl

import (
	"context"
	"fmt"
	"log"
	"sync/atomic"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/datadeck/datadeck/internal/domain"
	"github.com/datadeck/datadeck/internal/repository"
	"github.com/datadeck/datadeck/pkg/jsonsafe"
)

const (
	defaultBatchSize   = 50
	defaultWorkerLimit = 4
)

// BatchLoader inserts normalized records in fixed-size batches. A failed
// bulk insert falls back to single-row inserts so one bad row cannot
// sink the whole batch; individual failures are logged and skipped.
type BatchLoader struct {
	rows      repository.RowStore
	batchSize int
	workers   int
}

// NewBatchLoader wires a loader over the row store. Non-positive sizes
// fall back to defaults.
func NewBatchLoader(rows repository.RowStore, batchSize, workers int) *BatchLoader {
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}
	if workers <= 0 {
		workers = defaultWorkerLimit
	}
	return &BatchLoader{rows: rows, batchSize: batchSize, workers: workers}
}

// Load normalizes and inserts records into the given physical table,
// returning the confirmed inserted count. The count may be lower than
// len(records) under partial failure; callers must not assume equality.
func (l *BatchLoader) Load(ctx context.Context, table string, records []map[string]any, ownerID uuid.UUID) (int, error) {
	wrapped := make([]domain.RowRecord, 0, len(records))
	for i, record := range records {
		normalized := jsonsafe.Normalize(record)
		payload, ok := normalized.(map[string]any)
		if !ok {
			log.Printf("[etl] skipping record %d for %s: normalized form is not a mapping", i, table)
			continue
		}
		wrapped = append(wrapped, domain.RowRecord{OwnerID: ownerID, Payload: payload})
	}
	if len(wrapped) == 0 {
		return 0, ErrNoValidRows
	}

	var total atomic.Int64

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(l.workers)

	for start := 0; start < len(wrapped); start += l.batchSize {
		end := start + l.batchSize
		if end > len(wrapped) {
			end = len(wrapped)
		}
		batch := wrapped[start:end]
		batchNumber := start/l.batchSize + 1

		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			inserted, err := l.rows.InsertBatch(groupCtx, table, batch)
			if err == nil {
				total.Add(int64(inserted))
				return nil
			}
			log.Printf("[etl] batch %d failed for %s, retrying rows individually: %v", batchNumber, table, err)

			for _, row := range batch {
				if err := groupCtx.Err(); err != nil {
					return err
				}
				if err := l.rows.InsertOne(groupCtx, table, row); err != nil {
					log.Printf("[etl] single row insert failed for %s: %v", table, err)
					continue
				}
				total.Add(1)
			}
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return int(total.Load()), fmt.Errorf("batch load aborted: %w", err)
	}

	inserted := int(total.Load())
	if inserted == 0 {
		return 0, ErrNoRowsInserted
	}
	return inserted, nil
}

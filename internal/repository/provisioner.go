package repository

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
)

// provisionStrategy is one ordered attempt at creating a physical table.
// Strategies degrade through decreasing levels of assumed privilege:
// raw DDL, a server-side procedure, and finally an existence probe that
// accepts an already-created table as success.
type provisionStrategy struct {
	name string
	run  func(ctx context.Context, physicalName string, ownerID uuid.UUID) error
}

type tableProvisioner struct {
	pool             *pgxpool.Pool
	maxReadyAttempts uint64
}

// NewTableProvisioner wires the provisioner. maxReadyAttempts bounds the
// WaitReady poll; non-positive values fall back to 5.
func NewTableProvisioner(pool *pgxpool.Pool, maxReadyAttempts int) TableProvisioner {
	if maxReadyAttempts <= 0 {
		maxReadyAttempts = 5
	}
	return &tableProvisioner{pool: pool, maxReadyAttempts: uint64(maxReadyAttempts)}
}

func (p *tableProvisioner) EnsureTable(ctx context.Context, physicalName string, ownerID uuid.UUID) error {
	strategies := []provisionStrategy{
		{name: "raw ddl", run: p.createWithDDL},
		{name: "create_data_table rpc", run: p.createWithRPC},
		{name: "existence probe", run: p.confirmExists},
	}
	return runProvisionStrategies(ctx, physicalName, ownerID, strategies)
}

// runProvisionStrategies tries each strategy in order and short-circuits
// on the first success. When all fail, the returned error wraps the
// first strategy's error (the most meaningful one) and names every
// attempt.
func runProvisionStrategies(ctx context.Context, physicalName string, ownerID uuid.UUID, strategies []provisionStrategy) error {
	var failures []string
	var firstErr error

	for _, strategy := range strategies {
		err := strategy.run(ctx, physicalName, ownerID)
		if err == nil {
			return nil
		}
		if firstErr == nil {
			firstErr = err
		}
		failures = append(failures, fmt.Sprintf("%s: %v", strategy.name, err))
		log.Printf("[provision] strategy %q failed for %s: %v", strategy.name, physicalName, err)
	}

	return fmt.Errorf("%w for %s: %w (attempted %s)",
		ErrTableProvisioningFailed, physicalName, firstErr, strings.Join(failures, "; "))
}

func (p *tableProvisioner) createWithDDL(ctx context.Context, physicalName string, _ uuid.UUID) error {
	_, err := p.pool.Exec(ctx, fmt.Sprintf(
		`CREATE TABLE IF NOT EXISTS %s (
			id uuid PRIMARY KEY DEFAULT gen_random_uuid(),
			owner_id uuid NOT NULL,
			payload jsonb NOT NULL,
			created_at timestamptz DEFAULT now()
		)`,
		quoteIdent(physicalName),
	))
	if err != nil {
		return fmt.Errorf("create table failed: %w", err)
	}
	return nil
}

func (p *tableProvisioner) createWithRPC(ctx context.Context, physicalName string, ownerID uuid.UUID) error {
	if _, err := p.pool.Exec(ctx, `SELECT create_data_table($1, $2)`, physicalName, ownerID); err != nil {
		return fmt.Errorf("create_data_table failed: %w", err)
	}
	return nil
}

func (p *tableProvisioner) confirmExists(ctx context.Context, physicalName string, _ uuid.UUID) error {
	exists, err := p.tableExists(ctx, physicalName)
	if err != nil {
		return err
	}
	if !exists {
		return fmt.Errorf("table %s does not exist", physicalName)
	}
	return nil
}

func (p *tableProvisioner) tableExists(ctx context.Context, physicalName string) (bool, error) {
	var exists bool
	err := p.pool.QueryRow(
		ctx,
		`SELECT EXISTS (
			SELECT FROM information_schema.tables
			WHERE table_schema = 'public' AND table_name = $1
		)`,
		physicalName,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("existence check failed: %w", err)
	}
	return exists, nil
}

// WaitReady polls until the freshly provisioned table is visible. This
// replaces a fixed post-create sleep with a bounded backoff loop.
func (p *tableProvisioner) WaitReady(ctx context.Context, physicalName string) error {
	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = 100 * time.Millisecond
	expo.MaxInterval = 2 * time.Second
	expo.MaxElapsedTime = 0

	policy := backoff.WithContext(backoff.WithMaxRetries(expo, p.maxReadyAttempts), ctx)
	return backoff.Retry(func() error {
		exists, err := p.tableExists(ctx, physicalName)
		if err != nil {
			return err
		}
		if !exists {
			return errors.New("table not yet visible")
		}
		return nil
	}, policy)
}

func (p *tableProvisioner) DropTable(ctx context.Context, physicalName string) error {
	if _, err := p.pool.Exec(ctx, fmt.Sprintf(`DROP TABLE IF EXISTS %s CASCADE`, quoteIdent(physicalName))); err != nil {
		return fmt.Errorf("drop table %s failed: %w", physicalName, err)
	}
	return nil
}

package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

// DB implements storage.DB on a Postgres pool. Snapshot rows produced
// inside a transaction are buffered and handed to the sink only after
// the transaction commits, so the sink never sees rolled-back state.
type DB struct {
	pool *Pool
	sink storage.SnapshotSink
}

// NewDB creates the transactional entity store. Pass a nil sink to
// discard snapshots.
func NewDB(pool *Pool, sink storage.SnapshotSink) *DB {
	return &DB{pool: pool, sink: sink}
}

// Compile-time interface check.
var _ storage.DB = (*DB)(nil)

// InTx runs fn inside one Postgres transaction.
func (d *DB) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	pgtx, err := d.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer pgtx.Rollback(ctx)

	t := &Tx{tx: pgtx}
	if err := fn(t); err != nil {
		return err
	}
	if err := pgtx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}

	if d.sink == nil {
		return nil
	}
	if len(t.poolMetrics) > 0 {
		if err := d.sink.WritePoolMetrics(ctx, t.poolMetrics); err != nil {
			return fmt.Errorf("flush pool metrics: %w", err)
		}
	}
	if len(t.rateSnaps) > 0 {
		if err := d.sink.WriteRateSnapshots(ctx, t.rateSnaps); err != nil {
			return fmt.Errorf("flush rate snapshots: %w", err)
		}
	}
	return nil
}

// Tx is one open transaction over the full schema.
type Tx struct {
	tx          pgx.Tx
	poolMetrics []*domain.PoolMetrics
	rateSnaps   []*domain.InterestRateSnapshot
}

// Compile-time interface check.
var _ storage.Tx = (*Tx)(nil)

// AddPoolMetrics buffers a snapshot until the transaction commits.
func (t *Tx) AddPoolMetrics(_ context.Context, m *domain.PoolMetrics) error {
	t.poolMetrics = append(t.poolMetrics, m)
	return nil
}

// AddRateSnapshot buffers a snapshot until the transaction commits.
func (t *Tx) AddRateSnapshot(_ context.Context, s *domain.InterestRateSnapshot) error {
	t.rateSnaps = append(t.rateSnaps, s)
	return nil
}

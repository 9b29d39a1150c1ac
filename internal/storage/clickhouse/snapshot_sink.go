package clickhouse

import (
	"context"
	"fmt"
	"math/big"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

// SnapshotSink implements storage.SnapshotSink using ClickHouse.
type SnapshotSink struct {
	conn *Conn
}

// NewSnapshotSink creates a new SnapshotSink.
func NewSnapshotSink(conn *Conn) *SnapshotSink {
	return &SnapshotSink{conn: conn}
}

// Compile-time interface check.
var _ storage.SnapshotSink = (*SnapshotSink)(nil)

// u256 renders a big integer for a UInt256 column, treating nil as zero.
func u256(n *big.Int) *big.Int {
	if n == nil {
		return new(big.Int)
	}
	return n
}

// WritePoolMetrics appends committed pool metric rows.
func (s *SnapshotSink) WritePoolMetrics(ctx context.Context, rows []*domain.PoolMetrics) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO pool_metrics (
			id, pool, total_assets, total_shares, total_debt,
			exchange_rate, utilization, timestamp, block_number
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, m := range rows {
		err = batch.Append(
			m.ID, m.Pool.Hex(), u256(m.TotalAssets), u256(m.TotalShares), u256(m.TotalDebt),
			u256(m.ExchangeRate), u256(m.Utilization), m.Timestamp, m.BlockNumber,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// WriteRateSnapshots appends committed rate snapshot rows.
func (s *SnapshotSink) WriteRateSnapshots(ctx context.Context, rows []*domain.InterestRateSnapshot) error {
	if len(rows) == 0 {
		return nil
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO interest_rate_snapshots (
			id, pool, utilization, exchange_rate, borrow_apr_bps, timestamp, block_number
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		err = batch.Append(
			r.ID, r.Pool.Hex(), u256(r.Utilization), u256(r.ExchangeRate),
			r.BorrowAPRBps, r.Timestamp, r.BlockNumber,
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

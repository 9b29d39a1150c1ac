// Package memory provides an in-memory implementation of the entity store.
// It is the deterministic backend for reducer tests and for running the
// indexer without external services.
package memory

import (
	"context"
	"sync"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

// Table names, shared by the overlay and the base store.
const (
	tblListing       = "listing"
	tblBid           = "bid"
	tblAuctionEvent  = "auction_event"
	tblStats         = "auction_stats"
	tblFee           = "fee_distribution"
	tblTransfer      = "domain_transfer_request"
	tblCommitment    = "sealed_bid_commitment"
	tblPool          = "pool"
	tblLP            = "liquidity_provider"
	tblSupplyTx      = "supply_transaction"
	tblBorrower      = "borrower"
	tblBorrowTx      = "borrow_transaction"
	tblCollateralTx  = "collateral_transaction"
	tblLiquidation   = "liquidation_event"
	tblRentalListing = "rental_listing"
	tblRental        = "rental"
	tblRentalHistory = "rental_history"
	tblUserProfile   = "user_rental_profile"
	tblOwnerProfile  = "owner_rental_profile"
	tblDeposit       = "deposit_record"
)

// DB is an in-memory storage.DB. Transactions stage writes in an overlay
// that is merged into the base maps only when the transaction function
// succeeds, so a failing event leaves no trace.
type DB struct {
	mu     sync.Mutex
	tables map[string]map[string]any
	sink   storage.SnapshotSink
}

// New creates an empty in-memory DB. Snapshots go to sink; pass nil to
// discard them.
func New(sink storage.SnapshotSink) *DB {
	return &DB{
		tables: make(map[string]map[string]any),
		sink:   sink,
	}
}

var _ storage.DB = (*DB)(nil)

// InTx runs fn against a staged overlay under the store lock. The lock is
// held for the whole transaction, which serializes conflicting writes.
func (d *DB) InTx(ctx context.Context, fn func(tx storage.Tx) error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	tx := &Tx{
		db:     d,
		staged: make(map[string]map[string]any),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for table, rows := range tx.staged {
		base := d.tables[table]
		if base == nil {
			base = make(map[string]any)
			d.tables[table] = base
		}
		for key, v := range rows {
			base[key] = v
		}
	}

	if d.sink != nil {
		if len(tx.poolMetrics) > 0 {
			if err := d.sink.WritePoolMetrics(ctx, tx.poolMetrics); err != nil {
				return err
			}
		}
		if len(tx.rateSnaps) > 0 {
			if err := d.sink.WriteRateSnapshots(ctx, tx.rateSnaps); err != nil {
				return err
			}
		}
	}
	return nil
}

// Tx is the staged overlay for one event. Fetched values are copied one
// level deep: callers replace pointer fields, they do not mutate them in
// place.
type Tx struct {
	db          *DB
	staged      map[string]map[string]any
	poolMetrics []*domain.PoolMetrics
	rateSnaps   []*domain.InterestRateSnapshot
}

var _ storage.Tx = (*Tx)(nil)

func txGet[T any](tx *Tx, table, key string) (*T, error) {
	if rows, ok := tx.staged[table]; ok {
		if v, ok := rows[key]; ok {
			c := *(v.(*T))
			return &c, nil
		}
	}
	if rows, ok := tx.db.tables[table]; ok {
		if v, ok := rows[key]; ok {
			c := *(v.(*T))
			return &c, nil
		}
	}
	return nil, storage.ErrNotFound
}

func txPut[T any](tx *Tx, table, key string, v *T) error {
	if key == "" {
		return storage.ErrInvalidInput
	}
	rows := tx.staged[table]
	if rows == nil {
		rows = make(map[string]any)
		tx.staged[table] = rows
	}
	c := *v
	rows[key] = &c
	return nil
}

// txAdd is insert-or-ignore: it reports whether the row was newly created.
func txAdd[T any](tx *Tx, table, key string, v *T) (bool, error) {
	if key == "" {
		return false, storage.ErrInvalidInput
	}
	if _, err := txGet[T](tx, table, key); err == nil {
		return false, nil
	}
	return true, txPut(tx, table, key, v)
}

// txList collects all rows of a table matching the filter, with staged
// rows shadowing base rows.
func txList[T any](tx *Tx, table string, match func(*T) bool) []*T {
	var out []*T
	seen := make(map[string]struct{})
	if rows, ok := tx.staged[table]; ok {
		for key, v := range rows {
			seen[key] = struct{}{}
			t := v.(*T)
			if match(t) {
				c := *t
				out = append(out, &c)
			}
		}
	}
	if rows, ok := tx.db.tables[table]; ok {
		for key, v := range rows {
			if _, dup := seen[key]; dup {
				continue
			}
			t := v.(*T)
			if match(t) {
				c := *t
				out = append(out, &c)
			}
		}
	}
	return out
}

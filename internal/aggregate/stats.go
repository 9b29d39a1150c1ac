// Package aggregate maintains derived rollups incrementally from the
// deltas reducers produce, never from full-table scans.
package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
	"domain-market-indexer/internal/wad"
)

// loadStats fetches the stats row for a scope, zero-initialized if absent.
func loadStats(ctx context.Context, tx storage.Tx, id string) (*domain.AuctionStats, error) {
	s, err := tx.Stats(ctx, id)
	if err == nil {
		return s, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load stats %s: %w", id, err)
	}
	return &domain.AuctionStats{
		ID:           id,
		TotalVolume:  new(big.Int),
		AveragePrice: new(big.Int),
	}, nil
}

// AddListing folds one new listing into the global stats row.
func AddListing(ctx context.Context, tx storage.Tx, ts uint64) error {
	s, err := loadStats(ctx, tx, domain.StatsGlobal)
	if err != nil {
		return err
	}
	s.TotalListings++
	s.UpdatedAt = ts
	return tx.PutStats(ctx, s)
}

// AddBid folds one new bid into the global stats row.
func AddBid(ctx context.Context, tx storage.Tx, ts uint64) error {
	s, err := loadStats(ctx, tx, domain.StatsGlobal)
	if err != nil {
		return err
	}
	s.TotalBids++
	s.UpdatedAt = ts
	return tx.PutStats(ctx, s)
}

// AddSale folds one completed sale into the global stats row. The average
// is recomputed from the volume and sale counters, so it cannot drift.
func AddSale(ctx context.Context, tx storage.Tx, price *big.Int, ts uint64) error {
	s, err := loadStats(ctx, tx, domain.StatsGlobal)
	if err != nil {
		return err
	}
	s.TotalVolume = wad.Add(s.TotalVolume, price)
	s.CompletedSales++
	s.AveragePrice = new(big.Int).Quo(s.TotalVolume, new(big.Int).SetUint64(s.CompletedSales))
	s.UpdatedAt = ts
	return tx.PutStats(ctx, s)
}

package aggregate

import (
	"context"
	"math/big"
	"testing"

	"github.com/stretchr/testify/require"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
	"domain-market-indexer/internal/storage/memory"
)

func TestStats_SingleAccumulatorRow(t *testing.T) {
	db := memory.New(nil)
	ctx := context.Background()

	err := db.InTx(ctx, func(tx storage.Tx) error {
		require.NoError(t, AddListing(ctx, tx, 100))
		require.NoError(t, AddListing(ctx, tx, 101))
		require.NoError(t, AddBid(ctx, tx, 102))
		require.NoError(t, AddSale(ctx, tx, big.NewInt(1000), 103))
		require.NoError(t, AddSale(ctx, tx, big.NewInt(500), 104))
		return nil
	})
	require.NoError(t, err)

	err = db.InTx(ctx, func(tx storage.Tx) error {
		s, err := tx.Stats(ctx, domain.StatsGlobal)
		require.NoError(t, err)
		require.Equal(t, uint64(2), s.TotalListings)
		require.Equal(t, uint64(1), s.TotalBids)
		require.Equal(t, uint64(2), s.CompletedSales)
		require.Zero(t, s.TotalVolume.Cmp(big.NewInt(1500)))
		// 1500 / 2, integer division
		require.Zero(t, s.AveragePrice.Cmp(big.NewInt(750)))
		require.Equal(t, uint64(104), s.UpdatedAt)
		return nil
	})
	require.NoError(t, err)
}

func TestStats_AverageRecomputedNotDrifting(t *testing.T) {
	db := memory.New(nil)
	ctx := context.Background()

	err := db.InTx(ctx, func(tx storage.Tx) error {
		require.NoError(t, AddSale(ctx, tx, big.NewInt(10), 1))
		require.NoError(t, AddSale(ctx, tx, big.NewInt(1), 2))
		require.NoError(t, AddSale(ctx, tx, big.NewInt(1), 3))
		return nil
	})
	require.NoError(t, err)

	err = db.InTx(ctx, func(tx storage.Tx) error {
		s, err := tx.Stats(ctx, domain.StatsGlobal)
		require.NoError(t, err)
		// 12 / 3 = 4, not a running average of running averages
		require.Zero(t, s.AveragePrice.Cmp(big.NewInt(4)))
		return nil
	})
	require.NoError(t, err)
}

func TestPool_DepositWithdrawFold(t *testing.T) {
	p := &domain.Pool{
		TotalAssets: new(big.Int),
		TotalShares: new(big.Int),
		TotalDebt:   new(big.Int),
	}

	// First deposit mints 1:1.
	shares, rate := ApplyDeposit(p, big.NewInt(1_000_000))
	require.Zero(t, rate.Cmp(ratio("1000000000000000000")))
	require.Zero(t, shares.Cmp(big.NewInt(1_000_000)))

	// Simulated yield: assets grow, shares do not.
	p.TotalAssets.Add(p.TotalAssets, big.NewInt(111_111))

	shares, rate = ApplyDeposit(p, big.NewInt(500_000))
	require.Zero(t, rate.Cmp(ratio("1111111000000000000")))
	// 500_000 * 1e18 / 1.111111e18 = 450_000 (truncated)
	require.Equal(t, int64(450_000), shares.Int64())

	// Withdrawing more than the pool holds clamps at zero.
	_, _, clamped := ApplyWithdraw(p, big.NewInt(10_000_000))
	require.True(t, clamped)
	require.Zero(t, p.TotalAssets.Sign())
}

func TestPool_BorrowRepayClamp(t *testing.T) {
	p := &domain.Pool{
		TotalAssets: big.NewInt(1000),
		TotalShares: big.NewInt(1000),
		TotalDebt:   new(big.Int),
	}

	ApplyBorrow(p, big.NewInt(600))
	require.Equal(t, int64(600), p.TotalDebt.Int64())

	require.False(t, ApplyRepay(p, big.NewInt(100)))
	require.Equal(t, int64(500), p.TotalDebt.Int64())

	require.True(t, ApplyRepay(p, big.NewInt(9999)))
	require.Zero(t, p.TotalDebt.Sign())
}

func ratio(s string) *big.Int {
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		panic("bad ratio literal: " + s)
	}
	return n
}

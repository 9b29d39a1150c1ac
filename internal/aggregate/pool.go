package aggregate

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
	"domain-market-indexer/internal/wad"
)

// LoadPool fetches the running pool aggregate, zero-initialized if absent.
func LoadPool(ctx context.Context, tx storage.Tx, addr common.Address) (*domain.Pool, error) {
	p, err := tx.Pool(ctx, addr)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load pool %s: %w", addr.Hex(), err)
	}
	return &domain.Pool{
		Address:     addr,
		TotalAssets: new(big.Int),
		TotalShares: new(big.Int),
		TotalDebt:   new(big.Int),
	}, nil
}

// ApplyDeposit folds a liquidity deposit into the pool and returns the
// shares minted and the exchange rate in effect before the deposit.
func ApplyDeposit(p *domain.Pool, amount *big.Int) (shares, rate *big.Int) {
	rate = wad.ExchangeRate(p.TotalAssets, p.TotalShares)
	shares = wad.SharesFor(amount, rate)
	p.TotalAssets = wad.Add(p.TotalAssets, amount)
	p.TotalShares = wad.Add(p.TotalShares, shares)
	return shares, rate
}

// ApplyWithdraw folds a liquidity withdrawal into the pool and returns the
// shares burned, the rate in effect, and whether a clamp occurred.
func ApplyWithdraw(p *domain.Pool, amount *big.Int) (shares, rate *big.Int, clamped bool) {
	rate = wad.ExchangeRate(p.TotalAssets, p.TotalShares)
	shares = wad.SharesFor(amount, rate)
	var c1, c2 bool
	p.TotalAssets, c1 = wad.SubClamped(p.TotalAssets, amount)
	p.TotalShares, c2 = wad.SubClamped(p.TotalShares, shares)
	return shares, rate, c1 || c2
}

// ApplyBorrow folds a borrow into the pool debt.
func ApplyBorrow(p *domain.Pool, amount *big.Int) {
	p.TotalDebt = wad.Add(p.TotalDebt, amount)
}

// ApplyRepay folds a repayment into the pool debt, clamping at zero.
func ApplyRepay(p *domain.Pool, amount *big.Int) (clamped bool) {
	p.TotalDebt, clamped = wad.SubClamped(p.TotalDebt, amount)
	return clamped
}

// Metrics builds the point-in-time pool snapshot for the given event id.
func Metrics(p *domain.Pool, id string, ts, block uint64) *domain.PoolMetrics {
	return &domain.PoolMetrics{
		ID:           id,
		Pool:         p.Address,
		TotalAssets:  new(big.Int).Set(p.TotalAssets),
		TotalShares:  new(big.Int).Set(p.TotalShares),
		TotalDebt:    new(big.Int).Set(p.TotalDebt),
		ExchangeRate: wad.ExchangeRate(p.TotalAssets, p.TotalShares),
		Utilization:  wad.Utilization(p.TotalDebt, p.TotalAssets),
		Timestamp:    ts,
		BlockNumber:  block,
	}
}

// RateSnapshot builds the interest-rate snapshot for the given event id.
func RateSnapshot(p *domain.Pool, id string, aprBps uint32, ts, block uint64) *domain.InterestRateSnapshot {
	return &domain.InterestRateSnapshot{
		ID:           id,
		Pool:         p.Address,
		Utilization:  wad.Utilization(p.TotalDebt, p.TotalAssets),
		ExchangeRate: wad.ExchangeRate(p.TotalAssets, p.TotalShares),
		BorrowAPRBps: aprBps,
		Timestamp:    ts,
		BlockNumber:  block,
	}
}

package reduce

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"github.com/ethereum/go-ethereum/common"

	"domain-market-indexer/internal/aggregate"
	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
	"domain-market-indexer/internal/wad"
)

// loadLP fetches an LP position, zero-initialized if absent.
func loadLP(ctx context.Context, tx storage.Tx, lp, pool common.Address) (*domain.LiquidityProvider, error) {
	id := domain.LPKey(lp, pool)
	p, err := tx.LiquidityProvider(ctx, id)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load lp %s: %w", id, err)
	}
	return &domain.LiquidityProvider{
		ID:                id,
		LP:                lp,
		Pool:              pool,
		TotalDeposited:    new(big.Int),
		TotalWithdrawn:    new(big.Int),
		CurrentShares:     new(big.Int),
		CurrentAssetValue: new(big.Int),
	}, nil
}

// loadBorrower fetches a borrow position, zero-initialized if absent.
func loadBorrower(ctx context.Context, tx storage.Tx, borrower, pool common.Address) (*domain.Borrower, error) {
	id := domain.BorrowerKey(borrower, pool)
	b, err := tx.Borrower(ctx, id)
	if err == nil {
		return b, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load borrower %s: %w", id, err)
	}
	return &domain.Borrower{
		ID:                  id,
		Address:             borrower,
		Pool:                pool,
		TotalBorrowed:       new(big.Int),
		TotalRepaid:         new(big.Int),
		CurrentDebt:         new(big.Int),
		CurrentHealthFactor: new(big.Int).Set(wad.MaxHealthFactor),
		CollateralValue:     new(big.Int),
	}, nil
}

// snapshotPool records the point-in-time pool metrics and rate snapshot
// for the event that changed the pool totals.
func (r *Reducers) snapshotPool(ctx context.Context, tx storage.Tx, p *domain.Pool, ev *domain.Event) error {
	if err := tx.AddPoolMetrics(ctx, aggregate.Metrics(p, ev.LedgerID(), ev.Timestamp, ev.BlockNumber)); err != nil {
		return fmt.Errorf("record pool metrics: %w", err)
	}
	if err := tx.AddRateSnapshot(ctx, aggregate.RateSnapshot(p, ev.LedgerID(), r.borrowAPRBps, ev.Timestamp, ev.BlockNumber)); err != nil {
		return fmt.Errorf("record rate snapshot: %w", err)
	}
	return nil
}

func (r *Reducers) liquidityDeposited(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	lpAddr, err := ev.Args.Address("lp")
	if err != nil {
		return err
	}
	amount, err := ev.Args.BigInt("amount")
	if err != nil {
		return err
	}
	poolAddr := ev.ContractAddress

	pool, err := aggregate.LoadPool(ctx, tx, poolAddr)
	if err != nil {
		return err
	}
	shares, rate := aggregate.ApplyDeposit(pool, amount)

	created, err := tx.AddSupplyTransaction(ctx, &domain.SupplyTransaction{
		ID:           ev.LedgerID(),
		LP:           lpAddr,
		Pool:         poolAddr,
		Type:         domain.SupplyDeposit,
		Amount:       amount,
		Shares:       shares,
		ExchangeRate: rate,
		Timestamp:    ev.Timestamp,
		BlockNumber:  ev.BlockNumber,
		TxHash:       ev.TxHash,
	})
	if err != nil {
		return fmt.Errorf("append supply transaction: %w", err)
	}
	if !created {
		return nil
	}

	pool.UpdatedAt = ev.Timestamp
	if err := tx.PutPool(ctx, pool); err != nil {
		return fmt.Errorf("put pool %s: %w", poolAddr.Hex(), err)
	}

	lp, err := loadLP(ctx, tx, lpAddr, poolAddr)
	if err != nil {
		return err
	}
	lp.TotalDeposited = wad.Add(lp.TotalDeposited, amount)
	lp.CurrentShares = wad.Add(lp.CurrentShares, shares)
	lp.CurrentAssetValue = wad.AssetsFor(lp.CurrentShares, wad.ExchangeRate(pool.TotalAssets, pool.TotalShares))
	if lp.FirstDepositAt == 0 {
		lp.FirstDepositAt = ev.Timestamp
	}
	lp.LastActionAt = ev.Timestamp
	if err := tx.PutLiquidityProvider(ctx, lp); err != nil {
		return fmt.Errorf("put lp %s: %w", lp.ID, err)
	}

	return r.snapshotPool(ctx, tx, pool, ev)
}

func (r *Reducers) liquidityWithdrawn(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	lpAddr, err := ev.Args.Address("lp")
	if err != nil {
		return err
	}
	amount, err := ev.Args.BigInt("amount")
	if err != nil {
		return err
	}
	poolAddr := ev.ContractAddress

	pool, err := aggregate.LoadPool(ctx, tx, poolAddr)
	if err != nil {
		return err
	}
	shares, rate, clamped := aggregate.ApplyWithdraw(pool, amount)

	created, err := tx.AddSupplyTransaction(ctx, &domain.SupplyTransaction{
		ID:           ev.LedgerID(),
		LP:           lpAddr,
		Pool:         poolAddr,
		Type:         domain.SupplyWithdraw,
		Amount:       amount,
		Shares:       shares,
		ExchangeRate: rate,
		Timestamp:    ev.Timestamp,
		BlockNumber:  ev.BlockNumber,
		TxHash:       ev.TxHash,
	})
	if err != nil {
		return fmt.Errorf("append supply transaction: %w", err)
	}
	if !created {
		return nil
	}
	if clamped {
		r.clampWarn(ev, "pool totals")
	}

	pool.UpdatedAt = ev.Timestamp
	if err := tx.PutPool(ctx, pool); err != nil {
		return fmt.Errorf("put pool %s: %w", poolAddr.Hex(), err)
	}

	lp, err := loadLP(ctx, tx, lpAddr, poolAddr)
	if err != nil {
		return err
	}
	lp.TotalWithdrawn = wad.Add(lp.TotalWithdrawn, amount)
	var shareClamp bool
	lp.CurrentShares, shareClamp = wad.SubClamped(lp.CurrentShares, shares)
	if shareClamp {
		r.clampWarn(ev, "lp shares")
	}
	lp.CurrentAssetValue = wad.AssetsFor(lp.CurrentShares, wad.ExchangeRate(pool.TotalAssets, pool.TotalShares))
	lp.LastActionAt = ev.Timestamp
	if err := tx.PutLiquidityProvider(ctx, lp); err != nil {
		return fmt.Errorf("put lp %s: %w", lp.ID, err)
	}

	return r.snapshotPool(ctx, tx, pool, ev)
}

func (r *Reducers) collateralDeposited(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	borrowerAddr, err := ev.Args.Address("borrower")
	if err != nil {
		return err
	}
	nft, err := ev.Args.Address("nft")
	if err != nil {
		return err
	}
	tokenID, err := ev.Args.BigInt("tokenId")
	if err != nil {
		return err
	}
	value, err := ev.Args.BigInt("valueUsd6")
	if err != nil {
		return err
	}
	poolAddr := ev.ContractAddress

	created, err := tx.AddCollateralTransaction(ctx, &domain.CollateralTransaction{
		ID:          ev.LedgerID(),
		Borrower:    borrowerAddr,
		Pool:        poolAddr,
		Type:        domain.CollateralDeposit,
		NFT:         nft,
		TokenID:     tokenID,
		ValueUSD:    value,
		Timestamp:   ev.Timestamp,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash,
	})
	if err != nil {
		return fmt.Errorf("append collateral transaction: %w", err)
	}
	if !created {
		return nil
	}

	b, err := loadBorrower(ctx, tx, borrowerAddr, poolAddr)
	if err != nil {
		return err
	}
	b.HasActiveCollateral = true
	b.CollateralNFT = nft
	b.CollateralTokenID = tokenID
	b.CollateralValue = value
	b.CurrentHealthFactor = wad.HealthFactor(value, b.CurrentDebt)
	b.LastActionAt = ev.Timestamp
	return tx.PutBorrower(ctx, b)
}

func (r *Reducers) collateralWithdrawn(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	borrowerAddr, err := ev.Args.Address("borrower")
	if err != nil {
		return err
	}
	nft, err := ev.Args.Address("nft")
	if err != nil {
		return err
	}
	tokenID, err := ev.Args.BigInt("tokenId")
	if err != nil {
		return err
	}
	poolAddr := ev.ContractAddress

	created, err := tx.AddCollateralTransaction(ctx, &domain.CollateralTransaction{
		ID:          ev.LedgerID(),
		Borrower:    borrowerAddr,
		Pool:        poolAddr,
		Type:        domain.CollateralWithdraw,
		NFT:         nft,
		TokenID:     tokenID,
		ValueUSD:    new(big.Int),
		Timestamp:   ev.Timestamp,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash,
	})
	if err != nil {
		return fmt.Errorf("append collateral transaction: %w", err)
	}
	if !created {
		return nil
	}

	b, err := loadBorrower(ctx, tx, borrowerAddr, poolAddr)
	if err != nil {
		return err
	}
	b.HasActiveCollateral = false
	b.CollateralValue = new(big.Int)
	b.CurrentHealthFactor = wad.HealthFactor(b.CollateralValue, b.CurrentDebt)
	b.LastActionAt = ev.Timestamp
	return tx.PutBorrower(ctx, b)
}

func (r *Reducers) collateralRefreshed(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	borrowerAddr, err := ev.Args.Address("borrower")
	if err != nil {
		return err
	}
	nft, err := ev.Args.Address("nft")
	if err != nil {
		return err
	}
	tokenID, err := ev.Args.BigInt("tokenId")
	if err != nil {
		return err
	}
	newValue, err := ev.Args.BigInt("newValue")
	if err != nil {
		return err
	}
	poolAddr := ev.ContractAddress

	created, err := tx.AddCollateralTransaction(ctx, &domain.CollateralTransaction{
		ID:          ev.LedgerID(),
		Borrower:    borrowerAddr,
		Pool:        poolAddr,
		Type:        domain.CollateralRefresh,
		NFT:         nft,
		TokenID:     tokenID,
		ValueUSD:    newValue,
		Timestamp:   ev.Timestamp,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash,
	})
	if err != nil {
		return fmt.Errorf("append collateral transaction: %w", err)
	}
	if !created {
		return nil
	}

	b, err := loadBorrower(ctx, tx, borrowerAddr, poolAddr)
	if err != nil {
		return err
	}
	b.CollateralValue = newValue
	b.CurrentHealthFactor = wad.HealthFactor(newValue, b.CurrentDebt)
	b.LastActionAt = ev.Timestamp
	return tx.PutBorrower(ctx, b)
}

func (r *Reducers) borrowed(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	borrowerAddr, err := ev.Args.Address("borrower")
	if err != nil {
		return err
	}
	amount, err := ev.Args.BigInt("amount")
	if err != nil {
		return err
	}
	newDebt, err := ev.Args.BigInt("newDebt")
	if err != nil {
		return err
	}
	poolAddr := ev.ContractAddress

	b, err := loadBorrower(ctx, tx, borrowerAddr, poolAddr)
	if err != nil {
		return err
	}
	hf := wad.HealthFactor(b.CollateralValue, newDebt)

	created, err := tx.AddBorrowTransaction(ctx, &domain.BorrowTransaction{
		ID:           ev.LedgerID(),
		Borrower:     borrowerAddr,
		Pool:         poolAddr,
		Type:         domain.BorrowDraw,
		Amount:       amount,
		NewTotalDebt: newDebt,
		HealthFactor: hf,
		APRBps:       r.borrowAPRBps,
		Timestamp:    ev.Timestamp,
		BlockNumber:  ev.BlockNumber,
		TxHash:       ev.TxHash,
	})
	if err != nil {
		return fmt.Errorf("append borrow transaction: %w", err)
	}
	if !created {
		return nil
	}

	b.TotalBorrowed = wad.Add(b.TotalBorrowed, amount)
	b.CurrentDebt = newDebt
	b.CurrentHealthFactor = hf
	if b.FirstBorrowAt == 0 {
		b.FirstBorrowAt = ev.Timestamp
	}
	b.LastActionAt = ev.Timestamp
	if err := tx.PutBorrower(ctx, b); err != nil {
		return fmt.Errorf("put borrower %s: %w", b.ID, err)
	}

	pool, err := aggregate.LoadPool(ctx, tx, poolAddr)
	if err != nil {
		return err
	}
	aggregate.ApplyBorrow(pool, amount)
	pool.UpdatedAt = ev.Timestamp
	if err := tx.PutPool(ctx, pool); err != nil {
		return fmt.Errorf("put pool %s: %w", poolAddr.Hex(), err)
	}

	return r.snapshotPool(ctx, tx, pool, ev)
}

func (r *Reducers) repaid(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	borrowerAddr, err := ev.Args.Address("borrower")
	if err != nil {
		return err
	}
	amount, err := ev.Args.BigInt("amount")
	if err != nil {
		return err
	}
	remaining, err := ev.Args.BigInt("remainingDebt")
	if err != nil {
		return err
	}
	poolAddr := ev.ContractAddress

	b, err := loadBorrower(ctx, tx, borrowerAddr, poolAddr)
	if err != nil {
		return err
	}
	hf := wad.HealthFactor(b.CollateralValue, remaining)

	created, err := tx.AddBorrowTransaction(ctx, &domain.BorrowTransaction{
		ID:           ev.LedgerID(),
		Borrower:     borrowerAddr,
		Pool:         poolAddr,
		Type:         domain.BorrowRepay,
		Amount:       amount,
		NewTotalDebt: remaining,
		HealthFactor: hf,
		APRBps:       r.borrowAPRBps,
		Timestamp:    ev.Timestamp,
		BlockNumber:  ev.BlockNumber,
		TxHash:       ev.TxHash,
	})
	if err != nil {
		return fmt.Errorf("append borrow transaction: %w", err)
	}
	if !created {
		return nil
	}

	b.TotalRepaid = wad.Add(b.TotalRepaid, amount)
	b.CurrentDebt = remaining
	b.CurrentHealthFactor = hf
	b.LastActionAt = ev.Timestamp
	if err := tx.PutBorrower(ctx, b); err != nil {
		return fmt.Errorf("put borrower %s: %w", b.ID, err)
	}

	pool, err := aggregate.LoadPool(ctx, tx, poolAddr)
	if err != nil {
		return err
	}
	if aggregate.ApplyRepay(pool, amount) {
		r.clampWarn(ev, "pool debt")
	}
	pool.UpdatedAt = ev.Timestamp
	if err := tx.PutPool(ctx, pool); err != nil {
		return fmt.Errorf("put pool %s: %w", poolAddr.Hex(), err)
	}

	return r.snapshotPool(ctx, tx, pool, ev)
}

func (r *Reducers) liquidated(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	borrowerAddr, err := ev.Args.Address("borrower")
	if err != nil {
		return err
	}
	liquidator, err := ev.Args.Address("liquidator")
	if err != nil {
		return err
	}
	nft, err := ev.Args.Address("nft")
	if err != nil {
		return err
	}
	tokenID, err := ev.Args.BigInt("tokenId")
	if err != nil {
		return err
	}
	repaid, err := ev.Args.BigInt("repaidDebt")
	if err != nil {
		return err
	}
	poolAddr := ev.ContractAddress

	// The seized value is the borrower's tracked collateral value, so a
	// liquidation without its borrower cannot be recorded honestly.
	id := domain.BorrowerKey(borrowerAddr, poolAddr)
	b, err := tx.Borrower(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return &MissingParentError{Entity: "borrower", Key: id}
	}
	if err != nil {
		return fmt.Errorf("resolve borrower %s: %w", id, err)
	}

	seized := new(big.Int).Set(b.CollateralValue)
	created, err := tx.AddLiquidation(ctx, &domain.LiquidationEvent{
		ID:              ev.LedgerID(),
		Borrower:        borrowerAddr,
		Liquidator:      liquidator,
		Pool:            poolAddr,
		NFT:             nft,
		TokenID:         tokenID,
		RepayAmount:     repaid,
		CollateralValue: seized,
		Profit:          new(big.Int).Sub(seized, repaid),
		Timestamp:       ev.Timestamp,
		BlockNumber:     ev.BlockNumber,
		TxHash:          ev.TxHash,
	})
	if err != nil {
		return fmt.Errorf("append liquidation: %w", err)
	}
	if !created {
		return nil
	}

	// The seizure is also a collateral ledger entry; the suffix keeps it
	// from colliding with rows keyed by the event id alone.
	if _, err := tx.AddCollateralTransaction(ctx, &domain.CollateralTransaction{
		ID:          ev.LedgerID() + "-liquidation",
		Borrower:    borrowerAddr,
		Pool:        poolAddr,
		Type:        domain.CollateralLiquidated,
		NFT:         nft,
		TokenID:     tokenID,
		ValueUSD:    seized,
		Timestamp:   ev.Timestamp,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash,
	}); err != nil {
		return fmt.Errorf("append collateral transaction: %w", err)
	}

	var clamped bool
	b.CurrentDebt, clamped = wad.SubClamped(b.CurrentDebt, repaid)
	if clamped {
		r.clampWarn(ev, "borrower debt")
	}
	b.HasActiveCollateral = false
	b.CollateralValue = new(big.Int)
	b.CurrentHealthFactor = wad.HealthFactor(b.CollateralValue, b.CurrentDebt)
	b.LiquidationCount++
	b.LastActionAt = ev.Timestamp
	if err := tx.PutBorrower(ctx, b); err != nil {
		return fmt.Errorf("put borrower %s: %w", b.ID, err)
	}

	pool, err := aggregate.LoadPool(ctx, tx, poolAddr)
	if err != nil {
		return err
	}
	if aggregate.ApplyRepay(pool, repaid) {
		r.clampWarn(ev, "pool debt")
	}
	pool.UpdatedAt = ev.Timestamp
	if err := tx.PutPool(ctx, pool); err != nil {
		return fmt.Errorf("put pool %s: %w", poolAddr.Hex(), err)
	}

	return r.snapshotPool(ctx, tx, pool, ev)
}

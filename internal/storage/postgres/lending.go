package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

// Pool retrieves the running pool aggregate by address.
func (t *Tx) Pool(ctx context.Context, addr common.Address) (*domain.Pool, error) {
	query := `
		SELECT address, total_assets::text, total_shares::text, total_debt::text, updated_at
		FROM pools
		WHERE address = $1
	`
	var (
		p                      domain.Pool
		address                []byte
		assets, shares, debt   string
	)
	err := t.tx.QueryRow(ctx, query, addrBytes(addr)).Scan(&address, &assets, &shares, &debt, &p.UpdatedAt)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get pool: %w", err)
	}
	p.Address = common.BytesToAddress(address)
	if p.TotalAssets, err = parseNum(assets); err != nil {
		return nil, fmt.Errorf("pool total_assets: %w", err)
	}
	if p.TotalShares, err = parseNum(shares); err != nil {
		return nil, fmt.Errorf("pool total_shares: %w", err)
	}
	if p.TotalDebt, err = parseNum(debt); err != nil {
		return nil, fmt.Errorf("pool total_debt: %w", err)
	}
	return &p, nil
}

// PutPool inserts or fully overwrites a pool aggregate.
func (t *Tx) PutPool(ctx context.Context, p *domain.Pool) error {
	query := `
		INSERT INTO pools (address, total_assets, total_shares, total_debt, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (address) DO UPDATE SET
			total_assets = EXCLUDED.total_assets,
			total_shares = EXCLUDED.total_shares,
			total_debt = EXCLUDED.total_debt,
			updated_at = EXCLUDED.updated_at
	`
	_, err := t.tx.Exec(ctx, query,
		addrBytes(p.Address), numStr(p.TotalAssets), numStr(p.TotalShares),
		numStr(p.TotalDebt), p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put pool: %w", err)
	}
	return nil
}

// LiquidityProvider retrieves an LP position by its lp-pool key.
func (t *Tx) LiquidityProvider(ctx context.Context, id string) (*domain.LiquidityProvider, error) {
	query := `
		SELECT id, lp, pool, total_deposited::text, total_withdrawn::text,
			current_shares::text, current_asset_value::text, first_deposit_at, last_action_at
		FROM liquidity_providers
		WHERE id = $1
	`
	var (
		lp                                    domain.LiquidityProvider
		lpAddr, poolAddr                      []byte
		deposited, withdrawn, shares, value   string
	)
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&lp.ID, &lpAddr, &poolAddr, &deposited, &withdrawn,
		&shares, &value, &lp.FirstDepositAt, &lp.LastActionAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get liquidity provider: %w", err)
	}
	lp.LP = common.BytesToAddress(lpAddr)
	lp.Pool = common.BytesToAddress(poolAddr)
	if lp.TotalDeposited, err = parseNum(deposited); err != nil {
		return nil, fmt.Errorf("lp total_deposited: %w", err)
	}
	if lp.TotalWithdrawn, err = parseNum(withdrawn); err != nil {
		return nil, fmt.Errorf("lp total_withdrawn: %w", err)
	}
	if lp.CurrentShares, err = parseNum(shares); err != nil {
		return nil, fmt.Errorf("lp current_shares: %w", err)
	}
	if lp.CurrentAssetValue, err = parseNum(value); err != nil {
		return nil, fmt.Errorf("lp current_asset_value: %w", err)
	}
	return &lp, nil
}

// PutLiquidityProvider inserts or fully overwrites an LP position.
func (t *Tx) PutLiquidityProvider(ctx context.Context, lp *domain.LiquidityProvider) error {
	query := `
		INSERT INTO liquidity_providers (
			id, lp, pool, total_deposited, total_withdrawn,
			current_shares, current_asset_value, first_deposit_at, last_action_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			total_deposited = EXCLUDED.total_deposited,
			total_withdrawn = EXCLUDED.total_withdrawn,
			current_shares = EXCLUDED.current_shares,
			current_asset_value = EXCLUDED.current_asset_value,
			first_deposit_at = EXCLUDED.first_deposit_at,
			last_action_at = EXCLUDED.last_action_at
	`
	_, err := t.tx.Exec(ctx, query,
		lp.ID, addrBytes(lp.LP), addrBytes(lp.Pool),
		numStr(lp.TotalDeposited), numStr(lp.TotalWithdrawn),
		numStr(lp.CurrentShares), numStr(lp.CurrentAssetValue),
		lp.FirstDepositAt, lp.LastActionAt,
	)
	if err != nil {
		return fmt.Errorf("put liquidity provider: %w", err)
	}
	return nil
}

// AddSupplyTransaction appends a supply ledger row, reporting whether it
// was newly created.
func (t *Tx) AddSupplyTransaction(ctx context.Context, s *domain.SupplyTransaction) (bool, error) {
	query := `
		INSERT INTO supply_transactions (
			id, lp, pool, type, amount, shares, exchange_rate, timestamp, block_number, tx_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query,
		s.ID, addrBytes(s.LP), addrBytes(s.Pool), string(s.Type),
		numStr(s.Amount), numStr(s.Shares), numStr(s.ExchangeRate),
		s.Timestamp, s.BlockNumber, hashBytes(s.TxHash),
	)
	if err != nil {
		return false, fmt.Errorf("insert supply transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// Borrower retrieves a borrow position by its borrower-pool key.
func (t *Tx) Borrower(ctx context.Context, id string) (*domain.Borrower, error) {
	query := `
		SELECT id, address, pool, total_borrowed::text, total_repaid::text,
			current_debt::text, current_health_factor::text, has_active_collateral,
			collateral_nft, collateral_token_id::text, collateral_value::text,
			first_borrow_at, last_action_at, liquidation_count
		FROM borrowers
		WHERE id = $1
	`
	var (
		b                                 domain.Borrower
		address, pool, collateralNFT      []byte
		borrowed, repaid, debt, hf        string
		collateralTokenID, collateralVal  string
	)
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&b.ID, &address, &pool, &borrowed, &repaid,
		&debt, &hf, &b.HasActiveCollateral,
		&collateralNFT, &collateralTokenID, &collateralVal,
		&b.FirstBorrowAt, &b.LastActionAt, &b.LiquidationCount,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get borrower: %w", err)
	}
	b.Address = common.BytesToAddress(address)
	b.Pool = common.BytesToAddress(pool)
	b.CollateralNFT = common.BytesToAddress(collateralNFT)
	if b.TotalBorrowed, err = parseNum(borrowed); err != nil {
		return nil, fmt.Errorf("borrower total_borrowed: %w", err)
	}
	if b.TotalRepaid, err = parseNum(repaid); err != nil {
		return nil, fmt.Errorf("borrower total_repaid: %w", err)
	}
	if b.CurrentDebt, err = parseNum(debt); err != nil {
		return nil, fmt.Errorf("borrower current_debt: %w", err)
	}
	if b.CurrentHealthFactor, err = parseNum(hf); err != nil {
		return nil, fmt.Errorf("borrower current_health_factor: %w", err)
	}
	if b.CollateralTokenID, err = parseNum(collateralTokenID); err != nil {
		return nil, fmt.Errorf("borrower collateral_token_id: %w", err)
	}
	if b.CollateralValue, err = parseNum(collateralVal); err != nil {
		return nil, fmt.Errorf("borrower collateral_value: %w", err)
	}
	return &b, nil
}

// PutBorrower inserts or fully overwrites a borrow position.
func (t *Tx) PutBorrower(ctx context.Context, b *domain.Borrower) error {
	query := `
		INSERT INTO borrowers (
			id, address, pool, total_borrowed, total_repaid,
			current_debt, current_health_factor, has_active_collateral,
			collateral_nft, collateral_token_id, collateral_value,
			first_borrow_at, last_action_at, liquidation_count
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14)
		ON CONFLICT (id) DO UPDATE SET
			total_borrowed = EXCLUDED.total_borrowed,
			total_repaid = EXCLUDED.total_repaid,
			current_debt = EXCLUDED.current_debt,
			current_health_factor = EXCLUDED.current_health_factor,
			has_active_collateral = EXCLUDED.has_active_collateral,
			collateral_nft = EXCLUDED.collateral_nft,
			collateral_token_id = EXCLUDED.collateral_token_id,
			collateral_value = EXCLUDED.collateral_value,
			first_borrow_at = EXCLUDED.first_borrow_at,
			last_action_at = EXCLUDED.last_action_at,
			liquidation_count = EXCLUDED.liquidation_count
	`
	_, err := t.tx.Exec(ctx, query,
		b.ID, addrBytes(b.Address), addrBytes(b.Pool),
		numStr(b.TotalBorrowed), numStr(b.TotalRepaid),
		numStr(b.CurrentDebt), numStr(b.CurrentHealthFactor), b.HasActiveCollateral,
		addrBytes(b.CollateralNFT), numStr(b.CollateralTokenID), numStr(b.CollateralValue),
		b.FirstBorrowAt, b.LastActionAt, b.LiquidationCount,
	)
	if err != nil {
		return fmt.Errorf("put borrower: %w", err)
	}
	return nil
}

// AddBorrowTransaction appends a borrow ledger row, reporting whether it
// was newly created.
func (t *Tx) AddBorrowTransaction(ctx context.Context, b *domain.BorrowTransaction) (bool, error) {
	query := `
		INSERT INTO borrow_transactions (
			id, borrower, pool, type, amount, new_total_debt,
			health_factor, apr_bps, timestamp, block_number, tx_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query,
		b.ID, addrBytes(b.Borrower), addrBytes(b.Pool), string(b.Type),
		numStr(b.Amount), numStr(b.NewTotalDebt), numStr(b.HealthFactor),
		b.APRBps, b.Timestamp, b.BlockNumber, hashBytes(b.TxHash),
	)
	if err != nil {
		return false, fmt.Errorf("insert borrow transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AddCollateralTransaction appends a collateral ledger row, reporting
// whether it was newly created.
func (t *Tx) AddCollateralTransaction(ctx context.Context, c *domain.CollateralTransaction) (bool, error) {
	query := `
		INSERT INTO collateral_transactions (
			id, borrower, pool, type, nft, token_id, value_usd, timestamp, block_number, tx_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query,
		c.ID, addrBytes(c.Borrower), addrBytes(c.Pool), string(c.Type),
		addrBytes(c.NFT), numStr(c.TokenID), numStr(c.ValueUSD),
		c.Timestamp, c.BlockNumber, hashBytes(c.TxHash),
	)
	if err != nil {
		return false, fmt.Errorf("insert collateral transaction: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AddLiquidation appends a liquidation row, reporting whether it was
// newly created. Profit may be negative.
func (t *Tx) AddLiquidation(ctx context.Context, l *domain.LiquidationEvent) (bool, error) {
	query := `
		INSERT INTO liquidation_events (
			id, borrower, liquidator, pool, nft, token_id,
			repay_amount, collateral_value, profit, timestamp, block_number, tx_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	profit := "0"
	if l.Profit != nil {
		profit = l.Profit.String()
	}
	tag, err := t.tx.Exec(ctx, query,
		l.ID, addrBytes(l.Borrower), addrBytes(l.Liquidator), addrBytes(l.Pool),
		addrBytes(l.NFT), numStr(l.TokenID), numStr(l.RepayAmount),
		numStr(l.CollateralValue), profit, l.Timestamp, l.BlockNumber, hashBytes(l.TxHash),
	)
	if err != nil {
		return false, fmt.Errorf("insert liquidation: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

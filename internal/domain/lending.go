package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// SupplyTxType tags a supply-side ledger entry.
type SupplyTxType string

const (
	SupplyDeposit  SupplyTxType = "deposit"
	SupplyWithdraw SupplyTxType = "withdraw"
)

// BorrowTxType tags a borrow-side ledger entry.
type BorrowTxType string

const (
	BorrowDraw  BorrowTxType = "borrow"
	BorrowRepay BorrowTxType = "repay"
)

// CollateralTxType tags a collateral ledger entry.
type CollateralTxType string

const (
	CollateralDeposit    CollateralTxType = "deposit"
	CollateralWithdraw   CollateralTxType = "withdraw"
	CollateralRefresh    CollateralTxType = "value_refresh"
	CollateralLiquidated CollateralTxType = "liquidated"
)

// Pool is the running per-pool aggregate folded from event deltas.
// Exchange rate and utilization are derived from it, never stored.
type Pool struct {
	Address     common.Address
	TotalAssets *big.Int
	TotalShares *big.Int
	TotalDebt   *big.Int
	UpdatedAt   uint64
}

// LiquidityProvider is one LP position in one pool, keyed lp-pool.
// TotalDeposited/TotalWithdrawn are lifetime monotonic accumulators;
// CurrentShares/CurrentAssetValue are latest-value fields, overwritten.
type LiquidityProvider struct {
	ID                string
	LP                common.Address
	Pool              common.Address
	TotalDeposited    *big.Int
	TotalWithdrawn    *big.Int
	CurrentShares     *big.Int
	CurrentAssetValue *big.Int
	FirstDepositAt    uint64
	LastActionAt      uint64
}

// LPKey derives the liquidity provider id.
func LPKey(lp, pool common.Address) string {
	return lp.Hex() + "-" + pool.Hex()
}

// SupplyTransaction is the append-only deposit/withdraw ledger, keyed by
// txHash-logIndex, carrying the exchange rate in effect at that time.
type SupplyTransaction struct {
	ID           string
	LP           common.Address
	Pool         common.Address
	Type         SupplyTxType
	Amount       *big.Int
	Shares       *big.Int
	ExchangeRate *big.Int
	Timestamp    uint64
	BlockNumber  uint64
	TxHash       common.Hash
}

// Borrower is one borrow position in one pool, keyed borrower-pool.
// TotalBorrowed/TotalRepaid are lifetime monotonic accumulators; debt,
// health factor and the collateral pointer are latest-value fields.
type Borrower struct {
	ID                  string
	Address             common.Address
	Pool                common.Address
	TotalBorrowed       *big.Int
	TotalRepaid         *big.Int
	CurrentDebt         *big.Int
	CurrentHealthFactor *big.Int
	HasActiveCollateral bool
	CollateralNFT       common.Address
	CollateralTokenID   *big.Int
	CollateralValue     *big.Int
	FirstBorrowAt       uint64
	LastActionAt        uint64
	LiquidationCount    uint32
}

// BorrowerKey derives the borrower id.
func BorrowerKey(borrower, pool common.Address) string {
	return borrower.Hex() + "-" + pool.Hex()
}

// BorrowTransaction is the append-only borrow/repay ledger.
type BorrowTransaction struct {
	ID           string
	Borrower     common.Address
	Pool         common.Address
	Type         BorrowTxType
	Amount       *big.Int
	NewTotalDebt *big.Int
	HealthFactor *big.Int
	APRBps       uint32
	Timestamp    uint64
	BlockNumber  uint64
	TxHash       common.Hash
}

// CollateralTransaction is the append-only collateral ledger.
type CollateralTransaction struct {
	ID          string
	Borrower    common.Address
	Pool        common.Address
	Type        CollateralTxType
	NFT         common.Address
	TokenID     *big.Int
	ValueUSD    *big.Int
	Timestamp   uint64
	BlockNumber uint64
	TxHash      common.Hash
}

// LiquidationEvent records one liquidation. Profit is
// collateral value seized minus repay amount and may be negative.
type LiquidationEvent struct {
	ID              string
	Borrower        common.Address
	Liquidator      common.Address
	Pool            common.Address
	NFT             common.Address
	TokenID         *big.Int
	RepayAmount     *big.Int
	CollateralValue *big.Int
	Profit          *big.Int
	Timestamp       uint64
	BlockNumber     uint64
	TxHash          common.Hash
}

// PoolMetrics is a point-in-time snapshot of pool-level aggregates,
// keyed by txHash-logIndex of the triggering event. Never mutated.
type PoolMetrics struct {
	ID           string
	Pool         common.Address
	TotalAssets  *big.Int
	TotalShares  *big.Int
	TotalDebt    *big.Int
	ExchangeRate *big.Int
	Utilization  *big.Int
	Timestamp    uint64
	BlockNumber  uint64
}

// InterestRateSnapshot is a point-in-time record of the rate inputs.
// Borrow APR is in basis points.
type InterestRateSnapshot struct {
	ID           string
	Pool         common.Address
	Utilization  *big.Int
	ExchangeRate *big.Int
	BorrowAPRBps uint32
	Timestamp    uint64
	BlockNumber  uint64
}

package storage

import (
	"context"

	"github.com/ethereum/go-ethereum/common"

	"domain-market-indexer/internal/domain"
)

// DB is the entity store. All writes produced by one event go through a
// single transaction so partial application is never observable.
type DB interface {
	// InTx runs fn inside one transaction. If fn returns an error the
	// transaction is rolled back and nothing is visible to readers.
	InTx(ctx context.Context, fn func(tx Tx) error) error
}

// Tx is the per-event view of every table. Stateful entities expose a
// keyed get (ErrNotFound when absent) and Put (insert-or-update).
// Append-only entities expose Add, which is insert-or-ignore and reports
// whether the row was newly created; reducers fold monotonic deltas into
// summary rows only when it was.
type Tx interface {
	// Auction house
	Listing(ctx context.Context, id string) (*domain.Listing, error)
	PutListing(ctx context.Context, l *domain.Listing) error
	AddBid(ctx context.Context, b *domain.Bid) (bool, error)
	BidsByListing(ctx context.Context, listingID string) ([]*domain.Bid, error)
	AddAuctionEvent(ctx context.Context, e *domain.AuctionEvent) (bool, error)
	AuctionEventsByListing(ctx context.Context, listingID string) ([]*domain.AuctionEvent, error)
	Stats(ctx context.Context, id string) (*domain.AuctionStats, error)
	PutStats(ctx context.Context, s *domain.AuctionStats) error
	AddFeeDistribution(ctx context.Context, f *domain.FeeDistribution) (bool, error)
	TransferRequest(ctx context.Context, id string) (*domain.DomainTransferRequest, error)
	PutTransferRequest(ctx context.Context, r *domain.DomainTransferRequest) error
	Commitment(ctx context.Context, id string) (*domain.SealedBidCommitment, error)
	PutCommitment(ctx context.Context, c *domain.SealedBidCommitment) error

	// Lending pool
	Pool(ctx context.Context, addr common.Address) (*domain.Pool, error)
	PutPool(ctx context.Context, p *domain.Pool) error
	LiquidityProvider(ctx context.Context, id string) (*domain.LiquidityProvider, error)
	PutLiquidityProvider(ctx context.Context, lp *domain.LiquidityProvider) error
	AddSupplyTransaction(ctx context.Context, t *domain.SupplyTransaction) (bool, error)
	Borrower(ctx context.Context, id string) (*domain.Borrower, error)
	PutBorrower(ctx context.Context, b *domain.Borrower) error
	AddBorrowTransaction(ctx context.Context, t *domain.BorrowTransaction) (bool, error)
	AddCollateralTransaction(ctx context.Context, t *domain.CollateralTransaction) (bool, error)
	AddLiquidation(ctx context.Context, l *domain.LiquidationEvent) (bool, error)

	// Rental vault
	RentalListing(ctx context.Context, id string) (*domain.RentalListing, error)
	PutRentalListing(ctx context.Context, l *domain.RentalListing) error
	Rental(ctx context.Context, id string) (*domain.Rental, error)
	PutRental(ctx context.Context, r *domain.Rental) error
	AddRentalHistory(ctx context.Context, h *domain.RentalHistory) (bool, error)
	UserProfile(ctx context.Context, addr common.Address) (*domain.UserRentalProfile, error)
	PutUserProfile(ctx context.Context, p *domain.UserRentalProfile) error
	OwnerProfile(ctx context.Context, addr common.Address) (*domain.OwnerRentalProfile, error)
	PutOwnerProfile(ctx context.Context, p *domain.OwnerRentalProfile) error
	DepositRecord(ctx context.Context, id string) (*domain.DepositRecord, error)
	PutDepositRecord(ctx context.Context, d *domain.DepositRecord) error

	// Snapshots. Buffered in the transaction and handed to the snapshot
	// sink only after a successful commit.
	AddPoolMetrics(ctx context.Context, m *domain.PoolMetrics) error
	AddRateSnapshot(ctx context.Context, s *domain.InterestRateSnapshot) error
}

// SnapshotSink receives committed pool-level snapshots. Implementations
// are append-only and may be eventually consistent with the entity store.
type SnapshotSink interface {
	WritePoolMetrics(ctx context.Context, rows []*domain.PoolMetrics) error
	WriteRateSnapshots(ctx context.Context, rows []*domain.InterestRateSnapshot) error
}

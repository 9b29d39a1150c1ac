// Package reduce implements the event-reduction rules: one pure
// transformation per (contract, event) pair, idempotent under replay.
// Reducers fetch the state they need from the transaction, never hold
// entity references across events, and fold monotonic deltas into summary
// rows only when the event's ledger row was newly created.
package reduce

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

// DefaultBorrowAPRBps is recorded on borrow ledger rows and rate
// snapshots until the lending pool emits a rate signal.
const DefaultBorrowAPRBps = 800

// Func applies one decoded event inside the given transaction.
type Func func(ctx context.Context, tx storage.Tx, ev *domain.Event) error

// Reducers holds the full routing table and the dependencies reducers
// share.
type Reducers struct {
	log          *zap.Logger
	borrowAPRBps uint32
	routes       map[domain.RouteKey]Func
}

// Option configures Reducers.
type Option func(*Reducers)

// WithBorrowAPRBps overrides the recorded borrow APR (basis points).
func WithBorrowAPRBps(bps uint32) Option {
	return func(r *Reducers) { r.borrowAPRBps = bps }
}

// New builds the routing table. Every supported (contract, event) pair is
// registered exactly once; a duplicate registration is a programming
// error and panics at construction.
func New(log *zap.Logger, opts ...Option) *Reducers {
	if log == nil {
		log = zap.NewNop()
	}
	r := &Reducers{
		log:          log,
		borrowAPRBps: DefaultBorrowAPRBps,
		routes:       make(map[domain.RouteKey]Func),
	}
	for _, opt := range opts {
		opt(r)
	}

	// Auction house
	r.register(domain.ContractAuctionHouse, "Listed", r.listingCreated)
	r.register(domain.ContractAuctionHouse, "CriteriaSet", r.criteriaSet)
	r.register(domain.ContractAuctionHouse, "StrategyChosen", r.strategyChosen)
	r.register(domain.ContractAuctionHouse, "AuctionStarted", r.auctionStarted)
	r.register(domain.ContractAuctionHouse, "BidPlaced", r.bidPlaced)
	r.register(domain.ContractAuctionHouse, "AuctionEnded", r.auctionEnded)
	r.register(domain.ContractAuctionHouse, "Settled", r.settled)
	r.register(domain.ContractAuctionHouse, "Cancelled", r.cancelled)

	// Strategy contracts
	r.register(domain.ContractEnglishAuction, "BidPlaced", r.bidPlaced)
	r.register(domain.ContractEnglishAuction, "AuctionExtended", r.auctionExtended)
	r.register(domain.ContractDutchAuction, "AuctionSold", r.auctionSold)
	r.register(domain.ContractSealedBidAuction, "CommitmentMade", r.commitmentMade)
	r.register(domain.ContractSealedBidAuction, "BidRevealed", r.bidRevealed)

	// Fees and registrar bridge
	r.register(domain.ContractFeeManager, "FeesDistributed", r.feesDistributed)
	r.register(domain.ContractRegistrarBridge, "DomainTransferRequested", r.transferRequested)
	r.register(domain.ContractRegistrarBridge, "DomainTransferConfirmed", r.transferConfirmed)

	// Lending pool
	r.register(domain.ContractLendingPool, "LiquidityDeposited", r.liquidityDeposited)
	r.register(domain.ContractLendingPool, "LiquidityWithdrawn", r.liquidityWithdrawn)
	r.register(domain.ContractLendingPool, "CollateralDeposited", r.collateralDeposited)
	r.register(domain.ContractLendingPool, "CollateralWithdrawn", r.collateralWithdrawn)
	r.register(domain.ContractLendingPool, "CollateralValueRefreshed", r.collateralRefreshed)
	r.register(domain.ContractLendingPool, "Borrowed", r.borrowed)
	r.register(domain.ContractLendingPool, "Repaid", r.repaid)
	r.register(domain.ContractLendingPool, "Liquidated", r.liquidated)

	// Rental vault
	r.register(domain.ContractRentalVault, "Listed", r.rentalListed)
	r.register(domain.ContractRentalVault, "TermsSet", r.termsSet)
	r.register(domain.ContractRentalVault, "Rented", r.rented)
	r.register(domain.ContractRentalVault, "Extended", r.rentalExtended)
	r.register(domain.ContractRentalVault, "Ended", r.rentalEnded)
	r.register(domain.ContractRentalVault, "DepositClaimed", r.depositClaimed)
	r.register(domain.ContractRentalVault, "Paused", r.rentalPaused)
	r.register(domain.ContractRentalVault, "Unlisted", r.unlisted)

	return r
}

func (r *Reducers) register(c domain.Contract, event string, fn Func) {
	key := domain.RouteKey{Contract: c, Event: event}
	if _, dup := r.routes[key]; dup {
		panic(fmt.Sprintf("reduce: duplicate route %s", key))
	}
	r.routes[key] = fn
}

// Lookup returns the reducer for a routing key, or false for events this
// indexer does not handle.
func (r *Reducers) Lookup(key domain.RouteKey) (Func, bool) {
	fn, ok := r.routes[key]
	return fn, ok
}

// updateListing applies fn to a listing if it exists and writes it back;
// a missing listing makes the update a no-op.
func updateListing(ctx context.Context, tx storage.Tx, id string, ts uint64, fn func(*domain.Listing)) error {
	l, err := tx.Listing(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch listing %s: %w", id, err)
	}
	fn(l)
	l.UpdatedAt = ts
	return tx.PutListing(ctx, l)
}

// clampWarn logs a counter clamp. The read model degrades gracefully
// instead of halting ingestion on underflow.
func (r *Reducers) clampWarn(ev *domain.Event, field string) {
	r.log.Warn("counter clamped at zero",
		zap.String("field", field),
		zap.String("event", ev.RouteKey().String()),
		zap.String("tx", ev.TxHash.Hex()),
		zap.Uint32("log_index", ev.LogIndex),
	)
}

package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// RentalListing is one rentable domain, keyed by the on-chain listing id.
// Created by Listed with zeroed terms; TermsSet fills them later. Queries
// must tolerate the transitional terms-pending state.
type RentalListing struct {
	ID              string
	Owner           common.Address
	NFT             common.Address
	TokenID         *big.Int
	PaymentToken    common.Address
	PricePerDay     *big.Int
	SecurityDeposit *big.Int
	MinDays         uint32
	MaxDays         uint32
	Paused          bool
	Active          bool
	CreatedAt       uint64
	UpdatedAt       uint64
}

// HasTerms reports whether TermsSet has fired. The payment token stays the
// zero-address sentinel until it does.
func (l *RentalListing) HasTerms() bool {
	return l.PaymentToken != (common.Address{})
}

// Rental is the active occupancy of a listing; at most one per listing id.
// TotalPaid is computed once at rental time (pricePerDay times days), never
// re-derived later.
type Rental struct {
	ID        string
	ListingID string
	User      common.Address
	Owner     common.Address
	NFT       common.Address
	TokenID   *big.Int
	Days      uint32
	TotalPaid *big.Int
	Deposit   *big.Int
	Expires   uint64
	Active    bool
	StartedAt uint64
	EndedAt   uint64
}

// RentalHistory is the append-only audit log for rental activity,
// keyed by txHash-logIndex.
type RentalHistory struct {
	ID          string
	ListingID   string
	EventType   string
	User        common.Address
	Owner       common.Address
	NFT         common.Address
	TokenID     *big.Int
	Data        map[string]string
	Timestamp   uint64
	BlockNumber uint64
	TxHash      common.Hash
}

// UserRentalProfile is the per-renter rollup. Counts and sums accumulate
// monotonically except ActiveRentals, which is decremented on Ended and
// clamps at zero.
type UserRentalProfile struct {
	Address        common.Address
	TotalRentals   uint64
	TotalSpent     *big.Int
	TotalDeposits  *big.Int
	ActiveRentals  uint64
	ExpiredRentals uint64
	CreatedAt      uint64
	UpdatedAt      uint64
}

// OwnerRentalProfile is the per-owner rollup. ActiveListings is
// decremented on Unlisted and clamps at zero.
type OwnerRentalProfile struct {
	Address        common.Address
	TotalListings  uint64
	TotalRentals   uint64
	TotalEarned    *big.Int
	ActiveListings uint64
	CreatedAt      uint64
	UpdatedAt      uint64
}

// DepositRecord tracks a rental security deposit.
// Lifecycle: locked, then claimed.
type DepositRecord struct {
	ID           string
	ListingID    string
	User         common.Address
	Amount       *big.Int
	PaymentToken common.Address
	Locked       bool
	Claimed      bool
	ClaimedBy    common.Address
	LockedAt     uint64
	ClaimedAt    uint64
}

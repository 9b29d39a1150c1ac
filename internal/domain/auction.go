package domain

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// ListingStatus is the lifecycle state of a marketplace listing.
// Listed, then Live, then one of Ended, Sold, Settled or Cancelled; the last four are
// terminal. Transitions are applied as unconditional overwrites in event
// order: legality is enforced on-chain, not here.
type ListingStatus string

const (
	StatusListed    ListingStatus = "Listed"
	StatusLive      ListingStatus = "Live"
	StatusEnded     ListingStatus = "Ended"
	StatusSold      ListingStatus = "Sold"
	StatusSettled   ListingStatus = "Settled"
	StatusCancelled ListingStatus = "Cancelled"
)

// Listing is one marketplace listing, keyed by the on-chain listing id.
// Strategy fields are the zero address / empty until StrategyChosen fires.
type Listing struct {
	ID              string
	Seller          common.Address
	NFT             common.Address
	TokenID         *big.Int
	PaymentToken    common.Address
	ReservePrice    *big.Int
	StartTime       uint64
	EndTime         uint64
	Strategy        common.Address
	StrategyData    []byte
	EligibilityData []byte
	Status          ListingStatus
	Winner          common.Address
	WinningBid      *big.Int
	CreatedAt       uint64
	UpdatedAt       uint64
}

// Bid is one placed bid. Append-only, keyed by txHash-logIndex.
// NFT and TokenID are denormalized from the parent listing.
type Bid struct {
	ID          string
	ListingID   string
	Bidder      common.Address
	Amount      *big.Int
	NFT         common.Address
	TokenID     *big.Int
	Timestamp   uint64
	BlockNumber uint64
	TxHash      common.Hash
}

// AuctionEvent is the append-only audit log for auction activity,
// keyed by txHash-logIndex. Never updated, never deleted.
type AuctionEvent struct {
	ID          string
	ListingID   string
	EventType   string
	Data        map[string]string
	Timestamp   uint64
	BlockNumber uint64
	TxHash      common.Hash
}

// StatsGlobal is the id of the single all-time marketplace stats row.
const StatsGlobal = "global"

// AuctionStats is a running marketplace aggregate. AveragePrice is always
// TotalVolume / CompletedSales, recomputed from the two counters.
type AuctionStats struct {
	ID             string
	TotalListings  uint64
	TotalBids      uint64
	TotalVolume    *big.Int
	CompletedSales uint64
	AveragePrice   *big.Int
	UpdatedAt      uint64
}

// FeeDistribution records one fee split of a completed sale.
// Append-only, keyed by txHash-logIndex.
type FeeDistribution struct {
	ID               string
	NFT              common.Address
	TokenID          *big.Int
	Seller           common.Address
	SalePrice        *big.Int
	MarketplaceFee   *big.Int
	ProtocolFee      *big.Int
	RoyaltyAmount    *big.Int
	RoyaltyRecipient common.Address
	Timestamp        uint64
	BlockNumber      uint64
	TxHash           common.Hash
}

// DomainTransferRequest tracks the registrar bridge handoff of a sold
// domain. Lifecycle: pending, then completed with success or failure.
type DomainTransferRequest struct {
	ID           string
	ListingID    string
	RegistrarRef string
	Buyer        common.Address
	NFT          common.Address
	TokenID      *big.Int
	Pending      bool
	Completed    bool
	Success      bool
	Message      string
	RequestedAt  uint64
	ConfirmedAt  uint64
}

// SealedBidCommitment tracks a commit-reveal bid, keyed listingId-bidder.
// Lifecycle: committed, then revealed.
type SealedBidCommitment struct {
	ID             string
	ListingID      string
	Bidder         common.Address
	CommitmentHash common.Hash
	Deposit        *big.Int
	Revealed       bool
	BidAmount      *big.Int
	Timestamp      uint64
	BlockNumber    uint64
}

// CommitmentKey derives the sealed-bid commitment id.
func CommitmentKey(listingID string, bidder common.Address) string {
	return listingID + "-" + bidder.Hex()
}

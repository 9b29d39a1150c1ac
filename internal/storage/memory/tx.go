package memory

import (
	"context"
	"sort"

	"github.com/ethereum/go-ethereum/common"

	"domain-market-indexer/internal/domain"
)

// Auction house

func (t *Tx) Listing(_ context.Context, id string) (*domain.Listing, error) {
	return txGet[domain.Listing](t, tblListing, id)
}

func (t *Tx) PutListing(_ context.Context, l *domain.Listing) error {
	return txPut(t, tblListing, l.ID, l)
}

func (t *Tx) AddBid(_ context.Context, b *domain.Bid) (bool, error) {
	return txAdd(t, tblBid, b.ID, b)
}

func (t *Tx) BidsByListing(_ context.Context, listingID string) ([]*domain.Bid, error) {
	bids := txList(t, tblBid, func(b *domain.Bid) bool { return b.ListingID == listingID })
	sort.Slice(bids, func(i, j int) bool {
		if bids[i].BlockNumber != bids[j].BlockNumber {
			return bids[i].BlockNumber < bids[j].BlockNumber
		}
		return bids[i].ID < bids[j].ID
	})
	return bids, nil
}

func (t *Tx) AddAuctionEvent(_ context.Context, e *domain.AuctionEvent) (bool, error) {
	return txAdd(t, tblAuctionEvent, e.ID, e)
}

func (t *Tx) AuctionEventsByListing(_ context.Context, listingID string) ([]*domain.AuctionEvent, error) {
	events := txList(t, tblAuctionEvent, func(e *domain.AuctionEvent) bool { return e.ListingID == listingID })
	sort.Slice(events, func(i, j int) bool {
		if events[i].BlockNumber != events[j].BlockNumber {
			return events[i].BlockNumber < events[j].BlockNumber
		}
		return events[i].ID < events[j].ID
	})
	return events, nil
}

func (t *Tx) Stats(_ context.Context, id string) (*domain.AuctionStats, error) {
	return txGet[domain.AuctionStats](t, tblStats, id)
}

func (t *Tx) PutStats(_ context.Context, s *domain.AuctionStats) error {
	return txPut(t, tblStats, s.ID, s)
}

func (t *Tx) AddFeeDistribution(_ context.Context, f *domain.FeeDistribution) (bool, error) {
	return txAdd(t, tblFee, f.ID, f)
}

func (t *Tx) TransferRequest(_ context.Context, id string) (*domain.DomainTransferRequest, error) {
	return txGet[domain.DomainTransferRequest](t, tblTransfer, id)
}

func (t *Tx) PutTransferRequest(_ context.Context, r *domain.DomainTransferRequest) error {
	return txPut(t, tblTransfer, r.ID, r)
}

func (t *Tx) Commitment(_ context.Context, id string) (*domain.SealedBidCommitment, error) {
	return txGet[domain.SealedBidCommitment](t, tblCommitment, id)
}

func (t *Tx) PutCommitment(_ context.Context, c *domain.SealedBidCommitment) error {
	return txPut(t, tblCommitment, c.ID, c)
}

// Lending pool

func (t *Tx) Pool(_ context.Context, addr common.Address) (*domain.Pool, error) {
	return txGet[domain.Pool](t, tblPool, addr.Hex())
}

func (t *Tx) PutPool(_ context.Context, p *domain.Pool) error {
	return txPut(t, tblPool, p.Address.Hex(), p)
}

func (t *Tx) LiquidityProvider(_ context.Context, id string) (*domain.LiquidityProvider, error) {
	return txGet[domain.LiquidityProvider](t, tblLP, id)
}

func (t *Tx) PutLiquidityProvider(_ context.Context, lp *domain.LiquidityProvider) error {
	return txPut(t, tblLP, lp.ID, lp)
}

func (t *Tx) AddSupplyTransaction(_ context.Context, s *domain.SupplyTransaction) (bool, error) {
	return txAdd(t, tblSupplyTx, s.ID, s)
}

func (t *Tx) Borrower(_ context.Context, id string) (*domain.Borrower, error) {
	return txGet[domain.Borrower](t, tblBorrower, id)
}

func (t *Tx) PutBorrower(_ context.Context, b *domain.Borrower) error {
	return txPut(t, tblBorrower, b.ID, b)
}

func (t *Tx) AddBorrowTransaction(_ context.Context, b *domain.BorrowTransaction) (bool, error) {
	return txAdd(t, tblBorrowTx, b.ID, b)
}

func (t *Tx) AddCollateralTransaction(_ context.Context, c *domain.CollateralTransaction) (bool, error) {
	return txAdd(t, tblCollateralTx, c.ID, c)
}

func (t *Tx) AddLiquidation(_ context.Context, l *domain.LiquidationEvent) (bool, error) {
	return txAdd(t, tblLiquidation, l.ID, l)
}

// Rental vault

func (t *Tx) RentalListing(_ context.Context, id string) (*domain.RentalListing, error) {
	return txGet[domain.RentalListing](t, tblRentalListing, id)
}

func (t *Tx) PutRentalListing(_ context.Context, l *domain.RentalListing) error {
	return txPut(t, tblRentalListing, l.ID, l)
}

func (t *Tx) Rental(_ context.Context, id string) (*domain.Rental, error) {
	return txGet[domain.Rental](t, tblRental, id)
}

func (t *Tx) PutRental(_ context.Context, r *domain.Rental) error {
	return txPut(t, tblRental, r.ID, r)
}

func (t *Tx) AddRentalHistory(_ context.Context, h *domain.RentalHistory) (bool, error) {
	return txAdd(t, tblRentalHistory, h.ID, h)
}

func (t *Tx) UserProfile(_ context.Context, addr common.Address) (*domain.UserRentalProfile, error) {
	return txGet[domain.UserRentalProfile](t, tblUserProfile, addr.Hex())
}

func (t *Tx) PutUserProfile(_ context.Context, p *domain.UserRentalProfile) error {
	return txPut(t, tblUserProfile, p.Address.Hex(), p)
}

func (t *Tx) OwnerProfile(_ context.Context, addr common.Address) (*domain.OwnerRentalProfile, error) {
	return txGet[domain.OwnerRentalProfile](t, tblOwnerProfile, addr.Hex())
}

func (t *Tx) PutOwnerProfile(_ context.Context, p *domain.OwnerRentalProfile) error {
	return txPut(t, tblOwnerProfile, p.Address.Hex(), p)
}

func (t *Tx) DepositRecord(_ context.Context, id string) (*domain.DepositRecord, error) {
	return txGet[domain.DepositRecord](t, tblDeposit, id)
}

func (t *Tx) PutDepositRecord(_ context.Context, d *domain.DepositRecord) error {
	return txPut(t, tblDeposit, d.ID, d)
}

// Snapshots

func (t *Tx) AddPoolMetrics(_ context.Context, m *domain.PoolMetrics) error {
	c := *m
	t.poolMetrics = append(t.poolMetrics, &c)
	return nil
}

func (t *Tx) AddRateSnapshot(_ context.Context, s *domain.InterestRateSnapshot) error {
	c := *s
	t.rateSnaps = append(t.rateSnaps, &c)
	return nil
}

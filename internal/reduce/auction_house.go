package reduce

import (
	"context"
	"fmt"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"domain-market-indexer/internal/aggregate"
	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

// auditRow builds the append-only auction audit entry for an event.
func auditRow(ev *domain.Event, listingID, eventType string, data map[string]string) *domain.AuctionEvent {
	return &domain.AuctionEvent{
		ID:          ev.LedgerID(),
		ListingID:   listingID,
		EventType:   eventType,
		Data:        data,
		Timestamp:   ev.Timestamp,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash,
	}
}

func (r *Reducers) listingCreated(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	seller, err := ev.Args.Address("seller")
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
	paymentToken, err := ev.Args.Address("paymentToken")
	if err != nil {
		return err
	}
	reserve, err := ev.Args.BigInt("reservePrice")
	if err != nil {
		return err
	}

	l := &domain.Listing{
		ID:           id,
		Seller:       seller,
		NFT:          nft,
		TokenID:      tokenID,
		PaymentToken: paymentToken,
		ReservePrice: reserve,
		Status:       domain.StatusListed,
		CreatedAt:    ev.Timestamp,
		UpdatedAt:    ev.Timestamp,
	}

	// The strategy is optional at creation; a later StrategyChosen fills
	// it in. Zero address means "not chosen yet".
	if ev.Args.Has("strategy") {
		strategy, err := ev.Args.Address("strategy")
		if err != nil {
			return err
		}
		if strategy != (common.Address{}) {
			l.Strategy = strategy
			if ev.Args.Has("strategyData") {
				if l.StrategyData, err = ev.Args.Bytes("strategyData"); err != nil {
					return err
				}
			}
		}
	}

	if err := tx.PutListing(ctx, l); err != nil {
		return fmt.Errorf("put listing %s: %w", id, err)
	}

	created, err := tx.AddAuctionEvent(ctx, auditRow(ev, id, "Listed", map[string]string{
		"seller":       seller.Hex(),
		"nft":          nft.Hex(),
		"tokenId":      tokenID.String(),
		"paymentToken": paymentToken.Hex(),
		"reservePrice": reserve.String(),
	}))
	if err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}
	if created {
		return aggregate.AddListing(ctx, tx, ev.Timestamp)
	}
	return nil
}

func (r *Reducers) criteriaSet(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	reserve, err := ev.Args.BigInt("reservePrice")
	if err != nil {
		return err
	}
	eligibility, err := ev.Args.Bytes("eligibilityData")
	if err != nil {
		return err
	}
	return updateListing(ctx, tx, id, ev.Timestamp, func(l *domain.Listing) {
		l.ReservePrice = reserve
		l.EligibilityData = eligibility
	})
}

func (r *Reducers) strategyChosen(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	strategy, err := ev.Args.Address("strategy")
	if err != nil {
		return err
	}
	data, err := ev.Args.Bytes("strategyData")
	if err != nil {
		return err
	}
	return updateListing(ctx, tx, id, ev.Timestamp, func(l *domain.Listing) {
		l.Strategy = strategy
		l.StrategyData = data
	})
}

func (r *Reducers) auctionStarted(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	start, err := ev.Args.Uint64("startTime")
	if err != nil {
		return err
	}
	end, err := ev.Args.Uint64("endTime")
	if err != nil {
		return err
	}

	if err := updateListing(ctx, tx, id, ev.Timestamp, func(l *domain.Listing) {
		l.StartTime = start
		l.EndTime = end
		l.Status = domain.StatusLive
	}); err != nil {
		return err
	}

	_, err = tx.AddAuctionEvent(ctx, auditRow(ev, id, "AuctionStarted", map[string]string{
		"startTime": strconv.FormatUint(start, 10),
		"endTime":   strconv.FormatUint(end, 10),
	}))
	return err
}

func (r *Reducers) bidPlaced(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	bidder, err := ev.Args.Address("bidder")
	if err != nil {
		return err
	}
	amount, err := ev.Args.BigInt("amount")
	if err != nil {
		return err
	}

	// A bid without its listing means the delivery layer broke creation
	// order; fail loudly rather than write an orphaned row.
	listing, err := requireListing(ctx, tx, id)
	if err != nil {
		return err
	}

	created, err := tx.AddBid(ctx, &domain.Bid{
		ID:          ev.LedgerID(),
		ListingID:   id,
		Bidder:      bidder,
		Amount:      amount,
		NFT:         listing.NFT,
		TokenID:     listing.TokenID,
		Timestamp:   ev.Timestamp,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash,
	})
	if err != nil {
		return fmt.Errorf("append bid: %w", err)
	}

	if _, err := tx.AddAuctionEvent(ctx, auditRow(ev, id, "BidPlaced", map[string]string{
		"bidder": bidder.Hex(),
		"amount": amount.String(),
	})); err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}

	if created {
		return aggregate.AddBid(ctx, tx, ev.Timestamp)
	}
	return nil
}

func (r *Reducers) auctionEnded(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	winner, err := ev.Args.Address("winner")
	if err != nil {
		return err
	}
	winningBid, err := ev.Args.BigInt("winningBid")
	if err != nil {
		return err
	}

	if err := updateListing(ctx, tx, id, ev.Timestamp, func(l *domain.Listing) {
		l.Winner = winner
		l.WinningBid = winningBid
		l.Status = domain.StatusEnded
	}); err != nil {
		return err
	}

	_, err = tx.AddAuctionEvent(ctx, auditRow(ev, id, "AuctionEnded", map[string]string{
		"winner":     winner.Hex(),
		"winningBid": winningBid.String(),
	}))
	return err
}

func (r *Reducers) settled(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	winner, err := ev.Args.Address("winner")
	if err != nil {
		return err
	}
	finalPrice, err := ev.Args.BigInt("finalPrice")
	if err != nil {
		return err
	}

	if err := updateListing(ctx, tx, id, ev.Timestamp, func(l *domain.Listing) {
		l.Winner = winner
		l.WinningBid = finalPrice
		l.Status = domain.StatusSettled
	}); err != nil {
		return err
	}

	created, err := tx.AddAuctionEvent(ctx, auditRow(ev, id, "Settled", map[string]string{
		"winner":     winner.Hex(),
		"finalPrice": finalPrice.String(),
	}))
	if err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}
	if created {
		// Volume counts the settlement price, not the sum of bids.
		return aggregate.AddSale(ctx, tx, finalPrice, ev.Timestamp)
	}
	return nil
}

func (r *Reducers) cancelled(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	seller, err := ev.Args.Address("seller")
	if err != nil {
		return err
	}

	if err := updateListing(ctx, tx, id, ev.Timestamp, func(l *domain.Listing) {
		l.Status = domain.StatusCancelled
	}); err != nil {
		return err
	}

	_, err = tx.AddAuctionEvent(ctx, auditRow(ev, id, "Cancelled", map[string]string{
		"seller": seller.Hex(),
	}))
	return err
}

func (r *Reducers) auctionExtended(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	newEnd, err := ev.Args.Uint64("newEndTime")
	if err != nil {
		return err
	}

	if err := updateListing(ctx, tx, id, ev.Timestamp, func(l *domain.Listing) {
		l.EndTime = newEnd
	}); err != nil {
		return err
	}

	_, err = tx.AddAuctionEvent(ctx, auditRow(ev, id, "AuctionExtended", map[string]string{
		"newEndTime": strconv.FormatUint(newEnd, 10),
	}))
	return err
}

func (r *Reducers) auctionSold(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	winner, err := ev.Args.Address("winner")
	if err != nil {
		return err
	}
	price, err := ev.Args.BigInt("price")
	if err != nil {
		return err
	}

	if err := updateListing(ctx, tx, id, ev.Timestamp, func(l *domain.Listing) {
		l.Winner = winner
		l.WinningBid = price
		l.Status = domain.StatusSold
	}); err != nil {
		return err
	}

	created, err := tx.AddAuctionEvent(ctx, auditRow(ev, id, "AuctionSold", map[string]string{
		"winner": winner.Hex(),
		"price":  price.String(),
	}))
	if err != nil {
		return fmt.Errorf("append audit row: %w", err)
	}
	if created {
		return aggregate.AddSale(ctx, tx, price, ev.Timestamp)
	}
	return nil
}

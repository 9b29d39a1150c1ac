package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

const listingCols = `
	id, seller, nft, token_id::text, payment_token, reserve_price::text,
	start_time, end_time, strategy, strategy_data, eligibility_data,
	status, winner, winning_bid::text, created_at, updated_at`

// Listing retrieves a listing by id. Returns ErrNotFound if not exists.
func (t *Tx) Listing(ctx context.Context, id string) (*domain.Listing, error) {
	query := `SELECT ` + listingCols + ` FROM listings WHERE id = $1`

	var (
		l                             domain.Listing
		seller, nft, payment          []byte
		strategy, winner              []byte
		tokenID, reserve, winningBid  string
		status                        string
	)
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&l.ID, &seller, &nft, &tokenID, &payment, &reserve,
		&l.StartTime, &l.EndTime, &strategy, &l.StrategyData, &l.EligibilityData,
		&status, &winner, &winningBid, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get listing: %w", err)
	}

	l.Seller = common.BytesToAddress(seller)
	l.NFT = common.BytesToAddress(nft)
	l.PaymentToken = common.BytesToAddress(payment)
	l.Strategy = common.BytesToAddress(strategy)
	l.Winner = common.BytesToAddress(winner)
	l.Status = domain.ListingStatus(status)
	if l.TokenID, err = parseNum(tokenID); err != nil {
		return nil, fmt.Errorf("listing token_id: %w", err)
	}
	if l.ReservePrice, err = parseNum(reserve); err != nil {
		return nil, fmt.Errorf("listing reserve_price: %w", err)
	}
	if l.WinningBid, err = parseNum(winningBid); err != nil {
		return nil, fmt.Errorf("listing winning_bid: %w", err)
	}
	return &l, nil
}

// PutListing inserts or fully overwrites a listing.
func (t *Tx) PutListing(ctx context.Context, l *domain.Listing) error {
	query := `
		INSERT INTO listings (
			id, seller, nft, token_id, payment_token, reserve_price,
			start_time, end_time, strategy, strategy_data, eligibility_data,
			status, winner, winning_bid, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO UPDATE SET
			seller = EXCLUDED.seller,
			nft = EXCLUDED.nft,
			token_id = EXCLUDED.token_id,
			payment_token = EXCLUDED.payment_token,
			reserve_price = EXCLUDED.reserve_price,
			start_time = EXCLUDED.start_time,
			end_time = EXCLUDED.end_time,
			strategy = EXCLUDED.strategy,
			strategy_data = EXCLUDED.strategy_data,
			eligibility_data = EXCLUDED.eligibility_data,
			status = EXCLUDED.status,
			winner = EXCLUDED.winner,
			winning_bid = EXCLUDED.winning_bid,
			updated_at = EXCLUDED.updated_at
	`
	_, err := t.tx.Exec(ctx, query,
		l.ID, addrBytes(l.Seller), addrBytes(l.NFT), numStr(l.TokenID),
		addrBytes(l.PaymentToken), numStr(l.ReservePrice),
		l.StartTime, l.EndTime, addrBytes(l.Strategy), l.StrategyData, l.EligibilityData,
		string(l.Status), addrBytes(l.Winner), numStr(l.WinningBid),
		l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put listing: %w", err)
	}
	return nil
}

// AddBid appends a bid row, reporting whether it was newly created.
func (t *Tx) AddBid(ctx context.Context, b *domain.Bid) (bool, error) {
	query := `
		INSERT INTO bids (
			id, listing_id, bidder, amount, nft, token_id, timestamp, block_number, tx_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query,
		b.ID, b.ListingID, addrBytes(b.Bidder), numStr(b.Amount),
		addrBytes(b.NFT), numStr(b.TokenID), b.Timestamp, b.BlockNumber, hashBytes(b.TxHash),
	)
	if err != nil {
		return false, fmt.Errorf("insert bid: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// BidsByListing retrieves bids for a listing ordered by block, then id.
func (t *Tx) BidsByListing(ctx context.Context, listingID string) ([]*domain.Bid, error) {
	query := `
		SELECT id, listing_id, bidder, amount::text, nft, token_id::text, timestamp, block_number, tx_hash
		FROM bids
		WHERE listing_id = $1
		ORDER BY block_number ASC, id ASC
	`
	rows, err := t.tx.Query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("get bids by listing: %w", err)
	}
	defer rows.Close()

	var bids []*domain.Bid
	for rows.Next() {
		var (
			b            domain.Bid
			bidder, nft  []byte
			txHash       []byte
			amount       string
			tokenID      string
		)
		if err := rows.Scan(&b.ID, &b.ListingID, &bidder, &amount, &nft, &tokenID, &b.Timestamp, &b.BlockNumber, &txHash); err != nil {
			return nil, fmt.Errorf("scan bid row: %w", err)
		}
		b.Bidder = common.BytesToAddress(bidder)
		b.NFT = common.BytesToAddress(nft)
		b.TxHash = common.BytesToHash(txHash)
		if b.Amount, err = parseNum(amount); err != nil {
			return nil, fmt.Errorf("bid amount: %w", err)
		}
		if b.TokenID, err = parseNum(tokenID); err != nil {
			return nil, fmt.Errorf("bid token_id: %w", err)
		}
		bids = append(bids, &b)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate bid rows: %w", err)
	}
	return bids, nil
}

// AddAuctionEvent appends an audit row, reporting whether it was newly
// created.
func (t *Tx) AddAuctionEvent(ctx context.Context, e *domain.AuctionEvent) (bool, error) {
	query := `
		INSERT INTO auction_events (
			id, listing_id, event_type, data, timestamp, block_number, tx_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query,
		e.ID, e.ListingID, e.EventType, e.Data, e.Timestamp, e.BlockNumber, hashBytes(e.TxHash),
	)
	if err != nil {
		return false, fmt.Errorf("insert auction event: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// AuctionEventsByListing retrieves the audit trail of a listing in block
// order.
func (t *Tx) AuctionEventsByListing(ctx context.Context, listingID string) ([]*domain.AuctionEvent, error) {
	query := `
		SELECT id, listing_id, event_type, data, timestamp, block_number, tx_hash
		FROM auction_events
		WHERE listing_id = $1
		ORDER BY block_number ASC, id ASC
	`
	rows, err := t.tx.Query(ctx, query, listingID)
	if err != nil {
		return nil, fmt.Errorf("get auction events by listing: %w", err)
	}
	defer rows.Close()

	var events []*domain.AuctionEvent
	for rows.Next() {
		var (
			e      domain.AuctionEvent
			txHash []byte
		)
		if err := rows.Scan(&e.ID, &e.ListingID, &e.EventType, &e.Data, &e.Timestamp, &e.BlockNumber, &txHash); err != nil {
			return nil, fmt.Errorf("scan auction event row: %w", err)
		}
		e.TxHash = common.BytesToHash(txHash)
		events = append(events, &e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate auction event rows: %w", err)
	}
	return events, nil
}

// Stats retrieves a stats row by id. Returns ErrNotFound if not exists.
func (t *Tx) Stats(ctx context.Context, id string) (*domain.AuctionStats, error) {
	query := `
		SELECT id, total_listings, total_bids, total_volume::text, completed_sales, average_price::text, updated_at
		FROM auction_stats
		WHERE id = $1
	`
	var (
		s               domain.AuctionStats
		volume, average string
	)
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&s.ID, &s.TotalListings, &s.TotalBids, &volume, &s.CompletedSales, &average, &s.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get stats: %w", err)
	}
	if s.TotalVolume, err = parseNum(volume); err != nil {
		return nil, fmt.Errorf("stats total_volume: %w", err)
	}
	if s.AveragePrice, err = parseNum(average); err != nil {
		return nil, fmt.Errorf("stats average_price: %w", err)
	}
	return &s, nil
}

// PutStats inserts or fully overwrites a stats row.
func (t *Tx) PutStats(ctx context.Context, s *domain.AuctionStats) error {
	query := `
		INSERT INTO auction_stats (
			id, total_listings, total_bids, total_volume, completed_sales, average_price, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			total_listings = EXCLUDED.total_listings,
			total_bids = EXCLUDED.total_bids,
			total_volume = EXCLUDED.total_volume,
			completed_sales = EXCLUDED.completed_sales,
			average_price = EXCLUDED.average_price,
			updated_at = EXCLUDED.updated_at
	`
	_, err := t.tx.Exec(ctx, query,
		s.ID, s.TotalListings, s.TotalBids, numStr(s.TotalVolume),
		s.CompletedSales, numStr(s.AveragePrice), s.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put stats: %w", err)
	}
	return nil
}

// AddFeeDistribution appends a fee split row, reporting whether it was
// newly created.
func (t *Tx) AddFeeDistribution(ctx context.Context, f *domain.FeeDistribution) (bool, error) {
	query := `
		INSERT INTO fee_distributions (
			id, nft, token_id, seller, sale_price, marketplace_fee,
			protocol_fee, royalty_amount, royalty_recipient, timestamp, block_number, tx_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query,
		f.ID, addrBytes(f.NFT), numStr(f.TokenID), addrBytes(f.Seller),
		numStr(f.SalePrice), numStr(f.MarketplaceFee), numStr(f.ProtocolFee),
		numStr(f.RoyaltyAmount), addrBytes(f.RoyaltyRecipient),
		f.Timestamp, f.BlockNumber, hashBytes(f.TxHash),
	)
	if err != nil {
		return false, fmt.Errorf("insert fee distribution: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// TransferRequest retrieves a registrar transfer request by id.
func (t *Tx) TransferRequest(ctx context.Context, id string) (*domain.DomainTransferRequest, error) {
	query := `
		SELECT id, listing_id, registrar_ref, buyer, nft, token_id::text,
			pending, completed, success, message, requested_at, confirmed_at
		FROM domain_transfer_requests
		WHERE id = $1
	`
	var (
		r          domain.DomainTransferRequest
		buyer, nft []byte
		tokenID    string
	)
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.ListingID, &r.RegistrarRef, &buyer, &nft, &tokenID,
		&r.Pending, &r.Completed, &r.Success, &r.Message, &r.RequestedAt, &r.ConfirmedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get transfer request: %w", err)
	}
	r.Buyer = common.BytesToAddress(buyer)
	r.NFT = common.BytesToAddress(nft)
	if r.TokenID, err = parseNum(tokenID); err != nil {
		return nil, fmt.Errorf("transfer request token_id: %w", err)
	}
	return &r, nil
}

// PutTransferRequest inserts or fully overwrites a transfer request.
func (t *Tx) PutTransferRequest(ctx context.Context, r *domain.DomainTransferRequest) error {
	query := `
		INSERT INTO domain_transfer_requests (
			id, listing_id, registrar_ref, buyer, nft, token_id,
			pending, completed, success, message, requested_at, confirmed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (id) DO UPDATE SET
			registrar_ref = EXCLUDED.registrar_ref,
			buyer = EXCLUDED.buyer,
			nft = EXCLUDED.nft,
			token_id = EXCLUDED.token_id,
			pending = EXCLUDED.pending,
			completed = EXCLUDED.completed,
			success = EXCLUDED.success,
			message = EXCLUDED.message,
			requested_at = EXCLUDED.requested_at,
			confirmed_at = EXCLUDED.confirmed_at
	`
	_, err := t.tx.Exec(ctx, query,
		r.ID, r.ListingID, r.RegistrarRef, addrBytes(r.Buyer), addrBytes(r.NFT),
		numStr(r.TokenID), r.Pending, r.Completed, r.Success, r.Message,
		r.RequestedAt, r.ConfirmedAt,
	)
	if err != nil {
		return fmt.Errorf("put transfer request: %w", err)
	}
	return nil
}

// Commitment retrieves a sealed-bid commitment by its listing-bidder key.
func (t *Tx) Commitment(ctx context.Context, id string) (*domain.SealedBidCommitment, error) {
	query := `
		SELECT id, listing_id, bidder, commitment_hash, deposit::text,
			revealed, bid_amount::text, timestamp, block_number
		FROM sealed_bid_commitments
		WHERE id = $1
	`
	var (
		c                  domain.SealedBidCommitment
		bidder, hash       []byte
		deposit, bidAmount string
	)
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&c.ID, &c.ListingID, &bidder, &hash, &deposit,
		&c.Revealed, &bidAmount, &c.Timestamp, &c.BlockNumber,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get commitment: %w", err)
	}
	c.Bidder = common.BytesToAddress(bidder)
	c.CommitmentHash = common.BytesToHash(hash)
	if c.Deposit, err = parseNum(deposit); err != nil {
		return nil, fmt.Errorf("commitment deposit: %w", err)
	}
	if c.BidAmount, err = parseNum(bidAmount); err != nil {
		return nil, fmt.Errorf("commitment bid_amount: %w", err)
	}
	return &c, nil
}

// PutCommitment inserts or fully overwrites a commitment.
func (t *Tx) PutCommitment(ctx context.Context, c *domain.SealedBidCommitment) error {
	query := `
		INSERT INTO sealed_bid_commitments (
			id, listing_id, bidder, commitment_hash, deposit,
			revealed, bid_amount, timestamp, block_number
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (id) DO UPDATE SET
			commitment_hash = EXCLUDED.commitment_hash,
			deposit = EXCLUDED.deposit,
			revealed = EXCLUDED.revealed,
			bid_amount = EXCLUDED.bid_amount,
			timestamp = EXCLUDED.timestamp,
			block_number = EXCLUDED.block_number
	`
	_, err := t.tx.Exec(ctx, query,
		c.ID, c.ListingID, addrBytes(c.Bidder), hashBytes(c.CommitmentHash),
		numStr(c.Deposit), c.Revealed, numStr(c.BidAmount), c.Timestamp, c.BlockNumber,
	)
	if err != nil {
		return fmt.Errorf("put commitment: %w", err)
	}
	return nil
}

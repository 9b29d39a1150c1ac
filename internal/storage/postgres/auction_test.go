package postgres_test

import (
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

func testListing(id string) *domain.Listing {
	return &domain.Listing{
		ID:           id,
		Seller:       testSeller,
		NFT:          testNFT,
		TokenID:      wei(42),
		PaymentToken: testWETH,
		ReservePrice: wei(1000),
		StartTime:    1700000000,
		EndTime:      1700086400,
		Strategy:     common.HexToAddress("0x6666666666666666666666666666666666666666"),
		StrategyData: []byte{0x01, 0x02},
		Status:       domain.StatusListed,
		WinningBid:   wei(0),
		CreatedAt:    1700000000,
		UpdatedAt:    1700000000,
	}
}

func TestListingRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	want := testListing("listing-1")
	inTx(t, db, func(tx storage.Tx) error {
		return tx.PutListing(ctx, want)
	})

	inTx(t, db, func(tx storage.Tx) error {
		got, err := tx.Listing(ctx, "listing-1")
		require.NoError(t, err)
		assert.Equal(t, want.Seller, got.Seller)
		assert.Equal(t, want.NFT, got.NFT)
		assert.Equal(t, 0, want.TokenID.Cmp(got.TokenID))
		assert.Equal(t, want.PaymentToken, got.PaymentToken)
		assert.Equal(t, 0, want.ReservePrice.Cmp(got.ReservePrice))
		assert.Equal(t, want.Strategy, got.Strategy)
		assert.Equal(t, want.StrategyData, got.StrategyData)
		assert.Equal(t, domain.StatusListed, got.Status)
		assert.Equal(t, want.EndTime, got.EndTime)
		return nil
	})
}

func TestListingNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	inTx(t, db, func(tx storage.Tx) error {
		_, err := tx.Listing(ctx, "nonexistent")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
}

func TestPutListingOverwrites(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	l := testListing("listing-2")
	inTx(t, db, func(tx storage.Tx) error {
		return tx.PutListing(ctx, l)
	})

	l.Status = domain.StatusSold
	l.Winner = testBidder
	l.WinningBid = wei(2500)
	l.UpdatedAt = 1700001000
	inTx(t, db, func(tx storage.Tx) error {
		return tx.PutListing(ctx, l)
	})

	inTx(t, db, func(tx storage.Tx) error {
		got, err := tx.Listing(ctx, "listing-2")
		require.NoError(t, err)
		assert.Equal(t, domain.StatusSold, got.Status)
		assert.Equal(t, testBidder, got.Winner)
		assert.Equal(t, 0, got.WinningBid.Cmp(wei(2500)))
		assert.Equal(t, uint64(1700001000), got.UpdatedAt)
		return nil
	})
}

func TestAddBidReportsCreated(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	bid := &domain.Bid{
		ID:          "0xabc-0",
		ListingID:   "listing-1",
		Bidder:      testBidder,
		Amount:      wei(1500),
		NFT:         testNFT,
		TokenID:     wei(42),
		Timestamp:   1700000100,
		BlockNumber: 100,
		TxHash:      common.HexToHash("0xabc"),
	}

	inTx(t, db, func(tx storage.Tx) error {
		created, err := tx.AddBid(ctx, bid)
		require.NoError(t, err)
		assert.True(t, created)

		created, err = tx.AddBid(ctx, bid)
		require.NoError(t, err)
		assert.False(t, created, "duplicate id must not create a second row")
		return nil
	})
}

func TestBidsByListingOrdered(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	inTx(t, db, func(tx storage.Tx) error {
		for i, block := range []uint64{300, 100, 200} {
			_, err := tx.AddBid(ctx, &domain.Bid{
				ID:          "bid-" + string(rune('a'+i)),
				ListingID:   "listing-1",
				Bidder:      testBidder,
				Amount:      big.NewInt(int64(block)),
				NFT:         testNFT,
				TokenID:     wei(42),
				BlockNumber: block,
				TxHash:      common.BigToHash(big.NewInt(int64(i))),
			})
			require.NoError(t, err)
		}
		return nil
	})

	inTx(t, db, func(tx storage.Tx) error {
		bids, err := tx.BidsByListing(ctx, "listing-1")
		require.NoError(t, err)
		require.Len(t, bids, 3)
		assert.Equal(t, uint64(100), bids[0].BlockNumber)
		assert.Equal(t, uint64(200), bids[1].BlockNumber)
		assert.Equal(t, uint64(300), bids[2].BlockNumber)
		return nil
	})
}

func TestAuctionEventDataRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	event := &domain.AuctionEvent{
		ID:          "0xdef-3",
		ListingID:   "listing-1",
		EventType:   "BidPlaced",
		Data:        map[string]string{"bidder": testBidder.Hex(), "amount": "1500"},
		Timestamp:   1700000100,
		BlockNumber: 100,
		TxHash:      common.HexToHash("0xdef"),
	}
	inTx(t, db, func(tx storage.Tx) error {
		created, err := tx.AddAuctionEvent(ctx, event)
		require.NoError(t, err)
		assert.True(t, created)
		return nil
	})

	inTx(t, db, func(tx storage.Tx) error {
		events, err := tx.AuctionEventsByListing(ctx, "listing-1")
		require.NoError(t, err)
		require.Len(t, events, 1)
		assert.Equal(t, "BidPlaced", events[0].EventType)
		assert.Equal(t, "1500", events[0].Data["amount"])
		assert.Equal(t, event.TxHash, events[0].TxHash)
		return nil
	})
}

func TestStatsRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	stats := &domain.AuctionStats{
		ID:             domain.StatsGlobal,
		TotalListings:  3,
		TotalBids:      7,
		TotalVolume:    wei(9000),
		CompletedSales: 2,
		AveragePrice:   wei(4500),
		UpdatedAt:      1700000500,
	}
	inTx(t, db, func(tx storage.Tx) error {
		return tx.PutStats(ctx, stats)
	})

	inTx(t, db, func(tx storage.Tx) error {
		got, err := tx.Stats(ctx, domain.StatsGlobal)
		require.NoError(t, err)
		assert.Equal(t, uint64(3), got.TotalListings)
		assert.Equal(t, uint64(7), got.TotalBids)
		assert.Equal(t, 0, got.TotalVolume.Cmp(wei(9000)))
		assert.Equal(t, 0, got.AveragePrice.Cmp(wei(4500)))
		return nil
	})
}

func TestTransferRequestRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	req := &domain.DomainTransferRequest{
		ID:          "listing-9",
		ListingID:   "listing-9",
		Buyer:       testBidder,
		NFT:         testNFT,
		TokenID:     wei(42),
		Pending:     true,
		RequestedAt: 1700000200,
	}
	inTx(t, db, func(tx storage.Tx) error {
		return tx.PutTransferRequest(ctx, req)
	})

	req.Pending = false
	req.Completed = true
	req.Success = true
	req.Message = "ok"
	req.ConfirmedAt = 1700000300
	inTx(t, db, func(tx storage.Tx) error {
		return tx.PutTransferRequest(ctx, req)
	})

	inTx(t, db, func(tx storage.Tx) error {
		got, err := tx.TransferRequest(ctx, "listing-9")
		require.NoError(t, err)
		assert.False(t, got.Pending)
		assert.True(t, got.Completed)
		assert.True(t, got.Success)
		assert.Equal(t, "ok", got.Message)
		assert.Equal(t, uint64(1700000300), got.ConfirmedAt)
		return nil
	})
}

func TestCommitmentRoundTrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	id := domain.CommitmentKey("listing-5", testBidder)
	c := &domain.SealedBidCommitment{
		ID:             id,
		ListingID:      "listing-5",
		Bidder:         testBidder,
		CommitmentHash: common.HexToHash("0xbeef"),
		Deposit:        wei(100),
		BidAmount:      wei(0),
		Timestamp:      1700000400,
		BlockNumber:    120,
	}
	inTx(t, db, func(tx storage.Tx) error {
		return tx.PutCommitment(ctx, c)
	})

	c.Revealed = true
	c.BidAmount = wei(2000)
	inTx(t, db, func(tx storage.Tx) error {
		return tx.PutCommitment(ctx, c)
	})

	inTx(t, db, func(tx storage.Tx) error {
		got, err := tx.Commitment(ctx, id)
		require.NoError(t, err)
		assert.True(t, got.Revealed)
		assert.Equal(t, 0, got.BidAmount.Cmp(wei(2000)))
		assert.Equal(t, common.HexToHash("0xbeef"), got.CommitmentHash)
		return nil
	})
}

func TestRollbackDiscardsWrites(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	boom := assert.AnError
	err := db.InTx(ctx, func(tx storage.Tx) error {
		if err := tx.PutListing(ctx, testListing("listing-rollback")); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	inTx(t, db, func(tx storage.Tx) error {
		_, err := tx.Listing(ctx, "listing-rollback")
		assert.ErrorIs(t, err, storage.ErrNotFound)
		return nil
	})
}

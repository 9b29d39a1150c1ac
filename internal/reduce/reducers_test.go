package reduce_test

import (
	"context"
	"fmt"
	"math/big"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/reduce"
	"domain-market-indexer/internal/storage"
	"domain-market-indexer/internal/storage/memory"
)

var (
	seller     = common.HexToAddress("0x1111111111111111111111111111111111111111")
	bidderA    = common.HexToAddress("0x2222222222222222222222222222222222222222")
	bidderB    = common.HexToAddress("0x3333333333333333333333333333333333333333")
	nftAddr    = common.HexToAddress("0x4444444444444444444444444444444444444444")
	wethAddr   = common.HexToAddress("0x5555555555555555555555555555555555555555")
	poolAddr   = common.HexToAddress("0x6666666666666666666666666666666666666666")
	renterAddr = common.HexToAddress("0x7777777777777777777777777777777777777777")
	ownerAddr  = common.HexToAddress("0x8888888888888888888888888888888888888888")
)

// ev builds a decoded event with a tx hash derived from seq, so every
// distinct seq is a distinct ledger row.
func ev(contract domain.Contract, name string, seq uint64, args domain.Args) *domain.Event {
	return &domain.Event{
		ChainID:         97476,
		Contract:        contract,
		ContractAddress: poolAddr,
		Name:            name,
		Args:            args,
		BlockNumber:     100 + seq,
		Timestamp:       1_700_000_000 + seq,
		TxHash:          common.BigToHash(new(big.Int).SetUint64(seq)),
		TxFrom:          seller,
		LogIndex:        0,
	}
}

// apply routes one event through the reducers inside a transaction.
func apply(t *testing.T, db storage.DB, r *reduce.Reducers, e *domain.Event) error {
	t.Helper()
	fn, ok := r.Lookup(e.RouteKey())
	require.True(t, ok, "no route for %s", e.RouteKey())
	return db.InTx(context.Background(), func(tx storage.Tx) error {
		return fn(context.Background(), tx, e)
	})
}

func mustApply(t *testing.T, db storage.DB, r *reduce.Reducers, e *domain.Event) {
	t.Helper()
	require.NoError(t, apply(t, db, r, e))
}

func newHarness(t *testing.T) (*memory.DB, *reduce.Reducers, *memory.SnapshotSink) {
	t.Helper()
	sink := memory.NewSnapshotSink()
	return memory.New(sink), reduce.New(zap.NewNop()), sink
}

func readStats(t *testing.T, db *memory.DB) *domain.AuctionStats {
	t.Helper()
	var s *domain.AuctionStats
	require.NoError(t, db.InTx(context.Background(), func(tx storage.Tx) error {
		var err error
		s, err = tx.Stats(context.Background(), domain.StatsGlobal)
		return err
	}))
	return s
}

func listedArgs(listingID string) domain.Args {
	return domain.Args{
		"listingId":    listingID,
		"seller":       seller.Hex(),
		"nft":          nftAddr.Hex(),
		"tokenId":      "42",
		"paymentToken": wethAddr.Hex(),
		"reservePrice": "1000",
	}
}

func TestUnknownRouteNotRegistered(t *testing.T) {
	r := reduce.New(zap.NewNop())
	_, ok := r.Lookup(domain.RouteKey{Contract: domain.ContractAuctionHouse, Event: "Transfer"})
	require.False(t, ok)
	_, ok = r.Lookup(domain.RouteKey{Contract: "UnknownContract", Event: "Listed"})
	require.False(t, ok)
}

func TestAuctionLifecycle(t *testing.T) {
	db, r, _ := newHarness(t)

	mustApply(t, db, r, ev(domain.ContractAuctionHouse, "Listed", 1, listedArgs("7")))
	mustApply(t, db, r, ev(domain.ContractAuctionHouse, "StrategyChosen", 2, domain.Args{
		"listingId":    "7",
		"strategy":     wethAddr.Hex(),
		"strategyData": "0x01",
	}))
	mustApply(t, db, r, ev(domain.ContractAuctionHouse, "AuctionStarted", 3, domain.Args{
		"listingId": "7",
		"startTime": uint64(1000),
		"endTime":   uint64(2000),
	}))
	for i, bid := range []struct {
		bidder common.Address
		amount string
	}{
		{bidderA, "1100"},
		{bidderB, "1200"},
		{bidderA, "1500"},
	} {
		mustApply(t, db, r, ev(domain.ContractAuctionHouse, "BidPlaced", 4+uint64(i), domain.Args{
			"listingId": "7",
			"bidder":    bid.bidder.Hex(),
			"amount":    bid.amount,
		}))
	}
	mustApply(t, db, r, ev(domain.ContractAuctionHouse, "AuctionEnded", 7, domain.Args{
		"listingId":  "7",
		"winner":     bidderA.Hex(),
		"winningBid": "1500",
	}))
	mustApply(t, db, r, ev(domain.ContractAuctionHouse, "Settled", 8, domain.Args{
		"listingId":  "7",
		"winner":     bidderA.Hex(),
		"finalPrice": "1500",
	}))

	require.NoError(t, db.InTx(context.Background(), func(tx storage.Tx) error {
		l, err := tx.Listing(context.Background(), "7")
		require.NoError(t, err)
		require.Equal(t, domain.StatusSettled, l.Status)
		require.Equal(t, bidderA, l.Winner)
		require.Equal(t, "1500", l.WinningBid.String())

		bids, err := tx.BidsByListing(context.Background(), "7")
		require.NoError(t, err)
		require.Len(t, bids, 3)
		require.Equal(t, nftAddr, bids[0].NFT, "bids denormalize the listing nft")

		events, err := tx.AuctionEventsByListing(context.Background(), "7")
		require.NoError(t, err)
		// Listed, AuctionStarted, three BidPlaced, AuctionEnded, Settled.
		require.Len(t, events, 7)
		return nil
	}))

	s := readStats(t, db)
	require.Equal(t, uint64(1), s.TotalListings)
	require.Equal(t, uint64(3), s.TotalBids)
	require.Equal(t, uint64(1), s.CompletedSales)
	require.Equal(t, "1500", s.TotalVolume.String())
	require.Equal(t, "1500", s.AveragePrice.String())
}

func TestReplayIsIdempotent(t *testing.T) {
	db, r, _ := newHarness(t)

	sequence := []*domain.Event{
		ev(domain.ContractAuctionHouse, "Listed", 1, listedArgs("7")),
		ev(domain.ContractAuctionHouse, "BidPlaced", 2, domain.Args{
			"listingId": "7", "bidder": bidderA.Hex(), "amount": "1100",
		}),
		ev(domain.ContractAuctionHouse, "Settled", 3, domain.Args{
			"listingId": "7", "winner": bidderA.Hex(), "finalPrice": "1100",
		}),
	}
	for _, e := range sequence {
		mustApply(t, db, r, e)
	}
	first := readStats(t, db)

	// Replaying the same ledger rows must change nothing.
	for _, e := range sequence {
		mustApply(t, db, r, e)
	}
	second := readStats(t, db)

	require.Equal(t, first.TotalListings, second.TotalListings)
	require.Equal(t, first.TotalBids, second.TotalBids)
	require.Equal(t, first.CompletedSales, second.CompletedSales)
	require.Equal(t, first.TotalVolume.String(), second.TotalVolume.String())
	require.Equal(t, first.AveragePrice.String(), second.AveragePrice.String())

	require.NoError(t, db.InTx(context.Background(), func(tx storage.Tx) error {
		bids, err := tx.BidsByListing(context.Background(), "7")
		require.NoError(t, err)
		require.Len(t, bids, 1)
		return nil
	}))
}

func TestBidBeforeListingIsMissingParent(t *testing.T) {
	db, r, _ := newHarness(t)

	err := apply(t, db, r, ev(domain.ContractAuctionHouse, "BidPlaced", 1, domain.Args{
		"listingId": "9", "bidder": bidderA.Hex(), "amount": "500",
	}))
	require.Error(t, err)
	require.True(t, reduce.IsMissingParent(err))

	// The failed transaction must leave no orphaned rows behind.
	require.NoError(t, db.InTx(context.Background(), func(tx storage.Tx) error {
		bids, err := tx.BidsByListing(context.Background(), "9")
		require.NoError(t, err)
		require.Empty(t, bids)
		return nil
	}))
	s := readStats(t, db)
	require.Equal(t, uint64(0), s.TotalBids)
}

func TestMalformedPayloadIsDecodeError(t *testing.T) {
	db, r, _ := newHarness(t)

	args := listedArgs("7")
	delete(args, "reservePrice")
	err := apply(t, db, r, ev(domain.ContractAuctionHouse, "Listed", 1, args))
	require.Error(t, err)
	require.True(t, reduce.IsDecodeError(err))

	err = apply(t, db, r, ev(domain.ContractAuctionHouse, "Listed", 2, domain.Args{
		"listingId": "7", "seller": seller.Hex(), "nft": nftAddr.Hex(),
		"tokenId": "42", "paymentToken": wethAddr.Hex(), "reservePrice": "-5",
	}))
	require.Error(t, err)
	require.True(t, reduce.IsDecodeError(err))
}

func TestDutchSaleCountsAsCompletedSale(t *testing.T) {
	db, r, _ := newHarness(t)

	mustApply(t, db, r, ev(domain.ContractAuctionHouse, "Listed", 1, listedArgs("3")))
	sold := ev(domain.ContractDutchAuction, "AuctionSold", 2, domain.Args{
		"listingId": "3", "winner": bidderB.Hex(), "price": "900",
	})
	mustApply(t, db, r, sold)
	mustApply(t, db, r, sold) // replay

	require.NoError(t, db.InTx(context.Background(), func(tx storage.Tx) error {
		l, err := tx.Listing(context.Background(), "3")
		require.NoError(t, err)
		require.Equal(t, domain.StatusSold, l.Status)
		return nil
	}))
	s := readStats(t, db)
	require.Equal(t, uint64(1), s.CompletedSales)
	require.Equal(t, "900", s.TotalVolume.String())
}

func TestAverageTracksVolumeOverSales(t *testing.T) {
	db, r, _ := newHarness(t)

	for i, price := range []string{"1000", "2000", "4000"} {
		id := fmt.Sprintf("%d", i)
		mustApply(t, db, r, ev(domain.ContractAuctionHouse, "Listed", uint64(1+i*2), listedArgs(id)))
		mustApply(t, db, r, ev(domain.ContractAuctionHouse, "Settled", uint64(2+i*2), domain.Args{
			"listingId": id, "winner": bidderA.Hex(), "finalPrice": price,
		}))
	}

	s := readStats(t, db)
	require.Equal(t, uint64(3), s.CompletedSales)
	require.Equal(t, "7000", s.TotalVolume.String())
	require.Equal(t, "2333", s.AveragePrice.String(), "integer division truncates")
}

func TestSealedBidCommitReveal(t *testing.T) {
	db, r, _ := newHarness(t)

	mustApply(t, db, r, ev(domain.ContractAuctionHouse, "Listed", 1, listedArgs("5")))

	commitment := common.HexToHash("0xdeadbeef")
	mustApply(t, db, r, ev(domain.ContractSealedBidAuction, "CommitmentMade", 2, domain.Args{
		"listingId": "5", "bidder": bidderA.Hex(), "commitment": commitment.Hex(),
	}))

	// Reveal before commit for a different bidder fails fast.
	err := apply(t, db, r, ev(domain.ContractSealedBidAuction, "BidRevealed", 3, domain.Args{
		"listingId": "5", "bidder": bidderB.Hex(), "bidAmount": "700",
	}))
	require.True(t, reduce.IsMissingParent(err))

	mustApply(t, db, r, ev(domain.ContractSealedBidAuction, "BidRevealed", 4, domain.Args{
		"listingId": "5", "bidder": bidderA.Hex(), "bidAmount": "800",
	}))

	require.NoError(t, db.InTx(context.Background(), func(tx storage.Tx) error {
		c, err := tx.Commitment(context.Background(), domain.CommitmentKey("5", bidderA))
		require.NoError(t, err)
		require.True(t, c.Revealed)
		require.Equal(t, "800", c.BidAmount.String())
		require.Equal(t, commitment, c.CommitmentHash)
		return nil
	}))
}

func TestTransferRequestLifecycle(t *testing.T) {
	db, r, _ := newHarness(t)

	// A confirm without its request fails fast.
	err := apply(t, db, r, ev(domain.ContractRegistrarBridge, "DomainTransferConfirmed", 1, domain.Args{
		"listingId": "7", "success": true, "message": "",
	}))
	require.True(t, reduce.IsMissingParent(err))

	mustApply(t, db, r, ev(domain.ContractRegistrarBridge, "DomainTransferRequested", 2, domain.Args{
		"listingId":    "7",
		"registrarRef": "example.com",
		"buyer":        bidderA.Hex(),
		"nft":          nftAddr.Hex(),
		"tokenId":      "42",
	}))
	mustApply(t, db, r, ev(domain.ContractRegistrarBridge, "DomainTransferConfirmed", 3, domain.Args{
		"listingId": "7", "success": false, "message": "registrar rejected",
	}))

	require.NoError(t, db.InTx(context.Background(), func(tx storage.Tx) error {
		req, err := tx.TransferRequest(context.Background(), "7")
		require.NoError(t, err)
		require.False(t, req.Pending)
		require.True(t, req.Completed)
		require.False(t, req.Success)
		require.Equal(t, "registrar rejected", req.Message)
		require.Equal(t, "example.com", req.RegistrarRef)
		return nil
	}))
}

func TestFeeDistributionRecorded(t *testing.T) {
	db, r, _ := newHarness(t)

	fee := ev(domain.ContractFeeManager, "FeesDistributed", 1, domain.Args{
		"nft":              nftAddr.Hex(),
		"tokenId":          "42",
		"seller":           seller.Hex(),
		"salePrice":        "10000",
		"marketplaceFee":   "250",
		"protocolFee":      "50",
		"royaltyAmount":    "500",
		"royaltyRecipient": ownerAddr.Hex(),
	})
	mustApply(t, db, r, fee)
	mustApply(t, db, r, fee) // replay is a no-op
}

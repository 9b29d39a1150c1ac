package feed

import (
	"context"
	"strings"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"domain-market-indexer/internal/domain"
)

const sampleEnvelope = `{
	"chainId": 97476,
	"contract": "DomainAuctionHouse",
	"contractAddress": "0x6666666666666666666666666666666666666666",
	"name": "BidPlaced",
	"args": {
		"listingId": 7,
		"bidder": "0x2222222222222222222222222222222222222222",
		"amount": "340282366920938463463374607431768211456"
	},
	"blockNumber": 1204,
	"timestamp": 1700000100,
	"txHash": "0x00000000000000000000000000000000000000000000000000000000000000aa",
	"txFrom": "0x2222222222222222222222222222222222222222",
	"logIndex": 3
}`

func TestDecodeEvent(t *testing.T) {
	ev, err := DecodeEvent([]byte(sampleEnvelope))
	require.NoError(t, err)

	assert.Equal(t, uint64(97476), ev.ChainID)
	assert.Equal(t, domain.ContractAuctionHouse, ev.Contract)
	assert.Equal(t, "BidPlaced", ev.Name)
	assert.Equal(t, uint64(1204), ev.BlockNumber)
	assert.Equal(t, uint32(3), ev.LogIndex)
	assert.Equal(t, "0x00000000000000000000000000000000000000000000000000000000000000aa-3", ev.LedgerID())

	id, err := ev.Args.ID("listingId")
	require.NoError(t, err)
	assert.Equal(t, "7", id)

	bidder, err := ev.Args.Address("bidder")
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress("0x2222222222222222222222222222222222222222"), bidder)

	// 2^128 must survive JSON intact.
	amount, err := ev.Args.BigInt("amount")
	require.NoError(t, err)
	assert.Equal(t, "340282366920938463463374607431768211456", amount.String())
}

func TestDecodeEventLargeNumericArgKeepsPrecision(t *testing.T) {
	// Unquoted number beyond float64's 2^53 integer range.
	raw := `{
		"chainId": 1,
		"contract": "DomainLendingPool",
		"name": "Borrowed",
		"args": {"amount": 36893488147419103232},
		"txHash": "0x00000000000000000000000000000000000000000000000000000000000000bb"
	}`
	ev, err := DecodeEvent([]byte(raw))
	require.NoError(t, err)

	amount, err := ev.Args.BigInt("amount")
	require.NoError(t, err)
	assert.Equal(t, "36893488147419103232", amount.String())
}

func TestDecodeEventRejectsMalformedEnvelopes(t *testing.T) {
	cases := map[string]string{
		"not json":        `{`,
		"missing name":    `{"contract":"DomainAuctionHouse","txHash":"0x00000000000000000000000000000000000000000000000000000000000000aa"}`,
		"short tx hash":   `{"contract":"DomainAuctionHouse","name":"Listed","txHash":"0xaa"}`,
		"bad tx from":     `{"contract":"DomainAuctionHouse","name":"Listed","txHash":"0x00000000000000000000000000000000000000000000000000000000000000aa","txFrom":"nope"}`,
		"bad contract addr": `{"contract":"DomainAuctionHouse","name":"Listed","txHash":"0x00000000000000000000000000000000000000000000000000000000000000aa","contractAddress":"0x12"}`,
	}
	for name, raw := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := DecodeEvent([]byte(raw))
			assert.Error(t, err)
		})
	}
}

func TestFileFeedSkipsCorruptLines(t *testing.T) {
	lines := strings.Join([]string{
		`{"contract":"DomainAuctionHouse","name":"Listed","txHash":"0x00000000000000000000000000000000000000000000000000000000000000aa"}`,
		``,
		`not json at all`,
		`{"contract":"DomainAuctionHouse","name":"Cancelled","txHash":"0x00000000000000000000000000000000000000000000000000000000000000bb"}`,
	}, "\n")

	f := NewFileFeed("", zap.NewNop())
	var got []string
	err := f.scan(context.Background(), strings.NewReader(lines), func(_ context.Context, ev *domain.Event) {
		got = append(got, ev.Name)
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Listed", "Cancelled"}, got)
}

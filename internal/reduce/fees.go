package reduce

import (
	"context"
	"fmt"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

func (r *Reducers) feesDistributed(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	nft, err := ev.Args.Address("nft")
	if err != nil {
		return err
	}
	tokenID, err := ev.Args.BigInt("tokenId")
	if err != nil {
		return err
	}
	seller, err := ev.Args.Address("seller")
	if err != nil {
		return err
	}
	salePrice, err := ev.Args.BigInt("salePrice")
	if err != nil {
		return err
	}
	marketplaceFee, err := ev.Args.BigInt("marketplaceFee")
	if err != nil {
		return err
	}
	protocolFee, err := ev.Args.BigInt("protocolFee")
	if err != nil {
		return err
	}
	royaltyAmount, err := ev.Args.BigInt("royaltyAmount")
	if err != nil {
		return err
	}
	royaltyRecipient, err := ev.Args.Address("royaltyRecipient")
	if err != nil {
		return err
	}

	// Fee splits have no parent entity; the row is self-contained so a
	// distribution for a sale this indexer never saw is still recorded.
	_, err = tx.AddFeeDistribution(ctx, &domain.FeeDistribution{
		ID:               ev.LedgerID(),
		NFT:              nft,
		TokenID:          tokenID,
		Seller:           seller,
		SalePrice:        salePrice,
		MarketplaceFee:   marketplaceFee,
		ProtocolFee:      protocolFee,
		RoyaltyAmount:    royaltyAmount,
		RoyaltyRecipient: royaltyRecipient,
		Timestamp:        ev.Timestamp,
		BlockNumber:      ev.BlockNumber,
		TxHash:           ev.TxHash,
	})
	if err != nil {
		return fmt.Errorf("append fee distribution: %w", err)
	}
	return nil
}

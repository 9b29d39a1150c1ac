package reduce

import (
	"context"
	"errors"
	"fmt"
	"math/big"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

func (r *Reducers) commitmentMade(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	listingID, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	bidder, err := ev.Args.Address("bidder")
	if err != nil {
		return err
	}
	commitment, err := ev.Args.Hash("commitment")
	if err != nil {
		return err
	}

	if _, err := requireListing(ctx, tx, listingID); err != nil {
		return err
	}

	deposit := new(big.Int)
	if ev.Args.Has("deposit") {
		if deposit, err = ev.Args.BigInt("deposit"); err != nil {
			return err
		}
	}

	// Re-committing overwrites the hash; the contract allows changing a
	// sealed bid before the commit window closes.
	return tx.PutCommitment(ctx, &domain.SealedBidCommitment{
		ID:             domain.CommitmentKey(listingID, bidder),
		ListingID:      listingID,
		Bidder:         bidder,
		CommitmentHash: commitment,
		Deposit:        deposit,
		Timestamp:      ev.Timestamp,
		BlockNumber:    ev.BlockNumber,
	})
}

func (r *Reducers) bidRevealed(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	listingID, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	bidder, err := ev.Args.Address("bidder")
	if err != nil {
		return err
	}
	amount, err := ev.Args.BigInt("bidAmount")
	if err != nil {
		return err
	}

	key := domain.CommitmentKey(listingID, bidder)
	c, err := tx.Commitment(ctx, key)
	if errors.Is(err, storage.ErrNotFound) {
		return &MissingParentError{Entity: "commitment", Key: key}
	}
	if err != nil {
		return fmt.Errorf("resolve commitment %s: %w", key, err)
	}

	c.Revealed = true
	c.BidAmount = amount
	return tx.PutCommitment(ctx, c)
}

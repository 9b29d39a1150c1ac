package reduce

import (
	"context"
	"errors"
	"fmt"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

func (r *Reducers) transferRequested(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	listingID, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	registrarRef, err := ev.Args.Text("registrarRef")
	if err != nil {
		return err
	}
	buyer, err := ev.Args.Address("buyer")
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

	// One transfer request per listing. A replayed request overwrites the
	// row with identical values, so the upsert is idempotent.
	return tx.PutTransferRequest(ctx, &domain.DomainTransferRequest{
		ID:           listingID,
		ListingID:    listingID,
		RegistrarRef: registrarRef,
		Buyer:        buyer,
		NFT:          nft,
		TokenID:      tokenID,
		Pending:      true,
		RequestedAt:  ev.Timestamp,
	})
}

func (r *Reducers) transferConfirmed(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	listingID, err := ev.Args.ID("listingId")
	if err != nil {
		return err
	}
	success, err := ev.Args.Bool("success")
	if err != nil {
		return err
	}
	message, err := ev.Args.Text("message")
	if err != nil {
		return err
	}

	req, err := tx.TransferRequest(ctx, listingID)
	if errors.Is(err, storage.ErrNotFound) {
		return &MissingParentError{Entity: "transfer_request", Key: listingID}
	}
	if err != nil {
		return fmt.Errorf("resolve transfer request %s: %w", listingID, err)
	}

	req.Pending = false
	req.Completed = true
	req.Success = success
	req.Message = message
	req.ConfirmedAt = ev.Timestamp
	return tx.PutTransferRequest(ctx, req)
}

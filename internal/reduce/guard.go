package reduce

import (
	"context"
	"errors"
	"fmt"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

// requireListing resolves the parent auction listing of a dependent event.
func requireListing(ctx context.Context, tx storage.Tx, id string) (*domain.Listing, error) {
	l, err := tx.Listing(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &MissingParentError{Entity: "listing", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve listing %s: %w", id, err)
	}
	return l, nil
}

// requireRentalListing resolves the parent rental listing. When needTerms
// is set the listing must have left the terms-pending state: renting
// against unset terms would fabricate a zero price.
func requireRentalListing(ctx context.Context, tx storage.Tx, id string, needTerms bool) (*domain.RentalListing, error) {
	l, err := tx.RentalListing(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, &MissingParentError{Entity: "rental_listing", Key: id}
	}
	if err != nil {
		return nil, fmt.Errorf("resolve rental listing %s: %w", id, err)
	}
	if needTerms && !l.HasTerms() {
		return nil, &MissingParentError{Entity: "rental_listing", Key: id, Reason: "terms not set"}
	}
	return l, nil
}

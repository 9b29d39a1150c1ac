package reduce

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strconv"

	"github.com/ethereum/go-ethereum/common"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
	"domain-market-indexer/internal/wad"
)

// loadUserProfile fetches a renter rollup, zero-initialized if absent.
func loadUserProfile(ctx context.Context, tx storage.Tx, addr common.Address, ts uint64) (*domain.UserRentalProfile, error) {
	p, err := tx.UserProfile(ctx, addr)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load user profile %s: %w", addr.Hex(), err)
	}
	return &domain.UserRentalProfile{
		Address:       addr,
		TotalSpent:    new(big.Int),
		TotalDeposits: new(big.Int),
		CreatedAt:     ts,
	}, nil
}

// loadOwnerProfile fetches an owner rollup, zero-initialized if absent.
func loadOwnerProfile(ctx context.Context, tx storage.Tx, addr common.Address, ts uint64) (*domain.OwnerRentalProfile, error) {
	p, err := tx.OwnerProfile(ctx, addr)
	if err == nil {
		return p, nil
	}
	if !errors.Is(err, storage.ErrNotFound) {
		return nil, fmt.Errorf("load owner profile %s: %w", addr.Hex(), err)
	}
	return &domain.OwnerRentalProfile{
		Address:     addr,
		TotalEarned: new(big.Int),
		CreatedAt:   ts,
	}, nil
}

// historyRow builds the append-only rental audit entry for an event.
func historyRow(ev *domain.Event, listingID, eventType string, user, owner, nft common.Address, tokenID *big.Int, data map[string]string) *domain.RentalHistory {
	if tokenID == nil {
		tokenID = new(big.Int)
	}
	return &domain.RentalHistory{
		ID:          ev.LedgerID(),
		ListingID:   listingID,
		EventType:   eventType,
		User:        user,
		Owner:       owner,
		NFT:         nft,
		TokenID:     tokenID,
		Data:        data,
		Timestamp:   ev.Timestamp,
		BlockNumber: ev.BlockNumber,
		TxHash:      ev.TxHash,
	}
}

func (r *Reducers) rentalListed(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("id")
	if err != nil {
		return err
	}
	owner, err := ev.Args.Address("owner")
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

	// Terms stay zeroed until TermsSet; the zero payment token is the
	// terms-pending sentinel.
	if err := tx.PutRentalListing(ctx, &domain.RentalListing{
		ID:              id,
		Owner:           owner,
		NFT:             nft,
		TokenID:         tokenID,
		PricePerDay:     new(big.Int),
		SecurityDeposit: new(big.Int),
		Active:          true,
		CreatedAt:       ev.Timestamp,
		UpdatedAt:       ev.Timestamp,
	}); err != nil {
		return fmt.Errorf("put rental listing %s: %w", id, err)
	}

	created, err := tx.AddRentalHistory(ctx, historyRow(ev, id, "Listed", common.Address{}, owner, nft, tokenID, map[string]string{
		"owner":   owner.Hex(),
		"nft":     nft.Hex(),
		"tokenId": tokenID.String(),
	}))
	if err != nil {
		return fmt.Errorf("append rental history: %w", err)
	}
	if !created {
		return nil
	}

	p, err := loadOwnerProfile(ctx, tx, owner, ev.Timestamp)
	if err != nil {
		return err
	}
	p.TotalListings++
	p.ActiveListings++
	p.UpdatedAt = ev.Timestamp
	return tx.PutOwnerProfile(ctx, p)
}

func (r *Reducers) termsSet(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("id")
	if err != nil {
		return err
	}
	paymentToken, err := ev.Args.Address("paymentToken")
	if err != nil {
		return err
	}
	pricePerDay, err := ev.Args.BigInt("pricePerDay")
	if err != nil {
		return err
	}
	deposit, err := ev.Args.BigInt("securityDeposit")
	if err != nil {
		return err
	}
	minDays, err := ev.Args.Uint64("minDays")
	if err != nil {
		return err
	}
	maxDays, err := ev.Args.Uint64("maxDays")
	if err != nil {
		return err
	}

	l, err := tx.RentalListing(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch rental listing %s: %w", id, err)
	}

	l.PaymentToken = paymentToken
	l.PricePerDay = pricePerDay
	l.SecurityDeposit = deposit
	l.MinDays = uint32(minDays)
	l.MaxDays = uint32(maxDays)
	l.UpdatedAt = ev.Timestamp
	if err := tx.PutRentalListing(ctx, l); err != nil {
		return fmt.Errorf("put rental listing %s: %w", id, err)
	}

	_, err = tx.AddRentalHistory(ctx, historyRow(ev, id, "TermsSet", common.Address{}, l.Owner, l.NFT, l.TokenID, map[string]string{
		"paymentToken":    paymentToken.Hex(),
		"pricePerDay":     pricePerDay.String(),
		"securityDeposit": deposit.String(),
		"minDays":         strconv.FormatUint(minDays, 10),
		"maxDays":         strconv.FormatUint(maxDays, 10),
	}))
	return err
}

func (r *Reducers) rented(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("id")
	if err != nil {
		return err
	}
	renter, err := ev.Args.Address("renter")
	if err != nil {
		return err
	}
	days, err := ev.Args.Uint64("daysRented")
	if err != nil {
		return err
	}
	expires, err := ev.Args.Uint64("expires")
	if err != nil {
		return err
	}

	l, err := requireRentalListing(ctx, tx, id, true)
	if err != nil {
		return err
	}

	// The paid amount is fixed at rental time from the listing terms;
	// later TermsSet updates never change it.
	totalPaid := new(big.Int).Mul(l.PricePerDay, new(big.Int).SetUint64(days))

	if err := tx.PutRental(ctx, &domain.Rental{
		ID:        id,
		ListingID: id,
		User:      renter,
		Owner:     l.Owner,
		NFT:       l.NFT,
		TokenID:   l.TokenID,
		Days:      uint32(days),
		TotalPaid: totalPaid,
		Deposit:   l.SecurityDeposit,
		Expires:   expires,
		Active:    true,
		StartedAt: ev.Timestamp,
	}); err != nil {
		return fmt.Errorf("put rental %s: %w", id, err)
	}

	if l.SecurityDeposit.Sign() > 0 {
		if err := tx.PutDepositRecord(ctx, &domain.DepositRecord{
			ID:           id,
			ListingID:    id,
			User:         renter,
			Amount:       l.SecurityDeposit,
			PaymentToken: l.PaymentToken,
			Locked:       true,
			LockedAt:     ev.Timestamp,
		}); err != nil {
			return fmt.Errorf("put deposit record %s: %w", id, err)
		}
	}

	created, err := tx.AddRentalHistory(ctx, historyRow(ev, id, "Rented", renter, l.Owner, l.NFT, l.TokenID, map[string]string{
		"user":      renter.Hex(),
		"days":      strconv.FormatUint(days, 10),
		"expires":   strconv.FormatUint(expires, 10),
		"totalPaid": totalPaid.String(),
		"deposit":   l.SecurityDeposit.String(),
	}))
	if err != nil {
		return fmt.Errorf("append rental history: %w", err)
	}
	if !created {
		return nil
	}

	up, err := loadUserProfile(ctx, tx, renter, ev.Timestamp)
	if err != nil {
		return err
	}
	up.TotalRentals++
	up.TotalSpent = wad.Add(up.TotalSpent, totalPaid)
	up.ActiveRentals++
	up.UpdatedAt = ev.Timestamp
	if err := tx.PutUserProfile(ctx, up); err != nil {
		return fmt.Errorf("put user profile %s: %w", renter.Hex(), err)
	}

	op, err := loadOwnerProfile(ctx, tx, l.Owner, ev.Timestamp)
	if err != nil {
		return err
	}
	op.TotalRentals++
	op.TotalEarned = wad.Add(op.TotalEarned, totalPaid)
	op.UpdatedAt = ev.Timestamp
	return tx.PutOwnerProfile(ctx, op)
}

func (r *Reducers) rentalExtended(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("id")
	if err != nil {
		return err
	}
	extraDays, err := ev.Args.Uint64("extraDays")
	if err != nil {
		return err
	}
	newExpires, err := ev.Args.Uint64("newExpires")
	if err != nil {
		return err
	}

	var owner, nft common.Address
	var tokenID *big.Int
	rental, err := tx.Rental(ctx, id)
	switch {
	case err == nil:
		rental.Expires = newExpires
		rental.Days += uint32(extraDays)
		if err := tx.PutRental(ctx, rental); err != nil {
			return fmt.Errorf("put rental %s: %w", id, err)
		}
		owner, nft, tokenID = rental.Owner, rental.NFT, rental.TokenID
	case errors.Is(err, storage.ErrNotFound):
		// Extension for a rental this indexer never saw; keep the audit
		// trail anyway.
	default:
		return fmt.Errorf("fetch rental %s: %w", id, err)
	}

	_, err = tx.AddRentalHistory(ctx, historyRow(ev, id, "Extended", ev.TxFrom, owner, nft, tokenID, map[string]string{
		"extraDays":  strconv.FormatUint(extraDays, 10),
		"newExpires": strconv.FormatUint(newExpires, 10),
	}))
	return err
}

func (r *Reducers) rentalEnded(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("id")
	if err != nil {
		return err
	}

	rental, err := tx.Rental(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch rental %s: %w", id, err)
	}

	// Only the active-to-inactive transition folds into the renter
	// profile; a duplicate Ended is a no-op, not a second decrement.
	if rental.Active {
		rental.Active = false
		rental.EndedAt = ev.Timestamp
		if err := tx.PutRental(ctx, rental); err != nil {
			return fmt.Errorf("put rental %s: %w", id, err)
		}

		up, err := loadUserProfile(ctx, tx, rental.User, ev.Timestamp)
		if err != nil {
			return err
		}
		if up.ActiveRentals > 0 {
			up.ActiveRentals--
		} else {
			r.clampWarn(ev, "active rentals")
		}
		up.ExpiredRentals++
		up.UpdatedAt = ev.Timestamp
		if err := tx.PutUserProfile(ctx, up); err != nil {
			return fmt.Errorf("put user profile %s: %w", rental.User.Hex(), err)
		}
	}

	_, err = tx.AddRentalHistory(ctx, historyRow(ev, id, "Ended", rental.User, rental.Owner, rental.NFT, rental.TokenID, map[string]string{
		"endedBy": ev.TxFrom.Hex(),
	}))
	return err
}

func (r *Reducers) depositClaimed(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("id")
	if err != nil {
		return err
	}
	to, err := ev.Args.Address("to")
	if err != nil {
		return err
	}
	amount, err := ev.Args.BigInt("amount")
	if err != nil {
		return err
	}

	d, err := tx.DepositRecord(ctx, id)
	switch {
	case err == nil:
		d.Locked = false
		d.Claimed = true
		d.ClaimedBy = to
		d.ClaimedAt = ev.Timestamp
		if err := tx.PutDepositRecord(ctx, d); err != nil {
			return fmt.Errorf("put deposit record %s: %w", id, err)
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		return fmt.Errorf("fetch deposit record %s: %w", id, err)
	}

	created, err := tx.AddRentalHistory(ctx, historyRow(ev, id, "DepositClaimed", to, common.Address{}, common.Address{}, nil, map[string]string{
		"claimedBy": to.Hex(),
		"amount":    amount.String(),
	}))
	if err != nil {
		return fmt.Errorf("append rental history: %w", err)
	}
	if !created {
		return nil
	}

	up, err := loadUserProfile(ctx, tx, to, ev.Timestamp)
	if err != nil {
		return err
	}
	up.TotalDeposits = wad.Add(up.TotalDeposits, amount)
	up.UpdatedAt = ev.Timestamp
	return tx.PutUserProfile(ctx, up)
}

func (r *Reducers) rentalPaused(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("id")
	if err != nil {
		return err
	}
	paused, err := ev.Args.Bool("paused")
	if err != nil {
		return err
	}

	l, err := tx.RentalListing(ctx, id)
	switch {
	case err == nil:
		l.Paused = paused
		l.UpdatedAt = ev.Timestamp
		if err := tx.PutRentalListing(ctx, l); err != nil {
			return fmt.Errorf("put rental listing %s: %w", id, err)
		}
	case errors.Is(err, storage.ErrNotFound):
	default:
		return fmt.Errorf("fetch rental listing %s: %w", id, err)
	}

	eventType := "Paused"
	if !paused {
		eventType = "Unpaused"
	}
	_, err = tx.AddRentalHistory(ctx, historyRow(ev, id, eventType, ev.TxFrom, ev.TxFrom, common.Address{}, nil, map[string]string{
		"paused": strconv.FormatBool(paused),
	}))
	return err
}

func (r *Reducers) unlisted(ctx context.Context, tx storage.Tx, ev *domain.Event) error {
	id, err := ev.Args.ID("id")
	if err != nil {
		return err
	}

	l, err := tx.RentalListing(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("fetch rental listing %s: %w", id, err)
	}

	wasActive := l.Active
	l.Active = false
	l.UpdatedAt = ev.Timestamp
	if err := tx.PutRentalListing(ctx, l); err != nil {
		return fmt.Errorf("put rental listing %s: %w", id, err)
	}

	if wasActive {
		p, err := loadOwnerProfile(ctx, tx, l.Owner, ev.Timestamp)
		if err != nil {
			return err
		}
		if p.ActiveListings > 0 {
			p.ActiveListings--
		} else {
			r.clampWarn(ev, "active listings")
		}
		p.UpdatedAt = ev.Timestamp
		if err := tx.PutOwnerProfile(ctx, p); err != nil {
			return fmt.Errorf("put owner profile %s: %w", l.Owner.Hex(), err)
		}
	}

	_, err = tx.AddRentalHistory(ctx, historyRow(ev, id, "Unlisted", common.Address{}, l.Owner, l.NFT, l.TokenID, map[string]string{
		"owner": l.Owner.Hex(),
	}))
	return err
}

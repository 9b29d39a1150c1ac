package postgres

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"

	"domain-market-indexer/internal/domain"
	"domain-market-indexer/internal/storage"
)

// RentalListing retrieves a rental listing by id.
func (t *Tx) RentalListing(ctx context.Context, id string) (*domain.RentalListing, error) {
	query := `
		SELECT id, owner, nft, token_id::text, payment_token, price_per_day::text,
			security_deposit::text, min_days, max_days, paused, active, created_at, updated_at
		FROM rental_listings
		WHERE id = $1
	`
	var (
		l                        domain.RentalListing
		owner, nft, payment      []byte
		tokenID, price, deposit  string
	)
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&l.ID, &owner, &nft, &tokenID, &payment, &price,
		&deposit, &l.MinDays, &l.MaxDays, &l.Paused, &l.Active, &l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get rental listing: %w", err)
	}
	l.Owner = common.BytesToAddress(owner)
	l.NFT = common.BytesToAddress(nft)
	l.PaymentToken = common.BytesToAddress(payment)
	if l.TokenID, err = parseNum(tokenID); err != nil {
		return nil, fmt.Errorf("rental listing token_id: %w", err)
	}
	if l.PricePerDay, err = parseNum(price); err != nil {
		return nil, fmt.Errorf("rental listing price_per_day: %w", err)
	}
	if l.SecurityDeposit, err = parseNum(deposit); err != nil {
		return nil, fmt.Errorf("rental listing security_deposit: %w", err)
	}
	return &l, nil
}

// PutRentalListing inserts or fully overwrites a rental listing.
func (t *Tx) PutRentalListing(ctx context.Context, l *domain.RentalListing) error {
	query := `
		INSERT INTO rental_listings (
			id, owner, nft, token_id, payment_token, price_per_day,
			security_deposit, min_days, max_days, paused, active, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			owner = EXCLUDED.owner,
			nft = EXCLUDED.nft,
			token_id = EXCLUDED.token_id,
			payment_token = EXCLUDED.payment_token,
			price_per_day = EXCLUDED.price_per_day,
			security_deposit = EXCLUDED.security_deposit,
			min_days = EXCLUDED.min_days,
			max_days = EXCLUDED.max_days,
			paused = EXCLUDED.paused,
			active = EXCLUDED.active,
			updated_at = EXCLUDED.updated_at
	`
	_, err := t.tx.Exec(ctx, query,
		l.ID, addrBytes(l.Owner), addrBytes(l.NFT), numStr(l.TokenID),
		addrBytes(l.PaymentToken), numStr(l.PricePerDay), numStr(l.SecurityDeposit),
		l.MinDays, l.MaxDays, l.Paused, l.Active, l.CreatedAt, l.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put rental listing: %w", err)
	}
	return nil
}

// Rental retrieves the rental occupying a listing.
func (t *Tx) Rental(ctx context.Context, id string) (*domain.Rental, error) {
	query := `
		SELECT id, listing_id, renter, owner, nft, token_id::text, days,
			total_paid::text, deposit::text, expires, active, started_at, ended_at
		FROM rentals
		WHERE id = $1
	`
	var (
		r                       domain.Rental
		renter, owner, nft      []byte
		tokenID, paid, deposit  string
	)
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&r.ID, &r.ListingID, &renter, &owner, &nft, &tokenID, &r.Days,
		&paid, &deposit, &r.Expires, &r.Active, &r.StartedAt, &r.EndedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get rental: %w", err)
	}
	r.User = common.BytesToAddress(renter)
	r.Owner = common.BytesToAddress(owner)
	r.NFT = common.BytesToAddress(nft)
	if r.TokenID, err = parseNum(tokenID); err != nil {
		return nil, fmt.Errorf("rental token_id: %w", err)
	}
	if r.TotalPaid, err = parseNum(paid); err != nil {
		return nil, fmt.Errorf("rental total_paid: %w", err)
	}
	if r.Deposit, err = parseNum(deposit); err != nil {
		return nil, fmt.Errorf("rental deposit: %w", err)
	}
	return &r, nil
}

// PutRental inserts or fully overwrites a rental.
func (t *Tx) PutRental(ctx context.Context, r *domain.Rental) error {
	query := `
		INSERT INTO rentals (
			id, listing_id, renter, owner, nft, token_id, days,
			total_paid, deposit, expires, active, started_at, ended_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (id) DO UPDATE SET
			renter = EXCLUDED.renter,
			owner = EXCLUDED.owner,
			nft = EXCLUDED.nft,
			token_id = EXCLUDED.token_id,
			days = EXCLUDED.days,
			total_paid = EXCLUDED.total_paid,
			deposit = EXCLUDED.deposit,
			expires = EXCLUDED.expires,
			active = EXCLUDED.active,
			started_at = EXCLUDED.started_at,
			ended_at = EXCLUDED.ended_at
	`
	_, err := t.tx.Exec(ctx, query,
		r.ID, r.ListingID, addrBytes(r.User), addrBytes(r.Owner), addrBytes(r.NFT),
		numStr(r.TokenID), r.Days, numStr(r.TotalPaid), numStr(r.Deposit),
		r.Expires, r.Active, r.StartedAt, r.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("put rental: %w", err)
	}
	return nil
}

// AddRentalHistory appends a rental audit row, reporting whether it was
// newly created.
func (t *Tx) AddRentalHistory(ctx context.Context, h *domain.RentalHistory) (bool, error) {
	query := `
		INSERT INTO rental_history (
			id, listing_id, event_type, renter, owner, nft, token_id,
			data, timestamp, block_number, tx_hash
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`
	tag, err := t.tx.Exec(ctx, query,
		h.ID, h.ListingID, h.EventType, addrBytes(h.User), addrBytes(h.Owner),
		addrBytes(h.NFT), numStr(h.TokenID), h.Data, h.Timestamp, h.BlockNumber,
		hashBytes(h.TxHash),
	)
	if err != nil {
		return false, fmt.Errorf("insert rental history: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}

// UserProfile retrieves a renter rollup by address.
func (t *Tx) UserProfile(ctx context.Context, addr common.Address) (*domain.UserRentalProfile, error) {
	query := `
		SELECT address, total_rentals, total_spent::text, total_deposits::text,
			active_rentals, expired_rentals, created_at, updated_at
		FROM user_rental_profiles
		WHERE address = $1
	`
	var (
		p                 domain.UserRentalProfile
		address           []byte
		spent, deposits   string
	)
	err := t.tx.QueryRow(ctx, query, addrBytes(addr)).Scan(
		&address, &p.TotalRentals, &spent, &deposits,
		&p.ActiveRentals, &p.ExpiredRentals, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get user profile: %w", err)
	}
	p.Address = common.BytesToAddress(address)
	if p.TotalSpent, err = parseNum(spent); err != nil {
		return nil, fmt.Errorf("user profile total_spent: %w", err)
	}
	if p.TotalDeposits, err = parseNum(deposits); err != nil {
		return nil, fmt.Errorf("user profile total_deposits: %w", err)
	}
	return &p, nil
}

// PutUserProfile inserts or fully overwrites a renter rollup.
func (t *Tx) PutUserProfile(ctx context.Context, p *domain.UserRentalProfile) error {
	query := `
		INSERT INTO user_rental_profiles (
			address, total_rentals, total_spent, total_deposits,
			active_rentals, expired_rentals, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (address) DO UPDATE SET
			total_rentals = EXCLUDED.total_rentals,
			total_spent = EXCLUDED.total_spent,
			total_deposits = EXCLUDED.total_deposits,
			active_rentals = EXCLUDED.active_rentals,
			expired_rentals = EXCLUDED.expired_rentals,
			updated_at = EXCLUDED.updated_at
	`
	_, err := t.tx.Exec(ctx, query,
		addrBytes(p.Address), p.TotalRentals, numStr(p.TotalSpent), numStr(p.TotalDeposits),
		p.ActiveRentals, p.ExpiredRentals, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put user profile: %w", err)
	}
	return nil
}

// OwnerProfile retrieves an owner rollup by address.
func (t *Tx) OwnerProfile(ctx context.Context, addr common.Address) (*domain.OwnerRentalProfile, error) {
	query := `
		SELECT address, total_listings, total_rentals, total_earned::text,
			active_listings, created_at, updated_at
		FROM owner_rental_profiles
		WHERE address = $1
	`
	var (
		p       domain.OwnerRentalProfile
		address []byte
		earned  string
	)
	err := t.tx.QueryRow(ctx, query, addrBytes(addr)).Scan(
		&address, &p.TotalListings, &p.TotalRentals, &earned,
		&p.ActiveListings, &p.CreatedAt, &p.UpdatedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get owner profile: %w", err)
	}
	p.Address = common.BytesToAddress(address)
	if p.TotalEarned, err = parseNum(earned); err != nil {
		return nil, fmt.Errorf("owner profile total_earned: %w", err)
	}
	return &p, nil
}

// PutOwnerProfile inserts or fully overwrites an owner rollup.
func (t *Tx) PutOwnerProfile(ctx context.Context, p *domain.OwnerRentalProfile) error {
	query := `
		INSERT INTO owner_rental_profiles (
			address, total_listings, total_rentals, total_earned,
			active_listings, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (address) DO UPDATE SET
			total_listings = EXCLUDED.total_listings,
			total_rentals = EXCLUDED.total_rentals,
			total_earned = EXCLUDED.total_earned,
			active_listings = EXCLUDED.active_listings,
			updated_at = EXCLUDED.updated_at
	`
	_, err := t.tx.Exec(ctx, query,
		addrBytes(p.Address), p.TotalListings, p.TotalRentals, numStr(p.TotalEarned),
		p.ActiveListings, p.CreatedAt, p.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("put owner profile: %w", err)
	}
	return nil
}

// DepositRecord retrieves a security deposit record by listing id.
func (t *Tx) DepositRecord(ctx context.Context, id string) (*domain.DepositRecord, error) {
	query := `
		SELECT id, listing_id, renter, amount::text, payment_token,
			locked, claimed, claimed_by, locked_at, claimed_at
		FROM deposit_records
		WHERE id = $1
	`
	var (
		d                          domain.DepositRecord
		renter, payment, claimedBy []byte
		amount                     string
	)
	err := t.tx.QueryRow(ctx, query, id).Scan(
		&d.ID, &d.ListingID, &renter, &amount, &payment,
		&d.Locked, &d.Claimed, &claimedBy, &d.LockedAt, &d.ClaimedAt,
	)
	if err != nil {
		if isNotFoundError(err) {
			return nil, storage.ErrNotFound
		}
		return nil, fmt.Errorf("get deposit record: %w", err)
	}
	d.User = common.BytesToAddress(renter)
	d.PaymentToken = common.BytesToAddress(payment)
	d.ClaimedBy = common.BytesToAddress(claimedBy)
	if d.Amount, err = parseNum(amount); err != nil {
		return nil, fmt.Errorf("deposit record amount: %w", err)
	}
	return &d, nil
}

// PutDepositRecord inserts or fully overwrites a deposit record.
func (t *Tx) PutDepositRecord(ctx context.Context, d *domain.DepositRecord) error {
	query := `
		INSERT INTO deposit_records (
			id, listing_id, renter, amount, payment_token,
			locked, claimed, claimed_by, locked_at, claimed_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (id) DO UPDATE SET
			renter = EXCLUDED.renter,
			amount = EXCLUDED.amount,
			payment_token = EXCLUDED.payment_token,
			locked = EXCLUDED.locked,
			claimed = EXCLUDED.claimed,
			claimed_by = EXCLUDED.claimed_by,
			locked_at = EXCLUDED.locked_at,
			claimed_at = EXCLUDED.claimed_at
	`
	_, err := t.tx.Exec(ctx, query,
		d.ID, d.ListingID, addrBytes(d.User), numStr(d.Amount), addrBytes(d.PaymentToken),
		d.Locked, d.Claimed, addrBytes(d.ClaimedBy), d.LockedAt, d.ClaimedAt,
	)
	if err != nil {
		return fmt.Errorf("put deposit record: %w", err)
	}
	return nil
}

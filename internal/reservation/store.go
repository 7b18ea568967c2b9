package reservation

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store owns the reservations table. All availability math goes through here
// or through the Ledger; nothing else reads or writes holds.
type Store struct{ DB *pgxpool.Pool }

// Hold claims qty units of a product/variant for a buyer during a show.
// The product stock row is locked for the duration of the transaction, so
// concurrent holds against the same product serialize and the sum of active
// holds can never exceed raw stock.
//
// A buyer re-holding the same (product, variant, show) replaces their prior
// hold: the old quantity does not count against them in the availability
// check, and the row is upserted with a fresh TTL.
func (s *Store) Hold(ctx context.Context, buyerID, productID, variantID, showID string, qty int, ttl time.Duration) (Reservation, error) {
	if qty <= 0 {
		return Reservation{}, fmt.Errorf("%w: %d", ErrInvalidQty, qty)
	}

	tx, err := s.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Reservation{}, err
	}
	defer tx.Rollback(ctx)

	var raw, price int
	if variantID == "" {
		err = tx.QueryRow(ctx, `SELECT stock, price_cents FROM products WHERE id=$1 FOR UPDATE`, productID).Scan(&raw, &price)
	} else {
		err = tx.QueryRow(ctx, `SELECT stock, price_cents FROM product_variants WHERE id=$1 AND product_id=$2 FOR UPDATE`, variantID, productID).Scan(&raw, &price)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, fmt.Errorf("%w: %s", ErrNotFoundProduct, productID)
	}
	if err != nil {
		return Reservation{}, err
	}

	now := time.Now().UTC()

	// Sweep expired holds for this product before aggregating, so a stale
	// hold can never block a legitimate purchase.
	if _, err := tx.Exec(ctx, `
		DELETE FROM reservations
		WHERE product_id=$1 AND variant_id=$2 AND reserved_until < $3`,
		productID, variantID, now); err != nil {
		return Reservation{}, err
	}

	// Active holds by everyone except this buyer's own hold being replaced.
	var held int
	if err := tx.QueryRow(ctx, `
		SELECT COALESCE(SUM(qty), 0) FROM reservations
		WHERE product_id=$1 AND variant_id=$2 AND reserved_until >= $3
		  AND NOT (buyer_id=$4 AND show_id=$5)`,
		productID, variantID, now, buyerID, showID).Scan(&held); err != nil {
		return Reservation{}, err
	}

	if raw-held < qty {
		return Reservation{}, fmt.Errorf("%w: requested %d, available %d", ErrOutOfStock, qty, max(raw-held, 0))
	}

	r := Reservation{
		ID:            uuid.NewString(),
		BuyerID:       buyerID,
		ProductID:     productID,
		VariantID:     variantID,
		ShowID:        showID,
		Qty:           qty,
		PriceCents:    price,
		ReservedUntil: now.Add(ttl),
	}
	err = tx.QueryRow(ctx, `
		INSERT INTO reservations(id, buyer_id, product_id, variant_id, show_id, qty, price_cents, reserved_until)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		ON CONFLICT (buyer_id, product_id, variant_id, show_id)
		DO UPDATE SET qty = EXCLUDED.qty, price_cents = EXCLUDED.price_cents, reserved_until = EXCLUDED.reserved_until
		RETURNING id, created_at`,
		r.ID, r.BuyerID, r.ProductID, r.VariantID, r.ShowID, r.Qty, r.PriceCents, r.ReservedUntil,
	).Scan(&r.ID, &r.CreatedAt)
	if err != nil {
		return Reservation{}, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Reservation{}, err
	}
	return r, nil
}

// Release drops a hold unconditionally. Releasing a missing or expired hold
// is not an error.
func (s *Store) Release(ctx context.Context, reservationID string) error {
	_, err := s.DB.Exec(ctx, `DELETE FROM reservations WHERE id=$1`, reservationID)
	return err
}

// Refresh extends a live hold's TTL. An expired or deleted hold cannot be
// refreshed; the caller must re-Hold so the availability check reruns.
func (s *Store) Refresh(ctx context.Context, reservationID string, ttl time.Duration) (Reservation, error) {
	now := time.Now().UTC()
	var r Reservation
	err := s.DB.QueryRow(ctx, `
		UPDATE reservations SET reserved_until = $2
		WHERE id=$1 AND reserved_until >= $3
		RETURNING id, buyer_id, product_id, variant_id, show_id, qty, price_cents, reserved_until, created_at`,
		reservationID, now.Add(ttl), now,
	).Scan(&r.ID, &r.BuyerID, &r.ProductID, &r.VariantID, &r.ShowID, &r.Qty, &r.PriceCents, &r.ReservedUntil, &r.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Reservation{}, ErrNotFound
	}
	if err != nil {
		return Reservation{}, err
	}
	return r, nil
}

// ListForBuyer returns the buyer's live holds (their cart during a show).
func (s *Store) ListForBuyer(ctx context.Context, buyerID string) ([]Reservation, error) {
	rows, err := s.DB.Query(ctx, `
		SELECT id, buyer_id, product_id, variant_id, show_id, qty, price_cents, reserved_until, created_at
		FROM reservations WHERE buyer_id=$1 AND reserved_until >= NOW()
		ORDER BY created_at`, buyerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Reservation
	for rows.Next() {
		var r Reservation
		if err := rows.Scan(&r.ID, &r.BuyerID, &r.ProductID, &r.VariantID, &r.ShowID, &r.Qty,
			&r.PriceCents, &r.ReservedUntil, &r.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// ReleaseForBuyer clears exactly the buyer's holds on the purchased
// (product, variant) pairs within one show, used by the checkout orchestrator
// after an order materializes. Holds on other variants of the same product,
// or on the same item in a different show, stay alive.
func (s *Store) ReleaseForBuyer(ctx context.Context, buyerID, showID string, items []HeldItem) error {
	if len(items) == 0 {
		return nil
	}
	productIDs := make([]string, len(items))
	variantIDs := make([]string, len(items))
	for i, it := range items {
		productIDs[i] = it.ProductID
		variantIDs[i] = it.VariantID
	}
	_, err := s.DB.Exec(ctx, `
		DELETE FROM reservations
		WHERE buyer_id=$1 AND show_id=$2
		  AND (product_id, variant_id) IN (SELECT unnest($3::text[]), unnest($4::text[]))`,
		buyerID, showID, productIDs, variantIDs)
	return err
}

// DeleteExpired removes every hold whose TTL passed before now, filtering at
// delete time so a hold refreshed after the caller's snapshot survives. It
// returns the evicted rows so the sweeper can notify their owners.
func (s *Store) DeleteExpired(ctx context.Context, now time.Time) ([]ExpiredHold, error) {
	rows, err := s.DB.Query(ctx, `
		DELETE FROM reservations WHERE reserved_until < $1
		RETURNING id, buyer_id, product_id, variant_id, show_id, qty`, now)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ExpiredHold
	for rows.Next() {
		var h ExpiredHold
		if err := rows.Scan(&h.ID, &h.BuyerID, &h.ProductID, &h.VariantID, &h.ShowID, &h.Qty); err != nil {
			return nil, err
		}
		out = append(out, h)
	}
	return out, rows.Err()
}

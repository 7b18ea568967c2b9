package orders

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var (
	ErrNotFound      = errors.New("order not found")
	ErrBadTransition = errors.New("illegal order status transition")
)

type Repo struct{ DB *pgxpool.Pool }

// CreateIfAbsent materializes an order for a payment intent, exactly once.
// The unique index on payment_intent_id carries the idempotency: the insert
// is ON CONFLICT DO NOTHING, and when it inserts no row the existing order
// for that intent is fetched and returned instead. Concurrent duplicate
// confirmations collapse to one order without a check-then-insert race.
func (r *Repo) CreateIfAbsent(ctx context.Context, o Order) (Order, bool, error) {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return Order{}, false, err
	}
	defer tx.Rollback(ctx)

	o.ID = uuid.NewString()
	o.Status = StatusPaid

	ct, err := tx.Exec(ctx, `
		INSERT INTO orders(id, payment_intent_id, buyer_id, show_id, status,
			subtotal_cents, tax_cents, shipping_cents, total_cents,
			ship_name, ship_line1, ship_line2, ship_city, ship_state, ship_postal_code, ship_country)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16)
		ON CONFLICT (payment_intent_id) DO NOTHING`,
		o.ID, o.PaymentIntentID, o.BuyerID, o.ShowID, o.Status,
		o.SubtotalCents, o.TaxCents, o.ShippingCents, o.TotalCents,
		o.ShipTo.Name, o.ShipTo.Line1, o.ShipTo.Line2, o.ShipTo.City, o.ShipTo.State, o.ShipTo.PostalCode, o.ShipTo.Country)
	if err != nil {
		return Order{}, false, err
	}

	if ct.RowsAffected() == 0 {
		// Someone else won the race (or this is a client retry).
		existing, err := getByIntent(ctx, tx, o.PaymentIntentID)
		if err != nil {
			return Order{}, false, err
		}
		if err := tx.Commit(ctx); err != nil {
			return Order{}, false, err
		}
		return existing, true, nil
	}

	for i := range o.Items {
		it := &o.Items[i]
		it.ID = uuid.NewString()
		it.OrderID = o.ID
		if _, err := tx.Exec(ctx, `
			INSERT INTO order_items(id, order_id, product_id, variant_id, name, image_url, unit_price_cents, qty, weight, weight_unit)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10)`,
			it.ID, it.OrderID, it.ProductID, it.VariantID, it.Name, it.ImageURL,
			it.UnitPriceCents, it.Qty, it.Weight, it.WeightUnit); err != nil {
			return Order{}, false, err
		}
	}

	if err := tx.QueryRow(ctx, `SELECT created_at, updated_at FROM orders WHERE id=$1`, o.ID).
		Scan(&o.CreatedAt, &o.UpdatedAt); err != nil {
		return Order{}, false, err
	}

	if err := tx.Commit(ctx); err != nil {
		return Order{}, false, err
	}
	return o, false, nil
}

type querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func getByIntent(ctx context.Context, q querier, intentID string) (Order, error) {
	return getWhere(ctx, q, `payment_intent_id=$1`, intentID)
}

func (r *Repo) Get(ctx context.Context, orderID string) (Order, error) {
	return getWhere(ctx, r.DB, `id=$1`, orderID)
}

func getWhere(ctx context.Context, q querier, cond, arg string) (Order, error) {
	var o Order
	err := q.QueryRow(ctx, `
		SELECT id, payment_intent_id, buyer_id, COALESCE(show_id,''), status,
			subtotal_cents, tax_cents, shipping_cents, total_cents,
			ship_name, ship_line1, COALESCE(ship_line2,''), ship_city, ship_state, ship_postal_code, ship_country,
			created_at, updated_at
		FROM orders WHERE `+cond, arg,
	).Scan(&o.ID, &o.PaymentIntentID, &o.BuyerID, &o.ShowID, &o.Status,
		&o.SubtotalCents, &o.TaxCents, &o.ShippingCents, &o.TotalCents,
		&o.ShipTo.Name, &o.ShipTo.Line1, &o.ShipTo.Line2, &o.ShipTo.City, &o.ShipTo.State,
		&o.ShipTo.PostalCode, &o.ShipTo.Country, &o.CreatedAt, &o.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Order{}, ErrNotFound
	}
	if err != nil {
		return Order{}, err
	}

	rows, err := q.Query(ctx, `
		SELECT id, order_id, product_id, variant_id, name, image_url, unit_price_cents, qty, weight, weight_unit
		FROM order_items WHERE order_id=$1`, o.ID)
	if err != nil {
		return Order{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var it OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Name,
			&it.ImageURL, &it.UnitPriceCents, &it.Qty, &it.Weight, &it.WeightUnit); err != nil {
			return Order{}, err
		}
		o.Items = append(o.Items, it)
	}
	return o, rows.Err()
}

// UpdateStatus applies a transition after validating it against the order's
// current status under a row lock. Illegal moves (cancelled -> shipped and
// the like) fail with ErrBadTransition.
func (r *Repo) UpdateStatus(ctx context.Context, orderID string, to Status) error {
	tx, err := r.DB.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	var cur string
	err = tx.QueryRow(ctx, `SELECT status FROM orders WHERE id=$1 FOR UPDATE`, orderID).Scan(&cur)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	from, err := ParseStatus(cur)
	if err != nil {
		return err
	}
	if from == to {
		return tx.Commit(ctx) // already there, nothing to do
	}
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrBadTransition, from, to)
	}

	if _, err := tx.Exec(ctx, `UPDATE orders SET status=$2, updated_at=NOW() WHERE id=$1`, orderID, to); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

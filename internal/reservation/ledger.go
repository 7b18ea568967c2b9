package reservation

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Ledger is the read path for availability: raw stock netted against active
// holds across all buyers. It never mutates stock.
type Ledger struct{ DB *pgxpool.Pool }

// Available returns raw stock minus the sum of unexpired holds, floored at
// zero. Expired rows are excluded by the reserved_until filter, so a stale
// hold can never suppress availability even between sweeps.
func (l *Ledger) Available(ctx context.Context, productID, variantID string) (int, error) {
	now := time.Now().UTC()

	var raw int
	var err error
	if variantID == "" {
		err = l.DB.QueryRow(ctx, `SELECT stock FROM products WHERE id=$1`, productID).Scan(&raw)
	} else {
		err = l.DB.QueryRow(ctx, `SELECT stock FROM product_variants WHERE id=$1 AND product_id=$2`, variantID, productID).Scan(&raw)
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, ErrNotFoundProduct
	}
	if err != nil {
		return 0, err
	}

	var held int
	if err := l.DB.QueryRow(ctx, `
		SELECT COALESCE(SUM(qty), 0) FROM reservations
		WHERE product_id=$1 AND variant_id=$2 AND reserved_until >= $3`,
		productID, variantID, now).Scan(&held); err != nil {
		return 0, err
	}

	if avail := raw - held; avail > 0 {
		return avail, nil
	}
	return 0, nil
}

var ErrNotFoundProduct = errors.New("product not found")

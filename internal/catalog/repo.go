package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var ErrProductNotFound = errors.New("product not found")

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) ListProducts(ctx context.Context) ([]Product, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, seller_id, name, image_url, price_cents, stock, weight, weight_unit, created_at, updated_at
		FROM products ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Product
	for rows.Next() {
		var p Product
		if err := rows.Scan(&p.ID, &p.SellerID, &p.Name, &p.ImageURL, &p.PriceCents, &p.Stock,
			&p.Weight, &p.WeightUnit, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (r *Repo) CreateProduct(ctx context.Context, p Product) (Product, error) {
	p.ID = uuid.NewString()
	err := r.DB.QueryRow(ctx, `
		INSERT INTO products(id, seller_id, name, image_url, price_cents, stock, weight, weight_unit)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
		RETURNING created_at, updated_at`,
		p.ID, p.SellerID, p.Name, p.ImageURL, p.PriceCents, p.Stock, p.Weight, p.WeightUnit,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	if err != nil {
		return Product{}, fmt.Errorf("insert product: %w", err)
	}
	return p, nil
}

// Snapshots resolves server-side pricing for the given product/variant pairs.
// Variant price and weight take precedence over the parent product when set.
func (r *Repo) Snapshots(ctx context.Context, keys []ItemKey) (map[ItemKey]Snapshot, error) {
	out := make(map[ItemKey]Snapshot, len(keys))
	for _, k := range keys {
		var s Snapshot
		var err error
		if k.VariantID == "" {
			err = r.DB.QueryRow(ctx, `
				SELECT id, name, image_url, price_cents, weight, weight_unit
				FROM products WHERE id=$1`, k.ProductID,
			).Scan(&s.ProductID, &s.Name, &s.ImageURL, &s.PriceCents, &s.Weight, &s.WeightUnit)
		} else {
			err = r.DB.QueryRow(ctx, `
				SELECT p.id, v.id, p.name || ' / ' || v.name, p.image_url, v.price_cents, v.weight, v.weight_unit
				FROM product_variants v JOIN products p ON p.id = v.product_id
				WHERE v.id=$1 AND v.product_id=$2`, k.VariantID, k.ProductID,
			).Scan(&s.ProductID, &s.VariantID, &s.Name, &s.ImageURL, &s.PriceCents, &s.Weight, &s.WeightUnit)
		}
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("%w: %s", ErrProductNotFound, k.ProductID)
		}
		if err != nil {
			return nil, err
		}
		out[k] = s
	}
	return out, nil
}

type ItemKey struct {
	ProductID string
	VariantID string
}

// DecrementStock is called by the checkout orchestrator only, after a payment
// has succeeded. The decrement floors at zero: the charge cannot be silently
// reversed, so an oversold race is reported to the caller, not raised.
func (r *Repo) DecrementStock(ctx context.Context, key ItemKey, qty int) (clamped bool, err error) {
	var table, id = "products", key.ProductID
	if key.VariantID != "" {
		table, id = "product_variants", key.VariantID
	}
	var before, after int
	err = r.DB.QueryRow(ctx, fmt.Sprintf(`
		WITH prev AS (SELECT stock FROM %[1]s WHERE id=$1 FOR UPDATE)
		UPDATE %[1]s t SET stock = GREATEST(t.stock - $2, 0), updated_at = NOW()
		FROM prev
		WHERE t.id=$1
		RETURNING prev.stock, t.stock`, table), id, qty).Scan(&before, &after)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, fmt.Errorf("%w: %s", ErrProductNotFound, id)
	}
	if err != nil {
		return false, err
	}
	return before < qty, nil
}

func (r *Repo) GetSellerAddress(ctx context.Context, sellerID string) (Address, error) {
	var a Address
	err := r.DB.QueryRow(ctx, `
		SELECT store_name, line1, COALESCE(line2,''), city, state, postal_code, country
		FROM sellers WHERE id=$1`, sellerID,
	).Scan(&a.Name, &a.Line1, &a.Line2, &a.City, &a.State, &a.PostalCode, &a.Country)
	if errors.Is(err, pgx.ErrNoRows) {
		return Address{}, nil
	}
	return a, err
}

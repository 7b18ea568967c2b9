package shipping

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/jatango/liveshop/internal/orders"
)

type Repo struct{ DB *pgxpool.Pool }

func (r *Repo) CreateParcel(ctx context.Context, orderID string) (Parcel, error) {
	p := Parcel{ID: uuid.NewString(), OrderID: orderID}
	err := r.DB.QueryRow(ctx, `
		INSERT INTO parcels(id, order_id) VALUES ($1,$2)
		RETURNING created_at, updated_at`, p.ID, p.OrderID,
	).Scan(&p.CreatedAt, &p.UpdatedAt)
	return p, err
}

func (r *Repo) GetParcel(ctx context.Context, parcelID string) (Parcel, error) {
	var p Parcel
	err := r.DB.QueryRow(ctx, `
		SELECT id, order_id, COALESCE(kind,''), length, width, height, weight,
			COALESCE(carrier,''), COALESCE(service,''), COALESCE(rate_id,''), rate_cents,
			COALESCE(tracking_number,''), COALESCE(label_url,''), created_at, updated_at
		FROM parcels WHERE id=$1`, parcelID,
	).Scan(&p.ID, &p.OrderID, &p.Kind, &p.Length, &p.Width, &p.Height, &p.Weight,
		&p.Carrier, &p.Service, &p.RateID, &p.RateCents,
		&p.TrackingNumber, &p.LabelURL, &p.CreatedAt, &p.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return Parcel{}, ErrParcelNotFound
	}
	if err != nil {
		return Parcel{}, err
	}

	rows, err := r.DB.Query(ctx, `SELECT order_item_id FROM parcel_items WHERE parcel_id=$1`, parcelID)
	if err != nil {
		return Parcel{}, err
	}
	defer rows.Close()
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return Parcel{}, err
		}
		p.ItemIDs = append(p.ItemIDs, id)
	}
	return p, rows.Err()
}

func (r *Repo) ListByOrder(ctx context.Context, orderID string) ([]Parcel, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT p.id, p.order_id, COALESCE(p.kind,''), p.length, p.width, p.height, p.weight,
			COALESCE(p.carrier,''), COALESCE(p.service,''), COALESCE(p.rate_id,''), p.rate_cents,
			COALESCE(p.tracking_number,''), COALESCE(p.label_url,''), p.created_at, p.updated_at,
			COALESCE(array_agg(pi.order_item_id) FILTER (WHERE pi.order_item_id IS NOT NULL), '{}')
		FROM parcels p
		LEFT JOIN parcel_items pi ON pi.parcel_id = p.id
		WHERE p.order_id=$1
		GROUP BY p.id
		ORDER BY p.created_at`, orderID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Parcel
	for rows.Next() {
		var p Parcel
		if err := rows.Scan(&p.ID, &p.OrderID, &p.Kind, &p.Length, &p.Width, &p.Height, &p.Weight,
			&p.Carrier, &p.Service, &p.RateID, &p.RateCents,
			&p.TrackingNumber, &p.LabelURL, &p.CreatedAt, &p.UpdatedAt, &p.ItemIDs); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// AssignItem moves an order item into a parcel. The unique constraint on
// order_item_id means an item lives in at most one parcel; assigning it
// elsewhere is an upsert that unassigns it from its previous parcel
// (last-writer-wins per item).
func (r *Repo) AssignItem(ctx context.Context, parcelID, orderItemID string) error {
	_, err := r.DB.Exec(ctx, `
		INSERT INTO parcel_items(parcel_id, order_item_id) VALUES ($1,$2)
		ON CONFLICT (order_item_id) DO UPDATE SET parcel_id = EXCLUDED.parcel_id`,
		parcelID, orderItemID)
	return err
}

// ItemParcel reports which parcel currently owns an item, or "" if none.
func (r *Repo) ItemParcel(ctx context.Context, orderItemID string) (string, error) {
	var id string
	err := r.DB.QueryRow(ctx, `SELECT parcel_id FROM parcel_items WHERE order_item_id=$1`, orderItemID).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	return id, err
}

// ParcelItems returns the order items assigned to a parcel, with their frozen
// weight snapshots for the default-weight computation.
func (r *Repo) ParcelItems(ctx context.Context, parcelID string) ([]orders.OrderItem, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT oi.id, oi.order_id, oi.product_id, oi.variant_id, oi.name, oi.image_url,
			oi.unit_price_cents, oi.qty, oi.weight, oi.weight_unit
		FROM parcel_items pi JOIN order_items oi ON oi.id = pi.order_item_id
		WHERE pi.parcel_id=$1`, parcelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []orders.OrderItem
	for rows.Next() {
		var it orders.OrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductID, &it.VariantID, &it.Name,
			&it.ImageURL, &it.UnitPriceCents, &it.Qty, &it.Weight, &it.WeightUnit); err != nil {
			return nil, err
		}
		out = append(out, it)
	}
	return out, rows.Err()
}

func (r *Repo) SetPackage(ctx context.Context, parcelID, kind string, length, width, height, weight float64) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE parcels SET kind=$2, length=$3, width=$4, height=$5, weight=$6, updated_at=NOW()
		WHERE id=$1 AND tracking_number IS NULL`,
		parcelID, kind, length, width, height, weight)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadyLabeled
	}
	return nil
}

// MarkLabeled records a purchased label. The tracking_number IS NULL guard
// keeps the purchase one-way: a labeled parcel can never be re-labeled.
func (r *Repo) MarkLabeled(ctx context.Context, parcelID string, rate Rate, label Label) error {
	ct, err := r.DB.Exec(ctx, `
		UPDATE parcels SET carrier=$2, service=$3, rate_id=$4, rate_cents=$5,
			tracking_number=$6, label_url=$7, updated_at=NOW()
		WHERE id=$1 AND tracking_number IS NULL`,
		parcelID, rate.Carrier, rate.Service, rate.ID, rate.AmountCents,
		label.TrackingNumber, label.LabelURL)
	if err != nil {
		return err
	}
	if ct.RowsAffected() == 0 {
		return ErrAlreadyLabeled
	}
	return nil
}

// UnlabeledItemParcels counts parcels for an order that hold at least one
// item but have no tracking number, plus how many labeled item-bearing
// parcels exist. The order is fully shipped when the first count hits zero
// and the second is positive.
func (r *Repo) UnlabeledItemParcels(ctx context.Context, orderID string) (unlabeled, labeled int, err error) {
	err = r.DB.QueryRow(ctx, `
		SELECT
			COUNT(*) FILTER (WHERE p.tracking_number IS NULL),
			COUNT(*) FILTER (WHERE p.tracking_number IS NOT NULL)
		FROM parcels p
		WHERE p.order_id=$1
		  AND EXISTS (SELECT 1 FROM parcel_items pi WHERE pi.parcel_id = p.id)`,
		orderID).Scan(&unlabeled, &labeled)
	return unlabeled, labeled, err
}

// ---- saved package templates ----

func (r *Repo) ListSavedPackages(ctx context.Context, sellerID string) ([]SavedPackage, error) {
	rows, err := r.DB.Query(ctx, `
		SELECT id, seller_id, name, length, width, height, weight, created_at
		FROM saved_packages WHERE seller_id=$1 ORDER BY created_at DESC`, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []SavedPackage
	for rows.Next() {
		var sp SavedPackage
		if err := rows.Scan(&sp.ID, &sp.SellerID, &sp.Name, &sp.Length, &sp.Width, &sp.Height, &sp.Weight, &sp.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, sp)
	}
	return out, rows.Err()
}

func (r *Repo) GetSavedPackage(ctx context.Context, id string) (SavedPackage, error) {
	var sp SavedPackage
	err := r.DB.QueryRow(ctx, `
		SELECT id, seller_id, name, length, width, height, weight, created_at
		FROM saved_packages WHERE id=$1`, id,
	).Scan(&sp.ID, &sp.SellerID, &sp.Name, &sp.Length, &sp.Width, &sp.Height, &sp.Weight, &sp.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return SavedPackage{}, ErrPackageNotFound
	}
	return sp, err
}

func (r *Repo) CreateSavedPackage(ctx context.Context, sp SavedPackage) (SavedPackage, error) {
	sp.ID = uuid.NewString()
	err := r.DB.QueryRow(ctx, `
		INSERT INTO saved_packages(id, seller_id, name, length, width, height, weight)
		VALUES ($1,$2,$3,$4,$5,$6,$7)
		RETURNING created_at`,
		sp.ID, sp.SellerID, sp.Name, sp.Length, sp.Width, sp.Height, sp.Weight,
	).Scan(&sp.CreatedAt)
	return sp, err
}

func (r *Repo) DeleteSavedPackage(ctx context.Context, sellerID, id string) error {
	_, err := r.DB.Exec(ctx, `DELETE FROM saved_packages WHERE id=$1 AND seller_id=$2`, id, sellerID)
	return err
}

package orders

import (
	"time"

	"github.com/jatango/liveshop/internal/catalog"
)

// Order is created exactly once per successful payment confirmation, keyed by
// the provider's payment-intent id. It is never re-derived from a live cart:
// items, prices and the shipping address are frozen at creation.
type Order struct {
	ID              string          `json:"id"`
	PaymentIntentID string          `json:"payment_intent_id"`
	BuyerID         string          `json:"buyer_id"`
	ShowID          string          `json:"show_id,omitempty"`
	Status          Status          `json:"status"`
	SubtotalCents   int             `json:"subtotal_cents"`
	TaxCents        int             `json:"tax_cents"`
	ShippingCents   int             `json:"shipping_cents"`
	TotalCents      int             `json:"total_cents"`
	ShipTo          catalog.Address `json:"ship_to"`
	Items           []OrderItem     `json:"items,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	UpdatedAt       time.Time       `json:"updated_at"`
}

// OrderItem carries the product snapshot taken at order time so later catalog
// edits cannot change what the buyer bought.
type OrderItem struct {
	ID             string  `json:"id"`
	OrderID        string  `json:"order_id"`
	ProductID      string  `json:"product_id"`
	VariantID      string  `json:"variant_id,omitempty"`
	Name           string  `json:"name"`
	ImageURL       string  `json:"image_url"`
	UnitPriceCents int     `json:"unit_price_cents"`
	Qty            int     `json:"qty"`
	Weight         float64 `json:"weight"`
	WeightUnit     string  `json:"weight_unit"`
}

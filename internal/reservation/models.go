package reservation

import (
	"errors"
	"time"
)

var (
	// ErrOutOfStock: raw stock minus the other buyers' active holds cannot
	// cover the requested quantity.
	ErrOutOfStock = errors.New("insufficient stock available")

	// ErrNotFound: the hold is gone or already expired; the caller must
	// re-Hold instead of refreshing.
	ErrNotFound = errors.New("reservation not found or expired")

	// ErrInvalidQty: a hold quantity must be positive.
	ErrInvalidQty = errors.New("invalid hold quantity")
)

// HeldItem identifies one cart line: a (product, variant) pair. VariantID is
// "" for variantless products.
type HeldItem struct {
	ProductID string
	VariantID string
}

// Reservation is a time-boxed claim on inventory tied to a buyer and a show.
// It is a scarcity signal, not a purchase guarantee: once ReservedUntil
// passes, the row is logically dead and no longer counts against stock.
type Reservation struct {
	ID            string    `json:"id"`
	BuyerID       string    `json:"buyer_id"`
	ProductID     string    `json:"product_id"`
	VariantID     string    `json:"variant_id,omitempty"`
	ShowID        string    `json:"show_id"`
	Qty           int       `json:"qty"`
	PriceCents    int       `json:"price_cents"` // unit price at hold time
	ReservedUntil time.Time `json:"reserved_until"`
	CreatedAt     time.Time `json:"created_at"`
}

// ExpiredHold is what the sweeper reports for each evicted row, enough to
// notify the owning buyer.
type ExpiredHold struct {
	ID        string
	BuyerID   string
	ProductID string
	VariantID string
	ShowID    string
	Qty       int
}

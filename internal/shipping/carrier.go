package shipping

import (
	"context"
	"time"

	"github.com/jatango/liveshop/internal/catalog"
)

// Rate is a carrier-quoted price and service level for shipping one parcel
// between two addresses.
type Rate struct {
	ID           string `json:"id"`
	Carrier      string `json:"carrier"`
	Service      string `json:"service"`
	AmountCents  int    `json:"amount_cents"`
	DeliveryDays int    `json:"delivery_days,omitempty"`
	Default      bool   `json:"default"` // pre-selected cheapest option
}

type Label struct {
	TrackingNumber string `json:"tracking_number"`
	LabelURL       string `json:"label_url"`
	Status         string `json:"status"`
}

type TrackingEvent struct {
	Status      string    `json:"status"`
	Description string    `json:"description,omitempty"`
	At          time.Time `json:"at"`
}

// Carrier is the contract the engine requires of the shipping provider.
// The concrete SDK lives outside this module.
type Carrier interface {
	CreateShipmentRates(ctx context.Context, from, to catalog.Address, parcel Parcel) ([]Rate, error)
	PurchaseLabel(ctx context.Context, rateID string) (Label, error)
	TrackShipment(ctx context.Context, carrier, trackingNumber string) (status string, history []TrackingEvent, err error)
}

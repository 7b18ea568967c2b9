package shipping

import (
	"errors"
	"time"
)

var (
	ErrParcelNotFound  = errors.New("parcel not found")
	ErrAlreadyLabeled  = errors.New("parcel already has a purchased label")
	ErrItemLocked      = errors.New("item belongs to a labeled parcel")
	ErrNoItems         = errors.New("parcel has no items assigned")
	ErrNoPackage       = errors.New("parcel has no package selected")
	ErrMissingAddress  = errors.New("missing origin or destination address")
	ErrCarrier         = errors.New("carrier error")
	ErrUnknownPreset   = errors.New("unknown package preset")
	ErrPackageNotFound = errors.New("saved package not found")
)

// Parcel is a physical package holding a subset of one order's items. Each
// parcel is rated, purchased and tracked independently. Once a label is
// purchased the parcel is terminal: it cannot be repackaged or re-rated.
type Parcel struct {
	ID      string `json:"id"`
	OrderID string `json:"order_id"`

	// Package dimensions in inches, weight in pounds. Zero weight means no
	// package has been selected yet.
	Kind   string  `json:"kind,omitempty"` // preset id, "custom", or "saved"
	Length float64 `json:"length"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
	Weight float64 `json:"weight"`

	// Set at label purchase.
	Carrier        string `json:"carrier,omitempty"`
	Service        string `json:"service,omitempty"`
	RateID         string `json:"rate_id,omitempty"`
	RateCents      int    `json:"rate_cents,omitempty"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	LabelURL       string `json:"label_url,omitempty"`

	ItemIDs   []string  `json:"item_ids"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

func (p Parcel) Labeled() bool    { return p.TrackingNumber != "" }
func (p Parcel) HasPackage() bool { return p.Weight > 0 }

func (p Parcel) State() string {
	switch {
	case p.Labeled():
		return "labeled"
	case p.HasPackage():
		return "package_selected"
	default:
		return "items_assigned"
	}
}

// SavedPackage is a seller-scoped reusable package template.
type SavedPackage struct {
	ID        string    `json:"id"`
	SellerID  string    `json:"seller_id"`
	Name      string    `json:"name"`
	Length    float64   `json:"length"`
	Width     float64   `json:"width"`
	Height    float64   `json:"height"`
	Weight    float64   `json:"weight"`
	CreatedAt time.Time `json:"created_at"`
}

package catalog

import "time"

type Product struct {
	ID         string    `json:"id"`
	SellerID   string    `json:"seller_id"`
	Name       string    `json:"name"`
	ImageURL   string    `json:"image_url"`
	PriceCents int       `json:"price_cents"`
	Stock      int       `json:"stock"`
	Weight     float64   `json:"weight"`
	WeightUnit string    `json:"weight_unit"` // oz | g | kg | lb
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

type Variant struct {
	ID         string  `json:"id"`
	ProductID  string  `json:"product_id"`
	Name       string  `json:"name"`
	PriceCents int     `json:"price_cents"`
	Stock      int     `json:"stock"`
	Weight     float64 `json:"weight"`
	WeightUnit string  `json:"weight_unit"`
}

// Snapshot is the per-line pricing data frozen onto an order at checkout.
// Prices always come from here, never from the client.
type Snapshot struct {
	ProductID  string
	VariantID  string
	Name       string
	ImageURL   string
	PriceCents int
	Weight     float64
	WeightUnit string
}

type Address struct {
	Name       string `json:"name"`
	Line1      string `json:"line1"`
	Line2      string `json:"line2,omitempty"`
	City       string `json:"city"`
	State      string `json:"state"`
	PostalCode string `json:"postal_code"`
	Country    string `json:"country"`
}

func (a Address) Complete() bool {
	return a.Line1 != "" && a.City != "" && a.State != "" && a.PostalCode != "" && a.Country != ""
}

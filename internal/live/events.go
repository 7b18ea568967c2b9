package live

import (
	"encoding/json"
	"time"
)

// Event types pushed to connected clients. The state behind each event is
// already persisted; the push is advisory.
const (
	EventReservationExpired = "ReservationExpired"
	EventCartUpdated        = "CartUpdated"
	EventOrderPaid          = "OrderPaid"
	EventLabelPurchased     = "LabelPurchased"
	EventOrderShipped       = "OrderShipped"
)

type Envelope struct {
	EventID       string          `json:"event_id"`
	EventType     string          `json:"event_type"`
	EventVersion  int             `json:"event_version"`
	OccurredAt    time.Time       `json:"occurred_at"`
	Producer      string          `json:"producer"`
	TraceID       string          `json:"trace_id,omitempty"`
	CorrelationID string          `json:"correlation_id,omitempty"`
	UserID        string          `json:"user_id"` // fan-out target
	Payload       json.RawMessage `json:"payload"`
}

// ---- payload types per event ----

type ReservationExpiredPayload struct {
	ReservationID string `json:"reservation_id"`
	ProductID     string `json:"product_id"`
	VariantID     string `json:"variant_id,omitempty"`
	ShowID        string `json:"show_id,omitempty"`
	Qty           int    `json:"qty"`
}

type CartUpdatedPayload struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Qty       int    `json:"qty"`
	Available int    `json:"available"`
}

type OrderPaidPayload struct {
	OrderID    string `json:"order_id"`
	TotalCents int    `json:"total_cents"`
}

type LabelPurchasedPayload struct {
	OrderID        string `json:"order_id"`
	ParcelID       string `json:"parcel_id"`
	TrackingNumber string `json:"tracking_number"`
	Carrier        string `json:"carrier"`
}

type OrderShippedPayload struct {
	OrderID string `json:"order_id"`
}

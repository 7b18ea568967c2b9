package checkout

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/shopspring/decimal"

	"github.com/jatango/liveshop/internal/catalog"
	"github.com/jatango/liveshop/internal/kafka"
	"github.com/jatango/liveshop/internal/live"
	"github.com/jatango/liveshop/internal/orders"
	"github.com/jatango/liveshop/internal/redisx"
	"github.com/jatango/liveshop/internal/reservation"
)

var (
	ErrMissingFields       = errors.New("missing required checkout fields")
	ErrBelowMinimum        = errors.New("order total below chargeable minimum")
	ErrPaymentNotSucceeded = errors.New("payment has not succeeded")
	ErrProvider            = errors.New("payment provider error")
)

type Item struct {
	ProductID string `json:"product_id"`
	VariantID string `json:"variant_id,omitempty"`
	Qty       int    `json:"qty"`
}

type IntentRequest struct {
	BuyerID       string `json:"buyer_id"`
	Items         []Item `json:"items"`
	ShippingCents int    `json:"shipping_cents"`
}

type IntentResult struct {
	IntentID     string `json:"intent_id"`
	ClientSecret string `json:"client_secret"`
	TotalCents   int    `json:"total_cents"`
}

type ConfirmRequest struct {
	BuyerID       string          `json:"buyer_id"`
	ShowID        string          `json:"show_id,omitempty"`
	IntentID      string          `json:"payment_intent_id,omitempty"`
	MethodID      string          `json:"payment_method_id,omitempty"`
	Items         []Item          `json:"items"`
	ShippingCents int             `json:"shipping_cents"`
	ShipTo        catalog.Address `json:"shipping_address"`
}

type ConfirmResult struct {
	OrderID    string        `json:"order_id"`
	Status     orders.Status `json:"status"`
	TotalCents int           `json:"total_amount"`
	Idempotent bool          `json:"idempotent"`
}

type orderStore interface {
	CreateIfAbsent(ctx context.Context, o orders.Order) (orders.Order, bool, error)
	Get(ctx context.Context, orderID string) (orders.Order, error)
}

type stockStore interface {
	Snapshots(ctx context.Context, keys []catalog.ItemKey) (map[catalog.ItemKey]catalog.Snapshot, error)
	DecrementStock(ctx context.Context, key catalog.ItemKey, qty int) (bool, error)
}

type holdStore interface {
	ReleaseForBuyer(ctx context.Context, buyerID, showID string, items []reservation.HeldItem) error
}

type publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Orchestrator drives a checkout attempt from payment verification through
// order materialization, stock decrement and cart clearing. The payment
// intent id is the idempotency anchor for the whole sequence.
type Orchestrator struct {
	Orders      orderStore
	Catalog     stockStore
	Holds       holdStore
	Provider    PaymentProvider
	Producer    publisher
	Redis       *redis.Client
	TaxRate     decimal.Decimal
	MinCents    int
	ServiceName string
}

// CreateIntent computes the chargeable total server-side and registers the
// intent with the provider. The client never supplies an amount.
func (c *Orchestrator) CreateIntent(ctx context.Context, req IntentRequest) (IntentResult, error) {
	if req.BuyerID == "" || len(req.Items) == 0 {
		return IntentResult{}, ErrMissingFields
	}
	_, _, _, total, err := c.price(ctx, req.Items, req.ShippingCents)
	if err != nil {
		return IntentResult{}, err
	}
	if total < c.MinCents {
		return IntentResult{}, fmt.Errorf("%w: %d < %d", ErrBelowMinimum, total, c.MinCents)
	}
	intentID, secret, err := c.Provider.CreateIntent(ctx, total, req.BuyerID)
	if err != nil {
		return IntentResult{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	return IntentResult{IntentID: intentID, ClientSecret: secret, TotalCents: total}, nil
}

// Confirm runs the checkout state machine:
//
//	payment succeeded -> order materialized -> stock decremented -> cart cleared
//
// A non-succeeded payment stops everything before any order exists. Once the
// payment has succeeded the customer-facing result is success no matter what:
// bookkeeping failures after that point are logged for reconciliation, never
// rolled back and never surfaced as a checkout failure.
func (c *Orchestrator) Confirm(ctx context.Context, req ConfirmRequest) (ConfirmResult, error) {
	if req.BuyerID == "" || len(req.Items) == 0 || (req.IntentID == "" && req.MethodID == "") {
		return ConfirmResult{}, ErrMissingFields
	}
	if !req.ShipTo.Complete() {
		return ConfirmResult{}, fmt.Errorf("%w: shipping address", ErrMissingFields)
	}

	// Retry fast path: the idempotency key points at the order already
	// materialized for this intent, skipping the provider round trip. A miss
	// or a stale pointer falls through to the full path, where the unique
	// index on the intent id still collapses duplicates.
	if c.Redis != nil && req.IntentID != "" {
		if id, err := c.Redis.Get(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, req.IntentID)).Result(); err == nil && id != "" {
			if o, err := c.Orders.Get(ctx, id); err == nil {
				return ConfirmResult{OrderID: o.ID, Status: o.Status, TotalCents: o.TotalCents, Idempotent: true}, nil
			}
		}
	}

	items, subtotal, tax, total, err := c.price(ctx, req.Items, req.ShippingCents)
	if err != nil {
		return ConfirmResult{}, err
	}
	if total < c.MinCents {
		return ConfirmResult{}, fmt.Errorf("%w: %d < %d", ErrBelowMinimum, total, c.MinCents)
	}

	intentID := req.IntentID
	var status PaymentStatus
	if req.MethodID != "" {
		intentID, status, err = c.Provider.ChargeSavedMethod(ctx, total, req.BuyerID, req.MethodID)
	} else {
		status, err = c.Provider.RetrieveIntent(ctx, intentID)
	}
	if err != nil {
		return ConfirmResult{}, fmt.Errorf("%w: %v", ErrProvider, err)
	}
	if status != StatusSucceeded {
		return ConfirmResult{}, fmt.Errorf("%w: status %q", ErrPaymentNotSucceeded, status)
	}

	order := orders.Order{
		PaymentIntentID: intentID,
		BuyerID:         req.BuyerID,
		ShowID:          req.ShowID,
		SubtotalCents:   subtotal,
		TaxCents:        tax,
		ShippingCents:   req.ShippingCents,
		TotalCents:      total,
		ShipTo:          req.ShipTo,
		Items:           items,
	}

	created, existed, err := c.Orders.CreateIfAbsent(ctx, order)
	if err != nil {
		// Payment already captured; the caller must retry with the same
		// intent id rather than treat the charge as lost.
		return ConfirmResult{}, fmt.Errorf("materialize order for intent %s: %w", intentID, err)
	}
	if existed {
		// Client retry or concurrent duplicate confirm: the first attempt
		// already decremented stock and cleared the cart.
		return ConfirmResult{OrderID: created.ID, Status: created.Status, TotalCents: created.TotalCents, Idempotent: true}, nil
	}

	c.settleInventory(ctx, created)
	c.cache(ctx, created)
	c.notifyPaid(created)

	return ConfirmResult{OrderID: created.ID, Status: created.Status, TotalCents: created.TotalCents}, nil
}

// price resolves unit prices from the catalog and computes
// subtotal + tax + shipping. Client-submitted totals are never consulted.
func (c *Orchestrator) price(ctx context.Context, reqItems []Item, shippingCents int) (items []orders.OrderItem, subtotal, tax, total int, err error) {
	keys := make([]catalog.ItemKey, 0, len(reqItems))
	for _, it := range reqItems {
		if it.Qty <= 0 {
			return nil, 0, 0, 0, fmt.Errorf("%w: invalid qty for product %s", ErrMissingFields, it.ProductID)
		}
		keys = append(keys, catalog.ItemKey{ProductID: it.ProductID, VariantID: it.VariantID})
	}

	snaps, err := c.Catalog.Snapshots(ctx, keys)
	if err != nil {
		return nil, 0, 0, 0, err
	}

	for i, it := range reqItems {
		s := snaps[keys[i]]
		subtotal += s.PriceCents * it.Qty
		items = append(items, orders.OrderItem{
			ProductID:      s.ProductID,
			VariantID:      s.VariantID,
			Name:           s.Name,
			ImageURL:       s.ImageURL,
			UnitPriceCents: s.PriceCents,
			Qty:            it.Qty,
			Weight:         s.Weight,
			WeightUnit:     s.WeightUnit,
		})
	}

	tax = int(decimal.NewFromInt(int64(subtotal)).Mul(c.TaxRate).Round(0).IntPart())
	total = subtotal + tax + shippingCents
	return items, subtotal, tax, total, nil
}

// settleInventory decrements raw stock per line and clears the buyer's holds.
// Runs after the charge, so failures are reconciliation work, not checkout
// failures.
func (c *Orchestrator) settleInventory(ctx context.Context, o orders.Order) {
	held := make([]reservation.HeldItem, 0, len(o.Items))
	for _, it := range o.Items {
		held = append(held, reservation.HeldItem{ProductID: it.ProductID, VariantID: it.VariantID})
		clamped, err := c.Catalog.DecrementStock(ctx, catalog.ItemKey{ProductID: it.ProductID, VariantID: it.VariantID}, it.Qty)
		if err != nil {
			log.Printf("reconcile: order %s stock decrement failed for product %s: %v", o.ID, it.ProductID, err)
			continue
		}
		if clamped {
			log.Printf("reconcile: order %s oversold product %s (qty %d exceeded stock)", o.ID, it.ProductID, it.Qty)
		}
	}
	// Clear only the purchased (product, variant) pairs in this show; the
	// buyer's other holds keep their scarcity claims.
	if err := c.Holds.ReleaseForBuyer(ctx, o.BuyerID, o.ShowID, held); err != nil {
		log.Printf("reconcile: order %s cart clear failed for buyer %s: %v", o.ID, o.BuyerID, err)
	}
}

func (c *Orchestrator) cache(ctx context.Context, o orders.Order) {
	if c.Redis == nil {
		return
	}
	_ = c.Redis.Set(ctx, fmt.Sprintf(redisx.KeyIdemCheckout, o.PaymentIntentID), o.ID, redisx.TTLIdempotency).Err()
	_ = c.Redis.Set(ctx, fmt.Sprintf(redisx.KeyOrderStatus, o.ID), fmt.Sprintf(`{"status":%q}`, o.Status), redisx.TTLStatusCache).Err()
}

func (c *Orchestrator) notifyPaid(o orders.Order) {
	if c.Producer == nil {
		return
	}
	ev := live.Envelope{
		EventID:       uuid.NewString(),
		EventType:     live.EventOrderPaid,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      c.ServiceName,
		CorrelationID: o.ID,
		UserID:        o.BuyerID,
		Payload:       kafka.MustMarshal(live.OrderPaidPayload{OrderID: o.ID, TotalCents: o.TotalCents}),
	}
	c.Producer.Publish(live.PartitionKey(o.BuyerID), kafka.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(live.EventOrderPaid)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

package shipping

import (
	"context"
	"fmt"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jatango/liveshop/internal/catalog"
)

// DevCarrier quotes and labels shipments without a real carrier account.
// Rates are deterministic in the parcel's weight so tests and local runs get
// stable numbers.
type DevCarrier struct {
	mu     sync.Mutex
	quotes map[string]Rate // rate id -> quote, consumed at purchase
}

func NewDevCarrier() *DevCarrier {
	return &DevCarrier{quotes: make(map[string]Rate)}
}

func (c *DevCarrier) CreateShipmentRates(_ context.Context, _, _ catalog.Address, p Parcel) ([]Rate, error) {
	base := 500 + int(math.Ceil(p.Weight)*120)
	rates := []Rate{
		{ID: c.quote("usps", "GroundAdvantage", base, 5), Carrier: "USPS", Service: "GroundAdvantage", AmountCents: base, DeliveryDays: 5},
		{ID: c.quote("usps", "Priority", base+340, 2), Carrier: "USPS", Service: "Priority", AmountCents: base + 340, DeliveryDays: 2},
		{ID: c.quote("ups", "Ground", base+180, 4), Carrier: "UPS", Service: "Ground", AmountCents: base + 180, DeliveryDays: 4},
	}
	return rates, nil
}

func (c *DevCarrier) quote(carrier, service string, cents, days int) string {
	id := "rate_dev_" + uuid.NewString()
	c.mu.Lock()
	c.quotes[id] = Rate{ID: id, Carrier: strings.ToUpper(carrier), Service: service, AmountCents: cents, DeliveryDays: days}
	c.mu.Unlock()
	return id
}

func (c *DevCarrier) PurchaseLabel(_ context.Context, rateID string) (Label, error) {
	c.mu.Lock()
	_, ok := c.quotes[rateID]
	delete(c.quotes, rateID)
	c.mu.Unlock()
	if !ok {
		return Label{}, fmt.Errorf("unknown or expired rate %s", rateID)
	}
	tracking := "DEV" + strings.ToUpper(strings.ReplaceAll(uuid.NewString(), "-", ""))[:16]
	return Label{
		TrackingNumber: tracking,
		LabelURL:       "https://labels.dev.invalid/" + tracking + ".pdf",
		Status:         "purchased",
	}, nil
}

func (c *DevCarrier) TrackShipment(_ context.Context, _, tracking string) (string, []TrackingEvent, error) {
	now := time.Now().UTC()
	return "in_transit", []TrackingEvent{
		{Status: "pre_transit", Description: "Label created", At: now.Add(-48 * time.Hour)},
		{Status: "in_transit", Description: "Departed origin facility", At: now.Add(-24 * time.Hour)},
	}, nil
}

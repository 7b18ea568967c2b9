package shipping

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/jatango/liveshop/internal/catalog"
	"github.com/jatango/liveshop/internal/kafka"
	"github.com/jatango/liveshop/internal/live"
	"github.com/jatango/liveshop/internal/orders"
)

type parcelStore interface {
	CreateParcel(ctx context.Context, orderID string) (Parcel, error)
	GetParcel(ctx context.Context, parcelID string) (Parcel, error)
	ListByOrder(ctx context.Context, orderID string) ([]Parcel, error)
	AssignItem(ctx context.Context, parcelID, orderItemID string) error
	ItemParcel(ctx context.Context, orderItemID string) (string, error)
	ParcelItems(ctx context.Context, parcelID string) ([]orders.OrderItem, error)
	SetPackage(ctx context.Context, parcelID, kind string, length, width, height, weight float64) error
	MarkLabeled(ctx context.Context, parcelID string, rate Rate, label Label) error
	UnlabeledItemParcels(ctx context.Context, orderID string) (unlabeled, labeled int, err error)
	GetSavedPackage(ctx context.Context, id string) (SavedPackage, error)
}

type orderStore interface {
	Get(ctx context.Context, orderID string) (orders.Order, error)
	UpdateStatus(ctx context.Context, orderID string, to orders.Status) error
}

type addressSource interface {
	GetSellerAddress(ctx context.Context, sellerID string) (catalog.Address, error)
}

type publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Planner partitions an order's items into parcels and walks each parcel
// through package selection, rating and label purchase. Parcels complete
// independently; the order flips to shipped only when every item-bearing
// parcel carries a label.
type Planner struct {
	Parcels     parcelStore
	Orders      orderStore
	Sellers     addressSource
	Carrier     Carrier
	Producer    publisher
	ServiceName string
}

// CreateParcel opens a new parcel on an order and optionally assigns items
// to it in the same call.
func (pl *Planner) CreateParcel(ctx context.Context, orderID string, itemIDs []string) (Parcel, error) {
	order, err := pl.Orders.Get(ctx, orderID)
	if err != nil {
		return Parcel{}, err
	}

	p, err := pl.Parcels.CreateParcel(ctx, order.ID)
	if err != nil {
		return Parcel{}, err
	}
	if len(itemIDs) > 0 {
		if err := pl.AssignItems(ctx, p.ID, itemIDs); err != nil {
			return Parcel{}, err
		}
	}
	return pl.Parcels.GetParcel(ctx, p.ID)
}

// AssignItems moves items into a parcel. An item held by a labeled parcel is
// frozen; otherwise assignment is last-writer-wins and implicitly unassigns
// the item from whichever open parcel held it before.
func (pl *Planner) AssignItems(ctx context.Context, parcelID string, itemIDs []string) error {
	target, err := pl.Parcels.GetParcel(ctx, parcelID)
	if err != nil {
		return err
	}
	if target.Labeled() {
		return ErrAlreadyLabeled
	}

	for _, itemID := range itemIDs {
		currentID, err := pl.Parcels.ItemParcel(ctx, itemID)
		if err != nil {
			return err
		}
		if currentID != "" && currentID != parcelID {
			current, err := pl.Parcels.GetParcel(ctx, currentID)
			if err != nil {
				return err
			}
			if current.Labeled() {
				return fmt.Errorf("%w: item %s", ErrItemLocked, itemID)
			}
		}
		if err := pl.Parcels.AssignItem(ctx, parcelID, itemID); err != nil {
			return err
		}
	}
	return nil
}

// PackageSelection picks dimensions from a preset, a saved template, or a
// custom entry. WeightLbs overrides the default computed from item weights.
type PackageSelection struct {
	PresetID       string  `json:"preset_id,omitempty"`
	SavedPackageID string  `json:"saved_package_id,omitempty"`
	Length         float64 `json:"length,omitempty"`
	Width          float64 `json:"width,omitempty"`
	Height         float64 `json:"height,omitempty"`
	WeightLbs      float64 `json:"weight_lbs,omitempty"`
}

func (pl *Planner) SelectPackage(ctx context.Context, parcelID string, sel PackageSelection) (Parcel, error) {
	p, err := pl.Parcels.GetParcel(ctx, parcelID)
	if err != nil {
		return Parcel{}, err
	}
	if p.Labeled() {
		return Parcel{}, ErrAlreadyLabeled
	}

	var kind string
	var l, w, h float64
	switch {
	case sel.PresetID != "":
		preset, ok := PresetByID(sel.PresetID)
		if !ok {
			return Parcel{}, fmt.Errorf("%w: %s", ErrUnknownPreset, sel.PresetID)
		}
		kind, l, w, h = preset.ID, preset.Length, preset.Width, preset.Height
	case sel.SavedPackageID != "":
		sp, err := pl.Parcels.GetSavedPackage(ctx, sel.SavedPackageID)
		if err != nil {
			return Parcel{}, err
		}
		kind, l, w, h = "saved", sp.Length, sp.Width, sp.Height
		if sel.WeightLbs == 0 {
			sel.WeightLbs = sp.Weight
		}
	case sel.Length > 0 && sel.Width > 0 && sel.Height > 0:
		kind, l, w, h = "custom", sel.Length, sel.Width, sel.Height
	default:
		return Parcel{}, ErrNoPackage
	}

	weight := sel.WeightLbs
	if weight <= 0 {
		items, err := pl.Parcels.ParcelItems(ctx, parcelID)
		if err != nil {
			return Parcel{}, err
		}
		weight = DefaultWeight(items)
	}

	if err := pl.Parcels.SetPackage(ctx, parcelID, kind, l, w, h, weight); err != nil {
		return Parcel{}, err
	}
	return pl.Parcels.GetParcel(ctx, parcelID)
}

// FetchRates quotes the parcel between the seller's store address and the
// order's shipping address. Quotes are filtered to the cheapest rate's
// carrier family for consistency, sorted by price, cheapest flagged as the
// pre-selected default. Failures leave the parcel untouched for retry.
func (pl *Planner) FetchRates(ctx context.Context, sellerID, parcelID string) ([]Rate, error) {
	p, err := pl.Parcels.GetParcel(ctx, parcelID)
	if err != nil {
		return nil, err
	}
	if p.Labeled() {
		return nil, ErrAlreadyLabeled
	}
	if len(p.ItemIDs) == 0 {
		return nil, ErrNoItems
	}
	if !p.HasPackage() {
		return nil, ErrNoPackage
	}

	from, err := pl.Sellers.GetSellerAddress(ctx, sellerID)
	if err != nil {
		return nil, err
	}
	order, err := pl.Orders.Get(ctx, p.OrderID)
	if err != nil {
		return nil, err
	}
	if !from.Complete() || !order.ShipTo.Complete() {
		return nil, ErrMissingAddress
	}

	rates, err := pl.Carrier.CreateShipmentRates(ctx, from, order.ShipTo, p)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCarrier, err)
	}
	if len(rates) == 0 {
		return nil, fmt.Errorf("%w: no rates returned", ErrCarrier)
	}

	sort.Slice(rates, func(i, j int) bool { return rates[i].AmountCents < rates[j].AmountCents })
	family := rates[0].Carrier
	out := rates[:0]
	for _, r := range rates {
		if r.Carrier == family {
			out = append(out, r)
		}
	}
	out[0].Default = true
	return out, nil
}

// PurchaseLabel buys the selected rate. Purchasing is one-way: once a parcel
// has a tracking number it is terminal, and a repeat purchase for the same
// parcel returns the existing label instead of buying a second one.
func (pl *Planner) PurchaseLabel(ctx context.Context, parcelID string, rate Rate) (Parcel, error) {
	p, err := pl.Parcels.GetParcel(ctx, parcelID)
	if err != nil {
		return Parcel{}, err
	}
	if p.Labeled() {
		return p, nil
	}
	if !p.HasPackage() {
		return Parcel{}, ErrNoPackage
	}
	if len(p.ItemIDs) == 0 {
		return Parcel{}, ErrNoItems
	}

	label, err := pl.Carrier.PurchaseLabel(ctx, rate.ID)
	if err != nil {
		return Parcel{}, fmt.Errorf("%w: %v", ErrCarrier, err)
	}

	if err := pl.Parcels.MarkLabeled(ctx, parcelID, rate, label); err != nil {
		if errors.Is(err, ErrAlreadyLabeled) {
			// Lost a race with another purchase of the same parcel; the
			// stored label wins.
			return pl.Parcels.GetParcel(ctx, parcelID)
		}
		return Parcel{}, err
	}

	order, err := pl.Orders.Get(ctx, p.OrderID)
	if err == nil {
		pl.notifyLabeled(order, parcelID, rate, label)
		pl.deriveOrderStatus(ctx, order)
	} else {
		log.Printf("reconcile: parcel %s labeled but order %s fetch failed: %v", parcelID, p.OrderID, err)
	}

	return pl.Parcels.GetParcel(ctx, parcelID)
}

// Track reads through to the carrier for the parcel's shipment status.
func (pl *Planner) Track(ctx context.Context, parcelID string) (string, []TrackingEvent, error) {
	p, err := pl.Parcels.GetParcel(ctx, parcelID)
	if err != nil {
		return "", nil, err
	}
	if !p.Labeled() {
		return "", nil, fmt.Errorf("%w: no label purchased", ErrNoPackage)
	}
	status, history, err := pl.Carrier.TrackShipment(ctx, p.Carrier, p.TrackingNumber)
	if err != nil {
		return "", nil, fmt.Errorf("%w: %v", ErrCarrier, err)
	}
	return status, history, nil
}

// deriveOrderStatus flips the order to shipped once no item-bearing parcel
// remains unlabeled. Status derivation failures never fail the purchase that
// triggered them.
func (pl *Planner) deriveOrderStatus(ctx context.Context, order orders.Order) {
	unlabeled, labeled, err := pl.Parcels.UnlabeledItemParcels(ctx, order.ID)
	if err != nil {
		log.Printf("reconcile: order %s status derivation failed: %v", order.ID, err)
		return
	}
	if unlabeled > 0 || labeled == 0 {
		return
	}
	if err := pl.Orders.UpdateStatus(ctx, order.ID, orders.StatusShipped); err != nil {
		if !errors.Is(err, orders.ErrBadTransition) {
			log.Printf("reconcile: order %s -> shipped failed: %v", order.ID, err)
		}
		return
	}
	pl.notifyShipped(order)
}

func (pl *Planner) notifyLabeled(order orders.Order, parcelID string, rate Rate, label Label) {
	if pl.Producer == nil {
		return
	}
	pl.emit(order.BuyerID, order.ID, live.EventLabelPurchased, live.LabelPurchasedPayload{
		OrderID:        order.ID,
		ParcelID:       parcelID,
		TrackingNumber: label.TrackingNumber,
		Carrier:        rate.Carrier,
	})
}

func (pl *Planner) notifyShipped(order orders.Order) {
	if pl.Producer == nil {
		return
	}
	pl.emit(order.BuyerID, order.ID, live.EventOrderShipped, live.OrderShippedPayload{OrderID: order.ID})
}

func (pl *Planner) emit(userID, correlationID, eventType string, payload any) {
	ev := live.Envelope{
		EventID:       uuid.NewString(),
		EventType:     eventType,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      pl.ServiceName,
		CorrelationID: correlationID,
		UserID:        userID,
		Payload:       kafka.MustMarshal(payload),
	}
	pl.Producer.Publish(live.PartitionKey(userID), kafka.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(eventType)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

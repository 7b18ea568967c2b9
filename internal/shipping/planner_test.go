package shipping

import (
	"context"
	"errors"
	"fmt"
	"testing"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jatango/liveshop/internal/catalog"
	"github.com/jatango/liveshop/internal/orders"
)

// memParcels is an in-memory parcelStore mirroring the repo's semantics:
// one parcel per item, upsert assignment, one-way labeling.
type memParcels struct {
	parcels map[string]*Parcel
	items   map[string]string // order item id -> parcel id
	itemRow map[string]orders.OrderItem
	saved   map[string]SavedPackage
	nextID  int
}

func newMemParcels() *memParcels {
	return &memParcels{
		parcels: make(map[string]*Parcel),
		items:   make(map[string]string),
		itemRow: make(map[string]orders.OrderItem),
		saved:   make(map[string]SavedPackage),
	}
}

func (m *memParcels) CreateParcel(_ context.Context, orderID string) (Parcel, error) {
	m.nextID++
	p := Parcel{ID: fmt.Sprintf("parcel-%d", m.nextID), OrderID: orderID}
	m.parcels[p.ID] = &p
	return p, nil
}

func (m *memParcels) GetParcel(_ context.Context, parcelID string) (Parcel, error) {
	p, ok := m.parcels[parcelID]
	if !ok {
		return Parcel{}, ErrParcelNotFound
	}
	out := *p
	out.ItemIDs = nil
	for itemID, pid := range m.items {
		if pid == parcelID {
			out.ItemIDs = append(out.ItemIDs, itemID)
		}
	}
	return out, nil
}

func (m *memParcels) ListByOrder(_ context.Context, orderID string) ([]Parcel, error) {
	var out []Parcel
	for id, p := range m.parcels {
		if p.OrderID == orderID {
			got, _ := m.GetParcel(context.Background(), id)
			out = append(out, got)
		}
	}
	return out, nil
}

func (m *memParcels) AssignItem(_ context.Context, parcelID, orderItemID string) error {
	m.items[orderItemID] = parcelID
	return nil
}

func (m *memParcels) ItemParcel(_ context.Context, orderItemID string) (string, error) {
	return m.items[orderItemID], nil
}

func (m *memParcels) ParcelItems(_ context.Context, parcelID string) ([]orders.OrderItem, error) {
	var out []orders.OrderItem
	for itemID, pid := range m.items {
		if pid == parcelID {
			out = append(out, m.itemRow[itemID])
		}
	}
	return out, nil
}

func (m *memParcels) SetPackage(_ context.Context, parcelID, kind string, length, width, height, weight float64) error {
	p, ok := m.parcels[parcelID]
	if !ok {
		return ErrParcelNotFound
	}
	if p.TrackingNumber != "" {
		return ErrAlreadyLabeled
	}
	p.Kind, p.Length, p.Width, p.Height, p.Weight = kind, length, width, height, weight
	return nil
}

func (m *memParcels) MarkLabeled(_ context.Context, parcelID string, rate Rate, label Label) error {
	p, ok := m.parcels[parcelID]
	if !ok {
		return ErrParcelNotFound
	}
	if p.TrackingNumber != "" {
		return ErrAlreadyLabeled
	}
	p.Carrier, p.Service, p.RateID, p.RateCents = rate.Carrier, rate.Service, rate.ID, rate.AmountCents
	p.TrackingNumber, p.LabelURL = label.TrackingNumber, label.LabelURL
	return nil
}

func (m *memParcels) UnlabeledItemParcels(_ context.Context, orderID string) (int, int, error) {
	var unlabeled, labeled int
	for id, p := range m.parcels {
		if p.OrderID != orderID {
			continue
		}
		hasItems := false
		for _, pid := range m.items {
			if pid == id {
				hasItems = true
				break
			}
		}
		if !hasItems {
			continue
		}
		if p.TrackingNumber == "" {
			unlabeled++
		} else {
			labeled++
		}
	}
	return unlabeled, labeled, nil
}

func (m *memParcels) GetSavedPackage(_ context.Context, id string) (SavedPackage, error) {
	sp, ok := m.saved[id]
	if !ok {
		return SavedPackage{}, ErrPackageNotFound
	}
	return sp, nil
}

type memOrders struct {
	order    orders.Order
	statuses []orders.Status
}

func (m *memOrders) Get(_ context.Context, orderID string) (orders.Order, error) {
	if orderID != m.order.ID {
		return orders.Order{}, orders.ErrNotFound
	}
	return m.order, nil
}

func (m *memOrders) UpdateStatus(_ context.Context, _ string, to orders.Status) error {
	if !orders.CanTransition(m.order.Status, to) {
		return orders.ErrBadTransition
	}
	m.order.Status = to
	m.statuses = append(m.statuses, to)
	return nil
}

type memSellers struct{ addr catalog.Address }

func (m *memSellers) GetSellerAddress(_ context.Context, _ string) (catalog.Address, error) {
	return m.addr, nil
}

type stubCarrier struct {
	rates     []Rate
	ratesErr  error
	label     Label
	labelErr  error
	purchased []string
}

func (c *stubCarrier) CreateShipmentRates(_ context.Context, _, _ catalog.Address, _ Parcel) ([]Rate, error) {
	return c.rates, c.ratesErr
}

func (c *stubCarrier) PurchaseLabel(_ context.Context, rateID string) (Label, error) {
	c.purchased = append(c.purchased, rateID)
	return c.label, c.labelErr
}

func (c *stubCarrier) TrackShipment(_ context.Context, _, _ string) (string, []TrackingEvent, error) {
	return "in_transit", nil, nil
}

type nopPublisher struct{ n int }

func (p *nopPublisher) Publish(_, _ []byte, _ ...kafkago.Header) { p.n++ }

var sellerAddr = catalog.Address{
	Name: "Thrift Haus", Line1: "500 Commerce St", City: "Dallas", State: "TX", PostalCode: "75201", Country: "US",
}

func testPlanner() (*Planner, *memParcels, *memOrders, *stubCarrier, *nopPublisher) {
	parcels := newMemParcels()
	ord := &memOrders{order: orders.Order{
		ID:      "ord-1",
		BuyerID: "buyer-1",
		Status:  orders.StatusPaid,
		ShipTo: catalog.Address{
			Name: "Dana", Line1: "1 Main St", City: "Austin", State: "TX", PostalCode: "78701", Country: "US",
		},
	}}
	carrier := &stubCarrier{
		rates: []Rate{
			{ID: "r-ups", Carrier: "UPS", Service: "Ground", AmountCents: 780},
			{ID: "r-usps-pri", Carrier: "USPS", Service: "Priority", AmountCents: 940},
			{ID: "r-usps-ga", Carrier: "USPS", Service: "GroundAdvantage", AmountCents: 620},
		},
		label: Label{TrackingNumber: "TRACK123", LabelURL: "https://labels.example/TRACK123.pdf"},
	}
	pub := &nopPublisher{}
	pl := &Planner{
		Parcels:     parcels,
		Orders:      ord,
		Sellers:     &memSellers{addr: sellerAddr},
		Carrier:     carrier,
		Producer:    pub,
		ServiceName: "test-api",
	}
	return pl, parcels, ord, carrier, pub
}

func readyParcel(t *testing.T, pl *Planner, parcels *memParcels, itemIDs ...string) Parcel {
	t.Helper()
	for _, id := range itemIDs {
		parcels.itemRow[id] = orders.OrderItem{ID: id, Weight: 8, WeightUnit: "oz", Qty: 1}
	}
	p, err := pl.CreateParcel(context.Background(), "ord-1", itemIDs)
	require.NoError(t, err)
	p, err = pl.SelectPackage(context.Background(), p.ID, PackageSelection{PresetID: "small_box"})
	require.NoError(t, err)
	return p
}

func TestCreateParcel_UnknownOrder(t *testing.T) {
	pl, _, _, _, _ := testPlanner()
	_, err := pl.CreateParcel(context.Background(), "ghost", nil)
	assert.ErrorIs(t, err, orders.ErrNotFound)
}

func TestAssignItems_ReassignBetweenOpenParcels(t *testing.T) {
	pl, parcels, _, _, _ := testPlanner()
	a, err := pl.CreateParcel(context.Background(), "ord-1", []string{"item-1", "item-2"})
	require.NoError(t, err)
	b, err := pl.CreateParcel(context.Background(), "ord-1", nil)
	require.NoError(t, err)

	// Last writer wins: item-2 moves from a to b.
	require.NoError(t, pl.AssignItems(context.Background(), b.ID, []string{"item-2"}))

	a, _ = parcels.GetParcel(context.Background(), a.ID)
	b, _ = parcels.GetParcel(context.Background(), b.ID)
	assert.ElementsMatch(t, []string{"item-1"}, a.ItemIDs)
	assert.ElementsMatch(t, []string{"item-2"}, b.ItemIDs)
}

func TestAssignItems_LockedOnceLabeled(t *testing.T) {
	pl, parcels, _, _, _ := testPlanner()
	p := readyParcel(t, pl, parcels, "item-1")
	_, err := pl.PurchaseLabel(context.Background(), p.ID, Rate{ID: "r-usps-ga", Carrier: "USPS", Service: "GroundAdvantage", AmountCents: 620})
	require.NoError(t, err)

	// Items cannot be pulled out of a labeled parcel.
	other, err := pl.CreateParcel(context.Background(), "ord-1", nil)
	require.NoError(t, err)
	err = pl.AssignItems(context.Background(), other.ID, []string{"item-1"})
	assert.ErrorIs(t, err, ErrItemLocked)

	// Nor can new items be pushed into one.
	err = pl.AssignItems(context.Background(), p.ID, []string{"item-9"})
	assert.ErrorIs(t, err, ErrAlreadyLabeled)
}

func TestSelectPackage_Preset(t *testing.T) {
	pl, parcels, _, _, _ := testPlanner()
	parcels.itemRow["item-1"] = orders.OrderItem{ID: "item-1", Weight: 8, WeightUnit: "oz", Qty: 2}
	p, err := pl.CreateParcel(context.Background(), "ord-1", []string{"item-1"})
	require.NoError(t, err)

	p, err = pl.SelectPackage(context.Background(), p.ID, PackageSelection{PresetID: "medium_box"})
	require.NoError(t, err)
	assert.Equal(t, "medium_box", p.Kind)
	assert.Equal(t, 11.25, p.Length)
	assert.InDelta(t, 1.0, p.Weight, 1e-9) // 2 x 8oz default
	assert.Equal(t, "package_selected", p.State())
}

func TestSelectPackage_SavedTemplate(t *testing.T) {
	pl, parcels, _, _, _ := testPlanner()
	parcels.saved["sp-1"] = SavedPackage{ID: "sp-1", SellerID: "seller-1", Name: "Shoe Box", Length: 13, Width: 8, Height: 5, Weight: 2.5}
	p, err := pl.CreateParcel(context.Background(), "ord-1", nil)
	require.NoError(t, err)

	p, err = pl.SelectPackage(context.Background(), p.ID, PackageSelection{SavedPackageID: "sp-1"})
	require.NoError(t, err)
	assert.Equal(t, "saved", p.Kind)
	assert.Equal(t, 13.0, p.Length)
	assert.Equal(t, 2.5, p.Weight)
}

func TestSelectPackage_Errors(t *testing.T) {
	pl, _, _, _, _ := testPlanner()
	p, err := pl.CreateParcel(context.Background(), "ord-1", nil)
	require.NoError(t, err)

	_, err = pl.SelectPackage(context.Background(), p.ID, PackageSelection{PresetID: "giant_crate"})
	assert.ErrorIs(t, err, ErrUnknownPreset)

	_, err = pl.SelectPackage(context.Background(), p.ID, PackageSelection{})
	assert.ErrorIs(t, err, ErrNoPackage)
}

func TestFetchRates_SortedAndFilteredToCheapestFamily(t *testing.T) {
	pl, parcels, _, _, _ := testPlanner()
	p := readyParcel(t, pl, parcels, "item-1")

	rates, err := pl.FetchRates(context.Background(), "seller-1", p.ID)
	require.NoError(t, err)

	// UPS is undercut by USPS GroundAdvantage, so only the USPS family stays.
	require.Len(t, rates, 2)
	assert.Equal(t, "r-usps-ga", rates[0].ID)
	assert.True(t, rates[0].Default)
	assert.Equal(t, "r-usps-pri", rates[1].ID)
	assert.False(t, rates[1].Default)
}

func TestFetchRates_Preconditions(t *testing.T) {
	pl, _, _, _, _ := testPlanner()

	empty, err := pl.CreateParcel(context.Background(), "ord-1", nil)
	require.NoError(t, err)
	_, err = pl.FetchRates(context.Background(), "seller-1", empty.ID)
	assert.ErrorIs(t, err, ErrNoItems)

	withItems, err := pl.CreateParcel(context.Background(), "ord-1", []string{"item-1"})
	require.NoError(t, err)
	_, err = pl.FetchRates(context.Background(), "seller-1", withItems.ID)
	assert.ErrorIs(t, err, ErrNoPackage)
}

func TestFetchRates_MissingSellerAddress(t *testing.T) {
	pl, parcels, _, _, _ := testPlanner()
	pl.Sellers = &memSellers{} // no address on file
	p := readyParcel(t, pl, parcels, "item-1")

	_, err := pl.FetchRates(context.Background(), "seller-1", p.ID)
	assert.ErrorIs(t, err, ErrMissingAddress)
}

func TestFetchRates_CarrierFailure(t *testing.T) {
	pl, parcels, _, carrier, _ := testPlanner()
	p := readyParcel(t, pl, parcels, "item-1")
	carrier.ratesErr = errors.New("shippo 503")

	_, err := pl.FetchRates(context.Background(), "seller-1", p.ID)
	assert.ErrorIs(t, err, ErrCarrier)
}

func TestPurchaseLabel_Idempotent(t *testing.T) {
	pl, parcels, _, carrier, _ := testPlanner()
	p := readyParcel(t, pl, parcels, "item-1")
	rate := Rate{ID: "r-usps-ga", Carrier: "USPS", Service: "GroundAdvantage", AmountCents: 620}

	first, err := pl.PurchaseLabel(context.Background(), p.ID, rate)
	require.NoError(t, err)
	assert.Equal(t, "TRACK123", first.TrackingNumber)
	assert.Equal(t, 620, first.RateCents)

	// Second purchase returns the stored label without touching the carrier.
	second, err := pl.PurchaseLabel(context.Background(), p.ID, rate)
	require.NoError(t, err)
	assert.Equal(t, first.TrackingNumber, second.TrackingNumber)
	assert.Len(t, carrier.purchased, 1)
}

func TestPurchaseLabel_DerivesShippedWhenAllParcelsLabeled(t *testing.T) {
	pl, parcels, ord, _, pub := testPlanner()
	for _, id := range []string{"item-1", "item-2", "item-3"} {
		parcels.itemRow[id] = orders.OrderItem{ID: id, Weight: 1, WeightUnit: "lb", Qty: 1}
	}
	a, err := pl.CreateParcel(context.Background(), "ord-1", []string{"item-1", "item-2"})
	require.NoError(t, err)
	b, err := pl.CreateParcel(context.Background(), "ord-1", []string{"item-3"})
	require.NoError(t, err)
	for _, id := range []string{a.ID, b.ID} {
		_, err := pl.SelectPackage(context.Background(), id, PackageSelection{PresetID: "small_box"})
		require.NoError(t, err)
	}
	rate := Rate{ID: "r-usps-ga", Carrier: "USPS", Service: "GroundAdvantage", AmountCents: 620}

	_, err = pl.PurchaseLabel(context.Background(), a.ID, rate)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusPaid, ord.order.Status, "one unlabeled parcel keeps the order paid")

	_, err = pl.PurchaseLabel(context.Background(), b.ID, rate)
	require.NoError(t, err)
	assert.Equal(t, orders.StatusShipped, ord.order.Status)

	// Two LabelPurchased events plus one OrderShipped.
	assert.Equal(t, 3, pub.n)
}

func TestPurchaseLabel_CarrierFailureLeavesParcelOpen(t *testing.T) {
	pl, parcels, _, carrier, _ := testPlanner()
	p := readyParcel(t, pl, parcels, "item-1")
	carrier.labelErr = errors.New("rate expired")

	_, err := pl.PurchaseLabel(context.Background(), p.ID, Rate{ID: "r-usps-ga", Carrier: "USPS"})
	assert.ErrorIs(t, err, ErrCarrier)

	got, err := parcels.GetParcel(context.Background(), p.ID)
	require.NoError(t, err)
	assert.False(t, got.Labeled())
}

func TestTrack_RequiresLabel(t *testing.T) {
	pl, parcels, _, _, _ := testPlanner()
	p := readyParcel(t, pl, parcels, "item-1")

	_, _, err := pl.Track(context.Background(), p.ID)
	assert.Error(t, err)

	_, err = pl.PurchaseLabel(context.Background(), p.ID, Rate{ID: "r-usps-ga", Carrier: "USPS"})
	require.NoError(t, err)

	status, _, err := pl.Track(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "in_transit", status)
}

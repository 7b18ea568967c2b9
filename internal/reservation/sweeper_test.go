package reservation

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jatango/liveshop/internal/kafka"
	"github.com/jatango/liveshop/internal/live"
)

type fakeDeleter struct {
	expired []ExpiredHold
	err     error
	gotNow  time.Time
}

func (f *fakeDeleter) DeleteExpired(_ context.Context, now time.Time) ([]ExpiredHold, error) {
	f.gotNow = now
	return f.expired, f.err
}

type fakePublisher struct {
	keys   []string
	values [][]byte
}

func (f *fakePublisher) Publish(key, value []byte, _ ...kafkago.Header) {
	f.keys = append(f.keys, string(key))
	f.values = append(f.values, value)
}

func TestSweep_NotifiesEachEvictedHold(t *testing.T) {
	deleter := &fakeDeleter{expired: []ExpiredHold{
		{ID: "r1", BuyerID: "buyer-a", ProductID: "p1", Qty: 2},
		{ID: "r2", BuyerID: "buyer-b", ProductID: "p2", VariantID: "v1", ShowID: "show-9", Qty: 1},
	}}
	pub := &fakePublisher{}
	s := &Sweeper{Store: deleter, Producer: pub, ServiceName: "test-sweeper"}

	now := time.Now().UTC()
	n, err := s.Sweep(context.Background(), now)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, now, deleter.gotNow)

	require.Len(t, pub.values, 2)
	assert.Equal(t, []string{"buyer-a", "buyer-b"}, pub.keys)

	var env live.Envelope
	require.NoError(t, json.Unmarshal(pub.values[1], &env))
	assert.Equal(t, live.EventReservationExpired, env.EventType)
	assert.Equal(t, "buyer-b", env.UserID)
	assert.Equal(t, "r2", env.CorrelationID)
	assert.Equal(t, "test-sweeper", env.Producer)

	payload, err := kafka.UnwrapPayload[live.ReservationExpiredPayload](env.Payload)
	require.NoError(t, err)
	assert.Equal(t, "r2", payload.ReservationID)
	assert.Equal(t, "v1", payload.VariantID)
	assert.Equal(t, 1, payload.Qty)
}

func TestSweep_NothingExpired(t *testing.T) {
	pub := &fakePublisher{}
	s := &Sweeper{Store: &fakeDeleter{}, Producer: pub}

	n, err := s.Sweep(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, pub.values)
}

func TestSweep_StoreError(t *testing.T) {
	boom := errors.New("db down")
	s := &Sweeper{Store: &fakeDeleter{err: boom}, Producer: &fakePublisher{}}

	_, err := s.Sweep(context.Background(), time.Now().UTC())
	assert.ErrorIs(t, err, boom)
}

func TestSweep_NoProducer(t *testing.T) {
	s := &Sweeper{Store: &fakeDeleter{expired: []ExpiredHold{{ID: "r1", BuyerID: "b"}}}}

	n, err := s.Sweep(context.Background(), time.Now().UTC())
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

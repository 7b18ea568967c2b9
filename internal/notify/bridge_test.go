package notify

import (
	"context"
	"fmt"
	"testing"

	"github.com/go-redis/redismock/v9"
	kafkago "github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jatango/liveshop/internal/kafka"
	"github.com/jatango/liveshop/internal/live"
	"github.com/jatango/liveshop/internal/redisx"
)

func bridgeMessage(env live.Envelope) kafkago.Message {
	return kafkago.Message{Key: []byte(env.UserID), Value: kafka.MustMarshal(env)}
}

func TestBridge_RoutesToSubscriber(t *testing.T) {
	reg := NewRegistry(4)
	defer reg.Close()
	rdb, mock := redismock.NewClientMock()
	b := &Bridge{Registry: reg, Redis: rdb, Consumer: "api-1"}

	ch, cancel := reg.Subscribe("buyer-1")
	defer cancel()

	env := live.Envelope{EventID: "e1", EventType: live.EventOrderPaid, UserID: "buyer-1"}
	dkey := fmt.Sprintf(redisx.KeyDedup, "api-1", "e1")
	mock.ExpectExists(dkey).SetVal(0)
	mock.ExpectSet(dkey, "1", redisx.TTLDedup).SetVal("OK")

	require.NoError(t, b.Handle(context.Background(), bridgeMessage(env)))

	select {
	case got := <-ch:
		assert.Equal(t, "e1", got.EventID)
	default:
		t.Fatal("event was not routed")
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBridge_DedupsRedeliveries(t *testing.T) {
	reg := NewRegistry(4)
	defer reg.Close()
	rdb, mock := redismock.NewClientMock()
	b := &Bridge{Registry: reg, Redis: rdb, Consumer: "api-1"}

	ch, cancel := reg.Subscribe("buyer-1")
	defer cancel()

	env := live.Envelope{EventID: "e1", UserID: "buyer-1"}
	dkey := fmt.Sprintf(redisx.KeyDedup, "api-1", "e1")
	mock.ExpectExists(dkey).SetVal(1)

	require.NoError(t, b.Handle(context.Background(), bridgeMessage(env)))

	select {
	case <-ch:
		t.Fatal("redelivered event was pushed twice")
	default:
	}
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestBridge_SkipsEventsWithoutTarget(t *testing.T) {
	reg := NewRegistry(4)
	defer reg.Close()
	b := &Bridge{Registry: reg, Consumer: "api-1"}

	require.NoError(t, b.Handle(context.Background(), bridgeMessage(live.Envelope{EventID: "e1"})))
}

func TestBridge_BadPayload(t *testing.T) {
	b := &Bridge{Registry: NewRegistry(4), Consumer: "api-1"}
	err := b.Handle(context.Background(), kafkago.Message{Value: []byte("not json")})
	assert.Error(t, err)
}

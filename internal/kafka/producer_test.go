package kafka

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestProducer_PublishAfterCloseIsDropped(t *testing.T) {
	p := NewProducer([]string{"127.0.0.1:9092"}, "events", 4)

	p.Close()
	p.Close() // idempotent

	// A worker that ticks during shutdown may still try to publish; the
	// message is dropped, not a panic on the closed inbox.
	assert.NotPanics(t, func() {
		p.Publish([]byte("buyer-1"), []byte(`{"event_type":"ReservationExpired"}`))
	})
}

package reservation

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/jatango/liveshop/internal/kafka"
	"github.com/jatango/liveshop/internal/live"
)

type expiredDeleter interface {
	DeleteExpired(ctx context.Context, now time.Time) ([]ExpiredHold, error)
}

type publisher interface {
	Publish(key, value []byte, headers ...kafkago.Header)
}

// Sweeper evicts expired holds on a fixed interval and tells the owning
// buyers their cart shrank. Sweeps are delete-where-expired, so running two
// sweepers concurrently is harmless.
type Sweeper struct {
	Store       expiredDeleter
	Producer    publisher
	Interval    time.Duration
	ServiceName string
}

// Sweep evicts every hold expired as of now and returns the count removed.
func (s *Sweeper) Sweep(ctx context.Context, now time.Time) (int, error) {
	expired, err := s.Store.DeleteExpired(ctx, now)
	if err != nil {
		return 0, err
	}
	for _, h := range expired {
		s.notify(h)
	}
	return len(expired), nil
}

// Run blocks, sweeping every Interval until ctx is cancelled.
func (s *Sweeper) Run(ctx context.Context) {
	ticker := time.NewTicker(s.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := s.Sweep(ctx, time.Now().UTC())
			if err != nil {
				log.Printf("sweep: %v", err)
				continue
			}
			if n > 0 {
				log.Printf("sweep: evicted %d expired holds", n)
			}
		}
	}
}

func (s *Sweeper) notify(h ExpiredHold) {
	if s.Producer == nil {
		return
	}
	ev := live.Envelope{
		EventID:       uuid.NewString(),
		EventType:     live.EventReservationExpired,
		EventVersion:  1,
		OccurredAt:    time.Now().UTC(),
		Producer:      s.ServiceName,
		CorrelationID: h.ID,
		UserID:        h.BuyerID,
		Payload: kafka.MustMarshal(live.ReservationExpiredPayload{
			ReservationID: h.ID,
			ProductID:     h.ProductID,
			VariantID:     h.VariantID,
			ShowID:        h.ShowID,
			Qty:           h.Qty,
		}),
	}
	s.Producer.Publish(live.PartitionKey(h.BuyerID), kafka.MustMarshal(ev),
		kafkago.Header{Key: "x-event-type", Value: []byte(live.EventReservationExpired)},
		kafkago.Header{Key: "x-event-version", Value: []byte("1")},
	)
}

package notify

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/redis/go-redis/v9"
	kafkago "github.com/segmentio/kafka-go"

	"github.com/jatango/liveshop/internal/live"
	"github.com/jatango/liveshop/internal/redisx"
)

// Bridge feeds the live-events topic into the registry, so an API instance
// pushes to whichever of its connected users an event targets. Used as the
// kafka consumer handler.
type Bridge struct {
	Registry *Registry
	Redis    *redis.Client
	Consumer string // dedup namespace
}

func (b *Bridge) Handle(ctx context.Context, m kafkago.Message) error {
	var env live.Envelope
	if err := json.Unmarshal(m.Value, &env); err != nil {
		return err
	}
	if env.UserID == "" {
		return nil // nothing to route
	}

	// Dedup by event id; redeliveries after a rebalance should not double-push.
	if b.Redis != nil {
		dkey := fmt.Sprintf(redisx.KeyDedup, b.Consumer, env.EventID)
		if exists, _ := redisx.Exists(ctx, b.Redis, dkey); exists {
			return nil
		}
		_ = b.Redis.Set(ctx, dkey, "1", redisx.TTLDedup).Err()
	}

	b.Registry.Emit(env.UserID, env)
	return nil
}

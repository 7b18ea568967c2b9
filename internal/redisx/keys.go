package redisx

import "time"

const (
	// Fast-path idempotency for checkout confirm: idem:checkout:{payment_intent_id} -> order_id.
	// The unique index on orders.payment_intent_id is the source of truth; this
	// only saves a round trip on client retries.
	KeyIdemCheckout = "idem:checkout:%s"

	// Cache order status reads: order_status:{order_id} -> {"status": "..."}
	KeyOrderStatus = "order_status:%s"

	// Dedup event processing on the notifier bridge: dedup:{consumer}:{event_id}
	KeyDedup = "dedup:%s:%s"
)

var (
	TTLIdempotency = 24 * time.Hour
	TTLStatusCache = 5 * time.Minute
	TTLDedup       = 48 * time.Hour
)

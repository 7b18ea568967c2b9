package live

const (
	// Single fan-out topic; consumers route by Envelope.UserID.
	TopicEvents = "live.events"
)

// Partition key = user_id so one user's events stay ordered.
func PartitionKey(userID string) []byte { return []byte(userID) }

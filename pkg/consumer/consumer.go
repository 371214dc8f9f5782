package consumer

import (
	"context"
	"strings"
)

// Record is a raw message as delivered by the bus.
type Record struct {
	// Key is the record key; nil when the bus delivered none.
	Key []byte
	// Value is the record payload.
	Value []byte
	// Topic names the topic the record arrived on.
	Topic string
}

// Consumer delivers raw records from a set of subscribed topics.
type Consumer interface {
	// Subscribe joins the consumer group and starts consuming the topics.
	Subscribe(ctx context.Context, topics []string) error

	// Recv blocks until the next record or an error. Errors are
	// recoverable; callers retry with backoff.
	Recv(ctx context.Context) (Record, error)

	// Close leaves the group and releases the connection.
	Close()
}

// Factory produces one consumer per operation. Implementations are safe
// for concurrent use and cheap to share.
type Factory interface {
	New(ctx context.Context, operation string) (Consumer, error)
}

// GroupID derives the consumer group id for an operation.
func GroupID(serviceName, operation string) string {
	return serviceName + "-" + strings.ToLower(operation)
}

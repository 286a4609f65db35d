package pub

import "context"

// Publisher defines the interface for publishing messages to a broker topic.
type Publisher interface {
	// Publish sends messages to the topic as a single batch.
	Publish(ctx context.Context, messages ...Message) (*Result, error)

	// Close releases the publisher's network session. A later Publish opens a new one.
	// Closing a publisher without a session is a no-op.
	Close(ctx context.Context) error

	// Topic returns the topic messages are published to.
	Topic() Topic
}

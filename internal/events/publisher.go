package events

import "context"

// Publisher announces recorded transactions.
type Publisher interface {
	PublishTransactionRecorded(ctx context.Context, msg *TransactionRecordedMessage) error
	Close() error
}

// NoopPublisher is used when AMQP_URL is not set.
type NoopPublisher struct{}

func (NoopPublisher) PublishTransactionRecorded(context.Context, *TransactionRecordedMessage) error {
	return nil
}

func (NoopPublisher) Close() error { return nil }

var (
	_ Publisher = NoopPublisher{}
	_ Publisher = (*Client)(nil)
)

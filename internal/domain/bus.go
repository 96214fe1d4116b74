package domain

import (
	"context"
)

// EventBus is the live-update sink. Delivery is best-effort: no
// acknowledgment, no retry, nothing persisted for offline listeners.
// Supports Go channels (Community) or NATS (Pro).
type EventBus interface {
	// Publish sends a message to a topic.
	Publish(ctx context.Context, topic string, payload []byte) error

	// Subscribe registers a handler for a topic.
	// Returns a subscription that can be used to unsubscribe.
	Subscribe(ctx context.Context, topic string, handler MessageHandler) (Subscription, error)

	// Health check
	Ping(ctx context.Context) error

	// Lifecycle
	Close() error
}

// MessageHandler processes incoming messages.
type MessageHandler func(ctx context.Context, msg *Message) error

// Message represents an event message.
type Message struct {
	ID        string `json:"id"`
	Topic     string `json:"topic"`
	Payload   []byte `json:"payload"`
	Timestamp int64  `json:"timestamp"`
}

// Subscription represents an active subscription.
type Subscription interface {
	// Unsubscribe stops receiving messages.
	Unsubscribe() error

	// Topic returns the subscribed topic.
	Topic() string
}

// EventBusConfig holds configuration for event bus initialization.
type EventBusConfig struct {
	// Type is the bus type: "channel" or "nats"
	Type string

	// Channel settings (Community tier)
	ChannelBufferSize int

	// NATS settings (Pro tier)
	NATSUrl           string
	NATSToken         string
	NATSMaxReconnects int
	NATSReconnectWait int // seconds
}

// Standard topic names for the dashboard event stream.
const (
	// TopicTransactionCreated carries every persisted transaction plus a
	// fresh stats snapshot.
	TopicTransactionCreated = "kestrel.transaction.created"

	// TopicFraudAlert carries flagged transactions with their flag list.
	TopicFraudAlert = "kestrel.fraud.alert"

	// TopicUploadCompleted carries the stored transactions, summary and
	// stats snapshot after a file upload.
	TopicUploadCompleted = "kestrel.upload.completed"

	// TopicTransactionSubmitted is the async ingestion input topic (Pro):
	// candidates published here are scored and persisted by the worker.
	TopicTransactionSubmitted = "kestrel.transaction.submitted"
)

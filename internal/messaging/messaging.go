// Package messaging abstracts the message broker carrying producer
// events to the relay, so the subscriber and the CLI do not couple to a
// specific broker client.
package messaging

import (
	"context"
	"time"
)

// Message is a payload received from or sent to the broker.
type Message struct {
	// Subject is the topic the message was published to.
	Subject string

	// Data is the raw payload.
	Data []byte

	// Timestamp is when the message was received.
	Timestamp time.Time
}

// Handler processes a received message. A returned error indicates a
// processing failure; the message is not redelivered.
type Handler func(ctx context.Context, msg *Message) error

// Subscription is an active subscription to a subject.
type Subscription interface {
	// Unsubscribe stops receiving messages on this subscription.
	Unsubscribe() error

	// Subject returns the subject this subscription listens to.
	Subject() string
}

// Publisher publishes messages to subjects (fire-and-forget).
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
	Close() error
}

// Subscriber subscribes to subjects; every subscriber receives all
// messages (fan-out).
type Subscriber interface {
	Subscribe(subject string, handler Handler) (Subscription, error)
	Close() error
}

// Client combines both directions plus connection management.
type Client interface {
	Publisher
	Subscriber

	// Drain gracefully closes, letting in-flight messages complete.
	Drain() error

	// IsConnected reports whether the broker connection is up.
	IsConnected() bool
}

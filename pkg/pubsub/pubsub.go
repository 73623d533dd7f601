// Package pubsub fans navigation and map events out to streaming clients.
package pubsub

import (
	"context"
	"encoding/json"
)

// Event is one published message.
type Event struct {
	Topic   string          `json:"topic"`   // "navigation" or "map"
	Type    string          `json:"type"`    // e.g. "target", "arrived", "merged"
	Data    json.RawMessage `json:"data"`    // Event payload
	Version int             `json:"version"` // Per-topic sequence number
}

// Subscription represents a client subscription to a topic
type Subscription interface {
	// Topic returns the subscription topic
	Topic() string

	// Events returns a channel for receiving events
	Events() <-chan Event

	// Close closes the subscription
	Close() error
}

// Publisher manages pub/sub subscriptions and event publishing
type Publisher interface {
	// Subscribe creates a new subscription to a topic
	// Context cancellation will close the subscription
	Subscribe(ctx context.Context, topic string) (Subscription, error)

	// Publish sends an event to all subscribers of a topic
	Publish(topic string, eventType string, data any) error

	// Close shuts down the publisher and all subscriptions
	Close() error
}

// Replay policies for the two streams the server exposes. A client that
// connects mid-walk gets the latest navigation state; map subscribers get the
// recent edit history.
var (
	NavigationTopic = TopicConfig{BufferSize: 1}
	MapTopic        = TopicConfig{BufferSize: 10, ReplayAll: true}
)

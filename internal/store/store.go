// Package store provides a key-value and pub/sub abstraction with memory
// and Redis backends.
package store

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a key is not found in the store.
var ErrNotFound = errors.New("key not found")

// Message represents a message received from a subscription.
type Message struct {
	Channel string
	Payload []byte
}

// Subscription represents an active subscription to a channel.
type Subscription interface {
	// Channel returns the channel on which messages are delivered.
	Channel() <-chan *Message
	// Close terminates the subscription.
	Close() error
}

// Store defines the interface shared by the memory and Redis backends.
type Store interface {
	Set(key string, value []byte, ttl time.Duration) error
	Get(key string) ([]byte, error)
	Delete(key string) error
	Exists(key string) (bool, error)
	Publish(channel string, message []byte) error
	Subscribe(channel string) (Subscription, error)
	Close() error
}

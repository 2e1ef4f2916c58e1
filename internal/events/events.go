// Package events publishes shipment lifecycle notifications.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event types.
const (
	ShipmentCreated = "shipment.created"
	ShipmentDeleted = "shipment.deleted"
)

// Event is a shipment notification.
type Event struct {
	Type           string    `json:"type"`
	ShipmentID     int64     `json:"shipment_id"`
	ShipmentNumber string    `json:"shipment_number,omitempty"`
	InfoPackageID  int64     `json:"info_package_id"`
	OrderID        int64     `json:"order_id"`
	ShopID         int64     `json:"shop_id,omitempty"`
	Carrier        string    `json:"carrier,omitempty"`
	Labels         int       `json:"labels,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher delivers events. Delivery is best effort.
type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

// redisClient is the part of *redis.Client the publisher uses.
type redisClient interface {
	Publish(ctx context.Context, channel string, message any) *redis.IntCmd
}

// RedisPublisher publishes events as JSON on a Redis channel.
type RedisPublisher struct {
	client  redisClient
	channel string
}

// NewRedisPublisher creates a publisher on channel. client is usually a
// *redis.Client.
func NewRedisPublisher(client redisClient, channel string) *RedisPublisher {
	return &RedisPublisher{client: client, channel: channel}
}

// Publish encodes e and publishes it.
func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	msg, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", e.Type, err)
	}
	if err := p.client.Publish(ctx, p.channel, msg).Err(); err != nil {
		return fmt.Errorf("publish %s event: %w", e.Type, err)
	}
	return nil
}

// Nop discards events.
type Nop struct{}

// Publish does nothing.
func (Nop) Publish(context.Context, Event) error { return nil }

// Recorder keeps published events in memory.
type Recorder struct {
	mu     sync.Mutex
	events []Event
	// Err, when set, is returned by Publish after recording.
	Err error
}

// Publish records e.
func (r *Recorder) Publish(_ context.Context, e Event) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
	return r.Err
}

// Events returns a copy of the recorded events.
func (r *Recorder) Events() []Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Event(nil), r.events...)
}

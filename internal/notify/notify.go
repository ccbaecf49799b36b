// Package notify implements the fire-and-forget notification sink. The
// Redis publisher pushes onto a per-owner pub/sub channel that delivery
// frontends (websocket hub, digest mailer) subscribe to; the log sink is
// the no-infrastructure fallback. A failed notification is logged and
// dropped; it must never fail the action it rides along with.
package notify

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

// publishTimeout bounds how long a notification may hold up its caller.
const publishTimeout = 2 * time.Second

// Message is the envelope published to subscribers.
type Message struct {
	OwnerID   string    `json:"owner_id"`
	Body      string    `json:"body"`
	Priority  string    `json:"priority"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisNotifier publishes notifications to steward:notify:<owner>.
type RedisNotifier struct {
	client *redis.Client
}

// NewRedisNotifier creates a Redis-backed notifier.
func NewRedisNotifier(client *redis.Client) *RedisNotifier {
	return &RedisNotifier{client: client}
}

// Channel returns the pub/sub channel name for an owner.
func Channel(ownerID string) string {
	return "steward:notify:" + ownerID
}

// Notify publishes the message. Errors are logged, never returned.
func (n *RedisNotifier) Notify(ctx context.Context, ownerID, message, priority string) {
	ctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()

	payload, err := json.Marshal(Message{
		OwnerID:   ownerID,
		Body:      message,
		Priority:  priority,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		log.Printf("[Notify] encode failed: %v", err)
		return
	}
	if err := n.client.Publish(ctx, Channel(ownerID), payload).Err(); err != nil {
		log.Printf("[Notify] publish to %s failed: %v", Channel(ownerID), err)
	}
}

// LogNotifier writes notifications to the process log. Used when Redis is
// not configured and in tests.
type LogNotifier struct{}

// Notify logs the message.
func (LogNotifier) Notify(_ context.Context, ownerID, message, priority string) {
	log.Printf("[Notify] owner=%s priority=%s %s", ownerID, priority, message)
}

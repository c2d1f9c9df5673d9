// Package notifications publishes moderation events and fans them out to admin websocket clients.
package notifications

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"runtime/debug"
	"time"

	"fourwcycle/internal/cache"
	"fourwcycle/internal/models"
	"fourwcycle/internal/observability"

	"github.com/redis/go-redis/v9"
)

// Moderation event types.
const (
	EventSubmissionCreated = "submission.created"
	EventSubmissionUpdated = "submission.updated"
	EventSubmissionDeleted = "submission.deleted"
)

// ModerationEvent is the payload published on the moderation channel.
type ModerationEvent struct {
	Type         string                  `json:"type"`
	SubmissionID uint                    `json:"submission_id"`
	Status       models.SubmissionStatus `json:"status,omitempty"`
	At           time.Time               `json:"at"`
}

// Notifier publishes moderation events into Redis.
type Notifier struct {
	rdb *redis.Client
}

// NewNotifier creates a Notifier; a nil client turns every call into a no-op.
func NewNotifier(rdb *redis.Client) *Notifier {
	return &Notifier{rdb: rdb}
}

// Enabled reports whether events can be delivered.
func (n *Notifier) Enabled() bool {
	return n != nil && n.rdb != nil
}

// PublishModeration sends ev to the moderation channel.
func (n *Notifier) PublishModeration(ctx context.Context, ev ModerationEvent) error {
	if !n.Enabled() {
		return nil
	}
	payload, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return n.rdb.Publish(ctx, cache.EventsChannel, string(payload)).Err()
}

// StartModerationSubscriber subscribes to the moderation channel and calls onMessage
// for each payload until ctx is cancelled.
func (n *Notifier) StartModerationSubscriber(ctx context.Context, onMessage func(payload string)) error {
	if !n.Enabled() {
		return nil
	}
	sub := n.rdb.Subscribe(ctx, cache.EventsChannel)
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return fmt.Errorf("subscribe %s: %w", cache.EventsChannel, err)
	}
	ch := sub.Channel()

	go func() {
		defer func() { _ = sub.Close() }()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				func() {
					defer func() {
						if r := recover(); r != nil {
							observability.GlobalLogger.Error("panic in moderation subscriber",
								slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
						}
					}()
					onMessage(msg.Payload)
				}()
			}
		}
	}()

	return nil
}

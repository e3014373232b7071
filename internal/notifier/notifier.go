package notifier

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"ms-payments/internal/logger"
)

const (
	SeverityInfo    = "info"
	SeverityWarning = "warning"
	SeverityDanger  = "danger"
)

// Message is a user-facing notice queued for the owner's next page load.
type Message struct {
	Severity  string    `json:"severity"`
	Text      string    `json:"text"`
	CreatedAt time.Time `json:"created_at"`
}

// RedisNotifier queues flash messages per user in Redis. The frontend drains
// the list on its next request.
type RedisNotifier struct {
	Client *redis.Client
	Logger *logger.Logger
	TTL    time.Duration
}

func NewRedisNotifier(client *redis.Client, log *logger.Logger) *RedisNotifier {
	return &RedisNotifier{
		Client: client,
		Logger: log,
		TTL:    15 * time.Minute,
	}
}

func flashKey(owner string) string {
	return fmt.Sprintf("flash:%s", owner)
}

// Notify queues a message for the given owner.
func (n *RedisNotifier) Notify(ctx context.Context, owner, severity, text string) error {
	msg := Message{
		Severity:  severity,
		Text:      text,
		CreatedAt: time.Now(),
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	key := flashKey(owner)
	if err := n.Client.RPush(ctx, key, payload).Err(); err != nil {
		n.Logger.Error("NOTIFY", fmt.Sprintf("Failed to queue notification for %s: %v", owner, err))
		return fmt.Errorf("failed to queue notification: %w", err)
	}
	if err := n.Client.Expire(ctx, key, n.TTL).Err(); err != nil {
		n.Logger.Warn("NOTIFY", fmt.Sprintf("Failed to set notification TTL for %s: %v", owner, err))
	}

	n.Logger.Info("NOTIFY", fmt.Sprintf("[%s] queued for %s: %s", severity, owner, text))
	return nil
}

// Drain pops all pending messages for the owner.
func (n *RedisNotifier) Drain(ctx context.Context, owner string) ([]Message, error) {
	key := flashKey(owner)

	raw, err := n.Client.LRange(ctx, key, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read notifications: %w", err)
	}
	if err := n.Client.Del(ctx, key).Err(); err != nil {
		return nil, fmt.Errorf("failed to clear notifications: %w", err)
	}

	messages := make([]Message, 0, len(raw))
	for _, item := range raw {
		var msg Message
		if err := json.Unmarshal([]byte(item), &msg); err != nil {
			n.Logger.Warn("NOTIFY", fmt.Sprintf("Dropping malformed notification for %s: %v", owner, err))
			continue
		}
		messages = append(messages, msg)
	}

	return messages, nil
}

// LogNotifier writes notifications to the service log only. Used for
// headless runs and tests where no frontend drains the flash queue.
type LogNotifier struct {
	Logger *logger.Logger
}

func (n *LogNotifier) Notify(_ context.Context, owner, severity, text string) error {
	n.Logger.Info("NOTIFY", fmt.Sprintf("[%s] %s: %s", severity, owner, text))
	return nil
}

package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"tollway/internal/core/domain"

	goredis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
)

const (
	fieldEvent     = "event"
	fieldEventID   = "event_id"
	fieldReason    = "reason"
	fieldMessageID = "message_id"
	fieldAttempt   = "attempt"
)

// EventQueueConfig names the stream and consumer group a queue works on.
type EventQueueConfig struct {
	Stream   string
	Group    string
	Consumer string
	// Block is how long Receive waits for new entries.
	Block time.Duration
	// Lease is how long a delivery may stay unacknowledged before another
	// consumer reclaims it.
	Lease time.Duration
}

// EventQueue implements ports.EventQueue on a Redis stream with a consumer
// group. Unacknowledged entries stay in the group's pending list and are
// reclaimed once their lease expires, which gives at-least-once delivery.
type EventQueue struct {
	client *goredis.Client
	cfg    EventQueueConfig
	log    zerolog.Logger
}

// NewEventQueue creates a stream-backed event queue.
func NewEventQueue(client *goredis.Client, cfg EventQueueConfig, log zerolog.Logger) *EventQueue {
	return &EventQueue{client: client, cfg: cfg, log: log}
}

// DeadStream is the stream that receives dead-lettered events.
func (q *EventQueue) DeadStream() string {
	return q.cfg.Stream + ":dead"
}

// EnsureGroup creates the stream and consumer group if they do not exist.
func (q *EventQueue) EnsureGroup(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, q.cfg.Stream, q.cfg.Group, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create consumer group: %w", err)
	}
	return nil
}

// Publish appends an event to the stream and returns its entry id.
func (q *EventQueue) Publish(ctx context.Context, event domain.TollEvent) (string, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("encode toll event: %w", err)
	}

	id, err := q.client.XAdd(ctx, &goredis.XAddArgs{
		Stream: q.cfg.Stream,
		Values: map[string]any{fieldEvent: string(payload), fieldEventID: event.EventID},
	}).Result()
	if err != nil {
		return "", fmt.Errorf("redis xadd: %w", err)
	}
	return id, nil
}

// Receive returns the next delivery for this consumer. Expired leases are
// reclaimed before new entries are read.
func (q *EventQueue) Receive(ctx context.Context) (*domain.Delivery, error) {
	msg, err := q.reclaim(ctx)
	if err != nil {
		return nil, err
	}
	if msg == nil {
		if msg, err = q.readNew(ctx); err != nil || msg == nil {
			return nil, err
		}
	}

	attempt, err := q.deliveryCount(ctx, msg.ID)
	if err != nil {
		return nil, err
	}

	d := &domain.Delivery{MessageID: msg.ID, Attempt: attempt}
	raw, _ := msg.Values[fieldEvent].(string)
	if err := json.Unmarshal([]byte(raw), &d.Event); err != nil {
		q.log.Error().Err(err).Str("message_id", msg.ID).Msg("Undecodable toll event, dead-lettering")
		if err := q.DeadLetter(ctx, d, "undecodable payload"); err != nil {
			return nil, err
		}
		return nil, nil
	}
	return d, nil
}

func (q *EventQueue) reclaim(ctx context.Context) (*goredis.XMessage, error) {
	msgs, _, err := q.client.XAutoClaim(ctx, &goredis.XAutoClaimArgs{
		Stream:   q.cfg.Stream,
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		MinIdle:  q.cfg.Lease,
		Start:    "0-0",
		Count:    1,
	}).Result()
	if err != nil {
		return nil, fmt.Errorf("redis xautoclaim: %w", err)
	}
	for i := range msgs {
		if msgs[i].Values != nil {
			return &msgs[i], nil
		}
	}
	return nil, nil
}

func (q *EventQueue) readNew(ctx context.Context) (*goredis.XMessage, error) {
	streams, err := q.client.XReadGroup(ctx, &goredis.XReadGroupArgs{
		Group:    q.cfg.Group,
		Consumer: q.cfg.Consumer,
		Streams:  []string{q.cfg.Stream, ">"},
		Count:    1,
		Block:    q.cfg.Block,
	}).Result()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis xreadgroup: %w", err)
	}
	for _, s := range streams {
		if len(s.Messages) > 0 {
			return &s.Messages[0], nil
		}
	}
	return nil, nil
}

func (q *EventQueue) deliveryCount(ctx context.Context, id string) (int64, error) {
	pending, err := q.client.XPendingExt(ctx, &goredis.XPendingExtArgs{
		Stream: q.cfg.Stream,
		Group:  q.cfg.Group,
		Start:  id,
		End:    id,
		Count:  1,
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis xpending: %w", err)
	}
	if len(pending) == 0 {
		return 1, nil
	}
	return pending[0].RetryCount, nil
}

// Ack removes the delivery from the pending list.
func (q *EventQueue) Ack(ctx context.Context, d *domain.Delivery) error {
	if err := q.client.XAck(ctx, q.cfg.Stream, q.cfg.Group, d.MessageID).Err(); err != nil {
		return fmt.Errorf("redis xack: %w", err)
	}
	return nil
}

// DeadLetter copies the delivery to the dead stream and acknowledges it in
// one MULTI/EXEC.
func (q *EventQueue) DeadLetter(ctx context.Context, d *domain.Delivery, reason string) error {
	payload, err := json.Marshal(d.Event)
	if err != nil {
		return fmt.Errorf("encode toll event: %w", err)
	}

	_, err = q.client.TxPipelined(ctx, func(pipe goredis.Pipeliner) error {
		pipe.XAdd(ctx, &goredis.XAddArgs{
			Stream: q.DeadStream(),
			Values: map[string]any{
				fieldEvent:     string(payload),
				fieldEventID:   d.Event.EventID,
				fieldMessageID: d.MessageID,
				fieldAttempt:   d.Attempt,
				fieldReason:    reason,
			},
		})
		pipe.XAck(ctx, q.cfg.Stream, q.cfg.Group, d.MessageID)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis dead-letter: %w", err)
	}
	return nil
}

// Ping implements ports.HealthChecker: Redis must answer and the consumer
// group must still exist, since a flushed instance silently drops it.
func (q *EventQueue) Ping(ctx context.Context) error {
	groups, err := q.client.XInfoGroups(ctx, q.cfg.Stream).Result()
	if err != nil {
		return fmt.Errorf("redis xinfo groups: %w", err)
	}
	for _, g := range groups {
		if g.Name == q.cfg.Group {
			return nil
		}
	}
	return fmt.Errorf("consumer group %q missing on stream %q", q.cfg.Group, q.cfg.Stream)
}

func (q *EventQueue) Name() string {
	return "redis"
}

// Pending returns the number of delivered but unacknowledged entries.
func (q *EventQueue) Pending(ctx context.Context) (int64, error) {
	res, err := q.client.XPending(ctx, q.cfg.Stream, q.cfg.Group).Result()
	if err != nil {
		return 0, fmt.Errorf("redis xpending: %w", err)
	}
	return res.Count, nil
}

package dispatch

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"inakat/lifecycle-service/internal/lifecycle"
)

// Redis keys.
const (
	AuditStream    = "lifecycle:audit"
	retryListKey   = "lifecycle:intents:retry"
	deadListKey    = "lifecycle:intents:dead"
	claimKeyPrefix = "lifecycle:intent:claimed:"
)

// ChannelFor returns the pub/sub channel notification intents of kind go to,
// e.g. EVENT_NOTIFY_COMPANY_NEW_CANDIDATE.
func ChannelFor(kind lifecycle.IntentKind) string {
	return "EVENT_" + strings.ToUpper(string(kind))
}

// RedisNotifier publishes notification intents for downstream consumers
// (mailer, in-app notifications, ledger) and appends audit intents to a
// stream.
type RedisNotifier struct {
	rdb *redis.Client
}

// NewRedisNotifier returns a notifier on rdb.
func NewRedisNotifier(rdb *redis.Client) *RedisNotifier {
	return &RedisNotifier{rdb: rdb}
}

// Notify implements Notifier.
func (n *RedisNotifier) Notify(ctx context.Context, in lifecycle.SideEffectIntent) error {
	payload, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("marshal intent: %w", err)
	}

	if in.Kind == lifecycle.IntentAudit {
		err := n.rdb.XAdd(ctx, &redis.XAddArgs{
			Stream: AuditStream,
			Values: map[string]any{
				"intentId":      in.ID.String(),
				"applicationId": in.ApplicationID,
				"payload":       payload,
			},
		}).Err()
		if err != nil {
			return fmt.Errorf("xadd %s: %w", AuditStream, err)
		}
		return nil
	}

	if err := n.rdb.Publish(ctx, ChannelFor(in.Kind), payload).Err(); err != nil {
		return fmt.Errorf("publish %s: %w", ChannelFor(in.Kind), err)
	}
	return nil
}

// RedisDeduper claims intent ids with SETNX and a TTL.
type RedisDeduper struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisDeduper returns a deduper whose claims expire after ttl.
func NewRedisDeduper(rdb *redis.Client, ttl time.Duration) *RedisDeduper {
	return &RedisDeduper{rdb: rdb, ttl: ttl}
}

// Claim implements Deduper.
func (d *RedisDeduper) Claim(ctx context.Context, id uuid.UUID) (bool, error) {
	ok, err := d.rdb.SetNX(ctx, claimKeyPrefix+id.String(), time.Now().UTC().Format(time.RFC3339), d.ttl).Result()
	if err != nil {
		return false, fmt.Errorf("setnx: %w", err)
	}
	return ok, nil
}

// Release implements Deduper.
func (d *RedisDeduper) Release(ctx context.Context, id uuid.UUID) error {
	return d.rdb.Del(ctx, claimKeyPrefix+id.String()).Err()
}

// RedisQueue is a FIFO retry list with a dead-letter companion.
type RedisQueue struct {
	rdb *redis.Client
}

// NewRedisQueue returns a queue on rdb.
func NewRedisQueue(rdb *redis.Client) *RedisQueue {
	return &RedisQueue{rdb: rdb}
}

// Push implements RetryQueue.
func (q *RedisQueue) Push(ctx context.Context, env Envelope) error {
	return q.rpush(ctx, retryListKey, env)
}

// DeadLetter implements RetryQueue.
func (q *RedisQueue) DeadLetter(ctx context.Context, env Envelope) error {
	return q.rpush(ctx, deadListKey, env)
}

// Pop implements RetryQueue.
func (q *RedisQueue) Pop(ctx context.Context) (Envelope, bool, error) {
	raw, err := q.rdb.LPop(ctx, retryListKey).Bytes()
	if errors.Is(err, redis.Nil) {
		return Envelope{}, false, nil
	}
	if err != nil {
		return Envelope{}, false, fmt.Errorf("lpop: %w", err)
	}
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		if derr := q.rdb.RPush(ctx, deadListKey, raw).Err(); derr != nil {
			return Envelope{}, false, fmt.Errorf("decode envelope: %w (dead-letter raw: %v)", err, derr)
		}
		return Envelope{}, false, fmt.Errorf("decode envelope: %w", err)
	}
	return env, true, nil
}

// Len implements RetryQueue.
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.rdb.LLen(ctx, retryListKey).Result()
}

func (q *RedisQueue) rpush(ctx context.Context, key string, env Envelope) error {
	raw, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("encode envelope: %w", err)
	}
	if err := q.rdb.RPush(ctx, key, raw).Err(); err != nil {
		return fmt.Errorf("rpush %s: %w", key, err)
	}
	return nil
}

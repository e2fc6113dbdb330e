package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tullo/wordguard/internal/models"
)

// ViolationsChannel carries a models.ViolationEvent for every logged violation.
const ViolationsChannel = "violations"

type RedisClient struct {
	client *redis.Client
}

// NewRedisClient creates a new Redis client
func NewRedisClient(ctx context.Context, addr, password string, db int) (*RedisClient, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	// Test connection
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return &RedisClient{client: client}, nil
}

// Close closes the Redis connection
func (r *RedisClient) Close() error {
	return r.client.Close()
}

// Pub/Sub

// PublishViolation publishes a violation event to the violations channel
func (r *RedisClient) PublishViolation(ctx context.Context, log *models.ViolationLog) error {
	event := models.ViolationEvent{ID: uuid.New(), Log: *log}

	data, err := sonic.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to encode violation event: %w", err)
	}

	return r.client.Publish(ctx, ViolationsChannel, data).Err()
}

// SubscribeToViolations subscribes to the violations channel
func (r *RedisClient) SubscribeToViolations(ctx context.Context) *redis.PubSub {
	return r.client.Subscribe(ctx, ViolationsChannel)
}

// DecodeViolationEvent parses a payload received on the violations channel.
func DecodeViolationEvent(payload string) (*models.ViolationEvent, error) {
	var event models.ViolationEvent
	if err := sonic.UnmarshalString(payload, &event); err != nil {
		return nil, fmt.Errorf("failed to decode violation event: %w", err)
	}
	return &event, nil
}

// GetClient returns the underlying Redis client
func (r *RedisClient) GetClient() *redis.Client {
	return r.client
}

// tokenBucket keeps tokens and the last refill time (ms) in a hash per key.
const tokenBucket = `
local key = KEYS[1]
local rate = tonumber(ARGV[1])
local burst = tonumber(ARGV[2])
local now = tonumber(ARGV[3])
local vals = redis.call('HMGET', key, 'tokens', 'last')
local tokens = tonumber(vals[1])
local last = tonumber(vals[2])
if tokens == nil then tokens = burst end
if last == nil then last = now end
local delta = math.max(0, now - last)
local new_tokens = math.min(burst, tokens + (delta * rate / 1000))
local allowed = 0
if new_tokens >= 1 then
	new_tokens = new_tokens - 1
	allowed = 1
end
redis.call('HMSET', key, 'tokens', new_tokens, 'last', now)
redis.call('PEXPIRE', key, 60000)
return allowed
`

// AllowAction implements a Redis-backed token-bucket limiter per operator and action.
// Returns true if the action is allowed, false if rate-limited.
func (r *RedisClient) AllowAction(ctx context.Context, userID int64, action string, rate int, burst int) (bool, error) {
	key := fmt.Sprintf("rl:%s:%d", action, userID)

	now := time.Now().UnixNano() / int64(time.Millisecond)
	res, err := r.client.Eval(ctx, tokenBucket, []string{key}, rate, burst, now).Result()
	if err != nil {
		return false, err
	}
	// Eval returns int64 (1 or 0)
	switch v := res.(type) {
	case int64:
		return v == 1, nil
	case int:
		return v == 1, nil
	default:
		return false, fmt.Errorf("unexpected result from rate limiter: %T %v", res, res)
	}
}
